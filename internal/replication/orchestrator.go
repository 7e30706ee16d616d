// Package replication pushes published content to remote targets.
//
// For every published node the Orchestrator selects the matching
// configurations and, target by target, makes sure the owning site, the
// workspace with its base workspaces, the referenced assets, the missing
// ancestors and finally the node itself exist on the target. Dependencies
// are discovered lazily: a 404 from the target triggers creating what is
// missing before the dependent resource.
package replication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/content-replicator/internal/content"
	"github.com/stacklok/content-replicator/internal/httpclient"
	"github.com/stacklok/content-replicator/internal/otel"
	"github.com/stacklok/content-replicator/internal/status"
	"github.com/stacklok/content-replicator/internal/telemetry"
)

// Status codes accepted when a node or asset is written
var writeSuccessCodes = []int{http.StatusOK, http.StatusCreated, http.StatusSeeOther}

// Orchestrator replicates published nodes to the configured targets
type Orchestrator struct {
	configurations []*Configuration
	targets        map[string]*Target
	client         httpclient.Client

	tracker status.Tracker
	metrics *telemetry.ReplicationMetrics
	tracer  trace.Tracer
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithTracker records the outcome of every target run
func WithTracker(tracker status.Tracker) Option {
	return func(o *Orchestrator) {
		o.tracker = tracker
	}
}

// WithMetrics records request and duration metrics
func WithMetrics(metrics *telemetry.ReplicationMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// WithTracer creates a span per target run
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// New creates an Orchestrator. Configurations are evaluated in the given order.
func New(
	configurations []*Configuration, targets map[string]*Target, client httpclient.Client, opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		configurations: configurations,
		targets:        targets,
		client:         client,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnNodePublished replicates a node that was published into workspace to all
// targets of the configurations with the publish trigger.
//
// Failures never propagate: they are logged and reported per target, and the
// remaining targets are still processed.
func (o *Orchestrator) OnNodePublished(ctx context.Context, node content.Node, workspace *content.Workspace) *Report {
	return o.replicate(ctx, node, workspace, TriggerPublish)
}

// Replicate runs the same pipeline for the configurations with the manual trigger
func (o *Orchestrator) Replicate(ctx context.Context, node content.Node, workspace *content.Workspace) *Report {
	return o.replicate(ctx, node, workspace, TriggerManual)
}

func (o *Orchestrator) replicate(
	ctx context.Context, node content.Node, workspace *content.Workspace, trigger string,
) *Report {
	report := &Report{
		Node:      node.Identifier(),
		Workspace: workspace.Name,
		Trigger:   trigger,
	}
	caches := newRunCaches()

	for _, configuration := range o.configurations {
		if !configuration.Matches(workspace.Name, trigger) {
			continue
		}
		for _, targetIdentifier := range configuration.Targets {
			outcome := o.replicateToTarget(ctx, caches, configuration, targetIdentifier, node, workspace)
			report.Outcomes = append(report.Outcomes, outcome)
		}
		slog.Debug("Replicated publication",
			"node", node.String(),
			"workspace", workspace.Name,
			"configuration", configuration.DisplayName())
	}

	return report
}

func (o *Orchestrator) replicateToTarget(
	ctx context.Context,
	caches *runCaches,
	configuration *Configuration,
	targetIdentifier string,
	node content.Node,
	workspace *content.Workspace,
) Outcome {
	start := time.Now()
	outcome := Outcome{Configuration: configuration.Identifier, Target: targetIdentifier}

	target, ok := o.targets[targetIdentifier]
	if !ok {
		err := &DependencyError{
			Phase:   PhaseTarget,
			Target:  targetIdentifier,
			Message: fmt.Sprintf("replication %q references target %q", configuration.Identifier, targetIdentifier),
			Err:     ErrUnknownTarget,
		}
		slog.Error("Skipping replication to undefined target",
			"configuration", configuration.DisplayName(),
			"target", targetIdentifier,
			"error", err)
		outcome.Status, outcome.Phase, outcome.Err = StatusFailed, PhaseTarget, err
		o.finish(ctx, &outcome, node, workspace, start)
		return outcome
	}

	ctx, span := otel.StartSpan(ctx, o.tracer, "replication.target",
		trace.WithAttributes(
			otel.AttrTarget.String(target.Identifier),
			otel.AttrConfiguration.String(configuration.Identifier),
			otel.AttrNodeIdentifier.String(node.Identifier()),
			otel.AttrNodePath.String(node.Path()),
			otel.AttrWorkspace.String(workspace.Name),
		),
	)
	defer span.End()

	run := &targetRun{orchestrator: o, caches: caches, target: target}

	if err := run.syncSite(ctx, node.Site()); err != nil {
		slog.Warn("Skipping replication to target",
			"target", target.DisplayName(),
			"phase", PhaseSite,
			"error", err)
		outcome.Status, outcome.Phase, outcome.Err = StatusSkipped, phaseOf(err, PhaseSite), err
	} else if err := run.syncWorkspace(ctx, workspace, map[string]bool{}); err != nil {
		slog.Warn("Skipping replication to target",
			"target", target.DisplayName(),
			"phase", PhaseWorkspace,
			"error", err)
		outcome.Status, outcome.Phase, outcome.Err = StatusSkipped, phaseOf(err, PhaseWorkspace), err
	} else if err := run.syncNode(ctx, node, workspace, map[string]bool{}); err != nil {
		slog.Error("Error during replication of node to target",
			"node", node.String(),
			"target", target.DisplayName(),
			"error", err)
		outcome.Status, outcome.Phase, outcome.Err = StatusFailed, phaseOf(err, PhaseNode), err
	} else {
		outcome.Status = StatusSucceeded
	}

	if outcome.Err != nil {
		span.SetAttributes(otel.AttrPhase.String(string(outcome.Phase)))
		otel.RecordError(span, outcome.Err)
	}
	span.SetAttributes(otel.AttrOutcome.String(string(outcome.Status)))

	o.finish(ctx, &outcome, node, workspace, start)
	return outcome
}

// finish records duration, metrics and the persisted target status
func (o *Orchestrator) finish(
	ctx context.Context, outcome *Outcome, node content.Node, workspace *content.Workspace, start time.Time,
) {
	outcome.Duration = time.Since(start)
	o.metrics.RecordTargetDuration(ctx, outcome.Target, string(outcome.Status), outcome.Duration)
	if outcome.Status != StatusSucceeded {
		o.metrics.RecordFailure(ctx, outcome.Target, string(outcome.Phase))
	}

	if o.tracker == nil {
		return
	}
	attempt := status.Attempt{
		Configuration: outcome.Configuration,
		Node:          node.String(),
		Workspace:     workspace.Name,
		Succeeded:     outcome.Status == StatusSucceeded,
		At:            start,
	}
	if outcome.Err != nil {
		attempt.Phase = string(outcome.Phase)
		attempt.Message = outcome.Err.Error()
	}
	if err := o.tracker.RecordAttempt(ctx, outcome.Target, attempt); err != nil {
		slog.Warn("Failed to record replication status", "target", outcome.Target, "error", err)
	}
}

type cacheKey struct {
	target string
	name   string
}

// runCaches remember which sites and workspaces were synchronized during one event
type runCaches struct {
	sites      map[cacheKey]struct{}
	workspaces map[cacheKey]struct{}
}

func newRunCaches() *runCaches {
	return &runCaches{
		sites:      make(map[cacheKey]struct{}),
		workspaces: make(map[cacheKey]struct{}),
	}
}

// targetRun synchronizes the dependencies of one node with one target
type targetRun struct {
	orchestrator *Orchestrator
	caches       *runCaches
	target       *Target
}

func (r *targetRun) syncSite(ctx context.Context, site *content.Site) error {
	if site == nil {
		return &DependencyError{Phase: PhaseSite, Target: r.target.Identifier, Message: "cannot replicate site", Err: ErrMissingSite}
	}
	key := cacheKey{target: r.target.Identifier, name: site.NodeName}
	if _, done := r.caches.sites[key]; done {
		return nil
	}

	path := "sites/" + url.PathEscape(site.NodeName)
	resp, err := r.send(ctx, PhaseSite, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		arguments := map[string]any{
			"name":                site.Name,
			"nodeName":            site.NodeName,
			"state":               site.State,
			"resourcesPackageKey": site.ResourcesPackageKey,
		}
		resp, err = r.send(ctx, PhaseSite, http.MethodPost, "sites", arguments)
		if err != nil {
			return err
		}
		if !resp.IsSuccess(http.StatusCreated) {
			return r.unexpected(PhaseSite, http.MethodPost, "sites", resp)
		}
		slog.Info("Created site on target", "site", site.Name, "target", r.target.DisplayName())
	case http.StatusOK:
		slog.Debug("Site exists on target, would update", "site", site.Name, "target", r.target.DisplayName())
	default:
		return r.unexpected(PhaseSite, http.MethodGet, path, resp)
	}

	r.caches.sites[key] = struct{}{}
	return nil
}

// syncWorkspace makes sure the workspace exists on the target. Missing base
// workspaces are created first, the most distant one before the nearest.
func (r *targetRun) syncWorkspace(ctx context.Context, workspace *content.Workspace, visiting map[string]bool) error {
	key := cacheKey{target: r.target.Identifier, name: workspace.Name}
	if _, done := r.caches.workspaces[key]; done {
		return nil
	}
	if visiting[workspace.Name] {
		return &DependencyError{
			Phase:   PhaseWorkspace,
			Target:  r.target.Identifier,
			Message: fmt.Sprintf("workspace %q is its own base", workspace.Name),
			Err:     ErrCycle,
		}
	}
	visiting[workspace.Name] = true
	defer delete(visiting, workspace.Name)

	path := "workspaces/" + url.PathEscape(workspace.Name)
	resp, err := r.send(ctx, PhaseWorkspace, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		for _, base := range workspace.BaseWorkspaces {
			if err := r.syncWorkspace(ctx, base, visiting); err != nil {
				return err
			}
		}

		arguments := map[string]any{}
		if base := workspace.NearestBase(); base != nil {
			arguments["baseWorkspaceName"] = base.Name
		}
		resp, err = r.send(ctx, PhaseWorkspace, http.MethodPost, path, arguments)
		if err != nil {
			return err
		}
		if !resp.IsSuccess(http.StatusCreated) {
			return r.unexpected(PhaseWorkspace, http.MethodPost, path, resp)
		}
		slog.Info("Created workspace on target", "workspace", workspace.Name, "target", r.target.DisplayName())
	case http.StatusOK:
		slog.Debug("Workspace exists on target, would update", "workspace", workspace.Name, "target", r.target.DisplayName())
	default:
		return r.unexpected(PhaseWorkspace, http.MethodGet, path, resp)
	}

	r.caches.workspaces[key] = struct{}{}
	return nil
}

// syncNode removes, updates or creates the node on the target. A node missing
// on the target gets its missing ancestors created first.
func (r *targetRun) syncNode(
	ctx context.Context, node content.Node, workspace *content.Workspace, visiting map[string]bool,
) error {
	path := "nodes/" + url.PathEscape(node.Identifier())

	if node.IsRemoved() {
		return r.deleteNode(ctx, node, workspace, path)
	}

	if visiting[node.Identifier()] {
		return &DependencyError{
			Phase:   PhaseNode,
			Target:  r.target.Identifier,
			Message: fmt.Sprintf("node %s is its own ancestor", node),
			Err:     ErrCycle,
		}
	}
	visiting[node.Identifier()] = true
	defer delete(visiting, node.Identifier())

	if err := r.propagateAssets(ctx, node); err != nil {
		return err
	}

	resp, err := r.send(ctx, PhaseNode, http.MethodGet, path, map[string]any{
		"workspaceName": workspace.Name,
		"dimensions":    node.Dimensions(),
	})
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		properties, err := SerializeProperties(node)
		if err != nil {
			return &phaseError{phase: PhaseNode, err: err}
		}
		resp, err = r.send(ctx, PhaseNode, http.MethodPut, path, map[string]any{
			"workspaceName": workspace.Name,
			"dimensions":    node.Dimensions(),
			"properties":    properties,
		})
		if err != nil {
			return err
		}
		if !resp.IsSuccess(writeSuccessCodes...) {
			return r.unexpected(PhaseNode, http.MethodPut, path, resp)
		}
		slog.Debug("Updated node on target",
			"node", node.String(), "target", r.target.DisplayName(), "status", resp.StatusLine)
	case http.StatusNotFound:
		if parent := node.Parent(); parent != nil && parent.Depth() > 0 {
			if err := r.syncNode(ctx, parent, workspace, visiting); err != nil {
				return err
			}
		}
		properties, err := SerializeProperties(node)
		if err != nil {
			return &phaseError{phase: PhaseNode, err: err}
		}
		resp, err = r.send(ctx, PhaseNode, http.MethodPost, "nodes", map[string]any{
			"mode":          "new",
			"identifier":    node.Identifier(),
			"workspaceName": workspace.Name,
			"dimensions":    node.Dimensions(),
			"properties":    properties,
		})
		if err != nil {
			return err
		}
		if !resp.IsSuccess(writeSuccessCodes...) {
			return r.unexpected(PhaseNode, http.MethodPost, "nodes", resp)
		}
		slog.Debug("Created node on target",
			"node", node.String(), "target", r.target.DisplayName(), "status", resp.StatusLine)
	default:
		return r.unexpected(PhaseNode, http.MethodGet, path, resp)
	}
	return nil
}

func (r *targetRun) deleteNode(ctx context.Context, node content.Node, workspace *content.Workspace, path string) error {
	resp, err := r.send(ctx, PhaseNode, http.MethodDelete, path, map[string]any{
		"workspace":  workspace.Name,
		"dimensions": node.Dimensions(),
	})
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		slog.Info("Removed node on target", "node", node.String(), "target", r.target.DisplayName())
	case http.StatusNotFound:
		slog.Warn("Did not find node scheduled for removal on target",
			"node", node.String(), "target", r.target.DisplayName(), "status", resp.StatusLine)
	default:
		return r.unexpected(PhaseNode, http.MethodDelete, path, resp)
	}
	return nil
}

// propagateAssets creates the assets held by the node's asset properties.
// The original of an image variant is created before the variant.
func (r *targetRun) propagateAssets(ctx context.Context, node content.Node) error {
	nodeType := node.NodeType()
	for _, name := range nodeType.PropertyNames() {
		definition, _ := nodeType.Property(name)
		if !definition.Type.IsAsset() {
			continue
		}
		asset, ok := node.Property(name).(*content.Asset)
		if !ok || asset == nil {
			continue
		}
		if asset.IsVariant() {
			if err := r.syncAsset(ctx, asset.OriginalAsset); err != nil {
				return err
			}
		}
		if err := r.syncAsset(ctx, asset); err != nil {
			return err
		}
	}
	return nil
}

func (r *targetRun) syncAsset(ctx context.Context, asset *content.Asset) error {
	path := "assets/" + url.PathEscape(asset.Identifier)
	resp, err := r.send(ctx, PhaseAsset, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		slog.Debug("Asset exists on target, would update", "asset", asset.Identifier, "target", r.target.DisplayName())
	case http.StatusNotFound:
		resp, err = r.send(ctx, PhaseAsset, http.MethodPost, "assets", map[string]any{"asset": assetPayload(asset)})
		if err != nil {
			return err
		}
		if !resp.IsSuccess(writeSuccessCodes...) {
			return r.unexpected(PhaseAsset, http.MethodPost, "assets", resp)
		}
		slog.Debug("Created asset on target", "asset", asset.Identifier, "target", r.target.DisplayName())
	default:
		return r.unexpected(PhaseAsset, http.MethodGet, path, resp)
	}
	return nil
}

// send issues one request and counts it. Transport and encoding errors are
// tagged with the phase they happened in.
func (r *targetRun) send(
	ctx context.Context, phase Phase, method, path string, arguments any,
) (*httpclient.Response, error) {
	resp, err := r.orchestrator.client.Do(ctx, r.target.Endpoint(), method, path, arguments)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	r.orchestrator.metrics.RecordRequest(ctx, r.target.Identifier, method, string(phase), statusCode)

	if err != nil {
		return nil, &phaseError{phase: phase, err: fmt.Errorf("%s %s: %w", method, path, err)}
	}
	return resp, nil
}

func (r *targetRun) unexpected(phase Phase, method, path string, resp *httpclient.Response) *SyncError {
	return &SyncError{
		Phase:      phase,
		Action:     method,
		Resource:   path,
		Target:     r.target.DisplayName(),
		StatusCode: resp.StatusCode,
		StatusLine: resp.StatusLine,
		Message:    resp.ErrorMessage(),
	}
}

// phaseError attaches the replication phase to transport and encoding errors
type phaseError struct {
	phase Phase
	err   error
}

func (e *phaseError) Error() string { return e.err.Error() }

func (e *phaseError) Unwrap() error { return e.err }

func phaseOf(err error, fallback Phase) Phase {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Phase
	}
	var depErr *DependencyError
	if errors.As(err, &depErr) {
		return depErr.Phase
	}
	var pe *phaseError
	if errors.As(err, &pe) {
		return pe.phase
	}
	return fallback
}
