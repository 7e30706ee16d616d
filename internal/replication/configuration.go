package replication

import (
	"fmt"
	"slices"

	"github.com/stacklok/content-replicator/internal/config"
)

// Trigger values a configuration reacts to
const (
	TriggerPublish = config.TriggerPublish
	TriggerManual  = config.TriggerManual
)

// Configuration selects published content and the targets it is replicated to
type Configuration struct {
	Identifier  string
	Name        string
	Description string
	Trigger     string

	// ContentTypes lists what is replicated (nodes, assets, users)
	ContentTypes []string
	// SiteFilter restricts replication to these site node names, empty means all sites
	SiteFilter []string
	// WorkspaceFilter lists the workspace names that trigger replication
	WorkspaceFilter []string
	Source          string

	// Targets lists target identifiers in replication order
	Targets []string
}

// DisplayName returns the name used in log lines, falling back to the identifier
func (c *Configuration) DisplayName() string {
	if c.Name == "" {
		return c.Identifier
	}
	return c.Name
}

// MatchesSite reports whether the configuration covers the given site
func (c *Configuration) MatchesSite(siteNodeName string) bool {
	return len(c.SiteFilter) == 0 || slices.Contains(c.SiteFilter, siteNodeName)
}

// MatchesWorkspace reports whether the workspace is listed exactly.
// An empty workspace filter matches nothing.
func (c *Configuration) MatchesWorkspace(workspaceName string) bool {
	return slices.Contains(c.WorkspaceFilter, workspaceName)
}

// Matches reports whether content published into workspaceName by trigger is replicated
func (c *Configuration) Matches(workspaceName, trigger string) bool {
	return c.Trigger == trigger && c.MatchesWorkspace(workspaceName)
}

// ConfigurationsFromConfig builds configurations ordered by identifier
func ConfigurationsFromConfig(cfg *config.Config) []*Configuration {
	identifiers := cfg.ReplicationIdentifiers()
	configurations := make([]*Configuration, 0, len(identifiers))
	for _, identifier := range identifiers {
		rc := cfg.Replications[identifier]
		configurations = append(configurations, &Configuration{
			Identifier:      identifier,
			Name:            rc.Name,
			Description:     rc.Description,
			Trigger:         rc.GetTrigger(),
			ContentTypes:    slices.Clone(rc.GetTypes()),
			SiteFilter:      slices.Clone(rc.Sites),
			WorkspaceFilter: slices.Clone(rc.Workspaces),
			Source:          rc.GetSource(),
			Targets:         slices.Clone(rc.Targets),
		})
	}
	return configurations
}

// TargetsFromConfig builds the targets keyed by identifier, reading API key files
func TargetsFromConfig(cfg *config.Config) (map[string]*Target, error) {
	targets := make(map[string]*Target, len(cfg.Targets))
	for _, identifier := range cfg.TargetIdentifiers() {
		tc := cfg.Targets[identifier]
		apiKey, err := tc.GetAPIKey()
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", identifier, err)
		}
		targets[identifier] = &Target{
			Identifier:  identifier,
			Name:        tc.Name,
			Description: tc.Description,
			BaseURL:     tc.BaseURL,
			APIKey:      apiKey,
		}
	}
	return targets, nil
}
