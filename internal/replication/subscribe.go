package replication

import (
	"context"
	"log/slog"

	"github.com/stacklok/content-replicator/internal/events"
)

// Subscribe registers the orchestrator for NodePublished events on bus.
// Every report is passed to the optional callbacks after the event was handled.
func (o *Orchestrator) Subscribe(bus *events.Bus, callbacks ...func(*Report)) func() {
	return bus.Subscribe("replication", func(ctx context.Context, event events.NodePublished) {
		report := o.OnNodePublished(ctx, event.Node, event.Workspace)
		slog.Debug("Handled node published event",
			"event", event.ID.String(),
			"matched", report.Matched(),
			"succeeded", report.Succeeded())
		for _, callback := range callbacks {
			callback(report)
		}
	})
}
