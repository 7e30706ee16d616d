// Package events provides the in-process event source the host content
// repository publishes to, and the replicator subscribes to.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/content-replicator/internal/content"
)

// NodePublished is emitted after a node was published into a workspace
type NodePublished struct {
	// ID is a unique identifier for this specific event instance
	ID uuid.UUID

	// Node is the published node
	Node content.Node

	// Workspace is the workspace the node was published into
	Workspace *content.Workspace

	// PublishedAt is when the publication completed
	PublishedAt time.Time
}

// NewNodePublished creates an event with a fresh identifier
func NewNodePublished(node content.Node, workspace *content.Workspace) NodePublished {
	return NodePublished{
		ID:          uuid.New(),
		Node:        node,
		Workspace:   workspace,
		PublishedAt: time.Now().UTC(),
	}
}

// Handler processes a published node
type Handler func(ctx context.Context, event NodePublished)

type subscription struct {
	id      uint64
	name    string
	handler Handler
}

// Bus dispatches NodePublished events to its subscribers.
// Handlers run synchronously on the publishing goroutine, in subscription order.
type Bus struct {
	mu            sync.RWMutex
	nextID        uint64
	subscriptions []subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler and returns a function removing it again
func (b *Bus) Subscribe(name string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subscriptions = append(b.subscriptions, subscription{id: id, name: name, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subscriptions {
			if s.id == id {
				b.subscriptions = append(b.subscriptions[:i:i], b.subscriptions[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every subscriber and returns how many handled it.
// A panicking handler is logged and does not stop delivery to the others.
func (b *Bus) Publish(ctx context.Context, event NodePublished) int {
	b.mu.RLock()
	subscriptions := make([]subscription, len(b.subscriptions))
	copy(subscriptions, b.subscriptions)
	b.mu.RUnlock()

	slog.Debug("Publishing node published event",
		"event", event.ID.String(),
		"node", event.Node.String(),
		"workspace", event.Workspace.Name,
		"subscribers", len(subscriptions))

	handled := 0
	for _, s := range subscriptions {
		if deliver(ctx, s, event) {
			handled++
		}
	}
	return handled
}

func deliver(ctx context.Context, s subscription, event NodePublished) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked",
				"subscriber", s.name,
				"event", event.ID.String(),
				"panic", r)
			ok = false
		}
	}()
	s.handler(ctx, event)
	return true
}
