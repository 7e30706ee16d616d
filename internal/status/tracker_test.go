package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RecordAttempt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := NewTracker(NewFileStatusPersistence(t.TempDir()))

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.RecordAttempt(ctx, "edge", Attempt{
		Configuration: "live-to-edge",
		Node:          "page-1",
		Workspace:     "live",
		Phase:         "workspace",
		Message:       "could not create workspace",
		At:            first,
	}))
	require.NoError(t, tracker.RecordAttempt(ctx, "edge", Attempt{
		Node: "page-1", Workspace: "live", Phase: "node", Message: "boom", At: first.Add(time.Minute),
	}))

	all, err := tracker.Status(ctx)
	require.NoError(t, err)
	edge := all["edge"]
	require.NotNil(t, edge)
	assert.Equal(t, PhaseFailed, edge.Phase)
	assert.Equal(t, "boom", edge.Message)
	assert.Equal(t, "node", edge.FailedPhase)
	assert.Equal(t, 2, edge.FailureCount)
	assert.Nil(t, edge.LastSuccess)

	second := first.Add(2 * time.Minute)
	require.NoError(t, tracker.RecordAttempt(ctx, "edge", Attempt{
		Configuration: "live-to-edge", Node: "page-2", Workspace: "live", Succeeded: true, At: second,
	}))

	all, err = tracker.Status(ctx)
	require.NoError(t, err)
	edge = all["edge"]
	assert.Equal(t, PhaseComplete, edge.Phase)
	assert.Empty(t, edge.Message)
	assert.Empty(t, edge.FailedPhase)
	assert.Zero(t, edge.FailureCount)
	assert.Equal(t, 3, edge.Attempts)
	assert.Equal(t, "page-2", edge.LastNode)
	require.NotNil(t, edge.LastSuccess)
	assert.True(t, second.Equal(*edge.LastSuccess))
}
