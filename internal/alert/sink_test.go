package alert

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/opportunity"
)

func evt(id string, priority int) opportunity.AlertEvent {
	return opportunity.AlertEvent{ID: id, Kind: opportunity.AlertOpenOrUpdate, Priority: priority}
}

func TestDequeueOrdersByPriorityThenFIFO(t *testing.T) {
	s := NewQueueSink(10, zerolog.Nop(), nil)
	require.NoError(t, s.Enqueue(evt("low", 1), 3))
	require.NoError(t, s.Enqueue(evt("high", 5), 3))
	require.NoError(t, s.Enqueue(evt("mid-a", 3), 3))
	require.NoError(t, s.Enqueue(evt("mid-b", 3), 3))

	order := []string{}
	for s.Len() > 0 {
		e, _, ok := s.Dequeue()
		require.True(t, ok)
		order = append(order, e.ID)
	}
	assert.Equal(t, []string{"high", "mid-a", "mid-b", "low"}, order)
}

func TestEnqueueAtCapacityEvictsLowestPriority(t *testing.T) {
	s := NewQueueSink(3, zerolog.Nop(), nil)
	require.NoError(t, s.Enqueue(evt("low", 1), 3))
	require.NoError(t, s.Enqueue(evt("high", 9), 3))
	require.NoError(t, s.Enqueue(evt("mid", 5), 3))

	require.NoError(t, s.Enqueue(evt("new-mid", 5), 3))

	require.Equal(t, 3, s.Len())
	remaining := map[string]bool{}
	for s.Len() > 0 {
		e, _, ok := s.Dequeue()
		require.True(t, ok)
		remaining[e.ID] = true
	}
	assert.True(t, remaining["high"])
	assert.True(t, remaining["mid"])
	assert.True(t, remaining["new-mid"])
	assert.False(t, remaining["low"], "lowest-priority event should have been evicted, not the highest")
}

func TestEnqueueAtCapacityEvictsNewestAmongEqualPriorityTies(t *testing.T) {
	s := NewQueueSink(2, zerolog.Nop(), nil)
	require.NoError(t, s.Enqueue(evt("first", 5), 3))
	require.NoError(t, s.Enqueue(evt("second", 5), 3))

	require.NoError(t, s.Enqueue(evt("third", 9), 3))

	remaining := map[string]bool{}
	for s.Len() > 0 {
		e, _, _ := s.Dequeue()
		remaining[e.ID] = true
	}
	assert.True(t, remaining["third"])
	assert.True(t, remaining["first"], "equal-priority FIFO ordering should evict the newer tie, not the older one")
	assert.False(t, remaining["second"])
}

func TestRequeueDropsOnExhaustedBudget(t *testing.T) {
	s := NewQueueSink(10, zerolog.Nop(), nil)
	s.Requeue(evt("gone", 1), 0)
	assert.Equal(t, 0, s.Len())
}

func TestRequeueReenqueuesWithDecrementedRetries(t *testing.T) {
	s := NewQueueSink(10, zerolog.Nop(), nil)
	s.Requeue(evt("again", 1), 2)
	require.Equal(t, 1, s.Len())
	_, retries, ok := s.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, retries)
}
