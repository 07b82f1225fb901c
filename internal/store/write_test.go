package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.WriteRun(ctx, "context-order", true, nil, sampleEvents())
	require.NoError(t, err)
	assert.Equal(t, "run-0001", id)

	run, err := s.ReadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Run{ID: id, Scenario: "context-order", Pass: true, Errors: []string{}, Events: 4}, run)

	events, err := s.ReadEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, Event{Seq: 2, Kind: "property", Object: "root", Member: "DataContext", Value: "@person"}, events[1])
	assert.Equal(t, float64(3), events[2].Value, "numbers come back as float64")
	assert.Nil(t, events[3].Value)
}

func TestWriteRun_StoresErrors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.WriteRun(ctx, "broken", false, []string{"step 2: expected a, got b"}, nil)
	require.NoError(t, err)

	run, err := s.ReadRun(ctx, id)
	require.NoError(t, err)
	assert.False(t, run.Pass)
	assert.Equal(t, []string{"step 2: expected a, got b"}, run.Errors)
	assert.Zero(t, run.Events)
}

func TestWriteRun_DuplicateSeqRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, "dup", true, nil, []Event{{Seq: 1, Kind: "step"}, {Seq: 1, Kind: "step"}})
	require.Error(t, err)

	runs, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, runs, "the run row is rolled back with its events")
}

func TestWriteRun_UnencodableValue(t *testing.T) {
	s := createTestStore(t)

	_, err := s.WriteRun(context.Background(), "bad", true, nil, []Event{{Seq: 1, Value: make(chan int)}})
	assert.Error(t, err)
}

func TestDeleteRun_CascadesToEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.WriteRun(ctx, "gone", true, nil, sampleEvents())
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(ctx, id))
	require.NoError(t, s.DeleteRun(ctx, "missing"))

	_, err = s.ReadRun(ctx, id)
	assert.ErrorIs(t, err, ErrRunNotFound)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n))
	assert.Zero(t, n)
}
