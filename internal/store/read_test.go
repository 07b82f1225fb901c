package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRuns_OrderAndFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "a"} {
		_, err := s.WriteRun(ctx, name, true, nil, nil)
		require.NoError(t, err)
	}

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"run-0001", "run-0002", "run-0003"}, []string{all[0].ID, all[1].ID, all[2].ID})

	onlyA, err := s.ListRuns(ctx, "a")
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, "run-0003", onlyA[1].ID)
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestLatestRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.WriteRun(ctx, "first", true, nil, nil)
	require.NoError(t, err)
	_, err = s.WriteRun(ctx, "second", false, nil, nil)
	require.NoError(t, err)

	run, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", run.Scenario)
}

func TestReadEvents_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.WriteRun(ctx, "order", true, nil, []Event{
		{Seq: 3, Kind: "property", Member: "c"},
		{Seq: 1, Kind: "property", Member: "a"},
		{Seq: 2, Kind: "property", Member: "b"},
	})
	require.NoError(t, err)

	events, err := s.ReadEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].Member)
	assert.Equal(t, "c", events[2].Member)
}

func TestReadEvents_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	events, err := s.ReadEvents(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReadEvents_StructuredValue(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.WriteRun(ctx, "map", true, nil, []Event{
		{Seq: 1, Kind: "source", Object: "person", Member: "Tags", Value: []string{"x", "y"}},
	})
	require.NoError(t, err)

	events, err := s.ReadEvents(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, events[0].Value)
}
