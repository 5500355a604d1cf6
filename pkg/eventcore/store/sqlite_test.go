package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamsprouts/eventcore/pkg/eventcore/event"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	evt, err := event.New(event.TypeOrderCreated,
		event.Source{Platform: "shopline", PlatformID: "shop_1", Connector: "shopline-source"},
		map[string]any{"orderNumber": "SL-1001", "total": 99.5},
		event.WithCorrelation(event.Correlation{TraceID: "trace-1"}),
		event.WithMetadata(event.Metadata{RetryCount: 1, Priority: event.PriorityHigh, Extra: map[string]any{"k": "v"}}),
	)
	require.NoError(t, err)
	require.NoError(t, st.Append(ctx, evt))

	events, err := st.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, evt.ID, got.ID)
	assert.Equal(t, evt.Type, got.Type)
	assert.Equal(t, evt.Version, got.Version)
	assert.Equal(t, evt.Source, got.Source)
	assert.Equal(t, "SL-1001", got.Payload["orderNumber"])
	assert.Equal(t, 99.5, got.Payload["total"])
	require.NotNil(t, got.Correlation)
	assert.Equal(t, "trace-1", got.Correlation.TraceID)
	require.NotNil(t, got.Metadata)
	assert.Equal(t, 1, got.Metadata.RetryCount)
	assert.Equal(t, event.PriorityHigh, got.Metadata.Priority)
	assert.False(t, got.Timestamp.IsZero())
}

func TestSQLiteStoreAppendIsIdempotent(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	evt := storedEvent(t, event.TypeOrderCreated, "shopline")
	require.NoError(t, st.Append(ctx, evt))
	require.NoError(t, st.Append(ctx, evt))

	events, err := st.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSQLiteStoreRejectsInvalidEvent(t *testing.T) {
	st := newSQLiteStore(t)

	evt := storedEvent(t, event.TypeOrderCreated, "shopline")
	evt.ID = ""

	var verr *event.ValidationError
	require.ErrorAs(t, st.Append(context.Background(), evt), &verr)
}

func TestSQLiteStoreQueryFilters(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, storedEvent(t, event.TypeOrderCreated, "shopline")))
	require.NoError(t, st.Append(ctx, storedEvent(t, event.TypeOrderUpdated, "shopline")))
	require.NoError(t, st.Append(ctx, storedEvent(t, event.TypeProductCreated, "nextengine")))

	t.Run("by type", func(t *testing.T) {
		events, err := st.Query(ctx, Filter{Types: []string{event.TypeOrderCreated, event.TypeOrderUpdated}})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("by platform and connector", func(t *testing.T) {
		events, err := st.Query(ctx, Filter{Platform: "nextengine", Connector: "nextengine-source"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, event.TypeProductCreated, events[0].Type)
	})

	t.Run("with limit", func(t *testing.T) {
		events, err := st.Query(ctx, Filter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("ordering is oldest first", func(t *testing.T) {
		events, err := st.Query(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, event.TypeOrderCreated, events[0].Type)
		assert.Equal(t, event.TypeProductCreated, events[2].Type)
	})
}

func TestSQLiteStoreRecent(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	for _, typ := range []string{event.TypeOrderCreated, event.TypeOrderUpdated, event.TypeProductCreated} {
		require.NoError(t, st.Append(ctx, storedEvent(t, typ, "shopline")))
	}

	events, err := st.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeProductCreated, events[0].Type, "newest first")
	assert.Equal(t, event.TypeOrderUpdated, events[1].Type)
}

func TestSQLiteStorePrune(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, storedEvent(t, event.TypeOrderCreated, "shopline")))
	require.NoError(t, st.Append(ctx, storedEvent(t, event.TypeOrderUpdated, "shopline")))

	t.Run("inside retention keeps everything", func(t *testing.T) {
		removed, err := st.Prune(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(0), removed)
	})

	t.Run("zero retention removes everything", func(t *testing.T) {
		// Stored timestamps are strictly in the past by now.
		time.Sleep(10 * time.Millisecond)
		removed, err := st.Prune(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		events, err := st.Query(ctx, Filter{})
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestSQLiteStoreClosed(t *testing.T) {
	st := newSQLiteStore(t)
	require.NoError(t, st.Close())
	require.NoError(t, st.Close(), "double close is a no-op")

	assert.ErrorIs(t, st.Append(context.Background(), storedEvent(t, event.TypeOrderCreated, "shopline")), ErrStoreClosed)

	_, err := st.Query(context.Background(), Filter{})
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = st.Recent(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = st.Prune(context.Background(), time.Hour)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	ctx := context.Background()

	st, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, st.Append(ctx, storedEvent(t, event.TypeOrderCreated, "shopline")))
	require.NoError(t, st.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 1, "events survive process restarts")
}
