package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cdr-insight/internal/config"
	"github.com/sells-group/cdr-insight/internal/model"
)

func configWithDriver(driver string) config.StoreConfig {
	return config.StoreConfig{Driver: driver}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testEvent(id, uploadID, caller, receiver string, ts time.Time, durSecs int) *model.CanonicalEvent {
	pair := caller + "|" + receiver
	if receiver < caller {
		pair = receiver + "|" + caller
	}
	return &model.CanonicalEvent{
		RecordID:            id,
		UploadID:            uploadID,
		EventType:           model.EventCall,
		TimestampUTC:        ts,
		TimestampLocal:      ts,
		Date:                ts.Format("2006-01-02"),
		DayOfWeek:           ts.Weekday().String(),
		CallerNumber:        caller,
		ReceiverNumber:      receiver,
		Direction:           model.DirectionOutgoing,
		CallDurationSeconds: durSecs,
		ContactPairKey:      pair,
		LocationSource:      model.LocationUnknown,
		ConfidenceTier:      model.TierHigh,
		BaselineWindowLabel: model.WindowBaseline,
	}
}

var storeBase = time.Date(2024, time.March, 25, 10, 0, 0, 0, time.UTC)

func TestUploadLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUpload(ctx, "up-1", "march export", 2)
	require.NoError(t, err)
	assert.Equal(t, "up-1", created.ID)

	require.NoError(t, s.UpdateUploadCounts(ctx, "up-1", 10, 2, 1))

	got, err := s.GetUpload(ctx, "up-1")
	require.NoError(t, err)
	assert.Equal(t, "march export", got.Label)
	assert.Equal(t, 10, got.Inserted)
	assert.Equal(t, 2, got.Invalid)
	assert.Equal(t, 1, got.Duplicates)

	list, err := s.ListUploads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestUpdateUploadCounts_Missing(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.UpdateUploadCounts(context.Background(), "nope", 0, 0, 0))
}

func TestGetUpload_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetUpload(context.Background(), "nope")
	assert.Error(t, err)
}

func TestInsertEvents_RoundTripAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateUpload(ctx, "up-1", "", 1)
	require.NoError(t, err)

	events := []*model.CanonicalEvent{
		testEvent("r1", "up-1", "111", "222", storeBase, 60),
		testEvent("r2", "up-1", "222", "111", storeBase.Add(time.Hour), 30),
		testEvent("r3", "up-1", "111", "333", storeBase.Add(2*time.Hour), 90),
	}
	n, err := s.InsertEvents(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	edges, err := s.EdgeAggregates(ctx, EventFilter{UploadID: "up-1"})
	require.NoError(t, err)
	require.Len(t, edges, 2)

	// Undirected: r1 and r2 collapse onto the 111-222 pair.
	assert.Equal(t, "111", edges[0].Source)
	assert.Equal(t, "222", edges[0].Target)
	assert.Equal(t, 2.0, edges[0].Weight)
	assert.Equal(t, 90, edges[0].TotalDuration)
	assert.Equal(t, storeBase, edges[0].FirstSeen)
	assert.Equal(t, storeBase.Add(time.Hour), edges[0].LastSeen)

	nodes, err := s.NodeAggregates(ctx, EventFilter{UploadID: "up-1"})
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "111", nodes[0].ID)
	assert.Equal(t, 3, nodes[0].TotalEvents)
	assert.Equal(t, 180, nodes[0].TotalDuration)
}

func TestAggregates_ExcludeDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateUpload(ctx, "up-1", "", 1)
	require.NoError(t, err)

	dup := testEvent("r2", "up-1", "111", "222", storeBase, 60)
	dup.IsDuplicate = true
	_, err = s.InsertEvents(ctx, []*model.CanonicalEvent{
		testEvent("r1", "up-1", "111", "222", storeBase, 60),
		dup,
	})
	require.NoError(t, err)

	edges, err := s.EdgeAggregates(ctx, EventFilter{UploadID: "up-1"})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 1.0, edges[0].Weight)

	// The flagged record is persisted and countable.
	summary, err := s.EventSummary(ctx, EventFilter{UploadID: "up-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Duplicates)
}

func TestEdgeAggregates_ExcludeSelfAndMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateUpload(ctx, "up-1", "", 1)
	require.NoError(t, err)

	_, err = s.InsertEvents(ctx, []*model.CanonicalEvent{
		testEvent("r1", "up-1", "111", "111", storeBase, 60),
		testEvent("r2", "up-1", "111", "", storeBase, 60),
		testEvent("r3", "up-1", "111", "222", storeBase, 60),
	})
	require.NoError(t, err)

	edges, err := s.EdgeAggregates(ctx, EventFilter{UploadID: "up-1"})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "222", edges[0].Target)
}

func TestEdgeAggregates_MinWeight(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateUpload(ctx, "up-1", "", 1)
	require.NoError(t, err)

	_, err = s.InsertEvents(ctx, []*model.CanonicalEvent{
		testEvent("r1", "up-1", "111", "222", storeBase, 60),
		testEvent("r2", "up-1", "111", "222", storeBase.Add(time.Hour), 60),
		testEvent("r3", "up-1", "111", "333", storeBase, 60),
	})
	require.NoError(t, err)

	edges, err := s.EdgeAggregates(ctx, EventFilter{UploadID: "up-1", MinWeight: 2})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 2.0, edges[0].Weight)
}

func TestEventFilter_TimeRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateUpload(ctx, "up-1", "", 1)
	require.NoError(t, err)

	_, err = s.InsertEvents(ctx, []*model.CanonicalEvent{
		testEvent("r1", "up-1", "111", "222", storeBase, 60),
		testEvent("r2", "up-1", "111", "222", storeBase.Add(48*time.Hour), 60),
	})
	require.NoError(t, err)

	from := storeBase.Add(24 * time.Hour)
	summary, err := s.EventSummary(ctx, EventFilter{UploadID: "up-1", From: &from})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	require.NotNil(t, summary.FirstSeen)
	assert.Equal(t, storeBase.Add(48*time.Hour), *summary.FirstSeen)
}

func TestEventSummary_Grouping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateUpload(ctx, "up-1", "", 1)
	require.NoError(t, err)

	sms := testEvent("r2", "up-1", "111", "333", storeBase, 0)
	sms.EventType = model.EventSMS
	sms.Direction = model.DirectionIncoming
	_, err = s.InsertEvents(ctx, []*model.CanonicalEvent{
		testEvent("r1", "up-1", "111", "222", storeBase, 60),
		sms,
	})
	require.NoError(t, err)

	summary, err := s.EventSummary(ctx, EventFilter{UploadID: "up-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.ByEventType["call"])
	assert.Equal(t, 1, summary.ByEventType["sms"])
	assert.Equal(t, 1, summary.ByDirection["outgoing"])
	assert.Equal(t, 1, summary.ByDirection["incoming"])
	assert.Equal(t, 3, summary.DistinctParties)

	filtered, err := s.EventSummary(ctx, EventFilter{UploadID: "up-1", EventType: model.EventSMS})
	require.NoError(t, err)
	assert.Equal(t, 1, filtered.Total)
}

func TestInsertEvents_Empty(t *testing.T) {
	s := newTestStore(t)
	n, err := s.InsertEvents(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), configWithDriver("oracle"))
	assert.Error(t, err)
}
