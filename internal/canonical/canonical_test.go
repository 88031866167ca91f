package canonical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cdr-insight/internal/model"
)

func newTestCanonicalizer(t *testing.T) *Canonicalizer {
	t.Helper()
	c, err := New("Asia/Kolkata")
	require.NoError(t, err)
	return c
}

func TestEvent_NaiveTimestampInReferenceZone(t *testing.T) {
	c := newTestCanonicalizer(t)
	rec := &model.IntermediateRecord{
		AParty:    "919812345678",
		BParty:    "919898989898",
		Direction: model.DirectionOutgoing,
		EventType: model.EventCall,
		StartTime: time.Date(2024, time.March, 25, 23, 30, 0, 0, time.UTC),
	}

	ev, err := c.Event(rec, "up-1")
	require.NoError(t, err)

	// 23:30 wall clock in Kolkata is 18:00 UTC.
	assert.Equal(t, time.Date(2024, time.March, 25, 18, 0, 0, 0, time.UTC), ev.TimestampUTC)
	assert.Equal(t, "2024-03-25", ev.Date)
	assert.Equal(t, 23, ev.Hour)
	assert.Equal(t, "Monday", ev.DayOfWeek)
	assert.False(t, ev.IsWeekend)
	assert.True(t, ev.IsNight)
}

func TestEvent_ExplicitOffsetConverted(t *testing.T) {
	c := newTestCanonicalizer(t)
	rec := &model.IntermediateRecord{
		AParty:     "919812345678",
		BParty:     "919898989898",
		Direction:  model.DirectionOutgoing,
		EventType:  model.EventCall,
		StartTime:  time.Date(2024, time.March, 25, 12, 0, 0, 0, time.UTC),
		StartHasTZ: true,
	}

	ev, err := c.Event(rec, "up-1")
	require.NoError(t, err)
	// 12:00 UTC is 17:30 local; derived fields follow local time.
	assert.Equal(t, time.Date(2024, time.March, 25, 12, 0, 0, 0, time.UTC), ev.TimestampUTC)
	assert.Equal(t, 17, ev.Hour)
	assert.False(t, ev.IsNight)
}

func TestEvent_ZeroStartTimeRejected(t *testing.T) {
	c := newTestCanonicalizer(t)
	_, err := c.Event(&model.IntermediateRecord{AParty: "919812345678"}, "up-1")
	assert.Error(t, err)
}

func TestEvent_WeekendDetection(t *testing.T) {
	c := newTestCanonicalizer(t)
	rec := &model.IntermediateRecord{
		AParty:    "919812345678",
		BParty:    "919898989898",
		Direction: model.DirectionOutgoing,
		StartTime: time.Date(2024, time.March, 23, 10, 0, 0, 0, time.UTC), // Saturday
	}
	ev, err := c.Event(rec, "up-1")
	require.NoError(t, err)
	assert.True(t, ev.IsWeekend)
}

func TestResolveParties_IncomingFlips(t *testing.T) {
	caller, receiver, dir, assumed := ResolveParties("111", "222", model.DirectionIncoming)
	assert.Equal(t, "222", caller)
	assert.Equal(t, "111", receiver)
	assert.Equal(t, model.DirectionIncoming, dir)
	assert.False(t, assumed)
}

func TestResolveParties_OutgoingKeepsOrder(t *testing.T) {
	caller, receiver, _, assumed := ResolveParties("111", "222", model.DirectionOutgoing)
	assert.Equal(t, "111", caller)
	assert.Equal(t, "222", receiver)
	assert.False(t, assumed)
}

func TestResolveParties_UnknownAssumesACaller(t *testing.T) {
	caller, receiver, dir, assumed := ResolveParties("111", "222", model.DirectionUnknown)
	assert.Equal(t, "111", caller)
	assert.Equal(t, "222", receiver)
	assert.Equal(t, model.DirectionUnknown, dir)
	assert.True(t, assumed)
}

func TestResolveParties_SelfForcedInternal(t *testing.T) {
	_, _, dir, _ := ResolveParties("111", "111", model.DirectionOutgoing)
	assert.Equal(t, model.DirectionInternal, dir)
}

func TestResolveParties_EmptyBothNotAssumed(t *testing.T) {
	_, _, _, assumed := ResolveParties("", "", model.DirectionUnknown)
	assert.False(t, assumed)
}

func TestPairKey_Symmetric(t *testing.T) {
	k1 := PairKey("111", "222")
	k2 := PairKey("222", "111")
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 40) // sha1 hex

	assert.NotEqual(t, k1, PairKey("111", "333"))
}

func TestPairKey_MissingParty(t *testing.T) {
	assert.Empty(t, PairKey("111", ""))
	assert.Empty(t, PairKey("", "222"))
}

func TestEvent_WarningsNotAliased(t *testing.T) {
	c := newTestCanonicalizer(t)
	rec := &model.IntermediateRecord{
		AParty:    "919812345678",
		BParty:    "919898989898",
		Direction: model.DirectionOutgoing,
		StartTime: time.Date(2024, time.March, 25, 10, 0, 0, 0, time.UTC),
		Warnings:  []string{model.WarnShortPhoneCode},
	}
	ev, err := c.Event(rec, "up-1")
	require.NoError(t, err)

	ev.NormalizationWarnings[0] = "changed"
	assert.Equal(t, model.WarnShortPhoneCode, rec.Warnings[0])
}
