package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/cdr-insight/internal/model"
)

var testNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func cleanEvent() *model.CanonicalEvent {
	lat, lng := 28.6, 77.2
	return &model.CanonicalEvent{
		TimestampUTC:        time.Date(2024, time.March, 25, 10, 0, 0, 0, time.UTC),
		CallerNumber:        "919812345678",
		ReceiverNumber:      "919898989898",
		Direction:           model.DirectionOutgoing,
		EventType:           model.EventCall,
		CallDurationSeconds: 60,
		Lat:                 &lat,
		Lng:                 &lng,
	}
}

func TestApply_CleanRecordFullScore(t *testing.T) {
	ev := cleanEvent()
	res := Apply(ev, testNow)
	assert.True(t, res.Valid)
	assert.Equal(t, 100, ev.NormalizationConfidence)
	assert.Equal(t, model.TierHigh, ev.ConfidenceTier)
}

func TestApply_MissingTimestampFatal(t *testing.T) {
	ev := cleanEvent()
	ev.TimestampUTC = time.Time{}
	res := Apply(ev, testNow)
	assert.False(t, res.Valid)
	assert.Equal(t, "missing timestamp", res.Reason)
}

func TestApply_Pre2000Fatal(t *testing.T) {
	ev := cleanEvent()
	ev.TimestampUTC = time.Date(1999, time.June, 1, 0, 0, 0, 0, time.UTC)
	res := Apply(ev, testNow)
	assert.False(t, res.Valid)
}

func TestApply_NegativeDurationFatal(t *testing.T) {
	ev := cleanEvent()
	ev.CallDurationSeconds = -10
	res := Apply(ev, testNow)
	assert.False(t, res.Valid)
	assert.Equal(t, "negative duration", res.Reason)
}

func TestApply_MissingBothPartiesFatal(t *testing.T) {
	ev := cleanEvent()
	ev.CallerNumber, ev.ReceiverNumber = "", ""
	res := Apply(ev, testNow)
	assert.False(t, res.Valid)
	assert.Equal(t, "missing both parties", res.Reason)
}

func TestApply_FutureTimestampWarning(t *testing.T) {
	ev := cleanEvent()
	ev.TimestampUTC = testNow.Add(2 * time.Hour)
	res := Apply(ev, testNow)
	assert.True(t, res.Valid)
	assert.Contains(t, ev.NormalizationWarnings, model.WarnFutureTimestamp)
}

func TestApply_LongCallWarning(t *testing.T) {
	ev := cleanEvent()
	ev.CallDurationSeconds = 25 * 3600
	res := Apply(ev, testNow)
	assert.True(t, res.Valid)
	assert.Contains(t, ev.NormalizationWarnings, model.WarnLongDuration)
}

func TestApply_LongSMSWarning(t *testing.T) {
	ev := cleanEvent()
	ev.EventType = model.EventSMS
	ev.CallDurationSeconds = 2 * 3600
	res := Apply(ev, testNow)
	assert.True(t, res.Valid)
	assert.Contains(t, ev.NormalizationWarnings, model.WarnLongSMSDuration)
}

func TestApply_SelfCallWarning(t *testing.T) {
	ev := cleanEvent()
	ev.ReceiverNumber = ev.CallerNumber
	res := Apply(ev, testNow)
	assert.True(t, res.Valid)
	assert.Contains(t, ev.NormalizationWarnings, model.WarnSelfCall)
}

func TestApply_PenaltyStacking(t *testing.T) {
	ev := cleanEvent()
	ev.ReceiverNumber = ""
	ev.Direction = model.DirectionUnknown
	ev.EventType = model.EventUnknown
	ev.Lat, ev.Lng = nil, nil
	ev.CellID = ""
	res := Apply(ev, testNow)
	assert.True(t, res.Valid)
	// 100 - 10 (one party) - 15 (direction) - 10 (type) - 5 (no location) = 60
	assert.Equal(t, 60, ev.NormalizationConfidence)
	assert.Equal(t, model.TierMedium, ev.ConfidenceTier)
}

func TestApply_WarningPenalty(t *testing.T) {
	ev := cleanEvent()
	ev.NormalizationWarnings = []string{model.WarnShortPhoneCode, model.WarnScientificNotation}
	Apply(ev, testNow)
	assert.Equal(t, 96, ev.NormalizationConfidence)
}

func TestTier_Boundaries(t *testing.T) {
	assert.Equal(t, model.TierHigh, tier(80))
	assert.Equal(t, model.TierMedium, tier(79))
	assert.Equal(t, model.TierMedium, tier(50))
	assert.Equal(t, model.TierLow, tier(49))
	assert.Equal(t, model.TierLow, tier(0))
}

func TestApply_ScoreClampedAtZero(t *testing.T) {
	ev := &model.CanonicalEvent{
		Direction: model.DirectionUnknown,
		EventType: model.EventUnknown,
	}
	res := Apply(ev, testNow)
	assert.False(t, res.Valid)
	assert.GreaterOrEqual(t, ev.NormalizationConfidence, 0)
	assert.Equal(t, model.TierLow, ev.ConfidenceTier)
}
