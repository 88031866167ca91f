// Package validate runs per-record sanity checks and assigns a normalization
// confidence score.
package validate

import (
	"time"

	"github.com/sells-group/cdr-insight/internal/model"
)

// Fixed confidence penalties. The score starts at 100 and is clamped to
// [0, 100] before bucketing.
const (
	penaltyMissingTimestamp = 50
	penaltyMissingBoth      = 50
	penaltyMissingOne       = 10
	penaltyUnknownDirection = 15
	penaltyUnknownEventType = 10
	penaltyNoLocation       = 5
	penaltyPerWarning       = 2
)

// Result reports the outcome of validating one event.
type Result struct {
	Valid  bool
	Reason string // first fatal reason, when invalid
}

// Apply checks the event, appends validation warnings to its warning list,
// and sets its confidence score and tier. Fatal findings mark the record
// invalid; everything else is a warning.
func Apply(ev *model.CanonicalEvent, now time.Time) Result {
	res := Result{Valid: true}
	fatal := func(reason string) {
		if res.Valid {
			res = Result{Valid: false, Reason: reason}
		}
	}

	missingTimestamp := ev.TimestampUTC.IsZero()
	switch {
	case missingTimestamp:
		fatal("missing timestamp")
	case ev.TimestampUTC.Year() < 2000:
		fatal("timestamp before year 2000")
	case ev.TimestampUTC.After(now.Add(time.Hour)):
		ev.NormalizationWarnings = append(ev.NormalizationWarnings, model.WarnFutureTimestamp)
	case ev.TimestampUTC.Year() < 2015:
		ev.NormalizationWarnings = append(ev.NormalizationWarnings, model.WarnPre2015Timestamp)
	}

	switch {
	case ev.CallDurationSeconds < 0:
		fatal("negative duration")
	case ev.CallDurationSeconds > 24*3600:
		ev.NormalizationWarnings = append(ev.NormalizationWarnings, model.WarnLongDuration)
	case ev.EventType == model.EventSMS && ev.CallDurationSeconds > 3600:
		ev.NormalizationWarnings = append(ev.NormalizationWarnings, model.WarnLongSMSDuration)
	}

	missingBoth := ev.CallerNumber == "" && ev.ReceiverNumber == ""
	missingOne := !missingBoth && (ev.CallerNumber == "" || ev.ReceiverNumber == "")
	if missingBoth {
		fatal("missing both parties")
	}

	if ev.CallerNumber != "" && ev.CallerNumber == ev.ReceiverNumber {
		ev.NormalizationWarnings = append(ev.NormalizationWarnings, model.WarnSelfCall)
	}

	score := 100
	if missingTimestamp {
		score -= penaltyMissingTimestamp
	}
	if missingBoth {
		score -= penaltyMissingBoth
	}
	if missingOne {
		score -= penaltyMissingOne
	}
	if ev.Direction == model.DirectionUnknown {
		score -= penaltyUnknownDirection
	}
	if ev.EventType == model.EventUnknown {
		score -= penaltyUnknownEventType
	}
	if ev.Lat == nil && ev.Lng == nil && ev.CellID == "" {
		score -= penaltyNoLocation
	}
	score -= penaltyPerWarning * len(ev.NormalizationWarnings)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	ev.NormalizationConfidence = score
	ev.ConfidenceTier = tier(score)

	return res
}

func tier(score int) model.ConfidenceTier {
	switch {
	case score >= 80:
		return model.TierHigh
	case score >= 50:
		return model.TierMedium
	default:
		return model.TierLow
	}
}
