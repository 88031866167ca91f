// Package canonical converts intermediate records into the canonical event
// schema: timezone resolution, caller/receiver resolution, contact-pair keys,
// and location-source tagging.
package canonical

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cdr-insight/internal/model"
)

// Canonicalizer holds the fixed reference civil timezone. Wall-clock inputs
// without an explicit offset are interpreted in this zone; all derived
// temporal fields come from the local timestamp, never from UTC.
type Canonicalizer struct {
	loc *time.Location
}

// New loads the reference timezone by IANA name.
func New(timezone string) (*Canonicalizer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "canonical: load timezone %q", timezone)
	}
	return &Canonicalizer{loc: loc}, nil
}

// Event converts one intermediate record. An unresolved start time is a hard
// error; the caller turns it into a row-level skip.
func (c *Canonicalizer) Event(rec *model.IntermediateRecord, uploadID string) (*model.CanonicalEvent, error) {
	if rec.StartTime.IsZero() {
		return nil, eris.New("canonical: unresolved start time")
	}

	var local time.Time
	if rec.StartHasTZ {
		local = rec.StartTime.In(c.loc)
	} else {
		// Reinterpret the naive wall-clock value in the reference zone.
		t := rec.StartTime
		local = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc)
	}

	ev := &model.CanonicalEvent{
		RecordID:       uuid.New().String(),
		UploadID:       uploadID,
		EventType:      rec.EventType,
		TimestampUTC:   local.UTC(),
		TimestampLocal: local,
		Date:           local.Format("2006-01-02"),
		Hour:           local.Hour(),
		DayOfWeek:      local.Weekday().String(),
		IsWeekend:      local.Weekday() == time.Saturday || local.Weekday() == time.Sunday,
		IsNight:        local.Hour() >= 22 || local.Hour() < 6,

		CallDurationSeconds: rec.DurationSec,

		Lat:      rec.Lat,
		Lng:      rec.Lng,
		CellID:   rec.CellID,
		LACID:    rec.LACID,
		SiteName: rec.SiteName,
		SiteMeta: rec.SiteMeta,
		IMEI:     rec.IMEI,
		IMSI:     rec.IMSI,
		Provider: rec.Provider,

		BaselineWindowLabel: model.WindowBaseline,

		SourceFile:  rec.Source.File,
		SourceSheet: rec.Source.Sheet,
		SourceRow:   rec.Source.Row,
	}

	// Copy, never alias: pipeline runs for concurrent uploads must not share
	// warning slices.
	ev.NormalizationWarnings = append([]string(nil), rec.Warnings...)

	caller, receiver, direction, assumed := ResolveParties(rec.AParty, rec.BParty, rec.Direction)
	ev.CallerNumber = caller
	ev.ReceiverNumber = receiver
	ev.Direction = direction
	if assumed {
		ev.NormalizationWarnings = append(ev.NormalizationWarnings, model.WarnAssumedACaller)
	}

	ev.ContactPairKey = PairKey(caller, receiver)
	ev.LocationSource = locationSource(rec)

	return ev, nil
}

// ResolveParties applies the network-perspective direction convention:
// outgoing means A initiated, incoming means the other party (B) initiated.
// Internal and unknown directions keep A as caller with no speculative
// flipping; assumed reports that an unknown-direction record with at least
// one party present relied on that assumption. Direction is forced to
// internal whenever both parties are present and equal, irrespective of the
// source column. This flip convention is a dataset policy, localized here so
// a different corpus can change it in one place.
func ResolveParties(aParty, bParty string, direction model.Direction) (caller, receiver string, resolved model.Direction, assumed bool) {
	caller, receiver = aParty, bParty
	resolved = direction

	switch direction {
	case model.DirectionIncoming:
		caller, receiver = bParty, aParty
	case model.DirectionOutgoing, model.DirectionInternal:
		// A is the caller as-is.
	default:
		resolved = model.DirectionUnknown
		if aParty != "" || bParty != "" {
			assumed = true
		}
	}

	if caller != "" && caller == receiver {
		resolved = model.DirectionInternal
	}
	return caller, receiver, resolved, assumed
}

func locationSource(rec *model.IntermediateRecord) model.LocationSource {
	if rec.Lat != nil && rec.Lng != nil {
		return model.LocationGPS
	}
	if rec.CellID != "" {
		return model.LocationCellID
	}
	return model.LocationUnknown
}
