// Package dedupe removes near-identical records using tolerance-based
// fingerprint matching, and reports advisory near-duplicates.
package dedupe

import (
	"sort"
	"time"

	"github.com/sells-group/cdr-insight/internal/model"
)

// Config holds the matching tolerances.
type Config struct {
	TimestampTolerance time.Duration // default 1s
	DurationTolerance  time.Duration // default 1s
	AdvisoryWindow     time.Duration // default 5s, reporting only
}

// DefaultConfig returns the stock tolerances.
func DefaultConfig() Config {
	return Config{
		TimestampTolerance: time.Second,
		DurationTolerance:  time.Second,
		AdvisoryWindow:     5 * time.Second,
	}
}

// Mark flags duplicates in place and returns the number flagged. Candidates
// must share (caller, receiver, eventType) exactly — order-sensitive, so
// A→B and B→A never collapse. Within a candidate group records are
// time-sorted and compared against the last kept record; a record within both
// tolerances is flagged and the reference does not advance. Records with
// unparseable timestamps are always kept: their position in the group cannot
// be established safely.
func Mark(events []*model.CanonicalEvent, cfg Config) int {
	groups := map[string][]*model.CanonicalEvent{}
	for _, ev := range events {
		key := ev.CallerNumber + "\x00" + ev.ReceiverNumber + "\x00" + string(ev.EventType)
		groups[key] = append(groups[key], ev)
	}

	flagged := 0
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].TimestampUTC.Before(group[j].TimestampUTC)
		})

		var ref *model.CanonicalEvent
		for _, ev := range group {
			if ev.TimestampUTC.IsZero() {
				continue
			}
			if ref == nil {
				ref = ev
				continue
			}
			tsDiff := ev.TimestampUTC.Sub(ref.TimestampUTC)
			durDiff := time.Duration(ev.CallDurationSeconds-ref.CallDurationSeconds) * time.Second
			if durDiff < 0 {
				durDiff = -durDiff
			}
			if tsDiff <= cfg.TimestampTolerance && durDiff <= cfg.DurationTolerance {
				ev.IsDuplicate = true
				flagged++
				continue // a flagged record never becomes the reference
			}
			ref = ev
		}
	}
	return flagged
}

// Survivors returns the events not flagged as duplicates, preserving order.
func Survivors(events []*model.CanonicalEvent) []*model.CanonicalEvent {
	out := make([]*model.CanonicalEvent, 0, len(events))
	for _, ev := range events {
		if !ev.IsDuplicate {
			out = append(out, ev)
		}
	}
	return out
}

// NearDuplicate is an advisory finding: two adjacent same-type events on the
// same contact pair within the tolerance window. Nothing is removed.
type NearDuplicate struct {
	FirstRecordID  string        `json:"first_record_id"`
	SecondRecordID string        `json:"second_record_id"`
	Gap            time.Duration `json:"gap"`
}

// NearDuplicates groups by contact pair key, time-sorts, and flags adjacent
// pairs of the same event type within the window.
func NearDuplicates(events []*model.CanonicalEvent, window time.Duration) []NearDuplicate {
	groups := map[string][]*model.CanonicalEvent{}
	var keys []string
	for _, ev := range events {
		if ev.ContactPairKey == "" || ev.TimestampUTC.IsZero() {
			continue
		}
		if _, seen := groups[ev.ContactPairKey]; !seen {
			keys = append(keys, ev.ContactPairKey)
		}
		groups[ev.ContactPairKey] = append(groups[ev.ContactPairKey], ev)
	}
	sort.Strings(keys)

	var found []NearDuplicate
	for _, key := range keys {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].TimestampUTC.Before(group[j].TimestampUTC)
		})
		for i := 1; i < len(group); i++ {
			prev, cur := group[i-1], group[i]
			if prev.EventType != cur.EventType {
				continue
			}
			if gap := cur.TimestampUTC.Sub(prev.TimestampUTC); gap <= window {
				found = append(found, NearDuplicate{
					FirstRecordID:  prev.RecordID,
					SecondRecordID: cur.RecordID,
					Gap:            gap,
				})
			}
		}
	}
	return found
}
