// Package enrich computes cross-record derived fields over one deduplicated
// batch: contact first/last seen, daily counts, rolling averages, burst
// sessions, and baseline/recent labeling.
package enrich

import (
	"fmt"
	"sort"
	"time"

	"github.com/sells-group/cdr-insight/internal/model"
)

// Config holds the enrichment windows.
type Config struct {
	BurstGap         time.Duration // new session when the same-pair gap exceeds this
	BaselineFraction float64       // leading share of the time span labeled baseline
}

// DefaultConfig returns the stock windows.
func DefaultConfig() Config {
	return Config{BurstGap: 5 * time.Minute, BaselineFraction: 0.7}
}

// Apply runs every enrichment pass in place. Each pass consumes the grouping
// built by the first rather than re-scanning the raw batch.
func Apply(events []*model.CanonicalEvent, cfg Config) {
	if cfg.BurstGap == 0 {
		cfg = DefaultConfig()
	}

	byPair := groupByPair(events)

	contactTimestamps(byPair)
	dailyCounts(events)
	rollingAverages(byPair)
	burstSessions(byPair, cfg.BurstGap)
	baselineSplit(events, cfg.BaselineFraction)
}

// groupByPair returns per-pair event lists, each time-sorted. Events without
// a pair key are excluded; pair-keyed passes skip them by construction.
func groupByPair(events []*model.CanonicalEvent) map[string][]*model.CanonicalEvent {
	byPair := map[string][]*model.CanonicalEvent{}
	for _, ev := range events {
		if ev.ContactPairKey == "" {
			continue
		}
		byPair[ev.ContactPairKey] = append(byPair[ev.ContactPairKey], ev)
	}
	for _, group := range byPair {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].TimestampUTC.Before(group[j].TimestampUTC)
		})
	}
	return byPair
}

// contactTimestamps broadcasts the min/max timestamp of each pair back to
// every record of that pair.
func contactTimestamps(byPair map[string][]*model.CanonicalEvent) {
	for _, group := range byPair {
		first := group[0].TimestampUTC
		last := group[len(group)-1].TimestampUTC
		for _, ev := range group {
			f, l := first, last
			ev.ContactFirstSeen = &f
			ev.ContactLastSeen = &l
		}
	}
}

// dailyCounts sets the count of records sharing (pair key, local date).
func dailyCounts(events []*model.CanonicalEvent) {
	counts := map[string]int{}
	for _, ev := range events {
		if ev.ContactPairKey == "" {
			continue
		}
		counts[ev.ContactPairKey+"\x00"+ev.Date]++
	}
	for _, ev := range events {
		if ev.ContactPairKey == "" {
			continue
		}
		ev.DailyEventCount = counts[ev.ContactPairKey+"\x00"+ev.Date]
	}
}

// rollingAverages counts same-pair records in the trailing 7- and 30-day
// windows ending at each record's own timestamp (inclusive, earlier-or-equal
// records only) and converts the counts to events-per-day averages.
func rollingAverages(byPair map[string][]*model.CanonicalEvent) {
	for _, group := range byPair {
		start7, start30 := 0, 0
		for i, ev := range group {
			cut7 := ev.TimestampUTC.Add(-7 * 24 * time.Hour)
			cut30 := ev.TimestampUTC.Add(-30 * 24 * time.Hour)
			for group[start7].TimestampUTC.Before(cut7) {
				start7++
			}
			for group[start30].TimestampUTC.Before(cut30) {
				start30++
			}
			ev.Rolling7DayAvg = float64(i-start7+1) / 7
			ev.Rolling30DayAvg = float64(i-start30+1) / 30
		}
	}
}

// burstSessions groups each pair's time-sorted records into sessions split
// wherever the gap exceeds the window. Session IDs are deterministic:
// pair key plus an incrementing index.
func burstSessions(byPair map[string][]*model.CanonicalEvent, gap time.Duration) {
	for key, group := range byPair {
		session := 1
		for i, ev := range group {
			if i > 0 && ev.TimestampUTC.Sub(group[i-1].TimestampUTC) > gap {
				session++
			}
			ev.BurstSessionID = fmt.Sprintf("%s#%d", key, session)
		}
	}
}

// baselineSplit labels the earliest baselineFraction of the batch's time span
// baseline and the remainder recent. Records with unparseable timestamps
// default to baseline; if every timestamp is identical everything is
// baseline.
func baselineSplit(events []*model.CanonicalEvent, baselineFraction float64) {
	var min, max time.Time
	for _, ev := range events {
		if ev.TimestampUTC.IsZero() {
			continue
		}
		if min.IsZero() || ev.TimestampUTC.Before(min) {
			min = ev.TimestampUTC
		}
		if max.IsZero() || ev.TimestampUTC.After(max) {
			max = ev.TimestampUTC
		}
	}

	span := max.Sub(min)
	for _, ev := range events {
		ev.BaselineWindowLabel = model.WindowBaseline
		if span <= 0 || ev.TimestampUTC.IsZero() {
			continue
		}
		cutoff := min.Add(time.Duration(float64(span) * baselineFraction))
		if ev.TimestampUTC.After(cutoff) {
			ev.BaselineWindowLabel = model.WindowRecent
		}
	}
}
