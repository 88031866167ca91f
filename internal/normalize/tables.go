// Package normalize maps arbitrary CDR headers to canonical field names and
// parses per-row values into intermediate records.
package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// Canonical field names. These are internal mapping targets; the persisted
// schema contract lives on model.CanonicalEvent.
const (
	FieldAParty    = "a_party"
	FieldBParty    = "b_party"
	FieldStartTime = "start_time"
	FieldEndTime   = "end_time"
	FieldDate      = "date"
	FieldTime      = "time"
	FieldDuration  = "duration"
	FieldMinutes   = "minutes"
	FieldSeconds   = "seconds"
	FieldEventType = "event_type"
	FieldDirection = "direction"
	FieldLat       = "lat"
	FieldLng       = "lng"
	FieldCellID    = "cell_id"
	FieldLACID     = "lac_id"
	FieldSite      = "site"
	FieldIMEI      = "imei"
	FieldIMSI      = "imsi"
	FieldProvider  = "provider"
)

// Tables is the static lookup configuration for header mapping. It is
// immutable once constructed and injected into the Normalizer so alternate
// mappings can be supplied in tests.
type Tables struct {
	// Synonyms maps normalized (lowercased, space-collapsed) header text to
	// canonical field names.
	Synonyms map[string]string

	// synonymKeys holds Synonyms keys sorted longest-first then
	// lexicographic, for deterministic substring matching.
	synonymKeys []string
}

// NewTables builds a Tables from a synonym map.
func NewTables(synonyms map[string]string) Tables {
	keys := make([]string, 0, len(synonyms))
	for k := range synonyms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return Tables{Synonyms: synonyms, synonymKeys: keys}
}

// DefaultTables returns the stock header synonym configuration, covering the
// header vocabularies of the major carrier CDR export formats.
func DefaultTables() Tables {
	return NewTables(map[string]string{
		// A party
		"a party":                         FieldAParty,
		"a party no":                      FieldAParty,
		"calling party telephone number":  FieldAParty,
		"calling number":                  FieldAParty,
		"caller":                          FieldAParty,
		"msisdn":                          FieldAParty,
		"a number":                        FieldAParty,
		"source number":                   FieldAParty,
		"from number":                     FieldAParty,
		"mobile no":                       FieldAParty,
		"target no":                       FieldAParty,

		// B party
		"b party":                        FieldBParty,
		"b party no":                     FieldBParty,
		"called party telephone number":  FieldBParty,
		"called number":                  FieldBParty,
		"b number":                       FieldBParty,
		"other party":                    FieldBParty,
		"to number":                      FieldBParty,
		"dialed number":                  FieldBParty,

		// Timestamps
		"date & time":      FieldStartTime,
		"date and time":    FieldStartTime,
		"datetime":         FieldStartTime,
		"date time":        FieldStartTime,
		"call date & time": FieldStartTime,
		"start time":       FieldStartTime,
		"timestamp":        FieldStartTime,
		"call start time":  FieldStartTime,
		"end time":         FieldEndTime,
		"call end time":    FieldEndTime,
		"date":             FieldDate,
		"call date":        FieldDate,
		"event date":       FieldDate,
		"time":             FieldTime,
		"call time":        FieldTime,
		"event time":       FieldTime,

		// Duration
		"duration":             FieldDuration,
		"dur(s)":               FieldDuration,
		"dur (s)":              FieldDuration,
		"call duration":        FieldDuration,
		"duration(sec)":        FieldDuration,
		"duration in sec":      FieldDuration,
		"duration sec":         FieldDuration,
		"duration (seconds)":   FieldDuration,
		"minutes":              FieldMinutes,
		"mins":                 FieldMinutes,
		"duration min":         FieldMinutes,
		"seconds":              FieldSeconds,
		"secs":                 FieldSeconds,

		// Classification
		"call type":    FieldEventType,
		"service type": FieldEventType,
		"event type":   FieldEventType,
		"usage type":   FieldEventType,
		"type":         FieldEventType,
		"direction":    FieldDirection,
		"call direction": FieldDirection,
		"in/out":       FieldDirection,
		"call flow":    FieldDirection,

		// Location
		"latitude":              FieldLat,
		"lat":                   FieldLat,
		"longitude":             FieldLng,
		"long":                  FieldLng,
		"lng":                   FieldLng,
		"lon":                   FieldLng,
		"cell id":               FieldCellID,
		"cellid":                FieldCellID,
		"first cell id":         FieldCellID,
		"first cgi":             FieldCellID,
		"cgi":                   FieldCellID,
		"cell global id":        FieldCellID,
		"lac":                   FieldLACID,
		"lac id":                FieldLACID,
		"first lac":             FieldLACID,
		"site":                  FieldSite,
		"site address":          FieldSite,
		"cell address":          FieldSite,
		"first cell id address": FieldSite,
		"tower location":        FieldSite,
		"site details":          FieldSite,

		// Device / network
		"imei":             FieldIMEI,
		"imei no":          FieldIMEI,
		"imsi":             FieldIMSI,
		"imsi no":          FieldIMSI,
		"provider":         FieldProvider,
		"operator":         FieldProvider,
		"tsp":              FieldProvider,
		"service provider": FieldProvider,
	})
}

var spaceRE = regexp.MustCompile(`\s+`)

func norm(s string) string {
	return spaceRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}
