package normalize

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cdr-insight/internal/model"
)

// Row rejection reasons. The exact strings surface in ingestion error samples.
var (
	ErrMissingStartTime = eris.New("Missing or invalid startTime")
	ErrMissingParties   = eris.New("Missing both aParty and bParty")
)

// Normalizer parses rows against an injected synonym configuration.
type Normalizer struct {
	tables Tables
}

// New creates a Normalizer. Pass DefaultTables() outside of tests.
func New(tables Tables) *Normalizer {
	if tables.Synonyms == nil {
		tables = DefaultTables()
	}
	if tables.synonymKeys == nil {
		tables = NewTables(tables.Synonyms)
	}
	return &Normalizer{tables: tables}
}

// RowMapper binds one header row to canonical field columns.
type RowMapper struct {
	cols map[string]int // canonical field -> retained column index
}

// MapHeader resolves canonical fields against a header row: exact
// case-insensitive match first, substring match second. The first column
// claiming a canonical field wins; later candidates never overwrite it.
func (n *Normalizer) MapHeader(header []string) *RowMapper {
	cols := make(map[string]int, len(header))
	normed := make([]string, len(header))

	for i, h := range header {
		normed[i] = norm(h)
		if field, ok := n.tables.Synonyms[normed[i]]; ok {
			if _, claimed := cols[field]; !claimed {
				cols[field] = i
			}
		}
	}

	for i, h := range normed {
		if h == "" {
			continue
		}
		for _, syn := range n.tables.synonymKeys {
			field := n.tables.Synonyms[syn]
			if _, claimed := cols[field]; claimed {
				continue
			}
			if strings.Contains(h, syn) {
				cols[field] = i
			}
		}
	}

	return &RowMapper{cols: cols}
}

// HasTimestamp reports whether the header mapped any timestamp source at all.
// Tables whose header lacks one will reject every row; callers can surface a
// file-level error instead.
func (m *RowMapper) HasTimestamp() bool {
	_, st := m.cols[FieldStartTime]
	_, d := m.cols[FieldDate]
	return st || d
}

func (m *RowMapper) value(cells []string, field string) string {
	idx, ok := m.cols[field]
	if !ok || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

// Record parses one re-indexed row into an intermediate record. A row with no
// resolvable start time or with neither party populated is rejected.
func (m *RowMapper) Record(cells []string, src model.Source, coerced bool) (*model.IntermediateRecord, error) {
	rec := &model.IntermediateRecord{
		EventType: model.EventCall,
		Direction: model.DirectionUnknown,
		Source:    src,
	}

	if coerced {
		rec.Warnings = append(rec.Warnings, model.WarnScientificNotation)
	}

	// Parties first: a row with neither is rejected before date parsing so
	// the error sample names the more fundamental problem.
	aParty, aWarns := CleanPhone(m.value(cells, FieldAParty))
	bParty, bWarns := CleanPhone(m.value(cells, FieldBParty))
	rec.AParty, rec.BParty = aParty, bParty
	rec.Warnings = append(rec.Warnings, aWarns...)
	rec.Warnings = append(rec.Warnings, bWarns...)
	if aParty == "" && bParty == "" {
		return nil, ErrMissingParties
	}

	// Start time: a combined datetime column wins; otherwise separate date
	// and time columns are joined before parsing.
	raw := m.value(cells, FieldStartTime)
	if raw == "" {
		raw = strings.TrimSpace(m.value(cells, FieldDate) + " " + m.value(cells, FieldTime))
	}
	start, hasTZ, ok := ParseTimestamp(raw)
	if !ok {
		return nil, ErrMissingStartTime
	}
	rec.StartTime = start
	rec.StartHasTZ = hasTZ

	if end, _, ok := ParseTimestamp(m.value(cells, FieldEndTime)); ok {
		rec.EndTime = &end
	}

	secs, fromParts := ParseDuration(
		m.value(cells, FieldDuration),
		m.value(cells, FieldMinutes),
		m.value(cells, FieldSeconds),
	)
	rec.DurationSec = secs
	if fromParts {
		rec.Warnings = append(rec.Warnings, model.WarnDurationFromParts)
	}

	typeCell := m.value(cells, FieldEventType)
	rec.EventType = ParseEventType(typeCell)
	rec.Direction = ParseDirection(m.value(cells, FieldDirection), typeCell)

	rec.Lat = parseCoord(m.value(cells, FieldLat))
	rec.Lng = parseCoord(m.value(cells, FieldLng))
	rec.CellID = m.value(cells, FieldCellID)
	rec.LACID = m.value(cells, FieldLACID)
	rec.IMEI = digitsOnly(m.value(cells, FieldIMEI))
	rec.IMSI = digitsOnly(m.value(cells, FieldIMSI))
	rec.Provider = m.value(cells, FieldProvider)

	rec.Site = m.value(cells, FieldSite)
	if rec.Site != "" {
		parts := ParseSite(rec.Site)
		rec.SiteName = parts.Name
		rec.SiteMeta = parts.Meta
		if rec.Lat == nil && rec.Lng == nil && parts.Lat != nil && parts.Lng != nil {
			rec.Lat, rec.Lng = parts.Lat, parts.Lng
			rec.Warnings = append(rec.Warnings, model.WarnSiteCoordsUsed)
		}
	}

	return rec, nil
}

func digitsOnly(s string) string {
	return nonDigitRE.ReplaceAllString(s, "")
}
