package normalize

import (
	"strconv"
	"strings"
)

// SiteParts is a decomposed "name|lat|lng|meta" site value.
type SiteParts struct {
	Name string
	Lat  *float64
	Lng  *float64
	Meta string
}

// ParseSite splits a pipe-delimited site value. Values without pipes are
// treated as a bare site name. Coordinates parsed here are used only to fill
// otherwise-missing lat/lng on the record.
func ParseSite(s string) SiteParts {
	s = strings.TrimSpace(s)
	if s == "" {
		return SiteParts{}
	}
	if !strings.Contains(s, "|") {
		return SiteParts{Name: s}
	}

	fields := strings.Split(s, "|")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	parts := SiteParts{Name: fields[0]}
	if len(fields) > 1 {
		parts.Lat = parseCoord(fields[1])
	}
	if len(fields) > 2 {
		parts.Lng = parseCoord(fields[2])
	}
	if len(fields) > 3 {
		parts.Meta = strings.Join(fields[3:], " | ")
	}
	return parts
}

func parseCoord(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f == 0 {
		return nil
	}
	return &f
}
