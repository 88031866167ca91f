package tabular

import (
	"regexp"
	"strconv"
)

// Large numeric phone values read from spreadsheet cells frequently arrive in
// scientific notation (9.19876543e+11). Expanding them here, before any field
// parsing, prevents the corruption from propagating into party numbers.
var scientificRE = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?[eE]\+?[0-9]+$`)

// CoercePhoneCell expands scientific notation into a plain decimal string.
// The second return reports whether a correction was applied; non-numeric
// cells pass through untouched.
func CoercePhoneCell(s string) (string, bool) {
	if !scientificRE.MatchString(s) {
		return s, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s, false
	}
	return strconv.FormatFloat(f, 'f', 0, 64), true
}

// coercePhoneCells rewrites phone-hinted cells in place and returns the set
// of row indices where a correction was applied, so the normalizer can attach
// a warning to the affected records.
func coercePhoneCells(rows [][]string, cols []int) map[int]bool {
	corrected := map[int]bool{}
	for i, row := range rows {
		for _, c := range cols {
			if c >= len(row) {
				continue
			}
			fixed, changed := CoercePhoneCell(row[c])
			if changed {
				row[c] = fixed
				corrected[i] = true
			}
		}
	}
	return corrected
}
