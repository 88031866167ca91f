// Package tabular turns raw CDR file buffers into rows plus a best-guess
// header row. It has no knowledge of CDR field semantics beyond the keyword
// hints used for header detection and phone-column coercion.
package tabular

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Options configures parsing. Zero values fall back to DefaultOptions.
type Options struct {
	HeaderScanRows   int      // rows scanned for the header in spreadsheet mode
	HeaderKeywords   []string // substrings scored during header detection
	PhoneHeaderHints []string // header substrings that mark phone-number columns
}

// DefaultOptions returns the stock parser configuration.
func DefaultOptions() Options {
	return Options{
		HeaderScanRows: 30,
		HeaderKeywords: []string{
			"imei", "imsi", "date", "time", "duration", "cell",
			"latitude", "longitude", "site", "type", "direction",
			"party", "number", "msisdn", "provider",
		},
		PhoneHeaderHints: []string{
			"party", "number", "msisdn", "phone", "calling", "called", "mobile",
		},
	}
}

// Table is one parsed sheet (or the whole file in CSV mode): a retained
// header and rows re-indexed against the retained column set.
type Table struct {
	Sheet  string // empty in CSV mode
	Header []string
	Rows   [][]string
	// FirstDataRow is the 1-based source row number of Rows[0], so row-level
	// errors can reference the original file position.
	FirstDataRow int
	// CoercedRows marks row indices where scientific-notation phone values
	// were rewritten, for warning attachment downstream.
	CoercedRows map[int]bool
}

// Parse routes on the file extension and returns one Table per non-empty
// sheet. CSV files yield at most one table.
func Parse(buf []byte, fileName string, opts Options) ([]Table, error) {
	if opts.HeaderScanRows == 0 {
		opts = DefaultOptions()
	}
	if len(buf) == 0 {
		return nil, eris.Errorf("tabular: %s: empty file", fileName)
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt", ".tsv":
		return parseCSV(buf, fileName, opts)
	case ".xlsx", ".xlsm", ".xls":
		return parseXLSX(buf, fileName, opts)
	default:
		return nil, eris.Errorf("tabular: %s: unsupported file type", fileName)
	}
}
