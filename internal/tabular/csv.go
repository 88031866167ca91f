package tabular

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// parseCSV reads the whole buffer as delimiter-separated values. The header
// is still located by scoring rather than assumed at row zero: exported CDR
// CSVs often carry preamble lines (subscriber banner, date range) above it.
func parseCSV(buf []byte, fileName string, opts Options) ([]Table, error) {
	reader := csv.NewReader(bytes.NewReader(buf))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if strings.HasSuffix(strings.ToLower(fileName), ".tsv") {
		reader.Comma = '\t'
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "tabular: %s: read csv", fileName)
		}
		rows = append(rows, record)
	}

	table, err := buildTable(rows, "", fileName, opts)
	if err != nil {
		return nil, err
	}
	return []Table{*table}, nil
}

// buildTable locates the header, drops unnamed columns, re-indexes every data
// row against the retained column set, and coerces phone columns.
func buildTable(rows [][]string, sheet, fileName string, opts Options) (*Table, error) {
	if len(rows) == 0 {
		return nil, eris.Errorf("tabular: %s: empty sheet", fileName)
	}

	headerIdx := detectHeader(rows, opts.HeaderScanRows, opts.HeaderKeywords)
	if headerIdx < 0 {
		return nil, eris.Errorf("tabular: %s: no valid header row found", fileName)
	}

	header, keep := retainColumns(rows[headerIdx])
	if len(header) == 0 {
		return nil, eris.Errorf("tabular: %s: header row has no named columns", fileName)
	}

	data := make([][]string, 0, len(rows)-headerIdx-1)
	for _, row := range rows[headerIdx+1:] {
		data = append(data, reindex(row, keep))
	}

	corrected := coercePhoneCells(data, phoneColumns(header, opts.PhoneHeaderHints))

	return &Table{
		Sheet:        sheet,
		Header:       header,
		Rows:         data,
		FirstDataRow: headerIdx + 2, // 1-based, first row after the header
		CoercedRows:  corrected,
	}, nil
}
