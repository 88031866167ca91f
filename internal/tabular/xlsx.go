package tabular

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// parseXLSX reads every non-empty sheet into its own table. Blank rows are
// kept as placeholders so data-row numbering stays aligned with the sheet.
// Sheets with no detectable header are skipped with a warning; the file only
// fails when no sheet at all yields a table.
func parseXLSX(buf []byte, fileName string, opts Options) ([]Table, error) {
	f, err := xlsx.OpenBinary(buf)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: %s: open spreadsheet", fileName)
	}

	var tables []Table
	for _, sheet := range f.Sheets {
		rows := sheetToStrings(sheet)
		if len(rows) == 0 {
			continue
		}

		table, err := buildTable(rows, sheet.Name, fileName, opts)
		if err != nil {
			zap.L().Warn("tabular: skipping sheet",
				zap.String("file", fileName),
				zap.String("sheet", sheet.Name),
				zap.Error(err),
			)
			continue
		}
		tables = append(tables, *table)
	}

	if len(tables) == 0 {
		return nil, eris.Errorf("tabular: %s: no sheet with usable headers", fileName)
	}
	return tables, nil
}

func sheetToStrings(sheet *xlsx.Sheet) [][]string {
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows
}
