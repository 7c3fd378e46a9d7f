package dataset

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ParseWorkbook decodes the first sheet of an XLSX workbook into a Table.
// Excelize trims trailing empty cells per row, so short rows are padded back
// to the header width; rows wider than the header fail parsing.
func ParseWorkbook(raw []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrEmpty)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrEmpty, sheet)
	}

	width := len(rows[0])
	normalized := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) > width {
			return nil, fmt.Errorf("%w: row %d has %d cells, header has %d", ErrParse, i+1, len(row), width)
		}
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		}
		normalized[i] = row
	}

	return build(normalized)
}
