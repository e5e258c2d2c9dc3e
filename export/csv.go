package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"nfex/batch"
)

// BOM makes spreadsheet software on Windows recognize UTF-8.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes header row and all table rows. Absent values become empty
// fields, numbers use the shortest representation with dot separator.
func WriteCSV(w io.Writer, t *batch.Table) error {
	if _, err := w.Write(BOM); err != nil {
		return fmt.Errorf("unable to write csv: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("unable to write csv header: %w", err)
	}

	rec := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		for j, v := range row {
			rec[j] = v.String()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("unable to write csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
