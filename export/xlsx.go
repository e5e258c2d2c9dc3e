package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"

	"nfex/batch"
	"nfex/nfe"
)

// DefaultSheetName is used when no sheet name was configured.
const DefaultSheetName = "NF-e"

// WriteXLSX writes table as a single worksheet with bold frozen header row.
// Numbers are stored as numeric cells, absent values are left blank.
func WriteXLSX(w io.Writer, t *batch.Table, sheet string) (err error) {
	if len(sheet) == 0 {
		sheet = DefaultSheetName
	}

	f := excelize.NewFile()
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("unable to name sheet %q: %w", sheet, err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("unable to create sheet writer: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	// panes and widths must be set before any row
	if err := sw.SetPanes(&excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	for i, c := range t.Columns {
		if err := sw.SetColWidth(i+1, i+1, columnWidth(c)); err != nil {
			return err
		}
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = excelize.Cell{StyleID: bold, Value: c.Name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("unable to write header: %w", err)
	}

	values := make([]any, len(t.Columns))
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		for j, v := range row {
			values[j] = cellValue(v)
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("unable to write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("unable to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("unable to write workbook: %w", err)
	}
	return nil
}

func columnWidth(c batch.Column) float64 {
	w := float64(len([]rune(c.Name))) + 2
	if c.Kind == nfe.KindDecimal {
		w = max(w, 14)
	}
	return min(max(w, 10), 60)
}
