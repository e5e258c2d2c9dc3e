package batch

import (
	"strconv"

	"github.com/samber/lo"
)

// Well known columns used to group rows into documents.
const (
	KeyColumn    = "Chave de Acesso"
	NumberColumn = "Número da NF"
	TotalColumn  = "Valor Total da NF"
	ItemColumn   = "Número do Item"
)

// Summary holds document level figures. Rows of the same document repeat
// header values, so totals are computed over distinct documents only.
type Summary struct {
	Rows          int
	Documents     int
	InvoicedTotal float64
	// AverageItems is only meaningful when HasItems is set.
	AverageItems float64
	HasItems     bool
}

// DocumentKey identifies document row belongs to: access key when present,
// invoice number otherwise. Rows without either are documents of their own.
func (t *Table) DocumentKey(row int) string {
	for _, name := range []string{KeyColumn, NumberColumn} {
		if v, ok := t.Value(row, name); ok {
			if s := v.String(); len(s) > 0 {
				return name + ":" + s
			}
		}
	}
	return "#" + strconv.Itoa(row)
}

// Summarize computes document level figures for the table.
func Summarize(t *Table) Summary {
	if t.IsEmpty() {
		return Summary{}
	}

	idx := lo.Range(len(t.Rows))
	groups := lo.GroupBy(idx, func(row int) string { return t.DocumentKey(row) })
	// first row of each document in table order
	firsts := lo.UniqBy(idx, func(row int) string { return t.DocumentKey(row) })

	s := Summary{
		Rows:      len(t.Rows),
		Documents: len(groups),
	}
	s.InvoicedTotal = lo.SumBy(firsts, func(row int) float64 {
		v, _ := t.Value(row, TotalColumn)
		f, _ := v.AsNumber()
		return f
	})

	if t.ColumnIndex(ItemColumn) >= 0 {
		s.HasItems = true
		items := lo.SumBy(firsts, func(row int) int {
			return lo.CountBy(groups[t.DocumentKey(row)], func(r int) bool {
				v, _ := t.Value(r, ItemColumn)
				return !v.IsAbsent()
			})
		})
		s.AverageItems = float64(items) / float64(s.Documents)
	}
	return s
}
