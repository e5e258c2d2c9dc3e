package batch

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"nfex/archive"
	"nfex/nfe"
)

const sampleV400Path = "../testdata/nfe_v400.xml"

type item struct {
	name string
	icms string // empty - no ICMS group at all
}

// makeDoc builds namespaced NF-e with given key, number, total and items.
func makeDoc(key, nNF, vNF string, items ...item) []byte {
	var sb strings.Builder
	sb.WriteString(`<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe"><NFe>`)
	fmt.Fprintf(&sb, `<infNFe Id="NFe%s" versao="4.00"><ide><nNF>%s</nNF></ide>`, key, nNF)
	for i, it := range items {
		fmt.Fprintf(&sb, `<det nItem="%d"><prod><xProd>%s</xProd></prod>`, i+1, it.name)
		if len(it.icms) > 0 {
			fmt.Fprintf(&sb, `<imposto><ICMS><ICMS00><vICMS>%s</vICMS></ICMS00></ICMS></imposto>`, it.icms)
		}
		sb.WriteString(`</det>`)
	}
	fmt.Fprintf(&sb, `<total><ICMSTot><vNF>%s</vNF></ICMSTot></total></infNFe></NFe></nfeProc>`, vNF)
	return []byte(sb.String())
}

const malformed = `<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe"><NFe><infNFe><ide><nNF>666`

func makeZip(t *testing.T, files map[string][]byte, order ...string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for _, name := range order {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(files[name]); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestAggregator(t *testing.T, opts ...Option) *Aggregator {
	return New(zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1))), opts...)
}

func mustSelect(t *testing.T, names ...string) *nfe.Selection {
	t.Helper()
	sel, err := nfe.Select(nfe.Builtin(), names...)
	if err != nil {
		t.Fatal(err)
	}
	return sel
}

// render turns table into comparable text, one line per row.
func render(tbl *Table) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(tbl.Names(), "|"))
	for _, r := range tbl.Rows {
		sb.WriteString("\n")
		for i, v := range r {
			if i > 0 {
				sb.WriteString("|")
			}
			switch {
			case v.IsAbsent():
				sb.WriteString("<nil>")
			case v.IsNumber():
				sb.WriteString("#" + v.String())
			default:
				sb.WriteString(v.String())
			}
		}
	}
	return sb.String()
}

func checkRectangular(t *testing.T, tbl *Table) {
	t.Helper()
	for i, r := range tbl.Rows {
		if len(r) != len(tbl.Columns) {
			t.Errorf("row %d has %d values, want %d", i, len(r), len(tbl.Columns))
		}
	}
}

func TestProcess_HeaderFieldsOnly(t *testing.T) {
	a := newTestAggregator(t)
	blobs := []archive.Blob{{Name: "a.xml", Data: makeDoc("1", "123", "500.00", item{name: "Produto A"}, item{name: "Produto B"})}}

	tbl := a.Process(blobs, mustSelect(t, "Número da NF", "Valor Total da NF"))
	want := "Número da NF|Valor Total da NF\n123|#500"
	if got := render(tbl); got != want {
		t.Errorf("table:\n%s\nwant:\n%s", got, want)
	}
}

func TestProcess_RowPerItem(t *testing.T) {
	a := newTestAggregator(t)
	blobs := []archive.Blob{{Name: "a.xml", Data: makeDoc("1", "123", "500.00", item{name: "Produto A"}, item{name: "Produto B"})}}

	tbl := a.Process(blobs, mustSelect(t, "Número da NF", "Valor Total da NF", "Descrição do Produto"))
	want := "Número da NF|Valor Total da NF|Descrição do Produto\n" +
		"123|#500|Produto A\n" +
		"123|#500|Produto B"
	if got := render(tbl); got != want {
		t.Errorf("table:\n%s\nwant:\n%s", got, want)
	}
}

func TestProcess_MalformedInArchive(t *testing.T) {
	a := newTestAggregator(t)
	files := map[string][]byte{
		"bad.xml":  []byte(malformed),
		"good.xml": makeDoc("1", "123", "500.00", item{name: "A"}, item{name: "B"}, item{name: "C"}),
	}
	blobs := []archive.Blob{{Name: "lote.zip", Data: makeZip(t, files, "bad.xml", "good.xml")}}

	res := a.Run(blobs, mustSelect(t, "Número da NF", "Valor Total da NF", "Descrição do Produto"))
	if n := len(res.Table.Rows); n != 3 {
		t.Fatalf("got %d rows, want 3", n)
	}
	if res.Stats.Buffers != 2 || res.Stats.Documents != 1 || res.Stats.Rejected != 1 {
		t.Errorf("unexpected stats: %s", res.Stats)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Origin != "lote.zip!bad.xml" {
		t.Errorf("rejected = %v", res.Rejected)
	}
}

func TestProcess_MissingICMS(t *testing.T) {
	a := newTestAggregator(t)
	blobs := []archive.Blob{{Name: "a.xml", Data: makeDoc("1", "1", "10.00", item{name: "Sem ICMS"}, item{name: "Com ICMS", icms: "1.80"})}}

	tbl := a.Process(blobs, mustSelect(t, "Descrição do Produto", "Valor ICMS"))
	want := "Descrição do Produto|Valor ICMS\nSem ICMS|#0\nCom ICMS|#1.8"
	if got := render(tbl); got != want {
		t.Errorf("table:\n%s\nwant:\n%s", got, want)
	}
}

func TestProcess_Rectangular(t *testing.T) {
	a := newTestAggregator(t, WithWorkers(4))
	blobs := []archive.Blob{
		{Name: "items.xml", Data: makeDoc("1", "1", "10.00", item{name: "A", icms: "1.00"})},
		// no items: header only row with item columns backfilled
		{Name: "noitems.xml", Data: makeDoc("2", "2", "20.00")},
		{Name: "foreign.xml", Data: []byte(`<other><ide><nNF>3</nNF></ide></other>`)},
	}

	sel := mustSelect(t, "Valor ICMS", "Número da NF", "Descrição do Produto", "Chave de Acesso")
	tbl := a.Process(blobs, sel)
	checkRectangular(t, tbl)

	want := "Valor ICMS|Número da NF|Descrição do Produto|Chave de Acesso\n" +
		"#1|1|A|1\n" +
		"#0|2|<nil>|2\n" +
		"#0|3|<nil>|<nil>"
	if got := render(tbl); got != want {
		t.Errorf("table:\n%s\nwant:\n%s", got, want)
	}
	for i, c := range tbl.Columns {
		f, _ := nfe.Builtin().Lookup(c.Name)
		if c.Kind != f.Kind {
			t.Errorf("column %d kind %s, want %s", i, c.Kind, f.Kind)
		}
	}
}

func TestProcess_FaultIsolation(t *testing.T) {
	sel := mustSelect(t, "Número da NF", "Descrição do Produto", "Valor Total da NF")
	good := []archive.Blob{
		{Name: "1.xml", Data: makeDoc("1", "1", "1.00", item{name: "A"})},
		{Name: "2.xml", Data: makeDoc("2", "2", "2.00", item{name: "B"}, item{name: "C"})},
		{Name: "3.xml", Data: makeDoc("3", "3", "3.00", item{name: "D"})},
	}
	withBad := []archive.Blob{good[0], {Name: "bad.xml", Data: []byte(malformed)}, good[1], good[2]}

	a := newTestAggregator(t)
	want := render(a.Process(good, sel))
	if got := render(a.Process(withBad, sel)); got != want {
		t.Errorf("malformed document changed result:\n%s\nwant:\n%s", got, want)
	}
}

func TestProcess_ArchiveTransparency(t *testing.T) {
	sel := mustSelect(t, "Chave de Acesso", "Número do Item", "Descrição do Produto")
	docs := map[string][]byte{
		"1.xml": makeDoc("1", "1", "1.00", item{name: "A"}, item{name: "B"}),
		"2.xml": makeDoc("2", "2", "2.00", item{name: "C"}),
	}

	a := newTestAggregator(t)
	plain := a.Process([]archive.Blob{{Name: "1.xml", Data: docs["1.xml"]}, {Name: "2.xml", Data: docs["2.xml"]}}, sel)
	zipped := a.Process([]archive.Blob{{Name: "both.ZIP", Data: makeZip(t, docs, "1.xml", "2.xml")}}, sel)

	if render(plain) != render(zipped) {
		t.Errorf("zipped result differs:\n%s\nvs\n%s", render(zipped), render(plain))
	}
	if len(plain.Rows) != 3 {
		t.Errorf("got %d rows, want 3", len(plain.Rows))
	}
}

func TestProcess_OrderWithWorkers(t *testing.T) {
	sel := mustSelect(t, "Número da NF", "Número do Item")

	var blobs []archive.Blob
	var want []string
	for i := range 50 {
		n := fmt.Sprint(i)
		items := make([]item, i%4)
		for j := range items {
			items[j] = item{name: fmt.Sprintf("%d-%d", i, j)}
		}
		blobs = append(blobs, archive.Blob{Name: n + ".xml", Data: makeDoc(n, n, "1.00", items...)})
		if len(items) == 0 {
			want = append(want, n+"|<nil>")
		}
		for j := range items {
			want = append(want, fmt.Sprintf("%s|%d", n, j+1))
		}
	}

	sequential := render(newTestAggregator(t).Process(blobs, sel))
	for _, workers := range []int{0, 2, 8, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			got := render(newTestAggregator(t, WithWorkers(workers)).Process(blobs, sel))
			if got != sequential {
				t.Errorf("result depends on worker count")
			}
		})
	}
	if rows := strings.Split(sequential, "\n")[1:]; strings.Join(rows, ",") != strings.Join(want, ",") {
		t.Errorf("rows = %v\nwant %v", rows, want)
	}
}

func TestProcess_Empty(t *testing.T) {
	a := newTestAggregator(t)

	tests := []struct {
		name  string
		blobs []archive.Blob
		sel   []string
	}{
		{"no inputs", nil, []string{"Número da NF"}},
		{"nothing usable", []archive.Blob{{Name: "readme.txt", Data: []byte("hello")}}, []string{"Número da NF"}},
		{"all malformed", []archive.Blob{{Name: "bad.xml", Data: []byte(malformed)}}, []string{"Número da NF"}},
		{"nothing selected", []archive.Blob{{Name: "a.xml", Data: makeDoc("1", "1", "1.00", item{name: "A"})}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := a.Process(tt.blobs, mustSelect(t, tt.sel...))
			if tbl == nil {
				t.Fatal("Process() returned nil table")
			}
			if !tbl.IsEmpty() {
				t.Errorf("expected empty table, got:\n%s", render(tbl))
			}
		})
	}
}

func TestProcess_Sample(t *testing.T) {
	data, err := os.ReadFile(sampleV400Path)
	if err != nil {
		t.Fatal(err)
	}

	a := newTestAggregator(t)
	tbl := a.Process([]archive.Blob{{Name: "nfe.xml", Data: data}},
		mustSelect(t, "Número da NF", "Número do Item", "CST/CSOSN", "Valor ICMS", "Valor PIS", "Valor Total da NF"))
	want := "Número da NF|Número do Item|CST/CSOSN|Valor ICMS|Valor PIS|Valor Total da NF\n" +
		"1234|1|00|#36|#4.95|#520\n" +
		"1234|2|102|#0|#0|#520"
	if got := render(tbl); got != want {
		t.Errorf("table:\n%s\nwant:\n%s", got, want)
	}
}

func TestNewTable_NormalizesDecimals(t *testing.T) {
	sel := mustSelect(t, "Número da NF", "Valor Total da NF", "Valor ICMS")
	records := []nfe.Record{
		{"Número da NF": nfe.TextValue("1"), "Valor Total da NF": nfe.TextValue("12.50")},
		{"Valor Total da NF": nfe.TextValue("12,50"), "Valor ICMS": nfe.Absent()},
		{"Número da NF": nfe.TextValue("3"), "Valor ICMS": nfe.NumberValue(7)},
	}

	tbl := newTable(sel, records)
	want := "Número da NF|Valor Total da NF|Valor ICMS\n" +
		"1|#12.5|#0\n" +
		"<nil>|#0|#0\n" +
		"3|#0|#7"
	if got := render(tbl); got != want {
		t.Errorf("table:\n%s\nwant:\n%s", got, want)
	}
}

func TestTable_Accessors(t *testing.T) {
	tbl := &Table{
		Columns: []Column{{Name: "a", Kind: nfe.KindText}, {Name: "b", Kind: nfe.KindDecimal}},
		Rows:    []Row{{nfe.TextValue("x"), nfe.NumberValue(1)}},
	}
	if tbl.ColumnIndex("b") != 1 || tbl.ColumnIndex("c") != -1 {
		t.Error("ColumnIndex() is wrong")
	}
	if v, ok := tbl.Value(0, "a"); !ok || v.String() != "x" {
		t.Errorf("Value(0, a) = %v, %v", v, ok)
	}
	if _, ok := tbl.Value(1, "a"); ok {
		t.Error("Value() out of range must fail")
	}
	var empty *Table
	if !empty.IsEmpty() || empty.ColumnIndex("a") != -1 {
		t.Error("nil table must be empty")
	}
}
