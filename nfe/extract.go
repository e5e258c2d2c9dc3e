package nfe

import (
	"fmt"
	"maps"
	"runtime/debug"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// UnknownVersion is reported when document does not declare schema version.
const UnknownVersion = "unknown"

var (
	versionLocator = Attr(".//infNFe", "versao")
	itemsPath      = etree.MustCompilePath(".//det")
)

// Record maps field names to values. Each line item gets its own copy of
// document level values.
type Record map[string]Value

// Clone returns independent copy of the record.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

// Extractor turns single NF-e document into records. It is safe for
// concurrent use.
type Extractor struct {
	log *zap.Logger
}

func NewExtractor(log *zap.Logger) *Extractor {
	return &Extractor{log: log.Named("extract")}
}

// ParseDocument reads XML document tolerating legacy encodings declared in
// the prolog. Parsing is strict: document which is not well-formed or has no
// root element is an error.
func ParseDocument(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
	}
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("no root element")
	}
	return doc, nil
}

// Extract produces records for document in data. With item level fields
// selected there is one record per det element in document order, otherwise
// a single document level record. Document which cannot be parsed produces
// nothing. Origin is only used for logging.
func (x *Extractor) Extract(origin string, data []byte, sel *Selection) []Record {
	log := x.log.With(zap.String("origin", origin))

	doc, err := ParseDocument(data)
	if err != nil {
		log.Warn("Unable to parse document, skipping", zap.Error(err))
		return nil
	}
	root := doc.Root()

	version, ok := versionLocator.Find(root)
	if !ok {
		version = UnknownVersion
	}
	log.Debug("Document parsed", zap.String("version", version), zap.String("root", root.Tag))

	rec := make(Record)
	found := 0
	for _, f := range sel.Level(LevelHeader) {
		v, ok := x.evaluate(log, f, root)
		rec[f.Name] = v
		if ok {
			found++
		}
	}

	summary := func() []Record {
		if found == 0 {
			log.Debug("Document has none of requested fields")
			return nil
		}
		return []Record{rec}
	}

	fields := sel.Level(LevelItem)
	if len(fields) == 0 {
		return summary()
	}

	items := root.FindElementsPath(itemsPath)
	if len(items) == 0 {
		log.Debug("Document has no line items, using document level record")
		return summary()
	}

	out := make([]Record, 0, len(items))
	for _, det := range items {
		r := rec.Clone()
		for _, f := range fields {
			r[f.Name], _ = x.evaluate(log, f, det)
		}
		out = append(out, r)
	}
	log.Debug("Document extracted", zap.Int("items", len(out)))
	return out
}

// evaluate never lets a single field take down the whole document.
func (x *Extractor) evaluate(log *zap.Logger, f Field, scope *etree.Element) (v Value, found bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Field extraction ended with panic",
				zap.String("field", f.Name), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			v, found = f.Kind.Default(), false
		}
	}()
	return f.Evaluate(scope)
}
