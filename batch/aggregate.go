package batch

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"

	"nfex/archive"
	"nfex/nfe"
)

// Stats describes what happened to the inputs during a run.
type Stats struct {
	Blobs     int
	Buffers   int
	Documents int
	Rejected  int
	Rows      int
	Elapsed   time.Duration
}

// Result of a single run.
type Result struct {
	Table *Table
	Stats Stats
	// Rejected holds buffers which produced no records, in input order.
	Rejected []archive.Buffer
}

// Aggregator runs unwrapping and extraction over a set of inputs.
type Aggregator struct {
	log       *zap.Logger
	workers   int
	codePage  encoding.Encoding
	extractor *nfe.Extractor
}

type Option func(*Aggregator)

// WithWorkers limits number of documents extracted concurrently. Values
// below 1 select number of available CPUs.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		a.workers = n
	}
}

// WithCodePage sets encoding used for non UTF-8 archive member names.
func WithCodePage(enc encoding.Encoding) Option {
	return func(a *Aggregator) {
		a.codePage = enc
	}
}

func New(log *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		log:       log.Named("batch"),
		workers:   1,
		extractor: nfe.NewExtractor(log),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Process returns consolidated table for blobs. It never fails, inputs
// which cannot be used are logged and skipped, so the result may be empty.
func (a *Aggregator) Process(blobs []archive.Blob, sel *nfe.Selection) *Table {
	return a.Run(blobs, sel).Table
}

// Run is Process which also reports statistics and rejected documents.
func (a *Aggregator) Run(blobs []archive.Blob, sel *nfe.Selection) *Result {
	start := time.Now()

	res := &Result{Table: &Table{}}
	res.Stats.Blobs = len(blobs)
	defer func() {
		res.Stats.Elapsed = time.Since(start)
		a.log.Info("Batch processed",
			zap.Int("inputs", res.Stats.Blobs),
			zap.Int("documents", res.Stats.Buffers),
			zap.Int("extracted", res.Stats.Documents),
			zap.Int("rejected", res.Stats.Rejected),
			zap.Int("rows", res.Stats.Rows),
			zap.Duration("elapsed", res.Stats.Elapsed))
	}()

	bufs := archive.NewUnwrapper(a.log, a.codePage).Unwrap(blobs)
	res.Stats.Buffers = len(bufs)
	if len(bufs) == 0 {
		return res
	}

	slots := a.extractAll(bufs, sel)

	var records []nfe.Record
	for i, recs := range slots {
		if len(recs) == 0 {
			res.Rejected = append(res.Rejected, bufs[i])
			continue
		}
		res.Stats.Documents++
		records = append(records, recs...)
	}
	res.Stats.Rejected = len(res.Rejected)
	if len(records) == 0 {
		return res
	}

	res.Table = newTable(sel, records)
	res.Stats.Rows = len(res.Table.Rows)
	return res
}

// extractAll extracts buffers on a bounded pool. Every buffer owns its slot
// so concatenation order does not depend on completion order.
func (a *Aggregator) extractAll(bufs []archive.Buffer, sel *nfe.Selection) [][]nfe.Record {
	slots := make([][]nfe.Record, len(bufs))

	g := new(errgroup.Group)
	g.SetLimit(a.workers)
	for i, b := range bufs {
		g.Go(func() error {
			slots[i] = a.extract(b, sel)
			return nil
		})
	}
	// extraction does not return errors
	_ = g.Wait()
	return slots
}

func (a *Aggregator) extract(b archive.Buffer, sel *nfe.Selection) (recs []nfe.Record) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("Extraction ended with panic",
				zap.String("origin", b.Origin), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			recs = nil
		}
	}()
	return a.extractor.Extract(b.Origin, b.Data, sel)
}

func (s Stats) String() string {
	return fmt.Sprintf("%d input(s), %d document(s), %d extracted, %d rejected, %d row(s)",
		s.Blobs, s.Buffers, s.Documents, s.Rejected, s.Rows)
}
