// Package extract implements command which turns NF-e documents into a single
// table file.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"nfex/archive"
	"nfex/batch"
	"nfex/config"
	"nfex/export"
	"nfex/nfe"
	"nfex/state"
)

// request holds everything process needs, independent of CLI framework.
type request struct {
	sources []string
	dst     string
	format  config.OutputFmt
	sel     *nfe.Selection
}

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("extract")

	req := request{}

	args := cmd.Args().Slice()
	switch len(args) {
	case 0:
		return errors.New("no input source has been specified")
	case 1:
		req.sources = args
		if req.dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	default:
		req.sources, req.dst = args[:len(args)-1], args[len(args)-1]
	}
	for i, src := range req.sources {
		if req.sources[i], err = filepath.Abs(src); err != nil {
			return err
		}
	}
	if req.dst, err = filepath.Abs(req.dst); err != nil {
		return err
	}

	req.format = resolveFormat(cmd.String("to"), req.dst, env.Cfg.Output.Format, log)

	if req.sel, err = selectFields(cmd.Bool("all-fields"), cmd.StringSlice("field"), env.Cfg.Extraction.Fields); err != nil {
		return fmt.Errorf("unable to prepare field selection: %w", err)
	}

	env.Overwrite = cmd.Bool("overwrite")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	if cp := env.Cfg.Extraction.ZipCodePage; len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Decoding all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	log.Info("Processing starting",
		zap.Strings("sources", req.sources), zap.String("destination", req.dst),
		zap.Stringer("format", req.format), zap.Strings("fields", req.sel.Names()))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, req, log)
}

// resolveFormat picks output format: explicit request wins, then destination
// file extension, then configuration.
func resolveFormat(to, dst string, configured config.OutputFmt, log *zap.Logger) config.OutputFmt {
	format := configured
	byExt, haveExt := config.OutputFmtFromPath(dst)
	if haveExt {
		format = byExt
	}
	if len(to) == 0 {
		return format
	}
	requested, err := config.ParseOutputFmt(to)
	if err != nil {
		log.Warn("Unknown output format requested, ignoring", zap.String("format", to), zap.Stringer("using", format), zap.Error(err))
		return format
	}
	if haveExt && requested != byExt {
		log.Warn("Requested output format does not match destination extension",
			zap.Stringer("format", requested), zap.String("destination", dst))
	}
	return requested
}

// selectFields builds selection from command line, falling back to
// configured list.
func selectFields(all bool, names, configured []string) (*nfe.Selection, error) {
	catalog := nfe.Builtin()
	switch {
	case all:
		names = lo.Map(catalog.Fields(), func(f nfe.Field, _ int) string { return f.Name })
	case len(names) == 0:
		names = configured
	}
	sel, err := nfe.Select(catalog, names...)
	if err != nil {
		return nil, err
	}
	if sel.IsEmpty() {
		return nil, errors.New("no fields selected")
	}
	return sel, nil
}

// process handles the core logic independently of CLI framework.
func process(ctx context.Context, req request, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	blobs, err := collectInputs(ctx, req.sources, log)
	if err != nil {
		return err
	}
	if len(blobs) == 0 {
		log.Warn("No xml or zip inputs found, nothing to export")
		return nil
	}

	agg := batch.New(env.Log,
		batch.WithWorkers(env.Cfg.Extraction.EffectiveWorkers()),
		batch.WithCodePage(env.CodePage))
	res := agg.Run(blobs, req.sel)

	storeRejected(env, res.Rejected)

	if err := ctx.Err(); err != nil {
		return err
	}
	if res.Table.IsEmpty() {
		log.Warn("Nothing to export", zap.Stringer("stats", res.Stats))
		return nil
	}

	summary := batch.Summarize(res.Table)

	outputName := buildOutputPath(req.dst, req.format, Values{
		Prefix:    outputPrefix(req.sources),
		Date:      env.Started().Format("2006-01-02"),
		Time:      env.Started().Format("150405"),
		RunID:     env.RunID.String(),
		Format:    req.format.String(),
		Rows:      summary.Rows,
		Documents: summary.Documents,
	}, env)

	if err := prepareDestination(outputName, env.Overwrite, log); err != nil {
		return err
	}

	if err := export.WriteFile(ctx, res.Table, req.format, outputName, export.OptionsFromConfig(&env.Cfg.Output), log); err != nil {
		return fmt.Errorf("unable to generate output: %w", err)
	}

	// Store result for debugging
	if env.Rpt != nil {
		env.Rpt.Store("result"+req.format.Ext(), outputName)
	}

	fields := []zap.Field{
		zap.String("to", outputName),
		zap.Int("rows", summary.Rows),
		zap.Int("documents", summary.Documents),
		zap.String("invoiced", fmt.Sprintf("%.2f", summary.InvoicedTotal)),
	}
	if summary.HasItems {
		fields = append(fields, zap.String("items per document", fmt.Sprintf("%.1f", summary.AverageItems)))
	}
	if res.Stats.Rejected > 0 {
		fields = append(fields, zap.Int("rejected", res.Stats.Rejected))
	}
	log.Info("Table exported", fields...)
	return nil
}

// prepareDestination checks if output file already exists and makes sure its
// directory is there.
func prepareDestination(outputName string, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(outputName); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		return os.Remove(outputName)
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}

// outputPrefix is the base name of the only source, or generic prefix when
// there are many.
func outputPrefix(sources []string) string {
	if len(sources) != 1 {
		return defaultPrefix
	}
	base := filepath.Base(sources[0])
	if p := strings.TrimSuffix(base, filepath.Ext(base)); len(p) > 0 && p != "." && p != string(filepath.Separator) {
		return p
	}
	return defaultPrefix
}

// storeRejected puts documents which produced nothing into debug report.
func storeRejected(env *state.LocalEnv, rejected []archive.Buffer) {
	if env.Rpt == nil {
		return
	}
	for _, b := range rejected {
		name := config.CleanFileName(strings.NewReplacer("/", "_", "\\", "_", "!", "_").Replace(b.Origin))
		env.Rpt.StoreData(path.Join("rejected", name), b.Data)
	}
}
