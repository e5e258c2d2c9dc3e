// Package export serializes consolidated tables to files.
package export

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"nfex/batch"
	"nfex/config"
	"nfex/nfe"
)

// Options carries format specific settings.
type Options struct {
	// SheetName is used by xlsx output.
	SheetName string
	// TableName is used by sqlite output.
	TableName string
}

// OptionsFromConfig picks export settings from output configuration.
func OptionsFromConfig(cfg *config.OutputConfig) Options {
	return Options{SheetName: cfg.SheetName, TableName: cfg.TableName}
}

// WriteFile generates output in the specified format. Destination must not
// exist.
func WriteFile(ctx context.Context, t *batch.Table, format config.OutputFmt, path string, opts Options, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.IsEmpty() {
		return fmt.Errorf("nothing to export")
	}

	log.Debug("Writing output",
		zap.String("file", path), zap.Stringer("format", format),
		zap.Int("columns", len(t.Columns)), zap.Int("rows", len(t.Rows)))

	switch format {
	case config.OutputFmtCsv:
		return create(path, func(w io.Writer) error {
			return WriteCSV(w, t)
		})
	case config.OutputFmtXlsx:
		return create(path, func(w io.Writer) error {
			return WriteXLSX(w, t, opts.SheetName)
		})
	case config.OutputFmtSqlite:
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("unable to create output file: %w", os.ErrExist)
		}
		if err := WriteSQLite(path, t, opts.TableName); err != nil {
			_ = os.Remove(path)
			return err
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %s", format)
	}
}

// create writes file exclusively, partial output is removed on failure.
func create(path string, write func(io.Writer) error) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return write(f)
}

// cellValue converts table value for typed outputs: nil for absent, float64
// or string otherwise.
func cellValue(v nfe.Value) any {
	if n, ok := v.AsNumber(); ok {
		return n
	}
	if s, ok := v.AsText(); ok {
		return s
	}
	return nil
}
