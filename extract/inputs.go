package extract

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/h2non/filetype"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"nfex/archive"
)

func isInputName(name string) bool {
	return archive.HasExt(name, ".xml") || archive.HasExt(name, ".zip")
}

// collectInputs reads every source into memory. Sources may be files or
// directories, directories are walked recursively (symbolic links are not
// followed) picking xml and zip files in natural order. Sources which do not
// exist are an error, unreadable files are logged and skipped.
func collectInputs(ctx context.Context, sources []string, log *zap.Logger) ([]archive.Blob, error) {
	var blobs []archive.Blob
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fi, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("input source was not found (%s): %w", src, err)
		}

		switch {
		case fi.IsDir():
			b, err := collectDir(ctx, src, log)
			if err != nil {
				return nil, fmt.Errorf("unable to process directory (%s): %w", src, err)
			}
			blobs = append(blobs, b...)
		case fi.Mode().IsRegular():
			if b, ok := readInput(src, filepath.Base(src), true, log); ok {
				blobs = append(blobs, b)
			}
		default:
			return nil, fmt.Errorf("unexpected path mode for (%s)", src)
		}
	}
	return blobs, nil
}

func collectDir(ctx context.Context, dir string, log *zap.Logger) ([]archive.Blob, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !isInputName(path) {
			log.Debug("Skipping file, neither xml nor zip", zap.String("file", path))
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
		return nil, nil
	}

	sort.Sort(natural.StringSlice(paths))

	blobs := make([]archive.Blob, 0, len(paths))
	for _, path := range paths {
		name := path
		if rel, err := filepath.Rel(dir, path); err == nil {
			name = filepath.ToSlash(filepath.Join(filepath.Base(dir), rel))
		}
		if b, ok := readInput(path, name, false, log); ok {
			blobs = append(blobs, b)
		}
	}
	return blobs, nil
}

// readInput loads single file. When sniff is set file with unknown extension
// is still accepted if its content is a zip archive.
func readInput(path, name string, sniff bool, log *zap.Logger) (archive.Blob, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
		return archive.Blob{}, false
	}
	if !isInputName(name) {
		if !sniff || !filetype.Is(data, "zip") {
			log.Warn("Skipping file, not recognized as xml or zip", zap.String("file", path))
			return archive.Blob{}, false
		}
		log.Debug("Treating file as zip archive based on content", zap.String("file", path))
		name += ".zip"
	}
	return archive.Blob{Name: name, Data: data}, true
}
