// Package archive flattens collections of XML documents and ZIP archives
// holding them into a single ordered sequence of XML buffers.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrUnsafePath is passed to WalkFunc for archive entries with absolute paths
// or path traversal components.
var ErrUnsafePath = errors.New("unsafe path (absolute or contains path traversal)")

// WalkFunc is called by Walk for each regular file in the archive which
// satisfies match condition, in archive order. When err is not nil the entry
// should not be opened. Returning an error stops the walk.
type WalkFunc func(archive string, file *zip.File, err error) error

// Walk walks all regular files of in-memory archive data which satisfy match,
// calling walkFn for each of them. Nil match accepts everything. Nested
// archives are not descended into.
func Walk(archive string, data []byte, match func(name string) bool, walkFn WalkFunc) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && r != nil) {
		return fmt.Errorf("unable to open archive: %w", err)
	}

	for _, f := range r.File {
		name := f.FileHeader.Name
		if f.FileInfo().IsDir() || (match != nil && !match(name)) {
			continue
		}
		var ferr error
		if !isSafePath(name) {
			ferr = fmt.Errorf("zip entry %q: %w", name, ErrUnsafePath)
		}
		if err := walkFn(archive, f, ferr); err != nil {
			return err
		}
	}
	return nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) || (len(name) > 1 && name[1] == ':') {
		return false
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return false
		}
	}
	return true
}
