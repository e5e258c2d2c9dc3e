package archive

import (
	"archive/zip"
	"errors"
	"io"
	"strings"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// Blob is a named chunk of input as supplied by the caller. Name is only used
// to decide how data should be treated.
type Blob struct {
	Name string
	Data []byte
}

// Buffer is a single XML document ready for extraction. Origin tells where it
// came from ("file.xml" or "archive.zip!member.xml").
type Buffer struct {
	Origin string
	Data   []byte
}

const memberSep = "!"

// HasExt reports whether name ends with ext ignoring case.
func HasExt(name, ext string) bool {
	return len(name) >= len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext)
}

// Unwrapper turns blobs into XML buffers. It never fails: anything which
// cannot be used is logged and skipped.
type Unwrapper struct {
	log      *zap.Logger
	codePage encoding.Encoding
}

// NewUnwrapper returns unwrapper logging to log. When codePage is not nil
// member names flagged as non UTF-8 are decoded with it for reporting.
func NewUnwrapper(log *zap.Logger, codePage encoding.Encoding) *Unwrapper {
	return &Unwrapper{log: log.Named("archive"), codePage: codePage}
}

// Unwrap returns buffers in input order, archive members in archive order.
func (u *Unwrapper) Unwrap(blobs []Blob) []Buffer {
	var out []Buffer
	for _, b := range blobs {
		switch {
		case HasExt(b.Name, ".zip"):
			out = append(out, u.unwrapArchive(b)...)
		case HasExt(b.Name, ".xml"):
			out = append(out, Buffer{Origin: b.Name, Data: b.Data})
		default:
			u.log.Debug("Skipping input, neither xml nor zip", zap.String("name", b.Name))
		}
	}
	return out
}

func (u *Unwrapper) unwrapArchive(b Blob) []Buffer {
	if !filetype.Is(b.Data, "zip") {
		u.log.Debug("Input does not look like zip archive", zap.String("name", b.Name))
	}

	var out []Buffer
	err := Walk(b.Name, b.Data, func(name string) bool { return HasExt(name, ".xml") },
		func(archive string, f *zip.File, err error) error {
			member := u.memberName(f)
			switch {
			case errors.Is(err, ErrUnsafePath):
				// members are only read into memory, nothing lands on disk
				u.log.Debug("Archive entry has unsafe path, reading anyway", zap.String("archive", archive), zap.String("file", member))
			case err != nil:
				u.log.Warn("Skipping file in archive", zap.String("archive", archive), zap.String("file", member), zap.Error(err))
				return nil
			}
			data, err := readMember(f)
			if err != nil {
				u.log.Warn("Skipping file in archive", zap.String("archive", archive), zap.String("file", member), zap.Error(err))
				return nil
			}
			out = append(out, Buffer{Origin: archive + memberSep + member, Data: data})
			return nil
		})
	if err != nil {
		u.log.Warn("Skipping archive", zap.String("name", b.Name), zap.Error(err))
		return nil
	}
	if len(out) == 0 {
		u.log.Debug("Archive contributed no documents", zap.String("name", b.Name))
	}
	return out
}

func readMember(f *zip.File) ([]byte, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// memberName decodes names of entries created by archivers which do not
// use UTF-8, when code page was requested.
func (u *Unwrapper) memberName(f *zip.File) string {
	name := f.FileHeader.Name
	if u.codePage == nil || !f.FileHeader.NonUTF8 {
		return name
	}
	n, err := u.codePage.NewDecoder().String(name)
	if err != nil {
		cs, _ := ianaindex.IANA.Name(u.codePage)
		u.log.Warn("Unable to convert archive name from specified encoding",
			zap.String("charset", cs), zap.String("path", name), zap.Error(err))
		return name
	}
	return n
}
