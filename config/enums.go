package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Specification of requested output type.
type OutputFmt int

const (
	OutputFmtCsv OutputFmt = iota
	OutputFmtXlsx
	OutputFmtSqlite
)

var outputFmtNames = []string{"csv", "xlsx", "sqlite"}

// ErrInvalidOutputFmt is returned when output type name is not recognized.
var ErrInvalidOutputFmt = fmt.Errorf("not a valid OutputFmt, try [%s]", strings.Join(outputFmtNames, ", "))

// OutputFmtNames returns list of possible string values of OutputFmt.
func OutputFmtNames() []string {
	names := make([]string, len(outputFmtNames))
	copy(names, outputFmtNames)
	return names
}

func (o OutputFmt) String() string {
	if o >= 0 && int(o) < len(outputFmtNames) {
		return outputFmtNames[o]
	}
	return fmt.Sprintf("OutputFmt(%d)", int(o))
}

func (o OutputFmt) IsValid() bool {
	return o >= 0 && int(o) < len(outputFmtNames)
}

// ParseOutputFmt attempts to convert string to OutputFmt, case insensitive.
func ParseOutputFmt(name string) (OutputFmt, error) {
	for i, n := range outputFmtNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return OutputFmt(i), nil
		}
	}
	return OutputFmt(0), fmt.Errorf("%s is %w", name, ErrInvalidOutputFmt)
}

func (o OutputFmt) MarshalText() ([]byte, error) {
	if !o.IsValid() {
		return nil, fmt.Errorf("%d is %w", int(o), ErrInvalidOutputFmt)
	}
	return []byte(o.String()), nil
}

func (o *OutputFmt) UnmarshalText(text []byte) error {
	v, err := ParseOutputFmt(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

func (o OutputFmt) Ext() string {
	switch o {
	case OutputFmtCsv:
		return ".csv"
	case OutputFmtXlsx:
		return ".xlsx"
	case OutputFmtSqlite:
		return ".sqlite"
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}

// OutputFmtFromPath guesses output type from destination file extension.
func OutputFmtFromPath(path string) (OutputFmt, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return OutputFmtCsv, true
	case ".xlsx":
		return OutputFmtXlsx, true
	case ".sqlite", ".sqlite3", ".db":
		return OutputFmtSqlite, true
	}
	return OutputFmt(0), false
}
