package nfe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ErrUnknownField is returned when selection refers to a field catalog does
// not have.
var ErrUnknownField = errors.New("unknown field")

// Choice is a single selection entry.
type Choice struct {
	Name string
	On   bool
}

// Selection is an ordered mapping of field names to flags. Order of entries
// turned on is the output column order. Repeated name keeps its first
// position and takes the last flag.
type Selection struct {
	catalog *Catalog
	entries []Choice
	pos     map[string]int
}

// NewSelection validates choices against the catalog.
func NewSelection(c *Catalog, choices ...Choice) (*Selection, error) {
	s := &Selection{catalog: c, pos: make(map[string]int, len(choices))}

	var unknown []string
	for _, ch := range choices {
		if _, ok := c.Lookup(ch.Name); !ok {
			unknown = append(unknown, ch.Name)
			continue
		}
		s.set(ch.Name, ch.On)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, strings.Join(lo.Map(unknown, func(n string, _ int) string {
			return fmt.Sprintf("%q", n)
		}), ", "))
	}
	return s, nil
}

// Select is a shortcut for selection with all names turned on.
func Select(c *Catalog, names ...string) (*Selection, error) {
	return NewSelection(c, lo.Map(names, func(n string, _ int) Choice {
		return Choice{Name: n, On: true}
	})...)
}

func (s *Selection) set(name string, on bool) {
	if i, ok := s.pos[name]; ok {
		s.entries[i].On = on
		return
	}
	s.pos[name] = len(s.entries)
	s.entries = append(s.entries, Choice{Name: name, On: on})
}

// Catalog returns catalog selection was validated against.
func (s *Selection) Catalog() *Catalog {
	return s.catalog
}

// Entries returns all choices in insertion order.
func (s *Selection) Entries() []Choice {
	out := make([]Choice, len(s.entries))
	copy(out, s.entries)
	return out
}

// Columns returns selected fields in output order.
func (s *Selection) Columns() []Field {
	out := make([]Field, 0, len(s.entries))
	for _, ch := range s.entries {
		if !ch.On {
			continue
		}
		f, _ := s.catalog.Lookup(ch.Name)
		out = append(out, f)
	}
	return out
}

// Names returns names of selected fields in output order.
func (s *Selection) Names() []string {
	return lo.Map(s.Columns(), func(f Field, _ int) string { return f.Name })
}

// Level returns selected fields of a given level in output order.
func (s *Selection) Level(l Level) []Field {
	return lo.Filter(s.Columns(), func(f Field, _ int) bool { return f.Level == l })
}

// HasItemFields tells whether output should have one row per line item.
func (s *Selection) HasItemFields() bool {
	return len(s.Level(LevelItem)) > 0
}

// IsEmpty is true when nothing is selected.
func (s *Selection) IsEmpty() bool {
	return !lo.SomeBy(s.entries, func(ch Choice) bool { return ch.On })
}
