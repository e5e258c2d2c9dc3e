package nfe

import "fmt"

// Level tells where field is extracted from.
type Level int

const (
	// LevelHeader fields are extracted once per document.
	LevelHeader Level = iota
	// LevelItem fields are extracted once per line item (det).
	LevelItem
)

func (l Level) String() string {
	switch l {
	case LevelHeader:
		return "header"
	case LevelItem:
		return "item"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Kind drives coercion of extracted text and the default used when nothing
// was found.
type Kind int

const (
	KindText Kind = iota
	KindDecimal
	KindIdentifier
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDecimal:
		return "decimal"
	case KindIdentifier:
		return "identifier"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Default returns value used for missing data: zero for amounts, absent
// marker for everything else.
func (k Kind) Default() Value {
	if k == KindDecimal {
		return NumberValue(0)
	}
	return Absent()
}

// Coerce converts located raw text to value of this kind.
func (k Kind) Coerce(raw string, found bool) Value {
	if !found {
		return k.Default()
	}
	if k == KindDecimal {
		if f, ok := ParseDecimal(raw); ok {
			return NumberValue(f)
		}
		return k.Default()
	}
	return TextValue(raw)
}

// Normalize brings arbitrary value to the representation of this kind. Only
// decimal kind changes anything: numbers are kept, text is parsed and all the
// rest becomes zero.
func (k Kind) Normalize(v Value) Value {
	if k != KindDecimal || v.IsNumber() {
		return v
	}
	if s, ok := v.AsText(); ok {
		return k.Coerce(s, true)
	}
	return k.Default()
}
