package nfe

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type valueState uint8

const (
	stateAbsent valueState = iota
	stateText
	stateNumber
)

// Value is a single table cell. It is exactly one of absent, text or number.
// Absent is distinct from both empty text and zero.
type Value struct {
	state valueState
	text  string
	num   float64
}

// Absent returns explicit "no value" marker.
func Absent() Value { return Value{} }

func TextValue(s string) Value { return Value{state: stateText, text: s} }

func NumberValue(f float64) Value { return Value{state: stateNumber, num: f} }

func (v Value) IsAbsent() bool { return v.state == stateAbsent }
func (v Value) IsText() bool   { return v.state == stateText }
func (v Value) IsNumber() bool { return v.state == stateNumber }

// AsText returns text content, ok is false unless value holds text.
func (v Value) AsText() (string, bool) {
	return v.text, v.state == stateText
}

// AsNumber returns numeric content, ok is false unless value holds number.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.state == stateNumber
}

// String renders value for delimited text output. Absent renders as empty
// string, numbers use the shortest representation.
func (v Value) String() string {
	switch v.state {
	case stateText:
		return v.text
	case stateNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// ParseDecimal parses amount as it appears in NF-e documents: fixed point with
// dot as decimal separator. Anything else, including exponent notation and
// locale specific separators, fails.
func ParseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || strings.ContainsAny(s, "eE") {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
