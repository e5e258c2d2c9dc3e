package nfe

import (
	"strings"

	"github.com/beevik/etree"
)

// Locator finds a single piece of text in the document tree. Paths use etree
// syntax and unprefixed tags match any namespace, so NF-e default namespace
// does not have to be spelled out.
type Locator struct {
	expr  string
	path  etree.Path
	attr  string
	strip string
}

// Elem locates text content of the first element matching expr.
func Elem(expr string) Locator {
	return Locator{expr: expr, path: etree.MustCompilePath(expr)}
}

// Attr locates value of attribute attr on the first element matching expr.
// Use "." to address the scope element itself.
func Attr(expr, attr string) Locator {
	return Locator{expr: expr, path: etree.MustCompilePath(expr), attr: attr}
}

// TrimPrefix returns locator which removes prefix from located value.
func (l Locator) TrimPrefix(prefix string) Locator {
	l.strip = prefix
	return l
}

func (l Locator) String() string {
	if len(l.attr) == 0 {
		return l.expr
	}
	return l.expr + "@" + l.attr
}

// Find evaluates locator relative to scope. Element without text and empty
// attribute are treated as not found.
func (l Locator) Find(scope *etree.Element) (string, bool) {
	if scope == nil {
		return "", false
	}
	el := scope.FindElementPath(l.path)
	if el == nil {
		return "", false
	}

	var s string
	if len(l.attr) > 0 {
		a := el.SelectAttr(l.attr)
		if a == nil {
			return "", false
		}
		s = a.Value
	} else {
		s = el.Text()
	}

	s = strings.TrimPrefix(strings.TrimSpace(s), l.strip)
	if len(s) == 0 {
		return "", false
	}
	return s, true
}
