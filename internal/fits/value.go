// Package fits reads the parts of FITS files the regression suite relies on:
// header keyword lookup for test selection and an exact structural comparison
// of two files for regression checks. Pixel data is never interpreted, only
// compared byte for byte.
package fits

import "strconv"

// Kind identifies which variant a header Value holds.
type Kind int

const (
	// KindAbsent means the keyword is missing or carries no value.
	KindAbsent Kind = iota
	// KindBool is a FITS logical (T or F).
	KindBool
	// KindText is every other value: strings, integers, reals and complex
	// numbers, kept in their textual form.
	KindText
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Value is a header keyword value decided once at the file-reading boundary.
// The zero Value is Absent.
type Value struct {
	kind Kind
	b    bool
	s    string
}

// Absent returns the value of a missing keyword.
func Absent() Value { return Value{} }

// Bool returns a logical value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Text returns a textual value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v is the absent variant.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// AsBool returns the logical value and true when v is a Bool.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsText returns the textual value and true when v is Text.
func (v Value) AsText() (string, bool) {
	return v.s, v.kind == KindText
}

// AsFloat parses a Text value as a FITS number. Fortran style D exponents
// are accepted.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindText {
		return 0, false
	}
	f, err := strconv.ParseFloat(normalizeExponent(v.s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// AsInt parses a Text value as an integer.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindText {
		return 0, false
	}
	n, err := strconv.ParseInt(v.s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Equal reports whether two values are identical. Numbers compare by value
// with zero tolerance, so 1.0 and 1.00E0 are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindText:
		if v.s == o.s {
			return true
		}
		a, aok := v.AsFloat()
		b, bok := o.AsFloat()
		return aok && bok && a == b
	default:
		return true
	}
}

// String formats v the way it would appear in a log line.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "T"
		}
		return "F"
	case KindText:
		return v.s
	default:
		return "<absent>"
	}
}

func normalizeExponent(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c == 'D' || c == 'd' {
			out[i] = 'E'
		}
	}
	return string(out)
}
