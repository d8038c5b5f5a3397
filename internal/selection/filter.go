// Package selection picks the input datasets a regression run is made of.
//
// Files are selected by a primary header keyword compared against a target
// value. Targets spelled t/true or f/false (any case) are logical, everything
// else is compared as case-insensitive text. Selections chain left to right
// with "and" (narrow the running set) and "or" (add matches from the
// discovery root).
package selection

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/harrison/regress/internal/fits"
)

// HeaderReader reads one header keyword from a data file. Implementations
// must release the file before returning.
type HeaderReader interface {
	ReadKeyword(path, keyword string) (fits.Value, error)
}

// DebugLogger receives diagnostics for files excluded because they could not
// be read.
type DebugLogger interface {
	LogDebug(message string)
}

// Target is a parsed selection value.
type Target struct {
	isBool bool
	b      bool
	text   string
}

var folder = cases.Fold()

// ParseTarget lower-cases value and recognizes the logical tokens.
func ParseTarget(value string) Target {
	lowered := strings.ToLower(strings.TrimSpace(value))
	switch lowered {
	case "t", "true":
		return Target{isBool: true, b: true}
	case "f", "false":
		return Target{isBool: true, b: false}
	}
	return Target{text: folder.String(lowered)}
}

// IsBool reports whether the target is logical.
func (t Target) IsBool() bool { return t.isBool }

// String returns the normalized target.
func (t Target) String() string {
	if t.isBool {
		if t.b {
			return "true"
		}
		return "false"
	}
	return t.text
}

// Match compares a header value with the target. Absent values never match;
// logical values only match logical targets.
func (t Target) Match(v fits.Value) bool {
	switch v.Kind() {
	case fits.KindBool:
		b, _ := v.AsBool()
		return t.isBool && b == t.b
	case fits.KindText:
		if t.isBool {
			return false
		}
		s, _ := v.AsText()
		return folder.String(strings.ToLower(strings.TrimSpace(s))) == t.text
	default:
		return false
	}
}

// Filter applies keyword predicates to data files.
type Filter struct {
	reader HeaderReader
	logger DebugLogger
}

// NewFilter creates a Filter. The logger is optional and can be nil.
func NewFilter(reader HeaderReader, logger DebugLogger) *Filter {
	if reader == nil {
		reader = fits.KeywordReader{}
	}
	return &Filter{reader: reader, logger: logger}
}

// Matches reports whether the file's keyword matches target. A missing
// keyword is a non-match, not an error.
func (f *Filter) Matches(path, keyword string, target Target) (bool, error) {
	v, err := f.reader.ReadKeyword(path, keyword)
	if err != nil {
		return false, fmt.Errorf("read %s from %s: %w", keyword, path, err)
	}
	return target.Match(v), nil
}

// FilterPaths returns the subset of paths whose keyword matches value.
// Unreadable files are excluded.
func (f *Filter) FilterPaths(paths PathSet, keyword, value string) PathSet {
	target := ParseTarget(value)
	out := make(PathSet)
	for p := range paths {
		if f.check(p, keyword, target) {
			out.Add(p)
		}
	}
	return out
}

func (f *Filter) check(path, keyword string, target Target) bool {
	ok, err := f.Matches(path, keyword, target)
	if err != nil {
		if f.logger != nil {
			f.logger.LogDebug(fmt.Sprintf("excluding %s: %v", path, err))
		}
		return false
	}
	return ok
}
