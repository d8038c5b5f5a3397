package fits

import (
	"bytes"
	"fmt"
	"strings"
)

// DiffOptions configures a structural comparison.
type DiffOptions struct {
	// IgnoreKeywords are header keywords excluded from comparison, such as DATE.
	IgnoreKeywords []string
	// IgnoreBlankCards skips entirely blank header cards.
	IgnoreBlankCards bool
	// MaxReported caps the number of difference descriptions kept (0 = no cap).
	// Identical is always computed over every difference.
	MaxReported int
}

// DefaultDiffOptions ignores the file generation date and blank cards.
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{
		IgnoreKeywords:   []string{"DATE"},
		IgnoreBlankCards: true,
		MaxReported:      50,
	}
}

// DiffResult is the outcome of comparing two files.
type DiffResult struct {
	Left        string
	Right       string
	Identical   bool
	Total       int
	Differences []string
}

// Diff reads both files and compares them. Read failures are returned as
// errors so callers can tell "cannot compare" from "differs".
func Diff(leftPath, rightPath string, opts DiffOptions) (*DiffResult, error) {
	left, err := Open(leftPath, ReadOptions{IgnoreMissingEnd: true})
	if err != nil {
		return nil, err
	}
	right, err := Open(rightPath, ReadOptions{IgnoreMissingEnd: true})
	if err != nil {
		return nil, err
	}
	result := DiffFiles(left, right, opts)
	result.Left = leftPath
	result.Right = rightPath
	return result, nil
}

// DiffFiles compares two decoded files HDU by HDU. Header values outside the
// ignore list and every data byte must match exactly.
func DiffFiles(left, right *File, opts DiffOptions) *DiffResult {
	d := &differ{opts: opts, ignore: make(map[string]bool, len(opts.IgnoreKeywords))}
	for _, kw := range opts.IgnoreKeywords {
		d.ignore[strings.ToUpper(strings.TrimSpace(kw))] = true
	}

	if len(left.HDUs) != len(right.HDUs) {
		d.add("HDU count differs: %d vs %d", len(left.HDUs), len(right.HDUs))
	}

	n := min(len(left.HDUs), len(right.HDUs))
	for i := 0; i < n; i++ {
		d.compareHeaders(i, left.HDUs[i].Header, right.HDUs[i].Header)
		d.compareData(i, left.HDUs[i].Data, right.HDUs[i].Data)
	}

	return &DiffResult{
		Identical:   d.total == 0,
		Total:       d.total,
		Differences: d.reported,
	}
}

type differ struct {
	opts     DiffOptions
	ignore   map[string]bool
	total    int
	reported []string
}

func (d *differ) add(format string, args ...any) {
	d.total++
	if d.opts.MaxReported > 0 && len(d.reported) >= d.opts.MaxReported {
		return
	}
	d.reported = append(d.reported, fmt.Sprintf(format, args...))
}

// comparable returns the cards that take part in comparison, grouped by keyword
// in order of appearance.
func (d *differ) comparable(h *Header) (map[string][]Card, []string) {
	byKeyword := make(map[string][]Card)
	var order []string
	for _, c := range h.Cards() {
		if d.ignore[c.Keyword] {
			continue
		}
		if d.opts.IgnoreBlankCards && c.IsBlank() {
			continue
		}
		if _, seen := byKeyword[c.Keyword]; !seen {
			order = append(order, c.Keyword)
		}
		byKeyword[c.Keyword] = append(byKeyword[c.Keyword], c)
	}
	return byKeyword, order
}

func (d *differ) compareHeaders(hdu int, left, right *Header) {
	lcards, lorder := d.comparable(left)
	rcards, rorder := d.comparable(right)

	for _, kw := range lorder {
		rs, ok := rcards[kw]
		if !ok {
			d.add("HDU %d: keyword %s only in left", hdu, kw)
			continue
		}
		ls := lcards[kw]
		if len(ls) != len(rs) {
			d.add("HDU %d: keyword %s appears %d vs %d times", hdu, kw, len(ls), len(rs))
		}
		for i := 0; i < min(len(ls), len(rs)); i++ {
			if !cardsEqual(ls[i], rs[i]) {
				d.add("HDU %d: keyword %s[%d] differs: %s vs %s", hdu, kw, i, describe(ls[i]), describe(rs[i]))
			}
		}
	}
	for _, kw := range rorder {
		if _, ok := lcards[kw]; !ok {
			d.add("HDU %d: keyword %s only in right", hdu, kw)
		}
	}
}

func cardsEqual(a, b Card) bool {
	if a.Value.IsAbsent() && b.Value.IsAbsent() {
		return a.Text == b.Text
	}
	return a.Value.Equal(b.Value)
}

func describe(c Card) string {
	if c.Value.IsAbsent() {
		return fmt.Sprintf("%q", c.Text)
	}
	return c.Value.String()
}

func (d *differ) compareData(hdu int, left, right []byte) {
	if bytes.Equal(left, right) {
		return
	}
	if len(left) != len(right) {
		d.add("HDU %d: data size differs: %d vs %d bytes", hdu, len(left), len(right))
		return
	}
	differing := 0
	first := -1
	for i := range left {
		if left[i] != right[i] {
			if first < 0 {
				first = i
			}
			differing++
		}
	}
	d.add("HDU %d: %d data byte(s) differ, first at offset %d", hdu, differing, first)
}
