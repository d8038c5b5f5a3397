package compare

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/harrison/regress/internal/fits"
)

// Verdict is the overall outcome of a tree comparison.
type Verdict int

const (
	// Pass means both trees hold the same names with the same contents, or
	// every compared data file is structurally identical.
	Pass Verdict = iota
	// LoosePass means the only differences are log files.
	LoosePass
	// Fail means at least one data file pair differs or a data file exists
	// on only one side.
	Fail
)

// String returns the string representation of Verdict.
func (v Verdict) String() string {
	switch v {
	case Pass:
		return "PASS"
	case LoosePass:
		return "LOOSE PASS"
	case Fail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Options configures a Comparator.
type Options struct {
	// LooseSuffix names files whose differences never fail a comparison.
	LooseSuffix string
	// DataExtension selects the common files that get a structural diff.
	DataExtension string
	// ReportSuffixes are the suffixes broken out in the summary.
	ReportSuffixes []string
	Diff           fits.DiffOptions
}

// DefaultOptions ignores log differences and diffs FITS files, ignoring DATE.
func DefaultOptions() Options {
	return Options{
		LooseSuffix:    ".log",
		DataExtension:  ".fits",
		ReportSuffixes: []string{".log", ".tra", ".fits"},
		Diff:           fits.DefaultDiffOptions(),
	}
}

// PairError means a common data file pair could not be compared at all.
type PairError struct {
	Left  string
	Right string
	Err   error
}

// Error implements the error interface for PairError.
func (e *PairError) Error() string {
	return fmt.Sprintf("cannot compare %q and %q: %v", e.Left, e.Right, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *PairError) Unwrap() error {
	return e.Err
}

// PairResult is the structural comparison of one common data file.
type PairResult struct {
	Left      string
	Right     string
	Identical bool
	// Diff is nil when the pair was decided without decoding, e.g. when the
	// bytes already matched or one side is a directory.
	Diff *fits.DiffResult
}

// Report is the outcome of Compare.
type Report struct {
	Left     string
	Right    string
	Tree     *Node
	Summary  Summary
	Verdict  Verdict
	DeepDiff bool // Whether structural comparison ran
	// Pairs lists every compared data file pair, children before parents.
	Pairs        []PairResult
	FailingPairs int
	// Orphans are data files present on only one side.
	Orphans  []string
	Duration time.Duration
}

// Logger receives per-pair progress lines.
type Logger interface {
	LogInfo(message string)
}

// Comparator compares output trees.
type Comparator struct {
	opts   Options
	logger Logger
}

// NewComparator creates a Comparator. The logger parameter is optional and
// can be nil.
func NewComparator(opts Options, logger Logger) *Comparator {
	if opts.LooseSuffix == "" {
		opts.LooseSuffix = ".log"
	}
	if opts.DataExtension == "" {
		opts.DataExtension = ".fits"
	}
	return &Comparator{opts: opts, logger: logger}
}

// Compare builds the comparison of left and right and decides the verdict.
// A data file pair that cannot be decoded aborts the comparison with a
// *PairError; the partial report is returned alongside it.
func (c *Comparator) Compare(left, right string) (*Report, error) {
	start := time.Now()
	tree, err := Build(left, right)
	if err != nil {
		return nil, err
	}

	suffixes := c.opts.ReportSuffixes
	if !slices.Contains(suffixes, c.opts.LooseSuffix) {
		suffixes = append(append([]string(nil), suffixes...), c.opts.LooseSuffix)
	}
	report := &Report{
		Left:    left,
		Right:   right,
		Tree:    tree,
		Summary: Summarize(tree, suffixes...),
	}
	defer func() { report.Duration = time.Since(start) }()

	total := report.Summary.Total()
	loose := report.Summary.Suffix(c.opts.LooseSuffix).Total()
	switch {
	case total == 0:
		report.Verdict = Pass
		return report, nil
	case total == loose:
		report.Verdict = LoosePass
		return report, nil
	}

	report.DeepDiff = true
	report.Orphans = c.orphans(tree)
	if err := c.deepDiff(tree, report); err != nil {
		report.Verdict = Fail
		return report, err
	}

	if report.FailingPairs > 0 || len(report.Orphans) > 0 {
		report.Verdict = Fail
	} else {
		report.Verdict = Pass
	}
	return report, nil
}

// deepDiff compares every common data file, children first.
func (c *Comparator) deepDiff(node *Node, report *Report) error {
	for _, child := range node.Subdirs {
		if err := c.deepDiff(child, report); err != nil {
			return err
		}
	}

	differing := make(map[string]bool, len(node.Differing))
	for _, name := range node.Differing {
		differing[name] = true
	}

	names := append(append([]string(nil), node.Differing...), node.Identical...)
	sort.Strings(names)
	for _, name := range names {
		if !strings.HasSuffix(name, c.opts.DataExtension) {
			continue
		}
		a := filepath.Join(node.Left, name)
		b := filepath.Join(node.Right, name)

		pair := PairResult{Left: a, Right: b}
		switch {
		case !differing[name]:
			pair.Identical = true
		case isDir(a) || isDir(b):
			pair.Identical = false
		default:
			diff, err := fits.Diff(a, b, c.opts.Diff)
			if err != nil {
				return &PairError{Left: a, Right: b, Err: err}
			}
			pair.Diff = diff
			pair.Identical = diff.Identical
		}

		if pair.Identical {
			c.info(fmt.Sprintf("%q & %q are identical", a, b))
		} else {
			report.FailingPairs++
			c.info(fmt.Sprintf("%q & %q differ", a, b))
		}
		report.Pairs = append(report.Pairs, pair)
	}
	return nil
}

func (c *Comparator) orphans(node *Node) []string {
	var out []string
	for _, name := range node.LeftOnly {
		if strings.HasSuffix(name, c.opts.DataExtension) {
			out = append(out, filepath.Join(node.Left, name))
		}
	}
	for _, name := range node.RightOnly {
		if strings.HasSuffix(name, c.opts.DataExtension) {
			out = append(out, filepath.Join(node.Right, name))
		}
	}
	for _, child := range node.Subdirs {
		out = append(out, c.orphans(child)...)
	}
	return out
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (c *Comparator) info(message string) {
	if c.logger != nil {
		c.logger.LogInfo(message)
	}
}
