package logger

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/harrison/regress/internal/compare"
	"github.com/harrison/regress/internal/models"
)

// colorScheme defines consistent colors for summary output.
// Green: passes, Red: failures, Yellow: loose passes, Cyan: labels.
type colorScheme struct {
	header  *color.Color
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
}

// newColorScheme creates the standard color scheme. With enabled false every
// color prints plain text.
func newColorScheme(enabled bool) *colorScheme {
	s := &colorScheme{
		header:  color.New(color.Bold),
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{s.header, s.success, s.fail, s.warn, s.label} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

// formatColorizedStatus colors a job status.
func formatColorizedStatus(status string) string {
	switch status {
	case models.StatusPassed:
		return color.New(color.FgGreen).Sprint(status)
	case models.StatusFailed:
		return color.New(color.FgRed).Sprint(status)
	case models.StatusError:
		return color.New(color.FgRed, color.Bold).Sprint(status)
	default:
		return status
	}
}

// formatCategoryLine renders "<name> (<exe>): <passed>/<inputs> passed".
func formatCategoryLine(c models.CategorySummary, scheme *colorScheme) string {
	counts := fmt.Sprintf("%d/%d passed", c.Passed, c.Inputs)
	if c.Failed > 0 {
		counts = scheme.fail.Sprint(counts)
	} else {
		counts = scheme.success.Sprint(counts)
	}
	return fmt.Sprintf("%s (%s): %s", scheme.label.Sprint(c.Name), c.Executable, counts)
}

// formatPassRatio renders "<passed>/<total> tests completed".
func formatPassRatio(passed, total int, scheme *colorScheme) string {
	text := fmt.Sprintf("%d/%d tests completed", passed, total)
	if passed == total {
		return scheme.success.Sprint(text)
	}
	return scheme.warn.Sprint(text)
}

// formatColorizedVerdict renders the verdict sentence of a comparison.
func formatColorizedVerdict(report *compare.Report, scheme *colorScheme) string {
	switch report.Verdict {
	case compare.Pass:
		if report.DeepDiff {
			return scheme.success.Sprint("Regression PASSED! All data files identical (ignoring volatile keywords)")
		}
		return scheme.success.Sprint("Regression PASSED! All files identical")
	case compare.LoosePass:
		return scheme.warn.Sprint("Regression LOOSELY PASSED! Only log files differ")
	default:
		return scheme.fail.Sprintf("Regression FAILED! %d data file pair(s) differ, %d data file(s) on one side only",
			report.FailingPairs, len(report.Orphans))
	}
}
