// Package report renders regression runs and tree comparisons as Markdown
// and, optionally, HTML documents written next to the run output.
package report

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/regress/internal/compare"
	"github.com/harrison/regress/internal/filelock"
	"github.com/harrison/regress/internal/logger"
	"github.com/harrison/regress/internal/models"
)

// FileName is the base name of written reports.
const FileName = "report"

// Run renders a run summary, followed by the comparison when one ran.
func Run(summary *models.RunSummary, comparison *compare.Report) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# Regression run %s\n\n", summary.RunID)
	fmt.Fprintf(&b, "- Data root: `%s`\n", summary.DataRoot)
	fmt.Fprintf(&b, "- Output root: `%s`\n", summary.OutputRoot)
	if !summary.StartedAt.IsZero() {
		fmt.Fprintf(&b, "- Started: %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&b, "- Workers: %d\n", summary.Workers)
	fmt.Fprintf(&b, "- Total time taken: %s\n", logger.FormatElapsed(summary.Duration))
	fmt.Fprintf(&b, "- Result: **%d/%d tests completed**\n\n", summary.Passed, summary.Total)

	b.WriteString("## Categories\n\n")
	b.WriteString("| Category | Program | Inputs | Passed | Failed |\n")
	b.WriteString("|---|---|---:|---:|---:|\n")
	for _, c := range summary.Categories {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d |\n",
			cell(c.Name), cell(c.Executable), c.Inputs, c.Passed, c.Failed)
	}
	b.WriteString("\n")

	failed := summary.FailedOutcomes()
	if len(failed) > 0 {
		b.WriteString("## Failed tests\n\n")
		b.WriteString("| Category | Input | Status | Exit | Log |\n")
		b.WriteString("|---|---|---|---:|---|\n")
		for _, o := range failed {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %s |\n",
				cell(o.Category), cell(filepath.Base(o.InputPath)), o.Status, o.ExitCode, cell(o.LogPath))
		}
		b.WriteString("\n")
	}

	if comparison != nil {
		b.Write(Comparison(comparison))
	}
	return b.Bytes()
}

// Comparison renders a tree comparison.
func Comparison(r *compare.Report) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "## Comparison: %s\n\n", r.Verdict)
	fmt.Fprintf(&b, "- Reference: `%s`\n", r.Left)
	fmt.Fprintf(&b, "- Candidate: `%s`\n", r.Right)
	fmt.Fprintf(&b, "- Time taken to diff: %s\n\n", logger.FormatElapsed(r.Duration))

	b.WriteString("| Suffix | Differing | Orphaned | Newly generated |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| all | %d | %d | %d |\n", r.Summary.Differing, r.Summary.LeftOnly, r.Summary.RightOnly)
	for _, suffix := range r.Summary.Suffixes {
		c := r.Summary.Suffix(suffix)
		fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", cell(suffix), c.Differing, c.LeftOnly, c.RightOnly)
	}
	b.WriteString("\n")

	if r.DeepDiff {
		var differing []compare.PairResult
		for _, p := range r.Pairs {
			if !p.Identical {
				differing = append(differing, p)
			}
		}
		if len(differing) > 0 {
			b.WriteString("### Differing data files\n\n")
			for _, p := range differing {
				fmt.Fprintf(&b, "- `%s`\n", p.Right)
				if p.Diff == nil {
					continue
				}
				for _, d := range p.Diff.Differences {
					fmt.Fprintf(&b, "  - %s\n", inline(d))
				}
			}
			b.WriteString("\n")
		}
		if len(r.Orphans) > 0 {
			b.WriteString("### Data files on one side only\n\n")
			for _, o := range r.Orphans {
				fmt.Fprintf(&b, "- `%s`\n", o)
			}
			b.WriteString("\n")
		}
	}
	return b.Bytes()
}

// RenderHTML converts Markdown into a standalone HTML page.
func RenderHTML(title string, markdown []byte) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert(markdown, &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(title))
	page.WriteString("<style>body{font-family:sans-serif;margin:2em}table{border-collapse:collapse}" +
		"td,th{border:1px solid #ccc;padding:4px 8px}</style>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// Writer writes reports into a directory.
type Writer struct {
	Dir      string
	Markdown bool
	HTML     bool
}

// Write stores the Markdown document and its HTML rendering as enabled and
// returns the written paths.
func (w *Writer) Write(title string, markdown []byte) ([]string, error) {
	var written []string
	if w.Markdown {
		path := filepath.Join(w.Dir, FileName+".md")
		if err := filelock.LockAndWrite(path, markdown); err != nil {
			return written, fmt.Errorf("write markdown report: %w", err)
		}
		written = append(written, path)
	}
	if w.HTML {
		page, err := RenderHTML(title, markdown)
		if err != nil {
			return written, err
		}
		path := filepath.Join(w.Dir, FileName+".html")
		if err := filelock.LockAndWrite(path, page); err != nil {
			return written, fmt.Errorf("write html report: %w", err)
		}
		written = append(written, path)
	}
	return written, nil
}

// cell escapes text for a Markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(inline(s), "|", `\|`)
}

// inline keeps text on one line.
func inline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
