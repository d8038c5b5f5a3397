package report

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/regress/internal/compare"
	"github.com/harrison/regress/internal/fits"
	"github.com/harrison/regress/internal/models"
)

func sampleSummary() *models.RunSummary {
	return &models.RunSummary{
		RunID:      "6f1c",
		DataRoot:   "/data",
		OutputRoot: "/out",
		Workers:    4,
		Duration:   65 * time.Second,
		Total:      3,
		Passed:     2,
		Failed:     1,
		Categories: []models.CategorySummary{
			{Name: "acs", Executable: "calacs.e", Inputs: 2, Passed: 2},
			{Name: "stis", Executable: "calstis.e", Inputs: 1, Failed: 1},
		},
		Outcomes: []models.JobOutcome{
			{Category: "acs", InputPath: "/data/a_raw.fits", Status: models.StatusPassed},
			{Category: "acs", InputPath: "/data/b_raw.fits", Status: models.StatusPassed},
			{Category: "stis", InputPath: "/data/c|x_raw.fits", Status: models.StatusFailed, ExitCode: 2, LogPath: "/out/logs/c|x_raw.fits.log"},
		},
	}
}

func sampleComparison() *compare.Report {
	return &compare.Report{
		Left:     "/ref",
		Right:    "/out/results",
		Verdict:  compare.Fail,
		DeepDiff: true,
		Summary: compare.Summary{
			Counts:   compare.Counts{Differing: 2, RightOnly: 1},
			Suffixes: []string{".log", ".fits"},
			BySuffix: map[string]compare.Counts{".log": {Differing: 1}, ".fits": {Differing: 1, RightOnly: 1}},
		},
		Pairs: []compare.PairResult{
			{Left: "/ref/same.fits", Right: "/out/results/same.fits", Identical: true},
			{Left: "/ref/d.fits", Right: "/out/results/d.fits", Diff: &fits.DiffResult{
				Differences: []string{"HDU 0: keyword\nEXPTIME differs"},
			}},
		},
		FailingPairs: 1,
		Orphans:      []string{"/out/results/new.fits"},
	}
}

func TestRun(t *testing.T) {
	md := string(Run(sampleSummary(), nil))

	for _, want := range []string{
		"# Regression run 6f1c",
		"- Total time taken: 0hrs:1mins:5secs",
		"**2/3 tests completed**",
		"| acs | calacs.e | 2 | 2 | 0 |",
		"## Failed tests",
		`| stis | c\|x_raw.fits | FAILED | 2 | /out/logs/c\|x_raw.fits.log |`,
	} {
		assert.Contains(t, md, want)
	}
	assert.NotContains(t, md, "## Comparison")
}

func TestRun_AllPassed(t *testing.T) {
	summary := sampleSummary()
	summary.Outcomes = summary.Outcomes[:2]
	summary.Failed = 0
	assert.NotContains(t, string(Run(summary, nil)), "Failed tests")
}

func TestComparison(t *testing.T) {
	md := string(Run(sampleSummary(), sampleComparison()))

	for _, want := range []string{
		"## Comparison: FAIL",
		"- Reference: `/ref`",
		"| all | 2 | 0 | 1 |",
		"| .fits | 1 | 0 | 1 |",
		"### Differing data files",
		"- `/out/results/d.fits`",
		"  - HDU 0: keyword EXPTIME differs",
		"### Data files on one side only",
		"- `/out/results/new.fits`",
	} {
		assert.Contains(t, md, want)
	}
	assert.NotContains(t, md, "same.fits")
}

func TestComparison_LoosePassSkipsDetails(t *testing.T) {
	r := &compare.Report{Left: "/a", Right: "/b", Verdict: compare.LoosePass}
	md := string(Comparison(r))
	assert.Contains(t, md, "## Comparison: LOOSE PASS")
	assert.NotContains(t, md, "###")
}

func TestRenderHTML(t *testing.T) {
	page, err := RenderHTML("run <1>", Run(sampleSummary(), sampleComparison()))
	require.NoError(t, err)

	out := string(page)
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>run &lt;1&gt;</title>")
	assert.Contains(t, out, "<h1>Regression run 6f1c</h1>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>acs</td>")
	assert.Contains(t, out, "<code>/ref</code>")
}

func TestWriter(t *testing.T) {
	tests := []struct {
		name     string
		markdown bool
		html     bool
		want     []string
	}{
		{"markdown only", true, false, []string{"report.md"}},
		{"html only", false, true, []string{"report.html"}},
		{"both", true, true, []string{"report.md", "report.html"}},
		{"neither", false, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			w := &Writer{Dir: dir, Markdown: tt.markdown, HTML: tt.html}

			written, err := w.Write("run", Run(sampleSummary(), nil))
			require.NoError(t, err)

			var names []string
			for _, p := range written {
				names = append(names, filepath.Base(p))
				_, err := os.Stat(p)
				assert.NoError(t, err)
				assert.NoFileExists(t, p+".lock")
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestWriter_ConcurrentWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	bodies := [][]byte{
		Run(sampleSummary(), nil),
		[]byte("# Regression diff\n\nPASS\n"),
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := &Writer{Dir: dir, Markdown: true, HTML: true}
			_, errs[i] = w.Write("run", bodies[i%len(bodies)])
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "report.md"))
	require.NoError(t, err)
	assert.Contains(t, [][]byte{bodies[0], bodies[1]}, got)
	assert.FileExists(t, filepath.Join(dir, "report.html"))
	assert.NoFileExists(t, filepath.Join(dir, "report.md.lock"))
	assert.NoFileExists(t, filepath.Join(dir, "report.html.lock"))
}
