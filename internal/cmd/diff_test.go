package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/regress/internal/fits/fitstest"
	"github.com/harrison/regress/internal/history"
)

// writeTree creates files under root from a map of relative path to content.
func writeTree(t *testing.T, root string, files map[string][]byte) string {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, content, 0644))
	}
	return root
}

func product(date, instrument string) []byte {
	return fitstest.Encode(fitstest.Primary([]byte{1, 2, 3},
		fitstest.Card{Keyword: "INSTRUME", Value: instrument},
		fitstest.Card{Keyword: "DATE", Value: date},
	))
}

func TestDiffCommand(t *testing.T) {
	tests := []struct {
		name  string
		right map[string][]byte
		want  string
	}{
		{
			name: "identical",
			right: map[string][]byte{
				"acs/j8bt06o6q_flt.fits": product("2026-10-01", "ACS"),
				"acs/j8bt06o6q.tra":      []byte("trailer"),
				"acs/j8bt06o6q.log":      []byte("log"),
			},
			want: "Regression PASSED! All files identical",
		},
		{
			name: "only logs differ",
			right: map[string][]byte{
				"acs/j8bt06o6q_flt.fits": product("2026-10-01", "ACS"),
				"acs/j8bt06o6q.tra":      []byte("trailer"),
				"acs/j8bt06o6q.log":      []byte("another log"),
			},
			want: "Regression LOOSELY PASSED!",
		},
		{
			name: "volatile keyword differs",
			right: map[string][]byte{
				"acs/j8bt06o6q_flt.fits": product("2026-10-16", "ACS"),
				"acs/j8bt06o6q.tra":      []byte("trailer"),
				"acs/j8bt06o6q.log":      []byte("log"),
			},
			want: "Regression PASSED! All data files identical",
		},
		{
			name: "data differs",
			right: map[string][]byte{
				"acs/j8bt06o6q_flt.fits": product("2026-10-01", "WFC3"),
				"acs/j8bt06o6q.tra":      []byte("trailer"),
				"acs/j8bt06o6q.log":      []byte("log"),
			},
			want: "Regression FAILED! 1 data file pair(s) differ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			left := writeTree(t, filepath.Join(base, "left"), map[string][]byte{
				"acs/j8bt06o6q_flt.fits": product("2026-10-01", "ACS"),
				"acs/j8bt06o6q.tra":      []byte("trailer"),
				"acs/j8bt06o6q.log":      []byte("log"),
			})
			right := writeTree(t, filepath.Join(base, "right"), tt.right)

			output, err := executeCommand(t, "diff", left, right, "--no-history")
			require.NoError(t, err, output)
			assert.Contains(t, output, tt.want)
			assert.Contains(t, output, "Time taken to diff")
		})
	}
}

func TestDiffCommand_ReportAndHistory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("REGRESS_HOME", home)

	base := t.TempDir()
	left := writeTree(t, filepath.Join(base, "left"), map[string][]byte{"a.log": []byte("x")})
	right := writeTree(t, filepath.Join(base, "right"), map[string][]byte{"a.log": []byte("y")})
	reportDir := filepath.Join(base, "reports")

	output, err := executeCommand(t, "diff", left, right, "--out", reportDir, "--html")
	require.NoError(t, err, output)

	assert.FileExists(t, filepath.Join(reportDir, "report.md"))
	assert.FileExists(t, filepath.Join(reportDir, "report.html"))

	store, err := history.NewStore(filepath.Join(home, "history.db"))
	require.NoError(t, err)
	defer store.Close()
	comparisons, err := store.ListComparisons(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, comparisons, 1)
	assert.Equal(t, "LOOSE PASS", comparisons[0].Verdict)
	assert.Empty(t, comparisons[0].RunID)
}

func TestDiffCommand_MissingTree(t *testing.T) {
	_, err := executeCommand(t, "diff", filepath.Join(t.TempDir(), "missing"), t.TempDir(), "--no-history")
	require.Error(t, err)
}
