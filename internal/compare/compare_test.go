package compare

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/regress/internal/fits"
	"github.com/harrison/regress/internal/fits/fitstest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func writeFITS(t *testing.T, path, date string, data []byte) {
	t.Helper()
	fitstest.WriteFile(t, path, fitstest.Primary(data,
		fitstest.Card{Keyword: "INSTRUME", Value: "ACS"},
		fitstest.Card{Keyword: "DATE", Value: date}))
}

// populate writes a small output tree: products, logs and a trailer.
func populate(t *testing.T, root string) {
	t.Helper()
	writeFITS(t, filepath.Join(root, "acs", "j8bt06o6q_flt.fits"), "2024-01-01", []byte{1, 2, 3, 4})
	writeFITS(t, filepath.Join(root, "stis", "o4qp9g010_crj.fits"), "2024-01-01", []byte{9, 9})
	writeFile(t, filepath.Join(root, "acs", "j8bt06o6q.tra"), "trailer\n")
	writeFile(t, filepath.Join(root, "logs", "j8bt06o6q_raw.fits.log"), "return code:0\n")
}

type recorder struct{ lines []string }

func (r *recorder) LogInfo(message string) { r.lines = append(r.lines, message) }

func TestCompare_Reflexive(t *testing.T) {
	root := t.TempDir()
	populate(t, root)

	report, err := NewComparator(DefaultOptions(), nil).Compare(root, root)
	require.NoError(t, err)
	assert.Equal(t, Pass, report.Verdict)
	assert.Zero(t, report.Summary.Differing)
	assert.Zero(t, report.Summary.LeftOnly)
	assert.Zero(t, report.Summary.RightOnly)
	assert.False(t, report.DeepDiff)
}

func TestCompare_IdenticalCopies(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	populate(t, left)
	populate(t, right)

	report, err := NewComparator(DefaultOptions(), nil).Compare(left, right)
	require.NoError(t, err)
	assert.Equal(t, Pass, report.Verdict)
	assert.Equal(t, "PASS", report.Verdict.String())
}

func TestCompare_ExtraLogIsLoosePass(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	populate(t, left)
	populate(t, right)
	writeFile(t, filepath.Join(right, "extra.log"), "new\n")

	report, err := NewComparator(DefaultOptions(), nil).Compare(left, right)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.RightOnly)
	assert.Equal(t, 0, report.Summary.LeftOnly)
	assert.Equal(t, 0, report.Summary.Differing)
	assert.Equal(t, LoosePass, report.Verdict)
	assert.Equal(t, "LOOSE PASS", report.Verdict.String())
	assert.False(t, report.DeepDiff, "log-only differences skip the deep diff")
}

func TestCompare_DifferingLogIsLoosePass(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	populate(t, left)
	populate(t, right)
	writeFile(t, filepath.Join(right, "logs", "j8bt06o6q_raw.fits.log"), "return code:0\nelapsed 3s\n")

	report, err := NewComparator(DefaultOptions(), nil).Compare(left, right)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Differing)
	assert.Equal(t, 1, report.Summary.Suffix(".log").Differing)
	assert.Equal(t, LoosePass, report.Verdict)
}

func TestCompare_DateOnlyDifferenceIsIgnored(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	populate(t, left)
	populate(t, right)
	writeFITS(t, filepath.Join(right, "acs", "j8bt06o6q_flt.fits"), "2025-06-30", []byte{1, 2, 3, 4})

	logger := &recorder{}
	report, err := NewComparator(DefaultOptions(), logger).Compare(left, right)
	require.NoError(t, err)
	assert.True(t, report.DeepDiff)
	assert.Equal(t, 1, report.Summary.Suffix(".fits").Differing)
	assert.Equal(t, 0, report.FailingPairs)
	assert.Equal(t, Pass, report.Verdict)
	require.Len(t, report.Pairs, 2)
	assert.Contains(t, logger.lines[0], "are identical")
}

func TestCompare_DataDifferenceFails(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	populate(t, left)
	populate(t, right)
	writeFITS(t, filepath.Join(right, "stis", "o4qp9g010_crj.fits"), "2024-01-01", []byte{9, 8})
	writeFile(t, filepath.Join(right, "logs", "j8bt06o6q_raw.fits.log"), "changed\n")

	report, err := NewComparator(DefaultOptions(), nil).Compare(left, right)
	require.NoError(t, err)
	assert.Equal(t, Fail, report.Verdict)
	assert.Equal(t, 1, report.FailingPairs)
	assert.Equal(t, 2, report.Summary.Differing)

	// Children are compared before their parents, in name order.
	require.Len(t, report.Pairs, 2)
	assert.Equal(t, "j8bt06o6q_flt.fits", filepath.Base(report.Pairs[0].Left))
	assert.False(t, report.Pairs[1].Identical)
	require.NotNil(t, report.Pairs[1].Diff)
	assert.NotEmpty(t, report.Pairs[1].Diff.Differences)
}

func TestCompare_OrphanDataFileFails(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	populate(t, left)
	populate(t, right)
	require.NoError(t, os.Remove(filepath.Join(right, "acs", "j8bt06o6q_flt.fits")))

	report, err := NewComparator(DefaultOptions(), nil).Compare(left, right)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.LeftOnly)
	assert.Equal(t, Fail, report.Verdict)
	assert.Equal(t, []string{filepath.Join(left, "acs", "j8bt06o6q_flt.fits")}, report.Orphans)
}

func TestCompare_UnreadableDataFileIsPairError(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	populate(t, left)
	populate(t, right)
	writeFile(t, filepath.Join(right, "acs", "j8bt06o6q_flt.fits"), "not a fits file")

	report, err := NewComparator(DefaultOptions(), nil).Compare(left, right)
	require.Error(t, err)
	var pe *PairError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, filepath.Join(right, "acs", "j8bt06o6q_flt.fits"), pe.Right)
	require.NotNil(t, report)
	assert.Equal(t, Fail, report.Verdict)
}

func TestCompare_NegativeAxisIsPairError(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	for root, date := range map[string]string{left: "2024-01-01", right: "2024-02-01"} {
		fitstest.WriteFile(t, filepath.Join(root, "x_flt.fits"), fitstest.HDU{Cards: []fitstest.Card{
			{Keyword: "SIMPLE", Value: true},
			{Keyword: "BITPIX", Value: 8},
			{Keyword: "NAXIS", Value: 1},
			{Keyword: "NAXIS1", Value: -8},
			{Keyword: "DATE", Value: date},
		}})
	}

	report, err := NewComparator(DefaultOptions(), nil).Compare(left, right)
	require.Error(t, err)
	var pe *PairError
	require.True(t, errors.As(err, &pe))
	assert.ErrorIs(t, err, fits.ErrBadDataSize)
	require.NotNil(t, report)
}

func TestBuild_OneSidedDirectoryNotDescended(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(left, "only", "a.fits"), "x")
	writeFile(t, filepath.Join(left, "only", "b.log"), "x")
	writeFile(t, filepath.Join(left, "same.txt"), "x")
	writeFile(t, filepath.Join(right, "same.txt"), "x")

	node, err := Build(left, right)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, node.LeftOnly)
	assert.Empty(t, node.Subdirs)
	assert.Equal(t, []string{"same.txt"}, node.Identical)

	s := Summarize(node, ".fits", ".log")
	assert.Equal(t, 1, s.LeftOnly)
	assert.Zero(t, s.Suffix(".fits").LeftOnly)
}

func TestBuild_FileVersusDirectory(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(left, "x.fits"), "x")
	require.NoError(t, os.Mkdir(filepath.Join(right, "x.fits"), 0755))

	node, err := Build(left, right)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.fits"}, node.Differing)

	report, err := NewComparator(DefaultOptions(), nil).Compare(left, right)
	require.NoError(t, err)
	assert.Equal(t, Fail, report.Verdict)
	assert.Equal(t, 1, report.FailingPairs)
}

func TestBuild_MissingRoot(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "missing"), t.TempDir())
	assert.Error(t, err)
}

func TestSummarize_BottomUpBySuffix(t *testing.T) {
	node := &Node{
		Differing: []string{"a.log", "b.fits"},
		LeftOnly:  []string{"c.tra"},
		Subdirs: []*Node{
			{
				Differing: []string{"d.log"},
				RightOnly: []string{"e.fits", "f.log"},
				Subdirs: []*Node{
					{LeftOnly: []string{"g.fits"}},
				},
			},
		},
	}

	s := Summarize(node, ".log", ".tra", ".fits")
	assert.Equal(t, Counts{Differing: 3, LeftOnly: 2, RightOnly: 2}, s.Counts)
	assert.Equal(t, Counts{Differing: 2, RightOnly: 1}, s.Suffix(".log"))
	assert.Equal(t, Counts{LeftOnly: 1}, s.Suffix(".tra"))
	assert.Equal(t, Counts{Differing: 1, LeftOnly: 1, RightOnly: 1}, s.Suffix(".fits"))
	assert.Equal(t, 7, s.Total())
}

func TestSameContents(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, chunkSize*2+17)
	for i := range big {
		big[i] = byte(i)
	}
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, big, 0644))
	require.NoError(t, os.WriteFile(b, big, 0644))

	same, err := sameContents(a, b)
	require.NoError(t, err)
	assert.True(t, same)

	big[len(big)-1]++
	require.NoError(t, os.WriteFile(b, big, 0644))
	same, err = sameContents(a, b)
	require.NoError(t, err)
	assert.False(t, same)
}
