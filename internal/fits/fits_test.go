package fits_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/regress/internal/fits"
	"github.com/harrison/regress/internal/fits/fitstest"
)

func TestReadPrimaryHeader_Values(t *testing.T) {
	path := fitstest.WriteFile(t, filepath.Join(t.TempDir(), "j8c0_raw.fits"),
		fitstest.Primary(nil,
			fitstest.Card{Keyword: "INSTRUME", Value: "ACS", Comment: "instrument"},
			fitstest.Card{Keyword: "PCTECORR", Value: "PERFORM"},
			fitstest.Card{Keyword: "EXPTIME", Value: 12.5},
			fitstest.Card{Keyword: "CRSPLIT", Value: 2},
			fitstest.Card{Keyword: "SUBARRAY", Value: false},
			fitstest.Card{Keyword: "OBSERVER", Value: "O'Neil"},
			fitstest.Card{Keyword: "COMMENT", Comment: "processed by test"},
		))

	h, err := fits.ReadPrimaryHeader(path)
	require.NoError(t, err)

	text, ok := h.Get("instrume").AsText()
	require.True(t, ok)
	assert.Equal(t, "ACS", text)

	b, ok := h.Get("SUBARRAY").AsBool()
	require.True(t, ok)
	assert.False(t, b)

	simple, ok := h.Get("SIMPLE").AsBool()
	require.True(t, ok)
	assert.True(t, simple)

	f, ok := h.Get("EXPTIME").AsFloat()
	require.True(t, ok)
	assert.Equal(t, 12.5, f)

	n, ok := h.Get("CRSPLIT").AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(2), n)

	observer, _ := h.Get("OBSERVER").AsText()
	assert.Equal(t, "O'Neil", observer)

	assert.True(t, h.Get("FILTER1").IsAbsent())
	assert.True(t, h.Get("COMMENT").IsAbsent())
	assert.True(t, h.Has("COMMENT"))
}

func TestReadPrimaryHeader_MissingEnd(t *testing.T) {
	hdu := fitstest.Primary(nil, fitstest.Card{Keyword: "INSTRUME", Value: "STIS"})
	hdu.OmitEnd = true
	path := fitstest.WriteFile(t, filepath.Join(t.TempDir(), "noend_raw.fits"), hdu)

	h, err := fits.ReadPrimaryHeader(path)
	require.NoError(t, err)
	text, _ := h.Get("INSTRUME").AsText()
	assert.Equal(t, "STIS", text)

	_, err = fits.Open(path, fits.ReadOptions{})
	assert.ErrorIs(t, err, fits.ErrMissingEnd)

	file, err := fits.Open(path, fits.ReadOptions{IgnoreMissingEnd: true})
	require.NoError(t, err)
	assert.Len(t, file.HDUs, 1)
}

func TestReadPrimaryHeader_NotFITS(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage_raw.fits")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not a fits file"), 0644))
	_, err := fits.ReadPrimaryHeader(garbage)
	assert.True(t, errors.Is(err, fits.ErrNotFITS))

	empty := filepath.Join(dir, "empty_raw.fits")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = fits.ReadPrimaryHeader(empty)
	assert.True(t, errors.Is(err, fits.ErrNotFITS))

	_, err = fits.ReadPrimaryHeader(filepath.Join(dir, "missing.fits"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestKeywordReader(t *testing.T) {
	path := fitstest.WriteFile(t, filepath.Join(t.TempDir(), "a_raw.fits"),
		fitstest.Primary(nil, fitstest.Card{Keyword: "INSTRUME", Value: "WFC3"}))

	v, err := fits.KeywordReader{}.ReadKeyword(path, "INSTRUME")
	require.NoError(t, err)
	assert.Equal(t, fits.KindText, v.Kind())

	v, err = fits.KeywordReader{}.ReadKeyword(path, "NOPE")
	require.NoError(t, err)
	assert.Equal(t, fits.KindAbsent, v.Kind())
}

func TestOpen_MultipleHDUs(t *testing.T) {
	path := fitstest.WriteFile(t, filepath.Join(t.TempDir(), "flt.fits"),
		fitstest.Primary(nil, fitstest.Card{Keyword: "DATE", Value: "2024-01-01"}),
		fitstest.Image([]byte{1, 2, 3, 4}, fitstest.Card{Keyword: "EXTNAME", Value: "SCI"}),
		fitstest.Image([]byte{5, 6}, fitstest.Card{Keyword: "EXTNAME", Value: "ERR"}),
	)

	file, err := fits.Open(path, fits.ReadOptions{})
	require.NoError(t, err)
	require.Len(t, file.HDUs, 3)
	assert.Empty(t, file.HDUs[0].Data)
	assert.Equal(t, []byte{1, 2, 3, 4}, file.HDUs[1].Data)
	assert.Equal(t, []byte{5, 6}, file.HDUs[2].Data)

	name, _ := file.HDUs[2].Header.Get("EXTNAME").AsText()
	assert.Equal(t, "ERR", name)
}

func TestOpen_BadDataSize(t *testing.T) {
	sized := func(cards ...fitstest.Card) fitstest.HDU {
		base := []fitstest.Card{
			{Keyword: "SIMPLE", Value: true},
			{Keyword: "BITPIX", Value: 8},
			{Keyword: "NAXIS", Value: 1},
		}
		return fitstest.HDU{Cards: append(base, cards...)}
	}

	tests := []struct {
		name string
		hdu  fitstest.HDU
		want error
	}{
		{name: "negative axis", hdu: sized(fitstest.Card{Keyword: "NAXIS1", Value: -8}), want: fits.ErrBadDataSize},
		{
			name: "overflowing axes",
			hdu: fitstest.HDU{Cards: []fitstest.Card{
				{Keyword: "SIMPLE", Value: true},
				{Keyword: "BITPIX", Value: -64},
				{Keyword: "NAXIS", Value: 2},
				{Keyword: "NAXIS1", Value: int64(1) << 40},
				{Keyword: "NAXIS2", Value: int64(1) << 40},
			}},
			want: fits.ErrBadDataSize,
		},
		{name: "negative gcount", hdu: sized(fitstest.Card{Keyword: "NAXIS1", Value: 4}, fitstest.Card{Keyword: "GCOUNT", Value: -1}), want: fits.ErrBadDataSize},
		{
			name: "bad bitpix",
			hdu: fitstest.HDU{Cards: []fitstest.Card{
				{Keyword: "SIMPLE", Value: true},
				{Keyword: "BITPIX", Value: 12},
				{Keyword: "NAXIS", Value: 0},
			}},
			want: fits.ErrBadDataSize,
		},
		{name: "axis larger than the file", hdu: sized(fitstest.Card{Keyword: "NAXIS1", Value: int64(1) << 50}), want: io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := fitstest.WriteFile(t, filepath.Join(t.TempDir(), "x_flt.fits"), tt.hdu)

			_, err := fits.Open(path, fits.ReadOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b fits.Value
		want bool
	}{
		{"same text", fits.Text("ACS"), fits.Text("ACS"), true},
		{"different text", fits.Text("ACS"), fits.Text("acs"), false},
		{"numeric forms", fits.Text("1.0"), fits.Text("1.00E0"), true},
		{"fortran exponent", fits.Text("1.5D2"), fits.Text("150"), true},
		{"numeric differ", fits.Text("1.0"), fits.Text("1.0000001"), false},
		{"bools", fits.Bool(true), fits.Bool(true), true},
		{"bool vs text", fits.Bool(true), fits.Text("T"), false},
		{"absent", fits.Absent(), fits.Absent(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestDiff(t *testing.T) {
	dir := t.TempDir()
	base := func(date string, data []byte, extra ...fitstest.Card) []fitstest.HDU {
		cards := append([]fitstest.Card{
			{Keyword: "DATE", Value: date},
			{Keyword: "INSTRUME", Value: "ACS"},
		}, extra...)
		return []fitstest.HDU{fitstest.Primary(nil, cards...), fitstest.Image(data)}
	}

	left := fitstest.WriteFile(t, filepath.Join(dir, "left.fits"), base("2024-01-01", []byte{1, 2, 3})...)
	sameButDate := fitstest.WriteFile(t, filepath.Join(dir, "date.fits"), base("2025-06-30", []byte{1, 2, 3})...)
	dataChanged := fitstest.WriteFile(t, filepath.Join(dir, "data.fits"), base("2024-01-01", []byte{1, 9, 3})...)
	keywordAdded := fitstest.WriteFile(t, filepath.Join(dir, "kw.fits"),
		base("2024-01-01", []byte{1, 2, 3}, fitstest.Card{Keyword: "FLASHCOR", Value: "COMPLETE"})...)
	fewerHDUs := fitstest.WriteFile(t, filepath.Join(dir, "short.fits"),
		fitstest.Primary(nil, fitstest.Card{Keyword: "DATE", Value: "2024-01-01"}, fitstest.Card{Keyword: "INSTRUME", Value: "ACS"}))

	opts := fits.DefaultDiffOptions()

	res, err := fits.Diff(left, sameButDate, opts)
	require.NoError(t, err)
	assert.True(t, res.Identical, "DATE is ignored: %v", res.Differences)

	res, err = fits.Diff(left, sameButDate, fits.DiffOptions{})
	require.NoError(t, err)
	assert.False(t, res.Identical)

	res, err = fits.Diff(left, dataChanged, opts)
	require.NoError(t, err)
	assert.False(t, res.Identical)
	require.Len(t, res.Differences, 1)
	assert.Contains(t, res.Differences[0], "first at offset 1")

	res, err = fits.Diff(left, keywordAdded, opts)
	require.NoError(t, err)
	assert.False(t, res.Identical)
	assert.Contains(t, res.Differences[0], "FLASHCOR only in right")

	res, err = fits.Diff(left, fewerHDUs, opts)
	require.NoError(t, err)
	assert.False(t, res.Identical)

	_, err = fits.Diff(left, filepath.Join(dir, "missing.fits"), opts)
	assert.Error(t, err)
}

func TestDiff_MaxReported(t *testing.T) {
	dir := t.TempDir()
	var lcards, rcards []fitstest.Card
	for _, kw := range []string{"A1", "A2", "A3", "A4"} {
		lcards = append(lcards, fitstest.Card{Keyword: kw, Value: 1})
		rcards = append(rcards, fitstest.Card{Keyword: kw, Value: 2})
	}
	left := fitstest.WriteFile(t, filepath.Join(dir, "l.fits"), fitstest.Primary(nil, lcards...))
	right := fitstest.WriteFile(t, filepath.Join(dir, "r.fits"), fitstest.Primary(nil, rcards...))

	res, err := fits.Diff(left, right, fits.DiffOptions{MaxReported: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Len(t, res.Differences, 2)
}
