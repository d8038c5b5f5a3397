package fileutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestMakeOutputDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")

	if err := MakeOutputDir(out, false); err != nil {
		t.Fatalf("MakeOutputDir() error = %v", err)
	}
	if info, err := os.Stat(filepath.Join(out, LogDirName)); err != nil || !info.IsDir() {
		t.Fatalf("expected logs directory, stat err = %v", err)
	}

	err := MakeOutputDir(out, false)
	if !errors.Is(err, fs.ErrExist) {
		t.Errorf("second MakeOutputDir() error = %v, want fs.ErrExist", err)
	}

	if err := MakeOutputDir(out, true); err != nil {
		t.Errorf("MakeOutputDir(ignoreExisting) error = %v", err)
	}
}

func TestIgnorePatterns(t *testing.T) {
	ignore := IgnorePatterns("*raw.fits", "*.keep")
	tests := map[string]bool{
		"j8c0_raw.fits": true,
		"j8c0_flt.fits": false,
		"a.keep":        true,
		"raw.fits.log":  false,
	}
	for name, want := range tests {
		if got := ignore(name); got != want {
			t.Errorf("ignore(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestMoveTree(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, []string{
		"acs/j8c0_raw.fits",
		"acs/j8c0_flt.fits",
		"acs/j8c0.tra",
		"stis/o8v2_raw.fits",
	})
	dst := filepath.Join(t.TempDir(), "results")

	if err := MoveTree(src, dst, IgnorePatterns("*raw.fits")); err != nil {
		t.Fatalf("MoveTree() error = %v", err)
	}

	for _, moved := range []string{"acs/j8c0_flt.fits", "acs/j8c0.tra"} {
		if _, err := os.Stat(filepath.Join(dst, moved)); err != nil {
			t.Errorf("expected %s in destination: %v", moved, err)
		}
		if _, err := os.Stat(filepath.Join(src, moved)); !os.IsNotExist(err) {
			t.Errorf("expected %s removed from source", moved)
		}
	}
	for _, kept := range []string{"acs/j8c0_raw.fits", "stis/o8v2_raw.fits"} {
		if _, err := os.Stat(filepath.Join(src, kept)); err != nil {
			t.Errorf("expected %s kept in source: %v", kept, err)
		}
	}
	if info, err := os.Stat(filepath.Join(dst, "stis")); err != nil || !info.IsDir() {
		t.Errorf("expected stis directory recreated in destination")
	}
}

func TestMoveTree_DestinationInsideSource(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, []string{"a_flt.fits"})
	dst := filepath.Join(src, "results")

	if err := MoveTree(src, dst, nil); err != nil {
		t.Fatalf("MoveTree() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "a_flt.fits")); err != nil {
		t.Errorf("expected file moved: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "results")); !os.IsNotExist(err) {
		t.Errorf("destination must not be nested into itself")
	}
}

func TestCleanTree(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, []string{
		"acs/j8c0_raw.fits",
		"acs/j8c0_flt.fits",
		"j8c0.tra",
	})

	if err := CleanTree(src, IgnorePatterns("*raw.fits")); err != nil {
		t.Fatalf("CleanTree() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(src, "acs/j8c0_raw.fits")); err != nil {
		t.Errorf("raw file should be kept: %v", err)
	}
	for _, gone := range []string{"acs/j8c0_flt.fits", "j8c0.tra"} {
		if _, err := os.Stat(filepath.Join(src, gone)); !os.IsNotExist(err) {
			t.Errorf("expected %s removed", gone)
		}
	}
}
