package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LogDirName is the per-run directory holding one log file per test.
const LogDirName = "logs"

// IgnoreFunc reports whether a file name is excluded from a tree operation.
type IgnoreFunc func(name string) bool

// IgnorePatterns returns an IgnoreFunc matching file names against shell
// glob patterns such as "*raw.fits". Malformed patterns match nothing.
func IgnorePatterns(patterns ...string) IgnoreFunc {
	return func(name string) bool {
		for _, p := range patterns {
			if ok, err := filepath.Match(p, name); err == nil && ok {
				return true
			}
		}
		return false
	}
}

// MakeOutputDir creates path and its logs/ subdirectory. An existing path is
// an error wrapping fs.ErrExist unless ignoreExisting is set, in which case
// the existing directory is left untouched.
func MakeOutputDir(path string, ignoreExisting bool) error {
	if err := os.Mkdir(path, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			if ignoreExisting {
				return nil
			}
			return fmt.Errorf("output path %q already exists, delete it or use another path: %w", path, fs.ErrExist)
		}
		if ignoreExisting {
			return nil
		}
		return fmt.Errorf("failed to create output path: %w", err)
	}

	if err := os.Mkdir(filepath.Join(path, LogDirName), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// MoveTree moves every file under src that is not ignored to the same
// relative location under dst, creating directories as needed. Directories
// are recreated even when all their files are ignored. dst may live inside
// src; it is skipped during the walk.
func MoveTree(src, dst string, ignore IgnoreFunc) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return err
	}

	var errs []error
	walkErr := filepath.WalkDir(absSrc, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}
		if path == absDst || strings.HasPrefix(path, absDst+string(filepath.Separator)) {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(absSrc, path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		target := filepath.Join(absDst, rel)

		if d.IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				errs = append(errs, err)
				return filepath.SkipDir
			}
			return nil
		}
		if ignore != nil && ignore(d.Name()) {
			return nil
		}
		if err := moveFile(path, target); err != nil {
			errs = append(errs, fmt.Errorf("move %s: %w", path, err))
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return errors.Join(errs...)
}

// CleanTree removes every file under src that is not ignored. Directories are
// kept. Failures are collected and the walk continues.
func CleanTree(src string, ignore IgnoreFunc) error {
	var errs []error
	walkErr := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if ignore != nil && ignore(d.Name()) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return errors.Join(errs...)
}

// moveFile renames src to dst, falling back to copy and delete when the
// rename crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
