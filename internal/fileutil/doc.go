// Package fileutil provides the file system plumbing of a regression run.
//
// # Scanning
//
// ScanDirectory walks a directory without following symbolic links and
// returns the absolute, sorted paths of regular files that pass the filters
// in ScanOptions:
//   - NameContains: substring match on the file name (e.g. "raw.fits")
//   - ExcludeDirs / SkipHidden: directories not descended into
//   - Recursive: descend below the top level
//
// Errors on individual entries are collected in ScanResult.Errors and the
// walk continues; only an inaccessible root is returned as an error.
//
// # Tree operations
//
// MakeOutputDir creates a run's output directory and its logs/ subdirectory,
// refusing to reuse an existing path unless told to ignore it. MoveTree and
// CleanTree relocate or delete generated products while IgnorePatterns keeps
// the raw inputs in place:
//
//	keepRaw := fileutil.IgnorePatterns("*raw.fits")
//	if err := fileutil.MoveTree(dataRoot, filepath.Join(outRoot, "results"), keepRaw); err != nil {
//	    return err
//	}
package fileutil
