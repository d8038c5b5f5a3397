package selection

import (
	"fmt"

	"github.com/harrison/regress/internal/fileutil"
)

// DefaultSuffix selects raw input datasets.
const DefaultSuffix = "raw.fits"

// Discoverer finds data files under a root directory and keeps those whose
// header matches a keyword predicate.
type Discoverer struct {
	filter *Filter
}

// NewDiscoverer creates a Discoverer on top of filter.
func NewDiscoverer(filter *Filter) *Discoverer {
	return &Discoverer{filter: filter}
}

// Filter returns the underlying keyword filter.
func (d *Discoverer) Filter() *Filter {
	return d.filter
}

// Discover walks root without following symbolic links, visits every regular
// file whose name contains suffix and returns those matching keyword=value.
// An empty result is not an error; an unreadable root is.
func (d *Discoverer) Discover(root, suffix, keyword, value string) (PathSet, error) {
	candidates, err := d.Candidates(root, suffix)
	if err != nil {
		return nil, err
	}

	target := ParseTarget(value)
	found := make(PathSet)
	for _, path := range candidates {
		if d.filter.check(path, keyword, target) {
			found.Add(path)
		}
	}
	return found, nil
}

// Candidates lists the files under root whose name contains suffix. Hidden
// directories and run log directories are not descended into.
func (d *Discoverer) Candidates(root, suffix string) ([]string, error) {
	result, err := fileutil.ScanDirectory(root, fileutil.ScanOptions{
		NameContains: suffix,
		Recursive:    true,
		SkipHidden:   true,
		ExcludeDirs:  []string{fileutil.LogDirName},
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s under %s: %w", suffix, root, err)
	}
	if d.filter.logger != nil {
		for _, scanErr := range result.Errors {
			d.filter.logger.LogDebug(scanErr.Error())
		}
	}
	return result.Files, nil
}
