// Package compare compares two output trees and decides whether a regression
// run reproduced its reference.
//
// The comparison has two phases. Build walks both trees once and classifies
// every name as a common file (identical or differing by content), a common
// subdirectory, or an entry present on only one side. Compare then applies
// the verdict policy: no differences is a PASS, differences confined to log
// files is a LOOSE PASS, and anything else triggers a header-and-data diff
// of the common FITS files.
package compare

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// chunkSize is the read size used when comparing file contents.
const chunkSize = 64 * 1024

// Node is the comparison of one directory pair. Name lists are sorted and
// hold base names relative to Left and Right.
type Node struct {
	Left  string
	Right string

	Identical []string // Common files with equal contents
	Differing []string // Common files whose contents (or kinds) differ
	LeftOnly  []string // Entries only under Left, files or directories
	RightOnly []string // Entries only under Right, files or directories

	// Subdirs holds one node per directory present on both sides, sorted
	// by name.
	Subdirs []*Node

	// Unreadable lists common files that could not be read; they are also
	// counted as differing.
	Unreadable []error
}

// Name returns the base name of the directory pair.
func (n *Node) Name() string {
	return filepath.Base(n.Left)
}

// Build compares left and right recursively. Directories present on only one
// side are reported at their level and not descended into. It fails only if
// either root cannot be listed.
func Build(left, right string) (*Node, error) {
	for _, root := range []string{left, right} {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("the path %q given to diff does not exist: %w", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("the path %q given to diff is not a directory", root)
		}
	}
	return build(left, right)
}

type entry struct {
	name  string
	isDir bool
}

func listDir(dir string) (map[string]entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	entries := make(map[string]entry, len(des))
	for _, de := range des {
		isDir := de.IsDir()
		if de.Type()&os.ModeSymlink != 0 {
			// Follow links the way stat would.
			if info, err := os.Stat(filepath.Join(dir, de.Name())); err == nil {
				isDir = info.IsDir()
			}
		}
		entries[de.Name()] = entry{name: de.Name(), isDir: isDir}
	}
	return entries, nil
}

func build(left, right string) (*Node, error) {
	leftEntries, err := listDir(left)
	if err != nil {
		return nil, err
	}
	rightEntries, err := listDir(right)
	if err != nil {
		return nil, err
	}

	node := &Node{Left: left, Right: right}
	var subdirs []string
	for name, l := range leftEntries {
		r, ok := rightEntries[name]
		if !ok {
			node.LeftOnly = append(node.LeftOnly, name)
			continue
		}
		switch {
		case l.isDir && r.isDir:
			subdirs = append(subdirs, name)
		case l.isDir != r.isDir:
			node.Differing = append(node.Differing, name)
		default:
			same, err := sameContents(filepath.Join(left, name), filepath.Join(right, name))
			switch {
			case err != nil:
				node.Unreadable = append(node.Unreadable, err)
				node.Differing = append(node.Differing, name)
			case same:
				node.Identical = append(node.Identical, name)
			default:
				node.Differing = append(node.Differing, name)
			}
		}
	}
	for name := range rightEntries {
		if _, ok := leftEntries[name]; !ok {
			node.RightOnly = append(node.RightOnly, name)
		}
	}

	sort.Strings(node.Identical)
	sort.Strings(node.Differing)
	sort.Strings(node.LeftOnly)
	sort.Strings(node.RightOnly)
	sort.Strings(subdirs)

	for _, name := range subdirs {
		child, err := build(filepath.Join(left, name), filepath.Join(right, name))
		if err != nil {
			return nil, err
		}
		node.Subdirs = append(node.Subdirs, child)
	}
	return node, nil
}

// sameContents reports whether two regular files hold the same bytes.
func sameContents(a, b string) (bool, error) {
	ia, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}

	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	bufA := make([]byte, chunkSize)
	bufB := make([]byte, chunkSize)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		doneA := errA == io.EOF || errA == io.ErrUnexpectedEOF
		doneB := errB == io.EOF || errB == io.ErrUnexpectedEOF
		if errA != nil && !doneA {
			return false, fmt.Errorf("read %s: %w", a, errA)
		}
		if errB != nil && !doneB {
			return false, fmt.Errorf("read %s: %w", b, errB)
		}
		if doneA || doneB {
			return doneA && doneB, nil
		}
	}
}
