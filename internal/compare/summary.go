package compare

import "strings"

// Counts are the aggregate classification counts of a tree comparison.
type Counts struct {
	Differing int
	LeftOnly  int
	RightOnly int
}

// Total returns the number of entries that are not identical.
func (c Counts) Total() int {
	return c.Differing + c.LeftOnly + c.RightOnly
}

func (c *Counts) add(o Counts) {
	c.Differing += o.Differing
	c.LeftOnly += o.LeftOnly
	c.RightOnly += o.RightOnly
}

// Summary holds the unfiltered counts of a tree and the counts restricted to
// each tracked name suffix.
type Summary struct {
	Counts
	Suffixes []string
	BySuffix map[string]Counts
}

// Suffix returns the counts for a tracked suffix.
func (s Summary) Suffix(suffix string) Counts {
	return s.BySuffix[suffix]
}

// Summarize aggregates node bottom-up in a single traversal, counting every
// entry once in the total and once more under each suffix its name ends with.
func Summarize(node *Node, suffixes ...string) Summary {
	s := Summary{
		Suffixes: suffixes,
		BySuffix: make(map[string]Counts, len(suffixes)),
	}
	s.walk(node)
	return s
}

func (s *Summary) walk(node *Node) {
	var level Counts
	bySuffix := make(map[string]Counts, len(s.Suffixes))

	tally := func(names []string, bump func(*Counts)) {
		for _, name := range names {
			bump(&level)
			for _, suffix := range s.Suffixes {
				if strings.HasSuffix(name, suffix) {
					c := bySuffix[suffix]
					bump(&c)
					bySuffix[suffix] = c
				}
			}
		}
	}
	tally(node.Differing, func(c *Counts) { c.Differing++ })
	tally(node.LeftOnly, func(c *Counts) { c.LeftOnly++ })
	tally(node.RightOnly, func(c *Counts) { c.RightOnly++ })

	s.Counts.add(level)
	for suffix, c := range bySuffix {
		total := s.BySuffix[suffix]
		total.add(c)
		s.BySuffix[suffix] = total
	}
	for _, child := range node.Subdirs {
		s.walk(child)
	}
}
