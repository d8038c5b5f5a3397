package selection

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadQuery is returned for selection arguments that do not form
// "path keyword value [op keyword value]*".
var ErrBadQuery = errors.New("invalid selection arguments")

// Op combines a clause with the running result set.
type Op string

const (
	// OpAnd keeps the running set's files that also match the clause.
	OpAnd Op = "and"
	// OpOr adds the files under the root that match the clause.
	OpOr Op = "or"
)

// ParseOp parses "and" or "or" case-insensitively.
func ParseOp(s string) (Op, error) {
	switch Op(strings.ToLower(strings.TrimSpace(s))) {
	case OpAnd:
		return OpAnd, nil
	case OpOr:
		return OpOr, nil
	default:
		return "", fmt.Errorf("%w: unknown operator %q (want and/or)", ErrBadQuery, s)
	}
}

// Clause is one chained predicate.
type Clause struct {
	Op      Op
	Keyword string
	Value   string
}

// Selection is a base predicate followed by chained clauses, applied left to right.
type Selection struct {
	Keyword string
	Value   string
	Clauses []Clause
}

// String renders the selection in the argument syntax.
func (s Selection) String() string {
	parts := []string{s.Keyword + "=" + s.Value}
	for _, c := range s.Clauses {
		parts = append(parts, string(c.Op), c.Keyword+"="+c.Value)
	}
	return strings.Join(parts, " ")
}

// Query is a selection rooted at a directory.
type Query struct {
	Root      string
	Selection Selection
}

// ParseQuery parses "path keyword value [op keyword value]*".
func ParseQuery(args []string) (*Query, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("%w: need at least <path> <keyword> <value>, got %d argument(s)", ErrBadQuery, len(args))
	}
	if (len(args)-3)%3 != 0 {
		return nil, fmt.Errorf("%w: chained predicates must be <op> <keyword> <value> triples", ErrBadQuery)
	}

	q := &Query{
		Root: args[0],
		Selection: Selection{
			Keyword: args[1],
			Value:   args[2],
		},
	}
	for i := 3; i < len(args); i += 3 {
		op, err := ParseOp(args[i])
		if err != nil {
			return nil, err
		}
		q.Selection.Clauses = append(q.Selection.Clauses, Clause{
			Op:      op,
			Keyword: args[i+1],
			Value:   args[i+2],
		})
	}
	return q, nil
}

// Select evaluates sel over the files under root whose name contains suffix.
func (d *Discoverer) Select(root, suffix string, sel Selection) (PathSet, error) {
	set, err := d.Discover(root, suffix, sel.Keyword, sel.Value)
	if err != nil {
		return nil, err
	}
	for _, c := range sel.Clauses {
		switch c.Op {
		case OpAnd:
			set = d.filter.FilterPaths(set, c.Keyword, c.Value)
		case OpOr:
			more, err := d.Discover(root, suffix, c.Keyword, c.Value)
			if err != nil {
				return nil, err
			}
			set = set.Union(more)
		default:
			return nil, fmt.Errorf("%w: unknown operator %q", ErrBadQuery, c.Op)
		}
	}
	return set, nil
}

// Run evaluates the query.
func (q *Query) Run(d *Discoverer, suffix string) (PathSet, error) {
	return d.Select(q.Root, suffix, q.Selection)
}
