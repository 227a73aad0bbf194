// Package query turns event search parameters into a predicate tree and
// renders that tree for the supported document stores.
package query

// Node is one element of a predicate tree. The concrete types are Term,
// Match, Range, Exists, And, Or and Not.
type Node interface {
	node()
}

// Term is an exact-value match on a field. When the field holds an array,
// any element may match.
type Term struct {
	Field string
	Value string
}

// Match is an analysed-value match on a field. Stores without text analysis
// treat it like Term.
type Match struct {
	Field string
	Value string
}

// Range bounds a field. Nil bounds are absent. Bounds are strings for
// timestamp fields and ints for numeric fields.
type Range struct {
	Field string
	GTE   any
	GT    any
	LTE   any
	LT    any
}

// Exists requires the field to be present with a non-null value.
type Exists struct {
	Field string
}

// And is satisfied when every child is. An empty And is always satisfied.
type And []Node

// Or is satisfied when at least one child is.
type Or []Node

// Not negates its child.
type Not struct {
	Node Node
}

func (Term) node()   {}
func (Match) node()  {}
func (Range) node()  {}
func (Exists) node() {}
func (And) node()    {}
func (Or) node()     {}
func (Not) node()    {}

// Query is the output of Build. Must and MustNot hold the scoring-independent
// attribute clauses; Filter holds the time window.
type Query struct {
	Must    []Node
	MustNot []Node
	Filter  []Node
}

// Root collapses q into a single predicate.
func (q Query) Root() Node {
	all := make(And, 0, len(q.Must)+len(q.MustNot)+1)
	all = append(all, q.Must...)
	for _, n := range q.MustNot {
		all = append(all, Not{Node: n})
	}
	all = append(all, And(q.Filter))
	return all
}
