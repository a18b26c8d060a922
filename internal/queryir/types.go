package queryir

import "github.com/roach88/pixbridge/internal/ir"

// Query represents an abstract query over the call journal.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal_value
//   - Compare: field <op> literal_value (ordering comparisons)
//   - Prefix: field starts with a literal prefix
//   - Present / Absent: field IS NOT NULL / IS NULL
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select represents a table access with filtering, ordering and a row cap.
//
// Semantics:
//
//	SELECT <fields> FROM <from> WHERE <filter> ORDER BY <order>, id LIMIT <limit>
//
// Example:
//
//	Select{
//	  From:   "calls",
//	  Fields: []string{"id", "seq", "operation"},
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "operation", Value: ir.IRString("invert")},
//	    Compare{Field: "seq", Op: OpGreater, Value: ir.IRInt(10)},
//	  }},
//	  OrderBy: []Order{{Field: "seq"}},
//	  Limit:   20,
//	}
//
// Rules:
//   - Fields must be explicit (no SELECT *)
//   - Ordering always ends with the id tiebreaker, added by the backend
//   - Limit 0 means no limit
type Select struct {
	From    string
	Fields  []string
	Filter  Predicate // nil = no filter
	OrderBy []Order
	Limit   int
}

func (Select) queryNode() {}

// Order is one ORDER BY key.
type Order struct {
	Field string
	Desc  bool
}

// Equals represents a field-equals-literal predicate.
//
// Value must not be IRNull; use Absent to match missing values.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// CompareOp is an ordering comparison operator.
type CompareOp string

const (
	OpLess      CompareOp = "<"
	OpLessEq    CompareOp = "<="
	OpGreater   CompareOp = ">"
	OpGreaterEq CompareOp = ">="
)

// Valid reports whether op is one of the known operators.
func (op CompareOp) Valid() bool {
	switch op {
	case OpLess, OpLessEq, OpGreater, OpGreaterEq:
		return true
	}
	return false
}

// Compare represents an ordering comparison against a literal.
// Value must be a number or a string.
type Compare struct {
	Field string
	Op    CompareOp
	Value ir.IRValue
}

func (Compare) predicateNode() {}

// Prefix matches text fields starting with Prefix. Wildcard characters in
// Prefix are literal.
type Prefix struct {
	Field  string
	Prefix string
}

func (Prefix) predicateNode() {}

// Present matches rows where Field is not NULL.
type Present struct {
	Field string
}

func (Present) predicateNode() {}

// Absent matches rows where Field is NULL.
type Absent struct {
	Field string
}

func (Absent) predicateNode() {}

// And represents a conjunction of predicates. Empty Predicates is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
