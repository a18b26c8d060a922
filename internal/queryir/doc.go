// Package queryir provides an abstract query intermediate representation
// for reading the call journal.
//
// QueryIR is the boundary between the filters a user asks for (the trace
// command's flags, the harness's journal checks) and the storage backend:
//
//	[trace flags] → [Query IR] → [SQL Backend]
//
// The fragment is deliberately small:
//   - Select(from, fields, filter, order, limit)
//   - Predicates: Equals, Compare, Prefix, Present, Absent, And
//   - Explicit field lists (no SELECT *)
//
// Query and Predicate are sealed interfaces using the marker method pattern,
// so backends can switch over them exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	    // Handle select
//	default:
//	    // Impossible - compiler knows all Query types
//	}
//
// Literal values are ir.IRValue so that filters speak the same value model
// as the calls they select.
package queryir
