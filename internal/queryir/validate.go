package queryir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pixbridge/internal/ir"
)

// Table describes a queryable source and its columns.
type Table struct {
	Name    string
	Columns []string
}

// ValidationResult lists everything wrong with a query.
type ValidationResult struct {
	// Valid is true when Errors is empty.
	Valid bool

	Errors []string
}

func (r ValidationResult) String() string {
	if r.Valid {
		return "valid"
	}
	return "invalid: " + strings.Join(r.Errors, "; ")
}

// Validate checks a query against the known tables. With no tables given,
// only the structural rules are checked.
//
// Rules:
//  1. Fields must be explicit
//  2. Every referenced field must exist in the source table
//  3. Equals never compares to NULL (use Absent)
//  4. Compare uses a known operator and a number or string literal
//  5. Limit is not negative
//
// Validate is a pure function with no side effects.
func Validate(query Query, tables ...Table) ValidationResult {
	v := &validator{
		tables: tables,
		errors: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

type validator struct {
	tables  []Table
	columns []string // columns of the current source; nil = unchecked
	errors  []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addError("nil query")
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From == "" {
		v.addError("missing source table")
	} else if len(v.tables) > 0 {
		idx := slices.IndexFunc(v.tables, func(t Table) bool { return t.Name == sel.From })
		if idx < 0 {
			v.addError("unknown table %q", sel.From)
		} else {
			v.columns = v.tables[idx].Columns
		}
	}

	if len(sel.Fields) == 0 {
		v.addError("empty field list (SELECT *) - fields must be explicit")
	}
	for _, f := range sel.Fields {
		v.checkField(f)
	}

	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}

	for _, o := range sel.OrderBy {
		v.checkField(o.Field)
	}

	if sel.Limit < 0 {
		v.addError("negative limit %d", sel.Limit)
	}
}

func (v *validator) checkField(name string) {
	if name == "" {
		v.addError("empty field name")
		return
	}
	if v.columns != nil && !slices.Contains(v.columns, name) {
		v.addError("unknown field %q", name)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		return
	}

	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case Prefix:
		v.checkField(pred.Field)
	case *Prefix:
		v.checkField(pred.Field)
	case Present:
		v.checkField(pred.Field)
	case *Present:
		v.checkField(pred.Field)
	case Absent:
		v.checkField(pred.Field)
	case *Absent:
		v.checkField(pred.Field)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	v.checkField(eq.Field)
	switch eq.Value.(type) {
	case nil, ir.IRNull:
		v.addError("field '%s' compared to NULL - use Absent", eq.Field)
	}
}

func (v *validator) validateCompare(c Compare) {
	v.checkField(c.Field)
	if !c.Op.Valid() {
		v.addError("field '%s': unknown operator %q", c.Field, c.Op)
	}
	switch c.Value.(type) {
	case ir.IRInt, ir.IRFloat, ir.IRString:
	default:
		v.addError("field '%s': %s cannot be ordered", c.Field, ir.TypeName(c.Value))
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}
