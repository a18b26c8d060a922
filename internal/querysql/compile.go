package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/queryir"
)

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// Every query ends with the id tiebreaker so results are deterministic.
// All values are parameterized, never interpolated. Identifiers are checked
// against a strict pattern because they cannot be parameterized.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	if err := checkIdent(q.From); err != nil {
		return "", nil, fmt.Errorf("compile from: %w", err)
	}

	selectClause, err := c.compileFields(q.Fields)
	if err != nil {
		return "", nil, err
	}

	var whereClause string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	orderByClause, err := c.stableOrderKey(q.OrderBy)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		selectClause,
		q.From,
		whereClause,
		orderByClause)

	if q.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, int64(q.Limit))
	}

	return sql, params, nil
}

// compileFields converts the field list to a SELECT column list, keeping the
// caller's order so scans line up with it.
func (c *SQLCompiler) compileFields(fields []string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("explicit fields required")
	}
	for _, f := range fields {
		if err := checkIdent(f); err != nil {
			return "", fmt.Errorf("compile fields: %w", err)
		}
	}
	return strings.Join(fields, ", "), nil
}

// stableOrderKey returns the ORDER BY clause. The id tiebreaker is always
// last; COLLATE BINARY keeps text ordering identical across SQLite builds.
func (c *SQLCompiler) stableOrderKey(order []queryir.Order) (string, error) {
	var parts []string
	hasID := false
	for _, o := range order {
		if err := checkIdent(o.Field); err != nil {
			return "", fmt.Errorf("compile order: %w", err)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		if o.Field == "id" {
			hasID = true
			parts = append(parts, "id COLLATE BINARY "+dir)
			continue
		}
		parts = append(parts, o.Field+" "+dir)
	}
	if !hasID {
		parts = append(parts, "id COLLATE BINARY ASC")
	}
	return strings.Join(parts, ", "), nil
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.Compare:
		return c.compileCompare(pred)
	case *queryir.Compare:
		return c.compileCompare(*pred)
	case queryir.Prefix:
		return c.compilePrefix(pred)
	case *queryir.Prefix:
		return c.compilePrefix(*pred)
	case queryir.Present:
		return c.compileNull(pred.Field, "IS NOT NULL")
	case *queryir.Present:
		return c.compileNull(pred.Field, "IS NOT NULL")
	case queryir.Absent:
		return c.compileNull(pred.Field, "IS NULL")
	case *queryir.Absent:
		return c.compileNull(pred.Field, "IS NULL")
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	if err := checkIdent(eq.Field); err != nil {
		return "", nil, err
	}
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("%s = ?", eq.Field), []any{param}, nil
}

func (c *SQLCompiler) compileCompare(cmp queryir.Compare) (string, []any, error) {
	if err := checkIdent(cmp.Field); err != nil {
		return "", nil, err
	}
	if !cmp.Op.Valid() {
		return "", nil, fmt.Errorf("unknown operator %q", cmp.Op)
	}
	param, err := irValueToParam(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("%s %s ?", cmp.Field, cmp.Op), []any{param}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (c *SQLCompiler) compilePrefix(p queryir.Prefix) (string, []any, error) {
	if err := checkIdent(p.Field); err != nil {
		return "", nil, err
	}
	return fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, p.Field), []any{likeEscaper.Replace(p.Prefix) + "%"}, nil
}

func (c *SQLCompiler) compileNull(field, test string) (string, []any, error) {
	if err := checkIdent(field); err != nil {
		return "", nil, err
	}
	return field + " " + test, nil, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any

	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, " AND "), allParams, nil
}

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// irValueToParam converts an ir.IRValue to a Go native type for SQL parameter.
// Arrays, objects and handles have no column representation.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRFloat:
		return float64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRBytes:
		return []byte(val), nil
	case ir.IRNull:
		return nil, nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
