package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/queryir"
	"github.com/roach88/pixbridge/internal/querysql"
)

// CallsTable describes the journal for query validation.
var CallsTable = queryir.Table{
	Name: "calls",
	Columns: []string{
		"id", "seq", "operation", "call_hash", "args", "result", "result_hash",
		"error_code", "error_message", "source", "bridge_version",
	},
}

// callFields is the column order scanCall expects.
var callFields = []string{
	"id", "seq", "operation", "call_hash", "args", "result",
	"error_code", "error_message", "source", "bridge_version",
}

// Filter selects journaled calls. Zero fields do not filter.
type Filter struct {
	Operation    string
	Source       string
	SourcePrefix string
	CallHash     string
	ResultHash   string
	ErrorCode    string
	FailedOnly   bool
	Succeeded    bool
	AfterSeq     int64 // seq strictly greater than
	Limit        int   // first N matches
	Last         int   // last N matches, still returned oldest first
}

// Query translates the filter to QueryIR.
func (f Filter) Query() queryir.Select {
	var preds []queryir.Predicate
	eq := func(field, value string) {
		if value != "" {
			preds = append(preds, queryir.Equals{Field: field, Value: ir.IRString(value)})
		}
	}
	eq("operation", f.Operation)
	eq("source", f.Source)
	eq("call_hash", f.CallHash)
	eq("result_hash", f.ResultHash)
	eq("error_code", f.ErrorCode)
	if f.SourcePrefix != "" {
		preds = append(preds, queryir.Prefix{Field: "source", Prefix: f.SourcePrefix})
	}
	if f.FailedOnly {
		preds = append(preds, queryir.Present{Field: "error_code"})
	}
	if f.Succeeded {
		preds = append(preds, queryir.Absent{Field: "error_code"})
	}
	if f.AfterSeq > 0 {
		preds = append(preds, queryir.Compare{Field: "seq", Op: queryir.OpGreater, Value: ir.IRInt(f.AfterSeq)})
	}

	sel := queryir.Select{
		From:    CallsTable.Name,
		Fields:  callFields,
		OrderBy: []queryir.Order{{Field: "seq"}},
		Limit:   f.Limit,
	}
	if len(preds) > 0 {
		sel.Filter = queryir.And{Predicates: preds}
	}
	if f.Last > 0 {
		sel.OrderBy = []queryir.Order{{Field: "seq", Desc: true}, {Field: "id", Desc: true}}
		sel.Limit = f.Last
	}
	return sel
}

// ReadCalls returns the journaled calls matching f, ordered by seq ASC,
// id ASC. Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadCalls(ctx context.Context, f Filter) ([]ir.CallRecord, error) {
	sel := f.Query()
	if res := queryir.Validate(sel, CallsTable); !res.Valid {
		return nil, fmt.Errorf("read calls: %s", res)
	}
	query, params, err := querysql.NewSQLCompiler().Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("read calls: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []ir.CallRecord{}
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}

	if f.Last > 0 {
		slices.Reverse(calls)
	}
	return calls, nil
}

// ReadCall retrieves a single call by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadCall(ctx context.Context, id string) (ir.CallRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, operation, call_hash, args, result, error_code, error_message, source, bridge_version
		FROM calls
		WHERE id = ?
	`, id)
	return scanCall(row)
}

// LastSeq returns the highest seq in the journal, or 0 when it is empty.
// The CLI resumes its clock from here so sequence numbers stay monotonic
// across runs.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM calls`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (ir.CallRecord, error) {
	var rec ir.CallRecord
	var argsJSON, resultJSON string
	var errorCode sql.NullString

	if err := row.Scan(
		&rec.ID, &rec.Seq, &rec.Operation, &rec.CallHash, &argsJSON, &resultJSON,
		&errorCode, &rec.ErrorMessage, &rec.Source, &rec.BridgeVersion,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan call: %w", err)
	}

	var err error
	if rec.Args, err = unmarshalObject("args", argsJSON); err != nil {
		return rec, err
	}
	if rec.Result, err = unmarshalObject("result", resultJSON); err != nil {
		return rec, err
	}
	if errorCode.Valid {
		rec.ErrorCode = errorCode.String
		rec.Result = nil
	}
	return rec, nil
}
