package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/pixbridge/internal/ir"
)

// WriteCall appends a call record to the journal.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
//
// Args and Result are serialized to canonical JSON per RFC 8785. A successful
// call also stores the hash of its result so equal outputs can be found
// without decoding.
func (s *Store) WriteCall(ctx context.Context, rec ir.CallRecord) error {
	if err := writeCall(ctx, s.db, rec); err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	return nil
}

// WriteCalls appends several records in one transaction. Either all are
// written or none.
func (s *Store) WriteCalls(ctx context.Context, recs []ir.CallRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write calls: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for i, rec := range recs {
		if err := writeCall(ctx, tx, rec); err != nil {
			return fmt.Errorf("write calls: record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write calls: commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeCall(ctx context.Context, db execer, rec ir.CallRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record has no id")
	}
	if rec.Operation == "" {
		return fmt.Errorf("record %s has no operation", rec.ID)
	}

	argsJSON, err := marshalObject("args", rec.Args)
	if err != nil {
		return err
	}
	resultJSON, err := marshalObject("result", rec.Result)
	if err != nil {
		return err
	}

	var errorCode, resultHash sql.NullString
	if rec.Succeeded() {
		h, err := ir.ResultHash(orEmpty(rec.Result))
		if err != nil {
			return err
		}
		resultHash = sql.NullString{String: h, Valid: true}
	} else {
		errorCode = sql.NullString{String: rec.ErrorCode, Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO calls
		(id, seq, operation, call_hash, args, result, result_hash, error_code, error_message, source, bridge_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		rec.Operation,
		rec.CallHash,
		argsJSON,
		resultJSON,
		resultHash,
		errorCode,
		rec.ErrorMessage,
		rec.Source,
		rec.BridgeVersion,
	)
	return err
}

func orEmpty(obj ir.IRObject) ir.IRObject {
	if obj == nil {
		return ir.IRObject{}
	}
	return obj
}
