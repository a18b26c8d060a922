package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/pixbridge/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCall creates a successful call record with minimal fields.
func createTestCall(id, operation string, seq int64) ir.CallRecord {
	positional := ir.IRArray{ir.IRInt(seq)}
	return ir.CallRecord{
		ID:            id,
		Seq:           seq,
		Operation:     operation,
		CallHash:      ir.MustCallHash(operation, nil, positional, nil),
		Args:          ir.IRObject{"instance": ir.IRNull{}, "positional": positional, "options": ir.IRObject{}},
		Result:        ir.IRObject{"out": ir.IRFloat(float64(seq) / 2)},
		BridgeVersion: ir.BridgeVersion,
	}
}

// createFailedCall creates a failed call record.
func createFailedCall(id, operation, code string, seq int64) ir.CallRecord {
	rec := createTestCall(id, operation, seq)
	rec.Result = nil
	rec.ErrorCode = code
	rec.ErrorMessage = code + ": boom"
	return rec
}
