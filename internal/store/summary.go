package store

import (
	"context"
	"fmt"
)

// OperationStats aggregates the journal for one operation.
type OperationStats struct {
	Operation string `json:"operation"`
	Calls     int    `json:"calls"`
	Failures  int    `json:"failures"`
	Distinct  int    `json:"distinct"` // distinct call hashes
	FirstSeq  int64  `json:"first_seq"`
	LastSeq   int64  `json:"last_seq"`
}

// Summarize returns per-operation statistics, optionally limited to one
// source. Rows are ordered by operation name.
func (s *Store) Summarize(ctx context.Context, source string) ([]OperationStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT operation,
		       COUNT(*),
		       COUNT(error_code),
		       COUNT(DISTINCT call_hash),
		       MIN(seq),
		       MAX(seq)
		FROM calls
		WHERE ? = '' OR source = ?
		GROUP BY operation
		ORDER BY operation COLLATE BINARY ASC
	`, source, source)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	defer rows.Close()

	stats := []OperationStats{}
	for rows.Next() {
		var st OperationStats
		if err := rows.Scan(&st.Operation, &st.Calls, &st.Failures, &st.Distinct, &st.FirstSeq, &st.LastSeq); err != nil {
			return nil, fmt.Errorf("summarize: scan: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summarize: iterate: %w", err)
	}
	return stats, nil
}

// Sources lists the distinct non-empty sources in first-seen order.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source
		FROM calls
		WHERE source <> ''
		GROUP BY source
		ORDER BY MIN(seq) ASC, source COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	sources := []string{}
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("list sources: scan: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}
