package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/pixbridge/internal/bridge"
	"github.com/roach88/pixbridge/internal/native"
	"github.com/roach88/pixbridge/internal/store"
)

// session is one command's bridge, its registry and the optional journal.
type session struct {
	registry *native.Registry
	bridge   *bridge.Bridge
	store    *store.Store
}

// openSession builds a bridge over the standard operations. With a
// database path, calls are journaled there and seq numbers continue from
// the last recorded call.
func openSession(ctx context.Context, opts *RootOptions, dbPath string) (*session, error) {
	s := &session{registry: native.NewStandardRegistry()}
	s.registry.SetCacheMax(opts.CacheMax)

	bopts := []bridge.Option{bridge.WithLogger(slog.Default())}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		last, err := st.LastSeq(ctx)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		s.store = st
		bopts = append(bopts, bridge.WithRecorder(st), bridge.WithClock(bridge.NewClockAt(last)))
		slog.Debug("journal ready", "path", dbPath, "last_seq", last)
	}
	s.bridge = bridge.New(s.registry, bopts...)
	return s, nil
}

func (s *session) Close() {
	slog.Debug("dropping operation cache", "cached", s.registry.CacheSize())
	s.registry.DropAll()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}
}

// openStore opens an existing journal for reading. Unlike store.Open it
// does not create a missing database.
func openStore(dbPath string) (*store.Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", fmt.Errorf("%s: %w", dbPath, err))
	}
	return st, nil
}
