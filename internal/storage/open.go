package storage

import (
	"context"
	"errors"
	"strings"

	logx "framesched/pkg/logx"
)

// Store persists session summaries.
type Store interface {
	AppendSession(ctx context.Context, s SessionSummary) (int64, error)
	// ListSessions returns up to limit summaries, newest first. limit <= 0
	// means all of them.
	ListSessions(ctx context.Context, limit int) ([]SessionSummary, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
