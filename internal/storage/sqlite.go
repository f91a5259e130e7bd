package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "framesched/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendSession(ctx context.Context, sum SessionSummary) (id int64, err error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	if sum.EndedAt.IsZero() {
		sum.EndedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions(started_at, ended_at, frames, ticks, idle_ticks, dispatches, stop_reason)
		 VALUES(?,?,?,?,?,?,?)`,
		sum.StartedAt.Format(time.RFC3339Nano), sum.EndedAt.Format(time.RFC3339Nano),
		int64(sum.Frames), int64(sum.Ticks), int64(sum.IdleTicks), int64(sum.Dispatches),
		nullStr(sum.StopReason),
	)
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, t := range sum.Tasks {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_tasks(session_id, position, name, period_ns, dispatches, panics, max_lateness_ns)
			 VALUES(?,?,?,?,?,?,?)`,
			id, i, t.Name, int64(t.Period), int64(t.Dispatches), int64(t.Panics), int64(t.MaxLateness),
		)
		if err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *sqliteStore) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, frames, ticks, idle_ticks, dispatches, stop_reason
		 FROM sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var out []SessionSummary
	for rows.Next() {
		var (
			sum                             SessionSummary
			started, ended                  string
			frames, ticks, idle, dispatches int64
			reason                          sql.NullString
		)
		if err := rows.Scan(&sum.ID, &started, &ended, &frames, &ticks, &idle, &dispatches, &reason); err != nil {
			_ = rows.Close()
			return nil, err
		}
		sum.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		sum.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
		sum.Frames, sum.Ticks, sum.IdleTicks, sum.Dispatches = uint64(frames), uint64(ticks), uint64(idle), uint64(dispatches)
		sum.StopReason = reason.String
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	// One connection: task rows are read after the session cursor is closed.
	for i := range out {
		tasks, err := s.sessionTasks(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Tasks = tasks
	}
	return out, nil
}

func (s *sqliteStore) sessionTasks(ctx context.Context, id int64) ([]TaskSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, period_ns, dispatches, panics, max_lateness_ns
		 FROM session_tasks WHERE session_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []TaskSummary
	for rows.Next() {
		var (
			t                                TaskSummary
			period, dispatches, panics, late int64
		)
		if err := rows.Scan(&t.Name, &period, &dispatches, &panics, &late); err != nil {
			return nil, err
		}
		t.Period = time.Duration(period)
		t.Dispatches, t.Panics = uint64(dispatches), uint64(panics)
		t.MaxLateness = time.Duration(late)
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
