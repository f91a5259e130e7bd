package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	logx "framesched/pkg/logx"
)

// maxLineBytes bounds one JSONL record; a summary with many tasks is still
// far below it.
const maxLineBytes = 1 << 20

// fileStore appends one JSON object per line to a single file.
type fileStore struct {
	log  logx.Logger
	fs   afero.Fs
	path string

	mu     sync.Mutex
	f      afero.File
	nextID int64
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	fs := cfg.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// IDs continue from the last record on disk.
	var last int64
	if err := scanSessions(fs, path, func(s SessionSummary) {
		if s.ID > last {
			last = s.ID
		}
	}, log); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	f, err := fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, fs: fs, path: path, f: f, nextID: last + 1}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendSession(ctx context.Context, sum SessionSummary) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, errors.New("session file closed")
	}
	if sum.EndedAt.IsZero() {
		sum.EndedAt = time.Now()
	}
	sum.ID = s.nextID

	b, err := json.Marshal(sum)
	if err != nil {
		return 0, err
	}
	b = append(b, '\n')
	if _, err := s.f.Write(b); err != nil {
		return 0, err
	}
	s.nextID++
	return sum.ID, nil
}

func (s *fileStore) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []SessionSummary
	err := scanSessions(s.fs, s.path, func(sum SessionSummary) {
		all = append(all, sum)
	}, s.log)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]SessionSummary, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// scanSessions calls fn for each decodable line. A torn or corrupt line (for
// example from a crash mid-write) is skipped.
func scanSessions(fs afero.Fs, path string, fn func(SessionSummary), log logx.Logger) error {
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		var sum SessionSummary
		if err := json.Unmarshal(b, &sum); err != nil {
			log.Debug("session record skipped", logx.String("path", path), logx.Int("line", line), logx.Err(err))
			continue
		}
		fn(sum)
	}
	return sc.Err()
}
