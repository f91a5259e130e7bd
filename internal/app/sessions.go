package app

import (
	"context"
	"errors"

	"framesched/internal/config"
	"framesched/internal/storage"
	logx "framesched/pkg/logx"
)

// RecentSessions reads up to limit saved session summaries, newest first,
// from the store configured in cfgPath. It does not start anything.
func RecentSessions(ctx context.Context, cfgPath string, limit int) ([]storage.SessionSummary, error) {
	cfg, err := config.NewConfigManager(cfgPath).Load()
	if err != nil {
		return nil, err
	}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, storage.ErrDisabled
	}
	st, err := storage.Open(sc, logx.Nop())
	if err != nil {
		return nil, err
	}
	sessions, err := st.ListSessions(ctx, limit)
	return sessions, errors.Join(err, st.Close())
}
