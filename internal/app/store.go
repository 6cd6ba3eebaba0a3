package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pipegrid/internal/checkpoint"
	"github.com/specialistvlad/pipegrid/internal/filecheckpoint"
	"github.com/specialistvlad/pipegrid/internal/inmemorycheckpoint"
	"github.com/specialistvlad/pipegrid/internal/natscheckpoint"
	"github.com/specialistvlad/pipegrid/internal/pgcheckpoint"
	"github.com/specialistvlad/pipegrid/internal/workspace"
)

// openStore opens the configured checkpoint backend. The returned close
// function releases its connections and is never nil.
func openStore(ctx context.Context, kind string, ws *workspace.Workspace) (checkpoint.Store, func() error, error) {
	noop := func() error { return nil }

	switch kind {
	case StoreMemory:
		return inmemorycheckpoint.New(), noop, nil

	case StoreFile:
		s, err := filecheckpoint.New(ws.CheckpointsDir())
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case StorePostgres:
		cfg, err := pgcheckpoint.ConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		db, err := pgcheckpoint.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := pgcheckpoint.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return pgcheckpoint.New(db), db.Close, nil

	case StoreNATS:
		cfg := natscheckpoint.ConfigFromEnv()
		nc, js, err := natscheckpoint.Connect(cfg)
		if err != nil {
			return nil, nil, err
		}
		s, err := natscheckpoint.New(ctx, js, cfg.Bucket)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return s, nc.Drain, nil

	default:
		return nil, nil, fmt.Errorf("unknown checkpoint store '%s'", kind)
	}
}
