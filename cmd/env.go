package main

import (
	"context"

	"github.com/sells-group/cdr-insight/internal/pipeline"
	"github.com/sells-group/cdr-insight/internal/store"
)

// env bundles the store and pipeline shared by the commands.
type env struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	p, err := pipeline.New(cfg, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &env{Store: st, Pipeline: p}, nil
}

func (e *env) Close() {
	_ = e.Store.Close()
}
