package cmd

import (
	"context"
	"fmt"

	"github.com/searchbeam/searchbeam/internal/config"
	"github.com/searchbeam/searchbeam/internal/core/store"
)

func openStore(ctx context.Context) (*store.Store, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
