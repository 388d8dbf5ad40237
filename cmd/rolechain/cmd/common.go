package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hugo-lorenzo-mato/rolechain/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/rolechain/internal/agent"
	"github.com/hugo-lorenzo-mato/rolechain/internal/catalog"
	"github.com/hugo-lorenzo-mato/rolechain/internal/config"
	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/logging"
)

// runtime holds the pieces shared by serve and run.
type runtime struct {
	cfg    *config.Config
	logger *logging.Logger
	store  core.Store
	router *agent.Router
}

// openRuntime opens the store, syncs the catalog directory into it and
// configures providers.
func openRuntime(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*runtime, error) {
	store, err := state.New(cfg.State)
	if err != nil {
		return nil, fmt.Errorf("opening state: %w", err)
	}
	logger.Debug("state opened", slog.String("backend", cfg.State.Backend), slog.String("path", cfg.State.Path))

	c, err := catalog.LoadDir(cfg.Catalog.Dir)
	if err == nil {
		err = c.Sync(ctx, store)
	}
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	logger.Debug("catalog synced",
		slog.String("dir", cfg.Catalog.Dir),
		slog.Int("roles", len(c.Roles)),
		slog.Int("templates", len(c.Templates)))

	registry := agent.NewRegistry(logger)
	if err := agent.ConfigureFromConfig(registry, cfg); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("configuring providers: %w", err)
	}

	router := agent.NewRouter(store, registry,
		agent.WithDefaultProvider(cfg.Engine.DefaultProvider),
		agent.WithFallbackRole(cfg.Engine.FallbackRole),
		agent.WithRouterLogger(logger),
	)

	return &runtime{cfg: cfg, logger: logger, store: store, router: router}, nil
}

func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		rt.logger.Warn("failed to close state", slog.String("error", err.Error()))
	}
}

// roleSet snapshots the catalog's role ids for step normalization.
func (rt *runtime) roleSet(ctx context.Context) (core.RoleSet, error) {
	roles, err := rt.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	set := make(core.RoleSet, len(roles))
	for _, r := range roles {
		set[r.ID] = true
	}
	return set, nil
}
