package cmd

import (
	"fmt"
	"time"

	"github.com/fieldops/fieldsync/internal/config"
	"github.com/fieldops/fieldsync/internal/db"
	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/remote"
	"github.com/fieldops/fieldsync/internal/sync"
)

// env bundles the opened store, config and syncer most commands need.
type env struct {
	store  *db.DB
	cfg    *models.Config
	client *remote.Client
	syncer *sync.Syncer
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
}

// openEnv opens the replica and wires the remote client and syncer from
// config. Commands that only read locally can ignore the syncer.
func openEnv() (*env, error) {
	base := getBaseDir()
	store, err := db.Open(base)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(base)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load config: %w", err)
	}

	client := remote.NewClient(cfg.ServerURL, cfg.APIKey, cfg.DeviceID)
	syncer := sync.NewSyncer(store, client, sync.Options{
		ActorType: cfg.ActorType,
		ActorID:   cfg.ActorID,
		PageSize:  config.PageSize(cfg),
	})

	return &env{store: store, cfg: cfg, client: client, syncer: syncer}, nil
}

// requireServer fails early when no endpoint is configured, so commands give
// a clear message instead of dialing an empty URL.
func (e *env) requireServer() error {
	if e.cfg.ServerURL == "" {
		return fmt.Errorf("no server configured (run: fieldsync init --server <url>)")
	}
	return nil
}

// dedupWindow returns the configured admission window as a duration.
func (e *env) dedupWindow() time.Duration {
	return time.Duration(config.DedupWindowSeconds(e.cfg)) * time.Second
}
