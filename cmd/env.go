package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/xthestreams/current-rms-watcher/internal/store"
	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "watcher.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initClient builds the Current RMS API client, or returns nil when no
// credentials are configured. Callers that can run without the API treat a
// nil client as read-only mode.
func initClient() currentrms.Client {
	if cfg.CurrentRMS.Subdomain == "" || cfg.CurrentRMS.Token == "" {
		return nil
	}
	opts := []currentrms.Option{
		currentrms.WithRateLimit(cfg.CurrentRMS.RateLimit),
	}
	if cfg.CurrentRMS.BaseURL != "" {
		opts = append(opts, currentrms.WithBaseURL(cfg.CurrentRMS.BaseURL))
	}
	return currentrms.NewClient(cfg.CurrentRMS.Subdomain, cfg.CurrentRMS.Token, opts...)
}

// requireClient is initClient for commands that cannot run without the API.
func requireClient() (currentrms.Client, error) {
	c := initClient()
	if c == nil {
		return nil, eris.New("Current RMS credentials are required (CRMSW_CURRENT_RMS_SUBDOMAIN, CRMSW_CURRENT_RMS_TOKEN)")
	}
	return c, nil
}
