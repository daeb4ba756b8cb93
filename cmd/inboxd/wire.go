package main

import (
	"fmt"
	"io"
	"time"

	"github.com/mainstreethq/inboxd/internal/config"
	"github.com/mainstreethq/inboxd/internal/db"
	"github.com/mainstreethq/inboxd/internal/merge"
	"github.com/mainstreethq/inboxd/internal/source"
	"github.com/mainstreethq/inboxd/internal/source/chatrace"
	"github.com/mainstreethq/inboxd/internal/source/vapi"
	"github.com/mainstreethq/inboxd/internal/source/woodstock"
	"github.com/mainstreethq/inboxd/internal/syncer"
	"gorm.io/gorm"
)

// connectPrimary loads config and opens the primary store.
func connectPrimary(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	primary, err := db.Connect(cfg.Primary)
	if err != nil {
		return nil, nil, fmt.Errorf("connect primary store: %w", err)
	}
	return cfg, primary, nil
}

// buildAdapters constructs one adapter per configured source. The VAPI
// adapter always runs (it reads the primary store's call log); Woodstock and
// ChatRace join only when their connection settings are present. The returned
// closer releases any remote pools the adapters opened.
func buildAdapters(cfg *config.Config, primary *gorm.DB) ([]source.Adapter, func(), error) {
	var adapters []source.Adapter
	closer := func() {}

	if cfg.Woodstock.DSN != "" {
		remote, err := db.Connect(cfg.Woodstock)
		if err != nil {
			return nil, nil, fmt.Errorf("connect woodstock store: %w", err)
		}
		closer = func() { db.Close(remote) }
		ws, err := woodstock.New(woodstock.Opts{DB: remote})
		if err != nil {
			closer()
			return nil, nil, err
		}
		adapters = append(adapters, ws)
	}

	va, err := vapi.New(vapi.Opts{DB: primary})
	if err != nil {
		closer()
		return nil, nil, err
	}
	adapters = append(adapters, va)

	if cfg.ChatRace.APIURL != "" {
		client, err := chatrace.NewClient(chatrace.ClientOpts{
			APIURL: cfg.ChatRace.APIURL,
			Token:  cfg.ChatRace.Token,
		})
		if err != nil {
			closer()
			return nil, nil, err
		}
		cr, err := chatrace.New(chatrace.Opts{
			Upstream:  client,
			AccountID: cfg.ChatRace.AccountID,
			PageSize:  cfg.ChatRace.PageSize,
		})
		if err != nil {
			closer()
			return nil, nil, err
		}
		adapters = append(adapters, cr)
	}

	return adapters, closer, nil
}

// buildOrchestrator wires the merge engine and all configured adapters.
func buildOrchestrator(cfg *config.Config, primary *gorm.DB, out io.Writer) (*syncer.Orchestrator, func(), error) {
	engine, err := merge.New(merge.Opts{DB: primary})
	if err != nil {
		return nil, nil, err
	}
	adapters, closer, err := buildAdapters(cfg, primary)
	if err != nil {
		return nil, nil, err
	}
	orch, err := syncer.New(syncer.Opts{
		DB:            primary,
		Engine:        engine,
		Adapters:      adapters,
		SourceTimeout: time.Duration(cfg.Sync.SourceTimeoutSec) * time.Second,
		LockTimeout:   time.Duration(cfg.Sync.LockTimeoutSec) * time.Second,
		Out:           out,
	})
	if err != nil {
		closer()
		return nil, nil, err
	}
	return orch, closer, nil
}
