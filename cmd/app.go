package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fabmirror/fabmirror/internal/auth"
	"github.com/fabmirror/fabmirror/internal/catalog"
	"github.com/fabmirror/fabmirror/internal/config"
	"github.com/fabmirror/fabmirror/internal/fabric"
	"github.com/fabmirror/fabmirror/internal/logging"
	"github.com/fabmirror/fabmirror/internal/probe"
	"github.com/fabmirror/fabmirror/internal/resolver"
	"github.com/fabmirror/fabmirror/internal/sqlexec"
	catsync "github.com/fabmirror/fabmirror/internal/sync"
)

// app is the wired-up service stack shared by the CLI commands.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	store    catalog.Store
	client   *fabric.Client
	exec     *sqlexec.MSSQL
	prober   *probe.Prober
	syncer   *catsync.Syncer
	resolver *resolver.Resolver
}

// buildApp loads config, opens the store, and wires the crawler, prober,
// syncer, and resolver together.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	log, err := logging.Setup(level, cfg.Logging.Directory, cfg.Logging.RetentionDays)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	tokens := &auth.StaticProvider{Value: cfg.Fabric.Token}

	client, err := fabric.NewClient(tokens, fabric.Options{
		BaseURL: cfg.Fabric.BaseURL,
		Timeout: time.Duration(cfg.Fabric.TimeoutSeconds) * time.Second,
		Retries: cfg.Fabric.Retries,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("building fabric client: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("initializing catalog store: %w", err)
	}

	exec := sqlexec.NewMSSQL(tokens,
		time.Duration(cfg.SQL.TimeoutSeconds)*time.Second, cfg.SQL.TrustServerCert)
	prober := probe.New(client, exec, log)
	syncer := catsync.New(client, store, prober, exec, "", log)

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		client:   client,
		exec:     exec,
		prober:   prober,
		syncer:   syncer,
		resolver: resolver.New(store, syncer, log),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (catalog.Store, error) {
	switch cfg.Catalog.Backend {
	case "postgres":
		return catalog.NewPostgres(ctx, cfg.Catalog.DSN)
	case "mongodb":
		return catalog.NewMongo(ctx, cfg.Catalog.DSN, cfg.Catalog.Database)
	default:
		return nil, fmt.Errorf("unknown catalog backend %q (postgres or mongodb)", cfg.Catalog.Backend)
	}
}

func (a *app) Close(ctx context.Context) {
	if err := a.store.Close(ctx); err != nil {
		a.log.Warn("closing catalog store", "error", err)
	}
}
