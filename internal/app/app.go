// Package app wires the configured store, document storage and services into
// one value with an explicit lifecycle.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"customerIntake/internal/accounts"
	"customerIntake/internal/apperr"
	"customerIntake/internal/approval"
	"customerIntake/internal/auth"
	"customerIntake/internal/config"
	"customerIntake/internal/credential"
	"customerIntake/internal/dashboard"
	"customerIntake/internal/db"
	"customerIntake/internal/docstore"
	"customerIntake/internal/ledger"
	"customerIntake/internal/logger"
	"customerIntake/repository"

	"go.uber.org/zap"
)

// App holds the wired core.
type App struct {
	Config    *config.Config
	Store     *repository.Store
	Docs      docstore.Store
	Accounts  *accounts.Registry
	Ledger    *ledger.Ledger
	Approval  *approval.Machine
	Dashboard *dashboard.Service
	Tokens    *auth.TokenIssuer

	log         *zap.Logger
	db          *sql.DB
	unsubscribe func()
}

// New opens the configured backends and creates the default admin when it is
// missing. Bootstrap runs here and nowhere else.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = logger.OrNop(log)
	a := &App{Config: cfg, log: log}

	backend, err := a.openBackend()
	if err != nil {
		return nil, err
	}
	a.Store = repository.NewStore(backend, log)
	a.unsubscribe = a.Store.Subscribe(func() {
		log.Debug("snapshot cache invalidated", zap.String("backend", backend.Describe()))
	})

	a.Docs, err = openDocs(ctx, cfg.Documents, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Tokens, err = auth.NewTokenIssuer(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	vault := credential.NewVault(cfg.Auth.BcryptCost)
	a.Accounts = accounts.NewRegistry(a.Store, vault, log)
	a.Ledger = ledger.New(a.Store, a.Docs, log)
	a.Approval = approval.New(a.Store, log)
	a.Dashboard = dashboard.New(a.Store, a.Docs, log)

	created, err := a.Accounts.Bootstrap(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword)
	if apperr.Is(err, apperr.StoreUnavailable) {
		log.Error("store unavailable, admin bootstrap skipped; writes are refused until it is readable", zap.Error(err))
		return a, nil
	}
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		log.Warn("default admin created; change its password source before production use",
			zap.String("username", cfg.Bootstrap.AdminUsername))
	}
	return a, nil
}

func (a *App) openBackend() (repository.Backend, error) {
	switch a.Config.Store.Backend {
	case config.BackendSQLite:
		d, err := db.Open(a.Config.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		a.db = d
		return repository.NewSQLiteBackend(d, a.Config.Store.History), nil
	default:
		return repository.NewFileBackend(a.Config.Store.Path), nil
	}
}

func openDocs(ctx context.Context, cfg config.DocumentsConfig, log *zap.Logger) (docstore.Store, error) {
	if cfg.Backend == config.DocsS3 {
		s, err := docstore.NewS3Store(ctx, cfg.S3, log)
		if err != nil {
			return nil, fmt.Errorf("open document bucket: %w", err)
		}
		return s, nil
	}
	s, err := docstore.NewFSStore(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("open document dir: %w", err)
	}
	return s, nil
}

// DB returns the SQLite handle, or nil for the file backend.
func (a *App) DB() *sql.DB { return a.db }

// Login authenticates and issues a session token.
func (a *App) Login(ctx context.Context, username, password string) (*auth.Session, string, error) {
	sess, err := a.Accounts.Authenticate(ctx, username, password)
	if err != nil {
		return nil, "", err
	}
	tok, _, err := a.Tokens.Issue(sess)
	if err != nil {
		return nil, "", err
	}
	return sess, tok, nil
}

// Resume turns a token back into a session carrying the account's current
// role and branches.
func (a *App) Resume(ctx context.Context, token string) (*auth.Session, error) {
	claimed, err := a.Tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	snap, err := repository.LoadForRead(ctx, a.Store)
	if err != nil {
		return nil, err
	}
	acc, err := auth.Resolve(snap, claimed)
	if err != nil {
		return nil, err
	}
	return auth.NewSession(acc), nil
}

// Close releases the database handle and observers.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		if err != nil {
			a.log.Warn("close database", zap.Error(err))
		}
		return err
	}
	return nil
}
