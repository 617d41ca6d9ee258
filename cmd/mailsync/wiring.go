package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"

	"github.com/gofiber/fiber/v2"
	mailsync "github.com/goliatone/go-mailsync"
	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/adapter/securelink"
	"github.com/goliatone/go-mailsync/config"
	"github.com/goliatone/go-mailsync/lock"
	"github.com/goliatone/go-mailsync/migrations"
	"github.com/goliatone/go-mailsync/notify"
	"github.com/goliatone/go-mailsync/provider"
	"github.com/goliatone/go-mailsync/store"
	"github.com/goliatone/go-mailsync/syncback"
	"github.com/goliatone/go-mailsync/transit"
	"github.com/goliatone/go-mailsync/txlog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.Config().GetPersistence()
	dsn := cfg.GetServer()
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	driver := cfg.GetDriver()
	if driver == "" {
		driver = "sqlite"
	}
	dialectName, err := migrations.NormalizeDialect(driver)
	if err != nil {
		return err
	}

	var (
		db      *sql.DB
		dialect schema.Dialect
	)
	switch dialectName {
	case "postgres":
		db = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		dialect = pgdialect.New()
	default:
		db, err = sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return err
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		dialect = sqlitedialect.New()
	}

	persistence.RegisterModel((*account.Account)(nil))
	persistence.RegisterModel((*account.Namespace)(nil))
	persistence.RegisterModel((*txlog.Entry)(nil))
	persistence.RegisterModel((*actions.Entry)(nil))
	persistence.RegisterModel((*store.Thread)(nil))
	persistence.RegisterModel((*store.Message)(nil))
	persistence.RegisterModel((*store.Tag)(nil))
	persistence.RegisterModel((*store.Contact)(nil))
	persistence.RegisterModel((*store.Calendar)(nil))
	persistence.RegisterModel((*store.Event)(nil))
	persistence.RegisterModel((*store.File)(nil))

	bunClient, err := persistence.New(cfg, db, dialect)
	if err != nil {
		return err
	}
	bunClient.SetLogger(app.GetLogger("persistence"))

	migrationsFS, err := fs.Sub(mailsync.MigrationsFS, "data/sql/migrations")
	if err != nil {
		return err
	}

	bunClient.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("."),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := bunClient.ValidateDialects(ctx); err != nil {
		log.Printf("Warning: dialect validation failed: %v", err)
	}

	if err := bunClient.Migrate(ctx); err != nil {
		return err
	}

	if err := migrations.ValidateSchema(ctx, bunClient.DB().DB, dialectName); err != nil {
		return err
	}

	if report := bunClient.Report(); report != nil && !report.IsZero() {
		fmt.Printf("report: %s\n", report.String())
	}

	app.bunDB = bunClient.DB()
	app.onClose(func() {
		if err := app.bunDB.Close(); err != nil {
			app.GetLogger("persistence").Error("close database", "error", err)
		}
	})
	return nil
}

func WithFeatureGate(_ context.Context, app *App) error {
	gate, err := config.NewFlagGate(app.Config().Features)
	if err != nil {
		return err
	}
	app.gate = gate
	return nil
}

func WithRepositories(_ context.Context, app *App) error {
	logger := &loggerAdapter{app.GetLogger("store")}

	accounts, err := account.NewRepository(account.RepositoryConfig{
		DB:     app.bunDB,
		Logger: &loggerAdapter{app.GetLogger("accounts")},
	}, account.WithCache(app.Config().Persistence.CacheAccounts))
	if err != nil {
		return err
	}

	actionRepo, err := actions.NewRepository(actions.RepositoryConfig{DB: app.bunDB})
	if err != nil {
		return err
	}

	logRepo, err := txlog.NewRepository(txlog.RepositoryConfig{
		DB:     app.bunDB,
		Logger: &loggerAdapter{app.GetLogger("txlog")},
	})
	if err != nil {
		return err
	}

	objects, err := store.New(store.Config{
		DB:       app.bunDB,
		Recorder: txlog.NewRecorder(txlog.RecorderConfig{Logger: logger}),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	app.accounts = accounts
	app.actions = actionRepo
	app.txlog = logRepo
	app.store = objects
	return nil
}

// newCipher picks Vault transit when enabled and the local AES keyring
// otherwise. Without local keys credentials are stored in the clear.
func newCipher(ctx context.Context, app *App) (transit.Cipher, error) {
	cfg := app.Config().Vault
	if cfg.Enabled {
		return transit.NewVaultCipher(ctx, transit.VaultConfig{
			Address:  cfg.Address,
			Token:    cfg.Token,
			RoleID:   cfg.RoleID,
			SecretID: cfg.SecretID,
			Mount:    cfg.Mount,
			Logger:   &loggerAdapter{app.GetLogger("vault")},
		})
	}
	if len(cfg.LocalKeys) > 0 {
		return transit.NewAESCipher(cfg.LocalKeys)
	}
	app.GetLogger("transit").Warn("no transit keys configured, credentials are not encrypted")
	return transit.NopCipher{}, nil
}

func WithProviders(ctx context.Context, app *App) error {
	cipher, err := newCipher(ctx, app)
	if err != nil {
		return err
	}
	cfg := app.Config()

	deps := provider.Deps{
		Sealer: provider.Sealer{Cipher: cipher, Key: cfg.Vault.KeyName},
		Logger: &loggerAdapter{app.GetLogger("provider")},
	}
	if cfg.OAuth.Gmail.Enabled || cfg.OAuth.Outlook.Enabled {
		states, err := securelink.NewManager(cfg.OAuth.State)
		if err != nil {
			return err
		}
		deps.States = states
	}

	handlers := []provider.Handler{provider.NewGenericHandler(provider.GenericConfig{}, deps)}
	if p := cfg.OAuth.Gmail; p.Enabled {
		app.gmail = provider.NewGmailHandler(provider.GmailConfig{OAuth: oauthConfig(p)}, deps)
		handlers = append(handlers, app.gmail)
	}
	if p := cfg.OAuth.Outlook; p.Enabled {
		handlers = append(handlers, provider.NewOutlookHandler(provider.OutlookConfig{
			OAuth:  oauthConfig(p),
			Tenant: p.Tenant,
		}, deps))
	}

	registry, err := provider.NewRegistry(handlers...)
	if err != nil {
		return err
	}
	app.providers = registry
	app.GetLogger("provider").Info("providers registered", "names", registry.Names())
	return nil
}

func oauthConfig(p config.OAuthProviderConfig) provider.OAuthConfig {
	return provider.OAuthConfig{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
		Scopes:       p.Scopes,
	}
}

func WithNotifications(ctx context.Context, app *App) error {
	cfg := app.Config().Nats
	logger := &loggerAdapter{app.GetLogger("notify")}

	var publisher notify.Publisher = notify.NopPublisher{}
	if cfg.Enabled {
		js, err := notify.NewJetStreamPublisher(ctx, notify.JetStreamConfig{
			URL:           cfg.URL,
			Stream:        cfg.Stream,
			SubjectPrefix: cfg.SubjectPrefix,
			Duplicates:    cfg.Duplicates,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		app.onClose(js.Close)
		publisher = js
	}

	app.store.OnCommit(notify.CommitListener(publisher, nil, logger))
	app.publisher = publisher
	return nil
}

func WithMailSync(ctx context.Context, app *App) error {
	logger := &loggerAdapter{app.GetLogger("mailsync")}

	scheduler, err := actions.NewScheduler(actions.SchedulerConfig{
		Accounts: app.accounts,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	svc := mailsync.New(mailsync.Config{
		Store:         app.store,
		Log:           app.txlog,
		Scheduler:     scheduler,
		Actions:       app.actions,
		Accounts:      app.accounts,
		Providers:     app.providers,
		FeatureGate:   app.gate,
		Logger:        logger,
		RetentionDays: app.Config().Delta.RetentionDays,
		MaxLimit:      app.Config().Delta.MaxLimit,
	})

	if err := svc.HealthCheck(ctx); err != nil {
		return err
	}
	app.mailsync = svc
	return nil
}

func WithSyncback(_ context.Context, app *App) error {
	cfg := app.Config().Syncback
	if !cfg.Enabled {
		app.GetLogger("syncback").Info("syncback worker disabled")
		return nil
	}

	executors := syncback.NewRegistry()
	if app.gmail != nil {
		syncback.NewGmailExecutor(app.store, app.gmail).Register(executors)
	}

	svc, err := syncback.New(syncback.Config{
		Actions:       app.actions,
		Accounts:      app.accounts,
		Executors:     executors,
		Locks:         lock.NewManager(),
		FeatureGate:   app.gate,
		Publisher:     app.publisher,
		Masker:        syncback.DefaultMasker(),
		PollInterval:  cfg.PollInterval,
		RetryInterval: cfg.RetryInterval,
		BatchSize:     cfg.BatchSize,
		MaxRetries:    cfg.MaxRetries,
		Concurrency:   cfg.Concurrency,
		Logger:        &loggerAdapter{app.GetLogger("syncback")},
	})
	if err != nil {
		return err
	}
	app.syncback = svc
	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: true,
			StrictRouting:     false,
		})
	})
	srv.Router().WithLogger(app.GetLogger("router"))
	app.srv = srv
	return nil
}
