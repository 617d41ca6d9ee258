package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	mailsync "github.com/goliatone/go-mailsync"
	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/command"
	"github.com/goliatone/go-mailsync/config"
	"github.com/goliatone/go-mailsync/notify"
	"github.com/goliatone/go-mailsync/provider"
	"github.com/goliatone/go-mailsync/store"
	"github.com/goliatone/go-mailsync/syncback"
	"github.com/goliatone/go-mailsync/txlog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
)

type App struct {
	config    *gconfig.Container[*config.BaseConfig]
	bunDB     *bun.DB
	srv       router.Server[*fiber.App]
	logger    *glog.BaseLogger
	gate      *config.FlagGate
	store     *store.Store
	txlog     *txlog.Repository
	accounts  *account.Repository
	actions   *actions.Repository
	providers *provider.Registry
	gmail     *provider.GmailHandler
	publisher notify.Publisher
	mailsync  *mailsync.Service
	syncback  *syncback.Service
	closers   []func()
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("mailsync"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{
		Server: config.ServerConfig{
			Host: "localhost",
			Port: "8978",
		},
		Persistence: config.PersistenceConfig{
			Driver:         "sqlite",
			Server:         "file:mailsync.db?_journal_mode=WAL&cache=shared&_fk=1",
			PingTimeout:    5 * time.Second,
			OtelIdentifier: "go-mailsync",
		},
		Delta: config.DeltaConfig{
			MaxLimit:      10000,
			RetentionDays: command.DefaultRetentionDays,
			PurgeInterval: 24 * time.Hour,
		},
		Syncback: config.SyncbackConfig{
			Enabled:       true,
			PollInterval:  syncback.DefaultPollInterval,
			RetryInterval: syncback.DefaultRetryInterval,
			BatchSize:     syncback.DefaultBatchSize,
			Concurrency:   syncback.DefaultConcurrency,
		},
	}).WithLogger(lgr.GetLogger("config"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}
	if err := cfg.Raw().Validate(); err != nil {
		panic(err)
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	fmt.Println("============")

	app := &App{config: cfg, logger: lgr}
	defer app.Close()

	steps := []func(context.Context, *App) error{
		WithPersistence,
		WithFeatureGate,
		WithRepositories,
		WithProviders,
		WithNotifications,
		WithMailSync,
		WithSyncback,
		WithHTTPServer,
	}
	for _, step := range steps {
		if err := step(ctx, app); err != nil {
			panic(err)
		}
	}

	RegisterAPIRoutes(app)

	if app.syncback != nil {
		app.syncback.Start(ctx)
		app.onClose(app.syncback.Stop)
	}
	go runPurge(ctx, app)

	serverCfg := app.Config().GetServer()
	addr := fmt.Sprintf("%s:%s", serverCfg.Host, serverCfg.Port)
	log.Printf("Starting server on http://%s\n", addr)
	go func() {
		if err := app.srv.Serve(addr); err != nil {
			app.GetLogger("http").Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	app.GetLogger("app").Info("shutting down", "signal", sig.String())
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("http").Error("shutdown failed", "error", err)
	}
}

// runPurge soft deletes expired transaction log entries on a fixed interval.
func runPurge(ctx context.Context, app *App) {
	interval := app.Config().Delta.PurgeInterval
	if interval <= 0 {
		return
	}
	logger := app.GetLogger("purge")
	purge := app.mailsync.Commands().PurgeTransactions
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := &command.PurgeTransactionsResult{}
			if err := purge.Execute(ctx, command.PurgeTransactionsInput{Result: result}); err != nil {
				logger.Error("transaction purge failed", "error", err)
				continue
			}
			logger.Info("transaction purge finished", "count", result.Count, "before", result.Before)
		}
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
