// Package server initializes and runs the main application server: it
// opens the database, applies migrations, wires the services and starts
// the HTTP endpoint with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dkurganov/passvault/internal/cryptox"
	"github.com/dkurganov/passvault/internal/logging"
	"github.com/dkurganov/passvault/internal/server/config"
	"github.com/dkurganov/passvault/internal/server/httpapi"
	"github.com/dkurganov/passvault/internal/server/repositories/repomanager"
	"github.com/dkurganov/passvault/internal/server/services"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	masterKey, err := hex.DecodeString(c.MasterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key decode error: %w", err)
	}
	engine, err := cryptox.NewEngine(masterKey)
	if err != nil {
		return nil, fmt.Errorf("crypto engine init error: %w", err)
	}

	ts := services.NewTwoFactorService(db, rm)
	as := services.NewAuthService(db, rm, ts, c)
	vs := services.NewVaultService(db, rm, engine, c, logger)

	hs := httpapi.NewServer(c.EndpointAddr, logger, as, ts, vs, engine, c.SecretKey)

	return &App{config: c, logger: logger, db: db, httpServer: hs}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
