// Package server initializes and runs the artivault server.
// It opens and migrates the database, wires the services, optional object
// storage and event hooks, and serves gRPC until a termination signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/artivault/internal/logging"
	"github.com/dmitrijs2005/artivault/internal/server/blobs"
	"github.com/dmitrijs2005/artivault/internal/server/config"
	"github.com/dmitrijs2005/artivault/internal/server/events"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/artivault/internal/server/services"

	gs "github.com/dmitrijs2005/artivault/internal/server/grpc"
)

type App struct {
	config           *config.Config
	logger           logging.Logger
	db               *sql.DB
	objectService    *services.ObjectService
	attributeService *services.AttributeService
	identities       gs.IdentityResolver
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(c.LogBackend)
	if err != nil {
		return nil, err
	}

	m, err := repomanager.NewRepositoryManager(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	var store blobs.Store
	if c.S3Bucket != "" {
		s3, err := blobs.NewS3Store(ctx, c)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("object storage init error: %w", err)
		}
		store = s3
	}

	dispatcher := events.NewDispatcher(logger)
	dispatcher.Subscribe(events.LogHandler(logger))

	return &App{
		config:           c,
		logger:           logger,
		db:               db,
		objectService:    services.NewObjectService(db, m, c, logger, dispatcher, store),
		attributeService: services.NewAttributeService(db, m, logger),
		identities:       services.NewIdentityResolver(db, m),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.objectService, app.attributeService, app.identities, app.config.SecretKey)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// closes the database.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
	app.logger.Info(ctx, "App stopped")
}

func (app *App) Close() error {
	return app.db.Close()
}
