package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"stockservice/internal/config"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Application holds all the components and manages the application lifecycle
type Application struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container *Container
	infra     *Infrastructure
	factory   *ServiceFactory
}

// NewApplication creates and fully initializes a new Application instance
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	// Set up signal handling
	appCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	app := &Application{
		ctx:    appCtx,
		cancel: cancel,
	}

	// Initialize container (expensive singletons)
	container, err := NewContainer(app.ctx, cfg)
	if err != nil {
		cancel() // Clean up context if initialization fails
		return nil, err
	}
	app.container = container

	infra, err := NewInfrastructure(app.ctx, container)
	if err != nil {
		app.Shutdown()
		return nil, err
	}
	app.infra = infra

	if err := infra.SetupKafka(); err != nil {
		app.Shutdown()
		return nil, err
	}
	app.factory = NewServiceFactory(container, infra)

	app.container.Logger().Info("Application initialized successfully",
		zap.Strings("topics", cfg.Topics()),
		zap.Int("workers", cfg.ConsumerWorkers),
		zap.Bool("allow_negative_stock", cfg.AllowNegativeStock),
	)
	return app, nil
}

// Run starts the consumer workers and the ops server. It returns when either
// stops with an error or the process is signalled.
func (app *Application) Run() error {
	orchestrator := app.factory.CreateOrchestrator()
	handler := app.factory.CreateMessageHandler(orchestrator)
	consumer := app.factory.CreateConsumerService(handler)
	opsServer := app.factory.CreateOpsServer()

	g, ctx := errgroup.WithContext(app.ctx)
	g.Go(func() error {
		return consumer.Start(ctx)
	})
	g.Go(func() error {
		return opsServer.Run(ctx)
	})
	return g.Wait()
}

// Shutdown gracefully shuts down all application components
func (app *Application) Shutdown() {
	if app.container != nil {
		app.container.Logger().Info("Starting application shutdown...")
	}

	// Cancel context
	if app.cancel != nil {
		app.cancel()
	}

	if app.infra != nil {
		app.infra.Close()
	}

	// Shutdown container
	if app.container != nil {
		app.container.Shutdown(context.Background())
	}
}
