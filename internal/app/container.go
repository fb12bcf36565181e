package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"stockservice/internal/config"
	"stockservice/internal/platform/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Container holds the configuration and the observability singletons every
// command needs.
type Container struct {
	config              *config.Config
	logger              *zap.Logger
	tracer              observability.Tracer
	tracerProvider      trace.TracerProvider
	metricsHandler      http.Handler
	otelLogShutdown     func(context.Context) error
	otelTraceShutdown   func(context.Context) error
	otelMetricsShutdown func(context.Context) error
}

// NewContainer initializes logging, tracing and metrics for cfg
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		config: cfg,
	}

	// Start with a console-only logger until the OTel log provider exists
	logger, err := observability.NewLogger(cfg.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	container.logger = logger

	if err := container.setupObservability(ctx); err != nil {
		return nil, err
	}

	return container, nil
}

// setupObservability configures OpenTelemetry logging, tracing and metrics
func (c *Container) setupObservability(ctx context.Context) error {
	otelLogShutdown, err := observability.SetupLoggingSDK(ctx, c.config)
	if err != nil {
		c.logExporterError("Failed to setup OpenTelemetry logging", err)
	}
	c.otelLogShutdown = otelLogShutdown

	tp, otelTraceShutdown, err := observability.SetupTracingSDK(ctx, c.config)
	if err != nil {
		c.logExporterError("Failed to setup OpenTelemetry tracing", err)
	}
	c.otelTraceShutdown = otelTraceShutdown
	if tp != nil {
		c.tracerProvider = tp
	} else {
		c.tracerProvider = otel.GetTracerProvider()
	}

	metricsHandler, otelMetricsShutdown, err := observability.SetupMetricsSDK()
	if err != nil {
		return fmt.Errorf("failed to setup metrics: %w", err)
	}
	c.metricsHandler = metricsHandler
	c.otelMetricsShutdown = otelMetricsShutdown

	// Re-initialize logger so it also feeds the OTel log provider
	logger, err := observability.NewLogger(c.config.LogLevel, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	c.logger = logger
	c.logger.Debug("Logger re-initialized with OpenTelemetry bridge")

	c.tracer = c.tracerProvider.Tracer(config.ServiceName)
	return nil
}

func (c *Container) logExporterError(msg string, err error) {
	if errors.Is(err, observability.ErrExporterDisabled) {
		c.logger.Info(msg+": exporter disabled", zap.String("reason", err.Error()))
		return
	}
	c.logger.Error(msg, zap.Error(err))
}

// Shutdown flushes telemetry and syncs the logger
func (c *Container) Shutdown(ctx context.Context) {
	if c.otelTraceShutdown != nil {
		if err := c.otelTraceShutdown(ctx); err != nil {
			c.logger.Error("Failed to shutdown OTel tracing", zap.Error(err))
		}
	}

	if c.otelMetricsShutdown != nil {
		if err := c.otelMetricsShutdown(ctx); err != nil {
			c.logger.Error("Failed to shutdown OTel metrics", zap.Error(err))
		}
	}

	if c.otelLogShutdown != nil {
		if err := c.otelLogShutdown(ctx); err != nil {
			c.logger.Error("Failed to shutdown OTel logging", zap.Error(err))
		}
	}

	// Sync logger
	if err := c.logger.Sync(); err != nil {
		// Can't log this error since logger might be closed
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
	}
}

// Getters for accessing container components
func (c *Container) Config() *config.Config               { return c.config }
func (c *Container) Logger() *zap.Logger                  { return c.logger }
func (c *Container) Tracer() observability.Tracer         { return c.tracer }
func (c *Container) TracerProvider() trace.TracerProvider { return c.tracerProvider }
func (c *Container) MetricsHandler() http.Handler         { return c.metricsHandler }
