package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

const (
	ServiceName    = "stock-service"
	ServiceVersion = "0.1.0"
)

// Kafka writer tuning for the stock-change topic
const (
	BatchTimeout = 10 * time.Millisecond
	BatchSize    = 100
)

const (
	LogsPath      = "/otlp/v1/logs"   // Grafana Cloud OTLP path
	TracesPath    = "/otlp/v1/traces" // Grafana Cloud OTLP path
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

const (
	LedgerBadger   = "badger"
	LedgerPostgres = "postgres"

	CatalogSQLite   = "sqlite"
	CatalogPostgres = "postgres"
	CatalogSnapshot = "snapshot"
)

// Config holds environment-specific configuration
type Config struct {
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envSeparator:"," validate:"required,min=1,dive,required"`
	GroupID           string   `env:"KAFKA_GROUP_ID" envDefault:"stock-service-group" validate:"required"`
	ProductsTopic     string   `env:"PRODUCTS_TOPIC" envDefault:"produtos" validate:"required"`
	StoresTopic       string   `env:"STORES_TOPIC" envDefault:"lojas" validate:"required"`
	SalesTopic        string   `env:"SALES_TOPIC" envDefault:"vendas" validate:"required"`
	AdjustmentsTopic  string   `env:"ADJUSTMENTS_TOPIC" envDefault:"ajustes-estoque" validate:"required"`
	StockChangesTopic string   `env:"STOCK_CHANGES_TOPIC"`
	ConsumerWorkers   int      `env:"CONSUMER_WORKERS" envDefault:"1" validate:"min=1,max=64"`

	OtelEndpoint   string `env:"OTEL_ENDPOINT"`
	OtelAuthHeader string `env:"OTEL_AUTH_HEADER"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	LedgerBackend string `env:"LEDGER_BACKEND" envDefault:"badger" validate:"oneof=badger postgres"`
	BadgerPath    string `env:"BADGER_PATH" envDefault:"./data/ledger" validate:"required_if=LedgerBackend badger"`
	DatabaseDSN   string `env:"DATABASE_DSN"`

	CatalogBackend      string        `env:"CATALOG_BACKEND" envDefault:"sqlite" validate:"oneof=sqlite postgres snapshot"`
	CatalogSQLitePath   string        `env:"CATALOG_SQLITE_PATH" envDefault:"./data/catalog.db" validate:"required_if=CatalogBackend sqlite"`
	CatalogSnapshotPath string        `env:"CATALOG_SNAPSHOT_PATH" validate:"required_if=CatalogBackend snapshot"`
	CatalogCacheTTL     time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"30s" validate:"min=0"`
	CatalogCacheSize    int           `env:"CATALOG_CACHE_SIZE" envDefault:"10000" validate:"min=1"`

	// AllowNegativeStock lets a mutation drive a stock line below zero.
	AllowNegativeStock bool `env:"ALLOW_NEGATIVE_STOCK" envDefault:"false"`

	OpsAddr         string        `env:"OPS_ADDR" envDefault:":9090"`
	RetryMaxElapsed time.Duration `env:"RETRY_MAX_ELAPSED" envDefault:"0s" validate:"min=0"`
}

// NeedsPostgres reports whether any configured backend talks to PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	return c.LedgerBackend == LedgerPostgres || c.CatalogBackend == CatalogPostgres
}

// Topics returns every topic the consumer subscribes to.
func (c *Config) Topics() []string {
	return []string{c.ProductsTopic, c.StoresTopic, c.SalesTopic, c.AdjustmentsTopic}
}

// LoadConfig loads configuration from environment variables with validation
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.NeedsPostgres() && cfg.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN environment variable is required for the postgres backend")
	}
	seen := make(map[string]bool, 4)
	for _, topic := range cfg.Topics() {
		if seen[topic] {
			return fmt.Errorf("topic %q is configured for more than one event kind", topic)
		}
		seen[topic] = true
	}
	return nil
}
