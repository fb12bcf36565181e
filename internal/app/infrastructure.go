package app

import (
	"context"
	"errors"
	"fmt"

	"stockservice/internal/catalog"
	"stockservice/internal/config"
	"stockservice/internal/inventory"
	"stockservice/internal/ledger"
	"stockservice/internal/platform/kafka"
	"stockservice/internal/platform/ops"
	badgerstore "stockservice/internal/storage/badger"
	"stockservice/internal/storage/postgres"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Infrastructure holds the stateful backends: ledger, catalog replica and
// Kafka clients.
type Infrastructure struct {
	container *Container

	db        *gorm.DB
	ledger    ledger.Store
	reader    ledger.Reader
	catalog   inventory.CatalogOracle
	replica   catalog.Oracle
	closers   []func() error
	consumers []kafka.Consumer
	producer  kafka.Producer
}

// NewInfrastructure opens the configured ledger and catalog backends
func NewInfrastructure(ctx context.Context, container *Container) (*Infrastructure, error) {
	infra := &Infrastructure{container: container}

	if err := infra.setupDatabase(); err != nil {
		return nil, err
	}
	if err := infra.setupLedger(); err != nil {
		infra.Close()
		return nil, err
	}
	if err := infra.setupCatalog(ctx); err != nil {
		infra.Close()
		return nil, err
	}
	return infra, nil
}

func (infra *Infrastructure) cfg() *config.Config { return infra.container.Config() }

func (infra *Infrastructure) setupDatabase() error {
	if !infra.cfg().NeedsPostgres() {
		return nil
	}
	db, err := postgres.Open(infra.cfg().DatabaseDSN, infra.container.Logger())
	if err != nil {
		return err
	}
	infra.db = db
	infra.closers = append(infra.closers, func() error { return postgres.Close(db) })
	return nil
}

func (infra *Infrastructure) setupLedger() error {
	logger := infra.container.Logger()

	switch infra.cfg().LedgerBackend {
	case config.LedgerPostgres:
		l := postgres.NewLedger(infra.db, ledger.DefaultMaxAttempts)
		infra.ledger, infra.reader = l, l
	default:
		bcfg := badgerstore.DefaultConfig(infra.cfg().BadgerPath)
		bcfg.Logger = logger
		bcfg.MaxAttempts = ledger.DefaultMaxAttempts
		l, err := badgerstore.Open(bcfg)
		if err != nil {
			return fmt.Errorf("failed to open badger ledger: %w", err)
		}
		infra.ledger, infra.reader = l, l
		// closed first so no unit runs against a closed database
		infra.closers = append([]func() error{l.Close}, infra.closers...)
	}

	logger.Info("📒 Ledger ready", zap.String("backend", infra.cfg().LedgerBackend))
	return nil
}

func (infra *Infrastructure) setupCatalog(ctx context.Context) error {
	var oracle catalog.Oracle

	switch infra.cfg().CatalogBackend {
	case config.CatalogPostgres:
		oracle = postgres.NewCatalog(infra.db)
	case config.CatalogSnapshot:
		snap, err := catalog.LoadSnapshot(infra.cfg().CatalogSnapshotPath)
		if err != nil {
			return err
		}
		oracle = snap
	default:
		db, err := catalog.OpenSQLite(ctx, infra.cfg().CatalogSQLitePath)
		if err != nil {
			return err
		}
		infra.closers = append(infra.closers, db.Close)
		oracle = db
	}

	infra.replica = oracle
	infra.catalog = catalog.NewCached(oracle, infra.cfg().CatalogCacheTTL, infra.cfg().CatalogCacheSize)
	infra.container.Logger().Info("📚 Catalog ready", zap.String("backend", infra.cfg().CatalogBackend))
	return nil
}

// SetupKafka creates one group reader per worker and, when a stock-change
// topic is configured, the instrumented writer.
func (infra *Infrastructure) SetupKafka() error {
	cfg := infra.cfg()
	for i := 0; i < cfg.ConsumerWorkers; i++ {
		infra.consumers = append(infra.consumers, kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.GroupID,
			Topics:  cfg.Topics(),
		}))
	}

	if cfg.StockChangesTopic == "" {
		return nil
	}
	producer, err := infra.NewProducer(cfg.StockChangesTopic)
	if err != nil {
		return err
	}
	infra.producer = producer
	return nil
}

// NewProducer creates an instrumented writer for topic. The caller closes it
// unless it is the stock-change producer owned by infra.
func (infra *Infrastructure) NewProducer(topic string) (kafka.Producer, error) {
	producer, err := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      infra.cfg().KafkaBrokers,
		Topic:        topic,
		ClientID:     config.ServiceName,
		BatchTimeout: config.BatchTimeout,
		BatchSize:    config.BatchSize,
	}, infra.container.TracerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka writer for %s: %w", topic, err)
	}
	return producer, nil
}

// ReadinessChecks reads from the ledger and the catalog replica. The replica
// is queried directly, bypassing the catalog cache.
func (infra *Infrastructure) ReadinessChecks() map[string]ops.Check {
	return map[string]ops.Check{
		"ledger": func(ctx context.Context) error {
			_, err := infra.reader.Claimed(ctx, "readiness-probe")
			return err
		},
		"catalog": func(ctx context.Context) error {
			_, err := infra.replica.StoreExists(ctx, "")
			return err
		},
	}
}

// Close releases Kafka clients and backends
func (infra *Infrastructure) Close() {
	logger := infra.container.Logger()
	var errs []error

	for _, c := range infra.consumers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close message consumer: %w", err))
		}
	}
	if infra.producer != nil {
		if err := infra.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close message producer: %w", err))
		}
	}
	for _, closeFn := range infra.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	infra.consumers, infra.producer, infra.closers = nil, nil, nil

	if err := errors.Join(errs...); err != nil {
		logger.Error("Failed to close infrastructure", zap.Error(err))
	}
}

// Getters for accessing infrastructure components
func (infra *Infrastructure) DB() *gorm.DB                     { return infra.db }
func (infra *Infrastructure) Ledger() ledger.Store             { return infra.ledger }
func (infra *Infrastructure) LedgerReader() ledger.Reader      { return infra.reader }
func (infra *Infrastructure) Catalog() inventory.CatalogOracle { return infra.catalog }
func (infra *Infrastructure) Consumers() []kafka.Consumer      { return infra.consumers }
func (infra *Infrastructure) Producer() kafka.Producer         { return infra.producer }
