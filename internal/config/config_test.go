package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "localhost:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "stock-service-group", cfg.GroupID)
	assert.Equal(t, "vendas", cfg.SalesTopic)
	assert.Equal(t, []string{"produtos", "lojas", "vendas", "ajustes-estoque"}, cfg.Topics())
	assert.Equal(t, 1, cfg.ConsumerWorkers)
	assert.Equal(t, LedgerBadger, cfg.LedgerBackend)
	assert.Equal(t, CatalogSQLite, cfg.CatalogBackend)
	assert.Equal(t, 30*time.Second, cfg.CatalogCacheTTL)
	assert.False(t, cfg.AllowNegativeStock)
	assert.Empty(t, cfg.StockChangesTopic)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CONSUMER_WORKERS", "4")
	t.Setenv("ALLOW_NEGATIVE_STOCK", "true")
	t.Setenv("LEDGER_BACKEND", "postgres")
	t.Setenv("DATABASE_DSN", "host=db user=stock dbname=stock")
	t.Setenv("CATALOG_BACKEND", "snapshot")
	t.Setenv("CATALOG_SNAPSHOT_PATH", "/etc/stock/catalog.yaml")
	t.Setenv("CATALOG_CACHE_TTL", "2m")
	t.Setenv("STOCK_CHANGES_TOPIC", "estoque-alterado")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 4, cfg.ConsumerWorkers)
	assert.True(t, cfg.AllowNegativeStock)
	assert.True(t, cfg.NeedsPostgres())
	assert.Equal(t, 2*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, "estoque-alterado", cfg.StockChangesTopic)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing brokers",
			env:  map[string]string{"KAFKA_BROKERS": ""},
			want: "KafkaBrokers",
		},
		{
			name: "unknown ledger backend",
			env:  map[string]string{"KAFKA_BROKERS": "k:9092", "LEDGER_BACKEND": "redis"},
			want: "LedgerBackend",
		},
		{
			name: "postgres without dsn",
			env:  map[string]string{"KAFKA_BROKERS": "k:9092", "LEDGER_BACKEND": "postgres"},
			want: "DATABASE_DSN",
		},
		{
			name: "snapshot without path",
			env:  map[string]string{"KAFKA_BROKERS": "k:9092", "CATALOG_BACKEND": "snapshot"},
			want: "CatalogSnapshotPath",
		},
		{
			name: "shared topic",
			env:  map[string]string{"KAFKA_BROKERS": "k:9092", "STORES_TOPIC": "vendas"},
			want: "more than one event kind",
		},
		{
			name: "zero workers",
			env:  map[string]string{"KAFKA_BROKERS": "k:9092", "CONSUMER_WORKERS": "0"},
			want: "ConsumerWorkers",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
