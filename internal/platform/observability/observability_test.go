package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"stockservice/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.uber.org/zap"
)

func TestNewLoggerWritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("warn", &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", zap.String("store_code", "S1"))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "S1", entry["store_code"])
	assert.Equal(t, config.ServiceName, entry["service.name"])
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger("loud", io.Discard)
	assert.Error(t, err)
}

func TestSetupSDKsWithoutEndpoint(t *testing.T) {
	cfg := &config.Config{}

	shutdown, err := SetupLoggingSDK(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrExporterDisabled)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	tp, shutdown, err := SetupTracingSDK(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrExporterDisabled)
	assert.Nil(t, tp)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupMetricsSDKServesPrometheus(t *testing.T) {
	handler, shutdown, err := SetupMetricsSDK()
	require.NoError(t, err)
	defer shutdown(context.Background())

	counter, err := otel.Meter("test").Int64Counter("stock_test_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "stock_test_total")
}

func TestNewResourceMergesWithDefault(t *testing.T) {
	res, err := newResource()
	require.NoError(t, err)
	assert.Equal(t, resource.Default().SchemaURL(), res.SchemaURL())

	name, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, config.ServiceName, name.AsString())

	version, ok := res.Set().Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, config.ServiceVersion, version.AsString())
}
