package telemetry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitLoggerWritesFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "server.log")
	logger, closer, err := InitLogger(path, slog.LevelInfo)
	require.NoError(t, err)

	logger.Info("Server listening", "addr", ":8080")
	slog.Debug("filtered out")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Server listening"`)
	assert.NotContains(t, string(data), "filtered out")
}

func TestInitLoggerStdoutOnly(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	_, closer, err := InitLogger("", slog.LevelInfo)
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
}

func TestInitExportsTraces(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	dir := t.TempDir()
	cleanup, err := Init(context.Background(), dir)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "llm.complete")
	span.End()
	cleanup()

	data, err := os.ReadFile(filepath.Join(dir, serviceName+"_traces.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "llm.complete")
}
