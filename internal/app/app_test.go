package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/arxiv-collector/internal/config"
	"github.com/helixir/arxiv-collector/internal/query"
)

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>arXiv Query</title></feed>`

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:           config.DriverSQLite,
			Path:             filepath.Join(t.TempDir(), "nested", "articles.db"),
			BusyTimeout:      time.Second,
			MigrationAutoRun: true,
		},
		Metrics: config.MetricsConfig{Enabled: true, Namespace: "arxiv_collector_test"},
		ArXiv: config.ArXivConfig{
			BaseURL:     baseURL,
			Timeout:     5 * time.Second,
			MinInterval: time.Millisecond,
		},
		Collector: config.CollectorConfig{
			Categories:       []string{"math.DG"},
			UpdatePageSize:   10,
			BackfillPageSize: 10,
		},
		Query: config.QueryConfig{DefaultLimit: 10, MaxLimit: 50},
	}
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(emptyFeed))
	}))
	defer srv.Close()

	a, err := Open(ctx, testConfig(t, srv.URL), zerolog.Nop(), Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Health(ctx))

	report, err := a.Service.RunIncrementalUpdate(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, report.FailedCategories())
	assert.Equal(t, 0, report.Written())

	entries, err := a.Service.FetchLog(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "math.DG", entries[0].Category)

	articles, err := a.Service.Query(ctx, query.Filter{})
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Database.Driver = "mysql"

	_, err := Open(context.Background(), cfg, zerolog.Nop(), Options{Registerer: prometheus.NewRegistry()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database driver")
}

func TestOpen_InvalidCollectorConfig(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Collector.Categories = nil

	_, err := Open(context.Background(), cfg, zerolog.Nop(), Options{Registerer: prometheus.NewRegistry()})
	require.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	a, err := Open(context.Background(), testConfig(t, "http://127.0.0.1:1"), zerolog.Nop(), Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
