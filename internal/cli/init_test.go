package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmpm/internal/cache"
	"pmpm/internal/config"
	"pmpm/internal/core"
	"pmpm/internal/dataset/memory"
	applog "pmpm/internal/log"
)

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug", "json")
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.Equal(t, applog.ComponentApp, logger.Component())

	logger = SetupLogger("nonsense", "text")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

func TestLoadPanels(t *testing.T) {
	t.Run("built-in panels", func(t *testing.T) {
		reg, err := LoadPanels(&config.Config{})
		require.NoError(t, err)
		_, err = reg.Get("provider")
		assert.NoError(t, err)
	})

	t.Run("panels file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "panels.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`panels:
  - name: by_claim_type
    title: PMPM by claim type
    dataset: pmpm_by_claim_type
    regroup_by: [claim_type]
`), 0o644))

		reg, err := LoadPanels(&config.Config{PanelsFile: path})
		require.NoError(t, err)
		require.Len(t, reg.List(), 1)
		assert.Equal(t, "by_claim_type", reg.List()[0].Name)
	})
}

func TestNewSnapshotCache(t *testing.T) {
	store := memory.New(core.Dataset{
		Name: "year_months",
		Rows: []core.Row{{core.FieldYearMonth: "2023-01"}},
	})
	manager := cache.NewManager(nil)
	cfg := &config.Config{CacheSize: 4, CacheTTL: time.Millisecond}

	cached := NewSnapshotCache(store, cfg, manager)
	_, err := cached.Snapshot(context.Background(), "year_months")
	require.NoError(t, err)
	assert.Equal(t, []string{"year_months"}, cached.Cached())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, manager.CleanAll())
	assert.Empty(t, cached.Cached())
}

func TestGracefulShutdown_ParentCancel(t *testing.T) {
	logger := applog.New(applog.Config{Output: os.Stderr, Level: slog.LevelError})
	parent, cancel := context.WithCancel(context.Background())

	var cleaned atomic.Bool
	ctx, done := GracefulShutdown(parent, logger, time.Second, func(context.Context) {
		cleaned.Store(true)
	})

	cancel()
	WaitForShutdown(ctx, done)
	assert.True(t, cleaned.Load())
}

func TestGracefulShutdown_CleanupTimeout(t *testing.T) {
	logger := applog.New(applog.Config{Output: os.Stderr, Level: slog.LevelError})
	parent, cancel := context.WithCancel(context.Background())

	ctx, done := GracefulShutdown(parent, logger, 10*time.Millisecond, func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
	})

	cancel()
	start := time.Now()
	WaitForShutdown(ctx, done)
	assert.Less(t, time.Since(start), 40*time.Millisecond)
}

func TestOpenLoadSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "year_months.csv"), []byte("year_month\n2023-01\n"), 0o644))

	src, err := OpenLoadSource(context.Background(), &config.Config{DataBackend: config.BackendFile, DataDir: dir})
	require.NoError(t, err)
	names, err := src.Datasets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"year_months"}, names)

	_, err = OpenLoadSource(context.Background(), &config.Config{DataBackend: config.BackendFile, DataDir: filepath.Join(dir, "missing")})
	assert.Error(t, err)
}
