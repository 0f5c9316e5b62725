package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-ordering/internal/changefeed"
	"table-ordering/internal/common/logger"
	"table-ordering/internal/config"
	"table-ordering/internal/repository"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "order-service", "kitchen-worker", "notification-subscriber"} {
		assert.True(t, names[want], "missing %s", want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}

func TestRootOptions_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\nhttp:\n  addr: \":4000\"\n"), 0o600))

	opts := &RootOptions{ConfigPath: path, LogLevel: "debug"}
	require.NoError(t, opts.load())
	assert.Equal(t, "debug", opts.cfg.LogLevel)
	assert.Equal(t, ":4000", opts.cfg.HTTP.Addr)
	logger.SetLevel(0)

	bad := &RootOptions{ConfigPath: path, LogLevel: "loud"}
	assert.Error(t, bad.load())

	missing := &RootOptions{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")}
	assert.Error(t, missing.load())
}

func TestOrderService_RequiresPostgres(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Host = ""
	err := runOrderService(context.Background(), &OrderServiceOptions{RootOptions: &RootOptions{cfg: cfg}})
	assert.Error(t, err)
}

func TestApplyHTTPFlags(t *testing.T) {
	cfg := config.Default()
	applyHTTPFlags(cfg, 0, 0)
	assert.Equal(t, ":3000", cfg.HTTP.Addr)
	applyHTTPFlags(cfg, 8081, 7)
	assert.Equal(t, ":8081", cfg.HTTP.Addr)
	assert.Equal(t, int64(7), cfg.HTTP.MaxConcurrent)
}

func TestSeedMenu(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Menu = []config.MenuSeed{
		{Name: "Ramen", Category: "noodles", Price: 90, Variants: []string{"thin", "thick"}},
		{Name: "Tea", Category: "drinks", Price: 20},
	}
	store := repository.NewMemory(changefeed.NewHub(1))

	require.NoError(t, seedMenu(ctx, store, cfg, logger.Nop()))
	items, err := store.ListMenu(ctx, false)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	require.NoError(t, seedMenu(ctx, store, cfg, logger.Nop()))
	items, err = store.ListMenu(ctx, false)
	require.NoError(t, err)
	assert.Len(t, items, 2, "seeding twice must not duplicate the menu")
}
