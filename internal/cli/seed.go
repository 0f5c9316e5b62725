package cli

import (
	"context"
	"fmt"
	"strconv"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/config"
	"table-ordering/internal/repository"
)

// seedMenu inserts the configured menu when the store has none.
func seedMenu(ctx context.Context, store repository.Store, cfg *config.Config, lg *logger.Logger) error {
	if len(cfg.Menu) == 0 {
		return nil
	}
	existing, err := store.ListMenu(ctx, false)
	if err != nil {
		return fmt.Errorf("seed menu: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, m := range cfg.Menu {
		if _, err := store.AddMenuItem(ctx, m.Item()); err != nil {
			return fmt.Errorf("seed menu item %q: %w", m.Name, err)
		}
	}
	lg.Info("menu_seeded", map[string]any{"items": len(cfg.Menu)})
	return nil
}

func applyHTTPFlags(cfg *config.Config, port int, maxConcurrent int64) {
	if port > 0 {
		cfg.HTTP.Addr = ":" + strconv.Itoa(port)
	}
	if maxConcurrent > 0 {
		cfg.HTTP.MaxConcurrent = maxConcurrent
	}
}
