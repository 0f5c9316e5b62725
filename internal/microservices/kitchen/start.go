package kitchen

import (
	"context"

	"table-ordering/internal/batcher"
	"table-ordering/internal/changefeed"
	"table-ordering/internal/common/logger"
	"table-ordering/internal/config"
	"table-ordering/internal/microservices/kitchen/service"
	"table-ordering/internal/repository"
)

// Run keeps a kitchen board alive until ctx is canceled.
func Run(ctx context.Context, cfg *config.Config, db repository.Store, src changefeed.Source, out batcher.Announcer, lg *logger.Logger) error {
	board := service.NewBoard(db, src, out, service.BoardOptions{
		DebounceWindow:  cfg.Kitchen.DebounceWindow,
		PollInterval:    cfg.Ordering.PollInterval,
		MaxSyncFailures: cfg.Ordering.MaxSyncFailures,
		AnnounceBacklog: cfg.Kitchen.AnnounceBacklog,
	}, lg)
	lg.Info("kitchen_board_started", map[string]any{"debounce_window": cfg.Kitchen.DebounceWindow.String()})
	err := board.Run(ctx)
	lg.Info("kitchen_board_stopped", nil)
	return err
}
