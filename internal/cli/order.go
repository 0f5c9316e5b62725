package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/connections/database"
	"table-ordering/internal/microservices/order"
	"table-ordering/internal/repository"
)

type OrderServiceOptions struct {
	*RootOptions
	Port          int
	MaxConcurrent int64
	Migrate       bool
}

func NewOrderServiceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrderServiceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "order-service",
		Short: "Serve the table, menu, order and bill API over Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrderService(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.Port, "port", 0, "HTTP port (overrides http.addr)")
	cmd.Flags().Int64Var(&opts.MaxConcurrent, "max-concurrent", 0, "max concurrent requests (overrides http.max_concurrent)")
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", true, "apply the schema on start")
	return cmd
}

func runOrderService(ctx context.Context, opts *OrderServiceOptions) error {
	cfg := opts.cfg
	applyHTTPFlags(cfg, opts.Port, opts.MaxConcurrent)
	if err := cfg.RequirePostgres(); err != nil {
		return err
	}
	lg := logger.New("order-service")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.Database)
	if err != nil {
		lg.Error("db_connection_failed", err, map[string]any{"host": cfg.Database.Host})
		return err
	}
	defer pool.Close()
	lg.Info("db_connected", map[string]any{"host": cfg.Database.Host, "database": cfg.Database.Database})

	if opts.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			lg.Error("db_migration_failed", err, nil)
			return err
		}
	}
	store := repository.NewPostgres(pool)
	if err := seedMenu(ctx, store, cfg, lg); err != nil {
		return err
	}
	return order.Run(ctx, cfg, store, lg)
}
