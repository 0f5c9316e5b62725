package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"table-ordering/internal/changefeed"
	"table-ordering/internal/common/logger"
	"table-ordering/internal/microservices/kitchen"
	kitchenservice "table-ordering/internal/microservices/kitchen/service"
	"table-ordering/internal/microservices/order"
	"table-ordering/internal/repository"
)

type ServeOptions struct {
	*RootOptions
	Port          int
	MaxConcurrent int64
	Tables        int
}

// NewServeCommand runs everything in one process over the in-memory store.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API and kitchen board in one process with an in-memory store",
		Long: `Run the whole system in one process. State lives in memory and is lost
on exit; change events travel over an in-process hub.

Example:
  table-ordering serve --port 3000 --tables 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.Port, "port", 0, "HTTP port (overrides http.addr)")
	cmd.Flags().Int64Var(&opts.MaxConcurrent, "max-concurrent", 0, "max concurrent requests (overrides http.max_concurrent)")
	cmd.Flags().IntVar(&opts.Tables, "tables", 4, "tables to create on start")
	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg := opts.cfg
	applyHTTPFlags(cfg, opts.Port, opts.MaxConcurrent)
	lg := logger.New("table-ordering")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := changefeed.NewHub(256)
	store := repository.NewMemory(hub)
	if err := seedMenu(ctx, store, cfg, lg); err != nil {
		return err
	}
	for i := 0; i < opts.Tables; i++ {
		if _, err := store.AddTable(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return order.Run(gctx, cfg, store, lg) })
	g.Go(func() error {
		return kitchen.Run(gctx, cfg, store, hub, kitchenservice.NewLogAnnouncer(lg.With(map[string]any{"view": "kitchen"})), lg)
	})
	return g.Wait()
}
