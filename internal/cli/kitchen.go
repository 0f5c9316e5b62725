package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"table-ordering/internal/changefeed"
	"table-ordering/internal/common/logger"
	"table-ordering/internal/connections/database"
	"table-ordering/internal/connections/rabbitmq"
	"table-ordering/internal/microservices/kitchen"
	kitchenservice "table-ordering/internal/microservices/kitchen/service"
	"table-ordering/internal/repository"
)

type KitchenWorkerOptions struct {
	*RootOptions
	WorkerName string
}

func NewKitchenWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KitchenWorkerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "kitchen-worker",
		Short: "Follow new orders and publish batched kitchen alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKitchenWorker(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.WorkerName, "worker-name", "kitchen", "worker name used in logs")
	return cmd
}

func runKitchenWorker(ctx context.Context, opts *KitchenWorkerOptions) error {
	cfg := opts.cfg
	if err := cfg.RequirePostgres(); err != nil {
		return err
	}
	if err := cfg.RequireRabbitMQ(); err != nil {
		return err
	}
	lg := logger.New("kitchen-worker").With(map[string]any{"worker": opts.WorkerName})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.Database)
	if err != nil {
		lg.Error("db_connection_failed", err, map[string]any{"host": cfg.Database.Host})
		return err
	}
	defer pool.Close()

	rmq, err := rabbitmq.DialRetry(ctx, cfg.RabbitMQ, 10, 2*time.Second)
	if err != nil {
		lg.Error("rabbitmq_connection_failed", err, map[string]any{"host": cfg.RabbitMQ.Host})
		return err
	}
	defer rmq.Close()
	if err := rmq.DeclareFanout(cfg.Kitchen.Exchange); err != nil {
		return err
	}

	store := repository.NewPostgres(pool)
	src := changefeed.NewPGListener(pool, lg)
	out := kitchenservice.NewAlertPublisher(rmq, cfg.Kitchen.Exchange, lg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return kitchen.Run(gctx, cfg, store, src, out, lg) })
	g.Go(func() error { return watchBroker(gctx, rmq, lg) })
	return g.Wait()
}

// watchBroker fails the group when the broker connection drops, so the
// process exits and its supervisor restarts it.
func watchBroker(ctx context.Context, rmq *rabbitmq.Client, lg *logger.Logger) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-rmq.NotifyClose():
		if err == nil {
			return nil
		}
		lg.Error("rabbitmq_connection_lost", err, nil)
		return err
	}
}
