package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/connections/rabbitmq"
	"table-ordering/internal/microservices/notificator"
)

type NotificationSubscriberOptions struct {
	*RootOptions
	Consumer string
	Prefetch int
}

func NewNotificationSubscriberCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotificationSubscriberOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "notification-subscriber",
		Short: "Consume kitchen alert batches and announce them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotificationSubscriber(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Consumer, "consumer", "notificator", "AMQP consumer tag")
	cmd.Flags().IntVar(&opts.Prefetch, "prefetch", 1, "RabbitMQ prefetch")
	return cmd
}

func runNotificationSubscriber(ctx context.Context, opts *NotificationSubscriberOptions) error {
	cfg := opts.cfg
	if err := cfg.RequireRabbitMQ(); err != nil {
		return err
	}
	lg := logger.New("notification-subscriber")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rmq, err := rabbitmq.DialRetry(ctx, cfg.RabbitMQ, 10, 2*time.Second)
	if err != nil {
		lg.Error("rabbitmq_connection_failed", err, map[string]any{"host": cfg.RabbitMQ.Host})
		return err
	}
	defer rmq.Close()

	lg.Info("service_started", map[string]any{"exchange": cfg.Kitchen.Exchange, "prefetch": opts.Prefetch})
	return notificator.Start(ctx, rmq, cfg.Kitchen.Exchange, opts.Consumer, opts.Prefetch, lg)
}
