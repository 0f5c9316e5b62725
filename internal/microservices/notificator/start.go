package notificator

import (
	"context"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/connections/rabbitmq"
	"table-ordering/internal/microservices/notificator/service"
)

func Start(ctx context.Context, rmqClient *rabbitmq.Client, exchange, consumer string, prefetch int, lg *logger.Logger) error {
	ns := service.NewNotificatorService(rmqClient, exchange, consumer, prefetch, service.NewLogSpeaker(lg), lg)
	return ns.Notify(ctx)
}
