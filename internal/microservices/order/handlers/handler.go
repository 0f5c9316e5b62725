package handlers

import (
	"table-ordering/internal/common/logger"
	"table-ordering/internal/microservices/order/service"
)

type Handler struct {
	OrderHandler *OrderHandler
}

func New(s *service.Service, secureCookies bool, lg *logger.Logger) *Handler {
	return &Handler{
		OrderHandler: NewOrderHandler(s.OrderService, secureCookies, lg),
	}
}
