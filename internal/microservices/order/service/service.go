package service

import (
	"table-ordering/internal/common/logger"
	"table-ordering/internal/repository"
)

type Service struct {
	OrderService OrderServiceInterface
}

func New(db repository.Store, variantCategories []string, lg *logger.Logger) *Service {
	return &Service{
		OrderService: NewOrderService(db, variantCategories, lg),
	}
}
