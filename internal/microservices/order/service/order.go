package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"table-ordering/internal/cart"
	"table-ordering/internal/common/logger"
	"table-ordering/internal/domain"
	"table-ordering/internal/repository"
	"table-ordering/internal/session"
)

type OrderServiceInterface interface {
	Submit(ctx context.Context, tableID int64, credential string, req domain.SubmitOrderRequest) (domain.SubmitOrderResponse, error)
	Advance(ctx context.Context, id string, to domain.OrderStatus, changedBy string) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	Timeline(ctx context.Context, id string, limit, offset int) ([]domain.StatusChange, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Order, error)
	Bill(ctx context.Context, tableNumber int) (domain.Settlement, error)
	Settle(ctx context.Context, tableNumber int, paymentRef string) (domain.Settlement, error)
	Purge(ctx context.Context, ids []string) (int, error)
}

type OrderService struct {
	db                repository.Store
	variantCategories []string
	lg                *logger.Logger
}

func NewOrderService(db repository.Store, variantCategories []string, lg *logger.Logger) *OrderService {
	return &OrderService{db: db, variantCategories: variantCategories, lg: lg}
}

// Submit prices the lines from the live menu and inserts a pending order.
// The credential is checked against the table's current token inside the
// insert, so a session closed mid-submit never gets an order.
func (s *OrderService) Submit(ctx context.Context, tableID int64, credential string, req domain.SubmitOrderRequest) (domain.SubmitOrderResponse, error) {
	if credential == "" {
		return domain.SubmitOrderResponse{}, fmt.Errorf("%w: no session for table", domain.ErrUnauthorized)
	}
	if len(req.Lines) == 0 {
		return domain.SubmitOrderResponse{}, fmt.Errorf("%w: at least one line is required", domain.ErrInvalidInput)
	}

	c := cart.NewComposer(s.variantCategories)
	for i, in := range req.Lines {
		item, err := s.db.GetMenuItem(ctx, in.MenuItemID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.SubmitOrderResponse{}, fmt.Errorf("%w: line %d: unknown menu item %d", domain.ErrInvalidInput, i, in.MenuItemID)
		}
		if err != nil {
			return domain.SubmitOrderResponse{}, err
		}
		qty := in.Quantity
		if qty == 0 {
			qty = 1
		}
		ch := cart.Choices{
			Tier:        cart.PriceTier(strings.TrimSpace(in.PriceTier)),
			Variant:     in.Variant,
			Extras:      in.Extras,
			Fulfillment: cart.Fulfillment(strings.TrimSpace(in.Fulfillment)),
		}
		if _, err := c.AddLines(item, ch, qty); err != nil {
			return domain.SubmitOrderResponse{}, fmt.Errorf("line %d: %w", i, err)
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return domain.SubmitOrderResponse{}, fmt.Errorf("order id: %w", err)
	}
	o := domain.Order{
		ID:            id.String(),
		Items:         c.Resolve(),
		TotalPrice:    c.Total(),
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentUnpaid,
	}
	saved, err := s.db.InsertOrder(ctx, tableID, func(t domain.Table) error {
		return session.Authorize(t, credential)
	}, o)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.lg.Warn("order_rejected_unauthorized", map[string]any{"table_id": tableID})
		}
		return domain.SubmitOrderResponse{}, err
	}

	s.lg.Info("order_submitted", map[string]any{
		"order_id":     saved.ID,
		"table_number": saved.TableNumber,
		"lines":        len(saved.Items),
		"total_price":  saved.TotalPrice,
	})
	return domain.SubmitOrderResponse{
		OrderID:     saved.ID,
		TableNumber: saved.TableNumber,
		Status:      string(saved.Status),
		TotalPrice:  saved.TotalPrice,
	}, nil
}

// Advance moves an order one step forward. On rejection the current order
// is returned with the error.
func (s *OrderService) Advance(ctx context.Context, id string, to domain.OrderStatus, changedBy string) (domain.Order, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if err := domain.CheckTransition(cur.Status, to); err != nil {
		return cur, err
	}
	o, err := s.db.UpdateOrderStatus(ctx, id, cur.Status, to, changedBy)
	if err != nil {
		return o, err
	}
	s.lg.Info("order_status_changed", map[string]any{
		"order_id":   id,
		"old_status": cur.Status,
		"new_status": to,
		"changed_by": changedBy,
	})
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Order{}, fmt.Errorf("%w: order %q", domain.ErrNotFound, id)
	}
	return s.db.GetOrder(ctx, id)
}

func (s *OrderService) Timeline(ctx context.Context, id string, limit, offset int) ([]domain.StatusChange, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: order %q", domain.ErrNotFound, id)
	}
	limit, offset = timelinePage(limit, offset)
	return s.db.OrderTimeline(ctx, id, limit, offset)
}

const (
	defaultTimelineLimit = 50
	maxTimelineLimit     = 200
)

func timelinePage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = defaultTimelineLimit
	case limit > maxTimelineLimit:
		limit = maxTimelineLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *OrderService) List(ctx context.Context, activeOnly bool) ([]domain.Order, error) {
	return s.db.ListOrders(ctx, activeOnly)
}

// Bill previews what settling the table would charge.
func (s *OrderService) Bill(ctx context.Context, tableNumber int) (domain.Settlement, error) {
	orders, err := s.db.ListTableOrders(ctx, tableNumber, true)
	if err != nil {
		return domain.Settlement{}, err
	}
	b := domain.Settlement{TableNumber: tableNumber, Orders: orders}
	for _, o := range orders {
		b.Total += o.TotalPrice
	}
	return b, nil
}

// Settle completes and pays every open order of the table and releases it.
func (s *OrderService) Settle(ctx context.Context, tableNumber int, paymentRef string) (domain.Settlement, error) {
	paymentRef = strings.TrimSpace(paymentRef)
	if len(paymentRef) > 512 {
		return domain.Settlement{}, fmt.Errorf("%w: payment_ref too long", domain.ErrInvalidInput)
	}
	st, err := s.db.SettleTable(ctx, tableNumber, paymentRef)
	if err != nil {
		return domain.Settlement{}, err
	}
	s.lg.Info("table_settled", map[string]any{
		"table_number": tableNumber,
		"orders":       len(st.Orders),
		"total_price":  st.Total,
	})
	return st, nil
}

func (s *OrderService) Purge(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: ids are required", domain.ErrInvalidInput)
	}
	n, err := s.db.PurgeOrders(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.lg.Info("orders_purged", map[string]any{"requested": len(ids), "deleted": n})
	return n, nil
}
