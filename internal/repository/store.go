package repository

import (
	"context"

	"table-ordering/internal/domain"
)

// AuthorizeFunc runs against the locked table row right before an order
// insert. Returning an error aborts the insert.
type AuthorizeFunc func(t domain.Table) error

// Store is the shared persisted state: tables, menu and orders. Every
// mutation is observable as a change event.
type Store interface {
	AddTable(ctx context.Context) (domain.Table, error)
	GetTable(ctx context.Context, id int64) (domain.Table, error)
	ListTables(ctx context.Context) ([]domain.Table, error)
	// OpenTable occupies an available table with token; ErrInvalidState if occupied.
	OpenTable(ctx context.Context, id int64, token string) (domain.Table, error)
	// CloseTable releases a table. Closing an available table is a no-op;
	// a table with non-completed orders cannot be closed.
	CloseTable(ctx context.Context, id int64) (domain.Table, error)

	AddMenuItem(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error)
	GetMenuItem(ctx context.Context, id int64) (domain.MenuItem, error)
	ListMenu(ctx context.Context, availableOnly bool) ([]domain.MenuItem, error)

	// InsertOrder locks the table, runs authorize, stamps the table number
	// snapshot and inserts o, all in one unit.
	InsertOrder(ctx context.Context, tableID int64, authorize AuthorizeFunc, o domain.Order) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, activeOnly bool) ([]domain.Order, error)
	ListTableOrders(ctx context.Context, tableNumber int, activeOnly bool) ([]domain.Order, error)
	// UpdateOrderStatus moves o from 'from' to 'to' only if it is still in
	// 'from'; ErrInvalidTransition otherwise.
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, changedBy string) (domain.Order, error)
	// SettleTable completes and pays every non-completed order of the table
	// and releases the table, atomically.
	SettleTable(ctx context.Context, tableNumber int, paymentRef string) (domain.Settlement, error)
	PurgeOrders(ctx context.Context, ids []string) (int, error)
	// OrderTimeline pages through an order's status history, oldest first.
	OrderTimeline(ctx context.Context, id string, limit, offset int) ([]domain.StatusChange, error)
}
