package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"table-ordering/internal/changefeed"
	"table-ordering/internal/domain"
)

// Memory is a single-process Store. Change events go to the given
// publisher after each committed mutation.
type Memory struct {
	mu       sync.Mutex
	tables   map[int64]domain.Table
	menu     map[int64]domain.MenuItem
	orders   map[string]domain.Order
	statuses []domain.StatusChange
	nextTbl  int64
	nextMenu int64

	pub changefeed.Publisher
	now func() time.Time
}

func NewMemory(pub changefeed.Publisher) *Memory {
	return &Memory{
		tables: make(map[int64]domain.Table),
		menu:   make(map[int64]domain.MenuItem),
		orders: make(map[string]domain.Order),
		pub:    pub,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) emit(evs ...domain.ChangeEvent) {
	if m.pub == nil {
		return
	}
	for _, ev := range evs {
		m.pub.Publish(ev)
	}
}

func tableEvent(op domain.ChangeOp, t domain.Table, at time.Time) domain.ChangeEvent {
	return domain.ChangeEvent{Entity: domain.EntityTables, Op: op, ID: fmt.Sprint(t.ID), TableNumber: t.Number, At: at}
}

func orderEvent(op domain.ChangeOp, o domain.Order, at time.Time) domain.ChangeEvent {
	return domain.ChangeEvent{Entity: domain.EntityOrders, Op: op, ID: o.ID, TableNumber: o.TableNumber, At: at}
}

func (m *Memory) AddTable(ctx context.Context) (domain.Table, error) {
	m.mu.Lock()
	maxNum := 0
	for _, t := range m.tables {
		maxNum = max(maxNum, t.Number)
	}
	m.nextTbl++
	t := domain.Table{ID: m.nextTbl, Number: maxNum + 1, Status: domain.TableAvailable, UpdatedAt: m.now()}
	m.tables[t.ID] = t
	m.mu.Unlock()

	m.emit(tableEvent(domain.OpInsert, t, t.UpdatedAt))
	return t, nil
}

func (m *Memory) GetTable(ctx context.Context, id int64) (domain.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[id]
	if !ok {
		return domain.Table{}, fmt.Errorf("%w: table %d", domain.ErrNotFound, id)
	}
	return t, nil
}

func (m *Memory) ListTables(ctx context.Context) ([]domain.Table, error) {
	m.mu.Lock()
	out := make([]domain.Table, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *Memory) OpenTable(ctx context.Context, id int64, token string) (domain.Table, error) {
	m.mu.Lock()
	t, ok := m.tables[id]
	if !ok {
		m.mu.Unlock()
		return domain.Table{}, fmt.Errorf("%w: table %d", domain.ErrNotFound, id)
	}
	if t.Status != domain.TableAvailable {
		m.mu.Unlock()
		return t, fmt.Errorf("%w: table %d is already occupied", domain.ErrInvalidState, t.Number)
	}
	t.Status, t.SessionToken, t.UpdatedAt = domain.TableOccupied, token, m.now()
	m.tables[id] = t
	m.mu.Unlock()

	m.emit(tableEvent(domain.OpUpdate, t, t.UpdatedAt))
	return t, nil
}

func (m *Memory) CloseTable(ctx context.Context, id int64) (domain.Table, error) {
	m.mu.Lock()
	t, ok := m.tables[id]
	if !ok {
		m.mu.Unlock()
		return domain.Table{}, fmt.Errorf("%w: table %d", domain.ErrNotFound, id)
	}
	if t.Status == domain.TableAvailable {
		m.mu.Unlock()
		return t, nil
	}
	if n := m.activeCountLocked(t.Number); n > 0 {
		m.mu.Unlock()
		return t, fmt.Errorf("%w: table %d has %d unsettled orders", domain.ErrInvalidState, t.Number, n)
	}
	t.Status, t.SessionToken, t.UpdatedAt = domain.TableAvailable, "", m.now()
	m.tables[id] = t
	m.mu.Unlock()

	m.emit(tableEvent(domain.OpUpdate, t, t.UpdatedAt))
	return t, nil
}

func (m *Memory) activeCountLocked(number int) int {
	n := 0
	for _, o := range m.orders {
		if o.TableNumber == number && o.Status != domain.StatusCompleted {
			n++
		}
	}
	return n
}

func (m *Memory) AddMenuItem(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == 0 {
		m.nextMenu++
		item.ID = m.nextMenu
	} else if item.ID > m.nextMenu {
		m.nextMenu = item.ID
	}
	m.menu[item.ID] = item
	return item, nil
}

func (m *Memory) GetMenuItem(ctx context.Context, id int64) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.menu[id]
	if !ok {
		return domain.MenuItem{}, fmt.Errorf("%w: menu item %d", domain.ErrNotFound, id)
	}
	return item, nil
}

func (m *Memory) ListMenu(ctx context.Context, availableOnly bool) ([]domain.MenuItem, error) {
	m.mu.Lock()
	out := make([]domain.MenuItem, 0, len(m.menu))
	for _, item := range m.menu {
		if availableOnly && !item.IsAvailable {
			continue
		}
		out = append(out, item)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) InsertOrder(ctx context.Context, tableID int64, authorize AuthorizeFunc, o domain.Order) (domain.Order, error) {
	m.mu.Lock()
	t, ok := m.tables[tableID]
	if !ok {
		m.mu.Unlock()
		return domain.Order{}, fmt.Errorf("%w: table %d", domain.ErrNotFound, tableID)
	}
	if err := authorize(t); err != nil {
		m.mu.Unlock()
		return domain.Order{}, err
	}
	if _, dup := m.orders[o.ID]; dup {
		m.mu.Unlock()
		return domain.Order{}, fmt.Errorf("%w: order %s already exists", domain.ErrInvalidState, o.ID)
	}
	now := m.now()
	o.TableNumber = t.Number
	o.CreatedAt, o.UpdatedAt = now, now
	o.Items = append([]domain.ResolvedLine(nil), o.Items...)
	m.orders[o.ID] = o
	m.statuses = append(m.statuses, domain.StatusChange{OrderID: o.ID, Status: o.Status, ChangedBy: "customer", ChangedAt: now})
	m.mu.Unlock()

	m.emit(orderEvent(domain.OpInsert, o, now))
	return o, nil
}

func (m *Memory) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	return o, nil
}

func (m *Memory) ListOrders(ctx context.Context, activeOnly bool) ([]domain.Order, error) {
	return m.listOrders(func(o domain.Order) bool {
		return !activeOnly || o.Status != domain.StatusCompleted
	}), nil
}

func (m *Memory) ListTableOrders(ctx context.Context, tableNumber int, activeOnly bool) ([]domain.Order, error) {
	return m.listOrders(func(o domain.Order) bool {
		return o.TableNumber == tableNumber && (!activeOnly || o.Status != domain.StatusCompleted)
	}), nil
}

// listOrders returns matches newest first.
func (m *Memory) listOrders(keep func(domain.Order) bool) []domain.Order {
	m.mu.Lock()
	out := make([]domain.Order, 0)
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *Memory) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, changedBy string) (domain.Order, error) {
	m.mu.Lock()
	o, ok := m.orders[id]
	if !ok {
		m.mu.Unlock()
		return domain.Order{}, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	if o.Status != from {
		m.mu.Unlock()
		return o, fmt.Errorf("%w: order %s is %s, not %s", domain.ErrInvalidTransition, id, o.Status, from)
	}
	now := m.now()
	o.Status, o.UpdatedAt = to, now
	m.orders[id] = o
	m.statuses = append(m.statuses, domain.StatusChange{OrderID: id, Status: to, ChangedBy: changedBy, ChangedAt: now})
	m.mu.Unlock()

	m.emit(orderEvent(domain.OpUpdate, o, now))
	return o, nil
}

func (m *Memory) SettleTable(ctx context.Context, tableNumber int, paymentRef string) (domain.Settlement, error) {
	m.mu.Lock()
	var (
		tbl   domain.Table
		found bool
	)
	for _, t := range m.tables {
		if t.Number == tableNumber {
			tbl, found = t, true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return domain.Settlement{}, fmt.Errorf("%w: table number %d", domain.ErrNotFound, tableNumber)
	}

	now := m.now()
	s := domain.Settlement{TableNumber: tableNumber}
	var evs []domain.ChangeEvent
	for id, o := range m.orders {
		if o.TableNumber != tableNumber || o.Status == domain.StatusCompleted {
			continue
		}
		o.Status, o.PaymentStatus, o.PaymentRef, o.UpdatedAt = domain.StatusCompleted, domain.PaymentPaid, paymentRef, now
		m.orders[id] = o
		m.statuses = append(m.statuses, domain.StatusChange{OrderID: id, Status: o.Status, ChangedBy: "settlement", ChangedAt: now})
		s.Orders = append(s.Orders, o)
		s.Total += o.TotalPrice
		evs = append(evs, orderEvent(domain.OpUpdate, o, now))
	}
	if tbl.Status != domain.TableAvailable {
		tbl.Status, tbl.SessionToken, tbl.UpdatedAt = domain.TableAvailable, "", now
		m.tables[tbl.ID] = tbl
		evs = append(evs, tableEvent(domain.OpUpdate, tbl, now))
	}
	m.mu.Unlock()

	sort.Slice(s.Orders, func(i, j int) bool { return s.Orders[i].CreatedAt.Before(s.Orders[j].CreatedAt) })
	m.emit(evs...)
	return s, nil
}

func (m *Memory) PurgeOrders(ctx context.Context, ids []string) (int, error) {
	m.mu.Lock()
	now := m.now()
	var evs []domain.ChangeEvent
	for _, id := range ids {
		if o, ok := m.orders[id]; ok {
			delete(m.orders, id)
			m.statuses = slices.DeleteFunc(m.statuses, func(c domain.StatusChange) bool { return c.OrderID == id })
			evs = append(evs, orderEvent(domain.OpDelete, o, now))
		}
	}
	m.mu.Unlock()

	m.emit(evs...)
	return len(evs), nil
}

func (m *Memory) OrderTimeline(ctx context.Context, id string, limit, offset int) ([]domain.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	out := make([]domain.StatusChange, 0)
	for _, c := range m.statuses {
		if c.OrderID != id {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, c)
	}
	return out, nil
}

// StatusHistory returns the logged statuses of one order, oldest first.
func (m *Memory) StatusHistory(id string) []domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OrderStatus
	for _, l := range m.statuses {
		if l.OrderID == id {
			out = append(out, l.Status)
		}
	}
	return out
}
