package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-ordering/internal/changefeed"
	"table-ordering/internal/domain"
	"table-ordering/internal/session"
)

func newOrder(total int64) domain.Order {
	return domain.Order{
		ID:            uuid.NewString(),
		Items:         []domain.ResolvedLine{{MenuItemID: 1, Name: "Noodle Soup", UnitPrice: total, Quantity: 1}},
		TotalPrice:    total,
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentUnpaid,
	}
}

func allow(domain.Table) error { return nil }

func TestMemory_AddTableNumbersFromMax(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	for want := 1; want <= 3; want++ {
		tbl, err := m.AddTable(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, tbl.Number)
		assert.Equal(t, domain.TableAvailable, tbl.Status)
	}
	tables, err := m.ListTables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 3)
}

func TestMemory_OpenTwiceKeepsFirstToken(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	tbl, _ := m.AddTable(ctx)

	opened, err := m.OpenTable(ctx, tbl.ID, "abc123")
	require.NoError(t, err)
	assert.True(t, opened.Consistent())

	cur, err := m.OpenTable(ctx, tbl.ID, "zzz")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, "abc123", cur.SessionToken)

	got, _ := m.GetTable(ctx, tbl.ID)
	assert.Equal(t, "abc123", got.SessionToken)
}

func TestMemory_CloseTable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	tbl, _ := m.AddTable(ctx)

	same, err := m.CloseTable(ctx, tbl.ID)
	require.NoError(t, err, "closing an available table is a no-op")
	assert.Equal(t, domain.TableAvailable, same.Status)

	_, _ = m.OpenTable(ctx, tbl.ID, "tok")
	o, err := m.InsertOrder(ctx, tbl.ID, allow, newOrder(50))
	require.NoError(t, err)

	_, err = m.CloseTable(ctx, tbl.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = m.UpdateOrderStatus(ctx, o.ID, domain.StatusPending, domain.StatusCompleted, "staff")
	require.NoError(t, err)
	closed, err := m.CloseTable(ctx, tbl.ID)
	require.NoError(t, err)
	assert.True(t, closed.Consistent())
	assert.Empty(t, closed.SessionToken)

	_, err = m.CloseTable(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_InsertOrderAuthorizesAgainstLiveToken(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	tbl, _ := m.AddTable(ctx)
	_, _ = m.OpenTable(ctx, tbl.ID, "old")
	_, err := m.SettleTable(ctx, tbl.Number, "")
	require.NoError(t, err)
	_, _ = m.OpenTable(ctx, tbl.ID, "new")

	authz := func(cred string) AuthorizeFunc {
		return func(t domain.Table) error { return session.Authorize(t, cred) }
	}
	_, err = m.InsertOrder(ctx, tbl.ID, authz("old"), newOrder(10))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	orders, _ := m.ListTableOrders(ctx, tbl.Number, false)
	assert.Empty(t, orders, "rejected insert leaves no order behind")

	saved, err := m.InsertOrder(ctx, tbl.ID, authz("new"), newOrder(10))
	require.NoError(t, err)
	assert.Equal(t, tbl.Number, saved.TableNumber)
	assert.Equal(t, []domain.OrderStatus{domain.StatusPending}, m.StatusHistory(saved.ID))
}

func TestMemory_UpdateOrderStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	tbl, _ := m.AddTable(ctx)
	_, _ = m.OpenTable(ctx, tbl.ID, "tok")
	o, _ := m.InsertOrder(ctx, tbl.ID, allow, newOrder(10))

	_, err := m.UpdateOrderStatus(ctx, o.ID, domain.StatusPending, domain.StatusCooking, "kitchen")
	require.NoError(t, err)

	cur, err := m.UpdateOrderStatus(ctx, o.ID, domain.StatusPending, domain.StatusCooking, "kitchen")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusCooking, cur.Status, "stale writer sees the current status")

	_, err = m.UpdateOrderStatus(ctx, "missing", domain.StatusPending, domain.StatusCooking, "kitchen")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_SettleTable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	tbl, _ := m.AddTable(ctx)
	other, _ := m.AddTable(ctx)
	_, _ = m.OpenTable(ctx, tbl.ID, "tok")
	_, _ = m.OpenTable(ctx, other.ID, "tok2")

	a, _ := m.InsertOrder(ctx, tbl.ID, allow, newOrder(50))
	b, _ := m.InsertOrder(ctx, tbl.ID, allow, newOrder(70))
	_, _ = m.UpdateOrderStatus(ctx, b.ID, domain.StatusPending, domain.StatusCooking, "kitchen")
	keep, _ := m.InsertOrder(ctx, other.ID, allow, newOrder(5))

	s, err := m.SettleTable(ctx, tbl.Number, "slip-1")
	require.NoError(t, err)
	assert.EqualValues(t, 120, s.Total)
	require.Len(t, s.Orders, 2)
	for _, o := range s.Orders {
		assert.Equal(t, domain.StatusCompleted, o.Status)
		assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
		assert.Equal(t, "slip-1", o.PaymentRef)
	}
	assert.Equal(t, domain.StatusCompleted, m.StatusHistory(a.ID)[1])

	released, _ := m.GetTable(ctx, tbl.ID)
	assert.Equal(t, domain.TableAvailable, released.Status)
	assert.Empty(t, released.SessionToken)

	untouched, _ := m.GetOrder(ctx, keep.ID)
	assert.Equal(t, domain.StatusPending, untouched.Status)

	again, err := m.SettleTable(ctx, tbl.Number, "")
	require.NoError(t, err)
	assert.Empty(t, again.Orders)
	assert.Zero(t, again.Total)

	_, err = m.SettleTable(ctx, 42, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_PurgeOrders(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	tbl, _ := m.AddTable(ctx)
	_, _ = m.OpenTable(ctx, tbl.ID, "tok")
	o, _ := m.InsertOrder(ctx, tbl.ID, allow, newOrder(10))

	n, err := m.PurgeOrders(ctx, []string{o.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = m.UpdateOrderStatus(ctx, o.ID, domain.StatusPending, domain.StatusCooking, "kitchen")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_ListMenuFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	_, _ = m.AddMenuItem(ctx, domain.MenuItem{Name: "Tea", Category: "drinks", IsAvailable: true})
	_, _ = m.AddMenuItem(ctx, domain.MenuItem{Name: "Soup", Category: "noodles", IsAvailable: true})
	_, _ = m.AddMenuItem(ctx, domain.MenuItem{Name: "Coffee", Category: "drinks", IsAvailable: false})

	all, _ := m.ListMenu(ctx, false)
	assert.Len(t, all, 3)

	avail, _ := m.ListMenu(ctx, true)
	require.Len(t, avail, 2)
	assert.Equal(t, "Tea", avail[0].Name)
	assert.Equal(t, "Soup", avail[1].Name)
}

func TestMemory_ListOrdersNewestFirstAndActive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	tbl, _ := m.AddTable(ctx)
	_, _ = m.OpenTable(ctx, tbl.ID, "tok")
	first, _ := m.InsertOrder(ctx, tbl.ID, allow, newOrder(1))
	second, _ := m.InsertOrder(ctx, tbl.ID, allow, newOrder(2))
	_, _ = m.UpdateOrderStatus(ctx, first.ID, domain.StatusPending, domain.StatusCompleted, "staff")

	all, _ := m.ListOrders(ctx, false)
	require.Len(t, all, 2)
	assert.False(t, all[0].CreatedAt.Before(all[1].CreatedAt))

	active, _ := m.ListOrders(ctx, true)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestMemory_EmitsChangeEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := changefeed.NewHub(16)
	events, err := hub.Subscribe(ctx)
	require.NoError(t, err)

	m := NewMemory(hub)
	tbl, _ := m.AddTable(ctx)
	_, _ = m.OpenTable(ctx, tbl.ID, "tok")
	o, _ := m.InsertOrder(ctx, tbl.ID, allow, newOrder(10))

	want := []domain.ChangeEvent{
		{Entity: domain.EntityTables, Op: domain.OpInsert},
		{Entity: domain.EntityTables, Op: domain.OpUpdate},
		{Entity: domain.EntityOrders, Op: domain.OpInsert, ID: o.ID},
	}
	for _, w := range want {
		ev := <-events
		assert.Equal(t, w.Entity, ev.Entity)
		assert.Equal(t, w.Op, ev.Op)
		assert.Equal(t, tbl.Number, ev.TableNumber)
		if w.ID != "" {
			assert.Equal(t, w.ID, ev.ID)
		}
	}
}

func TestMemory_ConcurrentOpenHasOneWinner(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	tbl, _ := m.AddTable(ctx)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.OpenTable(ctx, tbl.ID, uuid.NewString()); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemory_OrderTimeline(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	tbl, _ := m.AddTable(ctx)
	_, _ = m.OpenTable(ctx, tbl.ID, "tok")
	o, _ := m.InsertOrder(ctx, tbl.ID, allow, newOrder(10))
	_, _ = m.UpdateOrderStatus(ctx, o.ID, domain.StatusPending, domain.StatusCooking, "kitchen")
	_, _ = m.UpdateOrderStatus(ctx, o.ID, domain.StatusCooking, domain.StatusServed, "kitchen")

	all, err := m.OrderTimeline(ctx, o.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "customer", all[0].ChangedBy)
	assert.Equal(t, domain.StatusServed, all[2].Status)

	page, err := m.OrderTimeline(ctx, o.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, domain.StatusCooking, page[0].Status)

	_, err = m.OrderTimeline(ctx, "missing", 10, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
