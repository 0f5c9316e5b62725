package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/domain"
	"table-ordering/internal/repository"
)

type env struct {
	svc   *OrderService
	store *repository.Memory
	table domain.Table
	soup  domain.MenuItem
	tea   domain.MenuItem
}

func newEnv(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemory(nil)
	special := int64(65)
	soup, err := store.AddMenuItem(ctx, domain.MenuItem{
		Name: "Noodle Soup", Category: "noodles", BasePrice: 40, SpecialPrice: &special, IsAvailable: true,
		Variants: []string{"small", "large"},
		Extras:   []domain.Extra{{Name: "extra meatballs", PriceDelta: 10}},
	})
	require.NoError(t, err)
	tea, err := store.AddMenuItem(ctx, domain.MenuItem{Name: "Tea", Category: "drinks", BasePrice: 15, IsAvailable: true})
	require.NoError(t, err)
	tbl, err := store.AddTable(ctx)
	require.NoError(t, err)
	tbl, err = store.OpenTable(ctx, tbl.ID, "abc123")
	require.NoError(t, err)
	return env{svc: NewOrderService(store, []string{"noodles"}, logger.Nop()), store: store, table: tbl, soup: soup, tea: tea}
}

func (e env) submit(t *testing.T, cred string, lines ...domain.CartLineInput) (domain.SubmitOrderResponse, error) {
	t.Helper()
	return e.svc.Submit(context.Background(), e.table.ID, cred, domain.SubmitOrderRequest{Lines: lines})
}

func TestSubmit_PricesFromMenuAndMerges(t *testing.T) {
	e := newEnv(t)
	resp, err := e.submit(t, "abc123",
		domain.CartLineInput{MenuItemID: e.soup.ID, Variant: "small", Extras: []string{"extra meatballs"}},
		domain.CartLineInput{MenuItemID: e.soup.ID, Variant: "small", Extras: []string{"extra meatballs"}},
		domain.CartLineInput{MenuItemID: e.tea.ID, Quantity: 2},
	)
	require.NoError(t, err)
	assert.EqualValues(t, 2*50+2*15, resp.TotalPrice)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, e.table.Number, resp.TableNumber)

	o, err := e.svc.Get(context.Background(), resp.OrderID)
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Noodle Soup (small, extra meatballs)", o.Items[0].Name)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, domain.LinesTotal(o.Items), o.TotalPrice)
}

func TestSubmit_Rejections(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		name string
		cred string
		line domain.CartLineInput
		want error
	}{
		{"no credential", "", domain.CartLineInput{MenuItemID: e.tea.ID}, domain.ErrUnauthorized},
		{"stale credential", "old", domain.CartLineInput{MenuItemID: e.tea.ID}, domain.ErrUnauthorized},
		{"missing variant", "abc123", domain.CartLineInput{MenuItemID: e.soup.ID}, domain.ErrMissingRequiredChoice},
		{"unknown item", "abc123", domain.CartLineInput{MenuItemID: 999}, domain.ErrInvalidInput},
		{"bad tier", "abc123", domain.CartLineInput{MenuItemID: e.tea.ID, PriceTier: "special"}, domain.ErrInvalidInput},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := e.submit(t, c.cred, c.line)
			assert.ErrorIs(t, err, c.want)
		})
	}
	orders, _ := e.svc.List(context.Background(), false)
	assert.Empty(t, orders)

	_, err := e.svc.Submit(context.Background(), e.table.ID, "abc123", domain.SubmitOrderRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSubmit_AfterSettleIsUnauthorized(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Settle(context.Background(), e.table.Number, "")
	require.NoError(t, err)

	_, err = e.submit(t, "abc123", domain.CartLineInput{MenuItemID: e.tea.ID})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAdvance_OneStepAtATime(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	resp, err := e.submit(t, "abc123", domain.CartLineInput{MenuItemID: e.tea.ID})
	require.NoError(t, err)

	cur, err := e.svc.Advance(ctx, resp.OrderID, domain.StatusServed, "kitchen")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusPending, cur.Status, "rejection carries the current order")

	for _, next := range []domain.OrderStatus{domain.StatusCooking, domain.StatusServed, domain.StatusCompleted} {
		o, err := e.svc.Advance(ctx, resp.OrderID, next, "kitchen")
		require.NoError(t, err)
		assert.Equal(t, next, o.Status)
	}
	_, err = e.svc.Advance(ctx, resp.OrderID, domain.StatusPending, "kitchen")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	tl, err := e.svc.Timeline(ctx, resp.OrderID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, tl, 4)

	tl, err = e.svc.Timeline(ctx, resp.OrderID, 500, 0)
	require.NoError(t, err)
	assert.Len(t, tl, 4)

	for _, tc := range []struct{ in, want int }{{0, 50}, {-1, 50}, {10, 10}, {200, 200}, {201, 200}, {500, 200}} {
		got, off := timelinePage(tc.in, -3)
		assert.Equal(t, tc.want, got, "limit %d", tc.in)
		assert.Zero(t, off)
	}
}

func TestAdvance_UnknownOrMalformedID(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Advance(context.Background(), "not-a-uuid", domain.StatusCooking, "kitchen")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.svc.Advance(context.Background(), "0190b1a4-0000-7000-8000-000000000000", domain.StatusCooking, "kitchen")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBillThenSettle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.submit(t, "abc123", domain.CartLineInput{MenuItemID: e.tea.ID})
	require.NoError(t, err)
	second, err := e.submit(t, "abc123", domain.CartLineInput{MenuItemID: e.soup.ID, Variant: "large", PriceTier: "special"})
	require.NoError(t, err)
	_, err = e.svc.Advance(ctx, second.OrderID, domain.StatusCooking, "kitchen")
	require.NoError(t, err)

	bill, err := e.svc.Bill(ctx, e.table.Number)
	require.NoError(t, err)
	assert.EqualValues(t, 15+65, bill.Total)
	assert.Len(t, bill.Orders, 2)

	st, err := e.svc.Settle(ctx, e.table.Number, " slip://123 ")
	require.NoError(t, err)
	assert.Equal(t, bill.Total, st.Total)
	for _, o := range st.Orders {
		assert.Equal(t, "slip://123", o.PaymentRef)
	}

	tbl, _ := e.store.GetTable(ctx, e.table.ID)
	assert.Equal(t, domain.TableAvailable, tbl.Status)
	assert.True(t, tbl.Consistent())

	bill, err = e.svc.Bill(ctx, e.table.Number)
	require.NoError(t, err)
	assert.Zero(t, bill.Total)
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	resp, err := e.submit(t, "abc123", domain.CartLineInput{MenuItemID: e.tea.ID})
	require.NoError(t, err)

	_, err = e.svc.Purge(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	n, err := e.svc.Purge(ctx, []string{resp.OrderID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.svc.Advance(ctx, resp.OrderID, domain.StatusCooking, "kitchen")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
