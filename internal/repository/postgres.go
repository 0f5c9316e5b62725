package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"table-ordering/internal/domain"
)

// Postgres is the shared Store. Change events are emitted by the schema's
// NOTIFY triggers inside the same transaction as each write.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

const tableCols = `id, table_number, status, COALESCE(session_token, ''), updated_at`

const orderCols = `id, table_number, items, total_price, status, payment_status, COALESCE(payment_ref, ''), created_at, updated_at`

const menuCols = `id, name, category, price, special_price, is_available, COALESCE(image_url, ''), variants, extras`

func scanTable(row pgx.Row) (domain.Table, error) {
	var (
		t      domain.Table
		status string
	)
	if err := row.Scan(&t.ID, &t.Number, &status, &t.SessionToken, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Table{}, domain.ErrNotFound
		}
		return domain.Table{}, err
	}
	t.Status = domain.TableStatus(status)
	return t, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o             domain.Order
		items         []byte
		status, paySt string
	)
	err := row.Scan(&o.ID, &o.TableNumber, &items, &o.TotalPrice, &status, &paySt, &o.PaymentRef, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, fmt.Errorf("decode items of order %s: %w", o.ID, err)
	}
	o.Status, o.PaymentStatus = domain.OrderStatus(status), domain.PaymentStatus(paySt)
	return o, nil
}

func scanMenuItem(row pgx.Row) (domain.MenuItem, error) {
	var (
		m              domain.MenuItem
		variants, extr []byte
	)
	err := row.Scan(&m.ID, &m.Name, &m.Category, &m.BasePrice, &m.SpecialPrice, &m.IsAvailable, &m.ImageRef, &variants, &extr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MenuItem{}, domain.ErrNotFound
		}
		return domain.MenuItem{}, err
	}
	if err := json.Unmarshal(variants, &m.Variants); err != nil {
		return domain.MenuItem{}, fmt.Errorf("decode variants of menu item %d: %w", m.ID, err)
	}
	if err := json.Unmarshal(extr, &m.Extras); err != nil {
		return domain.MenuItem{}, fmt.Errorf("decode extras of menu item %d: %w", m.ID, err)
	}
	return m, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) AddTable(ctx context.Context) (domain.Table, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return domain.Table{}, fmt.Errorf("add table: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `LOCK TABLE restaurant_tables IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return domain.Table{}, fmt.Errorf("add table: %w", err)
	}
	t, err := scanTable(tx.QueryRow(ctx, `
		INSERT INTO restaurant_tables (table_number, status)
		SELECT COALESCE(MAX(table_number), 0) + 1, 'available' FROM restaurant_tables
		RETURNING `+tableCols))
	if err != nil {
		return domain.Table{}, fmt.Errorf("add table: %w", err)
	}
	return t, tx.Commit(ctx)
}

func (p *Postgres) GetTable(ctx context.Context, id int64) (domain.Table, error) {
	t, err := scanTable(p.pool.QueryRow(ctx, `SELECT `+tableCols+` FROM restaurant_tables WHERE id=$1`, id))
	if err != nil {
		return domain.Table{}, fmt.Errorf("get table %d: %w", id, err)
	}
	return t, nil
}

func (p *Postgres) ListTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+tableCols+` FROM restaurant_tables ORDER BY table_number`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return collect(rows, scanTable)
}

func (p *Postgres) OpenTable(ctx context.Context, id int64, token string) (domain.Table, error) {
	t, err := scanTable(p.pool.QueryRow(ctx, `
		UPDATE restaurant_tables SET status='occupied', session_token=$2, updated_at=now()
		WHERE id=$1 AND status='available'
		RETURNING `+tableCols, id, token))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Table{}, fmt.Errorf("open table %d: %w", id, err)
	}
	cur, err := p.GetTable(ctx, id)
	if err != nil {
		return domain.Table{}, err
	}
	return cur, fmt.Errorf("%w: table %d is already occupied", domain.ErrInvalidState, cur.Number)
}

func (p *Postgres) CloseTable(ctx context.Context, id int64) (domain.Table, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return domain.Table{}, fmt.Errorf("close table %d: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := scanTable(tx.QueryRow(ctx, `SELECT `+tableCols+` FROM restaurant_tables WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return domain.Table{}, fmt.Errorf("close table %d: %w", id, err)
	}
	if t.Status == domain.TableAvailable {
		return t, tx.Commit(ctx)
	}
	var active int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM orders WHERE table_number=$1 AND status <> 'completed'`, t.Number).Scan(&active); err != nil {
		return domain.Table{}, fmt.Errorf("close table %d: %w", id, err)
	}
	if active > 0 {
		return t, fmt.Errorf("%w: table %d has %d unsettled orders", domain.ErrInvalidState, t.Number, active)
	}
	t, err = scanTable(tx.QueryRow(ctx, `
		UPDATE restaurant_tables SET status='available', session_token=NULL, updated_at=now()
		WHERE id=$1 RETURNING `+tableCols, id))
	if err != nil {
		return domain.Table{}, fmt.Errorf("close table %d: %w", id, err)
	}
	return t, tx.Commit(ctx)
}

func (p *Postgres) AddMenuItem(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	variants, err := json.Marshal(nonNil(item.Variants))
	if err != nil {
		return domain.MenuItem{}, err
	}
	extras, err := json.Marshal(nonNil(item.Extras))
	if err != nil {
		return domain.MenuItem{}, err
	}
	m, err := scanMenuItem(p.pool.QueryRow(ctx, `
		INSERT INTO restaurant_menus (name, category, price, special_price, is_available, image_url, variants, extras)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		RETURNING `+menuCols,
		item.Name, item.Category, item.BasePrice, item.SpecialPrice, item.IsAvailable, item.ImageRef, variants, extras))
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("add menu item %q: %w", item.Name, err)
	}
	return m, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (p *Postgres) GetMenuItem(ctx context.Context, id int64) (domain.MenuItem, error) {
	m, err := scanMenuItem(p.pool.QueryRow(ctx, `SELECT `+menuCols+` FROM restaurant_menus WHERE id=$1`, id))
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("get menu item %d: %w", id, err)
	}
	return m, nil
}

func (p *Postgres) ListMenu(ctx context.Context, availableOnly bool) ([]domain.MenuItem, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+menuCols+` FROM restaurant_menus
		WHERE NOT $1 OR is_available
		ORDER BY category, id`, availableOnly)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	return collect(rows, scanMenuItem)
}

func (p *Postgres) InsertOrder(ctx context.Context, tableID int64, authorize AuthorizeFunc, o domain.Order) (domain.Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return domain.Order{}, fmt.Errorf("encode items: %w", err)
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// FOR SHARE blocks a concurrent close/reopen until this insert commits.
	t, err := scanTable(tx.QueryRow(ctx, `SELECT `+tableCols+` FROM restaurant_tables WHERE id=$1 FOR SHARE`, tableID))
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order for table %d: %w", tableID, err)
	}
	if err := authorize(t); err != nil {
		return domain.Order{}, err
	}

	saved, err := scanOrder(tx.QueryRow(ctx, `
		INSERT INTO orders (id, table_number, items, total_price, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+orderCols,
		o.ID, t.Number, items, o.TotalPrice, string(o.Status), string(o.PaymentStatus)))
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by) VALUES ($1, $2, 'customer')
	`, saved.ID, string(saved.Status)); err != nil {
		return domain.Order{}, fmt.Errorf("insert order status log: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit order: %w", err)
	}
	return saved, nil
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(p.pool.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

func (p *Postgres) ListOrders(ctx context.Context, activeOnly bool) ([]domain.Order, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+orderCols+` FROM orders
		WHERE NOT $1 OR status <> 'completed'
		ORDER BY created_at DESC, id DESC`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return collect(rows, scanOrder)
}

func (p *Postgres) ListTableOrders(ctx context.Context, tableNumber int, activeOnly bool) ([]domain.Order, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+orderCols+` FROM orders
		WHERE table_number=$1 AND (NOT $2 OR status <> 'completed')
		ORDER BY created_at DESC, id DESC`, tableNumber, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list orders of table %d: %w", tableNumber, err)
	}
	return collect(rows, scanOrder)
}

func (p *Postgres) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, changedBy string) (domain.Order, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2
		RETURNING `+orderCols, id, string(from), string(to)))
	if errors.Is(err, domain.ErrNotFound) {
		cur, gerr := scanOrder(tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
		if gerr != nil {
			return domain.Order{}, fmt.Errorf("update order %s: %w", id, gerr)
		}
		return cur, fmt.Errorf("%w: order %s is %s, not %s", domain.ErrInvalidTransition, id, cur.Status, from)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order %s: %w", id, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by) VALUES ($1, $2, $3)
	`, id, string(to), changedBy); err != nil {
		return domain.Order{}, fmt.Errorf("insert order status log: %w", err)
	}
	return o, tx.Commit(ctx)
}

func (p *Postgres) SettleTable(ctx context.Context, tableNumber int, paymentRef string) (domain.Settlement, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settle table %d: %w", tableNumber, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := scanTable(tx.QueryRow(ctx, `SELECT `+tableCols+` FROM restaurant_tables WHERE table_number=$1 FOR UPDATE`, tableNumber))
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settle table %d: %w", tableNumber, err)
	}

	rows, err := tx.Query(ctx, `
		WITH settled AS (
			UPDATE orders
			SET status='completed', payment_status='paid', payment_ref=NULLIF($2, ''), updated_at=now()
			WHERE table_number=$1 AND status <> 'completed'
			RETURNING *
		), logged AS (
			INSERT INTO order_status_log (order_id, status, changed_by)
			SELECT id, 'completed', 'settlement' FROM settled
		)
		SELECT `+orderCols+` FROM settled ORDER BY created_at`, tableNumber, paymentRef)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settle table %d: %w", tableNumber, err)
	}
	orders, err := collect(rows, scanOrder)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settle table %d: %w", tableNumber, err)
	}

	if t.Status != domain.TableAvailable {
		if _, err := tx.Exec(ctx, `
			UPDATE restaurant_tables SET status='available', session_token=NULL, updated_at=now() WHERE id=$1
		`, t.ID); err != nil {
			return domain.Settlement{}, fmt.Errorf("release table %d: %w", tableNumber, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Settlement{}, fmt.Errorf("commit settlement of table %d: %w", tableNumber, err)
	}

	s := domain.Settlement{TableNumber: tableNumber, Orders: orders}
	for _, o := range orders {
		s.Total += o.TotalPrice
	}
	return s, nil
}

func (p *Postgres) PurgeOrders(ctx context.Context, ids []string) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM orders WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("purge orders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) OrderTimeline(ctx context.Context, id string, limit, offset int) ([]domain.StatusChange, error) {
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("order timeline %s: %w", id, err)
	}
	if !exists {
		return nil, fmt.Errorf("order timeline %s: %w", id, domain.ErrNotFound)
	}
	rows, err := p.pool.Query(ctx, `
		SELECT order_id, status, changed_by, changed_at FROM order_status_log
		WHERE order_id=$1
		ORDER BY changed_at, id
		LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order timeline %s: %w", id, err)
	}
	return collect(rows, func(row pgx.Row) (domain.StatusChange, error) {
		var (
			c      domain.StatusChange
			status string
		)
		if err := row.Scan(&c.OrderID, &status, &c.ChangedBy, &c.ChangedAt); err != nil {
			return c, err
		}
		c.Status = domain.OrderStatus(status)
		return c, nil
	})
}
