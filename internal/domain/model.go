package domain

import "time"

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
)

// Table is a physical seating unit. SessionToken is set iff Status is occupied.
type Table struct {
	ID           int64       `json:"id"`
	Number       int         `json:"table_number"`
	Status       TableStatus `json:"status"`
	SessionToken string      `json:"session_token,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (t Table) Occupied() bool { return t.Status == TableOccupied }

// Consistent reports whether the token/status invariant holds.
func (t Table) Consistent() bool {
	return (t.Status == TableOccupied) == (t.SessionToken != "")
}

type Extra struct {
	Name       string `json:"name" yaml:"name"`
	PriceDelta int64  `json:"price_delta" yaml:"price_delta"`
}

type MenuItem struct {
	ID           int64    `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Category     string   `json:"category" yaml:"category"`
	BasePrice    int64    `json:"price" yaml:"price"`
	SpecialPrice *int64   `json:"special_price,omitempty" yaml:"special_price"`
	IsAvailable  bool     `json:"is_available" yaml:"is_available"`
	ImageRef     string   `json:"image_url,omitempty" yaml:"image_url"`
	Variants     []string `json:"variants,omitempty" yaml:"variants"`
	Extras       []Extra  `json:"extras,omitempty" yaml:"extras"`
}

func (m MenuItem) Extra(name string) (Extra, bool) {
	for _, e := range m.Extras {
		if e.Name == name {
			return e, true
		}
	}
	return Extra{}, false
}

func (m MenuItem) HasVariant(v string) bool {
	for _, x := range m.Variants {
		if x == v {
			return true
		}
	}
	return false
}

// ResolvedLine is a cart line frozen at submission time. Modifier choices
// are baked into Name.
type ResolvedLine struct {
	MenuItemID int64  `json:"menu_item_id"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"price"`
	Quantity   int    `json:"quantity"`
}

type Order struct {
	ID            string         `json:"id"`
	TableNumber   int            `json:"table_number"`
	Items         []ResolvedLine `json:"items"`
	TotalPrice    int64          `json:"total_price"`
	Status        OrderStatus    `json:"status"`
	PaymentStatus PaymentStatus  `json:"payment_status"`
	PaymentRef    string         `json:"payment_ref,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// LinesTotal sums unitPrice*quantity over lines.
func LinesTotal(lines []ResolvedLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.UnitPrice * int64(l.Quantity)
	}
	return total
}

// Settlement is the result of checking the bill for a table.
type Settlement struct {
	TableNumber int     `json:"table_number"`
	Orders      []Order `json:"orders"`
	Total       int64   `json:"total"`
}

// StatusChange is one row of an order's status history.
type StatusChange struct {
	OrderID   string      `json:"order_id"`
	Status    OrderStatus `json:"status"`
	ChangedBy string      `json:"changed_by"`
	ChangedAt time.Time   `json:"changed_at"`
}
