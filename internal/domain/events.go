package domain

import "time"

type Entity string

const (
	EntityTables Entity = "tables"
	EntityOrders Entity = "orders"
)

type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// ChangeEvent is a row-level change notification. Receivers treat it as a
// hint to re-pull, never as data to merge.
type ChangeEvent struct {
	Entity      Entity    `json:"entity"`
	Op          ChangeOp  `json:"op"`
	ID          string    `json:"id"`
	TableNumber int       `json:"table_number"`
	At          time.Time `json:"at"`
}

// Announcement is one spoken/visual kitchen alert for a new order.
type Announcement struct {
	OrderID     string    `json:"order_id"`
	TableNumber int       `json:"table_number"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// AlertBatch is one flushed group of announcements, sorted by table number.
type AlertBatch struct {
	BatchID       string         `json:"batch_id"`
	FlushedAt     time.Time      `json:"flushed_at"`
	Announcements []Announcement `json:"announcements"`
}
