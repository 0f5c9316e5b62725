package domain

type OpenTableRequest struct {
	Token string `json:"token"`
}

type CartLineInput struct {
	MenuItemID  int64    `json:"menu_item_id"`
	PriceTier   string   `json:"price_tier"`
	Variant     string   `json:"variant"`
	Extras      []string `json:"extras"`
	Fulfillment string   `json:"fulfillment"`
	Quantity    int      `json:"quantity"`
}

type SubmitOrderRequest struct {
	Lines []CartLineInput `json:"lines"`
}

type SubmitOrderResponse struct {
	OrderID     string `json:"order_id"`
	TableNumber int    `json:"table_number"`
	Status      string `json:"status"`
	TotalPrice  int64  `json:"total_price"`
}

type AdvanceOrderRequest struct {
	Status OrderStatus `json:"status"`
}

type SettleRequest struct {
	PaymentRef string `json:"payment_ref"`
}

type PurgeOrdersRequest struct {
	IDs []string `json:"ids"`
}

type SessionResponse struct {
	TableID     int64  `json:"table_id"`
	TableNumber int    `json:"table_number"`
	State       string `json:"state"`
}
