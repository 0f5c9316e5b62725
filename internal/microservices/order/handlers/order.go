package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"table-ordering/internal/common/httpx"
	"table-ordering/internal/common/logger"
	"table-ordering/internal/domain"
	"table-ordering/internal/microservices/order/service"
	"table-ordering/internal/session"
)

// StaffHeader names who performed a staff action; it lands in the status log.
const StaffHeader = "X-Staff-Name"

type OrderHandler struct {
	service       service.OrderServiceInterface
	secureCookies bool
	lg            *logger.Logger
}

func NewOrderHandler(s service.OrderServiceInterface, secureCookies bool, lg *logger.Logger) *OrderHandler {
	return &OrderHandler{service: s, secureCookies: secureCookies, lg: lg}
}

func (oh *OrderHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/tables/{table_id}/orders", oh.Submit)
	mux.HandleFunc("GET /api/v1/orders", oh.List)
	mux.HandleFunc("DELETE /api/v1/orders", oh.Purge)
	mux.HandleFunc("GET /api/v1/orders/{order_id}", oh.Get)
	mux.HandleFunc("GET /api/v1/orders/{order_id}/timeline", oh.Timeline)
	mux.HandleFunc("POST /api/v1/orders/{order_id}/advance", oh.Advance)
	mux.HandleFunc("GET /api/v1/bills/{table_number}", oh.Bill)
	mux.HandleFunc("POST /api/v1/bills/{table_number}/settle", oh.Settle)
}

func (oh *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	tableID, err := httpx.PathInt(r, "table_id")
	if err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	var req domain.SubmitOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	creds := session.NewCookieCredentials(w, r, tableID, oh.secureCookies)
	credential, _, err := creds.Load()
	if err != nil {
		oh.fail(w, r, fmt.Errorf("%w: unreadable session", domain.ErrUnauthorized), nil)
		return
	}

	resp, err := oh.service.Submit(r.Context(), tableID, credential, req)
	if err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (oh *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope != "" && scope != "active" && scope != "all" {
		oh.fail(w, r, fmt.Errorf("%w: scope must be active or all", domain.ErrInvalidInput), nil)
		return
	}
	orders, err := oh.service.List(r.Context(), scope != "all")
	if err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (oh *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := oh.service.Get(r.Context(), r.PathValue("order_id"))
	if err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

func (oh *OrderHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("order_id")
	limit := atoiDefault(r.URL.Query().Get("limit"), 50)
	offset := atoiDefault(r.URL.Query().Get("offset"), 0)
	events, err := oh.service.Timeline(r.Context(), id, limit, offset)
	if err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order_id": id, "events": events})
}

func (oh *OrderHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req domain.AdvanceOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	o, err := oh.service.Advance(r.Context(), r.PathValue("order_id"), req.Status, staff(r))
	if err != nil {
		var current any
		if o.ID != "" {
			current = o
		}
		oh.fail(w, r, err, current)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

func (oh *OrderHandler) Purge(w http.ResponseWriter, r *http.Request) {
	var req domain.PurgeOrdersRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	n, err := oh.service.Purge(r.Context(), req.IDs)
	if err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (oh *OrderHandler) Bill(w http.ResponseWriter, r *http.Request) {
	number, err := httpx.PathInt(r, "table_number")
	if err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	b, err := oh.service.Bill(r.Context(), int(number))
	if err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (oh *OrderHandler) Settle(w http.ResponseWriter, r *http.Request) {
	number, err := httpx.PathInt(r, "table_number")
	if err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	var req domain.SettleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	st, err := oh.service.Settle(r.Context(), int(number), req.PaymentRef)
	if err != nil {
		oh.fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

func (oh *OrderHandler) fail(w http.ResponseWriter, r *http.Request, err error, current any) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		oh.lg.WithRequestID(httpx.RequestID(r.Context())).Error("request_failed", err, map[string]any{"path": r.URL.Path})
	}
	httpx.WriteError(w, err, current)
}

func staff(r *http.Request) string {
	if name := strings.TrimSpace(r.Header.Get(StaffHeader)); name != "" {
		return name
	}
	return "staff"
}

func atoiDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
