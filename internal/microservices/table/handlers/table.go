package handlers

import (
	"net/http"
	"strconv"

	"table-ordering/internal/common/httpx"
	"table-ordering/internal/common/logger"
	"table-ordering/internal/domain"
	"table-ordering/internal/microservices/table/service"
	"table-ordering/internal/session"
)

type TableHandler struct {
	service       service.TableServiceInterface
	secureCookies bool
	lg            *logger.Logger
}

func NewTableHandler(s service.TableServiceInterface, secureCookies bool, lg *logger.Logger) *TableHandler {
	return &TableHandler{service: s, secureCookies: secureCookies, lg: lg}
}

// Routes registers the staff table routes (list, add, open, close) and the
// device routes (session, menu). Session tokens leave the server only in the
// open response.
func (h *TableHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/tables", h.ListTables)
	mux.HandleFunc("POST /api/v1/tables", h.AddTable)
	mux.HandleFunc("POST /api/v1/tables/{table_id}/open", h.OpenTable)
	mux.HandleFunc("POST /api/v1/tables/{table_id}/close", h.CloseTable)
	mux.HandleFunc("GET /api/v1/tables/{table_id}/session", h.Session)
	mux.HandleFunc("GET /api/v1/tables/{table_id}/menu", h.Menu)
}

func (h *TableHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.ListTables(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	for i := range tables {
		tables[i].SessionToken = ""
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (h *TableHandler) AddTable(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.AddTable(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, t)
}

func (h *TableHandler) OpenTable(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt(r, "table_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req domain.OpenTableRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.service.OpenTable(r.Context(), id, req.Token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *TableHandler) CloseTable(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt(r, "table_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.service.CloseTable(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *TableHandler) Session(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt(r, "table_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := h.service.Session(r.Context(), id, session.NewCookieCredentials(w, r, id, h.secureCookies))
	if err != nil {
		h.lg.Warn("session_check_failed", map[string]any{"table_id": id, "error": err.Error()})
		httpx.WriteError(w, err, st)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

func (h *TableHandler) Menu(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt(r, "table_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.service.Menu(r.Context(), id, session.NewCookieCredentials(w, r, id, h.secureCookies), position(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// position reads ?lat=&lng= when both parse.
func position(r *http.Request) service.Position {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		return service.Position{}
	}
	return service.Position{Lat: lat, Lng: lng, Known: true}
}

func (h *TableHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.lg.WithRequestID(httpx.RequestID(r.Context())).Error("request_failed", err, map[string]any{"path": r.URL.Path})
	}
	httpx.WriteError(w, err, nil)
}
