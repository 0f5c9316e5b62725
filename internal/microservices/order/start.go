package order

import (
	"context"
	"net/http"

	"table-ordering/internal/common/httpx"
	"table-ordering/internal/common/logger"
	"table-ordering/internal/config"
	"table-ordering/internal/microservices/order/handlers"
	"table-ordering/internal/microservices/order/service"
	tablehandlers "table-ordering/internal/microservices/table/handlers"
	tableservice "table-ordering/internal/microservices/table/service"
	"table-ordering/internal/repository"
)

// NewRouter wires the table and order APIs over one store.
func NewRouter(cfg *config.Config, db repository.Store, lg *logger.Logger) http.Handler {
	gate := tableservice.Geofence{Lat: cfg.Location.Latitude, Lng: cfg.Location.Longitude, RadiusM: cfg.Location.RadiusM}
	tables := tablehandlers.NewTableHandler(tableservice.NewTableService(db, gate, lg), cfg.HTTP.SecureCookies, lg)
	h := handlers.New(service.New(db, cfg.Ordering.VariantRequiredCategories, lg), cfg.HTTP.SecureCookies, lg)

	mux := http.NewServeMux()
	tables.Routes(mux)
	h.OrderHandler.Routes(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return httpx.WithRequestID(lg, httpx.Limit(cfg.HTTP.MaxConcurrent, mux))
}

// Run serves the API until ctx is canceled.
func Run(ctx context.Context, cfg *config.Config, db repository.Store, lg *logger.Logger) error {
	srv := httpx.New(cfg.HTTP.Addr, NewRouter(cfg, db, lg), httpx.Options{
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, lg)
	lg.Info("service_started", map[string]any{"addr": cfg.HTTP.Addr, "max_concurrent": cfg.HTTP.MaxConcurrent})
	return srv.Run(ctx)
}
