package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"table-ordering/internal/common/logger"
)

type Server struct {
	*http.Server
	lg *logger.Logger
}

type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func New(addr string, h http.Handler, opts Options, lg *logger.Logger) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      opts.WriteTimeout,
		},
		lg: lg,
	}
}

// Run serves until ctx is canceled, then shuts down within 5s.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()
	s.lg.Info("http_listening", map[string]any{"addr": s.Addr})

	select {
	case <-ctx.Done():
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx2); err != nil {
			s.lg.Error("http_shutdown_failed", err, nil)
		}
		s.lg.Info("http_stopped", map[string]any{"addr": s.Addr})
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
