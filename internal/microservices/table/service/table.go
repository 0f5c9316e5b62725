package service

import (
	"context"
	"errors"
	"fmt"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/domain"
	"table-ordering/internal/repository"
	"table-ordering/internal/session"
)

type TableServiceInterface interface {
	AddTable(ctx context.Context) (domain.Table, error)
	ListTables(ctx context.Context) ([]domain.Table, error)
	OpenTable(ctx context.Context, id int64, token string) (domain.Table, error)
	CloseTable(ctx context.Context, id int64) (domain.Table, error)
	Session(ctx context.Context, id int64, creds session.CredentialStore) (domain.SessionResponse, error)
	Menu(ctx context.Context, id int64, creds session.CredentialStore, at Position) ([]domain.MenuItem, error)
}

type TableService struct {
	db   repository.Store
	gate LocationGate
	lg   *logger.Logger
}

func NewTableService(db repository.Store, gate LocationGate, lg *logger.Logger) *TableService {
	if gate == nil {
		gate = AllowAll{}
	}
	return &TableService{db: db, gate: gate, lg: lg}
}

func (s *TableService) AddTable(ctx context.Context) (domain.Table, error) {
	t, err := s.db.AddTable(ctx)
	if err != nil {
		return domain.Table{}, err
	}
	s.lg.Info("table_added", map[string]any{"table_id": t.ID, "table_number": t.Number})
	return t, nil
}

func (s *TableService) ListTables(ctx context.Context) ([]domain.Table, error) {
	return s.db.ListTables(ctx)
}

// OpenTable occupies the table with the staff-supplied token, or a minted
// one. A table that is already occupied keeps its token.
func (s *TableService) OpenTable(ctx context.Context, id int64, token string) (domain.Table, error) {
	tok, err := session.TokenOrMint(token)
	if err != nil {
		return domain.Table{}, err
	}
	t, err := s.db.OpenTable(ctx, id, tok)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			s.lg.Warn("table_open_rejected", map[string]any{"table_id": id, "table_number": t.Number})
		}
		return domain.Table{}, err
	}
	s.lg.Info("table_opened", map[string]any{"table_id": t.ID, "table_number": t.Number})
	return t, nil
}

func (s *TableService) CloseTable(ctx context.Context, id int64) (domain.Table, error) {
	t, err := s.db.CloseTable(ctx, id)
	if err != nil {
		return domain.Table{}, err
	}
	s.lg.Info("table_closed", map[string]any{"table_id": t.ID, "table_number": t.Number})
	return t, nil
}

// Session observes the live table through a guard backed by creds. Any
// failure reads as revoked.
func (s *TableService) Session(ctx context.Context, id int64, creds session.CredentialStore) (domain.SessionResponse, error) {
	resp := domain.SessionResponse{TableID: id, State: session.Revoked.String()}
	t, err := s.db.GetTable(ctx, id)
	if err != nil {
		_ = creds.Clear()
		return resp, err
	}
	g := session.NewGuard(id, creds)
	resp.TableNumber = t.Number
	resp.State = g.Observe(t).String()
	return resp, nil
}

// Menu lists orderable items for a device that passes the location gate
// and holds a bound session.
func (s *TableService) Menu(ctx context.Context, id int64, creds session.CredentialStore, at Position) ([]domain.MenuItem, error) {
	if !s.gate.Allow(at) {
		return nil, fmt.Errorf("%w: table %d", domain.ErrOutsideVenue, id)
	}
	st, err := s.Session(ctx, id, creds)
	if err != nil {
		return nil, err
	}
	if st.State != session.Bound.String() {
		return nil, fmt.Errorf("%w: table %d is not open for this device", domain.ErrUnauthorized, st.TableNumber)
	}
	return s.db.ListMenu(ctx, true)
}
