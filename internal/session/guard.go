// Package session implements table session tokens and the per-device guard
// that decides whether a device may order against a table.
//
// The table token is the whole authorization boundary. Every ambiguous
// outcome, including a failing credential store, resolves to Revoked.
package session

import (
	"fmt"

	"table-ordering/internal/domain"
)

type State int

const (
	Unbound State = iota
	Bound
	Revoked
)

func (s State) String() string {
	switch s {
	case Bound:
		return "bound"
	case Revoked:
		return "revoked"
	default:
		return "unbound"
	}
}

// CredentialStore is the device-local storage for one table's credential.
type CredentialStore interface {
	Load() (token string, ok bool, err error)
	Save(token string) error
	Clear() error
}

// Decision is the pure outcome of observing a table from a device.
type Decision struct {
	State State
	// Store is the credential to persist locally, if any.
	Store string
	// Discard asks the device to drop its local credential.
	Discard bool
}

// Evaluate decides the guard state for a table given the device's local
// credential. It never returns Bound when local differs from the live token.
func Evaluate(t domain.Table, local string, hasLocal bool) Decision {
	if !t.Occupied() || t.SessionToken == "" {
		return Decision{State: Revoked, Discard: hasLocal}
	}
	if !hasLocal {
		return Decision{State: Bound, Store: t.SessionToken}
	}
	if local == t.SessionToken {
		return Decision{State: Bound}
	}
	return Decision{State: Revoked, Discard: true}
}

// Authorize re-checks a held credential against the live table. It is
// used immediately before an order insert and never binds.
func Authorize(t domain.Table, credential string) error {
	if credential == "" {
		return fmt.Errorf("%w: no session for table %d", domain.ErrUnauthorized, t.Number)
	}
	if !t.Occupied() || t.SessionToken != credential {
		return fmt.Errorf("%w: session for table %d is no longer valid", domain.ErrUnauthorized, t.Number)
	}
	return nil
}

// Guard is the device-side state machine for one table.
type Guard struct {
	tableID int64
	creds   CredentialStore
	state   State
}

func NewGuard(tableID int64, creds CredentialStore) *Guard {
	return &Guard{tableID: tableID, creds: creds, state: Unbound}
}

func (g *Guard) State() State { return g.state }

// Observe applies the latest server view of the table.
func (g *Guard) Observe(t domain.Table) State {
	if t.ID != g.tableID {
		g.state = Revoked
		return g.state
	}
	local, ok, err := g.creds.Load()
	if err != nil {
		_ = g.creds.Clear()
		g.state = Revoked
		return g.state
	}
	d := Evaluate(t, local, ok)
	if d.Discard {
		if err := g.creds.Clear(); err != nil {
			g.state = Revoked
			return g.state
		}
	}
	if d.Store != "" {
		if err := g.creds.Save(d.Store); err != nil {
			g.state = Revoked
			return g.state
		}
	}
	g.state = d.State
	return g.state
}

// Credential returns the stored token while Bound.
func (g *Guard) Credential() (string, bool) {
	if g.state != Bound {
		return "", false
	}
	tok, ok, err := g.creds.Load()
	if err != nil || !ok {
		return "", false
	}
	return tok, true
}

// Revalidate re-observes the live table and returns the credential to
// submit with, or ErrUnauthorized.
func (g *Guard) Revalidate(t domain.Table) (string, error) {
	if g.Observe(t) != Bound {
		return "", fmt.Errorf("%w: table %d", domain.ErrUnauthorized, t.Number)
	}
	tok, ok := g.Credential()
	if !ok {
		g.state = Revoked
		return "", fmt.Errorf("%w: table %d", domain.ErrUnauthorized, t.Number)
	}
	return tok, Authorize(t, tok)
}

// MemoryCredentials is an in-process CredentialStore.
type MemoryCredentials struct {
	token string
	ok    bool
}

func (m *MemoryCredentials) Load() (string, bool, error) { return m.token, m.ok, nil }

func (m *MemoryCredentials) Save(token string) error {
	m.token, m.ok = token, true
	return nil
}

func (m *MemoryCredentials) Clear() error {
	m.token, m.ok = "", false
	return nil
}
