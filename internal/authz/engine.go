package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Engine answers authorization questions over an externally-owned graph of
// org nodes, staff identities and delegations, and hosts the admin-gated
// mutators that change that graph. Stateless per call.
type Engine struct {
	store Store
}

func NewEngine(store Store) (*Engine, error) {
	if store == nil {
		return nil, errors.New("authz: store is required")
	}
	return &Engine{store: store}, nil
}

// Team loads a team so callers can run CanReadTeam against it.
func (e *Engine) Team(ctx context.Context, id string) (Team, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Team{}, fmt.Errorf("%w: team id is required", ErrInvalidInput)
	}
	return e.store.TeamByID(ctx, id)
}

// Delegation loads a delegation so callers can run CanReadDelegation against it.
func (e *Engine) Delegation(ctx context.Context, id string) (Delegation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Delegation{}, fmt.Errorf("%w: delegation id is required", ErrInvalidInput)
	}
	return e.store.DelegationByID(ctx, id)
}
