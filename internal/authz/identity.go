package authz

import (
	"context"
	"errors"
)

// ResolveOrgCode maps a principal to its linked org node code. An empty
// result is a normal outcome: candidates and freshly provisioned users may
// have no org node yet.
func (e *Engine) ResolveOrgCode(ctx context.Context, p Principal) (string, error) {
	if p.ID == "" {
		return "", nil
	}
	node, err := e.store.OrgNodeByPrincipal(ctx, p.ID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return node.Code, nil
}

// ResolveStaffID maps a principal to its linked staff identity, if any.
func (e *Engine) ResolveStaffID(ctx context.Context, p Principal) (string, error) {
	if p.ID == "" {
		return "", nil
	}
	staff, err := e.store.StaffByPrincipal(ctx, p.ID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return staff.ID, nil
}
