package authz

import (
	"context"
	"fmt"
	"strings"
)

// AssignedOrgCodes returns the org codes explicitly delegated to a staff
// identity. Active delegations only; no recursion happens here, the
// downward cascade is the evaluator's business.
func (e *Engine) AssignedOrgCodes(ctx context.Context, staffID string) ([]string, error) {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return nil, fmt.Errorf("%w: staff id is required", ErrInvalidInput)
	}
	dels, err := e.store.ActiveDelegationsByStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(dels))
	codes := make([]string, 0, len(dels))
	for _, d := range dels {
		if _, ok := seen[d.OrgCode]; ok {
			continue
		}
		seen[d.OrgCode] = struct{}{}
		codes = append(codes, d.OrgCode)
	}
	return codes, nil
}

// AssignedStaffIDs is the inverse view: who supports a given org node.
// Consumers use it for notification fan-out; it carries no permission
// semantics of its own.
func (e *Engine) AssignedStaffIDs(ctx context.Context, orgCode string) ([]string, error) {
	orgCode = strings.TrimSpace(orgCode)
	if orgCode == "" {
		return nil, fmt.Errorf("%w: org code is required", ErrInvalidInput)
	}
	dels, err := e.store.ActiveDelegationsByOrg(ctx, orgCode)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(dels))
	ids := make([]string, 0, len(dels))
	for _, d := range dels {
		if _, ok := seen[d.StaffID]; ok {
			continue
		}
		seen[d.StaffID] = struct{}{}
		ids = append(ids, d.StaffID)
	}
	return ids, nil
}
