package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meridian.org/internal/ids"
)

// Administrative mutators. Every entry point checks the acting principal's
// role itself, so the graph cannot be mutated through a mis-wired caller.

func requireAdmin(actor Principal) error {
	if actor.Role != RoleAdmin {
		return fmt.Errorf("%w: role %s", ErrNotAdmin, actor.Role)
	}
	return nil
}

// CreateOrgNode registers a new organizational participant. A manager
// reference, when present, must exist already; a brand-new code cannot close
// a cycle because nothing reports to it yet.
func (e *Engine) CreateOrgNode(ctx context.Context, actor Principal, node OrgNode) (OrgNode, error) {
	if err := requireAdmin(actor); err != nil {
		return OrgNode{}, err
	}
	node.Code = strings.TrimSpace(node.Code)
	if node.Code == "" {
		return OrgNode{}, fmt.Errorf("%w: org code is required", ErrInvalidInput)
	}
	if node.Status == "" {
		node.Status = OrgStatusActive
	}
	if node.ManagerCode != nil {
		mc := strings.TrimSpace(*node.ManagerCode)
		if mc == "" {
			node.ManagerCode = nil
		} else {
			if mc == node.Code {
				return OrgNode{}, fmt.Errorf("%w: org node %s cannot manage itself", ErrIntegrity, node.Code)
			}
			if _, err := e.store.OrgNodeByCode(ctx, mc); err != nil {
				if errors.Is(err, ErrNotFound) {
					return OrgNode{}, fmt.Errorf("%w: manager code %s does not exist", ErrIntegrity, mc)
				}
				return OrgNode{}, err
			}
			node.ManagerCode = &mc
		}
	}
	return e.store.CreateOrgNode(ctx, node)
}

// DeleteOrgNode removes a node. The store re-parents its direct reports to
// the deleted node's own manager so no dangling manager references remain.
func (e *Engine) DeleteOrgNode(ctx context.Context, actor Principal, code string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: org code is required", ErrInvalidInput)
	}
	return e.store.DeleteOrgNode(ctx, code)
}

// ReassignManager moves a node under a new manager (nil detaches it to a
// tree root). The move is refused when it would turn the forest into a
// cycle, i.e. when the new manager sits inside the node's own subtree.
func (e *Engine) ReassignManager(ctx context.Context, actor Principal, code string, managerCode *string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: org code is required", ErrInvalidInput)
	}
	if _, err := e.store.OrgNodeByCode(ctx, code); err != nil {
		return err
	}
	if managerCode != nil {
		mc := strings.TrimSpace(*managerCode)
		if mc == "" {
			managerCode = nil
		} else {
			if mc == code {
				return fmt.Errorf("%w: org node %s cannot manage itself", ErrIntegrity, code)
			}
			if _, err := e.store.OrgNodeByCode(ctx, mc); err != nil {
				if errors.Is(err, ErrNotFound) {
					return fmt.Errorf("%w: manager code %s does not exist", ErrIntegrity, mc)
				}
				return err
			}
			below, err := e.IsSubordinateOf(ctx, mc, code)
			if err != nil {
				return err
			}
			if below {
				return fmt.Errorf("%w: moving %s under %s would create a management cycle", ErrIntegrity, code, mc)
			}
			managerCode = &mc
		}
	}
	return e.store.SetManagerCode(ctx, code, managerCode)
}

// LinkPrincipalToOrgNode establishes the one-to-one principal/org-node link.
// Repeating an identical link is a no-op; linking either side twice to a
// different counterpart is an integrity violation, not a denial.
func (e *Engine) LinkPrincipalToOrgNode(ctx context.Context, actor Principal, principalID, orgCode string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	principalID = strings.TrimSpace(principalID)
	orgCode = strings.TrimSpace(orgCode)
	if principalID == "" || orgCode == "" {
		return fmt.Errorf("%w: principal id and org code are required", ErrInvalidInput)
	}

	node, err := e.store.OrgNodeByCode(ctx, orgCode)
	if err != nil {
		return err
	}
	if node.PrincipalID == principalID {
		return nil
	}
	if node.PrincipalID != "" {
		return fmt.Errorf("%w: org node %s is already linked to another principal", ErrIntegrity, orgCode)
	}
	existing, err := e.store.OrgNodeByPrincipal(ctx, principalID)
	if err == nil {
		return fmt.Errorf("%w: principal is already linked to org node %s", ErrIntegrity, existing.Code)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return e.store.SetOrgNodePrincipal(ctx, orgCode, principalID)
}

// LinkPrincipalToStaff mirrors LinkPrincipalToOrgNode for staff identities.
func (e *Engine) LinkPrincipalToStaff(ctx context.Context, actor Principal, principalID, staffID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	principalID = strings.TrimSpace(principalID)
	staffID = strings.TrimSpace(staffID)
	if principalID == "" || staffID == "" {
		return fmt.Errorf("%w: principal id and staff id are required", ErrInvalidInput)
	}

	staff, err := e.store.StaffByID(ctx, staffID)
	if err != nil {
		return err
	}
	if staff.PrincipalID == principalID {
		return nil
	}
	if staff.PrincipalID != "" {
		return fmt.Errorf("%w: staff identity %s is already linked to another principal", ErrIntegrity, staffID)
	}
	existing, err := e.store.StaffByPrincipal(ctx, principalID)
	if err == nil {
		return fmt.Errorf("%w: principal is already linked to staff identity %s", ErrIntegrity, existing.ID)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return e.store.SetStaffPrincipal(ctx, staffID, principalID)
}

// CreateStaffIdentity provisions a new support identity.
func (e *Engine) CreateStaffIdentity(ctx context.Context, actor Principal, displayName string) (StaffIdentity, error) {
	if err := requireAdmin(actor); err != nil {
		return StaffIdentity{}, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return StaffIdentity{}, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}
	return e.store.CreateStaffIdentity(ctx, StaffIdentity{
		ID:          ids.New(),
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	})
}

// CreateTeam registers a named unit headed by an existing org node.
func (e *Engine) CreateTeam(ctx context.Context, actor Principal, name, headCode string) (Team, error) {
	if err := requireAdmin(actor); err != nil {
		return Team{}, err
	}
	name = strings.TrimSpace(name)
	headCode = strings.TrimSpace(headCode)
	if name == "" || headCode == "" {
		return Team{}, fmt.Errorf("%w: team name and head code are required", ErrInvalidInput)
	}
	if _, err := e.store.OrgNodeByCode(ctx, headCode); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Team{}, fmt.Errorf("%w: head code %s does not exist", ErrIntegrity, headCode)
		}
		return Team{}, err
	}
	return e.store.CreateTeam(ctx, Team{
		ID:        ids.New(),
		Name:      name,
		HeadCode:  headCode,
		CreatedAt: time.Now().UTC(),
	})
}

// CreateDelegation grants a staff identity visibility into one org node.
// Both endpoints must exist; an already-active identical grant is returned
// as-is rather than duplicated.
func (e *Engine) CreateDelegation(ctx context.Context, actor Principal, staffID, orgCode, notes string) (Delegation, error) {
	if err := requireAdmin(actor); err != nil {
		return Delegation{}, err
	}
	staffID = strings.TrimSpace(staffID)
	orgCode = strings.TrimSpace(orgCode)
	if staffID == "" || orgCode == "" {
		return Delegation{}, fmt.Errorf("%w: staff id and org code are required", ErrInvalidInput)
	}
	if _, err := e.store.StaffByID(ctx, staffID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Delegation{}, fmt.Errorf("%w: staff identity %s not found", ErrIntegrity, staffID)
		}
		return Delegation{}, err
	}
	if _, err := e.store.OrgNodeByCode(ctx, orgCode); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Delegation{}, errOrgCodeNotFound
		}
		return Delegation{}, err
	}
	active, err := e.store.ActiveDelegationsByStaff(ctx, staffID)
	if err != nil {
		return Delegation{}, err
	}
	for _, d := range active {
		if d.OrgCode == orgCode {
			return d, nil
		}
	}
	return e.store.CreateDelegation(ctx, Delegation{
		ID:         ids.New(),
		StaffID:    staffID,
		OrgCode:    orgCode,
		Active:     true,
		AssignedAt: time.Now().UTC(),
		CreatedBy:  actor.ID,
		Notes:      strings.TrimSpace(notes),
	})
}

// DeactivateDelegation soft-disables a grant. The row stays for audit
// history; the next permission check simply stops honoring it.
func (e *Engine) DeactivateDelegation(ctx context.Context, actor Principal, delegationID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	delegationID = strings.TrimSpace(delegationID)
	if delegationID == "" {
		return fmt.Errorf("%w: delegation id is required", ErrInvalidInput)
	}
	return e.store.DeactivateDelegation(ctx, delegationID)
}

// BulkAssign applies CreateDelegation per code with partial-failure
// semantics: every code is processed, per-item failures land in the result,
// and only a bad batch (unknown staff, non-admin actor) fails as a whole.
func (e *Engine) BulkAssign(ctx context.Context, actor Principal, staffID string, orgCodes []string) (BulkAssignResult, error) {
	if err := requireAdmin(actor); err != nil {
		return BulkAssignResult{}, err
	}
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return BulkAssignResult{}, fmt.Errorf("%w: staff id is required", ErrInvalidInput)
	}
	if _, err := e.store.StaffByID(ctx, staffID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return BulkAssignResult{}, fmt.Errorf("%w: staff identity %s not found", ErrIntegrity, staffID)
		}
		return BulkAssignResult{}, err
	}

	var res BulkAssignResult
	for _, code := range orgCodes {
		code = strings.TrimSpace(code)
		if code == "" {
			res.ErrorCount++
			res.Errors = append(res.Errors, "empty org code")
			continue
		}
		if _, err := e.CreateDelegation(ctx, actor, staffID, code, ""); err != nil {
			res.ErrorCount++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", code, bulkItemReason(err)))
			continue
		}
		res.SuccessCount++
	}
	return res, nil
}

func bulkItemReason(err error) string {
	if errors.Is(err, errOrgCodeNotFound) {
		return "org code not found"
	}
	return strings.TrimPrefix(err.Error(), "authz: ")
}
