package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// The evaluator is a dispatch table keyed by (role, shape, operation). Each
// entry names one of a handful of decision strategies, so adding a role or a
// resource shape is a table edit, not another conditional chain. A missing
// entry denies: the table fails closed.

type decisionKey struct {
	role  Role
	shape ResourceShape
	op    Operation
}

// target carries the normalized reference a strategy decides against. Shapes
// reduce to it before dispatch: a team contributes its head's org code, a
// delegation its org code and owning staff id, an owned resource its owner.
type target struct {
	orgCode string
	staffID string
	ownerID string
}

type strategyFunc func(ctx context.Context, e *Engine, p Principal, t target) (bool, error)

func allowAll(context.Context, *Engine, Principal, target) (bool, error) {
	return true, nil
}

func denyAll(context.Context, *Engine, Principal, target) (bool, error) {
	return false, nil
}

// selfOnly: the principal's own linked org node, nothing else.
func selfOnly(ctx context.Context, e *Engine, p Principal, t target) (bool, error) {
	code, err := e.ResolveOrgCode(ctx, p)
	if err != nil {
		return false, err
	}
	return code != "" && code == t.orgCode, nil
}

// selfOrSubordinates: own node plus the full subordinate closure below it.
func selfOrSubordinates(ctx context.Context, e *Engine, p Principal, t target) (bool, error) {
	code, err := e.ResolveOrgCode(ctx, p)
	if err != nil {
		return false, err
	}
	if code == "" {
		return false, nil
	}
	if code == t.orgCode {
		return true, nil
	}
	return e.IsSubordinateOf(ctx, t.orgCode, code)
}

// assignedCascade: any directly delegated org node, plus everything below
// one. A delegation to a manager deliberately opens that manager's subtree
// (see DESIGN.md on the cascade policy).
func assignedCascade(ctx context.Context, e *Engine, p Principal, t target) (bool, error) {
	staffID, err := e.ResolveStaffID(ctx, p)
	if err != nil {
		return false, err
	}
	if staffID == "" {
		return false, nil
	}
	codes, err := e.AssignedOrgCodes(ctx, staffID)
	if err != nil {
		return false, err
	}
	for _, c := range codes {
		if c == t.orgCode {
			return true, nil
		}
	}
	for _, c := range codes {
		ok, err := e.IsSubordinateOf(ctx, t.orgCode, c)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ownDelegation: a staff principal sees delegation records addressed to it.
func ownDelegation(ctx context.Context, e *Engine, p Principal, t target) (bool, error) {
	staffID, err := e.ResolveStaffID(ctx, p)
	if err != nil {
		return false, err
	}
	return staffID != "" && staffID == t.staffID, nil
}

// ownerSelfOnly: owner-tagged records are writable by their owner alone.
func ownerSelfOnly(_ context.Context, _ *Engine, p Principal, t target) (bool, error) {
	return p.ID != "" && t.ownerID != "" && p.ID == t.ownerID, nil
}

// ownerOrCascade: reads of owner-tagged records fall back to the org-node
// rules against the owner's resolved code, so a manager or assigned staff
// member reads a subordinate's records without bespoke policy per resource.
func ownerOrCascade(ctx context.Context, e *Engine, p Principal, t target) (bool, error) {
	if p.ID != "" && p.ID == t.ownerID {
		return true, nil
	}
	if t.ownerID == "" {
		return false, nil
	}
	owner, err := e.store.OrgNodeByPrincipal(ctx, t.ownerID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.decide(ctx, p, ShapeOrgNode, OpRead, target{orgCode: owner.Code})
}

// Populated in init: ownerOrCascade re-enters decide, which reads the table,
// so a plain initializer would form an initialization cycle.
var decisionTable map[decisionKey]strategyFunc

func init() {
	decisionTable = buildDecisionTable()
}

func buildDecisionTable() map[decisionKey]strategyFunc {
	table := make(map[decisionKey]strategyFunc)
	add := func(fn strategyFunc, shape ResourceShape, role Role, ops ...Operation) {
		for _, op := range ops {
			table[decisionKey{role: role, shape: shape, op: op}] = fn
		}
	}
	writes := []Operation{OpCreate, OpUpdate, OpDelete}
	nonAdmin := []Role{RoleManager, RoleStaff, RoleAdvisor, RoleCandidate}

	// Org nodes.
	add(allowAll, ShapeOrgNode, RoleAdmin, OpRead)
	add(selfOrSubordinates, ShapeOrgNode, RoleManager, OpRead)
	add(assignedCascade, ShapeOrgNode, RoleStaff, OpRead)
	add(selfOnly, ShapeOrgNode, RoleAdvisor, OpRead)
	add(selfOnly, ShapeOrgNode, RoleCandidate, OpRead)
	add(allowAll, ShapeOrgNode, RoleAdmin, writes...)
	for _, role := range nonAdmin {
		// Nobody edits someone else's record, not even their manager.
		add(selfOnly, ShapeOrgNode, role, writes...)
	}

	// Teams: read derives from the head's org node, writes are admin-only.
	add(allowAll, ShapeTeam, RoleAdmin, OpRead)
	add(selfOrSubordinates, ShapeTeam, RoleManager, OpRead)
	add(assignedCascade, ShapeTeam, RoleStaff, OpRead)
	add(selfOnly, ShapeTeam, RoleAdvisor, OpRead)
	add(selfOnly, ShapeTeam, RoleCandidate, OpRead)
	add(allowAll, ShapeTeam, RoleAdmin, writes...)
	for _, role := range nonAdmin {
		add(denyAll, ShapeTeam, role, writes...)
	}

	// Delegations: staff see their own; everyone else falls back to the
	// delegated org node's read rules. Writes go through the mutators only.
	add(allowAll, ShapeDelegation, RoleAdmin, OpRead)
	add(ownDelegation, ShapeDelegation, RoleStaff, OpRead)
	add(selfOrSubordinates, ShapeDelegation, RoleManager, OpRead)
	add(selfOnly, ShapeDelegation, RoleAdvisor, OpRead)
	add(selfOnly, ShapeDelegation, RoleCandidate, OpRead)
	add(allowAll, ShapeDelegation, RoleAdmin, writes...)
	for _, role := range nonAdmin {
		add(denyAll, ShapeDelegation, role, writes...)
	}

	// Owner-tagged resources: one generic rule for any downstream record.
	add(allowAll, ShapeOwnedResource, RoleAdmin, OpRead)
	for _, role := range nonAdmin {
		add(ownerOrCascade, ShapeOwnedResource, role, OpRead)
	}
	add(allowAll, ShapeOwnedResource, RoleAdmin, writes...)
	for _, role := range nonAdmin {
		add(ownerSelfOnly, ShapeOwnedResource, role, writes...)
	}

	return table
}

func (e *Engine) decide(ctx context.Context, p Principal, shape ResourceShape, op Operation, t target) (bool, error) {
	if shape != ShapeOwnedResource && t.orgCode == "" {
		return false, nil
	}
	fn, ok := decisionTable[decisionKey{role: p.Role, shape: shape, op: op}]
	if !ok {
		return false, nil
	}
	return fn(ctx, e, p, t)
}

// CanReadOrgNode reports whether p may read the org node identified by code.
func (e *Engine) CanReadOrgNode(ctx context.Context, p Principal, code string) (bool, error) {
	return e.decide(ctx, p, ShapeOrgNode, OpRead, target{orgCode: strings.TrimSpace(code)})
}

// CanWriteOrgNode reports whether p may modify the org node identified by
// code. Only admin reaches beyond the principal's own record.
func (e *Engine) CanWriteOrgNode(ctx context.Context, p Principal, code string) (bool, error) {
	return e.decide(ctx, p, ShapeOrgNode, OpUpdate, target{orgCode: strings.TrimSpace(code)})
}

// CanReadTeam delegates to the team head's org node.
func (e *Engine) CanReadTeam(ctx context.Context, p Principal, team Team) (bool, error) {
	return e.decide(ctx, p, ShapeTeam, OpRead, target{orgCode: strings.TrimSpace(team.HeadCode)})
}

// CanReadDelegation gates a single delegation record.
func (e *Engine) CanReadDelegation(ctx context.Context, p Principal, d Delegation) (bool, error) {
	return e.decide(ctx, p, ShapeDelegation, OpRead, target{
		orgCode: strings.TrimSpace(d.OrgCode),
		staffID: strings.TrimSpace(d.StaffID),
	})
}

// CheckTarget identifies the resource a Check call decides against. Exactly
// one field matters per shape: OrgCode for org nodes, TeamID for teams,
// DelegationID for delegations, OwnerPrincipalID for owner-tagged records.
type CheckTarget struct {
	OrgCode          string `json:"org_code,omitempty"`
	TeamID           string `json:"team_id,omitempty"`
	DelegationID     string `json:"delegation_id,omitempty"`
	OwnerPrincipalID string `json:"owner_principal_id,omitempty"`
}

// Check is the generic decision entry point. Team and delegation references
// are resolved before dispatch, so an unknown id surfaces as ErrNotFound
// rather than a silent denial.
func (e *Engine) Check(ctx context.Context, p Principal, shape ResourceShape, op Operation, ct CheckTarget) (bool, error) {
	switch shape {
	case ShapeOrgNode:
		return e.decide(ctx, p, shape, op, target{orgCode: strings.TrimSpace(ct.OrgCode)})
	case ShapeTeam:
		team, err := e.Team(ctx, strings.TrimSpace(ct.TeamID))
		if err != nil {
			return false, err
		}
		return e.decide(ctx, p, shape, op, target{orgCode: team.HeadCode})
	case ShapeDelegation:
		d, err := e.Delegation(ctx, strings.TrimSpace(ct.DelegationID))
		if err != nil {
			return false, err
		}
		return e.decide(ctx, p, shape, op, target{orgCode: d.OrgCode, staffID: d.StaffID})
	case ShapeOwnedResource:
		return e.decide(ctx, p, shape, op, target{ownerID: strings.TrimSpace(ct.OwnerPrincipalID)})
	default:
		return false, fmt.Errorf("%w: unknown resource shape %q", ErrInvalidInput, shape)
	}
}

// CanAccessOwnedResource is the generic primitive for owner-tagged records:
// writes require admin or ownership, reads additionally cascade through the
// owner's position in the org chart.
func (e *Engine) CanAccessOwnedResource(ctx context.Context, p Principal, ownerPrincipalID string, op Operation) (bool, error) {
	return e.decide(ctx, p, ShapeOwnedResource, op, target{ownerID: strings.TrimSpace(ownerPrincipalID)})
}
