package authz

import (
	"fmt"
	"strings"
	"time"
)

// Role is the declared role of an authenticated principal. Exactly one per
// principal; assignment happens in the identity provider, outside this engine.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleStaff     Role = "staff"
	RoleAdvisor   Role = "advisor"
	RoleCandidate Role = "candidate"
)

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleManager, RoleStaff, RoleAdvisor, RoleCandidate:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}

// Operation is the intended data operation behind a permission check.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ParseOperation normalizes and validates an operation string.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case OpCreate, OpRead, OpUpdate, OpDelete:
		return op, nil
	default:
		return "", fmt.Errorf("%w: unknown operation %q", ErrInvalidInput, s)
	}
}

// ResourceShape identifies which decision rules apply to a target.
type ResourceShape string

const (
	ShapeOrgNode       ResourceShape = "org_node"
	ShapeTeam          ResourceShape = "team"
	ShapeDelegation    ResourceShape = "delegation"
	ShapeOwnedResource ResourceShape = "owned_resource"
)

// Principal is an already-authenticated caller. The engine never verifies
// identity; it trusts the id and role handed to it.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Org node lifecycle states.
const (
	OrgStatusActive    = "active"
	OrgStatusCancelled = "cancelled"
)

// OrgNode is one organizational participant, keyed by an immutable business
// code. ManagerCode is a self-reference forming the reporting forest; nil
// means top of a tree. PrincipalID links at most one principal (empty when
// unlinked).
type OrgNode struct {
	Code        string    `json:"code"`
	ManagerCode *string   `json:"manager_code,omitempty"`
	Status      string    `json:"status"`
	PrincipalID string    `json:"principal_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StaffIdentity is a non-hierarchical support identity. Visibility comes only
// from delegations, never from the org chart.
type StaffIdentity struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	PrincipalID string    `json:"principal_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Team is a named unit whose read access derives entirely from its head's
// org node. It carries no permission state of its own.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	HeadCode  string    `json:"head_code"`
	CreatedAt time.Time `json:"created_at"`
}

// Delegation grants a staff identity visibility into one org node. Many staff
// may support one advisor and vice versa. Deactivation is logical only, so
// the assignment history stays auditable.
type Delegation struct {
	ID         string    `json:"id"`
	StaffID    string    `json:"staff_id"`
	OrgCode    string    `json:"org_code"`
	Active     bool      `json:"active"`
	AssignedAt time.Time `json:"assigned_at"`
	CreatedBy  string    `json:"created_by,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}

// Subordinate is one entry of a subordinate closure. Depth 1 is a direct
// report; deeper levels are transitive.
type Subordinate struct {
	Code  string `json:"code"`
	Depth int    `json:"depth"`
}

// BulkAssignResult summarizes a bulk delegation run. Items fail
// independently; one bad code never aborts the batch.
type BulkAssignResult struct {
	SuccessCount int      `json:"success_count"`
	ErrorCount   int      `json:"error_count"`
	Errors       []string `json:"errors"`
}
