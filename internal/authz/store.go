package authz

import "context"

// Store describes the persistence operations the engine needs. The engine
// holds no cached copy of the graph: every resolver call reads the current
// snapshot, and mutators rely on the store's own transaction isolation.
type Store interface {
	CreateOrgNode(ctx context.Context, node OrgNode) (OrgNode, error)
	DeleteOrgNode(ctx context.Context, code string) error
	OrgNodeByCode(ctx context.Context, code string) (OrgNode, error)
	OrgNodeByPrincipal(ctx context.Context, principalID string) (OrgNode, error)
	// DirectReports returns the codes whose manager_code equals managerCode.
	DirectReports(ctx context.Context, managerCode string) ([]string, error)
	SetManagerCode(ctx context.Context, code string, managerCode *string) error
	SetOrgNodePrincipal(ctx context.Context, code, principalID string) error

	CreateStaffIdentity(ctx context.Context, staff StaffIdentity) (StaffIdentity, error)
	StaffByID(ctx context.Context, id string) (StaffIdentity, error)
	StaffByPrincipal(ctx context.Context, principalID string) (StaffIdentity, error)
	SetStaffPrincipal(ctx context.Context, id, principalID string) error

	CreateTeam(ctx context.Context, team Team) (Team, error)
	TeamByID(ctx context.Context, id string) (Team, error)

	CreateDelegation(ctx context.Context, d Delegation) (Delegation, error)
	DelegationByID(ctx context.Context, id string) (Delegation, error)
	// DeactivateDelegation flips active to false. Rows are never deleted.
	DeactivateDelegation(ctx context.Context, id string) error
	ActiveDelegationsByStaff(ctx context.Context, staffID string) ([]Delegation, error)
	ActiveDelegationsByOrg(ctx context.Context, orgCode string) ([]Delegation, error)
}
