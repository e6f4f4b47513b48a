package authz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemory implements Store with in-process concurrency safety. It backs the
// engine's tests, the smoke tool, and DSN-less development runs; production
// uses the Postgres store.
type InMemory struct {
	mu          sync.RWMutex
	nodes       map[string]*OrgNode
	staff       map[string]*StaffIdentity
	teams       map[string]*Team
	delegations map[string]*Delegation
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty graph.
func NewInMemory() *InMemory {
	return &InMemory{
		nodes:       make(map[string]*OrgNode),
		staff:       make(map[string]*StaffIdentity),
		teams:       make(map[string]*Team),
		delegations: make(map[string]*Delegation),
	}
}

func (s *InMemory) CreateOrgNode(ctx context.Context, node OrgNode) (OrgNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[node.Code]; ok {
		return OrgNode{}, fmt.Errorf("%w: org node %s already exists", ErrIntegrity, node.Code)
	}
	now := time.Now().UTC()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	node.UpdatedAt = now
	cp := node
	s.nodes[node.Code] = &cp
	return node, nil
}

func (s *InMemory) DeleteOrgNode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[code]
	if !ok {
		return ErrNotFound
	}
	// Re-parent direct reports to the deleted node's manager.
	for _, n := range s.nodes {
		if n.ManagerCode != nil && *n.ManagerCode == code {
			n.ManagerCode = node.ManagerCode
			n.UpdatedAt = time.Now().UTC()
		}
	}
	delete(s.nodes, code)
	return nil
}

func (s *InMemory) OrgNodeByCode(ctx context.Context, code string) (OrgNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[code]
	if !ok {
		return OrgNode{}, ErrNotFound
	}
	return *node, nil
}

func (s *InMemory) OrgNodeByPrincipal(ctx context.Context, principalID string) (OrgNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, node := range s.nodes {
		if node.PrincipalID != "" && node.PrincipalID == principalID {
			return *node, nil
		}
	}
	return OrgNode{}, ErrNotFound
}

func (s *InMemory) DirectReports(ctx context.Context, managerCode string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var codes []string
	for _, node := range s.nodes {
		if node.ManagerCode != nil && *node.ManagerCode == managerCode {
			codes = append(codes, node.Code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *InMemory) SetManagerCode(ctx context.Context, code string, managerCode *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[code]
	if !ok {
		return ErrNotFound
	}
	if managerCode != nil {
		mc := *managerCode
		managerCode = &mc
	}
	node.ManagerCode = managerCode
	node.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) SetOrgNodePrincipal(ctx context.Context, code, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[code]
	if !ok {
		return ErrNotFound
	}
	node.PrincipalID = principalID
	node.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) CreateStaffIdentity(ctx context.Context, staff StaffIdentity) (StaffIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.staff[staff.ID]; ok {
		return StaffIdentity{}, fmt.Errorf("%w: staff identity %s already exists", ErrIntegrity, staff.ID)
	}
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC()
	}
	cp := staff
	s.staff[staff.ID] = &cp
	return staff, nil
}

func (s *InMemory) StaffByID(ctx context.Context, id string) (StaffIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	staff, ok := s.staff[id]
	if !ok {
		return StaffIdentity{}, ErrNotFound
	}
	return *staff, nil
}

func (s *InMemory) StaffByPrincipal(ctx context.Context, principalID string) (StaffIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, staff := range s.staff {
		if staff.PrincipalID != "" && staff.PrincipalID == principalID {
			return *staff, nil
		}
	}
	return StaffIdentity{}, ErrNotFound
}

func (s *InMemory) SetStaffPrincipal(ctx context.Context, id, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staff, ok := s.staff[id]
	if !ok {
		return ErrNotFound
	}
	staff.PrincipalID = principalID
	return nil
}

func (s *InMemory) CreateTeam(ctx context.Context, team Team) (Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[team.ID]; ok {
		return Team{}, fmt.Errorf("%w: team %s already exists", ErrIntegrity, team.ID)
	}
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now().UTC()
	}
	cp := team
	s.teams[team.ID] = &cp
	return team, nil
}

func (s *InMemory) TeamByID(ctx context.Context, id string) (Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[id]
	if !ok {
		return Team{}, ErrNotFound
	}
	return *team, nil
}

func (s *InMemory) CreateDelegation(ctx context.Context, d Delegation) (Delegation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.delegations[d.ID]; ok {
		return Delegation{}, fmt.Errorf("%w: delegation %s already exists", ErrIntegrity, d.ID)
	}
	if d.AssignedAt.IsZero() {
		d.AssignedAt = time.Now().UTC()
	}
	cp := d
	s.delegations[d.ID] = &cp
	return d, nil
}

func (s *InMemory) DelegationByID(ctx context.Context, id string) (Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.delegations[id]
	if !ok {
		return Delegation{}, ErrNotFound
	}
	return *d, nil
}

func (s *InMemory) DeactivateDelegation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.delegations[id]
	if !ok {
		return ErrNotFound
	}
	d.Active = false
	return nil
}

func (s *InMemory) ActiveDelegationsByStaff(ctx context.Context, staffID string) ([]Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Delegation
	for _, d := range s.delegations {
		if d.Active && d.StaffID == staffID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) ActiveDelegationsByOrg(ctx context.Context, orgCode string) ([]Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Delegation
	for _, d := range s.delegations {
		if d.Active && d.OrgCode == orgCode {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
