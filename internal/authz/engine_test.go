package authz

import (
	"context"
	"testing"
)

// Fixture chart used across the package tests:
//
//	A (p-a, manager)
//	└── B (p-b, manager)
//	    └── C (p-c, advisor)
//	X (p-x) stands alone.
//
// Staff identity S1 (p-s) holds an active delegation to B.
func newTestEngine(t *testing.T) (*Engine, *InMemory) {
	t.Helper()
	store := NewInMemory()
	engine, err := NewEngine(store)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	ctx := context.Background()

	mustCreateNode(t, store, OrgNode{Code: "A", Status: OrgStatusActive, PrincipalID: "p-a"})
	mustCreateNode(t, store, OrgNode{Code: "B", Status: OrgStatusActive, PrincipalID: "p-b", ManagerCode: strptr("A")})
	mustCreateNode(t, store, OrgNode{Code: "C", Status: OrgStatusActive, PrincipalID: "p-c", ManagerCode: strptr("B")})
	mustCreateNode(t, store, OrgNode{Code: "X", Status: OrgStatusActive, PrincipalID: "p-x"})

	if _, err := store.CreateStaffIdentity(ctx, StaffIdentity{ID: "S1", DisplayName: "Support One", PrincipalID: "p-s"}); err != nil {
		t.Fatalf("CreateStaffIdentity: %v", err)
	}
	if _, err := store.CreateStaffIdentity(ctx, StaffIdentity{ID: "S2", DisplayName: "Support Two", PrincipalID: "p-s2"}); err != nil {
		t.Fatalf("CreateStaffIdentity: %v", err)
	}
	if _, err := store.CreateDelegation(ctx, Delegation{ID: "D1", StaffID: "S1", OrgCode: "B", Active: true}); err != nil {
		t.Fatalf("CreateDelegation: %v", err)
	}
	return engine, store
}

func mustCreateNode(t *testing.T, store *InMemory, node OrgNode) {
	t.Helper()
	if _, err := store.CreateOrgNode(context.Background(), node); err != nil {
		t.Fatalf("CreateOrgNode(%s): %v", node.Code, err)
	}
}

func strptr(s string) *string { return &s }

func principal(id string, role Role) Principal { return Principal{ID: id, Role: role} }

func TestNewEngineRequiresStore(t *testing.T) {
	if _, err := NewEngine(nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Manager ")
	if err != nil || r != RoleManager {
		t.Fatalf("ParseRole: got %q, %v", r, err)
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("READ")
	if err != nil || op != OpRead {
		t.Fatalf("ParseOperation: got %q, %v", op, err)
	}
	if _, err := ParseOperation("peek"); err == nil {
		t.Fatalf("expected error for unknown operation")
	}
}

func TestResolveIdentity(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	code, err := engine.ResolveOrgCode(ctx, principal("p-b", RoleManager))
	if err != nil || code != "B" {
		t.Fatalf("ResolveOrgCode: got %q, %v", code, err)
	}
	code, err = engine.ResolveOrgCode(ctx, principal("p-unlinked", RoleCandidate))
	if err != nil || code != "" {
		t.Fatalf("expected empty code for unlinked principal, got %q, %v", code, err)
	}
	staffID, err := engine.ResolveStaffID(ctx, principal("p-s", RoleStaff))
	if err != nil || staffID != "S1" {
		t.Fatalf("ResolveStaffID: got %q, %v", staffID, err)
	}
	staffID, err = engine.ResolveStaffID(ctx, principal("p-a", RoleManager))
	if err != nil || staffID != "" {
		t.Fatalf("expected empty staff id, got %q, %v", staffID, err)
	}
}
