package authz

import (
	"context"
	"errors"
	"testing"
)

func TestMutatorsRequireAdmin(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	manager := principal("p-a", RoleManager)

	if err := engine.LinkPrincipalToOrgNode(ctx, manager, "p-new", "X"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("LinkPrincipalToOrgNode: expected ErrNotAdmin, got %v", err)
	}
	if _, err := engine.CreateDelegation(ctx, manager, "S1", "A", ""); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("CreateDelegation: expected ErrNotAdmin, got %v", err)
	}
	if err := engine.DeactivateDelegation(ctx, manager, "D1"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("DeactivateDelegation: expected ErrNotAdmin, got %v", err)
	}
	if _, err := engine.BulkAssign(ctx, manager, "S1", []string{"A"}); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("BulkAssign: expected ErrNotAdmin, got %v", err)
	}
	if _, err := engine.CreateOrgNode(ctx, manager, OrgNode{Code: "NEW"}); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("CreateOrgNode: expected ErrNotAdmin, got %v", err)
	}
	if err := engine.ReassignManager(ctx, manager, "C", strptr("A")); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("ReassignManager: expected ErrNotAdmin, got %v", err)
	}
	err := engine.DeleteOrgNode(ctx, manager, "X")
	if !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("DeleteOrgNode: expected ErrNotAdmin, got %v", err)
	}
	// The gating error is its own kind, not an integrity violation.
	if errors.Is(err, ErrIntegrity) {
		t.Fatalf("admin gating must not be reported as integrity violation")
	}
}

func TestLinkPrincipalToOrgNodeIdempotent(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	admin := principal("p-root", RoleAdmin)

	mustCreateNode(t, store, OrgNode{Code: "F1", Status: OrgStatusActive})
	mustCreateNode(t, store, OrgNode{Code: "F2", Status: OrgStatusActive})

	if err := engine.LinkPrincipalToOrgNode(ctx, admin, "p-f", "F1"); err != nil {
		t.Fatalf("first link: %v", err)
	}
	// Identical call succeeds and changes nothing.
	if err := engine.LinkPrincipalToOrgNode(ctx, admin, "p-f", "F1"); err != nil {
		t.Fatalf("repeated link: %v", err)
	}
	node, err := store.OrgNodeByCode(ctx, "F1")
	if err != nil || node.PrincipalID != "p-f" {
		t.Fatalf("link not persisted: %+v, %v", node, err)
	}

	// Same principal, different node: integrity violation.
	if err := engine.LinkPrincipalToOrgNode(ctx, admin, "p-f", "F2"); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity error for second link, got %v", err)
	}
	// Node already claimed by someone else: integrity violation.
	if err := engine.LinkPrincipalToOrgNode(ctx, admin, "p-other", "F1"); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity error for claimed node, got %v", err)
	}
	// Unknown node: not found, not integrity.
	if err := engine.LinkPrincipalToOrgNode(ctx, admin, "p-f", "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLinkPrincipalToStaff(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	admin := principal("p-root", RoleAdmin)

	staff, err := engine.CreateStaffIdentity(ctx, admin, "Support Three")
	if err != nil {
		t.Fatalf("CreateStaffIdentity: %v", err)
	}
	if err := engine.LinkPrincipalToStaff(ctx, admin, "p-f", staff.ID); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := engine.LinkPrincipalToStaff(ctx, admin, "p-f", staff.ID); err != nil {
		t.Fatalf("repeated link: %v", err)
	}
	if err := engine.LinkPrincipalToStaff(ctx, admin, "p-s", staff.ID); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity error for claimed staff, got %v", err)
	}
	got, err := store.StaffByPrincipal(ctx, "p-f")
	if err != nil || got.ID != staff.ID {
		t.Fatalf("staff link not persisted: %+v, %v", got, err)
	}
}

func TestCreateDelegationValidatesEndpoints(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	admin := principal("p-root", RoleAdmin)

	if _, err := engine.CreateDelegation(ctx, admin, "ghost", "A", ""); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity error for unknown staff, got %v", err)
	}
	if _, err := engine.CreateDelegation(ctx, admin, "S1", "NOPE", ""); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity error for unknown org code, got %v", err)
	}

	d1, err := engine.CreateDelegation(ctx, admin, "S1", "A", "coverage")
	if err != nil {
		t.Fatalf("CreateDelegation: %v", err)
	}
	// Re-granting an active delegation returns the existing row.
	d2, err := engine.CreateDelegation(ctx, admin, "S1", "A", "")
	if err != nil || d2.ID != d1.ID {
		t.Fatalf("expected idempotent grant, got %+v, %v", d2, err)
	}
}

func TestDeactivateDelegationIsSoft(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	admin := principal("p-root", RoleAdmin)

	if err := engine.DeactivateDelegation(ctx, admin, "D1"); err != nil {
		t.Fatalf("DeactivateDelegation: %v", err)
	}
	// The row survives for audit history.
	d, err := store.DelegationByID(ctx, "D1")
	if err != nil {
		t.Fatalf("row must not be deleted: %v", err)
	}
	if d.Active {
		t.Fatalf("delegation still active")
	}
	if err := engine.DeactivateDelegation(ctx, admin, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBulkAssignPartialFailure(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	admin := principal("p-root", RoleAdmin)

	mustCreateNode(t, store, OrgNode{Code: "C001", Status: OrgStatusActive})
	mustCreateNode(t, store, OrgNode{Code: "C003", Status: OrgStatusActive})

	res, err := engine.BulkAssign(ctx, admin, "S2", []string{"C001", "UNKNOWN", "C003"})
	if err != nil {
		t.Fatalf("BulkAssign: %v", err)
	}
	if res.SuccessCount != 2 || res.ErrorCount != 1 {
		t.Fatalf("unexpected summary: %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "UNKNOWN: org code not found" {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	codes, err := engine.AssignedOrgCodes(ctx, "S2")
	if err != nil {
		t.Fatalf("AssignedOrgCodes: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("expected delegations for C001 and C003 only, got %v", codes)
	}

	if _, err := engine.BulkAssign(ctx, admin, "ghost", []string{"C001"}); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity error for unknown staff, got %v", err)
	}
}

func TestReassignManagerRefusesCycles(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	admin := principal("p-root", RoleAdmin)

	// Moving A under its own transitive report closes a loop.
	if err := engine.ReassignManager(ctx, admin, "A", strptr("C")); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if err := engine.ReassignManager(ctx, admin, "A", strptr("A")); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity error for self-manage, got %v", err)
	}

	// A legal move instantly changes the closure.
	if err := engine.ReassignManager(ctx, admin, "C", strptr("A")); err != nil {
		t.Fatalf("ReassignManager: %v", err)
	}
	subs, err := engine.SubordinatesOf(ctx, "B")
	if err != nil {
		t.Fatalf("SubordinatesOf(B): %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("B should have lost its report: %v", subs)
	}
	if ok, _ := engine.IsSubordinateOf(ctx, "C", "A"); !ok {
		t.Fatalf("C should now report directly to A")
	}
}

func TestCreateOrgNodeValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	admin := principal("p-root", RoleAdmin)

	if _, err := engine.CreateOrgNode(ctx, admin, OrgNode{Code: "N1", ManagerCode: strptr("N1")}); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity error for self-manage, got %v", err)
	}
	if _, err := engine.CreateOrgNode(ctx, admin, OrgNode{Code: "N1", ManagerCode: strptr("NOPE")}); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity error for dangling manager, got %v", err)
	}
	node, err := engine.CreateOrgNode(ctx, admin, OrgNode{Code: "N1", ManagerCode: strptr("A")})
	if err != nil {
		t.Fatalf("CreateOrgNode: %v", err)
	}
	if node.Status != OrgStatusActive {
		t.Fatalf("status should default to active, got %q", node.Status)
	}
}

func TestDeleteOrgNodeReparents(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	admin := principal("p-root", RoleAdmin)

	if err := engine.DeleteOrgNode(ctx, admin, "B"); err != nil {
		t.Fatalf("DeleteOrgNode: %v", err)
	}
	node, err := store.OrgNodeByCode(ctx, "C")
	if err != nil {
		t.Fatalf("OrgNodeByCode(C): %v", err)
	}
	if node.ManagerCode == nil || *node.ManagerCode != "A" {
		t.Fatalf("C should be re-parented to A, got %v", node.ManagerCode)
	}
}
