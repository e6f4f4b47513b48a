package authz

import (
	"context"
	"testing"
)

func TestAssignedOrgCodes(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	// A second, inactive delegation and a duplicate active one.
	if _, err := store.CreateDelegation(ctx, Delegation{ID: "D2", StaffID: "S1", OrgCode: "A", Active: false}); err != nil {
		t.Fatalf("CreateDelegation: %v", err)
	}
	if _, err := store.CreateDelegation(ctx, Delegation{ID: "D3", StaffID: "S1", OrgCode: "B", Active: true}); err != nil {
		t.Fatalf("CreateDelegation: %v", err)
	}

	codes, err := engine.AssignedOrgCodes(ctx, "S1")
	if err != nil {
		t.Fatalf("AssignedOrgCodes: %v", err)
	}
	if len(codes) != 1 || codes[0] != "B" {
		t.Fatalf("expected deduplicated active codes [B], got %v", codes)
	}

	codes, err = engine.AssignedOrgCodes(ctx, "S2")
	if err != nil {
		t.Fatalf("AssignedOrgCodes(S2): %v", err)
	}
	if len(codes) != 0 {
		t.Fatalf("staff without delegations should resolve to nothing, got %v", codes)
	}
}

func TestAssignedStaffIDs(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := store.CreateDelegation(ctx, Delegation{ID: "D2", StaffID: "S2", OrgCode: "B", Active: true}); err != nil {
		t.Fatalf("CreateDelegation: %v", err)
	}
	if _, err := store.CreateDelegation(ctx, Delegation{ID: "D3", StaffID: "S2", OrgCode: "B", Active: false}); err != nil {
		t.Fatalf("CreateDelegation: %v", err)
	}

	ids, err := engine.AssignedStaffIDs(ctx, "B")
	if err != nil {
		t.Fatalf("AssignedStaffIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected S1 and S2 supporting B, got %v", ids)
	}
}
