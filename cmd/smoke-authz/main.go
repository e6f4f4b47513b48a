// Command smoke-authz seeds an in-memory reporting chart and walks through a
// fixed set of permission decisions, failing loudly on any deviation.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"meridian.org/internal/authz"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engine, err := authz.NewEngine(authz.NewInMemory())
	if err != nil {
		log.Fatalf("init engine: %v", err)
	}
	admin := authz.Principal{ID: "smoke-admin", Role: authz.RoleAdmin}

	manager := "C100"
	nodes := []authz.OrgNode{
		{Code: "C100", PrincipalID: "p-head"},
		{Code: "C110", ManagerCode: &manager, PrincipalID: "p-advisor"},
	}
	for _, node := range nodes {
		if _, err := engine.CreateOrgNode(ctx, admin, node); err != nil {
			log.Fatalf("create org node %s: %v", node.Code, err)
		}
	}

	staff, err := engine.CreateStaffIdentity(ctx, admin, "Smoke Assistant")
	if err != nil {
		log.Fatalf("create staff: %v", err)
	}
	if err := engine.LinkPrincipalToStaff(ctx, admin, "p-staff", staff.ID); err != nil {
		log.Fatalf("link staff: %v", err)
	}
	if _, err := engine.CreateDelegation(ctx, admin, staff.ID, "C100", "smoke run"); err != nil {
		log.Fatalf("create delegation: %v", err)
	}

	head := authz.Principal{ID: "p-head", Role: authz.RoleManager}
	advisor := authz.Principal{ID: "p-advisor", Role: authz.RoleAdvisor}
	assistant := authz.Principal{ID: "p-staff", Role: authz.RoleStaff}

	checks := []struct {
		name string
		p    authz.Principal
		code string
		want bool
	}{
		{"head reads own node", head, "C100", true},
		{"head reads report", head, "C110", true},
		{"advisor reads own node", advisor, "C110", true},
		{"advisor denied manager node", advisor, "C100", false},
		{"staff cascade covers report", assistant, "C110", true},
	}
	for _, c := range checks {
		got, err := engine.CanReadOrgNode(ctx, c.p, c.code)
		if err != nil {
			log.Fatalf("%s: %v", c.name, err)
		}
		if got != c.want {
			log.Fatalf("%s: allowed=%v, want %v", c.name, got, c.want)
		}
		fmt.Printf("ok: %s\n", c.name)
	}

	subs, err := engine.SubordinatesOf(ctx, "C100")
	if err != nil {
		log.Fatalf("subordinates: %v", err)
	}
	if len(subs) != 1 || subs[0].Code != "C110" {
		log.Fatalf("unexpected closure: %+v", subs)
	}
	fmt.Println("smoke-authz passed")
}
