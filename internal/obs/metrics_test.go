package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                  "/",
		"/metrics":                          "/metrics",
		"/v1/authz/check":                   "/v1/authz/check",
		"/v1/org-nodes/C001/subordinates":   "/v1/org-nodes/:code/subordinates",
		"/v1/org-nodes/C001/staff":          "/v1/org-nodes/:code/staff",
		"/v1/staff/01ABC/assignments":       "/v1/staff/:id/assignments",
		"/v1/admin/delegations/01ABC":       "/v1/admin/delegations/:id",
		"/v1/admin/delegations/bulk":        "/v1/admin/delegations/bulk",
		"/v1/admin/org-nodes/C001":          "/v1/admin/org-nodes/:code",
		"/v1/org-nodes/C001/staff?limit=10": "/v1/org-nodes/:code/staff",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
