package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"meridian.org/internal/auth"
	"meridian.org/internal/authz"
	"meridian.org/internal/obs"
	"meridian.org/internal/stream"
)

type checkRequest struct {
	Shape            string `json:"shape"`
	Operation        string `json:"operation"`
	OrgCode          string `json:"org_code"`
	TeamID           string `json:"team_id"`
	DelegationID     string `json:"delegation_id"`
	OwnerPrincipalID string `json:"owner_principal_id"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

type subordinateItem struct {
	Code  string `json:"code"`
	Depth int    `json:"depth"`
	Label string `json:"label"`
}

type subordinatesResponse struct {
	Items []subordinateItem `json:"items"`
	AsOf  time.Time         `json:"as_of"`
}

func (a *API) handleAuthzCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req checkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	shape := authz.ResourceShape(strings.ToLower(strings.TrimSpace(req.Shape)))
	switch shape {
	case authz.ShapeOrgNode, authz.ShapeTeam, authz.ShapeDelegation, authz.ShapeOwnedResource:
	default:
		writeError(w, r, http.StatusBadRequest, "unknown resource shape")
		return
	}
	op, err := authz.ParseOperation(req.Operation)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown operation")
		return
	}

	allowed, err := a.engine.Check(r.Context(), principal, shape, op, authz.CheckTarget{
		OrgCode:          req.OrgCode,
		TeamID:           req.TeamID,
		DelegationID:     req.DelegationID,
		OwnerPrincipalID: req.OwnerPrincipalID,
	})
	if err != nil {
		handleEngineError(w, r, err)
		return
	}

	obs.ObserveDecision(string(shape), string(op), allowed)
	a.stream.Publish(stream.DecisionEvent{
		PrincipalID: principal.ID,
		Role:        string(principal.Role),
		Shape:       string(shape),
		Operation:   string(op),
		Allowed:     allowed,
		Timestamp:   time.Now().UTC(),
	})
	writeJSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}

func (a *API) handleOrgNodeResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/org-nodes/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	code := parts[0]
	switch parts[1] {
	case "subordinates":
		a.listSubordinates(w, r, code)
	case "staff":
		a.listOrgNodeStaff(w, r, code)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listSubordinates(w http.ResponseWriter, r *http.Request, code string) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	allowed, err := a.engine.CanReadOrgNode(r.Context(), principal, code)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	if !allowed {
		writeError(w, r, http.StatusForbidden, "access denied")
		return
	}

	subs, err := a.engine.SubordinatesOf(r.Context(), code)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	items := make([]subordinateItem, 0, len(subs))
	for _, s := range subs {
		items = append(items, subordinateItem{
			Code:  s.Code,
			Depth: s.Depth,
			Label: authz.DepthLabel(s.Depth),
		})
	}
	writeJSON(w, http.StatusOK, subordinatesResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) listOrgNodeStaff(w http.ResponseWriter, r *http.Request, code string) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	allowed, err := a.engine.CanReadOrgNode(r.Context(), principal, code)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	if !allowed {
		writeError(w, r, http.StatusForbidden, "access denied")
		return
	}

	staffIDs, err := a.engine.AssignedStaffIDs(r.Context(), code)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"org_code": code,
		"staff":    staffIDs,
	})
}

func (a *API) handleStaffResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/staff/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "assignments" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	staffID := parts[0]

	// Admins see any assignment list; a staff member sees only their own.
	if principal.Role != authz.RoleAdmin {
		ownID, err := a.engine.ResolveStaffID(r.Context(), principal)
		if err != nil {
			handleEngineError(w, r, err)
			return
		}
		if ownID == "" || ownID != staffID {
			writeError(w, r, http.StatusForbidden, "access denied")
			return
		}
	}

	codes, err := a.engine.AssignedOrgCodes(r.Context(), staffID)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"staff_id":    staffID,
		"assignments": codes,
	})
}

// handleEngineError translates engine sentinels into HTTP statuses. Integrity
// faults surface as 409 with a stable operator-facing message.
func handleEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, authz.ErrNotAdmin):
		writeError(w, r, http.StatusForbidden, "administrator role required")
	case errors.Is(err, authz.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, authz.ErrIntegrity):
		obs.IntegrityViolation()
		writeError(w, r, http.StatusConflict, "data inconsistency, contact an administrator")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
