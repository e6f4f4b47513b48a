package httpapi

import (
	"net/http"
	"strings"

	"meridian.org/internal/auth"
	"meridian.org/internal/authz"
)

type createOrgNodeRequest struct {
	Code        string  `json:"code"`
	ManagerCode *string `json:"manager_code"`
	Status      string  `json:"status"`
	PrincipalID string  `json:"principal_id"`
}

type reassignManagerRequest struct {
	ManagerCode *string `json:"manager_code"`
}

type linkOrgRequest struct {
	PrincipalID string `json:"principal_id"`
	OrgCode     string `json:"org_code"`
}

type linkStaffRequest struct {
	PrincipalID string `json:"principal_id"`
	StaffID     string `json:"staff_id"`
}

type createStaffRequest struct {
	DisplayName string `json:"display_name"`
}

type createTeamRequest struct {
	Name     string `json:"name"`
	HeadCode string `json:"head_code"`
}

type createDelegationRequest struct {
	StaffID string `json:"staff_id"`
	OrgCode string `json:"org_code"`
	Notes   string `json:"notes"`
}

type bulkAssignRequest struct {
	StaffID  string   `json:"staff_id"`
	OrgCodes []string `json:"org_codes"`
}

// actor pulls the authenticated principal or writes a 401. Role enforcement
// stays inside the engine mutators.
func (a *API) actor(w http.ResponseWriter, r *http.Request) (authz.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	}
	return principal, ok
}

func (a *API) handleAdminOrgNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req createOrgNodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	node, err := a.engine.CreateOrgNode(r.Context(), actor, authz.OrgNode{
		Code:        req.Code,
		ManagerCode: req.ManagerCode,
		Status:      req.Status,
		PrincipalID: req.PrincipalID,
	})
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	a.audit(r.Context(), "org.node.create", map[string]any{
		"code":   node.Code,
		"status": node.Status,
	})
	w.Header().Set("Location", "/v1/admin/org-nodes/"+node.Code)
	writeJSON(w, http.StatusCreated, node)
}

func (a *API) handleAdminOrgNodeResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/org-nodes/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		a.deleteOrgNode(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "manager":
		a.reassignManager(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) deleteOrgNode(w http.ResponseWriter, r *http.Request, code string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	if err := a.engine.DeleteOrgNode(r.Context(), actor, code); err != nil {
		handleEngineError(w, r, err)
		return
	}
	a.audit(r.Context(), "org.node.delete", map[string]any{
		"code": code,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) reassignManager(w http.ResponseWriter, r *http.Request, code string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req reassignManagerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.engine.ReassignManager(r.Context(), actor, code, req.ManagerCode); err != nil {
		handleEngineError(w, r, err)
		return
	}
	fields := map[string]any{"code": code}
	if req.ManagerCode != nil {
		fields["manager_code"] = *req.ManagerCode
	} else {
		fields["manager_code"] = nil
	}
	a.audit(r.Context(), "org.node.reassign_manager", fields)
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (a *API) handleAdminLinkOrg(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req linkOrgRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.engine.LinkPrincipalToOrgNode(r.Context(), actor, req.PrincipalID, req.OrgCode); err != nil {
		handleEngineError(w, r, err)
		return
	}
	a.audit(r.Context(), "org.link.principal", map[string]any{
		"principal_id": req.PrincipalID,
		"org_code":     req.OrgCode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAdminLinkStaff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req linkStaffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.engine.LinkPrincipalToStaff(r.Context(), actor, req.PrincipalID, req.StaffID); err != nil {
		handleEngineError(w, r, err)
		return
	}
	a.audit(r.Context(), "staff.link.principal", map[string]any{
		"principal_id": req.PrincipalID,
		"staff_id":     req.StaffID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAdminStaff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req createStaffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	staff, err := a.engine.CreateStaffIdentity(r.Context(), actor, req.DisplayName)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	a.audit(r.Context(), "staff.create", map[string]any{
		"staff_id": staff.ID,
	})
	writeJSON(w, http.StatusCreated, staff)
}

func (a *API) handleAdminTeams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req createTeamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	team, err := a.engine.CreateTeam(r.Context(), actor, req.Name, req.HeadCode)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	a.audit(r.Context(), "team.create", map[string]any{
		"team_id":   team.ID,
		"head_code": team.HeadCode,
	})
	writeJSON(w, http.StatusCreated, team)
}

func (a *API) handleAdminDelegations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req createDelegationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	d, err := a.engine.CreateDelegation(r.Context(), actor, req.StaffID, req.OrgCode, req.Notes)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	a.audit(r.Context(), "delegation.create", map[string]any{
		"delegation_id": d.ID,
		"staff_id":      d.StaffID,
		"org_code":      d.OrgCode,
	})
	w.Header().Set("Location", "/v1/admin/delegations/"+d.ID)
	writeJSON(w, http.StatusCreated, d)
}

func (a *API) handleAdminDelegationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/delegations/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if path == "bulk" {
		a.bulkAssign(w, r)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	if err := a.engine.DeactivateDelegation(r.Context(), actor, path); err != nil {
		handleEngineError(w, r, err)
		return
	}
	a.audit(r.Context(), "delegation.deactivate", map[string]any{
		"delegation_id": path,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) bulkAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req bulkAssignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.engine.BulkAssign(r.Context(), actor, req.StaffID, req.OrgCodes)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	a.audit(r.Context(), "delegation.bulk_assign", map[string]any{
		"staff_id":      req.StaffID,
		"success_count": result.SuccessCount,
		"error_count":   result.ErrorCount,
	})
	writeJSON(w, http.StatusOK, result)
}
