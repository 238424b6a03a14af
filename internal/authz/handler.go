package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/citadel-authz/citadel/internal/platform/httpx"
	"github.com/citadel-authz/citadel/internal/shared"
)

// Handler exposes the management surface: role and permission CRUD,
// assignments, grants, inheritance, reload, and the check endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	repo     Repository
	mw       Middleware
	validate *validator.Validate
}

// NewHandler constructs the management handler.
func NewHandler(logger *slog.Logger, service *Service, repo Repository, mw Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		repo:     repo,
		mw:       mw,
		validate: validator.New(),
	}
}

// MountRoutes registers management routes. Reads require authz:view,
// mutations authz:manage.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission(shared.ResourceAuthz, shared.ActionView))
		r.Get("/roles", h.listRoles)
		r.Get("/permissions", h.listPermissions)
		r.Get("/subjects/{userID}/roles", h.getUserRoles)
		r.Get("/subjects/{userID}/permissions", h.getUserPermissions)
		r.Post("/check", h.check)
		r.Post("/batch-check", h.batchCheck)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission(shared.ResourceAuthz, shared.ActionManage))
		r.Post("/roles", h.createRole)
		r.Put("/roles/{code}", h.updateRole)
		r.Post("/roles/{code}/enable", h.setRoleStatus(true))
		r.Post("/roles/{code}/disable", h.setRoleStatus(false))
		r.Delete("/roles/{code}", h.deleteRole)
		r.Post("/roles/{code}/permissions", h.grantToRole)
		r.Delete("/roles/{code}/permissions/{permission}", h.revokeFromRole)
		r.Put("/roles/{code}/inherits/{parent}", h.addInheritance)
		r.Delete("/roles/{code}/inherits/{parent}", h.removeInheritance)
		r.Post("/permissions", h.createPermission)
		r.Put("/permissions/{code}", h.updatePermission)
		r.Post("/permissions/{code}/enable", h.setPermissionStatus(true))
		r.Post("/permissions/{code}/disable", h.setPermissionStatus(false))
		r.Delete("/permissions/{code}", h.deletePermission)
		r.Post("/subjects/{userID}/roles", h.assignRole)
		r.Delete("/subjects/{userID}/roles", h.deleteUserRoles)
		r.Delete("/subjects/{userID}/roles/{code}", h.removeRole)
		r.Post("/subjects/{userID}/permissions", h.grantToUser)
		r.Delete("/subjects/{userID}/permissions/{permission}", h.revokeFromUser)
		r.Post("/reload", h.reload)
	})
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

type permissionResponse struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

type changedResponse struct {
	Changed bool `json:"changed"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.repo.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]roleResponse, len(roles))
	for i, role := range roles {
		out[i] = toRoleResponse(role)
	}
	httpx.JSON(w, http.StatusOK, out)
}

type createRoleRequest struct {
	Code        string `json:"code" validate:"required"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.repo.CreateRole(r.Context(), req.Code, req.Name, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

type updateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.repo.UpdateRole(r.Context(), chi.URLParam(r, "code"), req.Name, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) setRoleStatus(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		changed, err := h.repo.SetRoleStatus(r.Context(), chi.URLParam(r, "code"), enabled)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, changedResponse{Changed: changed})
	}
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.DeleteRole(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changedResponse{Changed: deleted})
}

type grantRequest struct {
	Permission string `json:"permission" validate:"required"`
	Tenant     string `json:"tenant"`
}

func (h *Handler) grantToRole(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !h.decode(w, r, &req) {
		return
	}
	added, err := h.service.GrantPermissionToRole(r.Context(), chi.URLParam(r, "code"), req.Permission, req.Tenant)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changedResponse{Changed: added})
}

func (h *Handler) revokeFromRole(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.RevokePermissionFromRole(r.Context(),
		chi.URLParam(r, "code"), chi.URLParam(r, "permission"), r.URL.Query().Get("tenant"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changedResponse{Changed: removed})
}

func (h *Handler) addInheritance(w http.ResponseWriter, r *http.Request) {
	added, err := h.service.AddRoleInheritance(r.Context(), chi.URLParam(r, "code"), chi.URLParam(r, "parent"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changedResponse{Changed: added})
}

func (h *Handler) removeInheritance(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.RemoveRoleInheritance(r.Context(), chi.URLParam(r, "code"), chi.URLParam(r, "parent"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changedResponse{Changed: removed})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.repo.ListPermissions(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]permissionResponse, len(perms))
	for i, perm := range perms {
		out[i] = toPermissionResponse(perm)
	}
	httpx.JSON(w, http.StatusOK, out)
}

type createPermissionRequest struct {
	Code        string `json:"code"`
	Resource    string `json:"resource" validate:"required"`
	Action      string `json:"action" validate:"required"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	code := req.Code
	if code == "" {
		code = req.Resource + ":" + req.Action
	}
	perm, err := h.repo.CreatePermission(r.Context(), code, req.Resource, req.Action, req.Name, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPermissionResponse(perm))
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	perm, err := h.repo.UpdatePermission(r.Context(), chi.URLParam(r, "code"), req.Name, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPermissionResponse(perm))
}

func (h *Handler) setPermissionStatus(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		changed, err := h.repo.SetPermissionStatus(r.Context(), chi.URLParam(r, "code"), enabled)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, changedResponse{Changed: changed})
	}
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.DeletePermission(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changedResponse{Changed: deleted})
}

func (h *Handler) getUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	roles, err := h.repo.GetUserRoles(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]roleResponse, len(roles))
	for i, role := range roles {
		out[i] = toRoleResponse(role)
	}
	httpx.JSON(w, http.StatusOK, out)
}

// getUserPermissions returns role-derived plus direct permissions. scope=direct
// narrows to ACL grants only; tenant= filters direct grants by tenant.
func (h *Handler) getUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var tenantID *int64
	if tenant := r.URL.Query().Get("tenant"); tenant != "" {
		id, err := h.repo.GetTenantIDByCode(r.Context(), tenant)
		if err != nil {
			h.respondError(w, err)
			return
		}
		tenantID = &id
	}
	var (
		perms []Permission
		err   error
	)
	if r.URL.Query().Get("scope") == "direct" {
		perms, err = h.repo.GetUserDirectPermissions(r.Context(), userID, tenantID)
	} else {
		perms, err = h.repo.GetAllUserPermissions(r.Context(), userID, tenantID)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]permissionResponse, len(perms))
	for i, perm := range perms {
		out[i] = toPermissionResponse(perm)
	}
	httpx.JSON(w, http.StatusOK, out)
}

type assignRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req assignRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	added, err := h.service.AssignRoleToUser(r.Context(), userID, req.Role)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changedResponse{Changed: added})
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	removed, err := h.service.RemoveRoleFromUser(r.Context(), userID, chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changedResponse{Changed: removed})
}

func (h *Handler) deleteUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	deleted, err := h.service.DeleteRolesForUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *Handler) grantToUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req grantRequest
	if !h.decode(w, r, &req) {
		return
	}
	added, err := h.service.GrantPermissionToUser(r.Context(), userID, req.Permission, req.Tenant)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changedResponse{Changed: added})
}

func (h *Handler) revokeFromUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	removed, err := h.service.RevokePermissionFromUser(r.Context(),
		userID, chi.URLParam(r, "permission"), r.URL.Query().Get("tenant"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changedResponse{Changed: removed})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req AccessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if req.Subject == "" || req.Resource == "" || req.Action == "" {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	allowed := h.service.Enforce(req.Subject, req.Domain, req.Resource, req.Action)
	httpx.JSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (h *Handler) batchCheck(w http.ResponseWriter, r *http.Request) {
	var reqs []AccessRequest
	if err := httpx.DecodeJSON(r, &reqs); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string][]bool{"results": h.service.BatchEnforce(reqs)})
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ReloadPolicy(r.Context()); err != nil {
		h.logger.Error("policy reload", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Reload Failed", "policy store unavailable")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return false
	}
	return true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrDuplicate):
		httpx.RespondError(w, httpx.ErrDuplicate)
	default:
		h.logger.Error("authz handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Code:        role.Code,
		Name:        role.Name,
		Description: role.Description,
		Enabled:     role.Enabled,
	}
}

func toPermissionResponse(perm Permission) permissionResponse {
	return permissionResponse{
		ID:          perm.ID,
		Code:        perm.Code,
		Resource:    perm.Resource,
		Action:      perm.Action,
		Name:        perm.Name,
		Description: perm.Description,
		Enabled:     perm.Enabled,
	}
}
