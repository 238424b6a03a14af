package tenants

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/citadel-authz/citadel/internal/authz"
	"github.com/citadel-authz/citadel/internal/platform/httpx"
	"github.com/citadel-authz/citadel/internal/shared"
)

// Handler exposes tenant and membership management.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	mw       authz.Middleware
	validate *validator.Validate
}

// NewHandler constructs the tenants handler.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validate: validator.New()}
}

// MountRoutes registers tenant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission(shared.ResourceTenants, shared.ActionView))
		r.Get("/", h.list)
		r.Get("/memberships/{userID}", h.listUserTenants)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission(shared.ResourceTenants, shared.ActionManage))
		r.Post("/", h.create)
		r.Put("/{code}/members/{userID}", h.addMember)
		r.Delete("/{code}/members/{userID}", h.removeMember)
	})
}

type tenantResponse struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type createTenantRequest struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.ListTenants(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]tenantResponse, len(all))
	for i, tenant := range all {
		out[i] = tenantResponse{ID: tenant.ID, Code: tenant.Code, Name: tenant.Name}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	tenant, err := h.service.CreateTenant(r.Context(), req.Code, req.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tenantResponse{ID: tenant.ID, Code: tenant.Code, Name: tenant.Name})
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	added, err := h.service.AddMember(r.Context(), userID, chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"changed": added})
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	removed, err := h.service.RemoveMember(r.Context(), userID, chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"changed": removed})
}

func (h *Handler) listUserTenants(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	all, err := h.service.ListUserTenants(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]tenantResponse, len(all))
	for i, tenant := range all {
		out[i] = tenantResponse{ID: tenant.ID, Code: tenant.Code, Name: tenant.Name}
	}
	httpx.JSON(w, http.StatusOK, out)
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
		h.logger.Error("tenants handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
