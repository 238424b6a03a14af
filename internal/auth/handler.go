package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/citadel-authz/citadel/internal/platform/httpx"
	"github.com/citadel-authz/citadel/internal/shared"
	"github.com/citadel-authz/citadel/internal/tenants"
)

// Handler exposes login and logout. On login the session records the subject
// id and, when requested, the active tenant; the app middleware turns that
// session into the principal the interceptor consumes.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	tenants  *tenants.Service
	sessions *shared.SessionManager
	validate *validator.Validate
}

// NewHandler constructs the auth handler.
func NewHandler(logger *slog.Logger, service *Service, tenantSvc *tenants.Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		tenants:  tenantSvc,
		sessions: sessions,
		validate: validator.New(),
	}
}

// MountRoutes registers auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Get("/me", h.me)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Tenant   string `json:"tenant"`
}

type meResponse struct {
	Subject string `json:"subject"`
	Tenant  string `json:"tenant,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	// A tenant claim is honored only when the user is actually a member.
	if req.Tenant != "" {
		member, err := h.isMember(r, user.ID, req.Tenant)
		if err != nil {
			h.logger.Error("login tenant lookup", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if !member {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	subject := strconv.FormatInt(user.ID, 10)
	sess.SetUser(subject)
	sess.SetTenant(req.Tenant)

	expires := time.Now().Add(h.sessions.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expires, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, meResponse{Subject: subject, Tenant: req.Tenant})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessions.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, meResponse{Subject: sess.User(), Tenant: sess.Tenant()})
}

func (h *Handler) isMember(r *http.Request, userID int64, tenantCode string) (bool, error) {
	memberships, err := h.tenants.ListUserTenants(r.Context(), userID)
	if err != nil {
		return false, err
	}
	for _, tenant := range memberships {
		if tenant.Code == tenantCode {
			return true, nil
		}
	}
	return false, nil
}
