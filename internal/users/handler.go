package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/citadel-authz/citadel/internal/authz"
	"github.com/citadel-authz/citadel/internal/platform/httpx"
	"github.com/citadel-authz/citadel/internal/shared"
)

// Handler exposes user account management.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	mw       authz.Middleware
	validate *validator.Validate
}

// NewHandler constructs the users handler.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validate: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission(shared.ResourceUsers, shared.ActionView))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission(shared.ResourceUsers, shared.ActionManage))
		r.Post("/", h.create)
	})
}

type userResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]userResponse, len(all))
	for i, user := range all {
		out[i] = userResponse{ID: user.ID, Email: user.Email, Name: user.Name, IsActive: user.IsActive}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	user, err := h.service.CreateUser(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			httpx.RespondError(w, httpx.ErrDuplicate)
			return
		}
		h.logger.Error("create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, userResponse{ID: user.ID, Email: user.Email, Name: user.Name, IsActive: user.IsActive})
}
