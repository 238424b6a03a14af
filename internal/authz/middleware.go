package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/citadel-authz/citadel/internal/platform/httpx"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal, or nil when the request is
// unauthenticated.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalContextKey{}).(Principal)
	return p
}

// DecisionRecorder observes enforcement outcomes at the request boundary.
type DecisionRecorder interface {
	RecordDecision(allowed bool)
}

// Middleware wires authorization checks into the HTTP pipeline. Denials are
// answered with a static rejection that never names the failing rule.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Metrics DecisionRecorder
}

// RequireOption adjusts how a requirement is evaluated.
type RequireOption func(*requireConfig)

type requireConfig struct {
	useDomain bool
}

// WithPrincipalDomain scopes the check to the principal's tenant instead of
// the global scope.
func WithPrincipalDomain() RequireOption {
	return func(cfg *requireConfig) {
		cfg.useDomain = true
	}
}

// RequirePermission rejects the request before the handler runs unless the
// principal passes enforce for the given resource and action.
func (m Middleware) RequirePermission(resource, action string, opts ...RequireOption) func(http.Handler) http.Handler {
	var cfg requireConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				m.deny(w)
				return
			}
			domain := ""
			if cfg.useDomain {
				domain = principal.TenantID()
			}
			allowed := m.Service.Enforce(principal.SubjectID(), domain, resource, action)
			if m.Metrics != nil {
				m.Metrics.RecordDecision(allowed)
			}
			if !allowed {
				m.deny(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRole admits the request when the principal holds at least one of
// the listed roles, directly or through inheritance.
func (m Middleware) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	required := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			held, ok := m.heldRoles(r)
			if !ok {
				m.deny(w)
				return
			}
			for _, role := range required {
				if _, has := held[role]; has {
					next.ServeHTTP(w, r)
					return
				}
			}
			m.deny(w)
		})
	}
}

// RequireAllRoles admits the request only when the principal holds every
// listed role.
func (m Middleware) RequireAllRoles(roles ...string) func(http.Handler) http.Handler {
	required := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			held, ok := m.heldRoles(r)
			if !ok {
				m.deny(w)
				return
			}
			for _, role := range required {
				if _, has := held[role]; !has {
					m.deny(w)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) heldRoles(r *http.Request) (map[string]struct{}, bool) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		return nil, false
	}
	roles := m.Service.GetRolesForSubject(principal.SubjectID(), principal.TenantID())
	held := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		held[role] = struct{}{}
	}
	return held, true
}

func (m Middleware) deny(w http.ResponseWriter) {
	httpx.Problem(w, http.StatusForbidden, "Forbidden", "access denied")
}

func normalizeRoles(roles []string) []string {
	unique := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		unique[role] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for role := range unique {
		normalized = append(normalized, role)
	}
	return normalized
}
