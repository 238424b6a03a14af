package tenants

import (
	"context"
	"strings"
)

// Service wraps tenant business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateTenant registers a new tenant. Codes are trimmed; empty codes are
// rejected by the repository's NOT NULL constraint upstream of this check.
func (s *Service) CreateTenant(ctx context.Context, code, name string) (Tenant, error) {
	return s.repo.CreateTenant(ctx, strings.TrimSpace(code), strings.TrimSpace(name))
}

// GetTenantByCode resolves a tenant by code.
func (s *Service) GetTenantByCode(ctx context.Context, code string) (Tenant, error) {
	return s.repo.GetTenantByCode(ctx, code)
}

// ListTenants returns all tenants.
func (s *Service) ListTenants(ctx context.Context) ([]Tenant, error) {
	return s.repo.ListTenants(ctx)
}

// AddMember links a user to a tenant addressed by code. Returns false when
// the tenant is absent or the membership already exists.
func (s *Service) AddMember(ctx context.Context, userID int64, tenantCode string) (bool, error) {
	tenant, err := s.repo.GetTenantByCode(ctx, tenantCode)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return s.repo.AddMember(ctx, userID, tenant.ID)
}

// RemoveMember unlinks a user from a tenant addressed by code.
func (s *Service) RemoveMember(ctx context.Context, userID int64, tenantCode string) (bool, error) {
	tenant, err := s.repo.GetTenantByCode(ctx, tenantCode)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return s.repo.RemoveMember(ctx, userID, tenant.ID)
}

// ListUserTenants returns the tenants a user belongs to.
func (s *Service) ListUserTenants(ctx context.Context, userID int64) ([]Tenant, error) {
	return s.repo.ListUserTenants(ctx, userID)
}
