package tenants

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for tenants and memberships.
type Repository interface {
	CreateTenant(ctx context.Context, code, name string) (Tenant, error)
	GetTenantByCode(ctx context.Context, code string) (Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	AddMember(ctx context.Context, userID, tenantID int64) (bool, error)
	RemoveMember(ctx context.Context, userID, tenantID int64) (bool, error)
	ListUserTenants(ctx context.Context, userID int64) ([]Tenant, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const tenantColumns = "id, code, name, created_at, updated_at"

// CreateTenant inserts a new tenant. Duplicate codes yield ErrDuplicate.
func (r *PGRepository) CreateTenant(ctx context.Context, code, name string) (Tenant, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO tenants (code, name) VALUES ($1, $2) RETURNING `+tenantColumns,
		code, name)
	tenant, err := scanTenant(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Tenant{}, ErrDuplicate
		}
		return Tenant{}, err
	}
	return tenant, nil
}

// GetTenantByCode fetches a tenant by its code.
func (r *PGRepository) GetTenantByCode(ctx context.Context, code string) (Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE code = $1`, code)
	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return tenant, nil
}

// ListTenants returns all tenants ordered by code.
func (r *PGRepository) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tenants []Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// AddMember links a user to a tenant. Returns false when the membership
// already exists.
func (r *PGRepository) AddMember(ctx context.Context, userID, tenantID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO user_tenants (user_id, tenant_id) VALUES ($1, $2) ON CONFLICT (user_id, tenant_id) DO NOTHING`,
		userID, tenantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveMember unlinks a user from a tenant. Returns true iff a row was
// deleted.
func (r *PGRepository) RemoveMember(ctx context.Context, userID, tenantID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_tenants WHERE user_id = $1 AND tenant_id = $2`,
		userID, tenantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListUserTenants returns the tenants a user belongs to.
func (r *PGRepository) ListUserTenants(ctx context.Context, userID int64) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.code, t.name, t.created_at, t.updated_at
		   FROM tenants t
		   JOIN user_tenants ut ON ut.tenant_id = t.id
		  WHERE ut.user_id = $1
		  ORDER BY t.code`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tenants []Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (Tenant, error) {
	var tenant Tenant
	if err := row.Scan(&tenant.ID, &tenant.Code, &tenant.Name, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
		return Tenant{}, err
	}
	return tenant, nil
}
