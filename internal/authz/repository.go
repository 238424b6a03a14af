package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/citadel-authz/citadel/internal/platform/db"
)

// Repository defines persistence operations over the policy store. Assignment
// operations are idempotent: adding an existing pair or removing an absent one
// reports false, never an error.
type Repository interface {
	CreateRole(ctx context.Context, code, name, description string) (Role, error)
	UpdateRole(ctx context.Context, code, name, description string) (Role, error)
	SetRoleStatus(ctx context.Context, code string, enabled bool) (bool, error)
	GetRoleByCode(ctx context.Context, code string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)

	CreatePermission(ctx context.Context, code, resource, action, name, description string) (Permission, error)
	UpdatePermission(ctx context.Context, code, name, description string) (Permission, error)
	SetPermissionStatus(ctx context.Context, code string, enabled bool) (bool, error)
	GetPermissionByCode(ctx context.Context, code string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)

	AssignRoleToUser(ctx context.Context, userID, roleID int64) (bool, error)
	RemoveRoleFromUser(ctx context.Context, userID, roleID int64) (bool, error)
	GetUserRoles(ctx context.Context, userID int64) ([]Role, error)
	GetUserPermissions(ctx context.Context, userID int64) ([]Permission, error)

	GrantPermissionToRole(ctx context.Context, roleID, permissionID int64, tenantID *int64) (bool, error)
	RevokePermissionFromRole(ctx context.Context, roleID, permissionID int64, tenantID *int64) (bool, error)

	GrantPermissionToUser(ctx context.Context, userID, permissionID int64, tenantID *int64) (bool, error)
	RevokePermissionFromUser(ctx context.Context, userID, permissionID int64, tenantID *int64) (bool, error)
	GetUserDirectPermissions(ctx context.Context, userID int64, tenantID *int64) ([]Permission, error)
	GetAllUserPermissions(ctx context.Context, userID int64, tenantID *int64) ([]Permission, error)

	AddRoleInheritance(ctx context.Context, childID, parentID int64) (bool, error)
	RemoveRoleInheritance(ctx context.Context, childID, parentID int64) (bool, error)

	DeleteUserRoles(ctx context.Context, userID int64) (int64, error)
	DetachRole(ctx context.Context, roleID int64) error
	DetachPermission(ctx context.Context, permissionID int64) error
	GrantLinesForPermission(ctx context.Context, permissionID int64) ([]PolicyRule, error)

	GetTenantIDByCode(ctx context.Context, code string) (int64, error)

	LoadSnapshot(ctx context.Context) (*Snapshot, error)
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

const roleColumns = "id, code, name, description, status, created_at, updated_at"

// CreateRole inserts a new role. Duplicate codes yield ErrDuplicate.
func (r *PGRepository) CreateRole(ctx context.Context, code, name, description string) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (code, name, description) VALUES ($1, $2, $3) RETURNING `+roleColumns,
		code, name, description)
	role, err := scanRole(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicate
		}
		return Role{}, err
	}
	return role, nil
}

// UpdateRole updates the display fields of a role addressed by code.
func (r *PGRepository) UpdateRole(ctx context.Context, code, name, description string) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = now() WHERE code = $1 RETURNING `+roleColumns,
		code, name, description)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// SetRoleStatus soft-enables or soft-disables a role. Returns false when the
// code does not exist.
func (r *PGRepository) SetRoleStatus(ctx context.Context, code string, enabled bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET status = $2, updated_at = now() WHERE code = $1`,
		code, statusOf(enabled))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetRoleByCode fetches a role by its stable code.
func (r *PGRepository) GetRoleByCode(ctx context.Context, code string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE code = $1`, code)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// ListRoles returns every role ordered by code.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

const permissionColumns = "id, code, resource, action, name, description, status, created_at, updated_at"

// CreatePermission inserts a new permission. Duplicate codes yield ErrDuplicate.
func (r *PGRepository) CreatePermission(ctx context.Context, code, resource, action, name, description string) (Permission, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO permissions (code, resource, action, name, description) VALUES ($1, $2, $3, $4, $5) RETURNING `+permissionColumns,
		code, resource, action, name, description)
	perm, err := scanPermission(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Permission{}, ErrDuplicate
		}
		return Permission{}, err
	}
	return perm, nil
}

// UpdatePermission updates display fields. Resource and action are immutable
// once created; a different protection target is a different permission.
func (r *PGRepository) UpdatePermission(ctx context.Context, code, name, description string) (Permission, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE permissions SET name = $2, description = $3, updated_at = now() WHERE code = $1 RETURNING `+permissionColumns,
		code, name, description)
	perm, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	return perm, nil
}

// SetPermissionStatus soft-enables or soft-disables a permission.
func (r *PGRepository) SetPermissionStatus(ctx context.Context, code string, enabled bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE permissions SET status = $2, updated_at = now() WHERE code = $1`,
		code, statusOf(enabled))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetPermissionByCode fetches a permission by its stable code.
func (r *PGRepository) GetPermissionByCode(ctx context.Context, code string) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE code = $1`, code)
	perm, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	return perm, nil
}

// ListPermissions returns every permission ordered by code.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// AssignRoleToUser links a user to a role. Returns false when the pair
// already exists.
func (r *PGRepository) AssignRoleToUser(ctx context.Context, userID, roleID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveRoleFromUser unlinks a user from a role. Returns true iff a row was
// deleted.
func (r *PGRepository) RemoveRoleFromUser(ctx context.Context, userID, roleID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`,
		userID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetUserRoles returns the enabled roles directly assigned to a user.
func (r *PGRepository) GetUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.code, r.name, r.description, r.status, r.created_at, r.updated_at
		   FROM roles r
		   JOIN user_roles ur ON ur.role_id = r.id
		  WHERE ur.user_id = $1 AND r.status = 'enabled'
		  ORDER BY r.code`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetUserPermissions returns the permissions reachable through the user's
// directly assigned roles, deduplicated. Deeper hierarchy resolution is the
// matcher engine's job, not this query's.
func (r *PGRepository) GetUserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT p.id, p.code, p.resource, p.action, p.name, p.description, p.status, p.created_at, p.updated_at
		   FROM permissions p
		   JOIN role_permissions rp ON rp.permission_id = p.id
		   JOIN user_roles ur ON ur.role_id = rp.role_id
		   JOIN roles r ON r.id = rp.role_id
		  WHERE ur.user_id = $1 AND p.status = 'enabled' AND r.status = 'enabled'
		  ORDER BY p.code`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// GrantPermissionToRole attaches a permission to a role within the explicit
// tenant scope (nil = global). Returns false when the grant already exists.
func (r *PGRepository) GrantPermissionToRole(ctx context.Context, roleID, permissionID int64, tenantID *int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id, tenant_id) VALUES ($1, $2, $3)
		 ON CONFLICT (role_id, permission_id, COALESCE(tenant_id, 0)) DO NOTHING`,
		roleID, permissionID, tenantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RevokePermissionFromRole removes a grant in the exact tenant scope.
func (r *PGRepository) RevokePermissionFromRole(ctx context.Context, roleID, permissionID int64, tenantID *int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2 AND tenant_id IS NOT DISTINCT FROM $3`,
		roleID, permissionID, tenantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GrantPermissionToUser inserts a direct grant (ACL), bypassing roles.
func (r *PGRepository) GrantPermissionToUser(ctx context.Context, userID, permissionID int64, tenantID *int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO user_permissions (user_id, permission_id, tenant_id) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, permission_id, COALESCE(tenant_id, 0)) DO NOTHING`,
		userID, permissionID, tenantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RevokePermissionFromUser removes a direct grant in the exact tenant scope.
func (r *PGRepository) RevokePermissionFromUser(ctx context.Context, userID, permissionID int64, tenantID *int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2 AND tenant_id IS NOT DISTINCT FROM $3`,
		userID, permissionID, tenantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetUserDirectPermissions lists direct grants, filtered by tenant when one is
// given, otherwise across all scopes.
func (r *PGRepository) GetUserDirectPermissions(ctx context.Context, userID int64, tenantID *int64) ([]Permission, error) {
	query := `SELECT DISTINCT p.id, p.code, p.resource, p.action, p.name, p.description, p.status, p.created_at, p.updated_at
	            FROM permissions p
	            JOIN user_permissions up ON up.permission_id = p.id
	           WHERE up.user_id = $1 AND p.status = 'enabled'`
	args := []any{userID}
	if tenantID != nil {
		query += ` AND up.tenant_id = $2`
		args = append(args, *tenantID)
	}
	query += ` ORDER BY p.code`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// GetAllUserPermissions returns the union of role-derived and direct
// permissions, deduplicated by permission identity. Pure read.
func (r *PGRepository) GetAllUserPermissions(ctx context.Context, userID int64, tenantID *int64) ([]Permission, error) {
	derived, err := r.GetUserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	direct, err := r.GetUserDirectPermissions(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(derived))
	merged := make([]Permission, 0, len(derived)+len(direct))
	for _, perm := range derived {
		seen[perm.ID] = struct{}{}
		merged = append(merged, perm)
	}
	for _, perm := range direct {
		if _, ok := seen[perm.ID]; ok {
			continue
		}
		merged = append(merged, perm)
	}
	return merged, nil
}

// AddRoleInheritance records that child inherits parent. Returns false when
// the edge already exists.
func (r *PGRepository) AddRoleInheritance(ctx context.Context, childID, parentID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO role_inheritance (child_role_id, parent_role_id) VALUES ($1, $2)
		 ON CONFLICT (child_role_id, parent_role_id) DO NOTHING`,
		childID, parentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveRoleInheritance deletes an inheritance edge.
func (r *PGRepository) RemoveRoleInheritance(ctx context.Context, childID, parentID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM role_inheritance WHERE child_role_id = $1 AND parent_role_id = $2`,
		childID, parentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteUserRoles removes every role assignment of a user and reports the row
// count.
func (r *PGRepository) DeleteUserRoles(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DetachRole disables a role and hard-deletes every junction row referencing
// it, in one transaction.
func (r *PGRepository) DetachRole(ctx context.Context, roleID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_inheritance WHERE child_role_id = $1 OR parent_role_id = $1`, roleID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE roles SET status = 'disabled', updated_at = now() WHERE id = $1`, roleID)
		return err
	})
}

// DetachPermission disables a permission and hard-deletes every grant row
// referencing it, in one transaction.
func (r *PGRepository) DetachPermission(ctx context.Context, permissionID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE permission_id = $1`, permissionID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_permissions WHERE permission_id = $1`, permissionID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE permissions SET status = 'disabled', updated_at = now() WHERE id = $1`, permissionID)
		return err
	})
}

// GrantLinesForPermission lists the policy lines backed by the permission's
// grant rows: one per role grant and one per direct grant, each in its stored
// tenant scope. A permission delete cascades through the live set by removing
// exactly these lines, so an unrelated permission protecting the same
// resource/action pair keeps its own.
func (r *PGRepository) GrantLinesForPermission(ctx context.Context, permissionID int64) ([]PolicyRule, error) {
	roleLines, err := querySnapshotRows(ctx, r.pool,
		`SELECT ro.code, p.resource, p.action, COALESCE(t.code, '')
		   FROM role_permissions rp
		   JOIN roles ro ON ro.id = rp.role_id
		   JOIN permissions p ON p.id = rp.permission_id
		   LEFT JOIN tenants t ON t.id = rp.tenant_id
		  WHERE rp.permission_id = $1`,
		func(row rowScanner) (PolicyRule, error) {
			var rule PolicyRule
			err := row.Scan(&rule.Subject, &rule.Resource, &rule.Action, &rule.Domain)
			return rule, err
		}, permissionID)
	if err != nil {
		return nil, err
	}
	userLines, err := querySnapshotRows(ctx, r.pool,
		`SELECT up.user_id, p.resource, p.action, COALESCE(t.code, '')
		   FROM user_permissions up
		   JOIN permissions p ON p.id = up.permission_id
		   LEFT JOIN tenants t ON t.id = up.tenant_id
		  WHERE up.permission_id = $1`,
		func(row rowScanner) (PolicyRule, error) {
			var rule PolicyRule
			var userID int64
			err := row.Scan(&userID, &rule.Resource, &rule.Action, &rule.Domain)
			rule.Subject = SubjectID(userID)
			return rule, err
		}, permissionID)
	if err != nil {
		return nil, err
	}
	return append(roleLines, userLines...), nil
}

// GetTenantIDByCode resolves a tenant code to its id.
func (r *PGRepository) GetTenantIDByCode(ctx context.Context, code string) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, `SELECT id FROM tenants WHERE code = $1`, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

// LoadSnapshot reads every active policy row. Rows owned by disabled roles or
// permissions are excluded so a reload reflects only current state. The four
// segments are independent reads and run concurrently over the pool.
func (r *PGRepository) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		grants, err := querySnapshotRows(ctx, r.pool,
			`SELECT r.code, p.resource, p.action, COALESCE(t.code, '')
			   FROM role_permissions rp
			   JOIN roles r ON r.id = rp.role_id AND r.status = 'enabled'
			   JOIN permissions p ON p.id = rp.permission_id AND p.status = 'enabled'
			   LEFT JOIN tenants t ON t.id = rp.tenant_id`,
			func(row rowScanner) (RoleGrant, error) {
				var grant RoleGrant
				err := row.Scan(&grant.RoleCode, &grant.Resource, &grant.Action, &grant.Domain)
				return grant, err
			})
		if err != nil {
			return fmt.Errorf("snapshot role grants: %w", err)
		}
		snap.RoleGrants = grants
		return nil
	})

	g.Go(func() error {
		grants, err := querySnapshotRows(ctx, r.pool,
			`SELECT up.user_id, p.resource, p.action, COALESCE(t.code, '')
			   FROM user_permissions up
			   JOIN permissions p ON p.id = up.permission_id AND p.status = 'enabled'
			   LEFT JOIN tenants t ON t.id = up.tenant_id`,
			func(row rowScanner) (DirectGrant, error) {
				var grant DirectGrant
				err := row.Scan(&grant.UserID, &grant.Resource, &grant.Action, &grant.Domain)
				return grant, err
			})
		if err != nil {
			return fmt.Errorf("snapshot direct grants: %w", err)
		}
		snap.DirectGrants = grants
		return nil
	})

	g.Go(func() error {
		assignments, err := querySnapshotRows(ctx, r.pool,
			`SELECT ur.user_id, r.code
			   FROM user_roles ur
			   JOIN roles r ON r.id = ur.role_id AND r.status = 'enabled'`,
			func(row rowScanner) (RoleAssignment, error) {
				var assignment RoleAssignment
				err := row.Scan(&assignment.UserID, &assignment.RoleCode)
				return assignment, err
			})
		if err != nil {
			return fmt.Errorf("snapshot assignments: %w", err)
		}
		snap.Assignments = assignments
		return nil
	})

	g.Go(func() error {
		edges, err := querySnapshotRows(ctx, r.pool,
			`SELECT c.code, p.code
			   FROM role_inheritance ri
			   JOIN roles c ON c.id = ri.child_role_id AND c.status = 'enabled'
			   JOIN roles p ON p.id = ri.parent_role_id AND p.status = 'enabled'`,
			func(row rowScanner) (InheritanceEdge, error) {
				var edge InheritanceEdge
				err := row.Scan(&edge.ChildCode, &edge.ParentCode)
				return edge, err
			})
		if err != nil {
			return fmt.Errorf("snapshot inheritance: %w", err)
		}
		snap.Inheritance = edges
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func querySnapshotRows[T any](ctx context.Context, pool *pgxpool.Pool, query string, scan func(rowScanner) (T, error), args ...any) ([]T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	var status string
	if err := row.Scan(&role.ID, &role.Code, &role.Name, &role.Description, &status, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	role.Enabled = status == "enabled"
	return role, nil
}

func scanPermission(row rowScanner) (Permission, error) {
	var perm Permission
	var status string
	if err := row.Scan(&perm.ID, &perm.Code, &perm.Resource, &perm.Action, &perm.Name, &perm.Description, &status, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
		return Permission{}, err
	}
	perm.Enabled = status == "enabled"
	return perm, nil
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func statusOf(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
