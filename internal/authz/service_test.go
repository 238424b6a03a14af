package authz

import (
	"context"
	"errors"
	"io"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type grantKey struct {
	subjectID    int64
	permissionID int64
	tenantID     int64 // 0 means global
}

type mockRepository struct {
	roles        map[string]*Role
	rolesByID    map[int64]*Role
	perms        map[string]*Permission
	permsByID    map[int64]*Permission
	tenants      map[string]int64
	tenantCodes  map[int64]string
	userRoles    map[int64]map[int64]struct{} // userID -> roleIDs
	roleGrants   map[grantKey]struct{}
	userGrants   map[grantKey]struct{}
	inheritance  map[int64]map[int64]struct{} // childID -> parentIDs
	nextRoleID   int64
	nextPermID   int64
	nextTenantID int64

	// Error injection
	grantRoleError  error
	assignError     error
	snapshotError   error
	detachRoleError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:        make(map[string]*Role),
		rolesByID:    make(map[int64]*Role),
		perms:        make(map[string]*Permission),
		permsByID:    make(map[int64]*Permission),
		tenants:      make(map[string]int64),
		tenantCodes:  make(map[int64]string),
		userRoles:    make(map[int64]map[int64]struct{}),
		roleGrants:   make(map[grantKey]struct{}),
		userGrants:   make(map[grantKey]struct{}),
		inheritance:  make(map[int64]map[int64]struct{}),
		nextRoleID:   1,
		nextPermID:   1,
		nextTenantID: 1,
	}
}

func (m *mockRepository) seedRole(code string) *Role {
	role := &Role{ID: m.nextRoleID, Code: code, Name: code, Enabled: true, CreatedAt: time.Now()}
	m.nextRoleID++
	m.roles[code] = role
	m.rolesByID[role.ID] = role
	return role
}

func (m *mockRepository) seedPermission(code, resource, action string) *Permission {
	perm := &Permission{ID: m.nextPermID, Code: code, Resource: resource, Action: action, Enabled: true}
	m.nextPermID++
	m.perms[code] = perm
	m.permsByID[perm.ID] = perm
	return perm
}

func (m *mockRepository) seedTenant(code string) int64 {
	id := m.nextTenantID
	m.nextTenantID++
	m.tenants[code] = id
	m.tenantCodes[id] = code
	return id
}

func tenantOrZero(tenantID *int64) int64 {
	if tenantID == nil {
		return 0
	}
	return *tenantID
}

func (m *mockRepository) CreateRole(ctx context.Context, code, name, description string) (Role, error) {
	if _, ok := m.roles[code]; ok {
		return Role{}, ErrDuplicate
	}
	role := m.seedRole(code)
	role.Name = name
	role.Description = description
	return *role, nil
}

func (m *mockRepository) UpdateRole(ctx context.Context, code, name, description string) (Role, error) {
	role, ok := m.roles[code]
	if !ok {
		return Role{}, ErrNotFound
	}
	role.Name = name
	role.Description = description
	return *role, nil
}

func (m *mockRepository) SetRoleStatus(ctx context.Context, code string, enabled bool) (bool, error) {
	role, ok := m.roles[code]
	if !ok {
		return false, ErrNotFound
	}
	changed := role.Enabled != enabled
	role.Enabled = enabled
	return changed, nil
}

func (m *mockRepository) GetRoleByCode(ctx context.Context, code string) (Role, error) {
	role, ok := m.roles[code]
	if !ok {
		return Role{}, ErrNotFound
	}
	return *role, nil
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, *role)
	}
	return out, nil
}

func (m *mockRepository) CreatePermission(ctx context.Context, code, resource, action, name, description string) (Permission, error) {
	if _, ok := m.perms[code]; ok {
		return Permission{}, ErrDuplicate
	}
	perm := m.seedPermission(code, resource, action)
	perm.Name = name
	perm.Description = description
	return *perm, nil
}

func (m *mockRepository) UpdatePermission(ctx context.Context, code, name, description string) (Permission, error) {
	perm, ok := m.perms[code]
	if !ok {
		return Permission{}, ErrNotFound
	}
	perm.Name = name
	perm.Description = description
	return *perm, nil
}

func (m *mockRepository) SetPermissionStatus(ctx context.Context, code string, enabled bool) (bool, error) {
	perm, ok := m.perms[code]
	if !ok {
		return false, ErrNotFound
	}
	changed := perm.Enabled != enabled
	perm.Enabled = enabled
	return changed, nil
}

func (m *mockRepository) GetPermissionByCode(ctx context.Context, code string) (Permission, error) {
	perm, ok := m.perms[code]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return *perm, nil
}

func (m *mockRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(m.perms))
	for _, perm := range m.perms {
		out = append(out, *perm)
	}
	return out, nil
}

func (m *mockRepository) AssignRoleToUser(ctx context.Context, userID, roleID int64) (bool, error) {
	if m.assignError != nil {
		return false, m.assignError
	}
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = make(map[int64]struct{})
	}
	if _, ok := m.userRoles[userID][roleID]; ok {
		return false, nil
	}
	m.userRoles[userID][roleID] = struct{}{}
	return true, nil
}

func (m *mockRepository) RemoveRoleFromUser(ctx context.Context, userID, roleID int64) (bool, error) {
	if _, ok := m.userRoles[userID][roleID]; !ok {
		return false, nil
	}
	delete(m.userRoles[userID], roleID)
	return true, nil
}

func (m *mockRepository) GetUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	var out []Role
	for roleID := range m.userRoles[userID] {
		if role, ok := m.rolesByID[roleID]; ok && role.Enabled {
			out = append(out, *role)
		}
	}
	return out, nil
}

func (m *mockRepository) GetUserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	seen := make(map[int64]struct{})
	var out []Permission
	for roleID := range m.userRoles[userID] {
		role, ok := m.rolesByID[roleID]
		if !ok || !role.Enabled {
			continue
		}
		for key := range m.roleGrants {
			if key.subjectID != roleID {
				continue
			}
			perm, ok := m.permsByID[key.permissionID]
			if !ok || !perm.Enabled {
				continue
			}
			if _, dup := seen[perm.ID]; dup {
				continue
			}
			seen[perm.ID] = struct{}{}
			out = append(out, *perm)
		}
	}
	return out, nil
}

func (m *mockRepository) GrantPermissionToRole(ctx context.Context, roleID, permissionID int64, tenantID *int64) (bool, error) {
	if m.grantRoleError != nil {
		return false, m.grantRoleError
	}
	key := grantKey{roleID, permissionID, tenantOrZero(tenantID)}
	if _, ok := m.roleGrants[key]; ok {
		return false, nil
	}
	m.roleGrants[key] = struct{}{}
	return true, nil
}

func (m *mockRepository) RevokePermissionFromRole(ctx context.Context, roleID, permissionID int64, tenantID *int64) (bool, error) {
	key := grantKey{roleID, permissionID, tenantOrZero(tenantID)}
	if _, ok := m.roleGrants[key]; !ok {
		return false, nil
	}
	delete(m.roleGrants, key)
	return true, nil
}

func (m *mockRepository) GrantPermissionToUser(ctx context.Context, userID, permissionID int64, tenantID *int64) (bool, error) {
	key := grantKey{userID, permissionID, tenantOrZero(tenantID)}
	if _, ok := m.userGrants[key]; ok {
		return false, nil
	}
	m.userGrants[key] = struct{}{}
	return true, nil
}

func (m *mockRepository) RevokePermissionFromUser(ctx context.Context, userID, permissionID int64, tenantID *int64) (bool, error) {
	key := grantKey{userID, permissionID, tenantOrZero(tenantID)}
	if _, ok := m.userGrants[key]; !ok {
		return false, nil
	}
	delete(m.userGrants, key)
	return true, nil
}

// GetUserDirectPermissions filters by tenant only when one is given; a nil
// tenant returns grants from every scope, matching the SQL implementation.
func (m *mockRepository) GetUserDirectPermissions(ctx context.Context, userID int64, tenantID *int64) ([]Permission, error) {
	var out []Permission
	for key := range m.userGrants {
		if key.subjectID != userID {
			continue
		}
		if tenantID != nil && key.tenantID != *tenantID {
			continue
		}
		if perm, ok := m.permsByID[key.permissionID]; ok && perm.Enabled {
			out = append(out, *perm)
		}
	}
	return out, nil
}

func (m *mockRepository) GetAllUserPermissions(ctx context.Context, userID int64, tenantID *int64) ([]Permission, error) {
	viaRoles, err := m.GetUserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	direct, err := m.GetUserDirectPermissions(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{})
	var out []Permission
	for _, perm := range append(viaRoles, direct...) {
		if _, dup := seen[perm.ID]; dup {
			continue
		}
		seen[perm.ID] = struct{}{}
		out = append(out, perm)
	}
	return out, nil
}

func (m *mockRepository) AddRoleInheritance(ctx context.Context, childID, parentID int64) (bool, error) {
	if m.inheritance[childID] == nil {
		m.inheritance[childID] = make(map[int64]struct{})
	}
	if _, ok := m.inheritance[childID][parentID]; ok {
		return false, nil
	}
	m.inheritance[childID][parentID] = struct{}{}
	return true, nil
}

func (m *mockRepository) RemoveRoleInheritance(ctx context.Context, childID, parentID int64) (bool, error) {
	if _, ok := m.inheritance[childID][parentID]; !ok {
		return false, nil
	}
	delete(m.inheritance[childID], parentID)
	return true, nil
}

func (m *mockRepository) DeleteUserRoles(ctx context.Context, userID int64) (int64, error) {
	count := int64(len(m.userRoles[userID]))
	delete(m.userRoles, userID)
	return count, nil
}

func (m *mockRepository) DetachRole(ctx context.Context, roleID int64) error {
	if m.detachRoleError != nil {
		return m.detachRoleError
	}
	for userID, roleIDs := range m.userRoles {
		delete(roleIDs, roleID)
		if len(roleIDs) == 0 {
			delete(m.userRoles, userID)
		}
	}
	for key := range m.roleGrants {
		if key.subjectID == roleID {
			delete(m.roleGrants, key)
		}
	}
	delete(m.inheritance, roleID)
	for _, parents := range m.inheritance {
		delete(parents, roleID)
	}
	if role, ok := m.rolesByID[roleID]; ok {
		role.Enabled = false
	}
	return nil
}

func (m *mockRepository) DetachPermission(ctx context.Context, permissionID int64) error {
	for key := range m.roleGrants {
		if key.permissionID == permissionID {
			delete(m.roleGrants, key)
		}
	}
	for key := range m.userGrants {
		if key.permissionID == permissionID {
			delete(m.userGrants, key)
		}
	}
	if perm, ok := m.permsByID[permissionID]; ok {
		perm.Enabled = false
	}
	return nil
}

func (m *mockRepository) GrantLinesForPermission(ctx context.Context, permissionID int64) ([]PolicyRule, error) {
	perm, ok := m.permsByID[permissionID]
	if !ok {
		return nil, nil
	}
	var out []PolicyRule
	for key := range m.roleGrants {
		if key.permissionID != permissionID {
			continue
		}
		if role, ok := m.rolesByID[key.subjectID]; ok {
			out = append(out, PolicyRule{Subject: role.Code, Domain: m.tenantCodes[key.tenantID], Resource: perm.Resource, Action: perm.Action})
		}
	}
	for key := range m.userGrants {
		if key.permissionID != permissionID {
			continue
		}
		out = append(out, PolicyRule{Subject: SubjectID(key.subjectID), Domain: m.tenantCodes[key.tenantID], Resource: perm.Resource, Action: perm.Action})
	}
	return out, nil
}

func (m *mockRepository) GetTenantIDByCode(ctx context.Context, code string) (int64, error) {
	id, ok := m.tenants[code]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (m *mockRepository) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	if m.snapshotError != nil {
		return nil, m.snapshotError
	}
	snap := &Snapshot{}
	for key := range m.roleGrants {
		role, ok := m.rolesByID[key.subjectID]
		if !ok || !role.Enabled {
			continue
		}
		perm, ok := m.permsByID[key.permissionID]
		if !ok || !perm.Enabled {
			continue
		}
		snap.RoleGrants = append(snap.RoleGrants, RoleGrant{
			RoleCode: role.Code,
			Resource: perm.Resource,
			Action:   perm.Action,
			Domain:   m.tenantCodes[key.tenantID],
		})
	}
	for key := range m.userGrants {
		perm, ok := m.permsByID[key.permissionID]
		if !ok || !perm.Enabled {
			continue
		}
		snap.DirectGrants = append(snap.DirectGrants, DirectGrant{
			UserID:   key.subjectID,
			Resource: perm.Resource,
			Action:   perm.Action,
			Domain:   m.tenantCodes[key.tenantID],
		})
	}
	for userID, roleIDs := range m.userRoles {
		for roleID := range roleIDs {
			if role, ok := m.rolesByID[roleID]; ok && role.Enabled {
				snap.Assignments = append(snap.Assignments, RoleAssignment{UserID: userID, RoleCode: role.Code})
			}
		}
	}
	for childID, parents := range m.inheritance {
		child, ok := m.rolesByID[childID]
		if !ok || !child.Enabled {
			continue
		}
		for parentID := range parents {
			if parent, ok := m.rolesByID[parentID]; ok && parent.Enabled {
				snap.Inheritance = append(snap.Inheritance, InheritanceEdge{ChildCode: child.Code, ParentCode: parent.Code})
			}
		}
	}
	return snap, nil
}

var _ Repository = (*mockRepository)(nil)

func newTestService(repo Repository) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ============================================================================
// TESTS
// ============================================================================

func TestServiceAssignRoleToUser(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedPermission("articles:write", "articles", "write")
	svc := newTestService(repo)
	ctx := context.Background()

	added, err := svc.GrantPermissionToRole(ctx, "editor", "articles:write", "")
	require.NoError(t, err)
	require.True(t, added)

	added, err = svc.AssignRoleToUser(ctx, 42, "editor")
	require.NoError(t, err)
	require.True(t, added)

	assert.True(t, svc.Enforce("42", "", "articles", "write"))

	// Repeating the assignment is a no-op, not an error.
	added, err = svc.AssignRoleToUser(ctx, 42, "editor")
	require.NoError(t, err)
	assert.False(t, added)
}

func TestServiceAssignRoleUnknownRole(t *testing.T) {
	svc := newTestService(newMockRepository())

	added, err := svc.AssignRoleToUser(context.Background(), 1, "ghost")
	require.NoError(t, err, "assigning an absent role reports false, not an error")
	assert.False(t, added)
}

func TestServiceAssignDisabledRoleSkipsCache(t *testing.T) {
	repo := newMockRepository()
	role := repo.seedRole("dormant")
	role.Enabled = false
	repo.seedPermission("files:read", "files", "read")
	svc := newTestService(repo)
	ctx := context.Background()

	added, err := svc.AssignRoleToUser(ctx, 5, "dormant")
	require.NoError(t, err)
	require.True(t, added, "the store row is written even for a disabled role")

	assert.Empty(t, svc.GetRolesForSubject("5", ""), "disabled roles must not reach the live set")
}

func TestServiceRemoveRoleFromUser(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedPermission("articles:write", "articles", "write")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "editor", "articles:write", "")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 42, "editor")
	require.NoError(t, err)
	require.True(t, svc.Enforce("42", "", "articles", "write"))

	removed, err := svc.RemoveRoleFromUser(ctx, 42, "editor")
	require.NoError(t, err)
	require.True(t, removed)
	assert.False(t, svc.Enforce("42", "", "articles", "write"))

	removed, err = svc.RemoveRoleFromUser(ctx, 42, "editor")
	require.NoError(t, err)
	assert.False(t, removed, "removing an absent assignment reports false")
}

func TestServiceStoreFailureLeavesCacheUntouched(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedPermission("articles:write", "articles", "write")
	svc := newTestService(repo)
	ctx := context.Background()

	repo.grantRoleError = fmt.Errorf("deadlock detected")
	_, err := svc.GrantPermissionToRole(ctx, "editor", "articles:write", "")
	require.Error(t, err)

	repo.grantRoleError = nil
	_, err = svc.AssignRoleToUser(ctx, 42, "editor")
	require.NoError(t, err)
	assert.False(t, svc.Enforce("42", "", "articles", "write"), "a failed grant must not leak into the live set")
}

func TestServiceTenantScopedGrant(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("billing")
	repo.seedPermission("invoices:write", "invoices", "write")
	repo.seedTenant("acme")
	repo.seedTenant("globex")
	svc := newTestService(repo)
	ctx := context.Background()

	added, err := svc.GrantPermissionToRole(ctx, "billing", "invoices:write", "acme")
	require.NoError(t, err)
	require.True(t, added)
	_, err = svc.AssignRoleToUser(ctx, 9, "billing")
	require.NoError(t, err)

	assert.True(t, svc.Enforce("9", "acme", "invoices", "write"))
	assert.False(t, svc.Enforce("9", "globex", "invoices", "write"))
	assert.False(t, svc.Enforce("9", "", "invoices", "write"))

	// Same pair, different scope: a distinct grant.
	added, err = svc.GrantPermissionToRole(ctx, "billing", "invoices:write", "globex")
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, svc.Enforce("9", "globex", "invoices", "write"))

	// Revoking one scope leaves the other intact.
	removed, err := svc.RevokePermissionFromRole(ctx, "billing", "invoices:write", "acme")
	require.NoError(t, err)
	require.True(t, removed)
	assert.False(t, svc.Enforce("9", "acme", "invoices", "write"))
	assert.True(t, svc.Enforce("9", "globex", "invoices", "write"))
}

func TestServiceGrantUnknownTenant(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("billing")
	repo.seedPermission("invoices:write", "invoices", "write")
	svc := newTestService(repo)

	added, err := svc.GrantPermissionToRole(context.Background(), "billing", "invoices:write", "nowhere")
	require.NoError(t, err)
	assert.False(t, added)
}

func TestServiceDirectGrantBypassesRoles(t *testing.T) {
	repo := newMockRepository()
	repo.seedPermission("exports:run", "exports", "run")
	svc := newTestService(repo)
	ctx := context.Background()

	added, err := svc.GrantPermissionToUser(ctx, 7, "exports:run", "")
	require.NoError(t, err)
	require.True(t, added)

	assert.True(t, svc.Enforce("7", "", "exports", "run"))
	assert.Empty(t, svc.GetRolesForSubject("7", ""), "a direct grant involves no role")

	removed, err := svc.RevokePermissionFromUser(ctx, 7, "exports:run", "")
	require.NoError(t, err)
	require.True(t, removed)
	assert.False(t, svc.Enforce("7", "", "exports", "run"))
}

func TestServiceRoleInheritance(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("admin")
	repo.seedRole("manager")
	repo.seedPermission("settings:manage", "settings", "manage")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "admin", "settings:manage", "")
	require.NoError(t, err)
	added, err := svc.AddRoleInheritance(ctx, "manager", "admin")
	require.NoError(t, err)
	require.True(t, added)
	_, err = svc.AssignRoleToUser(ctx, 3, "manager")
	require.NoError(t, err)

	assert.True(t, svc.Enforce("3", "", "settings", "manage"))
	assert.Equal(t, []string{"admin", "manager"}, svc.GetRolesForSubject("3", ""))

	removed, err := svc.RemoveRoleInheritance(ctx, "manager", "admin")
	require.NoError(t, err)
	require.True(t, removed)
	assert.False(t, svc.Enforce("3", "", "settings", "manage"))
}

func TestServiceBatchEnforce(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("viewer")
	repo.seedPermission("docs:read", "docs", "read")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "viewer", "docs:read", "")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 1, "viewer")
	require.NoError(t, err)

	results := svc.BatchEnforce([]AccessRequest{
		{Subject: "1", Resource: "docs", Action: "read"},
		{Subject: "1", Resource: "docs", Action: "write"},
		{Subject: "2", Resource: "docs", Action: "read"},
	})
	assert.Equal(t, []bool{true, false, false}, results)

	assert.Empty(t, svc.BatchEnforce(nil))
}

func TestServiceReloadPolicyRebuildsFromStore(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedPermission("articles:write", "articles", "write")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "editor", "articles:write", "")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 42, "editor")
	require.NoError(t, err)

	// Disable out of band: the live set drifts until the next reload.
	_, err = repo.SetRoleStatus(ctx, "editor", false)
	require.NoError(t, err)
	assert.True(t, svc.Enforce("42", "", "articles", "write"), "store-only change is invisible before reload")

	require.NoError(t, svc.ReloadPolicy(ctx))
	assert.False(t, svc.Enforce("42", "", "articles", "write"), "reload converges the set on the store")
}

func TestServiceReloadFailureKeepsPreviousSet(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedPermission("articles:write", "articles", "write")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "editor", "articles:write", "")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 42, "editor")
	require.NoError(t, err)

	repo.snapshotError = errors.New("connection reset")
	err = svc.ReloadPolicy(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPolicyLoad)
	assert.True(t, svc.Enforce("42", "", "articles", "write"), "the previous set stays in effect")
}

func TestServiceDeleteRolesForUser(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedRole("viewer")
	repo.seedPermission("docs:read", "docs", "read")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "viewer", "docs:read", "")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 8, "editor")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 8, "viewer")
	require.NoError(t, err)

	deleted, err := svc.DeleteRolesForUser(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Empty(t, svc.GetRolesForSubject("8", ""))
	assert.False(t, svc.Enforce("8", "", "docs", "read"))
}

func TestServiceDeleteRoleCascades(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedRole("intern")
	repo.seedPermission("articles:write", "articles", "write")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "editor", "articles:write", "")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 42, "editor")
	require.NoError(t, err)
	_, err = svc.AddRoleInheritance(ctx, "intern", "editor")
	require.NoError(t, err)

	ok, err := svc.DeleteRole(ctx, "editor")
	require.NoError(t, err)
	require.True(t, ok)

	assert.False(t, svc.Enforce("42", "", "articles", "write"))
	assert.Empty(t, svc.GetRolesForSubject("42", ""))
	assert.Empty(t, svc.GetRolesForSubject("intern", ""))

	// Deleting again: the role row survives disabled, junctions are gone.
	ok, err = svc.DeleteRole(ctx, "editor")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestServiceDeleteRoleStoreFailure(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedPermission("articles:write", "articles", "write")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "editor", "articles:write", "")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 42, "editor")
	require.NoError(t, err)

	repo.detachRoleError = errors.New("deadlock detected")
	_, err = svc.DeleteRole(ctx, "editor")
	require.Error(t, err)
	assert.True(t, svc.Enforce("42", "", "articles", "write"), "cache cascade must not run when the store failed")
}

func TestServiceDeletePermissionCascades(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedPermission("articles:write", "articles", "write")
	repo.seedPermission("articles:read", "articles", "read")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "editor", "articles:write", "")
	require.NoError(t, err)
	_, err = svc.GrantPermissionToRole(ctx, "editor", "articles:read", "")
	require.NoError(t, err)
	_, err = svc.GrantPermissionToUser(ctx, 7, "articles:write", "")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 42, "editor")
	require.NoError(t, err)

	ok, err := svc.DeletePermission(ctx, "articles:write")
	require.NoError(t, err)
	require.True(t, ok)

	assert.False(t, svc.Enforce("42", "", "articles", "write"))
	assert.False(t, svc.Enforce("7", "", "articles", "write"), "direct grants on the permission fall too")
	assert.True(t, svc.Enforce("42", "", "articles", "read"), "other permissions are untouched")
}

// Two permissions may protect the same resource/action pair under different
// codes; deleting one must not strip the other's live lines.
func TestServiceDeletePermissionSharedResourceAction(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedRole("reviewer")
	repo.seedPermission("articles:write", "articles", "write")
	repo.seedPermission("articles:write-legacy", "articles", "write")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "editor", "articles:write", "")
	require.NoError(t, err)
	_, err = svc.GrantPermissionToRole(ctx, "reviewer", "articles:write-legacy", "")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 1, "editor")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 2, "reviewer")
	require.NoError(t, err)

	ok, err := svc.DeletePermission(ctx, "articles:write")
	require.NoError(t, err)
	require.True(t, ok)

	assert.False(t, svc.Enforce("1", "", "articles", "write"))
	assert.True(t, svc.Enforce("2", "", "articles", "write"), "the surviving permission keeps its line")
}

// A reload swaps the whole set at once: a concurrent reader observes the
// pre-reload or post-reload state, never a mix of the two.
func TestServiceConcurrentReloadIsAtomic(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedPermission("docs:read", "docs", "read")
	repo.seedPermission("docs:write", "docs", "write")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "editor", "docs:read", "")
	require.NoError(t, err)
	_, err = svc.GrantPermissionToRole(ctx, "editor", "docs:write", "")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 42, "editor")
	require.NoError(t, err)

	// Toggling the role flips both grants together in the snapshot, so a
	// batch must report them as a pair in every interleaving.
	var torn atomic.Int64
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				results := svc.BatchEnforce([]AccessRequest{
					{Subject: "42", Resource: "docs", Action: "read"},
					{Subject: "42", Resource: "docs", Action: "write"},
				})
				if results[0] != results[1] {
					torn.Add(1)
				}
			}
		}()
	}

	// The store is touched from this goroutine only; the readers above never
	// leave the in-memory set.
	for i := 0; i < 200; i++ {
		_, err := repo.SetRoleStatus(ctx, "editor", i%2 == 0)
		require.NoError(t, err)
		require.NoError(t, svc.ReloadPolicy(ctx))
	}
	close(done)
	wg.Wait()

	assert.Zero(t, torn.Load(), "a reader saw one grant without the other")
}

// Administrative mutations and reads interleave freely on the shared set; the
// race detector guards the lock discipline around it.
func TestServiceConcurrentReadsAndMutations(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedPermission("docs:read", "docs", "read")
	repo.seedPermission("docs:write", "docs", "write")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "editor", "docs:read", "")
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(subject string) {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				svc.Enforce(subject, "", "docs", "read")
				svc.GetRolesForSubject(subject, "")
				svc.GetPermissionsForResource("docs")
			}
		}(SubjectID(int64(40 + i)))
	}

	// Store access stays single-threaded; only the live set is contended.
	for i := 0; i < 200; i++ {
		_, err := svc.AssignRoleToUser(ctx, 42, "editor")
		require.NoError(t, err)
		_, err = svc.GrantPermissionToRole(ctx, "editor", "docs:write", "")
		require.NoError(t, err)
		_, err = svc.RevokePermissionFromRole(ctx, "editor", "docs:write", "")
		require.NoError(t, err)
		_, err = svc.RemoveRoleFromUser(ctx, 42, "editor")
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()

	assert.False(t, svc.Enforce("42", "", "docs", "read"), "the final removal left no assignment behind")
}

func TestServiceIntrospection(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("editor")
	repo.seedPermission("articles:write", "articles", "write")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "editor", "articles:write", "")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 42, "editor")
	require.NoError(t, err)

	assert.Equal(t, []string{"42"}, svc.GetUsersForRole("editor", ""))

	rules := svc.GetPermissionsForSubject("editor")
	require.Len(t, rules, 1)
	assert.Equal(t, PolicyRule{Subject: "editor", Resource: "articles", Action: "write"}, rules[0])

	byResource := svc.GetPermissionsForResource("articles")
	require.Len(t, byResource, 1)
	assert.Equal(t, "editor", byResource[0].Subject)
}

// Scenario: a user holding a role in one tenant gets nothing in another, while
// a direct grant stays pinned to its own scope.
func TestServiceTenantScenarios(t *testing.T) {
	repo := newMockRepository()
	repo.seedRole("admin")
	repo.seedRole("auditor")
	repo.seedPermission("ledger:close", "ledger", "close")
	repo.seedPermission("ledger:read", "ledger", "read")
	repo.seedTenant("acme")
	repo.seedTenant("globex")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GrantPermissionToRole(ctx, "admin", "ledger:close", "acme")
	require.NoError(t, err)
	_, err = svc.AddRoleInheritance(ctx, "admin", "auditor")
	require.NoError(t, err)
	_, err = svc.GrantPermissionToRole(ctx, "auditor", "ledger:read", "acme")
	require.NoError(t, err)
	_, err = svc.AssignRoleToUser(ctx, 1, "admin")
	require.NoError(t, err)
	_, err = svc.GrantPermissionToUser(ctx, 2, "ledger:read", "globex")
	require.NoError(t, err)

	// Role-holder in acme: own grant plus the inherited one.
	assert.True(t, svc.Enforce("1", "acme", "ledger", "close"))
	assert.True(t, svc.Enforce("1", "acme", "ledger", "read"))
	// Nothing carries over to globex.
	assert.False(t, svc.Enforce("1", "globex", "ledger", "close"))
	assert.False(t, svc.Enforce("1", "globex", "ledger", "read"))
	// Direct grantee sees only their own scope.
	assert.True(t, svc.Enforce("2", "globex", "ledger", "read"))
	assert.False(t, svc.Enforce("2", "acme", "ledger", "read"))
}
