package authz

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Service is the authorization facade. Enforcement and introspection are
// answered entirely from the in-memory policy set; mutations dual-write, the
// policy store first, the live set only after persistence succeeded.
//
// The policy set is shared mutable state: s.mu serializes administrative
// mutations against concurrent readers, and ReloadPolicy builds a fresh set
// off to the side and swaps the pointer under the write lock, so readers see
// either the fully-old or fully-new set, never a partial one.
type Service struct {
	repo    Repository
	adapter *Adapter
	logger  *slog.Logger

	mu  sync.RWMutex
	set *PolicySet
}

// NewService constructs a Service with an empty policy set. Call ReloadPolicy
// to hydrate it from the store.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		adapter: NewAdapter(repo),
		logger:  logger,
		set:     NewPolicySet(),
	}
}

// Enforce decides one access tuple. A false result is an ordinary answer,
// never an error. No I/O: the decision comes from the in-memory set.
func (s *Service) Enforce(subject, domain, resource, action string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Enforce(subject, domain, resource, action)
}

// BatchEnforce evaluates each tuple independently against one consistent view
// of the policy set. Results are positional.
func (s *Service) BatchEnforce(requests []AccessRequest) []bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]bool, len(requests))
	for i, req := range requests {
		results[i] = s.set.Enforce(req.Subject, req.Domain, req.Resource, req.Action)
	}
	return results
}

// ReloadPolicy discards the live policy set and rebuilds it from the store.
// On load failure the previous set stays in effect and the error is surfaced.
func (s *Service) ReloadPolicy(ctx context.Context) error {
	set, err := s.adapter.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
	rules, edges := set.Counts()
	s.logger.Info("policy reloaded", slog.Int("rules", rules), slog.Int("edges", edges))
	return nil
}

// AssignRoleToUser links a user to a role, store first, then mirrors the
// grouping edge. Returns false without error when the role is absent or the
// pair already exists.
func (s *Service) AssignRoleToUser(ctx context.Context, userID int64, roleCode string) (bool, error) {
	role, err := s.repo.GetRoleByCode(ctx, roleCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	added, err := s.repo.AssignRoleToUser(ctx, userID, role.ID)
	if err != nil || !added {
		return false, err
	}
	if role.Enabled {
		s.mu.Lock()
		s.set.AddGroupingEdge(GroupingEdge{Member: SubjectID(userID), Role: roleCode})
		s.mu.Unlock()
	}
	return true, nil
}

// RemoveRoleFromUser unlinks a user from a role. Returns true iff a stored
// assignment was deleted.
func (s *Service) RemoveRoleFromUser(ctx context.Context, userID int64, roleCode string) (bool, error) {
	role, err := s.repo.GetRoleByCode(ctx, roleCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	removed, err := s.repo.RemoveRoleFromUser(ctx, userID, role.ID)
	if err != nil || !removed {
		return false, err
	}
	s.mu.Lock()
	s.set.RemoveGroupingEdge(GroupingEdge{Member: SubjectID(userID), Role: roleCode})
	s.mu.Unlock()
	return true, nil
}

// GrantPermissionToRole attaches a permission to a role, optionally scoped to
// a tenant. The grant scope is explicit: a scoped grant yields one
// domain-qualified line, a global grant one domain-less line.
func (s *Service) GrantPermissionToRole(ctx context.Context, roleCode, permissionCode, tenantCode string) (bool, error) {
	role, err := s.repo.GetRoleByCode(ctx, roleCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	perm, err := s.repo.GetPermissionByCode(ctx, permissionCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	tenantID, err := s.resolveTenant(ctx, tenantCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	added, err := s.repo.GrantPermissionToRole(ctx, role.ID, perm.ID, tenantID)
	if err != nil || !added {
		return false, err
	}
	if role.Enabled && perm.Enabled {
		s.mu.Lock()
		s.set.AddRule(PolicyRule{Subject: roleCode, Domain: tenantCode, Resource: perm.Resource, Action: perm.Action})
		s.mu.Unlock()
	}
	return true, nil
}

// RevokePermissionFromRole removes a grant in the exact tenant scope.
func (s *Service) RevokePermissionFromRole(ctx context.Context, roleCode, permissionCode, tenantCode string) (bool, error) {
	role, err := s.repo.GetRoleByCode(ctx, roleCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	perm, err := s.repo.GetPermissionByCode(ctx, permissionCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	tenantID, err := s.resolveTenant(ctx, tenantCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	removed, err := s.repo.RevokePermissionFromRole(ctx, role.ID, perm.ID, tenantID)
	if err != nil || !removed {
		return false, err
	}
	s.mu.Lock()
	s.set.RemoveRule(PolicyRule{Subject: roleCode, Domain: tenantCode, Resource: perm.Resource, Action: perm.Action})
	s.mu.Unlock()
	return true, nil
}

// GrantPermissionToUser inserts a direct grant (ACL). The resulting line
// bypasses roles entirely.
func (s *Service) GrantPermissionToUser(ctx context.Context, userID int64, permissionCode, tenantCode string) (bool, error) {
	perm, err := s.repo.GetPermissionByCode(ctx, permissionCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	tenantID, err := s.resolveTenant(ctx, tenantCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	added, err := s.repo.GrantPermissionToUser(ctx, userID, perm.ID, tenantID)
	if err != nil || !added {
		return false, err
	}
	if perm.Enabled {
		s.mu.Lock()
		s.set.AddRule(PolicyRule{Subject: SubjectID(userID), Domain: tenantCode, Resource: perm.Resource, Action: perm.Action})
		s.mu.Unlock()
	}
	return true, nil
}

// RevokePermissionFromUser removes a direct grant in the exact tenant scope.
func (s *Service) RevokePermissionFromUser(ctx context.Context, userID int64, permissionCode, tenantCode string) (bool, error) {
	perm, err := s.repo.GetPermissionByCode(ctx, permissionCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	tenantID, err := s.resolveTenant(ctx, tenantCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	removed, err := s.repo.RevokePermissionFromUser(ctx, userID, perm.ID, tenantID)
	if err != nil || !removed {
		return false, err
	}
	s.mu.Lock()
	s.set.RemoveRule(PolicyRule{Subject: SubjectID(userID), Domain: tenantCode, Resource: perm.Resource, Action: perm.Action})
	s.mu.Unlock()
	return true, nil
}

// AddRoleInheritance declares that child inherits every grant of parent.
func (s *Service) AddRoleInheritance(ctx context.Context, childCode, parentCode string) (bool, error) {
	child, err := s.repo.GetRoleByCode(ctx, childCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	parent, err := s.repo.GetRoleByCode(ctx, parentCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	added, err := s.repo.AddRoleInheritance(ctx, child.ID, parent.ID)
	if err != nil || !added {
		return false, err
	}
	s.mu.Lock()
	s.set.AddGroupingEdge(GroupingEdge{Member: childCode, Role: parentCode})
	s.mu.Unlock()
	return true, nil
}

// RemoveRoleInheritance deletes an inheritance edge.
func (s *Service) RemoveRoleInheritance(ctx context.Context, childCode, parentCode string) (bool, error) {
	child, err := s.repo.GetRoleByCode(ctx, childCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	parent, err := s.repo.GetRoleByCode(ctx, parentCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	removed, err := s.repo.RemoveRoleInheritance(ctx, child.ID, parent.ID)
	if err != nil || !removed {
		return false, err
	}
	s.mu.Lock()
	s.set.RemoveGroupingEdge(GroupingEdge{Member: childCode, Role: parentCode})
	s.mu.Unlock()
	return true, nil
}

// DeleteRolesForUser removes every role assignment of the user, store first,
// then every grouping edge of the subject in one critical section.
func (s *Service) DeleteRolesForUser(ctx context.Context, userID int64) (int64, error) {
	deleted, err := s.repo.DeleteUserRoles(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.set.RemoveEdgesForMember(SubjectID(userID))
	s.mu.Unlock()
	return deleted, nil
}

// DeleteRole disables the role, hard-deletes its junction rows, and removes
// every line and edge referencing it from the live set atomically.
func (s *Service) DeleteRole(ctx context.Context, roleCode string) (bool, error) {
	role, err := s.repo.GetRoleByCode(ctx, roleCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	if err := s.repo.DetachRole(ctx, role.ID); err != nil {
		return false, err
	}
	s.mu.Lock()
	removed := s.set.RemoveSubject(roleCode)
	s.mu.Unlock()
	s.logger.Info("role deleted", slog.String("role", roleCode), slog.Int("cache_entries", removed))
	return true, nil
}

// DeletePermission disables the permission, hard-deletes its grant rows, and
// removes exactly the lines those rows backed from the live set, in one
// critical section. Lines owned by another permission that happens to protect
// the same resource/action pair stay.
func (s *Service) DeletePermission(ctx context.Context, permissionCode string) (bool, error) {
	perm, err := s.repo.GetPermissionByCode(ctx, permissionCode)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	lines, err := s.repo.GrantLinesForPermission(ctx, perm.ID)
	if err != nil {
		return false, err
	}
	if err := s.repo.DetachPermission(ctx, perm.ID); err != nil {
		return false, err
	}
	s.mu.Lock()
	for _, rule := range lines {
		s.set.RemoveRule(rule)
	}
	s.mu.Unlock()
	s.logger.Info("permission deleted", slog.String("permission", permissionCode), slog.Int("cache_entries", len(lines)))
	return true, nil
}

// GetRolesForSubject lists the roles transitively reachable from the subject
// in the live set.
func (s *Service) GetRolesForSubject(subject, domain string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.RolesForSubject(subject, domain)
}

// GetUsersForRole lists the direct members of a role in the live set.
func (s *Service) GetUsersForRole(role, domain string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.MembersOfRole(role, domain)
}

// GetPermissionsForSubject lists the policy lines attached directly to the
// subject in the live set.
func (s *Service) GetPermissionsForSubject(subject string) []PolicyRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.RulesForSubject(subject)
}

// GetPermissionsForResource lists the policy lines protecting a resource.
func (s *Service) GetPermissionsForResource(resource string) []PolicyRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.RulesForResource(resource)
}

func (s *Service) resolveTenant(ctx context.Context, tenantCode string) (*int64, error) {
	if tenantCode == "" {
		return nil, nil
	}
	id, err := s.repo.GetTenantIDByCode(ctx, tenantCode)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ignoreNotFound maps ErrNotFound to nil so targeted mutations on absent
// entities report false instead of failing.
func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
