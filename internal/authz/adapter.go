package authz

import (
	"context"
	"fmt"
	"strconv"
)

// Snapshot is one complete read of the active policy rows: every grant held by
// an enabled role and permission, every direct grant, every role assignment,
// and the role hierarchy. Rows referencing disabled roles or permissions are
// excluded at read time.
type Snapshot struct {
	RoleGrants   []RoleGrant
	DirectGrants []DirectGrant
	Assignments  []RoleAssignment
	Inheritance  []InheritanceEdge
}

// RoleGrant is a role->permission grant. Domain is the explicit tenant scope
// of the grant; empty means global.
type RoleGrant struct {
	RoleCode string
	Resource string
	Action   string
	Domain   string
}

// DirectGrant is a user->permission grant (ACL), bypassing roles.
type DirectGrant struct {
	UserID   int64
	Resource string
	Action   string
	Domain   string
}

// RoleAssignment is a user->role membership.
type RoleAssignment struct {
	UserID   int64
	RoleCode string
}

// InheritanceEdge declares that the child role inherits every grant of the
// parent role.
type InheritanceEdge struct {
	ChildCode  string
	ParentCode string
}

// SnapshotSource reads the current persisted policy state in one piece.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// Adapter translates the policy store into an immutable policy set. Load is
// read-only: a failure mid-read yields an error and no partially built set.
type Adapter struct {
	source SnapshotSource
}

// NewAdapter constructs an Adapter over the given source.
func NewAdapter(source SnapshotSource) *Adapter {
	return &Adapter{source: source}
}

// Load reads a full snapshot and builds a fresh policy set. The caller swaps
// the result in only after Load returns without error.
func (a *Adapter) Load(ctx context.Context) (*PolicySet, error) {
	snap, err := a.source.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyLoad, err)
	}
	return BuildPolicySet(snap), nil
}

// BuildPolicySet is a pure function from a snapshot to a policy set.
func BuildPolicySet(snap *Snapshot) *PolicySet {
	set := NewPolicySet()
	if snap == nil {
		return set
	}
	for _, grant := range snap.RoleGrants {
		set.AddRule(PolicyRule{
			Subject:  grant.RoleCode,
			Domain:   grant.Domain,
			Resource: grant.Resource,
			Action:   grant.Action,
		})
	}
	for _, grant := range snap.DirectGrants {
		set.AddRule(PolicyRule{
			Subject:  SubjectID(grant.UserID),
			Domain:   grant.Domain,
			Resource: grant.Resource,
			Action:   grant.Action,
		})
	}
	for _, assignment := range snap.Assignments {
		set.AddGroupingEdge(GroupingEdge{
			Member: SubjectID(assignment.UserID),
			Role:   assignment.RoleCode,
		})
	}
	for _, edge := range snap.Inheritance {
		set.AddGroupingEdge(GroupingEdge{
			Member: edge.ChildCode,
			Role:   edge.ParentCode,
		})
	}
	return set
}

// SubjectID renders a stored user id as the subject string used in policy
// lines. Role codes and user ids share one subject namespace.
func SubjectID(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
