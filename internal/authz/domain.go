package authz

import (
	"errors"
	"time"
)

// Sentinel errors shared by the repository and the facade.
var (
	// ErrNotFound indicates that the referenced role or permission does not exist.
	ErrNotFound = errors.New("authz: not found")
	// ErrDuplicate indicates a unique-key conflict on create.
	ErrDuplicate = errors.New("authz: duplicate")
	// ErrPolicyLoad indicates that a full snapshot read could not be completed.
	// The previously loaded policy set stays in effect.
	ErrPolicyLoad = errors.New("authz: policy load failed")
)

// Role groups permissions under a stable code. Roles are soft-disabled, never
// hard-deleted, so historical grants keep valid references.
type Role struct {
	ID          int64
	Code        string
	Name        string
	Description string
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is an atomic capability identified by code, conventionally
// "resource:action". Resource and action are literal codes, not path patterns.
type Permission struct {
	ID          int64
	Code        string
	Resource    string
	Action      string
	Name        string
	Description string
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AccessRequest is one enforce tuple. An empty Domain means global scope.
type AccessRequest struct {
	Subject  string `json:"subject"`
	Domain   string `json:"domain,omitempty"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Principal is the capability interface every authenticated principal variant
// implements. The interceptor reads subject and tenant through it instead of
// probing concrete principal shapes.
type Principal interface {
	SubjectID() string
	TenantID() string
}
