package tenants

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that the tenant does not exist.
	ErrNotFound = errors.New("tenants: not found")
	// ErrDuplicate indicates a tenant code conflict.
	ErrDuplicate = errors.New("tenants: duplicate")
)

// Tenant is one isolation domain. Its code is the domain string used in
// policy lines.
type Tenant struct {
	ID        int64
	Code      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
