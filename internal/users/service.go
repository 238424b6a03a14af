package users

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, email, name, passwordHash string) (User, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// CreateUser hashes the password and stores the account.
func (s *Service) CreateUser(ctx context.Context, email, name, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, strings.ToLower(strings.TrimSpace(email)), strings.TrimSpace(name), string(hash))
}
