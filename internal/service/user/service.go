package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"tienda-orders/internal/domain"
	userrepo "tienda-orders/internal/repository/user"
)

type Service struct {
	repo userrepo.Repository
}

func New(repo userrepo.Repository) *Service {
	return &Service{repo: repo}
}

type CreateInput struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Active *bool  `json:"active,omitempty"`
}

// Create registers a user. Users are active unless the input says otherwise.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", domain.ErrInvalidInput)
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email %q", domain.ErrInvalidInput, in.Email)
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return s.repo.Create(ctx, domain.User{Name: name, Email: email, Active: active})
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.User, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", domain.ErrInvalidInput)
	}
	return s.repo.GetByID(ctx, id)
}
