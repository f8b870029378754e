package user

import (
	"context"
	"errors"
	"testing"

	"tienda-orders/internal/domain"
)

type stubRepo struct {
	created []domain.User
}

func (s *stubRepo) Create(_ context.Context, u domain.User) (*domain.User, error) {
	for _, existing := range s.created {
		if existing.Email == u.Email {
			return nil, domain.ErrAlreadyExists
		}
	}
	u.ID = int64(len(s.created) + 1)
	s.created = append(s.created, u)
	return &u, nil
}

func (s *stubRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	for _, u := range s.created {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func TestCreateNormalizesAndDefaultsActive(t *testing.T) {
	repo := &stubRepo{}
	svc := New(repo)

	u, err := svc.Create(context.Background(), CreateInput{Name: " Ana ", Email: " Ana@Example.com "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Name != "Ana" || u.Email != "ana@example.com" || !u.Active {
		t.Fatalf("unexpected user %+v", u)
	}

	inactive := false
	u, err = svc.Create(context.Background(), CreateInput{Name: "Bruno", Email: "bruno@example.com", Active: &inactive})
	if err != nil || u.Active {
		t.Fatalf("expected inactive user, got %+v %v", u, err)
	}

	if _, err := svc.Create(context.Background(), CreateInput{Name: "Ana", Email: "ana@example.com"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := New(&stubRepo{})
	for _, in := range []CreateInput{{Email: "a@b.cl"}, {Name: "Ana", Email: "not-an-email"}} {
		if _, err := svc.Create(context.Background(), in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %+v, got %v", in, err)
		}
	}
	if _, err := svc.Get(context.Background(), -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
