package memstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/chimeo/internal/app/gateway"
	adminstore "github.com/dalemusser/chimeo/internal/app/store/admins"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Admins is the in-memory review-console directory.
type Admins struct {
	mu      sync.RWMutex
	byEmail map[string]models.Admin
}

func (s *Admins) GetByEmail(_ context.Context, email string) (models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return models.Admin{}, gateway.ErrNotFound
	}
	return a, nil
}

func (s *Admins) Create(_ context.Context, email, fullName, password string) (models.Admin, error) {
	now := time.Now().UTC()
	a := models.Admin{
		ID:        primitive.NewObjectID(),
		Email:     strings.TrimSpace(email),
		EmailCI:   models.NormalizeEmail(email),
		FullName:  strings.TrimSpace(fullName),
		Status:    models.AdminActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if password != "" {
		hash, err := adminstore.HashPassword(password)
		if err != nil {
			return models.Admin{}, err
		}
		a.PasswordHash = hash
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byEmail[a.EmailCI]; dup {
		return models.Admin{}, adminstore.ErrDuplicateEmail
	}
	s.byEmail[a.EmailCI] = a
	return a, nil
}

func (s *Admins) Authenticate(ctx context.Context, email, password string) (models.Admin, error) {
	a, err := s.GetByEmail(ctx, email)
	if errors.Is(err, gateway.ErrNotFound) {
		return models.Admin{}, adminstore.ErrBadPassword
	}
	if err := adminstore.Verify(a, password); err != nil {
		return models.Admin{}, err
	}
	return a, nil
}

func (s *Admins) TouchLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, a := range s.byEmail {
		if a.ID == id {
			a.LastLoginAt = &at
			s.byEmail[k] = a
			return nil
		}
	}
	return gateway.ErrNotFound
}

// SetStatus changes an admin's status.
func (s *Admins) SetStatus(email, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizeEmail(email)
	if a, ok := s.byEmail[key]; ok {
		a.Status = status
		s.byEmail[key] = a
	}
}

// EnsureBootstrap mirrors adminstore.Store.EnsureBootstrap.
func (s *Admins) EnsureBootstrap(ctx context.Context, email, password string) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return false, nil
	}
	if _, err := s.GetByEmail(ctx, email); err == nil {
		return false, nil
	}
	if _, err := s.Create(ctx, email, "Administrator", password); err != nil {
		if errors.Is(err, adminstore.ErrDuplicateEmail) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
