// internal/app/store/admins/adminstore.go
package adminstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/chimeo/internal/app/gateway"
	"github.com/dalemusser/chimeo/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// Collection holds review-console operators.
const Collection = "admins"

// BcryptCost is the cost used for admin password hashes.
const BcryptCost = 12

var (
	ErrDuplicateEmail = errors.New("an admin with that email already exists")
	ErrBadPassword    = errors.New("invalid email or password")
	ErrDisabled       = errors.New("admin account is disabled")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

func (s *Store) GetByEmail(ctx context.Context, email string) (models.Admin, error) {
	var a models.Admin
	err := s.c.FindOne(ctx, bson.M{"emailCI": models.NormalizeEmail(email)}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return models.Admin{}, gateway.ErrNotFound
	}
	if err != nil {
		return models.Admin{}, err
	}
	return a, nil
}

// Create inserts an active admin. password may be empty for admins that only
// sign in with Google.
func (s *Store) Create(ctx context.Context, email, fullName, password string) (models.Admin, error) {
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
		hash, err := HashPassword(password)
		if err != nil {
			return models.Admin{}, err
		}
		a.PasswordHash = hash
	}
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Admin{}, ErrDuplicateEmail
		}
		return models.Admin{}, err
	}
	return a, nil
}

// Authenticate checks a password login. Unknown email, wrong password and
// passwordless admins all return ErrBadPassword.
func (s *Store) Authenticate(ctx context.Context, email, password string) (models.Admin, error) {
	a, err := s.GetByEmail(ctx, email)
	if errors.Is(err, gateway.ErrNotFound) {
		return models.Admin{}, ErrBadPassword
	}
	if err != nil {
		return models.Admin{}, err
	}
	if err := Verify(a, password); err != nil {
		return models.Admin{}, err
	}
	return a, nil
}

// Verify checks password against a's hash, then a's status.
func Verify(a models.Admin, password string) error {
	if a.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return ErrBadPassword
	}
	if a.Status != models.AdminActive {
		return ErrDisabled
	}
	return nil
}

func (s *Store) TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastLoginAt": at}})
	return err
}

// EnsureBootstrap creates the configured admin if no admin with that email
// exists yet. It never overwrites an existing admin.
func (s *Store) EnsureBootstrap(ctx context.Context, email, password string) (created bool, err error) {
	if strings.TrimSpace(email) == "" {
		return false, nil
	}
	_, err = s.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gateway.ErrNotFound) {
		return false, err
	}
	if _, err := s.Create(ctx, email, "Administrator", password); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// HashPassword hashes a password with BcryptCost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
