// internal/domain/models/admin.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Admin statuses.
const (
	AdminActive   = "active"
	AdminDisabled = "disabled"
)

// Admin is an operator allowed to review organization requests.
// PasswordHash is empty for admins who only sign in with Google.
type Admin struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	Email        string             `bson:"email" json:"email"`
	EmailCI      string             `bson:"emailCI" json:"-"`
	FullName     string             `bson:"fullName" json:"fullName"`
	PasswordHash string             `bson:"passwordHash,omitempty" json:"-"`
	Status       string             `bson:"status" json:"status"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
	LastLoginAt  *time.Time         `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
}
