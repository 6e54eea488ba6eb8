// internal/domain/models/expiration.go
package models

import "time"

// Expiration task statuses.
const (
	TaskScheduled = "scheduled"
	TaskDone      = "done"
)

// ExpirationTask is the durable record of a pending trial-expiration check.
// There is at most one per account; re-provisioning reschedules it.
type ExpirationTask struct {
	Email       string     `bson:"_id" json:"email"`
	DueAt       time.Time  `bson:"dueAt" json:"dueAt"`
	Status      string     `bson:"status" json:"status"`
	Attempts    int        `bson:"attempts" json:"attempts"`
	LastError   string     `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}
