// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the audit event collection name.
const Collection = "auditEvents"

// Event categories
const (
	CategoryAuth    = "auth"
	CategoryRequest = "request"
	CategoryTrial   = "trial"
)

// Auth event types
const (
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedUserDisabled  = "login_failed_user_disabled"
	EventLogout                   = "logout"
)

// Request event types
const (
	EventRequestSubmitted = "request_submitted"
	EventRequestApproved  = "request_approved"
	EventRequestRejected  = "request_rejected"
)

// Trial event types
const (
	EventTrialProvisioned = "trial_provisioned"
	EventTrialExpired     = "trial_expired"
	EventTierChanged      = "tier_changed"
	EventTrialRepaired    = "trial_repaired"
)

// Event is one audit record.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`

	Category  string `bson:"category" json:"category"`
	EventType string `bson:"eventType" json:"eventType"`

	// Who
	Actor        string `bson:"actor,omitempty" json:"actor,omitempty"`               // admin email, "system" for workers
	RequestID    string `bson:"requestId,omitempty" json:"requestId,omitempty"`       // organization request hex id
	AccountEmail string `bson:"accountEmail,omitempty" json:"accountEmail,omitempty"` // affected account

	IP string `bson:"ip,omitempty" json:"ip,omitempty"`

	Success       bool   `bson:"success" json:"success"`
	FailureReason string `bson:"failureReason,omitempty" json:"failureReason,omitempty"`

	Details map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	RequestID    string
	AccountEmail string
	Category     string
	EventType    string
	StartTime    *time.Time
	EndTime      *time.Time
	Limit        int64
	Offset       int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query retrieves audit events matching the given filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, filter.toBSON(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.toBSON())
}

// ForRequest returns the history of one organization request.
func (s *Store) ForRequest(ctx context.Context, requestID string, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{RequestID: requestID, Limit: limit})
}

func (f QueryFilter) toBSON() bson.M {
	query := bson.M{}
	if f.RequestID != "" {
		query["requestId"] = f.RequestID
	}
	if f.AccountEmail != "" {
		query["accountEmail"] = f.AccountEmail
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.EventType != "" {
		query["eventType"] = f.EventType
	}
	if f.StartTime != nil || f.EndTime != nil {
		timeQuery := bson.M{}
		if f.StartTime != nil {
			timeQuery["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			timeQuery["$lte"] = *f.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Matches reports whether e satisfies f, ignoring Limit and Offset. It
// mirrors toBSON for stores that filter in process.
func (f QueryFilter) Matches(e Event) bool {
	switch {
	case f.RequestID != "" && e.RequestID != f.RequestID:
		return false
	case f.AccountEmail != "" && e.AccountEmail != f.AccountEmail:
		return false
	case f.Category != "" && e.Category != f.Category:
		return false
	case f.EventType != "" && e.EventType != f.EventType:
		return false
	case f.StartTime != nil && e.Timestamp.Before(*f.StartTime):
		return false
	case f.EndTime != nil && e.Timestamp.After(*f.EndTime):
		return false
	}
	return true
}
