// internal/app/store/orgrequests/orgrequeststore.go
package orgrequeststore

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dalemusser/chimeo/internal/app/gateway"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the organization request collection name.
const Collection = "organizationRequests"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

var _ gateway.RequestStore = (*Store)(nil)

// Create inserts a new request. The insert is a single document write, so a
// failure leaves nothing behind.
func (s *Store) Create(ctx context.Context, req models.OrganizationRequest) (models.OrganizationRequest, error) {
	if req.ID.IsZero() {
		req.ID = primitive.NewObjectID()
	}
	req.OrgNameCI = text.Fold(req.OrgName)
	if _, err := s.c.InsertOne(ctx, req); err != nil {
		return models.OrganizationRequest{}, err
	}
	return req, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.OrganizationRequest, error) {
	var req models.OrganizationRequest
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
	if err == mongo.ErrNoDocuments {
		return models.OrganizationRequest{}, gateway.ErrNotFound
	}
	if err != nil {
		return models.OrganizationRequest{}, err
	}
	return req, nil
}

// List returns requests newest first, optionally filtered by status and an
// organization-name prefix.
func (s *Store) List(ctx context.Context, q gateway.RequestQuery) ([]models.OrganizationRequest, error) {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if qq := strings.TrimSpace(q.Q); qq != "" {
		filter["orgNameCI"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(text.Fold(qq))}
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "submittedAt", Value: -1},
		{Key: "_id", Value: -1},
	})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.OrganizationRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve is a compare-and-swap on status: the update only matches while the
// request is pending, so concurrent approve/reject calls have one winner.
func (s *Store) Resolve(ctx context.Context, id primitive.ObjectID, res models.Resolution) (models.OrganizationRequest, error) {
	set := bson.M{"status": res.Status}
	switch res.Status {
	case models.RequestApproved:
		set["approvedAt"] = res.At
		set["approvedBy"] = res.By
		set["currentTier"] = res.Tier
		set["trialStartDate"] = res.TrialStart
		set["trialEndDate"] = res.TrialEnd
	case models.RequestRejected:
		set["rejectedAt"] = res.At
		set["rejectedBy"] = res.By
		set["rejectionReason"] = res.Reason
	default:
		return models.OrganizationRequest{}, fmt.Errorf("cannot resolve request to status %q", res.Status)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var out models.OrganizationRequest
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.RequestPending},
		bson.M{"$set": set},
		opts,
	).Decode(&out)
	if err == nil {
		return out, nil
	}
	if err != mongo.ErrNoDocuments {
		return models.OrganizationRequest{}, err
	}

	// Nothing matched: tell a missing request apart from one already resolved.
	n, cerr := s.c.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if cerr != nil {
		return models.OrganizationRequest{}, cerr
	}
	if n == 0 {
		return models.OrganizationRequest{}, gateway.ErrNotFound
	}
	return models.OrganizationRequest{}, gateway.ErrPreconditionFailed
}

// CountByStatus returns the number of requests per status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[string]int64, len(models.RequestStatuses))
	for cur.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			N      int64  `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Status] = row.N
	}
	return out, cur.Err()
}
