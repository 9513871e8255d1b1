package mongo

import (
	"context"
	"time"

	"github.com/greenroomhq/greenroom/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SegmentRepository interface {
	Insert(ctx context.Context, s *models.SegmentLog) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.SegmentLog, error)
}

type segmentRepo struct {
	col *mongo.Collection
}

func NewSegmentRepo(db *mongo.Database) SegmentRepository {
	return &segmentRepo{col: db.Collection("segment_log")}
}

func (r *segmentRepo) Insert(ctx context.Context, s *models.SegmentLog) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *segmentRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.SegmentLog, error) {
	if limit <= 0 {
		limit = 200
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "seq", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.SegmentLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
