package services

import (
	"context"
	"time"

	"github.com/greenroomhq/greenroom/internal/models"
	mongorepo "github.com/greenroomhq/greenroom/internal/repositories/mongo"
	"github.com/greenroomhq/greenroom/internal/utils"
)

type SegmentService interface {
	Record(ctx context.Context, sessionID string, seq int64, byteSize int, mimeType, status string, textLen, failStreak int) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.SegmentLog, error)
}

type segmentService struct {
	segments mongorepo.SegmentRepository
	ttl      time.Duration
}

func NewSegmentService(segments mongorepo.SegmentRepository, ttl time.Duration) SegmentService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &segmentService{segments: segments, ttl: ttl}
}

func (s *segmentService) Record(ctx context.Context, sessionID string, seq int64, byteSize int, mimeType, status string, textLen, failStreak int) error {
	const op = "SegmentService.Record"

	if sessionID == "" || seq <= 0 || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id, seq (>0), and status are required", nil)
	}

	now := time.Now().UTC()
	doc := &models.SegmentLog{
		SessionID:  sessionID,
		Seq:        seq,
		ByteSize:   int64(byteSize),
		MIMEType:   mimeType,
		Status:     status,
		TextLen:    textLen,
		FailStreak: failStreak,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	if err := s.segments.Insert(ctx, doc); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to insert segment log", err)
	}
	return nil
}

func (s *segmentService) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.SegmentLog, error) {
	const op = "SegmentService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.segments.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list segment log", err)
	}
	return out, nil
}
