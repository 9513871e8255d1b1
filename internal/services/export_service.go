package services

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/greenroomhq/greenroom/internal/utils"
)

const ExportStream = "exports:stream"

type ExportService interface {
	// Enqueue marks the session's export pending and pushes a job onto the
	// export stream for the worker pool.
	Enqueue(ctx context.Context, sessionID, userID string) error
}

type exportService struct {
	rdb      *redis.Client
	sessions SessionService
}

func NewExportService(rdb *redis.Client, sessions SessionService) ExportService {
	return &exportService{rdb: rdb, sessions: sessions}
}

func (s *exportService) Enqueue(ctx context.Context, sessionID, userID string) error {
	const op = "ExportService.Enqueue"

	if sessionID == "" || userID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and user_id are required", nil)
	}

	if err := s.sessions.SetExport(ctx, sessionID, "pending", ""); err != nil {
		return err
	}

	if err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: ExportStream,
		Values: map[string]any{
			"session_id": sessionID,
			"user_id":    userID,
		},
	}).Err(); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to enqueue export job", err)
	}
	return nil
}
