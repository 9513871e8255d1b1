package services

import (
	"context"
	"errors"
	"time"

	"github.com/greenroomhq/greenroom/internal/cache"
	"github.com/greenroomhq/greenroom/internal/models"
	mongorepo "github.com/greenroomhq/greenroom/internal/repositories/mongo"
	"github.com/greenroomhq/greenroom/internal/utils"

	"github.com/google/uuid"
)

const sessionCacheTTL = 5 * time.Minute

type SessionService interface {
	Start(ctx context.Context, userID string, questionSet []string, language string) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	End(ctx context.Context, sessionID string) (*models.Session, error)
	SetStatus(ctx context.Context, sessionID, status string) error
	SetExport(ctx context.Context, sessionID, exportStatus, exportURL string) error
}

type sessionService struct {
	sessions mongorepo.SessionRepository
	cache    cache.Cache // nil disables the cache-aside path
}

func NewSessionService(sessions mongorepo.SessionRepository, c cache.Cache) SessionService {
	return &sessionService{sessions: sessions, cache: c}
}

func sessionCacheKey(sessionID string) string { return "session:" + sessionID }

func (s *sessionService) Start(ctx context.Context, userID string, questionSet []string, language string) (*models.Session, error) {
	const op = "SessionService.Start"

	if userID == "" || language == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and language are required", nil)
	}

	now := time.Now().UTC()
	session := &models.Session{
		SessionID:       uuid.NewString(),
		UserID:          userID,
		QuestionSet:     questionSet,
		Language:        language,
		Status:          "active",
		CreatedAt:       now,
		DurationSeconds: 0,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	if s.cache != nil {
		var cached models.Session
		if hit, _ := s.cache.GetJSON(ctx, sessionCacheKey(sessionID), &cached); hit {
			return &cached, nil
		}
	}

	out, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, sessionCacheKey(sessionID), out, sessionCacheTTL)
	}
	return out, nil
}

func (s *sessionService) End(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "SessionService.End"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	ss, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dur := int64(now.Sub(ss.CreatedAt).Seconds())
	if dur < 0 {
		dur = 0
	}

	if err := s.sessions.End(ctx, sessionID, now, dur); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to end session", err)
	}
	s.invalidate(ctx, sessionID)

	ss.Status = "ended"
	ss.EndedAt = &now
	ss.DurationSeconds = dur
	return ss, nil
}

func (s *sessionService) SetStatus(ctx context.Context, sessionID, status string) error {
	const op = "SessionService.SetStatus"

	if sessionID == "" || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and status are required", nil)
	}
	if err := s.sessions.SetStatus(ctx, sessionID, status); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set status", err)
	}
	s.invalidate(ctx, sessionID)
	return nil
}

func (s *sessionService) SetExport(ctx context.Context, sessionID, exportStatus, exportURL string) error {
	const op = "SessionService.SetExport"

	if sessionID == "" || exportStatus == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and export_status are required", nil)
	}
	if err := s.sessions.SetExport(ctx, sessionID, exportStatus, exportURL); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set export state", err)
	}
	s.invalidate(ctx, sessionID)
	return nil
}

func (s *sessionService) invalidate(ctx context.Context, sessionID string) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, sessionCacheKey(sessionID))
	}
}
