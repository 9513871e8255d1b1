package services

import (
	"context"
	"time"

	"github.com/greenroomhq/greenroom/internal/models"
	pgrepo "github.com/greenroomhq/greenroom/internal/repositories/postgres"
	"github.com/greenroomhq/greenroom/internal/utils"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type AnswerService interface {
	Save(ctx context.Context, userID, sessionID, question, answer string, interjections []string, metadataJSON []byte) (*models.AnswerLog, error)
	ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.AnswerLog, error)
}

type answerService struct {
	answers pgrepo.AnswerRepo
}

func NewAnswerService(answers pgrepo.AnswerRepo) AnswerService {
	return &answerService{answers: answers}
}

func (s *answerService) Save(ctx context.Context, userID, sessionID, question, answer string, interjections []string, metadataJSON []byte) (*models.AnswerLog, error) {
	const op = "AnswerService.Save"

	if userID == "" || sessionID == "" || question == "" || answer == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id, session_id, question, and answer are required", nil)
	}

	row := &models.AnswerLog{
		ID:            uuid.NewString(),
		UserID:        userID,
		SessionID:     sessionID,
		Question:      question,
		Answer:        answer,
		Interjections: pq.StringArray(interjections),
		AskedAt:       time.Now().UTC(),
		Metadata:      datatypes.JSON(metadataJSON),
	}

	if err := s.answers.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert answer log", err)
	}
	return row, nil
}

func (s *answerService) ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.AnswerLog, error) {
	const op = "AnswerService.ListBySession"

	if userID == "" || sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and session_id are required", nil)
	}

	rows, err := s.answers.ListBySession(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list answers", err)
	}
	return rows, nil
}
