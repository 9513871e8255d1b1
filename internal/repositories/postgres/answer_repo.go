package postgres

import (
	"context"
	"errors"

	"github.com/greenroomhq/greenroom/internal/models"
	"github.com/greenroomhq/greenroom/internal/utils"
	"gorm.io/gorm"
)

type AnswerRepo interface {
	Insert(ctx context.Context, row *models.AnswerLog) error
	ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.AnswerLog, error)
	GetByID(ctx context.Context, id string) (*models.AnswerLog, error)
}

type answerRepo struct {
	db *gorm.DB
}

func NewAnswerRepo(db *gorm.DB) AnswerRepo {
	return &answerRepo{db: db}
}

func (r *answerRepo) Insert(ctx context.Context, row *models.AnswerLog) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *answerRepo) ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.AnswerLog, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []models.AnswerLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("asked_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *answerRepo) GetByID(ctx context.Context, id string) (*models.AnswerLog, error) {
	var row models.AnswerLog
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
