package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	UserID    string             `bson:"user_id" json:"user_id"`

	QuestionSet []string `bson:"question_set,omitempty" json:"question_set,omitempty"`
	Language    string   `bson:"language" json:"language"` // en|id
	Status      string   `bson:"status" json:"status"`     // active|ended

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	EndedAt   *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`

	DurationSeconds int64 `bson:"duration_seconds" json:"duration_seconds"`

	ExportStatus string `bson:"export_status,omitempty" json:"export_status,omitempty"` // pending|done|failed
	ExportURL    string `bson:"export_url,omitempty" json:"export_url,omitempty"`
}
