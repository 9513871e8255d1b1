package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// AnswerLog is one saved question/answer pair from a live interview session,
// plus the interjections the host surfaced while the candidate answered.
type AnswerLog struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	SessionID string `gorm:"column:session_id;type:uuid;index" json:"session_id"`

	Question string `gorm:"column:question;type:text" json:"question"`
	Answer   string `gorm:"column:answer;type:text" json:"answer"`

	Interjections pq.StringArray `gorm:"column:interjections;type:text[]" json:"interjections"`

	AskedAt  time.Time      `gorm:"column:asked_at;type:timestamptz;index" json:"asked_at"`
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
}

func (AnswerLog) TableName() string { return "answer_logs" }

// QA is the exported transcript shape: a JSON array of these makes up one
// session export artifact.
type QA struct {
	Q string `json:"Q"`
	A string `json:"A"`
}
