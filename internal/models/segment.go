package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SegmentLog is a per-segment relay diagnostic record. Audio bytes are never
// stored; segments are discarded right after upload.
type SegmentLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	Seq       int64              `bson:"seq" json:"seq"`

	ByteSize int64  `bson:"byte_size" json:"byte_size"`
	MIMEType string `bson:"mime_type" json:"mime_type"`
	Status   string `bson:"status" json:"status"` // relayed|skipped|failed

	TextLen    int `bson:"text_len,omitempty" json:"text_len,omitempty"`
	FailStreak int `bson:"fail_streak,omitempty" json:"fail_streak,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
