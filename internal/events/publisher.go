package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Publisher sends fire-and-forget session events over Redis pub/sub. A nil
// client disables publishing; consumers are ops tooling and future
// multi-instance fan-out, never the session's own control path.
type Publisher struct {
	rdb *redis.Client
	log *logrus.Logger
}

func NewPublisher(rdb *redis.Client, log *logrus.Logger) *Publisher {
	return &Publisher{rdb: rdb, log: log}
}

func statusChannel(sessionID string) string     { return "session:" + sessionID + ":status" }
func transcriptChannel(sessionID string) string { return "session:" + sessionID + ":transcript" }

func (p *Publisher) SessionStatus(ctx context.Context, sessionID string, payload any) {
	p.publish(ctx, statusChannel(sessionID), payload)
}

func (p *Publisher) Transcript(ctx context.Context, sessionID, text string) {
	p.publish(ctx, transcriptChannel(sessionID), map[string]any{
		"type": "transcript",
		"text": text,
	})
}

func (p *Publisher) publish(ctx context.Context, channel string, payload any) {
	if p == nil || p.rdb == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := p.rdb.Publish(ctx, channel, string(b)).Err(); err != nil && p.log != nil {
		p.log.WithError(err).WithField("channel", channel).Debug("event publish failed")
	}
}
