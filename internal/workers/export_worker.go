package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/greenroomhq/greenroom/internal/events"
	"github.com/greenroomhq/greenroom/internal/models"
	"github.com/greenroomhq/greenroom/internal/services"
	"github.com/greenroomhq/greenroom/internal/storage"
)

// ExportWorkerPool consumes export jobs from the Redis stream, renders the
// session's answers as a JSON array of {Q, A} objects, uploads the artifact,
// and records the export state on the session.
type ExportWorkerPool struct {
	Redis      *redis.Client
	Sessions   services.SessionService
	Answers    services.AnswerService
	Uploader   storage.Uploader
	Signer     storage.Signer // optional; stored path is used when absent
	Events     *events.Publisher
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
	SignedURLTTL   time.Duration
}

func (p *ExportWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Sessions == nil || p.Answers == nil || p.Uploader == nil {
		return errors.New("ExportWorkerPool missing dependency: Redis/Sessions/Answers/Uploader must be set")
	}
	if p.Stream == "" {
		p.Stream = services.ExportStream
	}
	if p.Group == "" {
		p.Group = "export-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.SignedURLTTL <= 0 {
		p.SignedURLTTL = 24 * time.Hour
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *ExportWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *ExportWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	sessionID := getStr("session_id")
	userID := getStr("user_id")
	if sessionID == "" || userID == "" {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"session_id": sessionID,
	})

	rows, err := p.Answers.ListBySession(ctx, userID, sessionID, 0)
	if err != nil {
		log.WithError(err).Error("export: failed to load answers")
		p.fail(ctx, sessionID)
		return
	}

	qa := make([]models.QA, 0, len(rows))
	for _, r := range rows {
		qa = append(qa, models.QA{Q: r.Question, A: r.Answer})
	}

	payload, err := json.Marshal(qa)
	if err != nil {
		log.WithError(err).Error("export: failed to marshal transcript")
		p.fail(ctx, sessionID)
		return
	}

	objectName := "exports/" + sessionID + ".json"
	stored, err := p.Uploader.Upload(ctx, objectName, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.WithError(err).Error("export: upload failed")
		p.fail(ctx, sessionID)
		return
	}

	url := stored
	if p.Signer != nil {
		if signed, serr := p.Signer.SignedGetURL(ctx, objectName, p.SignedURLTTL); serr == nil {
			url = signed
		} else {
			log.WithError(serr).Warn("export: signing failed, falling back to stored path")
		}
	}

	if err := p.Sessions.SetExport(ctx, sessionID, "done", url); err != nil {
		log.WithError(err).Error("export: failed to record export state")
		return
	}

	p.Events.SessionStatus(ctx, sessionID, map[string]any{
		"type":       "export_complete",
		"answers":    len(qa),
		"export_url": url,
	})
	log.WithField("answers", len(qa)).Info("export: complete")
}

func (p *ExportWorkerPool) fail(ctx context.Context, sessionID string) {
	_ = p.Sessions.SetExport(ctx, sessionID, "failed", "")
	p.Events.SessionStatus(ctx, sessionID, map[string]any{
		"type": "export_failed",
	})
}
