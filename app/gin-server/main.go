package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/greenroomhq/greenroom/config"
	"github.com/greenroomhq/greenroom/internal/api/handlers"
	"github.com/greenroomhq/greenroom/internal/api/middleware"
	"github.com/greenroomhq/greenroom/internal/api/routes"
	"github.com/greenroomhq/greenroom/internal/cache"
	"github.com/greenroomhq/greenroom/internal/events"
	"github.com/greenroomhq/greenroom/internal/live"
	"github.com/greenroomhq/greenroom/internal/logger"
	"github.com/greenroomhq/greenroom/internal/providers/chat"
	"github.com/greenroomhq/greenroom/internal/providers/stt"
	mongorepo "github.com/greenroomhq/greenroom/internal/repositories/mongo"
	pgrepo "github.com/greenroomhq/greenroom/internal/repositories/postgres"
	"github.com/greenroomhq/greenroom/internal/services"
	"github.com/greenroomhq/greenroom/internal/storage"
	"github.com/greenroomhq/greenroom/internal/workers"
)

func main() {
	_ = godotenv.Load()

	l := logger.New()
	app := config.App()
	ctx := context.Background()

	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	l.Info("MongoDB connected")

	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	l.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	l.Info("Redis connected")

	mongoDB := config.MongoClient.Database(app.MongoDB)

	// providers
	var sttProvider stt.Provider
	switch app.STTProvider {
	case "google":
		g, err := stt.NewGoogleSpeech(ctx)
		if err != nil {
			log.Fatalf("Google Speech init error: %v", err)
		}
		sttProvider = g
	default:
		sttProvider = stt.NewWhisper(app.OpenAIBaseURL, app.OpenAIAPIKey, app.TranscribeModel)
	}

	var chatProvider chat.Provider
	switch app.ChatProvider {
	case "vertex":
		v, err := chat.NewVertexGemini(ctx, app.VertexProject, app.VertexLocation, app.ChatModel)
		if err != nil {
			log.Fatalf("Vertex init error: %v", err)
		}
		chatProvider = v
	default:
		chatProvider = chat.NewOpenAI(app.OpenAIBaseURL, app.OpenAIAPIKey, app.ChatModel, app.ChatTemperature, app.ChatMaxTokens)
	}

	// repositories + services
	redisCache := cache.NewRedisCache(config.RedisClient)
	sessionRepo := mongorepo.NewSessionRepo(mongoDB)
	segmentRepo := mongorepo.NewSegmentRepo(mongoDB)
	answerRepo := pgrepo.NewAnswerRepo(config.PostgresDB)

	sessionSvc := services.NewSessionService(sessionRepo, redisCache)
	answerSvc := services.NewAnswerService(answerRepo)
	segmentSvc := services.NewSegmentService(segmentRepo, 24*time.Hour)
	exportSvc := services.NewExportService(config.RedisClient, sessionSvc)

	pub := events.NewPublisher(config.RedisClient, l)

	// export worker pool (needs GCS)
	if app.GCSBucket != "" {
		store, err := storage.NewGCSStore(ctx, app.GCSBucket)
		if err != nil {
			log.Fatalf("GCS init error: %v", err)
		}
		pool := &workers.ExportWorkerPool{
			Redis:    config.RedisClient,
			Sessions: sessionSvc,
			Answers:  answerSvc,
			Uploader: store,
			Signer:   store,
			Events:   pub,
			Logger:   l,
		}
		if err := pool.Start(ctx); err != nil {
			log.Fatalf("Export worker error: %v", err)
		}
	} else {
		l.Warn("GCS_BUCKET not set; export worker disabled")
	}

	// live orchestrator defaults
	liveCfg := live.DefaultConfig()
	liveCfg.Credential = app.OpenAIAPIKey
	liveCfg.Language = app.Language
	liveCfg.SegmentDuration = time.Duration(app.SegmentSeconds) * time.Second
	liveCfg.QuietInterval = time.Duration(app.QuietSeconds) * time.Second
	registry := live.NewRegistry()

	sessionHandler := handlers.NewSessionHandler(sessionSvc, answerSvc, exportSvc, segmentSvc, registry)
	liveHandler := handlers.NewLiveHandler(sessionSvc, answerSvc, segmentSvc, pub, sttProvider, chatProvider, registry, liveCfg, l)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Session: sessionHandler,
		Live:    liveHandler,
	})

	if err := r.Run(":" + app.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
