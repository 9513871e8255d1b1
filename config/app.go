package config

import (
	"os"
	"strconv"
)

// AppConfig is the env snapshot consumed by main to wire providers and the
// live-session defaults.
type AppConfig struct {
	Port     string
	LogLevel string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	STTProvider     string // whisper|google
	ChatProvider    string // openai|vertex
	TranscribeModel string
	ChatModel       string
	ChatTemperature float64
	ChatMaxTokens   int
	Language        string

	SegmentSeconds int
	QuietSeconds   int

	VertexProject  string
	VertexLocation string

	GCSBucket string
	MongoDB   string
}

func App() AppConfig {
	return AppConfig{
		Port:     getenv("PORT", "8080"),
		LogLevel: os.Getenv("LOG_LEVEL"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		STTProvider:     getenv("STT_PROVIDER", "whisper"),
		ChatProvider:    getenv("CHAT_PROVIDER", "openai"),
		TranscribeModel: getenv("TRANSCRIBE_MODEL", "whisper-1"),
		ChatModel:       os.Getenv("CHAT_MODEL"),
		ChatTemperature: getfloat("CHAT_TEMPERATURE", 0.7),
		ChatMaxTokens:   getint("CHAT_MAX_TOKENS", 256),
		Language:        getenv("TRANSCRIBE_LANGUAGE", "en"),

		SegmentSeconds: getint("SEGMENT_SECONDS", 3),
		QuietSeconds:   getint("QUIET_SECONDS", 6),

		VertexProject:  os.Getenv("VERTEX_PROJECT"),
		VertexLocation: getenv("VERTEX_LOCATION", "us-central1"),

		GCSBucket: os.Getenv("GCS_BUCKET"),
		MongoDB:   getenv("MONGO_DB", "greenroom"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}
