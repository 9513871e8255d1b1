package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/greenroomhq/greenroom/internal/events"
	"github.com/greenroomhq/greenroom/internal/live"
	"github.com/greenroomhq/greenroom/internal/providers/chat"
	"github.com/greenroomhq/greenroom/internal/providers/stt"
	"github.com/greenroomhq/greenroom/internal/services"
	"github.com/greenroomhq/greenroom/internal/utils"
)

// LiveHandler is the WebSocket gateway: one live orchestrator session per
// connection. JSON text frames carry control messages; binary frames carry
// raw audio.
type LiveHandler struct {
	sessions services.SessionService
	answers  services.AnswerService
	segments services.SegmentService
	events   *events.Publisher
	stt      stt.Provider
	chat     chat.Provider
	registry *live.Registry
	baseCfg  live.Config
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

func NewLiveHandler(
	sessions services.SessionService,
	answers services.AnswerService,
	segments services.SegmentService,
	pub *events.Publisher,
	sttP stt.Provider,
	chatP chat.Provider,
	registry *live.Registry,
	baseCfg live.Config,
	logger *logrus.Logger,
) *LiveHandler {
	return &LiveHandler{
		sessions: sessions,
		answers:  answers,
		segments: segments,
		events:   pub,
		stt:      sttP,
		chat:     chatP,
		registry: registry,
		baseCfg:  baseCfg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type liveClientMsg struct {
	Type        string   `json:"type"`
	Encodings   []string `json:"encodings"`
	Question    string   `json:"question"`
	Language    string   `json:"language"`
	AudioBase64 string   `json:"audio_base64"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeError(code utils.Code, message string) {
	_ = w.writeJSON(map[string]any{"type": "error", "code": code, "message": message})
}

func (h *LiveHandler) LiveWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "LiveHandler.LiveWS", "missing session_id", nil))
		return
	}

	// authorize session ownership
	sess, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "LiveHandler.LiveWS", "forbidden", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}

	var (
		src   *live.StreamSource
		ls    *live.Session
		imu   sync.Mutex
		shown []string // interjections surfaced during the current answer
	)
	defer func() {
		if ls != nil {
			ls.Disconnect()
		}
		h.registry.Remove(sessionID)
	}()

	hooks := live.Hooks{
		OnStatus: func(st live.Status) {
			_ = wc.writeJSON(map[string]any{"type": "status", "status": st})
			h.events.SessionStatus(context.Background(), sessionID, map[string]any{
				"type":   "status",
				"status": st,
			})
		},
		OnTranscript: func(text string) {
			_ = wc.writeJSON(map[string]any{"type": "transcript", "text": text})
			h.events.Transcript(context.Background(), sessionID, text)
		},
		OnInterjection: func(text string) {
			_ = wc.writeJSON(map[string]any{"type": "interjection", "text": text})
			if text != "" {
				imu.Lock()
				shown = append(shown, text)
				imu.Unlock()
			}
		},
		OnSegment: func(r live.SegmentReport) {
			// fire-and-forget diagnostics; never blocks the relay
			go func() {
				_ = h.segments.Record(context.Background(), sessionID, r.Seq, r.ByteSize, r.MIMEType, r.Status, r.TextLen, r.FailStreak)
			}()
		},
	}

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		msgType, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}

		if msgType == websocket.BinaryMessage {
			if src == nil {
				wc.writeError(utils.CodeInvalidArgument, "connect before sending audio")
				continue
			}
			src.Push(data)
			continue
		}

		var msg liveClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			wc.writeError(utils.CodeInvalidArgument, "invalid json")
			continue
		}

		switch msg.Type {
		case "connect":
			if ls != nil && ls.Status() == live.StatusConnected {
				wc.writeError(utils.CodeConflict, "already connected")
				continue
			}

			cfg := h.baseCfg
			cfg.Question = msg.Question
			if msg.Language != "" {
				cfg.Language = msg.Language
			} else if sess.Language != "" {
				cfg.Language = sess.Language
			}

			src = live.NewStreamSource(msg.Encodings, cfg.FrameBuffer, h.logger)
			ls = live.NewSession(cfg, &live.ChunkedTransport{Logger: h.logger}, h.stt, h.chat, hooks, h.logger)

			if err := ls.Connect(src); err != nil {
				var ae *utils.AppError
				code := utils.CodeInternal
				if errors.As(err, &ae) {
					code = ae.Code
				}
				wc.writeError(code, "connect failed")
				continue
			}
			h.registry.Put(sessionID, ls)

		case "audio":
			if src == nil {
				wc.writeError(utils.CodeInvalidArgument, "connect before sending audio")
				continue
			}
			raw := msg.AudioBase64
			if i := strings.Index(raw, ","); i >= 0 {
				raw = raw[i+1:] // strip data:...;base64,
			}
			decoded, derr := base64.StdEncoding.DecodeString(raw)
			if derr != nil {
				wc.writeError(utils.CodeInvalidArgument, "invalid audio_base64")
				continue
			}
			src.Push(decoded)

		case "pause":
			if ls != nil {
				ls.Pause()
			}

		case "resume":
			if ls != nil {
				ls.Resume()
			}

		case "reset":
			if ls != nil {
				ls.ResetTranscript()
			}
			imu.Lock()
			shown = nil
			imu.Unlock()

		case "set_question":
			if ls != nil {
				ls.SetQuestion(msg.Question)
			}

		case "save_answer":
			if ls == nil {
				wc.writeError(utils.CodeInvalidArgument, "no live session")
				continue
			}
			answer := ls.Transcript()
			imu.Lock()
			interjections := append([]string(nil), shown...)
			shown = nil
			imu.Unlock()

			row, serr := h.answers.Save(c.Request.Context(), userID, sessionID, msg.Question, answer, interjections, nil)
			if serr != nil {
				var ae *utils.AppError
				code := utils.CodeInternal
				if errors.As(serr, &ae) {
					code = ae.Code
				}
				wc.writeError(code, "failed to save answer")
				continue
			}
			ls.ResetTranscript()
			_ = wc.writeJSON(map[string]any{"type": "answer_saved", "answer_id": row.ID})

		case "disconnect":
			if ls != nil {
				ls.Disconnect()
			}
			h.registry.Remove(sessionID)

		default:
			wc.writeError(utils.CodeInvalidArgument, "unknown message type")
		}
	}
}
