package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenroomhq/greenroom/internal/live"
	"github.com/greenroomhq/greenroom/internal/services"
	"github.com/greenroomhq/greenroom/internal/utils"
)

type SessionHandler struct {
	svc      services.SessionService
	answers  services.AnswerService
	exports  services.ExportService
	segments services.SegmentService
	registry *live.Registry
}

func NewSessionHandler(svc services.SessionService, answers services.AnswerService, exports services.ExportService, segments services.SegmentService, registry *live.Registry) *SessionHandler {
	return &SessionHandler{svc: svc, answers: answers, exports: exports, segments: segments, registry: registry}
}

type StartSessionRequest struct {
	QuestionSet []string `json:"question_set"`
	Language    string   `json:"language" binding:"required"` // en|id
}

type StartSessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func (h *SessionHandler) Start(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Start", "invalid request body", err))
		return
	}

	sess, err := h.svc.Start(c.Request.Context(), userID, req.QuestionSet, req.Language)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, StartSessionResponse{
		SessionID: sess.SessionID,
		Status:    sess.Status,
		CreatedAt: sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	sess, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	// basic authorization
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "SessionHandler.Get", "forbidden", nil))
		return
	}

	resp := gin.H{"session": sess}
	if ls, ok := h.registry.Get(sessionID); ok {
		resp["live_status"] = ls.Status()
		resp["paused"] = ls.Paused()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) End(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")

	// authorize against existing session
	sess, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "SessionHandler.End", "forbidden", nil))
		return
	}

	ended, err := h.svc.End(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ended)
}

func (h *SessionHandler) Export(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	sess, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "SessionHandler.Export", "forbidden", nil))
		return
	}

	if err := h.exports.Enqueue(c.Request.Context(), sessionID, userID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session_id":    sessionID,
		"export_status": "pending",
	})
}

// Segments is an admin-only ops view of the per-segment relay diagnostics.
func (h *SessionHandler) Segments(c *gin.Context) {
	sessionID := c.Param("session_id")
	rows, err := h.segments.ListBySession(c.Request.Context(), sessionID, 0)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": rows})
}

func (h *SessionHandler) Answers(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	rows, err := h.answers.ListBySession(c.Request.Context(), userID, sessionID, 0)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"answers": rows})
}
