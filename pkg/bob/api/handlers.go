package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opsbuddy/bob/pkg/bob"
	"github.com/opsbuddy/bob/pkg/bob/llm"
)

type chatRequest struct {
	Message  string `json:"message" binding:"required"`
	ThreadID string `json:"thread_id"`
}

type chatResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
}

type historyResponse struct {
	ThreadID     string        `json:"thread_id"`
	Messages     []llm.Message `json:"messages"`
	MessageCount int           `json:"message_count"`
}

type summaryResponse struct {
	ThreadID string `json:"thread_id"`
	Summary  string `json:"summary"`
}

type analysisResponse struct {
	ThreadID string       `json:"thread_id"`
	Analysis bob.Analysis `json:"analysis"`
}

type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
}

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = "default"
	}

	s.logger.Info("chat request", "thread_id", req.ThreadID)
	response := s.agent.Chat(c.Request.Context(), req.Message, req.ThreadID)

	c.JSON(http.StatusOK, chatResponse{Response: response, ThreadID: req.ThreadID})
}

// chatStream emits node-granularity text snapshots as server-sent
// events. Consumers detect content growth to render incrementally;
// there is no token-level streaming.
func (s *Server) chatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = "default"
	}

	s.logger.Info("stream chat request", "thread_id", req.ThreadID)
	updates := s.agent.StreamChat(c.Request.Context(), req.Message, req.ThreadID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		u, ok := <-updates
		if !ok {
			return false
		}
		if u.Err != nil {
			c.SSEvent("error", u.Err.Error())
			return false
		}
		if u.State != nil {
			if text := u.State.LastAssistantText(); text != "" {
				c.SSEvent("message", text)
			}
		}
		return !u.Done
	})
}

func (s *Server) history(c *gin.Context) {
	threadID := c.Param("thread_id")
	messages := s.agent.History(c.Request.Context(), threadID)

	c.JSON(http.StatusOK, historyResponse{
		ThreadID:     threadID,
		Messages:     messages,
		MessageCount: len(messages),
	})
}

func (s *Server) summary(c *gin.Context) {
	threadID := c.Param("thread_id")
	summary := s.agent.Summary(c.Request.Context(), threadID)

	c.JSON(http.StatusOK, summaryResponse{ThreadID: threadID, Summary: summary})
}

func (s *Server) analysis(c *gin.Context) {
	threadID := c.Param("thread_id")
	analysis := s.agent.Analysis(c.Request.Context(), threadID)

	c.JSON(http.StatusOK, analysisResponse{ThreadID: threadID, Analysis: analysis})
}

func (s *Server) clearThread(c *gin.Context) {
	threadID := c.Param("thread_id")
	if !s.agent.ClearConversation(c.Request.Context(), threadID) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear thread"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "thread_id": threadID})
}
