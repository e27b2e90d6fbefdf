package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tradesxbt/internal/state"
	"tradesxbt/models"
)

const chatWriteTimeout = 10 * time.Second

type chatRequest struct {
	ThreadID  string `json:"thread_id"`
	Message   string `json:"message" binding:"required"`
	WebSearch bool   `json:"web_search"`
	Viewing   *bool  `json:"viewing"`
}

func (r chatRequest) options() state.SendOptions {
	viewing := true
	if r.Viewing != nil {
		viewing = *r.Viewing
	}
	return state.SendOptions{ThreadID: r.ThreadID, WebSearch: r.WebSearch, Viewing: viewing}
}

func (s *Server) chatRoutes(api *gin.RouterGroup) {
	th := s.svc.Threads

	api.GET("/chat/threads", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"threads": th.Threads(), "unreadCount": th.UnreadCount()})
	})
	api.GET("/chat/threads/:id", func(c *gin.Context) {
		t, ok := th.Thread(c.Param("id"))
		if !ok {
			notFound(c, "thread")
			return
		}
		c.JSON(http.StatusOK, t)
	})
	api.POST("/chat/threads", func(c *gin.Context) {
		var req struct {
			Message string `json:"message" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		c.JSON(http.StatusCreated, th.CreateThread(c.Request.Context(), req.Message))
	})
	api.POST("/chat/threads/:id/read", func(c *gin.Context) {
		if !th.MarkRead(c.Request.Context(), c.Param("id")) {
			notFound(c, "thread")
			return
		}
		c.Status(http.StatusNoContent)
	})
	api.DELETE("/chat/threads/:id", func(c *gin.Context) {
		if !th.Delete(c.Request.Context(), c.Param("id")) {
			notFound(c, "thread")
			return
		}
		c.Status(http.StatusNoContent)
	})
	api.POST("/chat/messages", func(c *gin.Context) {
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		t, err := th.Send(c.Request.Context(), req.Message, req.options())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, state.ErrEmptyMessage) {
				status = http.StatusBadRequest
			}
			fail(c, status, err)
			return
		}
		c.JSON(http.StatusOK, t)
	})
	api.GET("/chat/ws", s.chatSocket)

	api.GET("/ai/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"available": s.svc.AI.Available(), "backends": s.svc.AI.Status()})
	})
	api.POST("/ai/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": s.svc.AI.Test(c.Request.Context())})
	})
}

// chatSocket streams replies: every client message produces a start event,
// delta events for each fragment and a final done event carrying the
// updated thread.
func (s *Server) chatSocket(c *gin.Context) {
	log := s.log.WithComponent("chat_socket")
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	write := func(ev models.StreamEvent) error {
		_ = conn.SetWriteDeadline(time.Now().Add(chatWriteTimeout))
		return conn.WriteJSON(ev)
	}

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("chat socket closed")
			}
			return
		}

		if err := write(models.StreamEvent{Type: models.StreamStart}); err != nil {
			return
		}
		var writeErr error
		opts := req.options()
		opts.OnChunk = func(chunk string) {
			if writeErr == nil {
				writeErr = write(models.StreamEvent{Type: models.StreamDelta, Data: chunk})
			}
		}

		t, err := s.svc.Threads.Send(ctx, req.Message, opts)
		if writeErr != nil {
			log.WithError(writeErr).Debug("client went away mid-stream")
			return
		}
		if err != nil {
			if write(models.StreamEvent{Type: models.StreamError, Error: err.Error()}) != nil {
				return
			}
			continue
		}
		if write(models.StreamEvent{Type: models.StreamDone, Thread: &t}) != nil {
			return
		}
	}
}
