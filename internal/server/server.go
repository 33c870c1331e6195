// Package server exposes the inbound HTTP surface: the webhook endpoint the
// booking plugin posts lifecycle events to, plus a small secret-protected
// admin API for issuing bind tokens and unbinding chats.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"latebot/internal/event"
	"latebot/internal/storage"
	logx "latebot/pkg/logx"
)

// secretHeader carries the shared webhook secret on every request.
const secretHeader = "X-Webhook-Secret"

type Config struct {
	Addr          string
	WebhookSecret string
}

// Dispatcher is the webhook's downstream: the server hands over a validated
// envelope and returns; delivery happens out of band.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventType string, b *event.Booking)
}

type Server struct {
	cfg   Config
	disp  Dispatcher
	store storage.Store
	log   logx.Logger

	http *http.Server
}

func New(cfg Config, disp Dispatcher, store storage.Store, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{cfg: cfg, disp: disp, store: store, log: log}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the gin engine. Split out so tests can drive it with httptest
// without binding a port.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)

	auth := r.Group("/", s.requireSecret)
	auth.POST("/webhook/notification", s.handleNotification)
	auth.POST("/api/agent-token", s.handleAgentToken)
	auth.DELETE("/api/unbind/:telegram_id", s.handleUnbind)

	return r
}

func (s *Server) Start() error {
	s.log.Info("http server listening", logx.String("addr", s.cfg.Addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requireSecret rejects requests whose shared secret does not match.
// Constant-time compare; the 401 body never says which part was wrong.
func (s *Server) requireSecret(c *gin.Context) {
	got := c.GetHeader(secretHeader)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.WebhookSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleNotification accepts one lifecycle event. Acceptance means the
// envelope parsed; per-recipient delivery outcomes live in the notification
// log, not in the HTTP status.
func (s *Server) handleNotification(c *gin.Context) {
	var env event.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}
	if env.EventType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing event_type"})
		return
	}

	s.disp.Dispatch(c.Request.Context(), env.EventType, env.Data)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// handleAgentToken registers a one-time bind token issued by the booking
// plugin. The plugin shows the token to the agent; /start redeems it.
func (s *Server) handleAgentToken(c *gin.Context) {
	var input struct {
		Token      string `json:"token" binding:"required"`
		AgentID    int64  `json:"agent_id" binding:"required"`
		TTLMinutes int    `json:"ttl_minutes"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ttl := time.Duration(input.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	t := storage.BindToken{
		Token:     input.Token,
		AgentID:   input.AgentID,
		ExpiresAt: time.Now().Add(ttl),
		Status:    storage.TokenPending,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveToken(c.Request.Context(), t); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "token already exists"})
			return
		}
		s.log.Error("token save failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}

	s.log.Info("bind token issued", logx.Int64("agent", input.AgentID))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// handleUnbind removes every agent binding held by a chat, typically when the
// agent account is deactivated on the WordPress side.
func (s *Server) handleUnbind(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram_id"})
		return
	}

	n, err := s.store.DeleteBindingsForChat(c.Request.Context(), chatID)
	if err != nil {
		s.log.Error("unbind failed", logx.Int64("chat", chatID), logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no bindings for chat"})
		return
	}

	s.log.Info("chat unbound", logx.Int64("chat", chatID), logx.Int("removed", n))
	c.JSON(http.StatusOK, gin.H{"status": "success", "removed": n})
}
