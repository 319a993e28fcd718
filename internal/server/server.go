// Package server is the web chat adapter: a chat endpoint, a notification
// poll endpoint, health and metrics.
package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/vthunder/nudge/internal/logging"
)

// SessionCookie carries the web user's session id
const SessionCookie = "nudge_session"

const sessionMaxAge = 365 * 24 * 60 * 60

//go:embed index.html
var indexHTML []byte

// Assistant is what the web adapter talks to
type Assistant interface {
	SubmitContext(ctx context.Context, user, text string) string
	Poll(user string) []string
}

// Config holds server settings
type Config struct {
	Addr     string
	Debug    bool
	Gatherer prometheus.Gatherer // nil means the default registry
}

// Server is the HTTP adapter
type Server struct {
	assistant Assistant
	engine    *gin.Engine
	http      *http.Server
	started   time.Time
	proc      *process.Process
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// New creates the server and its routes
func New(assistant Assistant, cfg Config) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		assistant: assistant,
		engine:    gin.New(),
		started:   time.Now(),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = proc
	}

	s.engine.Use(gin.Recovery(), requestLogger())

	s.engine.GET("/", s.handleIndex)
	s.engine.POST("/chat", s.handleChat)
	s.engine.GET("/events", s.handleEvents)
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routes, for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info("server", "Listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	user := s.session(c)
	reply := s.assistant.SubmitContext(c.Request.Context(), user, req.Message)
	c.JSON(http.StatusOK, chatResponse{Reply: reply})
}

func (s *Server) handleEvents(c *gin.Context) {
	c.JSON(http.StatusOK, s.assistant.Poll(s.session(c)))
}

func (s *Server) handleHealth(c *gin.Context) {
	h := gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	if s.proc != nil {
		if mem, err := s.proc.MemoryInfo(); err == nil {
			h["rss_bytes"] = mem.RSS
		}
		if cpu, err := s.proc.CPUPercent(); err == nil {
			h["cpu_percent"] = cpu
		}
	}
	c.JSON(http.StatusOK, h)
}

// session returns the web user id for the request, issuing a cookie on
// first contact
func (s *Server) session(c *gin.Context) string {
	id, err := c.Cookie(SessionCookie)
	if err == nil {
		_, err = uuid.Parse(id)
	}
	if err != nil {
		id = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, id, sessionMaxAge, "/", "", false, true)
	}
	return "web:" + id
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/events") || path == "/metrics" {
			return // polled constantly
		}
		logging.Debug("server", "%s %s %d (%v)", c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
