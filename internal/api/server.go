// Package api exposes the interviewd HTTP surface: the /ws/interview
// WebSocket endpoint driving live sessions, a small REST API over the
// interview history, and the health and metrics endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/admitly/interviewd/internal/health"
	"github.com/admitly/interviewd/internal/interview"
	"github.com/admitly/interviewd/internal/observe"
	"github.com/admitly/interviewd/internal/protocol"
	"github.com/admitly/interviewd/internal/store"
)

// writeTimeout bounds a single WebSocket write. A client that stops reading
// for this long is treated as gone.
const writeTimeout = 10 * time.Second

// Server hosts the HTTP routes. Construct with New, then serve Handler.
type Server struct {
	orch    *interview.Orchestrator
	store   store.Store
	health  *health.Handler
	metrics *observe.Metrics
	log     *slog.Logger

	// allowedOrigins is passed through to the WebSocket accept handshake.
	// Empty means same-origin only.
	allowedOrigins []string

	engine *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables the interview-history REST endpoint.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithHealth sets the health handler backing /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithAllowedOrigins sets the origin patterns permitted to open WebSocket
// connections.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// New builds the route table around the given session orchestrator.
func New(orch *interview.Orchestrator, opts ...Option) *Server {
	s := &Server{
		orch:   orch,
		health: health.New(),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/ws/interview", s.handleWS)
	engine.GET("/healthz", gin.WrapF(s.health.Healthz))
	engine.GET("/readyz", gin.WrapF(s.health.Readyz))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rest := engine.Group("/api/v1")
	rest.GET("/users/:user_id/sessions", s.handleUserSessions)

	s.engine = engine
	return s
}

// Handler returns the full middleware stack ready for http.Server.
func (s *Server) Handler() http.Handler {
	return observe.Middleware(s.metrics)(s.engine)
}

// ─── WebSocket ───────────────────────────────────────────────────────────────

// wsEmitter adapts one WebSocket connection to the orchestrator's Emitter.
// The mutex serializes writes from the turn worker, timers and the watchdog.
type wsEmitter struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (e *wsEmitter) Emit(ctx context.Context, msg protocol.ServerMessage) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return e.ws.Write(ctx, websocket.MessageText, data)
}

var _ interview.Emitter = (*wsEmitter)(nil)

func (s *Server) handleWS(c *gin.Context) {
	ws, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOrigins,
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err, "remote", c.Request.RemoteAddr)
		return
	}
	defer ws.Close(websocket.StatusInternalError, "connection torn down")

	ctx := c.Request.Context()
	emitter := &wsEmitter{ws: ws}
	conn := s.orch.NewConn(ctx, emitter)
	defer conn.Close()

	s.log.Debug("websocket connected", "remote", c.Request.RemoteAddr)

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.log.Debug("websocket closed by client", "remote", c.Request.RemoteAddr)
			} else {
				s.log.Info("websocket read ended", "error", err, "remote", c.Request.RemoteAddr)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		msg, err := protocol.DecodeClient(data)
		if err != nil {
			s.log.Warn("undecodable client message", "error", err)
			if err := emitter.Emit(ctx, protocol.NewError("unrecognized message")); err != nil {
				return
			}
			continue
		}
		conn.Handle(ctx, msg)
	}
}

// ─── REST ────────────────────────────────────────────────────────────────────

// sessionSummaryJSON is the wire form of one history row.
type sessionSummaryJSON struct {
	SessionID      string    `json:"sessionId"`
	University     string    `json:"university"`
	Program        string    `json:"program"`
	StartedAt      time.Time `json:"startedAt"`
	CompletedAt    time.Time `json:"completedAt"`
	TotalQuestions int       `json:"totalQuestions"`
	AvgScore       float64   `json:"avgScore"`
}

func (s *Server) handleUserSessions(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session history is not enabled"})
		return
	}

	userID := c.Param("user_id")
	summaries, err := s.store.UserSessions(c.Request.Context(), userID)
	if err != nil {
		s.log.Error("history lookup failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session history"})
		return
	}

	out := make([]sessionSummaryJSON, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, sessionSummaryJSON{
			SessionID:      sum.SessionID,
			University:     sum.University,
			Program:        sum.Program,
			StartedAt:      sum.StartedAt,
			CompletedAt:    sum.CompletedAt,
			TotalQuestions: sum.TotalQuestions,
			AvgScore:       sum.AvgScore,
		})
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "sessions": out})
}
