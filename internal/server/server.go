package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/devblocker/devblocker/internal/auth"
	blockersvc "github.com/devblocker/devblocker/internal/service/blocker"
	commentsvc "github.com/devblocker/devblocker/internal/service/comment"
	notificationsvc "github.com/devblocker/devblocker/internal/service/notification"
	solutionsvc "github.com/devblocker/devblocker/internal/service/solution"
	usersvc "github.com/devblocker/devblocker/internal/service/user"
	"github.com/devblocker/devblocker/internal/storage"
)

// Server is a devblocker HTTP server hosting one service's routes.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Handlers returns the underlying Handlers.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. Exactly the service fields for cfg.Service need to be set;
// the rest may be nil.
type ServerConfig struct {
	DB     *storage.DB
	JWTMgr *auth.JWTManager
	Logger *slog.Logger

	BlockerSvc      *blockersvc.Service
	SolutionSvc     *solutionsvc.Service
	CommentSvc      *commentsvc.Service
	NotificationSvc *notificationsvc.Service
	UserSvc         *usersvc.Service

	// Service selects which route group to register: blocker, solution,
	// comment, notification, or user.
	Service string

	ServiceToken        string
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with the configured service's routes.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		JWTMgr:              cfg.JWTMgr,
		BlockerSvc:          cfg.BlockerSvc,
		SolutionSvc:         cfg.SolutionSvc,
		CommentSvc:          cfg.CommentSvc,
		NotificationSvc:     cfg.NotificationSvc,
		UserSvc:             cfg.UserSvc,
		Logger:              cfg.Logger,
		Service:             cfg.Service,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	mux := http.NewServeMux()

	switch cfg.Service {
	case "blocker":
		registerBlockerRoutes(mux, h)
	case "solution":
		registerSolutionRoutes(mux, h)
	case "comment":
		registerCommentRoutes(mux, h)
	case "notification":
		registerNotificationRoutes(mux, h)
	case "user":
		registerUserRoutes(mux, h)
	}

	// Health (no auth).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, cfg.ServiceToken, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

func registerBlockerRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("POST /api/blockers", h.HandleCreateBlocker)
	mux.HandleFunc("GET /api/blockers", h.HandleListBlockers)
	mux.HandleFunc("GET /api/blockers/{blocker_id}", h.HandleGetBlocker)
	mux.HandleFunc("POST /api/blockers/{blocker_id}/resolve", h.HandleResolveBlocker)
	mux.HandleFunc("PUT /api/blockers/{blocker_id}/best-solution", h.HandleUpdateBestSolution)
}

func registerSolutionRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("POST /api/blockers/{blocker_id}/solutions", h.HandleCreateSolution)
	mux.HandleFunc("GET /api/blockers/{blocker_id}/solutions", h.HandleListSolutions)
	mux.HandleFunc("GET /api/solutions/{solution_id}", h.HandleGetSolution)
	mux.HandleFunc("POST /api/solutions/{solution_id}/upvote", h.HandleUpvoteSolution)
	mux.HandleFunc("POST /api/solutions/{solution_id}/accept", h.HandleAcceptSolution)
	mux.HandleFunc("GET /api/users/{user_id}/solutions/stats", h.HandleSolutionStats)
}

func registerCommentRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("POST /api/blockers/{blocker_id}/comments", h.HandleCreateComment)
	mux.HandleFunc("GET /api/blockers/{blocker_id}/comments", h.HandleListComments)
	mux.HandleFunc("GET /api/comments/{comment_id}", h.HandleGetComment)
}

func registerNotificationRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/notifications", h.HandleListNotifications)
	mux.HandleFunc("POST /api/notifications/{notification_id}/mark-read", h.HandleMarkNotificationRead)
	mux.HandleFunc("GET /api/notifications/unread-count", h.HandleUnreadCount)
}

func registerUserRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("POST /api/auth/register", h.HandleRegister)
	mux.HandleFunc("POST /api/auth/login", h.HandleLogin)
	mux.HandleFunc("GET /api/auth/me", h.HandleMe)
	mux.HandleFunc("GET /api/users/{user_id}", h.HandleGetProfile)
	mux.HandleFunc("PUT /api/users/{user_id}", h.HandleUpdateProfile)
	mux.HandleFunc("GET /api/users/{user_id}/reputation", h.HandleGetReputation)
	mux.HandleFunc("POST /api/users/{user_id}/reputation", h.HandleIncrementReputation)
	mux.HandleFunc("GET /api/users/{user_id}/reputation/history", h.HandleReputationHistory)
	mux.HandleFunc("GET /api/users/{user_id}/badges", h.HandleUserBadges)
	mux.HandleFunc("GET /api/badges", h.HandleListBadges)
	mux.HandleFunc("POST /api/badges", h.HandleCreateBadge)
	mux.HandleFunc("POST /api/teams", h.HandleCreateTeam)
	mux.HandleFunc("GET /api/teams", h.HandleListTeams)
	mux.HandleFunc("POST /api/teams/{code}/join", h.HandleJoinTeam)
	mux.HandleFunc("GET /api/teams/{code}/members", h.HandleTeamMembers)
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
