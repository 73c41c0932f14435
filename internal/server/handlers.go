package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/devblocker/devblocker/internal/auth"
	"github.com/devblocker/devblocker/internal/model"
	blockersvc "github.com/devblocker/devblocker/internal/service/blocker"
	commentsvc "github.com/devblocker/devblocker/internal/service/comment"
	notificationsvc "github.com/devblocker/devblocker/internal/service/notification"
	solutionsvc "github.com/devblocker/devblocker/internal/service/solution"
	usersvc "github.com/devblocker/devblocker/internal/service/user"
	"github.com/devblocker/devblocker/internal/storage"
)

// Handlers holds HTTP handler dependencies. Service fields are nil for
// the services this deployment does not run.
type Handlers struct {
	db                  *storage.DB
	jwtMgr              *auth.JWTManager
	blockerSvc          *blockersvc.Service
	solutionSvc         *solutionsvc.Service
	commentSvc          *commentsvc.Service
	notificationSvc     *notificationsvc.Service
	userSvc             *usersvc.Service
	logger              *slog.Logger
	startedAt           time.Time
	service             string
	version             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	DB                  *storage.DB
	JWTMgr              *auth.JWTManager
	BlockerSvc          *blockersvc.Service
	SolutionSvc         *solutionsvc.Service
	CommentSvc          *commentsvc.Service
	NotificationSvc     *notificationsvc.Service
	UserSvc             *usersvc.Service
	Logger              *slog.Logger
	Service             string
	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		db:                  d.DB,
		jwtMgr:              d.JWTMgr,
		blockerSvc:          d.BlockerSvc,
		solutionSvc:         d.SolutionSvc,
		commentSvc:          d.CommentSvc,
		notificationSvc:     d.NotificationSvc,
		userSvc:             d.UserSvc,
		logger:              d.Logger,
		startedAt:           time.Now(),
		service:             d.Service,
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pgStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		pgStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	resp := model.HealthResponse{
		Status:   status,
		Service:  h.service,
		Version:  h.version,
		Postgres: pgStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	}

	writeJSON(w, r, httpStatus, resp)
}

// writeInternalError logs the error and writes a generic 500 response.
func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, msg)
}

// writeServiceError maps known service errors to HTTP status codes,
// falling back to a logged 500.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "not found")
	case errors.Is(err, storage.ErrAlreadyAccepted):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "blocker already has an accepted solution")
	case errors.Is(err, storage.ErrTerminalStatus):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "blocker status is terminal")
	case errors.Is(err, storage.ErrDuplicateEmail):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "email already registered")
	case errors.Is(err, solutionsvc.ErrBlockerNotFound),
		errors.Is(err, commentsvc.ErrBlockerNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "blocker not found")
	case errors.Is(err, commentsvc.ErrParentMismatch):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, usersvc.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
	default:
		h.writeInternalError(w, r, "request failed", err)
	}
}

// pathUUID parses the named path value as a UUID, writing a 400 response
// on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// requireUser extracts the authenticated user ID from the request,
// writing a 401 response when the request carries no user identity.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "user identity required")
		return uuid.Nil, false
	}
	id := claims.UserID()
	if id == uuid.Nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "user identity required")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination reads limit and offset query parameters with bounds.
func parsePagination(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
