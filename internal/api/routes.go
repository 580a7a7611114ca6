// Package api serves the local control API for a running conversation session.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
	"github.com/satriahrh/schedula/internal/auth"
	"github.com/satriahrh/schedula/internal/websocket"
	"github.com/satriahrh/schedula/usecase"
)

const dateLayout = "2006-01-02"

// ScheduleLister lists events of a time range
type ScheduleLister interface {
	Events(ctx context.Context, r entities.TimeRange, date time.Time) ([]entities.ScheduleEvent, error)
}

// Deps are the collaborators of the control API. ControlSecret enables the
// bearer check when non-empty.
type Deps struct {
	Session       websocket.Controller
	Schedule      ScheduleLister
	Hub           *websocket.Hub
	ControlSecret []byte
}

type handler struct {
	session  websocket.Controller
	schedule ScheduleLister
	logger   *zap.Logger
	now      func() time.Time
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Deps, logger *zap.Logger) {
	h := &handler{
		session:  deps.Session,
		schedule: deps.Schedule,
		logger:   logger,
		now:      time.Now,
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "schedula",
		})
	})

	guard := requireControlToken(deps.ControlSecret, logger)

	// API v1 routes
	v1 := e.Group("/api/v1", guard)

	v1.GET("/session", h.getSession)
	v1.GET("/session/messages", h.getMessages)
	v1.POST("/session/messages", h.submitMessage)
	v1.POST("/session/microphone", h.toggleMicrophone)
	v1.POST("/session/speech", h.toggleSpeech)
	v1.POST("/session/history", h.loadHistory)

	v1.GET("/schedule", h.getSchedule)

	// WebSocket endpoint for session events
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(deps.Hub, c, logger)
	}, guard)
}

// requireControlToken validates the bearer token from the Authorization header
// or, for browsers opening a websocket, the token query parameter
func requireControlToken(secret []byte, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if len(secret) == 0 {
			return next
		}
		return func(c echo.Context) error {
			var token string
			authHeader := c.Request().Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
			if token == "" {
				token = c.QueryParam("token")
			}

			if token == "" {
				logger.Warn("Request rejected: missing token", zap.String("path", c.Path()))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "Control token is required in Authorization header",
				})
			}

			if _, err := auth.ValidateControlToken(secret, token); err != nil {
				logger.Warn("Request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired control token",
				})
			}
			return next(c)
		}
	}
}

func (h *handler) getSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.session.Snapshot())
}

func (h *handler) getMessages(c echo.Context) error {
	messages := h.session.Snapshot().Messages
	if messages == nil {
		messages = []entities.Message{}
	}
	return c.JSON(http.StatusOK, messages)
}

func (h *handler) submitMessage(c echo.Context) error {
	var req SubmitMessageRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("Failed to bind message request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	msg, err := h.session.SubmitMessage(c.Request().Context(), req.Content)
	if err != nil {
		return h.sessionError(c, err)
	}
	return c.JSON(http.StatusAccepted, msg)
}

func (h *handler) toggleMicrophone(c echo.Context) error {
	active, err := h.session.ToggleMicrophone(c.Request().Context())
	if err != nil {
		return h.sessionError(c, err)
	}
	return c.JSON(http.StatusOK, ToggleResponse{Active: active})
}

func (h *handler) toggleSpeech(c echo.Context) error {
	var req SpeechRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "Invalid request format",
			})
		}
	}

	active, err := h.session.ToggleSpeech(c.Request().Context(), req.Text)
	if err != nil {
		return h.sessionError(c, err)
	}
	return c.JSON(http.StatusOK, ToggleResponse{Active: active})
}

func (h *handler) loadHistory(c echo.Context) error {
	if err := h.session.LoadHistory(c.Request().Context()); err != nil {
		if errors.Is(err, usecase.ErrSessionClosed) || errors.Is(err, usecase.ErrSessionNotStarted) {
			return h.sessionError(c, err)
		}
		h.logger.Warn("History reload failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to load previous messages",
		})
	}
	return c.JSON(http.StatusOK, h.session.Snapshot())
}

func (h *handler) getSchedule(c echo.Context) error {
	r := entities.TimeRange(c.QueryParam("range"))
	if r == "" {
		r = entities.TimeRangeWeek
	}
	if !r.Valid() {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_range",
			Message: "Range must be one of day, week, month",
		})
	}

	date := h.now()
	if raw := c.QueryParam("date"); raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, time.Local)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_date",
				Message: "Date must be formatted as yyyy-mm-dd",
			})
		}
		date = parsed
	}

	start, end, err := usecase.Bounds(r, date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_range", Message: err.Error()})
	}

	events, err := h.schedule.Events(c.Request().Context(), r, date)
	if err != nil {
		if errors.Is(err, usecase.ErrNotAuthenticated) {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "not_authenticated",
				Message: "Sign in to view your schedule",
			})
		}
		h.logger.Error("Failed to query schedule", zap.String("range", string(r)), zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "schedule_failed",
			Message: "Failed to load events",
		})
	}
	if events == nil {
		events = []entities.ScheduleEvent{}
	}

	return c.JSON(http.StatusOK, ScheduleResponse{Range: r, Start: start, End: end, Events: events})
}

func (h *handler) sessionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrEmptyMessage):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty_message", Message: "Message content is required"})
	case errors.Is(err, repositories.ErrUnsupported):
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "unsupported", Message: err.Error()})
	case errors.Is(err, repositories.ErrPermissionDenied):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "permission_denied", Message: err.Error()})
	case errors.Is(err, usecase.ErrSessionClosed), errors.Is(err, usecase.ErrSessionNotStarted):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "session_unavailable", Message: err.Error()})
	}
	h.logger.Error("Session command failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
}
