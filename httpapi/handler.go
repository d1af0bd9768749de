// Package httpapi exposes the agent service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/kb-agent/memory"
	"github.com/SaiNageswarS/kb-agent/services"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type AgentService interface {
	Query(ctx context.Context, sessionID, text string, profile services.PromptProfile) (*services.AgentResponse, error)
	CreateSession(ctx context.Context, userID string) (string, error)
	GetSession(ctx context.Context, sessionID string) (*memory.Session, error)
}

type Handler struct {
	service AgentService
}

func NewHandler(service AgentService) *Handler {
	return &Handler{service: service}
}

// NewRouter wires the API routes behind the standard middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/query", h.Query)
		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions/{sessionID}", h.GetSession)
		r.Post("/sessions/{sessionID}/query", h.Query)
	})
}

type profileRequest struct {
	Tone           string `json:"tone"`
	IncludeHistory *bool  `json:"includeHistory"`
}

type queryRequest struct {
	Query   string          `json:"query"`
	Profile *profileRequest `json:"profile"`
}

func (q queryRequest) profile() services.PromptProfile {
	p := services.DefaultProfile()
	if q.Profile == nil {
		return p
	}
	if q.Profile.Tone != "" {
		p.Tone = q.Profile.Tone
	}
	if q.Profile.IncludeHistory != nil {
		p.IncludeHistory = *q.Profile.IncludeHistory
	}
	return p
}

type createSessionRequest struct {
	UserID string `json:"userId"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// Query answers a question. Without a sessionID path parameter a new session
// is started.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	resp, err := h.service.Query(r.Context(), sessionID, req.Query, req.profile())
	if err != nil {
		writeServiceError(w, sessionID, err)
		return
	}

	JSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	// The body is optional here.
	var req createSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.service.CreateSession(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, "", err)
		return
	}

	JSON(w, http.StatusCreated, createSessionResponse{SessionID: id})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, sessionID, err)
		return
	}

	JSON(w, http.StatusOK, session)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyQuery), errors.Is(err, services.ErrInvalidProfile):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, memory.ErrSessionNotFound):
		Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, services.ErrModelUnavailable):
		logger.Error("Model unavailable", zap.String("sessionId", sessionID), zap.Error(err))
		Error(w, http.StatusBadGateway, GenericErrorMessage)
	default:
		logger.Error("Request failed", zap.String("sessionId", sessionID), zap.Error(err))
		Error(w, http.StatusInternalServerError, GenericErrorMessage)
	}
}
