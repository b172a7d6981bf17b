package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"hourly-quiz-service/internal/app"
	"hourly-quiz-service/internal/domain"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type submitRequest struct {
	SessionID string          `json:"sessionId"`
	Answers   []domain.Answer `json:"answers"`
}

type userRequest struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

type userResponse struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
}

// Handler serves the quiz REST API.
type Handler struct {
	service *app.QuizService
	logger  *zap.Logger
	now     func() time.Time
}

func NewHandler(service *app.QuizService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger, now: time.Now}
}

// Mount registers the API routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/questions", h.GetQuestions)
		r.Post("/submit", h.Submit)
		r.Post("/user", h.SetUser)
		r.Get("/leaderboard", h.GetLeaderboard)
		r.Get("/toplist", h.GetLeaderboard)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

// NewRouter assembles the full HTTP surface: API, leaderboard stream and any
// extra routes such as /metrics. Middlewares run in the order given after the
// request id and logging middlewares.
func NewRouter(service *app.QuizService, logger *zap.Logger, extra func(chi.Router), mws ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	for _, mw := range mws {
		r.Use(mw)
	}

	NewHandler(service, logger).Mount(r)
	r.Get("/ws/leaderboard", NewWSHandler(service, logger).ServeWS)
	if extra != nil {
		extra(r)
	}
	return r
}

func (h *Handler) GetQuestions(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionId is required")
		return
	}

	assignment, err := h.service.GetAssignment(r.Context(), sessionID, h.now())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionId is required")
		return
	}
	if req.Answers == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "answers is required")
		return
	}

	result, err := h.service.Submit(r.Context(), req.SessionID, h.now(), req.Answers)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SetUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	session, err := h.service.SetDisplayName(r.Context(), req.SessionID, req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{SessionID: session.SessionID, DisplayName: session.DisplayName})
}

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidSession), errors.Is(err, domain.ErrInvalidDisplayName):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrNoActiveAssignment):
		return http.StatusConflict, "no_active_assignment"
	case errors.Is(err, domain.ErrUnknownQuestion):
		return http.StatusUnprocessableEntity, "unknown_question"
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusServiceUnavailable, "concurrent_update"
	case errors.Is(err, domain.ErrPoolExhausted):
		return http.StatusInternalServerError, "pool_exhausted"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}
