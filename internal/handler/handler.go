package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/BuzzLyutic/shortlink/internal/service"
)

// Макс. размер тела запроса на создание
const maxBodyBytes = 1 << 20

// Наибольший ttl_seconds, который помещается в time.Duration
const maxTTLSeconds = int64(math.MaxInt64 / time.Second)

type Handler struct {
	service *service.Shortener
	logger  *slog.Logger
	limiter func(http.Handler) http.Handler
}

// Option настраивает Handler
type Option func(*Handler)

// WithCreateLimiter ограничивает частоту запросов на создание ссылок
func WithCreateLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.limiter = mw
	}
}

func New(svc *service.Shortener, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service: svc,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Метод регистрирует все пути к данному мультиплексеру
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	var create http.Handler = http.HandlerFunc(h.Create)
	if h.limiter != nil {
		create = h.limiter(create)
	}

	// API эндпоинты
	mux.Handle("POST /api/links", create)
	mux.HandleFunc("GET /api/links/{code}", h.Stats)
	mux.HandleFunc("DELETE /api/links/{code}", h.Delete)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /{code}", h.Redirect)
}

// Обрабатывает запросы POST /api/links
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}

	in := service.CreateRequest{
		URL:  req.URL,
		Code: req.Code,
	}
	if req.TTLSeconds != nil {
		if *req.TTLSeconds > maxTTLSeconds {
			h.handleServiceError(w, service.ErrInvalidTTL)
			return
		}
		ttl := time.Duration(*req.TTLSeconds) * time.Second
		in.TTL = &ttl
	}

	result, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, CreateResponse{
		Code:      result.Code,
		ShortURL:  result.ShortURL,
		TargetURL: result.TargetURL,
		CreatedAt: result.CreatedAt,
		ExpiresAt: result.ExpiresAt,
	})
}

// Обрабатывает запросы GET /{code}
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	targetURL, err := h.service.Resolve(r.Context(), code)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	// 307, чтобы браузер не кэшировал редирект и переходы учитывались
	http.Redirect(w, r, targetURL, http.StatusTemporaryRedirect)
}

// Обрабатывает запросы GET /api/links/{code}
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), r.PathValue("code"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatsResponse{
		Code:       stats.Code,
		VisitCount: stats.VisitCount,
		CreatedAt:  stats.CreatedAt,
		ExpiresAt:  stats.ExpiresAt,
		Expired:    stats.Expired,
	})
}

// Обрабатывает запросы DELETE /api/links/{code}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("code")); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Обрабатывает GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Error("storage ping failed", slog.Any("error", err))
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Данный метод отображает ошибки сервиса на HTTP ответы
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyURL):
		h.writeError(w, http.StatusBadRequest, "empty_url", "URL cannot be empty")
	case errors.Is(err, service.ErrInvalidURL):
		h.writeError(w, http.StatusBadRequest, "invalid_url", "Invalid URL format.")
	case errors.Is(err, service.ErrInvalidCodeFormat):
		h.writeError(w, http.StatusBadRequest, "invalid_code_format", err.Error())
	case errors.Is(err, service.ErrInvalidTTL):
		h.writeError(w, http.StatusBadRequest, "invalid_ttl", "ttl_seconds must be between 1 and 9223372036")
	case errors.Is(err, service.ErrCodeTaken):
		h.writeError(w, http.StatusConflict, "code_taken", "Requested short code is already taken")
	case errors.Is(err, service.ErrGenerationExhausted):
		h.logger.Error("short code space exhausted", slog.Any("error", err))
		h.writeError(w, http.StatusServiceUnavailable, "generation_exhausted", "Failed to generate short URL")
	case errors.Is(err, service.ErrCodeNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", "Short URL not found")
	case errors.Is(err, service.ErrExpired):
		h.writeError(w, http.StatusGone, "expired", "Short URL has expired")
	default:
		h.logger.Error("unexpected error", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// Метод записывает JSON ответ
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// Метод, записывающий сообщение об ошибке
func (h *Handler) writeError(w http.ResponseWriter, status int, errCode, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}
