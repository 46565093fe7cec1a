// Package api exposes the transcription service and its credential pool over
// HTTP. Backpressure maps to 429 with a retry hint; credentials never appear
// unmasked in any response or log line.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mihaimyh/scribepool/pkg/media"
	"github.com/mihaimyh/scribepool/pkg/scribepool"
	"github.com/mihaimyh/scribepool/pkg/transcribe"
)

// Transcriber is the service surface the handlers call.
type Transcriber interface {
	TranscribeMedia(ctx context.Context, path string, opts transcribe.Options) (*transcribe.Result, error)
	TranscribeURL(ctx context.Context, url string, opts transcribe.Options) (*transcribe.Result, error)
	Playlist(ctx context.Context, url string) (*media.Playlist, error)
}

// PoolController is the scheduler surface the pool endpoints call.
type PoolController interface {
	Status() []scribepool.KeyStatus
	MinWaitTime() int
	Preferences() scribepool.Preferences
	SetPreferences(ctx context.Context, prefs scribepool.Preferences) error
}

// Config wires a Handler.
type Config struct {
	Service   Transcriber
	Scheduler PoolController

	// Store enables the credential management endpoint; nil disables it.
	Store scribepool.Store

	// PoolConfig validates credentials submitted through the API.
	PoolConfig scribepool.Config

	Logger scribepool.Logger

	// TempDir receives uploads before transcription (default: system temp).
	TempDir string

	// MaxUploadBytes bounds upload size (default 512MB).
	MaxUploadBytes int64
}

// Validate checks that required collaborators are present.
func (c Config) Validate() error {
	if c.Service == nil {
		return fmt.Errorf("service is required")
	}
	if c.Scheduler == nil {
		return fmt.Errorf("scheduler is required")
	}
	return nil
}

// Handler serves the HTTP API.
type Handler struct {
	cfg    Config
	logger scribepool.Logger
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = &scribepool.NoopLogger{}
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 512 << 20
	}
	return &Handler{cfg: cfg, logger: cfg.Logger}, nil
}

// Router builds the chi router with all routes mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/transcriptions", h.UploadTranscribe)
		r.Post("/transcriptions/url", h.TranscribeURL)
		r.Get("/playlist", h.Playlist)
		r.Route("/pool", func(r chi.Router) {
			r.Get("/status", h.PoolStatus)
			r.Put("/preferences", h.SetPreferences)
			r.Put("/credentials", h.SaveCredentials)
		})
	})
	return r
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// UploadTranscribe accepts a multipart media upload and transcribes it.
func (h *Handler) UploadTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	opts, err := optionsFromForm(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	// Spool to disk: ffmpeg needs a real path.
	tmp := filepath.Join(h.cfg.TempDir, uuid.NewString()+filepath.Ext(header.Filename))
	out, err := os.Create(tmp)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, fmt.Errorf("spool upload: %w", err))
		return
	}
	defer os.Remove(tmp)

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		h.writeError(w, http.StatusInternalServerError, fmt.Errorf("spool upload: %w", err))
		return
	}
	out.Close()

	h.logger.Info("transcribing upload",
		scribepool.Field{Key: "filename", Value: header.Filename},
		scribepool.Field{Key: "size_bytes", Value: header.Size},
	)

	result, err := h.cfg.Service.TranscribeMedia(r.Context(), tmp, opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// TranscribeURL downloads a video URL and transcribes its audio.
func (h *Handler) TranscribeURL(w http.ResponseWriter, r *http.Request) {
	var req transcribeURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	result, err := h.cfg.Service.TranscribeURL(r.Context(), req.URL, req.options())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Playlist lists the videos of a playlist URL.
func (h *Handler) Playlist(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("url parameter is missing"))
		return
	}

	pl, err := h.cfg.Service.Playlist(r.Context(), url)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playlistResponse{Playlist: pl, Count: len(pl.Videos)})
}

// PoolStatus reports every credential's window state, keys masked.
func (h *Handler) PoolStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Keys:           h.cfg.Scheduler.Status(),
		MinWaitSeconds: h.cfg.Scheduler.MinWaitTime(),
		Preferences:    h.cfg.Scheduler.Preferences(),
	})
}

// SetPreferences replaces the pool preferences.
func (h *Handler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs scribepool.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("parse preferences: %w", err))
		return
	}
	if err := h.cfg.Scheduler.SetPreferences(r.Context(), prefs); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// SaveCredentials validates and stores a new credential list. The pool picks
// it up on the next restart; live rebinding is deliberately out of scope.
func (h *Handler) SaveCredentials(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Store == nil {
		h.writeError(w, http.StatusNotImplemented, errors.New("no credential store configured"))
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}

	if err := scribepool.SaveCredentials(r.Context(), h.cfg.Store, h.cfg.PoolConfig, req.Keys); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, scribepool.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		h.writeError(w, status, err)
		return
	}

	h.logger.Info("credentials updated", scribepool.Field{Key: "count", Value: len(req.Keys)})
	writeJSON(w, http.StatusOK, map[string]int{"saved": len(req.Keys)})
}

// writeServiceError maps scheduler and provider failures onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusBadGateway

	var te *scribepool.Error
	if errors.As(err, &te) {
		resp.Suggestion = te.Suggestion
		resp.RetryAfterSeconds = te.WaitSeconds
		switch {
		case scribepool.IsBackpressure(err):
			status = http.StatusTooManyRequests
		case te.Status == 401 || te.Status == 403:
			status = http.StatusBadGateway // our key, not the caller's fault
		case !te.Retryable:
			status = http.StatusUnprocessableEntity
		}
	} else if errors.Is(err, context.Canceled) {
		status = 499 // client closed request
	}

	if resp.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfterSeconds))
	}
	h.logger.Warn("request failed",
		scribepool.Field{Key: "status", Value: status},
		scribepool.Field{Key: "error", Value: err.Error()},
	)
	writeJSON(w, status, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.logger.Warn("request rejected",
		scribepool.Field{Key: "status", Value: status},
		scribepool.Field{Key: "error", Value: err.Error()},
	)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func optionsFromForm(r *http.Request) (transcribe.Options, error) {
	opts := transcribe.Options{
		Model:    r.FormValue("model"),
		Language: r.FormValue("language"),
		Prompt:   r.FormValue("prompt"),
	}
	if v := r.FormValue("temperature"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 || t > 1 {
			return opts, fmt.Errorf("temperature must be a number between 0 and 1")
		}
		opts.Temperature = t
	}
	opts.WordTimestamps = r.FormValue("word_timestamps") == "true"
	opts.Translate = r.FormValue("translate") == "true"
	return opts, nil
}
