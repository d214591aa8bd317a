package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scholarsrc/scholar-source/internal/core/job"
	"github.com/scholarsrc/scholar-source/internal/core/ratelimit"
	"github.com/scholarsrc/scholar-source/pkg/models"
	"github.com/scholarsrc/scholar-source/pkg/repository"
)

// Server はジョブ API の HTTP ハンドラ群です
type Server struct {
	jobs    *job.Service
	limiter *ratelimit.Limiter
}

// NewServer は新しい Server を作成します
func NewServer(jobs *job.Service, limiter *ratelimit.Limiter) *Server {
	return &Server{
		jobs:    jobs,
		limiter: limiter,
	}
}

// Routes は API のルーティングを返します
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/submit", s.handleSubmit)
	mux.HandleFunc("GET /api/status/{id}", s.handleStatus)
	mux.HandleFunc("POST /api/cancel/{id}", s.handleCancel)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return mux
}

// submitRequest は POST /api/submit のリクエストボディ
type submitRequest struct {
	models.CourseInputs
	BypassCache bool `json:"bypass_cache,omitempty"`
}

type submitResponse struct {
	JobID  uuid.UUID        `json:"job_id"`
	Status models.JobStatus `json:"status"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	// レート制限はジョブ作成より前に判定する（拒否された投稿はレコードを残さない）
	if s.limiter != nil {
		decision := s.limiter.Admit(r.Context(), clientKey(r))
		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "Rate limit exceeded. Please try again later.",
				"retry_after": retryAfter,
				"limit":       decision.Limit,
			})
			return
		}
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.jobs.Submit(r.Context(), req.CourseInputs, req.BypassCache)
	if err != nil {
		if errors.Is(err, job.ErrInvalidInputs) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("ジョブの作成に失敗しました", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:  id,
		Status: models.JobStatusPending,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	j, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		slog.Error("ジョブの取得に失敗しました", "jobID", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	status, err := s.jobs.Cancel(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		slog.Error("ジョブのキャンセルに失敗しました", "jobID", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id": id,
		"status": status,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return uuid.Nil, false
	}
	return id, true
}

// clientKey はレート制限に使うクライアント識別子を決定します
// プロキシ配下では X-Forwarded-For の先頭アドレス、直接接続では接続元 IP
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
