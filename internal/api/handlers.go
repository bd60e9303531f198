package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"reelmerge/internal/adapters/localstorage"
	"reelmerge/internal/core/domain"
	rlog "reelmerge/internal/log"
)

const maxRequestBody = 1 << 20

// videoInput accepts both the plain shape and the Reddit listing shape, where
// the stream locator sits under secure_media.reddit_video.hls_url.
type videoInput struct {
	Title         string `json:"title"`
	RemoteLocator string `json:"remote_locator,omitempty"`
	URL           string `json:"url,omitempty"`
	SecureMedia   *struct {
		RedditVideo *struct {
			HLSURL string `json:"hls_url"`
		} `json:"reddit_video"`
	} `json:"secure_media,omitempty"`
}

func (v videoInput) locator() string {
	if v.RemoteLocator != "" {
		return v.RemoteLocator
	}
	if v.SecureMedia != nil && v.SecureMedia.RedditVideo != nil {
		return v.SecureMedia.RedditVideo.HLSURL
	}
	return ""
}

type mergeRequest struct {
	Mode   string       `json:"mode,omitempty"`
	Videos []videoInput `json:"videos"`
}

type excludedClip struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

type mergeResponse struct {
	Success       bool           `json:"success"`
	JobID         string         `json:"job_id"`
	Message       string         `json:"message"`
	IncludedCount int            `json:"included_count"`
	ExcludedCount int            `json:"excluded_count"`
	Strategy      string         `json:"strategy"`
	DownloadURL   string         `json:"download_url"`
	Excluded      []excludedClip `json:"excluded"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	mode, sources, err := s.parseBatch(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.jobs.RunJob(r.Context(), mode, sources)
	if err != nil {
		status, msg := jobFailure(err)
		s.logger.Error().Err(err).
			Str(rlog.FieldRequestID, middleware.GetReqID(r.Context())).
			Int("status", status).
			Msg("merge job failed")
		writeError(w, status, msg)
		return
	}

	resp := mergeResponse{
		Success:       true,
		JobID:         res.Job.ID,
		Message:       "Videos merged successfully",
		IncludedCount: res.Merge.IncludedCount,
		ExcludedCount: res.Merge.ExcludedCount,
		Strategy:      res.Merge.Strategy,
		DownloadURL:   s.downloadURL(r, res.Job.ID),
		Excluded:      make([]excludedClip, 0, len(res.Exclusions)),
	}
	for _, ex := range res.Exclusions {
		resp.Excluded = append(resp.Excluded, excludedClip{
			Index:  ex.Source.Index,
			Title:  ex.Source.Title,
			Stage:  string(ex.Stage),
			Reason: ex.Reason,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// jobFailure maps a job error to a status and a client-safe message. Tool
// stderr and workspace paths stay in the logs.
func jobFailure(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrEmptyBatch):
		return http.StatusUnprocessableEntity, domain.ErrEmptyBatch.Error()
	case errors.Is(err, domain.ErrMerge):
		return http.StatusInternalServerError, domain.ErrMerge.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// parseBatch rejects malformed batches before any work starts.
func (s *Server) parseBatch(req mergeRequest) (domain.MergeMode, []domain.VideoSource, error) {
	mode := s.cfg.DefaultMode
	if req.Mode != "" {
		m, err := domain.ParseMergeMode(req.Mode)
		if err != nil {
			return "", nil, err
		}
		mode = m
	}
	if len(req.Videos) == 0 {
		return "", nil, errors.New("no videos provided")
	}
	if s.cfg.MaxClips > 0 && len(req.Videos) > s.cfg.MaxClips {
		return "", nil, fmt.Errorf("maximum %d videos allowed", s.cfg.MaxClips)
	}

	sources := make([]domain.VideoSource, 0, len(req.Videos))
	for i, v := range req.Videos {
		loc := v.locator()
		if loc == "" {
			return "", nil, fmt.Errorf("video %d: missing stream locator", i)
		}
		if !isHTTPURL(loc) {
			return "", nil, fmt.Errorf("video %d: locator must be an http(s) URL", i)
		}
		sources = append(sources, domain.VideoSource{Title: v.Title, Locator: loc, Index: i})
	}
	return mode, sources, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *Server) downloadURL(r *http.Request, jobID string) string {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/download/" + jobID + localstorage.ArtifactExt
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	jobID := strings.TrimSuffix(name, localstorage.ArtifactExt)

	f, info, err := s.store.Open(jobID)
	if err != nil {
		if errors.Is(err, localstorage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		s.logger.Error().Err(err).Str(rlog.FieldJobID, jobID).Msg("failed to open artifact")
		writeError(w, http.StatusInternalServerError, "failed to open artifact")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+localstorage.ArtifactExt))
	http.ServeContent(w, r, jobID+localstorage.ArtifactExt, info.ModTime(), f)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Video Merger API",
		"version": s.cfg.Version,
		"endpoints": map[string]string{
			"POST /merge":            "Merge videos",
			"GET /download/{job_id}": "Download merged video",
			"GET /health":            "Health check",
			"GET /metrics":           "Prometheus metrics",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}
