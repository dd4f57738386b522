package main

import (
	"encoding/json"
	"net/http"

	"github.com/luxfi/agentsync/agentsyncerr"
	"github.com/luxfi/agentsync/config"
	"github.com/luxfi/agentsync/ratelimit"
)

// rateLimitSidecar exposes the Limiter over HTTP, for out-of-process
// adapters that cannot link the Go package directly (spec §6's optional
// sidecar).
type rateLimitSidecar struct {
	limiter *ratelimit.Limiter
}

func newRateLimitSidecar(limiter *ratelimit.Limiter) *rateLimitSidecar {
	return &rateLimitSidecar{limiter: limiter}
}

func (s *rateLimitSidecar) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/check", s.handleCheck)
	mux.HandleFunc("/record", s.handleRecord)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/config", s.handleConfig)
	return mux
}

type checkRequest struct {
	Resource string `json:"resource"`
	ClientID string `json:"client_id"`
}

type checkResponse struct {
	Allowed bool              `json:"allowed"`
	Stats   *ratelimit.Stats  `json:"stats,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func (s *rateLimitSidecar) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, checkResponse{Error: "malformed request body"})
		return
	}
	allowed, stats, err := s.limiter.Check(req.Resource, req.ClientID)
	resp := checkResponse{Allowed: allowed, Stats: &stats}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type recordRequest struct {
	Resource string `json:"resource"`
	Success  bool   `json:"success"`
}

func (s *rateLimitSidecar) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.limiter.Record(req.Resource, req.Success)
	w.WriteHeader(http.StatusNoContent)
}

func (s *rateLimitSidecar) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resource := r.URL.Query().Get("resource")
	if resource == "" {
		writeJSON(w, http.StatusBadRequest, checkResponse{Error: "resource query parameter is required"})
		return
	}
	stats := s.limiter.StatsFor(resource)
	writeJSON(w, http.StatusOK, stats)
}

func (s *rateLimitSidecar) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var cfg config.RateLimit
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, checkResponse{Error: err.Error()})
		return
	}
	s.limiter.SetConfig(cfg)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusForKind maps the error taxonomy (spec §7) onto HTTP status codes
// for handlers that surface a classified error directly.
func statusForKind(err error) int {
	switch {
	case agentsyncerr.Is(err, agentsyncerr.RateLimited):
		return http.StatusTooManyRequests
	case agentsyncerr.Is(err, agentsyncerr.ParseError):
		return http.StatusBadRequest
	case agentsyncerr.Is(err, agentsyncerr.NotSupported):
		return http.StatusNotImplemented
	case agentsyncerr.Is(err, agentsyncerr.Conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
