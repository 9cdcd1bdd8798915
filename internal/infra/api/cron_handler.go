package api

import (
	"context"
	"net/http"
	"strings"

	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/infra/logging"
)

// requireCronAuth accepts either "Authorization: Bearer <cron.secret>" or the
// API key in X-API-Key / ?api_key=.
func (s *Server) requireCronAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Cron.Secret == "" && s.opts.Cron.APIKey == "" {
			logging.With(r.Context(), s.log).Warn().Msg("cron endpoint called but no cron credentials are configured")
		}
		if s.cronAuthorized(r) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func (s *Server) cronAuthorized(r *http.Request) bool {
	if hdr := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		if secretEqual(strings.TrimSpace(hdr[7:]), s.opts.Cron.Secret) {
			return true
		}
	}
	key := r.Header.Get("X-API-Key")
	if key == "" {
		key = r.URL.Query().Get("api_key")
	}
	return secretEqual(key, s.opts.Cron.APIKey)
}

type sweepResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	*model.JobResult
}

func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	s.runSweep(w, r, s.svc.Expiry.ExpireDue)
}

func (s *Server) handleCheckPending(w http.ResponseWriter, r *http.Request) {
	s.runSweep(w, r, s.svc.Reconcile.CheckPending)
}

func (s *Server) runSweep(w http.ResponseWriter, r *http.Request, sweep func(context.Context) (*model.JobResult, error)) {
	res, err := sweep(r.Context())
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("sweep failed")
		writeError(w, statusFor(err), err.Error())
		return
	}
	switch {
	case res.AlreadyRunning:
		writeJSON(w, http.StatusOK, sweepResponse{Success: true, Message: "already running", JobResult: res})
	case res.TimedOut:
		writeJSON(w, http.StatusOK, sweepResponse{Success: true, Message: "time budget exhausted; remaining items left for the next run", JobResult: res})
	default:
		writeJSON(w, http.StatusOK, sweepResponse{Success: true, JobResult: res})
	}
}
