// Package httpapi exposes the engine over JSON HTTP.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/caretrail/accesscore"
	"github.com/caretrail/accesscore/authz"
)

// Server is the HTTP layer over the engine.
type Server struct {
	mux    *http.ServeMux
	engine *accesscore.Engine
	db     *sql.DB
	logger zerolog.Logger
}

func New(engine *accesscore.Engine, db *sql.DB, logger zerolog.Logger) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		engine: engine,
		db:     db,
		logger: logger,
	}

	s.mux.HandleFunc("GET /healthz", s.healthz)
	s.mux.HandleFunc("GET /readyz", s.readyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("POST /v1/password-reset/request", s.passwordResetRequest)
	s.mux.HandleFunc("POST /v1/password-reset/confirm", s.passwordResetConfirm)

	s.mux.HandleFunc("POST /v1/two-factor/enroll", s.requireSession(s.twoFactorEnroll))
	s.mux.HandleFunc("POST /v1/two-factor/confirm", s.requireSession(s.twoFactorConfirm))
	s.mux.HandleFunc("POST /v1/two-factor/disable", s.requireSession(s.twoFactorDisable))

	s.mux.HandleFunc("GET /v1/audit", s.requireSession(s.auditQuery))

	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return withRequestContext(s.mux)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) passwordResetRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.engine.RequestPasswordReset(r.Context(), body.Email); err != nil {
		writeEngineError(w, err)
		return
	}
	// Deliberately identical for known and unknown identifiers.
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) passwordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.engine.ConfirmPasswordReset(r.Context(), body.Token, body.NewPassword); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) twoFactorEnroll(w http.ResponseWriter, r *http.Request) {
	sc := sessionFromRequest(r)

	provision, err := s.engine.BeginTwoFactorEnrollment(r.Context(), sc.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secret":       provision.SecretBase32,
		"uri":          provision.URI,
		"backup_codes": provision.BackupCodes,
	})
}

func (s *Server) twoFactorConfirm(w http.ResponseWriter, r *http.Request) {
	sc := sessionFromRequest(r)

	var body struct {
		Code string `json:"code"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.engine.ConfirmTwoFactorEnrollment(r.Context(), sc.UserID, body.Code); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

// twoFactorDisable disables two-factor for the caller, or for another
// user in the caller's tenant when user_id is set and policy allows it.
func (s *Server) twoFactorDisable(w http.ResponseWriter, r *http.Request) {
	sc := sessionFromRequest(r)

	var body struct {
		UserID   string `json:"user_id"`
		TenantID string `json:"tenant_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	targetUser := body.UserID
	if targetUser == "" {
		targetUser = sc.UserID
	}
	targetTenant := body.TenantID
	if targetTenant == "" {
		targetTenant = sc.TenantID
	}

	target := authz.Target{TenantID: targetTenant, OwnerUserID: targetUser}
	if err := s.engine.Authorize(r.Context(), sc, authz.OpTwoFactorManage, target); err != nil {
		writeEngineError(w, err)
		return
	}

	if err := s.engine.DisableTwoFactor(r.Context(), targetUser); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

func (s *Server) auditQuery(w http.ResponseWriter, r *http.Request) {
	sc := sessionFromRequest(r)

	q := r.URL.Query()
	filter := accesscore.AuditFilter{
		TenantID: q.Get("tenant_id"),
		UserID:   q.Get("user_id"),
		Action:   q.Get("action"),
		Category: q.Get("category"),
		Severity: q.Get("severity"),
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		filter.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid until timestamp")
			return
		}
		filter.Until = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	entries, err := s.engine.QueryAudit(r.Context(), sc, filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// Serve runs the HTTP server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
