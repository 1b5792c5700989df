package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wellmind/authkit"
	"github.com/wellmind/authkit/identity"
	"github.com/wellmind/authkit/linker"
)

type server struct {
	engine   *authkit.Engine
	registry *prometheus.Registry
	log      zerolog.Logger
}

func newServer(engine *authkit.Engine, registry *prometheus.Registry, log zerolog.Logger) *server {
	return &server{engine: engine, registry: registry, log: log}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.clientIP)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
		r.Get("/validate", s.handleValidate)
		r.Post("/link", s.handleLink)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

// clientIP attaches the remote address to the request context so the engine
// can throttle per IP.
func (s *server) clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(authkit.WithClientIP(r.Context(), host)))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"identity"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(result))
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	result, err := s.engine.Refresh(r.Context(), raw)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(result))
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	if err := s.engine.Logout(r.Context(), raw); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleValidate(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	info, err := s.engine.Validate(r.Context(), raw)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity_id": info.IdentityID.String(),
		"role":        string(info.Role),
		"session_id":  info.SessionID,
		"expires_at":  info.ExpiresAt,
	})
}

type linkRequest struct {
	Provider      string     `json:"provider"`
	ProviderID    string     `json:"provider_id"`
	ProviderEmail string     `json:"provider_email"`
	AccessToken   string     `json:"access_token"`
	RefreshToken  string     `json:"refresh_token"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// handleLink finishes an OAuth callback: merge the provider identity into an
// account and hand back a first-party token. When the caller presents a
// valid bearer token, the link lands on that account.
func (s *server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	linkReq := linker.Request{
		Provider:      req.Provider,
		ProviderID:    req.ProviderID,
		ProviderEmail: req.ProviderEmail,
		AccessToken:   req.AccessToken,
		RefreshToken:  req.RefreshToken,
		ExpiresAt:     req.ExpiresAt,
	}

	if raw := bearerToken(r); raw != "" {
		info, err := s.engine.Validate(r.Context(), raw)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		linkReq.Existing = &identity.Identity{ID: info.IdentityID}
	}

	result, err := s.engine.LinkProvider(r.Context(), linkReq)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(result))
}

func (s *server) writeEngineError(w http.ResponseWriter, err error) {
	var limited *authkit.RateLimitedError
	switch {
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", strconv.Itoa(int(limited.ResetIn.Seconds())+1))
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, authkit.ErrInvalidCredentials),
		errors.Is(err, authkit.ErrTokenExpired),
		errors.Is(err, authkit.ErrTokenRevoked),
		errors.Is(err, authkit.ErrTokenInvalidSignature):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, authkit.ErrAccountInactive):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, authkit.ErrAlreadyLinkedToOther):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, authkit.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		s.log.Error().Err(err).Msg("unclassified engine error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func loginResponse(result *authkit.LoginResult) tokenResponse {
	resp := tokenResponse{
		Token:     result.Token,
		ExpiresAt: result.Session.ExpiresAt,
	}
	resp.Identity.ID = result.Identity.ID.String()
	resp.Identity.Email = result.Identity.Email
	resp.Identity.Role = string(result.Identity.Role)
	return resp
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
