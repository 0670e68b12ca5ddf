// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"ski_homes/internal/app"
	"ski_homes/internal/domain"
)

const (
	headerRefreshToken = "X-Refresh-Token"
	headerAccessToken  = "X-Access-Token"
	maxRequestBody     = 1 << 20
)

type Authenticator interface {
	SendOTP(ctx context.Context, email string) (domain.OTPChallenge, error)
	VerifyOTP(ctx context.Context, email, code string) (domain.TokenPair, error)
	Validate(ctx context.Context, token string) error
	SessionFor(bearer, refresh string) *app.TokenManager
}

type Searcher interface {
	Search(ctx context.Context, c domain.SearchCriteria, tokens domain.TokenSource) (domain.SearchResult, error)
}

type Handlers struct {
	Auth    Authenticator
	Search  Searcher
	Catalog *app.Catalog
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.Post("/api/auth/send-otp", h.sendOTP)
	s.mux.Post("/api/auth/verify-otp", h.verifyOTP)
	s.mux.Get("/api/auth/validate", h.validate)
	s.mux.Get("/api/resorts", h.listResorts)
	s.mux.Get("/api/resorts/stats", h.resortStats)
	s.mux.Post("/api/search", h.search)
}

// ---- auth ----

func (h *Handlers) sendOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Email) == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	ch, err := h.Auth.SendOTP(r.Context(), in.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "mode": ch.Mode, "length": ch.Length})
}

func (h *Handlers) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.OTP) == "" {
		writeError(w, http.StatusBadRequest, "Email and OTP are required")
		return
	}
	pair, err := h.Auth.VerifyOTP(r.Context(), in.Email, in.OTP)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"accessToken":  pair.Access,
		"refreshToken": pair.Refresh,
	})
}

func (h *Handlers) validate(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false, "error": "No token provided"})
		return
	}
	if err := h.Auth.Validate(r.Context(), token); err != nil {
		log.Debug().Err(err).Msg("token validation failed")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// ---- resorts ----

func (h *Handlers) listResorts(w http.ResponseWriter, r *http.Request) {
	all := h.Catalog.All()
	out := resortsResponse{Regions: h.Catalog.Regions(), Resorts: make([]resortRecord, 0, len(all))}
	for _, res := range all {
		out.Resorts = append(out.Resorts, toResortRecord(res))
	}
	writeCached(w, r, out)
}

func (h *Handlers) resortStats(w http.ResponseWriter, r *http.Request) {
	all := h.Catalog.All()
	out := statsResponse{Regions: h.Catalog.Regions(), Resorts: make([]resortStatsRecord, 0, len(all))}
	for _, res := range all {
		out.Resorts = append(out.Resorts, toStatsRecord(res))
	}
	writeCached(w, r, out)
}

// ---- search ----

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	bearer := bearerToken(r)
	if bearer == "" {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	var in searchRequest
	if !decodeBody(w, r, &in) {
		return
	}
	crit, err := in.criteria()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tm := h.Auth.SessionFor(bearer, r.Header.Get(headerRefreshToken))
	res, err := h.Search.Search(r.Context(), crit, tm)
	if cur := tm.Current(); cur != "" && cur != bearer {
		w.Header().Set(headerAccessToken, cur)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(res))
}

// ---- helpers ----

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		writeError(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidCriteria):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthenticationRequired), errors.Is(err, domain.ErrAuthRejected):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidOTP), errors.Is(err, domain.ErrUpstreamRejected):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
	}
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached serves static catalog views with a weak ETag.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write cached body")
	}
}
