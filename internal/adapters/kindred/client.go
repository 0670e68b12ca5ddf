// internal/adapters/kindred/client.go
package kindred

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ski_homes/internal/adapters/observability"
	"ski_homes/internal/domain"
)

const (
	service       = "kindred"
	maxBody       = 8 << 20
	thumbWidth    = 720
	clientName    = "Web"
	clientVersion = "1.929.3"
	siteOrigin    = "https://livekindred.com"
	loginPath     = "/explore"
)

// Client speaks the marketplace's GraphQL protocol. One call is one attempt;
// retry policy belongs to the caller.
type Client struct {
	endpoint string
	hc       *http.Client
	schemas  map[string]*jsonschema.Schema
}

func New(endpoint string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("marketplace endpoint is required")
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Client{
		endpoint: endpoint,
		hc:       &http.Client{Timeout: timeout},
		schemas:  schemas,
	}, nil
}

// ---- Public API ----

func (c *Client) SendOTP(ctx context.Context, email string) (domain.OTPChallenge, error) {
	var out struct {
		Start struct {
			Mode   string `json:"mode"`
			Length *int   `json:"length"`
		} `json:"startEmailLoginUser"`
	}
	vars := map[string]any{"email": email, "path": loginPath}
	if err := c.post(ctx, "sendMagicLinkOrOTP", mutSendEmail, vars, "", schemaStartLogin, &out); err != nil {
		return domain.OTPChallenge{}, err
	}
	ch := domain.OTPChallenge{Mode: out.Start.Mode}
	if out.Start.Length != nil {
		ch.Length = *out.Start.Length
	}
	return ch, nil
}

func (c *Client) VerifyOTP(ctx context.Context, email, code string) (domain.TokenPair, error) {
	var out struct {
		Finish tokenDTO `json:"finishEmailLoginUser"`
	}
	vars := map[string]any{"deviceId": nil, "email": email, "emailToken": code}
	err := c.post(ctx, "FinishEmailLoginUser", mutFinishEmail, vars, "", schemaFinishLogin, &out)
	if errors.Is(err, domain.ErrUpstreamRejected) || errors.Is(err, domain.ErrAuthRejected) {
		return domain.TokenPair{}, fmt.Errorf("%w: %w", domain.ErrInvalidOTP, err)
	}
	if err != nil {
		return domain.TokenPair{}, err
	}
	return out.Finish.pair(), nil
}

func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	var out struct {
		Refresh tokenDTO `json:"refreshUserToken"`
	}
	vars := map[string]any{"refreshToken": refreshToken}
	err := c.post(ctx, "refreshUserToken", mutRefreshToken, vars, "", schemaRefresh, &out)
	if errors.Is(err, domain.ErrUpstreamRejected) || errors.Is(err, domain.ErrAuthRejected) {
		return domain.TokenPair{}, fmt.Errorf("%w: %w", domain.ErrRefreshRejected, err)
	}
	if err != nil {
		return domain.TokenPair{}, err
	}
	return out.Refresh.pair(), nil
}

// ValidateToken succeeds when the marketplace recognises the caller.
func (c *Client) ValidateToken(ctx context.Context, accessToken string) error {
	var out struct {
		Me *struct {
			ID string `json:"id"`
		} `json:"me"`
	}
	if err := c.post(ctx, "me", queryMe, map[string]any{}, accessToken, schemaMe, &out); err != nil {
		return err
	}
	if out.Me == nil {
		return fmt.Errorf("%w: no user for token", domain.ErrAuthRejected)
	}
	return nil
}

// SearchHomes fetches one page of homes inside q.Polygon. page is the zero-based cursor.
func (c *Client) SearchHomes(ctx context.Context, q domain.HomesQuery, accessToken string, page int) (domain.HomesPage, error) {
	var out exploreDTO
	if err := c.post(ctx, "exploreList", queryExploreList, exploreVariables(q, page), accessToken, schemaExploreList, &out); err != nil {
		return domain.HomesPage{}, err
	}
	res := out.Result
	homes := make([]domain.Listing, 0, len(res.HomeRecs))
	for _, rec := range res.HomeRecs {
		l, err := rec.Home.listing()
		if err != nil {
			return domain.HomesPage{}, fmt.Errorf("%w: home %s: %v", domain.ErrMalformedResponse, rec.Home.ID, err)
		}
		homes = append(homes, l)
	}
	hp := domain.HomesPage{Homes: homes}
	if res.HasMore {
		next := page + 1
		hp.Next = &next
	}
	return hp, nil
}

// ---- Internals ----

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type gqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// post performs one GraphQL call, classifies failures into the domain taxonomy,
// validates data against the named schema and decodes it into out.
func (c *Client) post(ctx context.Context, op, query string, vars map[string]any, token, schema string, out any) error {
	body, err := json.Marshal(gqlRequest{OperationName: op, Query: query, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	setHeaders(req, token)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(service, op, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// includes client timeouts
		return fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, op, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal(service, op, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s: status %d", domain.ErrAuthRejected, op, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s: status %d", domain.ErrUpstreamUnavailable, op, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", domain.ErrUpstreamUnavailable, op, err)
	}
	var gr gqlResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%w: %s: status %d: %s", domain.ErrUpstreamRejected, op, resp.StatusCode, snippet(raw))
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedResponse, op, err)
	}
	if len(gr.Errors) > 0 {
		msg := joinMessages(gr.Errors)
		if isAuthError(gr.Errors) {
			return fmt.Errorf("%w: %s", domain.ErrAuthRejected, msg)
		}
		return fmt.Errorf("%w: %s", domain.ErrUpstreamRejected, msg)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s: status %d", domain.ErrUpstreamRejected, op, resp.StatusCode)
	}
	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		return fmt.Errorf("%w: %s: missing data", domain.ErrMalformedResponse, op)
	}

	var doc any
	if err := json.Unmarshal(gr.Data, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedResponse, op, err)
	}
	if s := c.schemas[schema]; s != nil {
		if err := s.Validate(doc); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrMalformedResponse, op, err)
		}
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedResponse, op, err)
	}
	return nil
}

func setHeaders(req *http.Request, token string) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apollographql-client-name", clientName)
	req.Header.Set("apollographql-client-version", clientVersion)
	req.Header.Set("Origin", siteOrigin)
	req.Header.Set("Referer", siteOrigin+"/")
	req.Header.Set("X-Locale", "en")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

var authCodes = map[string]bool{"UNAUTHENTICATED": true, "UNAUTHORIZED": true, "FORBIDDEN": true}

func isAuthError(errs []gqlError) bool {
	for _, e := range errs {
		if authCodes[strings.ToUpper(e.Extensions.Code)] {
			return true
		}
		low := strings.ToLower(e.Message)
		if strings.Contains(low, "unauthorized") || strings.Contains(low, "not authenticated") ||
			strings.Contains(low, "unauthenticated") || strings.Contains(low, "jwt expired") ||
			strings.Contains(low, "invalid token") {
			return true
		}
	}
	return false
}

func joinMessages(errs []gqlError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if m := strings.TrimSpace(e.Message); m != "" {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 {
		return "unknown upstream error"
	}
	return strings.Join(msgs, "; ")
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
