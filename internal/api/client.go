package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"codeberg.org/snonux/lingogate/internal/metrics"
	"codeberg.org/snonux/lingogate/internal/pass"
)

const (
	// PassHeader carries the server-issued pass in both directions
	PassHeader = "X-Turnstile-Pass"

	// DefaultTokenHeader is used for widget tokens when the server names none
	DefaultTokenHeader = "CF-Turnstile-Token"

	// DefaultBaseURL is the API base when nothing is configured
	DefaultBaseURL = "http://localhost:8080"

	TranslatePath = "/v1/translate"
	SiteKeyPath   = "/_turnstile/sitekey"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// TranslateRequest is the JSON body of a translation call. A nil
// SourceLang asks the server to detect the language.
type TranslateRequest struct {
	Text       string  `json:"text"`
	SourceLang *string `json:"sourceLang"`
	TargetLang string  `json:"targetLang"`
}

// TranslateResponse is the JSON body of a successful translation
type TranslateResponse struct {
	SourceLang     string `json:"sourceLang"`
	TargetLang     string `json:"targetLang"`
	TranslatedText string `json:"translatedText"`
}

// SiteKeyResponse configures the widget and the token header
type SiteKeyResponse struct {
	SiteKey    string `json:"siteKey"`
	HeaderName string `json:"headerName"`
}

// Proof tells the client how to attach a widget token
type Proof struct {
	HeaderName string
	Token      func() string
}

// problem is the error body the service returns for rejected proofs
type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Config holds client settings
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	// Breaker settings; zero values pick sensible defaults
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client talks to the translation service
type Client struct {
	baseURL    string
	httpClient *http.Client
	passes     *pass.Store
	breaker    *gobreaker.CircuitBreaker
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a client writing received passes into passes
func NewClient(cfg Config, passes *pass.Store) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	if passes == nil {
		passes = pass.NewStore()
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		passes:     passes,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
	}

	failures := cfg.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "translate",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only transport errors and 5xx answers count against the backend.
		// Calls the caller gave up on say nothing about its health.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if err == nil || errors.Is(err, errAborted) || errors.Is(err, context.Canceled) {
				return true
			}
			if errors.As(err, &se) {
				return se.StatusCode != 0 && se.StatusCode < http.StatusInternalServerError
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("breaker.state", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return c
}

// BaseURL returns the service base URL without trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SiteKey fetches the widget site key and token header name
func (c *Client) SiteKey(ctx context.Context) (*SiteKeyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+SiteKeyPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch turnstile site key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch turnstile site key: status %d", resp.StatusCode)
	}

	var out SiteKeyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode site key response: %w", err)
	}
	return &out, nil
}

// Translate performs one translation call. The pass wins over the widget
// token; without either the request is still sent and the server decides.
func (c *Client) Translate(ctx context.Context, body TranslateRequest, proof Proof) (*TranslateResponse, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.translate(ctx, body, proof)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.Translate(metrics.OutcomeFailed)
			return nil, failed(0, "translation service temporarily unavailable", err)
		}
		return nil, err
	}
	return out.(*TranslateResponse), nil
}

func (c *Client) translate(ctx context.Context, body TranslateRequest, proof Proof) (*TranslateResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+TranslatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.attachProof(req, proof)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Translate(metrics.OutcomeFailed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, failed(0, fmt.Sprintf("request aborted: %v", ctxErr), errors.Join(errAborted, ctxErr, err))
		}
		return nil, failed(0, fmt.Sprintf("request failed: %v", err), err)
	}
	defer resp.Body.Close()

	if issued := resp.Header.Get(PassHeader); issued != "" {
		c.passes.Set(issued)
		c.metrics.Pass("issued")
		c.log.Debug("pass.issued")
	}

	if IsVerificationStatus(resp.StatusCode) {
		c.passes.Clear()
		c.metrics.Pass("cleared")
		c.metrics.Translate(metrics.OutcomeRejected)
		msg := problemMessage(resp)
		c.log.Info("translate.rejected", "status", resp.StatusCode, "message", msg)
		return nil, rejected(resp.StatusCode, msg)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.Translate(metrics.OutcomeFailed)
		msg := bodyText(resp)
		c.log.Warn("translate.failed", "status", resp.StatusCode, "message", msg)
		return nil, failed(resp.StatusCode, msg, nil)
	}

	var out TranslateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		c.metrics.Translate(metrics.OutcomeFailed)
		return nil, failed(resp.StatusCode, fmt.Sprintf("decode translate response: %v", err), err)
	}
	c.metrics.Translate(metrics.OutcomeSuccess)
	return &out, nil
}

func (c *Client) attachProof(req *http.Request, proof Proof) {
	if p, ok := c.passes.Get(); ok {
		req.Header.Set(PassHeader, p)
		return
	}
	if proof.Token == nil {
		return
	}
	if token := proof.Token(); token != "" {
		name := proof.HeaderName
		if name == "" {
			name = DefaultTokenHeader
		}
		req.Header.Set(name, token)
	}
}

// problemMessage extracts title, then detail, then a status fallback
func problemMessage(resp *http.Response) string {
	var p problem
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&p); err == nil {
		if p.Title != "" {
			return p.Title
		}
		if p.Detail != "" {
			return p.Detail
		}
	}
	return statusFallback(resp.StatusCode)
}

func bodyText(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return statusFallback(resp.StatusCode)
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return statusFallback(resp.StatusCode)
}
