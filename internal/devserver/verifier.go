package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SiteVerifyURL is the challenge provider's token validation endpoint
const SiteVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// ErrTokenInvalid is returned for tokens the verifier refuses
var ErrTokenInvalid = errors.New("verification token invalid")

// Verifier checks widget tokens
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// AcceptAll accepts every non-empty token. Only for local testing.
type AcceptAll struct{}

func (AcceptAll) Verify(_ context.Context, token, _ string) error {
	if strings.TrimSpace(token) == "" {
		return ErrTokenInvalid
	}
	return nil
}

// SiteVerify validates tokens against the provider with a secret key
type SiteVerify struct {
	Secret string
	URL    string
	Action string
	Client *http.Client
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
}

func (v SiteVerify) Verify(ctx context.Context, token, remoteIP string) error {
	endpoint := v.URL
	if endpoint == "" {
		endpoint = SiteVerifyURL
	}
	client := v.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	form := url.Values{}
	form.Set("secret", v.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("siteverify: status %d", resp.StatusCode)
	}

	var out siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("siteverify: decode response: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("%w: %s", ErrTokenInvalid, strings.Join(out.ErrorCodes, ","))
	}
	if v.Action != "" && out.Action != "" && out.Action != v.Action {
		return fmt.Errorf("%w: unexpected action %q", ErrTokenInvalid, out.Action)
	}
	return nil
}
