// Package botcheck implements the honeypot and CAPTCHA checks applied to
// public form submissions.
package botcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"leadrelay/internal/validation"
)

// TokenFields are the snake_cased payload keys a CAPTCHA token may arrive in.
var TokenFields = []string{
	"captcha_token",
	"cf_turnstile_response",
	"h_captcha_response",
	"g_recaptcha_response",
}

// HoneypotTripped reports whether the honeypot field carries any non-blank value.
func HoneypotTripped(fields map[string]any, field string) bool {
	v, ok := fields[field]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Token returns the first non-empty CAPTCHA token found in fields.
func Token(fields map[string]any) string {
	for _, k := range TokenFields {
		if s, ok := fields[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// siteverifyResponse is the shared response shape of Turnstile, hCaptcha and reCAPTCHA.
type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

// Verifier checks CAPTCHA tokens against a siteverify endpoint.
type Verifier struct {
	secret    string
	verifyURL string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
}

// NewVerifier creates a verifier. An empty secret yields a verifier that is disabled.
func NewVerifier(secret, verifyURL string) *Verifier {
	st := gobreaker.Settings{
		Name:     "captcha",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Verifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: 5 * time.Second},
		breaker:   gobreaker.NewCircuitBreaker(st),
	}
}

// Enabled reports whether tokens are verified at all.
func (v *Verifier) Enabled() bool {
	return v != nil && v.secret != ""
}

// Verify checks token for the given client IP. It returns nil when
// verification is disabled.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if token == "" {
		return ErrTokenMissing
	}

	result, err := v.breaker.Execute(func() (interface{}, error) {
		return v.call(ctx, token, remoteIP)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp := result.(*siteverifyResponse)
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(resp.ErrorCodes, ","))
	}
	return nil
}

// call performs one siteverify request. Only transport and protocol problems
// are returned as errors so rejected tokens do not trip the breaker.
func (v *Verifier) call(ctx context.Context, token, remoteIP string) (*siteverifyResponse, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if ip := net.ParseIP(remoteIP); ip != nil && !validation.IsPrivateIP(ip) {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("siteverify returned HTTP %d", resp.StatusCode)
	}

	var out siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode siteverify response: %w", err)
	}
	return &out, nil
}
