package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"faucet-gateway/faucet/domain"
)

const DefaultTurnstileURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// TurnstileVerifier valida tokens do Cloudflare Turnstile.
// Nunca devolve erro: toda falha vira CaptchaResult{Success: false} com um código.
type TurnstileVerifier struct {
	secret   string
	siteKey  string
	endpoint string
	client   *http.Client
}

type TurnstileOption func(*TurnstileVerifier)

func WithTurnstileEndpoint(u string) TurnstileOption {
	return func(v *TurnstileVerifier) { v.endpoint = u }
}

func WithTurnstileClient(c *http.Client) TurnstileOption {
	return func(v *TurnstileVerifier) { v.client = c }
}

func NewTurnstileVerifier(secret, siteKey string, opts ...TurnstileOption) *TurnstileVerifier {
	v := &TurnstileVerifier{
		secret:   strings.TrimSpace(secret),
		siteKey:  strings.TrimSpace(siteKey),
		endpoint: DefaultTurnstileURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var _ domain.CaptchaVerifier = (*TurnstileVerifier)(nil)

// Configured exige as duas chaves: sem a site key o widget não renderiza.
func (v *TurnstileVerifier) Configured() bool {
	return v.secret != "" && v.siteKey != ""
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *TurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) domain.CaptchaResult {
	if v.secret == "" {
		return fail("turnstile_secret_not_configured")
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	form.Set("idempotency_key", uuid.NewString())
	if remoteIP != "" && remoteIP != "unknown" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fail(err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fail(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(fmt.Sprintf("http_%d", resp.StatusCode))
	}

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fail("invalid_siteverify_response")
	}
	if body.Success {
		return domain.CaptchaResult{Success: true}
	}
	if len(body.ErrorCodes) == 0 {
		return fail("turnstile_verification_failed")
	}
	return domain.CaptchaResult{Errors: body.ErrorCodes}
}

func fail(code string) domain.CaptchaResult {
	return domain.CaptchaResult{Errors: []string{code}}
}
