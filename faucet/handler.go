package faucet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"faucet-gateway/faucet/application"
	"faucet-gateway/faucet/domain"
	"faucet-gateway/middleware/ratelimit"
)

const maxBodyBytes = 64 * 1024

type Dripper interface {
	Drip(ctx context.Context, req domain.DripRequest) (domain.DripResult, error)
}

type StatusReader interface {
	Status(ctx context.Context) application.Status
}

// API agrupa os handlers do faucet.
type API struct {
	Dripper    Dripper
	Status     StatusReader
	DripAmount string
	Symbol     string
	KeyFn      ratelimit.KeyFunc
	Log        logrus.FieldLogger
}

type dripBody struct {
	Address           string `json:"address"`
	TurnstileToken    string `json:"turnstileToken"`
	VerificationToken string `json:"verificationToken"`
	Fingerprint       string `json:"fingerprint"`
}

type dripResponse struct {
	Success    bool     `json:"success"`
	TxID       string   `json:"txId,omitempty"`
	TxHash     string   `json:"txHash,omitempty"`
	Amount     string   `json:"amount,omitempty"`
	Message    string   `json:"message"`
	Reason     string   `json:"reason,omitempty"`
	RetryAfter int      `json:"retryAfter,omitempty"`
	Details    []string `json:"details,omitempty"`
}

func (a *API) HandleDrip(w http.ResponseWriter, r *http.Request) {
	var body dripBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, dripResponse{Message: "Request body too large."})
			return
		}
		writeJSON(w, http.StatusBadRequest, dripResponse{Message: "Invalid JSON payload."})
		return
	}

	token := body.TurnstileToken
	if token == "" {
		token = body.VerificationToken
	}
	ip := a.keyFn()(r)

	res, err := a.Dripper.Drip(r.Context(), domain.DripRequest{
		Address:           body.Address,
		VerificationToken: token,
		Fingerprint:       body.Fingerprint,
		ClientIP:          ip,
	})
	if err != nil {
		status, resp := a.errorResponse(err)
		if resp.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
		}
		if status >= 500 {
			a.logger().WithError(err).WithField("ip", ip).Error("drip failed")
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, dripResponse{
		Success: true,
		TxID:    res.TxHash.Hex(),
		TxHash:  res.TxHash.Hex(),
		Amount:  a.DripAmount,
		Message: fmt.Sprintf("%s %s sent!", a.DripAmount, a.Symbol),
	})
}

// errorResponse traduz a taxonomia do domínio para status + corpo.
func (a *API) errorResponse(err error) (int, dripResponse) {
	var (
		ve *domain.ValidationError
		ce *domain.CaptchaError
		rl *domain.RateLimitedError
		cd *domain.CooldownError
		re *domain.RecipientError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, dripResponse{Message: ve.Message}
	case errors.As(err, &ce):
		return http.StatusForbidden, dripResponse{
			Message: "CAPTCHA verification failed.",
			Reason:  domain.ReasonCaptchaFailed,
			Details: ce.Codes,
		}
	case errors.As(err, &rl):
		return http.StatusTooManyRequests, dripResponse{
			Message:    rateLimitMessage(rl.Category),
			Reason:     rl.Reason(),
			RetryAfter: domain.RetryAfterSeconds(rl.RetryAfter),
		}
	case errors.As(err, &cd):
		msg := "This wallet is on cooldown."
		if cd.InFlight {
			msg = "A request for this wallet is already being processed."
		}
		return http.StatusTooManyRequests, dripResponse{
			Message:    msg,
			Reason:     domain.ReasonAddressCooldown,
			RetryAfter: domain.RetryAfterSeconds(cd.Remaining),
		}
	case errors.As(err, &re):
		return http.StatusBadRequest, dripResponse{Message: re.Message}
	case errors.Is(err, domain.ErrWalletDry):
		return http.StatusServiceUnavailable, dripResponse{Message: "Faucet wallet is currently dry. Please try again later."}
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusServiceUnavailable, dripResponse{Message: "Server faucet configuration is incomplete."}
	case errors.Is(err, domain.ErrTransactionReverted):
		return http.StatusServiceUnavailable, dripResponse{Message: "Token transfer transaction reverted."}
	default:
		return http.StatusServiceUnavailable, dripResponse{Message: "Unexpected server error."}
	}
}

func rateLimitMessage(c domain.Category) string {
	switch c {
	case domain.CategoryIP:
		return "Too many requests from your IP. Try again later."
	case domain.CategoryFingerprint:
		return "Too many requests from this device. Try again later."
	default:
		return "Faucet is currently busy. Please try again later."
	}
}

type statusChecks struct {
	RedisConfigured     bool `json:"redisConfigured"`
	TurnstileConfigured bool `json:"turnstileConfigured"`
}

type statusResponse struct {
	Success          bool         `json:"success"`
	Health           string       `json:"health"`
	Message          string       `json:"message,omitempty"`
	ChainID          int64        `json:"chainId"`
	ChainName        string       `json:"chainName"`
	FaucetAddress    string       `json:"faucetAddress,omitempty"`
	TokenAddress     string       `json:"tokenAddress"`
	TokenSymbol      string       `json:"tokenSymbol"`
	TokenDecimals    uint8        `json:"tokenDecimals"`
	FaucetBalance    string       `json:"faucetBalance,omitempty"`
	FaucetBalanceRaw string       `json:"faucetBalanceRaw,omitempty"`
	DripAmount       string       `json:"dripAmount"`
	CooldownSeconds  int64        `json:"cooldownSeconds"`
	Checks           statusChecks `json:"checks"`
}

func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st := a.Status.Status(r.Context())

	resp := statusResponse{
		ChainID:         st.Token.ChainID,
		ChainName:       st.Token.ChainName,
		FaucetAddress:   st.FaucetAddress,
		TokenAddress:    st.Token.Address.Hex(),
		TokenSymbol:     st.Token.Symbol,
		TokenDecimals:   st.Token.Decimals,
		DripAmount:      domain.FormatUnits(st.DripAmount, st.Token.Decimals),
		CooldownSeconds: int64(st.Cooldown.Seconds()),
		Checks: statusChecks{
			RedisConfigured:     st.QuotaConfigured,
			TurnstileConfigured: st.CaptchaReady,
		},
	}

	if st.Err != nil {
		a.logger().WithError(st.Err).Warn("status degraded")
		resp.Health = "degraded"
		resp.Message = st.Err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Success = true
	resp.Health = "ok"
	resp.FaucetBalance = domain.FormatUnits(st.Balance, st.Token.Decimals)
	resp.FaucetBalanceRaw = st.Balance.String()
	writeJSON(w, http.StatusOK, resp)
}

func HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) keyFn() ratelimit.KeyFunc {
	if a.KeyFn == nil {
		return ratelimit.ClientIP(false)
	}
	return a.KeyFn
}

func (a *API) logger() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
