package application

import (
	"context"
	"math/big"
	"time"

	"faucet-gateway/faucet/domain"
)

// Status é o retrato somente-leitura do faucet.
type Status struct {
	Token           domain.Token
	FaucetAddress   string
	Balance         *big.Int
	DripAmount      *big.Int
	Cooldown        time.Duration
	QuotaConfigured bool
	CaptchaReady    bool
	// Err preenchido quando a leitura de saldo (ou do endereço) falhou.
	Err error
}

// StatusService monta o Status. As flags de saúde vêm das mesmas capacidades
// entregues ao RateLimiter e ao verificador de captcha.
type StatusService struct {
	Chain      domain.Chain
	Token      domain.Token
	DripAmount *big.Int
	Limiter    *RateLimiter
	Cooldown   *CooldownTracker
	Captcha    domain.CaptchaVerifier
}

func (s StatusService) Status(ctx context.Context) Status {
	st := Status{
		Token:      s.Token,
		DripAmount: s.DripAmount,
		Cooldown:   s.Cooldown.Duration(),
	}
	if s.Limiter != nil {
		st.QuotaConfigured = s.Limiter.Configured()
	}
	if s.Captcha != nil {
		st.CaptchaReady = s.Captcha.Configured()
	}

	addr, err := s.Chain.FaucetAddress()
	if err != nil {
		st.Err = err
		return st
	}
	st.FaucetAddress = addr.Hex()

	bal, err := s.Chain.TokenBalance(ctx, addr)
	if err != nil {
		st.Err = err
		return st
	}
	st.Balance = bal
	return st
}
