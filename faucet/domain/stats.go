package domain

import (
	"context"
	"time"
)

// Outcome é o resultado de uma requisição no pipeline (estágio que decidiu).
type Outcome string

const (
	OutcomeDisbursed   Outcome = "disbursed"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeCaptcha     Outcome = "captcha_failed"
	OutcomeIPLimited   Outcome = "ip_rate_limited"
	OutcomeFPLimited   Outcome = "fingerprint_rate_limited"
	OutcomeRecipient   Outcome = "recipient_rejected"
	OutcomeCooldown    Outcome = "address_cooldown"
	OutcomeGlobal      Outcome = "global_rate_limited"
	OutcomeWalletDry   Outcome = "wallet_dry"
	OutcomeConfig      Outcome = "configuration_error"
	OutcomeReverted    Outcome = "reverted"
	OutcomeUnavailable Outcome = "unavailable"
)

// StatsEvent representa a decisão final do pipeline para uma requisição.
//
// Cuidado com cardinalidade: nada de endereço ou IP aqui.
type StatsEvent struct {
	Outcome Outcome
	At      time.Time
}

// StatsStore é a estratégia de persistência de estatísticas.
// O pipeline trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
