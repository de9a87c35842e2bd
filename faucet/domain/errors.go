package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrConfiguration indica erro de operação (ex: PRIVATE_KEY ausente). Nunca é re-tentado.
	ErrConfiguration = errors.New("faucet configuration error")
	// ErrWalletDry indica saldo do faucet abaixo do valor de drip.
	ErrWalletDry = errors.New("faucet token balance is insufficient")
	// ErrTransactionReverted indica transação minerada com status de falha.
	ErrTransactionReverted = errors.New("token transfer transaction reverted")
	// ErrSerializerClosed é retornado quando o serializer já foi encerrado.
	ErrSerializerClosed = errors.New("disbursement serializer is closed")

	// ErrZeroAddress e ErrContractRecipient são erros de destinatário (cliente).
	ErrZeroAddress       = &RecipientError{Message: "Zero address cannot receive faucet funds."}
	ErrContractRecipient = &RecipientError{Message: "Contract addresses are not eligible. Use an EOA wallet address."}
)

// RecipientError é um erro causado pelo endereço informado pelo cliente.
type RecipientError struct {
	Message string
}

func (e *RecipientError) Error() string { return e.Message }

func IsRecipientError(err error) bool {
	var re *RecipientError
	return errors.As(err, &re)
}

// ValidationError representa falha de validação sintática (estágio 1).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CaptchaError carrega os códigos de erro devolvidos pelo verificador.
type CaptchaError struct {
	Codes []string
}

func (e *CaptchaError) Error() string {
	return "captcha verification failed: " + strings.Join(e.Codes, ",")
}

// Motivos publicados na resposta HTTP.
const (
	ReasonCaptchaFailed          = "captcha_failed"
	ReasonIPRateLimited          = "ip_rate_limited"
	ReasonFingerprintRateLimited = "fingerprint_rate_limited"
	ReasonGlobalRateLimited      = "global_rate_limited"
	ReasonAddressCooldown        = "address_cooldown"
)

// RateLimitedError é a rejeição de uma das janelas deslizantes.
type RateLimitedError struct {
	Category   Category
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded, retry after %s", e.Category, e.RetryAfter)
}

func (e *RateLimitedError) Reason() string {
	switch e.Category {
	case CategoryIP:
		return ReasonIPRateLimited
	case CategoryFingerprint:
		return ReasonFingerprintRateLimited
	default:
		return ReasonGlobalRateLimited
	}
}

// CooldownError indica que o endereço ainda está em cooldown
// (ou que outro drip para ele está em andamento).
type CooldownError struct {
	Remaining time.Duration
	InFlight  bool
}

func (e *CooldownError) Error() string {
	if e.InFlight {
		return "a disbursement to this address is already in progress"
	}
	return fmt.Sprintf("address on cooldown for %s", e.Remaining)
}
