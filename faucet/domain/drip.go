package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DripRequest é a entrada do pipeline já extraída do transporte.
type DripRequest struct {
	Address           string
	VerificationToken string
	Fingerprint       string
	ClientIP          string
}

type DripResult struct {
	Recipient common.Address
	TxHash    common.Hash
}

// DripRecord é um item do log de atividade recente. Não é ledger.
type DripRecord struct {
	IP          string    `json:"ip"`
	Address     string    `json:"address"`
	TxHash      string    `json:"txHash"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	At          time.Time `json:"at"`
}

type CaptchaResult struct {
	Success bool
	Errors  []string
}

// CaptchaVerifier é o colaborador externo de verificação humana.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) CaptchaResult
	Configured() bool
}
