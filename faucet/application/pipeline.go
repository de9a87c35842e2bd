package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"faucet-gateway/faucet/domain"
)

// Disburser é o contrato do Serializer visto pelo pipeline.
type Disburser interface {
	Disburse(ctx context.Context, to common.Address) (common.Hash, error)
}

// CodeChecker detecta contas de contrato (bytecode no endereço).
type CodeChecker interface {
	HasCode(ctx context.Context, addr common.Address) (bool, error)
}

// Pipeline é o portão ordenado de autorização de um drip.
//
// A ordem dos estágios é parte do comportamento: ela define qual quota é
// consumida por uma requisição rejeitada. Não reordenar.
type Pipeline struct {
	Captcha   domain.CaptchaVerifier
	Limiter   *RateLimiter
	Cooldown  *CooldownTracker
	Code      CodeChecker
	Disburser Disburser
	Activity  *ActivityLog
	Stats     domain.StatsStore
	Log       logrus.FieldLogger

	// PostTimeout limita as escritas best-effort após um drip confirmado.
	PostTimeout time.Duration
}

func (p *Pipeline) Drip(ctx context.Context, req domain.DripRequest) (domain.DripResult, error) {
	res, err := p.drip(ctx, req)
	p.record(ctx, outcomeOf(err))
	return res, err
}

func (p *Pipeline) drip(ctx context.Context, req domain.DripRequest) (domain.DripResult, error) {
	// 1) validação sintática
	rawAddr := strings.TrimSpace(req.Address)
	token := strings.TrimSpace(req.VerificationToken)
	if rawAddr == "" || token == "" {
		return domain.DripResult{}, &domain.ValidationError{Message: "Address and verification token are required."}
	}
	if !domain.IsValidAddress(rawAddr) {
		return domain.DripResult{}, &domain.ValidationError{Message: "Invalid Ethereum address."}
	}
	ip := strings.TrimSpace(req.ClientIP)
	if ip == "" {
		ip = "unknown"
	}
	fingerprint := strings.TrimSpace(req.Fingerprint)
	if fingerprint == "" {
		fingerprint = "ip:" + ip
	}
	log := p.logger().WithFields(logrus.Fields{"ip": ip, "address": rawAddr})

	// 2) captcha
	if p.Captcha == nil {
		return domain.DripResult{}, &domain.CaptchaError{Codes: []string{"captcha_not_configured"}}
	}
	if cr := p.Captcha.Verify(ctx, token, ip); !cr.Success {
		log.WithField("codes", cr.Errors).Info("captcha rejected")
		return domain.DripResult{}, &domain.CaptchaError{Codes: cr.Errors}
	}

	// 3) e 4) janelas por ip e por dispositivo
	if err := p.checkWindow(ctx, domain.CategoryIP, ip); err != nil {
		return domain.DripResult{}, err
	}
	if err := p.checkWindow(ctx, domain.CategoryFingerprint, fingerprint); err != nil {
		return domain.DripResult{}, err
	}

	// 5) destinatário (forma e checksum já validados no estágio 1)
	recipient, err := domain.NormalizeAddress(rawAddr)
	if err != nil {
		return domain.DripResult{}, err
	}

	// 6) só EOA
	isContract, err := p.Code.HasCode(ctx, recipient)
	if err != nil {
		return domain.DripResult{}, fmt.Errorf("inspect recipient code: %w", err)
	}
	if isContract {
		return domain.DripResult{}, domain.ErrContractRecipient
	}

	// 7) reserva + cooldown. A reserva impede que duas requisições simultâneas
	// para o mesmo endereço passem daqui antes do cooldown ser gravado.
	release, ok, err := p.Cooldown.Claim(ctx, recipient)
	if err != nil {
		return domain.DripResult{}, fmt.Errorf("claim recipient: %w", err)
	}
	if !ok {
		return domain.DripResult{}, &domain.CooldownError{Remaining: p.Cooldown.ClaimTTL(), InFlight: true}
	}
	defer release()

	remaining, err := p.Cooldown.Remaining(ctx, recipient)
	if err != nil {
		return domain.DripResult{}, fmt.Errorf("read cooldown: %w", err)
	}
	if remaining > 0 {
		return domain.DripResult{}, &domain.CooldownError{Remaining: remaining}
	}

	// 8) janela global
	if err := p.checkWindow(ctx, domain.CategoryGlobal, domain.GlobalKey); err != nil {
		return domain.DripResult{}, err
	}

	// 9) desembolso. Daqui em diante o cancelamento do cliente não interrompe nada.
	ctx = context.WithoutCancel(ctx)
	tx, err := p.Disburser.Disburse(ctx, recipient)
	if err != nil {
		return domain.DripResult{}, err
	}

	p.afterDrip(ctx, log, domain.DripRecord{
		IP:          ip,
		Address:     recipient.Hex(),
		TxHash:      tx.Hex(),
		Fingerprint: fingerprint,
		At:          time.Now().UTC(),
	}, recipient, tx)

	log.WithField("tx", tx.Hex()).Info("drip sent")
	return domain.DripResult{Recipient: recipient, TxHash: tx}, nil
}

func (p *Pipeline) checkWindow(ctx context.Context, c domain.Category, key string) error {
	dec, err := p.Limiter.Check(ctx, c, key)
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return &domain.RateLimitedError{Category: c, RetryAfter: dec.RetryAfter}
	}
	return nil
}

// afterDrip grava cooldown e log. Falhas aqui não transformam o drip em erro.
func (p *Pipeline) afterDrip(ctx context.Context, log logrus.FieldLogger, rec domain.DripRecord, to common.Address, tx common.Hash) {
	timeout := p.PostTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.Cooldown.Set(ctx, to, tx); err != nil {
		log.WithError(err).Warn("cooldown write failed")
	}
	if p.Activity != nil {
		if err := p.Activity.Append(ctx, rec); err != nil {
			log.WithError(err).Warn("activity log append failed")
		}
	}
}

func (p *Pipeline) record(ctx context.Context, o domain.Outcome) {
	if p.Stats == nil {
		return
	}
	if err := p.Stats.Record(context.WithoutCancel(ctx), domain.StatsEvent{Outcome: o, At: time.Now()}); err != nil {
		p.logger().WithError(err).Debug("stats record failed")
	}
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

func outcomeOf(err error) domain.Outcome {
	var (
		ve *domain.ValidationError
		ce *domain.CaptchaError
		re *domain.RateLimitedError
		co *domain.CooldownError
	)
	switch {
	case err == nil:
		return domain.OutcomeDisbursed
	case errors.As(err, &ve):
		return domain.OutcomeInvalid
	case errors.As(err, &ce):
		return domain.OutcomeCaptcha
	case errors.As(err, &re):
		switch re.Category {
		case domain.CategoryIP:
			return domain.OutcomeIPLimited
		case domain.CategoryFingerprint:
			return domain.OutcomeFPLimited
		default:
			return domain.OutcomeGlobal
		}
	case errors.As(err, &co):
		return domain.OutcomeCooldown
	case domain.IsRecipientError(err):
		return domain.OutcomeRecipient
	case errors.Is(err, domain.ErrWalletDry):
		return domain.OutcomeWalletDry
	case errors.Is(err, domain.ErrConfiguration):
		return domain.OutcomeConfig
	case errors.Is(err, domain.ErrTransactionReverted):
		return domain.OutcomeReverted
	default:
		return domain.OutcomeUnavailable
	}
}
