package application

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"faucet-gateway/faucet/domain"
)

// CooldownTracker controla a janela de exclusão por endereço após um drip.
//
// O registro só é gravado depois da confirmação on-chain e nunca é apagado:
// expira pelo TTL.
type CooldownTracker struct {
	quota    Quota
	duration time.Duration
	claimTTL time.Duration
	inFlight *xsync.MapOf[string, struct{}]

	// refreshEvery renova a reserva enquanto o drip está na fila ou aguardando
	// confirmação; o TTL só vence se o processo morrer.
	refreshEvery time.Duration
}

func NewCooldownTracker(quota Quota, duration, claimTTL time.Duration) *CooldownTracker {
	if claimTTL <= 0 {
		claimTTL = 5 * time.Minute
	}
	refresh := claimTTL / 3
	if refresh <= 0 {
		refresh = claimTTL
	}
	return &CooldownTracker{
		quota:    quota,
		duration: duration,
		claimTTL:     claimTTL,
		inFlight:     xsync.NewMapOf[string, struct{}](),
		refreshEvery: refresh,
	}
}

func (t *CooldownTracker) Duration() time.Duration { return t.duration }

// Remaining retorna 0 se não há cooldown ativo ou se o store não está configurado.
func (t *CooldownTracker) Remaining(ctx context.Context, addr common.Address) (time.Duration, error) {
	if !t.quota.enabled() {
		return 0, nil
	}
	ttl, err := t.quota.Store.TTL(ctx, cooldownKey(addr))
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Set sobrescreve qualquer registro anterior e reinicia o cooldown completo.
func (t *CooldownTracker) Set(ctx context.Context, addr common.Address, tx common.Hash) error {
	if !t.quota.enabled() {
		return nil
	}
	return t.quota.Store.SetWithTTL(ctx, cooldownKey(addr), tx.Hex(), t.duration)
}

// Claim reserva o endereço para um único drip em andamento.
//
// A reserva local vale sempre; com store configurado ela também vale entre
// instâncias (SET NX com TTL, renovado até o release). release pode ser
// chamado mais de uma vez.
func (t *CooldownTracker) Claim(ctx context.Context, addr common.Address) (release func(), ok bool, err error) {
	key := domain.AddressKey(addr)
	if _, loaded := t.inFlight.LoadOrStore(key, struct{}{}); loaded {
		return nil, false, nil
	}
	if !t.quota.enabled() {
		return t.releaser(key, ""), true, nil
	}

	id := uuid.NewString()
	ok, err = t.quota.Store.SetNX(ctx, claimKey(addr), id, t.claimTTL)
	if err != nil || !ok {
		t.inFlight.Delete(key)
		return nil, false, err
	}
	return t.releaser(key, id), true, nil
}

// ClaimTTL é também a dica de retry para quem perde a disputa pelo endereço.
func (t *CooldownTracker) ClaimTTL() time.Duration { return t.claimTTL }

func (t *CooldownTracker) releaser(key, id string) func() {
	var once sync.Once
	stop := make(chan struct{})
	if id != "" {
		go t.keepClaim(key, id, stop)
	}
	return func() {
		once.Do(func() {
			close(stop)
			if id != "" {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = t.quota.Store.DeleteIfEquals(ctx, "drip:inflight:"+key, id)
			}
			t.inFlight.Delete(key)
		})
	}
}

func (t *CooldownTracker) keepClaim(key, id string, stop <-chan struct{}) {
	ticker := time.NewTicker(t.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			ok, err := t.quota.Store.ExpireIfEquals(ctx, "drip:inflight:"+key, id, t.claimTTL)
			cancel()
			if err == nil && !ok {
				// a chave expirou ou mudou de dono; não há o que renovar.
				return
			}
		}
	}
}

func cooldownKey(addr common.Address) string { return "cooldown:" + domain.AddressKey(addr) }

func claimKey(addr common.Address) string { return "drip:inflight:" + domain.AddressKey(addr) }
