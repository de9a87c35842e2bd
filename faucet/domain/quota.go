package domain

import (
	"context"
	"time"
)

// QuotaStore é o store compartilhado com TTL usado por rate limit, cooldown e log.
//
// Cada operação precisa ser atômica no store: duas requisições concorrentes
// nunca podem observar "abaixo da capacidade" ao mesmo tempo.
type QuotaStore interface {
	// SlideWindow verifica e, se permitido, registra um evento em now.
	SlideWindow(ctx context.Context, key string, rule Rule, now time.Time) (WindowResult, error)

	// TTL retorna o tempo restante da chave, ou 0 se ela não existe.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// SetWithTTL sobrescreve a chave incondicionalmente.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX grava apenas se a chave não existe. Retorna false se já existia.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// DeleteIfEquals remove a chave só se o valor ainda for value.
	DeleteIfEquals(ctx context.Context, key, value string) error

	// ExpireIfEquals renova o TTL só se o valor ainda for value.
	ExpireIfEquals(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// PushCapped insere no início da lista e corta para no máximo max itens.
	PushCapped(ctx context.Context, key, value string, max int) error
}
