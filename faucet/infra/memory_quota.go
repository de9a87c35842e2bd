package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"faucet-gateway/faucet/domain"
)

// MemoryQuotaStore implementa domain.QuotaStore em memória.
//
// Útil para testes e para uma única instância. Não é compartilhado entre processos.
type MemoryQuotaStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	values  map[string]memoryValue
	lists   map[string][]string
	now     func() time.Time

	cleanupEvery time.Duration
}

type memoryValue struct {
	value   string
	expires time.Time
}

type MemoryQuotaOption func(*MemoryQuotaStore)

// WithClock troca o relógio usado para TTL (testes).
func WithClock(now func() time.Time) MemoryQuotaOption {
	return func(s *MemoryQuotaStore) { s.now = now }
}

func WithMemoryCleanupEvery(d time.Duration) MemoryQuotaOption {
	return func(s *MemoryQuotaStore) { s.cleanupEvery = d }
}

func NewMemoryQuotaStore(opts ...MemoryQuotaOption) *MemoryQuotaStore {
	s := &MemoryQuotaStore{
		windows:      make(map[string][]time.Time),
		values:       make(map[string]memoryValue),
		lists:        make(map[string][]string),
		now:          time.Now,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.QuotaStore = (*MemoryQuotaStore)(nil)

func (s *MemoryQuotaStore) SlideWindow(_ context.Context, key string, rule domain.Rule, now time.Time) (domain.WindowResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hits := prune(s.windows[key], now.Add(-rule.Window))
	if len(hits) < rule.Limit {
		s.windows[key] = insertSorted(hits, now)
		return domain.WindowResult{Allowed: true}, nil
	}
	s.windows[key] = hits
	return domain.WindowResult{Allowed: false, ResetIn: hits[0].Add(rule.Window).Sub(now)}, nil
}

// prune mantém só os eventos dentro de [cutoff, agora]. hits está em ordem.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && hits[i].Before(cutoff) {
		i++
	}
	return hits[i:]
}

// insertSorted mantém hits em ordem mesmo quando chamadas concorrentes
// chegam ao lock com timestamps fora de ordem.
func insertSorted(hits []time.Time, at time.Time) []time.Time {
	i := sort.Search(len(hits), func(i int) bool { return hits[i].After(at) })
	hits = append(hits, time.Time{})
	copy(hits[i+1:], hits[i:])
	hits[i] = at
	return hits
}

func (s *MemoryQuotaStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.live(key)
	if !ok {
		return 0, nil
	}
	return v.expires.Sub(s.now()), nil
}

func (s *MemoryQuotaStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = memoryValue{value: value, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryQuotaStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.values[key] = memoryValue{value: value, expires: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryQuotaStore) DeleteIfEquals(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.live(key); ok && v.value == value {
		delete(s.values, key)
	}
	return nil
}

func (s *MemoryQuotaStore) ExpireIfEquals(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.live(key)
	if !ok || v.value != value {
		return false, nil
	}
	s.values[key] = memoryValue{value: value, expires: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryQuotaStore) PushCapped(_ context.Context, key, value string, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]string{value}, s.lists[key]...)
	if max > 0 && len(list) > max {
		list = list[:max]
	}
	s.lists[key] = list
	return nil
}

// List retorna uma cópia da lista (mais novo primeiro).
func (s *MemoryQuotaStore) List(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lists[key]...)
}

// Get retorna o valor vivo da chave.
func (s *MemoryQuotaStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.live(key)
	return v.value, ok
}

// live precisa ser chamado com mu travado.
func (s *MemoryQuotaStore) live(key string) (memoryValue, bool) {
	v, ok := s.values[key]
	if !ok {
		return memoryValue{}, false
	}
	if !s.now().Before(v.expires) {
		delete(s.values, key)
		return memoryValue{}, false
	}
	return v, true
}

// Cleanup remove janelas vazias e valores expirados.
// A maior janela configurada limita o que ainda pode contar; maxWindow cobre isso.
func (s *MemoryQuotaStore) Cleanup(maxWindow time.Duration) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, hits := range s.windows {
		hits = prune(hits, now.Add(-maxWindow))
		if len(hits) == 0 {
			delete(s.windows, k)
		} else {
			s.windows[k] = hits
		}
	}
	for k, v := range s.values {
		if !now.Before(v.expires) {
			delete(s.values, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryQuotaStore) StartJanitor(ctx context.Context, maxWindow time.Duration) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup(maxWindow)
			}
		}
	}()
}
