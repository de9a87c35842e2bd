package application

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"faucet-gateway/faucet/domain"
)

var faucetAddr = common.HexToAddress("0x00000000000000000000000000000000000fa0cE")

// fakeChain simula a rede: nonce pendente cresce a cada envio e só volta a
// ficar "livre" quando WaitMined retorna.
type fakeChain struct {
	mu sync.Mutex

	keyErr     error
	balance    *big.Int
	balanceErr error
	contracts  map[common.Address]bool
	sendErr    error
	reverted   bool
	mineDelay  time.Duration

	pending   uint64
	nonces    []uint64
	sentTo    []common.Address
	inFlight  atomic.Int32
	overlaps  atomic.Int32
	sendCalls atomic.Int32
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balance:   big.NewInt(1_000_000_000),
		contracts: map[common.Address]bool{},
	}
}

var _ domain.Chain = (*fakeChain)(nil)

func (c *fakeChain) FaucetAddress() (common.Address, error) {
	if c.keyErr != nil {
		return common.Address{}, c.keyErr
	}
	return faucetAddr, nil
}

func (c *fakeChain) TokenBalance(context.Context, common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balanceErr != nil {
		return nil, c.balanceErr
	}
	return new(big.Int).Set(c.balance), nil
}

func (c *fakeChain) HasCode(_ context.Context, addr common.Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contracts[addr], nil
}

func (c *fakeChain) PendingNonce(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending, nil
}

func (c *fakeChain) SendTransfer(_ context.Context, to common.Address, amount *big.Int, nonce uint64) (common.Hash, error) {
	c.sendCalls.Add(1)
	if c.sendErr != nil {
		return common.Hash{}, c.sendErr
	}
	if c.inFlight.Add(1) > 1 {
		c.overlaps.Add(1)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if nonce != c.pending {
		c.inFlight.Add(-1)
		return common.Hash{}, errors.New("nonce too low")
	}
	c.pending++
	c.balance.Sub(c.balance, amount)
	c.nonces = append(c.nonces, nonce)
	c.sentTo = append(c.sentTo, to)
	return common.BigToHash(new(big.Int).SetUint64(nonce + 1)), nil
}

func (c *fakeChain) WaitMined(ctx context.Context, _ common.Hash) (bool, error) {
	defer c.inFlight.Add(-1)
	if c.mineDelay > 0 {
		select {
		case <-time.After(c.mineDelay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return !c.reverted, nil
}

func (c *fakeChain) sent() []common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]common.Address(nil), c.sentTo...)
}

type fakeCaptcha struct {
	ok    bool
	codes []string
	calls atomic.Int32
}

func (f *fakeCaptcha) Verify(context.Context, string, string) domain.CaptchaResult {
	f.calls.Add(1)
	if f.ok {
		return domain.CaptchaResult{Success: true}
	}
	return domain.CaptchaResult{Errors: f.codes}
}

func (f *fakeCaptcha) Configured() bool { return true }

type recordingStats struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
	err      error
}

func (s *recordingStats) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, ev.Outcome)
	return s.err
}

func (s *recordingStats) last() domain.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outcomes) == 0 {
		return ""
	}
	return s.outcomes[len(s.outcomes)-1]
}

// failingStore embrulha um QuotaStore e faz as escritas pós-drip falharem.
type failingStore struct {
	domain.QuotaStore
}

func (f failingStore) SetWithTTL(context.Context, string, string, time.Duration) error {
	return errors.New("store down")
}

func (f failingStore) PushCapped(context.Context, string, string, int) error {
	return errors.New("store down")
}

// manualClock é um relógio que só anda quando o teste manda.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
