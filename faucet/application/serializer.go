package application

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"faucet-gateway/faucet/domain"
)

// Serializer é o único caminho que envia transferências da carteira do faucet.
//
// Um único worker consome uma fila (channel sem buffer). Quem chama bloqueia no
// envio do job, em ordem de chegada, e depois aguarda o resultado no canal do
// próprio job. Assim "no máximo uma transação em voo" é estrutural: o próximo
// job só é recebido depois que o anterior foi minerado ou falhou.
type Serializer struct {
	chain          domain.Chain
	amount         *big.Int
	confirmTimeout time.Duration
	log            logrus.FieldLogger

	jobs    chan dripJob
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	waiting atomic.Int64
}

type dripJob struct {
	to     common.Address
	result chan dripOutcome
}

type dripOutcome struct {
	tx  common.Hash
	err error
}

type SerializerOption func(*Serializer)

// WithConfirmTimeout limita o tempo total de um job (saldo, envio e recibo).
// 0 espera indefinidamente.
func WithConfirmTimeout(d time.Duration) SerializerOption {
	return func(s *Serializer) { s.confirmTimeout = d }
}

func WithSerializerLogger(l logrus.FieldLogger) SerializerOption {
	return func(s *Serializer) { s.log = l }
}

// NewSerializer inicia o worker. Pare com Close.
func NewSerializer(chain domain.Chain, amount *big.Int, opts ...SerializerOption) *Serializer {
	s := &Serializer{
		chain:  chain,
		amount: new(big.Int).Set(amount),
		log:    logrus.StandardLogger(),
		jobs:   make(chan dripJob),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Disburse enfileira um drip para to e aguarda o resultado.
//
// O ctx só vale até o job ser aceito pelo worker. Depois disso a transferência
// roda até confirmar ou falhar, mesmo que quem chamou desista.
func (s *Serializer) Disburse(ctx context.Context, to common.Address) (common.Hash, error) {
	if to == (common.Address{}) {
		return common.Hash{}, domain.ErrZeroAddress
	}

	s.waiting.Add(1)
	defer s.waiting.Add(-1)

	job := dripJob{to: to, result: make(chan dripOutcome, 1)}
	select {
	case s.jobs <- job:
	case <-s.quit:
		return common.Hash{}, domain.ErrSerializerClosed
	case <-ctx.Done():
		return common.Hash{}, ctx.Err()
	}

	out := <-job.result
	return out.tx, out.err
}

// QueueDepth conta quem está aguardando ou em andamento.
func (s *Serializer) QueueDepth() int64 { return s.waiting.Load() }

// Close para de aceitar jobs e espera o job atual terminar (ou ctx encerrar).
func (s *Serializer) Close(ctx context.Context) error {
	s.once.Do(func() { close(s.quit) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Serializer) run() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case job := <-s.jobs:
			tx, err := s.process(job.to)
			job.result <- dripOutcome{tx: tx, err: err}
		}
	}
}

func (s *Serializer) process(to common.Address) (common.Hash, error) {
	ctx := context.Background()
	if s.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.confirmTimeout)
		defer cancel()
	}

	from, err := s.chain.FaucetAddress()
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return common.Hash{}, err
		}
		return common.Hash{}, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	balance, err := s.chain.TokenBalance(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read faucet balance: %w", err)
	}
	if balance.Cmp(s.amount) < 0 {
		s.log.WithFields(logrus.Fields{"balance": balance.String(), "drip": s.amount.String()}).
			Warn("faucet wallet is dry")
		return common.Hash{}, domain.ErrWalletDry
	}

	// nonce lido aqui, dentro da seção serializada, inclui o drip anterior.
	nonce, err := s.chain.PendingNonce(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read pending nonce: %w", err)
	}

	tx, err := s.chain.SendTransfer(ctx, to, s.amount, nonce)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send transfer: %w", err)
	}
	log := s.log.WithFields(logrus.Fields{"tx": tx.Hex(), "to": to.Hex(), "nonce": nonce})
	log.Info("transfer submitted")

	ok, err := s.chain.WaitMined(ctx, tx)
	if err != nil {
		return tx, fmt.Errorf("wait receipt %s: %w", tx.Hex(), err)
	}
	if !ok {
		log.Error("transfer reverted")
		return tx, domain.ErrTransactionReverted
	}

	log.Info("transfer confirmed")
	return tx, nil
}
