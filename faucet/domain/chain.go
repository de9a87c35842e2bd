package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Chain é o gateway de leitura/escrita na rede alvo.
//
// PendingNonce precisa enxergar transações enviadas e ainda não mineradas.
type Chain interface {
	// FaucetAddress retorna ErrConfiguration se a chave de assinatura estiver ausente ou inválida.
	FaucetAddress() (common.Address, error)
	TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	HasCode(ctx context.Context, addr common.Address) (bool, error)
	PendingNonce(ctx context.Context, addr common.Address) (uint64, error)
	SendTransfer(ctx context.Context, to common.Address, amount *big.Int, nonce uint64) (common.Hash, error)
	// WaitMined bloqueia até o recibo existir; retorna false se a execução reverteu.
	WaitMined(ctx context.Context, tx common.Hash) (bool, error)
}

// Token descreve o token distribuído e a rede.
type Token struct {
	ChainID   int64
	ChainName string
	Address   common.Address
	Symbol    string
	Decimals  uint8
}
