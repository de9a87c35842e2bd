package infra

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"faucet-gateway/faucet/domain"
)

const erc20ABI = `[
 {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

var erc20 = mustParseABI(erc20ABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ethBackend é o subconjunto de *ethclient.Client usado aqui.
type ethBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EthChain implementa domain.Chain para um token ERC-20 via JSON-RPC.
//
// A chave é lida no boot. Se estiver ausente ou inválida o gateway ainda
// responde leituras de terceiros, mas FaucetAddress e envios devolvem ErrConfiguration.
type EthChain struct {
	backend ethBackend
	chainID *big.Int
	token   common.Address

	key    *ecdsa.PrivateKey
	from   common.Address
	keyErr error

	pollEvery time.Duration
}

type EthChainOption func(*EthChain)

// WithReceiptPoll define o intervalo de consulta do recibo.
func WithReceiptPoll(d time.Duration) EthChainOption {
	return func(c *EthChain) { c.pollEvery = d }
}

func NewEthChain(backend ethBackend, chainID int64, token common.Address, privateKey string, opts ...EthChainOption) *EthChain {
	c := &EthChain{
		backend:   backend,
		chainID:   big.NewInt(chainID),
		token:     token,
		pollEvery: 2 * time.Second,
	}
	c.key, c.keyErr = parsePrivateKey(privateKey)
	if c.keyErr == nil {
		c.from = crypto.PubkeyToAddress(c.key.PublicKey)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DialEthChain conecta no RPC e devolve o gateway e a função de fechamento.
func DialEthChain(ctx context.Context, rpcURL string, chainID int64, token common.Address, privateKey string, opts ...EthChainOption) (*EthChain, func(), error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rpc: %w", err)
	}
	return NewEthChain(client, chainID, token, privateKey, opts...), client.Close, nil
}

func parsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: PRIVATE_KEY is not configured", domain.ErrConfiguration)
	}
	if !strings.HasPrefix(raw, "0x") {
		return nil, fmt.Errorf("%w: PRIVATE_KEY must start with 0x", domain.ErrConfiguration)
	}
	key, err := crypto.HexToECDSA(raw[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: PRIVATE_KEY is malformed", domain.ErrConfiguration)
	}
	return key, nil
}

var _ domain.Chain = (*EthChain)(nil)

func (c *EthChain) FaucetAddress() (common.Address, error) {
	if c.keyErr != nil {
		return common.Address{}, c.keyErr
	}
	return c.from, nil
}

func (c *EthChain) TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := erc20.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	vals, err := erc20.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	bal, ok := vals[0].(*big.Int)
	if !ok {
		return nil, errors.New("decode balanceOf: unexpected type")
	}
	return bal, nil
}

func (c *EthChain) HasCode(ctx context.Context, addr common.Address) (bool, error) {
	code, err := c.backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

func (c *EthChain) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	return c.backend.PendingNonceAt(ctx, addr)
}

// SendTransfer assina e envia transfer(to, amount) como transação EIP-1559 com o nonce dado.
func (c *EthChain) SendTransfer(ctx context.Context, to common.Address, amount *big.Int, nonce uint64) (common.Hash, error) {
	if c.keyErr != nil {
		return common.Hash{}, c.keyErr
	}
	data, err := erc20.Pack("transfer", to, amount)
	if err != nil {
		return common.Hash{}, err
	}

	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &c.token, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas / 5

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &c.token,
		Value:     new(big.Int),
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send: %w", err)
	}
	return signed.Hash(), nil
}

// WaitMined consulta o recibo até ele existir ou o ctx encerrar.
// Erros transitórios do RPC não interrompem a espera.
func (c *EthChain) WaitMined(ctx context.Context, h common.Hash) (bool, error) {
	t := time.NewTicker(c.pollEvery)
	defer t.Stop()

	var lastErr error
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, h)
		if err == nil && receipt != nil {
			return receipt.Status == types.ReceiptStatusSuccessful, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return false, fmt.Errorf("%w (last rpc error: %v)", ctx.Err(), lastErr)
			}
			return false, ctx.Err()
		case <-t.C:
		}
	}
}
