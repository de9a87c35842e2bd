package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsValidAddress aceita 0x + 40 hex. Entradas com maiúsculas e minúsculas
// misturadas precisam ter checksum EIP-55 válido.
func IsValidAddress(raw string) bool {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "0x") || !common.IsHexAddress(raw) {
		return false
	}
	body := raw[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(raw).Hex() == raw
}

// NormalizeAddress converte a entrada para common.Address. O endereço zero é rejeitado.
func NormalizeAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !IsValidAddress(raw) {
		return common.Address{}, &RecipientError{Message: "Invalid Ethereum address."}
	}

	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return common.Address{}, ErrZeroAddress
	}
	return addr, nil
}

// AddressKey é a forma usada como chave no QuotaStore.
func AddressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
