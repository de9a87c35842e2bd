package domain

// Camada de domínio do rate limit do faucet.

import "time"

// Category identifica a dimensão de uma janela deslizante.
// Cada categoria tem seu próprio namespace no QuotaStore.
type Category string

const (
	CategoryIP          Category = "ip"
	CategoryFingerprint Category = "fingerprint"
	CategoryGlobal      Category = "global"
)

// GlobalKey é a chave única usada pela categoria global.
const GlobalKey = "faucet-global"

type Rule struct {
	Limit  int
	Window time.Duration
}

type Decision struct {
	Allowed bool
	// RetryAfter só é preenchido quando bloqueado, sempre >= 1s.
	RetryAfter time.Duration
}

// WindowResult é a resposta bruta do store para uma janela deslizante.
type WindowResult struct {
	Allowed bool
	// ResetIn é o tempo até a entrada mais antiga sair da janela.
	ResetIn time.Duration
}

// RetryAfterSeconds arredonda para cima, com mínimo de 1.
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
