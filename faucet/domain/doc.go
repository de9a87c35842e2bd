// Package domain define contratos e tipos de domínio do faucet.
//
// Este pacote não depende de net/http nem de implementações concretas
// (Redis, RPC, Turnstile). Tipos de endereço vêm de go-ethereum/common.
package domain
