// Package infra contém implementações concretas para os contratos definidos
// no pacote domain.
//
// Exemplos:
//   - RedisQuotaStore: janela deslizante (script Lua), cooldown e log no Redis
//   - MemoryQuotaStore: mesmo contrato em memória, para uma única instância
//   - EthChain: gateway JSON-RPC (go-ethereum) para saldo, bytecode, nonce e envio
//   - TurnstileVerifier: verificação de captcha na Cloudflare
//   - RedisStatsStore / PromStatsStore: estatísticas de decisão do pipeline
package infra
