// Package ratelimit fornece middlewares HTTP (net/http) de borda, aplicados a
// todas as rotas antes de qualquer regra do faucet.
//
// Visão geral:
//
//   - ClientIP: extrai a chave do cliente (XFF/X-Real-IP/RemoteAddr)
//   - Throttle: token bucket por chave em memória (golang.org/x/time/rate),
//     barreira barata contra rajadas (ex: polling agressivo do /api/status)
//   - ConcurrencyMiddleware: limite de requisições simultâneas por processo
//
// As quotas de negócio (ip/fingerprint/global por hora) ficam em faucet/application;
// aqui só há proteção do processo.
package ratelimit
