// Package faucet é a camada HTTP do faucet: rotas, tradução de erros do
// pipeline para status/JSON e instrumentação Prometheus.
//
// Fluxo de um POST /api/drip:
//
//  1. middlewares de borda (métricas, token bucket por IP, limite de concorrência)
//  2. decodifica o corpo e extrai o IP do cliente
//  3. chama application.Pipeline.Drip
//  4. traduz o resultado: 200, 400, 403, 429 (com Retry-After) ou 503
package faucet
