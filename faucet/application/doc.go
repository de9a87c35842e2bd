// Package application contém os casos de uso do faucet: rate limit por
// categoria, cooldown por endereço, serialização dos desembolsos e o pipeline
// de autorização que encadeia tudo.
//
// Ele depende apenas do pacote domain e não conhece net/http.
package application
