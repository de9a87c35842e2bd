package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

type ThrottleOptions struct {
	Store *BucketStore
	KeyFn KeyFunc
	// OnReject é chamado a cada bloqueio (métricas/log). Opcional.
	OnReject func(r *http.Request, key string)
}

// Throttle bloqueia com 429 quando o bucket da chave está vazio.
// O corpo segue o formato de erro do faucet ({success:false, message, retryAfter}).
func Throttle(opts ThrottleOptions) func(next http.Handler) http.Handler {
	if opts.Store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ClientIP(false)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			ok, wait := opts.Store.Take(key)
			if !ok {
				if opts.OnReject != nil {
					opts.OnReject(r, key)
				}
				secs := retrySeconds(wait)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"success":false,"message":"Too many requests. Slow down.","retryAfter":` + strconv.Itoa(secs) + `}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retrySeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
