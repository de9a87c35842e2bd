package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"faucet-gateway/faucet"
	"faucet-gateway/faucet/application"
	"faucet-gateway/faucet/domain"
	"faucet-gateway/faucet/infra"
	"faucet-gateway/middleware/ratelimit"
)

func main() {
	loadDotenv()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := readConfig()
	if err != nil {
		log.WithError(err).Fatal("config error")
	}
	if lvl, err := logrus.ParseLevel(cfg.logLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	quota, rdb, err := openQuota(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("quota store error")
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	stats := infra.MultiStats{infra.NewPromStatsStore(reg)}
	if cfg.statsEnabled && rdb != nil {
		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
		))
	}

	chain, closeChain, err := infra.DialEthChain(ctx, cfg.rpcURL, cfg.chainID, cfg.tokenAddress, cfg.privateKey,
		infra.WithReceiptPoll(cfg.receiptPoll))
	if err != nil {
		log.WithError(err).Fatal("rpc error")
	}
	defer closeChain()
	if _, err := chain.FaucetAddress(); err != nil {
		// sobe mesmo assim: /api/status mostra degraded e drips respondem 503.
		log.WithError(err).Warn("faucet signing key unavailable")
	}

	codeCache, err := infra.NewCodeCache(chain, cfg.codeCacheTTL)
	if err != nil {
		log.WithError(err).Fatal("code cache error")
	}
	defer codeCache.Close()

	var turnstileOpts []infra.TurnstileOption
	if cfg.turnstileURL != "" {
		turnstileOpts = append(turnstileOpts, infra.WithTurnstileEndpoint(cfg.turnstileURL))
	}
	captcha := infra.NewTurnstileVerifier(cfg.turnstileSecret, cfg.turnstileSiteKey, turnstileOpts...)
	if !captcha.Configured() {
		log.Warn("turnstile is not configured; every drip will be rejected")
	}

	limiter, err := application.NewRateLimiter(quota, map[domain.Category]domain.Rule{
		domain.CategoryIP:          {Limit: cfg.ipLimit, Window: cfg.limitWindow},
		domain.CategoryFingerprint: {Limit: cfg.fpLimit, Window: cfg.limitWindow},
		domain.CategoryGlobal:      {Limit: cfg.globalLimit, Window: cfg.limitWindow},
	})
	if err != nil {
		log.WithError(err).Fatal("rate limiter error")
	}
	cooldown := application.NewCooldownTracker(quota, cfg.cooldown, cfg.claimTTL)

	serializer := application.NewSerializer(chain, cfg.dripUnits,
		application.WithConfirmTimeout(cfg.confirmTimeout),
		application.WithSerializerLogger(log.WithField("component", "serializer")),
	)

	pipeline := &application.Pipeline{
		Captcha:     captcha,
		Limiter:     limiter,
		Cooldown:    cooldown,
		Code:        codeCache,
		Disburser:   serializer,
		Activity:    application.NewActivityLog(quota),
		Stats:       stats,
		Log:         log.WithField("component", "pipeline"),
		PostTimeout: 5 * time.Second,
	}

	token := domain.Token{
		ChainID:   cfg.chainID,
		ChainName: cfg.chainName,
		Address:   cfg.tokenAddress,
		Symbol:    cfg.tokenSymbol,
		Decimals:  cfg.tokenDecims,
	}

	api := &faucet.API{
		Dripper: pipeline,
		Status: application.StatusService{
			Chain:      chain,
			Token:      token,
			DripAmount: cfg.dripUnits,
			Limiter:    limiter,
			Cooldown:   cooldown,
			Captcha:    captcha,
		},
		DripAmount: domain.FormatUnits(cfg.dripUnits, cfg.tokenDecims),
		Symbol:     cfg.tokenSymbol,
		KeyFn:      ratelimit.ClientIP(cfg.trustXFF),
		Log:        log.WithField("component", "http"),
	}

	var edge *ratelimit.BucketStore
	if cfg.edgeRPS > 0 {
		edge = ratelimit.NewBucketStore(cfg.edgeRPS, cfg.edgeBurst)
		edge.StartJanitor(ctx)
	}

	h := faucet.NewRouter(api, faucet.RouterOptions{
		Metrics:  faucet.NewMetrics(reg, serializer.QueueDepth),
		Gatherer: reg,
		Edge:     edge,
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.concurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.concurrencyTimeout,
		},
	})

	// WriteTimeout cobre a fila do serializer mais a confirmação on-chain.
	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.writeTimeout,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(logrus.Fields{
		"addr":     cfg.listenAddr,
		"chain":    cfg.chainName,
		"chainId":  cfg.chainID,
		"token":    cfg.tokenAddress.Hex(),
		"drip":     api.DripAmount + " " + cfg.tokenSymbol,
		"cooldown": cfg.cooldown.String(),
	}).Info("faucet listening")
	log.WithFields(logrus.Fields{
		"store":  cfg.quotaStore,
		"ip":     cfg.ipLimit,
		"fp":     cfg.fpLimit,
		"global": cfg.globalLimit,
		"window": cfg.limitWindow.String(),
		"stats":  cfg.statsEnabled,
	}).Info("quota")
	log.WithFields(logrus.Fields{
		"edgeRps":        cfg.edgeRPS,
		"edgeBurst":      cfg.edgeBurst,
		"concurrency":    cfg.concurrencyMax,
		"acquireTimeout": cfg.concurrencyTimeout.String(),
		"trustXFF":       cfg.trustXFF,
	}).Info("edge")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server error")
	}

	// o drip em andamento termina antes do processo sair.
	closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.shutdownGrace)
	defer closeCancel()
	if err := serializer.Close(closeCtx); err != nil {
		log.WithError(err).Warn("serializer did not drain before shutdown")
	}
}

// openQuota escolhe o store compartilhado. "none" devolve Quota{Configured: false}:
// todas as janelas e cooldowns permitem.
func openQuota(ctx context.Context, cfg config, log logrus.FieldLogger) (application.Quota, redis.UniversalClient, error) {
	switch cfg.quotaStore {
	case quotaRedis:
		opts := &redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		}
		if cfg.redisURL != "" {
			parsed, err := redis.ParseURL(cfg.redisURL)
			if err != nil {
				return application.Quota{}, nil, err
			}
			opts = parsed
		}
		rdb := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return application.Quota{}, nil, err
		}
		store := infra.NewRedisQuotaStore(rdb, infra.WithQuotaPrefix(cfg.redisPrefix))
		return application.Quota{Store: store, Configured: true}, rdb, nil

	case quotaMemory:
		log.Warn("using in-memory quota store; limits are not shared between instances")
		store := infra.NewMemoryQuotaStore()
		store.StartJanitor(ctx, cfg.limitWindow)
		return application.Quota{Store: store, Configured: true}, nil, nil

	default:
		log.Warn("no quota store configured; rate limits and cooldowns are disabled")
		return application.Quota{Configured: false}, nil, nil
	}
}
