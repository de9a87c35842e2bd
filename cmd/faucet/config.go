package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"faucet-gateway/faucet/domain"
)

const (
	quotaRedis  = "redis"
	quotaMemory = "memory"
	quotaNone   = "none"
)

type config struct {
	listenAddr string
	logLevel   string
	trustXFF   bool

	rpcURL       string
	privateKey   string
	chainID      int64
	chainName    string
	tokenAddress common.Address
	tokenSymbol  string
	tokenDecims  uint8
	dripAmount   string
	dripUnits    *big.Int

	cooldown       time.Duration
	claimTTL       time.Duration
	ipLimit        int
	fpLimit        int
	globalLimit    int
	limitWindow    time.Duration
	confirmTimeout time.Duration
	receiptPoll    time.Duration
	codeCacheTTL   time.Duration

	quotaStore    string
	redisAddr     string
	redisURL      string
	redisPassword string
	redisDB       int
	redisPrefix   string

	statsEnabled bool
	statsPrefix  string
	statsTTL     time.Duration

	turnstileSecret  string
	turnstileSiteKey string
	turnstileURL     string

	edgeRPS            float64
	edgeBurst          int
	concurrencyMax     int
	concurrencyTimeout time.Duration
	writeTimeout       time.Duration
	shutdownGrace      time.Duration
}

// loadDotenv carrega .env se existir. Variáveis já definidas no ambiente vencem.
func loadDotenv() {
	_ = godotenv.Load()
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)

	cfg.rpcURL = getenvDefault("RPC_URL", getenvDefault("SEPOLIA_RPC_URL", "https://sepolia.drpc.org"))
	cfg.privateKey = strings.TrimSpace(os.Getenv("PRIVATE_KEY"))
	cfg.chainID = int64(getenvIntDefault("CHAIN_ID", 11155111))
	cfg.chainName = getenvDefault("CHAIN_NAME", "Sepolia")
	cfg.tokenSymbol = getenvDefault("TOKEN_SYMBOL", "ytest.USD")
	cfg.dripAmount = getenvDefault("DRIP_AMOUNT", "10")

	token := getenvDefault("TOKEN_ADDRESS", "0xDB9F293e3898c9E5536A3be1b0C56c89d2b32DEb")
	if !common.IsHexAddress(token) {
		return config{}, fmt.Errorf("TOKEN_ADDRESS is not a valid address: %q", token)
	}
	cfg.tokenAddress = common.HexToAddress(token)

	decimals := getenvIntDefault("TOKEN_DECIMALS", 6)
	if decimals < 0 || decimals > 77 {
		return config{}, errors.New("TOKEN_DECIMALS must be between 0 and 77")
	}
	cfg.tokenDecims = uint8(decimals)

	units, err := domain.ParseUnits(cfg.dripAmount, cfg.tokenDecims)
	if err != nil {
		return config{}, fmt.Errorf("invalid DRIP_AMOUNT: %w", err)
	}
	if units.Sign() <= 0 {
		return config{}, errors.New("DRIP_AMOUNT must be > 0")
	}
	cfg.dripUnits = units

	cfg.cooldown = getenvDurationDefault("COOLDOWN", 4*time.Hour)
	cfg.claimTTL = getenvDurationDefault("CLAIM_TTL", 5*time.Minute)
	cfg.ipLimit = getenvIntDefault("IP_LIMIT", 3)
	cfg.fpLimit = getenvIntDefault("FINGERPRINT_LIMIT", 5)
	cfg.globalLimit = getenvIntDefault("GLOBAL_LIMIT", 50)
	cfg.limitWindow = getenvDurationDefault("LIMIT_WINDOW", time.Hour)
	cfg.confirmTimeout = getenvDurationDefault("CONFIRM_TIMEOUT", 10*time.Minute)
	cfg.receiptPoll = getenvDurationDefault("RECEIPT_POLL", 2*time.Second)
	cfg.codeCacheTTL = getenvDurationDefault("CODE_CACHE_TTL", 10*time.Minute)

	cfg.redisAddr = os.Getenv("REDIS_ADDR")
	cfg.redisURL = os.Getenv("REDIS_URL")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.redisPrefix = os.Getenv("REDIS_PREFIX")

	// sem QUOTA_STORE explícito: redis se houver endereço, senão nenhum (sempre permite).
	defaultStore := quotaNone
	if cfg.redisAddr != "" || cfg.redisURL != "" {
		defaultStore = quotaRedis
	}
	cfg.quotaStore = strings.ToLower(getenvDefault("QUOTA_STORE", defaultStore))

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "faucet:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)

	cfg.turnstileSecret = os.Getenv("TURNSTILE_SECRET_KEY")
	cfg.turnstileSiteKey = getenvDefault("TURNSTILE_SITE_KEY", os.Getenv("NEXT_PUBLIC_TURNSTILE_SITE_KEY"))
	cfg.turnstileURL = getenvDefault("TURNSTILE_URL", "")

	cfg.edgeRPS = getenvFloatDefault("EDGE_RPS", 5)
	cfg.edgeBurst = getenvIntDefault("EDGE_BURST", 20)
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 256)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 2*time.Second)
	cfg.writeTimeout = getenvDurationDefault("HTTP_WRITE_TIMEOUT", 3*time.Minute)
	cfg.shutdownGrace = getenvDurationDefault("SHUTDOWN_GRACE", 2*time.Minute)

	switch cfg.quotaStore {
	case quotaRedis:
		if cfg.redisAddr == "" && cfg.redisURL == "" {
			return config{}, errors.New("REDIS_ADDR or REDIS_URL is required when QUOTA_STORE=redis")
		}
	case quotaMemory, quotaNone:
	default:
		return config{}, fmt.Errorf("QUOTA_STORE must be redis, memory or none, got %q", cfg.quotaStore)
	}
	if cfg.statsEnabled && cfg.quotaStore != quotaRedis {
		return config{}, errors.New("STATS_ENABLED=true requires QUOTA_STORE=redis")
	}
	if cfg.ipLimit <= 0 || cfg.fpLimit <= 0 || cfg.globalLimit <= 0 {
		return config{}, errors.New("IP_LIMIT, FINGERPRINT_LIMIT and GLOBAL_LIMIT must be > 0")
	}
	if cfg.limitWindow <= 0 || cfg.cooldown <= 0 {
		return config{}, errors.New("LIMIT_WINDOW and COOLDOWN must be > 0")
	}
	if cfg.edgeRPS < 0 || cfg.edgeBurst < 0 {
		return config{}, errors.New("EDGE_RPS and EDGE_BURST must be >= 0")
	}
	if cfg.edgeRPS > 0 && cfg.edgeBurst == 0 {
		return config{}, errors.New("EDGE_BURST must be > 0 when EDGE_RPS is set")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if strings.TrimSpace(cfg.rpcURL) == "" {
		return config{}, errors.New("RPC_URL is required")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
