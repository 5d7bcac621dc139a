package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

type Config struct {
	Port         string
	StoreBackend string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	FirebaseProjectID          string
	FirebaseServiceAccountJSON string
	FirebaseCredentialsFile    string

	ClerkSecretKey     string
	ClerkWebhookSecret string
	AuthDisabled       bool

	RedisURL            string
	LeaderboardCacheTTL time.Duration

	GeminiAPIKey string
	GeminiModel  string

	ChallengeCatalogPath string

	LogLevel  string
	LogFormat string

	MetricsUser string
	MetricsPass string

	RateLimitRPS   float64
	RateLimitBurst int
	// Peers allowed to set X-Forwarded-For. Empty means the header is ignored.
	TrustedProxies []netip.Prefix

	TxMaxAttempts int
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("config: no .env file found")
	}
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	var errs []error
	intVal := func(key string, def int) int {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return v
	}
	floatVal := func(key string, def float64) float64 {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return v
	}
	boolVal := func(key string) bool {
		raw := get(key, "")
		if raw == "" {
			return false
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return v
	}
	durationVal := func(key string, def time.Duration) time.Duration {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return v
	}

	cfg := &Config{
		Port:                       get("PORT", "3333"),
		StoreBackend:               strings.ToLower(get("STORE_BACKEND", BackendPostgres)),
		DatabaseURL:                get("DATABASE_URL", ""),
		DBMaxConns:                 int32(intVal("DB_MAX_CONNS", 25)),
		DBMinConns:                 int32(intVal("DB_MIN_CONNS", 5)),
		FirebaseProjectID:          get("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccountJSON: get("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseCredentialsFile:    get("FIREBASE_CREDENTIALS_FILE", ""),
		ClerkSecretKey:             get("CLERK_SECRET_KEY", ""),
		ClerkWebhookSecret:         get("CLERK_WEBHOOK_SECRET", ""),
		AuthDisabled:               boolVal("AUTH_DISABLED"),
		RedisURL:                   get("REDIS_URL", ""),
		LeaderboardCacheTTL:        durationVal("LEADERBOARD_CACHE_TTL", 15*time.Second),
		GeminiAPIKey:               get("GEMINI_API_KEY", ""),
		GeminiModel:                get("GEMINI_MODEL", "gemini-2.5-flash"),
		ChallengeCatalogPath:       get("CHALLENGE_CATALOG_PATH", ""),
		LogLevel:                   get("LOG_LEVEL", "info"),
		LogFormat:                  get("LOG_FORMAT", "console"),
		MetricsUser:                get("METRICS_USER", ""),
		MetricsPass:                get("METRICS_PASS", ""),
		RateLimitRPS:               floatVal("RATE_LIMIT_RPS", 5),
		RateLimitBurst:             intVal("RATE_LIMIT_BURST", 30),
		TxMaxAttempts:              intVal("TX_MAX_ATTEMPTS", 3),
	}

	if raw := get("TRUSTED_PROXIES", ""); raw != "" {
		prefixes, err := parsePrefixes(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
		}
		cfg.TrustedProxies = prefixes
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL environment variable is not set"))
		}
	case BackendFirestore:
		if cfg.FirebaseServiceAccountJSON == "" && cfg.FirebaseCredentialsFile == "" {
			errs = append(errs, errors.New("firestore backend needs FIREBASE_SERVICE_ACCOUNT_JSON or FIREBASE_CREDENTIALS_FILE"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend))
	}

	if !cfg.AuthDisabled && cfg.ClerkSecretKey == "" {
		errs = append(errs, errors.New("CLERK_SECRET_KEY environment variable is not set"))
	}
	if cfg.TxMaxAttempts < 1 {
		errs = append(errs, errors.New("TX_MAX_ATTEMPTS must be at least 1"))
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// parsePrefixes reads a comma-separated list of CIDRs or bare addresses.
func parsePrefixes(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// FirebaseConfigured reports whether Firebase credentials are present.
func (c *Config) FirebaseConfigured() bool {
	return c.FirebaseServiceAccountJSON != "" || c.FirebaseCredentialsFile != ""
}
