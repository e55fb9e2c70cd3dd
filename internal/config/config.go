// Package config loads gateway configuration from CLI flags and environment.
package config

import (
	"errors"
	"flag"
	"os"
	"runtime"
	"time"
)

// Config holds every tunable the gateway needs at startup.
type Config struct {
	Port     string
	GRPCAddr string

	ASREndpoint string
	ASRTimeout  time.Duration

	LexiconStoreEndpoint string
	LexiconCacheSize     int

	TokenSigningKey string
	TokenTTL        time.Duration
	PairingCodeTTL  time.Duration

	RateLimitMessagesPerSec float64
	RateLimitBytesPerSec    float64

	LogDir   string
	LogLevel string
}

// ErrMissingSigningKey is returned when no token signing key is configured.
// A running gateway cannot issue or verify WebSocket admission tokens
// without one, so this is a startup fatal, exit code 1.
var ErrMissingSigningKey = errors.New("config: token signing key is required (-token-key or TOKEN_SIGNING_KEY)")

// Load parses flags and environment fallbacks into a Config.
func Load() (*Config, error) {
	port := flag.String("port", "8080", "HTTP/WebSocket listen port")
	grpcAddr := flag.String("grpc-addr", defaultGRPCAddress(), "gRPC control-plane listen address (unix:/path/to.sock or npipe:////./pipe/dentalgw-admin)")

	asrEndpoint := flag.String("asr-endpoint", envOr("ASR_ENDPOINT", "http://localhost:9000/transcribe"), "Upstream ASR vendor endpoint")
	asrTimeout := flag.Duration("asr-timeout", 20*time.Second, "Per-request timeout for the ASR collaborator")

	lexiconEndpoint := flag.String("lexicon-store-endpoint", envOr("LEXICON_STORE_ENDPOINT", "http://localhost:9100"), "Base URL of the external lexicon/config document store")
	lexiconCacheSize := flag.Int("lexicon-cache-size", 256, "Number of per-user Snapshots kept in the LRU cache")

	tokenKey := flag.String("token-key", os.Getenv("TOKEN_SIGNING_KEY"), "HMAC signing key for WebSocket admission tokens")
	tokenTTL := flag.Duration("token-ttl", 2*time.Minute, "WebSocket admission token lifetime")
	pairingTTL := flag.Duration("pairing-ttl", 5*time.Minute, "Pairing code lifetime")

	msgRate := flag.Float64("rate-messages-per-sec", 10, "Per-connection control-plane message rate limit")
	byteRate := flag.Float64("rate-bytes-per-sec", 1<<20, "Per-connection audio byte-rate limit")

	logDir := flag.String("log-dir", "logs", "Directory for the rotated JSON log file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	cfg := &Config{
		Port:                    *port,
		GRPCAddr:                *grpcAddr,
		ASREndpoint:             *asrEndpoint,
		ASRTimeout:              *asrTimeout,
		LexiconStoreEndpoint:    *lexiconEndpoint,
		LexiconCacheSize:        *lexiconCacheSize,
		TokenSigningKey:         *tokenKey,
		TokenTTL:                *tokenTTL,
		PairingCodeTTL:          *pairingTTL,
		RateLimitMessagesPerSec: *msgRate,
		RateLimitBytesPerSec:    *byteRate,
		LogDir:                  *logDir,
		LogLevel:                *logLevel,
	}

	if cfg.TokenSigningKey == "" {
		return nil, ErrMissingSigningKey
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultGRPCAddress() string {
	if runtime.GOOS == "windows" {
		return "npipe:\\\\.\\pipe\\dentalgw-admin"
	}
	return "unix:/tmp/dentalgw-admin.sock"
}
