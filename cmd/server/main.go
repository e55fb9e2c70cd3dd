package main

import (
	"context"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dentalgw/internal/api"
	"dentalgw/internal/asr"
	"dentalgw/internal/config"
	"dentalgw/internal/lexicon"
	"dentalgw/internal/logging"
	"dentalgw/internal/pairing"
	"dentalgw/internal/registry"
	"dentalgw/internal/token"
	"dentalgw/internal/transcribe"
)

const (
	exitOK              = 0
	exitConfigError     = 1
	exitUpstreamUnreach = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Println("config error:", err)
		return exitConfigError
	}

	lg := logging.New(cfg.LogDir, cfg.LogLevel)
	defer func() {
		if r := recover(); r != nil {
			lg.Error("panic", "recovered", r)
			panic(r)
		}
	}()

	if err := checkUpstream(cfg.ASREndpoint, 5*time.Second); err != nil {
		lg.Error("ASR upstream unreachable at startup", "endpoint", cfg.ASREndpoint, "error", err)
		return exitUpstreamUnreach
	}

	reg := registry.New()
	store := pairing.NewStore(cfg.PairingCodeTTL, lg.With("component", "pairing"))

	issuer := token.NewIssuer([]byte(cfg.TokenSigningKey), cfg.TokenTTL)
	verifier := token.NewVerifier([]byte(cfg.TokenSigningKey))

	lexStore := lexicon.NewHTTPStore(cfg.LexiconStoreEndpoint, nil)
	lex, err := lexicon.NewLoader(lexStore, cfg.LexiconCacheSize)
	if err != nil {
		lg.Error("building lexicon loader", "error", err)
		return exitConfigError
	}

	provider := asr.NewHTTPProvider(cfg.ASREndpoint, cfg.ASRTimeout, "default", "default")
	orch := transcribe.New(provider, cfg.ASRTimeout)

	server := api.NewServer(cfg, lg, reg, store, issuer, verifier, lex, orch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go store.RunSweeper(sweepCtx, time.Minute)

	lg.Info("dentalgw starting", "port", cfg.Port, "grpc_addr", cfg.GRPCAddr)
	err = server.Start(ctx)
	stopSweep()
	if err != nil {
		lg.Error("server exited with error", "error", err)
		return exitConfigError
	}
	lg.Info("dentalgw stopped")
	return exitOK
}

// checkUpstream dials the ASR endpoint's host:port to confirm the
// upstream vendor is reachable before the gateway starts serving
// (spec §6 "exit codes: ... 2 upstream unreachable at startup").
func checkUpstream(endpoint string, timeout time.Duration) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	host := u.Host
	if host == "" {
		host = endpoint
	}
	if u.Port() == "" {
		switch u.Scheme {
		case "https":
			host += ":443"
		default:
			host += ":80"
		}
	}
	conn, err := net.DialTimeout("tcp", host, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}
