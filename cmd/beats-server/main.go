package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mr-tron/base58"

	"github.com/provenonce/beats/pkg/anchor"
	"github.com/provenonce/beats/pkg/anchorcache"
	"github.com/provenonce/beats/pkg/config"
	"github.com/provenonce/beats/pkg/ledger"
	"github.com/provenonce/beats/pkg/metrics"
	"github.com/provenonce/beats/pkg/ratelimit"
	"github.com/provenonce/beats/pkg/selector"
	"github.com/provenonce/beats/pkg/server"
	"github.com/provenonce/beats/pkg/signer"
	"github.com/provenonce/beats/pkg/timestamp"
	"github.com/provenonce/beats/pkg/verifier"
)

func main() {
	log.Printf("[Beats] starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Beats] loading config: %v", err)
	}

	devMode := os.Getenv("BEATS_DEV_MODE") == "true"
	if err := cfg.Validate(devMode); err != nil {
		log.Fatalf("[Beats] %v", err)
	}

	anchorSeed, writer, err := decodeAnchorKeypair(cfg.AnchorKeypair)
	if err != nil {
		log.Fatalf("[Beats] decoding BEATS_ANCHOR_KEYPAIR: %v", err)
	}
	log.Printf("[Beats] ledger writer account: %s", writer)

	keys, err := signer.NewKeyHierarchy(anchorSeed)
	if err != nil {
		log.Fatalf("[Beats] deriving key hierarchy: %v", err)
	}
	tsPubHex, tsPubB58 := keys.TimestampPublicKey()
	wpPubHex, _ := keys.WorkProofPublicKey()
	log.Printf("[Beats] timestamp-receipt key: %s (%s)", tsPubHex, tsPubB58)
	log.Printf("[Beats] work-proof key: %s", wpPubHex)

	var l ledger.Ledger
	if cfg.SolanaRPCURL != "" {
		l = ledger.NewSolanaLedger(cfg.SolanaRPCURL, anchorSeed)
		log.Printf("[Beats] ledger: Solana JSON-RPC at %s", cfg.SolanaRPCURL)
	} else if devMode {
		l = ledger.NewMemoryLedger()
		log.Printf("[Beats] ledger: in-memory fake (BEATS_DEV_MODE=true, no RPC URL configured)")
	} else {
		log.Fatal("[Beats] NEXT_PUBLIC_SOLANA_RPC_URL is required outside BEATS_DEV_MODE")
	}

	cache := anchorcache.New(cfg.AnchorCacheTTL, func(ctx context.Context) (anchorcache.Anchor, bool, error) {
		tip, ok, err := selector.ReadLatestTip(ctx, l, writer)
		if err != nil || !ok {
			return anchorcache.Anchor{}, false, err
		}
		return anchorcache.Anchor{
			BeatIndex: tip.BeatIndex, Hash: tip.Hash, PrevHash: tip.PrevHash,
			UTC: tip.UTC, Difficulty: tip.Difficulty, Epoch: tip.Epoch, SolanaEntropy: tip.SolanaEntropy,
		}, true, nil
	})

	v := verifier.New(cache, keys)
	ts := timestamp.New(l, writer, cache, keys, cfg.SolanaRPCURL)

	advancerLogger := log.New(log.Writer(), "[AnchorAdvancer] ", log.LstdFlags)
	adv := anchor.New(l, writer, cfg.CronSecret, advancerLogger)
	adv.OnAdvanced = cache.Invalidate

	metricsRegistry := metrics.New()
	v.Metrics = metricsRegistry

	handlers := server.NewHandlers(server.Config{
		Verifier:            v,
		Timestamper:         ts,
		Advancer:            adv,
		AnchorCache:         cache,
		Signer:              keys,
		Metrics:             metricsRegistry,
		ProTierToken:        cfg.ProTierToken,
		TimestampFreeMinute: ratelimit.New(cfg.TimestampFreeMinuteLimit, time.Minute),
		TimestampFreeDay:    ratelimit.New(cfg.TimestampFreeDayLimit, 24*time.Hour),
		TimestampProMinute:  ratelimit.New(cfg.TimestampProMinuteLimit, time.Minute),
		TimestampProDay:     ratelimit.New(cfg.TimestampProDayLimit, 24*time.Hour),
	}, log.New(log.Writer(), "[BeatsAPI] ", log.LstdFlags))

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handlers.Mux(),
	}

	log.Printf("[Beats] routes configured:")
	log.Printf("   - GET       /api/health")
	log.Printf("   - GET       /api/v1/beat/anchor")
	log.Printf("   - GET       /api/v1/beat/key")
	log.Printf("   - GET,POST  /api/v1/beat/verify")
	log.Printf("   - POST      /api/v1/beat/timestamp")
	log.Printf("   - POST      /api/v1/beat/work-proof")
	log.Printf("   - GET       /api/cron/anchor")
	log.Printf("   - GET       /api/metrics")

	go func() {
		log.Printf("[Beats] listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Beats] HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("[Beats] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Beats] HTTP server shutdown error: %v", err)
	}
	log.Printf("[Beats] stopped")
}

// decodeAnchorKeypair parses BEATS_ANCHOR_KEYPAIR as a base58-encoded
// Ed25519 seed (32 bytes) or full keypair (64 bytes, seed||pubkey — the
// format Solana CLI keypairs use), returning the raw seed (the HKDF master
// and the SolanaLedger signing key) and the base58 writer address derived
// from its public half.
func decodeAnchorKeypair(encoded string) (seed []byte, writer string, err error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base58: %w", err)
	}

	switch len(raw) {
	case ed25519.SeedSize:
		seed = raw
	case ed25519.PrivateKeySize:
		seed = raw[:ed25519.SeedSize]
	default:
		return nil, "", fmt.Errorf("expected a %d or %d byte key, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}

	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	return seed, base58.Encode(pub), nil
}
