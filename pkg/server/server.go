// Package server implements the HTTP surface described in spec §6: the
// mux, CORS and rate-limit middleware, request-size/content-type guards,
// and the handlers that translate JSON requests into calls on the
// transport-free pkg/verifier, pkg/timestamp and pkg/anchor packages.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/provenonce/beats/pkg/anchor"
	"github.com/provenonce/beats/pkg/anchorcache"
	"github.com/provenonce/beats/pkg/metrics"
	"github.com/provenonce/beats/pkg/ratelimit"
	"github.com/provenonce/beats/pkg/signer"
	"github.com/provenonce/beats/pkg/timestamp"
	"github.com/provenonce/beats/pkg/verifier"
)

// maxVerifyBodyBytes bounds beat/chain/proof/work-proof request bodies; a
// 1000-beat chain payload comfortably fits well under this.
const maxVerifyBodyBytes = 1 << 20 // 1 MiB

// maxTimestampBodyBytes is the spec's exact cap for the timestamp endpoint.
const maxTimestampBodyBytes = 256

// proTierHeader is where a caller presents BEATS_PRO_TIER_TOKEN to unlock
// the raised timestamp rate limits.
const proTierHeader = "X-Beats-Tier-Token"

// Handlers bundles every dependency the HTTP layer needs. It owns no
// domain logic itself — each handler method decodes/encodes JSON and the
// §7 status-code mapping, delegating everything else to the wrapped
// components.
type Handlers struct {
	Verifier    *verifier.Verifier
	Timestamper *timestamp.Timestamper
	Advancer    *anchor.Advancer
	AnchorCache *anchorcache.Cache
	Signer      *signer.KeyHierarchy
	Metrics     *metrics.Registry

	ProTierToken string

	TimestampFreeMinute *ratelimit.Limiter
	TimestampFreeDay    *ratelimit.Limiter
	TimestampProMinute  *ratelimit.Limiter
	TimestampProDay     *ratelimit.Limiter

	startedAt time.Time
	logger    *log.Logger
}

// Config mirrors the fields of Handlers a caller must supply; startedAt and
// the logger are set by NewHandlers.
type Config struct {
	Verifier    *verifier.Verifier
	Timestamper *timestamp.Timestamper
	Advancer    *anchor.Advancer
	AnchorCache *anchorcache.Cache
	Signer      *signer.KeyHierarchy
	Metrics     *metrics.Registry

	ProTierToken string

	TimestampFreeMinute *ratelimit.Limiter
	TimestampFreeDay    *ratelimit.Limiter
	TimestampProMinute  *ratelimit.Limiter
	TimestampProDay     *ratelimit.Limiter
}

// NewHandlers builds a Handlers with a bracketed-prefix default logger when
// logger is nil, matching the teacher's per-component logging convention.
func NewHandlers(cfg Config, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[BeatsAPI] ", log.LstdFlags)
	}
	return &Handlers{
		Verifier:            cfg.Verifier,
		Timestamper:         cfg.Timestamper,
		Advancer:            cfg.Advancer,
		AnchorCache:         cfg.AnchorCache,
		Signer:              cfg.Signer,
		Metrics:             cfg.Metrics,
		ProTierToken:        cfg.ProTierToken,
		TimestampFreeMinute: cfg.TimestampFreeMinute,
		TimestampFreeDay:    cfg.TimestampFreeDay,
		TimestampProMinute:  cfg.TimestampProMinute,
		TimestampProDay:     cfg.TimestampProDay,
		startedAt:           time.Now(),
		logger:              logger,
	}
}

// Mux builds the full route table, wrapped in CORS and size/content-type
// middleware per spec §4.9 and §6. The cron route is registered separately
// so it bypasses CORS injection.
func (h *Handlers) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/api/health", withCORS(http.HandlerFunc(h.handleHealth)))
	mux.Handle("/api/v1/beat/anchor", withCORS(http.HandlerFunc(h.handleAnchor)))
	mux.Handle("/api/v1/beat/key", withCORS(http.HandlerFunc(h.handleKey)))
	mux.Handle("/api/v1/beat/verify", withCORS(withJSONGuard(maxVerifyBodyBytes, http.HandlerFunc(h.handleVerify))))
	mux.Handle("/api/v1/beat/timestamp", withCORS(withJSONGuard(maxTimestampBodyBytes, http.HandlerFunc(h.handleTimestamp))))
	mux.Handle("/api/v1/beat/work-proof", withCORS(withJSONGuard(maxVerifyBodyBytes, http.HandlerFunc(h.handleWorkProof))))
	mux.Handle("/api/metrics", withCORS(h.Metrics.Handler()))

	// Bypasses CORS injection: the cron trigger is never called from a
	// browser, so it carries no Access-Control-* headers.
	mux.HandleFunc("/api/cron/anchor", h.handleCronAnchor)

	return mux
}

func (h *Handlers) now() int64 { return time.Now().UnixMilli() }

// readBody reads the entire request body, which withJSONGuard has already
// wrapped in http.MaxBytesReader; tooLarge reports whether the cap was
// exceeded, so callers can answer 413 instead of a generic 400.
func readBody(r *http.Request) (body []byte, tooLarge bool, err error) {
	defer r.Body.Close()
	body, err = io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, true, err
		}
		return nil, false, err
	}
	return body, false, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError emits the spec §7 malformed/unavailable error shape:
// {"error": "<reason>"}.
func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}

// constantTimeTokenMatch compares a bearer-style header value against the
// configured token without leaking timing information, matching the
// advancer's cron-secret comparison style.
func constantTimeTokenMatch(got, want string) bool {
	if want == "" {
		return false
	}
	if len(got) != len(want) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
