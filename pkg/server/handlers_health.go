package server

import (
	"context"
	"net/http"
	"time"
)

// healthAnchor is the optional anchor snippet embedded in /api/health.
type healthAnchor struct {
	BeatIndex  uint64 `json:"beat_index"`
	Hash       string `json:"hash"`
	Difficulty uint32 `json:"difficulty"`
	UTC        int64  `json:"utc"`
}

type healthTiming struct {
	StartedAt     string `json:"started_at"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type healthOperations struct {
	AnchorCache string `json:"anchor_cache"`
}

type healthResponse struct {
	Service      string           `json:"service"`
	Status       string           `json:"status"`
	Timestamp    int64            `json:"timestamp"`
	Anchor       *healthAnchor    `json:"anchor,omitempty"`
	AnchorSigner string           `json:"anchor_signer"`
	Timing       healthTiming     `json:"timing"`
	Operations   healthOperations `json:"operations"`
}

// handleHealth implements GET /api/health: service identity, the current
// anchor tip if one is cached, the timestamp-receipt signer's public key,
// and basic uptime/operational status.
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "only GET is allowed")
		return
	}

	status := "ok"
	var anchor *healthAnchor
	cacheState := "cold"

	if h.AnchorCache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		tip, ok, err := h.AnchorCache.Get(ctx)
		switch {
		case err != nil:
			status = "degraded"
		case ok:
			cacheState = "warm"
			anchor = &healthAnchor{BeatIndex: tip.BeatIndex, Hash: tip.Hash, Difficulty: tip.Difficulty, UTC: tip.UTC}
		}
	}

	_, signerPub := h.Signer.TimestampPublicKey()

	writeJSON(w, http.StatusOK, healthResponse{
		Service:      "beats",
		Status:       status,
		Timestamp:    h.now(),
		Anchor:       anchor,
		AnchorSigner: signerPub,
		Timing: healthTiming{
			StartedAt:     h.startedAt.UTC().Format(time.RFC3339),
			UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		},
		Operations: healthOperations{AnchorCache: cacheState},
	})
}
