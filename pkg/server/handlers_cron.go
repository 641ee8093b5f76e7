package server

import (
	"net/http"

	"github.com/provenonce/beats/pkg/anchor"
)

type cronResponse struct {
	Outcome   string `json:"outcome"`
	BeatIndex uint64 `json:"beat_index,omitempty"`
	Hash      string `json:"hash,omitempty"`
	TxSig     string `json:"tx_signature,omitempty"`
	NextAt    int64  `json:"next_at,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Reason    string `json:"reason,omitempty"`
}

// handleCronAnchor implements GET /api/cron/anchor (C6): authenticate the
// cron bearer token, run one tick of the advancer, and invalidate the
// anchor cache on success so the next read sees the new tip immediately.
func (h *Handlers) handleCronAnchor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "only GET is allowed")
		return
	}

	if h.Advancer.CronSecret == "" {
		writeError(w, http.StatusServiceUnavailable, "CRON_SECRET is not configured")
		return
	}
	if !h.Advancer.Authenticate(r.Header.Get("Authorization")) {
		writeError(w, http.StatusUnauthorized, "invalid cron credentials")
		return
	}

	result := h.Advancer.Advance(r.Context())

	if h.Metrics != nil {
		h.Metrics.AnchorAdvanceTotal.WithLabelValues(string(result.Outcome)).Inc()
	}

	resp := cronResponse{
		Outcome:   string(result.Outcome),
		BeatIndex: result.BeatIndex,
		Hash:      result.Hash,
		TxSig:     result.TxSig,
		NextAt:    result.NextAt,
		ElapsedMS: result.ElapsedMS,
		Reason:    result.Reason,
	}

	switch result.Outcome {
	case anchor.OutcomeGenerated, anchor.OutcomeSkippedFresh:
		writeJSON(w, http.StatusOK, resp)
	case anchor.OutcomeNoEntropy:
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}
