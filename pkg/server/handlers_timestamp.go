package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/provenonce/beats/pkg/timestamp"
)

type timestampRequest struct {
	Hash string `json:"hash"`
}

// handleTimestamp implements POST /api/v1/beat/timestamp: rate-limits by
// client IP (two tiers depending on the pro-tier bearer token), decodes and
// validates the hash, then delegates to pkg/timestamp.
func (h *Handlers) handleTimestamp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "only POST is allowed")
		return
	}

	tier, minuteResult, dayResult, limited := h.checkTimestampRateLimit(r)
	if limited {
		writeRetryAfter(w, minuteResult, dayResult)
		return
	}

	body, tooLarge, err := readBody(r)
	if tooLarge {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var req timestampRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if !timestamp.ValidHashHex(req.Hash) {
		writeError(w, http.StatusBadRequest, "hash must be 64 lowercase hex characters")
		return
	}

	result, err := h.Timestamper.Timestamp(r.Context(), req.Hash, h.now(), tier)
	if err != nil {
		h.logger.Printf("timestamp request failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.Metrics != nil {
		h.Metrics.TimestampRequestsTotal.WithLabelValues(tier).Inc()
	}

	switch result.Outcome {
	case timestamp.OutcomeTimestamped:
		writeJSON(w, http.StatusOK, result.Response)
	case timestamp.OutcomeNoAnchor:
		writeError(w, http.StatusServiceUnavailable, "no anchor has been published yet")
	case timestamp.OutcomeLowBalance:
		writeError(w, http.StatusServiceUnavailable, "writer balance too low to publish")
	default:
		writeError(w, http.StatusInternalServerError, "unexpected timestamp outcome")
	}
}

// checkTimestampRateLimit picks the free or pro limiter pair based on the
// pro-tier bearer header and reports whether the caller is over budget.
func (h *Handlers) checkTimestampRateLimit(r *http.Request) (tier string, minuteResult, dayResult rateLimitResult, limited bool) {
	key := clientIPKey(r)

	tier = "free"
	minuteLimiter, dayLimiter := h.TimestampFreeMinute, h.TimestampFreeDay
	if h.ProTierToken != "" && constantTimeTokenMatch(r.Header.Get(proTierHeader), h.ProTierToken) {
		tier = "pro"
		minuteLimiter, dayLimiter = h.TimestampProMinute, h.TimestampProDay
	}

	minute := minuteLimiter.Check(key)
	day := dayLimiter.Check(key)
	return tier, rateLimitResult(minute), rateLimitResult(day), !minute.Allowed || !day.Allowed
}

func writeRetryAfter(w http.ResponseWriter, results ...rateLimitResult) {
	retryAfter := 0
	for _, r := range results {
		if !r.Allowed {
			s := int(r.ResetSeconds())
			if s > retryAfter {
				retryAfter = s
			}
		}
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
}
