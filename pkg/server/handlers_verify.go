package server

import (
	"encoding/json"
	"net/http"

	"github.com/provenonce/beats/pkg/hashchain"
)

type verifyMetadataResponse struct {
	Modes               []string `json:"modes"`
	MinDifficulty       uint32   `json:"min_difficulty"`
	MaxDifficulty       uint32   `json:"max_difficulty"`
	PublicMaxDifficulty uint32   `json:"public_max_difficulty"`
	PublicMaxSpotChecks int      `json:"public_max_spot_checks"`
	MaxChainBeats       int      `json:"max_chain_beats"`
}

type verifyRequest struct {
	Mode       string            `json:"mode"`
	Difficulty uint32            `json:"difficulty"`
	Beat       *beatWire         `json:"beat"`
	Beats      []beatWire        `json:"beats"`
	SpotChecks int               `json:"spot_checks"`
	Proof      *checkinProofWire `json:"proof"`
}

type beatVerifyResponse struct {
	Valid      bool   `json:"valid"`
	BeatIndex  uint64 `json:"beat_index"`
	Difficulty uint32 `json:"difficulty"`
}

type chainVerifyResponse struct {
	Valid         bool  `json:"valid"`
	ChainLength   int   `json:"chain_length"`
	BeatsChecked  []int `json:"beats_checked"`
	FailedIndices []int `json:"failed_indices"`
}

type proofVerifyResponse struct {
	Valid              bool   `json:"valid"`
	Reason             string `json:"reason,omitempty"`
	SpotChecksVerified int    `json:"spot_checks_verified"`
}

// handleVerify implements GET/POST /api/v1/beat/verify: GET returns mode
// metadata and the public cost bounds; POST dispatches on "mode" to the
// beat, chain or proof verifier.
func (h *Handlers) handleVerify(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleVerifyMetadata(w, r)
	case http.MethodPost:
		h.handleVerifyPost(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "only GET and POST are allowed")
	}
}

func (h *Handlers) handleVerifyMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, verifyMetadataResponse{
		Modes:               []string{"beat", "chain", "proof"},
		MinDifficulty:       hashchain.MinDifficulty,
		MaxDifficulty:       hashchain.MaxDifficulty,
		PublicMaxDifficulty: hashchain.PublicMaxDifficulty,
		PublicMaxSpotChecks: hashchain.PublicMaxSpotChecks,
		MaxChainBeats:       1000,
	})
}

func (h *Handlers) handleVerifyPost(w http.ResponseWriter, r *http.Request) {
	body, tooLarge, err := readBody(r)
	if tooLarge {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var req verifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	switch req.Mode {
	case "beat":
		h.verifyBeatMode(w, req)
	case "chain":
		h.verifyChainMode(w, req)
	case "proof":
		h.verifyProofMode(w, req)
	default:
		writeError(w, http.StatusBadRequest, "mode must be one of beat, chain, proof")
	}
}

func (h *Handlers) verifyBeatMode(w http.ResponseWriter, req verifyRequest) {
	if req.Beat == nil {
		writeError(w, http.StatusBadRequest, "beat is required for mode=beat")
		return
	}
	result := h.Verifier.VerifyBeatRequest(req.Beat.toBeat(), req.Difficulty)
	h.recordVerify("beat", result.Valid)
	writeJSON(w, http.StatusOK, beatVerifyResponse{
		Valid: result.Valid, BeatIndex: result.BeatIndex, Difficulty: result.Difficulty,
	})
}

func (h *Handlers) verifyChainMode(w http.ResponseWriter, req verifyRequest) {
	if len(req.Beats) == 0 {
		writeError(w, http.StatusBadRequest, "beats is required for mode=chain")
		return
	}
	spotChecks := req.SpotChecks
	if spotChecks <= 0 {
		spotChecks = hashchain.PublicMaxSpotChecks
	}

	beats := make([]hashchain.Beat, len(req.Beats))
	for i, b := range req.Beats {
		beats[i] = b.toBeat()
	}

	result, err := h.Verifier.VerifyChainRequest(beats, req.Difficulty, spotChecks)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.recordVerify("chain", result.Valid)
	writeJSON(w, http.StatusOK, chainVerifyResponse{
		Valid: result.Valid, ChainLength: result.ChainLength,
		BeatsChecked: result.BeatsChecked, FailedIndices: result.FailedIndices,
	})
}

func (h *Handlers) verifyProofMode(w http.ResponseWriter, req verifyRequest) {
	if req.Proof == nil {
		writeError(w, http.StatusBadRequest, "proof is required for mode=proof")
		return
	}
	result := h.Verifier.VerifyProofRequest(req.Proof.toCheckinProof(), req.Difficulty)
	h.recordVerify("proof", result.Valid)
	writeJSON(w, http.StatusOK, proofVerifyResponse{
		Valid: result.Valid, Reason: result.Reason, SpotChecksVerified: result.SpotChecksVerified,
	})
}

func (h *Handlers) recordVerify(mode string, valid bool) {
	if h.Metrics == nil {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	h.Metrics.VerifyRequestsTotal.WithLabelValues(mode, outcome).Inc()
}
