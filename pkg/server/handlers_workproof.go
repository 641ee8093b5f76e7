package server

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/provenonce/beats/pkg/hashchain"
	"github.com/provenonce/beats/pkg/verifier"
)

var hexHash64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

// workProofWire is the wire shape of a work-proof submission; per spec §4.7
// the body is either {"work_proof": WP} or WP itself.
type workProofWire struct {
	FromHash      string          `json:"from_hash"`
	ToHash        string          `json:"to_hash"`
	BeatsComputed uint64          `json:"beats_computed"`
	Difficulty    uint32          `json:"difficulty"`
	AnchorIndex   uint64          `json:"anchor_index"`
	AnchorHash    *string         `json:"anchor_hash,omitempty"`
	SpotChecks    []spotCheckWire `json:"spot_checks"`
}

type workProofEnvelope struct {
	WorkProof *workProofWire `json:"work_proof"`
}

type workProofResponse struct {
	Valid   bool                       `json:"valid"`
	Reason  string                     `json:"reason,omitempty"`
	Receipt *verifier.WorkProofReceipt `json:"receipt,omitempty"`
}

// handleWorkProof implements POST /api/v1/beat/work-proof: structural
// validation (400s) happens here at the transport boundary; domain logic
// and freshness/spot-check evaluation is delegated to pkg/verifier.
func (h *Handlers) handleWorkProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "only POST is allowed")
		return
	}

	body, tooLarge, err := decodeWorkProofBody(r)
	if tooLarge {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validateWorkProofStructure(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	spotChecks := body.SpotChecks
	if len(spotChecks) > hashchain.PublicMaxSpotChecks {
		spotChecks = spotChecks[:hashchain.PublicMaxSpotChecks]
	}
	scs := make([]hashchain.SpotCheck, len(spotChecks))
	for i, sc := range spotChecks {
		scs[i] = sc.toSpotCheck()
	}

	result, err := h.Verifier.VerifyWorkProof(r.Context(), verifier.WorkProofRequest{
		FromHash:      body.FromHash,
		ToHash:        body.ToHash,
		BeatsComputed: body.BeatsComputed,
		Difficulty:    body.Difficulty,
		AnchorIndex:   body.AnchorIndex,
		AnchorHash:    body.AnchorHash,
		SpotChecks:    scs,
	}, h.now())
	if err != nil {
		h.logger.Printf("work-proof verification failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.recordVerify("work-proof", result.Valid)
	writeJSON(w, http.StatusOK, workProofResponse{Valid: result.Valid, Reason: result.Reason, Receipt: result.Receipt})
}

func decodeWorkProofBody(r *http.Request) (body *workProofWire, tooLarge bool, err error) {
	raw, tooLarge, err := readBody(r)
	if tooLarge {
		return nil, true, err
	}
	if err != nil {
		return nil, false, errMalformedBody
	}

	var envelope workProofEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.WorkProof != nil {
		return envelope.WorkProof, false, nil
	}

	var flat workProofWire
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, false, errMalformedBody
	}
	return &flat, false, nil
}

var errMalformedBody = malformedBodyError("malformed JSON body")

type malformedBodyError string

func (e malformedBodyError) Error() string { return string(e) }

func validateWorkProofStructure(body *workProofWire) error {
	if !hexHash64.MatchString(body.FromHash) {
		return errField("from_hash must be 64 lowercase hex characters")
	}
	if !hexHash64.MatchString(body.ToHash) {
		return errField("to_hash must be 64 lowercase hex characters")
	}
	if body.BeatsComputed < 1 {
		return errField("beats_computed must be >= 1")
	}
	if body.AnchorHash != nil && !hexHash64.MatchString(*body.AnchorHash) {
		return errField("anchor_hash must be 64 lowercase hex characters")
	}
	if len(body.SpotChecks) < 1 || len(body.SpotChecks) > hashchain.PublicMaxSpotChecks {
		return errField("spot_checks length must be between 1 and PUBLIC_MAX_SPOT_CHECKS")
	}
	for _, sc := range body.SpotChecks {
		if !hexHash64.MatchString(sc.Hash) {
			return errField("spot_checks[].hash must be 64 lowercase hex characters")
		}
		if !hexHash64.MatchString(sc.Prev) {
			return errField("spot_checks[].prev must be 64 lowercase hex characters")
		}
	}
	return nil
}

func errField(msg string) error { return malformedBodyError(msg) }
