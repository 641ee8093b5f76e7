// Package verifier implements the public verification endpoints (C7): beat,
// chain, proof and work-proof modes. Every function here is transport-free —
// it takes already-decoded request structs and returns already-typed
// results; pkg/server owns the HTTP/JSON boundary and the §7 status-code
// mapping.
package verifier

import (
	"context"
	"fmt"

	"github.com/provenonce/beats/pkg/anchorcache"
	"github.com/provenonce/beats/pkg/hashchain"
	"github.com/provenonce/beats/pkg/metrics"
	"github.com/provenonce/beats/pkg/signer"
)

// MaxChainBeats is the hard cap on beats accepted by chain mode, per spec
// §4.7.
const MaxChainBeats = 1000

// Verifier bundles the dependencies the verification endpoints need beyond
// pure hashchain math: the anchor cache (for work-proof freshness binding)
// and the signer (for work-proof receipts).
type Verifier struct {
	AnchorCache *anchorcache.Cache
	Signer      *signer.KeyHierarchy
	Metrics     *metrics.Registry // optional; nil disables instrumentation
}

// countBeatsComputed records n recomputed beats against the optional
// metrics registry; safe to call with a nil Metrics.
func (v *Verifier) countBeatsComputed(n int) {
	if v.Metrics == nil || n <= 0 {
		return
	}
	v.Metrics.BeatsComputedTotal.Add(float64(n))
}

// New builds a Verifier.
func New(cache *anchorcache.Cache, keys *signer.KeyHierarchy) *Verifier {
	return &Verifier{AnchorCache: cache, Signer: keys}
}

// --- beat mode -------------------------------------------------------------

// BeatResult is the response shape for mode "beat".
type BeatResult struct {
	Valid      bool
	BeatIndex  uint64
	Difficulty uint32
}

// VerifyBeatRequest recomputes a single beat at a clamped difficulty.
func (v *Verifier) VerifyBeatRequest(beat hashchain.Beat, difficulty uint32) BeatResult {
	d := hashchain.ClampPublicDifficulty(difficulty)
	valid := hashchain.VerifyBeat(beat, d)
	v.countBeatsComputed(1)
	return BeatResult{
		Valid:      valid,
		BeatIndex:  beat.Index,
		Difficulty: d,
	}
}

// --- chain mode --------------------------------------------------------------

// ChainResult is the response shape for mode "chain".
type ChainResult struct {
	Valid         bool
	ChainLength   int
	BeatsChecked  []int
	FailedIndices []int
}

// VerifyChainRequest validates prev-linkage over the whole chain (O(n), far
// cheaper than a single spot-check) and then deterministically spot-checks
// spotCount of them at a clamped difficulty. A structural linkage break adds
// its index to FailedIndices even though it isn't part of the sampled set.
func (v *Verifier) VerifyChainRequest(beats []hashchain.Beat, difficulty uint32, spotCount int) (ChainResult, error) {
	if len(beats) == 0 {
		return ChainResult{}, fmt.Errorf("beats must be non-empty")
	}
	if len(beats) > MaxChainBeats {
		return ChainResult{}, fmt.Errorf("beats exceeds the %d-beat limit", MaxChainBeats)
	}
	if spotCount > hashchain.PublicMaxSpotChecks {
		spotCount = hashchain.PublicMaxSpotChecks
	}
	if spotCount <= 0 {
		spotCount = 1
	}

	d := hashchain.ClampPublicDifficulty(difficulty)

	result := ChainResult{Valid: true, ChainLength: len(beats)}
	linkageBreaks := map[int]bool{}
	for i := 1; i < len(beats); i++ {
		if beats[i].Prev != beats[i-1].Hash {
			linkageBreaks[i] = true
			result.Valid = false
		}
	}

	spotResult := hashchain.VerifyBeatChain(beats, d, spotCount)
	result.BeatsChecked = spotResult.Checked
	v.countBeatsComputed(len(spotResult.Checked))
	if !spotResult.Valid {
		result.Valid = false
	}

	failed := map[int]bool{}
	for _, idx := range spotResult.Failed {
		failed[idx] = true
	}
	for idx := range linkageBreaks {
		failed[idx] = true
	}
	for idx := 0; idx < len(beats); idx++ {
		if failed[idx] {
			result.FailedIndices = append(result.FailedIndices, idx)
		}
	}

	return result, nil
}

// --- proof mode --------------------------------------------------------------

// ProofResult is the response shape for mode "proof".
type ProofResult struct {
	Valid              bool
	Reason             string
	SpotChecksVerified int
}

// VerifyProofRequest delegates straight to hashchain's check-in proof
// verifier, clamping the difficulty and the spot-check count first.
func (v *Verifier) VerifyProofRequest(proof hashchain.CheckinProof, difficulty uint32) ProofResult {
	d := hashchain.ClampPublicDifficulty(difficulty)
	if len(proof.SpotChecks) > hashchain.PublicMaxSpotChecks {
		proof.SpotChecks = proof.SpotChecks[:hashchain.PublicMaxSpotChecks]
	}
	result := hashchain.VerifyCheckinProof(proof, d)
	v.countBeatsComputed(result.SpotChecksVerified)
	return ProofResult{
		Valid:              result.Valid,
		Reason:             result.Reason,
		SpotChecksVerified: result.SpotChecksVerified,
	}
}

// --- work-proof mode ---------------------------------------------------------

// WorkProofRequest mirrors the wire shape of §3's WorkProofRequest.
type WorkProofRequest struct {
	FromHash      string
	ToHash        string
	BeatsComputed uint64
	Difficulty    uint32
	AnchorIndex   uint64
	AnchorHash    *string
	SpotChecks    []hashchain.SpotCheck
}

// WorkProofResult is the response shape for the work-proof endpoint.
// Receipt is populated only when Valid is true.
type WorkProofResult struct {
	Valid   bool
	Reason  string
	Receipt *WorkProofReceipt
}

// workProofReceiptPayload is exactly what gets signed — the receipt minus
// its own Signature field, per spec §6 ("signed over the object excluding
// signature").
type workProofReceiptPayload struct {
	FromHash      string  `json:"from_hash"`
	ToHash        string  `json:"to_hash"`
	BeatsComputed uint64  `json:"beats_computed"`
	Difficulty    uint32  `json:"difficulty"`
	AnchorIndex   uint64  `json:"anchor_index"`
	AnchorHash    *string `json:"anchor_hash,omitempty"`
	IssuedAt      int64   `json:"issued_at"`
}

// WorkProofReceipt is the signed acknowledgement of a successful
// work-proof submission, per spec §6.
type WorkProofReceipt struct {
	FromHash      string  `json:"from_hash"`
	ToHash        string  `json:"to_hash"`
	BeatsComputed uint64  `json:"beats_computed"`
	Difficulty    uint32  `json:"difficulty"`
	AnchorIndex   uint64  `json:"anchor_index"`
	AnchorHash    *string `json:"anchor_hash,omitempty"`
	IssuedAt      int64   `json:"issued_at"`
	Signature     string  `json:"signature"`
}

// VerifyWorkProof runs the full work-proof state machine described in spec
// §4.7: structural checks are the caller's responsibility (pkg/server
// returns 400 before ever calling this), so by the time VerifyWorkProof
// runs, req is known to be well-formed and this only evaluates domain
// logic, anchor freshness and the spot checks themselves.
func (v *Verifier) VerifyWorkProof(ctx context.Context, req WorkProofRequest, nowMS int64) (WorkProofResult, error) {
	if req.Difficulty < hashchain.MinDifficulty {
		return WorkProofResult{Reason: "insufficient_difficulty"}, nil
	}
	difficulty := req.Difficulty
	if difficulty > hashchain.PublicMaxDifficulty {
		difficulty = hashchain.PublicMaxDifficulty
	}

	minSpotChecks := uint64(3)
	if req.BeatsComputed < minSpotChecks {
		minSpotChecks = req.BeatsComputed
	}
	if uint64(len(req.SpotChecks)) < minSpotChecks {
		return WorkProofResult{Reason: "insufficient_spot_checks"}, nil
	}

	minIdx, maxIdx := req.SpotChecks[0].Index, req.SpotChecks[0].Index
	for _, sc := range req.SpotChecks {
		if sc.Index < minIdx {
			minIdx = sc.Index
		}
		if sc.Index > maxIdx {
			maxIdx = sc.Index
		}
	}
	if maxIdx-minIdx > req.BeatsComputed {
		return WorkProofResult{Reason: "count_mismatch"}, nil
	}

	if v.AnchorCache != nil {
		tip, ok, err := v.AnchorCache.Get(ctx)
		if err != nil {
			return WorkProofResult{}, fmt.Errorf("reading current anchor: %w", err)
		}
		if ok {
			if req.AnchorIndex > tip.BeatIndex || tip.BeatIndex-req.AnchorIndex > hashchain.AnchorHashGraceWindow {
				return WorkProofResult{Reason: "stale_anchor"}, nil
			}
		}
	}

	for _, sc := range req.SpotChecks {
		beat := hashchain.Beat{Index: sc.Index, Hash: sc.Hash, Prev: sc.Prev, Nonce: sc.Nonce, AnchorHash: req.AnchorHash}
		valid := hashchain.VerifyBeat(beat, difficulty)
		v.countBeatsComputed(1)
		if !valid {
			return WorkProofResult{Reason: "spot_check_failed"}, nil
		}
	}

	payload := workProofReceiptPayload{
		FromHash:      req.FromHash,
		ToHash:        req.ToHash,
		BeatsComputed: req.BeatsComputed,
		Difficulty:    difficulty,
		AnchorIndex:   req.AnchorIndex,
		AnchorHash:    req.AnchorHash,
		IssuedAt:      nowMS,
	}
	sig, err := v.Signer.SignWorkProofReceipt(payload)
	if err != nil {
		return WorkProofResult{}, fmt.Errorf("signing work-proof receipt: %w", err)
	}

	receipt := WorkProofReceipt{
		FromHash:      payload.FromHash,
		ToHash:        payload.ToHash,
		BeatsComputed: payload.BeatsComputed,
		Difficulty:    payload.Difficulty,
		AnchorIndex:   payload.AnchorIndex,
		AnchorHash:    payload.AnchorHash,
		IssuedAt:      payload.IssuedAt,
		Signature:     sig,
	}

	return WorkProofResult{Valid: true, Receipt: &receipt}, nil
}
