package hashchain

import "testing"

func buildCheckinProof(n int, difficulty uint32) CheckinProof {
	beats := buildChain(n, difficulty)
	computed := uint64(n - 1)
	spots := []SpotCheck{
		{Index: 0, Hash: beats[0].Hash, Prev: beats[0].Prev, Nonce: beats[0].Nonce},
		{Index: uint64(n / 2), Hash: beats[n/2].Hash, Prev: beats[n/2].Prev, Nonce: beats[n/2].Nonce},
		{Index: uint64(n - 1), Hash: beats[n-1].Hash, Prev: beats[n-1].Prev, Nonce: beats[n-1].Nonce},
	}
	return CheckinProof{
		FromBeat:      0,
		ToBeat:        uint64(n - 1),
		FromHash:      beats[0].Hash,
		ToHash:        beats[n-1].Hash,
		BeatsComputed: &computed,
		SpotChecks:    spots,
	}
}

// S3 from spec.md §8: a valid check-in proof over a 20-beat run verifies,
// and corrupting one spot check's hash fails verification.
func TestScenarioS3CheckinProof(t *testing.T) {
	proof := buildCheckinProof(20, 5)

	result := VerifyCheckinProof(proof, 5)
	if !result.Valid {
		t.Fatalf("expected valid check-in proof, got reason %q", result.Reason)
	}
	if result.SpotChecksVerified != len(proof.SpotChecks) {
		t.Fatalf("expected all spot checks verified, got %d", result.SpotChecksVerified)
	}

	proof.SpotChecks[1].Hash = sha256Hex("corrupted")
	result = VerifyCheckinProof(proof, 5)
	if result.Valid {
		t.Fatalf("expected corrupted spot check to fail verification")
	}
}

func TestVerifyCheckinProofRejectsBackwardRange(t *testing.T) {
	proof := buildCheckinProof(20, 5)
	proof.ToBeat = proof.FromBeat

	result := VerifyCheckinProof(proof, 5)
	if result.Valid {
		t.Fatalf("expected non-forward range to be rejected")
	}
	if result.Reason != "Beat range must be forward-moving" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestVerifyCheckinProofRejectsBeatCountMismatch(t *testing.T) {
	proof := buildCheckinProof(20, 5)
	bogus := uint64(999)
	proof.BeatsComputed = &bogus

	result := VerifyCheckinProof(proof, 5)
	if result.Valid || result.Reason != "Beat count mismatch" {
		t.Fatalf("expected beat count mismatch, got valid=%v reason=%q", result.Valid, result.Reason)
	}
}

func TestVerifyCheckinProofRejectsInsufficientSpotChecks(t *testing.T) {
	proof := buildCheckinProof(20, 5)
	proof.SpotChecks = proof.SpotChecks[:1]

	result := VerifyCheckinProof(proof, 5)
	if result.Valid || result.Reason != "insufficient_spot_checks" {
		t.Fatalf("expected insufficient_spot_checks, got valid=%v reason=%q", result.Valid, result.Reason)
	}
}

func TestVerifyCheckinProofRequiresToBeatSpotCheck(t *testing.T) {
	proof := buildCheckinProof(20, 5)
	beats := buildChain(20, 5)
	// Swap the to_beat spot check for a different, still-valid one so the
	// spot check count stays above the minimum but to_beat is never covered.
	proof.SpotChecks[2] = SpotCheck{Index: 3, Hash: beats[3].Hash, Prev: beats[3].Prev, Nonce: beats[3].Nonce}

	result := VerifyCheckinProof(proof, 5)
	if result.Valid || result.Reason != "Spot checks must include to_beat" {
		t.Fatalf("expected missing to_beat spot check reason, got valid=%v reason=%q", result.Valid, result.Reason)
	}
}
