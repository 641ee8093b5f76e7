package hashchain

import (
	"testing"

	"github.com/mr-tron/base58"
)

func entropy(seed byte) string {
	b := make([]byte, 32)
	for i := range b {
		b[i] = seed
	}
	return base58.Encode(b)
}

func TestCreateAndVerifyGlobalAnchorV1(t *testing.T) {
	anchor, err := CreateGlobalAnchor(nil, 1000, 0, 1_700_000_000_000, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if anchor.BeatIndex != 0 || anchor.PrevHash != GenesisPrevHash() {
		t.Fatalf("expected genesis anchor, got %+v", anchor)
	}
	if !VerifyGlobalAnchor(anchor) {
		t.Fatalf("expected V1 anchor to verify")
	}
}

func TestCreateAndVerifyGlobalAnchorV3(t *testing.T) {
	anchor, err := CreateGlobalAnchor(nil, 1000, 0, 1_700_000_000_000, entropy(0x42))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if anchor.SolanaEntropy == nil {
		t.Fatalf("expected V3 anchor to carry entropy")
	}
	if !VerifyGlobalAnchor(anchor) {
		t.Fatalf("expected V3 anchor to verify")
	}

	next, err := CreateGlobalAnchor(&anchor, 1000, 0, 1_700_000_060_000, entropy(0x43))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.BeatIndex != 1 || next.PrevHash != anchor.Hash {
		t.Fatalf("expected chained anchor, got %+v", next)
	}
	if !VerifyGlobalAnchor(next) {
		t.Fatalf("expected chained V3 anchor to verify")
	}
}

func TestAnchorHashV3EntropySensitivity(t *testing.T) {
	prevHash := GenesisPrevHash()
	base, err := ComputeAnchorHashV3(prevHash, 0, entropy(0x01))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	diffEntropy, _ := ComputeAnchorHashV3(prevHash, 0, entropy(0x02))
	if diffEntropy == base {
		t.Fatalf("expected entropy change to change hash")
	}

	diffIndex, _ := ComputeAnchorHashV3(prevHash, 1, entropy(0x01))
	if diffIndex == base {
		t.Fatalf("expected beat_index change to change hash")
	}

	otherPrev := sha256Hex("different-prev")
	diffPrev, _ := ComputeAnchorHashV3(otherPrev, 0, entropy(0x01))
	if diffPrev == base {
		t.Fatalf("expected prev_hash change to change hash")
	}
}

func TestVerifyGlobalAnchorRejectsTamperedHash(t *testing.T) {
	anchor, _ := CreateGlobalAnchor(nil, 1000, 0, 1_700_000_000_000, entropy(0x10))
	tampered := []byte(anchor.Hash)
	tampered[0] = flipNibble(tampered[0])
	anchor.Hash = string(tampered)

	if VerifyGlobalAnchor(anchor) {
		t.Fatalf("expected tampered anchor to fail verification")
	}
}
