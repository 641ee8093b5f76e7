package signer

import "testing"

func testHierarchy(t *testing.T) *KeyHierarchy {
	t.Helper()
	h, err := NewKeyHierarchy([]byte("test-anchor-secret-do-not-use-in-prod"))
	if err != nil {
		t.Fatalf("unexpected error deriving key hierarchy: %v", err)
	}
	return h
}

// S7 from spec.md §8: a third party fetches the public key, reconstructs
// canonical JSON of the receipt minus its signature, and verifies. Flipping
// any byte of a signed field must invalidate the signature.
func TestScenarioS7ReceiptVerification(t *testing.T) {
	h := testHierarchy(t)
	pubHex, _ := h.TimestampPublicKey()

	payload := map[string]interface{}{
		"type":         "timestamp",
		"hash":         "aa11",
		"anchor_index": 42,
		"anchor_hash":  "bb22",
		"utc":          1_700_000_000_000,
	}

	sig, err := h.SignTimestampReceipt(payload)
	if err != nil {
		t.Fatalf("unexpected signing error: %v", err)
	}

	ok, err := VerifyReceipt(pubHex, payload, sig)
	if err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid receipt to verify")
	}

	tampered := map[string]interface{}{
		"type":         "timestamp",
		"hash":         "aa12", // one nibble flipped
		"anchor_index": 42,
		"anchor_hash":  "bb22",
		"utc":          1_700_000_000_000,
	}
	ok, err = VerifyReceipt(pubHex, tampered, sig)
	if err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mutated hash field to invalidate signature")
	}

	tamperedUTC := map[string]interface{}{
		"type":         "timestamp",
		"hash":         "aa11",
		"anchor_index": 42,
		"anchor_hash":  "bb22",
		"utc":          1_700_000_000_001,
	}
	ok, _ = VerifyReceipt(pubHex, tamperedUTC, sig)
	if ok {
		t.Fatalf("expected mutated utc field to invalidate signature")
	}
}

// Property 8 from spec.md §8: timestamp and work-proof public keys differ.
func TestHKDFKeySeparation(t *testing.T) {
	h := testHierarchy(t)

	tsHex, tsB58 := h.TimestampPublicKey()
	wpHex, wpB58 := h.WorkProofPublicKey()

	if tsHex == wpHex {
		t.Fatalf("expected distinct hex public keys, both were %s", tsHex)
	}
	if tsB58 == wpB58 {
		t.Fatalf("expected distinct base58 public keys, both were %s", tsB58)
	}
}

func TestKeyHierarchyIsDeterministicFromSecret(t *testing.T) {
	a, _ := NewKeyHierarchy([]byte("same-secret"))
	b, _ := NewKeyHierarchy([]byte("same-secret"))

	aHex, _ := a.TimestampPublicKey()
	bHex, _ := b.TimestampPublicKey()
	if aHex != bHex {
		t.Fatalf("expected same secret to derive same public key, got %s vs %s", aHex, bHex)
	}
}

func TestDifferentSecretsProduceDifferentKeys(t *testing.T) {
	a, _ := NewKeyHierarchy([]byte("secret-one"))
	b, _ := NewKeyHierarchy([]byte("secret-two"))

	aHex, _ := a.TimestampPublicKey()
	bHex, _ := b.TimestampPublicKey()
	if aHex == bHex {
		t.Fatalf("expected different secrets to derive different public keys")
	}
}

func TestCanonicalJSONKeyOrderStability(t *testing.T) {
	h := testHierarchy(t)

	a := map[string]interface{}{"a": 1, "b": 2}
	b := map[string]interface{}{"b": 2, "a": 1}

	sigA, _ := h.SignTimestampReceipt(a)
	sigB, _ := h.SignTimestampReceipt(b)
	if sigA != sigB {
		t.Fatalf("expected key-order-independent canonical JSON to sign identically")
	}
}

func TestVerifyReceiptRejectsMalformedKeyOrSignature(t *testing.T) {
	payload := map[string]interface{}{"a": 1}

	if _, err := VerifyReceipt("not-hex", payload, "deadbeef"); err == nil {
		t.Fatalf("expected invalid public key hex to error")
	}

	h := testHierarchy(t)
	pubHex, _ := h.TimestampPublicKey()
	if _, err := VerifyReceipt(pubHex, payload, "not-hex"); err == nil {
		t.Fatalf("expected invalid signature hex to error")
	}
}
