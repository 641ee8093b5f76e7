// Package signer derives the two Ed25519 signing keys Beats uses from a
// single process-wide anchor secret, and signs receipt payloads over their
// canonical JSON encoding.
package signer

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/hkdf"

	"github.com/provenonce/beats/pkg/commitment"
)

const (
	timestampInfo = "provenonce:beats:timestamp-receipt:v1"
	workProofInfo = "provenonce:beats:work-proof:v1"
)

// KeyHierarchy holds the two Ed25519 keypairs derived from the process-wide
// anchor secret via HKDF-SHA256 with an empty salt. The master seed is not
// kept after derivation, and both private keys live only in this struct;
// signing never echoes a key back to a caller.
type KeyHierarchy struct {
	timestampKey ed25519.PrivateKey
	workProofKey ed25519.PrivateKey
}

// NewKeyHierarchy derives both subkeys from secret (the raw anchor secret
// bytes, typically loaded once from the environment at process start).
func NewKeyHierarchy(secret []byte) (*KeyHierarchy, error) {
	master := sha256.Sum256(secret)

	timestampKey, err := deriveEd25519Key(master[:], timestampInfo)
	if err != nil {
		return nil, fmt.Errorf("deriving timestamp receipt key: %w", err)
	}
	workProofKey, err := deriveEd25519Key(master[:], workProofInfo)
	if err != nil {
		return nil, fmt.Errorf("deriving work-proof key: %w", err)
	}

	return &KeyHierarchy{timestampKey: timestampKey, workProofKey: workProofKey}, nil
}

func deriveEd25519Key(master []byte, info string) (ed25519.PrivateKey, error) {
	kdf := hkdf.New(sha256.New, master, nil, []byte(info))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// TimestampPublicKey returns the timestamp-receipt public key, hex and
// base58 encoded.
func (k *KeyHierarchy) TimestampPublicKey() (hexKey, base58Key string) {
	pub := k.timestampKey.Public().(ed25519.PublicKey)
	return hex.EncodeToString(pub), base58.Encode(pub)
}

// WorkProofPublicKey returns the work-proof public key, hex and base58
// encoded.
func (k *KeyHierarchy) WorkProofPublicKey() (hexKey, base58Key string) {
	pub := k.workProofKey.Public().(ed25519.PublicKey)
	return hex.EncodeToString(pub), base58.Encode(pub)
}

// SignTimestampReceipt signs payload (a map or struct marshalable to JSON,
// and which must NOT already carry a "signature" field) over its canonical
// JSON encoding with the timestamp-receipt key, and returns the signature
// hex-encoded.
func (k *KeyHierarchy) SignTimestampReceipt(payload interface{}) (string, error) {
	return signCanonical(k.timestampKey, payload)
}

// SignWorkProofReceipt signs payload over its canonical JSON encoding with
// the work-proof key, returning the signature hex-encoded.
func (k *KeyHierarchy) SignWorkProofReceipt(payload interface{}) (string, error) {
	return signCanonical(k.workProofKey, payload)
}

func signCanonical(key ed25519.PrivateKey, payload interface{}) (string, error) {
	encoded, err := commitment.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalizing receipt payload: %w", err)
	}
	sig := ed25519.Sign(key, encoded)
	return hex.EncodeToString(sig), nil
}

// VerifyReceipt is the counterpart a third party runs: reconstruct the
// canonical JSON of payload (which must already exclude "signature") and
// check sig (hex) against pubKey (hex).
func VerifyReceipt(pubKeyHex string, payload interface{}, sigHex string) (bool, error) {
	pub, err := hex.DecodeString(pubKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key")
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("invalid signature")
	}
	encoded, err := commitment.MarshalCanonical(payload)
	if err != nil {
		return false, fmt.Errorf("canonicalizing receipt payload: %w", err)
	}
	return ed25519.Verify(ed25519.PublicKey(pub), encoded, sig), nil
}
