// Package hashchain implements the sequential-work hash chain primitive that
// underlies every beat and anchor in the system: a seed string is hashed
// once, then the resulting lowercase hex digest is re-hashed difficulty more
// times. The chain is defined over hex strings, not raw bytes — each
// iteration re-encodes to a 64-character lowercase hex string before the next
// SHA-256 pass, so implementations in other languages reproduce the same
// hashes bit for bit.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Beat is one step of the sequential hash chain at a chosen difficulty.
type Beat struct {
	Index      uint64
	Hash       string
	Prev       string
	Nonce      *string
	AnchorHash *string
}

// sha256Hex returns the lowercase hex SHA-256 digest of s's UTF-8 bytes.
func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// seedString builds the beat preimage. prev and index are always present;
// nonce and anchorHash are each appended with their own leading ":" only
// when present, independently of one another.
func seedString(prev string, index uint64, nonce, anchorHash *string) string {
	s := prev + ":" + strconv.FormatUint(index, 10)
	if nonce != nil {
		s += ":" + *nonce
	}
	if anchorHash != nil {
		s += ":" + *anchorHash
	}
	return s
}

// ComputeBeat builds the beat preimage, hashes it once, then iterates
// SHA-256 over the hex digest difficulty more times (difficulty+1 hash
// operations in total).
func ComputeBeat(prev string, index uint64, difficulty uint32, nonce, anchorHash *string) Beat {
	h := sha256Hex(seedString(prev, index, nonce, anchorHash))
	for i := uint32(0); i < difficulty; i++ {
		h = sha256Hex(h)
	}
	return Beat{
		Index:      index,
		Hash:       h,
		Prev:       prev,
		Nonce:      nonce,
		AnchorHash: anchorHash,
	}
}

// VerifyBeat recomputes the beat's hash at the given difficulty and compares.
func VerifyBeat(beat Beat, difficulty uint32) bool {
	recomputed := ComputeBeat(beat.Prev, beat.Index, difficulty, beat.Nonce, beat.AnchorHash)
	return recomputed.Hash == beat.Hash
}
