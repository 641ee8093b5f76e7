package hashchain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/mr-tron/base58"
)

// anchorDomainV3 is the 19-byte UTF-8 domain prefix of the V3 anchor
// preimage. Its length is part of the wire format: 91 = 19 + 32 + 8 + 32.
const anchorDomainV3 = "PROVENONCE_BEATS_V1"

// genesisSeed is hashed once to produce the prev_hash of beat_index 0.
const genesisSeed = "provenonce:beat:genesis:v1:2026"

// GlobalAnchor is a beat published to the public ledger; it serves as the
// global clock tick. Exactly one of the two hash formulas (V1 legacy,
// V3 with external entropy) produced Hash, selected by whether
// SolanaEntropy is present.
type GlobalAnchor struct {
	BeatIndex     uint64
	Hash          string
	PrevHash      string
	UTC           int64
	Difficulty    uint32
	Epoch         uint32
	SolanaEntropy *string // base58-encoded 32 bytes, present only for V3
	Signature     *string // ledger transaction id, set once published
}

// GenesisPrevHash is SHA-256("provenonce:beat:genesis:v1:2026"), the
// prev_hash required of the beat_index-0 anchor.
func GenesisPrevHash() string {
	return sha256Hex(genesisSeed)
}

// ComputeAnchorHashV3 hashes the 91-byte preimage
// domain(19B) || prev_hash(32B) || beat_index_be(8B) || entropy(32B) once;
// unlike the beat chain this is a single SHA-256 pass, not an iterated one.
func ComputeAnchorHashV3(prevHash string, beatIndex uint64, entropyBase58 string) (string, error) {
	prevBytes, err := hex.DecodeString(prevHash)
	if err != nil || len(prevBytes) != 32 {
		return "", errInvalidHash("prev_hash")
	}
	entropyBytes, err := base58.Decode(entropyBase58)
	if err != nil || len(entropyBytes) != 32 {
		return "", errInvalidHash("solana_entropy")
	}

	preimage := make([]byte, 0, 91)
	preimage = append(preimage, []byte(anchorDomainV3)...)
	preimage = append(preimage, prevBytes...)
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], beatIndex)
	preimage = append(preimage, idx[:]...)
	preimage = append(preimage, entropyBytes...)

	sum := sha256.Sum256(preimage)
	return hex.EncodeToString(sum[:]), nil
}

type hashFormatError string

func (e hashFormatError) Error() string { return "invalid " + string(e) + " format" }

func errInvalidHash(field string) error { return hashFormatError(field) }

// anchorV1Nonce builds the legacy nonce embedded in the beat-shaped V1 seed.
func anchorV1Nonce(utc int64, epoch uint32) string {
	return "anchor:" + strconv.FormatInt(utc, 10) + ":" + strconv.FormatUint(uint64(epoch), 10)
}

// CreateGlobalAnchor computes the next anchor following prev (or the
// genesis anchor if prev is nil). If entropy is non-empty the V3 formula is
// used; otherwise the legacy V1 formula (a beat with a synthetic
// "anchor:utc:epoch" nonce, iterated difficulty times) is used.
func CreateGlobalAnchor(prev *GlobalAnchor, difficulty, epoch uint32, utcNowMS int64, entropyBase58 string) (GlobalAnchor, error) {
	var prevHash string
	var beatIndex uint64
	if prev == nil {
		prevHash = GenesisPrevHash()
		beatIndex = 0
	} else {
		prevHash = prev.Hash
		beatIndex = prev.BeatIndex + 1
	}

	anchor := GlobalAnchor{
		BeatIndex:  beatIndex,
		PrevHash:   prevHash,
		UTC:        utcNowMS,
		Difficulty: difficulty,
		Epoch:      epoch,
	}

	if entropyBase58 != "" {
		hash, err := ComputeAnchorHashV3(prevHash, beatIndex, entropyBase58)
		if err != nil {
			return GlobalAnchor{}, err
		}
		anchor.Hash = hash
		anchor.SolanaEntropy = &entropyBase58
		return anchor, nil
	}

	nonce := anchorV1Nonce(utcNowMS, epoch)
	beat := ComputeBeat(prevHash, beatIndex, difficulty, &nonce, nil)
	anchor.Hash = beat.Hash
	return anchor, nil
}

// VerifyGlobalAnchor recomputes the anchor's hash using whichever formula
// its shape implies and compares against the claimed Hash.
func VerifyGlobalAnchor(anchor GlobalAnchor) bool {
	if len(anchor.Hash) != 64 || len(anchor.PrevHash) != 64 {
		return false
	}
	if anchor.SolanaEntropy != nil {
		hash, err := ComputeAnchorHashV3(anchor.PrevHash, anchor.BeatIndex, *anchor.SolanaEntropy)
		if err != nil {
			return false
		}
		return hash == anchor.Hash
	}
	nonce := anchorV1Nonce(anchor.UTC, anchor.Epoch)
	beat := ComputeBeat(anchor.PrevHash, anchor.BeatIndex, anchor.Difficulty, &nonce, nil)
	return beat.Hash == anchor.Hash
}
