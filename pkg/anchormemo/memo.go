// Package anchormemo parses and serializes the on-ledger wire encoding of a
// GlobalAnchor: canonical JSON, prefixed on read by the ledger with an
// optional "[n] " sequence marker.
package anchormemo

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/provenonce/beats/pkg/commitment"
)

var hexHash64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

// MaxMemoBytes is the serialized size limit of an anchor memo, chosen to fit
// a single ledger memo instruction.
const MaxMemoBytes = 566

// Memo is the normalized, in-memory form of an anchor memo. PrevHash is the
// rename of the wire field "prev".
type Memo struct {
	BeatIndex     uint64
	Hash          string
	PrevHash      string
	UTC           int64
	Difficulty    uint32
	Epoch         uint32
	SolanaEntropy *string
}

// wireMemo mirrors the exact on-ledger JSON shape, field for field.
type wireMemo struct {
	V             int     `json:"v"`
	Type          string  `json:"type"`
	BeatIndex     *int64  `json:"beat_index"`
	Hash          string  `json:"hash"`
	Prev          string  `json:"prev"`
	UTC           *int64  `json:"utc"`
	Difficulty    *int64  `json:"difficulty"`
	Epoch         *int64  `json:"epoch"`
	SolanaEntropy *string `json:"solana_entropy,omitempty"`
}

// ParseResult is the structured outcome of Parse: malformed input is never
// an error, only a typed non-match so callers can skip it silently when
// scanning a ledger for anchor memos among other memo types.
type ParseResult struct {
	Memo Memo
	Ok   bool
	// Reason is set only when Ok is false.
	Reason string
}

// indexPrefix matches the "[n] " sequence-marker prefix some ledgers attach
// to memos; it must be stripped before JSON parsing.
var indexPrefix = regexp.MustCompile(`^\[\d+\]\s`)

// Parse strips any leading "[n] " sequence marker and decodes raw as an
// anchor memo, validating every field's shape per spec. Anything that isn't
// a well-formed anchor memo (wrong v/type, malformed hash, negative index,
// zero difficulty, not even JSON) comes back as ParseResult{Ok: false}.
func Parse(raw string) ParseResult {
	trimmed := indexPrefix.ReplaceAllString(raw, "")

	var w wireMemo
	if err := json.Unmarshal([]byte(trimmed), &w); err != nil {
		return ParseResult{Reason: "not an anchor memo"}
	}

	if w.V != 1 || w.Type != "anchor" {
		return ParseResult{Reason: "not an anchor memo"}
	}
	if w.BeatIndex == nil || *w.BeatIndex < 0 {
		return ParseResult{Reason: "not an anchor memo"}
	}
	if w.UTC == nil || *w.UTC < 0 {
		return ParseResult{Reason: "not an anchor memo"}
	}
	if w.Difficulty == nil || *w.Difficulty <= 0 {
		return ParseResult{Reason: "not an anchor memo"}
	}
	if w.Epoch == nil || *w.Epoch < 0 {
		return ParseResult{Reason: "not an anchor memo"}
	}
	if !hexHash64.MatchString(strings.ToLower(w.Hash)) {
		return ParseResult{Reason: "not an anchor memo"}
	}
	if !hexHash64.MatchString(strings.ToLower(w.Prev)) {
		return ParseResult{Reason: "not an anchor memo"}
	}

	memo := Memo{
		BeatIndex:     uint64(*w.BeatIndex),
		Hash:          strings.ToLower(w.Hash),
		PrevHash:      strings.ToLower(w.Prev),
		UTC:           *w.UTC,
		Difficulty:    uint32(*w.Difficulty),
		Epoch:         uint32(*w.Epoch),
		SolanaEntropy: w.SolanaEntropy,
	}
	return ParseResult{Memo: memo, Ok: true}
}

// Serialize encodes memo as canonical anchor-memo JSON (field "prev", v:1,
// type:"anchor") and enforces the 566-byte ledger memo size cap.
func Serialize(memo Memo) (string, error) {
	beatIndex := int64(memo.BeatIndex)
	utc := memo.UTC
	difficulty := int64(memo.Difficulty)
	epoch := int64(memo.Epoch)

	w := wireMemo{
		V:             1,
		Type:          "anchor",
		BeatIndex:     &beatIndex,
		Hash:          memo.Hash,
		Prev:          memo.PrevHash,
		UTC:           &utc,
		Difficulty:    &difficulty,
		Epoch:         &epoch,
		SolanaEntropy: memo.SolanaEntropy,
	}

	encoded, err := commitment.MarshalCanonical(w)
	if err != nil {
		return "", err
	}
	if len(encoded) > MaxMemoBytes {
		return "", errMemoTooLarge(len(encoded))
	}
	return string(encoded), nil
}

type memoSizeError int

func (e memoSizeError) Error() string {
	return "anchor memo exceeds size limit"
}

func errMemoTooLarge(_ int) error { return memoSizeError(0) }
