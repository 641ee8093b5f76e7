// Package timestamp implements the timestamping endpoint (C8): bind an
// opaque 32-byte digest to the current canonical anchor, publish a
// timestamp memo, and return a signed receipt.
package timestamp

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/provenonce/beats/pkg/anchorcache"
	"github.com/provenonce/beats/pkg/commitment"
	"github.com/provenonce/beats/pkg/ledger"
	"github.com/provenonce/beats/pkg/signer"
)

var hexHash64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ValidHashHex reports whether hash is a well-formed lowercase 64-char hex
// digest.
func ValidHashHex(hash string) bool {
	return hexHash64.MatchString(hash)
}

// Outcome identifies which branch of the timestamping flow Timestamp
// terminated in.
type Outcome string

const (
	OutcomeTimestamped Outcome = "timestamped"
	OutcomeNoAnchor    Outcome = "no_anchor"    // 503: cold start, nothing to bind to yet
	OutcomeLowBalance  Outcome = "low_balance"  // 503: writer can't afford to publish
)

// Memo is the wire shape of a timestamp memo, per spec §6.
type Memo struct {
	V           int    `json:"v"`
	Type        string `json:"type"`
	Hash        string `json:"hash"`
	AnchorIndex uint64 `json:"anchor_index"`
	AnchorHash  string `json:"anchor_hash"`
	UTC         int64  `json:"utc"`
}

// receiptPayload is exactly what's signed: the memo's fields other than v,
// plus the resulting transaction signature, per spec §6.
type receiptPayload struct {
	Type        string `json:"type"`
	Hash        string `json:"hash"`
	AnchorIndex uint64 `json:"anchor_index"`
	AnchorHash  string `json:"anchor_hash"`
	UTC         int64  `json:"utc"`
	TxSignature string `json:"tx_signature"`
}

// OnChain describes where the timestamp memo landed.
type OnChain struct {
	TxSignature string `json:"tx_signature"`
	ExplorerURL string `json:"explorer_url"`
}

// Receipt is the signed acknowledgement returned to the caller.
type Receipt struct {
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
}

// Response is the full success response body.
type Response struct {
	Timestamp Memo    `json:"timestamp"`
	OnChain   OnChain `json:"on_chain"`
	Receipt   Receipt `json:"receipt"`
	Tier      string  `json:"tier"`
}

// Result is the outcome of a Timestamp call.
type Result struct {
	Outcome  Outcome
	Response *Response // set only when Outcome == OutcomeTimestamped
}

// Timestamper binds digests to the current anchor and publishes timestamp
// memos.
type Timestamper struct {
	Ledger      ledger.Ledger
	Writer      string
	AnchorCache *anchorcache.Cache
	Signer      *signer.KeyHierarchy
	RPCURL      string // NEXT_PUBLIC_SOLANA_RPC_URL, used only to pick an explorer cluster
}

// New builds a Timestamper.
func New(l ledger.Ledger, writer string, cache *anchorcache.Cache, keys *signer.KeyHierarchy, rpcURL string) *Timestamper {
	return &Timestamper{Ledger: l, Writer: writer, AnchorCache: cache, Signer: keys, RPCURL: rpcURL}
}

// Timestamp binds hashHex to the current anchor, publishes a timestamp
// memo, and signs a receipt. tier is the caller's rate-limit tier ("free"
// or "pro"), echoed back verbatim — Timestamper has no notion of identity
// or quotas itself (see pkg/ratelimit).
func (t *Timestamper) Timestamp(ctx context.Context, hashHex string, nowMS int64, tier string) (Result, error) {
	tip, ok, err := t.AnchorCache.Get(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reading current anchor: %w", err)
	}
	if !ok {
		return Result{Outcome: OutcomeNoAnchor}, nil
	}

	balance, err := t.Ledger.AccountBalance(ctx, t.Writer)
	if err != nil {
		return Result{}, fmt.Errorf("checking writer balance: %w", err)
	}
	if balance < ledger.MinPublishBalance {
		return Result{Outcome: OutcomeLowBalance}, nil
	}

	memo := Memo{
		V:           1,
		Type:        "timestamp",
		Hash:        hashHex,
		AnchorIndex: tip.BeatIndex,
		AnchorHash:  tip.Hash,
		UTC:         nowMS,
	}

	encoded, err := commitment.MarshalCanonical(memo)
	if err != nil {
		return Result{}, fmt.Errorf("encoding timestamp memo: %w", err)
	}

	published, err := t.Ledger.PublishMemo(ctx, t.Writer, encoded)
	if err != nil {
		return Result{}, fmt.Errorf("publishing timestamp memo: %w", err)
	}

	payload := receiptPayload{
		Type:        memo.Type,
		Hash:        memo.Hash,
		AnchorIndex: memo.AnchorIndex,
		AnchorHash:  memo.AnchorHash,
		UTC:         memo.UTC,
		TxSignature: published.Signature,
	}
	sig, err := t.Signer.SignTimestampReceipt(payload)
	if err != nil {
		return Result{}, fmt.Errorf("signing timestamp receipt: %w", err)
	}
	pubKeyHex, _ := t.Signer.TimestampPublicKey()

	return Result{
		Outcome: OutcomeTimestamped,
		Response: &Response{
			Timestamp: memo,
			OnChain: OnChain{
				TxSignature: published.Signature,
				ExplorerURL: explorerURL(t.RPCURL, published.Signature),
			},
			Receipt: Receipt{Signature: sig, PublicKey: pubKeyHex},
			Tier:    tier,
		},
	}, nil
}

// explorerURL builds a Solana Explorer link for sig, selecting the cluster
// query param from whatever substring of rpcURL matches a known cluster
// name; an unrecognized or empty rpcURL is treated as mainnet-beta (no
// cluster param).
func explorerURL(rpcURL, sig string) string {
	base := "https://explorer.solana.com/tx/" + sig
	switch {
	case strings.Contains(rpcURL, "devnet"):
		return base + "?cluster=devnet"
	case strings.Contains(rpcURL, "testnet"):
		return base + "?cluster=testnet"
	default:
		return base
	}
}
