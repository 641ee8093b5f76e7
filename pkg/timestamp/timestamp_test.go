package timestamp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/provenonce/beats/pkg/anchorcache"
	"github.com/provenonce/beats/pkg/ledger"
	"github.com/provenonce/beats/pkg/signer"
)

const writer = "writer-address"

func testSigner(t *testing.T) *signer.KeyHierarchy {
	t.Helper()
	k, err := signer.NewKeyHierarchy([]byte("test-seed"))
	if err != nil {
		t.Fatalf("building key hierarchy: %v", err)
	}
	return k
}

func cacheWithAnchor(beatIndex uint64, hash string) *anchorcache.Cache {
	return anchorcache.New(time.Minute, func(ctx context.Context) (anchorcache.Anchor, bool, error) {
		return anchorcache.Anchor{BeatIndex: beatIndex, Hash: hash}, true, nil
	})
}

func TestValidHashHex(t *testing.T) {
	if !ValidHashHex(strings.Repeat("a", 64)) {
		t.Fatal("expected 64 lowercase hex chars to be valid")
	}
	if ValidHashHex(strings.Repeat("A", 64)) {
		t.Fatal("expected uppercase hex to be rejected")
	}
	if ValidHashHex(strings.Repeat("a", 63)) {
		t.Fatal("expected short hash to be rejected")
	}
}

func TestTimestampSuccess(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	ml.SetBalance(writer, 1_000_000)
	cache := cacheWithAnchor(42, strings.Repeat("c", 64))
	ts := New(ml, writer, cache, testSigner(t), "https://api.devnet.solana.com")

	result, err := ts.Timestamp(context.Background(), strings.Repeat("d", 64), 1_700_000_000_000, "free")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeTimestamped {
		t.Fatalf("expected timestamped outcome, got %v", result.Outcome)
	}
	if result.Response.Timestamp.AnchorIndex != 42 {
		t.Fatalf("expected memo bound to anchor 42, got %d", result.Response.Timestamp.AnchorIndex)
	}
	if !strings.Contains(result.Response.OnChain.ExplorerURL, "cluster=devnet") {
		t.Fatalf("expected devnet explorer url, got %s", result.Response.OnChain.ExplorerURL)
	}
	if result.Response.Receipt.Signature == "" {
		t.Fatal("expected a non-empty receipt signature")
	}
	if result.Response.Tier != "free" {
		t.Fatalf("expected tier to be echoed back, got %s", result.Response.Tier)
	}
}

func TestTimestampNoAnchor(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	cache := anchorcache.New(time.Minute, func(ctx context.Context) (anchorcache.Anchor, bool, error) {
		return anchorcache.Anchor{}, false, nil
	})
	ts := New(ml, writer, cache, testSigner(t), "")

	result, err := ts.Timestamp(context.Background(), strings.Repeat("d", 64), 1000, "free")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeNoAnchor {
		t.Fatalf("expected no_anchor outcome, got %v", result.Outcome)
	}
}

func TestTimestampLowBalance(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	ml.SetBalance(writer, 1) // below ledger.MinPublishBalance
	cache := cacheWithAnchor(1, strings.Repeat("a", 64))
	ts := New(ml, writer, cache, testSigner(t), "")

	result, err := ts.Timestamp(context.Background(), strings.Repeat("d", 64), 1000, "free")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeLowBalance {
		t.Fatalf("expected low_balance outcome, got %v", result.Outcome)
	}
}
