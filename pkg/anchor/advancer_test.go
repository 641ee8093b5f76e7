package anchor

import (
	"context"
	"testing"

	"github.com/provenonce/beats/pkg/anchormemo"
	"github.com/provenonce/beats/pkg/ledger"
)

const writer = "writer-address"

func newTestAdvancer(t *testing.T) (*Advancer, *ledger.MemoryLedger) {
	t.Helper()
	ml := ledger.NewMemoryLedger()
	ml.SetBalance(writer, 1_000_000)
	a := New(ml, writer, "test-secret", nil)
	return a, ml
}

func TestAuthenticate(t *testing.T) {
	a, _ := newTestAdvancer(t)

	if !a.Authenticate("Bearer test-secret") {
		t.Fatal("expected correct bearer token to authenticate")
	}
	if a.Authenticate("Bearer wrong") {
		t.Fatal("expected wrong bearer token to be rejected")
	}
	if a.Authenticate("") {
		t.Fatal("expected empty header to be rejected")
	}
}

func TestAuthenticateFailsClosedWithoutSecret(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	a := New(ml, writer, "", nil)
	if a.Authenticate("Bearer ") {
		t.Fatal("expected missing cron secret to fail closed")
	}
}

// S6 from spec.md §8: entropy fetch returns null -> no memo published.
func TestAdvanceFailsClosedWithoutEntropy(t *testing.T) {
	a, ml := newTestAdvancer(t)
	a.NowMS = func() int64 { return 1_000_000 }

	result := a.Advance(context.Background())
	if result.Outcome != OutcomeNoEntropy {
		t.Fatalf("expected no_entropy outcome, got %+v", result)
	}

	memos, _ := ml.RecentMemos(context.Background(), writer, 10)
	if len(memos) != 0 {
		t.Fatalf("expected no memo to be published, got %d", len(memos))
	}
}

func TestAdvanceGeneratesGenesis(t *testing.T) {
	a, ml := newTestAdvancer(t)
	a.NowMS = func() int64 { return 1_000_000 }
	ml.SetEntropy("3gJ8V8UoAvJ8VuNDCkzvVVAjC5nBAjpMUP4NFkJaZYVh")

	result := a.Advance(context.Background())
	if result.Outcome != OutcomeGenerated {
		t.Fatalf("expected generated outcome, got %+v", result)
	}
	if result.BeatIndex != 0 {
		t.Fatalf("expected genesis beat_index 0, got %d", result.BeatIndex)
	}

	memos, _ := ml.RecentMemos(context.Background(), writer, 10)
	if len(memos) != 1 {
		t.Fatalf("expected exactly one memo published, got %d", len(memos))
	}
	parsed := anchormemo.Parse(memos[0].Memo)
	if !parsed.Ok {
		t.Fatalf("expected a valid anchor memo, got reason %q", parsed.Reason)
	}
}

// Cron idempotency (S8/#9 from spec.md §8): a second call within one
// anchor interval is a no-op, producing at most one new memo.
func TestAdvanceSkipsWhenFresh(t *testing.T) {
	a, ml := newTestAdvancer(t)
	a.NowMS = func() int64 { return 1_000_000 }
	ml.SetEntropy("3gJ8V8UoAvJ8VuNDCkzvVVAjC5nBAjpMUP4NFkJaZYVh")

	first := a.Advance(context.Background())
	if first.Outcome != OutcomeGenerated {
		t.Fatalf("expected first tick to generate, got %+v", first)
	}

	second := a.Advance(context.Background())
	if second.Outcome != OutcomeSkippedFresh {
		t.Fatalf("expected second tick within interval to skip, got %+v", second)
	}

	memos, _ := ml.RecentMemos(context.Background(), writer, 10)
	if len(memos) != 1 {
		t.Fatalf("expected exactly one memo after two ticks, got %d", len(memos))
	}
}

func TestAdvanceAdvancesAfterInterval(t *testing.T) {
	a, ml := newTestAdvancer(t)
	ml.SetEntropy("3gJ8V8UoAvJ8VuNDCkzvVVAjC5nBAjpMUP4NFkJaZYVh")

	now := int64(1_000_000)
	a.NowMS = func() int64 { return now }
	first := a.Advance(context.Background())
	if first.Outcome != OutcomeGenerated {
		t.Fatalf("expected first tick to generate, got %+v", first)
	}

	now += AnchorIntervalMS + 1
	second := a.Advance(context.Background())
	if second.Outcome != OutcomeGenerated {
		t.Fatalf("expected second tick after interval to generate, got %+v", second)
	}
	if second.BeatIndex != first.BeatIndex+1 {
		t.Fatalf("expected sequential beat_index, got %d then %d", first.BeatIndex, second.BeatIndex)
	}
}

func TestAdvancePropagatesPublishError(t *testing.T) {
	a, ml := newTestAdvancer(t)
	a.NowMS = func() int64 { return 1_000_000 }
	ml.SetEntropy("3gJ8V8UoAvJ8VuNDCkzvVVAjC5nBAjpMUP4NFkJaZYVh")
	ml.PublishErr = context.DeadlineExceeded

	result := a.Advance(context.Background())
	if result.Outcome != OutcomePublishFailed {
		t.Fatalf("expected publish_failed outcome, got %+v", result)
	}

	memos, _ := ml.RecentMemos(context.Background(), writer, 10)
	if len(memos) != 0 {
		t.Fatalf("expected no memo recorded on publish failure, got %d", len(memos))
	}
}
