package selector

import (
	"context"
	"fmt"

	"github.com/provenonce/beats/pkg/anchormemo"
	"github.com/provenonce/beats/pkg/ledger"
)

// RecentMemoScanLimit bounds how many recent memos are scanned for
// candidate anchor tips; 50 comfortably covers the handful of anchors a
// 60s cadence produces within any plausible fork-choice window.
const RecentMemoScanLimit = 50

// ReadLatestTip fetches writer's recent memos from l, parses the ones that
// are well-formed anchor memos, and runs the continuity-aware selector over
// them. ok is false when no anchor memo was found at all (cold start),
// which the caller must treat as "no tip yet", not an error.
func ReadLatestTip(ctx context.Context, l ledger.Ledger, writer string) (anchormemo.Memo, bool, error) {
	recent, err := l.RecentMemos(ctx, writer, RecentMemoScanLimit)
	if err != nil {
		return anchormemo.Memo{}, false, fmt.Errorf("reading recent memos: %w", err)
	}

	var candidates []anchormemo.Memo
	for _, m := range recent {
		parsed := anchormemo.Parse(m.Memo)
		if parsed.Ok {
			candidates = append(candidates, parsed.Memo)
		}
	}

	return SelectCanonical(candidates)
}
