// Package anchor implements the cron-driven anchor advancement state
// machine (C6): read the canonical tip, gate on freshness, fetch external
// entropy, compute the next anchor, and publish it. The process fails
// closed at every step — a missing ingredient (entropy, a cron secret, a
// live ledger) means the chain does not advance this tick, it never
// advances with a guess.
package anchor

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/provenonce/beats/pkg/anchormemo"
	"github.com/provenonce/beats/pkg/hashchain"
	"github.com/provenonce/beats/pkg/ledger"
	"github.com/provenonce/beats/pkg/selector"
)

// AnchorIntervalMS is the target spacing between anchors; the freshness
// gate skips advancement when the tip is younger than this.
const AnchorIntervalMS = 60_000

// DefaultDifficulty is the difficulty an advancer falls back to when no
// prior anchor carries one (first-ever genesis tick).
const DefaultDifficulty = 1000

// Outcome identifies which branch of the state machine a call to Advance
// terminated in.
type Outcome string

const (
	OutcomeGenerated     Outcome = "generated"
	OutcomeSkippedFresh  Outcome = "skipped"
	OutcomeNoEntropy     Outcome = "no_entropy"
	OutcomeUnauthorized  Outcome = "unauthorized"
	OutcomeMissingSecret Outcome = "missing_secret"
	OutcomePublishFailed Outcome = "publish_failed"
)

// Result reports what Advance did.
type Result struct {
	Outcome    Outcome
	BeatIndex  uint64
	Hash       string
	TxSig      string
	NextAt     int64 // only set for OutcomeSkippedFresh: tip.UTC + AnchorIntervalMS
	ElapsedMS  int64
	Reason     string // human-readable detail for non-generated outcomes
	RunID      string
}

// Advancer wires the ledger, the writer account and the cron secret
// together to run one tick of the anchor advancement state machine.
type Advancer struct {
	Ledger       ledger.Ledger
	Writer       string
	CronSecret   string
	OnAdvanced   func() // called after a successful publish, e.g. to invalidate a cache
	Logger       *log.Logger
	NowMS        func() int64 // overridable for tests; defaults to time.Now
}

// New builds an Advancer with a bracketed-prefix default logger when
// logger is nil, matching the teacher's per-component logging convention.
func New(l ledger.Ledger, writer, cronSecret string, logger *log.Logger) *Advancer {
	if logger == nil {
		logger = log.New(log.Writer(), "[AnchorAdvancer] ", log.LstdFlags)
	}
	return &Advancer{Ledger: l, Writer: writer, CronSecret: cronSecret, Logger: logger}
}

func (a *Advancer) now() int64 {
	if a.NowMS != nil {
		return a.NowMS()
	}
	return time.Now().UnixMilli()
}

// Authenticate compares authHeader against "Bearer " + CronSecret in
// constant time. If CronSecret is unset, authentication always fails
// closed (503 at the HTTP layer, never "any caller is fine").
func (a *Advancer) Authenticate(authHeader string) bool {
	if a.CronSecret == "" {
		return false
	}
	expected := "Bearer " + a.CronSecret
	if len(authHeader) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(authHeader), []byte(expected)) == 1
}

// Advance runs one tick of the state machine. The caller is responsible for
// calling Authenticate first at the HTTP boundary (Advance itself performs
// no authentication, so it can be exercised directly in tests).
func (a *Advancer) Advance(ctx context.Context) Result {
	start := time.Now()
	runID := uuid.New().String()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	a.Logger.Printf("[%s] tip read starting", runID)
	tip, haveTip, err := selector.ReadLatestTip(ctx, a.Ledger, a.Writer)
	if err != nil {
		a.Logger.Printf("[%s] tip read failed: %v", runID, err)
		return Result{Outcome: OutcomePublishFailed, Reason: err.Error(), ElapsedMS: elapsed(), RunID: runID}
	}

	var prevAnchor *hashchain.GlobalAnchor
	if haveTip {
		prevAnchor = &hashchain.GlobalAnchor{
			BeatIndex:     tip.BeatIndex,
			Hash:          tip.Hash,
			PrevHash:      tip.PrevHash,
			UTC:           tip.UTC,
			Difficulty:    tip.Difficulty,
			Epoch:         tip.Epoch,
			SolanaEntropy: tip.SolanaEntropy,
		}

		age := a.now() - tip.UTC
		if age <= AnchorIntervalMS {
			a.Logger.Printf("[%s] fresh: tip age %dms <= %dms, skipping", runID, age, AnchorIntervalMS)
			return Result{
				Outcome:   OutcomeSkippedFresh,
				BeatIndex: tip.BeatIndex,
				Hash:      tip.Hash,
				NextAt:    tip.UTC + AnchorIntervalMS,
				ElapsedMS: elapsed(),
				RunID:     runID,
			}
		}
	}

	entropy, err := a.Ledger.ExternalEntropy(ctx)
	if err != nil {
		a.Logger.Printf("[%s] entropy fetch failed: %v", runID, err)
		return Result{Outcome: OutcomePublishFailed, Reason: err.Error(), ElapsedMS: elapsed(), RunID: runID}
	}
	if entropy == "" {
		a.Logger.Printf("[%s] no entropy available, failing closed", runID)
		return Result{Outcome: OutcomeNoEntropy, Reason: "external entropy unavailable", ElapsedMS: elapsed(), RunID: runID}
	}
	a.Logger.Printf("[%s] entropy fetched", runID)

	difficulty := DefaultDifficulty
	var epoch uint32
	if prevAnchor != nil {
		if prevAnchor.Difficulty > 0 {
			difficulty = int(prevAnchor.Difficulty)
		}
		epoch = prevAnchor.Epoch
	}

	next, err := hashchain.CreateGlobalAnchor(prevAnchor, uint32(difficulty), epoch, a.now(), entropy)
	if err != nil {
		a.Logger.Printf("[%s] compute next anchor failed: %v", runID, err)
		return Result{Outcome: OutcomePublishFailed, Reason: err.Error(), ElapsedMS: elapsed(), RunID: runID}
	}

	memo, err := anchormemo.Serialize(anchormemo.Memo{
		BeatIndex:     next.BeatIndex,
		Hash:          next.Hash,
		PrevHash:      next.PrevHash,
		UTC:           next.UTC,
		Difficulty:    next.Difficulty,
		Epoch:         next.Epoch,
		SolanaEntropy: next.SolanaEntropy,
	})
	if err != nil {
		a.Logger.Printf("[%s] serializing anchor memo failed: %v", runID, err)
		return Result{Outcome: OutcomePublishFailed, Reason: err.Error(), ElapsedMS: elapsed(), RunID: runID}
	}

	published, err := a.Ledger.PublishMemo(ctx, a.Writer, []byte(memo))
	if err != nil {
		a.Logger.Printf("[%s] publish failed: %v", runID, err)
		return Result{Outcome: OutcomePublishFailed, Reason: fmt.Sprintf("publish failed: %v", err), ElapsedMS: elapsed(), RunID: runID}
	}
	a.Logger.Printf("[%s] published beat_index=%d tx=%s", runID, next.BeatIndex, published.Signature)

	if a.OnAdvanced != nil {
		a.OnAdvanced()
	}

	return Result{
		Outcome:   OutcomeGenerated,
		BeatIndex: next.BeatIndex,
		Hash:      next.Hash,
		TxSig:     published.Signature,
		ElapsedMS: elapsed(),
		RunID:     runID,
	}
}
