package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedger is an in-memory Ledger fake for tests: no network, no
// timing, immediately "finalized".
type MemoryLedger struct {
	mu sync.Mutex

	memos      map[string][]RecentMemo // writer -> memos, newest last
	entropy    string
	balances   map[string]int64
	nextSlot   uint64
	PublishErr error // when set, PublishMemo returns this error instead of succeeding
}

// NewMemoryLedger returns an empty fake ledger. Every balance starts at zero,
// below MinPublishBalance; fund a writer with SetBalance.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		memos:    make(map[string][]RecentMemo),
		balances: make(map[string]int64),
	}
}

// SetEntropy sets the value ExternalEntropy will return next.
func (m *MemoryLedger) SetEntropy(entropy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entropy = entropy
}

// SetBalance sets writer's balance in minor units.
func (m *MemoryLedger) SetBalance(writer string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[writer] = balance
}

func (m *MemoryLedger) RecentMemos(_ context.Context, writer string, limit int) ([]RecentMemo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.memos[writer]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	// Newest first.
	out := make([]RecentMemo, limit)
	for i := 0; i < limit; i++ {
		out[i] = all[len(all)-1-i]
	}
	return out, nil
}

func (m *MemoryLedger) PublishMemo(_ context.Context, writer string, payload []byte) (PublishResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil {
		return PublishResult{}, m.PublishErr
	}

	m.nextSlot++
	sig := fmt.Sprintf("memory-sig-%d", m.nextSlot)
	m.memos[writer] = append(m.memos[writer], RecentMemo{
		Signature:          sig,
		ConfirmationStatus: "finalized",
		Memo:               string(payload),
	})
	return PublishResult{Signature: sig, Slot: m.nextSlot}, nil
}

func (m *MemoryLedger) ExternalEntropy(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entropy, nil
}

func (m *MemoryLedger) AccountBalance(_ context.Context, writer string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[writer], nil
}
