// Package selector implements the continuity-aware fork choice used to pick
// a single canonical anchor tip out of the candidate memos observed on the
// ledger, and to validate that a freshly computed anchor continues it.
package selector

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/provenonce/beats/pkg/anchormemo"
)

// genesisSeed must match pkg/hashchain's genesis seed; duplicated here (as a
// literal, not an import) to keep the selector free of a hashchain
// dependency — it only ever compares hex strings.
const genesisSeed = "provenonce:beat:genesis:v1:2026"

// GenesisPrevHash is SHA-256("provenonce:beat:genesis:v1:2026").
func GenesisPrevHash() string {
	sum := sha256.Sum256([]byte(genesisSeed))
	return hex.EncodeToString(sum[:])
}

// dedupKey is the tuple candidates are deduplicated by.
type dedupKey struct {
	beatIndex  uint64
	hash       string
	prevHash   string
	utc        int64
	difficulty uint32
	epoch      uint32
}

func keyOf(m anchormemo.Memo) dedupKey {
	return dedupKey{m.BeatIndex, m.Hash, m.PrevHash, m.UTC, m.Difficulty, m.Epoch}
}

// SelectCanonical drops malformed candidates, deduplicates the rest,
// computes each candidate's depth by walking prev_hash links within the
// candidate set, partitions into linked (depth > 1, or a genesis tip) and
// unlinked, prefers the linked partition when non-empty, and returns the
// single tip sorted first by beat_index desc, then depth desc, then hash
// ascending. Returns ok=false if no candidate survives.
func SelectCanonical(candidates []anchormemo.Memo) (anchormemo.Memo, bool) {
	deduped := dedupe(candidates)
	if len(deduped) == 0 {
		return anchormemo.Memo{}, false
	}

	byHash := make(map[string]anchormemo.Memo, len(deduped))
	for _, m := range deduped {
		byHash[m.Hash] = m
	}

	type scored struct {
		memo  anchormemo.Memo
		depth int
	}

	scoredCandidates := make([]scored, 0, len(deduped))
	for _, m := range deduped {
		scoredCandidates = append(scoredCandidates, scored{memo: m, depth: depthOf(m, byHash)})
	}

	var linked, all []scored
	for _, s := range scoredCandidates {
		all = append(all, s)
		if isLinked(s.memo, s.depth) {
			linked = append(linked, s)
		}
	}

	pool := linked
	if len(pool) == 0 {
		pool = all
	}

	sort.Slice(pool, func(i, j int) bool {
		if pool[i].memo.BeatIndex != pool[j].memo.BeatIndex {
			return pool[i].memo.BeatIndex > pool[j].memo.BeatIndex
		}
		if pool[i].depth != pool[j].depth {
			return pool[i].depth > pool[j].depth
		}
		return pool[i].memo.Hash < pool[j].memo.Hash
	})

	return pool[0].memo, true
}

func isLinked(m anchormemo.Memo, depth int) bool {
	if m.BeatIndex == 0 && m.PrevHash == GenesisPrevHash() {
		return true
	}
	return depth > 1
}

// depthOf walks prev_hash references through the candidate set, counting
// how many links (including m itself) can be traced back-to-back. A cycle
// or dangling prev_hash stops the walk.
func depthOf(m anchormemo.Memo, byHash map[string]anchormemo.Memo) int {
	seen := map[string]bool{}
	depth := 0
	cur := m
	for {
		if seen[cur.Hash] {
			break
		}
		seen[cur.Hash] = true
		depth++

		parent, ok := byHash[cur.PrevHash]
		if !ok {
			break
		}
		cur = parent
	}
	return depth
}

func dedupe(candidates []anchormemo.Memo) []anchormemo.Memo {
	seen := make(map[dedupKey]bool, len(candidates))
	out := make([]anchormemo.Memo, 0, len(candidates))
	for _, m := range candidates {
		k := keyOf(m)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m)
	}
	return out
}

// IsContinuousNextAnchor reports whether incoming legitimately continues
// latest: if latest is nil, incoming must be the genesis anchor
// (beat_index 0, prev_hash == GenesisPrevHash()); otherwise incoming must be
// exactly one beat ahead of latest and reference latest's hash as its
// prev_hash. Same-index replays and index jumps are both rejected.
func IsContinuousNextAnchor(latest *anchormemo.Memo, incoming anchormemo.Memo) bool {
	if latest == nil {
		return incoming.BeatIndex == 0 && incoming.PrevHash == GenesisPrevHash()
	}
	return incoming.BeatIndex == latest.BeatIndex+1 && incoming.PrevHash == latest.Hash
}
