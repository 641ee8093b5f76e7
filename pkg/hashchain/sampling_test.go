package hashchain

import "testing"

func buildChain(n int, difficulty uint32) []Beat {
	beats := make([]Beat, n)
	prev := zeroHash
	for i := 0; i < n; i++ {
		beats[i] = ComputeBeat(prev, uint64(i), difficulty, nil, nil)
		prev = beats[i].Hash
	}
	return beats
}

func TestSampleIndicesIsDeterministic(t *testing.T) {
	a := SampleIndices(500, 10, "first", "last", 7)
	b := SampleIndices(500, 10, "first", "last", 7)
	if len(a) != len(b) {
		t.Fatalf("expected equal length samples, got %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical sample sets, diverged at %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestSampleIndicesAlwaysIncludesEndpoints(t *testing.T) {
	indices := SampleIndices(100, 10, "first", "last", 5)
	if indices[0] != 0 {
		t.Fatalf("expected index 0 to be included, got %v", indices)
	}
	if indices[len(indices)-1] != 99 {
		t.Fatalf("expected index n-1 to be included, got %v", indices)
	}
}

func TestSampleIndicesRespectsN(t *testing.T) {
	indices := SampleIndices(3, 10, "a", "b", 10)
	if len(indices) > 3 {
		t.Fatalf("expected sample count capped at n, got %d", len(indices))
	}
	for _, idx := range indices {
		if idx < 0 || idx >= 3 {
			t.Fatalf("index %d out of range [0, 3)", idx)
		}
	}
}

func TestSampleIndicesChangeWithChainEndpoints(t *testing.T) {
	a := SampleIndices(500, 10, "first-a", "last-a", 7)
	b := SampleIndices(500, 10, "first-b", "last-b", 7)

	same := true
	if len(a) == len(b) {
		for i := range a {
			if a[i] != b[i] {
				same = false
				break
			}
		}
	} else {
		same = false
	}
	if same {
		t.Fatalf("expected different chain endpoints to change the sample set")
	}
}

func TestVerifyBeatChainValid(t *testing.T) {
	beats := buildChain(50, 5)
	result := VerifyBeatChain(beats, 5, 7)
	if !result.Valid {
		t.Fatalf("expected valid chain to verify, failed indices: %v", result.Failed)
	}
	if len(result.Checked) == 0 {
		t.Fatalf("expected at least one spot check")
	}
}

func TestVerifyBeatChainDetectsTamperedBeat(t *testing.T) {
	beats := buildChain(50, 5)
	tampered := []byte(beats[10].Hash)
	tampered[0] = flipNibble(tampered[0])
	beats[10].Hash = string(tampered)

	result := VerifyBeatChain(beats, 5, 50)
	if result.Valid {
		t.Fatalf("expected tampered chain to fail verification")
	}
	found := false
	for _, idx := range result.Failed {
		if idx == 10 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected index 10 to be reported as failed, got %v", result.Failed)
	}
}

func TestVerifyBeatChainEmpty(t *testing.T) {
	result := VerifyBeatChain(nil, 5, 7)
	if result.Valid {
		t.Fatalf("expected empty chain to be invalid")
	}
}
