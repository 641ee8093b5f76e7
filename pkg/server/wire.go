package server

import "github.com/provenonce/beats/pkg/hashchain"

// beatWire is the wire shape of a single beat in verify/work-proof request
// bodies; it mirrors hashchain.Beat field for field.
type beatWire struct {
	Index      uint64  `json:"index"`
	Hash       string  `json:"hash"`
	Prev       string  `json:"prev"`
	Nonce      *string `json:"nonce,omitempty"`
	AnchorHash *string `json:"anchor_hash,omitempty"`
}

func (b beatWire) toBeat() hashchain.Beat {
	return hashchain.Beat{Index: b.Index, Hash: b.Hash, Prev: b.Prev, Nonce: b.Nonce, AnchorHash: b.AnchorHash}
}

// spotCheckWire is the wire shape of one proof/work-proof spot check.
type spotCheckWire struct {
	Index uint64  `json:"index"`
	Hash  string  `json:"hash"`
	Prev  string  `json:"prev"`
	Nonce *string `json:"nonce,omitempty"`
}

func (s spotCheckWire) toSpotCheck() hashchain.SpotCheck {
	return hashchain.SpotCheck{Index: s.Index, Hash: s.Hash, Prev: s.Prev, Nonce: s.Nonce}
}

// checkinProofWire is the wire shape of a {proof: ...} verify-mode body.
type checkinProofWire struct {
	FromBeat      uint64          `json:"from_beat"`
	ToBeat        uint64          `json:"to_beat"`
	FromHash      string          `json:"from_hash"`
	ToHash        string          `json:"to_hash"`
	BeatsComputed *uint64         `json:"beats_computed,omitempty"`
	SpotChecks    []spotCheckWire `json:"spot_checks"`
	AnchorHash    *string         `json:"anchor_hash,omitempty"`
}

func (p checkinProofWire) toCheckinProof() hashchain.CheckinProof {
	spotChecks := make([]hashchain.SpotCheck, len(p.SpotChecks))
	for i, sc := range p.SpotChecks {
		spotChecks[i] = sc.toSpotCheck()
	}
	return hashchain.CheckinProof{
		FromBeat:      p.FromBeat,
		ToBeat:        p.ToBeat,
		FromHash:      p.FromHash,
		ToHash:        p.ToHash,
		BeatsComputed: p.BeatsComputed,
		SpotChecks:    spotChecks,
		AnchorHash:    p.AnchorHash,
	}
}
