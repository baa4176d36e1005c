// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// MinEventSize is the exclusive lower bound on the distance between two exons
// for a postulated loss to be evaluated. Shorter events are not
// distinguishable from alignment noise.
const MinEventSize = 350

// PostulateClass classifies a read pair against a gene's exons.
type PostulateClass int

const (
	// ClassNone means the pair does not link two distinct exons.
	ClassNone PostulateClass = iota
	// ClassLoss means the two ends of the pair fall in two distinct exons.
	ClassLoss
)

func (c PostulateClass) String() string {
	if c == ClassLoss {
		return "LOSS"
	}
	return "NONE"
}

// ExonPair is the unordered pair of exon indices that identifies a
// postulate. Lo <= Hi always holds.
type ExonPair struct {
	Lo, Hi int
}

// NewExonPair creates a normalized ExonPair.
func NewExonPair(a, b int) ExonPair {
	if a > b {
		a, b = b, a
	}
	return ExonPair{Lo: a, Hi: b}
}

// Reference provides random access to reference bases.
type Reference interface {
	// Subsequence returns the bases of contig in the 1-based closed interval
	// [start, stop]. It fails if the interval is out of the contig's bounds.
	Subsequence(contig string, start, stop int) ([]byte, error)
}

// Postulate is a candidate intron-loss event linking two exons, together with
// the read pairs supporting it.
type Postulate struct {
	Class PostulateClass
	// ExonNums are the indices of the two linked exons, lower first. Since
	// exons are sorted by position, ExonLocs[0] is upstream of ExonLocs[1].
	ExonNums [2]int
	ExonLocs [2]Loc

	pairs map[PairKey]*ReadPair
	order []PairKey
}

func newPostulate(class PostulateClass) *Postulate {
	return &Postulate{Class: class, pairs: map[PairKey]*ReadPair{}}
}

// newLossPostulate creates the postulate linking exons a and b, in either
// order.
func newLossPostulate(exons []Loc, a, b int) *Postulate {
	sig := NewExonPair(a, b)
	p := newPostulate(ClassLoss)
	p.ExonNums = [2]int{sig.Lo, sig.Hi}
	p.ExonLocs = [2]Loc{exons[sig.Lo], exons[sig.Hi]}
	return p
}

// Signature returns the unordered exon pair of a LOSS postulate.
//
// REQUIRES: p.Class == ClassLoss.
func (p *Postulate) Signature() ExonPair {
	return NewExonPair(p.ExonNums[0], p.ExonNums[1])
}

// Add adds a supporting pair. It returns false if a pair with the same key has
// already been added.
func (p *Postulate) Add(pair *ReadPair) bool {
	key := pair.Key()
	if _, ok := p.pairs[key]; ok {
		return false
	}
	p.pairs[key] = pair
	p.order = append(p.order, key)
	return true
}

// NumPairs returns the number of distinct supporting pairs.
func (p *Postulate) NumPairs() int { return len(p.order) }

// Pairs returns the supporting pairs in the order they were added.
func (p *Postulate) Pairs() []*ReadPair {
	pairs := make([]*ReadPair, len(p.order))
	for i, key := range p.order {
		pairs[i] = p.pairs[key]
	}
	return pairs
}

// Equal checks if p and o postulate the same event. Exon order does not
// matter.
func (p *Postulate) Equal(o *Postulate) bool {
	if p.Class != o.Class {
		return false
	}
	if p.Class == ClassNone {
		return true
	}
	return p.Signature() == o.Signature()
}

func (p *Postulate) String() string {
	if p.Class == ClassNone {
		return "NONE"
	}
	return fmt.Sprintf("EX%d-EX%d", p.ExonNums[0], p.ExonNums[1])
}

// EventSize is the minimum distance between the two exons.
//
// REQUIRES: p.Class == ClassLoss.
func (p *Postulate) EventSize() int {
	return p.ExonLocs[0].MinDistance(p.ExonLocs[1])
}

// IsValid checks if the postulate is a loss large enough to be evaluated.
func (p *Postulate) IsValid() bool {
	return p.Class == ClassLoss && p.EventSize() > MinEventSize
}

// JunctionSequence returns the bases of the upstream exon followed by the
// bases of the downstream one. Any failure to fetch either exon is returned as is; the postulate
// cannot be evaluated in that case.
//
// REQUIRES: p.Class == ClassLoss.
func (p *Postulate) JunctionSequence(ref Reference) ([]byte, error) {
	var seq []byte
	for _, loc := range p.ExonLocs {
		bases, err := ref.Subsequence(loc.Contig, loc.Start, loc.Stop)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("postulate %v: fetch exon %v", p, loc))
		}
		seq = append(seq, bases...)
	}
	return seq, nil
}

// IsRelevant checks if a background pair with the given read locations bears
// on this postulate: one end must hang from the upstream exon into the
// following intron, and the other end, if present, must touch one of the two
// exons. Either location may be nil.
func (p *Postulate) IsRelevant(loc1, loc2 *Loc) bool {
	if loc1 != nil && p.hangsIntoIntron(*loc1) {
		return loc2 == nil || loc2.Overlaps(p.ExonLocs[0]) || loc2.Overlaps(p.ExonLocs[1])
	}
	if loc2 != nil && p.hangsIntoIntron(*loc2) {
		return loc1 == nil || loc1.Overlaps(p.ExonLocs[0]) || loc1.Overlaps(p.ExonLocs[1])
	}
	return false
}

// hangsIntoIntron checks if loc overlaps the upstream exon and extends past
// its end.
func (p *Postulate) hangsIntoIntron(loc Loc) bool {
	exon := p.ExonLocs[0]
	return loc.Overlaps(exon) && loc.Stop > exon.Stop
}
