// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"sort"
)

// PostulateSet is the result of clustering one gene's read pairs.
type PostulateSet struct {
	// Postulates maps each exon pair to the LOSS postulate for it.
	Postulates map[ExonPair]*Postulate
	// Background holds the pairs that were classified NONE. It is nil if there
	// are no such pairs.
	Background *Postulate
	// Dropped is the number of pairs discarded because one end was absent.
	Dropped int
}

// Sorted returns the LOSS postulates ordered by signature.
func (s *PostulateSet) Sorted() []*Postulate {
	keys := make([]ExonPair, 0, len(s.Postulates))
	for k := range s.Postulates {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Lo != keys[j].Lo {
			return keys[i].Lo < keys[j].Lo
		}
		return keys[i].Hi < keys[j].Hi
	})
	p := make([]*Postulate, len(keys))
	for i, k := range keys {
		p[i] = s.Postulates[k]
	}
	return p
}

// findExon returns the index of the first exon overlapping loc, or -1.
func findExon(exons []Loc, loc Loc) int {
	for i, e := range exons {
		if e.Overlaps(loc) {
			return i
		}
	}
	return -1
}

// Classify determines which exons the two ends of a pair fall in. It returns
// ClassLoss and the exon indices of the read and the mate if they fall in two
// distinct exons, and ClassNone otherwise.
func Classify(exons []Loc, read, mate Loc) (PostulateClass, int, int) {
	readExon := findExon(exons, read)
	mateExon := findExon(exons, mate)
	if readExon < 0 || mateExon < 0 || readExon == mateExon {
		return ClassNone, -1, -1
	}
	return ClassLoss, readExon, mateExon
}

// BuildPostulates clusters pairs into postulates against the exons of one
// gene. Pairs linking the same two exons, in either order, accumulate in the
// same postulate. Pairs with an absent end are dropped; other pairs that do
// not link two exons go to the background.
func BuildPostulates(exons []Loc, pairs []*ReadPair) *PostulateSet {
	s := &PostulateSet{Postulates: map[ExonPair]*Postulate{}}
	for _, pair := range pairs {
		if pair.R1 == nil || pair.R2 == nil {
			s.Dropped++
			continue
		}
		class, readExon, mateExon := Classify(exons, pair.R1.Loc, pair.R2.Loc)
		if class == ClassNone {
			if s.Background == nil {
				s.Background = newPostulate(ClassNone)
			}
			s.Background.Add(pair)
			continue
		}
		sig := NewExonPair(readExon, mateExon)
		p, ok := s.Postulates[sig]
		if !ok {
			p = newLossPostulate(exons, readExon, mateExon)
			s.Postulates[sig] = p
		}
		p.Add(pair)
	}
	return s
}
