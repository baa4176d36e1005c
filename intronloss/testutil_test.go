// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"fmt"
	"math/rand"

	"github.com/grailbio/base/errors"
)

// testRef is an in-memory Reference.
type testRef map[string][]byte

func (r testRef) Subsequence(contig string, start, stop int) ([]byte, error) {
	seq, ok := r[contig]
	if !ok {
		return nil, errors.E(errors.NotExist, "contig", contig)
	}
	if start < 1 || stop < start || stop > len(seq) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d-%d out of bounds", contig, start, stop))
	}
	return seq[start-1 : stop], nil
}

func randomBases(r *rand.Rand, n int) []byte {
	const acgt = "ACGT"
	b := make([]byte, n)
	for i := range b {
		b[i] = acgt[r.Intn(4)]
	}
	return b
}

func newTestRead(name string, first bool, loc Loc, ops []Op, nm int, bases []byte) *Read {
	return &Read{
		Name:         name,
		Loc:          loc,
		Ops:          ops,
		EditDistance: nm,
		Bases:        bases,
		ReadGroup:    "rg1",
		Sample:       "s1",
		InsertSize:   300,
		First:        first,
	}
}

// newTestPair creates a pair whose ends span the given locations, fully
// matched.
func newTestPair(name string, loc1, loc2 Loc) *ReadPair {
	return &ReadPair{
		R1: newTestRead(name, true, loc1, []Op{{OpMatch, loc1.Len()}}, 0, nil),
		R2: newTestRead(name, false, loc2, []Op{{OpMatch, loc2.Len()}}, 0, nil),
	}
}
