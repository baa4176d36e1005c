// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreAlignmentPerfect(t *testing.T) {
	p := newTestPair("a", NewLoc("chr1", 1, 50), NewLoc("chr1", 300, 349))
	assert.Equal(t, 0.0, ScoreAlignment(p))
	p.R2 = nil
	assert.Equal(t, 0.0, ScoreAlignment(p))
}

func TestScoreAlignment(t *testing.T) {
	p := &ReadPair{
		R1: newTestRead("a", true, NewLoc("chr1", 1, 30),
			[]Op{{OpSoftClip, 3}, {OpMatch, 10}, {OpInsertion, 1}, {OpMatch, 5}, {OpDeletion, 2}, {OpMatch, 4}}, 2, nil),
		R2: newTestRead("a", false, NewLoc("chr1", 300, 349), []Op{{OpMatch, 48}, {OpHardClip, 2}}, 1, nil),
	}
	// R1: -2.4 (NM) - 1.5 (3S) - 1 (1I) - 1.5 (2D); R2: -1.2 (NM).
	assert.InDelta(t, -7.6, ScoreAlignment(p), 1e-9)
}

func TestScoreRealignedRead(t *testing.T) {
	tests := []struct {
		name   string
		ops    []Op
		offset int
		bases  string
		ref    string
		want   float64
	}{
		{"exact", []Op{{OpMatch, 4}}, 2, "GTAC", "ACGTACGT", 0},
		{"mismatch", []Op{{OpMatch, 4}}, 2, "GTTC", "ACGTACGT", -1.2},
		{"deletion", []Op{{OpMatch, 3}, {OpDeletion, 2}, {OpMatch, 3}}, 0, "ACGCGT", "ACGTACGT", -1.5},
		{"long deletion", []Op{{OpMatch, 2}, {OpDeletion, 3}, {OpMatch, 3}}, 0, "ACCGT", "ACGTACGT", -1.7},
		{"insertion", []Op{{OpMatch, 3}, {OpInsertion, 1}, {OpMatch, 3}}, 0, "ACGGTAC", "ACGTACGT", -4.0},
		{"leading softclip", []Op{{OpSoftClip, 2}, {OpMatch, 4}}, 3, "TTTACG", "GGGTACGT", -1.0},
		{"trailing softclip", []Op{{OpMatch, 4}, {OpSoftClip, 3}}, 4, "ACGTCCC", "GGGGACGT", -1.5},
		{"hardclip", []Op{{OpHardClip, 2}, {OpMatch, 2}}, 2, "xxGT", "ACGTACGT", 0},
	}
	for _, test := range tests {
		got, err := scoreRealignedRead(test.ops, test.offset, []byte(test.bases), []byte(test.ref))
		require.NoError(t, err, test.name)
		assert.InDelta(t, test.want, got, 1e-9, test.name)
	}
}

func TestScoreRealignedReadCap(t *testing.T) {
	ref := bytes.Repeat([]byte("A"), 100)
	bases := bytes.Repeat([]byte("C"), 100)
	got, err := scoreRealignedRead([]Op{{OpMatch, 100}}, 0, bases, ref)
	require.NoError(t, err)
	assert.Equal(t, -50.0, got)
}

func TestScoreRealignedReadInvalidOp(t *testing.T) {
	_, err := scoreRealignedRead([]Op{{OpMatch, 2}, {OpKind(42), 1}}, 0, []byte("AC"), []byte("AC"))
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)
}

func TestScoreRealignmentBounds(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	junction := randomBases(r, 200)
	for i := 0; i < 50; i++ {
		p := &ReadPair{
			R1: newTestRead("x", true, NewLoc("chr1", 1, 60), nil, 0, randomBases(r, 60)),
			R2: newTestRead("x", false, NewLoc("chr1", 1, 60), nil, 0, randomBases(r, 60)),
		}
		score, err := ScoreRealignment(p, junction)
		require.NoError(t, err)
		assert.True(t, score <= 0 && score >= -100, "score %v", score)
	}
}

func TestScoreRealignmentJunction(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	exonA, exonB := randomBases(r, 100), randomBases(r, 100)
	junction := append(append([]byte{}, exonA...), exonB...)
	// R1 spans the junction; R2 lies inside exon B.
	r1 := append(append([]byte{}, exonA[75:]...), exonB[:25]...)
	r2 := append([]byte{}, exonB[40:90]...)
	p := &ReadPair{
		R1: newTestRead("x", true, NewLoc("chr1", 76, 125), nil, 0, r1),
		R2: newTestRead("x", false, NewLoc("chr1", 500, 549), nil, 0, r2),
	}
	score, err := ScoreRealignment(p, junction)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	// One mismatch inside R2.
	r2[20] = complement(r2[20])
	score, err = ScoreRealignment(p, junction)
	require.NoError(t, err)
	assert.InDelta(t, -1.2, score, 1e-9)
}

func complement(b byte) byte {
	switch b {
	case 'A':
		return 'T'
	case 'C':
		return 'G'
	case 'G':
		return 'C'
	}
	return 'A'
}
