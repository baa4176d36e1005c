// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
)

// AlignmentQualCap caps the phred units accumulated when scoring one
// realigned read.
const AlignmentQualCap = 500

const (
	editDistancePenalty = 1.2
	softClipPenalty     = 0.5

	mismatchUnits       = 12
	softClipUnits       = 5
	deletionUnitScale   = 10
	insertionUnitOffset = 10
	insertionUnitScale  = 20
)

// gapPenalty saturates at 2 as the gap grows.
func gapPenalty(n int) float64 { return 2 - math.Pow(2, float64(1-n)) }

// ScoreAlignment scores a pair under its original alignment. Absent ends are
// skipped. A pair that aligns perfectly scores 0.
func ScoreAlignment(pair *ReadPair) float64 {
	var score float64
	for _, r := range pair.Reads() {
		score -= editDistancePenalty * float64(r.EditDistance)
		for _, op := range r.Ops {
			switch op.Kind {
			case OpInsertion, OpDeletion:
				score -= gapPenalty(op.Len)
			case OpSoftClip:
				score -= softClipPenalty * float64(op.Len)
			}
		}
	}
	return score
}

// ScoreRealignment realigns each present end of pair against junction and
// sums the resulting scores. Each read contributes a value in [-50, 0].
func ScoreRealignment(pair *ReadPair, junction []byte) (float64, error) {
	var score float64
	for _, r := range pair.Reads() {
		ops, offset := Align(junction, r.Bases, DefaultSWParams)
		s, err := scoreRealignedRead(ops, offset, r.Bases, junction)
		if err != nil {
			return 0, errors.E(err, fmt.Sprintf("realign read %s", r.Name))
		}
		score += s
	}
	return score, nil
}

// scoreRealignedRead walks the alignment of bases starting at offset in ref
// and converts the accumulated phred units into a log10 score. Fractional
// gap units are truncated per operation.
func scoreRealignedRead(ops []Op, offset int, bases, ref []byte) (float64, error) {
	var b, units int
	for _, op := range ops {
		switch op.Kind {
		case OpMatch:
			for n := 0; n < op.Len; n++ {
				pos := b + offset
				// A base off either end of the template counts as a mismatch.
				if b >= len(bases) || pos < 0 || pos >= len(ref) || bases[b] != ref[pos] {
					units += mismatchUnits
				}
				b++
			}
		case OpDeletion:
			offset += op.Len
			units += int(deletionUnitScale * gapPenalty(op.Len))
		case OpInsertion:
			b += op.Len
			offset -= op.Len
			units += int(insertionUnitOffset + insertionUnitScale*(2-math.Pow(2, -float64(op.Len))))
		case OpSoftClip:
			b += op.Len
			offset -= op.Len
			units += softClipUnits * op.Len
		case OpHardClip:
			b += op.Len
			offset -= op.Len
		default:
			return 0, errors.E(errors.Invalid, fmt.Sprintf("unsupported operator: %v", op.Kind))
		}
	}
	if units > AlignmentQualCap {
		units = AlignmentQualCap
	}
	return float64(units) / -10, nil
}
