// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignExact(t *testing.T) {
	ops, off := Align([]byte("TTTTACGTACGGGG"), []byte("ACGTACG"), DefaultSWParams)
	assert.Equal(t, "7M", FormatOps(ops))
	assert.Equal(t, 4, off)
}

func TestAlignEmpty(t *testing.T) {
	ops, off := Align([]byte("ACGT"), nil, DefaultSWParams)
	assert.Empty(t, ops)
	assert.Equal(t, 0, off)

	ops, off = Align(nil, []byte("ACGT"), DefaultSWParams)
	assert.Equal(t, "4S", FormatOps(ops))
	assert.Equal(t, 0, off)
}

func TestAlignOverhang(t *testing.T) {
	// The first eight read bases match the end of the reference.
	ops, off := Align([]byte("GGGGACGTACGT"), []byte("ACGTACGTTTTT"), DefaultSWParams)
	assert.Equal(t, "8M4S", FormatOps(ops))
	assert.Equal(t, 4, off)
}

func TestAlignMismatch(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	ref := randomBases(r, 120)
	read := append([]byte{}, ref[30:90]...)
	read[25] = complement(read[25])
	ops, off := Align(ref, read, DefaultSWParams)
	assert.Equal(t, "60M", FormatOps(ops))
	assert.Equal(t, 30, off)
}

// Every alignment must consume the whole read and stay within the reference.
func TestAlignConsistency(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 100; i++ {
		ref := randomBases(r, 50+r.Intn(150))
		read := randomBases(r, 20+r.Intn(80))
		if i%2 == 0 {
			// Mostly-matching read with an indel.
			start := r.Intn(len(ref) / 2)
			end := start + 40
			if end > len(ref) {
				end = len(ref)
			}
			read = append(append([]byte{}, ref[start:start+(end-start)/2]...), ref[start+(end-start)/2+3:end]...)
		}
		ops, off := Align(ref, read, DefaultSWParams)
		var readLen, refLen int
		for j, op := range ops {
			assert.True(t, op.Len > 0)
			if j > 0 {
				assert.NotEqual(t, ops[j-1].Kind, op.Kind)
			}
			switch op.Kind {
			case OpMatch:
				readLen += op.Len
				refLen += op.Len
			case OpInsertion, OpSoftClip:
				readLen += op.Len
			case OpDeletion:
				refLen += op.Len
			default:
				t.Errorf("unexpected op %v", op)
			}
		}
		assert.Equal(t, len(read), readLen, "%s", FormatOps(ops))
		assert.True(t, off >= 0 && off+refLen <= len(ref), "offset %d, %s, ref %d", off, FormatOps(ops), len(ref))
	}
}
