// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"math"
	"sync"
)

// SWParams are the scores of a gap-affine Smith-Waterman alignment. Penalties
// are negative.
type SWParams struct {
	Match     int32
	Mismatch  int32
	GapOpen   int32
	GapExtend int32
}

// DefaultSWParams are used to realign reads against junction sequences.
var DefaultSWParams = SWParams{Match: 3, Mismatch: -1, GapOpen: -4, GapExtend: -1}

type int32Matrix struct {
	cols  int
	array []int32
}

func (m *int32Matrix) ensureSize(rows, cols int) {
	m.cols = cols
	n := rows * cols
	if n <= cap(m.array) {
		m.array = m.array[:n]
		for i := range m.array {
			m.array[i] = 0
		}
	} else {
		m.array = make([]int32, n)
	}
}

func (m *int32Matrix) at(row, col int) int32 { return m.array[row*m.cols+col] }

func (m *int32Matrix) rowView(row int) []int32 {
	off := row * m.cols
	return m.array[off : off+m.cols]
}

type swMatrices struct {
	score, backtrack                       int32Matrix
	bestGapV, bestGapH, gapSizeV, gapSizeH []int32
}

var swMatricesPool = sync.Pool{New: func() interface{} { return &swMatrices{} }}

func ensureVector(v []int32, n int, init int32) []int32 {
	if n <= cap(v) {
		v = v[:n]
	} else {
		v = make([]int32, n)
	}
	for i := range v {
		v[i] = init
	}
	return v
}

// lastIndex returns the largest offset at which read occurs verbatim in ref,
// or -1.
func lastIndex(ref, read []byte) int {
	n := len(read)
	for r := len(ref) - n; r >= 0; r-- {
		q := 0
		for q < n && ref[r+q] == read[q] {
			q++
		}
		if q == n {
			return r
		}
	}
	return -1
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// Align computes a local alignment of read against ref. Read bases that hang
// off either end of the best local alignment are soft-clipped. It returns the
// alignment operations over the read and the 0-based offset in ref of the
// first aligned (non-clipped) read base.
//
// The result uses only OpMatch, OpInsertion, OpDeletion and OpSoftClip.
func Align(ref, read []byte, p SWParams) ([]Op, int) {
	if len(read) == 0 {
		return nil, 0
	}
	if len(ref) == 0 {
		return []Op{{Kind: OpSoftClip, Len: len(read)}}, 0
	}
	if off := lastIndex(ref, read); off >= 0 {
		return []Op{{Kind: OpMatch, Len: len(read)}}, off
	}

	m := swMatricesPool.Get().(*swMatrices)
	defer swMatricesPool.Put(m)

	refLen, readLen := len(ref), len(read)
	nrow, ncol := refLen+1, readLen+1
	m.score.ensureSize(nrow, ncol)
	m.backtrack.ensureSize(nrow, ncol)

	const (
		minCutoff = -1e8
		lowInit   = math.MinInt32 / 2
	)
	m.bestGapV = ensureVector(m.bestGapV, ncol+1, lowInit)
	m.gapSizeV = ensureVector(m.gapSizeV, ncol+1, 0)
	m.bestGapH = ensureVector(m.bestGapH, nrow+1, lowInit)
	m.gapSizeH = ensureVector(m.gapSizeH, nrow+1, 0)

	cur := m.score.rowView(0)
	for i := 1; i < nrow; i++ {
		a := ref[i-1]
		last := cur
		cur = m.score.rowView(i)
		bt := m.backtrack.rowView(i)
		for j := 1; j < ncol; j++ {
			diag := last[j-1]
			if a == read[j-1] {
				diag += p.Match
			} else {
				diag += p.Mismatch
			}

			gap := last[j] + p.GapOpen
			m.bestGapV[j] += p.GapExtend
			if gap > m.bestGapV[j] {
				m.bestGapV[j] = gap
				m.gapSizeV[j] = 1
			} else {
				m.gapSizeV[j]++
			}
			down, kd := m.bestGapV[j], m.gapSizeV[j]

			gap = cur[j-1] + p.GapOpen
			m.bestGapH[i] += p.GapExtend
			if gap > m.bestGapH[i] {
				m.bestGapH[i] = gap
				m.gapSizeH[i] = 1
			} else {
				m.gapSizeH[i]++
			}
			right, ki := m.bestGapH[i], m.gapSizeH[i]

			switch {
			case diag >= down && diag >= right:
				cur[j] = maxInt32(minCutoff, diag)
				bt[j] = 0
			case right >= down:
				cur[j] = maxInt32(minCutoff, right)
				bt[j] = -ki
			default:
				cur[j] = maxInt32(minCutoff, down)
				bt[j] = kd
			}
		}
	}

	// Best end point: either the read is consumed entirely (last column), or
	// the reference is (last row) and the rest of the read is clipped.
	best := int32(math.MinInt32)
	var p1, clip int
	p2 := readLen
	for i := 1; i < nrow; i++ {
		if s := m.score.at(i, readLen); s >= best {
			p1, best = i, s
		}
	}
	bottom := m.score.rowView(refLen)
	for j := 1; j < ncol; j++ {
		if s := bottom[j]; s > best || (s == best && absInt(refLen-j) < absInt(p1-p2)) {
			p1, p2, best = refLen, j, s
			clip = readLen - j
		}
	}

	ops := make([]Op, 0, 5)
	if clip > 0 {
		ops = append(ops, Op{Kind: OpSoftClip, Len: clip})
	}
	state, run := OpMatch, 0
	for {
		step := 1
		var next OpKind
		switch btr := int(m.backtrack.at(p1, p2)); {
		case btr > 0:
			next, step = OpDeletion, btr
			p1 -= btr
		case btr < 0:
			next, step = OpInsertion, -btr
			p2 += btr
		default:
			next = OpMatch
			p1--
			p2--
		}
		if next == state {
			run += step
		} else {
			ops = append(ops, Op{Kind: state, Len: run})
			state, run = next, step
		}
		if p1 <= 0 || p2 <= 0 {
			break
		}
	}
	ops = append(ops, Op{Kind: state, Len: run})
	if p2 > 0 {
		ops = append(ops, Op{Kind: OpSoftClip, Len: p2})
	}

	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return mergeOps(ops), p1
}

// mergeOps removes empty runs and joins adjacent runs of the same kind.
func mergeOps(ops []Op) []Op {
	out := ops[:0]
	for _, op := range ops {
		if op.Len == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Kind == op.Kind {
			out[n-1].Len += op.Len
			continue
		}
		out = append(out, op)
	}
	return out
}
