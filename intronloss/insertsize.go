// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"math"
	"sync"

	"github.com/grailbio/base/log"
)

// UninformativeQual is the phred quality substituted when a read group has no
// insert-size histogram.
const UninformativeQual = 4

// HistogramProvider looks up the insert-size histogram of a read group. A
// histogram maps an insert size to a phred-scaled quality; index 0 is unused.
// Implementations must be safe for concurrent reads.
type HistogramProvider interface {
	Histogram(readGroup string) ([]byte, bool)
}

// Histograms is a map-backed HistogramProvider keyed by read group ID.
type Histograms map[string][]byte

// Histogram implements HistogramProvider.
func (h Histograms) Histogram(readGroup string) ([]byte, bool) {
	q, ok := h[readGroup]
	return q, ok && len(q) > 1
}

// QualToErrorProb converts a phred quality to a linear error probability.
func QualToErrorProb(q byte) float64 {
	return math.Pow(10, -float64(q)/10)
}

// InsertSizeModel scores the insert size of a read against the empirical
// distribution of its read group.
type InsertSizeModel struct {
	provider HistogramProvider
	warned   sync.Map
}

// NewInsertSizeModel creates a model backed by provider.
func NewInsertSizeModel(provider HistogramProvider) *InsertSizeModel {
	return &InsertSizeModel{provider: provider}
}

// LogProb returns the log10 probability of the insert size of r once
// adjustment bases are removed from it. The looked-up size is clamped to the
// histogram's range. The result is always <= 0.
func (m *InsertSizeModel) LogProb(r *Read, adjustment int) float64 {
	quals, ok := m.provider.Histogram(r.ReadGroup)
	if !ok {
		if _, dup := m.warned.LoadOrStore(r.ReadGroup, true); !dup {
			log.Error.Printf("no insert size histogram for read group %q, using an uninformative probability", r.ReadGroup)
		}
		return math.Log10(QualToErrorProb(UninformativeQual))
	}
	size := absInt(r.InsertSize) - adjustment
	if size > len(quals)-1 {
		size = len(quals) - 1
	}
	if size < 1 {
		size = 1
	}
	return math.Log10(QualToErrorProb(quals[size]))
}
