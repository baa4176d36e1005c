// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"math"

	"github.com/grailbio/base/log"
)

// Ploidy is the number of chromosome copies per sample.
const Ploidy = 2

// refFavoredTolerance is the tolerance used when checking whether the
// hom-ref entry is the maximum of a likelihood vector.
const refFavoredTolerance = 1e-5

// Genotype is a vector of log10 likelihoods indexed by the number of
// chromosomes carrying the event.
type Genotype [Ploidy + 1]float64

// Likelihoods maps a sample name to its genotype likelihoods.
type Likelihoods map[string]*Genotype

// NewLikelihoods creates a zero (uninformative) vector for every sample.
func NewLikelihoods(samples []string) Likelihoods {
	l := make(Likelihoods, len(samples))
	for _, s := range samples {
		l[s] = &Genotype{}
	}
	return l
}

// Max returns the largest entry of g.
func (g *Genotype) Max() float64 {
	m := g[0]
	for _, v := range g[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// RefFavored checks if the hom-ref entry of every sample is its maximum.
func (l Likelihoods) RefFavored() bool {
	for _, g := range l {
		if math.Abs(g.Max()-g[0]) > refFavoredTolerance {
			return false
		}
	}
	return true
}

// log10SumLog10 computes log10(10^a + 10^b). -Inf terms contribute nothing;
// the sum of two -Inf terms is -Inf.
func log10SumLog10(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log10(1+math.Pow(10, b-a))
}

var (
	log10Ploidy = math.Log10(Ploidy)
	// log10AlleleFrac[ac] = log10(ac), log10RefFrac[ac] = log10(Ploidy-ac).
	log10AlleleFrac, log10RefFrac [Ploidy + 1]float64
)

func init() {
	for ac := 0; ac <= Ploidy; ac++ {
		log10AlleleFrac[ac] = math.Log10(float64(ac))
		log10RefFrac[ac] = math.Log10(float64(Ploidy - ac))
	}
}

// add folds the evidence of one pair into g. For each allele count, the pair
// is explained by a mixture of the loss and no-loss hypotheses weighted by the
// fraction of chromosomes carrying the event.
func (g *Genotype) add(lossScore, noLossScore float64) {
	for ac := 0; ac <= Ploidy; ac++ {
		g[ac] += log10SumLog10(
			log10AlleleFrac[ac]+lossScore-log10Ploidy,
			log10RefFrac[ac]+noLossScore-log10Ploidy)
	}
}

// Aggregator computes per-sample genotype likelihoods for postulates.
type Aggregator struct {
	Samples    []string
	InsertSize *InsertSizeModel
}

// Evaluation is the result of evaluating one postulate.
type Evaluation struct {
	Likelihoods Likelihoods
	// RefFavored is set when the supporting pairs alone favor the reference
	// for every sample; the background was not consulted in that case.
	RefFavored bool
	// Background is the number of background pairs that were scored.
	Background int
}

// Evaluate scores the supporting pairs of p, and then, unless they already
// favor the reference for all samples, the background pairs relevant to p.
// junction is the junction sequence of p. Pairs from a sample not listed in
// a.Samples are ignored.
func (a *Aggregator) Evaluate(p *Postulate, background *Postulate, junction []byte) (Evaluation, error) {
	e := Evaluation{Likelihoods: NewLikelihoods(a.Samples)}
	eventSize := p.EventSize()
	for _, pair := range p.Pairs() {
		g, ok := e.Likelihoods[pair.Sample()]
		if !ok {
			continue
		}
		realign, err := ScoreRealignment(pair, junction)
		if err != nil {
			return Evaluation{}, err
		}
		loss := realign + a.InsertSize.LogProb(pair.R2, eventSize)
		noLoss := ScoreAlignment(pair) + a.InsertSize.LogProb(pair.R1, 0)
		g.add(loss, noLoss)
	}
	if e.Likelihoods.RefFavored() {
		e.RefFavored = true
		return e, nil
	}
	if background == nil {
		return e, nil
	}
	for _, pair := range background.Pairs() {
		g, ok := e.Likelihoods[pair.Sample()]
		if !ok || !p.IsRelevant(pair.Locs()) {
			continue
		}
		realign, err := ScoreRealignment(pair, junction)
		if err != nil {
			return Evaluation{}, err
		}
		g.add(realign, ScoreAlignment(pair))
		e.Background++
	}
	if log.At(log.Debug) {
		log.Debug.Printf("postulate %v: %d supporting, %d relevant background pairs", p, p.NumPairs(), e.Background)
	}
	return e, nil
}
