// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Feature is a gene model: its span and its exons, sorted by position.
type Feature struct {
	Name  string
	Loc   Loc
	Exons []Loc
}

// Call is the evidence for one intron-loss postulate of a gene.
type Call struct {
	Contig string
	// Pos is the 1-based position of the gene's last base.
	Pos int
	// Ref is the reference base at Pos.
	Ref byte
	// Alt is the symbolic allele, e.g., "<:EX1-EX3:>".
	Alt string
	// SupportingReads is the number of pairs linking the two exons.
	SupportingReads int
	GeneName        string
	// ExonLoc is the last base of the postulate's upstream exon.
	ExonLoc Loc
	// EventSize is the distance between the two exons.
	EventSize   int
	Likelihoods Likelihoods
}

// Samples returns the sample names of c in sorted order.
func (c *Call) Samples() []string {
	s := make([]string, 0, len(c.Likelihoods))
	for name := range c.Likelihoods {
		s = append(s, name)
	}
	sort.Strings(s)
	return s
}

// PL returns the phred-scaled genotype likelihoods of sample, normalized so
// that the most likely genotype is 0.
func (c *Call) PL(sample string) []int {
	g, ok := c.Likelihoods[sample]
	if !ok {
		return nil
	}
	max := g.Max()
	pl := make([]int, len(g))
	for i, v := range g {
		pl[i] = int(math.Round(-10 * (v - max)))
	}
	return pl
}

// Caller evaluates the intron-loss postulates of genes.
type Caller struct {
	Ref        Reference
	Aggregator *Aggregator
}

// NewCaller creates a Caller for the given samples.
func NewCaller(ref Reference, histograms HistogramProvider, samples []string) *Caller {
	return &Caller{
		Ref: ref,
		Aggregator: &Aggregator{
			Samples:    samples,
			InsertSize: NewInsertSizeModel(histograms),
		},
	}
}

// CallGene clusters the pairs binned to gene f and evaluates each valid
// postulate. It returns one call per postulate whose supporting pairs do not
// already favor the reference in every sample. Postulates whose junction
// sequence cannot be built are logged and skipped.
//
// CallGene is safe for concurrent use on distinct genes.
func (c *Caller) CallGene(f Feature, pairs []*ReadPair) ([]Call, error) {
	set := BuildPostulates(f.Exons, pairs)
	if set.Dropped > 0 {
		log.Debug.Printf("%s: dropped %d pairs with a missing end", f.Name, set.Dropped)
	}
	var (
		calls []Call
		ref   byte
	)
	for _, p := range set.Sorted() {
		if !p.IsValid() {
			continue
		}
		junction, err := p.JunctionSequence(c.Ref)
		if err != nil {
			log.Error.Printf("%s: cannot evaluate %v: %v", f.Name, p, err)
			continue
		}
		e, err := c.Aggregator.Evaluate(p, set.Background, junction)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("gene %s, postulate %v", f.Name, p))
		}
		if e.RefFavored {
			continue
		}
		if ref == 0 {
			bases, err := c.Ref.Subsequence(f.Loc.Contig, f.Loc.Stop, f.Loc.Stop)
			if err != nil {
				return nil, errors.E(err, fmt.Sprintf("gene %s: reference base", f.Name))
			}
			ref = bases[0]
		}
		calls = append(calls, Call{
			Contig:          f.Loc.Contig,
			Pos:             f.Loc.Stop,
			Ref:             ref,
			Alt:             fmt.Sprintf("<:%v:>", p),
			SupportingReads: p.NumPairs(),
			GeneName:        f.Name,
			ExonLoc:         p.ExonLocs[0].StopLoc(),
			EventSize:       p.EventSize(),
			Likelihoods:     e.Likelihoods,
		})
	}
	return calls, nil
}
