// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pairbin groups aligned read pairs by the genes they overlap.
package pairbin

import (
	"sort"
	"sync"

	"github.com/biogo/store/interval"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/intronloss/intronloss"
)

// Opts controls which records a Binner keeps.
type Opts struct {
	// MinMapQ drops records with a lower mapping quality.
	MinMapQ int
	// MaxPairsPerGene caps the pairs kept per gene. Zero means no cap.
	MaxPairsPerGene int
	// MaxInsertSize is the largest insert size recorded in the histograms.
	MaxInsertSize int
	// HistogramPairs caps the number of pairs sampled for insert-size
	// histograms. Zero means every proper pair is sampled.
	HistogramPairs int
}

// DefaultOpts is the default Binner configuration.
var DefaultOpts = Opts{
	MinMapQ:         0,
	MaxPairsPerGene: 20000,
	MaxInsertSize:   intronloss.DefaultMaxInsertSize,
}

// skipFlags are the flags of records that are never binned.
const skipFlags = sam.Secondary | sam.Supplementary | sam.QCFail | sam.Duplicate

// geneInterval is a gene span in an interval tree. Ranges are half-open.
type geneInterval struct {
	index int
	r     interval.IntRange
}

func (g geneInterval) ID() uintptr               { return uintptr(g.index + 1) }
func (g geneInterval) Range() interval.IntRange { return g.r }
func (g geneInterval) Overlap(b interval.IntRange) bool {
	return g.r.End > b.Start && g.r.Start < b.End
}

// query is a read span used to search an interval tree.
type query interval.IntRange

func (q query) Overlap(b interval.IntRange) bool {
	return q.End > b.Start && q.Start < b.End
}

// Result is the output of a Binner.
type Result struct {
	// Pairs[i] lists the pairs overlapping features[i], sorted by key.
	Pairs [][]*intronloss.ReadPair
	// Histograms holds the insert sizes of the sampled proper pairs.
	Histograms *intronloss.HistogramBuilder
	// Unpaired counts reads whose mate never arrived.
	Unpaired int
	// Capped counts pairs dropped because a gene reached MaxPairsPerGene.
	Capped int
	// UnknownReadGroup counts reads dropped because their read group is not
	// in the header.
	UnknownReadGroup int
}

// Binner assigns read pairs to genes. It is safe for concurrent use.
type Binner struct {
	opts     Opts
	features []intronloss.Feature
	samples  map[string]string
	trees    map[string]*interval.IntTree
	mates    *mateTable

	mu       sync.Mutex
	pairs    [][]*intronloss.ReadPair
	capped   int
	unknown  int
	hist     *intronloss.HistogramBuilder
	nSampled int
}

// NewBinner creates a Binner for the given genes. samples maps read-group IDs
// to sample names.
func NewBinner(features []intronloss.Feature, samples map[string]string, opts Opts) *Binner {
	b := &Binner{
		opts:     opts,
		features: features,
		samples:  samples,
		trees:    map[string]*interval.IntTree{},
		mates:    newMateTable(),
		pairs:    make([][]*intronloss.ReadPair, len(features)),
		hist:     intronloss.NewHistogramBuilder(opts.MaxInsertSize),
	}
	for i, f := range features {
		t, ok := b.trees[f.Loc.Contig]
		if !ok {
			t = &interval.IntTree{}
			b.trees[f.Loc.Contig] = t
		}
		gi := geneInterval{index: i, r: interval.IntRange{Start: f.Loc.Start, End: f.Loc.Stop + 1}}
		if err := t.Insert(gi, true); err != nil {
			log.Panicf("insert %v: %v", f.Loc, err)
		}
	}
	for _, t := range b.trees {
		t.AdjustRanges()
	}
	return b
}

// Samples returns the distinct sample names, sorted.
func (b *Binner) Samples() []string {
	return SampleNames(b.samples)
}

// Add processes one record. Records that are filtered out are ignored, as are
// records from a read group missing from the header. Add fails if the record
// cannot be converted, e.g., it lacks an NM tag.
func (b *Binner) Add(rec *sam.Record) error {
	if rec.Flags&skipFlags != 0 {
		return nil
	}
	if rec.Flags&sam.Unmapped == 0 && int(rec.MapQ) < b.opts.MinMapQ {
		return nil
	}
	r, err := intronloss.NewRead(rec, b.samples)
	if err != nil || r == nil {
		return err
	}
	if _, ok := b.samples[r.ReadGroup]; !ok {
		b.mu.Lock()
		b.unknown++
		b.mu.Unlock()
		return nil
	}
	b.sampleInsertSize(rec, r)
	if rec.Flags&sam.Paired == 0 || rec.Flags&sam.MateUnmapped != 0 {
		b.addPair(newPair(r, nil))
		return nil
	}
	if mate := b.mates.lookupAndDelete(r); mate != nil {
		b.addPair(newPair(r, mate))
	}
	return nil
}

func (b *Binner) sampleInsertSize(rec *sam.Record, r *intronloss.Read) {
	const want = sam.Paired | sam.ProperPair | sam.Read1
	if rec.Flags&want != want || rec.TempLen == 0 {
		return
	}
	b.mu.Lock()
	if b.opts.HistogramPairs <= 0 || b.nSampled < b.opts.HistogramPairs {
		b.hist.Add(r.ReadGroup, r.InsertSize)
		b.nSampled++
	}
	b.mu.Unlock()
}

// newPair orders the two ends into R1 and R2.
func newPair(r, mate *intronloss.Read) *intronloss.ReadPair {
	p := &intronloss.ReadPair{}
	for _, x := range []*intronloss.Read{r, mate} {
		if x == nil {
			continue
		}
		if x.First {
			p.R1 = x
		} else {
			p.R2 = x
		}
	}
	return p
}

// genesOf returns the indexes of the genes overlapping any read of p.
func (b *Binner) genesOf(p *intronloss.ReadPair) []int {
	var genes []int
	for _, r := range p.Reads() {
		t, ok := b.trees[r.Loc.Contig]
		if !ok {
			continue
		}
		for _, hit := range t.Get(query{Start: r.Loc.Start, End: r.Loc.Stop + 1}) {
			idx := hit.(geneInterval).index
			dup := false
			for _, g := range genes {
				if g == idx {
					dup = true
					break
				}
			}
			if !dup {
				genes = append(genes, idx)
			}
		}
	}
	return genes
}

func (b *Binner) addPair(p *intronloss.ReadPair) {
	genes := b.genesOf(p)
	if len(genes) == 0 {
		return
	}
	b.mu.Lock()
	for _, g := range genes {
		if b.opts.MaxPairsPerGene > 0 && len(b.pairs[g]) >= b.opts.MaxPairsPerGene {
			b.capped++
			continue
		}
		b.pairs[g] = append(b.pairs[g], p)
	}
	b.mu.Unlock()
}

// Finish bins the reads whose mate never arrived as single-read pairs and
// returns the result. The Binner must not be used afterwards.
func (b *Binner) Finish() *Result {
	unpaired := b.mates.drain()
	if len(unpaired) > 0 {
		log.Error.Printf("%d reads have no mate; they are used as single reads", len(unpaired))
	}
	for _, r := range unpaired {
		b.addPair(newPair(r, nil))
	}
	for _, pairs := range b.pairs {
		sort.Slice(pairs, func(i, j int) bool {
			ki, kj := pairs[i].Key(), pairs[j].Key()
			if ki.ReadGroup != kj.ReadGroup {
				return ki.ReadGroup < kj.ReadGroup
			}
			return ki.Name < kj.Name
		})
	}
	if b.unknown > 0 {
		log.Error.Printf("dropped %d reads whose read group is not in the header", b.unknown)
	}
	if b.capped > 0 {
		log.Printf("dropped %d pairs over the per-gene limit of %d", b.capped, b.opts.MaxPairsPerGene)
	}
	return &Result{
		Pairs:            b.pairs,
		Histograms:       b.hist,
		Unpaired:         len(unpaired),
		Capped:           b.capped,
		UnknownReadGroup: b.unknown,
	}
}

// SampleNames returns the distinct values of samples, sorted.
func SampleNames(samples map[string]string) []string {
	seen := map[string]bool{}
	var names []string
	for _, s := range samples {
		if !seen[s] {
			seen[s] = true
			names = append(names, s)
		}
	}
	sort.Strings(names)
	return names
}

var smTag = sam.NewTag("SM")

// HeaderSamples maps each read group of h to its sample. Read groups without
// an SM field are their own sample.
func HeaderSamples(h *sam.Header) map[string]string {
	samples := map[string]string{}
	for _, rg := range h.RGs() {
		sm := rg.Get(smTag)
		if sm == "" {
			sm = rg.Name()
		}
		samples[rg.Name()] = sm
	}
	return samples
}
