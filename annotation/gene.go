// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package annotation loads gene models from GENCODE GTF files and UCSC refGene
// tables. One transcript is chosen per gene; its exons are the ones tested
// for intron loss.
package annotation

import (
	"context"
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/intronloss/intronloss"
)

// Gene is one gene with the exons of its chosen transcript.
type Gene struct {
	Name         string
	TranscriptID string
	Chrom        string
	Strand       string
	// Start and Stop delimit the transcript. They are 1-based and closed.
	Start, Stop int
	// Exons are sorted by position and do not overlap.
	Exons []intronloss.Loc
}

// Loc returns the span of the gene.
func (g *Gene) Loc() intronloss.Loc {
	return intronloss.NewLoc(g.Chrom, g.Start, g.Stop)
}

// Feature converts g for the caller.
func (g *Gene) Feature() intronloss.Feature {
	return intronloss.Feature{Name: g.Name, Loc: g.Loc(), Exons: g.Exons}
}

func (g *Gene) String() string {
	return fmt.Sprintf("%s(%s %s:%d-%d, %d exons)", g.Name, g.TranscriptID, g.Chrom, g.Start, g.Stop, len(g.Exons))
}

// Annotation file formats accepted by Read.
const (
	FormatGTF     = "gtf"
	FormatRefGene = "refgene"
)

// Read loads genes from path in the given format.
func Read(ctx context.Context, path, format string) ([]*Gene, error) {
	switch format {
	case FormatGTF:
		return ReadGTF(ctx, path, GTFOpts{})
	case FormatRefGene:
		return ReadRefGene(ctx, path)
	}
	return nil, errors.E(errors.Invalid, fmt.Sprintf("unknown annotation format %q", format))
}

// Filter returns the genes overlapping region.
func Filter(genes []*Gene, region intronloss.Loc) []*Gene {
	var out []*Gene
	for _, g := range genes {
		if g.Loc().Overlaps(region) {
			out = append(out, g)
		}
	}
	return out
}

type exonRange struct {
	start, stop int // both ends are closed.
}

type exonRanges []exonRange

// merge appends r to g. If the last item of g overlaps or touches r, it is
// extended instead.
func (g *exonRanges) merge(r exonRange) {
	if n := len(*g); n > 0 {
		last := &(*g)[n-1]
		if r.start <= last.stop+1 {
			if r.stop > last.stop {
				last.stop = r.stop
			}
			return
		}
	}
	*g = append(*g, r)
}

// collapse sorts the ranges and merges overlapping ones.
func (g *exonRanges) collapse() {
	sort.Slice(*g, func(i, j int) bool { return (*g)[i].start < (*g)[j].start })
	out := exonRanges{}
	for _, r := range *g {
		out.merge(r)
	}
	*g = out
}

// transcript is one transcript of a gene, as read from an annotation file.
type transcript struct {
	geneName string
	id       string
	chrom    string
	strand   string
	exons    exonRanges
}

// geneKey groups transcripts. A gene name may appear on several contigs.
type geneKey struct {
	name, chrom string
}

// chooseTranscripts picks, for each gene, the transcript with the most exons;
// ties go to the smallest transcript ID. The genes are sorted by contig,
// start and name.
func chooseTranscripts(transcripts []*transcript) ([]*Gene, error) {
	best := map[geneKey]*transcript{}
	for _, t := range transcripts {
		if len(t.exons) == 0 {
			continue
		}
		t.exons.collapse()
		k := geneKey{t.geneName, t.chrom}
		b, ok := best[k]
		if !ok || len(t.exons) > len(b.exons) || (len(t.exons) == len(b.exons) && t.id < b.id) {
			best[k] = t
		}
	}
	genes := make([]*Gene, 0, len(best))
	for _, t := range best {
		g := &Gene{
			Name:         t.geneName,
			TranscriptID: t.id,
			Chrom:        t.chrom,
			Strand:       t.strand,
			Start:        t.exons[0].start,
			Stop:         t.exons[len(t.exons)-1].stop,
			Exons:        make([]intronloss.Loc, len(t.exons)),
		}
		for i, e := range t.exons {
			if e.start < 1 || e.stop < e.start {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("transcript %s: invalid exon %d-%d", t.id, e.start, e.stop))
			}
			g.Exons[i] = intronloss.NewLoc(t.chrom, e.start, e.stop)
		}
		genes = append(genes, g)
	}
	sort.Slice(genes, func(i, j int) bool {
		a, b := genes[i], genes[j]
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Name < b.Name
	})
	return genes, nil
}
