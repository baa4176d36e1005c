// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package genotyper runs intron-loss genotyping over a BAM file: it loads the
// gene models, bins read pairs by gene, evaluates the postulates of every gene
// in parallel and writes the calls as VCF.
package genotyper

import (
	"context"
	"runtime"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/intronloss/annotation"
	"github.com/grailbio/intronloss/encoding/fasta"
	"github.com/grailbio/intronloss/encoding/vcf"
	"github.com/grailbio/intronloss/intronloss"
	"github.com/grailbio/intronloss/pairbin"
)

// Opts configures Run.
type Opts struct {
	// AnnotationPath is the gene model file. Required.
	AnnotationPath string
	// AnnotationFormat is annotation.FormatGTF or annotation.FormatRefGene.
	AnnotationFormat string
	// HistogramPath, if set, names a TSV of per-read-group insert-size
	// histograms. Otherwise histograms are built from the BAM.
	HistogramPath string
	// HistogramOut, if set, receives the histograms built from the BAM.
	HistogramOut string
	// HistogramPairs caps the proper pairs sampled for histograms. Zero means
	// all of them.
	HistogramPairs int
	// MaxInsertSize is the largest insert size tracked by built histograms.
	MaxInsertSize int
	// OutPath is the VCF output path.
	OutPath string
	// Region restricts calling to genes overlapping it, e.g., "chr1:1-1000".
	Region string
	// Mapq drops records with a lower mapping quality.
	Mapq int
	// MaxPairsPerGene caps the pairs evaluated per gene. Zero means no cap.
	MaxPairsPerGene int
	// Parallelism is the number of genes evaluated concurrently. Zero means
	// runtime.NumCPU().
	Parallelism int
	// Bgzip compresses the output VCF.
	Bgzip bool
}

// DefaultOpts are the default options.
var DefaultOpts = Opts{
	AnnotationFormat: annotation.FormatRefGene,
	OutPath:          "intronloss.vcf",
	MaxInsertSize:    pairbin.DefaultOpts.MaxInsertSize,
	Mapq:             pairbin.DefaultOpts.MinMapQ,
	MaxPairsPerGene:  pairbin.DefaultOpts.MaxPairsPerGene,
}

// Run genotypes intron losses for the reads in bamPath against the reference
// in faPath.
func Run(ctx context.Context, bamPath, faPath string, opts Opts) (err error) {
	if opts.AnnotationPath == "" {
		return errors.E(errors.Invalid, "genotyper: annotation path is required")
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	genes, err := annotation.Read(ctx, opts.AnnotationPath, opts.AnnotationFormat)
	if err != nil {
		return err
	}
	if opts.Region != "" {
		region, err := intronloss.ParseRegion(opts.Region)
		if err != nil {
			return err
		}
		genes = annotation.Filter(genes, region)
		log.Printf("%d genes overlap %s", len(genes), opts.Region)
	}
	features := make([]intronloss.Feature, len(genes))
	for i, g := range genes {
		features[i] = g.Feature()
	}

	ref, err := fasta.Open(ctx, faPath)
	if err != nil {
		return err
	}
	defer func() {
		if e := ref.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()

	binOpts := pairbin.Opts{
		MinMapQ:         opts.Mapq,
		MaxPairsPerGene: opts.MaxPairsPerGene,
		MaxInsertSize:   opts.MaxInsertSize,
		HistogramPairs:  opts.HistogramPairs,
	}
	bins, samples, err := pairbin.ReadBAM(ctx, bamPath, features, binOpts, parallelism)
	if err != nil {
		return err
	}
	histograms, err := loadHistograms(ctx, opts, bins)
	if err != nil {
		return err
	}

	caller := intronloss.NewCaller(ref, histograms, samples)
	calls, err := callGenes(caller, features, bins.Pairs, parallelism)
	if err != nil {
		return err
	}
	sortCalls(calls, ref.Contigs())

	w, err := vcf.Create(ctx, opts.OutPath, samples, vcf.Opts{
		Bgzip:       opts.Bgzip,
		Parallelism: parallelism,
		Source:      "bio-intronloss",
	})
	if err != nil {
		return err
	}
	for i := range calls {
		if err := w.Write(&calls[i]); err != nil {
			w.Close(ctx) // nolint: errcheck
			return errors.E(err, opts.OutPath)
		}
	}
	if err := w.Close(ctx); err != nil {
		return err
	}
	log.Printf("wrote %d calls for %d genes to %s", len(calls), len(features), opts.OutPath)
	return nil
}

func loadHistograms(ctx context.Context, opts Opts, bins *pairbin.Result) (intronloss.Histograms, error) {
	if opts.HistogramPath != "" {
		return intronloss.ReadHistograms(ctx, opts.HistogramPath)
	}
	h := bins.Histograms.Build()
	log.Printf("built insert-size histograms for %d read groups", len(h))
	if opts.HistogramOut != "" {
		if err := intronloss.WriteHistograms(ctx, opts.HistogramOut, h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// callGenes runs the caller over every gene, splitting the genes into
// parallelism contiguous jobs.
func callGenes(caller *intronloss.Caller, features []intronloss.Feature, pairs [][]*intronloss.ReadPair, parallelism int) ([]intronloss.Call, error) {
	if len(features) == 0 {
		return nil, nil
	}
	if parallelism > len(features) {
		parallelism = len(features)
	}
	var (
		e       errors.Once
		perGene = make([][]intronloss.Call, len(features))
	)
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(features)) / parallelism
		endIdx := ((jobIdx + 1) * len(features)) / parallelism
		for i := startIdx; i < endIdx && e.Err() == nil; i++ {
			calls, err := caller.CallGene(features[i], pairs[i])
			if err != nil {
				e.Set(err)
				return nil
			}
			perGene[i] = calls
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	var calls []intronloss.Call
	for _, c := range perGene {
		calls = append(calls, c...)
	}
	return calls, nil
}

// sortCalls orders calls by contig, in the order of contigs, then by position
// and allele. Contigs missing from contigs sort last, by name.
func sortCalls(calls []intronloss.Call, contigs []string) {
	rank := make(map[string]int, len(contigs))
	for i, c := range contigs {
		rank[c] = i
	}
	contigRank := func(c string) int {
		if r, ok := rank[c]; ok {
			return r
		}
		return len(contigs)
	}
	sort.SliceStable(calls, func(i, j int) bool {
		a, b := &calls[i], &calls[j]
		if ra, rb := contigRank(a.Contig), contigRank(b.Contig); ra != rb {
			return ra < rb
		}
		if a.Contig != b.Contig {
			return a.Contig < b.Contig
		}
		if a.Pos != b.Pos {
			return a.Pos < b.Pos
		}
		if a.GeneName != b.GeneName {
			return a.GeneName < b.GeneName
		}
		return a.Alt < b.Alt
	})
}
