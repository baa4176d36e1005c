// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

/*
bio-intronloss genotypes intron-loss events: deletions that join two exons of
a gene and remove the introns between them. Read pairs whose ends fall in two
distinct exons are realigned against the joined exon sequence, and for each
pair of linked exons the tool reports, per sample, phred-scaled likelihoods of
0, 1 or 2 copies of the event as a VCF record.
*/

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/intronloss/intronloss/genotyper"
)

var (
	annotationPath   = flag.String("annotation", "", "Gene annotation path (GTF or UCSC refGene table, optionally compressed). Required")
	annotationFormat = flag.String("annotation-format", genotyper.DefaultOpts.AnnotationFormat, "Annotation format; 'gtf' or 'refgene'")
	histograms       = flag.String("histograms", "", "Insert-size histogram TSV (readgroup, size, qual). If empty, histograms are built from the BAM")
	histogramOut     = flag.String("histogram-out", "", "If set, write the histograms built from the BAM to this path")
	histogramPairs   = flag.Int("histogram-pairs", genotyper.DefaultOpts.HistogramPairs, "Number of proper pairs sampled to build histograms; 0 = all")
	maxInsertSize    = flag.Int("max-insert-size", genotyper.DefaultOpts.MaxInsertSize, "Largest insert size tracked by built histograms")
	outPath          = flag.String("out", genotyper.DefaultOpts.OutPath, "Output VCF path")
	region           = flag.String("region", "", "Restrict calling to genes overlapping the region. Format as <contig ID>:<1-based first pos>-<last pos>, <contig ID>:<1-based pos>, or just <contig ID>")
	mapq             = flag.Int("mapq", genotyper.DefaultOpts.Mapq, "Reads with MAPQ below this level are skipped")
	maxPairsPerGene  = flag.Int("max-pairs-per-gene", genotyper.DefaultOpts.MaxPairsPerGene, "Maximum number of read pairs evaluated per gene; 0 = unlimited")
	parallelism      = flag.Int("parallelism", 0, "Number of genes evaluated concurrently; 0 = runtime.NumCPU()")
	bgzip            = flag.Bool("bgzip", false, "Compress the output VCF with BGZF")
)

func bioIntronLossUsage() {
	fmt.Printf("Usage: %s [OPTIONS] bampath fapath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioIntronLossUsage
	shutdown := grail.Init()
	defer shutdown()

	args := flag.Args()
	if len(args) != 2 {
		log.Fatalf("Expected bampath and fapath positional arguments; please check flag syntax: '%s'", strings.Join(args, " "))
	}
	ctx := vcontext.Background()
	opts := genotyper.Opts{
		AnnotationPath:   *annotationPath,
		AnnotationFormat: *annotationFormat,
		HistogramPath:    *histograms,
		HistogramOut:     *histogramOut,
		HistogramPairs:   *histogramPairs,
		MaxInsertSize:    *maxInsertSize,
		OutPath:          *outPath,
		Region:           *region,
		Mapq:             *mapq,
		MaxPairsPerGene:  *maxPairsPerGene,
		Parallelism:      *parallelism,
		Bgzip:            *bgzip,
	}
	if err := genotyper.Run(ctx, args[0], args[1], opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
