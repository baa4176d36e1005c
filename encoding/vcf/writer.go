// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package vcf writes intron-loss calls in VCF format. Each call is a
// symbolic <:EXa-EXb:> allele placed at the last base of its gene; genotypes
// are left uncalled and only the PL values are reported.
package vcf

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/intronloss/intronloss"
)

// Opts controls Create.
type Opts struct {
	// Bgzip compresses the output with BGZF.
	Bgzip bool
	// Parallelism is the number of BGZF compression goroutines.
	Parallelism int
	// Source is written in the ##source header line.
	Source string
}

var headerLines = []string{
	"##fileformat=VCFv4.1",
	`##INFO=<ID=SR,Number=1,Type=Integer,Description="Number of read pairs supporting the intron loss">`,
	`##INFO=<ID=GN,Number=1,Type=String,Description="Gene name">`,
	`##INFO=<ID=EL,Number=1,Type=String,Description="Location of the last base of the exon preceding the lost intron">`,
	`##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`,
	`##FORMAT=<ID=PL,Number=G,Type=Integer,Description="Normalized, phred-scaled genotype likelihoods">`,
}

// Writer writes calls for a fixed list of samples.
type Writer struct {
	samples []string
	w       *tsv.Writer
	out     file.File
	bgzf    *bgzf.Writer
	buf     []byte
}

// NewWriter creates a Writer that emits uncompressed VCF to out.
func NewWriter(out io.Writer, samples []string, source string) (*Writer, error) {
	w := &Writer{samples: samples, w: tsv.NewWriter(out)}
	if err := w.writeHeader(source); err != nil {
		return nil, err
	}
	return w, nil
}

// Create creates a VCF file at path. The caller must Close the Writer.
func Create(ctx context.Context, path string, samples []string, opts Opts) (*Writer, error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	var (
		dst = io.Writer(out.Writer(ctx))
		bz  *bgzf.Writer
	)
	if opts.Bgzip {
		bz = bgzf.NewWriter(dst, opts.Parallelism)
		dst = bz
	}
	w, err := NewWriter(dst, samples, opts.Source)
	if err != nil {
		if bz != nil {
			bz.Close() // nolint: errcheck
		}
		out.Close(ctx) // nolint: errcheck
		return nil, err
	}
	w.out, w.bgzf = out, bz
	return w, nil
}

func (w *Writer) writeHeader(source string) error {
	for _, line := range headerLines {
		w.w.WriteString(line)
		if err := w.w.EndLine(); err != nil {
			return err
		}
	}
	if source != "" {
		w.w.WriteString("##source=" + source)
		if err := w.w.EndLine(); err != nil {
			return err
		}
	}
	for _, col := range []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO", "FORMAT"} {
		w.w.WriteString(col)
	}
	for _, s := range w.samples {
		w.w.WriteString(s)
	}
	return w.w.EndLine()
}

// Write writes one call.
func (w *Writer) Write(c *intronloss.Call) error {
	w.w.WriteString(c.Contig)
	w.w.WriteInt64(int64(c.Pos))
	w.w.WriteString(".")
	ref := c.Ref
	if ref == 0 {
		ref = 'N'
	}
	w.w.WriteString(string(ref))
	w.w.WriteString(c.Alt)
	w.w.WriteString(".")
	w.w.WriteString(".")
	w.w.WriteString(fmt.Sprintf("SR=%d;GN=%s;EL=%s", c.SupportingReads, c.GeneName, c.ExonLoc))
	w.w.WriteString("GT:PL")
	for _, s := range w.samples {
		w.w.WriteString(w.formatSample(c, s))
	}
	return w.w.EndLine()
}

func (w *Writer) formatSample(c *intronloss.Call, sample string) string {
	pl := c.PL(sample)
	if pl == nil {
		return "./."
	}
	w.buf = append(w.buf[:0], "./.:"...)
	for i, v := range pl {
		if i > 0 {
			w.buf = append(w.buf, ',')
		}
		w.buf = strconv.AppendInt(w.buf, int64(v), 10)
	}
	return string(w.buf)
}

// Close flushes the output. It closes the file when the Writer was made by
// Create.
func (w *Writer) Close(ctx context.Context) error {
	err := w.w.Flush()
	if w.bgzf != nil {
		if e := w.bgzf.Close(); e != nil && err == nil {
			err = e
		}
	}
	if w.out != nil {
		if e := w.out.Close(ctx); e != nil && err == nil {
			err = e
		}
	}
	return err
}
