// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
)

const (
	// MaxHistogramQual caps the phred values stored in a histogram.
	MaxHistogramQual = 60
	// DefaultMaxInsertSize is the default largest insert size tracked by a
	// HistogramBuilder. Larger sizes fall in the last bin.
	DefaultMaxInsertSize = 1000
)

// HistogramBuilder accumulates insert sizes per read group.
type HistogramBuilder struct {
	maxSize int
	counts  map[string][]int64
}

// NewHistogramBuilder creates a builder tracking insert sizes in [1, maxSize].
func NewHistogramBuilder(maxSize int) *HistogramBuilder {
	if maxSize < 1 {
		maxSize = DefaultMaxInsertSize
	}
	return &HistogramBuilder{maxSize: maxSize, counts: map[string][]int64{}}
}

// Add records one observation of the given TLEN. Zero TLENs are ignored.
func (b *HistogramBuilder) Add(readGroup string, tlen int) {
	size := absInt(tlen)
	if size == 0 {
		return
	}
	if size > b.maxSize {
		size = b.maxSize
	}
	c := b.counts[readGroup]
	if c == nil {
		c = make([]int64, b.maxSize+1)
		b.counts[readGroup] = c
	}
	c[size]++
}

// Build converts the counts into phred-scaled histograms. Each bin gets a
// pseudocount of one so that unseen sizes keep a finite quality.
func (b *HistogramBuilder) Build() Histograms {
	h := make(Histograms, len(b.counts))
	for rg, counts := range b.counts {
		var total int64
		for _, n := range counts[1:] {
			total += n
		}
		denom := float64(total) + float64(len(counts)-1)
		quals := make([]byte, len(counts))
		for i := 1; i < len(counts); i++ {
			q := math.Round(-10 * math.Log10(float64(counts[i]+1)/denom))
			if q > MaxHistogramQual {
				q = MaxHistogramQual
			}
			quals[i] = byte(q)
		}
		h[rg] = quals
	}
	return h
}

type histogramRow struct {
	ReadGroup string `tsv:"readgroup"`
	Size      int    `tsv:"size"`
	Qual      int    `tsv:"qual"`
}

// ReadHistograms reads histograms in the TSV form written by
// WriteHistograms. Rows may come in any order, and sizes with no row get
// MaxHistogramQual. Gzipped files are detected by their extension.
func ReadHistograms(ctx context.Context, path string) (h Histograms, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.E(err, "read histograms", path)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
	}
	return readHistograms(r, path)
}

func readHistograms(r io.Reader, path string) (Histograms, error) {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	h := Histograms{}
	for line := 2; ; line++ {
		var row histogramRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("%s:%d", path, line))
		}
		if row.Size < 1 || row.Qual < 0 || row.Qual > math.MaxUint8 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: invalid row %+v", path, line, row))
		}
		quals := h[row.ReadGroup]
		if quals == nil {
			quals = []byte{0}
		}
		// Sizes missing from the file are treated as never observed.
		for len(quals) <= row.Size {
			quals = append(quals, MaxHistogramQual)
		}
		quals[row.Size] = byte(row.Qual)
		h[row.ReadGroup] = quals
	}
	return h, nil
}

// WriteHistograms writes h as TSV with columns readgroup, size and qual.
// The output is gzipped if path ends in .gz.
func WriteHistograms(ctx context.Context, path string, h Histograms) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := io.Writer(out.Writer(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz := gzip.NewWriter(w)
		defer func() {
			if e := gz.Close(); e != nil && err == nil {
				err = e
			}
		}()
		w = gz
	}
	return writeHistograms(w, h)
}

func writeHistograms(w io.Writer, h Histograms) error {
	rgs := make([]string, 0, len(h))
	for rg := range h {
		rgs = append(rgs, rg)
	}
	sort.Strings(rgs)
	tw := tsv.NewWriter(w)
	tw.WriteString("readgroup")
	tw.WriteString("size")
	tw.WriteString("qual")
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, rg := range rgs {
		for size, q := range h[rg] {
			if size == 0 {
				continue
			}
			tw.WriteString(rg)
			tw.WriteInt64(int64(size))
			tw.WriteInt64(int64(q))
			if err := tw.EndLine(); err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}
