// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package annotation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// refGeneRecord is one row of a UCSC refGene.txt table. Coordinates are
// 0-based, half-open.
type refGeneRecord struct {
	Bin          int
	Name         string
	Chrom        string
	Strand       string
	TxStart      int
	TxEnd        int
	CdsStart     int
	CdsEnd       int
	ExonCount    int
	ExonStarts   string
	ExonEnds     string
	Score        string
	Name2        string
	CdsStartStat string
	CdsEndStat   string
	ExonFrames   string
}

// parseCoordList parses a comma-separated list of integers. A trailing comma
// is allowed.
func parseCoordList(s string) ([]int, error) {
	s = strings.TrimSuffix(s, ",")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	v := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		v[i] = n
	}
	return v, nil
}

// ReadRefGene reads a UCSC refGene table. The file may be compressed.
func ReadRefGene(ctx context.Context, path string) (genes []*Gene, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	genes, err = readRefGene(r, path)
	if err == nil {
		log.Printf("%s: read %d genes", path, len(genes))
	}
	return
}

func readRefGene(r io.Reader, path string) ([]*Gene, error) {
	scanner := tsv.NewReader(bufio.NewReaderSize(r, 64<<10))
	scanner.Comment = '#'
	var transcripts []*transcript
	for line := 1; ; line++ {
		var row refGeneRecord
		if err := scanner.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("%s:%d", path, line))
		}
		starts, err := parseCoordList(row.ExonStarts)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("%s:%d: exonStarts", path, line))
		}
		ends, err := parseCoordList(row.ExonEnds)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("%s:%d: exonEnds", path, line))
		}
		if len(starts) != row.ExonCount || len(ends) != row.ExonCount {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: %s has %d exons, but found %d starts and %d ends",
				path, line, row.Name, row.ExonCount, len(starts), len(ends)))
		}
		name := row.Name2
		if name == "" {
			name = row.Name
		}
		t := &transcript{geneName: name, id: row.Name, chrom: row.Chrom, strand: row.Strand}
		for i := range starts {
			if ends[i] <= starts[i] {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: %s has an empty exon", path, line, row.Name))
			}
			t.exons = append(t.exons, exonRange{starts[i] + 1, ends[i]})
		}
		transcripts = append(transcripts, t)
	}
	return chooseTranscripts(transcripts)
}
