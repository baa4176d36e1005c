// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package annotation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// GTFOpts controls ReadGTF.
type GTFOpts struct {
	// CodingOnly keeps only transcripts whose gene_type is protein_coding.
	CodingOnly bool
}

// gtfRecord stores one line of a GTF file.
type gtfRecord struct {
	Chrom    string
	Source   string
	Molecule string
	Start    int
	Stop     int
	Score    string // unused, may be "."
	Strand   string
	Frame    string
	Fields   string
}

// parseInfoFields parses the attribute column of a GTF line into key/value
// pairs.
func parseInfoFields(parsed map[string]string, info string) error {
	for k := range parsed {
		delete(parsed, k)
	}
	for _, field := range strings.Split(strings.TrimSpace(info), ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		sp := strings.IndexByte(field, ' ')
		if sp < 0 {
			return errors.E(errors.Invalid, fmt.Sprintf("malformed attribute %q", field))
		}
		parsed[field[:sp]] = strings.Trim(strings.TrimSpace(field[sp+1:]), "\"")
	}
	return nil
}

// ReadGTF reads the exons of a GTF file, e.g., a GENCODE annotation. The file
// may be compressed.
func ReadGTF(ctx context.Context, path string, opts GTFOpts) (genes []*Gene, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	genes, err = readGTF(r, path, opts)
	if err == nil {
		log.Printf("%s: read %d genes", path, len(genes))
	}
	return
}

func readGTF(r io.Reader, path string, opts GTFOpts) ([]*Gene, error) {
	scanner := tsv.NewReader(bufio.NewReaderSize(r, 64<<10))
	scanner.Comment = '#'
	scanner.LazyQuotes = true

	var (
		line        gtfRecord
		fields      = map[string]string{}
		transcripts = map[string]*transcript{}
		order       []*transcript
		nExons      int
	)
	for {
		if err := scanner.Read(&line); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, path)
		}
		if line.Molecule != "exon" {
			continue
		}
		if err := parseInfoFields(fields, line.Fields); err != nil {
			return nil, errors.E(err, path)
		}
		if opts.CodingOnly && fields["gene_type"] != "protein_coding" {
			continue
		}
		id := fields["transcript_id"]
		if id == "" {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s: exon at %s:%d without transcript_id", path, line.Chrom, line.Start))
		}
		if line.Start < 1 || line.Stop < line.Start {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s: invalid exon %s:%d-%d", path, line.Chrom, line.Start, line.Stop))
		}
		t, ok := transcripts[id]
		if !ok {
			name := fields["gene_name"]
			if name == "" {
				name = fields["gene_id"]
			}
			t = &transcript{geneName: name, id: id, chrom: line.Chrom, strand: line.Strand}
			transcripts[id] = t
			order = append(order, t)
		}
		t.exons = append(t.exons, exonRange{line.Start, line.Stop})
		nExons++
	}
	log.Debug.Printf("%s: %d exons in %d transcripts", path, nExons, len(order))
	return chooseTranscripts(order)
}
