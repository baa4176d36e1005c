// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fasta

import (
	"bufio"
	"bytes"
	"io"
	"sort"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// contig is one row of a .fai index. Field order follows the file's columns.
type contig struct {
	Name string
	// Len is the number of bases.
	Len int64
	// Offset is the byte offset of the first base.
	Offset int64
	// LineBases is the number of bases per line, and LineWidth the number of
	// bytes per line including the line terminator.
	LineBases int64
	LineWidth int64
}

// fileOffset returns the byte offset of the base at 0-based position pos.
func (c *contig) fileOffset(pos int64) int64 {
	return c.Offset + pos/c.LineBases*c.LineWidth + pos%c.LineBases
}

// readIndex parses a samtools .fai index. Contigs are returned in file order.
func readIndex(in io.Reader) ([]contig, error) {
	r := tsv.NewReader(in)
	// FASTQ indexes carry a sixth column.
	r.FieldsPerRecord = -1
	var contigs []contig
	for {
		var c contig
		err := r.Read(&c)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "FASTA index line %d", len(contigs)+1)
		}
		if c.Len > 0 && (c.LineBases <= 0 || c.LineWidth < c.LineBases) {
			return nil, errors.Errorf("FASTA index: %s: bad line geometry %d/%d", c.Name, c.LineBases, c.LineWidth)
		}
		contigs = append(contigs, c)
	}
	sort.SliceStable(contigs, func(i, j int) bool { return contigs[i].Offset < contigs[j].Offset })
	return contigs, nil
}

// seqName extracts the sequence name from a header line without the leading
// '>': the text up to the first whitespace.
func seqName(header []byte) string {
	fields := strings.Fields(string(header))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// buildIndex scans a FASTA file and computes what samtools faidx would write
// for it. Line geometry is taken from the first line of each sequence.
func buildIndex(in io.Reader) ([]contig, error) {
	var (
		r       = bufio.NewReader(in)
		contigs []contig
		cur     *contig
		off     int64
	)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "index FASTA")
		}
		n := int64(len(line))
		bases := bytes.TrimRight(line, "\r\n")
		switch {
		case len(bases) == 0:
		case bases[0] == '>':
			name := seqName(bases[1:])
			if name == "" {
				return nil, errors.Errorf("unnamed sequence at offset %d", off)
			}
			contigs = append(contigs, contig{Name: name, Offset: off + n})
			cur = &contigs[len(contigs)-1]
		case cur == nil:
			return nil, errors.Errorf("bases before the first sequence header at offset %d", off)
		default:
			if cur.LineWidth == 0 {
				cur.LineBases, cur.LineWidth = int64(len(bases)), n
			}
			cur.Len += int64(len(bases))
		}
		off += n
		if err == io.EOF {
			break
		}
	}
	if len(contigs) == 0 {
		return nil, errors.New("empty FASTA file")
	}
	return contigs, nil
}
