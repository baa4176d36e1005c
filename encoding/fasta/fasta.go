// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package fasta provides random access to the bases of a FASTA file through
// a samtools .fai index (http://www.htslib.org/doc/faidx.html). Sequences may
// be wrapped over any number of lines, as long as all lines of a sequence but
// the last have the same length:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8 A viral sequence
// ACGT
//
// The sequence name is the text after '>' up to the first whitespace, so the
// second sequence above is "chr8".
package fasta

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Reference serves 1-based, closed-interval lookups of reference bases.
// Bases are returned upper-cased. It is safe for concurrent use.
type Reference struct {
	contigs map[string]*contig
	names   []string
	files   []file.File

	mu  sync.Mutex
	r   io.ReadSeeker
	buf []byte
}

// New creates a Reference over the FASTA data in r. index holds the .fai
// contents; if it is nil, r is scanned once to build the index.
func New(r io.ReadSeeker, index io.Reader) (*Reference, error) {
	var (
		contigs []contig
		err     error
	)
	if index != nil {
		contigs, err = readIndex(index)
	} else {
		if contigs, err = buildIndex(r); err == nil {
			_, err = r.Seek(0, io.SeekStart)
		}
	}
	if err != nil {
		return nil, errors.E(errors.Invalid, err)
	}
	ref := &Reference{r: r, contigs: make(map[string]*contig, len(contigs))}
	for i := range contigs {
		c := &contigs[i]
		if _, ok := ref.contigs[c.Name]; ok {
			return nil, errors.E(errors.Invalid, "duplicate sequence", c.Name)
		}
		ref.contigs[c.Name] = c
		ref.names = append(ref.names, c.Name)
	}
	return ref, nil
}

// Open opens the FASTA file at path. If path.fai exists it is used as the
// index; otherwise the file is indexed in memory.
func Open(ctx context.Context, path string) (*Reference, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	files := []file.File{in}
	var index io.Reader
	if idx, err := file.Open(ctx, path+".fai"); err == nil {
		files = append(files, idx)
		index = idx.Reader(ctx)
	} else {
		log.Debug.Printf("%s.fai: %v; indexing %s", path, err, path)
	}
	ref, err := New(in.Reader(ctx), index)
	if err != nil {
		for _, f := range files {
			f.Close(ctx) // nolint: errcheck
		}
		return nil, errors.E(err, path)
	}
	ref.files = files
	return ref, nil
}

// Contigs returns the sequence names in file order.
func (r *Reference) Contigs() []string {
	return r.names
}

// Len returns the length of contig.
func (r *Reference) Len(contig string) (int, error) {
	c, ok := r.contigs[contig]
	if !ok {
		return 0, errors.E(errors.NotExist, "sequence", contig)
	}
	return int(c.Len), nil
}

// Subsequence returns the bases of contig in [start, stop], 1-based.
func (r *Reference) Subsequence(contig string, start, stop int) ([]byte, error) {
	c, ok := r.contigs[contig]
	if !ok {
		return nil, errors.E(errors.NotExist, "sequence", contig)
	}
	if start < 1 || stop < start || int64(stop) > c.Len {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d-%d out of range (length %d)", contig, start, stop, c.Len))
	}
	begin := c.fileOffset(int64(start - 1))
	end := c.fileOffset(int64(stop-1)) + 1

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.r.Seek(begin, io.SeekStart); err != nil {
		return nil, errors.E(err, "seek", contig)
	}
	n := int(end - begin)
	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	r.buf = r.buf[:n]
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return nil, errors.E(err, fmt.Sprintf("read %s:%d-%d", contig, start, stop))
	}
	want := stop - start + 1
	seq := make([]byte, 0, want)
	for _, b := range r.buf {
		switch {
		case b == '\n' || b == '\r':
		case 'a' <= b && b <= 'z':
			seq = append(seq, b-('a'-'A'))
		default:
			seq = append(seq, b)
		}
	}
	if len(seq) != want {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d-%d: index does not match the sequence data", contig, start, stop))
	}
	return seq, nil
}

// Close releases the files opened by Open.
func (r *Reference) Close(ctx context.Context) error {
	var err error
	for _, f := range r.files {
		if e := f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}
	r.files = nil
	return err
}
