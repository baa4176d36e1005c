// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pairbin

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/intronloss/intronloss"
	"v.io/x/lib/vlog"
)

const progressInterval = 1 << 22

// ReadBAM streams the BAM file at path through a new Binner over features.
// parallelism sets the number of BGZF decompression goroutines.
func ReadBAM(ctx context.Context, path string, features []intronloss.Feature, opts Opts, parallelism int) (res *Result, samples []string, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r, err := bam.NewReader(in.Reader(ctx), parallelism)
	if err != nil {
		return nil, nil, errors.E(err, "open bam", path)
	}
	defer func() {
		if e := r.Close(); e != nil && err == nil {
			err = e
		}
	}()
	b := NewBinner(features, HeaderSamples(r.Header()), opts)
	n, err := binRecords(r, b)
	if err != nil {
		return nil, nil, errors.E(err, path)
	}
	res = b.Finish()
	log.Printf("%s: read %d records, %d unpaired", path, n, res.Unpaired)
	return res, b.Samples(), nil
}

type recordReader interface {
	Read() (*sam.Record, error)
}

func binRecords(r recordReader, b *Binner) (int, error) {
	n := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := b.Add(rec); err != nil {
			return n, err
		}
		n++
		if n%progressInterval == 0 {
			vlog.VI(1).Infof("binned %d records, %d awaiting mates", n, b.mates.approxSize())
		}
	}
}
