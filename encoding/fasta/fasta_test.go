// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fasta

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const (
	fastaData  = ">seq1\nACGTA\nCGTAC\nGT\n>seq2 A viral sequence\nacgt\nACGT\n"
	fastaIndex = "seq1\t12\t6\t5\t6\nseq2\t8\t44\t4\t5\n"
)

func TestBuildIndex(t *testing.T) {
	tests := []struct {
		fa   string
		want []contig
	}{
		{
			">E0\nGGTGAAATC\nCCTGAAATC\nAAAATTGCT\n>E1\nGTCCCTCCCCAGACATGGCCCTGGGAGGC\n>E2\nCCGCGCCCGCGCCCCCGCCGCC\n",
			[]contig{{"E0", 27, 4, 9, 10}, {"E1", 29, 38, 29, 30}, {"E2", 22, 72, 22, 23}},
		},
		// CRLF line endings.
		{">E0\r\nGGGG\r\n>E1\r\nAAAAA\r\n", []contig{{"E0", 4, 5, 4, 6}, {"E1", 5, 16, 5, 7}}},
		// No newline at the end.
		{">E0\nGGGG\n>E1\nCCCCC\nAAAAA", []contig{{"E0", 4, 4, 4, 5}, {"E1", 10, 13, 5, 6}}},
		{">E0 description\nACG\n", []contig{{"E0", 3, 16, 3, 4}}},
	}
	for _, tt := range tests {
		got, err := buildIndex(strings.NewReader(tt.fa))
		assert.NoError(t, err)
		expect.EQ(t, got, tt.want, tt.fa)
	}

	idx, err := buildIndex(strings.NewReader(fastaData))
	assert.NoError(t, err)
	fromFile, err := readIndex(strings.NewReader(fastaIndex))
	assert.NoError(t, err)
	expect.EQ(t, idx, fromFile)

	_, err = buildIndex(strings.NewReader(""))
	expect.Regexp(t, err, "empty FASTA")
	_, err = buildIndex(strings.NewReader("ACGT\n>E0\nACGT\n"))
	expect.Regexp(t, err, "before the first sequence header")
	_, err = buildIndex(strings.NewReader(">\nACGT\n"))
	expect.Regexp(t, err, "unnamed sequence")
}

func TestReadIndex(t *testing.T) {
	// Sorted by offset; extra columns are ignored.
	got, err := readIndex(strings.NewReader("b\t4\t20\t4\t5\t10\na\t8\t4\t4\t5\t2\n"))
	assert.NoError(t, err)
	expect.EQ(t, got, []contig{{"a", 8, 4, 4, 5}, {"b", 4, 20, 4, 5}})

	_, err = readIndex(strings.NewReader("a\t8\t4\t0\t5\n"))
	expect.Regexp(t, err, "bad line geometry")
	_, err = readIndex(strings.NewReader("a\t8\tx\t4\t5\n"))
	expect.NotNil(t, err)
}

func TestSubsequence(t *testing.T) {
	indexed, err := New(strings.NewReader(fastaData), strings.NewReader(fastaIndex))
	assert.NoError(t, err)
	scanned, err := New(strings.NewReader(fastaData), nil)
	assert.NoError(t, err)

	tests := []struct {
		contig      string
		start, stop int
		want        string
		kind        errors.Kind
	}{
		{"seq1", 1, 3, "ACG", errors.Other},
		{"seq1", 2, 2, "C", errors.Other},
		{"seq1", 1, 12, "ACGTACGTACGT", errors.Other},
		{"seq1", 4, 8, "TACGT", errors.Other},
		{"seq1", 12, 12, "T", errors.Other},
		{"seq2", 1, 8, "ACGTACGT", errors.Other},
		{"seq2", 2, 5, "CGTA", errors.Other},
		{"seq1", 0, 3, "", errors.Invalid},
		{"seq1", 5, 13, "", errors.Invalid},
		{"seq1", 5, 4, "", errors.Invalid},
		{"chrX", 1, 2, "", errors.NotExist},
	}
	for name, ref := range map[string]*Reference{"indexed": indexed, "scanned": scanned} {
		expect.EQ(t, ref.Contigs(), []string{"seq1", "seq2"}, name)
		n, err := ref.Len("seq1")
		assert.NoError(t, err)
		expect.EQ(t, n, 12, name)
		n, err = ref.Len("seq2")
		assert.NoError(t, err)
		expect.EQ(t, n, 8, name)
		_, err = ref.Len("seq0")
		expect.True(t, errors.Is(errors.NotExist, err), name)

		for _, tt := range tests {
			got, err := ref.Subsequence(tt.contig, tt.start, tt.stop)
			if tt.kind != errors.Other {
				expect.True(t, errors.Is(tt.kind, err), "%s: %s:%d-%d: %v", name, tt.contig, tt.start, tt.stop, err)
				continue
			}
			assert.NoError(t, err)
			expect.EQ(t, string(got), tt.want, "%s: %s:%d-%d", name, tt.contig, tt.start, tt.stop)
		}
	}
}

func TestSubsequenceCRLF(t *testing.T) {
	ref, err := New(strings.NewReader(">E0\r\nACGT\r\nTTGG\r\n>E1\r\naaaaa\r\n"), nil)
	assert.NoError(t, err)
	got, err := ref.Subsequence("E0", 3, 6)
	assert.NoError(t, err)
	expect.EQ(t, string(got), "GTTT")
	got, err = ref.Subsequence("E1", 1, 5)
	assert.NoError(t, err)
	expect.EQ(t, string(got), "AAAAA")
}

func TestSubsequenceStaleIndex(t *testing.T) {
	ref, err := New(strings.NewReader(fastaData), strings.NewReader("seq1\t12\t6\t6\t7\n"))
	assert.NoError(t, err)
	_, err = ref.Subsequence("seq1", 1, 12)
	expect.True(t, errors.Is(errors.Invalid, err), "%v", err)

	_, err = New(strings.NewReader(fastaData), strings.NewReader("seq1\t12\t6\t5\t6\nseq1\t8\t44\t4\t5\n"))
	expect.True(t, errors.Is(errors.Invalid, err), "%v", err)
}

func TestOpen(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	// Without an index, one is built on the fly.
	path := filepath.Join(dir, "ref.fa")
	assert.NoError(t, ioutil.WriteFile(path, []byte(fastaData), 0644))
	ref, err := Open(ctx, path)
	assert.NoError(t, err)
	got, err := ref.Subsequence("seq1", 4, 8)
	assert.NoError(t, err)
	expect.EQ(t, string(got), "TACGT")
	expect.EQ(t, ref.Contigs(), []string{"seq1", "seq2"})
	assert.NoError(t, ref.Close(ctx))

	// With an index.
	assert.NoError(t, ioutil.WriteFile(path+".fai", []byte(fastaIndex), 0644))
	ref, err = Open(ctx, path)
	assert.NoError(t, err)
	got, err = ref.Subsequence("seq2", 1, 8)
	assert.NoError(t, err)
	expect.EQ(t, string(got), "ACGTACGT")
	assert.NoError(t, ref.Close(ctx))

	_, err = Open(ctx, filepath.Join(dir, "missing.fa"))
	expect.NotNil(t, err)

	empty := filepath.Join(dir, "empty.fa")
	assert.NoError(t, ioutil.WriteFile(empty, nil, 0644))
	_, err = Open(ctx, empty)
	expect.True(t, errors.Is(errors.Invalid, err), "%v", err)
}
