// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package vcf

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/intronloss/intronloss"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testCalls() []intronloss.Call {
	return []intronloss.Call{
		{
			Contig:          "chr1",
			Pos:             2400,
			Ref:             'G',
			Alt:             "<:EX0-EX1:>",
			SupportingReads: 2,
			GeneName:        "GENE1",
			ExonLoc:         intronloss.NewLoc("chr1", 1100, 1100),
			Likelihoods: intronloss.Likelihoods{
				"s1": &intronloss.Genotype{-25, -0.6, 0},
			},
		},
		{
			Contig:          "chr2",
			Pos:             700,
			Alt:             "<:EX1-EX3:>",
			SupportingReads: 1,
			GeneName:        "GENE2",
			ExonLoc:         intronloss.NewLoc("chr2", 200, 200),
			Likelihoods: intronloss.Likelihoods{
				"s1": &intronloss.Genotype{-1, -1, -1},
				"s2": &intronloss.Genotype{-3.5, -2, -2.25},
			},
		},
	}
}

const wantVCF = `##fileformat=VCFv4.1
##INFO=<ID=SR,Number=1,Type=Integer,Description="Number of read pairs supporting the intron loss">
##INFO=<ID=GN,Number=1,Type=String,Description="Gene name">
##INFO=<ID=EL,Number=1,Type=String,Description="Location of the last base of the exon preceding the lost intron">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=PL,Number=G,Type=Integer,Description="Normalized, phred-scaled genotype likelihoods">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	s1	s2
chr1	2400	.	G	<:EX0-EX1:>	.	.	SR=2;GN=GENE1;EL=chr1:1100	GT:PL	./.:250,6,0	./.
chr2	700	.	N	<:EX1-EX3:>	.	.	SR=1;GN=GENE2;EL=chr2:200	GT:PL	./.:0,0,0	./.:15,0,3
`

func TestWriter(t *testing.T) {
	ctx := vcontext.Background()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, []string{"s1", "s2"}, "")
	assert.NoError(t, err)
	calls := testCalls()
	for i := range calls {
		assert.NoError(t, w.Write(&calls[i]))
	}
	assert.NoError(t, w.Close(ctx))
	expect.EQ(t, buf.String(), wantVCF)
}

func TestCreate(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	calls := testCalls()

	for _, bgzip := range []bool{false, true} {
		path := filepath.Join(dir, "out.vcf")
		if bgzip {
			path += ".gz"
		}
		w, err := Create(ctx, path, []string{"s1", "s2"}, Opts{Bgzip: bgzip, Parallelism: 1, Source: "test"})
		assert.NoError(t, err)
		for i := range calls {
			assert.NoError(t, w.Write(&calls[i]))
		}
		assert.NoError(t, w.Close(ctx))

		data, err := ioutil.ReadFile(path)
		assert.NoError(t, err)
		if bgzip {
			r, err := bgzf.NewReader(bytes.NewReader(data), 1)
			assert.NoError(t, err)
			data, err = ioutil.ReadAll(r)
			assert.NoError(t, err)
		}
		want := strings.Replace(wantVCF, "#CHROM", "##source=test\n#CHROM", 1)
		expect.EQ(t, string(data), want, "bgzip=%v", bgzip)
	}
}
