// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"math"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocOverlapsAndDistance(t *testing.T) {
	a := NewLoc("chr1", 100, 200)
	tests := []struct {
		b        Loc
		overlaps bool
		dist     int
	}{
		{NewLoc("chr1", 200, 300), true, 0},
		{NewLoc("chr1", 150, 160), true, 0},
		{NewLoc("chr1", 201, 300), false, 1},
		{NewLoc("chr1", 1200, 1300), false, 1000},
		{NewLoc("chr1", 10, 99), false, 1},
		{NewLoc("chr1", 10, 50), false, 50},
		{NewLoc("chr2", 100, 200), false, math.MaxInt32},
	}
	for _, test := range tests {
		assert.Equal(t, test.overlaps, a.Overlaps(test.b), "%v %v", a, test.b)
		assert.Equal(t, test.overlaps, test.b.Overlaps(a), "%v %v", test.b, a)
		assert.Equal(t, test.dist, a.MinDistance(test.b), "%v %v", a, test.b)
		assert.Equal(t, test.dist, test.b.MinDistance(a), "%v %v", test.b, a)
		assert.True(t, a.MinDistance(test.b) >= 0)
	}
}

func TestLocString(t *testing.T) {
	l := NewLoc("chr3", 10, 20)
	assert.Equal(t, "chr3:10-20", l.String())
	assert.Equal(t, "chr3:20", l.StopLoc().String())
	assert.Equal(t, 11, l.Len())
	assert.Panics(t, func() { NewLoc("chr3", 0, 1) })
	assert.Panics(t, func() { NewLoc("chr3", 5, 4) })
}

func TestParseRegion(t *testing.T) {
	l, err := ParseRegion("chr1:1,000-2,000")
	require.NoError(t, err)
	assert.Equal(t, Loc{"chr1", 1000, 2000}, l)

	l, err = ParseRegion("chrX:15")
	require.NoError(t, err)
	assert.Equal(t, Loc{"chrX", 15, 15}, l)

	l, err = ParseRegion("chrM")
	require.NoError(t, err)
	assert.Equal(t, Loc{"chrM", 1, math.MaxInt32}, l)

	for _, bad := range []string{"", ":1-2", "chr1:0", "chr1:5-4", "chr1:a-b", "chr1:1-"} {
		_, err := ParseRegion(bad)
		assert.True(t, errors.Is(errors.Invalid, err), "%q: %v", bad, err)
	}
}
