// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// Loc is a genomic interval. Start and Stop are 1-based and both ends are
// closed. Loc is a value type; it is never modified after creation.
type Loc struct {
	Contig string
	Start  int
	Stop   int
}

// NewLoc creates a Loc.
//
// REQUIRES: 1 <= start <= stop.
func NewLoc(contig string, start, stop int) Loc {
	if start < 1 || stop < start {
		panic(fmt.Sprintf("invalid loc %s:%d-%d", contig, start, stop))
	}
	return Loc{Contig: contig, Start: start, Stop: stop}
}

// Len returns the number of bases covered by the interval.
func (l Loc) Len() int { return l.Stop - l.Start + 1 }

// Overlaps checks if l and o share at least one base.
func (l Loc) Overlaps(o Loc) bool {
	return l.Contig == o.Contig && l.Start <= o.Stop && o.Start <= l.Stop
}

// MinDistance computes the number of bases separating the closest ends of l
// and o. It returns 0 if they overlap, and math.MaxInt32 if they are on
// different contigs.
func (l Loc) MinDistance(o Loc) int {
	if l.Contig != o.Contig {
		return math.MaxInt32
	}
	if l.Overlaps(o) {
		return 0
	}
	if l.Stop < o.Start {
		return o.Start - l.Stop
	}
	return l.Start - o.Stop
}

// StopLoc returns the single-base location at l.Stop.
func (l Loc) StopLoc() Loc { return NewLoc(l.Contig, l.Stop, l.Stop) }

// String renders the location as "contig:start-stop", or "contig:pos" for a
// single base.
func (l Loc) String() string {
	if l.Start == l.Stop {
		return fmt.Sprintf("%s:%d", l.Contig, l.Start)
	}
	return fmt.Sprintf("%s:%d-%d", l.Contig, l.Start, l.Stop)
}

// ParseRegion parses a region string of one of the forms
//   [contig]:[1-based first pos]-[last pos]
//   [contig]:[1-based pos]
//   [contig]
// A bare contig covers positions [1, math.MaxInt32].
func ParseRegion(region string) (Loc, error) {
	if len(region) == 0 {
		return Loc{}, errors.E(errors.Invalid, "ParseRegion: empty region string")
	}
	colonPos := strings.IndexByte(region, ':')
	if colonPos == -1 {
		return Loc{Contig: region, Start: 1, Stop: math.MaxInt32}, nil
	}
	if colonPos == 0 {
		return Loc{}, errors.E(errors.Invalid, "ParseRegion: empty contig in", region)
	}
	contig := region[:colonPos]
	rangeStr := strings.Replace(region[colonPos+1:], ",", "", -1)
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		pos, err := strconv.Atoi(rangeStr)
		if err != nil {
			return Loc{}, errors.E(errors.Invalid, err, "ParseRegion:", region)
		}
		if pos <= 0 {
			return Loc{}, errors.E(errors.Invalid, fmt.Sprintf("ParseRegion: position %v out of range", rangeStr))
		}
		return Loc{Contig: contig, Start: pos, Stop: pos}, nil
	}
	start, err := strconv.Atoi(rangeStr[:dashPos])
	if err != nil {
		return Loc{}, errors.E(errors.Invalid, err, "ParseRegion:", region)
	}
	stop, err := strconv.Atoi(rangeStr[dashPos+1:])
	if err != nil {
		return Loc{}, errors.E(errors.Invalid, err, "ParseRegion:", region)
	}
	if start <= 0 || stop < start {
		return Loc{}, errors.E(errors.Invalid, fmt.Sprintf("ParseRegion: invalid range %v", rangeStr))
	}
	return Loc{Contig: contig, Start: start, Stop: stop}, nil
}
