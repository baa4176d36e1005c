// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package intronloss

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// OpKind is the kind of an alignment operation. The set of kinds is closed:
// any CIGAR operator that does not map to one of these is rejected when a Read
// is constructed.
type OpKind uint8

const (
	// OpMatch is an aligned base, either a match or a mismatch (M, = or X).
	OpMatch OpKind = iota
	// OpInsertion is a base present in the read but not in the reference (I).
	OpInsertion
	// OpDeletion is a base present in the reference but not in the read (D).
	OpDeletion
	// OpSoftClip is an unaligned base kept in the read sequence (S).
	OpSoftClip
	// OpHardClip is an unaligned base removed from the read sequence (H).
	OpHardClip
	nOpKind
)

var opKindChars = [...]byte{'M', 'I', 'D', 'S', 'H'}

// Valid checks if k is one of the supported kinds.
func (k OpKind) Valid() bool { return k < nOpKind }

func (k OpKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("OpKind(%d)", k)
	}
	return string(opKindChars[k])
}

// Op is one run of an alignment.
type Op struct {
	Kind OpKind
	Len  int
}

func (o Op) String() string { return fmt.Sprintf("%d%v", o.Len, o.Kind) }

// FormatOps renders ops in the CIGAR text format, e.g., "5S20M1I4M".
func FormatOps(ops []Op) string {
	buf := make([]byte, 0, len(ops)*4)
	for _, op := range ops {
		buf = append(buf, op.String()...)
	}
	return string(buf)
}

// opKindFromCigar maps a SAM CIGAR operator onto the closed set of kinds.
func opKindFromCigar(t sam.CigarOpType) (OpKind, error) {
	switch t {
	case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
		return OpMatch, nil
	case sam.CigarInsertion:
		return OpInsertion, nil
	case sam.CigarDeletion:
		return OpDeletion, nil
	case sam.CigarSoftClipped:
		return OpSoftClip, nil
	case sam.CigarHardClipped:
		return OpHardClip, nil
	}
	return 0, errors.E(errors.Invalid, fmt.Sprintf("unsupported CIGAR operator: %v", t))
}

// PairKey identifies a read pair. Two records with the same read group and
// query name belong to the same pair.
type PairKey struct {
	ReadGroup string
	Name      string
}

func (k PairKey) String() string { return k.ReadGroup + "/" + k.Name }

// ReadKey identifies one end of a read pair.
type ReadKey struct {
	PairKey
	First bool
}

// Read is one aligned end of a read pair, with the fields needed for scoring.
type Read struct {
	Name string
	// Loc is the span of the alignment, extended by soft clips at either end.
	Loc Loc
	Ops []Op
	// EditDistance is the value of the NM tag.
	EditDistance int
	// Bases is the read sequence in upper-case ASCII.
	Bases     []byte
	ReadGroup string
	Sample    string
	// InsertSize is the signed SAM TLEN.
	InsertSize int
	// First is true for R1.
	First bool
}

// Key returns the identity of r.
func (r *Read) Key() ReadKey {
	return ReadKey{PairKey: PairKey{ReadGroup: r.ReadGroup, Name: r.Name}, First: r.First}
}

var (
	nmTag = sam.NewTag("NM")
	rgTag = sam.NewTag("RG")
)

// auxInt extracts an integer-valued aux field.
func auxInt(rec *sam.Record, tag sam.Tag) (int, bool) {
	aux := rec.AuxFields.Get(tag)
	if aux == nil {
		return 0, false
	}
	switch v := aux.Value().(type) {
	case int8:
		return int(v), true
	case uint8:
		return int(v), true
	case int16:
		return int(v), true
	case uint16:
		return int(v), true
	case int32:
		return int(v), true
	case uint32:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func readGroupOf(rec *sam.Record) string {
	aux := rec.AuxFields.Get(rgTag)
	if aux == nil {
		return ""
	}
	if s, ok := aux.Value().(string); ok {
		return s
	}
	return ""
}

// NewRead converts a SAM record into a Read. samples maps read-group IDs to
// sample names. It returns nil, nil for an unmapped record or one whose SEQ is
// "*", since such an end cannot be realigned and is treated as absent.
//
// NewRead fails if the record carries a CIGAR operator outside of
// {M,=,X,I,D,S,H}, or if it lacks an NM tag.
func NewRead(rec *sam.Record, samples map[string]string) (*Read, error) {
	if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil || len(rec.Cigar) == 0 || rec.Seq.Length == 0 {
		return nil, nil
	}
	r := &Read{
		Name:       rec.Name,
		ReadGroup:  readGroupOf(rec),
		InsertSize: rec.TempLen,
		First:      rec.Flags&sam.Read1 != 0,
		Ops:        make([]Op, len(rec.Cigar)),
	}
	r.Sample = samples[r.ReadGroup]
	for i, co := range rec.Cigar {
		kind, err := opKindFromCigar(co.Type())
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("read %s", rec.Name))
		}
		r.Ops[i] = Op{Kind: kind, Len: co.Len()}
	}
	nm, ok := auxInt(rec, nmTag)
	if !ok {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("read %s: missing NM tag", rec.Name))
	}
	r.EditDistance = nm
	r.Bases = upperBases(rec.Seq.Expand())

	span, _ := rec.Cigar.Lengths()
	start := rec.Pos + 1 - leadingSoftClip(r.Ops)
	stop := rec.Pos + span + trailingSoftClip(r.Ops)
	if stop < start {
		stop = start
	}
	if start < 1 {
		start = 1
		if stop < start {
			stop = start
		}
	}
	r.Loc = Loc{Contig: rec.Ref.Name(), Start: start, Stop: stop}
	return r, nil
}

// leadingSoftClip returns the length of the soft clip at the start of the
// alignment, skipping hard clips.
func leadingSoftClip(ops []Op) int {
	n := 0
	for _, op := range ops {
		switch op.Kind {
		case OpHardClip:
			continue
		case OpSoftClip:
			n += op.Len
			continue
		}
		break
	}
	return n
}

func trailingSoftClip(ops []Op) int {
	n := 0
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if op.Kind == OpHardClip {
			continue
		}
		if op.Kind != OpSoftClip {
			break
		}
		n += op.Len
	}
	return n
}

func upperBases(seq []byte) []byte {
	for i, b := range seq {
		if 'a' <= b && b <= 'z' {
			seq[i] = b - ('a' - 'A')
		}
	}
	return seq
}

// ReadPair is the two ends of a sequenced fragment. Either end may be nil when
// it is absent or unmapped.
type ReadPair struct {
	R1 *Read
	R2 *Read
}

// first returns the first present read.
func (p *ReadPair) first() *Read {
	if p.R1 != nil {
		return p.R1
	}
	return p.R2
}

// Key returns the identity of the pair. Pairs are deduplicated by this key.
//
// REQUIRES: at least one end is present.
func (p *ReadPair) Key() PairKey { return p.first().Key().PairKey }

// Sample returns the sample the pair was sequenced from.
//
// REQUIRES: at least one end is present.
func (p *ReadPair) Sample() string { return p.first().Sample }

// Reads returns the present ends of the pair, R1 first.
func (p *ReadPair) Reads() []*Read {
	reads := make([]*Read, 0, 2)
	if p.R1 != nil {
		reads = append(reads, p.R1)
	}
	if p.R2 != nil {
		reads = append(reads, p.R2)
	}
	return reads
}

// Locs returns the locations of R1 and R2, nil for an absent end.
func (p *ReadPair) Locs() (*Loc, *Loc) {
	var l1, l2 *Loc
	if p.R1 != nil {
		l1 = &p.R1.Loc
	}
	if p.R2 != nil {
		l2 = &p.R2.Loc
	}
	return l1, l2
}
