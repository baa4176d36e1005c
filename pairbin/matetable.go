// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pairbin

import (
	"sync"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/intronloss/intronloss"
)

const numMateShards = 256

type mateShard struct {
	mu    sync.Mutex
	mates map[intronloss.PairKey]*intronloss.Read
}

// mateTable is a sharded, thread-safe map holding reads whose mate has not
// been seen yet.
type mateTable struct {
	shards [numMateShards]mateShard
}

func newMateTable() *mateTable {
	m := &mateTable{}
	for i := range m.shards {
		m.shards[i].mates = make(map[intronloss.PairKey]*intronloss.Read)
	}
	return m
}

func (m *mateTable) shard(k intronloss.PairKey) *mateShard {
	h := seahash.Sum64(unsafe.StringToBytes(k.Name))
	return &m.shards[int(h%uint64(numMateShards))]
}

// lookupAndDelete returns the mate of r if it was added earlier, removing it
// from the table. Otherwise it stores r and returns nil.
func (m *mateTable) lookupAndDelete(r *intronloss.Read) *intronloss.Read {
	k := r.Key().PairKey
	shard := m.shard(k)
	shard.mu.Lock()
	mate, ok := shard.mates[k]
	if ok {
		delete(shard.mates, k)
	} else {
		shard.mates[k] = r
		mate = nil
	}
	shard.mu.Unlock()
	return mate
}

// drain removes and returns every read left in the table.
func (m *mateTable) drain() []*intronloss.Read {
	var reads []*intronloss.Read
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, r := range s.mates {
			reads = append(reads, r)
			delete(s.mates, k)
		}
		s.mu.Unlock()
	}
	return reads
}

// approxSize returns the approximate number of entries in the table. It is
// exact iff no other thread is accessing the table.
func (m *mateTable) approxSize() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.mates)
		s.mu.Unlock()
	}
	return n
}
