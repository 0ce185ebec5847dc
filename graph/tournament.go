package graph

import (
	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

// degPair orders vertices for the merge: degree first, id breaks ties, both
// descending. The sentinel loses to every real pair.
type degPair = utils.Pair[int64, uint32]

var exhaustedRun = degPair{First: -1, Second: 0}

func pairGreater(a, b degPair) bool {
	if a.First != b.First {
		return a.First > b.First
	}
	return a.Second > b.Second
}

// tournament is an array-backed winner tree over one head pair per PE run.
// Internal nodes hold the leaf index that wins their subtree; leaves past the
// real PE count read as exhausted. heads aliases the holder's replica shard,
// so popping through the merger keeps tree and shard in step.
type tournament struct {
	k     int // leaf slots, power of two
	win   []int
	heads []degPair
}

func newTournament(heads []degPair) *tournament {
	k := int(utils.RoundUpPow(uint64(len(heads))))
	t := &tournament{k: k, win: make([]int, k), heads: heads}
	for node := k - 1; node >= 1; node-- {
		t.win[node] = t.playoff(node)
	}
	return t
}

func (t *tournament) leaf(s int) degPair {
	if s < len(t.heads) {
		return t.heads[s]
	}
	return exhaustedRun
}

// winner of the subtree under node; nodes at k and beyond are the leaves.
func (t *tournament) winnerOf(node int) int {
	if node >= t.k {
		return node - t.k
	}
	return t.win[node]
}

func (t *tournament) playoff(node int) int {
	l := t.winnerOf(2 * node)
	r := t.winnerOf(2*node + 1)
	if pairGreater(t.leaf(l), t.leaf(r)) {
		return l
	}
	return r
}

func (t *tournament) root() int {
	if t.k == 1 {
		return 0
	}
	return t.win[1]
}

// replay refights the matches on the path from leaf s to the root after the
// leaf value changed.
func (t *tournament) replay(s int) {
	for node := (t.k + s) / 2; node >= 1; node /= 2 {
		t.win[node] = t.playoff(node)
	}
}

// merger is the distributed side of the k-way merge: every PE's sorted run
// stays where it is; the current head and cursor of every run live in
// replicated symmetric cells that the leading PE reads and hands to its
// successor.
type merger struct {
	pairs   *shmem.Vector[degPair] // each PE's descending run
	heads   *shmem.Vector[degPair] // one head cell per run, replicated
	cursors *shmem.Vector[int64]
	counts  []int64 // run lengths, derived from the partition everywhere
}

func newMerger(pe *shmem.PE, part shmem.Partition, pairs *shmem.Vector[degPair]) *merger {
	npes := pe.NumPEs()
	m := allocMerger(pe, pairs, npes)
	for r := 0; r < npes; r++ {
		m.counts[r] = part.End(r) - part.Start(r)
	}
	// Seed rank 0's replica: every PE reports its first pair, or an
	// exhausted marker when it owns no vertices.
	head := exhaustedRun
	cursor := int64(0)
	if m.counts[pe.Rank()] > 0 {
		head = pairs.GetOne(pe.Rank(), 0)
		cursor = 1
	}
	m.heads.Set(0, int64(pe.Rank()), head)
	m.cursors.Set(0, int64(pe.Rank()), cursor)
	pe.Barrier()
	return m
}

func allocMerger(pe *shmem.PE, pairs *shmem.Vector[degPair], npes int) *merger {
	heads := shmem.NewVector[degPair](pe, npes)
	cursors := shmem.NewVector[int64](pe, npes)
	return &merger{pairs: pairs, heads: heads, cursors: cursors, counts: make([]int64, npes)}
}

// drain pops the next n global winners into out. Only the PE holding the
// leader token may call this; the replica it mutates travels via transfer.
func (m *merger) drain(pe *shmem.PE, out []degPair) {
	heads := m.heads.Local(pe)
	cursors := m.cursors.Local(pe)
	tree := newTournament(heads)
	for i := range out {
		s := tree.root()
		out[i] = heads[s]
		if cur := cursors[s]; cur < m.counts[s] {
			heads[s] = m.pairs.GetOne(s, cur)
			cursors[s] = cur + 1
		} else {
			heads[s] = exhaustedRun
		}
		tree.replay(s)
	}
}

// transfer hands the merge state to the next leader.
func (m *merger) transfer(pe *shmem.PE, next int) {
	m.heads.Put(next, 0, m.heads.Local(pe))
	m.cursors.Put(next, 0, m.cursors.Local(pe))
}

func (m *merger) free(pe *shmem.PE) {
	m.heads.Free(pe)
	m.cursors.Free(pe)
}
