package shmem

// Partition splits N global indexes into contiguous per-PE ranges of uniform
// capacity width = ceil(N/P). The last PE may hold fewer. Constructed
// identically on every PE from (N, P) alone, with no communication.
type Partition struct {
	N     int64
	NumPE int
	width int64
}

func NewPartition(n int64, npes int) Partition {
	p := Partition{N: n, NumPE: npes}
	if n > 0 {
		p.width = (n + int64(npes) - 1) / int64(npes)
	}
	return p
}

// Width is the uniform per-PE capacity, ceil(N/P). Symmetric arrays over this
// partition allocate Width entries on every PE.
func (p Partition) Width() int64 { return p.width }

func (p Partition) Start(rank int) int64 {
	s := int64(rank) * p.width
	if s > p.N {
		return p.N
	}
	return s
}

func (p Partition) End(rank int) int64 {
	e := p.Start(rank) + p.width
	if e > p.N {
		return p.N
	}
	return e
}

// Owner maps a global index to the PE holding it.
func (p Partition) Owner(i int64) int {
	if p.width == 0 {
		return 0
	}
	o := i / p.width
	if o > int64(p.NumPE-1) {
		o = int64(p.NumPE - 1)
	}
	return int(o)
}

// LocalPos maps a global index to its position within the owner's range.
func (p Partition) LocalPos(i int64) int64 {
	return i - int64(p.Owner(i))*p.width
}
