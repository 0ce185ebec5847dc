package shmem

import (
	"math/rand"
	"testing"
)

func checkPartition(t *testing.T, n int64, npes int) {
	p := NewPartition(n, npes)
	if p.Start(0) != 0 {
		t.Error("start of rank 0 is ", p.Start(0))
	}
	if p.End(npes-1) != n {
		t.Error("end of last rank is ", p.End(npes-1), " expected ", n)
	}
	for r := 1; r < npes; r++ {
		if p.Start(r) != p.End(r-1) {
			t.Error("gap between ranks ", r-1, " and ", r, ": ", p.End(r-1), " vs ", p.Start(r))
		}
	}
	for i := int64(0); i < n; i++ {
		r := p.Owner(i)
		if r < 0 || r >= npes {
			t.Fatal("owner of ", i, " is ", r)
		}
		if i < p.Start(r) || i >= p.End(r) {
			t.Error("element ", i, " not inside its owner range [", p.Start(r), ",", p.End(r), ")")
		}
		if p.Start(r)+p.LocalPos(i) != i {
			t.Error("local position of ", i, " does not round trip")
		}
	}
}

func TestPartitionCoversAll(t *testing.T) {
	for tcount := 0; tcount < 100; tcount++ {
		n := int64(rand.Intn(1000))
		npes := rand.Intn(8-1) + 1
		checkPartition(t, n, npes)
	}
}

func TestPartitionFewerElementsThanPEs(t *testing.T) {
	checkPartition(t, 3, 8)
	p := NewPartition(3, 8)
	for r := 3; r < 8; r++ {
		if p.Start(r) != p.End(r) {
			t.Error("rank ", r, " should be empty, has [", p.Start(r), ",", p.End(r), ")")
		}
	}
}

func TestPartitionEmpty(t *testing.T) {
	p := NewPartition(0, 4)
	if p.Width() != 0 {
		t.Error("width of empty partition is ", p.Width())
	}
	for r := 0; r < 4; r++ {
		if p.Start(r) != 0 || p.End(r) != 0 {
			t.Error("rank ", r, " of empty partition has [", p.Start(r), ",", p.End(r), ")")
		}
	}
}

func TestPartitionLastRankRemainder(t *testing.T) {
	// 10 over 4 gives width 3, so the last rank holds just one element.
	p := NewPartition(10, 4)
	if p.Width() != 3 {
		t.Error("width is ", p.Width(), " expected 3")
	}
	if p.Start(3) != 9 || p.End(3) != 10 {
		t.Error("last rank holds [", p.Start(3), ",", p.End(3), ")")
	}
	if p.Owner(9) != 3 {
		t.Error("owner of 9 is ", p.Owner(9))
	}
}
