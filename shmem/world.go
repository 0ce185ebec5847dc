// Package shmem provides the symmetric-memory runtime: a fixed group of PEs
// (goroutines) running the same kernel over per-PE shards, with one-sided
// puts/gets, remote atomics, and collective barriers/reductions between them.
package shmem

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rs/zerolog/log"

	"github.com/lockstep-graph/lockstep/utils"
)

// Per-PE symmetric heap budget in bytes, e.g. "512M", "4G". Empty or 0 means no cap.
const SYMMETRIC_SIZE_ENV = "LOCKSTEP_SYMMETRIC_SIZE"

type World struct {
	npes     int
	done     chan struct{}
	resume   chan struct{}
	scratch  []int64 // reduction row, one slot per PE, guarded by barrier discipline
	slotMu   sync.Mutex
	slots    map[int]any // collective allocation slots, keyed by per-PE sequence
	heapUsed int64       // live symmetric bytes per PE (usage is identical on every PE)
	heapCap  int64
	abortCh  chan struct{}
	failOnce sync.Once
	cause    error
}

// A PE is one member of the group: the handle a kernel uses for its rank,
// collectives, and symmetric allocations.
type PE struct {
	world    *World
	rank     int
	allocSeq int
}

func (pe *PE) Rank() int   { return pe.rank }
func (pe *PE) NumPEs() int { return pe.world.npes }

func newWorld(npes int) *World {
	return &World{
		npes:    npes,
		done:    make(chan struct{}, npes),
		resume:  make(chan struct{}, npes),
		scratch: make([]int64, npes),
		slots:   make(map[int]any),
		heapCap: symmetricSizeFromEnv(),
		abortCh: make(chan struct{}),
	}
}

func symmetricSizeFromEnv() int64 {
	s := os.Getenv(SYMMETRIC_SIZE_ENV)
	if s == "" {
		return 0
	}
	mult := int64(1)
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'G', 'g':
		mult = 1 << 30
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		log.Panic().Msg("Bad " + SYMMETRIC_SIZE_ENV + ": " + utils.V(s))
	}
	return n * mult
}

// Run launches npes copies of the kernel, one goroutine per PE, and waits for
// them all. A panic on any PE releases the others from their collectives and
// surfaces as the returned error; the job has no partial-failure mode.
func Run(npes int, kernel func(*PE) error) error {
	if npes <= 0 {
		log.Panic().Msg("Run needs at least one PE, given: " + utils.V(npes))
	}
	w := newWorld(npes)
	g := new(errgroup.Group)
	for r := 0; r < npes; r++ {
		pe := &PE{world: w, rank: r}
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("PE %d: %v", pe.rank, rec)
					w.fail(err)
				}
			}()
			return kernel(pe)
		})
	}
	err := g.Wait()
	if w.cause != nil {
		return w.cause
	}
	return err
}

// fail records the first cause and releases every blocked collective.
func (w *World) fail(err error) {
	w.failOnce.Do(func() {
		w.cause = err
		close(w.abortCh)
	})
}

func (w *World) aborted() bool {
	select {
	case <-w.abortCh:
		return true
	default:
		return false
	}
}

func (w *World) send(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	case <-w.abortCh:
		panic("job aborted")
	}
}

func (w *World) await(ch chan struct{}) {
	select {
	case <-ch:
	case <-w.abortCh:
		panic("job aborted")
	}
}

// Barrier blocks until every PE arrives. Rank 0 collects and releases.
func (pe *PE) Barrier() {
	w := pe.world
	if w.npes == 1 {
		return
	}
	if pe.rank == 0 {
		for i := 1; i < w.npes; i++ {
			w.await(w.done)
		}
		for i := 1; i < w.npes; i++ {
			w.send(w.resume)
		}
	} else {
		w.send(w.done)
		w.await(w.resume)
	}
}

// collectiveGet runs the same allocation sequence on every PE: rank 0 builds
// the object into the next slot, everyone else picks up the shared handle.
// Every PE must reach every collective call in the same order.
func collectiveGet[T any](pe *PE, build func() T) T {
	w := pe.world
	seq := pe.allocSeq
	pe.allocSeq++
	pe.Barrier()
	if pe.rank == 0 {
		v := build()
		w.slotMu.Lock()
		w.slots[seq] = v
		w.slotMu.Unlock()
	}
	pe.Barrier()
	w.slotMu.Lock()
	v := w.slots[seq].(T)
	w.slotMu.Unlock()
	return v
}

// reserve enforces the symmetric heap budget. Deterministic: every PE computes
// the same verdict, so a failed allocation aborts the whole job at the same
// collective point on all PEs.
func (w *World) reserve(pe *PE, bytes int64) {
	if w.heapCap > 0 && atomic.LoadInt64(&w.heapUsed)+bytes > w.heapCap {
		log.Panic().Msg("PE " + utils.V(pe.rank) + " symmetric allocation of " + utils.V(bytes) +
			" bytes exceeds " + SYMMETRIC_SIZE_ENV + "=" + utils.V(w.heapCap) +
			" (" + utils.V(atomic.LoadInt64(&w.heapUsed)) + " in use)")
	}
}

func (w *World) release(bytes int64) {
	atomic.AddInt64(&w.heapUsed, -bytes)
}

// HeapUsed reports the live symmetric bytes per PE.
func (pe *PE) HeapUsed() int64 {
	return atomic.LoadInt64(&pe.world.heapUsed)
}
