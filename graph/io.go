package graph

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/spaolacci/murmur3"

	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

const MAX_FIELDS_PER_LINE = 8
const LOAD_QUEUE_SIZE = 4096 * 8

// Serialized graph header: magic, version, flags, writer PE count, N, stored
// edge count, then a murmur3 checksum over all of the above.
const SG_MAGIC = "LSGR"
const SG_VERSION = uint16(1)

const (
	SG_FLAG_DIRECTED = uint16(1 << iota)
	SG_FLAG_WEIGHTED
)

// Make loads or reads whatever the options point at and hands back a built
// graph. Serialized files bypass the builder entirely.
func Make[D EP[D], PD EPP[D]](pe *shmem.PE, opts Options, needWeights bool) *CSR[D] {
	if opts.File == "" {
		edges := Uniform[D, PD](pe, opts.Scale, opts.AvgDegree)
		if needWeights {
			InsertWeights[D, PD](pe, edges)
		}
		b := Builder[D]{Symmetrize: opts.Symmetrize, FlushEvery: opts.FlushEvery}
		return b.Build(pe, edges)
	}
	switch {
	case strings.HasSuffix(opts.File, ".sg") || strings.HasSuffix(opts.File, ".wsg"):
		return ReadSerialized[D](pe, opts.File)
	case strings.HasSuffix(opts.File, ".el") || strings.HasSuffix(opts.File, ".wel"):
		edges := LoadEdges[D, PD](pe, opts.File)
		if needWeights && !strings.HasSuffix(opts.File, ".wel") {
			InsertWeights[D, PD](pe, edges)
		}
		b := Builder[D]{Symmetrize: opts.Symmetrize, FlushEvery: opts.FlushEvery}
		return b.Build(pe, edges)
	}
	log.Panic().Msg("Unknown graph file suffix: " + opts.File)
	return nil
}

/* ------------------ Edge list loading ------------------ */

// LoadEdges reads this PE's round-robin share of a (.el / .wel) edge list.
// A parser goroutine owns the file and feeds a ring buffer; the PE drains it.
func LoadEdges[D EP[D], PD EPP[D]](pe *shmem.PE, path string) []Edge[D] {
	wPos := -1
	if strings.HasSuffix(path, ".wel") {
		wPos = 2
	}
	watch := utils.Watch{}
	watch.Start()
	queue := &utils.RingBuffSPSC[Edge[D]]{}
	queue.Init(LOAD_QUEUE_SIZE)
	go parseEdgeLines[D, PD](path, uint64(pe.Rank()), uint64(pe.NumPEs()), wPos, queue)

	edges := make([]Edge[D], 0, 4096)
	for {
		e, ok, pos := queue.GetFast()
		if !ok {
			var closed bool
			if e, closed, _ = queue.GetSlow(pos); closed {
				break
			}
		}
		edges = append(edges, e)
	}
	queue.End()
	log.Debug().Msg("PE " + utils.V(pe.Rank()) + " read " + utils.V(len(edges)) +
		" edges in (ms) " + utils.V(watch.Elapsed().Milliseconds()))
	return edges
}

func parseEdgeLines[D EP[D], PD EPP[D]](path string, rank uint64, npes uint64, wPos int, queue *utils.RingBuffSPSC[Edge[D]]) {
	file := utils.OpenFile(path)
	fieldsBuff := [MAX_FIELDS_PER_LINE]string{}
	fields := fieldsBuff[:]
	scanner := utils.FastFileLines{}
	scannerBuff := [4096 * 16]byte{}
	scanner.Buf = scannerBuff[:]
	var b []byte

	for lines := uint64(0); ; lines++ {
		if i := bytes.IndexByte(scanner.Buf[scanner.Start:scanner.End], '\n'); i >= 0 {
			b = scanner.Buf[scanner.Start : scanner.Start+i]
			scanner.Start += i + 1
		} else {
			if b = scanner.Scan(file); b == nil {
				break
			}
		}
		if len(b) == 0 || b[0] == '#' {
			lines-- // To match the count of actual edges.
			continue
		}
		if (lines % npes) == rank {
			nf := utils.FastFields(fields, b)
			w := int32(DEFAULT_WEIGHT)
			if wPos >= 0 && wPos < nf {
				w = int32(utils.ToIntStr(fields[wPos]))
			}
			var d D
			PD(&d).Replace(utils.ToIntStr(fields[1]), w)
			e := Edge[D]{Src: utils.ToIntStr(fields[0]), Dst: d}
			if pos, ok := queue.PutFast(e); !ok {
				queue.PutSlow(e, pos)
			}
		}
	}
	queue.Close()
	file.Close()
}

/* ------------------ Serialized graphs ------------------ */

type sgHeader struct {
	Version uint16
	Flags   uint16
	NPEs    uint32
	N       int64
	Edges   int64
}

func (h sgHeader) encode() []byte {
	buf := bytes.Buffer{}
	buf.WriteString(SG_MAGIC)
	binary.Write(&buf, binary.LittleEndian, h)
	sum := murmur3.Sum64(buf.Bytes())
	binary.Write(&buf, binary.LittleEndian, sum)
	return buf.Bytes()
}

func readSGHeader(r io.Reader, path string) sgHeader {
	magic := make([]byte, len(SG_MAGIC))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != SG_MAGIC {
		log.Panic().Msg("Not a serialized graph: " + path)
	}
	h := sgHeader{}
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		log.Panic().Msg("Truncated header: " + path)
	}
	var sum uint64
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		log.Panic().Msg("Truncated header: " + path)
	}
	if want := h.checksum(); sum != want {
		log.Panic().Msg("Header checksum mismatch in " + path + ": " +
			utils.V(sum) + " vs " + utils.V(want))
	}
	if h.Version != SG_VERSION {
		log.Panic().Msg("Unsupported serialized graph version " + utils.V(h.Version))
	}
	return h
}

func (h sgHeader) checksum() uint64 {
	buf := bytes.Buffer{}
	buf.WriteString(SG_MAGIC)
	binary.Write(&buf, binary.LittleEndian, h)
	return murmur3.Sum64(buf.Bytes())
}

// WriteSerialized dumps the graph PE by PE in rank order under the leader
// token: rank 0 truncates and writes the header, every rank appends its own
// shard blocks.
func WriteSerialized[D EP[D]](pe *shmem.PE, g *CSR[D], path string) {
	var zero D
	tok := shmem.NewToken(pe)
	tok.Wait(pe)
	if pe.Rank() == 0 {
		file := utils.CreateFile(path)
		flags := uint16(0)
		if g.Directed {
			flags |= SG_FLAG_DIRECTED
		}
		if binary.Size(zero) > 4 {
			flags |= SG_FLAG_WEIGHTED
		}
		h := sgHeader{Version: SG_VERSION, Flags: flags, NPEs: uint32(pe.NumPEs()), N: g.N, Edges: g.EdgesDirected}
		if _, err := file.Write(h.encode()); err != nil {
			log.Panic().Err(err).Msg("Write failed: " + path)
		}
		file.Close()
	}
	file := utils.AppendFile(path)
	w := bufio.NewWriter(file)
	writeShard(w, g.index.Local(pe), g.neigh.Local(pe))
	if g.Directed {
		writeShard(w, g.inIndex.Local(pe), g.inNeigh.Local(pe))
	}
	if err := w.Flush(); err != nil {
		log.Panic().Err(err).Msg("Write failed: " + path)
	}
	file.Close()
	if pe.Rank()+1 < pe.NumPEs() {
		tok.Pass(pe, pe.Rank()+1)
	}
	pe.Barrier()
}

func writeShard[D EP[D]](w io.Writer, index []int64, neigh []D) {
	stored := index[len(index)-1]
	binary.Write(w, binary.LittleEndian, int64(len(index)))
	binary.Write(w, binary.LittleEndian, stored)
	binary.Write(w, binary.LittleEndian, index)
	binary.Write(w, binary.LittleEndian, neigh[:stored])
}

// ReadSerialized loads a serialized graph straight into symmetric storage.
// The PE count must match the writer's; repartitioning a serialized file is
// not supported.
func ReadSerialized[D EP[D]](pe *shmem.PE, path string) *CSR[D] {
	var zero D
	entrySize := int64(binary.Size(zero))
	file := utils.OpenFile(path)
	defer file.Close()
	h := readSGHeader(file, path)
	if int(h.NPEs) != pe.NumPEs() {
		log.Panic().Msg("Serialized graph was written by " + utils.V(h.NPEs) +
			" PEs, running with " + utils.V(pe.NumPEs()))
	}
	weighted := h.Flags&SG_FLAG_WEIGHTED != 0
	if weighted != (entrySize > 4) {
		log.Panic().Msg("Weight mismatch: " + path + " stores weighted=" + utils.V(weighted))
	}
	g := &CSR[D]{
		Directed:      h.Flags&SG_FLAG_DIRECTED != 0,
		N:             h.N,
		EdgesDirected: h.Edges,
		Part:          shmem.NewPartition(h.N, pe.NumPEs()),
	}

	// Blocks are variable length, so skip ahead to this PE's.
	r := bufio.NewReader(file)
	directions := 1
	if g.Directed {
		directions = 2
	}
	for skip := 0; skip < pe.Rank()*directions; skip++ {
		skipShard(r, entrySize, path)
	}
	g.index, g.neigh = readShard[D](pe, r, path)
	if g.Directed {
		g.inIndex, g.inNeigh = readShard[D](pe, r, path)
	}
	pe.Barrier()
	if pe.Rank() == 0 {
		log.Info().Msg("Read: |V| " + utils.V(g.N) + " |E| " + utils.V(g.NumEdges()) + " from " + path)
	}
	return g
}

func skipShard(r *bufio.Reader, entrySize int64, path string) {
	var indexLen, stored int64
	if err := binary.Read(r, binary.LittleEndian, &indexLen); err != nil {
		log.Panic().Err(err).Msg("Truncated shard block: " + path)
	}
	if err := binary.Read(r, binary.LittleEndian, &stored); err != nil {
		log.Panic().Err(err).Msg("Truncated shard block: " + path)
	}
	if _, err := r.Discard(int(indexLen*8 + stored*entrySize)); err != nil {
		log.Panic().Err(err).Msg("Truncated shard block: " + path)
	}
}

func readShard[D EP[D]](pe *shmem.PE, r *bufio.Reader, path string) (*shmem.Vector[int64], *shmem.Vector[D]) {
	var indexLen, stored int64
	if err := binary.Read(r, binary.LittleEndian, &indexLen); err != nil {
		log.Panic().Err(err).Msg("Truncated shard block: " + path)
	}
	if err := binary.Read(r, binary.LittleEndian, &stored); err != nil {
		log.Panic().Err(err).Msg("Truncated shard block: " + path)
	}
	index := shmem.NewVector[int64](pe, int(indexLen))
	neigh := shmem.NewVectorMax[D](pe, int(stored))
	if err := binary.Read(r, binary.LittleEndian, index.Local(pe)); err != nil {
		log.Panic().Err(err).Msg("Truncated shard block: " + path)
	}
	if err := binary.Read(r, binary.LittleEndian, neigh.Local(pe)[:stored]); err != nil {
		log.Panic().Err(err).Msg("Truncated shard block: " + path)
	}
	pe.Barrier()
	return index, neigh
}
