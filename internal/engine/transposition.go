package engine

import (
	"sync/atomic"

	"github.com/corvidchess/corvid/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
// ttFlagNone doubles as the empty-slot sentinel, so a zeroed cluster reads
// as vacant; quiescence entries legitimately store depth 0 and must not be
// mistaken for empty slots by a depth check.
type TTFlag uint8

const (
	ttFlagNone   TTFlag = iota // Empty slot
	TTExact                    // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

// TTEntry is the table's public view of a stored search result, decoded
// from the packed ttEntry the cluster actually holds.
type TTEntry struct {
	Key              uint32     // Verification prefix the probe matched on
	BestMove         board.Move // Best move found
	Score            int16      // Search score (bounded by flag)
	StaticEval       int16      // Raw static eval at the time of storage
	Depth            int8       // Search depth
	Flag             TTFlag     // Type of bound
	Age              uint8      // Generation for replacement
	IsPV             bool       // Found on a principal-variation node
	NumPiecesAtEntry uint8      // Total piece count on the board when stored
}

// ttEntry is the table's in-memory representation: 14 bytes of fields the
// compiler pads to 16, so two entries tile a 32-byte cluster exactly.
// key32 is a hash prefix rather than the full hash: the probe contract is a
// fast, approximately-correct lookup validated by this prefix, not a
// collision-free one. A wider prefix would push the entry past 16 bytes and
// halve the cluster's capacity, so 32 bits is the widest verification that
// still keeps two entries per cache line.
type ttEntry struct {
	key32      uint32
	move       board.Move
	score      int16
	staticEval int16
	depth      int8
	flag       TTFlag
	age        uint8
	meta       uint8 // bit 7: IsPV, bits 0-6: piece count at store time (capped at 127)
}

func (e *ttEntry) isPV() bool     { return e.meta&0x80 != 0 }
func (e *ttEntry) numPieces() int { return int(e.meta & 0x7f) }

func (e *ttEntry) setMeta(isPV bool, numPieces int) {
	if numPieces > 0x7f {
		numPieces = 0x7f
	}
	m := uint8(numPieces)
	if isPV {
		m |= 0x80
	}
	e.meta = m
}

// clusterSize is the number of entries probed and compared together on
// every lookup/store.
const clusterSize = 2

// ttCluster is one 32-byte slot of the table, so a probe touches a single
// cache line regardless of which of its entries matches.
type ttCluster struct {
	entries [clusterSize]ttEntry
}

// TranspositionTable is a hash table of position-indexed clusters shared
// read/write across the Lazy-SMP worker pool without locking. A concurrent
// reader may observe a cluster mid-write and must treat it as a miss rather
// than trust it, which Probe enforces by requiring the hash prefix of
// whatever bytes it read to match before returning a hit.
type TranspositionTable struct {
	entries       []ttCluster
	size          uint64 // number of clusters
	mask          uint64
	age           uint8
	rootNumPieces uint8 // piece count at the root of the current search

	hits   atomic.Uint64
	probes atomic.Uint64
}

// NewTranspositionTable creates a transposition table with the given size in MB.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	numClusters := (uint64(sizeMB) * 1024 * 1024) / 32
	numClusters = roundDownToPowerOf2(numClusters)
	if numClusters == 0 {
		numClusters = 1
	}

	return &TranspositionTable{
		entries: make([]ttCluster, numClusters),
		size:    numClusters,
		mask:    numClusters - 1,
	}
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// keyPrefix derives a cluster index and verification prefix from
// non-overlapping bit ranges of hash, so a probe's index selection and
// its hash-prefix check are independent signals.
func (tt *TranspositionTable) keyPrefix(hash uint64) (clusterIdx uint64, key32 uint32) {
	return hash & tt.mask, uint32(hash >> 32)
}

// Probe looks up a position in the transposition table, scanning every
// entry of the position's cluster for one whose key32 matches. Each
// entry is read as a single value copy before its fields are inspected;
// under concurrent writes the copy can be torn, but a torn copy's key32
// almost never happens to match, so the check below is what keeps a torn
// read from being reported as a hit.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	tt.probes.Add(1)

	clusterIdx, key32 := tt.keyPrefix(hash)
	cluster := &tt.entries[clusterIdx]

	for i := range cluster.entries {
		e := cluster.entries[i]
		if e.flag == ttFlagNone || e.key32 != key32 {
			continue
		}
		tt.hits.Add(1)
		return TTEntry{
			Key:              e.key32,
			BestMove:         e.move,
			Score:            e.score,
			StaticEval:       e.staticEval,
			Depth:            e.depth,
			Flag:             e.flag,
			Age:              e.age,
			IsPV:             e.isPV(),
			NumPiecesAtEntry: uint8(e.numPieces()),
		}, true
	}

	return TTEntry{}, false
}

// SetRootPieceCount records the piece count at the root of the search about
// to run, used by Store's "safely replaceable" exception: a stale entry
// recorded when the board held more pieces than the current root can never
// be reached again this game (piece count only ever falls), so it is always
// a safe eviction target regardless of its depth or age.
func (tt *TranspositionTable) SetRootPieceCount(n int) {
	tt.rootNumPieces = uint8(n)
}

// replacementWorth scores how much an occupied entry is worth keeping:
// lower means more replaceable. An empty slot or one that has fallen out
// of reach this game (its piece count exceeds the current root's) sorts
// below every real entry so it is always chosen first.
func (e *ttEntry) replacementWorth(currentAge uint8, rootNumPieces int) int {
	if e.flag == ttFlagNone {
		return -1 << 30
	}
	if e.numPieces() > rootNumPieces {
		return -1 << 30
	}
	relativeAge := int(currentAge - e.age) // wraps; both sides are uint8
	return int(e.depth) - 8*relativeAge
}

// Store saves a position in the cluster its hash maps to.
//
// A slot already holding this exact position (by key32) or a still-empty
// slot is always taken. Otherwise the cluster's single worst-scoring
// entry by replacementWorth is the only candidate, and even that one is
// left alone unless the new entry is at least as deep, is a PV result
// displacing a non-PV one at the same depth, or the candidate is stale
// (an older search generation or unreachable given the current root's
// piece count) — mirroring the flat table's original replacement rule,
// just scoped to the cluster's weakest member instead of its one slot.
func (tt *TranspositionTable) Store(hash uint64, depth int, score int, flag TTFlag, bestMove board.Move, isPV bool, staticEval int, numPieces int) {
	// Tablebase results are stored at an effectively infinite depth;
	// clamp to the widest value the packed entry can carry.
	if depth > 127 {
		depth = 127
	}

	clusterIdx, key32 := tt.keyPrefix(hash)
	cluster := &tt.entries[clusterIdx]

	slot := -1
	for i := range cluster.entries {
		if cluster.entries[i].flag == ttFlagNone || cluster.entries[i].key32 == key32 {
			slot = i
			break
		}
	}

	if slot < 0 {
		slot = 0
		worst := cluster.entries[0].replacementWorth(tt.age, int(tt.rootNumPieces))
		for i := 1; i < clusterSize; i++ {
			if w := cluster.entries[i].replacementWorth(tt.age, int(tt.rootNumPieces)); w < worst {
				slot, worst = i, w
			}
		}

		candidate := &cluster.entries[slot]
		stale := candidate.age != tt.age || candidate.numPieces() > int(tt.rootNumPieces)
		pvUpgrade := isPV && !candidate.isPV() && depth >= int(candidate.depth)
		deepEnough := depth >= int(candidate.depth)
		if !stale && !pvUpgrade && !deepEnough {
			return
		}
	}

	e := &cluster.entries[slot]
	e.key32 = key32
	e.move = bestMove
	e.score = int16(score)
	e.staticEval = int16(staticEval)
	e.depth = int8(depth)
	e.flag = flag
	e.age = tt.age
	e.setMeta(isPV, numPieces)
}

// NewSearch increments the age counter for a new search.
// This helps with replacement decisions.
func (tt *TranspositionTable) NewSearch() {
	tt.age++
}

// Clear clears the transposition table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.entries {
		tt.entries[i] = ttCluster{}
	}
	tt.age = 0
	tt.hits.Store(0)
	tt.probes.Store(0)
}

// Prefetch touches the cluster hash maps to so its cache line is likely
// resident by the time the search probes it; called as soon as a child
// position's hash is known. Best effort only — Go has no portable prefetch
// intrinsic, so a plain read of the cluster stands in for one.
func (tt *TranspositionTable) Prefetch(hash uint64) {
	clusterIdx := hash & tt.mask
	_ = tt.entries[clusterIdx].entries[0].key32
}

// HashFull returns the permille (parts per thousand) of the table that is used.
func (tt *TranspositionTable) HashFull() int {
	sampleSize := 1000
	if uint64(sampleSize) > tt.size {
		sampleSize = int(tt.size)
	}

	used := 0
	for i := 0; i < sampleSize; i++ {
		for _, e := range tt.entries[i].entries {
			if e.flag != ttFlagNone && e.age == tt.age {
				used++
				break
			}
		}
	}

	return (used * 1000) / sampleSize
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	probes := tt.probes.Load()
	if probes == 0 {
		return 0
	}
	return float64(tt.hits.Load()) / float64(probes) * 100
}

// Size returns the number of clusters in the table.
func (tt *TranspositionTable) Size() uint64 {
	return tt.size
}

// countPieces returns the total number of pieces on the board, used both
// to tag stored entries and to track the search root's piece count for
// Store's safely-replaceable exception.
func countPieces(pos *board.Position) int {
	return pos.AllOccupied.PopCount()
}

// AdjustScore adjusts a score from/to the transposition table.
// Mate scores need to be adjusted based on ply distance.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT adjusts a score for storage in the transposition table.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
