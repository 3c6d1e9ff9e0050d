package engine

import "github.com/corvidchess/corvid/internal/board"

// Search score bounds and mate-score window, shared by the Worker pool and
// the transposition table's ply-adjusted mate-score encoding.
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128
)

// PVTable stores the principal variation as a triangular array, indexed by
// ply-from-root, so a child's PV prefix can be copied and prepended to with
// the move that produced it.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}
