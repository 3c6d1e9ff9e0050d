package engine

import (
	"github.com/corvidchess/corvid/internal/board"
)

// CorrectionHistory adjusts static evaluation based on search results.
// When the search discovers the static eval was wrong, we record the error
// and apply corrections to similar positions in the future. Indexed by
// (color, pawn_hash) per the data model: pawn structure, not the full
// position, is what generalizes across transpositions.
// Based on Stockfish's correction history.
type CorrectionHistory struct {
	positionCorr [2][65536]int16
}

// NewCorrectionHistory creates a new correction history table.
func NewCorrectionHistory() *CorrectionHistory {
	return &CorrectionHistory{}
}

// Get returns the correction value for a position.
// The correction should be added to the static evaluation.
func (ch *CorrectionHistory) Get(pos *board.Position) int {
	idx := pos.PawnKey & 0xFFFF
	return int(ch.positionCorr[pos.SideToMove][idx])
}

// correctionMaxBonus caps one update's contribution; the saturating
// formula then bounds the stored value itself.
const correctionMaxBonus = 4096

// Update records a correction based on the difference between the static
// evaluation and the search result. The bonus is the eval error scaled by
// depth (deeper searches are more reliable), clamped to ±4096, and applied
// with the same saturating rule every history table uses, so the entry
// asymptotes toward ±historyDivisor instead of overflowing.
func (ch *CorrectionHistory) Update(pos *board.Position, searchScore, staticEval, depth int) {
	// Only update if we have meaningful data
	if depth < 1 {
		return
	}

	bonus := (searchScore - staticEval) * depth / 8
	if bonus > correctionMaxBonus {
		bonus = correctionMaxBonus
	} else if bonus < -correctionMaxBonus {
		bonus = -correctionMaxBonus
	}

	idx := pos.PawnKey & 0xFFFF
	c := pos.SideToMove
	ch.positionCorr[c][idx] = int16(applyHistoryUpdate(int(ch.positionCorr[c][idx]), bonus))
}

// Clear resets all correction values.
func (ch *CorrectionHistory) Clear() {
	for c := range ch.positionCorr {
		for i := range ch.positionCorr[c] {
			ch.positionCorr[c][i] = 0
		}
	}
}

// Age halves every correction value.
func (ch *CorrectionHistory) Age() {
	for c := range ch.positionCorr {
		for i := range ch.positionCorr[c] {
			ch.positionCorr[c][i] /= 2
		}
	}
}

// Snapshot serializes the table for persistence across process restarts.
func (ch *CorrectionHistory) Snapshot() []byte {
	buf := make([]byte, 0, 2*65536*2)
	for c := range ch.positionCorr {
		for _, v := range ch.positionCorr[c] {
			buf = append(buf, byte(v), byte(v>>8))
		}
	}
	return buf
}

// Restore loads a snapshot produced by Snapshot. Mismatched lengths are ignored.
func (ch *CorrectionHistory) Restore(data []byte) {
	if len(data) != 2*65536*2 {
		return
	}
	i := 0
	for c := range ch.positionCorr {
		for j := range ch.positionCorr[c] {
			ch.positionCorr[c][j] = int16(uint16(data[i]) | uint16(data[i+1])<<8)
			i += 2
		}
	}
}
