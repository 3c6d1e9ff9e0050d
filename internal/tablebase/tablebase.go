package tablebase

import (
	"github.com/corvidchess/corvid/internal/board"
)

// WDL represents Win/Draw/Loss result.
type WDL int

const (
	WDLLoss        WDL = -2
	WDLBlessedLoss WDL = -1 // Loss in theory, but the 50-move rule may rescue it
	WDLDraw        WDL = 0
	WDLCursedWin   WDL = 1 // Win in theory, but the 50-move rule may let it slip
	WDLWin         WDL = 2
)

// ProbeResult contains the result of a tablebase probe.
type ProbeResult struct {
	Found bool
	WDL   WDL
	DTZ   int // Distance to zeroing move (pawn move or capture)
}

// RootResult contains the best move from tablebase at root position.
type RootResult struct {
	Found bool
	Move  board.Move
	WDL   WDL
	DTZ   int
}

// Prober is the interface for tablebase probing.
type Prober interface {
	// Probe looks up a position in the tablebase.
	// Returns win/draw/loss information if the position is in the tablebase.
	Probe(pos *board.Position) ProbeResult

	// ProbeRoot finds the best move from the tablebase at the root position.
	// This is more expensive as it needs to evaluate all legal moves.
	ProbeRoot(pos *board.Position) RootResult

	// MaxPieces returns the maximum number of pieces supported.
	MaxPieces() int

	// Available returns true if tablebases are loaded and available.
	Available() bool
}

// tbMateScore anchors the tablebase win/loss scale; search ply is subtracted
// so that closer wins/losses carry a higher magnitude than distant ones. The
// whole scale sits below the proven-mate range (and well inside the search's
// score bounds), so a tablebase win outranks any positional score but never
// masquerades as a mate the search actually found.
const tbMateScore = 28000

// cursedMargin separates a cursed/blessed result from its unqualified
// counterpart, reflecting that the 50-move rule might flip the outcome.
const cursedMargin = 100

// WDLToScore converts a WDL result to a search score, positive meaning
// winning for the side to move and negative meaning losing.
func WDLToScore(wdl WDL, ply int) int {
	switch wdl {
	case WDLWin:
		return tbMateScore - ply
	case WDLCursedWin:
		return tbMateScore - cursedMargin - ply
	case WDLBlessedLoss:
		return -tbMateScore + cursedMargin + ply
	case WDLLoss:
		return -tbMateScore + ply
	default:
		return 0
	}
}

// NoopProber is a prober that always returns "not found".
// Use this as a placeholder when tablebases are not available.
type NoopProber struct{}

func (NoopProber) Probe(pos *board.Position) ProbeResult {
	return ProbeResult{Found: false}
}

func (NoopProber) ProbeRoot(pos *board.Position) RootResult {
	return RootResult{Found: false}
}

func (NoopProber) MaxPieces() int {
	return 0
}

func (NoopProber) Available() bool {
	return false
}

// CountPieces returns the total number of pieces on the board.
func CountPieces(pos *board.Position) int {
	return pos.AllOccupied.PopCount()
}
