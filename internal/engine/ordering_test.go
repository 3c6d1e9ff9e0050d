package engine

import (
	"testing"

	"github.com/corvidchess/corvid/internal/board"
)

// findScore returns the ordering score assigned to m, or fails the test.
func findScore(t *testing.T, moves *board.MoveList, scores []int, m board.Move) int {
	t.Helper()
	for i := 0; i < moves.Len(); i++ {
		if moves.Get(i) == m {
			return scores[i]
		}
	}
	t.Fatalf("move %v not in generated list", m)
	return 0
}

// TestQuietScoresIncludeContinuationHistory checks that a quiet move whose
// (piece, to) cell carries a continuation-history bonus outranks an
// otherwise identical quiet, with contributions summed across all three
// passed-in tables.
func TestQuietScoresIncludeContinuationHistory(t *testing.T) {
	pos := board.NewPosition()
	mo := NewMoveOrderer()
	moves := pos.GenerateLegalMoves()

	favored, err := board.ParseMove("g1f3", pos)
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	other, err := board.ParseMove("b1c3", pos)
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}

	knight := pos.PieceAt(favored.From())

	var oneBack, threeBack PieceToHistory
	oneBack[knight][favored.To()] = 500
	threeBack[knight][favored.To()] = 250
	contHist := [3]*PieceToHistory{&oneBack, nil, &threeBack}

	base := mo.ScoreMovesWithCounter(pos, moves, 0, board.NoMove, board.NoMove, [3]*PieceToHistory{})
	boosted := mo.ScoreMovesWithCounter(pos, moves, 0, board.NoMove, board.NoMove, contHist)

	baseFavored := findScore(t, moves, base, favored)
	boostedFavored := findScore(t, moves, boosted, favored)
	if boostedFavored-baseFavored != 750 {
		t.Errorf("continuation bonus = %d, want the summed 750", boostedFavored-baseFavored)
	}

	// The unrelated quiet must be untouched by the tables.
	if findScore(t, moves, boosted, other) != findScore(t, moves, base, other) {
		t.Error("continuation history leaked onto a move with no table entry")
	}
}

// TestContinuationHistoryRoundTrip drives the orderer's own update path and
// checks the written bonus comes back out through quiet-move scoring.
func TestContinuationHistoryRoundTrip(t *testing.T) {
	pos := board.NewPosition()
	mo := NewMoveOrderer()

	prevPiece := board.NewPiece(board.Knight, board.Black)
	prevTo := board.F6

	quiet, err := board.ParseMove("d2d4", pos)
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	piece := pos.PieceAt(quiet.From())

	mo.UpdateContinuationHistory(prevPiece, prevTo, piece, quiet.To(), 8, 1, true)

	table := mo.GetContinuationHistoryTable(prevPiece, prevTo)
	if table[piece][quiet.To()] <= 0 {
		t.Fatalf("continuation entry = %d, want positive after a good-move update", table[piece][quiet.To()])
	}

	moves := pos.GenerateLegalMoves()
	plain := mo.ScoreMovesWithCounter(pos, moves, 0, board.NoMove, board.NoMove, [3]*PieceToHistory{})
	withCont := mo.ScoreMovesWithCounter(pos, moves, 0, board.NoMove, board.NoMove, [3]*PieceToHistory{table})

	if findScore(t, moves, withCont, quiet) <= findScore(t, moves, plain, quiet) {
		t.Error("continuation-history update did not raise the quiet move's ordering score")
	}
}
