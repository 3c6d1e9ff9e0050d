package engine

import (
	"testing"

	"github.com/corvidchess/corvid/internal/board"
)

func TestAdjustScoreToFromTTRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		score int
		ply   int
	}{
		{"non-mate score unaffected", 120, 5},
		{"mate-for-us far from root", MateScore - MaxPly + 1, 3},
		{"mate-against-us far from root", -MateScore + MaxPly - 1, 7},
		{"mate score at root", MateScore - 1, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			stored := AdjustScoreToTT(c.score, c.ply)
			got := AdjustScoreFromTT(stored, c.ply)
			if got != c.score {
				t.Errorf("round trip failed: score=%d ply=%d stored=%d got=%d", c.score, c.ply, stored, got)
			}
		})
	}
}

func TestAdjustScoreToTTPrefersRootMateDistance(t *testing.T) {
	// The same root-relative mate score stores as a closer mate when it was
	// found at ply 5 than at ply 3, since AdjustScoreToTT re-expresses the
	// score relative to the node it was found at rather than the root.
	shallow := AdjustScoreToTT(MateScore-4, 3)
	deep := AdjustScoreToTT(MateScore-4, 5)
	if shallow >= deep {
		t.Errorf("expected the deeper node to store a larger (closer) score: shallow=%d deep=%d", shallow, deep)
	}
}

func TestTranspositionTableStoreProbe(t *testing.T) {
	tt := NewTranspositionTable(1)

	hash := uint64(0xdeadbeefcafef00d)
	move := board.NewMove(board.Square(12), board.Square(28))

	tt.Store(hash, 6, 150, TTExact, move, true, 120, 24)

	entry, found := tt.Probe(hash)
	if !found {
		t.Fatal("expected entry to be found")
	}
	if entry.BestMove != move {
		t.Errorf("got move %v, want %v", entry.BestMove, move)
	}
	if int(entry.Score) != 150 {
		t.Errorf("got score %d, want 150", entry.Score)
	}
	if int(entry.StaticEval) != 120 {
		t.Errorf("got static eval %d, want 120", entry.StaticEval)
	}
	if entry.NumPiecesAtEntry != 24 {
		t.Errorf("got num pieces %d, want 24", entry.NumPiecesAtEntry)
	}
	if entry.Flag != TTExact {
		t.Errorf("got flag %v, want TTExact", entry.Flag)
	}

	if _, found := tt.Probe(hash ^ 0xff); found {
		t.Error("expected miss for a different hash")
	}
}

func TestTranspositionTableStoresDepthZero(t *testing.T) {
	// Quiescence writes its results back at depth 0; a zero depth must not
	// read as an empty slot.
	tt := NewTranspositionTable(1)
	move := board.NewMove(board.Square(12), board.Square(21))
	tt.Store(0xabc, 0, 35, TTLowerBound, move, false, 30, 18)

	entry, found := tt.Probe(0xabc)
	if !found {
		t.Fatal("depth-0 entry not found")
	}
	if entry.Depth != 0 || entry.BestMove != move {
		t.Errorf("got depth=%d move=%v, want depth=0 move=%v", entry.Depth, entry.BestMove, move)
	}
}

func TestTranspositionTableClampsTablebaseDepth(t *testing.T) {
	tt := NewTranspositionTable(1)
	tt.Store(0xdef, MaxPly, 500, TTExact, board.NoMove, true, 500, 5)

	entry, found := tt.Probe(0xdef)
	if !found {
		t.Fatal("entry not found")
	}
	if entry.Depth != 127 {
		t.Errorf("depth = %d, want the clamped maximum 127", entry.Depth)
	}
}

func TestTranspositionTableClear(t *testing.T) {
	tt := NewTranspositionTable(1)
	move := board.NewMove(board.Square(8), board.Square(16))
	tt.Store(1, 4, 50, TTExact, move, false, 50, 20)

	tt.Clear()

	if _, found := tt.Probe(1); found {
		t.Error("expected table to be empty after Clear")
	}
}

func TestTranspositionTableSafelyReplaceable(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0x1234)
	deepMove := board.NewMove(board.Square(1), board.Square(9))
	shallowMove := board.NewMove(board.Square(2), board.Square(10))

	// Two deep entries stored with 30 pieces on the board fill both slots of
	// the cluster hash maps to (same index bits, different key32).
	tt.Store(hash|1<<32, 20, 10, TTExact, deepMove, false, 10, 30)
	tt.Store(hash|2<<32, 20, 10, TTExact, deepMove, false, 10, 30)

	// The game has since progressed and the root now has fewer pieces than
	// the stored entries saw, so they can never be reached again and one of
	// them must give way even to a shallower write of another position.
	tt.SetRootPieceCount(12)
	tt.Store(hash, 2, -10, TTExact, shallowMove, false, -10, 12)

	entry, found := tt.Probe(hash)
	if !found {
		t.Fatal("expected entry to be found")
	}
	if entry.BestMove != shallowMove {
		t.Errorf("expected safely-replaceable entry to be overwritten, got move %v", entry.BestMove)
	}
	if entry.Depth != 2 {
		t.Errorf("got depth %d, want 2", entry.Depth)
	}
}
