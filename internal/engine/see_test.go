package engine

import (
	"strings"
	"testing"

	"github.com/corvidchess/corvid/internal/board"
)

// mustMove finds the legal move from-to (no promotion) or fails the test.
func mustMove(t *testing.T, pos *board.Position, from, to board.Square) board.Move {
	t.Helper()
	legal := pos.GenerateLegalMoves()
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if m.From() == from && m.To() == to && !m.IsPromotion() {
			return m
		}
	}
	t.Fatalf("no legal move %v%v", from, to)
	return board.NoMove
}

func TestSEEKnownExchanges(t *testing.T) {
	cases := []struct {
		name     string
		fen      string
		from, to board.Square
		want     int
	}{
		{
			name: "rook takes undefended pawn",
			fen:  "1k6/8/8/4p3/8/8/8/1K2R3 w - - 0 1",
			from: board.E1, to: board.E5,
			want: PawnValue,
		},
		{
			name: "rook takes pawn defended by queen",
			fen:  "1k2q3/8/8/4p3/8/8/8/1K2R3 w - - 0 1",
			from: board.E1, to: board.E5,
			want: PawnValue - RookValue,
		},
		{
			name: "knight takes pawn defended by pawn",
			fen:  "1k6/8/5p2/4p3/8/3N4/8/1K6 w - - 0 1",
			from: board.D3, to: board.E5,
			want: PawnValue - KnightValue,
		},
		{
			name: "queen takes defended pawn loses the exchange",
			fen:  "1k6/8/5p2/4p3/8/8/4Q3/1K6 w - - 0 1",
			from: board.E2, to: board.E5,
			want: PawnValue - QueenValue,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pos, err := board.ParseFEN(c.fen)
			if err != nil {
				t.Fatalf("ParseFEN: %v", err)
			}
			m := mustMove(t, pos, c.from, c.to)
			if got := SEE(pos, m); got != c.want {
				t.Errorf("SEE=%d, want %d", got, c.want)
			}
			if gain := SEE(pos, m); (gain >= 0) != SeeGE(pos, m, 0) {
				t.Errorf("SeeGE(0) inconsistent with SEE=%d", gain)
			}
		})
	}
}

// mirrorFEN swaps the colors of a FEN's piece placement and flips the board
// vertically, producing the color-reversed position.
func mirrorFEN(t *testing.T, fen string) string {
	t.Helper()
	fields := strings.Fields(fen)
	ranks := strings.Split(fields[0], "/")
	mirrored := make([]string, len(ranks))
	for i, rank := range ranks {
		var sb strings.Builder
		for j := 0; j < len(rank); j++ {
			ch := rank[j]
			switch {
			case ch >= 'a' && ch <= 'z':
				sb.WriteByte(ch - 'a' + 'A')
			case ch >= 'A' && ch <= 'Z':
				sb.WriteByte(ch - 'A' + 'a')
			default:
				sb.WriteByte(ch)
			}
		}
		mirrored[len(ranks)-1-i] = sb.String()
	}
	stm := "w"
	if fields[1] == "w" {
		stm = "b"
	}
	return strings.Join(mirrored, "/") + " " + stm + " - - 0 1"
}

// TestSEEColorSymmetry verifies the exchange value is unchanged when the
// whole position is color-flipped.
func TestSEEColorSymmetry(t *testing.T) {
	fen := "1k2q3/8/8/4p3/8/8/8/1K2R3 w - - 0 1"
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	m := mustMove(t, pos, board.E1, board.E5)

	mfen := mirrorFEN(t, fen)
	mpos, err := board.ParseFEN(mfen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", mfen, err)
	}
	mm := mustMove(t, mpos, board.E8, board.E4)

	if a, b := SEE(pos, m), SEE(mpos, mm); a != b {
		t.Errorf("color-flipped SEE differs: %d vs %d", a, b)
	}
}

// TestSEEQuietMoveExchange checks seeExchange answers square safety for a
// quiet move: stepping a queen onto a pawn-defended square loses her.
func TestSEEQuietMoveExchange(t *testing.T) {
	pos, err := board.ParseFEN("1k6/8/5p2/8/8/8/4Q3/1K6 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	m := mustMove(t, pos, board.E2, board.E5)
	if got := seeExchange(pos, m); got != -QueenValue {
		t.Errorf("seeExchange=%d, want %d", got, -QueenValue)
	}
}
