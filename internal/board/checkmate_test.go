package board

import "testing"

func TestCheckmate(t *testing.T) {
	cases := []struct {
		name string
		fen  string
		want bool
	}{
		{"back rank mate", "R6k/6pp/8/8/8/8/8/K7 b - - 0 1", true},
		{"king escapes by capturing attacker", "6Rk/8/8/8/8/8/8/K7 b - - 0 1", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pos, err := ParseFEN(c.fen)
			if err != nil {
				t.Fatalf("ParseFEN(%q): %v", c.fen, err)
			}
			pos.UpdateCheckers()

			if got := pos.IsCheckmate(); got != c.want {
				moves := pos.GenerateLegalMoves()
				t.Errorf("IsCheckmate() = %v, want %v (checkers=%v, %d legal moves)",
					got, c.want, pos.Checkers, moves.Len())
			}
		})
	}
}
