package board

import "testing"

// moveSet builds a lookup set from a move list.
func moveSet(ml *MoveList) map[Move]bool {
	set := make(map[Move]bool, ml.Len())
	for i := 0; i < ml.Len(); i++ {
		set[ml.Get(i)] = true
	}
	return set
}

var movegenFENs = []string{
	StartFEN,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	"rnbqkbnr/ppp1pppp/8/8/3pP3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 2",
	"r1bqkbnr/pppp1ppp/2n5/1B2p3/4P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3",
	// In check:
	"rnbqkbnr/ppp2ppp/8/1B1pp3/4P3/8/PPPP1PPP/RNBQK1NR b KQkq - 1 3",
	"rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
}

// TestCapturesAreSubsetOfLegal checks the capture generator emits only legal
// moves, each either an actual capture or a queening push, and misses no
// legal capture.
func TestCapturesAreSubsetOfLegal(t *testing.T) {
	for _, fen := range movegenFENs {
		pos := parseFENOrFatal(t, fen)
		legal := moveSet(pos.GenerateLegalMoves())
		captures := pos.GenerateCaptures()

		for i := 0; i < captures.Len(); i++ {
			m := captures.Get(i)
			if !legal[m] {
				t.Errorf("%s: capture %v not legal", fen, m)
			}
			if !m.IsCapture(pos) && !m.IsPromotion() {
				t.Errorf("%s: %v is neither a capture nor a promotion", fen, m)
			}
		}

		capSet := moveSet(captures)
		for m := range legal {
			if m.IsCapture(pos) && !capSet[m] {
				t.Errorf("%s: legal capture %v missing from capture generator", fen, m)
			}
		}
	}
}

// TestCapturesAndChecksProperties checks the augmented quiescence generator:
// a subset of legal moves containing every capture, whose non-capture
// members all give check.
func TestCapturesAndChecksProperties(t *testing.T) {
	for _, fen := range movegenFENs {
		pos := parseFENOrFatal(t, fen)
		legal := moveSet(pos.GenerateLegalMoves())
		augmented := pos.GenerateCapturesAndChecks()
		augSet := moveSet(augmented)

		for i := 0; i < augmented.Len(); i++ {
			m := augmented.Get(i)
			if !legal[m] {
				t.Errorf("%s: %v not legal", fen, m)
				continue
			}
			if m.IsCapture(pos) {
				continue
			}
			undo := pos.MakeMove(m)
			inCheck := pos.InCheck()
			pos.UnmakeMove(m, undo)
			if !inCheck {
				t.Errorf("%s: quiet move %v does not give check", fen, m)
			}
		}

		for m := range legal {
			if !m.IsCapture(pos) {
				continue
			}
			if !augSet[m] {
				t.Errorf("%s: capture %v missing from captures-and-checks", fen, m)
			}
		}
	}
}

// TestHasLegalMovesAgreesWithGeneration cross-checks the existence test
// against the full generator, including mate and stalemate positions.
func TestHasLegalMovesAgreesWithGeneration(t *testing.T) {
	fens := append([]string{}, movegenFENs...)
	fens = append(fens,
		"R6k/6pp/8/8/8/8/8/K7 b - - 0 1",      // mated
		"7k/5Q2/6K1/8/8/8/8/8 b - - 0 1",      // stalemate
		"k7/8/8/8/8/8/8/K7 w - - 0 1",         // bare kings
	)
	for _, fen := range fens {
		pos := parseFENOrFatal(t, fen)
		want := pos.GenerateLegalMoves().Len() > 0
		if got := pos.HasLegalMoves(); got != want {
			t.Errorf("%s: HasLegalMoves()=%v but %d legal moves generated",
				fen, got, pos.GenerateLegalMoves().Len())
		}
	}
}

// TestEvasionsMatchFilteredGeneration compares the specialised in-check
// generator against brute-force filtering of the pseudo-legal set.
func TestEvasionsMatchFilteredGeneration(t *testing.T) {
	fens := []string{
		"rnbqkbnr/ppp2ppp/8/1B1pp3/4P3/8/PPPP1PPP/RNBQK1NR b KQkq - 1 3", // bishop check, blockable
		"rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",  // queen check
		"4k3/8/8/8/8/3n4/8/4K3 w - - 0 1",                                // knight check, unblockable
		"4k3/8/8/8/8/8/8/r3K3 w - - 0 1",                                 // rook check along rank
		"4k3/8/8/8/1b2r3/8/8/4K3 w - - 0 1",                              // double check
	}
	for _, fen := range fens {
		pos := parseFENOrFatal(t, fen)
		if !pos.InCheck() {
			t.Fatalf("%s: expected the side to move to be in check", fen)
		}

		want := make(map[Move]bool)
		pseudo := pos.GeneratePseudoLegalMoves()
		for i := 0; i < pseudo.Len(); i++ {
			if m := pseudo.Get(i); pos.IsLegal(m) {
				want[m] = true
			}
		}

		got := moveSet(pos.GenerateLegalMovesFromCheck())
		if len(got) != len(want) {
			t.Errorf("%s: evasions=%d, filtered=%d", fen, len(got), len(want))
		}
		for m := range want {
			if !got[m] {
				t.Errorf("%s: evasion %v missing", fen, m)
			}
		}
		for m := range got {
			if !want[m] {
				t.Errorf("%s: spurious evasion %v", fen, m)
			}
		}
	}
}

// TestPseudoLegalAcceptsLegalMoves checks every generated legal move passes
// the cheap pseudo-legality screen, and a handful of junk moves fail it.
func TestPseudoLegalAcceptsLegalMoves(t *testing.T) {
	for _, fen := range movegenFENs {
		pos := parseFENOrFatal(t, fen)
		legal := pos.GenerateLegalMoves()
		for i := 0; i < legal.Len(); i++ {
			if m := legal.Get(i); !pos.PseudoLegal(m) {
				t.Errorf("%s: legal move %v rejected by PseudoLegal", fen, m)
			}
		}
	}

	pos := parseFENOrFatal(t, StartFEN)
	junk := []Move{
		NoMove,
		NewMove(E4, E5),          // no piece on from-square
		NewMove(E1, E3),          // king cannot jump two squares
		NewMove(A1, A3),          // rook blocked by own pawn
		NewMove(E7, E5),          // opponent's piece
		NewMove(B1, D2),          // knight landing on own pawn
		NewPromotion(E2, E8, Queen), // pawn nowhere near promotion
	}
	for _, m := range junk {
		if pos.PseudoLegal(m) {
			t.Errorf("junk move %v accepted by PseudoLegal", m)
		}
	}
}

func TestInsufficientMaterial(t *testing.T) {
	cases := []struct {
		fen  string
		want bool
	}{
		{"k7/8/8/8/8/8/8/K7 w - - 0 1", true},
		{"k7/8/8/8/8/8/8/KB6 w - - 0 1", true},
		{"k7/8/8/8/8/8/8/KN6 w - - 0 1", true},
		{"kb6/8/8/8/8/8/8/K7 w - - 0 1", true},
		{"k7/8/8/8/8/8/1P6/K7 w - - 0 1", false},
		{"k7/8/8/8/8/8/8/KR6 w - - 0 1", false},
		{"kb6/8/8/8/8/8/8/KB6 w - - 0 1", false},
		{"kn6/8/8/8/8/8/8/KN6 w - - 0 1", false},
		{StartFEN, false},
	}
	for _, c := range cases {
		pos := parseFENOrFatal(t, c.fen)
		if got := pos.IsInsufficientMaterial(); got != c.want {
			t.Errorf("%s: IsInsufficientMaterial()=%v, want %v", c.fen, got, c.want)
		}
	}
}
