package board

import "testing"

// TestIncrementalHashesMatchRecompute drives move sequences that hit every
// special case the incremental hash updates handle (captures, castling, en
// passant, promotion with capture, double pushes) and asserts after every
// single move that the incrementally-maintained keys equal a from-scratch
// recomputation.
func TestIncrementalHashesMatchRecompute(t *testing.T) {
	cases := []struct {
		name  string
		fen   string
		moves []string
	}{
		{
			name:  "captures and a capturing promotion",
			fen:   StartFEN,
			moves: []string{"e2e4", "d7d5", "e4d5", "c7c6", "d5c6", "g8f6", "c6b7", "e7e6", "b7a8q"},
		},
		{
			name:  "kingside castling both sides",
			fen:   StartFEN,
			moves: []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6", "e1g1", "f8c5", "d2d3", "e8g8"},
		},
		{
			name:  "en passant capture",
			fen:   StartFEN,
			moves: []string{"e2e4", "a7a6", "e4e5", "d7d5", "e5d6"},
		},
		{
			name:  "queenside castling and rook move revoking rights",
			fen:   "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
			moves: []string{"e1c1", "h8h4", "e5g6", "h4h8"},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pos, err := ParseFEN(c.fen)
			if err != nil {
				t.Fatalf("ParseFEN: %v", err)
			}

			type applied struct {
				m    Move
				undo UndoInfo
			}
			var history []applied

			for _, s := range c.moves {
				m, err := ParseMove(s, pos)
				if err != nil {
					t.Fatalf("move %q: %v", s, err)
				}
				undo := pos.MakeMove(m)
				if !undo.Valid {
					t.Fatalf("move %q rejected by MakeMove", s)
				}
				history = append(history, applied{m, undo})

				if got, want := pos.Hash, pos.ComputeHash(); got != want {
					t.Fatalf("after %s: incremental hash %016x != recomputed %016x", s, got, want)
				}
				if got, want := pos.PawnKey, pos.ComputePawnKey(); got != want {
					t.Fatalf("after %s: incremental pawn key %016x != recomputed %016x", s, got, want)
				}
				if got, want := pos.MaterialKey, pos.ComputeMaterialKey(); got != want {
					t.Fatalf("after %s: incremental material key %016x != recomputed %016x", s, got, want)
				}
			}

			// Unwind everything and verify full restoration.
			start, _ := ParseFEN(c.fen)
			for i := len(history) - 1; i >= 0; i-- {
				pos.UnmakeMove(history[i].m, history[i].undo)
			}
			if pos.Hash != start.Hash || pos.PawnKey != start.PawnKey || pos.MaterialKey != start.MaterialKey {
				t.Errorf("keys not restored after unwinding: hash %016x/%016x pawn %016x/%016x material %016x/%016x",
					pos.Hash, start.Hash, pos.PawnKey, start.PawnKey, pos.MaterialKey, start.MaterialKey)
			}
			if pos.ToFEN() != start.ToFEN() {
				t.Errorf("position not restored: %s != %s", pos.ToFEN(), start.ToFEN())
			}
		})
	}
}

// TestNullMoveHashes checks that a null move keeps the incremental keys in
// sync (the en passant file drops out of both the main and pawn keys) and
// that unmake restores them exactly.
func TestNullMoveHashes(t *testing.T) {
	pos, err := ParseFEN("rnbqkbnr/ppp1pppp/8/8/3pP3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 2")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	hash, pawnKey := pos.Hash, pos.PawnKey

	undo := pos.MakeNullMove()
	if pos.Hash != pos.ComputeHash() {
		t.Errorf("null move hash %016x != recomputed %016x", pos.Hash, pos.ComputeHash())
	}
	if pos.PawnKey != pos.ComputePawnKey() {
		t.Errorf("null move pawn key %016x != recomputed %016x", pos.PawnKey, pos.ComputePawnKey())
	}
	if pos.EnPassant != NoSquare {
		t.Error("null move must clear the en passant square")
	}

	pos.UnmakeNullMove(undo)
	if pos.Hash != hash || pos.PawnKey != pawnKey {
		t.Error("unmake null move did not restore keys")
	}
	if pos.EnPassant != E3 {
		t.Errorf("unmake null move restored en passant %v, want e3", pos.EnPassant)
	}
}

// TestMaterialKeyPermutationInvariant verifies the material key depends only
// on piece counts, not placement.
func TestMaterialKeyPermutationInvariant(t *testing.T) {
	a, _ := ParseFEN("4k3/8/8/8/8/8/8/RN2K3 w - - 0 1")
	b, _ := ParseFEN("4k3/8/8/2N5/8/8/8/4K2R w - - 0 1")
	if a.MaterialKey != b.MaterialKey {
		t.Errorf("same material, different keys: %016x vs %016x", a.MaterialKey, b.MaterialKey)
	}

	c, _ := ParseFEN("4k3/8/8/8/8/8/8/1N2K3 w - - 0 1")
	if a.MaterialKey == c.MaterialKey {
		t.Error("different material must yield different keys")
	}
}
