package engine

import (
	"testing"
	"time"

	"github.com/corvidchess/corvid/internal/board"
)

func TestSearchFindsMateInOne(t *testing.T) {
	pos, err := board.ParseFEN("6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	eng := NewEngine(16)
	move := eng.SearchWithLimits(pos, SearchLimits{Depth: 4})

	want := board.NewMove(board.A1, board.A8)
	if move != want {
		t.Errorf("best move = %v, want a1a8 (back-rank mate)", move)
	}
}

func TestSearchReportsMateScore(t *testing.T) {
	pos, err := board.ParseFEN("6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	eng := NewEngine(16)
	var lastScore int
	eng.OnInfo = func(info SearchInfo) { lastScore = info.Score }
	eng.SearchWithLimits(pos, SearchLimits{Depth: 4})

	if lastScore < MateScore-MaxPly {
		t.Errorf("score %d not in the mate range", lastScore)
	}
}

func TestStopReturnsPromptlyWithLegalMove(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	type result struct{ move board.Move }
	done := make(chan result, 1)
	go func() {
		m := eng.SearchWithLimits(pos, SearchLimits{Infinite: true})
		done <- result{m}
	}()

	time.Sleep(100 * time.Millisecond)
	eng.Stop()

	select {
	case r := <-done:
		legal := pos.GenerateLegalMoves()
		found := false
		for i := 0; i < legal.Len(); i++ {
			if legal.Get(i) == r.move {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("stopped search returned %v, not a legal move", r.move)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("search did not stop within 5s of Stop()")
	}
}

func TestSearchMovesRestrictsRoot(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	restricted, err := board.ParseMove("a2a3", pos)
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}

	move := eng.SearchWithLimits(pos, SearchLimits{
		Depth:       3,
		SearchMoves: []board.Move{restricted},
	})
	if move != restricted {
		t.Errorf("searchmoves-restricted search returned %v, want a2a3", move)
	}
}

func TestIsDrawDetectsRepetitionFromGameHistory(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	// The same position injected twice into game history makes the current
	// occurrence a threefold.
	eng.SetPositionHistory([]uint64{pos.Hash, pos.Hash})

	w := eng.workers[0]
	w.InitSearch(pos.Copy())
	if !w.isDraw() {
		t.Error("expected threefold repetition against injected game history")
	}
}
