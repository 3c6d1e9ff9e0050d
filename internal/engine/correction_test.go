package engine

import (
	"testing"

	"github.com/corvidchess/corvid/internal/board"
)

func TestCorrectionHistoryBonusClampAndSaturation(t *testing.T) {
	pos := board.NewPosition()
	ch := NewCorrectionHistory()

	// A single update carries exactly the clamped saturating bonus: with a
	// fresh (zero) entry, v += b - 0 = b, and the raw bonus here
	// ((200-0)*8/8 = 200) is inside the clamp.
	ch.Update(pos, 200, 0, 8)
	if got := ch.Get(pos); got != 200 {
		t.Errorf("first update: Get = %d, want 200", got)
	}

	ch.Clear()

	// A huge eval error is clamped to ±4096 before the saturating apply.
	ch.Update(pos, 30000, 0, 8)
	if got := ch.Get(pos); got != correctionMaxBonus {
		t.Errorf("clamped update: Get = %d, want %d", got, correctionMaxBonus)
	}

	// Repeated maximal updates asymptote at the saturation divisor
	// instead of growing without bound.
	for i := 0; i < 100; i++ {
		ch.Update(pos, 30000, 0, 8)
	}
	if got := ch.Get(pos); got > historyDivisor {
		t.Errorf("saturated value %d exceeded the divisor %d", got, historyDivisor)
	}
	if got := ch.Get(pos); got < correctionMaxBonus {
		t.Errorf("saturated value %d fell below a single bonus", got)
	}

	// Negative errors drive the entry back down symmetrically.
	for i := 0; i < 200; i++ {
		ch.Update(pos, -30000, 0, 8)
	}
	if got := ch.Get(pos); got >= 0 {
		t.Errorf("after sustained negative errors, Get = %d, want negative", got)
	}
}

func TestCorrectionHistoryIgnoresShallowDepth(t *testing.T) {
	pos := board.NewPosition()
	ch := NewCorrectionHistory()

	ch.Update(pos, 500, 0, 0)
	if got := ch.Get(pos); got != 0 {
		t.Errorf("depth-0 update must be ignored, Get = %d", got)
	}
}

func TestCorrectionHistorySnapshotRoundTrip(t *testing.T) {
	pos := board.NewPosition()
	ch := NewCorrectionHistory()
	ch.Update(pos, 300, 0, 6)

	restored := NewCorrectionHistory()
	restored.Restore(ch.Snapshot())
	if restored.Get(pos) != ch.Get(pos) {
		t.Errorf("snapshot round trip changed the entry: %d != %d", restored.Get(pos), ch.Get(pos))
	}
}
