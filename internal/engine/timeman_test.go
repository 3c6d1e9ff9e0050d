package engine

import (
	"testing"
	"time"

	"github.com/corvidchess/corvid/internal/board"
)

func TestTimeManagerMovesToGoSplit(t *testing.T) {
	tm := NewTimeManager()
	tm.Init(UCILimits{
		Time:      [2]time.Duration{10 * time.Second, 10 * time.Second},
		Inc:       [2]time.Duration{500 * time.Millisecond, 500 * time.Millisecond},
		MovesToGo: 10,
	}, board.White, 20)

	// (10s - 0 overhead) / 10 + 500ms = 1.5s
	if got, want := tm.OptimumTime(), 1500*time.Millisecond; got != want {
		t.Errorf("optimum = %v, want %v", got, want)
	}
	if tm.MaximumTime() > 5*time.Second {
		t.Errorf("maximum %v exceeds half the remaining clock", tm.MaximumTime())
	}
}

func TestTimeManagerSuddenDeath(t *testing.T) {
	tm := NewTimeManager()
	tm.Init(UCILimits{
		Time: [2]time.Duration{30 * time.Second, 30 * time.Second},
		Inc:  [2]time.Duration{time.Second, time.Second},
	}, board.Black, 20)

	// 30s/30 + 1s = 2s, well under the half-clock cap.
	if got, want := tm.OptimumTime(), 2*time.Second; got != want {
		t.Errorf("optimum = %v, want %v", got, want)
	}
}

func TestTimeManagerSuddenDeathHalfClockCap(t *testing.T) {
	tm := NewTimeManager()
	tm.Init(UCILimits{
		Time: [2]time.Duration{600 * time.Millisecond, 600 * time.Millisecond},
		Inc:  [2]time.Duration{5 * time.Second, 5 * time.Second},
	}, board.White, 20)

	// 600ms/30 + 5s would overshoot; the half-clock cap holds it to 300ms.
	if got, want := tm.OptimumTime(), 300*time.Millisecond; got != want {
		t.Errorf("optimum = %v, want %v", got, want)
	}
}

func TestTimeManagerMoveOverheadSubtracted(t *testing.T) {
	tm := NewTimeManager()
	tm.Init(UCILimits{
		Time:         [2]time.Duration{10*time.Second + 100*time.Millisecond, 0},
		MovesToGo:    10,
		MoveOverhead: 100 * time.Millisecond,
	}, board.White, 20)

	if got, want := tm.OptimumTime(), time.Second; got != want {
		t.Errorf("optimum = %v, want %v", got, want)
	}
}

func TestTimeManagerMoveTimeOverrides(t *testing.T) {
	tm := NewTimeManager()
	tm.Init(UCILimits{
		Time:     [2]time.Duration{time.Hour, time.Hour},
		MoveTime: 250 * time.Millisecond,
	}, board.White, 0)

	if tm.OptimumTime() != 250*time.Millisecond || tm.MaximumTime() != 250*time.Millisecond {
		t.Errorf("movetime must bound both budgets, got optimum=%v maximum=%v",
			tm.OptimumTime(), tm.MaximumTime())
	}
}
