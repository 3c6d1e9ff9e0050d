package engine

import (
	"time"

	"github.com/corvidchess/corvid/internal/board"
)

// UCILimits contains UCI time control parameters.
type UCILimits struct {
	Time         [2]time.Duration // wtime, btime (remaining time for each color)
	Inc          [2]time.Duration // winc, binc (increment per move)
	MovesToGo    int              // moves until next time control (0 = sudden death)
	MoveTime     time.Duration    // fixed time per move (overrides other time controls)
	MoveOverhead time.Duration    // per-move margin eaten by GUI/network latency
	Depth        int              // maximum search depth
	Nodes        uint64           // maximum nodes to search
	Infinite     bool             // search until stopped
	SearchMoves  []board.Move     // restrict the root to these moves
	Ponder       bool             // ponder mode
}

// TimeManager handles time allocation for searches.
type TimeManager struct {
	optimumTime time.Duration // Target time for this move
	maximumTime time.Duration // Maximum time allowed
	startTime   time.Time     // When search started
}

// NewTimeManager creates a new time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// clampDuration bounds d to [lo, hi].
func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// Init initializes the time manager for a new search. ply is the current
// game ply (half-move number).
//
// The per-move allocation: with a declared moves-to-go, the remaining clock
// (less the move overhead) is split evenly across it plus the increment.
// In sudden death, budget for an assumed 30 moves left but never commit
// more than half of what remains, so a long game doesn't get blindsided by
// an early miscalibration. An explicit movetime overrides everything as a
// hard bound.
func (tm *TimeManager) Init(limits UCILimits, us board.Color, ply int) {
	tm.startTime = time.Now()

	if limits.MoveTime > 0 {
		tm.optimumTime = limits.MoveTime
		tm.maximumTime = limits.MoveTime
		return
	}

	if limits.Infinite || (limits.Time[us] == 0 && limits.MoveTime == 0) {
		tm.optimumTime = time.Hour
		tm.maximumTime = time.Hour
		return
	}

	available := limits.Time[us] - limits.MoveOverhead
	if available < 0 {
		available = 0
	}
	inc := limits.Inc[us]

	var allotted time.Duration
	if limits.MovesToGo > 0 {
		allotted = available/time.Duration(limits.MovesToGo) + inc
	} else {
		allotted = available/30 + inc
		if half := available / 2; allotted > half {
			allotted = half
		}
	}

	tm.optimumTime = allotted
	if ply < 8 {
		// Early moves get a small discount since the position is least settled.
		tm.optimumTime = allotted * 85 / 100
	}

	// The hard ceiling leaves room for the stability-based extensions while
	// never burning most of the clock on a single move.
	tm.maximumTime = allotted * 3
	if ceiling := available / 2; tm.maximumTime > ceiling {
		tm.maximumTime = ceiling
	}

	tm.optimumTime = clampDuration(tm.optimumTime, 10*time.Millisecond, time.Hour)
	tm.maximumTime = clampDuration(tm.maximumTime, 20*time.Millisecond, time.Hour)
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// OptimumTime returns the target time for this move.
func (tm *TimeManager) OptimumTime() time.Duration {
	return tm.optimumTime
}

// MaximumTime returns the maximum time allowed.
func (tm *TimeManager) MaximumTime() time.Duration {
	return tm.maximumTime
}

// ShouldStop returns true if we should stop searching.
func (tm *TimeManager) ShouldStop() bool {
	return tm.Elapsed() >= tm.maximumTime
}

// PastOptimum returns true if we've exceeded the optimum time.
func (tm *TimeManager) PastOptimum() bool {
	return tm.Elapsed() >= tm.optimumTime
}

// AdjustForStability shrinks the optimum allocation when the best move has
// held steady for stability consecutive completed depths, freeing time for
// future moves.
func (tm *TimeManager) AdjustForStability(stability int) {
	switch {
	case stability >= 6:
		tm.optimumTime = tm.optimumTime * 40 / 100
	case stability >= 4:
		tm.optimumTime = tm.optimumTime * 60 / 100
	case stability >= 2:
		tm.optimumTime = tm.optimumTime * 80 / 100
	}
}

// AdjustForInstability grows the optimum allocation (capped at the maximum)
// when changes best-move switches have happened across recent depths.
func (tm *TimeManager) AdjustForInstability(changes int) {
	var scale int
	switch {
	case changes >= 4:
		scale = 200
	case changes >= 2:
		scale = 150
	default:
		return
	}
	tm.optimumTime = tm.optimumTime * time.Duration(scale) / 100
	if tm.optimumTime > tm.maximumTime {
		tm.optimumTime = tm.maximumTime
	}
}
