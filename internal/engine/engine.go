package engine

import (
	"context"
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/corvidchess/corvid/internal/board"
	"github.com/corvidchess/corvid/internal/storage"
	"github.com/corvidchess/corvid/internal/tablebase"
	"github.com/corvidchess/corvid/sfnnue"
)

// Instrumentation. Searches emit a span and record nodes/depth so a host
// process can wire a real OpenTelemetry SDK; with none configured these are
// no-ops.
var (
	tracer       = otel.Tracer("github.com/corvidchess/corvid/internal/engine")
	meter        = otel.Meter("github.com/corvidchess/corvid/internal/engine")
	nodesCounter metric.Int64Counter
)

func init() {
	var err error
	nodesCounter, err = meter.Int64Counter("corvid.search.nodes",
		metric.WithDescription("nodes searched per Search call"))
	if err != nil {
		nodesCounter = nil
	}
}

// NumWorkers is the number of parallel search workers (matches CPU cores).
var NumWorkers = runtime.GOMAXPROCS(0)

// SearchInfo contains information about the current search.
type SearchInfo struct {
	Depth    int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // Permille of hash table used
}

// SearchLimits specifies constraints on the search.
type SearchLimits struct {
	Depth       int           // Maximum depth (0 = no limit)
	Nodes       uint64        // Maximum nodes (0 = no limit)
	MoveTime    time.Duration // Time for this move (0 = no limit)
	Infinite    bool          // Search until stopped
	MultiPV     int           // Number of principal variations to find (0 or 1 = single best move)
	SearchMoves []board.Move  // Restrict the root to these moves (empty = all legal moves)
}

// SearchResult contains the result of a single PV search.
type SearchResult struct {
	Move  board.Move
	Score int
	PV    []board.Move
	Depth int
}

// Difficulty represents the AI difficulty level.
type Difficulty int

const (
	Easy   Difficulty = iota // ~2-3 ply, 500ms
	Medium                   // up to 7 ply, 1s
	Hard                     // Maximum strength, 3s
)

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 3, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 7, MoveTime: 1 * time.Second},
	Hard:   {Depth: 40, MoveTime: 3 * time.Second}, // Max strength (time-limited)
}

// Engine is the chess AI engine.
type Engine struct {
	// Workers for parallel search
	workers       []*Worker
	pawnTable     *PawnTable
	tt            *TranspositionTable
	sharedHistory *SharedHistory // Shared history for Lazy SMP
	stopFlag      atomic.Bool

	// Dedicated worker for Multi-PV root-exclusion searches
	mpvWorker *Worker

	difficulty      Difficulty
	tablebase       tablebase.Prober
	tbProbeDepth    int
	persistentCache *storage.Cache

	// Position history for repetition detection
	rootPosHashes []uint64

	// NNUE evaluation
	useNNUE bool
	nnueNet *sfnnue.Networks // Shared networks (immutable after load)

	// Callbacks
	OnInfo func(SearchInfo)
}

// NewEngine creates a new chess engine with the given transposition table size in MB.
func NewEngine(ttSizeMB int) *Engine {
	tt := NewTranspositionTable(ttSizeMB)
	sharedHistory := NewSharedHistory()

	e := &Engine{
		tt:            tt,
		pawnTable:     NewPawnTable(1), // Pawn table for the Multi-PV worker
		sharedHistory: sharedHistory,
		difficulty:    Medium,
		tbProbeDepth:  1,
		workers:       make([]*Worker, NumWorkers),
	}

	log.Printf("[Engine] Creating %d workers (GOMAXPROCS=%d)", NumWorkers, runtime.GOMAXPROCS(0))

	// Create workers, each with its own pawn table for thread safety
	for i := 0; i < NumWorkers; i++ {
		workerPawnTable := NewPawnTable(1) // 1MB per worker
		e.workers[i] = NewWorker(i, tt, workerPawnTable, sharedHistory, &e.stopFlag)
	}

	// Dedicated single worker reused across root-exclusion passes in SearchMultiPV
	e.mpvWorker = NewWorker(NumWorkers, tt, e.pawnTable, sharedHistory, &e.stopFlag)

	return e
}

// SetDifficulty sets the engine difficulty.
func (e *Engine) SetDifficulty(d Difficulty) {
	e.difficulty = d
}

// minHashMB and maxHashMB bound the Hash UCI option (see option declaration
// in the protocol layer: "type spin default 64 min 1 max 4096").
const (
	minHashMB = 1
	maxHashMB = 4096
)

// aspirationWindowBase is the initial half-width, in centipawns, of the
// root aspiration window opened around the previous depth's score.
const aspirationWindowBase = 25

// SetHashSizeMB resizes the transposition table to the given size in
// megabytes, clamping out-of-range values to the nearest valid bound, and
// pushes the new table to every worker. The previous table's contents are
// discarded, matching a fresh "ucinewgame".
func (e *Engine) SetHashSizeMB(sizeMB int) {
	if sizeMB < minHashMB {
		log.Printf("[Engine] Hash size %dMB below minimum, clamping to %dMB", sizeMB, minHashMB)
		sizeMB = minHashMB
	} else if sizeMB > maxHashMB {
		log.Printf("[Engine] Hash size %dMB above maximum, clamping to %dMB", sizeMB, maxHashMB)
		sizeMB = maxHashMB
	}

	e.tt = NewTranspositionTable(sizeMB)
	for _, w := range e.workers {
		w.SetTT(e.tt)
	}
	if e.mpvWorker != nil {
		e.mpvWorker.SetTT(e.tt)
	}
}

// SetTablebase sets the tablebase prober and pushes it down to every search
// worker, including the Multi-PV worker.
func (e *Engine) SetTablebase(tb tablebase.Prober) {
	e.tablebase = e.withPersistentProbeCache(tb)
	e.propagateTablebase()
}

// EnableLichessTablebase enables Lichess online tablebase lookups.
func (e *Engine) EnableLichessTablebase() {
	e.tablebase = e.withPersistentProbeCache(tablebase.NewCachedLichessProber())
	e.propagateTablebase()
}

// HasTablebase returns true if a tablebase is available.
func (e *Engine) HasTablebase() bool {
	return e.tablebase != nil && e.tablebase.Available()
}

// SetSyzygyProbeDepth sets the minimum remaining search depth at which
// interior nodes probe the tablebase.
func (e *Engine) SetSyzygyProbeDepth(depth int) {
	if depth < 1 {
		depth = 1
	}
	e.tbProbeDepth = depth
	e.propagateTablebase()
}

// propagateTablebase pushes the current prober and probe depth to every
// worker, so interior-node probing (Worker.negamax) sees the latest state.
func (e *Engine) propagateTablebase() {
	for _, w := range e.workers {
		w.SetTablebase(e.tablebase, e.tbProbeDepth)
	}
	if e.mpvWorker != nil {
		e.mpvWorker.SetTablebase(e.tablebase, e.tbProbeDepth)
	}
}

// withPersistentProbeCache wraps a prober with the restart-surviving probe
// cache when one has been attached via SetPersistentCache.
func (e *Engine) withPersistentProbeCache(tb tablebase.Prober) tablebase.Prober {
	if e.persistentCache == nil || tb == nil {
		return tb
	}
	return &persistentTBProber{Prober: tb, cache: e.persistentCache}
}

// SetPersistentCache attaches a restart-surviving cache (see internal/storage)
// used to warm-start correction history and to back tablebase probes across
// process restarts. Pass nil to detach.
func (e *Engine) SetPersistentCache(cache *storage.Cache) {
	e.persistentCache = cache
	if cache == nil {
		return
	}

	if e.tablebase != nil {
		e.tablebase = &persistentTBProber{Prober: e.tablebase, cache: cache}
	}

	if snapshot, ok := cache.LoadCorrectionHistory(); ok {
		for _, w := range e.workers {
			w.corrHistory.Restore(snapshot)
		}
		e.mpvWorker.corrHistory.Restore(snapshot)
		log.Printf("[Engine] Restored correction history from persistent cache")
	}
}

// Shutdown persists warm-startable state to the attached persistent cache.
// Call this before process exit.
func (e *Engine) Shutdown() {
	if e.persistentCache == nil {
		return
	}
	if len(e.workers) > 0 {
		_ = e.persistentCache.SaveCorrectionHistory(e.workers[0].corrHistory.Snapshot())
	}
}

// persistentTBProber decorates a Prober with a restart-surviving probe cache:
// hits short-circuit the (potentially expensive or network-bound) underlying
// probe; misses are filled in after a successful probe.
type persistentTBProber struct {
	tablebase.Prober
	cache *storage.Cache
}

func (p *persistentTBProber) Probe(pos *board.Position) tablebase.ProbeResult {
	if cached, ok := p.cache.LoadProbe(pos.Hash); ok {
		return cached
	}
	result := p.Prober.Probe(pos)
	if result.Found {
		_ = p.cache.StoreProbe(pos.Hash, result)
	}
	return result
}

// rootExclusions inverts a "searchmoves" restriction into the exclusion
// list the workers understand: every legal root move that is NOT in the
// requested set gets excluded.
func rootExclusions(pos *board.Position, searchMoves []board.Move) []board.Move {
	legal := pos.GenerateLegalMoves()
	var excluded []board.Move
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		keep := false
		for _, sm := range searchMoves {
			if m == sm {
				keep = true
				break
			}
		}
		if !keep {
			excluded = append(excluded, m)
		}
	}
	return excluded
}

// applyRootRestriction installs (or clears, for an empty searchMoves) the
// root-move restriction on every worker.
func (e *Engine) applyRootRestriction(pos *board.Position, searchMoves []board.Move) {
	var excluded []board.Move
	if len(searchMoves) > 0 {
		excluded = rootExclusions(pos, searchMoves)
	}
	for _, w := range e.workers {
		w.SetExcludedMoves(excluded)
	}
}

// SetPositionHistory sets the position history for repetition detection.
// This should be called before Search() with hashes from the game's move history.
func (e *Engine) SetPositionHistory(hashes []uint64) {
	e.rootPosHashes = make([]uint64, len(hashes))
	copy(e.rootPosHashes, hashes)

	// Set for all workers
	for _, w := range e.workers {
		w.SetRootHistory(hashes)
	}

	e.mpvWorker.SetRootHistory(hashes)
}

// Search finds the best move for the given position.
func (e *Engine) Search(pos *board.Position) board.Move {
	limits := DifficultySettings[e.difficulty]
	return e.SearchWithLimits(pos, limits)
}

// SearchWithLimits finds the best move with specific search limits.
// Uses Lazy SMP with multiple workers searching in parallel.
func (e *Engine) SearchWithLimits(pos *board.Position, limits SearchLimits) board.Move {
	ctx, span := tracer.Start(context.Background(), "Engine.SearchWithLimits",
		trace.WithAttributes(attribute.Int("corvid.depth_limit", limits.Depth)))
	defer span.End()

	log.Printf("[Search] Received position with SideToMove=%v", pos.SideToMove)

	// Try tablebase for endgames
	if e.tablebase != nil && e.tablebase.Available() {
		pieceCount := tablebase.CountPieces(pos)
		if pieceCount <= e.tablebase.MaxPieces() {
			result := e.tablebase.ProbeRoot(pos)
			if result.Found && result.Move != board.NoMove {
				return result.Move
			}
		}
	}
	log.Printf("[Search] After tablebase probe SideToMove=%v", pos.SideToMove)

	// Reset for new search
	e.stopFlag.Store(false)
	e.tt.NewSearch()
	e.tt.SetRootPieceCount(countPieces(pos))
	e.applyRootRestriction(pos, limits.SearchMoves)
	defer e.applyRootRestriction(pos, nil)

	// Log evaluation mode
	if e.useNNUE && e.nnueNet != nil {
		log.Printf("[Engine] Starting search with NNUE evaluation")
	} else {
		log.Printf("[Engine] Starting search with Classical evaluation")
	}

	// Reset all workers
	for _, w := range e.workers {
		w.Reset()
	}

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var bestPV []board.Move
	var bestDepth int

	// Determine maximum depth
	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	// Determine deadline. Workers only poll the stop flag, so the deadline
	// is enforced by a watchdog timer rather than by waiting for the next
	// completed iteration to notice.
	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = startTime.Add(limits.MoveTime)
		watchdog := time.AfterFunc(limits.MoveTime, func() { e.stopFlag.Store(true) })
		defer watchdog.Stop()
	}

	// Create result channel
	resultCh := make(chan WorkerResult, NumWorkers*maxDepth)

	// Start workers
	var g errgroup.Group
	for i := 0; i < NumWorkers; i++ {
		workerID := i
		g.Go(func() error {
			e.workerSearch(workerID, pos, maxDepth, resultCh)
			return nil
		})
	}

	// Collect results in a separate goroutine
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(resultCh)
		close(done)
	}()

	// Track nodes across all workers
	var totalNodes uint64

	// Process results
resultLoop:
	for {
		select {
		case result, ok := <-resultCh:
			if !ok {
				break resultLoop
			}

			// Update total nodes
			totalNodes += result.Nodes

			// Update best result if this is deeper or same depth with better score
			if result.Move != board.NoMove {
				if result.Depth > bestDepth ||
					(result.Depth == bestDepth && result.Score > bestScore) {
					bestMove = result.Move
					bestScore = result.Score
					bestPV = result.PV
					bestDepth = result.Depth

					// Report info
					if e.OnInfo != nil {
						elapsed := time.Since(startTime)
						e.OnInfo(SearchInfo{
							Depth:    bestDepth,
							Score:    bestScore,
							Nodes:    e.getTotalNodes(),
							Time:     elapsed,
							PV:       bestPV,
							HashFull: e.tt.HashFull(),
						})
					}

					// Early termination: found mate
					if bestScore > MateScore-100 || bestScore < -MateScore+100 {
						e.stopFlag.Store(true)
						break resultLoop
					}
				}
			}

			// Check time limit
			if !deadline.IsZero() && time.Now().After(deadline) {
				e.stopFlag.Store(true)
				break resultLoop
			}

			// Check node limit
			if limits.Nodes > 0 && e.getTotalNodes() >= limits.Nodes {
				e.stopFlag.Store(true)
				break resultLoop
			}

		case <-done:
			break resultLoop
		}
	}

	// Ensure all workers are stopped
	e.stopFlag.Store(true)

	// Wait for workers to finish
	<-done

	span.SetAttributes(
		attribute.Int("corvid.best_depth", bestDepth),
		attribute.Int("corvid.best_score", bestScore),
		attribute.Int64("corvid.nodes", int64(totalNodes)),
	)
	if nodesCounter != nil {
		nodesCounter.Add(ctx, int64(totalNodes))
	}

	return e.ensureMove(pos, bestMove)
}

// ensureMove guarantees a search entry point never hands back a null move
// from a position that has legal moves: if the stop flag fired before the
// first iteration finished, fall back to the first legal move (score 0).
func (e *Engine) ensureMove(pos *board.Position, move board.Move) board.Move {
	if move != board.NoMove {
		return move
	}
	legal := pos.GenerateLegalMoves()
	if legal.Len() > 0 {
		return legal.Get(0)
	}
	return board.NoMove
}

// SearchWithUCILimits finds the best move using UCI time controls.
// Supports wtime/btime/winc/binc for proper tournament time management.
func (e *Engine) SearchWithUCILimits(pos *board.Position, limits UCILimits, ply int) board.Move {
	ctx, span := tracer.Start(context.Background(), "Engine.SearchWithUCILimits")
	defer span.End()

	// Try tablebase for endgames
	if e.tablebase != nil && e.tablebase.Available() {
		pieceCount := tablebase.CountPieces(pos)
		if pieceCount <= e.tablebase.MaxPieces() {
			result := e.tablebase.ProbeRoot(pos)
			if result.Found && result.Move != board.NoMove {
				return result.Move
			}
		}
	}

	// Initialize time manager
	tm := NewTimeManager()
	tm.Init(limits, pos.SideToMove, ply)

	// Reset for new search
	e.stopFlag.Store(false)
	e.tt.NewSearch()
	e.tt.SetRootPieceCount(countPieces(pos))
	e.applyRootRestriction(pos, limits.SearchMoves)
	defer e.applyRootRestriction(pos, nil)

	// Reset all workers
	for _, w := range e.workers {
		w.Reset()
	}

	// Watchdog: the hard time ceiling raises the stop flag even if no
	// depth iteration completes in the meantime.
	if !limits.Infinite {
		watchdog := time.AfterFunc(tm.MaximumTime(), func() { e.stopFlag.Store(true) })
		defer watchdog.Stop()
	}

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var bestPV []board.Move
	var bestDepth int
	var lastBestMove board.Move
	var stabilityCount int
	var instabilityCount int

	// Determine maximum depth
	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	// Create result channel
	resultCh := make(chan WorkerResult, NumWorkers*maxDepth)

	// Start workers
	var g errgroup.Group
	for i := 0; i < NumWorkers; i++ {
		workerID := i
		g.Go(func() error {
			e.workerSearch(workerID, pos, maxDepth, resultCh)
			return nil
		})
	}

	// Collect results in a separate goroutine
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(resultCh)
		close(done)
	}()

	// Process results
resultLoop:
	for {
		select {
		case result, ok := <-resultCh:
			if !ok {
				break resultLoop
			}

			// Update best result if this is deeper or same depth with better score
			if result.Move != board.NoMove {
				if result.Depth > bestDepth ||
					(result.Depth == bestDepth && result.Score > bestScore) {

					// Track move stability and let the time manager trade
					// allocation against it: a move that keeps winning depth
					// after depth frees time for later moves, a flip-flopping
					// root buys itself more.
					if result.Depth > bestDepth {
						if result.Move == lastBestMove {
							stabilityCount++
							instabilityCount = 0
							tm.AdjustForStability(stabilityCount)
						} else {
							instabilityCount++
							stabilityCount = 0
							tm.AdjustForInstability(instabilityCount)
						}
						lastBestMove = result.Move
					}

					bestMove = result.Move
					bestScore = result.Score
					bestPV = result.PV
					bestDepth = result.Depth

					// Report info
					if e.OnInfo != nil {
						elapsed := time.Since(startTime)
						e.OnInfo(SearchInfo{
							Depth:    bestDepth,
							Score:    bestScore,
							Nodes:    e.getTotalNodes(),
							Time:     elapsed,
							PV:       bestPV,
							HashFull: e.tt.HashFull(),
						})
					}

					// Early termination: found mate
					if bestScore > MateScore-100 || bestScore < -MateScore+100 {
						e.stopFlag.Store(true)
						break resultLoop
					}

					// Time management: check if we should stop based on stability
					if tm.PastOptimum() {
						if stabilityCount >= 4 {
							// Move is very stable, stop early
							e.stopFlag.Store(true)
							break resultLoop
						}
					}
				}
			}

			// Check time limit
			if tm.ShouldStop() {
				e.stopFlag.Store(true)
				break resultLoop
			}

			// Node limit check
			if limits.Nodes > 0 && e.getTotalNodes() >= limits.Nodes {
				e.stopFlag.Store(true)
				break resultLoop
			}

		case <-done:
			break resultLoop
		}
	}

	// Ensure all workers are stopped
	e.stopFlag.Store(true)
	<-done

	span.SetAttributes(
		attribute.Int("corvid.best_depth", bestDepth),
		attribute.Int("corvid.best_score", bestScore),
	)
	if nodesCounter != nil {
		nodesCounter.Add(ctx, int64(e.getTotalNodes()))
	}

	return e.ensureMove(pos, bestMove)
}

// workerSearch runs iterative deepening search in a worker goroutine.
// Uses depth staggering: workers start at different depths to reduce redundant shallow work.
func (e *Engine) workerSearch(workerID int, pos *board.Position, maxDepth int, resultCh chan<- WorkerResult) {
	worker := e.workers[workerID]
	worker.InitSearch(pos.Copy())

	var prevScore int

	// Depth staggering: helper workers skip shallow depths
	// Worker 0 (main): starts at depth 1
	// Workers 1-2: start at depth 2
	// Workers 3-5: start at depth 3
	// Workers 6+: start at depth 4
	startDepth := 1
	if workerID >= 6 {
		startDepth = 4
	} else if workerID >= 3 {
		startDepth = 3
	} else if workerID >= 1 {
		startDepth = 2
	}

	for depth := startDepth; depth <= maxDepth; depth++ {
		if e.stopFlag.Load() {
			return
		}

		worker.UpdateOptimism()

		var move board.Move
		var score int

		// Aspiration window: at depth >= 6 the root re-searches
		// around the previous depth's score instead of the full [-Inf,
		// +Inf] range, widening by doubling the window on each side that
		// fails until the true score falls inside it. Workers stagger
		// their starting window slightly so a Lazy-SMP pool doesn't all
		// re-search in lockstep on the same fail.
		if depth >= 6 && prevScore != 0 {
			window := aspirationWindowBase + (workerID%8)*3
			alpha := prevScore - window
			beta := prevScore + window

			for {
				move, score = worker.SearchDepth(depth, alpha, beta)

				if e.stopFlag.Load() {
					return
				}

				if score <= alpha {
					window *= 2
					alpha = prevScore - window
					if alpha < -Infinity+window {
						alpha = -Infinity
					}
				} else if score >= beta {
					window *= 2
					beta = prevScore + window
					if beta > Infinity-window {
						beta = Infinity
					}
				} else {
					break
				}

				if alpha <= -Infinity && beta >= Infinity {
					break
				}
			}
		} else {
			move, score = worker.SearchDepth(depth, -Infinity, Infinity)
		}

		if e.stopFlag.Load() {
			return
		}

		prevScore = score
		worker.UpdateAvgScore(score)

		// Send result
		pv := worker.GetPV()
		resultCh <- WorkerResult{
			WorkerID: workerID,
			Depth:    depth,
			Score:    score,
			Move:     move,
			PV:       pv,
			Nodes:    worker.Nodes(),
		}
	}
}

// getTotalNodes returns the total nodes searched by all workers.
func (e *Engine) getTotalNodes() uint64 {
	var total uint64
	for _, w := range e.workers {
		total += w.Nodes()
	}
	return total
}

// SearchMultiPV finds multiple best moves (principal variations) for analysis.
func (e *Engine) SearchMultiPV(pos *board.Position, limits SearchLimits) []SearchResult {
	numPV := limits.MultiPV
	if numPV <= 0 {
		numPV = 1
	}

	results := make([]SearchResult, 0, numPV)
	excludedMoves := make([]board.Move, 0, numPV)

	for i := 0; i < numPV; i++ {
		// Search excluding already-found best moves
		move, score, pv, depth := e.searchWithExclusions(pos, limits, excludedMoves)
		if move == board.NoMove {
			break
		}

		results = append(results, SearchResult{
			Move:  move,
			Score: score,
			PV:    pv,
			Depth: depth,
		})
		excludedMoves = append(excludedMoves, move)
	}

	// Sort results by score (descending) to ensure best moves are first
	for i := 0; i < len(results)-1; i++ {
		maxIdx := i
		for j := i + 1; j < len(results); j++ {
			if results[j].Score > results[maxIdx].Score {
				maxIdx = j
			}
		}
		if maxIdx != i {
			results[i], results[maxIdx] = results[maxIdx], results[i]
		}
	}

	return results
}

// searchWithExclusions searches for best move excluding certain moves at the root,
// using the dedicated Multi-PV worker so each requested PV line gets its own
// iterative-deepening pass over the reduced root move set.
func (e *Engine) searchWithExclusions(pos *board.Position, limits SearchLimits, excluded []board.Move) (board.Move, int, []board.Move, int) {
	e.stopFlag.Store(false)
	e.mpvWorker.Reset()
	e.mpvWorker.SetExcludedMoves(excluded)
	e.mpvWorker.InitSearch(pos.Copy())
	e.tt.NewSearch()
	e.tt.SetRootPieceCount(countPieces(pos))

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var bestDepth int

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = startTime.Add(limits.MoveTime)
	}

	for depth := 1; depth <= maxDepth; depth++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		move, score := e.mpvWorker.SearchDepth(depth, -Infinity, Infinity)

		if e.stopFlag.Load() {
			break
		}

		if move != board.NoMove {
			bestMove = move
			bestScore = score
			bestDepth = depth
		}

		if score > MateScore-100 || score < -MateScore+100 {
			break
		}

		if !deadline.IsZero() {
			elapsed := time.Since(startTime)
			remaining := limits.MoveTime - elapsed
			if remaining < elapsed {
				break
			}
		}
	}

	pv := e.mpvWorker.GetPV()
	e.mpvWorker.SetExcludedMoves(nil) // Clear exclusions

	return bestMove, bestScore, pv, bestDepth
}

// Stop stops the current search.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
}

// Clear clears the transposition table and other caches.
func (e *Engine) Clear() {
	e.tt.Clear()
	// Clear all worker orderers
	for _, w := range e.workers {
		w.orderer.Clear()
	}
	e.mpvWorker.orderer.Clear()
	e.sharedHistory.Clear()
}

// Perft performs a perft test (for debugging move generation).
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}

	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		undo := pos.MakeMove(move)
		nodes += e.Perft(pos, depth-1)
		pos.UnmakeMove(move, undo)
	}

	return nodes
}

// Evaluate returns the static evaluation of a position.
func (e *Engine) Evaluate(pos *board.Position) int {
	return Evaluate(pos)
}

// LoadNNUE loads NNUE network files.
func (e *Engine) LoadNNUE(bigPath, smallPath string) error {
	log.Printf("[Engine] Loading NNUE networks...")
	log.Printf("[Engine]   Big network: %s", bigPath)
	log.Printf("[Engine]   Small network: %s", smallPath)

	nets, err := sfnnue.LoadNetworks(bigPath, smallPath)
	if err != nil {
		log.Printf("[Engine] Failed to load NNUE: %v", err)
		return err
	}
	e.nnueNet = nets

	// Initialize NNUE evaluators for all workers
	for _, w := range e.workers {
		w.initNNUE(nets)
	}

	e.mpvWorker.initNNUE(nets)

	log.Printf("[Engine] NNUE networks loaded successfully")
	return nil
}

// SetUseNNUE enables or disables NNUE evaluation.
func (e *Engine) SetUseNNUE(use bool) {
	e.useNNUE = use
	for _, w := range e.workers {
		w.useNNUE = use
	}
	e.mpvWorker.useNNUE = use

	if use {
		log.Printf("[Engine] Evaluation mode: NNUE")
	} else {
		log.Printf("[Engine] Evaluation mode: Classical")
	}
}

// UseNNUE returns whether NNUE evaluation is enabled.
func (e *Engine) UseNNUE() bool {
	return e.useNNUE
}

// HasNNUE returns whether NNUE networks are loaded.
func (e *Engine) HasNNUE() bool {
	return e.nnueNet != nil
}

// ScoreToString converts a score to a human-readable string.
func ScoreToString(score int) string {
	if score > MateScore-100 {
		mateIn := (MateScore - score + 1) / 2
		return "Mate in " + itoa(mateIn)
	}
	if score < -MateScore+100 {
		mateIn := (MateScore + score + 1) / 2
		return "Mated in " + itoa(mateIn)
	}

	// Convert centipawns to pawns
	sign := ""
	if score < 0 {
		sign = "-"
		score = -score
	}
	pawns := score / 100
	centipawns := score % 100

	return sign + itoa(pawns) + "." + itoa(centipawns)
}

// Simple integer to string (avoid fmt import)
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + itoa(-n)
	}
	s := ""
	for n > 0 {
		s = string('0'+byte(n%10)) + s
		n /= 10
	}
	return s
}
