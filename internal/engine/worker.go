package engine

import (
	"log"
	"math"
	"sync/atomic"

	"github.com/corvidchess/corvid/internal/board"
	"github.com/corvidchess/corvid/internal/tablebase"
	"github.com/corvidchess/corvid/sfnnue"
)

// Search feature flags, kept as named constants (rather than inlining
// `true` at each call site) so a reduced build or a future tuning pass
// can flip one off without touching the node procedure's flow.
const (
	EnableRFP             = true
	EnableRazoring        = true
	EnableNMP             = true
	EnableProbcut         = true
	EnableFutilityPruning = true
	EnableSEEPruning      = true
	EnableLMP             = true
	EnableHistoryPruning  = true
	EnableSingularExt     = true
	EnableHindsightDepth  = true
)

// probcutDepth and probcutMargin parameterize ProbCut: depth
// floor and the centipawn margin by which the raised beta exceeds beta.
const (
	probcutDepth  = 6
	probcutMargin = 200
)

// lazyEvalMargin bounds quiescence's cheap material-only pre-check: a
// material score already a queen clear of either bound makes the full
// (possibly NNUE) evaluator's result a foregone conclusion.
const lazyEvalMargin = QueenValue

// evalLimit bounds any static evaluation, corrected or not, well away
// from the mate-score range.
const evalLimit = 10000

// clampEval bounds a correction-adjusted static eval to the legal range.
func clampEval(v int) int {
	if v > evalLimit {
		return evalLimit
	}
	if v < -evalLimit {
		return -evalLimit
	}
	return v
}

const log2 = 1 / math.Ln2

// lmrBaseReduction computes the base late-move-reduction ceiling,
// floor(log2(movesSearched) * log2(depth) / 4), before node-type and
// move-order adjustments are applied.
func lmrBaseReduction(depth, movesSearched int) int {
	if depth < 1 || movesSearched < 1 {
		return 0
	}
	return int(math.Log(float64(movesSearched)) * log2 * math.Log(float64(depth)) * log2 / 4)
}

// SearchStack stores per-ply search state for continuation history tracking.
// Ported from Stockfish's Stack structure.
type SearchStack struct {
	// Current move at this ply
	currentMove board.Move

	// Piece that moved at this ply
	movedPiece board.Piece

	// Destination square of the move
	moveTo board.Square

	// Pointer to continuation history table for this move's piece/to.
	// Descendant nodes fold the last three plies' tables into their
	// quiet-move ordering scores.
	continuationHistory *PieceToHistory

	// Reduction applied at this ply (for hindsight depth adjustment)
	reduction int

	// Count of beta cutoffs at this ply (for LMR scaling)
	cutoffCnt int

	// True when the move that reached this ply was a null move, so the
	// child node can refuse to try another one consecutively.
	nullMove bool
}

// Worker represents a search worker for parallel Lazy SMP search.
// Each worker has its own state but shares the transposition table and history.
type Worker struct {
	id int

	// Per-worker position copy
	pos *board.Position

	// Per-worker move ordering (killers and history are both per-worker)
	orderer *MoveOrderer

	// Per-worker search state
	nodes uint64
	pv    PVTable

	// Per-worker stacks
	undoStack   [MaxPly]board.UndoInfo
	evalStack   [MaxPly]int
	searchStack [MaxPly]SearchStack // For continuation history tracking

	// Per-worker position history for repetition detection
	// Pre-allocated buffer avoids allocation per move in negamax
	// Size: MaxPly (128) + 640 for root history = 768
	posHistoryBuffer [768]uint64
	posHistoryLen    int
	rootPosHashes    []uint64

	// Multi-PV support: moves to exclude at root
	excludedRootMoves []board.Move

	// Shared resources (pointers to engine's shared state)
	tt            *TranspositionTable
	pawnTable     *PawnTable
	sharedHistory *SharedHistory    // Shared history for Lazy SMP
	corrHistory   *CorrectionHistory // Correction history for eval adjustment
	stopFlag      *atomic.Bool

	// NNUE evaluation (per-worker for thread safety)
	useNNUE  bool
	nnueNet  *sfnnue.Networks
	nnueAcc  *sfnnue.AccumulatorStack

	// Pre-allocated buffer for active feature indices (avoids allocation per accumulator refresh)
	// Max 32 pieces on the board, but features can have more indices due to king-relative positions
	activeIndicesBuffer [64]int

	// Piece changes since the last accumulator push, for incremental NNUE updates
	pendingDelta pendingDelta

	// Tablebase probing
	tbProber     tablebase.Prober
	tbProbeDepth int // Minimum depth to probe TB (default: 1)

	// Communication channel for results
	resultCh chan<- WorkerResult

	// Current search depth (for result reporting)
	depth int

	// Optimism tracking: an optimism term scaled by the running average of
	// root move scores, folded into nnueEvaluate's material-side blend.
	optimism [2]int // Per-side optimism: [White=0, Black=1]
	avgScore int    // Running average of root move score (initialized to -Infinity)
}

// WorkerResult contains the result from a worker's search at a given depth.
type WorkerResult struct {
	WorkerID int
	Depth    int
	Score    int
	Move     board.Move
	PV       []board.Move
	Nodes    uint64
}

// NewWorker creates a new search worker.
func NewWorker(id int, tt *TranspositionTable, pawnTable *PawnTable, sharedHistory *SharedHistory, stopFlag *atomic.Bool) *Worker {
	return &Worker{
		id:            id,
		orderer:       NewMoveOrderer(),
		tt:            tt,
		pawnTable:     pawnTable,
		sharedHistory: sharedHistory,
		corrHistory:   NewCorrectionHistory(),
		stopFlag:      stopFlag,
	}
}

// SetTT swaps the transposition table this worker probes and stores into,
// used when the engine is resized via the Hash UCI option.
func (w *Worker) SetTT(tt *TranspositionTable) {
	w.tt = tt
}

// initNNUE initializes NNUE evaluation for this worker.
func (w *Worker) initNNUE(nets *sfnnue.Networks) {
	w.nnueNet = nets
	w.nnueAcc = sfnnue.NewAccumulatorStack()
}

// SetTablebase sets the tablebase prober for this worker.
func (w *Worker) SetTablebase(prober tablebase.Prober, probeDepth int) {
	w.tbProber = prober
	w.tbProbeDepth = probeDepth
	if w.tbProbeDepth < 1 {
		w.tbProbeDepth = 1
	}
}

// ID returns the worker's ID.
func (w *Worker) ID() int {
	return w.id
}

// Nodes returns the number of nodes searched by this worker.
func (w *Worker) Nodes() uint64 {
	return w.nodes
}

// Reset resets the worker for a new search.
func (w *Worker) Reset() {
	w.nodes = 0
	w.orderer.Clear()
	// Reset optimism tracking for new search
	w.avgScore = -Infinity // Will be set to first score
	w.optimism[0] = 0
	w.optimism[1] = 0
}

// UpdateOptimism calculates optimism for the current iteration based on avgScore.
// Should be called before each depth in iterative deepening.
// Ported from Stockfish search.cpp iterative deepening loop.
func (w *Worker) UpdateOptimism() {
	avg := w.avgScore
	if avg == -Infinity {
		// No score yet - use 0 optimism
		w.optimism[0] = 0
		w.optimism[1] = 0
		return
	}

	// Stockfish formula: 142 * avg / (abs(avg) + 91)
	us := 0 // White = 0, Black = 1
	if w.pos.SideToMove == board.Black {
		us = 1
	}

	absAvg := avg
	if absAvg < 0 {
		absAvg = -absAvg
	}
	w.optimism[us] = (142 * avg) / (absAvg + 91)
	w.optimism[1-us] = -w.optimism[us]
}

// UpdateAvgScore updates the running average score after each iteration.
// Ported from Stockfish search.cpp.
func (w *Worker) UpdateAvgScore(score int) {
	if w.avgScore == -Infinity {
		w.avgScore = score
	} else {
		// Running average: (score + avgScore) / 2
		w.avgScore = (score + w.avgScore) / 2
	}
}

// SetRootHistory sets the position history from the game (for repetition detection).
func (w *Worker) SetRootHistory(hashes []uint64) {
	w.rootPosHashes = make([]uint64, len(hashes))
	copy(w.rootPosHashes, hashes)
}

// SetResultChannel sets the channel for sending search results.
func (w *Worker) SetResultChannel(ch chan<- WorkerResult) {
	w.resultCh = ch
}

// SetExcludedMoves sets the moves to exclude at root (for Multi-PV).
func (w *Worker) SetExcludedMoves(moves []board.Move) {
	w.excludedRootMoves = moves
}

// InitSearch initializes the worker for a new search.
// IMPORTANT: pos must be a dedicated copy for this worker (not shared with other goroutines).
// The caller (engine.workerSearch) is responsible for providing an isolated copy.
func (w *Worker) InitSearch(pos *board.Position) {
	w.pos = pos // Use directly - caller provides dedicated copy

	// Reset NNUE accumulator for new search to avoid stale state
	if w.nnueAcc != nil {
		w.nnueAcc.Reset()
	}

	// Initialize position history using pre-allocated buffer (avoids allocation per search)
	// Copy root position hashes (game history) into buffer
	rootLen := len(w.rootPosHashes)
	if rootLen > 640 {
		// Truncate to most recent 640 hashes (extremely long games)
		rootLen = 640
		copy(w.posHistoryBuffer[:rootLen], w.rootPosHashes[len(w.rootPosHashes)-640:])
	} else {
		copy(w.posHistoryBuffer[:rootLen], w.rootPosHashes)
	}
	// Add current position hash
	w.posHistoryBuffer[rootLen] = w.pos.Hash
	w.posHistoryLen = rootLen + 1
}

// Pos returns the current position (for debugging).
func (w *Worker) Pos() *board.Position {
	return w.pos
}

// SearchDepth performs search at the given depth and returns the best move
// and score; when a result channel has been set it also sends the result there.
func (w *Worker) SearchDepth(depth, alpha, beta int) (board.Move, int) {
	w.depth = depth

	// DEBUG: Verify King exists at root
	if board.DebugMoveValidation {
		if w.pos.Pieces[board.White][board.King] == 0 {
			log.Printf("ROOT: White King MISSING at root! depth=%d hash=%x", depth, w.pos.Hash)
		}
		if w.pos.Pieces[board.Black][board.King] == 0 {
			log.Printf("ROOT: Black King MISSING at root! depth=%d hash=%x", depth, w.pos.Hash)
		}
	}

	score := w.negamax(depth, 0, alpha, beta, board.NoMove, board.NoMove, false)

	var bestMove board.Move
	if w.pv.length[0] > 0 {
		bestMove = w.pv.moves[0][0]
	}

	// Safety fallback: if no PV but legal moves exist, use first legal move
	if bestMove == board.NoMove && !w.stopFlag.Load() {
		moves := w.pos.GenerateLegalMoves()
		if moves.Len() > 0 {
			bestMove = moves.Get(0)
		}
	}

	// Send result if channel is set
	if w.resultCh != nil && !w.stopFlag.Load() {
		pv := make([]board.Move, w.pv.length[0])
		for i := 0; i < w.pv.length[0]; i++ {
			pv[i] = w.pv.moves[0][i]
		}
		w.resultCh <- WorkerResult{
			WorkerID: w.id,
			Depth:    depth,
			Score:    score,
			Move:     bestMove,
			PV:       pv,
			Nodes:    w.nodes,
		}
	}

	return bestMove, score
}

// evaluate returns the static evaluation using cached pawn structure or NNUE.
func (w *Worker) evaluate() int {
	if w.useNNUE && w.nnueNet != nil {
		return w.nnueEvaluate()
	}
	return EvaluateWithPawnTable(w.pos, w.pawnTable)
}

// stopped returns true if search should stop.
func (w *Worker) stopped() bool {
	return w.stopFlag.Load()
}

// GetPV returns the principal variation from the last search.
func (w *Worker) GetPV() []board.Move {
	pv := make([]board.Move, w.pv.length[0])
	for i := 0; i < w.pv.length[0]; i++ {
		pv[i] = w.pv.moves[0][i]
	}
	return pv
}

// isExcludedRootMove checks if a move is in the excluded list (for Multi-PV).
func (w *Worker) isExcludedRootMove(move board.Move) bool {
	for _, excluded := range w.excludedRootMoves {
		if move == excluded {
			return true
		}
	}
	return false
}

// isDraw checks for draw by repetition or 50-move rule.
func (w *Worker) isDraw() bool {
	// 50-move rule
	if w.pos.HalfMoveClock >= 100 {
		return true
	}

	// Insufficient material
	if w.pos.IsInsufficientMaterial() {
		return true
	}

	// Threefold repetition (use pre-allocated buffer)
	if w.posHistoryLen > 0 {
		currentHash := w.pos.Hash
		count := 0
		for i := 0; i < w.posHistoryLen; i++ {
			if w.posHistoryBuffer[i] == currentHash {
				count++
				if count >= 2 {
					return true
				}
			}
		}
	}

	return false
}

// negamax implements the negamax algorithm with alpha-beta pruning.
// excludedMove is used for singular extension search - if not NoMove, this move will be skipped.
// cutNode indicates expected node type: true if we expect a beta cutoff (most children are cut-nodes).
func (w *Worker) negamax(depth, ply int, alpha, beta int, prevMove, excludedMove board.Move, cutNode bool) int {
	// Bounds check to prevent array overflow (can happen with high depth + extensions)
	// Use MaxPly-1 because we access pv.length[ply+1] inside this function
	if ply >= MaxPly-1 {
		return w.evaluate()
	}

	// Check for stop signal periodically; the cancellation contract is
	// that a raised flag is observed within 256 nodes.
	if w.nodes&255 == 0 && w.stopFlag.Load() {
		return 0
	}

	w.nodes++

	// DEBUG: Comprehensive position validation at EVERY ply
	if board.DebugMoveValidation {
		us := w.pos.SideToMove
		// Check that pieces for "us" are ACTUALLY in Occupied[us]
		for pt := board.Pawn; pt <= board.King; pt++ {
			pieceBB := w.pos.Pieces[us][pt]
			if pieceBB&^w.pos.Occupied[us] != 0 {
				log.Printf("NEGAMAX ENTRY CORRUPT: %v %v pieces not in Occupied[%v]! ply=%d depth=%d hash=%x prevMove=%v",
					us, pt, us, ply, depth, w.pos.Hash, prevMove)
				log.Printf("  PieceBB=%x Occupied[%v]=%x Diff=%x",
					pieceBB, us, w.pos.Occupied[us], pieceBB&^w.pos.Occupied[us])
			}
		}
		// Check that Occupied[us] matches sum of our pieces
		var ourSum board.Bitboard
		for pt := board.Pawn; pt <= board.King; pt++ {
			ourSum |= w.pos.Pieces[us][pt]
		}
		if ourSum != w.pos.Occupied[us] {
			log.Printf("NEGAMAX ENTRY CORRUPT: %v Occupied mismatch! ply=%d depth=%d hash=%x prevMove=%v",
				us, ply, depth, w.pos.Hash, prevMove)
			log.Printf("  Sum=%x Occupied=%x", ourSum, w.pos.Occupied[us])
		}
	}

	// Initialize PV length for this ply
	w.pv.length[ply] = ply

	// Check for draw
	if ply > 0 && w.isDraw() {
		return 0
	}

	// Mate-distance pruning: neither side can improve on a
	// mate already found closer to the root, so tighten the window to
	// the best/worst score reachable at this ply and cut off early if
	// that alone closes it.
	if alpha < -MateScore+ply {
		alpha = -MateScore + ply
	}
	if beta > MateScore-ply-1 {
		beta = MateScore - ply - 1
	}
	if alpha >= beta {
		return alpha
	}

	// Tablebase probing (only in endgame positions)
	if ply > 0 && w.tbProber != nil && depth >= w.tbProbeDepth {
		pieceCount := tablebase.CountPieces(w.pos)
		if pieceCount <= w.tbProber.MaxPieces() {
			tbResult := w.tbProber.Probe(w.pos)
			if tbResult.Found {
				tbScore := tablebase.WDLToScore(tbResult.WDL, ply)

				// Determine TT flag based on WDL
				var ttFlag TTFlag
				switch tbResult.WDL {
				case tablebase.WDLWin, tablebase.WDLCursedWin:
					// Winning - this is a lower bound (we might find better)
					if tbScore >= beta {
						// Store in TT and return
						w.tt.Store(w.pos.Hash, MaxPly, AdjustScoreToTT(tbScore, ply), TTLowerBound, board.NoMove, true, tbScore, pieceCount)
						return tbScore
					}
					ttFlag = TTLowerBound
					if tbScore > alpha {
						alpha = tbScore
					}
				case tablebase.WDLLoss, tablebase.WDLBlessedLoss:
					// Losing - this is an upper bound
					if tbScore <= alpha {
						w.tt.Store(w.pos.Hash, MaxPly, AdjustScoreToTT(tbScore, ply), TTUpperBound, board.NoMove, true, tbScore, pieceCount)
						return tbScore
					}
					ttFlag = TTUpperBound
					if tbScore < beta {
						beta = tbScore
					}
				default:
					// Draw - exact score
					w.tt.Store(w.pos.Hash, MaxPly, AdjustScoreToTT(tbScore, ply), TTExact, board.NoMove, true, tbScore, pieceCount)
					return tbScore
				}
				_ = ttFlag // Used for potential future improvements
			}
		}
	}

	// Probe transposition table
	var ttMove board.Move
	ttPv := false // Track if TT indicates this is a PV node
	ttEntry, found := w.tt.Probe(w.pos.Hash)
	if found {
		ttMove = ttEntry.BestMove
		ttPv = ttEntry.IsPV

		// Validate TT move immediately (like Stockfish's movepick.cpp)
		// TT moves can be corrupted due to hash collisions or race conditions
		if ttMove != board.NoMove && !w.pos.PseudoLegal(ttMove) {
			ttMove = board.NoMove
		}

		// Multi-PV: don't use TT cutoffs at root if TT move is excluded
		ttCutoffAllowed := ply > 0 || !w.isExcludedRootMove(ttMove)

		if int(ttEntry.Depth) >= depth && ttCutoffAllowed {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				if ply == 0 && ttMove != board.NoMove {
					w.pv.moves[0][0] = ttMove
					w.pv.length[0] = 1
				}
				return score
			case TTLowerBound:
				if score > alpha {
					alpha = score
				}
			case TTUpperBound:
				if score < beta {
					beta = score
				}
			}
			if alpha >= beta {
				if ply == 0 && ttMove != board.NoMove {
					w.pv.moves[0][0] = ttMove
					w.pv.length[0] = 1
				}
				return score
			}
		}
	}

	// Quiescence search at depth 0
	if depth <= 0 {
		return w.quiescence(ply, alpha, beta)
	}

	// Check if in check
	inCheck := w.pos.InCheck()

	// Internal iterative reduction: on PV nodes at depth >= 5
	// with no TT move and not in check, shave one ply rather than running a
	// recursive reduced search to find one.
	if depth >= 5 && alpha < beta-1 && ttMove == board.NoMove && !inCheck {
		depth--
	}

	// Check extension
	extension := 0
	if inCheck {
		extension = 1
	}

	// Static evaluation for pruning decisions. Reuse the TT-stored raw eval
	// when this position was already probed above, instead of re-running
	// the (possibly NNUE) evaluator.
	var rawEval int
	if found {
		rawEval = int(ttEntry.StaticEval)
	} else {
		rawEval = w.evaluate()
	}
	// Apply correction history adjustment, clamped to the legal eval range
	correction := w.corrHistory.Get(w.pos)
	staticEval := clampEval(rawEval + correction)
	w.evalStack[ply] = staticEval

	// Improving heuristic
	improving := false
	if ply >= 2 {
		improving = staticEval > w.evalStack[ply-2]
	}

	// opponentWorsening heuristic (Stockfish search.cpp:751)
	// True if opponent's position is worsening (our eval improved vs their last eval)
	opponentWorsening := false
	if ply >= 1 {
		opponentWorsening = staticEval > -w.evalStack[ply-1]
	}

	// Hindsight depth adjustment (Stockfish search.cpp:754-757)
	// Adjust depth based on how the previous ply's LMR prediction turned out
	if EnableHindsightDepth && ply >= 1 {
		priorReduction := w.searchStack[ply-1].reduction
		// If we reduced a lot and opponent isn't getting worse, search deeper
		if priorReduction >= 3 && !opponentWorsening {
			depth++
		}
		// If we reduced and position eval sum suggests stability, search shallower
		if priorReduction >= 2 && depth >= 2 {
			evalSum := staticEval + w.evalStack[ply-1]
			if evalSum > 173 {
				depth--
			}
		}
	}

	// Initialize cutoffCnt for grandchild nodes (Stockfish search.cpp:699)
	if ply+2 < MaxPly {
		w.searchStack[ply+2].cutoffCnt = 0
	}

	// Reverse Futility Pruning
	// margin = 150 * (depth - !opponentHasEasyCapture); skip when beta is a mate score
	if EnableRFP && !inCheck && depth < 9 && ply > 0 && !ttPv && abs(beta) < MateScore-100 {
		easyCaptureFactor := 0
		if !w.hasEasyCapture(w.pos.SideToMove.Other()) {
			easyCaptureFactor = 1
		}
		rfpMargin := 150 * (depth - easyCaptureFactor)
		if staticEval-rfpMargin >= beta {
			return (staticEval + beta) / 2
		}
	}

	// Razoring: margin = 200 * depth; skip when alpha is a mate score
	if EnableRazoring && !inCheck && ply > 0 && !ttPv && abs(alpha) < MateScore-100 {
		razorMargin := 200 * depth
		if staticEval+razorMargin < alpha {
			score := w.quiescence(ply, alpha, beta)
			if score <= alpha {
				return score
			}
		}
	}

	// Null move pruning: depth > 2, the previous move wasn't
	// itself a null move, the static eval already clears beta, and the side
	// to move has material to spare. Reduction is 2 + improving + depth/4.
	wasNull := ply > 0 && w.searchStack[ply-1].nullMove
	if EnableNMP && !inCheck && depth > 2 && ply > 0 && !wasNull && staticEval >= beta && w.pos.HasNonPawnMaterial() {
		improvingBit := 0
		if improving {
			improvingBit = 1
		}
		R := 2 + improvingBit + depth/4
		if R > depth-1 {
			R = depth - 1
		}

		// Clear this ply's move fields so descendants don't pick up a
		// stale sibling line's continuation-history table through the
		// null move.
		w.searchStack[ply].nullMove = true
		w.searchStack[ply].currentMove = board.NoMove
		w.searchStack[ply].movedPiece = board.NoPiece
		w.searchStack[ply].continuationHistory = nil
		nullUndo := w.pos.MakeNullMove()
		nullScore := -w.negamax(depth-1-R, ply+1, -beta, -beta+1, board.NoMove, board.NoMove, !cutNode)
		w.pos.UnmakeNullMove(nullUndo)
		w.searchStack[ply].nullMove = false

		if nullScore >= beta {
			if nullScore > MateScore-MaxPly {
				nullScore = beta
			}
			return nullScore
		}
	}

	// ProbCut: at depth >= 6, not in check, not in a mate
	// line, try non-losing captures with a raised beta. A capture whose
	// shallow (quiescence) score fails high at the raised beta is
	// confirmed with a reduced full search before being trusted as a
	// cutoff — the shallow search alone is only a candidate filter.
	if EnableProbcut && depth >= probcutDepth && !inCheck && ply > 0 && abs(beta) < MateScore-100 {
		probcutBeta := beta + probcutMargin
		confirmDepth := depth - 4
		if confirmDepth < 1 {
			confirmDepth = 1
		}

		captures := w.pos.GenerateCaptures()
		for i := 0; i < captures.Len(); i++ {
			capture := captures.Get(i)
			if SEE(w.pos, capture) < 0 {
				continue
			}

			w.recordAccumulatorDelta(capture)
			w.nnuePush()
			undo := w.pos.MakeMove(capture)
			if !undo.Valid {
				w.pos.UnmakeMove(capture, undo)
				w.nnuePop()
				continue
			}
			w.tt.Prefetch(w.pos.Hash)

			shallow := -w.quiescence(ply+1, -probcutBeta, -probcutBeta+1)
			confirmed := shallow
			if shallow >= probcutBeta {
				confirmed = -w.negamax(confirmDepth, ply+1, -probcutBeta, -probcutBeta+1, capture, board.NoMove, !cutNode)
			}
			w.pos.UnmakeMove(capture, undo)
			w.nnuePop()

			if confirmed >= probcutBeta {
				return confirmed
			}
		}
	}

	// Futility pruning flag, shared with the move-loop check below:
	// margin = 150 * (depth + 1).
	pruneQuietMoves := false
	if EnableFutilityPruning && depth <= 10 && !inCheck && ply > 0 {
		futilityMargin := 150 * (depth + 1)
		if staticEval+futilityMargin <= alpha {
			pruneQuietMoves = true
		}
	}

	// Singular extension candidate: at depth >= 7 with a TT
	// move backed by a sufficiently deep exact/lower-bound entry, search
	// everything but that move at a reduced depth in the narrow window
	// (tt_eval - 3d/2, tt_eval - 3d/2 + 1). If every alternative fails
	// low, the TT move is singular and gets an extra ply; if an
	// alternative fails high above the outer beta on a non-PV node, that
	// score is itself a valid cutoff (multi-cut).
	singularExtension := 0
	if EnableSingularExt && depth >= 7 && ttMove != board.NoMove && excludedMove == board.NoMove && found &&
		int(ttEntry.Depth) >= depth-2 && (ttEntry.Flag == TTLowerBound || ttEntry.Flag == TTExact) {
		ttValue := AdjustScoreFromTT(int(ttEntry.Score), ply)
		singularBeta := ttValue - 3*depth/2
		singularDepth := (depth - 1) / 2

		singularScore := w.negamax(singularDepth, ply, singularBeta-1, singularBeta, prevMove, ttMove, cutNode)

		isPvNode := alpha < beta-1
		if singularScore < singularBeta {
			singularExtension = 1
		} else if singularScore >= beta && !isPvNode {
			return singularScore
		}
	}

	// Generate moves
	moves := w.pos.GenerateLegalMoves()

	// DEBUG: Verify KingSquare matches King bitboard after move generation
	if board.DebugMoveValidation {
		whiteKingBB := w.pos.Pieces[board.White][board.King]
		blackKingBB := w.pos.Pieces[board.Black][board.King]
		whiteKingSq := whiteKingBB.LSB()
		blackKingSq := blackKingBB.LSB()
		if w.pos.KingSquare[board.White] != whiteKingSq {
			log.Printf("KINGSQ MISMATCH after movegen! White cached=%v actual=%v ply=%d depth=%d hash=%x",
				w.pos.KingSquare[board.White], whiteKingSq, ply, depth, w.pos.Hash)
		}
		if w.pos.KingSquare[board.Black] != blackKingSq {
			log.Printf("KINGSQ MISMATCH after movegen! Black cached=%v actual=%v ply=%d depth=%d hash=%x",
				w.pos.KingSquare[board.Black], blackKingSq, ply, depth, w.pos.Hash)
		}
	}

	// Checkmate or stalemate
	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	// Score and sort moves. Quiet-move scores fold in the continuation
	// history of the last three plies of the current line.
	var contHist [3]*PieceToHistory
	for back := 1; back <= 3; back++ {
		if ply >= back {
			contHist[back-1] = w.searchStack[ply-back].continuationHistory
		}
	}
	scores := w.orderer.ScoreMovesWithCounter(w.pos, moves, ply, ttMove, prevMove, contHist)

	bestScore := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound
	movesSearched := 0

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		// Multi-PV: skip excluded moves at root
		if ply == 0 && w.isExcludedRootMove(move) {
			continue
		}

		// Singular extension: skip the excluded move
		if move == excludedMove {
			continue
		}

		isCapture := move.IsCapture(w.pos)
		isPromotion := move.IsPromotion()
		isPvNode := alpha < beta-1

		// Futility pruning (in move loop)
		if EnableFutilityPruning && pruneQuietMoves && !isCapture && !isPromotion && bestMove != board.NoMove {
			continue
		}

		// Move-loop pruning: active once a move has already
		// been searched, on non-PV nodes, when the side to move has
		// material to spare, and while bestScore isn't already a losing
		// mate line.
		pruneOK := movesSearched > 0 && !isPvNode && !inCheck && w.pos.HasNonPawnMaterial() && bestScore > -MateScore+MaxPly
		if pruneOK {
			// SEE-based pruning: -100*d for captures, -25*d^2 for quiets.
			if EnableSEEPruning {
				margin := -25 * depth * depth
				if isCapture {
					margin = -100 * depth
				}
				if seeExchange(w.pos, move) < margin {
					continue
				}
			}

			// Late move pruning: 1.5+0.5*d^2 when the static eval is
			// worsening, 3+1.5*d^2 when it's improving.
			if EnableLMP && !isCapture && !isPromotion && move != ttMove {
				threshold := 1.5 + 0.5*float64(depth*depth)
				if improving {
					threshold = 3 + 1.5*float64(depth*depth)
				}
				if float64(movesSearched) >= threshold {
					continue
				}
			}

			// History pruning: depth < 4, quiet_history < -3000*d, and the
			// move is neither a killer nor a counter-move.
			if EnableHistoryPruning && depth < 4 && !isCapture && !isPromotion && move != ttMove {
				isKiller := move == w.orderer.killers[ply][0] || move == w.orderer.killers[ply][1]
				isCounter := prevMove != board.NoMove && move == w.orderer.GetCounterMove(prevMove, w.pos)
				if !isKiller && !isCounter && w.orderer.GetHistoryScore(move) < -3000*depth {
					continue
				}
			}
		}

		// Occupancy invariants are only re-derived in debug mode; in release
		// runs the board is trusted.
		if board.DebugMoveValidation {
			var whiteSum, blackSum board.Bitboard
			for pt := board.Pawn; pt <= board.King; pt++ {
				whiteSum |= w.pos.Pieces[board.White][pt]
				blackSum |= w.pos.Pieces[board.Black][pt]
			}
			if whiteSum != w.pos.Occupied[board.White] || blackSum != w.pos.Occupied[board.Black] ||
				(whiteSum|blackSum) != w.pos.AllOccupied {
				log.Fatalf("PRE-MOVE: occupancy mismatch! ply=%d depth=%d move=%v hash=%x\n%s",
					ply, depth, move, w.pos.Hash, w.pos.String())
			}
		}

		// Make move
		movingPiece := w.pos.PieceAt(move.From())
		moveTo := move.To()

		// Defensive skip: validate move matches current side to move
		// This catches position corruption or stale move data
		if movingPiece == board.NoPiece || movingPiece.Color() != w.pos.SideToMove {
			if board.DebugMoveValidation {
				log.Printf("ERROR: Invalid move! SideToMove=%v, PieceColor=%v, Move=%v, Ply=%d, Depth=%d, Hash=%x",
					w.pos.SideToMove, movingPiece.Color(), move, ply, depth, w.pos.Hash)
			}
			continue
		}

		w.recordAccumulatorDelta(move) // Track piece changes for incremental NNUE
		w.nnuePush()
		w.undoStack[ply] = w.pos.MakeMove(move)
		if !w.undoStack[ply].Valid {
			// Move is illegal - undo the position change and try next move
			w.pos.UnmakeMove(move, w.undoStack[ply])
			w.nnuePop()
			continue
		}

		// Child hash is final now; pull its cluster toward the cache before
		// the recursive call probes it.
		w.tt.Prefetch(w.pos.Hash)

		// Store move info in search stack for continuation history
		w.searchStack[ply].currentMove = move
		w.searchStack[ply].movedPiece = movingPiece
		w.searchStack[ply].moveTo = moveTo
		w.searchStack[ply].continuationHistory = w.orderer.GetContinuationHistoryTable(movingPiece, moveTo)

		w.posHistoryBuffer[w.posHistoryLen] = w.pos.Hash
		w.posHistoryLen++
		movesSearched++

		var score int
		newDepth := depth - 1 + extension

		// Apply singular extension (positive) or negative extension (reduction)
		if move == ttMove && singularExtension != 0 {
			newDepth += singularExtension
		}

		// Late move reduction: later quiet moves get a
		// null-window search at a reduced depth, R capped at
		// floor(log2(m)*log2(d)/4) and nudged by node type and move-order
		// hints, re-searched at full depth/window on fail-high or PV.
		if movesSearched > 4 && depth >= 3 && !inCheck && !isCapture && !isPromotion {
			reduction := lmrBaseReduction(depth, movesSearched)

			if cutNode {
				reduction++
			}
			if !improving {
				reduction++
			}
			isKiller := move == w.orderer.killers[ply][0] || move == w.orderer.killers[ply][1]
			if isKiller {
				reduction--
			}
			if prevMove != board.NoMove && move == w.orderer.GetCounterMove(prevMove, w.pos) {
				reduction--
			}
			isPvNode := alpha < beta-1
			if isPvNode {
				reduction--
			}

			if reduction < 0 {
				reduction = 0
			}

			reducedDepth := newDepth - reduction
			if reducedDepth < 1 {
				reducedDepth = 1
			}

			w.searchStack[ply].reduction = reduction

			score = -w.negamax(reducedDepth, ply+1, -alpha-1, -alpha, move, board.NoMove, !cutNode)

			if score > alpha && reducedDepth < newDepth {
				score = -w.negamax(newDepth, ply+1, -alpha-1, -alpha, move, board.NoMove, !cutNode)
			}
			if score > alpha && score < beta {
				score = -w.negamax(newDepth, ply+1, -beta, -alpha, move, board.NoMove, false)
			}
		} else if movesSearched == 1 {
			// First move: PV node, cutNode=false
			score = -w.negamax(newDepth, ply+1, -beta, -alpha, move, board.NoMove, false)
		} else {
			// PVS: null window search with flipped cutNode
			score = -w.negamax(newDepth, ply+1, -alpha-1, -alpha, move, board.NoMove, !cutNode)
			if score > alpha && score < beta {
				// Re-search with full window: PV-like, cutNode=false
				score = -w.negamax(newDepth, ply+1, -beta, -alpha, move, board.NoMove, false)
			}
		}

		w.posHistoryLen--
		w.pos.UnmakeMove(move, w.undoStack[ply])
		w.nnuePop()

		// In debug mode, make/unmake must be a perfect inverse: the restored
		// hash has to equal the incrementally-maintained one, and occupancy
		// has to re-derive from the piece bitboards. A mismatch means the
		// board code is broken and every result after it is garbage.
		if board.DebugMoveValidation {
			if w.pos.Hash != w.undoStack[ply].Hash {
				log.Fatalf("HASH MISMATCH after UnmakeMove: expected=%x got=%x ply=%d move=%v depth=%d\n%s",
					w.undoStack[ply].Hash, w.pos.Hash, ply, move, depth, w.pos.String())
			}
			var whiteOcc, blackOcc board.Bitboard
			for pt := board.Pawn; pt <= board.King; pt++ {
				whiteOcc |= w.pos.Pieces[board.White][pt]
				blackOcc |= w.pos.Pieces[board.Black][pt]
			}
			if w.pos.Occupied[board.White] != whiteOcc || w.pos.Occupied[board.Black] != blackOcc ||
				w.pos.AllOccupied != (whiteOcc|blackOcc) {
				log.Fatalf("occupancy mismatch after UnmakeMove: ply=%d move=%v\n%s", ply, move, w.pos.String())
			}
		}

		if w.stopFlag.Load() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score
				flag = TTExact

				w.pv.moves[ply][ply] = move
				for j := ply + 1; j < w.pv.length[ply+1]; j++ {
					w.pv.moves[ply][j] = w.pv.moves[ply+1][j]
				}
				w.pv.length[ply] = w.pv.length[ply+1]
			}
		}

		// Beta cutoff
		if score >= beta {
			// Update cutoffCnt (Stockfish search.cpp:1375)
			// Increment when extension < 2 or at PV nodes
			isPvNode := alpha < beta-1
			if extension < 2 || isPvNode {
				w.searchStack[ply].cutoffCnt++
			}

			if ply == 0 && bestMove != board.NoMove {
				w.pv.moves[0][0] = bestMove
				w.pv.length[0] = 1
			}

			w.tt.Store(w.pos.Hash, depth, AdjustScoreToTT(score, ply), TTLowerBound, bestMove, false, rawEval, countPieces(w.pos))

			if isCapture {
				attackerPiece := w.pos.PieceAt(move.From())
				var capturedType board.PieceType
				if move.IsEnPassant() {
					capturedType = board.Pawn
				} else {
					capturedPiece := w.pos.PieceAt(move.To())
					if capturedPiece != board.NoPiece {
						capturedType = capturedPiece.Type()
					}
				}
				w.orderer.UpdateCaptureHistory(attackerPiece, move.To(), capturedType, depth, true)
			} else {
				w.orderer.UpdateKillers(move, ply)
				w.orderer.UpdateHistory(move, depth, true)
				// Update low-ply history for better root move ordering
				w.orderer.UpdateLowPlyHistory(move, ply, depth, true)
				// Also update shared history for Lazy SMP collective learning
				w.sharedHistory.Update(int(move.From()), int(move.To()), depth)
				w.orderer.UpdateCounterMove(prevMove, move, w.pos)

				if prevMove != board.NoMove {
					prevPiece := w.pos.PieceAt(prevMove.To())
					movePiece := w.pos.PieceAt(move.To())
					w.orderer.UpdateCountermoveHistory(prevMove, move, prevPiece, movePiece, depth, true)
				}

				// Update continuation history for multiple plies back (Stockfish style)
				// This learns move pair patterns at different ply distances
				w.updateContinuationHistories(ply, movingPiece, moveTo, depth, true)
			}

			return score
		}
	}

	// Safety fallback
	if bestMove == board.NoMove && moves.Len() > 0 {
		bestMove = moves.Get(0)
		if bestScore == -Infinity {
			bestScore = alpha
		}
	}

	// Update correction history when we have an exact score
	// This helps the engine learn from eval errors
	if flag == TTExact && !inCheck && depth >= 2 {
		w.corrHistory.Update(w.pos, bestScore, rawEval, depth)
	}

	// isPV = true when we found an exact score (improved alpha without beta cutoff)
	isPV := flag == TTExact
	w.tt.Store(w.pos.Hash, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove, isPV, rawEval, countPieces(w.pos))

	return bestScore
}

// quiescence searches captures to avoid horizon effect.
func (w *Worker) quiescence(ply int, alpha, beta int) int {
	return w.quiescenceInternal(ply, 0, alpha, beta)
}

// quiescenceInternal is the internal quiescence search with qPly tracking.
// Fixed to match Stockfish: TT probe, proper in-check handling, SEE pruning.
func (w *Worker) quiescenceInternal(ply, qPly int, alpha, beta int) int {
	const maxQuiescencePly = 32
	if ply >= MaxPly || qPly > maxQuiescencePly {
		return w.evaluate()
	}

	if w.stopFlag.Load() {
		return 0
	}

	w.nodes++

	if ply > 0 && w.isDraw() {
		return 0
	}

	originalAlpha := alpha

	// TT Probe - critical for QS performance
	var ttMove board.Move
	ttEntry, ttHit := w.tt.Probe(w.pos.Hash)
	if ttHit {
		ttMove = ttEntry.BestMove
		// Validate TT move (can be corrupted by hash collision)
		if ttMove != board.NoMove && !w.pos.PseudoLegal(ttMove) {
			ttMove = board.NoMove
		}
		// TT cutoff - depth >= 0 is sufficient for QS
		if ttEntry.Depth >= 0 {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				return score
			case TTLowerBound:
				if score >= beta {
					return score
				}
			case TTUpperBound:
				if score <= alpha {
					return score
				}
			}
		}
	}

	// Check detection - critical: NO standing pat when in check
	inCheck := w.pos.InCheck()

	var standPat, bestValue, rawEval int
	var bestMove board.Move

	if inCheck {
		// When in check, we MUST make a move - no standing pat allowed
		// Start with worst possible score (will be checkmate if no legal moves)
		bestValue = -MateScore + ply
		standPat = bestValue
		rawEval = bestValue
	} else {
		// Lazy evaluation cutoff (only when not in check)
		lazyEval := EvaluateMaterial(w.pos)
		if lazyEval-lazyEvalMargin >= beta {
			return beta
		}
		if lazyEval+lazyEvalMargin <= alpha {
			return alpha
		}

		// Stand pat - can choose not to capture; reuse the TT-stored raw eval
		// when available instead of re-running the evaluator, then apply
		// the same correction-history adjustment negamax's static eval gets.
		if ttHit {
			rawEval = int(ttEntry.StaticEval)
		} else {
			rawEval = w.evaluate()
		}
		standPat = clampEval(rawEval + w.corrHistory.Get(w.pos))
		bestValue = standPat

		if standPat >= beta {
			// Store stand pat cutoff in TT
			w.tt.Store(w.pos.Hash, 0, AdjustScoreToTT(standPat, ply), TTLowerBound, board.NoMove, false, rawEval, countPieces(w.pos))
			return beta
		}

		if standPat > alpha {
			alpha = standPat
		}

		// Big delta pruning - if even capturing a queen can't raise alpha, give up
		if standPat+QueenValue < alpha {
			return alpha
		}
	}

	// Move generation: evasions when in check; at the first quiescence ply
	// captures are augmented with quiet checking moves so a mating attack
	// just past the horizon is still seen; deeper plies settle for captures.
	var moves *board.MoveList
	switch {
	case inCheck:
		moves = w.pos.GenerateLegalMoves()
	case qPly == 0:
		moves = w.pos.GenerateCapturesAndChecks()
	default:
		moves = w.pos.GenerateCaptures()
	}

	// Move ordering with TT move priority
	scores := w.orderer.ScoreMoves(w.pos, moves, ply, ttMove)

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		// Pruning only when NOT in check and move is a capture
		if !inCheck && move.IsCapture(w.pos) {
			captureValue := qsCaptureValue(w.pos, move)
			futilityBase := standPat + 351 // Stockfish constant

			// Delta pruning: skip if even this capture can't reach alpha
			if standPat+captureValue+200 < alpha && !move.IsPromotion() {
				if captureValue+futilityBase > bestValue {
					bestValue = captureValue + futilityBase
				}
				continue
			}

			// SEE pruning: skip losing captures
			seeValue := SEE(w.pos, move)
			if seeValue < 0 {
				continue
			}

			// SEE futility: if base + SEE can't reach alpha, skip
			if futilityBase+seeValue <= alpha {
				if futilityBase > bestValue {
					bestValue = futilityBase
				}
				continue
			}
		}

		w.recordAccumulatorDelta(move)
		w.nnuePush()
		undo := w.pos.MakeMove(move)
		if !undo.Valid {
			w.pos.UnmakeMove(move, undo)
			w.nnuePop()
			continue
		}
		w.tt.Prefetch(w.pos.Hash)

		score := -w.quiescenceInternal(ply+1, qPly+1, -beta, -alpha)
		w.pos.UnmakeMove(move, undo)
		w.nnuePop()

		if score > bestValue {
			bestValue = score
			bestMove = move

			if score > alpha {
				alpha = score
				if score >= beta {
					break // Beta cutoff
				}
			}
		}
	}

	// Checkmate detection: if in check and no legal moves found
	if inCheck && bestValue == -MateScore+ply {
		return -MateScore + ply // Checkmate
	}

	// Store result in TT
	var ttFlag TTFlag
	if bestValue >= beta {
		ttFlag = TTLowerBound
	} else if bestValue > originalAlpha {
		ttFlag = TTExact
	} else {
		ttFlag = TTUpperBound
	}
	w.tt.Store(w.pos.Hash, 0, AdjustScoreToTT(bestValue, ply), ttFlag, bestMove, false, rawEval, countPieces(w.pos))

	return bestValue
}

// qsCaptureValue returns the material value of a capture for QS pruning.
func qsCaptureValue(pos *board.Position, move board.Move) int {
	var value int
	if move.IsEnPassant() {
		value = PawnValue
	} else {
		captured := pos.PieceAt(move.To())
		if captured != board.NoPiece {
			value = pieceValues[captured.Type()]
		}
	}
	if move.IsPromotion() {
		value += pieceValues[move.Promotion()] - PawnValue
	}
	return value
}

// attacksByPawns, attacksByKnights, attacksByBishops, attacksByRooks, and
// attacksByQueens build a per-piece-type attack map for color, used below to
// assemble the hanging/easy-capture heuristics feeding reverse futility
// pruning.
func attacksByPawns(pos *board.Position, color board.Color) board.Bitboard {
	pawns := pos.Pieces[color][board.Pawn]
	if color == board.White {
		return pawns.NorthEast() | pawns.NorthWest()
	}
	return pawns.SouthEast() | pawns.SouthWest()
}

func attacksByKnights(pos *board.Position, color board.Color) board.Bitboard {
	var attacks board.Bitboard
	for knights := pos.Pieces[color][board.Knight]; knights != 0; {
		attacks |= board.KnightAttacks(knights.PopLSB())
	}
	return attacks
}

func attacksByBishops(pos *board.Position, color board.Color, occupied board.Bitboard) board.Bitboard {
	var attacks board.Bitboard
	for bishops := pos.Pieces[color][board.Bishop]; bishops != 0; {
		attacks |= board.BishopAttacks(bishops.PopLSB(), occupied)
	}
	return attacks
}

func attacksByRooks(pos *board.Position, color board.Color, occupied board.Bitboard) board.Bitboard {
	var attacks board.Bitboard
	for rooks := pos.Pieces[color][board.Rook]; rooks != 0; {
		attacks |= board.RookAttacks(rooks.PopLSB(), occupied)
	}
	return attacks
}

func attacksByQueens(pos *board.Position, color board.Color, occupied board.Bitboard) board.Bitboard {
	var attacks board.Bitboard
	for queens := pos.Pieces[color][board.Queen]; queens != 0; {
		attacks |= board.QueenAttacks(queens.PopLSB(), occupied)
	}
	return attacks
}

// hasEasyCapture reports whether color has a capture available that wins
// material outright: an enemy piece that is hanging, or a queen/rook attacked
// by a strictly less valuable piece. Used by reverse futility pruning's
// opponent-has-no-easy-capture factor.
func (w *Worker) hasEasyCapture(color board.Color) bool {
	pos := w.pos
	them := color.Other()
	occupied := pos.AllOccupied

	ourPawnAttacks := attacksByPawns(pos, color)
	ourKnightAttacks := attacksByKnights(pos, color)
	ourBishopAttacks := attacksByBishops(pos, color, occupied)
	ourRookAttacks := attacksByRooks(pos, color, occupied)
	ourQueenAttacks := attacksByQueens(pos, color, occupied)
	ourKingAttacks := board.KingAttacks(pos.KingSquare[color])

	ourAttacks := ourPawnAttacks | ourKnightAttacks | ourBishopAttacks |
		ourRookAttacks | ourQueenAttacks | ourKingAttacks

	theirPawnAttacks := attacksByPawns(pos, them)
	theirKnightAttacks := attacksByKnights(pos, them)
	theirBishopAttacks := attacksByBishops(pos, them, occupied)
	theirRookAttacks := attacksByRooks(pos, them, occupied)
	theirQueenAttacks := attacksByQueens(pos, them, occupied)
	theirKingAttacks := board.KingAttacks(pos.KingSquare[them])

	theirDefenses := theirPawnAttacks | theirKnightAttacks | theirBishopAttacks |
		theirRookAttacks | theirQueenAttacks | theirKingAttacks

	theirPieces := pos.Occupied[them] &^ board.SquareBB(pos.KingSquare[them])

	if theirPieces&ourAttacks&^theirDefenses != 0 {
		return true
	}

	queens := pos.Pieces[them][board.Queen]
	if queens&(ourPawnAttacks|ourKnightAttacks|ourBishopAttacks|ourRookAttacks) != 0 {
		return true
	}

	rooks2 := pos.Pieces[them][board.Rook]
	if rooks2&(ourPawnAttacks|ourKnightAttacks|ourBishopAttacks) != 0 {
		return true
	}

	return false
}

// updateContinuationHistories updates continuation history for the three
// most recent plies of the current line, the same window the move orderer
// reads back out of when scoring quiets.
func (w *Worker) updateContinuationHistories(ply int, piece board.Piece, toSq board.Square, depth int, isGood bool) {
	for plyBack := 1; plyBack <= 3; plyBack++ {
		targetPly := ply - plyBack
		if targetPly < 0 {
			break
		}

		ss := &w.searchStack[targetPly]
		if ss.currentMove == board.NoMove || ss.movedPiece == board.NoPiece {
			continue
		}

		// Update the continuation history entry
		w.orderer.UpdateContinuationHistory(
			ss.movedPiece,
			ss.moveTo,
			piece,
			toSq,
			depth,
			plyBack,
			isGood,
		)
	}
}
