package engine

import (
	"github.com/corvidchess/corvid/internal/board"
	"github.com/corvidchess/corvid/sfnnue"
	"github.com/corvidchess/corvid/sfnnue/features"
)

// AccumulatorDelta is a single piece appearing, disappearing, or moving
// across a ply, expressed in sfnnue's own piece encoding so it can be fed
// straight to FeatureTransformer.UpdateAccumulator without a second
// translation step. fromSq/toSq of -1 mean "added"/"removed" respectively.
type AccumulatorDelta struct {
	Piece  int
	FromSq int
	ToSq   int
}

// maxAccumulatorDeltas bounds one ply's worth of piece changes: a quiet
// move touches one, a capture two, en passant two, a capturing promotion
// three (pawn removed, promoted piece added, victim removed).
const maxAccumulatorDeltas = 3

// pendingDelta accumulates the piece changes the incremental accumulator update
// needs, computed while the position still reflects the pre-move state.
type pendingDelta struct {
	pieces    [maxAccumulatorDeltas]AccumulatorDelta
	count     int
	kingMoved [2]bool
	kingSq    [2]int
	ready     bool
}

// sfnnuePiece maps a board piece type/color onto sfnnue's 1..14 encoding:
// W_PAWN=1..W_KING=6, B_PAWN=9..B_KING=14.
var sfnnuePiece = [2][6]int{
	{1, 2, 3, 4, 5, 6},
	{9, 10, 11, 12, 13, 14},
}

// appendActiveFeatures pushes every feature index active for perspective
// onto active, iterating bitboards directly rather than through
// Position.PieceAt to avoid per-square interface dispatch.
func appendActiveFeatures(perspective int, pos *board.Position, active *features.IndexList) {
	ksq := int(pos.KingSquare[perspective])

	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			sfPiece := sfnnuePiece[c][pt]
			for bb := pos.Pieces[c][pt]; bb != 0; {
				sq := bb.PopLSB()
				active.Push(features.MakeIndex(perspective, int(sq), sfPiece, ksq))
			}
		}
	}
}

// recordAccumulatorDelta captures the piece changes move m will make,
// while pos still holds the pre-move state. It returns false when an
// incremental accumulator update isn't possible (the king moved, so that
// perspective needs a full feature re-scan against its new square).
func (w *Worker) recordAccumulatorDelta(m board.Move) bool {
	if !w.useNNUE || w.nnueAcc == nil {
		return false
	}

	d := &w.pendingDelta
	d.count = 0
	d.kingMoved[0] = false
	d.kingMoved[1] = false
	d.ready = false

	pos := w.pos
	from, to := m.From(), m.To()
	moving := pos.PieceAt(from)
	if moving == board.NoPiece {
		return false
	}

	us := int(moving.Color())
	sfPiece := sfnnuePiece[us][moving.Type()]

	d.kingSq[0] = int(pos.KingSquare[board.White])
	d.kingSq[1] = int(pos.KingSquare[board.Black])

	if moving.Type() == board.King || m.IsCastling() {
		d.kingMoved[us] = true
		d.kingSq[us] = int(to)
		d.ready = true
		return false
	}

	d.push(AccumulatorDelta{Piece: sfPiece, FromSq: int(from), ToSq: int(to)})

	switch {
	case m.IsEnPassant():
		capSq := to - 8
		if us == int(board.Black) {
			capSq = to + 8
		}
		d.push(AccumulatorDelta{Piece: sfnnuePiece[1-us][board.Pawn], FromSq: int(capSq), ToSq: -1})
	default:
		if captured := pos.PieceAt(to); captured != board.NoPiece {
			cp := sfnnuePiece[captured.Color()][captured.Type()]
			d.push(AccumulatorDelta{Piece: cp, FromSq: int(to), ToSq: -1})
		}
	}

	if m.IsPromotion() {
		// The pawn-move delta pushed above is wrong once promoted: the
		// pawn vanishes from 'from' rather than landing on 'to', and the
		// promoted piece appears on 'to' instead.
		d.pieces[0] = AccumulatorDelta{Piece: sfPiece, FromSq: int(from), ToSq: -1}
		d.push(AccumulatorDelta{Piece: sfnnuePiece[us][m.Promotion()], FromSq: -1, ToSq: int(to)})
	}

	d.ready = true
	return true
}

func (d *pendingDelta) push(ad AccumulatorDelta) {
	d.pieces[d.count] = ad
	d.count++
}

// splitDeltas separates pendingDelta into the feature indices it removes
// and adds for perspective, writing into w's pre-allocated scratch buffer
// to avoid a per-call allocation on the search's hot path.
func (w *Worker) splitDeltas(perspective, ksq int) (removed, added []int) {
	removedBuf := w.activeIndicesBuffer[0:32]
	addedBuf := w.activeIndicesBuffer[32:64]
	nr, na := 0, 0

	d := &w.pendingDelta
	for i := 0; i < d.count; i++ {
		p := &d.pieces[i]
		if p.FromSq >= 0 {
			removedBuf[nr] = features.MakeIndex(perspective, p.FromSq, p.Piece, ksq)
			nr++
		}
		if p.ToSq >= 0 {
			addedBuf[na] = features.MakeIndex(perspective, p.ToSq, p.Piece, ksq)
			na++
		}
	}
	return removedBuf[:nr], addedBuf[:na]
}

// smallNetMaterialThreshold is Stockfish's cutoff (in centipawns of
// material imbalance) above which the cheap small network alone, without
// the big network's positional term, is considered accurate enough — the
// position is lopsided enough that fine positional judgment matters less
// than getting an answer quickly.
const smallNetMaterialThreshold = 962

// materialImbalance returns the absolute centipawn material difference
// between the sides to move, used only to pick an evaluation network.
func (w *Worker) materialImbalance() int {
	values := [6]int{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, 0}
	score := 0
	for pt := board.Pawn; pt <= board.Queen; pt++ {
		score += (w.pos.Pieces[board.White][pt].PopCount() - w.pos.Pieces[board.Black][pt].PopCount()) * values[pt]
	}
	if w.pos.SideToMove == board.Black {
		score = -score
	}
	return abs(score)
}

// refreshAccumulator brings acc up to date for whichever perspectives
// haven't been computed yet, taking the incremental path when the prior
// ply's accumulator is usable and falling back to a full recomputation
// (king move, search-tree jump, or first touch) otherwise.
func (w *Worker) refreshAccumulator(net *sfnnue.Network, acc *sfnnue.Accumulator, isSmall bool) {
	var prev *sfnnue.Accumulator
	if isSmall {
		prev = w.nnueAcc.PreviousSmall()
	} else {
		prev = w.nnueAcc.PreviousBig()
	}

	for p := 0; p < 2; p++ {
		if acc.Computed[p] {
			continue
		}

		canIncremental := prev != nil && prev.Computed[p] && !acc.NeedsRefresh[p] &&
			w.pendingDelta.ready && w.pendingDelta.count > 0

		if !canIncremental {
			computeAccumulatorFull(net, w.pos, acc, p, w.activeIndicesBuffer[:])
			continue
		}

		ksq := int(w.pos.KingSquare[p])
		removed, added := w.splitDeltas(p, ksq)
		net.FeatureTransformer.UpdateAccumulator(removed, added, acc.Accumulation[p], acc.PSQTAccumulation[p])
		acc.Computed[p] = true
		acc.KingSq[p] = ksq
	}
}

// nnueEvaluate is the quantized inference entry point: refresh both
// networks' accumulators incrementally where possible, run the dual
// big/small blend Stockfish uses for nodes where material is roughly
// balanced, and fall back to the small network alone once one side's
// material edge passes smallNetMaterialThreshold — it dominates the
// positional term enough that the expensive big network adds little.
func (w *Worker) nnueEvaluate() int {
	if w.nnueNet == nil || w.nnueAcc == nil {
		return EvaluateWithPawnTable(w.pos, w.pawnTable)
	}

	pieceCount := w.pos.AllOccupied.PopCount()
	stm := 0
	if w.pos.SideToMove == board.Black {
		stm = 1
	}

	smallAcc := w.nnueAcc.CurrentSmall()
	w.refreshAccumulator(w.nnueNet.Small, smallAcc, true)
	smallPsqt, smallPositional := w.nnueNet.Small.Evaluate(
		smallAcc.Accumulation, smallAcc.PSQTAccumulation, stm, pieceCount, w.nnueAcc.TransformBuffer[:])

	var score int
	if w.materialImbalance() > smallNetMaterialThreshold {
		score = int(smallPsqt) + int(smallPositional)
	} else {
		bigAcc := w.nnueAcc.CurrentBig()
		w.refreshAccumulator(w.nnueNet.Big, bigAcc, false)
		bigPsqt, bigPositional := w.nnueNet.Big.Evaluate(
			bigAcc.Accumulation, bigAcc.PSQTAccumulation, stm, pieceCount, w.nnueAcc.TransformBuffer[:])
		score = int(bigPositional) + int(smallPsqt+bigPsqt)/2
	}

	score += w.optimismAdjustment(stm)

	rule50 := int(w.pos.HalfMoveClock)
	score -= score * rule50 / 199

	return score
}

// optimismAdjustment scales the worker's tracked optimism term by total
// material (Stockfish evaluate.cpp's formula): the less material is left
// on the board, the more an optimistic bias is trusted, since there's
// less room for the position to turn around before the game ends.
func (w *Worker) optimismAdjustment(sideToMove int) int {
	pawns := w.pos.Pieces[board.White][board.Pawn].PopCount() + w.pos.Pieces[board.Black][board.Pawn].PopCount()
	material := 534*pawns + nonPawnMaterial(w.pos)
	return w.optimism[sideToMove] * (7191 + material) / 77871
}

// nonPawnMaterial totals knight/bishop/rook/queen material for both
// sides, used to scale the optimism adjustment by how much is left on the
// board.
func nonPawnMaterial(pos *board.Position) int {
	values := [6]int{0, KnightValue, BishopValue, RookValue, QueenValue, 0}
	total := 0
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Knight; pt <= board.Queen; pt++ {
			total += pos.Pieces[c][pt].PopCount() * values[pt]
		}
	}
	return total
}

// computeAccumulatorFull rebuilds acc for perspective from the position's
// full feature set, bypassing the incremental delta path entirely.
func computeAccumulatorFull(net *sfnnue.Network, pos *board.Position, acc *sfnnue.Accumulator, perspective int, indexBuffer []int) {
	var active features.IndexList
	appendActiveFeatures(perspective, pos, &active)

	idx := indexBuffer[:active.Size]
	copy(idx, active.Values[:active.Size])

	net.FeatureTransformer.ComputeAccumulator(idx, acc.Accumulation[perspective], acc.PSQTAccumulation[perspective])
	acc.Computed[perspective] = true
	acc.KingSq[perspective] = int(pos.KingSquare[perspective])
}

// resetNNUEAccumulators marks every accumulator level as stale, forcing
// the next nnueEvaluate to rebuild from scratch.
func (w *Worker) resetNNUEAccumulators() {
	if w.nnueAcc != nil {
		w.nnueAcc.Reset()
	}
}

// nnuePush pushes a new accumulator level before MakeMove, marking it for
// incremental update or full refresh per perspective according to
// whether recordAccumulatorDelta found a king move on that side.
func (w *Worker) nnuePush() {
	if !w.useNNUE || w.nnueAcc == nil {
		return
	}
	w.nnueAcc.Push()

	bigAcc := w.nnueAcc.CurrentBig()
	smallAcc := w.nnueAcc.CurrentSmall()
	d := &w.pendingDelta

	if !d.ready {
		for _, acc := range [2]*sfnnue.Accumulator{bigAcc, smallAcc} {
			acc.NeedsRefresh[0], acc.NeedsRefresh[1] = true, true
			acc.Computed[0], acc.Computed[1] = false, false
		}
		return
	}

	for p := 0; p < 2; p++ {
		needsRefresh := d.kingMoved[p]
		bigAcc.NeedsRefresh[p] = needsRefresh
		smallAcc.NeedsRefresh[p] = needsRefresh
		// Either way the parent's values aren't valid for this ply yet:
		// a king move needs a full rescan, otherwise refreshAccumulator
		// still has to apply this ply's incremental delta.
		bigAcc.Computed[p] = false
		smallAcc.Computed[p] = false
	}
}

// nnuePop discards the current accumulator level after UnmakeMove.
func (w *Worker) nnuePop() {
	if w.useNNUE && w.nnueAcc != nil {
		w.nnueAcc.Pop()
	}
}
