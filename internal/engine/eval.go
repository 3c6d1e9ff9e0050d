// Package engine implements the chess AI search engine.
package engine

import (
	"github.com/corvidchess/corvid/internal/board"
)

// Piece values, shared by move ordering's MVV-LVA scoring and by SEE's
// exchange arithmetic (see.go). SEE has no value table of its own, so it
// counts exchanges in these units too (knight 320, bishop 330, king 20000).
const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
	KingValue   = 20000
)

var pieceValues = [7]int{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, KingValue, 0}

// tempoBonus rewards the side to move a little for having the initiative.
const tempoBonus = 10

// maxGamePhase is the phase total of the starting position under the
// weights materialAndPST uses: 2 queens*4 + 4 rooks*2 + 4 bishops*1 +
// 4 knights*1 = 24.
const maxGamePhase = 24

// passedPawnBonus is indexed by relative rank (1 = second rank, 6 = seventh
// rank, about to promote; no pawn stands on 0 or 7).
var passedPawnBonus = [8]int{0, 10, 20, 40, 70, 120, 200, 0}

const (
	passedPawnConnectedBonus = 20
	passedPawnProtectedBonus = 15
)

// sideSign returns +1 for White and -1 for Black, the convention every
// term below uses to accumulate a single White-relative score.
func sideSign(c board.Color) int {
	if c == board.Black {
		return -1
	}
	return 1
}

// Piece-square tables, White's perspective; mirrored for Black via
// Square.Mirror.
var pawnPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	50, 50, 50, 50, 50, 50, 50, 50,
	10, 10, 20, 30, 30, 20, 10, 10,
	5, 5, 10, 25, 25, 10, 5, 5,
	0, 0, 0, 20, 20, 0, 0, 0,
	5, -5, -10, 0, 0, -10, -5, 5,
	5, 10, 10, -20, -20, 10, 10, 5,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var knightPST = [64]int{
	-50, -40, -30, -30, -30, -30, -40, -50,
	-40, -20, 0, 0, 0, 0, -20, -40,
	-30, 0, 10, 15, 15, 10, 0, -30,
	-30, 5, 15, 20, 20, 15, 5, -30,
	-30, 0, 15, 20, 20, 15, 0, -30,
	-30, 5, 10, 15, 15, 10, 5, -30,
	-40, -20, 0, 5, 5, 0, -20, -40,
	-50, -40, -30, -30, -30, -30, -40, -50,
}

var bishopPST = [64]int{
	-20, -10, -10, -10, -10, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 10, 10, 5, 0, -10,
	-10, 5, 5, 10, 10, 5, 5, -10,
	-10, 0, 10, 10, 10, 10, 0, -10,
	-10, 10, 10, 10, 10, 10, 10, -10,
	-10, 5, 0, 0, 0, 0, 5, -10,
	-20, -10, -10, -10, -10, -10, -10, -20,
}

var rookPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	5, 10, 10, 10, 10, 10, 10, 5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	0, 0, 0, 5, 5, 0, 0, 0,
}

var queenPST = [64]int{
	-20, -10, -10, -5, -5, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 5, 5, 5, 0, -10,
	-5, 0, 5, 5, 5, 5, 0, -5,
	0, 0, 5, 5, 5, 5, 0, -5,
	-10, 5, 5, 5, 5, 5, 0, -10,
	-10, 0, 5, 0, 0, 0, 0, -10,
	-20, -10, -10, -5, -5, -10, -10, -20,
}

var kingMidgamePST = [64]int{
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-20, -30, -30, -40, -40, -30, -30, -20,
	-10, -20, -20, -20, -20, -20, -20, -10,
	20, 20, 0, 0, 0, 0, 20, 20,
	20, 30, 10, 0, 0, 10, 30, 20,
}

var kingEndgamePST = [64]int{
	-50, -40, -30, -20, -20, -30, -40, -50,
	-30, -20, -10, 0, 0, -10, -20, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -30, 0, 0, 0, 0, -30, -30,
	-50, -30, -30, -30, -30, -30, -30, -50,
}

var psts = [...][64]int{
	pawnPST, knightPST, bishopPST, rookPST, queenPST, kingMidgamePST,
}

// materialAndPST walks every piece once, accumulating White-relative
// material and piece-square-table scores for both eval phases plus the
// game-phase counter used to taper between them.
func materialAndPST(pos *board.Position) (mgScore, egScore, phase int) {
	for c := board.White; c <= board.Black; c++ {
		sign := sideSign(c)

		for pt := board.Pawn; pt <= board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()

				mgScore += sign * pieceValues[pt]
				egScore += sign * pieceValues[pt]

				pstSq := sq
				if c == board.Black {
					pstSq = sq.Mirror()
				}

				if pt == board.King {
					mgScore += sign * kingMidgamePST[pstSq]
					egScore += sign * kingEndgamePST[pstSq]
				} else {
					pstValue := psts[pt][pstSq]
					mgScore += sign * pstValue
					egScore += sign * pstValue
				}

				switch pt {
				case board.Knight, board.Bishop:
					phase += 1
				case board.Rook:
					phase += 2
				case board.Queen:
					phase += 4
				}
			}
		}
	}
	return mgScore, egScore, phase
}

// taperedScore interpolates between middlegame and endgame scores by phase
// (clamped to maxGamePhase) and applies the side-to-move tempo bonus.
func taperedScore(pos *board.Position, mgScore, egScore, phase int) int {
	if phase > maxGamePhase {
		phase = maxGamePhase
	}
	score := (mgScore*phase + egScore*(maxGamePhase-phase)) / maxGamePhase
	if pos.SideToMove == board.Black {
		score = -score
	}
	return score + tempoBonus
}

// isPassedPawn reports whether no enemy pawn on sq's file or an adjacent
// file stands between sq and its promotion rank.
func isPassedPawn(pos *board.Position, sq board.Square, color board.Color) bool {
	file := sq.File()
	enemyPawns := pos.Pieces[color.Other()][board.Pawn]

	fileMask := board.FileMask[file]
	if file > 0 {
		fileMask |= board.FileMask[file-1]
	}
	if file < 7 {
		fileMask |= board.FileMask[file+1]
	}

	var frontMask board.Bitboard
	if color == board.White {
		frontMask = board.SquareBB(sq).NorthFill() &^ board.SquareBB(sq)
	} else {
		frontMask = board.SquareBB(sq).SouthFill() &^ board.SquareBB(sq)
	}

	return (enemyPawns & fileMask & frontMask) == 0
}

// evaluatePassedPawns scores passed pawns by rank, with small bonuses for a
// protecting pawn or a connected passer on an adjacent file. This is the
// one term of this fallback evaluator cacheable purely from pos.PawnKey
// (the pawn key covers pawns and the en passant file only), so
// EvaluateWithPawnTable memoizes it there.
func evaluatePassedPawns(pos *board.Position) (mgBonus, egBonus int) {
	for color := board.White; color <= board.Black; color++ {
		sign := sideSign(color)
		pawns := pos.Pieces[color][board.Pawn]
		friendlyPawns := pawns

		for pawns != 0 {
			sq := pawns.PopLSB()
			if !isPassedPawn(pos, sq, color) {
				continue
			}

			relRank := sq.RelativeRank(color)
			file := sq.File()
			bonus := passedPawnBonus[relRank]

			if board.PawnAttacks(sq, color.Other())&friendlyPawns != 0 {
				bonus += passedPawnProtectedBonus
			}

			var adjacentFiles board.Bitboard
			if file > 0 {
				adjacentFiles |= board.FileMask[file-1]
			}
			if file < 7 {
				adjacentFiles |= board.FileMask[file+1]
			}
			for temp := friendlyPawns & adjacentFiles; temp != 0; {
				connSq := temp.PopLSB()
				if isPassedPawn(pos, connSq, color) {
					bonus += passedPawnConnectedBonus
					break
				}
			}

			mgBonus += sign * bonus
			egBonus += sign * bonus * 3 / 2 // passers matter more with fewer pieces left
		}
	}
	return mgBonus, egBonus
}

// Evaluate is the engine's fallback static evaluator: material, PST, and
// passed pawns, tapered by game phase. The NNUE network in
// sfnnue/ is the real evaluator; this exists only for the corrupt-NNUE or
// no-network-loaded fallback path, not as a competing
// hand-crafted evaluation.
func Evaluate(pos *board.Position) int {
	mgScore, egScore, phase := materialAndPST(pos)
	ppMg, ppEg := evaluatePassedPawns(pos)
	mgScore += ppMg
	egScore += ppEg
	return taperedScore(pos, mgScore, egScore, phase)
}

// EvaluateWithPawnTable is Evaluate but memoizes the passed-pawn term in pt,
// keyed by pos.PawnKey, since that term depends on pawn placement alone.
func EvaluateWithPawnTable(pos *board.Position, pt *PawnTable) int {
	mgScore, egScore, phase := materialAndPST(pos)

	ppMg, ppEg, ok := pt.Probe(pos.PawnKey)
	if !ok {
		ppMg, ppEg = evaluatePassedPawns(pos)
		pt.Store(pos.PawnKey, ppMg, ppEg)
	}
	mgScore += ppMg
	egScore += ppEg

	return taperedScore(pos, mgScore, egScore, phase)
}

// EvaluateMaterial returns just the material balance, for the cheap "lazy
// eval" checks in the search's move-loop pruning.
func EvaluateMaterial(pos *board.Position) int {
	score := 0
	for pt := board.Pawn; pt < board.King; pt++ {
		score += pos.Pieces[board.White][pt].PopCount() * pieceValues[pt]
		score -= pos.Pieces[board.Black][pt].PopCount() * pieceValues[pt]
	}
	if pos.SideToMove == board.Black {
		return -score
	}
	return score
}
