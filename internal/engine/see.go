package engine

import (
	"github.com/corvidchess/corvid/internal/board"
)

// SEE implements static exchange evaluation via the swap algorithm: starting from the
// capture square, alternately add the least valuable attacker of each
// side, remove it from the occupancy, and re-query sliding attackers it
// may have unmasked. Returns the net material gain of the exchange in
// centipawns from the moving side's perspective.
func SEE(pos *board.Position, m board.Move) int {
	from := m.From()
	to := m.To()

	attacker := pos.PieceAt(from)
	if attacker == board.NoPiece {
		return 0
	}

	var capturedValue int
	if m.IsEnPassant() {
		capturedValue = PawnValue
	} else {
		victim := pos.PieceAt(to)
		if victim == board.NoPiece {
			return 0 // not a capture
		}
		capturedValue = pieceValues[victim.Type()]
	}

	if m.IsPromotion() {
		capturedValue += pieceValues[m.Promotion()] - PawnValue
	}

	return seeSwap(pos, to, from, attacker, capturedValue)
}

// seeExchange runs the exchange SEE runs for captures, but also accepts
// quiet moves: a quiet move starts the exchange with zero material already
// won, so the result answers "is this square safe to move to", which is
// what move-loop SEE-based pruning needs for quiets.
func seeExchange(pos *board.Position, m board.Move) int {
	from := m.From()
	to := m.To()

	attacker := pos.PieceAt(from)
	if attacker == board.NoPiece {
		return 0
	}

	var gain int
	if m.IsEnPassant() {
		gain = PawnValue
	} else if victim := pos.PieceAt(to); victim != board.NoPiece {
		gain = pieceValues[victim.Type()]
	}
	if m.IsPromotion() {
		gain += pieceValues[m.Promotion()] - PawnValue
	}

	return seeSwap(pos, to, from, attacker, gain)
}

// SeeGE answers the question the search actually asks: "is the capture non-losing by at
// least margin centipawns?". The search prunes losing captures in
// quiescence and move ordering through this predicate rather than the raw
// exchange value.
func SeeGE(pos *board.Position, m board.Move, margin int) bool {
	return SEE(pos, m) >= margin
}

// seeSwap runs the exchange on target, excluding the square the first
// attacker came from, and negamaxes the resulting gain sequence.
func seeSwap(pos *board.Position, target, excludeFrom board.Square, firstAttacker board.Piece, initialGain int) int {
	var gain [32]int
	d := 0
	gain[d] = initialGain

	occupied := pos.AllOccupied &^ board.SquareBB(excludeFrom)
	attackerValue := pieceValues[firstAttacker.Type()]
	side := firstAttacker.Color().Other()

	for {
		d++
		gain[d] = attackerValue - gain[d-1]

		// Clearly winning already: the opponent has no incentive to recapture.
		if max(-gain[d-1], gain[d]) < 0 {
			break
		}

		attackerSq, attackerPiece := leastValuableAttacker(pos, target, side, occupied)
		if attackerSq == board.NoSquare {
			break
		}

		occupied &^= board.SquareBB(attackerSq)
		attackerValue = pieceValues[attackerPiece.Type()]
		side = side.Other()
	}

	for d--; d > 0; d-- {
		gain[d-1] = -max(-gain[d-1], gain[d])
	}
	return gain[0]
}

// leastValuableAttacker finds side's cheapest piece attacking target in
// occupied, skipping any attacker pinned against its own king along a ray
// that capturing on target would not keep blocked ("pinned attackers
// of the side to move are excluded when their removal would leave their
// king in check").
func leastValuableAttacker(pos *board.Position, target board.Square, side board.Color, occupied board.Bitboard) (board.Square, board.Piece) {
	bishopAttacks := board.BishopAttacks(target, occupied)
	rookAttacks := board.RookAttacks(target, occupied)

	tryPiece := func(candidates board.Bitboard, pt board.PieceType) (board.Square, board.Piece, bool) {
		for c := candidates; c != 0; {
			sq := c.PopLSB()
			if pinnedAwayFromSquare(pos, occupied, side, sq, target) {
				continue
			}
			return sq, board.NewPiece(pt, side), true
		}
		return board.NoSquare, board.NoPiece, false
	}

	if sq, p, ok := tryPiece(pos.Pieces[side][board.Pawn]&board.PawnAttacks(target, side.Other())&occupied, board.Pawn); ok {
		return sq, p
	}
	if sq, p, ok := tryPiece(pos.Pieces[side][board.Knight]&board.KnightAttacks(target)&occupied, board.Knight); ok {
		return sq, p
	}
	if sq, p, ok := tryPiece(pos.Pieces[side][board.Bishop]&bishopAttacks&occupied, board.Bishop); ok {
		return sq, p
	}
	if sq, p, ok := tryPiece(pos.Pieces[side][board.Rook]&rookAttacks&occupied, board.Rook); ok {
		return sq, p
	}
	if sq, p, ok := tryPiece(pos.Pieces[side][board.Queen]&(bishopAttacks|rookAttacks)&occupied, board.Queen); ok {
		return sq, p
	}
	if sq, p, ok := tryPiece(pos.Pieces[side][board.King]&board.KingAttacks(target)&occupied, board.King); ok {
		return sq, p
	}
	return board.NoSquare, board.NoPiece
}

// pinnedAwayFromSquare reports whether removing side's piece on sq from
// occupied would expose side's king to a slider, where capturing on target
// would not itself interpose on that slider's ray (so the capture is only
// a problem when it doesn't keep the king shielded).
func pinnedAwayFromSquare(pos *board.Position, occupied board.Bitboard, side board.Color, sq, target board.Square) bool {
	ksq := pos.KingSquare[side]
	if sq == ksq {
		return false
	}

	without := occupied &^ board.SquareBB(sq)
	them := side.Other()
	sliders := (board.RookAttacks(ksq, without) & (pos.Pieces[them][board.Rook] | pos.Pieces[them][board.Queen])) |
		(board.BishopAttacks(ksq, without) & (pos.Pieces[them][board.Bishop] | pos.Pieces[them][board.Queen]))
	sliders &= without
	if sliders == 0 {
		return false
	}

	for s := sliders; s != 0; {
		attackerSq := s.PopLSB()
		if attackerSq == target {
			continue // capturing the pinner itself is always safe
		}
		if board.Between(attackerSq, ksq)&board.SquareBB(target) != 0 {
			continue // landing on target still blocks this ray
		}
		return true
	}
	return false
}

// max returns the larger of two integers.
func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// abs returns the absolute value of x.
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
