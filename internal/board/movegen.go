package board

// DebugMoveValidation enables the expensive per-node consistency checks and
// diagnostic dumps sprinkled through the search and move application paths.
// Off in normal operation; flipped via the UCI "debug" option.
var DebugMoveValidation = false

// GenerateLegalMoves generates all legal moves for the position. When the
// side to move is in check, generation is restricted to evasions up front
// instead of filtering the full pseudo-legal set.
func (p *Position) GenerateLegalMoves() *MoveList {
	if p.InCheck() {
		return p.GenerateLegalMovesFromCheck()
	}
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return p.filterLegalMoves(ml)
}

// GeneratePseudoLegalMoves generates all pseudo-legal moves (may leave king in check).
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return ml
}

// GenerateCaptures generates all capture moves (plus queening pushes, which
// quiescence treats like captures).
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	p.generateCaptures(ml)
	return p.filterLegalMoves(ml)
}

// GenerateCapturesAndChecks generates all legal captures plus the legal
// non-capture moves that give check, for an augmented quiescence that keeps
// checking sequences on the horizon.
func (p *Position) GenerateCapturesAndChecks() *MoveList {
	legal := p.GenerateLegalMoves()
	result := NewMoveList()
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if m.IsCapture(p) {
			result.Add(m)
			continue
		}
		undo := p.MakeMove(m)
		givesCheck := p.InCheck()
		p.UnmakeMove(m, undo)
		if givesCheck {
			result.Add(m)
		}
	}
	return result
}

// GenerateLegalMovesFromCheck generates legal moves when the side to move is
// in check. With more than one checker only king moves can help; with a
// single checker the candidates are king moves, captures of the checker, and
// interpositions on the checking ray, which cuts the pseudo-legal set down
// before the per-move legality test runs.
func (p *Position) GenerateLegalMovesFromCheck() *MoveList {
	us := p.SideToMove
	ksq := p.KingSquare[us]
	checkers := p.Checkers
	result := NewMoveList()

	if checkers.PopCount() > 1 {
		// Double check: only the king can move.
		candidates := NewMoveList()
		p.generateKingMoves(candidates, us)
		for i := 0; i < candidates.Len(); i++ {
			if m := candidates.Get(i); p.IsLegal(m) {
				result.Add(m)
			}
		}
		return result
	}

	checkerSq := checkers.LSB()
	targetMask := checkers | Between(ksq, checkerSq)

	candidates := NewMoveList()
	p.generateAllMoves(candidates)
	for i := 0; i < candidates.Len(); i++ {
		m := candidates.Get(i)
		switch {
		case m.From() == ksq:
			if m.IsCastling() {
				continue // castling out of check is never legal
			}
		case m.IsEnPassant():
			if enPassantCapturedSquare(m.To(), us) != checkerSq && !targetMask.IsSet(m.To()) {
				continue
			}
		default:
			if !targetMask.IsSet(m.To()) {
				continue
			}
		}
		if p.IsLegal(m) {
			result.Add(m)
		}
	}
	return result
}

// generateAllMoves generates all pseudo-legal moves.
func (p *Position) generateAllMoves(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()
	occupied := p.AllOccupied
	enemies := p.Occupied[them]

	p.generatePawnMoves(ml, us, enemies, occupied)

	p.generateLeaperOrSliderMoves(ml, p.Pieces[us][Knight], p.Occupied[us], func(from Square) Bitboard {
		return KnightAttacks(from)
	})
	p.generateLeaperOrSliderMoves(ml, p.Pieces[us][Bishop], p.Occupied[us], func(from Square) Bitboard {
		return BishopAttacks(from, occupied)
	})
	p.generateLeaperOrSliderMoves(ml, p.Pieces[us][Rook], p.Occupied[us], func(from Square) Bitboard {
		return RookAttacks(from, occupied)
	})
	p.generateLeaperOrSliderMoves(ml, p.Pieces[us][Queen], p.Occupied[us], func(from Square) Bitboard {
		return QueenAttacks(from, occupied)
	})

	p.generateKingMoves(ml, us)
	p.generateCastlingMoves(ml, us)
}

// generateLeaperOrSliderMoves appends a normal move for every square any
// piece in `pieces` can reach per attacksFrom, excluding squares occupied by
// its own side. Knights, bishops, rooks, and queens all share this shape;
// only how attacksFrom computes a single piece's reach differs.
func (p *Position) generateLeaperOrSliderMoves(ml *MoveList, pieces, ownOccupied Bitboard, attacksFrom func(Square) Bitboard) {
	for pieces != 0 {
		from := pieces.PopLSB()
		targets := attacksFrom(from) &^ ownOccupied
		for targets != 0 {
			ml.Add(NewMove(from, targets.PopLSB()))
		}
	}
}

// generatePawnMoves generates all pawn moves.
func (p *Position) generatePawnMoves(ml *MoveList, us Color, enemies, occupied Bitboard) {
	pawns := p.Pieces[us][Pawn]
	empty := ^occupied

	var push1, push2, attackL, attackR Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promotionRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promotionRank = Rank1
		pushDir = -8
	}

	// Single pushes (non-promotion)
	nonPromo := push1 & ^promotionRank
	for nonPromo != 0 {
		to := nonPromo.PopLSB()
		from := Square(int(to) - pushDir)
		ml.Add(NewMove(from, to))
	}

	// Double pushes
	for push2 != 0 {
		to := push2.PopLSB()
		from := Square(int(to) - 2*pushDir)
		ml.Add(NewMove(from, to))
	}

	// Captures (non-promotion)
	nonPromoL := attackL & ^promotionRank
	for nonPromoL != 0 {
		to := nonPromoL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		ml.Add(NewMove(from, to))
	}

	nonPromoR := attackR & ^promotionRank
	for nonPromoR != 0 {
		to := nonPromoR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		ml.Add(NewMove(from, to))
	}

	// Promotions
	promoPush := push1 & promotionRank
	for promoPush != 0 {
		to := promoPush.PopLSB()
		from := Square(int(to) - pushDir)
		addPromotions(ml, from, to)
	}

	promoL := attackL & promotionRank
	for promoL != 0 {
		to := promoL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		addPromotions(ml, from, to)
	}

	promoR := attackR & promotionRank
	for promoR != 0 {
		to := promoR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		addPromotions(ml, from, to)
	}

	// En passant
	if p.EnPassant != NoSquare {
		epBB := SquareBB(p.EnPassant)
		var epAttackers Bitboard
		if us == White {
			epAttackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
		} else {
			epAttackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
		}
		for epAttackers != 0 {
			from := epAttackers.PopLSB()
			ml.Add(NewEnPassant(from, p.EnPassant))
		}
	}
}

// enPassantCapturedSquare returns the square of the pawn captured by an en
// passant move landing on `to`, played by `us`.
func enPassantCapturedSquare(to Square, us Color) Square {
	if us == White {
		return to - 8
	}
	return to + 8
}

// castlingRookSquares returns the rook's origin and destination for a
// castling move identified by its king's from/to squares.
func castlingRookSquares(kingFrom, kingTo Square) (rookFrom, rookTo Square) {
	rank := kingFrom.Rank()
	if kingTo > kingFrom {
		return NewSquare(7, rank), NewSquare(5, rank) // kingside
	}
	return NewSquare(0, rank), NewSquare(3, rank) // queenside
}

// addPromotions adds all four promotion moves.
func addPromotions(ml *MoveList, from, to Square) {
	ml.Add(NewPromotion(from, to, Queen))
	ml.Add(NewPromotion(from, to, Rook))
	ml.Add(NewPromotion(from, to, Bishop))
	ml.Add(NewPromotion(from, to, Knight))
}

// generateKingMoves generates king moves (non-castling).
func (p *Position) generateKingMoves(ml *MoveList, us Color) {
	from := p.KingSquare[us]
	attacks := KingAttacks(from) & ^p.Occupied[us]

	for attacks != 0 {
		to := attacks.PopLSB()
		ml.Add(NewMove(from, to))
	}
}

// generateCastlingMoves generates castling moves.
func (p *Position) generateCastlingMoves(ml *MoveList, us Color) {
	them := us.Other()

	if us == White {
		// Kingside (O-O)
		if p.CastlingRights&WhiteKingSideCastle != 0 {
			// Check squares are empty (f1, g1)
			if p.AllOccupied&((1<<F1)|(1<<G1)) == 0 {
				// Check king doesn't pass through check (e1, f1, g1)
				if !p.IsSquareAttacked(E1, them) && !p.IsSquareAttacked(F1, them) && !p.IsSquareAttacked(G1, them) {
					ml.Add(NewCastling(E1, G1))
				}
			}
		}

		// Queenside (O-O-O)
		if p.CastlingRights&WhiteQueenSideCastle != 0 {
			// Check squares are empty (b1, c1, d1)
			if p.AllOccupied&((1<<B1)|(1<<C1)|(1<<D1)) == 0 {
				// Check king doesn't pass through check (c1, d1, e1)
				if !p.IsSquareAttacked(E1, them) && !p.IsSquareAttacked(D1, them) && !p.IsSquareAttacked(C1, them) {
					ml.Add(NewCastling(E1, C1))
				}
			}
		}
	} else {
		// Kingside (O-O)
		if p.CastlingRights&BlackKingSideCastle != 0 {
			// Check squares are empty (f8, g8)
			if p.AllOccupied&((1<<F8)|(1<<G8)) == 0 {
				// Check king doesn't pass through check
				if !p.IsSquareAttacked(E8, them) && !p.IsSquareAttacked(F8, them) && !p.IsSquareAttacked(G8, them) {
					ml.Add(NewCastling(E8, G8))
				}
			}
		}

		// Queenside (O-O-O)
		if p.CastlingRights&BlackQueenSideCastle != 0 {
			// Check squares are empty (b8, c8, d8)
			if p.AllOccupied&((1<<B8)|(1<<C8)|(1<<D8)) == 0 {
				// Check king doesn't pass through check
				if !p.IsSquareAttacked(E8, them) && !p.IsSquareAttacked(D8, them) && !p.IsSquareAttacked(C8, them) {
					ml.Add(NewCastling(E8, C8))
				}
			}
		}
	}
}

// generateCaptures generates capture moves only.
func (p *Position) generateCaptures(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()
	enemies := p.Occupied[them]
	occupied := p.AllOccupied

	// Pawn captures
	pawns := p.Pieces[us][Pawn]
	var attackL, attackR Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promotionRank = Rank8
		pushDir = 8
	} else {
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promotionRank = Rank1
		pushDir = -8
	}

	// Non-promotion captures
	nonPromoL := attackL & ^promotionRank
	for nonPromoL != 0 {
		to := nonPromoL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		ml.Add(NewMove(from, to))
	}

	nonPromoR := attackR & ^promotionRank
	for nonPromoR != 0 {
		to := nonPromoR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		ml.Add(NewMove(from, to))
	}

	// Promotion captures
	promoL := attackL & promotionRank
	for promoL != 0 {
		to := promoL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		addPromotions(ml, from, to)
	}

	promoR := attackR & promotionRank
	for promoR != 0 {
		to := promoR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		addPromotions(ml, from, to)
	}

	// Pawn push promotions (technically not captures but important for quiescence)
	empty := ^occupied
	var push1 Bitboard
	if us == White {
		push1 = pawns.North() & empty & Rank8
	} else {
		push1 = pawns.South() & empty & Rank1
	}
	for push1 != 0 {
		to := push1.PopLSB()
		from := Square(int(to) - pushDir)
		addPromotions(ml, from, to)
	}

	// En passant
	if p.EnPassant != NoSquare {
		epBB := SquareBB(p.EnPassant)
		var epAttackers Bitboard
		if us == White {
			epAttackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
		} else {
			epAttackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
		}
		for epAttackers != 0 {
			from := epAttackers.PopLSB()
			ml.Add(NewEnPassant(from, p.EnPassant))
		}
	}

	p.generateLeaperOrSliderMoves(ml, p.Pieces[us][Knight], ^enemies, func(from Square) Bitboard {
		return KnightAttacks(from)
	})
	p.generateLeaperOrSliderMoves(ml, p.Pieces[us][Bishop], ^enemies, func(from Square) Bitboard {
		return BishopAttacks(from, occupied)
	})
	p.generateLeaperOrSliderMoves(ml, p.Pieces[us][Rook], ^enemies, func(from Square) Bitboard {
		return RookAttacks(from, occupied)
	})
	p.generateLeaperOrSliderMoves(ml, p.Pieces[us][Queen], ^enemies, func(from Square) Bitboard {
		return QueenAttacks(from, occupied)
	})

	from := p.KingSquare[us]
	attacks := KingAttacks(from) & enemies
	for attacks != 0 {
		to := attacks.PopLSB()
		ml.Add(NewMove(from, to))
	}
}

// filterLegalMoves filters out illegal moves (those that leave king in
// check). Not-in-check positions take a pin-geometry fast path: a non-king,
// non-en-passant move can only expose its own king if the moving piece was
// pinned, and a pinned piece stays legal exactly when it moves along the
// pinning ray. King moves, en passant (which removes two pieces from one
// rank), and in-check positions fall back to the full make/unmake test.
func (p *Position) filterLegalMoves(ml *MoveList) *MoveList {
	result := NewMoveList()

	if p.InCheck() {
		for i := 0; i < ml.Len(); i++ {
			m := ml.Get(i)
			if p.IsLegal(m) {
				result.Add(m)
			}
		}
		return result
	}

	pinned := p.ComputePinned()
	ksq := p.KingSquare[p.SideToMove]

	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		from := m.From()
		switch {
		case from == ksq || m.IsEnPassant():
			if p.IsLegal(m) {
				result.Add(m)
			}
		case pinned&SquareBB(from) != 0:
			if Aligned(from, m.To(), ksq) {
				result.Add(m)
			}
		default:
			result.Add(m)
		}
	}

	return result
}

// IsLegal returns true if the move is legal (doesn't leave king in check).
// Uses make/unmake for guaranteed correctness.
func (p *Position) IsLegal(m Move) bool {
	us := p.SideToMove
	them := us.Other()
	from := m.From()
	ksq := p.KingSquare[us]

	// For king moves, check if destination is attacked
	if from == ksq {
		if m.IsCastling() {
			return true // Already validated in generation
		}
		// King moves: temporarily remove king and check destination
		occ := p.AllOccupied &^ SquareBB(from)
		return p.AttackersByColor(m.To(), them, occ) == 0
	}

	// For all other moves: actually make the move and check
	undo := p.MakeMove(m)
	if !undo.Valid {
		return false
	}

	// After MakeMove, SideToMove is flipped, so "them" (the mover's
	// opponent) is now the side to move; the move is legal only if they do
	// not attack the mover's king on ksq.
	attacked := p.IsSquareAttacked(ksq, them)

	p.UnmakeMove(m, undo)

	return !attacked
}

// PseudoLegal reports whether m is at least plausible in this position: the
// side to move owns a piece on the from-square that can geometrically reach
// the to-square, and the move's flags fit that piece. Used to reject stale
// or collision-corrupted transposition-table moves before they influence
// move ordering; it does not test for leaving the king in check.
func (p *Position) PseudoLegal(m Move) bool {
	if m == NoMove {
		return false
	}

	from, to := m.From(), m.To()
	piece := p.PieceAt(from)
	if piece == NoPiece || piece.Color() != p.SideToMove {
		return false
	}
	if p.Occupied[p.SideToMove]&SquareBB(to) != 0 && !m.IsCastling() {
		return false
	}

	us := p.SideToMove
	pt := piece.Type()

	switch m.Flag() {
	case FlagCastling:
		if pt != King {
			return false
		}
		// Cheap shape check only; generateCastlingMoves holds the full rules.
		return from == p.KingSquare[us] && (to == from+2 || to == from-2)
	case FlagEnPassant:
		return pt == Pawn && to == p.EnPassant && p.EnPassant != NoSquare &&
			pawnAttacks[us][from]&SquareBB(to) != 0
	case FlagPromotion:
		if pt != Pawn || to.RelativeRank(us) != 7 {
			return false
		}
	default:
		if pt == Pawn && to.RelativeRank(us) == 7 {
			return false // pawn reaching the last rank must promote
		}
	}

	switch pt {
	case Pawn:
		if pawnAttacks[us][from]&SquareBB(to) != 0 {
			return p.Occupied[us.Other()]&SquareBB(to) != 0
		}
		step := 8
		if us == Black {
			step = -8
		}
		if int(to) == int(from)+step {
			return p.IsEmpty(to)
		}
		if int(to) == int(from)+2*step && from.RelativeRank(us) == 1 {
			return p.IsEmpty(Square(int(from)+step)) && p.IsEmpty(to)
		}
		return false
	case Knight:
		return KnightAttacks(from)&SquareBB(to) != 0
	case Bishop:
		return BishopAttacks(from, p.AllOccupied)&SquareBB(to) != 0
	case Rook:
		return RookAttacks(from, p.AllOccupied)&SquareBB(to) != 0
	case Queen:
		return QueenAttacks(from, p.AllOccupied)&SquareBB(to) != 0
	case King:
		return KingAttacks(from)&SquareBB(to) != 0
	}
	return false
}

// MakeMove applies a move to the position and returns undo information.
func (p *Position) MakeMove(m Move) UndoInfo {
	undo := UndoInfo{
		CapturedPiece:  NoPiece,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		HalfMoveClock:  p.HalfMoveClock,
		Hash:           p.Hash,
		PawnKey:        p.PawnKey,
		MaterialKey:    p.MaterialKey,
		Checkers:       p.Checkers,
		Valid:          false,
	}

	us := p.SideToMove
	them := us.Other()
	from := m.From()
	to := m.To()
	piece := p.PieceAt(from)

	// Safety check - if no piece at from square, return without modifying position
	if piece == NoPiece {
		return undo
	}

	// Mark as valid since we have a piece and will apply the move
	undo.Valid = true
	pt := piece.Type()

	// Update hash for side to move
	p.Hash ^= hashKeySideBlk

	// Update hash for castling rights (will be updated again below if they change)
	p.Hash ^= hashKeyCastle[p.CastlingRights]

	// Update hash for en passant
	if p.EnPassant != NoSquare {
		p.Hash ^= hashKeyEPFile[p.EnPassant.File()]
		p.PawnKey ^= hashKeyEPFile[p.EnPassant.File()]
	}

	// Clear en passant
	p.EnPassant = NoSquare

	// Handle captures. The material key is updated with the captured
	// kind's post-removal count so the key stays a pure function of the
	// piece-count multiset.
	if m.IsEnPassant() {
		capturedSq := enPassantCapturedSquare(to, us)
		undo.CapturedPiece = p.removePiece(capturedSq)
		p.Hash ^= hashKeyPiece[them][Pawn][capturedSq]
		p.PawnKey ^= hashKeyPiece[them][Pawn][capturedSq]
		p.MaterialKey ^= hashKeyMaterial[them][Pawn][p.Pieces[them][Pawn].PopCount()+1]
	} else if captured := p.PieceAt(to); captured != NoPiece {
		// Normal capture
		undo.CapturedPiece = captured
		p.removePiece(to)
		capPt := captured.Type()
		p.Hash ^= hashKeyPiece[them][capPt][to]
		if capPt == Pawn {
			p.PawnKey ^= hashKeyPiece[them][Pawn][to]
		}
		p.MaterialKey ^= hashKeyMaterial[them][capPt][p.Pieces[them][capPt].PopCount()+1]
	}

	// Move the piece
	p.movePiece(from, to)
	p.Hash ^= hashKeyPiece[us][pt][from]
	p.Hash ^= hashKeyPiece[us][pt][to]
	if pt == Pawn {
		p.PawnKey ^= hashKeyPiece[us][Pawn][from]
		p.PawnKey ^= hashKeyPiece[us][Pawn][to]
	}

	// Handle promotion
	if m.IsPromotion() {
		promoPt := m.Promotion()
		// Remove pawn, add promoted piece
		p.Pieces[us][Pawn] &^= SquareBB(to)
		p.Pieces[us][promoPt] |= SquareBB(to)
		p.Hash ^= hashKeyPiece[us][Pawn][to]
		p.Hash ^= hashKeyPiece[us][promoPt][to]
		p.PawnKey ^= hashKeyPiece[us][Pawn][to]
		p.MaterialKey ^= hashKeyMaterial[us][Pawn][p.Pieces[us][Pawn].PopCount()+1]
		p.MaterialKey ^= hashKeyMaterial[us][promoPt][p.Pieces[us][promoPt].PopCount()]
	}

	// Handle castling
	if m.IsCastling() {
		rookFrom, rookTo := castlingRookSquares(from, to)
		p.movePiece(rookFrom, rookTo)
		p.Hash ^= hashKeyPiece[us][Rook][rookFrom]
		p.Hash ^= hashKeyPiece[us][Rook][rookTo]
	}

	// Update castling rights
	if pt == King {
		if us == White {
			p.CastlingRights &^= WhiteKingSideCastle | WhiteQueenSideCastle
		} else {
			p.CastlingRights &^= BlackKingSideCastle | BlackQueenSideCastle
		}
	}

	// Rook moves or captures affect castling
	if from == A1 || to == A1 {
		p.CastlingRights &^= WhiteQueenSideCastle
	}
	if from == H1 || to == H1 {
		p.CastlingRights &^= WhiteKingSideCastle
	}
	if from == A8 || to == A8 {
		p.CastlingRights &^= BlackQueenSideCastle
	}
	if from == H8 || to == H8 {
		p.CastlingRights &^= BlackKingSideCastle
	}

	// Update hash for new castling rights
	p.Hash ^= hashKeyCastle[p.CastlingRights]

	// Set en passant square for double pawn push
	if pt == Pawn && abs(int(to)-int(from)) == 16 {
		epSquare := Square((int(from) + int(to)) / 2)
		p.EnPassant = epSquare
		p.Hash ^= hashKeyEPFile[epSquare.File()]
		p.PawnKey ^= hashKeyEPFile[epSquare.File()]
	}

	// Update half-move clock
	if pt == Pawn || undo.CapturedPiece != NoPiece {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}

	// Update full-move number
	if us == Black {
		p.FullMoveNumber++
	}

	// Switch side to move
	p.SideToMove = them

	// Update checkers
	p.UpdateCheckers()

	return undo
}

// UnmakeMove undoes a move using the stored undo information.
func (p *Position) UnmakeMove(m Move, undo UndoInfo) {
	them := p.SideToMove
	us := them.Other()
	from := m.From()
	to := m.To()

	// Restore state
	p.CastlingRights = undo.CastlingRights
	p.EnPassant = undo.EnPassant
	p.HalfMoveClock = undo.HalfMoveClock
	p.Hash = undo.Hash
	p.PawnKey = undo.PawnKey
	p.MaterialKey = undo.MaterialKey
	p.Checkers = undo.Checkers
	p.SideToMove = us

	if us == Black {
		p.FullMoveNumber--
	}

	// Handle promotion first (before moving piece back)
	if m.IsPromotion() {
		promoPt := m.Promotion()
		// Remove promoted piece, restore pawn
		p.Pieces[us][promoPt] &^= SquareBB(to)
		p.Pieces[us][Pawn] |= SquareBB(to)
	}

	// Move piece back
	p.movePiece(to, from)

	// Handle castling rook
	if m.IsCastling() {
		rookFrom, rookTo := castlingRookSquares(from, to)
		p.movePiece(rookTo, rookFrom)
	}

	// Restore captured piece
	if undo.CapturedPiece != NoPiece {
		if m.IsEnPassant() {
			p.setPiece(undo.CapturedPiece, enPassantCapturedSquare(to, us))
		} else {
			p.setPiece(undo.CapturedPiece, to)
		}
	}
}

// HasLegalMoves returns true if the side to move has any legal moves.
func (p *Position) HasLegalMoves() bool {
	ml := p.GeneratePseudoLegalMoves()
	for i := 0; i < ml.Len(); i++ {
		if p.IsLegal(ml.Get(i)) {
			return true
		}
	}
	return false
}

// IsCheckmate returns true if the position is checkmate.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate returns true if the position is stalemate.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

// IsDraw returns true if the position is a draw (stalemate, 50-move, insufficient material).
func (p *Position) IsDraw() bool {
	if p.IsStalemate() {
		return true
	}
	if p.HalfMoveClock >= 100 {
		return true
	}
	return p.IsInsufficientMaterial()
}

// insufficientMaterialKeys holds the material keys of every drawn-by-material
// piece configuration: bare kings, and a lone minor piece against a bare
// king. Comparing MaterialKey against this set replaces per-call popcounts,
// since the material key is already a pure function of the piece-count
// multiset.
var insufficientMaterialKeys [5]uint64

// initInsufficientMaterialKeys is called from the Zobrist key generator's
// init path, after hashKeyMaterial is populated.
func initInsufficientMaterialKeys() {
	kk := hashKeyMaterial[White][King][1] ^ hashKeyMaterial[Black][King][1]
	insufficientMaterialKeys = [5]uint64{
		kk,
		kk ^ hashKeyMaterial[White][Bishop][1],
		kk ^ hashKeyMaterial[Black][Bishop][1],
		kk ^ hashKeyMaterial[White][Knight][1],
		kk ^ hashKeyMaterial[Black][Knight][1],
	}
}

// IsInsufficientMaterial returns true if neither side can checkmate.
func (p *Position) IsInsufficientMaterial() bool {
	for _, key := range insufficientMaterialKeys {
		if p.MaterialKey == key {
			return true
		}
	}
	return false
}
