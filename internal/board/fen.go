package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the standard chess starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// fenField indexes the space-separated sections of a FEN record.
type fenField int

const (
	fieldPlacement fenField = iota
	fieldSideToMove
	fieldCastling
	fieldEnPassant
	fieldHalfMove
	fieldFullMove
)

// ParseFEN builds a Position from Forsyth-Edwards Notation. The half-move
// clock and full-move number fields are optional, defaulting to 0 and 1.
func ParseFEN(fen string) (*Position, error) {
	fields := strings.Fields(fen)
	if len(fields) <= int(fieldEnPassant) {
		return nil, fmt.Errorf("board: FEN needs at least 4 fields, got %d", len(fields))
	}
	field := func(i fenField) (string, bool) {
		if int(i) >= len(fields) {
			return "", false
		}
		return fields[i], true
	}

	pos := &Position{EnPassant: NoSquare, FullMoveNumber: 1}
	pos.KingSquare[White] = NoSquare
	pos.KingSquare[Black] = NoSquare

	placement, _ := field(fieldPlacement)
	if err := parsePiecePlacement(pos, placement); err != nil {
		return nil, err
	}

	stm, _ := field(fieldSideToMove)
	switch stm {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return nil, fmt.Errorf("board: invalid side to move %q", stm)
	}

	castling, _ := field(fieldCastling)
	if err := parseCastlingRights(pos, castling); err != nil {
		return nil, err
	}

	if ep, _ := field(fieldEnPassant); ep != "-" {
		sq, err := ParseSquare(ep)
		if err != nil {
			return nil, fmt.Errorf("board: invalid en passant square %q", ep)
		}
		// The target sits behind the pawn that just double-pushed: rank 6
		// (index 5) when White is to move, rank 3 (index 2) when Black is.
		rank := sq.Rank()
		wantRank := 2
		if pos.SideToMove == White {
			wantRank = 5
		}
		if rank != wantRank {
			return nil, fmt.Errorf("board: en passant square %q inconsistent with side to move", ep)
		}
		pos.EnPassant = sq
	}

	if hmc, ok := field(fieldHalfMove); ok {
		n, err := strconv.Atoi(hmc)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("board: invalid half-move clock %q", hmc)
		}
		pos.HalfMoveClock = n
	}
	if fmn, ok := field(fieldFullMove); ok {
		n, err := strconv.Atoi(fmn)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("board: invalid full-move number %q", fmn)
		}
		pos.FullMoveNumber = n
	}

	if pos.KingSquare[White] == NoSquare || pos.KingSquare[Black] == NoSquare {
		return nil, fmt.Errorf("board: FEN missing a king")
	}

	pos.updateOccupied()
	pos.Hash = pos.ComputeHash()
	pos.PawnKey = pos.ComputePawnKey()
	pos.MaterialKey = pos.ComputeMaterialKey()
	pos.UpdateCheckers()

	return pos, nil
}

// parsePiecePlacement parses the piece placement section of a FEN string,
// rank 8 down to rank 1, each rank separated by '/'.
func parsePiecePlacement(pos *Position, placement string) error {
	rank := 7
	file := 0

	for i := 0; i < len(placement); i++ {
		c := placement[i]
		switch {
		case c == '/':
			if file != 8 {
				return fmt.Errorf("invalid number of squares in rank %d: got %d", rank+1, file)
			}
			rank--
			file = 0
			if rank < 0 {
				return fmt.Errorf("invalid piece placement: too many ranks")
			}
		case c >= '1' && c <= '8':
			file += int(c - '0')
			if file > 8 {
				return fmt.Errorf("too many squares in rank %d", rank+1)
			}
		default:
			piece := PieceFromChar(c)
			if piece == NoPiece {
				return fmt.Errorf("invalid piece character: %c", c)
			}
			if file > 7 {
				return fmt.Errorf("too many squares in rank %d", rank+1)
			}
			pos.setPiece(piece, NewSquare(file, rank))
			file++
		}
	}

	if rank != 0 || file != 8 {
		return fmt.Errorf("invalid piece placement: expected 8 ranks of 8 squares")
	}

	return nil
}

// parseCastlingRights parses the castling rights section of a FEN string.
func parseCastlingRights(pos *Position, castling string) error {
	if castling == "-" {
		pos.CastlingRights = NoCastling
		return nil
	}

	for _, c := range castling {
		switch c {
		case 'K':
			pos.CastlingRights |= WhiteKingSideCastle
		case 'Q':
			pos.CastlingRights |= WhiteQueenSideCastle
		case 'k':
			pos.CastlingRights |= BlackKingSideCastle
		case 'q':
			pos.CastlingRights |= BlackQueenSideCastle
		default:
			return fmt.Errorf("invalid castling character: %c", c)
		}
	}

	return nil
}

// ToFEN returns the FEN representation of the position.
func (p *Position) ToFEN() string {
	var sb strings.Builder

	// Piece placement
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			piece := p.PieceAt(sq)
			if piece == NoPiece {
				empty++
			} else {
				if empty > 0 {
					sb.WriteString(strconv.Itoa(empty))
					empty = 0
				}
				sb.WriteString(piece.String())
			}
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	// Side to move
	sb.WriteByte(' ')
	if p.SideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	// Castling rights
	sb.WriteByte(' ')
	sb.WriteString(p.CastlingRights.String())

	// En passant
	sb.WriteByte(' ')
	sb.WriteString(p.EnPassant.String())

	// Half-move clock and full-move number
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.HalfMoveClock))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.FullMoveNumber))

	return sb.String()
}

// ComputeHash computes the Zobrist hash for the position from scratch.
// See zobrist.go for how each component key is derived.
func (p *Position) ComputeHash() uint64 {
	var hash uint64

	// Hash pieces
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			bb := p.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				hash ^= hashKeyPiece[c][pt][sq]
			}
		}
	}

	// Hash side to move
	if p.SideToMove == Black {
		hash ^= hashKeySideBlk
	}

	// Hash castling rights
	hash ^= hashKeyCastle[p.CastlingRights]

	// Hash en passant
	if p.EnPassant != NoSquare {
		hash ^= hashKeyEPFile[p.EnPassant.File()]
	}

	return hash
}

// ComputePawnKey computes the pawn hash key from scratch. It covers pawn
// placement and the en passant file, nothing else.
func (p *Position) ComputePawnKey() uint64 {
	var key uint64

	for c := White; c <= Black; c++ {
		bb := p.Pieces[c][Pawn]
		for bb != 0 {
			sq := bb.PopLSB()
			key ^= hashKeyPiece[c][Pawn][sq]
		}
	}

	if p.EnPassant != NoSquare {
		key ^= hashKeyEPFile[p.EnPassant.File()]
	}

	return key
}

// ComputeMaterialKey computes the material key from scratch: for each
// (color, piece type) with n pieces on the board, the keys for counts
// 1 through n are XORed in. Two positions with the same piece counts get
// the same key no matter where the pieces stand.
func (p *Position) ComputeMaterialKey() uint64 {
	var key uint64

	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			n := p.Pieces[c][pt].PopCount()
			for i := 1; i <= n; i++ {
				key ^= hashKeyMaterial[c][pt][i]
			}
		}
	}

	return key
}
