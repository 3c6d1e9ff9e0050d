package board

import "fmt"

// Move is a 16-bit encoded chess move:
//
//	bits 0-5:   from square
//	bits 6-11:  to square
//	bits 12-13: promotion piece type, offset from Knight (0=N,1=B,2=R,3=Q)
//	bits 14-15: special-move flag
type Move uint16

const (
	FlagNormal    uint16 = 0 << 14
	FlagPromotion uint16 = 1 << 14
	FlagEnPassant uint16 = 2 << 14
	FlagCastling  uint16 = 3 << 14

	moveFromMask = 0x3F
	moveFlagMask = 0xC000
)

// NoMove is the null/invalid move, distinct from every encodable move since
// a real move always has differing from/to squares.
const NoMove Move = 0

func NewMove(from, to Square) Move {
	return Move(from) | Move(to)<<6
}

func NewPromotion(from, to Square, promo PieceType) Move {
	return Move(from) | Move(to)<<6 | Move(promo-Knight)<<12 | Move(FlagPromotion)
}

func NewEnPassant(from, to Square) Move {
	return Move(from) | Move(to)<<6 | Move(FlagEnPassant)
}

func NewCastling(from, to Square) Move {
	return Move(from) | Move(to)<<6 | Move(FlagCastling)
}

func (m Move) From() Square {
	return Square(m & moveFromMask)
}

func (m Move) To() Square {
	return Square((m >> 6) & moveFromMask)
}

func (m Move) Flag() uint16 {
	return uint16(m) & moveFlagMask
}

// Promotion returns the promoted-to piece type; meaningful only when
// IsPromotion reports true.
func (m Move) Promotion() PieceType {
	return PieceType((m>>12)&3) + Knight
}

func (m Move) IsPromotion() bool { return m.Flag() == FlagPromotion }
func (m Move) IsCastling() bool  { return m.Flag() == FlagCastling }
func (m Move) IsEnPassant() bool { return m.Flag() == FlagEnPassant }

// IsCapture reports whether playing m against pos removes an enemy piece.
func (m Move) IsCapture(pos *Position) bool {
	return m.IsEnPassant() || !pos.IsEmpty(m.To())
}

// IsQuiet reports whether m is neither a capture nor a promotion.
func (m Move) IsQuiet(pos *Position) bool {
	return !m.IsCapture(pos) && !m.IsPromotion()
}

var promotionLetters = [4]byte{'n', 'b', 'r', 'q'}

// String renders m in UCI long-algebraic form (e.g. "e2e4", "e7e8q").
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}

	out := m.From().String() + m.To().String()
	if m.IsPromotion() {
		out += string(promotionLetters[m.Promotion()-Knight])
	}
	return out
}

// ParseMove decodes a UCI long-algebraic move string against pos, which
// supplies the context (piece identity, en-passant square) needed to
// distinguish castling/en-passant/normal moves from the bare squares.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("board: move %q too short", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	if len(s) == 5 {
		promo, ok := pieceTypeFromPromotionLetter(s[4])
		if !ok {
			return NoMove, fmt.Errorf("board: invalid promotion letter %q", s[4])
		}
		return NewPromotion(from, to, promo), nil
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("board: no piece on %s", from)
	}

	switch pt := piece.Type(); {
	case pt == King && abs(int(to)-int(from)) == 2:
		return NewCastling(from, to), nil
	case pt == Pawn && to == pos.EnPassant:
		return NewEnPassant(from, to), nil
	default:
		return NewMove(from, to), nil
	}
}

func pieceTypeFromPromotionLetter(c byte) (PieceType, bool) {
	for i, letter := range promotionLetters {
		if letter == c {
			return Knight + PieceType(i), true
		}
	}
	return NoPieceType, false
}

// MoveList is a fixed-capacity, allocation-free list of pseudo-legal moves
// produced during generation.
type MoveList struct {
	moves [256]Move
	count int
}

func NewMoveList() *MoveList {
	return &MoveList{}
}

func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

func (ml *MoveList) Len() int {
	return ml.count
}

func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

func (ml *MoveList) Set(i int, m Move) {
	ml.moves[i] = m
}

func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

func (ml *MoveList) Clear() {
	ml.count = 0
}

func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}

// UndoInfo captures everything Position.UnmakeMove needs to restore state
// that MakeMove cannot cheaply recompute from the move alone.
type UndoInfo struct {
	CapturedPiece  Piece
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	Hash           uint64
	PawnKey        uint64
	MaterialKey    uint64
	Checkers       Bitboard
	Valid          bool
}
