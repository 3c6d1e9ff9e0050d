package board

// Color identifies a player/side.
type Color uint8

const (
	White Color = iota
	Black
	NoColor Color = 2
)

// Other returns the opponent's color.
func (c Color) Other() Color {
	return c ^ 1
}

func (c Color) String() string {
	names := [...]string{"White", "Black"}
	if int(c) >= len(names) {
		return "NoColor"
	}
	return names[c]
}

// PieceType identifies a kind of piece, independent of color.
type PieceType uint8

const (
	Pawn PieceType = iota
	Knight
	Bishop
	Rook
	Queen
	King
	NoPieceType PieceType = 6
)

var pieceTypeNames = [...]string{"Pawn", "Knight", "Bishop", "Rook", "Queen", "King"}

func (pt PieceType) String() string {
	if int(pt) >= len(pieceTypeNames) {
		return "None"
	}
	return pieceTypeNames[pt]
}

// pieceTypeFENChars maps PieceType to its lowercase FEN letter, indexed
// identically to pieceTypeNames.
const pieceTypeFENChars = "pnbrqk "

// Char returns the lowercase FEN letter for the piece type.
func (pt PieceType) Char() byte {
	if pt > NoPieceType {
		return ' '
	}
	return pieceTypeFENChars[pt]
}

// PieceValue gives the material worth of each PieceType in centipawns,
// indexed by PieceType including the NoPieceType sentinel (worth 0).
var PieceValue = [7]int{100, 320, 330, 500, 900, 20000, 0}

// Piece packs a PieceType and Color into one value: pieceType + color*6.
type Piece uint8

const (
	WhitePawn   Piece = Piece(Pawn) + Piece(White)*6
	WhiteKnight Piece = Piece(Knight) + Piece(White)*6
	WhiteBishop Piece = Piece(Bishop) + Piece(White)*6
	WhiteRook   Piece = Piece(Rook) + Piece(White)*6
	WhiteQueen  Piece = Piece(Queen) + Piece(White)*6
	WhiteKing   Piece = Piece(King) + Piece(White)*6
	BlackPawn   Piece = Piece(Pawn) + Piece(Black)*6
	BlackKnight Piece = Piece(Knight) + Piece(Black)*6
	BlackBishop Piece = Piece(Bishop) + Piece(Black)*6
	BlackRook   Piece = Piece(Rook) + Piece(Black)*6
	BlackQueen  Piece = Piece(Queen) + Piece(Black)*6
	BlackKing   Piece = Piece(King) + Piece(Black)*6
	NoPiece     Piece = 12
)

// pieceFENChars gives the FEN letter for every packed Piece value in
// declaration order (white pieces upper-case, then black lower-case).
const pieceFENChars = "PNBRQKpnbrqk"

// NewPiece packs a type and color into a Piece, or NoPiece if either is invalid.
func NewPiece(pt PieceType, c Color) Piece {
	if pt >= NoPieceType || c >= NoColor {
		return NoPiece
	}
	return Piece(pt) + Piece(c)*6
}

// PieceFromChar parses a single FEN piece letter.
func PieceFromChar(c byte) Piece {
	for i := 0; i < len(pieceFENChars); i++ {
		if pieceFENChars[i] == c {
			return Piece(i)
		}
	}
	return NoPiece
}

// Type extracts the PieceType, or NoPieceType for NoPiece.
func (p Piece) Type() PieceType {
	if p >= NoPiece {
		return NoPieceType
	}
	return PieceType(p % 6)
}

// Color extracts the owning Color, or NoColor for NoPiece.
func (p Piece) Color() Color {
	if p >= NoPiece {
		return NoColor
	}
	return Color(p / 6)
}

// Value returns the packed piece's material value in centipawns.
func (p Piece) Value() int {
	return PieceValue[p.Type()]
}

func (p Piece) String() string {
	if p >= NoPiece {
		return " "
	}
	return string(pieceFENChars[p])
}
