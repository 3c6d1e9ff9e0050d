// Package board implements chess board representation using bitboards.
package board

import "fmt"

// Square identifies one of the 64 board squares, numbered in little-endian
// rank-file order: A1=0, H1=7, A8=56, H8=63.
type Square uint8

// Named squares, plus the sentinel NoSquare used for "no en passant target"
// and similar absent-square cases.
const (
	A1 Square = iota
	B1
	C1
	D1
	E1
	F1
	G1
	H1
	A2
	B2
	C2
	D2
	E2
	F2
	G2
	H2
	A3
	B3
	C3
	D3
	E3
	F3
	G3
	H3
	A4
	B4
	C4
	D4
	E4
	F4
	G4
	H4
	A5
	B5
	C5
	D5
	E5
	F5
	G5
	H5
	A6
	B6
	C6
	D6
	E6
	F6
	G6
	H6
	A7
	B7
	C7
	D7
	E7
	F7
	G7
	H7
	A8
	B8
	C8
	D8
	E8
	F8
	G8
	H8
	NoSquare Square = 64
)

// NewSquare builds a Square from 0-indexed file (a=0..h=7) and rank (1=0..8=7).
func NewSquare(file, rank int) Square {
	return Square(rank*8 + file)
}

// ParseSquare converts algebraic notation such as "e4" into a Square.
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return NoSquare, fmt.Errorf("board: square %q must be two characters", s)
	}

	file := int(s[0] - 'a')
	rank := int(s[1] - '1')
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare, fmt.Errorf("board: square %q out of range", s)
	}

	return NewSquare(file, rank), nil
}

// File reports the 0-indexed file (a=0..h=7).
func (sq Square) File() int {
	return int(sq) & 7
}

// Rank reports the 0-indexed rank (1st rank=0..8th rank=7).
func (sq Square) Rank() int {
	return int(sq) >> 3
}

// IsValid reports whether sq names a real board square.
func (sq Square) IsValid() bool {
	return sq < NoSquare
}

// Mirror flips a square across the board's horizontal midline, useful for
// viewing a position from Black's side.
func (sq Square) Mirror() Square {
	return sq ^ 56
}

// RelativeRank reports the rank as seen by color c: c's own back rank is 0.
func (sq Square) RelativeRank(c Color) int {
	if c == White {
		return sq.Rank()
	}
	return 7 - sq.Rank()
}

// String renders algebraic notation ("e4"), or "-" for NoSquare.
func (sq Square) String() string {
	if !sq.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%c%c", 'a'+sq.File(), '1'+sq.Rank())
}
