// Package features implements the HalfKAv2_hm input encoding, derived
// from Stockfish's src/nnue/features/half_ka_v2_hm.h: every (piece,
// square) pair is indexed relative to the perspective's own king, with
// the board mirrored horizontally whenever that king sits on files a-d so
// only king buckets for the e-h half need weights.
package features

// Board geometry, in the network's own little-endian square numbering.
const (
	SQ_A1 = 0
	SQ_H1 = 7

	SQUARE_NB = 64
)

// Perspectives.
const (
	White = 0
	Black = 1

	COLOR_NB = 2
)

// Piece encoding: type in the low three bits, color in bit 3, matching
// the weight layout the network files were trained with.
const (
	NO_PIECE = 0

	W_PAWN   = 1
	W_KNIGHT = 2
	W_BISHOP = 3
	W_ROOK   = 4
	W_QUEEN  = 5
	W_KING   = 6

	B_PAWN   = 9
	B_KNIGHT = 10
	B_BISHOP = 11
	B_ROOK   = 12
	B_QUEEN  = 13
	B_KING   = 14

	PIECE_NB = 16
)

// Per-piece blocks of the feature space. Both kings share one block (the
// perspective's own king square is fixed by the bucket, so within a bucket
// its king feature takes one square and a separate block would be redundant).
const (
	PS_NONE     = 0
	PS_W_PAWN   = 0
	PS_B_PAWN   = 1 * SQUARE_NB
	PS_W_KNIGHT = 2 * SQUARE_NB
	PS_B_KNIGHT = 3 * SQUARE_NB
	PS_W_BISHOP = 4 * SQUARE_NB
	PS_B_BISHOP = 5 * SQUARE_NB
	PS_W_ROOK   = 6 * SQUARE_NB
	PS_B_ROOK   = 7 * SQUARE_NB
	PS_W_QUEEN  = 8 * SQUARE_NB
	PS_B_QUEEN  = 9 * SQUARE_NB
	PS_KING     = 10 * SQUARE_NB
	PS_NB       = 11 * SQUARE_NB
)

// HashValue is this feature set's contribution to the network-file hash.
const HashValue uint32 = 0x7f234cb8

// Dimensions is the feature-space size; the mirroring halves the naive
// king-square count.
const Dimensions = SQUARE_NB * PS_NB / 2 // = 22528

// MaxActiveDimensions bounds the simultaneously active features per
// perspective: one per piece on the board.
const MaxActiveDimensions = 32

// PieceSquareIndex selects a piece's block per perspective: own pieces
// land in the W_* blocks, the opponent's in the B_* blocks, so the same
// weights serve both sides of the board.
var PieceSquareIndex = [COLOR_NB][PIECE_NB]int{
	{PS_NONE, PS_W_PAWN, PS_W_KNIGHT, PS_W_BISHOP, PS_W_ROOK, PS_W_QUEEN, PS_KING, PS_NONE,
		PS_NONE, PS_B_PAWN, PS_B_KNIGHT, PS_B_BISHOP, PS_B_ROOK, PS_B_QUEEN, PS_KING, PS_NONE},
	{PS_NONE, PS_B_PAWN, PS_B_KNIGHT, PS_B_BISHOP, PS_B_ROOK, PS_B_QUEEN, PS_KING, PS_NONE,
		PS_NONE, PS_W_PAWN, PS_W_KNIGHT, PS_W_BISHOP, PS_W_ROOK, PS_W_QUEEN, PS_KING, PS_NONE},
}

// KingBuckets maps a (perspective-relative) king square to its weight
// bucket, pre-multiplied by PS_NB. Mirrored files share buckets, which is
// what makes the halved Dimensions work.
var KingBuckets = [SQUARE_NB]int{
	28 * PS_NB, 29 * PS_NB, 30 * PS_NB, 31 * PS_NB, 31 * PS_NB, 30 * PS_NB, 29 * PS_NB, 28 * PS_NB,
	24 * PS_NB, 25 * PS_NB, 26 * PS_NB, 27 * PS_NB, 27 * PS_NB, 26 * PS_NB, 25 * PS_NB, 24 * PS_NB,
	20 * PS_NB, 21 * PS_NB, 22 * PS_NB, 23 * PS_NB, 23 * PS_NB, 22 * PS_NB, 21 * PS_NB, 20 * PS_NB,
	16 * PS_NB, 17 * PS_NB, 18 * PS_NB, 19 * PS_NB, 19 * PS_NB, 18 * PS_NB, 17 * PS_NB, 16 * PS_NB,
	12 * PS_NB, 13 * PS_NB, 14 * PS_NB, 15 * PS_NB, 15 * PS_NB, 14 * PS_NB, 13 * PS_NB, 12 * PS_NB,
	8 * PS_NB, 9 * PS_NB, 10 * PS_NB, 11 * PS_NB, 11 * PS_NB, 10 * PS_NB, 9 * PS_NB, 8 * PS_NB,
	4 * PS_NB, 5 * PS_NB, 6 * PS_NB, 7 * PS_NB, 7 * PS_NB, 6 * PS_NB, 5 * PS_NB, 4 * PS_NB,
	0 * PS_NB, 1 * PS_NB, 2 * PS_NB, 3 * PS_NB, 3 * PS_NB, 2 * PS_NB, 1 * PS_NB, 0 * PS_NB,
}

// OrientTBL gives, per king square, the XOR mask that mirrors piece
// squares onto the e-h half: SQ_H1 (all file bits set) flips files a-d
// over, SQ_A1 leaves them alone.
var OrientTBL = [SQUARE_NB]int{
	SQ_H1, SQ_H1, SQ_H1, SQ_H1, SQ_A1, SQ_A1, SQ_A1, SQ_A1,
	SQ_H1, SQ_H1, SQ_H1, SQ_H1, SQ_A1, SQ_A1, SQ_A1, SQ_A1,
	SQ_H1, SQ_H1, SQ_H1, SQ_H1, SQ_A1, SQ_A1, SQ_A1, SQ_A1,
	SQ_H1, SQ_H1, SQ_H1, SQ_H1, SQ_A1, SQ_A1, SQ_A1, SQ_A1,
	SQ_H1, SQ_H1, SQ_H1, SQ_H1, SQ_A1, SQ_A1, SQ_A1, SQ_A1,
	SQ_H1, SQ_H1, SQ_H1, SQ_H1, SQ_A1, SQ_A1, SQ_A1, SQ_A1,
	SQ_H1, SQ_H1, SQ_H1, SQ_H1, SQ_A1, SQ_A1, SQ_A1, SQ_A1,
	SQ_H1, SQ_H1, SQ_H1, SQ_H1, SQ_A1, SQ_A1, SQ_A1, SQ_A1,
}

// MakeIndex returns the feature index of piece pc standing on sq, seen
// from perspective whose king is on ksq. The 56-XOR flips ranks for the
// black perspective; the orientation mask then handles the horizontal
// mirror for a-d-file kings.
func MakeIndex(perspective int, sq int, pc int, ksq int) int {
	flip := 56 * perspective
	return (sq ^ OrientTBL[ksq] ^ flip) + PieceSquareIndex[perspective][pc] + KingBuckets[ksq^flip]
}

// IndexList collects active feature indices without allocating; the fixed
// capacity is MaxActiveDimensions, which a legal position cannot exceed.
type IndexList struct {
	Values [MaxActiveDimensions]int
	Size   int
}

// Push appends an index; past capacity it is dropped, which only a
// corrupt position could trigger.
func (l *IndexList) Push(idx int) {
	if l.Size < MaxActiveDimensions {
		l.Values[l.Size] = idx
		l.Size++
	}
}

// Clear resets the list for reuse.
func (l *IndexList) Clear() {
	l.Size = 0
}
