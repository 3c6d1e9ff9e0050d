package board

// Position hashing keys, generated once at package init from a fixed seed so
// that hashes are stable across runs (and across processes sharing a
// transposition table dump).
var (
	hashKeyPiece   [2][7][64]uint64 // [Color][PieceType][Square]; PieceType 7 slots to keep NoPieceType in range
	hashKeyEPFile  [8]uint64
	hashKeyCastle  [16]uint64
	hashKeySideBlk uint64

	// hashKeyMaterial is indexed by [Color][PieceType][count]: the material
	// key of a position XORs, for each (color, type), the keys at counts
	// 1..n where n pieces of that kind are on the board. Square-independent
	// by construction, so it is stable under piece permutations. Count 0
	// intentionally contributes nothing; index 10 covers the theoretical
	// maximum of 10 of one piece type via promotions (9 promoted queens
	// plus the original is impossible together with 8 pawns, but 10 knights
	// is reachable, so the table leaves room).
	hashKeyMaterial [2][6][11]uint64
)

func init() {
	generateHashKeys()
	initInsufficientMaterialKeys()
}

// splitmix64 is a fast, well-distributed PRNG suitable for seeding key
// tables; it has no cryptographic requirement here, only reproducibility.
type splitmix64 struct {
	x uint64
}

func newSplitmix64(seed uint64) *splitmix64 {
	return &splitmix64{x: seed}
}

func (s *splitmix64) next() uint64 {
	s.x += 0x9E3779B97F4A7C15
	z := s.x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func generateHashKeys() {
	gen := newSplitmix64(0x4C6F72616E734B65)

	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			for sq := A1; sq <= H8; sq++ {
				hashKeyPiece[c][pt][sq] = gen.next()
			}
		}
	}

	for file := 0; file < 8; file++ {
		hashKeyEPFile[file] = gen.next()
	}

	for i := 0; i < 16; i++ {
		hashKeyCastle[i] = gen.next()
	}

	hashKeySideBlk = gen.next()

	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			for n := 1; n <= 10; n++ {
				hashKeyMaterial[c][pt][n] = gen.next()
			}
		}
	}
}

// ZobristPiece returns the hash contribution of a piece standing on a square.
func ZobristPiece(c Color, pt PieceType, sq Square) uint64 {
	return hashKeyPiece[c][pt][sq]
}

// ZobristEnPassant returns the hash contribution of an en passant target file.
func ZobristEnPassant(file int) uint64 {
	return hashKeyEPFile[file]
}

// ZobristCastling returns the hash contribution of a castling rights mask.
func ZobristCastling(cr CastlingRights) uint64 {
	return hashKeyCastle[cr]
}

// ZobristSideToMove returns the hash contribution toggled when it is Black's turn.
func ZobristSideToMove() uint64 {
	return hashKeySideBlk
}

// ZobristMaterial returns the key toggled when the count of (c, pt) pieces
// crosses from n-1 to n (or back).
func ZobristMaterial(c Color, pt PieceType, n int) uint64 {
	return hashKeyMaterial[c][pt][n]
}
