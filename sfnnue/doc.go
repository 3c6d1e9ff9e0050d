/*
Package sfnnue evaluates chess positions with Stockfish-format NNUE
networks.

This code is derived from Stockfish, a UCI chess playing engine.
Copyright (C) 2004-2026 The Stockfish developers (see AUTHORS file)

Stockfish is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Stockfish is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.

Original C++ source: https://github.com/official-stockfish/Stockfish

# Architecture

Positions are encoded with the HalfKAv2_hm feature set (features/): one
feature per piece-square pair, indexed relative to each side's own king
with horizontal mirroring. The feature transformer accumulates the active
features' weight columns into per-perspective int16 accumulators that a
search maintains incrementally through AccumulatorStack; the layer stack
(layers/) then runs two quantized affine+activation pairs and an output
layer, with eight weight buckets selected by piece count. Two networks of
this shape are carried, a big and a small one, and the caller blends or
picks between them per node.

# Usage

Load both networks once and share them across search workers; each worker
keeps its own AccumulatorStack:

	nets, err := sfnnue.LoadNetworks(bigPath, smallPath)
	if err != nil {
		// the loader fails closed on version/hash mismatch
	}
	acc := sfnnue.NewAccumulatorStack()
	psqt, positional := nets.Big.Evaluate(
		acc.CurrentBig().Accumulation, acc.CurrentBig().PSQTAccumulation,
		sideToMove, pieceCount, acc.TransformBuffer[:])

LoadNetworks builds the networks from scratch and returns an error
instead of a partially loaded pair, so a previously returned Networks
value stays usable when a later load is rejected.
*/
package sfnnue
