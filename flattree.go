package b3tree

import (
	"errors"
	"fmt"
)

// ErrInvalidTreeSize means a flat hash list cannot be the post-order
// serialization of a tree with the claimed length and chunk size.
var ErrInvalidTreeSize = errors.New("b3tree: invalid flat tree size")

// FlatTree is the post-order flat form of a verification tree: for a tree
// of n chunks it holds 2n-1 chaining values, each subtree occupying a
// contiguous block that ends with the subtree's own chaining value. The
// root is the last entry.
//
// A FlatTree captured from a verified decode lets a node re-derive range
// encodings of content it already holds without re-hashing a single byte
// of it.
type FlatTree struct {
	length    uint64
	chunkSize uint64
	hashes    []CV
}

// NewFlatTree wraps hashes as the flat tree of a length-byte object with
// the given chunk size. The hashes are not re-verified against anything;
// they should come from a trusted build or a verified decode.
func NewFlatTree(length uint64, chunkSize int, hashes []CV) (*FlatTree, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidTreeSize, chunkSize)
	}
	chunks := chunkCount(length, uint64(chunkSize))
	if uint64(len(hashes)) != 2*chunks-1 {
		return nil, fmt.Errorf("%w: got %d hashes, want %d for %d chunks",
			ErrInvalidTreeSize, len(hashes), 2*chunks-1, chunks)
	}
	return &FlatTree{
		length:    length,
		chunkSize: uint64(chunkSize),
		hashes:    hashes,
	}, nil
}

// Root returns the root chaining value.
func (f *FlatTree) Root() CV {
	return f.hashes[len(f.hashes)-1]
}

// Length returns the total content length in bytes.
func (f *FlatTree) Length() uint64 {
	return f.length
}

// ChunkSize returns the chunk size of the committed content.
func (f *FlatTree) ChunkSize() int {
	return int(f.chunkSize)
}

// NumChunks returns the number of leaf chunks.
func (f *FlatTree) NumChunks() uint64 {
	return (uint64(len(f.hashes)) + 1) / 2
}

// Hashes returns the underlying post-order chaining values. The slice is
// shared with the FlatTree and must not be modified.
func (f *FlatTree) Hashes() []CV {
	return f.hashes
}

// TreeFromFlat rebuilds a Tree from its flat form; length and chunk size
// come from the flat tree. Encoding needs no hashing, so no further
// configuration applies.
func TreeFromFlat(flat *FlatTree) *Tree {
	return &Tree{flat: flat}
}

// cv returns the chaining value of the node covering chunks [start, end)
// whose post-order block begins at lo.
func (f *FlatTree) cv(start, end, lo uint64) CV {
	return f.hashes[lo+2*(end-start)-2]
}
