package b3tree

import (
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
)

// HashSize is the size of a chaining value in bytes.
const HashSize = 32

// DefaultChunkSize is the number of input bytes covered by one leaf unless
// a tree is configured otherwise. The chunk size is part of the wire
// format: producer and verifier must agree on it or no root will match.
const DefaultChunkSize = 1024

// Domain-separation flags mixed into every hash computation. They are part
// of the wire format. A chunk is hashed as a single block, so every leaf
// carries both FlagChunkStart and FlagChunkEnd; FlagRoot is set on exactly
// one node per tree, whether that node is a leaf (single-chunk tree) or a
// parent.
const (
	FlagChunkStart = byte(1 << iota)
	FlagChunkEnd
	FlagParent
	FlagRoot
)

// CV is the chaining value of a leaf chunk or an internal tree node. The
// chaining value of the top-level node is the content identifier.
type CV [HashSize]byte

// String returns the chaining value in hex.
func (cv CV) String() string {
	return fmt.Sprintf("%x", cv[:])
}

// NewBaseHasher returns the default base hash (blake3) used for chaining
// value computation. The base hash is pluggable via the BaseHasher option;
// any hash.Hash with a 32-byte sum works, but like the chunk size it is
// part of the wire format.
func NewBaseHasher() hash.Hash {
	return blake3.New()
}

// Hasher computes leaf and parent chaining values over a base hash.
//
// A leaf is hashed as flags || chunkIndex (8 bytes, little-endian) ||
// chunkBytes, a parent as flags || leftCV || rightCV. The flag byte makes
// the leaf, parent and root contexts mutually incompatible even for
// identical input bytes.
//
// Hasher is not safe for concurrent use; each goroutine needs its own.
type Hasher struct {
	base hash.Hash
	buf  []byte
}

// NewHasher wraps baseHasher for chaining value computation. It panics if
// the base hash does not produce 32-byte sums.
func NewHasher(baseHasher hash.Hash) *Hasher {
	if baseHasher.Size() != HashSize {
		panic(fmt.Sprintf("b3tree: base hasher size %d, want %d", baseHasher.Size(), HashSize))
	}
	return &Hasher{
		base: baseHasher,
		buf:  make([]byte, 0, 1+2*HashSize),
	}
}

// HashLeaf computes the chaining value of the chunk at chunkIndex. isRoot
// must be true iff the chunk is the only node of its tree.
//
//nolint:errcheck
func (h *Hasher) HashLeaf(chunkIndex uint64, data []byte, isRoot bool) CV {
	flags := FlagChunkStart | FlagChunkEnd
	if isRoot {
		flags |= FlagRoot
	}
	h.base.Reset()
	h.buf = h.buf[:0]
	h.buf = append(h.buf, flags)
	h.buf = binary.LittleEndian.AppendUint64(h.buf, chunkIndex)
	h.base.Write(h.buf)
	h.base.Write(data)

	var cv CV
	h.base.Sum(cv[:0])
	return cv
}

// HashParent computes the chaining value of an internal node from its two
// child chaining values. isRoot must be true iff this is the top-level
// node of the tree.
//
//nolint:errcheck
func (h *Hasher) HashParent(left, right CV, isRoot bool) CV {
	flags := FlagParent
	if isRoot {
		flags |= FlagRoot
	}
	h.base.Reset()

	// A single Write of the concatenation is a little faster than several
	// Write calls on the underlying hash (see
	// https://github.com/google/trillian/pull/1503).
	h.buf = h.buf[:0]
	h.buf = append(h.buf, flags)
	h.buf = append(h.buf, left[:]...)
	h.buf = append(h.buf, right[:]...)
	h.base.Write(h.buf)

	var cv CV
	h.base.Sum(cv[:0])
	return cv
}
