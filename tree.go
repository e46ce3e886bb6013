package b3tree

import (
	"fmt"
	"io"
	"math/bits"
)

// Tree commits a byte sequence to a single 32-byte root. It holds the
// total length, the chunk size, and every chaining value of the tree, but
// not the content itself; encoding operations take the content separately.
//
// A Tree is immutable once built. New inputs produce new trees.
type Tree struct {
	flat *FlatTree
}

// NewTree builds the verification tree for data. Leaf hashing is spread
// across workers for large inputs; the merge order is fixed by chunk index
// so the root is deterministic regardless of scheduling.
func NewTree(data []byte, setters ...Option) *Tree {
	opts := buildOptions(setters...)
	leaves := hashLeaves(opts, data)
	return fromLeaves(uint64(len(data)), leaves, opts)
}

// NewTreeFromReader builds the verification tree for the contents of r.
// The content is consumed once and not retained; callers that want to
// encode it later must be able to re-read it. A reader error surfaces
// without producing a tree.
func NewTreeFromReader(r io.Reader, setters ...Option) (*Tree, error) {
	opts := buildOptions(setters...)
	hasher := opts.newHasher()
	chunker := NewChunker(r, opts.ChunkSize)

	var (
		length uint64
		first  []byte
		leaves = make([]CV, 0, opts.InitialCapacity)
	)
	for {
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("b3tree: read chunk %d: %w", len(leaves), err)
		}
		length += uint64(len(chunk.Data))
		if chunk.Index == 0 {
			// Whether chunk 0 is the root is only known at EOF; keep its
			// bytes so it can be rehashed with the root flag if it is.
			first = append(first[:0], chunk.Data...)
		}
		leaves = append(leaves, hasher.HashLeaf(chunk.Index, chunk.Data, false))
	}
	if len(leaves) == 1 {
		leaves[0] = hasher.HashLeaf(0, first, true)
	}
	return fromLeaves(length, leaves, opts), nil
}

func fromLeaves(length uint64, leaves []CV, opts *Options) *Tree {
	hasher := opts.newHasher()
	hashes := make([]CV, 0, 2*len(leaves)-1)
	hashes, _ = appendSubtree(hashes, hasher, leaves, 0, uint64(len(leaves)), true)
	return &Tree{
		flat: &FlatTree{
			length:    length,
			chunkSize: uint64(opts.ChunkSize),
			hashes:    hashes,
		},
	}
}

// appendSubtree appends the post-order chaining values of the subtree over
// chunks [start, end) to dst and returns the subtree's own chaining value.
func appendSubtree(dst []CV, hasher *Hasher, leaves []CV, start, end uint64, isRoot bool) ([]CV, CV) {
	if end-start == 1 {
		return append(dst, leaves[start]), leaves[start]
	}
	k := splitPoint(end - start)
	dst, left := appendSubtree(dst, hasher, leaves, start, start+k, false)
	dst, right := appendSubtree(dst, hasher, leaves, start+k, end, false)
	cv := hasher.HashParent(left, right, isRoot)
	return append(dst, cv), cv
}

// Root returns the root chaining value, the content identifier.
func (t *Tree) Root() CV {
	return t.flat.Root()
}

// Length returns the total content length in bytes.
func (t *Tree) Length() uint64 {
	return t.flat.length
}

// ChunkSize returns the chunk size the tree was built with.
func (t *Tree) ChunkSize() int {
	return int(t.flat.chunkSize)
}

// NumChunks returns the number of leaf chunks, always at least 1.
func (t *Tree) NumChunks() uint64 {
	return t.flat.NumChunks()
}

// FlatTree returns the tree's chaining values in post-order flat form.
func (t *Tree) FlatTree() *FlatTree {
	return t.flat
}

// splitPoint returns the number of chunks in the left subtree of a node
// covering n chunks: the largest power of two strictly below n. This rule
// fixes the tree shape; a different split produces an incompatible root.
func splitPoint(n uint64) uint64 {
	if n < 2 {
		return 0
	}
	k := uint64(1) << (bits.Len64(n) - 1)
	if k == n {
		k >>= 1
	}
	return k
}

// chunkCount returns the number of chunks covering length bytes; empty
// input is a single empty chunk. Decoders feed it attacker-declared
// lengths, so it must not overflow near the top of the uint64 range.
func chunkCount(length, chunkSize uint64) uint64 {
	if length == 0 {
		return 1
	}
	return (length-1)/chunkSize + 1
}

// chunkLength returns the byte length of the chunk at index.
func chunkLength(index, length, chunkSize uint64) int {
	if off := index * chunkSize; off+chunkSize > length {
		return int(length - off)
	}
	return int(chunkSize)
}
