package b3tree

// subtree is a completed subtree on the merge stack: its chaining value
// and the number of chunks it covers.
type subtree struct {
	cv     CV
	chunks uint64
}

// StreamBuilder computes a root incrementally, without knowing the total
// length in advance. It implements io.Writer; feed it the content in
// increments of any size and call Root once the input is complete. The
// root is identical to NewTree over the same bytes regardless of how the
// writes were split.
//
// The builder keeps a merge stack of completed subtrees ordered by
// decreasing chunk count. Completing a chunk pushes a one-chunk subtree
// and then merges equal-sized neighbours, mirroring carry propagation in a
// binary counter; this reproduces the fixed split rule without the total
// chunk count being known.
//
// A StreamBuilder is not safe for concurrent use. Abandoning one before
// Root has no observable effect; no partial root ever escapes.
type StreamBuilder struct {
	hasher     *Hasher
	chunkSize  int
	buf        []byte
	chunkIndex uint64
	stack      []subtree
	length     uint64
	finalized  bool
	root       CV
}

// NewStreamBuilder returns an empty builder.
func NewStreamBuilder(setters ...Option) *StreamBuilder {
	opts := buildOptions(setters...)
	return &StreamBuilder{
		hasher:    opts.newHasher(),
		chunkSize: opts.ChunkSize,
		buf:       make([]byte, 0, opts.ChunkSize),
	}
}

// Write feeds content bytes to the builder. It never fails; it panics if
// called after Root.
func (b *StreamBuilder) Write(p []byte) (int, error) {
	if b.finalized {
		panic("b3tree: Write after Root")
	}
	total := len(p)
	for len(p) > 0 {
		if len(b.buf) == b.chunkSize {
			// More input follows, so the buffered chunk cannot be the
			// root; a full chunk is otherwise held back until finalize.
			b.pushChunk(false)
			b.mergeCarries()
		}
		n := b.chunkSize - len(b.buf)
		if n > len(p) {
			n = len(p)
		}
		b.buf = append(b.buf, p[:n]...)
		b.length += uint64(n)
		p = p[n:]
	}
	return total, nil
}

// Length returns the number of bytes fed so far.
func (b *StreamBuilder) Length() uint64 {
	return b.length
}

// Root flushes the pending chunk, folds the merge stack and returns the
// root chaining value. Zero bytes fed yields the single-empty-chunk root.
// Root is idempotent; Write must not be called afterwards.
func (b *StreamBuilder) Root() CV {
	if b.finalized {
		return b.root
	}
	b.pushChunk(b.chunkIndex == 0)

	// Fold right to left; only the final merge is the root.
	for len(b.stack) > 1 {
		left := b.stack[len(b.stack)-2]
		right := b.stack[len(b.stack)-1]
		b.stack = b.stack[:len(b.stack)-2]
		b.stack = append(b.stack, subtree{
			cv:     b.hasher.HashParent(left.cv, right.cv, len(b.stack) == 0),
			chunks: left.chunks + right.chunks,
		})
	}
	b.root = b.stack[0].cv
	b.finalized = true
	return b.root
}

// Reset returns the builder to its initial state for a new input.
func (b *StreamBuilder) Reset() {
	b.buf = b.buf[:0]
	b.stack = b.stack[:0]
	b.chunkIndex = 0
	b.length = 0
	b.finalized = false
	b.root = CV{}
}

func (b *StreamBuilder) pushChunk(isRoot bool) {
	cv := b.hasher.HashLeaf(b.chunkIndex, b.buf, isRoot)
	b.chunkIndex++
	b.buf = b.buf[:0]
	b.stack = append(b.stack, subtree{cv: cv, chunks: 1})
}

func (b *StreamBuilder) mergeCarries() {
	for len(b.stack) >= 2 {
		left := b.stack[len(b.stack)-2]
		right := b.stack[len(b.stack)-1]
		if left.chunks != right.chunks {
			return
		}
		b.stack = b.stack[:len(b.stack)-2]
		b.stack = append(b.stack, subtree{
			cv:     b.hasher.HashParent(left.cv, right.cv, false),
			chunks: left.chunks + right.chunks,
		})
	}
}
