package b3tree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrHashMismatch means a computed chaining value differs from the one
	// committed to by the trusted root: the stream is corrupt or forged.
	// It is terminal for the decode session.
	ErrHashMismatch = errors.New("b3tree: hash mismatch")
	// ErrTruncated means the stream ended before the declared content was
	// fully delivered.
	ErrTruncated = errors.New("b3tree: encoded stream truncated")
	// ErrLengthMismatch means the stream header is inconsistent with the
	// requested decode.
	ErrLengthMismatch = errors.New("b3tree: declared length mismatch")
	// ErrIncompleteTree means the decoder cannot hand out a hash tree,
	// either because it was not collecting one or because the decode has
	// not completed.
	ErrIncompleteTree = errors.New("b3tree: hash tree not fully collected")
)

// decodeNode is an expected tree node on the verification stack: the
// chaining value it must hash to and the chunk span it covers.
type decodeNode struct {
	cv    CV
	start uint64
	end   uint64
}

// Decoder verifies an encoded stream against a trusted root and yields
// only verified bytes. It implements io.Reader: every byte returned by
// Read has passed its chaining value check, and no byte after the first
// detected mismatch is ever returned. The stream is treated as
// adversarial; the root is the only trusted input.
//
// Errors are terminal. Abandoning a Decoder mid-stream has no observable
// effect beyond the bytes already released.
type Decoder struct {
	r         io.Reader
	hasher    *Hasher
	chunkSize uint64
	root      CV

	isRange    bool
	rangeStart uint64
	rangeEnd   uint64
	maxLength  uint64

	started bool
	length  uint64
	chunks  uint64

	stack    []decodeNode
	chunkBuf []byte
	out      []byte
	outOff   int

	collecting bool
	collect    []CV

	err error
}

// NewDecoder returns a decoder for a full encoding of the content
// committed to by root. The chunk size and base hash options must match
// the encoder's.
//
// The stream's declared length is never trusted for allocation: decoder
// memory grows only with verified stream bytes. The MaxLength option
// additionally rejects streams declaring more content than expected
// before any of it is read.
func NewDecoder(r io.Reader, root CV, setters ...Option) *Decoder {
	opts := buildOptions(setters...)
	return &Decoder{
		r:          r,
		hasher:     opts.newHasher(),
		chunkSize:  uint64(opts.ChunkSize),
		root:       root,
		maxLength:  opts.MaxLength,
		collecting: opts.CollectTree,
	}
}

// NewRangeDecoder returns a decoder for a range encoding of bytes
// [start, end). It verifies that the stream was produced for exactly that
// range and yields exactly end-start bytes: the requested slice of the
// original content.
//
// The CollectTree option has no effect here: a range encoding omits the
// pruned subtrees, so only a full decode can capture the hash tree.
func NewRangeDecoder(r io.Reader, root CV, start, end uint64, setters ...Option) *Decoder {
	opts := buildOptions(setters...)
	d := &Decoder{
		r:          r,
		hasher:     opts.newHasher(),
		chunkSize:  uint64(opts.ChunkSize),
		root:       root,
		isRange:    true,
		rangeStart: start,
		rangeEnd:   end,
		maxLength:  opts.MaxLength,
	}
	if start >= end {
		d.err = fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, start, end)
	}
	return d
}

// Read returns verified content bytes. It returns io.EOF once the full
// declared content (or requested range) has been delivered, and a terminal
// error on corruption, truncation or header inconsistency.
func (d *Decoder) Read(p []byte) (int, error) {
	for d.outOff == len(d.out) {
		if d.err != nil {
			return 0, d.err
		}
		if err := d.step(); err != nil {
			d.err = err
			return 0, err
		}
	}
	n := copy(p, d.out[d.outOff:])
	d.outOff += n
	return n, nil
}

// FlatTree returns the hash tree collected during a completed full decode
// with the CollectTree option. The tree is fully verified against the
// root, so it can rebuild a Tree (see TreeFromFlat) for re-serving ranges
// of the decoded content.
func (d *Decoder) FlatTree() (*FlatTree, error) {
	if !d.collecting || d.isRange {
		return nil, fmt.Errorf("%w: decoder is not collecting", ErrIncompleteTree)
	}
	if d.err != io.EOF {
		return nil, fmt.Errorf("%w: decode not complete", ErrIncompleteTree)
	}
	// Chaining values were collected in verification order, which is
	// pre-order; rewrite them into the post-order flat layout.
	hashes := make([]CV, len(d.collect))
	next := 0
	var reorder func(start, end, lo uint64)
	reorder = func(start, end, lo uint64) {
		hashes[lo+2*(end-start)-2] = d.collect[next]
		next++
		if end-start == 1 {
			return
		}
		k := splitPoint(end - start)
		reorder(start, start+k, lo)
		reorder(start+k, end, lo+2*k-1)
	}
	reorder(0, d.chunks, 0)
	return &FlatTree{
		length:    d.length,
		chunkSize: d.chunkSize,
		hashes:    hashes,
	}, nil
}

// step advances the state machine by one node: header, parent pair, or
// leaf chunk. It returns io.EOF once the verification stack is empty.
func (d *Decoder) step() error {
	if !d.started {
		return d.readHeader()
	}
	if len(d.stack) == 0 {
		return io.EOF
	}
	node := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	if node.end-node.start == 1 {
		return d.verifyLeaf(node)
	}
	return d.verifyParent(node)
}

func (d *Decoder) readHeader() error {
	size := fullHeaderSize
	if d.isRange {
		size = rangeHeaderSize
	}
	var header [rangeHeaderSize]byte
	if _, err := io.ReadFull(d.r, header[:size]); err != nil {
		return streamErr(err)
	}
	d.length = binary.LittleEndian.Uint64(header[0:])
	if d.maxLength > 0 && d.length > d.maxLength {
		return fmt.Errorf("%w: declared length %d exceeds bound %d",
			ErrLengthMismatch, d.length, d.maxLength)
	}
	d.chunks = chunkCount(d.length, d.chunkSize)

	if d.isRange {
		start := binary.LittleEndian.Uint64(header[8:])
		end := binary.LittleEndian.Uint64(header[16:])
		if start != d.rangeStart || end != d.rangeEnd {
			return fmt.Errorf("%w: stream range [%d, %d), requested [%d, %d)",
				ErrLengthMismatch, start, end, d.rangeStart, d.rangeEnd)
		}
		if d.rangeEnd > d.length {
			return fmt.Errorf("%w: range end %d past declared length %d",
				ErrLengthMismatch, d.rangeEnd, d.length)
		}
	} else {
		d.rangeStart, d.rangeEnd = 0, d.length
	}

	d.chunkBuf = make([]byte, d.chunkSize)
	d.stack = append(d.stack, decodeNode{cv: d.root, start: 0, end: d.chunks})
	d.started = true
	return nil
}

func (d *Decoder) verifyLeaf(node decodeNode) error {
	length := chunkLength(node.start, d.length, d.chunkSize)
	chunk := d.chunkBuf[:length]
	if length > 0 {
		if _, err := io.ReadFull(d.r, chunk); err != nil {
			return streamErr(err)
		}
	}
	if d.hasher.HashLeaf(node.start, chunk, d.chunks == 1) != node.cv {
		return fmt.Errorf("%w: chunk %d", ErrHashMismatch, node.start)
	}
	if d.collecting && !d.isRange {
		d.collect = append(d.collect, node.cv)
	}

	// The chunk is verified; release the part inside the requested range.
	off := node.start * d.chunkSize
	lo, hi := off, off+uint64(length)
	if lo < d.rangeStart {
		lo = d.rangeStart
	}
	if hi > d.rangeEnd {
		hi = d.rangeEnd
	}
	d.out = d.out[:0]
	d.outOff = 0
	if lo < hi {
		d.out = append(d.out, chunk[lo-off:hi-off]...)
	}
	return nil
}

func (d *Decoder) verifyParent(node decodeNode) error {
	var pair [parentPairSize]byte
	if _, err := io.ReadFull(d.r, pair[:]); err != nil {
		return streamErr(err)
	}
	var left, right CV
	copy(left[:], pair[:HashSize])
	copy(right[:], pair[HashSize:])

	isRoot := node.start == 0 && node.end == d.chunks
	if d.hasher.HashParent(left, right, isRoot) != node.cv {
		return fmt.Errorf("%w: parent over chunks [%d, %d)", ErrHashMismatch, node.start, node.end)
	}
	if d.collecting && !d.isRange {
		d.collect = append(d.collect, node.cv)
	}

	// Push right before left so the left subtree is decoded first,
	// preserving byte order. Children outside the requested range are not
	// pushed; their chaining value in the verified pair is all the stream
	// carries for them.
	k := splitPoint(node.end - node.start)
	if d.overlapsRange(node.start+k, node.end) {
		d.stack = append(d.stack, decodeNode{
			cv:    right,
			start: node.start + k,
			end:   node.end,
		})
	}
	if d.overlapsRange(node.start, node.start+k) {
		d.stack = append(d.stack, decodeNode{
			cv:    left,
			start: node.start,
			end:   node.start + k,
		})
	}
	return nil
}

// overlapsRange reports whether the bytes covered by chunks [start, end)
// intersect the requested byte range.
func (d *Decoder) overlapsRange(start, end uint64) bool {
	lo := start * d.chunkSize
	hi := end * d.chunkSize
	if hi > d.length {
		hi = d.length
	}
	return lo < d.rangeEnd && d.rangeStart < hi
}

// streamErr maps premature end-of-stream to ErrTruncated and passes other
// source errors through unchanged.
func streamErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return err
}

// Decode verifies a full encoding from src against root and writes the
// verified content to dst. It returns the number of bytes written; on
// error, everything already written to dst was verified.
func Decode(dst io.Writer, src io.Reader, root CV, setters ...Option) (int64, error) {
	return io.Copy(dst, NewDecoder(src, root, setters...))
}

// DecodeRange verifies a range encoding from src against root and writes
// bytes [start, end) of the original content to dst.
func DecodeRange(dst io.Writer, src io.Reader, root CV, start, end uint64, setters ...Option) (int64, error) {
	return io.Copy(dst, NewRangeDecoder(src, root, start, end, setters...))
}
