package b3tree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Encoding layout. A full encoding is an 8-byte little-endian length
// header followed by the pre-order interleaving: every parent contributes
// its two child chaining values, every leaf its raw chunk bytes. A range
// encoding replaces the header with length || start || end and prunes
// every subtree outside [start, end); a pruned subtree appears only as the
// chaining value inside its parent's pair.
const (
	fullHeaderSize  = 8
	rangeHeaderSize = 24
	parentPairSize  = 2 * HashSize
)

// ErrInvalidRange means a requested byte range is empty or extends past
// the committed length.
var ErrInvalidRange = errors.New("b3tree: invalid byte range")

// Encode writes the full self-verifying encoding of the committed content
// to w. data must supply exactly the bytes the tree was built from; the
// encoder reads them back chunk by chunk.
func (t *Tree) Encode(w io.Writer, data io.ReaderAt) error {
	var header [fullHeaderSize]byte
	binary.LittleEndian.PutUint64(header[:], t.flat.length)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	enc := t.newEncoder(w, data, 0, t.flat.length)
	return enc.encodeSubtree(0, t.NumChunks(), 0)
}

// EncodeRange writes a range encoding to w: the minimal self-verifying
// proof for bytes [start, end) of the committed content. It carries the
// parent pairs on every path from the root to a chunk overlapping the
// range, plus those chunks' raw bytes, and nothing else. Chunk bytes are
// emitted whole, so the stream may cover slightly more than the requested
// range; the range decoder trims the excess.
func (t *Tree) EncodeRange(w io.Writer, data io.ReaderAt, start, end uint64) error {
	if start >= end || end > t.flat.length {
		return fmt.Errorf("%w: [%d, %d) of %d bytes", ErrInvalidRange, start, end, t.flat.length)
	}
	var header [rangeHeaderSize]byte
	binary.LittleEndian.PutUint64(header[0:], t.flat.length)
	binary.LittleEndian.PutUint64(header[8:], start)
	binary.LittleEndian.PutUint64(header[16:], end)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	enc := t.newEncoder(w, data, start, end)
	return enc.encodeSubtree(0, t.NumChunks(), 0)
}

type encoder struct {
	w          io.Writer
	data       io.ReaderAt
	flat       *FlatTree
	buf        []byte
	rangeStart uint64
	rangeEnd   uint64
}

func (t *Tree) newEncoder(w io.Writer, data io.ReaderAt, start, end uint64) *encoder {
	return &encoder{
		w:          w,
		data:       data,
		flat:       t.flat,
		buf:        make([]byte, t.flat.chunkSize),
		rangeStart: start,
		rangeEnd:   end,
	}
}

// encodeSubtree writes the subtree over chunks [start, end) whose
// post-order block begins at lo, pruning children outside the range.
func (e *encoder) encodeSubtree(start, end, lo uint64) error {
	if end-start == 1 {
		length := chunkLength(start, e.flat.length, e.flat.chunkSize)
		chunk := e.buf[:length]
		if length > 0 {
			n, err := e.data.ReadAt(chunk, int64(start*e.flat.chunkSize))
			if err == io.EOF && n == length {
				// ReadAt may return io.EOF alongside a full read of the
				// final bytes.
				err = nil
			}
			if err != nil {
				return fmt.Errorf("b3tree: read chunk %d: %w", start, err)
			}
		}
		_, err := e.w.Write(chunk)
		return err
	}

	k := splitPoint(end - start)
	leftLo, rightLo := lo, lo+2*k-1
	left := e.flat.cv(start, start+k, leftLo)
	right := e.flat.cv(start+k, end, rightLo)

	var pair [parentPairSize]byte
	copy(pair[:HashSize], left[:])
	copy(pair[HashSize:], right[:])
	if _, err := e.w.Write(pair[:]); err != nil {
		return err
	}

	if e.overlapsRange(start, start+k) {
		if err := e.encodeSubtree(start, start+k, leftLo); err != nil {
			return err
		}
	}
	if e.overlapsRange(start+k, end) {
		return e.encodeSubtree(start+k, end, rightLo)
	}
	return nil
}

// overlapsRange reports whether the bytes covered by chunks [start, end)
// intersect the requested byte range.
func (e *encoder) overlapsRange(start, end uint64) bool {
	lo := start * e.flat.chunkSize
	hi := end * e.flat.chunkSize
	if hi > e.flat.length {
		hi = e.flat.length
	}
	return lo < e.rangeEnd && e.rangeStart < hi
}

// EncodedSize returns the byte size of the full encoding of the tree's
// content: header, one chaining value pair per parent, and the content
// itself.
func (t *Tree) EncodedSize() uint64 {
	return fullHeaderSize + parentPairSize*(t.NumChunks()-1) + t.flat.length
}
