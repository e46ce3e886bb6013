package b3tree

import "io"

// Chunk is one fixed-size unit of input, the data hashed by a single leaf.
// Every chunk except the last has exactly the configured chunk size; the
// last has between 1 and chunk-size bytes, except for empty input which is
// a single zero-length chunk.
type Chunk struct {
	// Index is the 0-based position of the chunk in the input.
	Index uint64
	// Data holds the chunk bytes. It aliases the Chunker's internal buffer
	// and is only valid until the next call to Next.
	Data []byte
}

// Chunker frames an io.Reader into consecutive chunks with no gaps or
// overlaps. A zero-length source yields exactly one zero-length chunk.
// Source errors are surfaced as-is and terminate the sequence.
type Chunker struct {
	r     io.Reader
	buf   []byte
	index uint64
	done  bool
}

// NewChunker returns a Chunker over r with the given chunk size. It panics
// if chunkSize is not positive.
func NewChunker(r io.Reader, chunkSize int) *Chunker {
	if chunkSize <= 0 {
		panic("b3tree: chunk size must be positive")
	}
	return &Chunker{
		r:   r,
		buf: make([]byte, chunkSize),
	}
}

// Next returns the next chunk of the source. It returns io.EOF once the
// source is exhausted; any other error comes from the underlying reader.
func (c *Chunker) Next() (Chunk, error) {
	if c.done {
		return Chunk{}, io.EOF
	}
	n, err := io.ReadFull(c.r, c.buf)
	switch err {
	case nil:
		chunk := Chunk{Index: c.index, Data: c.buf}
		c.index++
		return chunk, nil
	case io.EOF:
		c.done = true
		if c.index == 0 {
			// Empty source: a single empty chunk, never zero chunks.
			return Chunk{Index: 0, Data: c.buf[:0]}, nil
		}
		return Chunk{}, io.EOF
	case io.ErrUnexpectedEOF:
		c.done = true
		chunk := Chunk{Index: c.index, Data: c.buf[:n]}
		c.index++
		return chunk, nil
	default:
		c.done = true
		return Chunk{}, err
	}
}
