package b3tree

import "hash"

// Options configure trees, builders and decoders.
type Options struct {
	// ChunkSize is the number of bytes per leaf chunk. Part of the wire
	// format; both sides of an encoding must use the same value.
	ChunkSize int
	// BaseHasher constructs the base hash for chaining value computation.
	// Part of the wire format. It is a constructor rather than an instance
	// so parallel leaf hashing can create one hash per worker.
	BaseHasher func() hash.Hash
	// InitialCapacity hints the number of chunks for pre-allocation.
	InitialCapacity int
	// MaxLength bounds the content length a decoder accepts from a stream
	// header. Zero means no bound.
	MaxLength uint64
	// CollectTree makes a full decode capture the verified hash tree; see
	// Decoder.FlatTree.
	CollectTree bool
}

// Option configures a tree, builder or decoder.
type Option func(*Options)

// ChunkSize sets the leaf chunk size in bytes. It panics if size is not
// positive.
func ChunkSize(size int) Option {
	if size <= 0 {
		panic("b3tree: chunk size must be positive")
	}
	return func(o *Options) {
		o.ChunkSize = size
	}
}

// BaseHasher sets the constructor for the base hash. The constructed hash
// must produce 32-byte sums.
func BaseHasher(newHash func() hash.Hash) Option {
	return func(o *Options) {
		o.BaseHasher = newHash
	}
}

// InitialCapacity hints how many chunks the input will have, to size
// internal slices up front.
func InitialCapacity(chunks int) Option {
	return func(o *Options) {
		o.InitialCapacity = chunks
	}
}

// MaxLength caps the declared content length a decoder accepts; streams
// declaring more fail with ErrLengthMismatch before any content is read.
// A Manifest is the natural source for the bound.
func MaxLength(limit uint64) Option {
	return func(o *Options) {
		o.MaxLength = limit
	}
}

// CollectTree makes a full decode capture every verified chaining value so
// the complete hash tree can be retrieved afterwards via Decoder.FlatTree.
// Range decodes never collect: a range encoding omits the pruned subtrees.
func CollectTree() Option {
	return func(o *Options) {
		o.CollectTree = true
	}
}

func buildOptions(setters ...Option) *Options {
	opts := &Options{
		ChunkSize:       DefaultChunkSize,
		BaseHasher:      NewBaseHasher,
		InitialCapacity: 128,
	}
	for _, setter := range setters {
		setter(opts)
	}
	return opts
}

func (o *Options) newHasher() *Hasher {
	return NewHasher(o.BaseHasher())
}
