package b3tree

import (
	"hash"
	"runtime"
	"sync"
)

// Leaf hashing is stateless, so chunks are fanned out to a worker pool.
// Each result lands at its chunk index in the shared slice, which is the
// ordering barrier: the sequential merge that follows always sees chunks
// in input order no matter which worker finished first.
const serialChunkThreshold = 8

// hashLeaves computes the chaining value of every chunk of data.
func hashLeaves(opts *Options, data []byte) []CV {
	chunkSize := uint64(opts.ChunkSize)
	chunks := chunkCount(uint64(len(data)), chunkSize)
	leaves := make([]CV, chunks)

	chunkAt := func(i uint64) []byte {
		off := i * chunkSize
		return data[off : off+uint64(chunkLength(i, uint64(len(data)), chunkSize))]
	}

	if chunks <= serialChunkThreshold {
		hasher := opts.newHasher()
		for i := uint64(0); i < chunks; i++ {
			leaves[i] = hasher.HashLeaf(i, chunkAt(i), chunks == 1)
		}
		return leaves
	}

	hasherPool := sync.Pool{
		New: func() interface{} {
			return opts.BaseHasher()
		},
	}

	numWorkers := runtime.NumCPU()
	if uint64(numWorkers) > chunks {
		numWorkers = int(chunks)
	}

	jobs := make(chan uint64, numWorkers)
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			base := hasherPool.Get().(hash.Hash)
			defer hasherPool.Put(base)
			hasher := NewHasher(base)
			for i := range jobs {
				leaves[i] = hasher.HashLeaf(i, chunkAt(i), false)
			}
		}()
	}
	for i := uint64(0); i < chunks; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return leaves
}
