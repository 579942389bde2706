package moments

import (
	"runtime"
	"sync"
)

// DefaultChunkSize is the number of voxels folded by one task
const DefaultChunkSize = 4096

// Options controls how voxel reductions are spread over goroutines
type Options struct {
	// Workers is the number of goroutines folding chunks; <= 0 means runtime.NumCPU()
	Workers int

	// ChunkSize is the number of voxels per task; <= 0 means DefaultChunkSize.
	// The chunking, not the worker count, fixes the summation order.
	ChunkSize int
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.NumCPU()
	}
	return o.Workers
}

func (o Options) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

// Reduce folds the index range [0, n) into a single value.
//
// The range is cut into fixed-size chunks that a pool of goroutines folds
// independently; the per-chunk partials are then merged pairwise in chunk
// order (a balanced tree). Because neither the chunk boundaries nor the
// merge tree depend on the number of workers, the result is bit-identical
// for any Workers setting.
func Reduce[T any](n int, opts Options, zero func() T, fold func(lo, hi int, acc T) T, merge func(a, b T) T) T {
	if n <= 0 {
		return zero()
	}

	chunk := opts.chunkSize()
	numChunks := (n + chunk - 1) / chunk
	partials := make([]T, numChunks)

	workers := opts.workers()
	if workers > numChunks {
		workers = numChunks
	}

	if workers == 1 {
		for c := 0; c < numChunks; c++ {
			partials[c] = foldChunk(c, chunk, n, zero, fold)
		}
	} else {
		jobs := make(chan int)
		var wg sync.WaitGroup

		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for c := range jobs {
					partials[c] = foldChunk(c, chunk, n, zero, fold)
				}
			}()
		}

		for c := 0; c < numChunks; c++ {
			jobs <- c
		}
		close(jobs)
		wg.Wait()
	}

	for step := 1; step < numChunks; step *= 2 {
		for i := 0; i+step < numChunks; i += 2 * step {
			partials[i] = merge(partials[i], partials[i+step])
		}
	}
	return partials[0]
}

func foldChunk[T any](c, chunk, n int, zero func() T, fold func(lo, hi int, acc T) T) T {
	lo := c * chunk
	hi := lo + chunk
	if hi > n {
		hi = n
	}
	return fold(lo, hi, zero())
}
