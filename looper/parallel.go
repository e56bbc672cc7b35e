package looper

import (
	"context"
	"runtime"
	"sync"
)

// chunksPerWorker oversplits the index range so triangular workloads
// (later beats scan more starts) still balance across workers.
const chunksPerWorker = 8

func workerCount(requested int) int {
	if requested > 0 {
		return requested
	}
	return runtime.NumCPU()
}

// chunkBounds returns the [lo, hi) range of chunk c when n items are split
// into numChunks contiguous chunks.
func chunkBounds(c, n, numChunks int) (int, int) {
	return c * n / numChunks, (c + 1) * n / numChunks
}

// numChunksFor picks how many chunks to split n items into
func numChunksFor(n, workers int) int {
	return max(min(n, workers*chunksPerWorker), 1)
}

// forEachChunk splits [0, n) into numChunks contiguous ranges and runs fn
// on each from a pool of workers. fn must only write state owned by its
// chunk index. Cancellation is checked before each chunk starts.
func forEachChunk(ctx context.Context, n, workers, numChunks int, fn func(chunk, lo, hi int)) error {
	if n == 0 {
		return ctx.Err()
	}

	jobs := make(chan int, numChunks)
	for c := range numChunks {
		jobs <- c
	}
	close(jobs)

	var wg sync.WaitGroup
	for range min(workers, numChunks) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if ctx.Err() != nil {
					return
				}
				lo, hi := chunkBounds(c, n, numChunks)
				fn(c, lo, hi)
			}
		}()
	}
	wg.Wait()

	return ctx.Err()
}
