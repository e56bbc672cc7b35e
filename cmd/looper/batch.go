package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-looper/logging"
	"github.com/RyanBlaney/sonido-looper/transcode"
)

// inputFile is a track and the directory argument it was found under
type inputFile struct {
	path string
	root string
}

// collectFiles expands the path arguments into tracks. Files are taken as
// given; directories contribute the audio files they contain, in lexical
// order.
func collectFiles(paths []string, recursive bool) ([]inputFile, error) {
	var files []inputFile
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, inputFile{path: p, root: filepath.Dir(p)})
			continue
		}

		var found []inputFile
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if transcode.IsSupported(path) {
				found = append(found, inputFile{path: path, root: p})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", p, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

type batchStats struct {
	succeeded int
	failed    int
}

// runBatch processes files on a bounded pool of workers. Per-file errors
// are logged with the filename and do not stop the batch; only context
// cancellation does.
func runBatch(ctx context.Context, files []inputFile, workers int, process func(context.Context, inputFile) error) (batchStats, error) {
	workers = max(1, min(workers, len(files)))

	jobs := make(chan inputFile)
	var succeeded, failed atomic.Int64
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for in := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if err := process(ctx, in); err != nil {
					if ctx.Err() != nil {
						continue
					}
					failed.Add(1)
					logging.Error(err, "Skipping track", logging.Fields{"file": in.path})
					continue
				}
				succeeded.Add(1)
			}
		}()
	}

feed:
	for _, in := range files {
		select {
		case jobs <- in:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	stats := batchStats{succeeded: int(succeeded.Load()), failed: int(failed.Load())}
	return stats, ctx.Err()
}
