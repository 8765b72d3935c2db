package download

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/alitto/pond"

	"github.com/questline/rman/manifest"
)

// Progress observes whole-manifest downloads: it receives the file's path
// and the compressed bytes fetched for one of its bundles. It is called
// from worker goroutines and must be safe for concurrent use if it touches
// shared state.
type Progress func(name string, compressedBytes uint32)

// DownloadAll reconstructs the given files below dir with a bounded worker
// pool. Each file is diffed against its on-disk copy first, so a rerun after
// a partial failure only fetches what is still missing or corrupt.
//
// workers <= 0 uses one worker per CPU. Workers draw their own HTTP handle
// from a pool of downloader clones; the catalog itself is shared read-only.
// A failed file aborts only that file; every file's error is joined and
// returned after every file has been attempted.
func (d *Downloader) DownloadAll(files []manifest.File, cdn, dir string, workers int, progress Progress) error {
	if len(files) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	handles := sync.Pool{
		New: func() any { return d.Clone() },
	}

	p := pond.New(workers, len(files))

	var mu sync.Mutex
	var failures []error

	for i := range files {
		file := &files[i]
		p.Submit(func() {
			dl, _ := handles.Get().(*Downloader)
			defer handles.Put(dl)

			plan := PlanCheckedInDir(file, dir)
			if plan.Empty() {
				return
			}

			err := dl.FileToDir(plan, cdn, dir, func(n uint32) {
				if progress != nil {
					progress(file.Name, n)
				}
			})
			if err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", file.Name, err))
				mu.Unlock()
			}
		})
	}

	p.StopAndWait()

	return errors.Join(failures...)
}
