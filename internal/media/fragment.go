package media

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/quaverd/quaver/internal/services"
	"github.com/quaverd/quaver/internal/tasks"
)

// Fragment is one bounded time slice of a media item, covering the
// [Start, End) second range. Its on-disk path is deterministic: the existence
// of the file is the "downloaded" record, there is no companion index.
type Fragment struct {
	meta  *Meta
	index int
	start int
	end   int

	dir     string
	backend services.Backend
	logger  *log.Logger

	mu sync.Mutex
	dl *tasks.Handle[struct{}]
}

// Path returns the fragment's deterministic on-disk location.
func (f *Fragment) Path() string {
	return filepath.Join(f.meta.FragmentDir(f.dir), strconv.Itoa(f.index))
}

// Downloaded reports whether the fragment file exists. Downloads are written
// via temp-path-and-rename, so an existing file is always complete.
func (f *Fragment) Downloaded() bool {
	_, err := os.Stat(f.Path())
	return err == nil
}

// StartDownload lazily starts the fragment's download task. It is a no-op if
// a download is in flight or the file already exists. A failed previous task
// is replaced, which retries the download from scratch.
func (f *Fragment) StartDownload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startDownloadLocked()
}

func (f *Fragment) startDownloadLocked() {
	if f.dl != nil && !f.dl.Done() {
		return
	}
	if f.Downloaded() {
		return
	}

	f.logger.Debug("starting fragment download", "url", f.meta.URL, "start", f.start, "end", f.end)
	// The task runs detached from any caller context: cancelled waiters
	// abandon the download rather than interrupting it.
	f.dl = tasks.Go(func() (struct{}, error) {
		return struct{}{}, f.download()
	})
}

func (f *Fragment) download() error {
	if f.Downloaded() {
		f.logger.Debug("fragment already cached", "url", f.meta.URL, "index", f.index)
		return nil
	}
	err := f.backend.DownloadRange(context.Background(), f.meta.URL, f.start, f.end, f.Path())
	if err != nil {
		f.logger.Error("fragment download failed", "url", f.meta.URL, "index", f.index, "err", err)
		return err
	}
	f.logger.Debug("fragment downloaded", "url", f.meta.URL, "index", f.index)
	return nil
}

// WaitDownloaded suspends until the fragment's file is materialized,
// starting a download if none is in flight.
func (f *Fragment) WaitDownloaded(ctx context.Context) error {
	f.mu.Lock()
	f.startDownloadLocked()
	h := f.dl
	f.mu.Unlock()

	if h == nil {
		// Already on disk, no task was ever needed.
		return nil
	}
	_, err := h.Wait(ctx)
	return err
}

// Spans splits a duration into contiguous [start, end) second spans of the
// nominal size. A trailing remainder shorter than the nominal size is merged
// into the previous span rather than left as a tiny final fragment:
// 450 seconds at size 200 yields [0,200) and [200,450).
func Spans(duration, size int) [][2]int {
	var spans [][2]int
	start := 0
	for start < duration {
		end := min(start+size, duration)
		if n := len(spans); n > 0 && end-spans[n-1][1] < size {
			spans[n-1][1] = end
		} else {
			spans = append(spans, [2]int{start, end})
		}
		start = end
	}
	return spans
}
