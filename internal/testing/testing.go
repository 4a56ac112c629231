// package testing contains shared testing utilities
package testing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quaverd/quaver/internal/player"
	"github.com/quaverd/quaver/internal/services"
	"github.com/quaverd/quaver/internal/shared"
)

// Track builds backend metadata for a watch URL with the given id.
func Track(id, title string, duration int) *services.TrackInfo {
	return &services.TrackInfo{
		ID:         id,
		Title:      title,
		WebpageURL: WatchURL(id),
		Channel:    "test channel",
		ChannelURL: "https://www.youtube.com/@test",
		Duration:   duration,
	}
}

// WatchURL returns the canonical watch URL for an id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// FakeBackend is a test double for [services.Backend]. It serves canned
// metadata, materializes download targets as small marker files, and counts
// every call so tests can assert that caches and prefetch short-circuit
// network work.
type FakeBackend struct {
	mu          sync.Mutex
	tracks      map[string]*services.TrackInfo
	collections map[string]*services.TrackInfo

	resolveCalls    int
	collectionCalls int
	downloadCalls   int

	downloadErr error
	delay       time.Duration
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		tracks:      make(map[string]*services.TrackInfo),
		collections: make(map[string]*services.TrackInfo),
	}
}

// AddTrack registers metadata under its watch URL and returns the URL.
func (b *FakeBackend) AddTrack(info *services.TrackInfo) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tracks[info.WebpageURL] = info
	return info.WebpageURL
}

// AddCollection registers a collection document under the given URL.
func (b *FakeBackend) AddCollection(url string, info *services.TrackInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collections[url] = info
}

// SetDelay makes every backend call sleep first.
func (b *FakeBackend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// FailDownloads makes DownloadRange return err until cleared with nil.
func (b *FakeBackend) FailDownloads(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.downloadErr = err
}

func (b *FakeBackend) ResolveCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolveCalls
}

func (b *FakeBackend) CollectionCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.collectionCalls
}

func (b *FakeBackend) DownloadCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.downloadCalls
}

func (b *FakeBackend) sleep() {
	b.mu.Lock()
	d := b.delay
	b.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

func (b *FakeBackend) ResolveTrack(ctx context.Context, url string) (*services.TrackInfo, error) {
	b.mu.Lock()
	b.resolveCalls++
	info, ok := b.tracks[url]
	b.mu.Unlock()
	b.sleep()

	if !ok {
		return nil, fmt.Errorf("%w: no such track %s", shared.ErrResolutionFailed, url)
	}
	return info, nil
}

func (b *FakeBackend) ResolveCollection(ctx context.Context, url string, limit int) (*services.TrackInfo, error) {
	b.mu.Lock()
	b.collectionCalls++
	info, ok := b.collections[url]
	b.mu.Unlock()
	b.sleep()

	if !ok {
		return nil, fmt.Errorf("%w: no such collection %s", shared.ErrResolutionFailed, url)
	}
	if len(info.Entries) > limit {
		capped := *info
		capped.Entries = info.Entries[:limit]
		return &capped, nil
	}
	return info, nil
}

func (b *FakeBackend) DownloadRange(ctx context.Context, url string, start, end int, dest string) error {
	b.mu.Lock()
	b.downloadCalls++
	failErr := b.downloadErr
	b.mu.Unlock()
	b.sleep()

	if failErr != nil {
		return fmt.Errorf("%w: %v", shared.ErrDownloadFailed, failErr)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, fmt.Appendf(nil, "%s %d-%d", url, start, end), 0644)
}

// FakeSink is a test double for [player.Sink]. With AutoComplete set, played
// segments finish on their own after a short beat, which drives the play
// loop end to end; otherwise tests complete segments by hand.
type FakeSink struct {
	AutoComplete bool

	mu    sync.Mutex
	conns []*FakeConn
}

func NewFakeSink(autoComplete bool) *FakeSink {
	return &FakeSink{AutoComplete: autoComplete}
}

func (s *FakeSink) Connect(ctx context.Context, target string) (player.Conn, error) {
	c := &FakeConn{target: target, auto: s.AutoComplete}
	s.mu.Lock()
	s.conns = append(s.conns, c)
	s.mu.Unlock()
	return c, nil
}

// Conns returns every connection the sink handed out.
func (s *FakeSink) Conns() []*FakeConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*FakeConn(nil), s.conns...)
}

// FakeConn records played segment paths and simulates completion callbacks
// on a separate goroutine, as a real sink would.
type FakeConn struct {
	target string
	auto   bool

	mu      sync.Mutex
	played  []string
	playing bool
	paused  bool
	closed  bool
	onDone  func()
}

func (c *FakeConn) Play(path string, onDone func()) error {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return fmt.Errorf("a segment is already playing")
	}
	c.played = append(c.played, path)
	c.playing = true
	c.paused = false
	c.onDone = onDone
	auto := c.auto
	c.mu.Unlock()

	if auto {
		go func() {
			time.Sleep(time.Millisecond)
			c.Complete()
		}()
	}
	return nil
}

// Complete finishes the current segment, firing its callback exactly once.
func (c *FakeConn) Complete() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	c.playing = false
	c.paused = false
	done := c.onDone
	c.onDone = nil
	c.mu.Unlock()

	if done != nil {
		done()
	}
}

func (c *FakeConn) Stop() { c.Complete() }

func (c *FakeConn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		c.paused = true
	}
}

func (c *FakeConn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

func (c *FakeConn) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && !c.paused
}

func (c *FakeConn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *FakeConn) Close() error {
	c.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Played returns the ordered list of segment paths played so far.
func (c *FakeConn) Played() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.played...)
}

// Target returns the connect target.
func (c *FakeConn) Target() string { return c.target }
