// Package queue implements the ordered, cursor-tracked sequence of songs
// being played.
//
// The queue is the meeting point of three asynchronous producers (collection
// resolution, metadata fetch, fragment download) and one strictly sequential
// consumer, the playback cursor. All cursor state lives behind one mutex;
// waits for readiness and downloads happen outside it, and the cursor is
// re-checked after every wait so that skip and clear can interrupt a blocked
// Get without corrupting state.
package queue

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/quaverd/quaver/internal/media"
	"github.com/quaverd/quaver/internal/shared"
)

// LoopMode governs how the song cursor advances at the end of an item.
type LoopMode int

const (
	LoopOff LoopMode = iota
	LoopCurrent
	LoopAll
)

func (m LoopMode) String() string {
	switch m {
	case LoopCurrent:
		return "current"
	case LoopAll:
		return "all"
	default:
		return "off"
	}
}

// Cycle returns the next mode in the off → current → all → off rotation.
func (m LoopMode) Cycle() LoopMode {
	switch m {
	case LoopOff:
		return LoopCurrent
	case LoopCurrent:
		return LoopAll
	default:
		return LoopOff
	}
}

// ParseLoopMode parses a mode name.
func ParseLoopMode(s string) (LoopMode, error) {
	switch s {
	case "off":
		return LoopOff, nil
	case "current":
		return LoopCurrent, nil
	case "all":
		return LoopAll, nil
	}
	return LoopOff, shared.ErrInvalidArgument
}

// SongView is a read-only snapshot of one queued song for display. Index is
// the song's position in the queue, the same position Remove accepts.
type SongView struct {
	Index    int
	Title    string
	Channel  string
	URL      string
	Duration int
	Ready    bool
	Current  bool
}

// Queue holds the ordered songs plus the two-level playback cursor. One
// controller exclusively owns each queue; command handlers and the play loop
// funnel every mutation through the queue's mutex.
type Queue struct {
	mu     sync.Mutex
	songs  []*media.Song
	song   int // current song index; len(songs) means "past the end"
	frag   int // current fragment index within the current song
	loop   LoopMode
	lib    *media.Library
	logger *log.Logger
}

// New creates an empty queue backed by the given library.
func New(lib *media.Library, logger *log.Logger) *Queue {
	return &Queue{lib: lib, logger: logger}
}

// Get returns the file path of the fragment at the cursor, suspending until
// the current song's metadata is resolved and the fragment is on disk. It
// returns "" (no error) when the cursor is at or past the end of the queue.
// Before returning it fires prefetch of the next fragment, or of the next
// song's first fragment when the current fragment is the item's last.
func (q *Queue) Get(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()
		if q.song >= len(q.songs) {
			q.mu.Unlock()
			q.logger.Debug("no current song")
			return "", nil
		}
		song := q.songs[q.song]
		si, fi := q.song, q.frag
		q.mu.Unlock()

		if err := song.WaitReady(ctx); err != nil {
			return "", err
		}
		frags := song.Fragments()

		q.mu.Lock()
		if q.song != si || q.frag != fi {
			// The cursor moved while we were waiting; start over.
			q.mu.Unlock()
			continue
		}
		if fi >= len(frags) {
			// A stale fragment cursor is "no current item", never an error.
			q.mu.Unlock()
			q.logger.Debug("fragment cursor out of range", "song", si, "fragment", fi)
			return "", nil
		}
		frag := frags[fi]
		q.mu.Unlock()

		if err := frag.WaitDownloaded(ctx); err != nil {
			return "", err
		}

		q.mu.Lock()
		if q.song != si || q.frag != fi {
			q.mu.Unlock()
			continue
		}
		q.prefetchAfterLocked(song, fi)
		q.mu.Unlock()

		q.logger.Debug("returning fragment", "song", si, "fragment", fi)
		return frag.Path(), nil
	}
}

// Advance moves the cursor after a fragment finished playing: to the next
// fragment of the current song, or past it according to the loop mode.
// Advancing an empty queue is a no-op. Returns an error only when ctx is
// cancelled mid-wait.
func (q *Queue) Advance(ctx context.Context) error {
	q.mu.Lock()
	if len(q.songs) == 0 {
		q.mu.Unlock()
		return nil
	}
	var song *media.Song
	si, fi := q.song, q.frag
	if si < len(q.songs) {
		song = q.songs[si]
	}
	q.mu.Unlock()

	last := 0
	unresolvable := false
	if song != nil {
		if err := song.WaitReady(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			q.logger.Warn("advancing past unresolvable song", "err", err)
			unresolvable = true
		} else {
			last = len(song.Fragments()) - 1
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.song != si || q.frag != fi {
		// The cursor moved while we were waiting; that move already
		// positioned playback, there is nothing left to advance.
		q.logger.Debug("cursor moved during advance, keeping it", "song", q.song, "fragment", q.frag)
		return nil
	}
	if unresolvable {
		// A dead song must not trap the cursor, so the loop mode is
		// bypassed the way a user skip bypasses it.
		q.skipPastLocked()
		return nil
	}
	if song != nil && q.frag < last {
		q.frag++
		q.logger.Debug("fragment cursor advanced", "fragment", q.frag)
		q.prefetchAfterLocked(song, q.frag)
		return nil
	}
	q.nextSongLocked()
	return nil
}

// skipPastLocked moves one song forward ignoring the loop mode, saturating
// one past the last song. Callers hold q.mu.
func (q *Queue) skipPastLocked() {
	q.frag = 0
	if q.song >= len(q.songs) {
		return
	}
	q.song++
	q.logger.Debug("song cursor forced forward", "song", q.song)
	if q.song < len(q.songs) {
		prefetchFirst(q.songs[q.song])
	}
}

// nextSongLocked resets the fragment cursor and applies the loop policy to
// the song cursor. Callers hold q.mu.
func (q *Queue) nextSongLocked() {
	q.frag = 0
	if q.loop == LoopCurrent {
		q.logger.Debug("loop mode current, song cursor unchanged")
		return
	}
	if q.song >= len(q.songs) {
		// Already past the end; further advances saturate here.
		return
	}
	q.song++
	if q.song >= len(q.songs) && q.loop == LoopAll {
		q.logger.Debug("wrapping song cursor to start")
		q.song = 0
	}
	q.logger.Debug("song cursor advanced", "song", q.song)
	if q.song < len(q.songs) {
		prefetchFirst(q.songs[q.song])
	}
}

// prefetchAfterLocked fires download of the fragment following fi, or of the
// next song's first fragment when fi is the item's last. Callers hold q.mu.
func (q *Queue) prefetchAfterLocked(song *media.Song, fi int) {
	frags := song.Fragments()
	if fi+1 < len(frags) {
		frags[fi+1].StartDownload()
		return
	}
	if q.song+1 < len(q.songs) {
		prefetchFirst(q.songs[q.song+1])
	}
}

// prefetchFirst starts download of a song's first fragment once the song is
// ready, without blocking the caller.
func prefetchFirst(s *media.Song) {
	go func() {
		if err := s.WaitReady(context.Background()); err != nil {
			return
		}
		if frags := s.Fragments(); len(frags) > 0 {
			frags[0].StartDownload()
		}
	}()
}

// Skip advances the song cursor forward by n items, bypassing the loop mode
// (a skip is a user-forced advance), saturating one past the last item. The
// fragment cursor resets to 0.
func (q *Queue) Skip(n int) {
	if n < 1 {
		n = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.songs) == 0 {
		return
	}
	q.frag = 0
	q.song += n
	if q.song > len(q.songs) {
		q.song = len(q.songs)
	}
	q.logger.Debug("skipped", "count", n, "song", q.song)
	if q.song < len(q.songs) {
		prefetchFirst(q.songs[q.song])
	}
}

// Add enqueues a URL. Collection URLs are expanded through the library's
// collection loader; anything else is appended as one song resolving in the
// background. Returns the number of songs appended.
func (q *Queue) Add(ctx context.Context, url string) (int, error) {
	if songs, err := q.lib.LoadCollection(ctx, url); err == nil {
		q.mu.Lock()
		q.songs = append(q.songs, songs...)
		q.mu.Unlock()
		q.logger.Info("queued collection", "url", url, "songs", len(songs))
		return len(songs), nil
	} else if !errors.Is(err, shared.ErrNotACollection) {
		return 0, err
	}

	s := q.lib.NewSong(url)
	q.mu.Lock()
	q.songs = append(q.songs, s)
	q.mu.Unlock()
	q.logger.Info("queued song", "url", url)
	return 1, nil
}

// Remove removes songs by queue position or by URL identity. Positions are
// 1-based, matching the numbers the queue view displays. An out-of-range
// position is reported as [shared.ErrOutOfRange]; a URL that matches nothing
// removes nothing.
func (q *Queue) Remove(ref string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if pos, err := strconv.Atoi(ref); err == nil {
		if pos < 1 || pos > len(q.songs) {
			return shared.ErrOutOfRange
		}
		q.removeAtLocked(pos - 1)
		return nil
	}

	for i := len(q.songs) - 1; i >= 0; i-- {
		if q.songs[i].URL() == ref {
			q.removeAtLocked(i)
		}
	}
	return nil
}

// removeAtLocked drops index i and keeps the cursor pointing at the same
// song where possible. Callers hold q.mu.
func (q *Queue) removeAtLocked(i int) {
	q.songs = append(q.songs[:i], q.songs[i+1:]...)
	if i < q.song {
		q.song--
	} else if i == q.song {
		q.frag = 0
	}
}

// Clear empties the queue and resets both cursors.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.songs = nil
	q.song = 0
	q.frag = 0
	q.logger.Debug("queue cleared")
}

// Len returns the number of queued songs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.songs)
}

// Loop returns the current loop mode.
func (q *Queue) Loop() LoopMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loop
}

// SetLoop sets the loop mode.
func (q *Queue) SetLoop(m LoopMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loop = m
	q.logger.Info("loop mode set", "mode", m)
}

// CycleLoop rotates the loop mode and returns the new value.
func (q *Queue) CycleLoop() LoopMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loop = q.loop.Cycle()
	q.logger.Info("loop mode cycled", "mode", q.loop)
	return q.loop
}

// Position returns the (song, fragment) cursor pair.
func (q *Queue) Position() (int, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.song, q.frag
}

// Snapshot returns a display view of the queue in order.
func (q *Queue) Snapshot() []SongView {
	q.mu.Lock()
	defer q.mu.Unlock()

	views := make([]SongView, 0, len(q.songs))
	for i, s := range q.songs {
		v := SongView{Index: i, URL: s.URL(), Current: i == q.song}
		if m := s.Meta(); m != nil {
			v.Ready = true
			v.Title = m.Title
			v.Channel = m.Channel
			v.Duration = m.Duration
		}
		views = append(views, v)
	}
	return views
}
