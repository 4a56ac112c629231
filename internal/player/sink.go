package player

import "context"

// Sink connects to playback targets. Implementations wrap whatever actually
// emits audio: a local process, a voice gateway, a test double.
type Sink interface {
	Connect(ctx context.Context, target string) (Conn, error)
}

// Conn is one live connection to a playback target. Play starts exactly one
// segment; onDone fires exactly once when the segment ends, including when it
// is ended early by Stop. onDone may be invoked on a foreign goroutine;
// callers must hand control back to their own scheduling context before
// touching shared state.
type Conn interface {
	Play(path string, onDone func()) error
	Stop()
	Pause()
	Resume()
	IsPlaying() bool
	IsPaused() bool
	Close() error
}
