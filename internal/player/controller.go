// Package player implements the playback controller: one per independent
// playback context, owning exactly one queue and at most one sink connection.
//
// All queue mutation funnels through the controller's play loop and command
// methods. The sink's completion callback runs on a foreign goroutine; it is
// redispatched into the loop through a per-segment channel the loop selects
// on, so cursor state is never touched from the sink's context.
package player

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/quaverd/quaver/internal/media"
	"github.com/quaverd/quaver/internal/queue"
	"github.com/quaverd/quaver/internal/shared"
)

// Controller drives playback for one context. States: idle (no sink
// connection), connected-idle (connection, no play loop), playing (play loop
// active).
type Controller struct {
	id     string
	sink   Sink
	queue  *queue.Queue
	logger *log.Logger

	mu       sync.Mutex
	conn     Conn
	target   string
	cancel   context.CancelFunc
	loopDone chan struct{}
	skipped  bool // a user skip already moved the cursor; suppress the loop's advance
}

// NewController creates an idle controller with an empty queue.
func NewController(id string, lib *media.Library, sink Sink, logger *log.Logger) *Controller {
	logger = logger.With("context", id)
	return &Controller{
		id:     id,
		sink:   sink,
		queue:  queue.New(lib, logger),
		logger: logger,
	}
}

// Queue returns the controller's queue.
func (c *Controller) Queue() *queue.Queue { return c.queue }

// Connected reports whether a sink connection is attached.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Playing reports whether the play loop is active.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Target returns the connected target, or "".
func (c *Controller) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Join attaches a sink connection. Joining the current target again is a
// no-op; joining a different target while connected fails until Leave.
func (c *Controller) Join(ctx context.Context, target string) error {
	c.mu.Lock()
	if c.conn != nil {
		same := c.target == target
		c.mu.Unlock()
		if same {
			c.logger.Debug("already joined", "target", target)
			return nil
		}
		return shared.ErrAlreadyConnected
	}
	c.mu.Unlock()

	conn, err := c.sink.Connect(ctx, target)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		// Lost a join race; keep the first connection.
		conn.Close()
		if c.target == target {
			return nil
		}
		return shared.ErrAlreadyConnected
	}
	c.conn = conn
	c.target = target
	c.logger.Info("joined", "target", target)
	return nil
}

// Leave cancels any active play loop, detaches the sink connection and
// clears the queue.
func (c *Controller) Leave() error {
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	done := c.loopDone
	c.conn = nil
	c.target = ""
	c.cancel = nil
	c.loopDone = nil
	c.skipped = false
	c.mu.Unlock()

	if conn == nil {
		return shared.ErrNotConnected
	}

	if cancel != nil {
		cancel()
	}
	// Stop the current segment so a loop blocked on completion wakes up.
	conn.Stop()
	if done != nil {
		<-done
	}
	conn.Close()
	c.queue.Clear()
	c.logger.Info("left")
	return nil
}

// Play starts the play loop. Calling it while already playing is a safe,
// logged no-op. Fails when no sink connection is attached.
func (c *Controller) Play() error {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return shared.ErrNotConnected
	}
	if c.cancel != nil {
		c.mu.Unlock()
		c.logger.Warn("already playing, nothing will be done")
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	conn := c.conn
	c.cancel = cancel
	c.loopDone = done
	c.mu.Unlock()

	c.logger.Info("starting play loop")
	go c.playLoop(loopCtx, conn, done)
	return nil
}

// playLoop fetches fragments in cursor order and bridges them to the sink.
// It exits when the queue reports no current item, on cancellation, or after
// running cleanup on an advance failure.
func (c *Controller) playLoop(ctx context.Context, conn Conn, done chan struct{}) {
	defer close(done)
	defer c.release(done)

	for {
		if ctx.Err() != nil {
			return
		}

		path, err := c.queue.Get(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// The current item is unavailable; move past it and keep going.
			c.logger.Error("fragment unavailable, skipping item", "err", err)
			if aerr := c.queue.Advance(ctx); aerr != nil {
				return
			}
			continue
		}
		if path == "" {
			c.logger.Info("queue exhausted, stopping playback")
			conn.Stop()
			return
		}

		segDone := make(chan struct{})
		var once sync.Once
		err = conn.Play(path, func() {
			// Foreign goroutine: only signal, never touch state here.
			once.Do(func() { close(segDone) })
		})
		if err != nil {
			c.logger.Error("sink refused segment, cleaning up", "path", path, "err", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-segDone:
		}

		c.mu.Lock()
		skipped := c.skipped
		c.skipped = false
		c.mu.Unlock()
		if skipped {
			// The skip already positioned the cursor.
			continue
		}

		if err := c.queue.Advance(ctx); err != nil {
			if ctx.Err() == nil {
				c.logger.Error("advance failed, cleaning up", "err", err)
				conn.Stop()
			}
			return
		}
	}
}

// release clears loop state if it still belongs to this loop instance.
func (c *Controller) release(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loopDone == done {
		if c.cancel != nil {
			c.cancel()
		}
		c.cancel = nil
		c.loopDone = nil
		c.skipped = false
	}
}

// Skip forces the queue cursor forward by n items and stops the current
// segment; the play loop's completion branch then picks up the new cursor
// without advancing again. quiet suppresses the info log.
func (c *Controller) Skip(n int, quiet bool) error {
	c.mu.Lock()
	conn := c.conn
	active := c.cancel != nil && conn != nil && (conn.IsPlaying() || conn.IsPaused())
	if active {
		c.skipped = true
	}
	c.mu.Unlock()

	c.queue.Skip(n)
	if active {
		conn.Stop()
	}
	if !quiet {
		c.logger.Info("skipped", "count", n)
	}
	return nil
}

// Pause pauses the current segment.
func (c *Controller) Pause() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return shared.ErrNotConnected
	}
	if !conn.IsPlaying() {
		return shared.ErrNotPlaying
	}
	conn.Pause()
	c.logger.Debug("paused")
	return nil
}

// Resume resumes a paused segment.
func (c *Controller) Resume() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return shared.ErrNotConnected
	}
	if !conn.IsPaused() {
		return shared.ErrNotPlaying
	}
	conn.Resume()
	c.logger.Debug("resumed")
	return nil
}

// Stop cancels playback and leaves the target.
func (c *Controller) Stop() error {
	c.logger.Info("stop issued")
	return c.Leave()
}
