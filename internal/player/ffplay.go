package player

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
)

// FFPlaySink plays fragments on the local audio device by spawning ffplay.
// The connect target is ignored; there is only one local device.
type FFPlaySink struct {
	binary string
	logger *log.Logger
}

// NewFFPlaySink creates a sink invoking the given ffplay binary.
func NewFFPlaySink(binary string, logger *log.Logger) *FFPlaySink {
	if binary == "" {
		binary = "ffplay"
	}
	return &FFPlaySink{binary: binary, logger: logger}
}

// Connect returns a connection to the local audio device.
func (s *FFPlaySink) Connect(ctx context.Context, target string) (Conn, error) {
	s.logger.Info("connected local sink", "target", target)
	return &ffplayConn{binary: s.binary, logger: s.logger}, nil
}

type ffplayConn struct {
	binary string
	logger *log.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	paused bool
}

func (c *ffplayConn) Play(path string, onDone func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil {
		return fmt.Errorf("a segment is already playing")
	}

	cmd := exec.Command(c.binary, "-nodisp", "-autoexit", "-loglevel", "quiet", path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", c.binary, err)
	}
	c.cmd = cmd
	c.paused = false
	c.logger.Debug("segment playback started", "path", path)

	go func() {
		cmd.Wait()
		c.mu.Lock()
		if c.cmd == cmd {
			c.cmd = nil
			c.paused = false
		}
		c.mu.Unlock()
		onDone()
	}()
	return nil
}

func (c *ffplayConn) Stop() {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
}

func (c *ffplayConn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil && c.cmd.Process != nil && !c.paused {
		c.cmd.Process.Signal(syscall.SIGSTOP)
		c.paused = true
	}
}

func (c *ffplayConn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil && c.cmd.Process != nil && c.paused {
		c.cmd.Process.Signal(syscall.SIGCONT)
		c.paused = false
	}
}

func (c *ffplayConn) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmd != nil && !c.paused
}

func (c *ffplayConn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *ffplayConn) Close() error {
	c.Stop()
	return nil
}
