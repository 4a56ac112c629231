// package commands maps user command lines onto playback controller
// operations and turns their outcomes into plain response strings
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/quaverd/quaver/internal/formatter"
	"github.com/quaverd/quaver/internal/player"
	"github.com/quaverd/quaver/internal/queue"
	"github.com/quaverd/quaver/internal/shared"
)

// Handler executes one command against a controller and returns the response
// text shown to the user.
type Handler func(ctx context.Context, c *player.Controller, args []string) (string, error)

// Dispatcher routes command names to handlers. Unknown names and argument
// mistakes come back as user-facing responses; only unexpected failures
// surface as errors.
type Dispatcher struct {
	manager  *player.Manager
	handlers map[string]Handler
	logger   *log.Logger
}

// NewDispatcher builds the command table.
func NewDispatcher(manager *player.Manager, logger *log.Logger) *Dispatcher {
	d := &Dispatcher{
		manager: manager,
		logger:  logger,
	}
	d.handlers = map[string]Handler{
		"join":       join,
		"leave":      leave,
		"queue":      enqueue,
		"play":       play,
		"pause":      pause,
		"resume":     resume,
		"skip":       skip,
		"remove":     remove,
		"clear":      clear,
		"loop":       loop,
		"loop-cycle": loopCycle,
		"list":       list,
		"stop":       stop,
	}
	return d
}

// Commands returns the sorted command names, for help output.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch parses a raw command line and runs it against the controller for
// the given context id.
func (d *Dispatcher) Dispatch(ctx context.Context, contextID, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	name := strings.ToLower(fields[0])
	handler, ok := d.handlers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", shared.ErrUnknownCommand, name)
	}

	c := d.manager.Controller(contextID)
	resp, err := handler(ctx, c, fields[1:])
	if err != nil {
		if msg, ok := userMessage(err); ok {
			d.logger.Debug("command rejected", "command", name, "err", err)
			return msg, nil
		}
		d.logger.Error("command failed", "command", name, "err", err)
		return "", err
	}
	return resp, nil
}

// userMessage maps expected failures to response text. Anything unmapped is
// an internal error.
func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, shared.ErrNotConnected):
		return "Not connected.", true
	case errors.Is(err, shared.ErrAlreadyConnected):
		return "Already connected elsewhere; leave first.", true
	case errors.Is(err, shared.ErrNotPlaying):
		return "Nothing is playing.", true
	case errors.Is(err, shared.ErrOutOfRange):
		return "That index is out of range.", true
	case errors.Is(err, shared.ErrInvalidArgument):
		return "Invalid argument.", true
	case errors.Is(err, shared.ErrMissingArgument):
		return "Missing argument.", true
	case errors.Is(err, shared.ErrNotACollection):
		return "That link is not a collection.", true
	case errors.Is(err, shared.ErrResolutionFailed):
		return "Could not resolve that link.", true
	}
	return "", false
}

func join(ctx context.Context, c *player.Controller, args []string) (string, error) {
	if len(args) < 1 {
		return "", shared.ErrMissingArgument
	}
	if err := c.Join(ctx, args[0]); err != nil {
		return "", err
	}
	return "Joined " + args[0] + ".", nil
}

func leave(ctx context.Context, c *player.Controller, args []string) (string, error) {
	if err := c.Leave(); err != nil {
		return "", err
	}
	return "Left.", nil
}

func enqueue(ctx context.Context, c *player.Controller, args []string) (string, error) {
	if len(args) < 1 {
		return "", shared.ErrMissingArgument
	}
	n, err := c.Queue().Add(ctx, args[0])
	if err != nil {
		return "", err
	}
	if n == 1 {
		return "Queued 1 song.", nil
	}
	return fmt.Sprintf("Queued %d songs.", n), nil
}

func play(ctx context.Context, c *player.Controller, args []string) (string, error) {
	if err := c.Play(); err != nil {
		return "", err
	}
	return "Playing.", nil
}

func pause(ctx context.Context, c *player.Controller, args []string) (string, error) {
	if err := c.Pause(); err != nil {
		return "", err
	}
	return "Paused.", nil
}

func resume(ctx context.Context, c *player.Controller, args []string) (string, error) {
	if err := c.Resume(); err != nil {
		return "", err
	}
	return "Resumed.", nil
}

// skip takes an optional count and an optional trailing "quiet" flag.
func skip(ctx context.Context, c *player.Controller, args []string) (string, error) {
	n := 1
	quiet := false
	for _, arg := range args {
		if arg == "quiet" {
			quiet = true
			continue
		}
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			return "", fmt.Errorf("%w: %s", shared.ErrInvalidArgument, arg)
		}
		n = v
	}
	if err := c.Skip(n, quiet); err != nil {
		return "", err
	}
	if quiet {
		return "", nil
	}
	if n == 1 {
		return "Skipped.", nil
	}
	return fmt.Sprintf("Skipped %d songs.", n), nil
}

func remove(ctx context.Context, c *player.Controller, args []string) (string, error) {
	if len(args) < 1 {
		return "", shared.ErrMissingArgument
	}
	if err := c.Queue().Remove(args[0]); err != nil {
		return "", err
	}
	return "Removed.", nil
}

func clear(ctx context.Context, c *player.Controller, args []string) (string, error) {
	c.Queue().Clear()
	return "Queue cleared.", nil
}

// loop with no argument reports the mode; with one it sets it.
func loop(ctx context.Context, c *player.Controller, args []string) (string, error) {
	if len(args) == 0 {
		return "Loop mode is " + c.Queue().Loop().String() + ".", nil
	}
	mode, err := queue.ParseLoopMode(strings.ToLower(args[0]))
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, args[0])
	}
	c.Queue().SetLoop(mode)
	return "Loop mode set to " + mode.String() + ".", nil
}

func loopCycle(ctx context.Context, c *player.Controller, args []string) (string, error) {
	return "Loop mode set to " + c.Queue().CycleLoop().String() + ".", nil
}

func list(ctx context.Context, c *player.Controller, args []string) (string, error) {
	page := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return "", fmt.Errorf("%w: %s", shared.ErrInvalidArgument, args[0])
		}
		page = v
	}
	return formatter.QueueView(c.Queue().Snapshot(), page, formatter.DefaultPageSize), nil
}

func stop(ctx context.Context, c *player.Controller, args []string) (string, error) {
	if err := c.Stop(); err != nil {
		return "", err
	}
	return "Stopped.", nil
}
