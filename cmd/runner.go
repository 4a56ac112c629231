package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/quaverd/quaver/internal/cache"
	"github.com/quaverd/quaver/internal/commands"
	"github.com/quaverd/quaver/internal/media"
	"github.com/quaverd/quaver/internal/player"
	"github.com/quaverd/quaver/internal/services"
	"github.com/quaverd/quaver/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	logger  *log.Logger
	output  io.Writer
	stdin   io.Reader
	sink    player.Sink
	backend services.Backend

	library    *media.Library
	manager    *player.Manager
	dispatcher *commands.Dispatcher
}

// RunnerOpts contains configuration options for creating a Runner. Backend
// and Sink are injectable for tests; unset, the yt-dlp backend and the
// ffplay sink are built from the config.
type RunnerOpts struct {
	Config  *shared.Config
	Logger  *log.Logger
	Output  io.Writer
	Stdin   io.Reader
	Backend services.Backend
	Sink    player.Sink
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:  opts.Config,
		logger:  opts.Logger,
		output:  opts.Output,
		stdin:   opts.Stdin,
		backend: opts.Backend,
		sink:    opts.Sink,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		consoleCommand, resolveCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// reloadConfig swaps in the file named by the command's config flag, when it
// differs from the startup default and exists.
func (r *Runner) reloadConfig(cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" || path == "config.toml" {
		return nil
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	r.config = config
	shared.SetLogLevel(r.logger, config.Log.Level)
	return nil
}

// bootstrap builds the metadata cache, library, controller registry and
// command table from the current config. Idempotent.
func (r *Runner) bootstrap() error {
	if r.manager != nil {
		return nil
	}

	dir := r.config.Cache.Dir
	if dir == "" {
		dir = "./cache"
	}
	if err := shared.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	mc, err := cache.Open(filepath.Join(dir, "meta.json"), r.logger)
	if err != nil {
		return fmt.Errorf("failed to open metadata cache: %w", err)
	}

	if r.backend == nil {
		r.backend = services.NewYTDLPBackend(
			r.config.Backend.Binary,
			r.config.Backend.RateLimit,
			time.Duration(r.config.Backend.TimeoutSeconds)*time.Second,
			r.logger,
		)
	}
	if r.sink == nil {
		r.sink = player.NewFFPlaySink(r.config.Player.SinkCommand, r.logger)
	}

	r.library = media.NewLibrary(media.LibraryOpts{
		Backend:         r.backend,
		Cache:           mc,
		Dir:             dir,
		FragmentSize:    r.config.Media.FragmentSize,
		CollectionLimit: r.config.Media.CollectionLimit,
		Logger:          r.logger,
	})
	r.manager = player.NewManager(r.library, r.sink, r.logger)
	r.dispatcher = commands.NewDispatcher(r.manager, r.logger)
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain(format+"\n", args...)
}
