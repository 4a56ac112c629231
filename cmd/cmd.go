// submodule cmd contains command definitions
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/quaverd/quaver/internal/formatter"
	"github.com/quaverd/quaver/internal/shared"
)

// localContext is the controller id for the interactive console; there is
// one local playback context.
const localContext = "console"

// Console runs the interactive command loop against the local playback
// context.
func (r *Runner) Console(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}
	if err := r.bootstrap(); err != nil {
		return err
	}
	defer r.manager.Shutdown()

	r.writePlainln("quaver console. Type 'help' for commands, 'exit' to quit.")

	scanner := bufio.NewScanner(r.input())
	for {
		r.writePlain("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			r.writePlainln("commands: %s, help, exit", strings.Join(r.dispatcher.Commands(), ", "))
			continue
		}

		resp, err := r.dispatcher.Dispatch(ctx, localContext, line)
		if err != nil {
			if errors.Is(err, shared.ErrUnknownCommand) {
				r.writePlainln("Unknown command. Type 'help' for the list.")
				continue
			}
			r.logger.Error("command failed", "err", err)
			r.writePlainln("Something went wrong: %v", err)
			continue
		}
		if resp != "" {
			r.writePlainln("%s", resp)
		}
	}
	return scanner.Err()
}

// input returns the console input stream, overridable for tests.
func (r *Runner) input() io.Reader {
	if r.stdin != nil {
		return r.stdin
	}
	return os.Stdin
}

// Resolve fetches and prints metadata for one URL, as a debugging aid.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("url argument is required")
	}
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}
	if err := r.bootstrap(); err != nil {
		return err
	}

	info, err := r.backend.ResolveTrack(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", url, err)
	}

	r.writePlainln("Title:    %s", info.Title)
	r.writePlainln("Channel:  %s", info.Channel)
	r.writePlainln("Duration: %s", formatter.FormatDuration(info.Duration))
	r.writePlainln("URL:      %s", info.PageURL())
	return nil
}

// ConfigInit writes the example config file.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.writePlainln("Wrote %s", path)
	return nil
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// consoleCommand runs the interactive playback console
func consoleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "console",
		Usage:  "Interactive playback console",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Console,
	}
}

// resolveCommand prints metadata for a URL
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve a media URL and print its metadata",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "url",
			},
		},
		Flags:  []cli.Flag{configFlag()},
		Action: r.Resolve,
	}
}

// configCommand handles configuration management
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write the example configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.ConfigInit,
			},
		},
	}
}
