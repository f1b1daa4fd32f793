package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/apexls/apexls/internal/config"
	"github.com/apexls/apexls/internal/debug"
	"github.com/apexls/apexls/internal/graph"
	"github.com/apexls/apexls/internal/scheduler"
	"github.com/apexls/apexls/internal/server"
	"github.com/apexls/apexls/internal/version"
	"github.com/apexls/apexls/internal/watch"
	"github.com/apexls/apexls/pkg/uriutil"
)

func main() {
	app := &cli.App{
		Name:                   "apexls",
		Usage:                  "Apex symbol graph and language server core",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "workspace root directory",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "error|warn|info|debug (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "log-file",
				Usage: "write logs to a file under the system temp directory",
			},
			&cli.BoolFlag{
				Name:  "stdio",
				Usage: "suppress all log output for stdio transports",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "watch the workspace for source changes",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return fmt.Errorf("failed to resolve root path %q: %w", c.String("root"), err)
	}

	settings, err := config.LoadKDL(root)
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		settings.LogLevel = lvl
		if err := settings.Validate(); err != nil {
			return err
		}
	}

	if c.Bool("stdio") {
		debug.SetStdioMode(true)
	} else if c.Bool("log-file") {
		path, err := debug.InitLogFile()
		if err != nil {
			return err
		}
		defer debug.CloseLog()
		fmt.Fprintf(os.Stderr, "logging to %s\n", path)
	} else {
		debug.SetOutput(os.Stderr)
	}
	debug.SetLevel(debug.ParseLevel(settings.LogLevel))

	bus := config.NewBus(settings)
	sched := scheduler.New(settings.SchedulerConfig())
	if err := sched.Start(); err != nil {
		return err
	}

	symbolGraph := graph.New()
	srv := server.New(bus, sched, symbolGraph)

	if stats, err := srv.Loader().Initialize(); err != nil {
		debug.Warnf("MAIN", "standard library unavailable: %v", err)
	} else {
		debug.Infof("MAIN", "standard library ready: %d types, namespaces %v",
			stats.TotalFiles, stats.Namespaces)
	}

	var watcher *watch.Watcher
	if c.Bool("watch") {
		watcher, err = watch.New(root, watch.DefaultDebounce,
			func(path string) {
				// Re-parsing is the parser collaborator's job; a change is
				// only logged here and the file's symbols stay in the graph
				// until new parser output replaces them.
				debug.Infof("MAIN", "changed: %s", path)
			},
			func(path string) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if _, err := srv.RemoveFile(ctx, uriutil.FileURI(path)); err != nil {
					debug.Warnf("MAIN", "remove %s: %v", path, err)
				}
			})
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
	}

	stopNotifier := sched.StartMetricsNotifier(5 * time.Second)

	debug.Infof("MAIN", "%s ready at %s", version.FullInfo(), root)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stopNotifier()
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			debug.Warnf("MAIN", "watcher stop: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return sched.Shutdown(shutdownCtx)
}
