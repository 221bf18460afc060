// Command taskauth runs the task tracker API and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "taskauth:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "taskauth",
		Usage:   "task tracker API with token auth",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			hashPasswordCommand(),
		},
	}
}
