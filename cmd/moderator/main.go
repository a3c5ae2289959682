package main

import (
	"log/slog"
	"os"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "moderator",
		Usage:   "comment moderation decision engine",
		Version: versioninfo.Short(),
	}

	app.Flags = globalFlags()

	app.Commands = []*cli.Command{
		runCmd,
		checkCmd,
		updateModelCmd,
		refreshWordlistsCmd,
		migrateCmd,
		benchCmd,
	}

	return app.Run(args)
}
