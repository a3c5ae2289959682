package main

import (
	"fmt"

	cli "github.com/urfave/cli/v2"

	"github.com/whisper/moderator/internal/feedback"
	"github.com/whisper/moderator/internal/httputil"
)

var updateModelCmd = &cli.Command{
	Name:  "update-model",
	Usage: "download classifier artifacts if the remote version changed",
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		logger, err := configLogger(cfg)
		if err != nil {
			return err
		}
		updater := buildUpdater(cfg, httputil.RobustClient(httputil.DefaultClientConfig(), logger), logger)
		if updater == nil {
			return fmt.Errorf("model-url, transformer-url and model-version-url are all required")
		}
		updated, err := updater.Update(cctx.Context)
		if err != nil {
			return err
		}
		logger.Info("classifier artifacts checked", "updated", updated, "version", updater.LocalVersion())
		return nil
	},
}

var refreshWordlistsCmd = &cli.Command{
	Name:  "refresh-wordlists",
	Usage: "sync cached word lists with the word-list server and print versions",
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		logger, err := configLogger(cfg)
		if err != nil {
			return err
		}
		if cfg.WordlistURL == "" {
			return fmt.Errorf("wordlist-url is required")
		}
		client := httputil.RobustClient(httputil.DefaultClientConfig(), logger)
		registry, _, err := buildFilters(cctx.Context, cfg, client, nil, logger)
		if err != nil {
			return err
		}
		for _, f := range registry.Filters() {
			fmt.Fprintf(cctx.App.Writer, "%s\t%s\t%d words\n", f.Category(), f.Words().Version, len(f.Words().Words))
		}
		return nil
	},
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "apply feedback database migrations and print label counts",
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("postgres-dsn is required")
		}
		pg, err := feedback.OpenPostgres(cctx.Context, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pg.Close()

		counts, err := pg.CountByLabel(cctx.Context)
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "label 0: %d\nlabel 1: %d\n", counts[0], counts[1])
		return nil
	},
}
