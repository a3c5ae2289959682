package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	cli "github.com/urfave/cli/v2"

	"github.com/whisper/moderator/internal/action"
	"github.com/whisper/moderator/internal/engine"
	"github.com/whisper/moderator/internal/httputil"
	"github.com/whisper/moderator/internal/moderation"
	"github.com/whisper/moderator/internal/review"
)

var checkCmd = &cli.Command{
	Name:      "check",
	Usage:     "moderate comments given as arguments, or one per line on stdin",
	ArgsUsage: "[comment...]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "interactive",
			Usage: "ask for a decision on the terminal for every comment",
		},
		&cli.StringFlag{
			Name:  "owner-config",
			Usage: `owner config as JSON, eg: {"filters":[{"name":"racism"}],"threshold":90}`,
		},
		&cli.StringFlag{
			Name:  "mode",
			Usage: "action mode used to print the platform action: FULL or MAX_HIDE",
			Value: string(action.Full),
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "print the full outcome as JSON lines",
		},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		if !cctx.IsSet("log-format") {
			cfg.LogFormat = "text"
		}
		logger, err := configLogger(cfg)
		if err != nil {
			return err
		}
		ctx := cctx.Context

		var owner *moderation.OwnerConfig
		if raw := cctx.String("owner-config"); raw != "" {
			owner = &moderation.OwnerConfig{}
			if err := json.Unmarshal([]byte(raw), owner); err != nil {
				return fmt.Errorf("parsing owner config: %w", err)
			}
			if err := owner.Validate(); err != nil {
				return err
			}
		}

		interactive := cctx.Bool("interactive")
		comments := cctx.Args().Slice()
		if interactive && len(comments) == 0 {
			return errors.New("interactive mode reads decisions from stdin; pass comments as arguments")
		}

		client := httputil.RobustClient(httputil.DefaultClientConfig(), logger)
		_, filters, err := buildFilters(ctx, cfg, client, nil, logger)
		if err != nil {
			return err
		}
		adapter, err := buildClassifier(ctx, cfg, buildUpdater(cfg, client, logger), logger)
		if err != nil {
			return err
		}
		recorder, closeRecorder, err := buildRecorder(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeRecorder()

		opts := engine.Options{
			Filters:    filters,
			Classifier: adapter,
			Recorder:   recorder,
			Learn:      cfg.Learn,
			Threshold:  cfg.Threshold,
			Logger:     logger,
		}
		if interactive {
			opts.Gate = review.NewConsole(os.Stdin, os.Stdout)
		}
		eng, err := engine.New(opts)
		if err != nil {
			return err
		}

		mode, err := action.ParseMode(cctx.String("mode"))
		if err != nil {
			return err
		}
		if owner != nil && owner.MaxHide {
			mode = action.MaxHide
		}

		p := printer{out: os.Stdout, mode: mode, json: cctx.Bool("json")}
		moderate := func(text string) error {
			out := eng.Moderate(ctx, engine.Request{Text: text, Interactive: interactive, Owner: owner})
			return p.print(out)
		}

		if len(comments) > 0 {
			for _, text := range comments {
				if err := moderate(text); err != nil {
					return err
				}
			}
			return nil
		}
		return eachLine(ctx, os.Stdin, moderate)
	},
}

func eachLine(ctx context.Context, in io.Reader, fn func(string) error) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), moderation.MaxCommentBytes+1)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}

type printer struct {
	out  io.Writer
	mode action.Mode
	json bool
}

func (p printer) print(out engine.Outcome) error {
	act, err := action.For(out.Verdict, p.mode)
	if err != nil {
		return err
	}
	if p.json {
		return json.NewEncoder(p.out).Encode(struct {
			engine.Outcome
			Code   int    `json:"code"`
			Action string `json:"action"`
		}{out, int(out.Verdict), string(act)})
	}
	text := strings.Join(strings.Fields(out.Text), " ")
	_, err = fmt.Fprintf(p.out, "%d\t%s\t%s\t%s\n", int(out.Verdict), out.Verdict, act, text)
	return err
}
