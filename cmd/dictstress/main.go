// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// dictstress drives a Dictionary and Go's builtin map through the same
// randomized workload and reports per-operation latency. Growth of the
// builtin map shows up as latency spikes proportional to its size while the
// Dictionary's worst case stays bounded by the migration rate.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/cockroachdb/dictionary"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := command().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func command() *cli.Command {
	return &cli.Command{
		Name:      "dictstress",
		Usage:     "Compare per-operation latency of a Dictionary and the builtin map.",
		UsageText: "dictstress [options]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "ops",
				Aliases: []string{"n"},
				Value:   1_000_000,
				Usage:   "Number of operations to run against each implementation",
			},
			&cli.IntFlag{
				Name:  "capacity",
				Value: 0,
				Usage: "Initial capacity (0 uses the Dictionary default)",
			},
			&cli.IntFlag{
				Name:  "rate",
				Value: dictionary.DefaultMigrationRate,
				Usage: "Entries migrated per insert while growing",
			},
			&cli.FloatFlag{
				Name:  "remove-ratio",
				Value: 0.1,
				Usage: "Fraction of operations that remove a key",
			},
			&cli.FloatFlag{
				Name:  "lookup-ratio",
				Value: 0.2,
				Usage: "Fraction of operations that look up a key",
			},
			&cli.IntFlag{
				Name:  "seed",
				Value: 0,
				Usage: "Seed for a reproducible workload (0 picks a random one)",
			},
			&cli.IntFlag{
				Name:  "key-space",
				Value: 0,
				Usage: "Number of distinct keys (0 makes every inserted key distinct)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Set the log level.  One of: debug, info, warn, error.",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output logs as JSON.",
			},
		},
		Action: action,
	}
}

func action(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(os.Stderr, cmd.String("log-level"), cmd.Bool("json"))
	if err != nil {
		return err
	}

	w := workload{
		ops:         cmd.Int("ops"),
		capacity:    cmd.Int("capacity"),
		rate:        cmd.Int("rate"),
		removeRatio: cmd.Float("remove-ratio"),
		lookupRatio: cmd.Float("lookup-ratio"),
		seed:        uint64(cmd.Int("seed")),
		keySpace:    cmd.Int("key-space"),
	}
	if err := w.validate(); err != nil {
		return err
	}

	ops := w.generate()
	logger.Info("generated workload",
		slog.Int("ops", len(ops)),
		slog.Float64("remove_ratio", w.removeRatio),
		slog.Float64("lookup_ratio", w.lookupRatio),
		slog.Int("rate", w.rate))

	for _, s := range []store{newBuiltinStore(w), newDictionaryStore(w, logger)} {
		r, err := run(ctx, s, ops)
		if err != nil {
			return err
		}
		r.log(logger)
	}
	return nil
}

func newLogger(w io.Writer, level string, json bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	if json {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: "[15:04:05.000]", // millisecond
	})), nil
}
