/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/pathjail/pathjail/cmd/pathjail/pkg/command"
	"github.com/pathjail/pathjail/internal/config"
	"github.com/pathjail/pathjail/internal/logging"
	"github.com/pathjail/pathjail/pkg/metrics"
	"github.com/pathjail/pathjail/pkg/pathcore"
	"github.com/pathjail/pathjail/pkg/supervisor"
	"github.com/pathjail/pathjail/pkg/system"
	"github.com/pathjail/pathjail/version"
)

func main() {
	flags := command.NewFlags()
	app := &cli.App{
		Name:        "pathjail",
		Usage:       "run or attach to programs under an alternate filesystem root",
		Version:     version.Version,
		Flags:       flags.F,
		HideVersion: true,
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "spawn a program inside the jail and wait for it to exit",
				ArgsUsage: "-- prog [args...]",
				Action: func(c *cli.Context) error {
					return run(flags.Args, c.Args().Slice())
				},
			},
			{
				Name:  "attach",
				Usage: "attach to a running process, audit its open descriptors, detach",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "pid", Required: true, Usage: "`PID` of the process to attach to"},
				},
				Action: func(c *cli.Context) error {
					return attach(flags.Args, c.Int("pid"))
				},
			},
		},
		Action: func(c *cli.Context) error {
			if flags.Args.PrintVersion {
				fmt.Println("Version:    ", version.Version)
				fmt.Println("Revision:   ", version.Revision)
				fmt.Println("Go version: ", version.GoVersion)
				fmt.Println("Build time: ", version.BuildTimestamp)
				return nil
			}
			return cli.ShowAppHelp(c)
		},
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("pathjail exited")
	}
}

// setup merges the config file with command-line overrides, wires the
// logger, and builds the Jail every subcommand operates on.
func setup(args *command.Args) (*config.Config, *pathcore.Jail, error) {
	var cfg config.Config
	if err := config.LoadConfig(args.ConfigPath, &cfg); err != nil {
		return nil, nil, errors.Wrap(err, "invalid configuration")
	}

	if args.NewRoot != "" {
		cfg.NewRoot = args.NewRoot
	}
	for _, spec := range args.Mirrors.Value() {
		real, location := command.SplitMirror(spec)
		cfg.Mirrors = append(cfg.Mirrors, config.MirrorEntry{Real: real, Location: location})
	}
	if args.RunnerTrigger != "" {
		cfg.RunnerEnabled = true
	}
	if args.LogLevel != "" {
		cfg.Log.Level = args.LogLevel
	}
	if args.LogDir != "" {
		cfg.Log.Dir = args.LogDir
	}
	if args.LogToStdout {
		cfg.Log.Stdout = true
	}
	if args.MetricsAddress != "" {
		cfg.Metrics.Enable = true
		cfg.Metrics.Listen = args.MetricsAddress
	}
	if args.SystemSocket != "" {
		cfg.System.SocketPath = args.SystemSocket
	}
	cfg.FillupWithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "invalid configuration")
	}

	logRotateArgs := &logging.RotateLogArgs{
		RotateLogMaxSize:    cfg.Log.RotateLogMaxSize,
		RotateLogMaxBackups: cfg.Log.RotateLogMaxBackups,
		RotateLogMaxAge:     cfg.Log.RotateLogMaxAge,
		RotateLogLocalTime:  cfg.Log.RotateLogLocalTime,
		RotateLogCompress:   cfg.Log.RotateLogCompress,
	}
	if err := logging.SetUp(cfg.Log.Level, cfg.Log.Stdout, cfg.Log.Dir, logRotateArgs); err != nil {
		return nil, nil, errors.Wrap(err, "failed to set up logger")
	}

	opts := []pathcore.Option{pathcore.WithRunnerEnabled(cfg.RunnerEnabled)}
	for _, m := range cfg.Mirrors {
		opts = append(opts, pathcore.WithMirror(m.Real, m.Location))
	}
	jail, err := pathcore.New(cfg.NewRoot, opts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build jail")
	}

	logrus.Infof("pathjail %s ready, root %q, %d mirror(s)", jail.ID(), cfg.NewRoot, len(cfg.Mirrors))
	return &cfg, jail, nil
}

func run(args *command.Args, argv []string) error {
	if len(argv) == 0 {
		return errors.New("run: a program to spawn is required")
	}

	cfg, jail, err := setup(args)
	if err != nil {
		return err
	}

	sup := supervisor.New(jail)

	if cfg.Metrics.Enable {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Listen); err != nil {
				logrus.WithError(err).Error("metrics server stopped")
			}
		}()
	}
	if cfg.System.SocketPath != "" {
		sc, err := system.NewController(jail, sup, cfg.System.SocketPath)
		if err != nil {
			return errors.Wrap(err, "create system controller")
		}
		go func() {
			if err := sc.Run(); err != nil {
				logrus.WithError(err).Error("system controller stopped")
			}
		}()
	}

	sess, err := sup.Spawn(argv, args.RunnerTrigger)
	if err != nil {
		return errors.Wrapf(err, "spawn %q", argv[0])
	}
	logrus.Infof("spawned pid %d as session %s", sess.PID, sess.ID)

	if err := sup.Continue(sess); err != nil {
		return errors.Wrapf(err, "resume pid %d", sess.PID)
	}

	state, err := sup.Wait(sess)
	if err != nil && state == nil {
		return errors.Wrapf(err, "wait for pid %d", sess.PID)
	}
	logrus.Infof("pid %d exited: %s", sess.PID, state)
	if !state.Success() {
		os.Exit(state.ExitCode())
	}
	return nil
}

func attach(args *command.Args, pid int) error {
	_, jail, err := setup(args)
	if err != nil {
		return err
	}

	sup := supervisor.New(jail)
	sess, err := sup.Attach(pid, args.RunnerTrigger)
	if err != nil {
		return errors.Wrapf(err, "attach to pid %d", pid)
	}

	jail.ListOpenFD(pid)

	if err := sup.Detach(sess); err != nil {
		return errors.Wrapf(err, "detach from pid %d", pid)
	}
	return nil
}
