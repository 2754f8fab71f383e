/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package command

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	defaultLogLevel = logrus.InfoLevel
)

type Args struct {
	NewRoot        string
	Mirrors        cli.StringSlice
	RunnerTrigger  string
	ConfigPath     string
	LogLevel       string
	LogDir         string
	LogToStdout    bool
	MetricsAddress string
	SystemSocket   string
	PrintVersion   bool
}

type Flags struct {
	Args *Args
	F    []cli.Flag
}

func buildFlags(args *Args) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "version",
			Value:       false,
			Usage:       "print version and build information",
			Destination: &args.PrintVersion,
		},
		&cli.StringFlag{
			Name:        "root",
			Aliases:     []string{"r"},
			Usage:       "set `DIRECTORY` the traced program sees as \"/\"",
			Destination: &args.NewRoot,
		},
		&cli.StringSliceFlag{
			Name:        "mirror",
			Aliases:     []string{"m"},
			Usage:       "make host `REAL[:LOCATION]` visible inside the jail; may be repeated",
			Destination: &args.Mirrors,
		},
		&cli.StringFlag{
			Name:        "trigger",
			Usage:       "delay translation until `PATH` is named by the child",
			Destination: &args.RunnerTrigger,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to the pathjail configuration",
			Destination: &args.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Aliases:     []string{"l"},
			Value:       defaultLogLevel.String(),
			Usage:       "set the logging `LEVEL` [trace, debug, info, warn, error, fatal, panic]",
			Destination: &args.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-dir",
			Aliases:     []string{"L"},
			Usage:       "set `DIRECTORY` to store log files",
			Destination: &args.LogDir,
		},
		&cli.BoolFlag{
			Name:        "log-to-stdout",
			Usage:       "log messages to standard output rather than files",
			Destination: &args.LogToStdout,
		},
		&cli.StringFlag{
			Name:        "metrics-address",
			Usage:       "set `ADDRESS` to serve prometheus metrics, empty disables the exporter",
			Destination: &args.MetricsAddress,
		},
		&cli.StringFlag{
			Name:        "system-socket",
			Usage:       "set unix socket `PATH` for the introspection API",
			Destination: &args.SystemSocket,
		},
	}
}

func NewFlags() *Flags {
	var args Args
	return &Flags{
		Args: &args,
		F:    buildFlags(&args),
	}
}

// SplitMirror parses a --mirror operand of the form "real[:location]".
// A missing location requests a symmetric mirror.
func SplitMirror(spec string) (real, location string) {
	if idx := strings.IndexByte(spec, ':'); idx >= 0 {
		return spec[:idx], spec[idx+1:]
	}
	return spec, ""
}
