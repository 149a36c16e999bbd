// Copyright 2025 Google LLC
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

// Command ndt parses, matches and substitutes array types, and indexes arrays.
//
//	ndt parse "3 * var * {x: int32, y: float64}"
//	ndt match "3 * int32" "Dims... * T"
//	ndt subst "Dims... * T" Dims=dim_fragment[2] T=float32
//	ndt shape "fixed * var * int32" 4 -1
//	ndt index --type "5 * int32" "[1, 2, 3, 4, 5]" "1:3"
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/gx-org/dynd/eval"
	"github.com/spf13/cobra"
)

// app holds the state shared by all the commands.
type app struct {
	config  string
	errMode string
	verbose bool

	ectx *eval.Context
}

func (a *app) loadContext(stderr io.Writer) error {
	ectx := eval.Default()
	if a.config != "" {
		var err error
		if ectx, err = eval.Load(a.config); err != nil {
			return err
		}
	}
	if a.errMode != "" {
		mode, err := eval.ParseErrorMode(a.errMode)
		if err != nil {
			return err
		}
		ectx = ectx.WithErrMode(mode)
	}
	if a.verbose {
		ectx.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	a.ectx = ectx
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ndt",
		Short:         "Array type tool",
		Long:          "ndt parses and prints array types, matches them against patterns and indexes arrays.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadContext(cmd.ErrOrStderr())
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.config, "config", "", "TOML file describing the evaluation context")
	flags.StringVar(&a.errMode, "errmode", "", "assignment error mode (none|overflow|fractional|inexact)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log kernel construction to stderr")

	root.AddCommand(
		newParseCmd(a),
		newMatchCmd(a),
		newSubstCmd(a),
		newShapeCmd(a),
		newIndexCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
