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

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gx-org/dynd/nd"
	"github.com/gx-org/dynd/ndt"
	"github.com/gx-org/dynd/ndt/typevar"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newParseCmd(a *app) *cobra.Command {
	var info bool
	cmd := &cobra.Command{
		Use:   "parse TYPE...",
		Short: "Parse types and print them in canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, arg := range args {
				tp, err := ndt.Parse(arg)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, tp)
				if !info {
					continue
				}
				fmt.Fprintf(out, "  kind: %s, size: %d, alignment: %d, ndim: %d, arrmeta: %d bytes\n",
					tp.Kind(), tp.DataSize(), tp.Alignment(), tp.NDim(), tp.ArrmetaSize())
				fmt.Fprintf(out, "  symbolic: %v, expression: %v, blockrefs: %v\n",
					tp.IsSymbolic(), tp.IsExpression(), tp.HasBlockrefs())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&info, "info", false, "print the layout properties of the types")
	return cmd
}

func newMatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "match CONCRETE PATTERN [CONCRETE PATTERN]...",
		Short: "Match types against patterns and print the variable bindings",
		Long:  "match unifies every pair of a concrete type and a pattern. Variables are shared by all the pairs.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return errors.Errorf("match takes pairs of types, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			m := typevar.NewMap()
			for i := 0; i < len(args); i += 2 {
				concrete, err := ndt.Parse(args[i])
				if err != nil {
					return err
				}
				pattern, err := ndt.Parse(args[i+1])
				if err != nil {
					return err
				}
				if !typevar.Match(concrete, pattern, m) {
					return errors.Errorf("%s does not match %s with %s", concrete, pattern, m)
				}
				a.ectx.Log().Debug("match", "concrete", concrete, "pattern", pattern, "vars", m.String())
			}
			fmt.Fprintln(cmd.OutOrStdout(), m)
			return nil
		},
	}
}

// parseBinding parses NAME=TYPE.
func parseBinding(s string) (string, ndt.Type, error) {
	name, src, ok := strings.Cut(s, "=")
	if !ok {
		return "", ndt.Type{}, errors.Errorf("invalid binding %q: want NAME=TYPE", s)
	}
	name = strings.TrimSpace(name)
	if !ndt.IsTypevarName(name) {
		return "", ndt.Type{}, errors.Errorf("invalid binding %q: %q is not a type variable name", s, name)
	}
	tp, err := ndt.Parse(src)
	if err != nil {
		return "", ndt.Type{}, err
	}
	return name, tp, nil
}

func newSubstCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "subst PATTERN [NAME=TYPE]...",
		Short: "Substitute the variables of a pattern",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := ndt.Parse(args[0])
			if err != nil {
				return err
			}
			m := typevar.NewMap()
			for _, arg := range args[1:] {
				name, tp, err := parseBinding(arg)
				if err != nil {
					return err
				}
				m.Bind(name, tp)
			}
			res, err := typevar.Substitute(pattern, m, strict)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail if a variable of the pattern is not bound")
	return cmd
}

func newShapeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shape PATTERN SIZE...",
		Short: "Replace the dimensions of a pattern with concrete sizes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := ndt.Parse(args[0])
			if err != nil {
				return err
			}
			shape := make([]int, len(args)-1)
			for i, arg := range args[1:] {
				if shape[i], err = strconv.Atoi(arg); err != nil {
					return errors.Wrapf(err, "invalid size %q", arg)
				}
			}
			res, err := typevar.SubstituteShape(pattern, shape)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

// parseTerm parses an index term written as an integer or as a
// start:stop:step slice. With a negative step, start is the upper bound.
func parseTerm(s string) (ndt.Index, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return ndt.Index{}, errors.Errorf("invalid index %q: want INDEX or START:STOP[:STEP]", s)
	}
	ints := make([]*int, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return ndt.Index{}, errors.Wrapf(err, "invalid index %q", s)
		}
		ints[i] = &v
	}
	if len(parts) == 1 {
		if ints[0] == nil {
			return ndt.Index{}, errors.Errorf("empty index")
		}
		return ndt.I(*ints[0]), nil
	}
	x := ndt.R()
	step := 1
	if len(ints) == 3 && ints[2] != nil {
		step = *ints[2]
		x = x.By(step)
	}
	start, stop := ints[0], ints[1]
	if step > 0 {
		if start != nil {
			x = x.Ge(*start)
		}
		if stop != nil {
			x = x.Lt(*stop)
		}
		return x, nil
	}
	if start != nil {
		x = x.Le(*start)
	}
	if stop != nil {
		x = x.Gt(*stop)
	}
	return x, nil
}

func newIndexCmd(a *app) *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "index VALUES [TERM]...",
		Short: "Build an array from a list of values and index it",
		Long: `index builds an array from values written as a YAML flow sequence, for example
"[[1, 2], [3]]", and applies one index term per dimension. A term is an integer
or a START:STOP[:STEP] slice.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var vals any
			if err := yaml.Unmarshal([]byte(args[0]), &vals); err != nil {
				return errors.Wrapf(err, "cannot decode values %q", args[0])
			}
			arr, err := nd.FromValues(vals)
			if err != nil {
				return err
			}
			defer arr.Release()
			if typeName != "" {
				tp, err := ndt.Parse(typeName)
				if err != nil {
					return err
				}
				typed, err := nd.Empty(tp)
				if err != nil {
					return err
				}
				defer typed.Release()
				if err := typed.AssignWith(a.ectx, arr); err != nil {
					return err
				}
				arr = typed
			}
			terms := make([]ndt.Index, len(args)-1)
			for i, arg := range args[1:] {
				if terms[i], err = parseTerm(arg); err != nil {
					return err
				}
			}
			view, err := arr.Index(terms...)
			if err != nil {
				return err
			}
			defer view.Release()
			fmt.Fprintln(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "type of the array, inferred from the values if empty")
	return cmd
}
