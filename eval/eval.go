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

// Package eval defines the context in which kernels are built and evaluated.
package eval

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gx-org/dynd/ckernel"
	"github.com/pkg/errors"
)

// ErrorMode selects which checks assignment kernels perform.
type ErrorMode int

const (
	// ErrorNone performs no check: values are converted as Go converts them.
	ErrorNone ErrorMode = iota
	// ErrorOverflow rejects values outside of the destination range.
	ErrorOverflow
	// ErrorFractional also rejects dropping a fractional part.
	ErrorFractional
	// ErrorInexact also rejects any loss of precision.
	ErrorInexact
)

var errorModeNames = [...]string{
	ErrorNone:       "none",
	ErrorOverflow:   "overflow",
	ErrorFractional: "fractional",
	ErrorInexact:    "inexact",
}

func (m ErrorMode) String() string {
	if m < 0 || int(m) >= len(errorModeNames) {
		return fmt.Sprintf("ErrorMode(%d)", int(m))
	}
	return errorModeNames[m]
}

// ParseErrorMode returns the error mode given its name.
func ParseErrorMode(s string) (ErrorMode, error) {
	for i, name := range errorModeNames {
		if name == s {
			return ErrorMode(i), nil
		}
	}
	return 0, errors.Errorf("unknown error mode %q: want one of %s", s, strings.Join(errorModeNames[:], ", "))
}

// Context parameterizes kernel construction.
type Context struct {
	// ErrMode applies to assignments between different types.
	ErrMode ErrorMode
	// Request is the calling convention used by array operations.
	Request ckernel.Request
	// Logger receives the decisions of the dispatch engine at debug level.
	Logger *slog.Logger
}

// Default returns the default context: fractional checks, strided host
// kernels and no logging.
func Default() *Context {
	return &Context{
		ErrMode: ErrorFractional,
		Request: ckernel.StridedHost,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithErrMode returns a copy of the context using another error mode.
func (c *Context) WithErrMode(m ErrorMode) *Context {
	cp := *c
	cp.ErrMode = m
	return &cp
}

// Log returns the logger of the context, never nil.
func (c *Context) Log() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

// Config is the on-disk representation of a context.
type Config struct {
	ErrMode  string `toml:"errmode"`
	Request  string `toml:"request"`
	LogLevel string `toml:"log_level"`
}

// Context builds a context from the configuration. Log messages go to w.
func (cfg *Config) Context(w io.Writer) (*Context, error) {
	ctx := Default()
	var err error
	if cfg.ErrMode != "" {
		if ctx.ErrMode, err = ParseErrorMode(cfg.ErrMode); err != nil {
			return nil, err
		}
	}
	if cfg.Request != "" {
		if ctx.Request, err = ckernel.ParseRequest(cfg.Request); err != nil {
			return nil, err
		}
	}
	if cfg.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", cfg.LogLevel)
		}
		ctx.Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return ctx, nil
}

// Parse decodes a TOML configuration.
func Parse(data string) (*Config, error) {
	cfg := &Config{}
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode evaluation context")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown configuration keys: %v", undecoded)
	}
	return cfg, nil
}

// Load reads a TOML configuration file and returns the context it describes.
// Log messages go to stderr.
func Load(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read evaluation context")
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return cfg.Context(os.Stderr)
}
