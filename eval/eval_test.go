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

package eval_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
)

func TestParseConfig(t *testing.T) {
	cfg, err := eval.Parse(`
errmode = "overflow"
request = "single"
log_level = "debug"
`)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var logs bytes.Buffer
	ctx, err := cfg.Context(&logs)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if ctx.ErrMode != eval.ErrorOverflow {
		t.Errorf("got error mode %v but want %v", ctx.ErrMode, eval.ErrorOverflow)
	}
	if ctx.Request != ckernel.SingleHost {
		t.Errorf("got request %v but want %v", ctx.Request, ckernel.SingleHost)
	}
	ctx.Log().Debug("dispatch", "path", "identical")
	if !strings.Contains(logs.String(), "path=identical") {
		t.Errorf("debug message not logged: %q", logs.String())
	}
}

func TestDefault(t *testing.T) {
	ctx := eval.Default()
	if ctx.ErrMode != eval.ErrorFractional || ctx.Request != ckernel.StridedHost {
		t.Errorf("unexpected default context %+v", ctx)
	}
	if got := ctx.WithErrMode(eval.ErrorNone).ErrMode; got != eval.ErrorNone {
		t.Errorf("got error mode %v but want none", got)
	}
	if ctx.ErrMode != eval.ErrorFractional {
		t.Errorf("WithErrMode modified its receiver")
	}
}

func TestConfigErrors(t *testing.T) {
	for _, src := range []string{
		`errmode = "sometimes"`,
		`request = "device"`,
		`log_level = "loud"`,
		`unknown = 1`,
		`errmode = `,
	} {
		cfg, err := eval.Parse(src)
		if err == nil {
			_, err = cfg.Context(&bytes.Buffer{})
		}
		if err == nil {
			t.Errorf("configuration %q: expected an error", src)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.toml")
	if err := os.WriteFile(path, []byte(`errmode = "none"`), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, err := eval.Load(path)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if ctx.ErrMode != eval.ErrorNone {
		t.Errorf("got error mode %v but want none", ctx.ErrMode)
	}
	if _, err := eval.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("loading a missing file did not fail")
	}
}
