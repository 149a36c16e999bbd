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

package typevar

import (
	"fmt"

	"github.com/gx-org/dynd/ndt"
)

// UnboundError is returned by Substitute when a variable has no binding and
// the substitution has to be complete.
type UnboundError struct {
	Name    string
	Pattern ndt.Type
}

func (e *UnboundError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("anonymous ellipsis in %s cannot be substituted", e.Pattern)
	}
	return fmt.Sprintf("type variable %s in %s is not bound", e.Name, e.Pattern)
}

// MismatchError is returned by MatchSignature when an argument does not
// match its parameter.
type MismatchError struct {
	Index int
	Param ndt.Type
	Arg   ndt.Type
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("argument %d of type %s does not match parameter %s", e.Index, e.Arg, e.Param)
}
