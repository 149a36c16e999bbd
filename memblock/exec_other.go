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

//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package memblock

// Code is kept in a plain buffer: it can be written and inspected but not run.
func mapPages(size int) ([]byte, bool, error) {
	return alignedBytes(size), false, nil
}

func protectExec([]byte) error {
	return nil
}

func unmapPages([]byte) error {
	return nil
}
