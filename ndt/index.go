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

package ndt

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Index is an index term applied to one dimension: an integer, which removes
// the dimension, or a range, which keeps it.
//
// Ranges are built from R by chaining bounds and a step:
//
//	R().Ge(1).Lt(3)        // 1 <= i < 3
//	R().By(-1)             // every element, reversed
//	R().Le(3).By(-1).Ge(0) // 3 >= i >= 0, going down
//
// Negative bounds count from the end of the dimension.
type Index struct {
	isRange      bool
	i            int
	lo, hi       int
	hasLo, hasHi bool
	loIncl       bool
	hiIncl       bool
	step         int
}

// I returns an integer index.
func I(i int) Index {
	return Index{i: i}
}

// R returns a range covering a whole dimension.
func R() Index {
	return Index{isRange: true, step: 1}
}

// IsRange returns true for range indices.
func (x Index) IsRange() bool {
	return x.isRange
}

// Int returns the value of an integer index.
func (x Index) Int() int {
	return x.i
}

// IsFull returns true for a range without bounds and with a unit step.
func (x Index) IsFull() bool {
	return x.isRange && !x.hasLo && !x.hasHi && x.step == 1
}

// Ge sets an inclusive lower bound.
func (x Index) Ge(lo int) Index {
	x.isRange, x.lo, x.hasLo, x.loIncl = true, lo, true, true
	return x
}

// Gt sets an exclusive lower bound.
func (x Index) Gt(lo int) Index {
	x.isRange, x.lo, x.hasLo, x.loIncl = true, lo, true, false
	return x
}

// Lt sets an exclusive upper bound.
func (x Index) Lt(hi int) Index {
	x.isRange, x.hi, x.hasHi, x.hiIncl = true, hi, true, false
	return x
}

// Le sets an inclusive upper bound.
func (x Index) Le(hi int) Index {
	x.isRange, x.hi, x.hasHi, x.hiIncl = true, hi, true, true
	return x
}

// By sets the step of the range. A negative step walks down from the upper
// bound to the lower bound.
func (x Index) By(step int) Index {
	x.isRange, x.step = true, step
	return x
}

func (x Index) String() string {
	if !x.isRange {
		return fmt.Sprint(x.i)
	}
	b := strings.Builder{}
	if x.hasLo {
		op := "<"
		if x.loIncl {
			op = "<="
		}
		fmt.Fprintf(&b, "%d %s ", x.lo, op)
	}
	b.WriteString("i")
	if x.step != 1 {
		fmt.Fprintf(&b, "/%d", x.step)
	}
	if x.hasHi {
		op := "<"
		if x.hiIncl {
			op = "<="
		}
		fmt.Fprintf(&b, " %s %d", op, x.hi)
	}
	return b.String()
}

// ResolveInt returns the position of an integer index in a dimension of size n.
func (x Index) ResolveInt(n, axis int) (int, error) {
	i := x.i
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, errors.WithStack(&IndexOutOfBoundsError{Index: x.i, Axis: axis, DimSize: n})
	}
	return i, nil
}

// Resolve returns the position of the first element, the step between
// elements and the number of elements selected by a range in a dimension of
// size n.
func (x Index) Resolve(n, axis int) (start, step, count int, err error) {
	if !x.isRange {
		start, err = x.ResolveInt(n, axis)
		return start, 0, 1, err
	}
	if x.step == 0 {
		return 0, 0, 0, invalidArgument("range %s has a zero step", x)
	}
	lo, hi := x.lo, x.hi
	if x.hasLo && lo < 0 {
		lo += n
	}
	if x.hasHi && hi < 0 {
		hi += n
	}
	outOfBounds := func() error {
		return errors.WithStack(&RangeOutOfBoundsError{Range: x, Axis: axis, DimSize: n})
	}
	if x.step > 0 {
		start, stop := 0, n
		if x.hasLo {
			start = lo
			if !x.loIncl {
				start++
			}
		}
		if x.hasHi {
			stop = hi
			if x.hiIncl {
				stop++
			}
		}
		if start < 0 || start > n || stop < 0 || stop > n {
			return 0, 0, 0, outOfBounds()
		}
		if stop <= start {
			return start, x.step, 0, nil
		}
		return start, x.step, (stop - start + x.step - 1) / x.step, nil
	}
	// Negative steps start from the upper bound and stop after the lower bound.
	start, stop := n-1, -1
	if x.hasHi {
		start = hi
		if !x.hiIncl {
			start--
		}
	}
	if x.hasLo {
		stop = lo
		if x.loIncl {
			stop--
		}
	}
	if start < -1 || start >= n || stop < -1 || stop >= n {
		return 0, 0, 0, outOfBounds()
	}
	if start <= stop {
		return start, x.step, 0, nil
	}
	return start, x.step, (start - stop - x.step - 1) / -x.step, nil
}
