// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"fmt"
	"strings"
)

// TensorStringDefaultPrecision used by Tensor.String.
const TensorStringDefaultPrecision = 4

// MaxStringElements is the maximum number of elements printed by Summary, the rest is elided.
var MaxStringElements = 100

// String converts to string, if not too large. It uses t.Summary(precision=4).
func (t *Tensor) String() string {
	return t.Summary(TensorStringDefaultPrecision)
}

// Summary returns a multi-line representation of the tensor, with values printed with the
// given precision. Tensors with more than MaxStringElements have their values elided.
func (t *Tensor) Summary(precision int) string {
	var buf strings.Builder
	w := func(format string, args ...any) { _, _ = fmt.Fprintf(&buf, format, args...) }
	w("%s", t.shape)
	if t.Size() > MaxStringElements {
		w("{...}")
		return buf.String()
	}
	dims := t.shape.Dimensions
	var printElements func(axis, offset, indent int)
	printElements = func(axis, offset, indent int) {
		if axis == len(dims)-1 {
			w("{")
			for ii := range dims[axis] {
				if ii > 0 {
					w(", ")
				}
				w("%.*g", precision, t.flat[offset+ii])
			}
			w("}")
			return
		}
		stride := 1
		for _, d := range dims[axis+1:] {
			stride *= d
		}
		w("{")
		for ii := range dims[axis] {
			if ii > 0 {
				w(",\n%s", strings.Repeat(" ", indent+1))
			}
			printElements(axis+1, offset+ii*stride, indent+1)
		}
		w("}")
	}
	printElements(0, 0, len(t.shape.String()))
	return buf.String()
}
