// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the dimensions of a Tensor or of the value produced by a Variable in
// a computation graph, and ShapeError, the failure raised when dimensions are incompatible.
//
// All tensors in graphsage hold float64 values, so a Shape is only its list of dimensions.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a Tensor.
//   - Axis: is the index of a dimension on a multidimensional Tensor.
//   - Dimension: the size of a multi-dimensions Tensor in one of its axes.
//
// Example: the matrix `[][]float64{{0, 1, 2}, {3, 4, 5}}` has shape `[2 3]`: rank 2, axis 0 has
// dimension 2 and axis 1 has dimension 3. This shape could be created with `shapes.Make(2, 3)`.
package shapes

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

// ElementSize is the number of bytes used by each element of a tensor.
const ElementSize = 8

// Shape represents the shape of either a Tensor or the expected shape
// of the value from a Variable.
//
// Use Make to create a new shape. A "zero" Shape{} is invalid.
type Shape struct {
	Dimensions []int
}

// Make returns a Shape with the given dimensions.
//
// It panics with a *ShapeError if no dimension is given or if any dimension is <= 0.
func Make(dimensions ...int) Shape {
	s, err := MakeE(dimensions...)
	if err != nil {
		panic(err)
	}
	return s
}

// MakeE is like Make, but returns an error instead of panicking.
func MakeE(dimensions ...int) (Shape, error) {
	if len(dimensions) == 0 {
		return Shape{}, Errorf("shapes.Make(): a shape requires at least one axis")
	}
	for axis, dim := range dimensions {
		if dim <= 0 {
			return Shape{}, Errorf("shapes.Make(%v): axis #%d has dimension %d, it must be > 0", dimensions, axis, dim)
		}
	}
	return Shape{Dimensions: slices.Clone(dimensions)}, nil
}

// Matrix returns a rank-2 shape.
func Matrix(rows, cols int) Shape {
	return Make(rows, cols)
}

// Ok returns whether this is a valid Shape: at least one axis, and every dimension > 0.
func (s Shape) Ok() bool {
	if len(s.Dimensions) == 0 {
		return false
	}
	for _, dim := range s.Dimensions {
		if dim <= 0 {
			return false
		}
	}
	return true
}

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		panic(Errorf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s))
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements fmt.Stringer.
func (s Shape) String() string {
	if len(s.Dimensions) == 0 {
		return "[invalid]"
	}
	return fmt.Sprintf("%v", s.Dimensions)
}

// Size returns the number of elements needed for this shape: the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the number of bytes used to store a tensor of this shape.
func (s Shape) Memory() uintptr {
	return ElementSize * uintptr(s.Size())
}

// Equal compares the dimensions of two shapes.
func (s Shape) Equal(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{Dimensions: slices.Clone(s.Dimensions)}
}

// HasShape is implemented by Tensor and by the computation graph Variables.
type HasShape interface {
	Shape() Shape
}

// ShapeError is raised when a tensor is created with invalid dimensions, or when
// the shapes of the parents of an operation are incompatible with its shape rule.
type ShapeError struct {
	Msg string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return e.Msg
}

// Errorf creates a *ShapeError, with a stack trace attached.
func Errorf(format string, args ...any) error {
	return errors.WithStack(&ShapeError{Msg: fmt.Sprintf(format, args...)})
}

// Panicf panics with a *ShapeError (with stack trace).
func Panicf(format string, args ...any) {
	panic(Errorf(format, args...))
}

// IsShapeError returns whether err is or wraps a *ShapeError.
func IsShapeError(err error) bool {
	var shapeErr *ShapeError
	return errors.As(err, &shapeErr)
}

// AssertRank panics with a *ShapeError if the shape of x doesn't have the given rank.
func AssertRank(x HasShape, rank int) {
	if x.Shape().Rank() != rank {
		Panicf("expected rank %d, got shape %s", rank, x.Shape())
	}
}

// AssertDims panics with a *ShapeError if the dimensions of x don't match. A dimension of -1
// means that axis is not checked.
func AssertDims(x HasShape, dimensions ...int) {
	shape := x.Shape()
	if shape.Rank() != len(dimensions) {
		Panicf("expected dimensions %v, got shape %s", dimensions, shape)
	}
	for axis, dim := range dimensions {
		if dim >= 0 && shape.Dimensions[axis] != dim {
			Panicf("expected dimensions %v, got shape %s (axis #%d differs)", dimensions, shape, axis)
		}
	}
}
