// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implement a `Tensor`, a dense float64 multidimensional array.
//
// Tensors are defined by their shape (the dimensions of each axis) and a flat buffer of values in
// row-major order. They are pure data: they know nothing about the computation graph that produced them.
//
// There are various ways to construct a Tensor:
//
//   - Zeros(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//
//   - Constant(value float64, dimensions ...int): creates a Tensor with the given dimensions, filled
//     with the scalar value given.
//
//   - FromFlatDataAndDimensions(data []float64, dimensions ...int): creates a Tensor with the given
//     dimensions and copies the flattened values from data. Example:
//
//     t := FromFlatDataAndDimensions([]float64{1, 2, 3, 4}, 2, 2) // Tensor with [[1,2], [3,4]]
//
//   - FromValue(value [][]float64): creates a matrix. All rows must have the same length.
//
// Tensors are value-like: once produced they should not be mutated, except for accumulation of
// gradients with AddInPlace and for updates of trainable weights by an optimizer.
package tensors

import (
	"encoding/gob"
	"math"
	"os"
	"slices"

	"github.com/gomlx/graphsage/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Tensor represents a multidimensional array of float64, stored as a flat (1D) slice in row-major order.
//
// Invariant: len(flat) == shape.Size().
type Tensor struct {
	shape shapes.Shape
	flat  []float64
}

// Zeros creates a tensor with the given shape, filled with zeros.
func Zeros(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		shapes.Panicf("tensors.Zeros(): invalid shape %s", shape)
	}
	return &Tensor{shape: shape.Clone(), flat: make([]float64, shape.Size())}
}

// Constant creates a tensor with the given dimensions, filled with value.
//
// It panics with a *shapes.ShapeError if dimensions are invalid (none given, or any <= 0).
func Constant(value float64, dimensions ...int) *Tensor {
	t := Zeros(shapes.Make(dimensions...))
	if value != 0 {
		for ii := range t.flat {
			t.flat[ii] = value
		}
	}
	return t
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened values given in `data`.
// The data is copied to the Tensor.
//
// It panics if the size of data is wrong for the shape.
func FromFlatDataAndDimensions(data []float64, dimensions ...int) *Tensor {
	shape := shapes.Make(dimensions...)
	if len(data) != shape.Size() {
		shapes.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	return &Tensor{shape: shape, flat: slices.Clone(data)}
}

// FromValue creates a matrix tensor from a regular [][]float64: all rows must have the same length.
func FromValue(value [][]float64) *Tensor {
	if len(value) == 0 || len(value[0]) == 0 {
		shapes.Panicf("tensors.FromValue(): empty matrix")
	}
	rows, cols := len(value), len(value[0])
	t := Zeros(shapes.Matrix(rows, cols))
	for row, rowValues := range value {
		if len(rowValues) != cols {
			shapes.Panicf("tensors.FromValue(): row #%d has %d elements, but row #0 has %d", row, len(rowValues), cols)
		}
		copy(t.flat[row*cols:], rowValues)
	}
	return t
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// Rank of the tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements of the tensor.
func (t *Tensor) Size() int { return len(t.flat) }

// Memory used by the flat buffer, in bytes.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Flat returns the underlying flat buffer, in row-major order.
// Changes to it are reflected in the tensor.
func (t *Tensor) Flat() []float64 { return t.flat }

// ZerosLike returns a new tensor with the same shape as t, filled with zeros.
func (t *Tensor) ZerosLike() *Tensor {
	return Zeros(t.shape)
}

// OnesLike returns a new tensor with the same shape as t, filled with ones.
func (t *Tensor) OnesLike() *Tensor {
	return Constant(1, t.shape.Dimensions...)
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{shape: t.shape.Clone(), flat: slices.Clone(t.flat)}
}

// Offset returns the position in the flat buffer of the element with the given multi-index.
// The number of indices must match the rank, and each index must be within its dimension.
func (t *Tensor) Offset(indices ...int) int {
	if len(indices) != t.shape.Rank() {
		shapes.Panicf("Tensor.Offset(%v): got %d indices for tensor of shape %s", indices, len(indices), t.shape)
	}
	offset := 0
	for axis, idx := range indices {
		dim := t.shape.Dimensions[axis]
		if idx < 0 || idx >= dim {
			shapes.Panicf("Tensor.Offset(%v): index %d out-of-bounds for axis #%d of shape %s", indices, idx, axis, t.shape)
		}
		offset = offset*dim + idx
	}
	return offset
}

// At returns the element at the given multi-index.
func (t *Tensor) At(indices ...int) float64 {
	return t.flat[t.Offset(indices...)]
}

// Set the element at the given multi-index.
func (t *Tensor) Set(value float64, indices ...int) {
	t.flat[t.Offset(indices...)] = value
}

// AddInPlace adds other to t, element-wise. Both must have the same shape.
// It is used to accumulate gradients.
func (t *Tensor) AddInPlace(other *Tensor) {
	if !t.shape.Equal(other.shape) {
		shapes.Panicf("Tensor.AddInPlace(): shapes differ, %s and %s", t.shape, other.shape)
	}
	for ii, v := range other.flat {
		t.flat[ii] += v
	}
}

// Value returns a copy of a rank-2 tensor as a [][]float64.
func (t *Tensor) Value() [][]float64 {
	shapes.AssertRank(t, 2)
	rows, cols := t.shape.Dimensions[0], t.shape.Dimensions[1]
	value := make([][]float64, rows)
	for row := range rows {
		value[row] = slices.Clone(t.flat[row*cols : (row+1)*cols])
	}
	return value
}

// Row returns a copy of the given row of a rank-2 tensor.
func (t *Tensor) Row(row int) []float64 {
	shapes.AssertRank(t, 2)
	cols := t.shape.Dimensions[1]
	start := t.Offset(row, 0)
	return slices.Clone(t.flat[start : start+cols])
}

// Equal checks whether t == otherTensor, bit by bit.
// If the shapes are different, it returns false.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	for ii, v := range t.flat {
		if math.Float64bits(v) != math.Float64bits(otherTensor.flat[ii]) {
			return false
		}
	}
	return true
}

// InDelta checks whether Abs(t - otherTensor) <= delta for every element.
// If the shapes are different, it returns false.
func (t *Tensor) InDelta(otherTensor *Tensor, delta float64) bool {
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	for ii, v := range t.flat {
		if math.Abs(v-otherTensor.flat[ii]) > delta {
			return false
		}
	}
	return true
}

// GobSerialize Tensor in binary format.
func (t *Tensor) GobSerialize(encoder *gob.Encoder) error {
	if err := encoder.Encode(t.shape.Dimensions); err != nil {
		return errors.Wrapf(err, "failed to serialize Tensor shape %s", t.shape)
	}
	if err := encoder.Encode(t.flat); err != nil {
		return errors.Wrapf(err, "failed to serialize Tensor data")
	}
	return nil
}

// GobDeserialize a Tensor from the decoder.
func GobDeserialize(decoder *gob.Decoder) (*Tensor, error) {
	var dimensions []int
	if err := decoder.Decode(&dimensions); err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize Tensor shape data")
	}
	shape, err := shapes.MakeE(dimensions...)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to deserialize Tensor")
	}
	t := &Tensor{shape: shape}
	if err := decoder.Decode(&t.flat); err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize Tensor data")
	}
	if len(t.flat) != shape.Size() {
		return nil, errors.Errorf("deserialized Tensor of shape %s has %d values", shape, len(t.flat))
	}
	return t, nil
}

// Save the tensor to the given file path.
func (t *Tensor) Save(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "creating %q to save tensor", filePath)
	}
	err = t.GobSerialize(gob.NewEncoder(f))
	if err != nil {
		_ = f.Close()
		return errors.WithMessagef(err, "saving Tensor to %q", filePath)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "close file %q, where tensor was saved", filePath)
	}
	return nil
}

// Load a tensor from the file path given.
func Load(filePath string) (*Tensor, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q to load Tensor", filePath)
	}
	defer func() { _ = f.Close() }()
	t, err := GobDeserialize(gob.NewDecoder(f))
	if err != nil {
		return nil, errors.WithMessagef(err, "loading Tensor from %q", filePath)
	}
	return t, nil
}
