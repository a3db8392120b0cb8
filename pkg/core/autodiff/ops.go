// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autodiff

import (
	"github.com/gomlx/graphsage/pkg/core/shapes"
	"github.com/gomlx/graphsage/pkg/core/tensors"
)

// matrixMultiply of A (m×k) by B (k×n).
type matrixMultiply struct {
	Base
}

// MatrixMultiply returns the matrix product of a (m×k) by b (k×n), with shape m×n.
//
// It panics with a *shapes.ShapeError if a or b are not matrices, or if their inner dimensions differ.
func MatrixMultiply(a, b Variable) Variable {
	shapes.AssertRank(a, 2)
	shapes.AssertRank(b, 2)
	if a.Shape().Dim(1) != b.Shape().Dim(0) {
		shapes.Panicf("MatrixMultiply: incompatible inner dimensions, a%s and b%s", a.Shape(), b.Shape())
	}
	return &matrixMultiply{
		Base: NewBase("MatrixMultiply", shapes.Matrix(a.Shape().Dim(0), b.Shape().Dim(1)), a, b),
	}
}

// Forward implements Variable.
func (op *matrixMultiply) Forward(ctx *Context) *tensors.Tensor {
	a, b := ctx.MustData(op.Parent(0)), ctx.MustData(op.Parent(1))
	m, k, n := a.Shape().Dim(0), a.Shape().Dim(1), b.Shape().Dim(1)
	output := tensors.Zeros(op.Shape())
	aFlat, bFlat, outFlat := a.Flat(), b.Flat(), output.Flat()
	for row := range m {
		outRow := outFlat[row*n : (row+1)*n]
		for inner := range k {
			aValue := aFlat[row*k+inner]
			bRow := bFlat[inner*n : (inner+1)*n]
			for col, bValue := range bRow {
				outRow[col] += aValue * bValue
			}
		}
	}
	return output
}

// GradientForParent implements Variable: dA = dOut·Bᵗ and dB = Aᵗ·dOut.
func (op *matrixMultiply) GradientForParent(ctx *Context, parentIdx int) *tensors.Tensor {
	a, b := ctx.MustData(op.Parent(0)), ctx.MustData(op.Parent(1))
	m, k, n := a.Shape().Dim(0), a.Shape().Dim(1), b.Shape().Dim(1)
	dOut := ctx.Gradient(op).Flat()
	aFlat, bFlat := a.Flat(), b.Flat()
	if parentIdx == 0 {
		dA := tensors.Zeros(a.Shape())
		dAFlat := dA.Flat()
		for row := range m {
			for inner := range k {
				var sum float64
				for col := range n {
					sum += dOut[row*n+col] * bFlat[inner*n+col]
				}
				dAFlat[row*k+inner] = sum
			}
		}
		return dA
	}
	dB := tensors.Zeros(b.Shape())
	dBFlat := dB.Flat()
	for row := range m {
		for inner := range k {
			aValue := aFlat[row*k+inner]
			for col := range n {
				dBFlat[inner*n+col] += aValue * dOut[row*n+col]
			}
		}
	}
	return dB
}

// broadcastSum adds a bias row to every row of a matrix.
type broadcastSum struct {
	Base
}

// BroadcastSum returns a (m×n) with the bias (1×n) added to every row.
//
// It panics with a *shapes.ShapeError if a is not a matrix or bias is not a 1×n matrix.
func BroadcastSum(a, bias Variable) Variable {
	shapes.AssertRank(a, 2)
	cols := a.Shape().Dim(1)
	if bias.Shape().Rank() != 2 || bias.Shape().Dim(0) != 1 || bias.Shape().Dim(1) != cols {
		shapes.Panicf("BroadcastSum: bias must have shape [1 %d] to be added to a%s, got bias%s", cols, a.Shape(), bias.Shape())
	}
	return &broadcastSum{
		Base: NewBase("BroadcastSum", a.Shape(), a, bias),
	}
}

// Forward implements Variable.
func (op *broadcastSum) Forward(ctx *Context) *tensors.Tensor {
	a, bias := ctx.MustData(op.Parent(0)), ctx.MustData(op.Parent(1))
	output := a.Clone()
	cols := op.Dim(1)
	outFlat, biasFlat := output.Flat(), bias.Flat()
	for ii := range outFlat {
		outFlat[ii] += biasFlat[ii%cols]
	}
	return output
}

// GradientForParent implements Variable: dA = dOut, and the bias gets the column-sums of dOut.
func (op *broadcastSum) GradientForParent(ctx *Context, parentIdx int) *tensors.Tensor {
	dOut := ctx.Gradient(op)
	if parentIdx == 0 {
		return dOut
	}
	cols := op.Dim(1)
	dBias := tensors.Zeros(op.Parent(1).Shape())
	dBiasFlat := dBias.Flat()
	for ii, v := range dOut.Flat() {
		dBiasFlat[ii%cols] += v
	}
	return dBias
}

// tensorAdd sums element-wise any number of tensors of the same shape.
type tensorAdd struct {
	Base
}

// TensorAdd returns the element-wise sum of all the given Variables, that must have the same shape.
// The same Variable can be given more than once.
//
// It panics with a *shapes.ShapeError if no Variable is given, or if their shapes differ.
func TensorAdd(summands ...Variable) Variable {
	if len(summands) == 0 {
		shapes.Panicf("TensorAdd: requires at least one input")
	}
	shape := summands[0].Shape()
	for ii, summand := range summands[1:] {
		if !summand.Shape().Equal(shape) {
			shapes.Panicf("TensorAdd: input #%d has shape %s, but input #0 has shape %s", ii+1, summand.Shape(), shape)
		}
	}
	return &tensorAdd{
		Base: NewBase("TensorAdd", shape, summands...),
	}
}

// Forward implements Variable.
func (op *tensorAdd) Forward(ctx *Context) *tensors.Tensor {
	output := tensors.Zeros(op.Shape())
	for _, parent := range op.Parents() {
		output.AddInPlace(ctx.MustData(parent))
	}
	return output
}

// GradientForParent implements Variable: every parent receives the upstream gradient unchanged.
func (op *tensorAdd) GradientForParent(ctx *Context, _ int) *tensors.Tensor {
	return ctx.Gradient(op)
}
