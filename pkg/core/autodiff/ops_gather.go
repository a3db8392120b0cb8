// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autodiff

import (
	"math"
	"slices"

	"github.com/gomlx/graphsage/pkg/core/shapes"
	"github.com/gomlx/graphsage/pkg/core/tensors"
)

// slice gathers rows of a matrix.
type slice struct {
	Base
	rowIndices []int
}

// Slice returns the rows of a (m×n) given by rowIndices, with shape r×n, where r = len(rowIndices).
// Indices may repeat. The rowIndices are copied.
//
// It panics with a *shapes.ShapeError if a is not a matrix, if rowIndices is empty or any index
// is out of the range [0, m).
func Slice(a Variable, rowIndices []int) Variable {
	shapes.AssertRank(a, 2)
	numRows := a.Shape().Dim(0)
	if len(rowIndices) == 0 {
		shapes.Panicf("Slice: no row indices given to slice a%s", a.Shape())
	}
	for ii, idx := range rowIndices {
		if idx < 0 || idx >= numRows {
			shapes.Panicf("Slice: row index #%d is %d, out-of-range for a%s", ii, idx, a.Shape())
		}
	}
	return &slice{
		Base:       NewBase("Slice", shapes.Matrix(len(rowIndices), a.Shape().Dim(1)), a),
		rowIndices: slices.Clone(rowIndices),
	}
}

// Forward implements Variable.
func (op *slice) Forward(ctx *Context) *tensors.Tensor {
	aFlat := ctx.MustData(op.Parent(0)).Flat()
	cols := op.Dim(1)
	output := tensors.Zeros(op.Shape())
	outFlat := output.Flat()
	for row, srcRow := range op.rowIndices {
		copy(outFlat[row*cols:(row+1)*cols], aFlat[srcRow*cols:(srcRow+1)*cols])
	}
	return output
}

// GradientForParent implements Variable: the rows of the upstream gradient are scatter-added back to
// the rows they were gathered from.
func (op *slice) GradientForParent(ctx *Context, _ int) *tensors.Tensor {
	dOut := ctx.Gradient(op).Flat()
	cols := op.Dim(1)
	dA := tensors.Zeros(op.Parent(0).Shape())
	dAFlat := dA.Flat()
	for row, srcRow := range op.rowIndices {
		dst := dAFlat[srcRow*cols : (srcRow+1)*cols]
		for col, v := range dOut[row*cols : (row+1)*cols] {
			dst[col] += v
		}
	}
	return dA
}

// elementwiseMax reduces, for each output row, the rows of its neighbors with max.
type elementwiseMax struct {
	Base
	adjacency [][]int
}

// ElementwiseMax reduces the rows of a (n×d) over each row's neighborhood: output row r, column c,
// is the maximum of a[neighbor, c] for every neighbor in adjacency[r]. The output has shape
// len(adjacency)×d.
//
// A row with an empty neighbor list outputs zeros, and sends no gradient back -- "no information" is
// kept distinct from values that happen to be zero.
//
// In the backward pass, every neighbor whose value equals the maximum receives the full upstream gradient:
// ties are not split.
//
// It panics with a *shapes.ShapeError if a is not a matrix, if adjacency is empty or if any neighbor
// index is out of the range [0, n). The adjacency lists are copied.
func ElementwiseMax(a Variable, adjacency [][]int) Variable {
	shapes.AssertRank(a, 2)
	numRows := a.Shape().Dim(0)
	if len(adjacency) == 0 {
		shapes.Panicf("ElementwiseMax: empty adjacency list for a%s", a.Shape())
	}
	adjacencyCopy := make([][]int, len(adjacency))
	for row, neighbors := range adjacency {
		for _, neighbor := range neighbors {
			if neighbor < 0 || neighbor >= numRows {
				shapes.Panicf("ElementwiseMax: row #%d has neighbor %d, out-of-range for a%s", row, neighbor, a.Shape())
			}
		}
		adjacencyCopy[row] = slices.Clone(neighbors)
	}
	return &elementwiseMax{
		Base:      NewBase("ElementwiseMax", shapes.Matrix(len(adjacency), a.Shape().Dim(1)), a),
		adjacency: adjacencyCopy,
	}
}

// Forward implements Variable.
func (op *elementwiseMax) Forward(ctx *Context) *tensors.Tensor {
	aFlat := ctx.MustData(op.Parent(0)).Flat()
	cols := op.Dim(1)
	output := tensors.Zeros(op.Shape())
	outFlat := output.Flat()
	for row, neighbors := range op.adjacency {
		if len(neighbors) == 0 {
			// Output row is left as zeros.
			continue
		}
		outRow := outFlat[row*cols : (row+1)*cols]
		for col := range outRow {
			maxValue := math.Inf(-1)
			for _, neighbor := range neighbors {
				maxValue = max(maxValue, aFlat[neighbor*cols+col])
			}
			outRow[col] = maxValue
		}
	}
	return output
}

// GradientForParent implements Variable.
func (op *elementwiseMax) GradientForParent(ctx *Context, _ int) *tensors.Tensor {
	a := ctx.MustData(op.Parent(0))
	aFlat := a.Flat()
	outFlat := ctx.MustData(op).Flat()
	dOut := ctx.Gradient(op).Flat()
	cols := op.Dim(1)
	dA := a.ZerosLike()
	dAFlat := dA.Flat()
	for row, neighbors := range op.adjacency {
		for col := range cols {
			maxValue := outFlat[row*cols+col]
			for _, neighbor := range neighbors {
				if aFlat[neighbor*cols+col] == maxValue {
					dAFlat[neighbor*cols+col] += dOut[row*cols+col]
				}
			}
		}
	}
	return dA
}
