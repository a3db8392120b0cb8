// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autodiff_test

import (
	"math"
	"testing"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/graphsage/pkg/core/autodiff"
	"github.com/gomlx/graphsage/pkg/core/autodiff/autodifftest"
	"github.com/gomlx/graphsage/pkg/core/shapes"
	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/stretchr/testify/require"
)

// requireShapeError checks that building the graph with buildFn fails with a *shapes.ShapeError.
func requireShapeError(t *testing.T, buildFn func() Variable) {
	t.Helper()
	_, err := Build(buildFn)
	require.Error(t, err)
	require.Truef(t, shapes.IsShapeError(err), "expected ShapeError, got %+v", err)
}

func forwardBackward(t *testing.T, root Variable) *Context {
	t.Helper()
	ctx := NewContext()
	_, err := ctx.Forward(root)
	require.NoError(t, err)
	require.NoError(t, ctx.Backward(root))
	return ctx
}

func TestMatrixMultiply(t *testing.T) {
	a := NewWeights(tensors.FromValue([][]float64{{1, 2}, {3, 4}}))
	b := NewWeights(tensors.FromValue([][]float64{{5, 6, 7}, {8, 9, 10}}))
	root := MatrixMultiply(a, b)
	require.Equal(t, []int{2, 3}, root.Shape().Dimensions)
	ctx := forwardBackward(t, root)
	require.Equal(t, [][]float64{{21, 24, 27}, {47, 54, 61}}, ctx.MustData(root).Value())
	require.Equal(t, [][]float64{{18, 27}, {18, 27}}, ctx.Gradient(a).Value())
	require.Equal(t, [][]float64{{4, 4, 4}, {6, 6, 6}}, ctx.Gradient(b).Value())

	rng := autodifftest.NewRand(1)
	x := NewWeights(autodifftest.RandomTensor(rng, 4, 3))
	y := NewWeights(autodifftest.RandomTensor(rng, 3, 5))
	autodifftest.CheckGradients(t, rng, MatrixMultiply(x, y), x, y)
}

func TestMatrixMultiplyShapeError(t *testing.T) {
	a := NewConstant(tensors.Constant(1, 2, 3))
	b := NewConstant(tensors.Constant(1, 2, 3))
	// Fails at construction, before any evaluation is attempted.
	var root Variable
	err := exceptions.TryCatch[error](func() { root = MatrixMultiply(a, b) })
	require.True(t, shapes.IsShapeError(err))
	require.Nil(t, root)

	requireShapeError(t, func() Variable { return MatrixMultiply(NewConstant(tensors.Constant(1, 6)), b) })
}

func TestBroadcastSum(t *testing.T) {
	a := NewWeights(tensors.FromValue([][]float64{{1, 2}, {3, 4}, {5, 6}}))
	bias := NewWeights(tensors.FromValue([][]float64{{10, 20}}))
	root := BroadcastSum(a, bias)
	ctx := forwardBackward(t, root)
	require.Equal(t, [][]float64{{11, 22}, {13, 24}, {15, 26}}, ctx.MustData(root).Value())
	require.Equal(t, [][]float64{{1, 1}, {1, 1}, {1, 1}}, ctx.Gradient(a).Value())
	require.Equal(t, [][]float64{{3, 3}}, ctx.Gradient(bias).Value())

	rng := autodifftest.NewRand(2)
	x := NewWeights(autodifftest.RandomTensor(rng, 5, 3))
	b := NewWeights(autodifftest.RandomTensor(rng, 1, 3))
	autodifftest.CheckGradients(t, rng, BroadcastSum(x, b), x, b)

	requireShapeError(t, func() Variable { return BroadcastSum(x, NewConstant(tensors.Constant(1, 1, 2))) })
	requireShapeError(t, func() Variable { return BroadcastSum(x, NewConstant(tensors.Constant(1, 2, 3))) })
	requireShapeError(t, func() Variable { return BroadcastSum(x, NewConstant(tensors.Constant(1, 3))) })
}

func TestSlice(t *testing.T) {
	a := NewWeights(tensors.FromValue([][]float64{{1, 2}, {3, 4}, {5, 6}}))
	root := Slice(a, []int{2, 0, 2})
	require.Equal(t, []int{3, 2}, root.Shape().Dimensions)
	ctx := NewContext()
	require.Equal(t, [][]float64{{5, 6}, {1, 2}, {5, 6}}, ctx.MustForward(root).Value())
	ctx.MustBackwardWith(root, tensors.FromValue([][]float64{{1, 2}, {3, 4}, {5, 6}}))
	// Row 2 was gathered twice: it receives the sum of both rows of the upstream gradient.
	require.Equal(t, [][]float64{{3, 4}, {0, 0}, {6, 8}}, ctx.Gradient(a).Value())

	rng := autodifftest.NewRand(3)
	x := NewWeights(autodifftest.RandomTensor(rng, 4, 3))
	autodifftest.CheckGradients(t, rng, Slice(x, []int{3, 1, 1, 0, 3}), x)

	requireShapeError(t, func() Variable { return Slice(x, nil) })
	requireShapeError(t, func() Variable { return Slice(x, []int{0, 4}) })
	requireShapeError(t, func() Variable { return Slice(x, []int{-1}) })
}

func TestSliceCopiesIndices(t *testing.T) {
	a := NewConstant(tensors.FromValue([][]float64{{1}, {2}}))
	indices := []int{0, 1}
	root := Slice(a, indices)
	indices[0] = 1
	require.Equal(t, []float64{1, 2}, NewContext().MustForward(root).Flat())
}

func TestTensorAdd(t *testing.T) {
	a := NewWeights(tensors.FromValue([][]float64{{1, 2}}))
	b := NewWeights(tensors.FromValue([][]float64{{10, 20}}))
	c := NewWeights(tensors.FromValue([][]float64{{100, 200}}))
	root := TensorAdd(a, b, c)
	ctx := NewContext()
	require.Equal(t, [][]float64{{111, 222}}, ctx.MustForward(root).Value())
	ctx.MustBackwardWith(root, tensors.FromValue([][]float64{{3, -1}}))
	for _, w := range []*Weights{a, b, c} {
		require.Equal(t, [][]float64{{3, -1}}, ctx.Gradient(w).Value())
	}

	rng := autodifftest.NewRand(4)
	x := NewWeights(autodifftest.RandomTensor(rng, 2, 3))
	y := NewWeights(autodifftest.RandomTensor(rng, 2, 3))
	autodifftest.CheckGradients(t, rng, TensorAdd(x, y), x, y)

	requireShapeError(t, func() Variable { return TensorAdd() })
	requireShapeError(t, func() Variable { return TensorAdd(x, a) })
}

func TestElementwiseMax(t *testing.T) {
	a := NewWeights(tensors.FromValue([][]float64{{1, 2}, {3, 4}, {5, 6}}))
	root := ElementwiseMax(a, [][]int{{1, 2}, {}, {0}})
	require.Equal(t, []int{3, 2}, root.Shape().Dimensions)
	ctx := NewContext()
	require.Equal(t, [][]float64{{5, 6}, {0, 0}, {1, 2}}, ctx.MustForward(root).Value())
	ctx.MustBackwardWith(root, tensors.FromValue([][]float64{{1, 2}, {3, 4}, {5, 6}}))
	// Row #1 has no neighbors: its upstream gradient ({3, 4}) goes nowhere.
	require.Equal(t, [][]float64{{5, 6}, {0, 0}, {1, 2}}, ctx.Gradient(a).Value())

	rng := autodifftest.NewRand(5)
	x := NewWeights(autodifftest.RandomTensor(rng, 5, 3))
	autodifftest.CheckGradients(t, rng, ElementwiseMax(x, [][]int{{0, 1, 2}, {4}, {}, {3, 1}, {2, 4, 0, 1}, {1}}), x)

	requireShapeError(t, func() Variable { return ElementwiseMax(x, nil) })
	requireShapeError(t, func() Variable { return ElementwiseMax(x, [][]int{{0}, {5}}) })
	requireShapeError(t, func() Variable { return ElementwiseMax(NewConstant(tensors.Constant(1, 3)), [][]int{{0}}) })
}

func TestElementwiseMaxOutputRowsCanExceedInputRows(t *testing.T) {
	a := NewConstant(tensors.FromValue([][]float64{{1}, {2}}))
	root := ElementwiseMax(a, [][]int{{0}, {1}, {0, 1}, {}})
	require.Equal(t, []float64{1, 2, 2, 0}, NewContext().MustForward(root).Flat())
}

func TestElementwiseMaxTies(t *testing.T) {
	a := NewWeights(tensors.FromValue([][]float64{{7, 1}, {7, 3}, {2, 3}}))
	root := ElementwiseMax(a, [][]int{{0, 1, 2}})
	ctx := NewContext()
	require.Equal(t, [][]float64{{7, 3}}, ctx.MustForward(root).Value())
	ctx.MustBackwardWith(root, tensors.FromValue([][]float64{{10, 20}}))
	// Both tied maximizers receive the full upstream gradient, it is not split.
	require.Equal(t, [][]float64{{10, 0}, {10, 20}, {0, 20}}, ctx.Gradient(a).Value())
}

func TestElementwiseMaxVeryNegative(t *testing.T) {
	a := NewConstant(tensors.FromValue([][]float64{{-1e300, -math.MaxFloat64}, {-2e300, -1}}))
	root := ElementwiseMax(a, [][]int{{0, 1}, {0}})
	require.Equal(t, [][]float64{{-1e300, -1}, {-1e300, -math.MaxFloat64}}, NewContext().MustForward(root).Value())
}
