// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	require.False(t, Shape{}.Ok())

	shape := Make(4, 3, 2)
	require.True(t, shape.Ok())
	require.Equal(t, 3, shape.Rank())
	require.Equal(t, 4*3*2, shape.Size())
	require.Equal(t, 8*4*3*2, int(shape.Memory()))
	require.Equal(t, "[4 3 2]", shape.String())
	require.True(t, shape.Equal(Make(4, 3, 2)))
	require.False(t, shape.Equal(Make(4, 3)))

	clone := shape.Clone()
	clone.Dimensions[0] = 7
	require.Equal(t, 4, shape.Dim(0))

	for _, dims := range [][]int{{2, 0}, {2, -1}, {0}} {
		require.Falsef(t, Shape{Dimensions: dims}.Ok(), "dims=%v", dims)
	}
}

func TestMakeInvalid(t *testing.T) {
	for _, dims := range [][]int{nil, {0}, {3, -1}, {2, 0, 2}} {
		_, err := MakeE(dims...)
		require.Error(t, err, "dims=%v", dims)
		assert.True(t, IsShapeError(err), "dims=%v", dims)

		err = exceptions.TryCatch[error](func() { _ = Make(dims...) })
		require.Error(t, err)
		var shapeErr *ShapeError
		require.ErrorAs(t, err, &shapeErr)
	}
}

func TestDim(t *testing.T) {
	shape := Make(4, 3, 2)
	require.Equal(t, 4, shape.Dim(0))
	require.Equal(t, 2, shape.Dim(2))
	require.Equal(t, 4, shape.Dim(-3))
	require.Equal(t, 2, shape.Dim(-1))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })
}

func TestAsserts(t *testing.T) {
	shape := Matrix(3, 2)
	require.NotPanics(t, func() { AssertRank(shape, 2) })
	require.NotPanics(t, func() { AssertDims(shape, -1, 2) })
	err := exceptions.TryCatch[error](func() { AssertDims(shape, 3, 3) })
	require.True(t, IsShapeError(err))
	err = exceptions.TryCatch[error](func() { AssertRank(shape, 1) })
	require.True(t, IsShapeError(err))
}
