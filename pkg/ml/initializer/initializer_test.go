// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package initializer

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/graphsage/pkg/core/shapes"
	"github.com/stretchr/testify/require"
)

func TestGlorotUniform(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	w := NewWeights(GlorotUniform(rng), 10, 20)
	require.Equal(t, []int{10, 20}, w.Shape().Dimensions)
	limit := math.Sqrt(6.0 / 30.0)
	var nonZero int
	for _, v := range w.Value().Flat() {
		require.LessOrEqual(t, math.Abs(v), limit)
		if v != 0 {
			nonZero++
		}
	}
	require.Greater(t, nonZero, 150)
}

func TestConstants(t *testing.T) {
	require.Equal(t, []float64{0, 0, 0}, Zero(shapes.Make(3)).Flat())
	require.Equal(t, []float64{1, 1}, One(shapes.Make(1, 2)).Flat())
	require.Equal(t, [][]float64{{1, 0, 0}, {0, 1, 0}}, Identity(shapes.Matrix(2, 3)).Value())
	require.Panics(t, func() { _ = Identity(shapes.Make(3)) })
}
