// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package initializer provides functions that create the initial values of trainable weights.
package initializer

import (
	"math"
	"math/rand/v2"

	"github.com/gomlx/graphsage/pkg/core/autodiff"
	"github.com/gomlx/graphsage/pkg/core/shapes"
	"github.com/gomlx/graphsage/pkg/core/tensors"
)

// Initializer creates a tensor with the initial values for the given shape.
type Initializer func(shape shapes.Shape) *tensors.Tensor

var (
	// Zero initializes variables with zero.
	Zero Initializer = func(shape shapes.Shape) *tensors.Tensor {
		return tensors.Zeros(shape)
	}

	// One initializes variables with one.
	One Initializer = func(shape shapes.Shape) *tensors.Tensor {
		return tensors.Constant(1, shape.Dimensions...)
	}
)

// Uniform returns an initializer that generates random uniform values from [min, max).
func Uniform(rng *rand.Rand, minValue, maxValue float64) Initializer {
	return func(shape shapes.Shape) *tensors.Tensor {
		t := tensors.Zeros(shape)
		flat := t.Flat()
		for ii := range flat {
			flat[ii] = minValue + rng.Float64()*(maxValue-minValue)
		}
		return t
	}
}

// GlorotUniform returns a Glorot uniform initializer, also called Xavier uniform initializer.
//
// It draws samples from a uniform distribution within `[-limit, limit]`, where
// `limit = sqrt(6 / (fan_in + fan_out))`. It assumes the shape is `[fan_in, fan_out]` for matrices,
// and uses `fan_in = fan_out = size` for other ranks.
func GlorotUniform(rng *rand.Rand) Initializer {
	return func(shape shapes.Shape) *tensors.Tensor {
		fanIn, fanOut := shape.Size(), shape.Size()
		if shape.Rank() == 2 {
			fanIn, fanOut = shape.Dim(0), shape.Dim(1)
		}
		limit := math.Sqrt(6 / float64(fanIn+fanOut))
		return Uniform(rng, -limit, limit)(shape)
	}
}

// Identity initializes square matrices to the identity, and the extra diagonal elements of
// non-square matrices to zero. It is mostly useful for tests.
var Identity Initializer = func(shape shapes.Shape) *tensors.Tensor {
	shapes.AssertRank(shape, 2)
	t := tensors.Zeros(shape)
	for ii := range min(shape.Dim(0), shape.Dim(1)) {
		t.Set(1, ii, ii)
	}
	return t
}

// NewWeights creates trainable Weights with the given dimensions, initialized with init.
func NewWeights(init Initializer, dimensions ...int) *autodiff.Weights {
	return autodiff.NewWeights(init(shapes.Make(dimensions...)))
}
