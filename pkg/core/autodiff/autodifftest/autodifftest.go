// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package autodifftest holds test utilities for computation graphs: random tensors and a
// finite-difference checker for the gradients calculated by the autodiff engine.
package autodifftest

import (
	"math/rand/v2"
	"testing"

	"github.com/gomlx/graphsage/pkg/core/autodiff"
	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/stretchr/testify/require"
)

// FiniteDifferenceEpsilon is the step used for central finite differences.
var FiniteDifferenceEpsilon = 1e-6

// Tolerance is the default absolute difference accepted between analytic and numeric gradients.
const Tolerance = 1e-4

// NewRand returns a deterministic random number generator for tests.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// RandomTensor returns a tensor with the given dimensions, with values uniformly sampled from [-1, 1).
func RandomTensor(rng *rand.Rand, dimensions ...int) *tensors.Tensor {
	t := tensors.Constant(0, dimensions...)
	flat := t.Flat()
	for ii := range flat {
		flat[ii] = 2*rng.Float64() - 1
	}
	return t
}

// Leaf is a leaf Variable with a mutable value, like autodiff.Weights or autodiff.Constant.
type Leaf interface {
	autodiff.Variable
	Value() *tensors.Tensor
}

// weightedSum returns sum(output * upstream), the scalar whose gradient is propagated when the
// backward pass is seeded with upstream.
func weightedSum(output, upstream *tensors.Tensor) float64 {
	var sum float64
	for ii, v := range output.Flat() {
		sum += v * upstream.Flat()[ii]
	}
	return sum
}

// NumericGradient estimates, with central finite differences, the gradient of sum(root * upstream)
// with respect to the value of leaf. The value of leaf is temporarily perturbed, and restored afterward.
func NumericGradient(t *testing.T, root autodiff.Variable, leaf Leaf, upstream *tensors.Tensor) *tensors.Tensor {
	eps := FiniteDifferenceEpsilon
	grad := leaf.Value().ZerosLike()
	flat := leaf.Value().Flat()
	for ii, original := range flat {
		// The output of a leaf root aliases its value, so it is reduced before the next perturbation.
		flat[ii] = original + eps
		plus, err := autodiff.NewContext().Forward(root)
		require.NoError(t, err)
		sumPlus := weightedSum(plus, upstream)
		flat[ii] = original - eps
		minus, err := autodiff.NewContext().Forward(root)
		require.NoError(t, err)
		sumMinus := weightedSum(minus, upstream)
		flat[ii] = original
		grad.Flat()[ii] = (sumPlus - sumMinus) / (2 * eps)
	}
	return grad
}

// CheckGradients compares the gradients calculated by a backward pass from root, seeded with upstream,
// with the numeric estimation from NumericGradient, for each of the leaves.
// The upstream gradient is a random tensor generated with rng.
func CheckGradients(t *testing.T, rng *rand.Rand, root autodiff.Variable, leaves ...Leaf) {
	upstream := RandomTensor(rng, root.Shape().Dimensions...)
	ctx := autodiff.NewContext()
	_, err := ctx.Forward(root)
	require.NoError(t, err)
	require.NoError(t, ctx.BackwardWith(root, upstream))
	for ii, leaf := range leaves {
		analytic := ctx.Gradient(leaf)
		numeric := NumericGradient(t, root, leaf, upstream)
		RequireInDelta(t, numeric, analytic, Tolerance, "gradient for leaf #%d (%s)", ii, leaf)
	}
}

// RequireInDelta fails the test if want and got differ in shape, or by more than delta in any element.
func RequireInDelta(t *testing.T, want, got *tensors.Tensor, delta float64, msgAndArgs ...any) {
	t.Helper()
	require.Equal(t, want.Shape().Dimensions, got.Shape().Dimensions, msgAndArgs...)
	require.InDeltaSlice(t, want.Flat(), got.Flat(), delta, msgAndArgs...)
}
