// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizers

import (
	"testing"

	"github.com/gomlx/graphsage/pkg/core/autodiff"
	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStochasticGradientDescent(t *testing.T) {
	w := autodiff.NewWeights(tensors.FromValue([][]float64{{1, 2}, {3, 4}}))
	opt := StochasticGradientDescent(0.5)
	require.NoError(t, opt.Apply([]*autodiff.Weights{w}, []*tensors.Tensor{tensors.FromValue([][]float64{{2, 0}, {-2, 1}})}))
	assert.Equal(t, [][]float64{{0, 2}, {4, 3.5}}, w.Value().Value())

	// Mismatches.
	require.Error(t, opt.Apply([]*autodiff.Weights{w}, nil))
	require.Error(t, opt.Apply([]*autodiff.Weights{w}, []*tensors.Tensor{nil}))
	require.Error(t, opt.Apply([]*autodiff.Weights{w}, []*tensors.Tensor{tensors.Constant(1, 1, 2)}))
}

func TestAdam(t *testing.T) {
	w := autodiff.NewWeights(tensors.FromValue([][]float64{{1, -1}}))
	opt := Adam().LearningRate(0.1).Done()
	grad := tensors.FromValue([][]float64{{3, -0.001}})
	require.NoError(t, opt.Apply([]*autodiff.Weights{w}, []*tensors.Tensor{grad}))
	// On the first step the debiased update is sign(gradient) * learningRate (up to epsilon).
	assert.InDeltaSlice(t, []float64{0.9, -0.9}, w.Value().Flat(), 1e-3)

	opt.Clear()
	require.NoError(t, opt.Apply([]*autodiff.Weights{w}, []*tensors.Tensor{grad}))
	assert.InDeltaSlice(t, []float64{0.8, -0.8}, w.Value().Flat(), 1e-3)
}

// minimize (w-3)^2 for each optimizer.
func TestOptimizersConverge(t *testing.T) {
	for name := range KnownOptimizers {
		t.Run(name, func(t *testing.T) {
			opt, err := ByName(name, 0.1)
			require.NoError(t, err)
			w := autodiff.NewWeights(tensors.Constant(0, 1, 1))
			for range 500 {
				grad := tensors.Constant(2*(w.Value().At(0, 0)-3), 1, 1)
				require.NoError(t, opt.Apply([]*autodiff.Weights{w}, []*tensors.Tensor{grad}))
			}
			assert.InDelta(t, 3.0, w.Value().At(0, 0), 0.1)
		})
	}
	_, err := ByName("rmsprop", 0.1)
	require.Error(t, err)
}
