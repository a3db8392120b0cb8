// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package activations

import (
	"testing"

	"github.com/gomlx/graphsage/pkg/core/autodiff"
	"github.com/gomlx/graphsage/pkg/core/autodiff/autodifftest"
	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/stretchr/testify/require"
)

func forward(t *testing.T, activation Activation, values []float64) []float64 {
	x := autodiff.NewConstant(tensors.FromFlatDataAndDimensions(values, 1, len(values)))
	output, err := autodiff.NewContext().Forward(activation.Apply(x))
	require.NoError(t, err)
	return output.Flat()
}

func TestRelu(t *testing.T) {
	require.Equal(t, []float64{0, 0, 2, 0, 4, 0, 6}, forward(t, TypeRelu, []float64{0, -1, 2, -3, 4, -5, 6}))
}

func TestLeakyRelu(t *testing.T) {
	require.InDeltaSlice(t, []float64{0, -0.3, 2, -0.9}, forward(t, TypeLeakyRelu, []float64{0, -1, 2, -3}), 1e-12)
}

func TestSigmoidAndTanh(t *testing.T) {
	require.InDeltaSlice(t, []float64{0.5, 0.7310585786300049, 0.2689414213699951},
		forward(t, TypeSigmoid, []float64{0, 1, -1}), 1e-12)
	require.InDeltaSlice(t, []float64{0, 0.7615941559557649, -0.7615941559557649},
		forward(t, TypeTanh, []float64{0, 1, -1}), 1e-12)
}

func TestNone(t *testing.T) {
	x := autodiff.NewConstant(tensors.Constant(1, 2, 2))
	require.Equal(t, autodiff.Variable(x), TypeNone.Apply(x))
}

func TestGradients(t *testing.T) {
	rng := autodifftest.NewRand(11)
	for _, activation := range TypeValues() {
		t.Run(activation.String(), func(t *testing.T) {
			x := autodiff.NewWeights(autodifftest.RandomTensor(rng, 3, 4))
			autodifftest.CheckGradients(t, rng, activation.Apply(x), x)
		})
	}
}

func TestFromName(t *testing.T) {
	for _, activation := range TypeValues() {
		got, err := FromName(activation.String())
		require.NoError(t, err)
		require.Equal(t, activation, got)
	}
	got, err := FromName("")
	require.NoError(t, err)
	require.Equal(t, TypeNone, got)
	got, err = FromName("ReLU")
	require.NoError(t, err)
	require.Equal(t, TypeRelu, got)
	_, err = FromName("softplus")
	require.Error(t, err)
}
