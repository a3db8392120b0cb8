// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package optimizers implements the update rules that apply the gradients calculated by the
// autodiff.Context to the model weights.
package optimizers

import (
	"maps"
	"slices"

	"github.com/gomlx/graphsage/pkg/core/autodiff"
	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Interface implemented by optimizer implementations.
type Interface interface {
	// Apply updates the values of the weights in place, given their gradients: gradients[i] is the
	// gradient of the loss with respect to weights[i].
	//
	// It is not safe for concurrent use, and it must not be called while the weights are being
	// used in a forward pass.
	Apply(weights []*autodiff.Weights, gradients []*tensors.Tensor) error

	// Clear resets any state kept by the optimizer (e.g.: moments), as if no step had been taken.
	Clear()
}

// DefaultLearningRate used by optimizers if no learning rate is set.
const DefaultLearningRate = 0.001

var (
	// KnownOptimizers is a map of known optimizers by name to their constructors, given the learning rate.
	// A learning rate <= 0 means the default for the optimizer.
	KnownOptimizers = map[string]func(learningRate float64) Interface{
		"sgd": func(learningRate float64) Interface {
			return StochasticGradientDescent(learningRate)
		},
		"adam": func(learningRate float64) Interface {
			return Adam().LearningRate(learningRate).Done()
		},
		"adamax": func(learningRate float64) Interface {
			return Adam().Adamax().LearningRate(learningRate).Done()
		},
		"adamw": func(learningRate float64) Interface {
			return Adam().WeightDecay(0.004).LearningRate(learningRate).Done()
		},
	}
)

// ByName returns an optimizer given the name, or an error if one does not exist.
func ByName(optName string, learningRate float64) (Interface, error) {
	optBuilder, found := KnownOptimizers[optName]
	if !found {
		return nil, errors.Errorf("unknown optimizer %q, valid values are %q", optName, slices.Sorted(maps.Keys(KnownOptimizers)))
	}
	return optBuilder(learningRate), nil
}

// checkGradients validates that there is one gradient per weight, with matching shapes.
func checkGradients(weights []*autodiff.Weights, gradients []*tensors.Tensor) error {
	if len(weights) != len(gradients) {
		return errors.Errorf("optimizer got %d weights but %d gradients", len(weights), len(gradients))
	}
	for ii, w := range weights {
		if gradients[ii] == nil {
			return errors.Errorf("optimizer got a nil gradient for weights %s", w)
		}
		if !w.Shape().Equal(gradients[ii].Shape()) {
			return errors.Errorf("optimizer got gradient shaped %s for weights %s shaped %s",
				gradients[ii].Shape(), w, w.Shape())
		}
	}
	return nil
}

// sgd implements plain stochastic gradient descent.
type sgd struct {
	learningRate float64
}

// StochasticGradientDescent updates the weights with `w -= learningRate * gradient`.
// A learningRate <= 0 uses DefaultLearningRate.
func StochasticGradientDescent(learningRate float64) Interface {
	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}
	return &sgd{learningRate: learningRate}
}

// Apply implements Interface.
func (o *sgd) Apply(weights []*autodiff.Weights, gradients []*tensors.Tensor) error {
	if err := checkGradients(weights, gradients); err != nil {
		return err
	}
	for ii, w := range weights {
		values := w.Value().Flat()
		for jj, g := range gradients[ii].Flat() {
			values[jj] -= o.learningRate * g
		}
	}
	return nil
}

// Clear implements Interface. SGD keeps no state.
func (o *sgd) Clear() {}
