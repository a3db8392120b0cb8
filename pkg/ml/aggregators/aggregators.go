// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package aggregators implements neighborhood aggregation steps of GraphSAGE-like graph neural networks,
// built by composing the primitive operations of the autodiff package.
//
// An Aggregator computes one layer: given the representations of the nodes of the previous layer, the
// neighbors of each node being updated and the position of each node itself in the previous layer,
// it returns the Variable with the new representations. The trainable Weights it owns persist across
// passes, and are returned by Aggregator.Weights for an optimizer.
package aggregators

import (
	"github.com/gomlx/graphsage/pkg/core/autodiff"
	"github.com/gomlx/graphsage/pkg/core/shapes"
	"github.com/gomlx/graphsage/pkg/ml/activations"
	"github.com/gomlx/graphsage/pkg/ml/initializer"
)

// Aggregator computes one neighborhood aggregation step.
type Aggregator interface {
	// Aggregate returns the Variable with the new representation of each node being updated.
	//
	// previousLayer holds one row per node of the previous layer. adjacency[r] lists the rows of
	// previousLayer that are neighbors of output row r, and selfIndices[r] is the row of previousLayer
	// with the node of output row r itself. Both must have the same length, the number of output rows.
	Aggregate(previousLayer autodiff.Variable, adjacency [][]int, selfIndices []int) autodiff.Variable

	// Weights returns the trainable parameters owned by the aggregator, in a fixed order.
	Weights() []*autodiff.Weights
}

// MaxPooling aggregator: neighbors' representations are projected (pool weights and bias), passed
// through the activation and then max-pooled over each neighborhood. The result is projected by the
// neighbors weights and added to the projection of the node's own previous representation by the self weights,
// and the activation is applied again.
type MaxPooling struct {
	pool, self, neighbors, bias *autodiff.Weights
	activation                  activations.Activation
}

var _ Aggregator = (*MaxPooling)(nil)

// NewMaxPooling creates a MaxPooling aggregator with the given weights:
//
//   - pool: shape [inputDim, poolDim].
//   - self: shape [inputDim, outputDim].
//   - neighbors: shape [poolDim, outputDim].
//   - bias: shape [1, poolDim].
//
// It panics with a *shapes.ShapeError if the shapes are not consistent.
func NewMaxPooling(pool, self, neighbors, bias *autodiff.Weights, activation activations.Activation) *MaxPooling {
	shapes.AssertRank(pool, 2)
	inputDim, poolDim := pool.Shape().Dim(0), pool.Shape().Dim(1)
	shapes.AssertDims(bias, 1, poolDim)
	shapes.AssertDims(neighbors, poolDim, -1)
	outputDim := neighbors.Shape().Dim(1)
	shapes.AssertDims(self, inputDim, outputDim)
	if activation == nil {
		activation = activations.TypeNone
	}
	return &MaxPooling{
		pool:       pool,
		self:       self,
		neighbors:  neighbors,
		bias:       bias,
		activation: activation,
	}
}

// NewMaxPoolingWithInit creates a MaxPooling aggregator with weights initialized by init, and the bias
// initialized with zeros.
func NewMaxPoolingWithInit(init initializer.Initializer, activation activations.Activation, inputDim, poolDim, outputDim int) *MaxPooling {
	return NewMaxPooling(
		initializer.NewWeights(init, inputDim, poolDim),
		initializer.NewWeights(init, inputDim, outputDim),
		initializer.NewWeights(init, poolDim, outputDim),
		initializer.NewWeights(initializer.Zero, 1, poolDim),
		activation)
}

// InputDim is the dimension of the representations of the previous layer.
func (a *MaxPooling) InputDim() int { return a.pool.Shape().Dim(0) }

// OutputDim is the dimension of the representations produced by Aggregate.
func (a *MaxPooling) OutputDim() int { return a.self.Shape().Dim(1) }

// Aggregate implements Aggregator.
//
// It panics with a *shapes.ShapeError if previousLayer's dimension doesn't match the weights, or if
// adjacency and selfIndices have different lengths or indices out-of-range.
func (a *MaxPooling) Aggregate(previousLayer autodiff.Variable, adjacency [][]int, selfIndices []int) autodiff.Variable {
	if len(adjacency) != len(selfIndices) {
		shapes.Panicf("MaxPooling.Aggregate: adjacency has %d rows, but selfIndices has %d", len(adjacency), len(selfIndices))
	}
	weightedPreviousLayer := autodiff.MatrixMultiply(previousLayer, a.pool)
	biasedWeightedPreviousLayer := autodiff.BroadcastSum(weightedPreviousLayer, a.bias)
	neighborhoodActivations := a.activation.Apply(biasedWeightedPreviousLayer)
	pooled := autodiff.ElementwiseMax(neighborhoodActivations, adjacency)

	selfPreviousLayer := autodiff.Slice(previousLayer, selfIndices)
	self := autodiff.MatrixMultiply(selfPreviousLayer, a.self)
	neighbors := autodiff.MatrixMultiply(pooled, a.neighbors)
	return a.activation.Apply(autodiff.TensorAdd(self, neighbors))
}

// Weights implements Aggregator. The order is pool, self, neighbors and bias.
func (a *MaxPooling) Weights() []*autodiff.Weights {
	return []*autodiff.Weights{a.pool, a.self, a.neighbors, a.bias}
}
