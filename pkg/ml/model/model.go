// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package model implements a GraphSAGE model: a stack of MaxPooling aggregators that computes node
// embeddings from the numeric properties of the nodes of a graphstore.Store and their sampled
// neighborhoods.
package model

import (
	"fmt"
	"math/rand/v2"

	"github.com/gomlx/graphsage/pkg/core/autodiff"
	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/gomlx/graphsage/pkg/graphstore"
	"github.com/gomlx/graphsage/pkg/ml/activations"
	"github.com/gomlx/graphsage/pkg/ml/aggregators"
	"github.com/gomlx/graphsage/pkg/ml/initializer"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config of a GraphSage model. It is saved along with the weights in checkpoints.
type Config struct {
	// FeatureKeys are the node properties used as input features, in order.
	FeatureKeys []string `yaml:"feature_keys"`

	// DefaultValue used for nodes missing a feature property.
	DefaultValue float64 `yaml:"default_value"`

	// LayerDims is the output dimension of each aggregation layer. The last one is the embedding dimension.
	LayerDims []int `yaml:"layer_dims"`

	// PoolDim is the dimension of the pooled neighbors' representations. If 0, each layer uses
	// its own input dimension.
	PoolDim int `yaml:"pool_dim,omitempty"`

	// SampleSizes is the maximum number of neighbors sampled per node for each layer.
	// Values <= 0 mean all neighbors are used. It must have one value per layer.
	SampleSizes []int `yaml:"sample_sizes"`

	// Activation used in the hidden layers, see activations.FromName.
	Activation string `yaml:"activation"`

	// OutputActivation used in the last layer, see activations.FromName.
	OutputActivation string `yaml:"output_activation,omitempty"`
}

// Validate returns an error if the configuration is not consistent.
func (c *Config) Validate() error {
	if len(c.FeatureKeys) == 0 {
		return errors.New("model requires at least one feature key")
	}
	if len(c.LayerDims) == 0 {
		return errors.New("model requires at least one layer")
	}
	if len(c.SampleSizes) != len(c.LayerDims) {
		return errors.Errorf("model has %d layers but %d sample sizes", len(c.LayerDims), len(c.SampleSizes))
	}
	for ii, dim := range c.LayerDims {
		if dim <= 0 {
			return errors.Errorf("invalid dimension %d for layer %d", dim, ii)
		}
	}
	if c.PoolDim < 0 {
		return errors.Errorf("invalid pool dimension %d", c.PoolDim)
	}
	for _, name := range []string{c.Activation, c.OutputActivation} {
		if _, err := activations.FromName(name); err != nil {
			return err
		}
	}
	return nil
}

// GraphSage model: it owns the weights of its aggregators, and builds a new computation graph
// for each batch of nodes.
type GraphSage struct {
	config Config
	layers []*aggregators.MaxPooling
}

// New creates a GraphSage model with weights initialized by init.
func New(config Config, init initializer.Initializer) (*GraphSage, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	hidden, _ := activations.FromName(config.Activation)
	output, _ := activations.FromName(config.OutputActivation)
	m := &GraphSage{config: config}
	inputDim := len(config.FeatureKeys)
	for ii, outputDim := range config.LayerDims {
		activation := hidden
		if ii == len(config.LayerDims)-1 {
			activation = output
		}
		poolDim := config.PoolDim
		if poolDim == 0 {
			poolDim = inputDim
		}
		m.layers = append(m.layers, aggregators.NewMaxPoolingWithInit(init, activation, inputDim, poolDim, outputDim))
		inputDim = outputDim
	}
	klog.V(1).Infof("GraphSage model with %d layers: %d features -> %v, %d parameters",
		len(m.layers), len(config.FeatureKeys), config.LayerDims, m.NumParameters())
	return m, nil
}

// Config returns a copy of the model configuration.
func (m *GraphSage) Config() Config { return m.config }

// NumLayers returns the number of aggregation layers.
func (m *GraphSage) NumLayers() int { return len(m.layers) }

// EmbeddingDim is the dimension of the embeddings computed by the model.
func (m *GraphSage) EmbeddingDim() int { return m.config.LayerDims[len(m.config.LayerDims)-1] }

// Weights returns all trainable weights, layer by layer, in the order of aggregators.Aggregator.Weights.
func (m *GraphSage) Weights() []*autodiff.Weights {
	var weights []*autodiff.Weights
	for _, layer := range m.layers {
		weights = append(weights, layer.Weights()...)
	}
	return weights
}

// NumParameters returns the total number of trainable scalars.
func (m *GraphSage) NumParameters() int {
	var total int
	for _, w := range m.Weights() {
		total += w.Shape().Size()
	}
	return total
}

// Memory used by the weights, in bytes.
func (m *GraphSage) Memory() uintptr {
	var total uintptr
	for _, w := range m.Weights() {
		total += w.Shape().Memory()
	}
	return total
}

// Sample the batch needed to embed nodeIds, using the model's sample sizes.
func (m *GraphSage) Sample(store *graphstore.Store, nodeIds []graphstore.NodeId, rng *rand.Rand) (*graphstore.Batch, error) {
	return store.Sample(nodeIds, m.config.SampleSizes, rng)
}

// BuildGraph builds the computation graph that embeds the output nodes of batch: the features of
// the batch input nodes are read from store and passed through the aggregators.
//
// The returned Variable has one row per output node, and EmbeddingDim columns.
func (m *GraphSage) BuildGraph(store *graphstore.Store, batch *graphstore.Batch) (autodiff.Variable, error) {
	if len(batch.Hops) != len(m.layers) {
		return nil, errors.Errorf("batch sampled for %d layers, but model has %d", len(batch.Hops), len(m.layers))
	}
	features, err := store.Features(batch.InputNodeIds, m.config.FeatureKeys, m.config.DefaultValue)
	if err != nil {
		return nil, errors.WithMessage(err, "reading input features")
	}
	return autodiff.Build(func() autodiff.Variable {
		var x autodiff.Variable = autodiff.NewConstant(features)
		for ii, layer := range m.layers {
			hop := batch.Hops[ii]
			x = layer.Aggregate(x, hop.Adjacency, hop.SelfIndices)
		}
		return x
	})
}

// Embed computes the embeddings of nodeIds, one row per node.
func (m *GraphSage) Embed(store *graphstore.Store, nodeIds []graphstore.NodeId, rng *rand.Rand) (*tensors.Tensor, error) {
	batch, err := m.Sample(store, nodeIds, rng)
	if err != nil {
		return nil, err
	}
	root, err := m.BuildGraph(store, batch)
	if err != nil {
		return nil, err
	}
	return autodiff.NewContext().Forward(root)
}

// weightsFileName returns the checkpoint file name of the weights at position idx of Weights.
func weightsFileName(idx int) string {
	names := [...]string{"pool", "self", "neighbors", "bias"}
	return fmt.Sprintf("layer%02d_%s.bin", idx/len(names), names[idx%len(names)])
}
