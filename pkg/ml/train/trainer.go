// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package train implements the training loop of GraphSage models: batches of nodes are processed
// concurrently, each one in its own autodiff.Context, and once all of them finish the gradients are
// summed and applied to the shared weights by the optimizer.
package train

import (
	"math/rand/v2"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/graphsage/internal/workerspool"
	"github.com/gomlx/graphsage/pkg/core/autodiff"
	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/gomlx/graphsage/pkg/graphstore"
	"github.com/gomlx/graphsage/pkg/ml/model"
	"github.com/gomlx/graphsage/pkg/ml/optimizers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config of the training loop, create it with NewConfig.
type Config struct {
	batchSize int
	epochs    int
	seed      uint64
}

// NewConfig returns a training configuration with the default values: batch size 64, 10 epochs and seed 0.
func NewConfig() *Config {
	return &Config{batchSize: 64, epochs: 10}
}

// BatchSize sets the number of nodes per batch. Batches are processed concurrently.
func (c *Config) BatchSize(batchSize int) *Config {
	c.batchSize = batchSize
	return c
}

// Epochs sets the number of epochs run by Trainer.Train.
func (c *Config) Epochs(epochs int) *Config {
	c.epochs = epochs
	return c
}

// Seed sets the seed used to shuffle nodes and sample neighborhoods.
func (c *Config) Seed(seed uint64) *Config {
	c.seed = seed
	return c
}

// OnEpochFn is called by Trainer.Train after each epoch with the mean loss over the nodes.
// If it returns an error, training is interrupted.
type OnEpochFn func(epoch int, loss float64) error

// Trainer trains a model on the nodes of a graph store.
type Trainer struct {
	config    Config
	model     *model.GraphSage
	store     *graphstore.Store
	optimizer optimizers.Interface
	lossFn    LossFn
	pool      *workerspool.Pool
	onEpoch   []OnEpochFn
	epoch     int
}

// NewTrainer creates a Trainer. Batches are processed using the workers of pool.
func NewTrainer(config *Config, m *model.GraphSage, store *graphstore.Store, optimizer optimizers.Interface,
	lossFn LossFn, pool *workerspool.Pool) (*Trainer, error) {
	if config.batchSize <= 0 {
		return nil, errors.Errorf("invalid batch size %d", config.batchSize)
	}
	if config.epochs < 0 {
		return nil, errors.Errorf("invalid number of epochs %d", config.epochs)
	}
	return &Trainer{
		config:    *config,
		model:     m,
		store:     store,
		optimizer: optimizer,
		lossFn:    lossFn,
		pool:      pool,
	}, nil
}

// OnEpoch adds a hook called after each epoch.
func (t *Trainer) OnEpoch(fn OnEpochFn) {
	t.onEpoch = append(t.onEpoch, fn)
}

// Epoch returns the number of epochs run so far.
func (t *Trainer) Epoch() int { return t.epoch }

// NumEpochs returns the number of epochs run by each call to Train.
func (t *Trainer) NumEpochs() int { return t.config.epochs }

// Train runs the configured number of epochs over nodeIds, and returns the mean loss of each epoch.
func (t *Trainer) Train(nodeIds []graphstore.NodeId) ([]float64, error) {
	klog.V(1).Infof("training on %d nodes, %d epochs, batch size %d, %s of weights",
		len(nodeIds), t.config.epochs, t.config.batchSize, humanize.Bytes(uint64(t.model.Memory())))
	losses := make([]float64, 0, t.config.epochs)
	for range t.config.epochs {
		loss, err := t.TrainEpoch(nodeIds)
		if err != nil {
			return losses, err
		}
		losses = append(losses, loss)
		for _, fn := range t.onEpoch {
			if err = fn(t.epoch, loss); err != nil {
				return losses, err
			}
		}
	}
	return losses, nil
}

// batchResult holds what one batch contributes to a training step.
type batchResult struct {
	loss      float64
	gradients []*tensors.Tensor
}

// TrainEpoch shuffles nodeIds, splits them in batches and processes the batches concurrently. Once all
// batches finished, the gradients are summed (each batch weighted by its number of nodes) and applied
// by the optimizer. It returns the mean loss over the nodes.
func (t *Trainer) TrainEpoch(nodeIds []graphstore.NodeId) (float64, error) {
	if len(nodeIds) == 0 {
		return 0, errors.New("TrainEpoch requires at least one node")
	}
	start := time.Now()
	epoch := t.epoch
	rng := rand.New(rand.NewPCG(t.config.seed, uint64(epoch)))
	shuffled := make([]graphstore.NodeId, len(nodeIds))
	for ii, idx := range rng.Perm(len(nodeIds)) {
		shuffled[ii] = nodeIds[idx]
	}
	var batches [][]graphstore.NodeId
	for from := 0; from < len(shuffled); from += t.config.batchSize {
		batches = append(batches, shuffled[from:min(from+t.config.batchSize, len(shuffled))])
	}

	weights := t.model.Weights()
	results := make([]batchResult, len(batches))
	batchIndices := make([]int, len(batches))
	for ii := range batchIndices {
		batchIndices[ii] = ii
	}
	err := workerspool.ProcessBatch(t.pool, batchIndices, func(batchIdx int) error {
		// Each batch samples with its own generator, so results don't depend on scheduling.
		batchRng := rand.New(rand.NewPCG(t.config.seed^uint64(epoch+1), uint64(batchIdx)))
		loss, gradients, err := t.computeGradients(batches[batchIdx], weights, batchRng)
		if err != nil {
			return errors.WithMessagef(err, "epoch %d, batch %d", epoch, batchIdx)
		}
		results[batchIdx] = batchResult{loss: loss, gradients: gradients}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Barrier passed: combine the batches in a fixed order.
	var loss float64
	gradients := make([]*tensors.Tensor, len(weights))
	for ii, w := range weights {
		gradients[ii] = tensors.Zeros(w.Shape())
	}
	for batchIdx, result := range results {
		batchWeight := float64(len(batches[batchIdx])) / float64(len(nodeIds))
		loss += batchWeight * result.loss
		for ii, g := range result.gradients {
			dst := gradients[ii].Flat()
			for jj, v := range g.Flat() {
				dst[jj] += batchWeight * v
			}
		}
	}
	if err = t.optimizer.Apply(weights, gradients); err != nil {
		return 0, errors.WithMessagef(err, "epoch %d", epoch)
	}
	t.epoch++
	klog.V(1).Infof("epoch %d: loss=%g, %d batches in %s", epoch, loss, len(batches), time.Since(start))
	return loss, nil
}

// computeGradients runs the forward and backward passes of one batch in its own Context.
func (t *Trainer) computeGradients(nodeIds []graphstore.NodeId, weights []*autodiff.Weights, rng *rand.Rand) (float64, []*tensors.Tensor, error) {
	batch, err := t.model.Sample(t.store, nodeIds, rng)
	if err != nil {
		return 0, nil, err
	}
	root, err := t.model.BuildGraph(t.store, batch)
	if err != nil {
		return 0, nil, err
	}
	ctx := autodiff.NewContext()
	embeddings, err := ctx.Forward(root)
	if err != nil {
		return 0, nil, err
	}
	loss, upstream, err := t.lossFn(t.store, batch.OutputNodeIds(), embeddings)
	if err != nil {
		return 0, nil, err
	}
	if err = ctx.BackwardWith(root, upstream); err != nil {
		return 0, nil, err
	}
	klog.V(3).Infof("batch of %d nodes: %d variables, loss=%g", len(nodeIds), ctx.NumVariables(), loss)
	return loss, ctx.WeightsGradients(weights), nil
}
