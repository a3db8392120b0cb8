// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graphstore

import (
	"math/rand/v2"

	"github.com/pkg/errors"
)

// Hop describes one aggregation layer of a sampled neighborhood: each output row corresponds to
// one node in NodeIds, its neighbors are given as row indices into the previous layer, and so is
// the node itself (SelfIndices).
type Hop struct {
	NodeIds     []NodeId
	Adjacency   [][]int
	SelfIndices []int
}

// Batch is the sampled computation graph needed to embed a set of nodes with a stack of aggregators.
//
// InputNodeIds are the nodes whose features form the input matrix. Hops[0] consumes InputNodeIds,
// Hops[i] consumes the rows of Hops[i-1], and the last hop outputs the requested nodes, in the
// order given.
type Batch struct {
	InputNodeIds []NodeId
	Hops         []*Hop
}

// OutputNodeIds returns the ids of the nodes embedded by the batch.
func (b *Batch) OutputNodeIds() []NodeId {
	return b.Hops[len(b.Hops)-1].NodeIds
}

// Sample builds the Batch needed to embed nodeIds with len(sampleSizes) aggregation layers.
//
// sampleSizes[i] is the maximum number of neighbors sampled per node for the i-th layer (counting from
// the input). A value <= 0 means all neighbors are used. rng is only used when sampling is needed.
func (s *Store) Sample(nodeIds []NodeId, sampleSizes []int, rng *rand.Rand) (*Batch, error) {
	if len(nodeIds) == 0 {
		return nil, errors.New("Sample requires at least one node")
	}
	if len(sampleSizes) == 0 {
		return nil, errors.New("Sample requires at least one layer")
	}
	for _, id := range nodeIds {
		if s.Node(id) == nil {
			return nil, errors.Errorf("Sample: node %d doesn't exist", id)
		}
	}

	numLayers := len(sampleSizes)
	batch := &Batch{Hops: make([]*Hop, numLayers)}
	targets := nodeIds
	for layer := numLayers - 1; layer >= 0; layer-- {
		hop := &Hop{
			NodeIds:     targets,
			Adjacency:   make([][]int, len(targets)),
			SelfIndices: make([]int, len(targets)),
		}
		var sources []NodeId
		position := make(map[NodeId]int)
		indexOf := func(id NodeId) int {
			idx, found := position[id]
			if !found {
				idx = len(sources)
				position[id] = idx
				sources = append(sources, id)
			}
			return idx
		}
		for row, id := range targets {
			hop.SelfIndices[row] = indexOf(id)
		}
		for row, id := range targets {
			neighbors := s.sampleNeighbors(id, sampleSizes[layer], rng)
			adjacency := make([]int, len(neighbors))
			for ii, neighbor := range neighbors {
				adjacency[ii] = indexOf(neighbor)
			}
			hop.Adjacency[row] = adjacency
		}
		batch.Hops[layer] = hop
		targets = sources
	}
	batch.InputNodeIds = targets
	return batch, nil
}

func (s *Store) sampleNeighbors(id NodeId, sampleSize int, rng *rand.Rand) []NodeId {
	neighbors := s.Neighbors(id)
	if sampleSize <= 0 || len(neighbors) <= sampleSize {
		return neighbors
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(id), 0))
	}
	sampled := make([]NodeId, sampleSize)
	for ii, idx := range rng.Perm(len(neighbors))[:sampleSize] {
		sampled[ii] = neighbors[idx]
	}
	return sampled
}
