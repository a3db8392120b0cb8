// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/graphsage/pkg/core/autodiff/autodifftest"
	"github.com/gomlx/graphsage/pkg/graphstore"
	"github.com/gomlx/graphsage/pkg/ml/initializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGraph = `
undirected: true
nodes:
  - {id: 0, properties: {a: 1, b: 2}}
  - {id: 1, properties: {a: 3, b: 4}}
  - {id: 2, properties: {a: 5, b: 0}}
  - {id: 3, properties: {a: 7}}
relationships:
  - {source: 0, target: 1}
  - {source: 0, target: 2}
`

func loadTestGraph(t *testing.T) *graphstore.Store {
	store, err := graphstore.LoadYAML(strings.NewReader(testGraph))
	require.NoError(t, err)
	return store
}

func TestEmbed(t *testing.T) {
	store := loadTestGraph(t)
	m, err := New(Config{
		FeatureKeys: []string{"a", "b"},
		LayerDims:   []int{2},
		SampleSizes: []int{0},
	}, initializer.Identity)
	require.NoError(t, err)
	assert.Equal(t, 1, m.NumLayers())
	assert.Equal(t, 2, m.EmbeddingDim())

	embeddings, err := m.Embed(store, []graphstore.NodeId{0, 1, 2, 3}, nil)
	require.NoError(t, err)
	// Each embedding is the node's own features plus the element-wise max of its neighbors' features.
	// Node 3 has no neighbors, and "b" defaults to 0.
	assert.Equal(t, [][]float64{{6, 6}, {4, 6}, {6, 2}, {7, 0}}, embeddings.Value())
}

func TestNew(t *testing.T) {
	m, err := New(Config{
		FeatureKeys: []string{"a", "b"},
		LayerDims:   []int{3, 1},
		SampleSizes: []int{5, 5},
		Activation:  "relu",
	}, initializer.GlorotUniform(autodifftest.NewRand(1)))
	require.NoError(t, err)
	assert.Len(t, m.Weights(), 8)
	assert.Equal(t, 36, m.NumParameters())
	assert.Equal(t, uintptr(36*8), m.Memory())

	embeddings, err := m.Embed(loadTestGraph(t), []graphstore.NodeId{2, 0}, autodifftest.NewRand(2))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, embeddings.Shape().Dimensions)

	for _, config := range []Config{
		{LayerDims: []int{2}, SampleSizes: []int{0}},
		{FeatureKeys: []string{"a"}, SampleSizes: []int{}},
		{FeatureKeys: []string{"a"}, LayerDims: []int{2}, SampleSizes: []int{0, 0}},
		{FeatureKeys: []string{"a"}, LayerDims: []int{0}, SampleSizes: []int{0}},
		{FeatureKeys: []string{"a"}, LayerDims: []int{2}, SampleSizes: []int{0}, Activation: "swish"},
	} {
		_, err = New(config, initializer.Zero)
		require.Error(t, err, "config %+v", config)
	}
}

func TestBuildGraph(t *testing.T) {
	store := loadTestGraph(t)
	m, err := New(Config{FeatureKeys: []string{"a"}, LayerDims: []int{2, 2}, SampleSizes: []int{0, 0}}, initializer.One)
	require.NoError(t, err)
	batch, err := store.Sample([]graphstore.NodeId{0}, []int{0}, nil)
	require.NoError(t, err)
	_, err = m.BuildGraph(store, batch)
	require.Error(t, err)

	require.NoError(t, store.AddNode(4, nil, map[string]any{"a": "seven"}))
	_, err = m.Embed(store, []graphstore.NodeId{4}, nil)
	require.Error(t, err)
}

func TestCheckpoint(t *testing.T) {
	store := loadTestGraph(t)
	m, err := New(Config{
		FeatureKeys:      []string{"a", "b"},
		DefaultValue:     -1,
		LayerDims:        []int{4, 2},
		PoolDim:          3,
		SampleSizes:      []int{0, 0},
		Activation:       "tanh",
		OutputActivation: "none",
	}, initializer.GlorotUniform(autodifftest.NewRand(3)))
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "checkpoint")
	require.NoError(t, m.Save(dir))
	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, m.Config(), loaded.Config())
	require.Len(t, loaded.Weights(), len(m.Weights()))
	for ii, w := range m.Weights() {
		assert.True(t, w.Value().Equal(loaded.Weights()[ii].Value()), "weights #%d differ", ii)
	}

	nodes := []graphstore.NodeId{0, 1, 2, 3}
	want, err := m.Embed(store, nodes, nil)
	require.NoError(t, err)
	got, err := loaded.Embed(store, nodes, nil)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	_, err = Load(t.TempDir())
	require.Error(t, err)
}
