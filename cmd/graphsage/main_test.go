// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/graphsage/internal/workerspool"
	"github.com/gomlx/graphsage/pkg/graphstore"
	"github.com/gomlx/graphsage/pkg/ml/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	values, err := parseInts("16, 8,1")
	require.NoError(t, err)
	assert.Equal(t, []int{16, 8, 1}, values)
	values, err = parseInts("")
	require.NoError(t, err)
	assert.Empty(t, values)
	_, err = parseInts("16,x")
	require.Error(t, err)

	assert.Equal(t, []string{"age", "income"}, parseKeys(" age,,income "))
	assert.Empty(t, parseKeys(""))
}

func TestExampleGraph(t *testing.T) {
	store, err := graphstore.LoadFile("example_graph.yaml")
	require.NoError(t, err)
	assert.Len(t, store.NodeIds("Person"), 8)

	*flagFeatures = "age,income"
	*flagLayers = "4,2"
	*flagBatchSize = 3
	m, err := buildModel()
	require.NoError(t, err)
	pool := workerspool.New().SetMaxParallelism(2)
	defer pool.Close()

	nodeIds := store.NodeIds("Person")
	embeddings, err := embedAll(m, store, nodeIds, pool)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 2}, embeddings.Shape().Dimensions)

	// Batched embeddings match embedding all nodes at once, since all neighbors are used.
	want, err := m.Embed(store, nodeIds, nil)
	require.NoError(t, err)
	assert.True(t, want.InDelta(embeddings, 1e-12))
}

func TestBuildModelFromCheckpoint(t *testing.T) {
	*flagFeatures = "age,income"
	*flagLayers = "4,2"
	defer func() { *flagCheckpoint = "" }()

	// Missing checkpoint: a new model is created from the flags.
	dir := filepath.Join(t.TempDir(), "model")
	*flagCheckpoint = dir
	m, err := buildModel()
	require.NoError(t, err)
	require.NoError(t, m.Save(dir))

	// Existing checkpoint is loaded, even if the flags differ.
	*flagFeatures = "age"
	loaded, err := buildModel()
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "income"}, loaded.Config().FeatureKeys)

	// Incomplete checkpoint is an error, and it is not replaced by a new model.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		if entry.Name() != model.ConfigFileName {
			require.NoError(t, os.Remove(filepath.Join(dir, entry.Name())))
		}
	}
	_, err = buildModel()
	require.Error(t, err)
}
