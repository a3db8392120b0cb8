// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// graphsage trains a GraphSAGE model with max-pooling aggregators on a graph stored in a YAML file,
// and prints the embeddings of its nodes.
//
// Example:
//
//	graphsage -graph=cmd/graphsage/example_graph.yaml -features=age,income -labels=score -layers=8,1 -epochs=200
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gomlx/graphsage/internal/workerspool"
	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/gomlx/graphsage/pkg/graphstore"
	"github.com/gomlx/graphsage/pkg/ml/initializer"
	"github.com/gomlx/graphsage/pkg/ml/model"
	"github.com/gomlx/graphsage/pkg/ml/optimizers"
	"github.com/gomlx/graphsage/pkg/ml/train"
	"github.com/gomlx/graphsage/pkg/support/fsutil"
	"github.com/gomlx/graphsage/ui/commandline"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagGraph      = flag.String("graph", "", "YAML file with the graph, see graphstore.LoadYAML for the format.")
	flagLabel      = flag.String("node_label", "", "Only nodes with this label are trained and embedded. Empty means all nodes.")
	flagFeatures   = flag.String("features", "", "Comma-separated list of node properties used as input features.")
	flagDefault    = flag.Float64("default_value", 0, "Value used for missing features and labels.")
	flagLabels     = flag.String("labels", "", "Comma-separated list of node properties the embeddings are trained to regress, as many as the last layer dimension. Empty means no training.")
	flagLayers     = flag.String("layers", "16,8", "Comma-separated list of output dimensions of each aggregation layer.")
	flagPoolDim    = flag.Int("pool_dim", 0, "Dimension of the pooled neighbors representations. 0 means the input dimension of each layer.")
	flagSamples    = flag.String("sample_sizes", "", "Comma-separated list of neighbors sampled per node for each layer. Empty or values <= 0 mean all neighbors.")
	flagActivation = flag.String("activation", "relu", "Activation of the hidden layers: none, relu, leaky_relu, sigmoid or tanh.")
	flagOutputAct  = flag.String("output_activation", "none", "Activation of the last layer.")
	flagOptimizer  = flag.String("optimizer", "adam", "Optimizer: sgd, adam, adamax or adamw.")
	flagLR         = flag.Float64("learning_rate", 0.01, "Learning rate.")
	flagEpochs     = flag.Int("epochs", 100, "Number of training epochs.")
	flagBatchSize  = flag.Int("batch_size", 64, "Number of nodes per batch. Batches are processed in parallel.")
	flagSeed       = flag.Uint64("seed", 42, "Seed for initialization, shuffling and sampling.")
	flagParallel   = flag.Int("parallelism", 0, "Number of workers. 0 uses the number of CPUs, -1 disables parallelism.")
	flagCheckpoint = flag.String("checkpoint", "", "Directory to load the model from, if it exists, and to save it to after training.")
	flagPrecision  = flag.Int("precision", 4, "Number of decimal places of the printed embeddings.")
	flagQuiet      = flag.Bool("quiet", false, "Don't display progress bar nor model summary.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagGraph == "" {
		klog.Errorf("Missing -graph flag with the YAML file with the graph. See 'graphsage -help'.")
		os.Exit(1)
	}
	if err := run(); err != nil {
		klog.Errorf("Failed: %+v", err)
		os.Exit(1)
	}
}

// parseInts parses a comma-separated list of integers.
func parseInts(list string) ([]int, error) {
	if list == "" {
		return nil, nil
	}
	var values []int
	for _, part := range strings.Split(list, ",") {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid integer %q in list %q", part, list)
		}
		values = append(values, value)
	}
	return values, nil
}

// parseKeys parses a comma-separated list of property keys.
func parseKeys(list string) []string {
	var keys []string
	for _, part := range strings.Split(list, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// buildModel loads the model from the checkpoint, if there is one, or creates a new one from the flags.
func buildModel() (*model.GraphSage, error) {
	if *flagCheckpoint != "" {
		dir, err := fsutil.ReplaceTildeInDir(*flagCheckpoint)
		if err != nil {
			return nil, err
		}
		exists, err := fsutil.FileExists(filepath.Join(dir, model.ConfigFileName))
		if err != nil {
			return nil, err
		}
		if exists {
			m, err := model.Load(dir)
			if err != nil {
				return nil, errors.WithMessagef(err, "failed to load checkpoint %q", *flagCheckpoint)
			}
			klog.Infof("Loaded model from %q", *flagCheckpoint)
			return m, nil
		}
		klog.V(1).Infof("No checkpoint in %q, creating new model", *flagCheckpoint)
	}
	layerDims, err := parseInts(*flagLayers)
	if err != nil {
		return nil, err
	}
	sampleSizes, err := parseInts(*flagSamples)
	if err != nil {
		return nil, err
	}
	if len(sampleSizes) == 0 {
		sampleSizes = make([]int, len(layerDims))
	}
	config := model.Config{
		FeatureKeys:      parseKeys(*flagFeatures),
		DefaultValue:     *flagDefault,
		LayerDims:        layerDims,
		PoolDim:          *flagPoolDim,
		SampleSizes:      sampleSizes,
		Activation:       *flagActivation,
		OutputActivation: *flagOutputAct,
	}
	rng := rand.New(rand.NewPCG(*flagSeed, 0))
	return model.New(config, initializer.GlorotUniform(rng))
}

func run() error {
	store, err := graphstore.LoadFile(*flagGraph)
	if err != nil {
		return err
	}
	m, err := buildModel()
	if err != nil {
		return err
	}
	if !*flagQuiet {
		fmt.Println(commandline.ModelSummary(m, store))
	}
	nodeIds := store.NodeIds(*flagLabel)
	if len(nodeIds) == 0 {
		return errors.Errorf("no nodes with label %q in %q", *flagLabel, *flagGraph)
	}

	pool := workerspool.New()
	if *flagParallel != 0 {
		pool.SetMaxParallelism(max(*flagParallel, 0))
	}
	defer pool.Close()

	if labelKeys := parseKeys(*flagLabels); len(labelKeys) > 0 {
		optimizer := must.M1(optimizers.ByName(*flagOptimizer, *flagLR))
		config := train.NewConfig().BatchSize(*flagBatchSize).Epochs(*flagEpochs).Seed(*flagSeed)
		trainer, err := train.NewTrainer(config, m, store, optimizer, train.RegressionLoss(labelKeys, *flagDefault), pool)
		if err != nil {
			return err
		}
		if !*flagQuiet {
			commandline.AttachProgressBar(trainer)
		}
		losses, err := trainer.Train(nodeIds)
		if err != nil {
			return err
		}
		if len(losses) > 0 {
			klog.Infof("Final loss: %g", losses[len(losses)-1])
		}
		if *flagCheckpoint != "" {
			if err = m.Save(*flagCheckpoint); err != nil {
				return err
			}
		}
	}

	embeddings, err := embedAll(m, store, nodeIds, pool)
	if err != nil {
		return err
	}
	fmt.Println(commandline.EmbeddingsTable(nodeIds, embeddings, *flagPrecision))
	return nil
}

// embedAll computes the embeddings of nodeIds in batches, in parallel.
func embedAll(m *model.GraphSage, store *graphstore.Store, nodeIds []graphstore.NodeId, pool *workerspool.Pool) (*tensors.Tensor, error) {
	batchSize := max(*flagBatchSize, 1)
	var starts []int
	for start := 0; start < len(nodeIds); start += batchSize {
		starts = append(starts, start)
	}
	embeddings := tensors.Constant(0, len(nodeIds), m.EmbeddingDim())
	err := workerspool.ProcessBatch(pool, starts, func(start int) error {
		end := min(start+batchSize, len(nodeIds))
		rng := rand.New(rand.NewPCG(*flagSeed, uint64(start)))
		batchEmbeddings, err := m.Embed(store, nodeIds[start:end], rng)
		if err != nil {
			return err
		}
		copy(embeddings.Flat()[start*m.EmbeddingDim():], batchEmbeddings.Flat())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return embeddings, nil
}
