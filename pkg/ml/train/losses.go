// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"github.com/gomlx/graphsage/pkg/core/shapes"
	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/gomlx/graphsage/pkg/graphstore"
	"github.com/pkg/errors"
)

// LossFn computes the loss of a batch, given the embeddings of its nodes (one row per node, in the order
// of nodeIds), and the gradient of the loss with respect to the embeddings.
//
// The loss should be a mean over the batch nodes: the Trainer weights batches by their number of nodes.
type LossFn func(store *graphstore.Store, nodeIds []graphstore.NodeId, embeddings *tensors.Tensor) (loss float64, gradient *tensors.Tensor, err error)

// MeanSquaredError returns the mean squared error between labels and predictions, and its gradient
// with respect to predictions.
//
// labels and predictions must have the same shape.
func MeanSquaredError(labels, predictions *tensors.Tensor) (loss float64, gradient *tensors.Tensor, err error) {
	if !labels.Shape().Equal(predictions.Shape()) {
		return 0, nil, shapes.Errorf("labels (%s) and predictions (%s) must have same shape", labels.Shape(), predictions.Shape())
	}
	gradient = predictions.ZerosLike()
	grad, labelsFlat := gradient.Flat(), labels.Flat()
	n := float64(predictions.Size())
	for ii, prediction := range predictions.Flat() {
		diff := prediction - labelsFlat[ii]
		loss += diff * diff
		grad[ii] = 2 * diff / n
	}
	return loss / n, gradient, nil
}

// RegressionLoss returns a LossFn that regresses the embeddings on the node properties labelKeys:
// the embedding dimension must match the number of labels. Labels are read with
// graphstore.Store.ReadProperty, and missing ones take defaultValue.
func RegressionLoss(labelKeys []string, defaultValue float64) LossFn {
	return func(store *graphstore.Store, nodeIds []graphstore.NodeId, embeddings *tensors.Tensor) (float64, *tensors.Tensor, error) {
		labels, err := store.Features(nodeIds, labelKeys, defaultValue)
		if err != nil {
			return 0, nil, errors.WithMessage(err, "reading labels")
		}
		return MeanSquaredError(labels, embeddings)
	}
}
