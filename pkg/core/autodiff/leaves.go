// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autodiff

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphsage/pkg/core/tensors"
)

// Weights is a leaf Variable holding trainable values.
//
// Weights persist across many passes: the gradient accumulated for them in a Context is read by
// an optimizer, which then mutates Value in place. The mutation must happen between passes, never
// while a pass using these Weights is in flight -- it's up to the caller to enforce that ordering.
// During passes, Weights can be safely read concurrently by any number of Contexts.
type Weights struct {
	Base
	value *tensors.Tensor
}

var _ Variable = (*Weights)(nil)

// NewWeights creates a trainable leaf Variable holding value. The tensor is owned by the Weights from now on.
func NewWeights(value *tensors.Tensor) *Weights {
	return &Weights{
		Base:  NewBase("Weights", value.Shape()),
		value: value,
	}
}

// Value returns the current tensor with the trainable values.
// The tensor should only be mutated by an optimizer, between passes.
func (w *Weights) Value() *tensors.Tensor { return w.value }

// Forward implements Variable. It returns the weights' tensor itself, not a copy.
func (w *Weights) Forward(_ *Context) *tensors.Tensor { return w.value }

// GradientForParent implements Variable. Weights have no parents, so it always panics.
func (w *Weights) GradientForParent(_ *Context, parentIdx int) *tensors.Tensor {
	exceptions.Panicf("%s has no parents, requested gradient for parent #%d", w, parentIdx)
	return nil
}

// Constant is a non-trainable leaf Variable, used to feed input values (e.g. node features) to a graph.
//
// The gradient with respect to a Constant is still accumulated by the Context, which allows composing
// a graph with a larger computation.
type Constant struct {
	Base
	value *tensors.Tensor
}

var _ Variable = (*Constant)(nil)

// NewConstant creates a leaf Variable with the given value. The tensor must not be mutated afterward.
func NewConstant(value *tensors.Tensor) *Constant {
	return &Constant{
		Base:  NewBase("Constant", value.Shape()),
		value: value,
	}
}

// Value returns the constant's tensor.
func (c *Constant) Value() *tensors.Tensor { return c.value }

// Forward implements Variable.
func (c *Constant) Forward(_ *Context) *tensors.Tensor { return c.value }

// GradientForParent implements Variable. Constants have no parents, so it always panics.
func (c *Constant) GradientForParent(_ *Context, parentIdx int) *tensors.Tensor {
	exceptions.Panicf("%s has no parents, requested gradient for parent #%d", c, parentIdx)
	return nil
}
