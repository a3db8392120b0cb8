// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package autodiff implements a small reverse-mode automatic differentiation engine over tensors.
//
// A computation graph is a DAG of Variable's: each Variable knows its output shape and its parents,
// and it implements the forward computation of its value and the local gradient with respect to
// each of its parents. A Context evaluates the graph forward from a root Variable, memoizing the
// value of every reachable Variable, and then propagates gradients backward, accumulating in each
// Variable the sum of the contributions of all its consumers.
//
// Overall in this package we assume the following conventions:
//
//   - root: the Variable whose value we want, and with respect to which gradients are propagated.
//   - leaves: Variables with no parents, typically Weights (trainable) or Constant (inputs).
//   - upstream gradient: the gradient of the root with respect to the output of the Variable being
//     processed. The root is seeded with ones, or with an externally supplied gradient when the graph
//     is part of a larger computation (e.g. a loss calculated elsewhere).
//
// Graph building failures (incompatible shapes) are raised immediately, at the construction of the
// Variable, by panicking with a *shapes.ShapeError. Use Build to convert those panics to errors.
//
// Every Variable is assigned a VariableId at construction, strictly increasing. Since parents must
// exist before their consumers, a Variable's id is always greater than the ids of all its parents:
// the ids order the graph in dependency order, and a cycle cannot be built.
package autodiff

import (
	"fmt"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphsage/pkg/core/shapes"
	"github.com/gomlx/graphsage/pkg/core/tensors"
)

// VariableId is the unique identifier of a Variable, assigned in construction order.
type VariableId int64

// lastVariableId is the last id assigned to a Variable. Variables can be built concurrently.
var lastVariableId atomic.Int64

// Variable is a node in the computation graph.
//
// Implementations embed Base, which provides Id, Shape, Parents and String, and
// implement Forward and GradientForParent.
type Variable interface {
	fmt.Stringer

	// Id of the Variable, greater than the Id of all its parents.
	Id() VariableId

	// Shape of the value produced by Forward. Fixed at construction.
	Shape() shapes.Shape

	// Parents are the Variables this Variable depends on, in a fixed order.
	Parents() []Variable

	// Forward computes the value of this Variable from the value of its parents, given by ctx.MustData(parent).
	// It must not mutate the parents' tensors.
	Forward(ctx *Context) *tensors.Tensor

	// GradientForParent returns this Variable's contribution to the gradient of the parent at parentIdx,
	// shaped as the parent. It uses ctx.Gradient(self), the upstream gradient already accumulated for
	// this Variable, and the values in ctx.
	//
	// The returned tensor is only read by the engine.
	GradientForParent(ctx *Context, parentIdx int) *tensors.Tensor
}

// Base implements the bookkeeping part of a Variable: id, shape, parents and a name for printing.
// It should be embedded in Variable implementations, and created with NewBase.
type Base struct {
	id      VariableId
	name    string
	shape   shapes.Shape
	parents []Variable
}

// NewBase creates a Base with a new VariableId, for a Variable named name, with the given output shape and parents.
//
// It panics with a *shapes.ShapeError if the shape is invalid.
func NewBase(name string, shape shapes.Shape, parents ...Variable) Base {
	if !shape.Ok() {
		shapes.Panicf("%s: invalid output shape %s", name, shape)
	}
	b := Base{
		id:      VariableId(lastVariableId.Add(1)),
		name:    name,
		shape:   shape.Clone(),
		parents: parents,
	}
	for ii, parent := range parents {
		if parent == nil {
			exceptions.Panicf("%s: parent #%d is nil", name, ii)
		}
		if parent.Id() >= b.id {
			exceptions.Panicf("%s: parent #%d (%s) was not built before its consumer", name, ii, parent)
		}
	}
	return b
}

// Id implements Variable.
func (b *Base) Id() VariableId { return b.id }

// Shape implements Variable.
func (b *Base) Shape() shapes.Shape { return b.shape }

// Parents implements Variable.
func (b *Base) Parents() []Variable { return b.parents }

// Parent returns the parent at the given index.
func (b *Base) Parent(idx int) Variable { return b.parents[idx] }

// Dim returns the output dimension of the given axis.
func (b *Base) Dim(axis int) int { return b.shape.Dim(axis) }

// String implements fmt.Stringer.
func (b *Base) String() string {
	return fmt.Sprintf("#%d %s%s", b.id, b.name, b.shape)
}

// Build calls buildFn and returns the Variable it builds, converting a graph building
// panic (typically a *shapes.ShapeError) to an error.
func Build(buildFn func() Variable) (v Variable, err error) {
	err = exceptions.TryCatch[error](func() { v = buildFn() })
	if err != nil {
		return nil, err
	}
	return v, nil
}
