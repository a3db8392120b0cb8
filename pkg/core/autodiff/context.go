// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package autodiff

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphsage/pkg/core/shapes"
	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Context (the computation context) orchestrates one forward pass and one backward pass over a graph
// rooted at a chosen Variable. It owns the caches of computed values and accumulated gradients.
//
// A Context serves exactly one forward+backward cycle and it is not safe for concurrent use.
// To evaluate many graphs in parallel, use one Context per graph: the Weights they share are only read.
type Context struct {
	root Variable

	// order holds the Variables reachable from root, sorted by VariableId, which is a dependency order.
	order []Variable

	// slots maps a Variable to its position in order, and in the caches below.
	slots map[VariableId]int

	// data holds the value of each Variable in order, written once in Forward.
	data []*tensors.Tensor

	// gradients holds the accumulated gradient of each Variable in order. An entry is nil until
	// some consumer contributes to it.
	gradients []*tensors.Tensor

	backwardDone bool
}

// NewContext creates a new Context, to be used for one forward+backward cycle.
func NewContext() *Context {
	return &Context{}
}

// NotComputedError is returned (or panicked) when the value or gradient of a Variable is requested
// before the corresponding pass reached it. It indicates a protocol violation by the caller.
type NotComputedError struct {
	// Variable whose value was requested.
	Variable Variable

	// Pass is "forward" or "backward".
	Pass string
}

// Error implements the error interface.
func (e *NotComputedError) Error() string {
	return fmt.Sprintf("%s pass has not computed %s", e.Pass, e.Variable)
}

func notComputedErrorf(v Variable, pass string) error {
	return errors.WithStack(&NotComputedError{Variable: v, Pass: pass})
}

// IsNotComputedError returns whether err is or wraps a *NotComputedError.
func IsNotComputedError(err error) bool {
	var notComputed *NotComputedError
	return errors.As(err, &notComputed)
}

// Root returns the root of the last forward pass, or nil if Forward has not been called.
func (ctx *Context) Root() Variable { return ctx.root }

// NumVariables returns the number of Variables evaluated by the last forward pass.
func (ctx *Context) NumVariables() int { return len(ctx.order) }

// Forward evaluates all Variables reachable from root, in dependency order, and returns the value of root.
//
// Each Variable is evaluated exactly once, even if reachable through multiple paths.
// Calling Forward again resets the Context, discarding previous values and gradients.
func (ctx *Context) Forward(root Variable) (output *tensors.Tensor, err error) {
	err = exceptions.TryCatch[error](func() { output = ctx.MustForward(root) })
	if err != nil {
		return nil, errors.WithMessagef(err, "forward pass from %s failed", root)
	}
	return output, nil
}

// MustForward is like Forward, but panics on error.
func (ctx *Context) MustForward(root Variable) *tensors.Tensor {
	ctx.root = root
	ctx.order = reachableFrom(root)
	ctx.slots = make(map[VariableId]int, len(ctx.order))
	for slot, v := range ctx.order {
		ctx.slots[v.Id()] = slot
	}
	ctx.data = make([]*tensors.Tensor, len(ctx.order))
	ctx.gradients = nil
	ctx.backwardDone = false

	for slot, v := range ctx.order {
		value := v.Forward(ctx)
		if value == nil || !value.Shape().Equal(v.Shape()) {
			var got shapes.Shape
			if value != nil {
				got = value.Shape()
			}
			shapes.Panicf("forward of %s returned shape %s, but it was declared with shape %s", v, got, v.Shape())
		}
		ctx.data[slot] = value
		if klog.V(3).Enabled() {
			klog.Infof("forward: %s", v)
		}
	}
	if klog.V(2).Enabled() {
		klog.Infof("forward pass from %s: evaluated %d variables", root, len(ctx.order))
	}
	return ctx.data[len(ctx.order)-1]
}

// reachableFrom returns all the Variables reachable from root (including root), sorted in dependency
// order. Since a Variable's id is larger than any of its parents' ids, sorting by id is enough, and root
// is always the last.
func reachableFrom(root Variable) []Variable {
	visited := make(map[VariableId]bool)
	var order []Variable
	stack := []Variable{root}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[v.Id()] {
			continue
		}
		visited[v.Id()] = true
		order = append(order, v)
		for _, parent := range v.Parents() {
			if !visited[parent.Id()] {
				stack = append(stack, parent)
			}
		}
	}
	slices.SortFunc(order, func(a, b Variable) int {
		return cmp.Compare(a.Id(), b.Id())
	})
	return order
}

// Backward propagates gradients from the root of the last forward pass, seeded with ones.
// After it returns, Gradient(v) holds the gradient of the sum of root's elements with respect to v.
//
// It returns a *NotComputedError if Forward was not called with root first.
func (ctx *Context) Backward(root Variable) error {
	return ctx.BackwardWith(root, nil)
}

// BackwardWith is like Backward, but the root gradient is seeded with upstream, an externally supplied
// gradient (shaped as root), to compose the graph with a larger computation (e.g. a loss).
// If upstream is nil, it is seeded with ones.
func (ctx *Context) BackwardWith(root Variable, upstream *tensors.Tensor) error {
	err := exceptions.TryCatch[error](func() { ctx.MustBackwardWith(root, upstream) })
	if err != nil {
		return errors.WithMessagef(err, "backward pass from %s failed", root)
	}
	return nil
}

// MustBackward is like Backward, but panics on error.
func (ctx *Context) MustBackward(root Variable) {
	ctx.MustBackwardWith(root, nil)
}

// MustBackwardWith is like BackwardWith, but panics on error.
func (ctx *Context) MustBackwardWith(root Variable, upstream *tensors.Tensor) {
	rootValue := ctx.MustData(root)
	if ctx.root == nil || ctx.root.Id() != root.Id() {
		exceptions.Panicf("backward from %s, but the last forward pass was rooted at %s", root, ctx.root)
	}
	if upstream == nil {
		upstream = rootValue.OnesLike()
	} else if !upstream.Shape().Equal(root.Shape()) {
		shapes.Panicf("backward from %s: upstream gradient has shape %s", root, upstream.Shape())
	}

	numVars := len(ctx.order)
	ctx.gradients = make([]*tensors.Tensor, numVars)
	ctx.gradients[numVars-1] = upstream.Clone()

	// Loop from the root backwards: when a Variable is reached all its consumers (which have larger
	// ids) have already pushed their contributions, so its gradient is complete.
	for slot := numVars - 1; slot >= 0; slot-- {
		v := ctx.order[slot]
		if ctx.gradients[slot] == nil {
			continue
		}
		for parentIdx, parent := range v.Parents() {
			contribution := v.GradientForParent(ctx, parentIdx)
			if contribution == nil || !contribution.Shape().Equal(parent.Shape()) {
				var got shapes.Shape
				if contribution != nil {
					got = contribution.Shape()
				}
				shapes.Panicf("gradient of %s for parent #%d (%s) has shape %s", v, parentIdx, parent, got)
			}
			parentSlot := ctx.slots[parent.Id()]
			if ctx.gradients[parentSlot] == nil {
				ctx.gradients[parentSlot] = tensors.Zeros(parent.Shape())
			}
			ctx.gradients[parentSlot].AddInPlace(contribution)
		}
		if klog.V(3).Enabled() {
			klog.Infof("backward: %s", v)
		}
	}
	ctx.backwardDone = true
}

// Data returns the value computed for v by the last forward pass.
// It returns a *NotComputedError if the forward pass didn't reach v.
func (ctx *Context) Data(v Variable) (*tensors.Tensor, error) {
	slot, found := ctx.slots[v.Id()]
	if !found || ctx.data[slot] == nil {
		return nil, notComputedErrorf(v, "forward")
	}
	return ctx.data[slot], nil
}

// MustData is like Data, but panics on error. Variable implementations use it to read the value of
// their parents and of themselves.
func (ctx *Context) MustData(v Variable) *tensors.Tensor {
	value, err := ctx.Data(v)
	if err != nil {
		panic(err)
	}
	return value
}

// Gradient returns the gradient accumulated for v. If v received no contribution -- e.g. it is not
// reachable from the root of the backward pass -- it returns a tensor of zeros shaped as v.
func (ctx *Context) Gradient(v Variable) *tensors.Tensor {
	if slot, found := ctx.slots[v.Id()]; found && ctx.gradients != nil && ctx.gradients[slot] != nil {
		return ctx.gradients[slot]
	}
	return tensors.Zeros(v.Shape())
}

// BackwardDone returns whether a backward pass completed since the last forward pass.
func (ctx *Context) BackwardDone() bool { return ctx.backwardDone }

// WeightsGradients returns the gradients accumulated for each of the weights, in the same order.
func (ctx *Context) WeightsGradients(weights []*Weights) []*tensors.Tensor {
	grads := make([]*tensors.Tensor, len(weights))
	for ii, w := range weights {
		grads[ii] = ctx.Gradient(w)
	}
	return grads
}
