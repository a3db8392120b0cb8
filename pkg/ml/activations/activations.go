// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package activations implements several common activations as computation graph Variables, and
// includes the Activation interface used by aggregators to apply a nonlinearity chosen by the caller.
//
// There is also FromName to convert an activation name (string) to its Type. Type itself implements
// Activation.
package activations

import (
	"math"
	"strings"

	"github.com/gomlx/graphsage/pkg/core/autodiff"
	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Activation applies an element-wise nonlinearity to a Variable, returning a new Variable.
type Activation interface {
	Apply(x autodiff.Variable) autodiff.Variable
}

// Type is an enum for the supported activation functions.
//
// It is converted to snake-format strings (e.g.: TypeLeakyRelu -> "leaky_relu"), and can be converted
// from string by using FromName.
type Type int

const (
	TypeNone Type = iota
	TypeRelu
	TypeSigmoid
	TypeLeakyRelu
	TypeTanh
)

var typeNames = map[Type]string{
	TypeNone:      "none",
	TypeRelu:      "relu",
	TypeSigmoid:   "sigmoid",
	TypeLeakyRelu: "leaky_relu",
	TypeTanh:      "tanh",
}

// TypeValues returns all valid activation types.
func TypeValues() []Type {
	return []Type{TypeNone, TypeRelu, TypeSigmoid, TypeLeakyRelu, TypeTanh}
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if name, found := typeNames[t]; found {
		return name
	}
	return "Type(invalid)"
}

// FromName converts the name of an activation to its type.
// An empty string is converted to TypeNone.
func FromName(activationName string) (Type, error) {
	if activationName == "" {
		return TypeNone, nil
	}
	name := strings.ToLower(activationName)
	for t, tName := range typeNames {
		if tName == name {
			return t, nil
		}
	}
	return TypeNone, errors.Errorf("unknown activation name %q, valid values are %v", activationName, TypeValues())
}

// Apply the activation to x. It implements the Activation interface.
// The TypeNone activation returns x itself.
func (t Type) Apply(x autodiff.Variable) autodiff.Variable {
	switch t {
	case TypeNone:
		return x
	case TypeRelu:
		return Relu(x)
	case TypeSigmoid:
		return Sigmoid(x)
	case TypeLeakyRelu:
		return LeakyRelu(x)
	case TypeTanh:
		return Tanh(x)
	default:
		panic(errors.Errorf("invalid activation type %d", int(t)))
	}
}

// elementwise is a Variable that applies fn to each element of its only parent.
type elementwise struct {
	autodiff.Base
	fn func(x float64) float64

	// derivative of fn at x, where y = fn(x).
	derivative func(x, y float64) float64
}

func newElementwise(name string, x autodiff.Variable, fn func(x float64) float64, derivative func(x, y float64) float64) autodiff.Variable {
	return &elementwise{
		Base:       autodiff.NewBase(name, x.Shape(), x),
		fn:         fn,
		derivative: derivative,
	}
}

// Forward implements autodiff.Variable.
func (op *elementwise) Forward(ctx *autodiff.Context) *tensors.Tensor {
	x := ctx.MustData(op.Parent(0))
	output := x.ZerosLike()
	outFlat := output.Flat()
	for ii, v := range x.Flat() {
		outFlat[ii] = op.fn(v)
	}
	return output
}

// GradientForParent implements autodiff.Variable.
func (op *elementwise) GradientForParent(ctx *autodiff.Context, _ int) *tensors.Tensor {
	xFlat := ctx.MustData(op.Parent(0)).Flat()
	yFlat := ctx.MustData(op).Flat()
	dOut := ctx.Gradient(op)
	dX := dOut.ZerosLike()
	dXFlat := dX.Flat()
	for ii, g := range dOut.Flat() {
		dXFlat[ii] = g * op.derivative(xFlat[ii], yFlat[ii])
	}
	return dX
}

// Relu activation function. It returns Max(x, 0), and is commonly used as an activation function in neural networks.
// Its gradient at 0 is taken to be 0.
func Relu(x autodiff.Variable) autodiff.Variable {
	return newElementwise("Relu", x,
		func(x float64) float64 { return max(x, 0) },
		func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		})
}

// LeakyReluAlpha is the slope used by LeakyRelu for negative values.
const LeakyReluAlpha = 0.3

// LeakyRelu activation function. It allows a small gradient when the unit is not active (x < 0).
//
// It returns `x if x >= 0; alpha*x if x < 0`, with alpha fixed at LeakyReluAlpha.
func LeakyRelu(x autodiff.Variable) autodiff.Variable {
	return newElementwise("LeakyRelu", x,
		func(x float64) float64 {
			if x >= 0 {
				return x
			}
			return LeakyReluAlpha * x
		},
		func(x, _ float64) float64 {
			if x >= 0 {
				return 1
			}
			return LeakyReluAlpha
		})
}

// Sigmoid returns 1/(1+exp(-x)).
func Sigmoid(x autodiff.Variable) autodiff.Variable {
	return newElementwise("Sigmoid", x,
		func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
		func(_, y float64) float64 { return y * (1 - y) })
}

// Tanh returns the hyperbolic tangent of x.
func Tanh(x autodiff.Variable) autodiff.Variable {
	return newElementwise("Tanh", x,
		math.Tanh,
		func(_, y float64) float64 { return 1 - y*y })
}
