// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizers

import (
	"math"

	"github.com/gomlx/graphsage/pkg/core/autodiff"
	"github.com/gomlx/graphsage/pkg/core/tensors"
)

// AdamDefaultLearningRate is used by Adam if no learning rate is set.
const AdamDefaultLearningRate = 0.001

// Adam optimization is a stochastic gradient descent method that is based on adaptive estimation of first-order and
// second-order moments, see [Kingma et al., 2014](http://arxiv.org/abs/1412.6980).
//
// It returns a configuration object that can be used to set its parameters. Once configured call Done, and it
// will return an optimizers.Interface.
func Adam() *AdamConfig {
	return &AdamConfig{
		learningRate: AdamDefaultLearningRate,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-7,
	}
}

// AdamConfig holds the configuration for an Adam optimizer, create it with Adam(), and once configured
// call Done to create an Adam based optimizers.Interface.
type AdamConfig struct {
	learningRate float64
	beta1, beta2 float64
	epsilon      float64
	adamax       bool    // Works as Adamax.
	weightDecay  float64 // Works as AdamW.
}

// LearningRate sets the base learning rate. Values <= 0 are ignored, and the default is AdamDefaultLearningRate.
func (c *AdamConfig) LearningRate(value float64) *AdamConfig {
	if value > 0 {
		c.learningRate = value
	}
	return c
}

// Betas sets the two moving averages constants (exponential decays). They default to 0.9 and 0.999.
func (c *AdamConfig) Betas(beta1, beta2 float64) *AdamConfig {
	c.beta1, c.beta2 = beta1, beta2
	return c
}

// Epsilon used on the denominator as a small constant for stability.
func (c *AdamConfig) Epsilon(epsilon float64) *AdamConfig {
	c.epsilon = epsilon
	return c
}

// Adamax configure Adam to use a L-infinity (== max, which gives the name) for
// the second moment, instead of L2, as described in the same Adam paper.
func (c *AdamConfig) Adamax() *AdamConfig {
	c.adamax = true
	return c
}

// WeightDecay configure optimizer to work as AdamW, with the given static weight decay.
func (c *AdamConfig) WeightDecay(weightDecay float64) *AdamConfig {
	c.weightDecay = weightDecay
	return c
}

// Done will finish the configuration and construct an optimizers.Interface that implements Adam.
func (c *AdamConfig) Done() Interface {
	return &adam{config: *c, moments: make(map[autodiff.VariableId]*adamMoments)}
}

// adamMoments are the moving averages of the gradients of one weights variable.
type adamMoments struct {
	m1, m2 *tensors.Tensor
}

// adam implements the Adam algorithm as an optimizers.Interface.
type adam struct {
	config  AdamConfig
	step    int
	moments map[autodiff.VariableId]*adamMoments
}

// Apply implements Interface.
func (o *adam) Apply(weights []*autodiff.Weights, gradients []*tensors.Tensor) error {
	if err := checkGradients(weights, gradients); err != nil {
		return err
	}
	c := &o.config
	o.step++
	debias1 := 1 - math.Pow(c.beta1, float64(o.step))
	debias2 := 1 - math.Pow(c.beta2, float64(o.step))
	for ii, w := range weights {
		moments, found := o.moments[w.Id()]
		if !found {
			moments = &adamMoments{m1: tensors.Zeros(w.Shape()), m2: tensors.Zeros(w.Shape())}
			o.moments[w.Id()] = moments
		}
		values, m1, m2 := w.Value().Flat(), moments.m1.Flat(), moments.m2.Flat()
		for jj, g := range gradients[ii].Flat() {
			m1[jj] = c.beta1*m1[jj] + (1-c.beta1)*g
			var denominator float64
			if c.adamax {
				m2[jj] = max(c.beta2*m2[jj], math.Abs(g))
				denominator = m2[jj] + c.epsilon
			} else {
				m2[jj] = c.beta2*m2[jj] + (1-c.beta2)*g*g
				denominator = math.Sqrt(m2[jj]/debias2) + c.epsilon
			}
			delta := (m1[jj] / debias1) / denominator
			if c.weightDecay > 0 {
				delta += c.weightDecay * values[jj]
			}
			values[jj] -= c.learningRate * delta
		}
	}
	return nil
}

// Clear implements Interface: it resets the moments and the step count.
func (o *adam) Clear() {
	o.step = 0
	clear(o.moments)
}
