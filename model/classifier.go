// Package model holds the MNIST digit classifier that the low-rank
// adaptation is applied to.
package model

import (
	"fmt"
	"strings"

	"golang.org/x/exp/rand"

	"lora_lib/nn"
	"lora_lib/nn/layers"
	"lora_lib/tensor"
)

const (
	InputDim   = 28 * 28
	NumClasses = 10
)

// Classifier is Flatten → linear1 → ReLU → linear2 → ReLU → linear3.
type Classifier struct {
	nn.Sequential

	Linear1 *layers.Linear
	Linear2 *layers.Linear
	Linear3 *layers.Linear
}

// NewClassifier builds the network with the given hidden widths and draws
// every weight and bias from U(-1/√in, 1/√in) using src.
func NewClassifier(hidden1, hidden2 int, src rand.Source) (*Classifier, error) {
	if hidden1 <= 0 || hidden2 <= 0 {
		return nil, fmt.Errorf("hidden sizes must be positive, got %d and %d", hidden1, hidden2)
	}
	c := &Classifier{
		Linear1: layers.NewLinear("linear1", InputDim, hidden1),
		Linear2: layers.NewLinear("linear2", hidden1, hidden2),
		Linear3: layers.NewLinear("linear3", hidden2, NumClasses),
	}
	for _, l := range c.Linears() {
		l.InitUniform(src)
	}
	relu1, err := layers.NewActivation("ReLU")
	if err != nil {
		return nil, err
	}
	relu2, _ := layers.NewActivation("ReLU")
	c.Layers = []nn.Module{layers.NewFlatten(), c.Linear1, relu1, c.Linear2, relu2, c.Linear3}
	return c, nil
}

// Linears returns the three linear layers in forward order.
func (c *Classifier) Linears() []*layers.Linear {
	return []*layers.Linear{c.Linear1, c.Linear2, c.Linear3}
}

// Hidden runs the network up to (and including) the second ReLU, returning
// the activation that feeds the output layer.
func (c *Classifier) Hidden(x *tensor.Tensor) (*tensor.Tensor, error) {
	head := nn.Sequential{Layers: c.Layers[:len(c.Layers)-1]}
	return head.Forward(x)
}

// Summary lists the layers in forward order, e.g. "Flatten -> Linear_784_1000 -> ReLU -> ...".
func (c *Classifier) Summary() string {
	tags := make([]string, 0, len(c.Layers))
	for _, l := range c.Layers {
		if t, ok := l.(interface{ Tag() string }); ok {
			tags = append(tags, t.Tag())
		}
	}
	return strings.Join(tags, " -> ")
}
