package layers

import (
	"fmt"
	"math"

	"lora_lib/nn"
	"lora_lib/tensor"
)

// activationFn pairs an elementwise function with its derivative evaluated at the input.
type activationFn struct {
	Name  string
	F     func(x float64) float64
	Deriv func(x float64) float64
}

// SupportedActivations lists the elementwise nonlinearities NewActivation accepts.
var SupportedActivations = map[string]activationFn{
	"ReLU": {
		Name: "ReLU",
		F: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return 0
		},
		Deriv: func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	},
	"Tanh": {
		Name: "Tanh",
		F:    math.Tanh,
		Deriv: func(x float64) float64 {
			t := math.Tanh(x)
			return 1 - t*t
		},
	},
}

// Activation is a parameter-free elementwise layer.
type Activation struct {
	fn        activationFn
	lastInput *tensor.Tensor
}

// NewActivation creates a new activation layer.
func NewActivation(name string) (*Activation, error) {
	fn, ok := SupportedActivations[name]
	if !ok {
		return nil, fmt.Errorf("unsupported activation: %s", name)
	}
	return &Activation{fn: fn}, nil
}

func (a *Activation) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	a.lastInput = x
	y := tensor.New(x.Shape...)
	for i, v := range x.Data {
		y.Data[i] = a.fn.F(v)
	}
	return y, nil
}

func (a *Activation) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	input := a.lastInput
	if input == nil {
		return nil, fmt.Errorf("no cached input for backward pass")
	}
	if len(gradOut.Data) != len(input.Data) {
		return nil, fmt.Errorf("%s: gradient has %d elements, input had %d", a.fn.Name, len(gradOut.Data), len(input.Data))
	}
	gradIn := tensor.New(input.Shape...)
	for i, v := range input.Data {
		gradIn.Data[i] = gradOut.Data[i] * a.fn.Deriv(v)
	}
	return gradIn, nil
}

func (a *Activation) Parameters() []*nn.Parameter { return nil }

func (a *Activation) Tag() string { return a.fn.Name }
