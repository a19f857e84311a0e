package nn

import (
	"fmt"

	"lora_lib/tensor"
)

// Parameter is a named tensor with an accumulated gradient and a trainability flag.
type Parameter struct {
	Name         string
	Value        *tensor.Tensor
	Grad         *tensor.Tensor
	RequiresGrad bool
}

// NewParameter wraps value as a trainable parameter with a zero gradient.
func NewParameter(name string, value *tensor.Tensor) *Parameter {
	return &Parameter{
		Name:         name,
		Value:        value,
		Grad:         tensor.New(value.Shape...),
		RequiresGrad: true,
	}
}

// Numel returns the number of scalar elements held by the parameter.
func (p *Parameter) Numel() int { return p.Value.Numel() }

// ZeroGrad clears the accumulated gradient.
func (p *Parameter) ZeroGrad() {
	for i := range p.Grad.Data {
		p.Grad.Data[i] = 0
	}
}

// Accumulate adds g into the gradient. Frozen parameters ignore it.
func (p *Parameter) Accumulate(g *tensor.Tensor) error {
	if !p.RequiresGrad {
		return nil
	}
	if len(g.Data) != len(p.Grad.Data) {
		return fmt.Errorf("gradient for %s has %d elements, want %d", p.Name, len(g.Data), len(p.Grad.Data))
	}
	for i, v := range g.Data {
		p.Grad.Data[i] += v
	}
	return nil
}

// ZeroGrad clears the gradients of every parameter.
func ZeroGrad(params []*Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// Trainable filters params down to those with RequiresGrad set.
func Trainable(params []*Parameter) []*Parameter {
	var out []*Parameter
	for _, p := range params {
		if p.RequiresGrad {
			out = append(out, p)
		}
	}
	return out
}

// CountElements sums Numel over params.
func CountElements(params []*Parameter) int {
	n := 0
	for _, p := range params {
		n += p.Numel()
	}
	return n
}
