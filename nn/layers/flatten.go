package layers

import (
	"fmt"

	"lora_lib/nn"
	"lora_lib/tensor"
)

// Flatten layer: reshapes [N, d1, d2, ...] to [N, d1*d2*...] without copying.
type Flatten struct{ inShape []int }

func NewFlatten() *Flatten { return &Flatten{} }

func (f *Flatten) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) == 0 {
		return nil, fmt.Errorf("Flatten: scalar input")
	}
	f.inShape = append(f.inShape[:0], x.Shape...)
	n := x.Shape[0]
	if n == 0 {
		return nil, fmt.Errorf("Flatten: empty batch")
	}
	return x.Reshape(n, len(x.Data)/n)
}

func (f *Flatten) Backward(g *tensor.Tensor) (*tensor.Tensor, error) {
	if f.inShape == nil {
		return nil, fmt.Errorf("Flatten: no cached shape for backward pass")
	}
	return g.Reshape(f.inShape...)
}

func (f *Flatten) Parameters() []*nn.Parameter { return nil }

func (f *Flatten) Tag() string {
	return "Flatten"
}
