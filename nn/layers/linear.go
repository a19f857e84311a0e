package layers

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"lora_lib/nn"
	"lora_lib/tensor"
)

// WeightParametrization derives a layer's effective weight from its stored
// weight on every access. The stored weight is never written through it.
type WeightParametrization interface {
	// Materialize returns the weight the layer should use for w.
	Materialize(w *tensor.Tensor) (*tensor.Tensor, error)
	// Backward receives dL/dW_eff and accumulates into the parametrization's own parameters.
	Backward(gradEffective *tensor.Tensor) error
	Parameters() []*nn.Parameter
}

// Linear is a fully-connected layer: y = x·Wᵀ + B for x of shape [N, inDim].
type Linear struct {
	Name string
	W    *nn.Parameter // [outDim, inDim]
	B    *nn.Parameter // [outDim]

	param WeightParametrization

	lastInput  *tensor.Tensor
	lastWeight *tensor.Tensor
}

// NewLinear(name, inDim→outDim) allocates zero W,B named "<name>.weight" and "<name>.bias".
func NewLinear(name string, inDim, outDim int) *Linear {
	return &Linear{
		Name: name,
		W:    nn.NewParameter(name+".weight", tensor.New(outDim, inDim)),
		B:    nn.NewParameter(name+".bias", tensor.New(outDim)),
	}
}

// InitUniform draws W and B from U(-1/√inDim, 1/√inDim).
func (l *Linear) InitUniform(src rand.Source) {
	bound := 1 / math.Sqrt(float64(l.InDim()))
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
	for i := range l.W.Value.Data {
		l.W.Value.Data[i] = dist.Rand()
	}
	for i := range l.B.Value.Data {
		l.B.Value.Data[i] = dist.Rand()
	}
}

func (l *Linear) InDim() int  { return l.W.Value.Shape[1] }
func (l *Linear) OutDim() int { return l.W.Value.Shape[0] }

// Register binds p to the weight. A layer holds at most one parametrization.
func (l *Linear) Register(p WeightParametrization) error {
	if l.param != nil {
		return fmt.Errorf("%s: weight already parametrized", l.Name)
	}
	l.param = p
	return nil
}

// Parametrization returns the bound parametrization, or nil.
func (l *Linear) Parametrization() WeightParametrization { return l.param }

// EffectiveWeight materializes the weight used by Forward.
func (l *Linear) EffectiveWeight() (*tensor.Tensor, error) {
	if l.param == nil {
		return l.W.Value, nil
	}
	w, err := l.param.Materialize(l.W.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name, err)
	}
	return w, nil
}

// Forward computes y = x·W_effᵀ + B. A 1-D x is treated as a batch of one.
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) == 1 {
		x = &tensor.Tensor{Data: x.Data, Shape: []int{1, x.Shape[0]}}
	}
	if len(x.Shape) != 2 || x.Shape[1] != l.InDim() {
		return nil, fmt.Errorf("%s: expected [N, %d] input, got %v", l.Name, l.InDim(), x.Shape)
	}
	w, err := l.EffectiveWeight()
	if err != nil {
		return nil, err
	}
	xm, _ := x.Matrix()
	wm, _ := w.Matrix()
	out := tensor.New(x.Shape[0], l.OutDim())
	om, _ := out.Matrix()
	om.Mul(xm, wm.T())

	// Broadcast bias across batch
	outDim := l.OutDim()
	for i := 0; i < x.Shape[0]; i++ {
		row := out.Data[i*outDim : (i+1)*outDim]
		for j := range row {
			row[j] += l.B.Value.Data[j]
		}
	}
	l.lastInput = x
	l.lastWeight = w
	return out, nil
}

// Backward accumulates dL/dW_eff into W (when trainable) and the
// parametrization, dL/dB into B, and returns dL/dx = gradOut·W_eff.
func (l *Linear) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if l.lastInput == nil {
		return nil, fmt.Errorf("%s: no cached input for backward pass", l.Name)
	}
	n := l.lastInput.Shape[0]
	if len(gradOut.Shape) != 2 || gradOut.Shape[0] != n || gradOut.Shape[1] != l.OutDim() {
		return nil, fmt.Errorf("%s: expected [%d, %d] gradient, got %v", l.Name, n, l.OutDim(), gradOut.Shape)
	}
	gm, _ := gradOut.Matrix()
	xm, _ := l.lastInput.Matrix()
	wm, _ := l.lastWeight.Matrix()

	gradW := tensor.New(l.OutDim(), l.InDim())
	gwm, _ := gradW.Matrix()
	gwm.Mul(gm.T(), xm)
	if err := l.W.Accumulate(gradW); err != nil {
		return nil, err
	}
	if l.param != nil {
		if err := l.param.Backward(gradW); err != nil {
			return nil, fmt.Errorf("%s: %w", l.Name, err)
		}
	}

	gradB := tensor.New(l.OutDim())
	for j := range gradB.Data {
		gradB.Data[j] = mat.Sum(gm.ColView(j))
	}
	if err := l.B.Accumulate(gradB); err != nil {
		return nil, err
	}

	gradIn := tensor.New(n, l.InDim())
	gim, _ := gradIn.Matrix()
	gim.Mul(gm, wm)
	return gradIn, nil
}

// Parameters returns W, B and then any parametrization parameters.
func (l *Linear) Parameters() []*nn.Parameter {
	params := []*nn.Parameter{l.W, l.B}
	if l.param != nil {
		params = append(params, l.param.Parameters()...)
	}
	return params
}

func (l *Linear) Tag() string {
	return fmt.Sprintf("Linear_%d_%d", l.InDim(), l.OutDim())
}
