package lora

import (
	"fmt"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"lora_lib/nn"
	"lora_lib/nn/layers"
	"lora_lib/tensor"
)

// Marker is the substring that identifies low-rank factor parameter names.
const Marker = "lora"

// Parametrization is a low-rank additive correction for one weight tensor.
type Parametrization struct {
	A       *nn.Parameter // [rank, cols]
	B       *nn.Parameter // [rows, rank]
	Scale   float64
	Enabled bool
}

// New builds the correction for a (rows, cols) weight named name.
// A ~ N(0, 1), B = 0, Scale = alpha/rank, enabled.
func New(name string, rows, cols, rank int, alpha float64, src rand.Source) (*Parametrization, error) {
	if rank <= 0 {
		return nil, fmt.Errorf("rank must be positive, got %d", rank)
	}
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid weight shape (%d, %d)", rows, cols)
	}
	a := tensor.New(rank, cols)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	for i := range a.Data {
		a.Data[i] = normal.Rand()
	}
	return &Parametrization{
		A:       nn.NewParameter(name+".lora_A", a),
		B:       nn.NewParameter(name+".lora_B", tensor.New(rows, rank)),
		Scale:   alpha / float64(rank),
		Enabled: true,
	}, nil
}

// Rank is the bottleneck width shared by A and B.
func (p *Parametrization) Rank() int { return p.A.Value.Shape[0] }

// Delta returns the unscaled product B·A.
func (p *Parametrization) Delta() (*tensor.Tensor, error) {
	return tensor.MatMul(p.B.Value, p.A.Value)
}

// Materialize returns w unchanged when disabled, otherwise a new tensor
// holding w + Scale·reshape(B·A, shape(w)).
func (p *Parametrization) Materialize(w *tensor.Tensor) (*tensor.Tensor, error) {
	if !p.Enabled {
		return w, nil
	}
	delta, err := p.Delta()
	if err != nil {
		return nil, err
	}
	delta, err = delta.Reshape(w.Shape...)
	if err != nil {
		return nil, fmt.Errorf("low-rank correction does not fit weight: %w", err)
	}
	out := w.Clone()
	for i, d := range delta.Data {
		out.Data[i] += d * p.Scale
	}
	return out, nil
}

// Backward turns G = dL/dW_eff into dL/dB = Scale·G·Aᵀ and dL/dA = Scale·Bᵀ·G.
// Nothing flows while disabled.
func (p *Parametrization) Backward(g *tensor.Tensor) error {
	if !p.Enabled || (!p.A.RequiresGrad && !p.B.RequiresGrad) {
		return nil
	}
	rows, rank := p.B.Value.Shape[0], p.B.Value.Shape[1]
	cols := p.A.Value.Shape[1]
	if g.Numel() != rows*cols {
		return fmt.Errorf("gradient has %d elements, weight has %d", g.Numel(), rows*cols)
	}
	gm := mat.NewDense(rows, cols, g.Data)
	am, _ := p.A.Value.Matrix()
	bm, _ := p.B.Value.Matrix()

	gradB := tensor.New(rows, rank)
	gbm, _ := gradB.Matrix()
	gbm.Mul(gm, am.T())
	gbm.Scale(p.Scale, gbm)

	gradA := tensor.New(rank, cols)
	gam, _ := gradA.Matrix()
	gam.Mul(bm.T(), gm)
	gam.Scale(p.Scale, gam)

	if err := p.A.Accumulate(gradA); err != nil {
		return err
	}
	return p.B.Accumulate(gradB)
}

// Parameters returns the factors A and B.
func (p *Parametrization) Parameters() []*nn.Parameter {
	return []*nn.Parameter{p.A, p.B}
}

// Register binds an independent parametrization to each layer's weight.
func Register(linears []*layers.Linear, rank int, alpha float64, src rand.Source) ([]*Parametrization, error) {
	out := make([]*Parametrization, 0, len(linears))
	for _, l := range linears {
		p, err := New(l.W.Name, l.OutDim(), l.InDim(), rank, alpha, src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.Name, err)
		}
		if err := l.Register(p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Bound returns the LoRA parametrization attached to l, if any.
func Bound(l *layers.Linear) (*Parametrization, bool) {
	p, ok := l.Parametrization().(*Parametrization)
	return p, ok
}

// SetEnabled flips every LoRA binding on the given layers.
func SetEnabled(linears []*layers.Linear, enabled bool) {
	for _, l := range linears {
		if p, ok := Bound(l); ok {
			p.Enabled = enabled
		}
	}
}

// Freeze marks every parameter whose name lacks Marker as non-trainable and
// returns the frozen names in order.
func Freeze(params []*nn.Parameter) []string {
	var frozen []string
	for _, p := range params {
		if strings.Contains(p.Name, Marker) {
			continue
		}
		p.RequiresGrad = false
		frozen = append(frozen, p.Name)
	}
	return frozen
}
