package optim

import (
	"fmt"
	"math"

	"lora_lib/nn"
)

// AdamConfig holds configuration for Adam optimizer
type AdamConfig struct {
	LearningRate float64
	Beta1        float64 // momentum decay
	Beta2        float64 // variance decay
	Epsilon      float64
	WeightDecay  float64 // L2 added to the gradient
}

// DefaultAdamConfig returns default Adam optimizer configuration
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

type adamState struct {
	m, v []float64
	step int
}

// Adam keeps first and second moment estimates per parameter, created on
// the parameter's first update.
type Adam struct {
	cfg   AdamConfig
	state map[*nn.Parameter]*adamState
}

func NewAdam(cfg AdamConfig) *Adam {
	return &Adam{cfg: cfg, state: make(map[*nn.Parameter]*adamState)}
}

func (a *Adam) Step(params []*nn.Parameter) error {
	c := a.cfg
	for _, p := range params {
		if !p.RequiresGrad {
			continue
		}
		n := len(p.Value.Data)
		if len(p.Grad.Data) != n {
			return fmt.Errorf("%s: gradient size %d, value size %d", p.Name, len(p.Grad.Data), n)
		}
		st, ok := a.state[p]
		if !ok {
			st = &adamState{m: make([]float64, n), v: make([]float64, n)}
			a.state[p] = st
		}
		st.step++
		bc1 := 1 - math.Pow(c.Beta1, float64(st.step))
		bc2 := 1 - math.Pow(c.Beta2, float64(st.step))
		for i, g := range p.Grad.Data {
			if c.WeightDecay != 0 {
				g += c.WeightDecay * p.Value.Data[i]
			}
			st.m[i] = c.Beta1*st.m[i] + (1-c.Beta1)*g
			st.v[i] = c.Beta2*st.v[i] + (1-c.Beta2)*g*g
			mHat := st.m[i] / bc1
			vHat := st.v[i] / bc2
			p.Value.Data[i] -= c.LearningRate * mHat / (math.Sqrt(vHat) + c.Epsilon)
		}
	}
	return nil
}

// Steps reports how many updates p has received.
func (a *Adam) Steps(p *nn.Parameter) int {
	if st, ok := a.state[p]; ok {
		return st.step
	}
	return 0
}
