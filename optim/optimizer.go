// Package optim updates trainable parameters from their accumulated gradients.
// Parameters with RequiresGrad unset are never touched.
package optim

import (
	"fmt"

	"lora_lib/nn"
)

// Optimizer applies one update to params.
type Optimizer interface {
	Step(params []*nn.Parameter) error
}

// New builds an optimizer by name ("adam" or "sgd").
func New(name string, learningRate float64) (Optimizer, error) {
	switch name {
	case "adam":
		cfg := DefaultAdamConfig()
		cfg.LearningRate = learningRate
		return NewAdam(cfg), nil
	case "sgd":
		return &SGD{LearningRate: learningRate}, nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

// SGD is plain gradient descent: p -= lr * grad.
type SGD struct {
	LearningRate float64
}

func (s *SGD) Step(params []*nn.Parameter) error {
	for _, p := range params {
		if !p.RequiresGrad {
			continue
		}
		if len(p.Grad.Data) != len(p.Value.Data) {
			return fmt.Errorf("%s: gradient size %d, value size %d", p.Name, len(p.Grad.Data), len(p.Value.Data))
		}
		for i, g := range p.Grad.Data {
			p.Value.Data[i] -= s.LearningRate * g
		}
	}
	return nil
}
