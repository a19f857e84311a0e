package lora

import (
	"fmt"
	"io"
	"strconv"

	"lora_lib/nn/layers"
)

// LayerCount records the shapes that went into one layer's counts.
type LayerCount struct {
	Name   string
	Weight []int
	Bias   []int
	A      []int
	B      []int
}

// Report is the parameter budget of a set of LoRA-bound layers.
type Report struct {
	Layers []LayerCount
	Base   int // weights + biases
	LoRA   int // A + B factors
}

// Combined is Base + LoRA.
func (r Report) Combined() int { return r.Base + r.LoRA }

// Overhead is LoRA as a percentage of Base.
func (r Report) Overhead() float64 {
	if r.Base == 0 {
		return 0
	}
	return float64(r.LoRA) / float64(r.Base) * 100
}

// Account counts base and low-rank elements over linears. Every layer must
// carry a LoRA binding.
func Account(linears []*layers.Linear) (Report, error) {
	var r Report
	for _, l := range linears {
		p, ok := Bound(l)
		if !ok {
			return Report{}, fmt.Errorf("%s: no low-rank binding", l.Name)
		}
		r.Layers = append(r.Layers, LayerCount{
			Name:   l.Name,
			Weight: l.W.Value.Shape,
			Bias:   l.B.Value.Shape,
			A:      p.A.Value.Shape,
			B:      p.B.Value.Shape,
		})
		r.Base += l.W.Numel() + l.B.Numel()
		r.LoRA += p.A.Numel() + p.B.Numel()
	}
	return r, nil
}

// Print writes the per-layer shapes and totals.
func (r Report) Print(w io.Writer) {
	for i, l := range r.Layers {
		fmt.Fprintf(w, "Layer %d: W: %v + B: %v + Lora_A: %v + Lora_B: %v\n", i+1, l.Weight, l.Bias, l.A, l.B)
	}
	fmt.Fprintf(w, "Total number of parameters (original): %s\n", groupThousands(r.Base))
	fmt.Fprintf(w, "Total number of parameters (original + LoRA): %s\n", groupThousands(r.Combined()))
	fmt.Fprintf(w, "Parameters introduced by LoRA: %s\n", groupThousands(r.LoRA))
	fmt.Fprintf(w, "Parameters increment: %.3f%%\n", r.Overhead())
}

// groupThousands formats n with comma separators, e.g. 2807010 -> "2,807,010".
func groupThousands(n int) string {
	s := strconv.Itoa(n)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + s
}
