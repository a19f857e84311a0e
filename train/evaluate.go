package train

import (
	"context"
	"fmt"
	"io"
	"math"

	"lora_lib/datasets/mnist"
	"lora_lib/nn"
)

// Result holds the outcome of one evaluation pass.
type Result struct {
	Correct int
	Total   int
	// Wrong counts misclassified samples by their true label.
	Wrong [mnist.NumClasses]int
}

// Accuracy is Correct/Total rounded to three decimals.
func (r Result) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return math.Round(float64(r.Correct)/float64(r.Total)*1000) / 1000
}

// Print writes the accuracy line followed by one wrong-count line per digit.
func (r Result) Print(w io.Writer) {
	fmt.Fprintf(w, "Accuracy: %.3f\n", r.Accuracy())
	for digit, n := range r.Wrong {
		fmt.Fprintf(w, "wrong counts for the digit %d: %d\n", digit, n)
	}
}

// Evaluate runs m over every batch of loader without touching gradients.
// The prediction is the first index of the largest logit.
func Evaluate(ctx context.Context, loader *mnist.Loader, m nn.Module, out io.Writer) (Result, error) {
	var r Result
	if out == nil {
		out = io.Discard
	}
	bar := newBar(out, loader.NumBatches(), "Testing")
	batches := loader.Epoch()
	for {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		x, y, ok := batches.Next()
		if !ok {
			break
		}
		logits, err := m.Forward(x)
		if err != nil {
			return r, fmt.Errorf("evaluate: %w", err)
		}
		for i, pred := range nn.Argmax(logits) {
			if pred == y[i] {
				r.Correct++
			} else {
				r.Wrong[y[i]]++
			}
			r.Total++
		}
		bar.Add(1)
	}
	if err := batches.Err(); err != nil {
		return r, err
	}
	bar.Finish()
	fmt.Fprintln(out)
	return r, nil
}
