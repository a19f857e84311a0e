package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"lora_lib/tensor"
)

type CrossEntropyLoss struct{}

// Forward returns the mean cross-entropy of logits [N, C] against labels,
// together with the gradient of that mean with respect to the logits.
func (c *CrossEntropyLoss) Forward(logits *tensor.Tensor, labels []int) (float64, *tensor.Tensor, error) {
	if len(logits.Shape) != 2 {
		return 0, nil, fmt.Errorf("cross-entropy expects [N, C] logits, got %v", logits.Shape)
	}
	n, classes := logits.Shape[0], logits.Shape[1]
	if n != len(labels) {
		return 0, nil, fmt.Errorf("got %d labels for %d rows", len(labels), n)
	}
	grad := tensor.New(n, classes)
	loss := 0.0
	for i := 0; i < n; i++ {
		y := labels[i]
		if y < 0 || y >= classes {
			return 0, nil, fmt.Errorf("label %d out of range [0, %d)", y, classes)
		}
		row := logits.Data[i*classes : (i+1)*classes]
		lse := floats.LogSumExp(row)
		loss += lse - row[y]
		g := grad.Data[i*classes : (i+1)*classes]
		for j, v := range row {
			g[j] = math.Exp(v-lse) / float64(n)
		}
		g[y] -= 1 / float64(n)
	}
	return loss / float64(n), grad, nil
}

// Argmax returns the index of the largest score in each row of logits [N, C].
// Ties resolve to the lowest index.
func Argmax(logits *tensor.Tensor) []int {
	n, classes := logits.Shape[0], logits.Shape[1]
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = floats.MaxIdx(logits.Data[i*classes : (i+1)*classes])
	}
	return out
}
