// Package train runs the mini-batch training and evaluation loops.
package train

import (
	"context"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"lora_lib/datasets/mnist"
	"lora_lib/nn"
	"lora_lib/optim"
)

// Options configures one call to Train.
type Options struct {
	Epochs       int
	StepCap      int // stop once this many optimizer steps ran; 0 means no cap
	Optimizer    string
	LearningRate float64
	Output       io.Writer // progress and summary lines; nil discards them
}

// Stats summarizes a finished Train call.
type Stats struct {
	Steps     int
	EpochLoss []float64 // running average loss at the end of each (possibly partial) epoch
	Capped    bool
}

// Train fits m on loader. A fresh optimizer is built for every call and only
// parameters with RequiresGrad set are updated.
func Train(ctx context.Context, loader *mnist.Loader, m nn.Module, opts Options) (Stats, error) {
	var stats Stats
	out := opts.Output
	if out == nil {
		out = io.Discard
	}
	opt, err := optim.New(opts.Optimizer, opts.LearningRate)
	if err != nil {
		return stats, err
	}
	params := m.Parameters()
	var lossFn nn.CrossEntropyLoss

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		total := loader.NumBatches()
		if opts.StepCap > 0 {
			total = opts.StepCap
		}
		bar := newBar(out, total, fmt.Sprintf("Epoch %d", epoch+1))

		lossSum, n := 0.0, 0
		batches := loader.Epoch()
		for {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			x, y, ok := batches.Next()
			if !ok {
				break
			}
			nn.ZeroGrad(params)
			logits, err := m.Forward(x)
			if err != nil {
				return stats, fmt.Errorf("epoch %d step %d: forward: %w", epoch+1, stats.Steps+1, err)
			}
			loss, grad, err := lossFn.Forward(logits, y)
			if err != nil {
				return stats, fmt.Errorf("epoch %d step %d: loss: %w", epoch+1, stats.Steps+1, err)
			}
			if _, err := m.Backward(grad); err != nil {
				return stats, fmt.Errorf("epoch %d step %d: backward: %w", epoch+1, stats.Steps+1, err)
			}
			if err := opt.Step(params); err != nil {
				return stats, fmt.Errorf("epoch %d step %d: optimizer: %w", epoch+1, stats.Steps+1, err)
			}
			stats.Steps++
			n++
			lossSum += loss
			bar.Describe(fmt.Sprintf("Epoch %d loss=%.4f", epoch+1, lossSum/float64(n)))
			bar.Add(1)

			if opts.StepCap > 0 && stats.Steps >= opts.StepCap {
				stats.Capped = true
				break
			}
		}
		if err := batches.Err(); err != nil {
			return stats, err
		}
		bar.Finish()
		avg := 0.0
		if n > 0 {
			avg = lossSum / float64(n)
		}
		stats.EpochLoss = append(stats.EpochLoss, avg)
		fmt.Fprintf(out, "\nEpoch %d: %d steps, average loss %.4f\n", epoch+1, n, avg)
		if stats.Capped {
			break
		}
	}
	return stats, nil
}

func newBar(w io.Writer, total int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(0),
	)
}
