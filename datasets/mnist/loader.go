package mnist

import (
	"golang.org/x/exp/rand"

	"lora_lib/tensor"
)

// Loader yields mini-batches over a Dataset. The last partial batch is kept.
type Loader struct {
	Data      *Dataset
	BatchSize int
	Shuffle   bool

	rng *rand.Rand
}

// NewLoader returns a loader that draws its shuffle order from rng. rng may
// be nil when shuffle is false.
func NewLoader(d *Dataset, batchSize int, shuffle bool, rng *rand.Rand) *Loader {
	if batchSize <= 0 {
		batchSize = 1
	}
	if shuffle && rng == nil {
		rng = rand.New(rand.NewSource(0))
	}
	return &Loader{Data: d, BatchSize: batchSize, Shuffle: shuffle, rng: rng}
}

// NumBatches is the number of batches in one epoch.
func (l *Loader) NumBatches() int {
	return (l.Data.Len() + l.BatchSize - 1) / l.BatchSize
}

// Epoch starts a new pass over the data.
func (l *Loader) Epoch() *Epoch {
	order := make([]int, l.Data.Len())
	for i := range order {
		order[i] = i
	}
	if l.Shuffle {
		l.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return &Epoch{l: l, order: order}
}

// Epoch iterates the batches of a single pass.
type Epoch struct {
	l     *Loader
	order []int
	pos   int
	err   error
}

// Next returns the next batch, or ok=false once the pass is exhausted or a
// batch could not be assembled (see Err).
func (e *Epoch) Next() (x *tensor.Tensor, y []int, ok bool) {
	if e.err != nil || e.pos >= len(e.order) {
		return nil, nil, false
	}
	end := e.pos + e.l.BatchSize
	if end > len(e.order) {
		end = len(e.order)
	}
	x, y, e.err = e.l.Data.Batch(e.order[e.pos:end])
	if e.err != nil {
		return nil, nil, false
	}
	e.pos = end
	return x, y, true
}

func (e *Epoch) Err() error { return e.err }
