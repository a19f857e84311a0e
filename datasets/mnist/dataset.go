package mnist

import (
	"fmt"

	"lora_lib/tensor"
)

// Dataset is an ordered set of raw 8-bit images and their labels.
type Dataset struct {
	Images [][]byte
	Labels []uint8
	Rows   int
	Cols   int
}

func (d *Dataset) Len() int { return len(d.Labels) }

// Clone copies the sample index. Image buffers are shared; they are never written.
func (d *Dataset) Clone() *Dataset {
	return &Dataset{
		Images: append([][]byte(nil), d.Images...),
		Labels: append([]uint8(nil), d.Labels...),
		Rows:   d.Rows,
		Cols:   d.Cols,
	}
}

// Retain keeps, in order, the samples whose label satisfies keep and returns
// how many remain.
func (d *Dataset) Retain(keep func(label int) bool) int {
	n := 0
	for i, l := range d.Labels {
		if keep(int(l)) {
			d.Images[n] = d.Images[i]
			d.Labels[n] = l
			n++
		}
	}
	for i := n; i < len(d.Images); i++ {
		d.Images[i] = nil
	}
	d.Images = d.Images[:n]
	d.Labels = d.Labels[:n]
	return n
}

// ClassCounts returns the number of samples per label.
func (d *Dataset) ClassCounts() [NumClasses]int {
	var counts [NumClasses]int
	for _, l := range d.Labels {
		counts[l]++
	}
	return counts
}

// Batch assembles the samples at indices into a normalized [n,1,rows,cols]
// tensor and their labels.
func (d *Dataset) Batch(indices []int) (*tensor.Tensor, []int, error) {
	size := d.Rows * d.Cols
	x := tensor.New(len(indices), 1, d.Rows, d.Cols)
	y := make([]int, len(indices))
	for b, idx := range indices {
		if idx < 0 || idx >= d.Len() {
			return nil, nil, fmt.Errorf("mnist: sample %d out of range [0,%d)", idx, d.Len())
		}
		img := d.Images[idx]
		if len(img) != size {
			return nil, nil, fmt.Errorf("mnist: sample %d has %d pixels, want %d", idx, len(img), size)
		}
		row := x.Data[b*size : (b+1)*size]
		for i, p := range img {
			row[i] = Normalize(p)
		}
		y[b] = int(d.Labels[idx])
	}
	return x, y, nil
}

// Normalize maps a raw pixel to (p/255 - Mean) / Std.
func Normalize(p byte) float64 {
	return (float64(p)/255 - Mean) / Std
}
