package split

import "fmt"

// Layout places a length-inDim vector into power-of-two blocks so that
// one ciphertext carries RowsPerCipher copies of it.
type Layout struct {
	InDim         int
	OutDim        int
	Block         int
	RowsPerCipher int
}

// NewLayout fits inDim into slots.
func NewLayout(inDim, outDim, slots int) (Layout, error) {
	if inDim <= 0 || outDim <= 0 {
		return Layout{}, fmt.Errorf("invalid layer shape %dx%d", outDim, inDim)
	}
	block := 1
	for block < inDim {
		block <<= 1
	}
	if block > slots {
		return Layout{}, fmt.Errorf("input width %d needs %d slots, have %d", inDim, block, slots)
	}
	rows := slots / block
	if rows > outDim {
		rows = outDim
	}
	return Layout{InDim: inDim, OutDim: outDim, Block: block, RowsPerCipher: rows}, nil
}

// Ciphers is the number of result ciphertexts per sample.
func (l Layout) Ciphers() int {
	return (l.OutDim + l.RowsPerCipher - 1) / l.RowsPerCipher
}

// Rotations lists the left-rotation steps the block tree-sum needs.
func (l Layout) Rotations() []int {
	var rots []int
	for step := 1; step < l.Block; step <<= 1 {
		rots = append(rots, step)
	}
	return rots
}
