package model

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"lora_lib/nn"
	"lora_lib/tensor"
)

func TestClassifierShapesAndNames(t *testing.T) {
	c, err := NewClassifier(16, 8, rand.NewSource(0))
	require.NoError(t, err)

	var names []string
	for _, p := range c.Parameters() {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{
		"linear1.weight", "linear1.bias",
		"linear2.weight", "linear2.bias",
		"linear3.weight", "linear3.bias",
	}, names)
	require.Equal(t, 784*16+16+16*8+8+8*10+10, nn.CountElements(c.Parameters()))
	require.Equal(t, "Flatten -> Linear_784_16 -> ReLU -> Linear_16_8 -> ReLU -> Linear_8_10", c.Summary())

	x := tensor.New(3, 1, 28, 28)
	for i := range x.Data {
		x.Data[i] = float64(i%7) * 0.1
	}
	out, err := c.Forward(x)
	require.NoError(t, err)
	require.Equal(t, []int{3, 10}, out.Shape)

	flat, err := x.Reshape(3, 784)
	require.NoError(t, err)
	out2, err := c.Forward(flat)
	require.NoError(t, err)
	require.Equal(t, out.Data, out2.Data)

	h, err := c.Hidden(x)
	require.NoError(t, err)
	require.Equal(t, []int{3, 8}, h.Shape)
	for _, v := range h.Data {
		require.GreaterOrEqual(t, v, 0.0)
	}
}

func TestClassifierInitIsSeededAndBounded(t *testing.T) {
	a, err := NewClassifier(4, 4, rand.NewSource(7))
	require.NoError(t, err)
	b, err := NewClassifier(4, 4, rand.NewSource(7))
	require.NoError(t, err)
	require.Equal(t, a.Linear1.W.Value.Data, b.Linear1.W.Value.Data)
	require.Equal(t, a.Linear3.B.Value.Data, b.Linear3.B.Value.Data)

	bound := 1 / 28.0
	nonzero := false
	for _, v := range a.Linear1.W.Value.Data {
		require.LessOrEqual(t, v, bound)
		require.GreaterOrEqual(t, v, -bound)
		nonzero = nonzero || v != 0
	}
	require.True(t, nonzero)
}

func TestClassifierRejectsBadWidths(t *testing.T) {
	_, err := NewClassifier(0, 4, rand.NewSource(0))
	require.Error(t, err)
}

func TestClassifierBackwardReachesAllLayers(t *testing.T) {
	c, err := NewClassifier(6, 5, rand.NewSource(1))
	require.NoError(t, err)
	x := tensor.New(2, 784)
	for i := range x.Data {
		x.Data[i] = float64(i%5) - 2
	}
	out, err := c.Forward(x)
	require.NoError(t, err)
	var loss nn.CrossEntropyLoss
	_, grad, err := loss.Forward(out, []int{3, 7})
	require.NoError(t, err)
	_, err = c.Backward(grad)
	require.NoError(t, err)
	for _, p := range c.Parameters() {
		sum := 0.0
		for _, g := range p.Grad.Data {
			sum += g * g
		}
		require.Greater(t, sum, 0.0, p.Name)
	}
}
