package layers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"lora_lib/tensor"
)

func TestReLUForwardBackward(t *testing.T) {
	a, err := NewActivation("ReLU")
	require.NoError(t, err)
	x := &tensor.Tensor{Data: []float64{-2, 0, 3}, Shape: []int{1, 3}}
	y, err := a.Forward(x)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0, 3}, y.Data)

	g, err := a.Backward(&tensor.Tensor{Data: []float64{1, 1, 1}, Shape: []int{1, 3}})
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0, 1}, g.Data)
}

func TestTanhDerivative(t *testing.T) {
	a, err := NewActivation("Tanh")
	require.NoError(t, err)
	x := &tensor.Tensor{Data: []float64{0.5}, Shape: []int{1, 1}}
	_, err = a.Forward(x)
	require.NoError(t, err)
	g, err := a.Backward(&tensor.Tensor{Data: []float64{2}, Shape: []int{1, 1}})
	require.NoError(t, err)
	want := 2 * (1 - math.Tanh(0.5)*math.Tanh(0.5))
	require.InDelta(t, want, g.Data[0], 1e-12)
}

func TestUnsupportedActivation(t *testing.T) {
	_, err := NewActivation("Swish")
	require.Error(t, err)
}

func TestActivationBackwardWithoutForward(t *testing.T) {
	a, err := NewActivation("ReLU")
	require.NoError(t, err)
	_, err = a.Backward(tensor.New(1, 1))
	require.Error(t, err)
}
