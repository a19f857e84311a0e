package lora

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"lora_lib/nn/layers"
)

func TestAccountRankOneScenario(t *testing.T) {
	// weight (m, n) = (7, 11), rank=1, alpha=1
	l := newLinear("fc", 11, 7, 1)
	_, err := Register([]*layers.Linear{l}, 1, 1, rand.NewSource(1))
	require.NoError(t, err)
	r, err := Account([]*layers.Linear{l})
	require.NoError(t, err)
	require.Equal(t, 7+11, r.LoRA)
	require.Equal(t, 7*11+7, r.Base)
	require.InDelta(t, 100*float64(7+11)/float64(7*11+7), r.Overhead(), 1e-12)
}

func TestAccountIdentity(t *testing.T) {
	linears := []*layers.Linear{
		newLinear("linear1", 784, 50, 1),
		newLinear("linear2", 50, 20, 2),
		newLinear("linear3", 20, 10, 3),
	}
	_, err := Register(linears, 3, 1, rand.NewSource(1))
	require.NoError(t, err)
	r, err := Account(linears)
	require.NoError(t, err)
	require.Equal(t, r.Base+r.LoRA, r.Combined())
	require.Equal(t, 3*(784+50)+3*(50+20)+3*(20+10), r.LoRA)
	require.Len(t, r.Layers, 3)
	require.Equal(t, []int{50, 784}, r.Layers[0].Weight)
	require.Equal(t, []int{3, 784}, r.Layers[0].A)
	require.Equal(t, []int{50, 3}, r.Layers[0].B)
}

func TestAccountRequiresBinding(t *testing.T) {
	_, err := Account([]*layers.Linear{newLinear("fc", 3, 2, 1)})
	require.Error(t, err)
}

func TestReportPrint(t *testing.T) {
	r := Report{
		Layers: []LayerCount{{Weight: []int{1000, 784}, Bias: []int{1000}, A: []int{1, 784}, B: []int{1000, 1}}},
		Base:   2807010,
		LoRA:   6794,
	}
	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()
	require.Contains(t, out, "Layer 1: W: [1000 784] + B: [1000] + Lora_A: [1 784] + Lora_B: [1000 1]")
	require.Contains(t, out, "Total number of parameters (original): 2,807,010")
	require.Contains(t, out, "Total number of parameters (original + LoRA): 2,813,804")
	require.Contains(t, out, "Parameters introduced by LoRA: 6,794")
	require.Contains(t, out, "Parameters increment: 0.242%")
}

func TestGroupThousands(t *testing.T) {
	cases := map[int]string{0: "0", 999: "999", 1000: "1,000", -1234567: "-1,234,567", 100000: "100,000"}
	for n, want := range cases {
		require.Equal(t, want, groupThousands(n))
	}
}
