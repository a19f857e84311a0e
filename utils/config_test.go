package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ValidateConfig(&cfg))
	require.Equal(t, []int{784, 1000, 2000, 10}, cfg.Architecture)
	require.Equal(t, 10, cfg.BatchSize)
	require.Equal(t, 100, cfg.AdaptStepCap)
	require.Equal(t, 1, cfg.Rank)
	require.Equal(t, 0.001, cfg.LearningRate)
}

func TestParseArchitecture(t *testing.T) {
	arch, err := ParseArchitecture("784,64, 32,10")
	require.NoError(t, err)
	require.Equal(t, []int{784, 64, 32, 10}, arch)

	arch, err = ParseArchitecture("784 1000 2000 10")
	require.NoError(t, err)
	require.Equal(t, []int{784, 1000, 2000, 10}, arch)

	_, err = ParseArchitecture("784,x,10")
	require.Error(t, err)
}

func TestValidateConfigRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"short arch":   func(c *Config) { c.Architecture = []int{784, 10} },
		"bad input":    func(c *Config) { c.Architecture = []int{100, 10, 10, 10} },
		"zero hidden":  func(c *Config) { c.Architecture = []int{784, 0, 10, 10} },
		"batch":        func(c *Config) { c.BatchSize = 0 },
		"epochs":       func(c *Config) { c.AdaptEpochs = -1 },
		"cap":          func(c *Config) { c.AdaptStepCap = -5 },
		"rank":         func(c *Config) { c.Rank = 0 },
		"lr":           func(c *Config) { c.LearningRate = 0 },
		"optimizer":    func(c *Config) { c.Optimizer = "lbfgs" },
		"subset mode":  func(c *Config) { c.SubsetMode = "swap" },
		"subset label": func(c *Config) { c.SubsetLabel = 10 },
		"he samples":   func(c *Config) { c.HESamples = -1 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		require.Error(t, ValidateConfig(&cfg), name)
	}
}

func TestSubsetFilter(t *testing.T) {
	cfg := DefaultConfig()
	keep := cfg.SubsetFilter()
	require.True(t, keep(3))
	require.False(t, keep(9))

	cfg.SubsetMode = SubsetOnly
	keep = cfg.SubsetFilter()
	require.True(t, keep(9))
	require.False(t, keep(3))
}
