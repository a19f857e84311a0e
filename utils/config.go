package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Subset modes for the adaptation split.
const (
	SubsetExclude = "exclude" // drop samples of SubsetLabel
	SubsetOnly    = "only"    // keep only samples of SubsetLabel
)

// Config holds the run configuration.
type Config struct {
	DataRoot string
	Download bool
	Device   string

	// Architecture is input, hidden1, hidden2, classes.
	Architecture []int
	BatchSize    int
	Seed         uint64

	PretrainEpochs int
	AdaptEpochs    int
	AdaptStepCap   int // 0 means no cap

	Rank  int
	Alpha float64

	Optimizer    string
	LearningRate float64

	SubsetMode  string
	SubsetLabel int

	// HESamples > 0 runs that many test samples through the encrypted head.
	HESamples int
	LogN      int
}

// DefaultConfig mirrors the reference run: 1000/2000 hidden units, batch 10,
// one pre-training epoch, a 100-step rank-1 adaptation that excludes digit 9.
func DefaultConfig() Config {
	return Config{
		DataRoot:       "./data",
		Download:       true,
		Device:         "auto",
		Architecture:   []int{784, 1000, 2000, 10},
		BatchSize:      10,
		Seed:           0,
		PretrainEpochs: 1,
		AdaptEpochs:    1,
		AdaptStepCap:   100,
		Rank:           1,
		Alpha:          1,
		Optimizer:      "adam",
		LearningRate:   0.001,
		SubsetMode:     SubsetExclude,
		SubsetLabel:    9,
		HESamples:      0,
		LogN:           13,
	}
}

// ParseArchitecture parses architecture string into slice of integers
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.FieldsFunc(archStr, func(r rune) bool { return r == ',' || r == ' ' })
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("architecture %q: %w", archStr, err)
		}
		arch[i] = n
	}
	return arch, nil
}

// SubsetFilter returns the label predicate for the adaptation split.
func (c *Config) SubsetFilter() func(label int) bool {
	label := c.SubsetLabel
	if c.SubsetMode == SubsetOnly {
		return func(l int) bool { return l == label }
	}
	return func(l int) bool { return l != label }
}

// ValidateConfig validates the run configuration
func ValidateConfig(config *Config) error {
	if len(config.Architecture) != 4 {
		return fmt.Errorf("architecture must be input,hidden1,hidden2,classes; got %v", config.Architecture)
	}
	if config.Architecture[0] != 784 || config.Architecture[3] != 10 {
		return fmt.Errorf("architecture must start at 784 and end at 10; got %v", config.Architecture)
	}
	for _, d := range config.Architecture {
		if d <= 0 {
			return fmt.Errorf("layer widths must be positive; got %v", config.Architecture)
		}
	}

	if config.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	if config.PretrainEpochs < 0 || config.AdaptEpochs < 0 {
		return fmt.Errorf("epoch counts must not be negative")
	}

	if config.AdaptStepCap < 0 {
		return fmt.Errorf("step cap must not be negative")
	}

	if config.Rank <= 0 {
		return fmt.Errorf("rank must be positive")
	}

	if config.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}

	if config.Optimizer != "adam" && config.Optimizer != "sgd" {
		return fmt.Errorf("optimizer must be 'adam' or 'sgd'")
	}

	if config.SubsetMode != SubsetExclude && config.SubsetMode != SubsetOnly {
		return fmt.Errorf("subset mode must be '%s' or '%s'", SubsetExclude, SubsetOnly)
	}

	if config.SubsetLabel < 0 || config.SubsetLabel > 9 {
		return fmt.Errorf("subset label must be a digit")
	}

	if config.HESamples < 0 {
		return fmt.Errorf("HE samples must not be negative")
	}

	return nil
}
