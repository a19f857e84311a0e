// Package device picks where the model's arithmetic runs.
package device

import (
	"fmt"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

const CPU = "cpu"

// Device describes the selected compute target.
type Device struct {
	Kind     string
	Wanted   string // the request Select fell back from, if any
	Brand    string
	Cores    int
	Features []string
}

func (d Device) String() string {
	s := fmt.Sprintf("%s (%s, %d cores", d.Kind, d.Brand, d.Cores)
	if len(d.Features) > 0 {
		s += ", " + strings.Join(d.Features, " ")
	}
	return s + ")"
}

// Select returns the preferred device when it is available and the CPU
// otherwise. Only the CPU is ever available, so any other request falls back
// without an error.
func Select(preferred string) Device {
	d := host()
	if k := strings.ToLower(preferred); k != "" && k != "auto" && k != CPU {
		d.Wanted = k
	}
	return d
}

func host() Device {
	d := Device{Kind: CPU, Brand: cpuid.CPU.BrandName, Cores: cpuid.CPU.LogicalCores}
	if d.Brand == "" {
		d.Brand = "unknown"
	}
	for _, f := range []struct {
		name string
		ids  []cpuid.FeatureID
	}{
		{"SSE4.2", []cpuid.FeatureID{cpuid.SSE42}},
		{"AVX2", []cpuid.FeatureID{cpuid.AVX2}},
		{"FMA3", []cpuid.FeatureID{cpuid.FMA3}},
		{"AVX512", []cpuid.FeatureID{cpuid.AVX512F, cpuid.AVX512DQ}},
		{"NEON", []cpuid.FeatureID{cpuid.ASIMD}},
	} {
		if cpuid.CPU.Supports(f.ids...) {
			d.Features = append(d.Features, f.name)
		}
	}
	return d
}
