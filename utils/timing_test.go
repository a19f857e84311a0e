package utils

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"
)

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func TestTrack(t *testing.T) {
	var d time.Duration
	Track(&d, time.Now().Add(-time.Second))
	if d < time.Second {
		t.Fatalf("tracked %v, want at least 1s", d)
	}
}

func TestPrintTimingStats(t *testing.T) {
	var buf bytes.Buffer
	oldOut, oldVerbose := Output, Verbose
	defer func() { Output, Verbose = oldOut, oldVerbose }()
	Output = &buf

	stats := &TimingStats{
		TotalTime:    10 * time.Second,
		PretrainTime: 5 * time.Second,
		AdaptTime:    time.Second,
		AdaptSteps:   100,
	}
	Verbose = true
	PrintTimingStats(stats)
	out := buf.String()
	for _, want := range []string{"Pre-training: 5s (50.0%)", "Average adaptation step: 10000.0µs"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "HE evaluation") {
		t.Errorf("HE phases printed without HE timings")
	}

	buf.Reset()
	Verbose = false
	PrintTimingStats(stats)
	if buf.Len() != 0 {
		t.Errorf("printed while not verbose")
	}
}
