package training

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitMetric(t *testing.T) {
	var buf bytes.Buffer
	EmitMetric(&buf, "algo-1", 3, ValidSplit, AccuracyMetric, 0.958333)
	assert.Equal(t, "[algo-1] Epoch[3] valid:accuracy=0.958333\n", buf.String())
}

func TestMetricPattern(t *testing.T) {
	var buf bytes.Buffer
	EmitMetric(&buf, "algo-1", 0, TrainSplit, AccuracyMetric, 0.75)
	EmitMetric(&buf, "algo-1", 0, ValidSplit, AccuracyMetric, 0.5)

	pattern := MetricPattern(ValidSplit, AccuracyMetric)
	matches := pattern.FindStringSubmatch(buf.String())
	assert.NotNil(t, matches)
	assert.Equal(t, "0.500000", matches[1])
}

func TestParseMetricLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Observation
		ok   bool
	}{
		{
			name: "valid metric line",
			line: "[algo-1] Epoch[2] valid:accuracy=0.958333",
			want: Observation{Host: "algo-1", Epoch: 2, Split: "valid", Name: "accuracy", Value: 0.958333},
			ok:   true,
		},
		{
			name: "train split",
			line: "[host-a] Epoch[0] train:accuracy=1.000000",
			want: Observation{Host: "host-a", Epoch: 0, Split: "train", Name: "accuracy", Value: 1},
			ok:   true,
		},
		{
			name: "plain log line",
			line: "loaded 24 samples",
			ok:   false,
		},
		{
			name: "empty line",
			line: "",
			ok:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseMetricLine(tc.line)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestEmitParseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	EmitMetric(&buf, "algo-1", 7, TrainSplit, AccuracyMetric, 0.875)

	line := buf.String()
	obs, ok := ParseMetricLine(line[:len(line)-1])
	assert.True(t, ok)
	assert.Equal(t, "algo-1", obs.Host)
	assert.Equal(t, 7, obs.Epoch)
	assert.Equal(t, 0.875, obs.Value)
}
