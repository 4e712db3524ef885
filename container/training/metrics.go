package training

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// Metric splits.
const (
	TrainSplit = "train"
	ValidSplit = "valid"
)

// AccuracyMetric is the metric name both splits report.
const AccuracyMetric = "accuracy"

// Observation is a single metric reading recovered from a job's output.
type Observation struct {
	Host   string  `csv:"host"`
	Epoch  int     `csv:"epoch"`
	Split  string  `csv:"split"`
	Name   string  `csv:"name"`
	Value  float64 `csv:"value"`
	SeenAt int64   `csv:"seen_at"`
}

// EmitMetric writes a metric line in the fixed greppable form
// [host] Epoch[N] split:name=value.
func EmitMetric(w io.Writer, host string, epoch int, split, name string, value float64) {
	fmt.Fprintf(w, "[%s] Epoch[%d] %s:%s=%.6f\n", host, epoch, split, name, value)
}

// MetricPattern returns the regexp that matches lines emitted for the given
// split and metric name, with the value as the single capture group.
func MetricPattern(split, name string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`%s:%s=([0-9.]+)`, regexp.QuoteMeta(split), regexp.QuoteMeta(name)))
}

var metricLineRegexp = regexp.MustCompile(`^\[([^\]]+)\] Epoch\[(\d+)\] (\w+):(\w+)=([0-9.]+)$`)

// ParseMetricLine recovers an observation from a single output line. The
// second return is false for lines that are not metric lines.
func ParseMetricLine(line string) (Observation, bool) {
	m := metricLineRegexp.FindStringSubmatch(line)
	if m == nil {
		return Observation{}, false
	}

	epoch, err := strconv.Atoi(m[2])
	if err != nil {
		return Observation{}, false
	}
	value, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return Observation{}, false
	}

	return Observation{
		Host:  m[1],
		Epoch: epoch,
		Split: m[3],
		Name:  m[4],
		Value: value,
	}, true
}
