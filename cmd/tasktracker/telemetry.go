package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"tasktracker/internal/core"
)

// telemetry holds the metrics exporters and trace sink of one invocation.
// Metrics are written to the error stream when the command finishes.
type telemetry struct {
	opts  []core.Option
	dumps []func(io.Writer) error
	trace *os.File
}

func newTelemetry(metrics, traceFile string) (*telemetry, error) {
	t := &telemetry{}
	var recorders core.MultiRecorder
	for _, name := range strings.Split(metrics, ",") {
		switch name = strings.TrimSpace(name); name {
		case "":
		case "prometheus":
			reg := prometheus.NewRegistry()
			rec, err := core.NewPrometheusRecorder(reg)
			if err != nil {
				return nil, err
			}
			recorders = append(recorders, rec)
			t.dumps = append(t.dumps, func(w io.Writer) error { return writePrometheus(w, reg) })
		case "expvar":
			rec := core.NewExpvarMetricsRecorder("")
			recorders = append(recorders, rec)
			t.dumps = append(t.dumps, func(w io.Writer) error {
				return json.NewEncoder(w).Encode(map[string]any{rec.Name(): rec.Snapshot()})
			})
		default:
			return nil, fmt.Errorf("unknown metrics exporter %q (want prometheus or expvar)", name)
		}
	}
	switch len(recorders) {
	case 0:
	case 1:
		t.opts = append(t.opts, core.WithMetricsRecorder(recorders[0]))
	default:
		t.opts = append(t.opts, core.WithMetricsRecorder(recorders))
	}
	if traceFile != "" {
		f, err := os.OpenFile(traceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		t.trace = f
		t.opts = append(t.opts, core.WithTracer(core.NewJSONTracer(f)))
	}
	return t, nil
}

// flush writes the collected metrics to w and closes the trace file.
func (t *telemetry) flush(w io.Writer) error {
	var errs []error
	for _, dump := range t.dumps {
		errs = append(errs, dump(w))
	}
	if t.trace != nil {
		errs = append(errs, t.trace.Close())
		t.trace = nil
	}
	return errors.Join(errs...)
}

func writePrometheus(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
