// Package telemetry wires optional continuous profiling into the
// server binary. It is a diagnostic hint only: the pipeline's behavior
// never depends on whether profiling is enabled.
package telemetry

import (
	"fmt"

	"github.com/grafana/pyroscope-go"
)

// ProfilingConfig mirrors dnaconfig.ProfilingConfig, kept separate so
// this package has no dependency on the config layer.
type ProfilingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string
}

// InitProfiling starts a Pyroscope profiler when cfg.Enabled is true,
// returning a shutdown function that is always safe to call. When
// disabled it returns a no-op shutdown and a nil error.
func InitProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	if !cfg.Enabled {
		return func() error { return nil }, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags: map[string]string{
			"version": cfg.ServiceVersion,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return func() error { return nil }, fmt.Errorf("start pyroscope profiler: %w", err)
	}

	return profiler.Stop, nil
}
