package dnaconfig

import (
	"runtime"
	"strings"
	"time"

	"github.com/inchrosil/dnapipe/internal/bytesize"
)

// Spec-mandated defaults (§6 of the ingestion pipeline specification).
const (
	defaultPort            = 9090
	defaultRecvChunk       = 64 * bytesize.KiB // 65536 bytes
	defaultMaxClients      = 16
	defaultMaxSeqLen       = 1 << 30 // 2^30, the spec's floor
	defaultQueueCapacity   = 1024
	defaultShutdownTimeout = 10 * time.Second
)

// defaultWorkerCount is the number of CPU cores, per spec: "W worker
// tasks, default W = number of CPU cores."
var defaultWorkerCount = runtime.NumCPU()

// GetDefaultConfig returns a Config populated with spec-mandated defaults.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in any zero-valued fields with spec-mandated
// defaults. Explicit values already present on cfg are preserved.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyQueueDefaults(&cfg.Queue)
	applyWorkersDefaults(&cfg.Workers)
	applyStorageDefaults(&cfg.Storage)
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyProfilingDefaults(&cfg.Profiling)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.RecvChunk == 0 {
		cfg.RecvChunk = defaultRecvChunk
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = defaultMaxClients
	}
	if cfg.MaxSeqLen == 0 {
		cfg.MaxSeqLen = defaultMaxSeqLen
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
}

func applyQueueDefaults(cfg *QueueConfig) {
	if cfg.Capacity == 0 {
		cfg.Capacity = defaultQueueCapacity
	}
}

func applyWorkersDefaults(cfg *WorkersConfig) {
	if cfg.Count == 0 {
		cfg.Count = defaultWorkerCount
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.OutDir == "" {
		cfg.OutDir = "."
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9091
	}
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
}
