// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Redis holds connection settings for the Job Store's backing Redis instance.
type Redis struct {
	Addr               string        `mapstructure:"addr"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	DB                 int           `mapstructure:"db"`
	PoolSizeMultiplier int           `mapstructure:"pool_size_multiplier"`
	MinIdleConns       int           `mapstructure:"min_idle_conns"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	KeyPrefix          string        `mapstructure:"key_prefix"`
}

// Concurrency holds the per-kind worker pool sizes and fairness caps from spec.md §4.3/§6.
type Concurrency struct {
	MaxParallelScans          int `mapstructure:"max_parallel_scans"`
	MaxParallelSeriesResolve  int `mapstructure:"max_parallel_series_resolve"`
	MaxParallelAnalyses       int `mapstructure:"max_parallel_analyses"`
	MaxParallelMetadata       int `mapstructure:"max_parallel_metadata"`
	MaxParallelIndex          int `mapstructure:"max_parallel_index"`
	MaxParallelImageFetch     int `mapstructure:"max_parallel_image_fetch"`
	MaxParallelScansPerDevice int `mapstructure:"max_parallel_scans_per_device"`
	DefaultLibraryCap         int `mapstructure:"default_library_cap"`
}

// Retry holds the backoff/jitter policy from spec.md §4.3.
type Retry struct {
	MaxAttempts                  int           `mapstructure:"max_attempts"`
	BackoffBaseMs                time.Duration `mapstructure:"backoff_base_ms"`
	BackoffMaxMs                 time.Duration `mapstructure:"backoff_max_ms"`
	FastRetryAttempts            int           `mapstructure:"fast_retry_attempts"`
	FastRetryFactor              float64       `mapstructure:"fast_retry_factor"`
	HeavyLibraryAttemptThreshold int           `mapstructure:"heavy_library_attempt_threshold"`
	HeavyLibrarySlowdownFactor   float64       `mapstructure:"heavy_library_slowdown_factor"`
	JitterRatio                  float64       `mapstructure:"jitter_ratio"`
	JitterMinMs                  time.Duration `mapstructure:"jitter_min_ms"`
}

// MetadataLimits throttles and addresses the external MetadataProvider
// collaborator.
type MetadataLimits struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MaxQPS         float64       `mapstructure:"max_qps"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// BulkMode controls the scheduler's acceleration for saturated libraries (spec.md §4.3).
type BulkMode struct {
	BulkThreshold             int     `mapstructure:"bulk_threshold"`
	SpeedupFactor             float64 `mapstructure:"speedup_factor"`
	MaintenancePartitionCount int     `mapstructure:"maintenance_partition_count"`
}

// Lease controls lease duration and the expiry scanner cadence.
type Lease struct {
	LeaseTTL      time.Duration `mapstructure:"lease_ttl_secs"`
	SweepInterval time.Duration `mapstructure:"sweep_interval_secs"`
	RenewFraction float64       `mapstructure:"renew_fraction"`
}

// Watch controls the filesystem watcher's debounce/coalescing behavior.
type Watch struct {
	DebounceWindow time.Duration `mapstructure:"debounce_window_ms"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	PollInterval   time.Duration `mapstructure:"poll_interval_ms"`
}

// Budget caps FolderScan output per library per run.
type Budget struct {
	LibraryScanLimit int `mapstructure:"library_scan_limit"`
	ScanBatchSize    int `mapstructure:"scan_batch_size"`
}

// LibraryConfig describes one media library the orchestrator scans: its
// stable id, the filesystem roots FolderScan and the watcher enumerate, and
// whether scheduled/watched scanning is currently active for it.
type LibraryConfig struct {
	ID        string   `mapstructure:"id"`
	Name      string   `mapstructure:"name"`
	RootPaths []string `mapstructure:"root_paths"`
	Enabled   bool     `mapstructure:"enabled"`
}

// MediaIO configures the filesystem, ffprobe, and image-cache collaborators
// that back the actor Table's FileWalker, TechnicalProbe, and ImageCache.
type MediaIO struct {
	FFprobeBin    string        `mapstructure:"ffprobe_bin"`
	FFmpegBin     string        `mapstructure:"ffmpeg_bin"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
	ImageCacheDir string        `mapstructure:"image_cache_dir"`
}

// TracingConfig configures the optional OpenTelemetry exporter.
type TracingConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Endpoint     string        `mapstructure:"endpoint"`
	Environment  string        `mapstructure:"environment"`
	SamplingRate float64       `mapstructure:"sampling_rate"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	Insecure     bool          `mapstructure:"insecure"`
}

// Observability groups logging, metrics, and tracing settings.
type Observability struct {
	MetricsPort         int           `mapstructure:"metrics_port"`
	LogLevel            string        `mapstructure:"log_level"`
	Tracing             TracingConfig `mapstructure:"tracing"`
	QueueSampleInterval time.Duration `mapstructure:"queue_sample_interval"`
}

// AdminAPI configures the admin HTTP surface (spec.md §6).
type AdminAPI struct {
	ListenAddr       string        `mapstructure:"listen_addr"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	RequireAuth      bool          `mapstructure:"require_auth"`
	AuthToken        string        `mapstructure:"auth_token"`
	RateLimitEnabled bool          `mapstructure:"rate_limit_enabled"`
	RateLimitPerSec  float64       `mapstructure:"rate_limit_per_sec"`
	AuditEnabled     bool          `mapstructure:"audit_enabled"`
	AuditLogPath     string        `mapstructure:"audit_log_path"`
}

// Config is the root configuration object loaded by Load.
type Config struct {
	Redis          Redis           `mapstructure:"redis"`
	Concurrency    Concurrency     `mapstructure:"concurrency"`
	Retry          Retry           `mapstructure:"retry"`
	MetadataLimits MetadataLimits  `mapstructure:"metadata_limits"`
	BulkMode       BulkMode        `mapstructure:"bulk_mode"`
	Lease          Lease           `mapstructure:"lease"`
	Watch          Watch           `mapstructure:"watch"`
	Budget         Budget          `mapstructure:"budget"`
	Observability  Observability   `mapstructure:"observability"`
	AdminAPI       AdminAPI        `mapstructure:"admin_api"`
	MediaIO        MediaIO         `mapstructure:"media_io"`
	Libraries      []LibraryConfig `mapstructure:"libraries"`
}

func defaultConfig() *Config {
	return &Config{
		Redis: Redis{
			Addr:               "localhost:6379",
			PoolSizeMultiplier: 10,
			MinIdleConns:       5,
			DialTimeout:        5 * time.Second,
			ReadTimeout:        3 * time.Second,
			WriteTimeout:       3 * time.Second,
			MaxRetries:         3,
			KeyPrefix:          "scan",
		},
		Concurrency: Concurrency{
			MaxParallelScans:          4,
			MaxParallelSeriesResolve:  2,
			MaxParallelAnalyses:       8,
			MaxParallelMetadata:       4,
			MaxParallelIndex:          4,
			MaxParallelImageFetch:     8,
			MaxParallelScansPerDevice: 1,
			DefaultLibraryCap:         2,
		},
		Retry: Retry{
			MaxAttempts:                  5,
			BackoffBaseMs:                100 * time.Millisecond,
			BackoffMaxMs:                 30 * time.Second,
			FastRetryAttempts:            2,
			FastRetryFactor:              4,
			HeavyLibraryAttemptThreshold: 20,
			HeavyLibrarySlowdownFactor:   2,
			JitterRatio:                  0.1,
			JitterMinMs:                  10 * time.Millisecond,
		},
		MetadataLimits: MetadataLimits{
			MaxConcurrency: 4,
			MaxQPS:         4,
		},
		BulkMode: BulkMode{
			BulkThreshold:             50,
			SpeedupFactor:             2,
			MaintenancePartitionCount: 4,
		},
		Lease: Lease{
			LeaseTTL:      60 * time.Second,
			SweepInterval: 5 * time.Second,
			RenewFraction: 1.0 / 3.0,
		},
		Watch: Watch{
			DebounceWindow: 500 * time.Millisecond,
			MaxBatchEvents: 500,
			PollInterval:   2 * time.Second,
		},
		Budget: Budget{
			LibraryScanLimit: 2000,
			ScanBatchSize:    200,
		},
		Observability: Observability{
			MetricsPort:         9090,
			LogLevel:            "info",
			Tracing:             TracingConfig{Enabled: false},
			QueueSampleInterval: 2 * time.Second,
		},
		AdminAPI: AdminAPI{
			ListenAddr:       ":8080",
			ReadTimeout:      10 * time.Second,
			WriteTimeout:     10 * time.Second,
			RequireAuth:      false,
			RateLimitEnabled: true,
			RateLimitPerSec:  20,
			AuditEnabled:     true,
			AuditLogPath:     "audit.log",
		},
		MediaIO: MediaIO{
			FFprobeBin:    "ffprobe",
			ProbeTimeout:  30 * time.Second,
			ImageCacheDir: "./image-cache",
		},
	}
}

// Load reads configuration from a YAML file and env overrides, following the
// defaults-then-file-then-env precedence the rest of this codebase uses.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	setDefaults(v, def)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.pool_size_multiplier", def.Redis.PoolSizeMultiplier)
	v.SetDefault("redis.min_idle_conns", def.Redis.MinIdleConns)
	v.SetDefault("redis.dial_timeout", def.Redis.DialTimeout)
	v.SetDefault("redis.read_timeout", def.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", def.Redis.WriteTimeout)
	v.SetDefault("redis.max_retries", def.Redis.MaxRetries)
	v.SetDefault("redis.key_prefix", def.Redis.KeyPrefix)

	v.SetDefault("concurrency.max_parallel_scans", def.Concurrency.MaxParallelScans)
	v.SetDefault("concurrency.max_parallel_series_resolve", def.Concurrency.MaxParallelSeriesResolve)
	v.SetDefault("concurrency.max_parallel_analyses", def.Concurrency.MaxParallelAnalyses)
	v.SetDefault("concurrency.max_parallel_metadata", def.Concurrency.MaxParallelMetadata)
	v.SetDefault("concurrency.max_parallel_index", def.Concurrency.MaxParallelIndex)
	v.SetDefault("concurrency.max_parallel_image_fetch", def.Concurrency.MaxParallelImageFetch)
	v.SetDefault("concurrency.max_parallel_scans_per_device", def.Concurrency.MaxParallelScansPerDevice)
	v.SetDefault("concurrency.default_library_cap", def.Concurrency.DefaultLibraryCap)

	v.SetDefault("retry.max_attempts", def.Retry.MaxAttempts)
	v.SetDefault("retry.backoff_base_ms", def.Retry.BackoffBaseMs)
	v.SetDefault("retry.backoff_max_ms", def.Retry.BackoffMaxMs)
	v.SetDefault("retry.fast_retry_attempts", def.Retry.FastRetryAttempts)
	v.SetDefault("retry.fast_retry_factor", def.Retry.FastRetryFactor)
	v.SetDefault("retry.heavy_library_attempt_threshold", def.Retry.HeavyLibraryAttemptThreshold)
	v.SetDefault("retry.heavy_library_slowdown_factor", def.Retry.HeavyLibrarySlowdownFactor)
	v.SetDefault("retry.jitter_ratio", def.Retry.JitterRatio)
	v.SetDefault("retry.jitter_min_ms", def.Retry.JitterMinMs)

	v.SetDefault("metadata_limits.max_concurrency", def.MetadataLimits.MaxConcurrency)
	v.SetDefault("metadata_limits.max_qps", def.MetadataLimits.MaxQPS)

	v.SetDefault("bulk_mode.bulk_threshold", def.BulkMode.BulkThreshold)
	v.SetDefault("bulk_mode.speedup_factor", def.BulkMode.SpeedupFactor)
	v.SetDefault("bulk_mode.maintenance_partition_count", def.BulkMode.MaintenancePartitionCount)

	v.SetDefault("lease.lease_ttl_secs", def.Lease.LeaseTTL)
	v.SetDefault("lease.sweep_interval_secs", def.Lease.SweepInterval)
	v.SetDefault("lease.renew_fraction", def.Lease.RenewFraction)

	v.SetDefault("watch.debounce_window_ms", def.Watch.DebounceWindow)
	v.SetDefault("watch.max_batch_events", def.Watch.MaxBatchEvents)
	v.SetDefault("watch.poll_interval_ms", def.Watch.PollInterval)

	v.SetDefault("budget.library_scan_limit", def.Budget.LibraryScanLimit)
	v.SetDefault("budget.scan_batch_size", def.Budget.ScanBatchSize)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("observability.tracing.enabled", def.Observability.Tracing.Enabled)
	v.SetDefault("observability.tracing.endpoint", def.Observability.Tracing.Endpoint)
	v.SetDefault("observability.queue_sample_interval", def.Observability.QueueSampleInterval)

	v.SetDefault("admin_api.listen_addr", def.AdminAPI.ListenAddr)
	v.SetDefault("admin_api.read_timeout", def.AdminAPI.ReadTimeout)
	v.SetDefault("admin_api.write_timeout", def.AdminAPI.WriteTimeout)
	v.SetDefault("admin_api.require_auth", def.AdminAPI.RequireAuth)
	v.SetDefault("admin_api.rate_limit_enabled", def.AdminAPI.RateLimitEnabled)
	v.SetDefault("admin_api.rate_limit_per_sec", def.AdminAPI.RateLimitPerSec)
	v.SetDefault("admin_api.audit_enabled", def.AdminAPI.AuditEnabled)
	v.SetDefault("admin_api.audit_log_path", def.AdminAPI.AuditLogPath)

	v.SetDefault("media_io.ffprobe_bin", def.MediaIO.FFprobeBin)
	v.SetDefault("media_io.ffmpeg_bin", def.MediaIO.FFmpegBin)
	v.SetDefault("media_io.probe_timeout", def.MediaIO.ProbeTimeout)
	v.SetDefault("media_io.image_cache_dir", def.MediaIO.ImageCacheDir)
}

// Validate checks config invariants, mirroring the fail-fast style used elsewhere in this codebase.
func Validate(cfg *Config) error {
	if cfg.Concurrency.MaxParallelScans < 1 {
		return fmt.Errorf("concurrency.max_parallel_scans must be >= 1")
	}
	if cfg.Concurrency.MaxParallelAnalyses < 1 {
		return fmt.Errorf("concurrency.max_parallel_analyses must be >= 1")
	}
	if cfg.Concurrency.MaxParallelMetadata < 1 {
		return fmt.Errorf("concurrency.max_parallel_metadata must be >= 1")
	}
	if cfg.Concurrency.MaxParallelIndex < 1 {
		return fmt.Errorf("concurrency.max_parallel_index must be >= 1")
	}
	if cfg.Concurrency.MaxParallelImageFetch < 1 {
		return fmt.Errorf("concurrency.max_parallel_image_fetch must be >= 1")
	}
	if cfg.Concurrency.DefaultLibraryCap < 1 {
		return fmt.Errorf("concurrency.default_library_cap must be >= 1")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1")
	}
	if cfg.Retry.BackoffMaxMs < cfg.Retry.BackoffBaseMs {
		return fmt.Errorf("retry.backoff_max_ms must be >= retry.backoff_base_ms")
	}
	if cfg.Retry.FastRetryFactor <= 0 {
		return fmt.Errorf("retry.fast_retry_factor must be > 0")
	}
	if cfg.Lease.LeaseTTL < 5*time.Second {
		return fmt.Errorf("lease.lease_ttl_secs must be >= 5s")
	}
	if cfg.Lease.SweepInterval <= 0 || cfg.Lease.SweepInterval > cfg.Lease.LeaseTTL {
		return fmt.Errorf("lease.sweep_interval_secs must be >0 and <= lease_ttl_secs")
	}
	if cfg.MetadataLimits.MaxQPS <= 0 {
		return fmt.Errorf("metadata_limits.max_qps must be > 0")
	}
	if cfg.MetadataLimits.MaxConcurrency < 1 {
		return fmt.Errorf("metadata_limits.max_concurrency must be >= 1")
	}
	if cfg.BulkMode.MaintenancePartitionCount < 1 {
		return fmt.Errorf("bulk_mode.maintenance_partition_count must be >= 1")
	}
	if cfg.Budget.LibraryScanLimit < 1 {
		return fmt.Errorf("budget.library_scan_limit must be >= 1")
	}
	if cfg.Budget.ScanBatchSize < 1 {
		return fmt.Errorf("budget.scan_batch_size must be >= 1")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	return nil
}
