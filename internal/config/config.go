// Package config loads the ETL configuration from an optional YAML file
// overlaid by environment variables.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/withObsrvr/warehouse-etl/internal/tables"
)

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Source    DatabaseConfig  `yaml:"source"`
	Warehouse DatabaseConfig  `yaml:"warehouse"`
	Raw       StorageConfig   `yaml:"raw"`
	Processed StorageConfig   `yaml:"processed"`
	Watermark WatermarkConfig `yaml:"watermark"`
	Extract   ExtractConfig   `yaml:"extract"`
	Transform TransformConfig `yaml:"transform"`
	Load      LoadConfig      `yaml:"load"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Bucket     string `yaml:"bucket"`
	Prefix     string `yaml:"prefix"`
	LocalDir   string `yaml:"local_dir"`
	S3Endpoint string `yaml:"s3_endpoint"`
	S3Region   string `yaml:"s3_region"`

	// BucketParam names the parameter holding the bucket name. It is read
	// when Bucket is empty on a cloud backend.
	BucketParam string `yaml:"bucket_param"`
}

// NeedsBucket reports whether the backend addresses a named bucket.
func (s StorageConfig) NeedsBucket() bool {
	return s.Backend == "s3" || s.Backend == "gcs"
}

type WatermarkConfig struct {
	Backend  string `yaml:"backend"`
	Dir      string `yaml:"dir"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	DSN      string `yaml:"dsn"`

	ExtractName string `yaml:"extract_name"`
	LoadName    string `yaml:"load_name"`
}

type ExtractConfig struct {
	Compression string `yaml:"compression"`
}

type TransformConfig struct {
	ParquetCompression string `yaml:"parquet_compression"`
}

type LoadConfig struct {
	WatermarkMode string   `yaml:"watermark_mode"`
	Tables        []string `yaml:"tables"`
	RecordLoads   bool     `yaml:"record_loads"`
}

type MetricsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Address     string `yaml:"address"`
	Namespace   string `yaml:"namespace"`
	PushGateway string `yaml:"push_gateway"`
	Job         string `yaml:"job"`
}

type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Log: LogConfig{Format: "json", Level: "info"},
		Raw: StorageConfig{
			Backend:     "local",
			LocalDir:    "./data/raw",
			BucketParam: "ingestion_bucket_name",
		},
		Processed: StorageConfig{
			Backend:     "local",
			LocalDir:    "./data/processed",
			BucketParam: "processed_bucket_name",
		},
		Watermark: WatermarkConfig{
			Backend:     "file",
			Dir:         "./data/watermarks",
			ExtractName: "lambda_last_run",
			LoadName:    "load_last_run",
		},
		Extract:   ExtractConfig{Compression: "none"},
		Transform: TransformConfig{ParquetCompression: "snappy"},
		Load: LoadConfig{
			WatermarkMode: "before",
			RecordLoads:   true,
		},
		Metrics: MetricsConfig{
			Address:   ":9090",
			Namespace: "warehouse_etl",
			Job:       "warehouse_etl",
		},
		Schedule: ScheduleConfig{Cron: "@every 15m"},
	}
}

// Load reads path, if given, over the defaults and then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		slog.Debug("loaded config file", "path", path)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Log.Format = getenvDefault("LOG_FORMAT", c.Log.Format)
	c.Log.Level = getenvDefault("LOG_LEVEL", c.Log.Level)

	c.Source.DSN = getenvDefault("SOURCE_DSN", c.Source.DSN)
	c.Warehouse.DSN = getenvDefault("WAREHOUSE_DSN", c.Warehouse.DSN)

	applyStorageEnv(&c.Raw, "RAW")
	applyStorageEnv(&c.Processed, "PROCESSED")

	c.Watermark.Backend = getenvDefault("WATERMARK_BACKEND", c.Watermark.Backend)
	c.Watermark.Dir = getenvDefault("WATERMARK_DIR", c.Watermark.Dir)
	c.Watermark.Region = getenvDefault("AWS_REGION", c.Watermark.Region)
	c.Watermark.Endpoint = getenvDefault("SSM_ENDPOINT", c.Watermark.Endpoint)
	c.Watermark.DSN = getenvDefault("WATERMARK_DSN", c.Watermark.DSN)
	c.Watermark.ExtractName = getenvDefault("EXTRACT_WATERMARK_NAME", c.Watermark.ExtractName)
	c.Watermark.LoadName = getenvDefault("LOAD_WATERMARK_NAME", c.Watermark.LoadName)

	c.Extract.Compression = getenvDefault("RAW_COMPRESSION", c.Extract.Compression)
	c.Transform.ParquetCompression = getenvDefault("PARQUET_COMPRESSION", c.Transform.ParquetCompression)

	c.Load.WatermarkMode = getenvDefault("LOAD_WATERMARK_MODE", c.Load.WatermarkMode)
	if v := os.Getenv("LOAD_TABLES"); v != "" {
		c.Load.Tables = splitList(v)
	}
	c.Load.RecordLoads = getenvBool("LOAD_RECORD_LOADS", c.Load.RecordLoads)

	c.Metrics.Enabled = getenvBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Address = getenvDefault("METRICS_ADDRESS", c.Metrics.Address)
	c.Metrics.PushGateway = getenvDefault("PUSHGATEWAY_URL", c.Metrics.PushGateway)

	c.Schedule.Cron = getenvDefault("SCHEDULE", c.Schedule.Cron)
}

func applyStorageEnv(s *StorageConfig, prefix string) {
	s.Backend = getenvDefault(prefix+"_BACKEND", s.Backend)
	s.Bucket = getenvDefault(prefix+"_BUCKET", s.Bucket)
	s.Prefix = getenvDefault(prefix+"_PREFIX", s.Prefix)
	s.LocalDir = getenvDefault(prefix+"_LOCAL_DIR", s.LocalDir)
	s.S3Endpoint = getenvDefault("S3_ENDPOINT", s.S3Endpoint)
	s.S3Region = getenvDefault("AWS_REGION", s.S3Region)
	s.BucketParam = getenvDefault(prefix+"_BUCKET_PARAM", s.BucketParam)
}

// Validate checks the settings every command relies on.
func (c Config) Validate() error {
	for name, s := range map[string]StorageConfig{"raw": c.Raw, "processed": c.Processed} {
		switch s.Backend {
		case "local":
			if s.LocalDir == "" {
				return fmt.Errorf("%s.local_dir required for local backend", name)
			}
		case "s3", "gcs":
			if s.Bucket == "" && s.BucketParam == "" {
				return fmt.Errorf("%s.bucket or %s.bucket_param required for %s backend", name, name, s.Backend)
			}
		case "mem":
		default:
			return fmt.Errorf("unknown %s storage backend: %s", name, s.Backend)
		}
	}

	switch c.Watermark.Backend {
	case "file", "ssm", "postgres", "memory":
	default:
		return fmt.Errorf("unknown watermark backend: %s", c.Watermark.Backend)
	}
	if c.Watermark.ExtractName == "" || c.Watermark.LoadName == "" {
		return fmt.Errorf("watermark parameter names must not be empty")
	}

	switch c.Extract.Compression {
	case "none", "zstd":
	default:
		return fmt.Errorf("unknown raw compression: %s", c.Extract.Compression)
	}

	switch strings.ToLower(c.Transform.ParquetCompression) {
	case "snappy", "zstd", "gzip", "none":
	default:
		return fmt.Errorf("unknown parquet compression: %s", c.Transform.ParquetCompression)
	}

	switch c.Load.WatermarkMode {
	case "before", "after":
	default:
		return fmt.Errorf("load.watermark_mode must be before or after, got %q", c.Load.WatermarkMode)
	}
	if _, err := c.LoadTables(); err != nil {
		return err
	}
	return nil
}

// LoadTables returns the configured load partitions, or every warehouse
// table when none are configured.
func (c Config) LoadTables() ([]tables.Warehouse, error) {
	if len(c.Load.Tables) == 0 {
		return tables.WarehouseTables, nil
	}
	out := make([]tables.Warehouse, 0, len(c.Load.Tables))
	for _, name := range c.Load.Tables {
		t, ok := tables.ParseWarehouse(name)
		if !ok {
			return nil, fmt.Errorf("unknown load table: %s", name)
		}
		out = append(out, t)
	}
	return out, nil
}

// ParamGetter reads named parameters, such as a watermark store.
type ParamGetter interface {
	Get(ctx context.Context, name string) (string, error)
}

// ResolveBuckets fills in cloud bucket names from their parameters.
func (c *Config) ResolveBuckets(ctx context.Context, params ParamGetter) error {
	for _, s := range []*StorageConfig{&c.Raw, &c.Processed} {
		if !s.NeedsBucket() || s.Bucket != "" {
			continue
		}
		name, err := params.Get(ctx, s.BucketParam)
		if err != nil {
			return fmt.Errorf("resolve bucket %s: %w", s.BucketParam, err)
		}
		s.Bucket = strings.TrimSpace(name)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
