package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/withObsrvr/warehouse-etl/internal/tables"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if cfg.Watermark.ExtractName != "lambda_last_run" || cfg.Watermark.LoadName != "load_last_run" {
		t.Errorf("watermark names = %q, %q", cfg.Watermark.ExtractName, cfg.Watermark.LoadName)
	}
	if cfg.Load.WatermarkMode != "before" {
		t.Errorf("WatermarkMode = %q, want before", cfg.Load.WatermarkMode)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "etl.yaml")
	yml := `
source:
  dsn: postgres://file/totesys
raw:
  backend: s3
  bucket: ingestion-bucket
load:
  watermark_mode: after
  tables: [dim_date, fact_sales_order]
schedule:
  cron: "*/5 * * * *"
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SOURCE_DSN", "postgres://env/totesys")
	t.Setenv("LOAD_WATERMARK_MODE", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Source.DSN != "postgres://env/totesys" {
		t.Errorf("Source.DSN = %q, env should win", cfg.Source.DSN)
	}
	if cfg.Raw.Backend != "s3" || cfg.Raw.Bucket != "ingestion-bucket" {
		t.Errorf("Raw = %+v", cfg.Raw)
	}
	if cfg.Raw.BucketParam != "ingestion_bucket_name" {
		t.Errorf("BucketParam = %q, default should survive the file", cfg.Raw.BucketParam)
	}
	if cfg.Load.WatermarkMode != "after" {
		t.Errorf("WatermarkMode = %q", cfg.Load.WatermarkMode)
	}
	if cfg.Schedule.Cron != "*/5 * * * *" {
		t.Errorf("Cron = %q", cfg.Schedule.Cron)
	}

	got, err := cfg.LoadTables()
	if err != nil {
		t.Fatal(err)
	}
	want := []tables.Warehouse{tables.DimDateTable, tables.FactSalesOrderTable}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("LoadTables() = %v, want %v", got, want)
	}
}

func TestLoadTablesFromEnv(t *testing.T) {
	t.Setenv("LOAD_TABLES", "dim_staff, dim_design ,")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Load.Tables) != 2 || cfg.Load.Tables[1] != "dim_design" {
		t.Errorf("Tables = %q", cfg.Load.Tables)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("LOAD_RECORD_LOADS", "not-a-bool")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Metrics.Enabled {
		t.Error("METRICS_ENABLED=true not applied")
	}
	if !cfg.Load.RecordLoads {
		t.Error("unparsable bool should keep the default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown storage", func(c *Config) { c.Raw.Backend = "ftp" }, "unknown raw storage backend"},
		{"local without dir", func(c *Config) { c.Processed.LocalDir = "" }, "processed.local_dir"},
		{"cloud without bucket", func(c *Config) {
			c.Raw.Backend = "gcs"
			c.Raw.BucketParam = ""
		}, "raw.bucket"},
		{"watermark backend", func(c *Config) { c.Watermark.Backend = "redis" }, "unknown watermark backend"},
		{"empty watermark name", func(c *Config) { c.Watermark.LoadName = "" }, "must not be empty"},
		{"raw compression", func(c *Config) { c.Extract.Compression = "lz4" }, "unknown raw compression"},
		{"parquet compression", func(c *Config) { c.Transform.ParquetCompression = "brotli" }, "unknown parquet compression"},
		{"watermark mode", func(c *Config) { c.Load.WatermarkMode = "never" }, "watermark_mode"},
		{"load table", func(c *Config) { c.Load.Tables = []string{"dim_beans"} }, "unknown load table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

type mapParams map[string]string

func (m mapParams) Get(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestResolveBuckets(t *testing.T) {
	cfg := Default()
	cfg.Raw.Backend = "s3"
	cfg.Processed.Backend = "s3"
	cfg.Processed.Bucket = "explicit"

	params := mapParams{"ingestion_bucket_name": "ingest-123\n", "processed_bucket_name": "ignored"}
	if err := cfg.ResolveBuckets(context.Background(), params); err != nil {
		t.Fatalf("ResolveBuckets() = %v", err)
	}
	if cfg.Raw.Bucket != "ingest-123" {
		t.Errorf("Raw.Bucket = %q", cfg.Raw.Bucket)
	}
	if cfg.Processed.Bucket != "explicit" {
		t.Errorf("Processed.Bucket = %q, explicit bucket should win", cfg.Processed.Bucket)
	}
}

func TestResolveBucketsMissingParam(t *testing.T) {
	cfg := Default()
	cfg.Raw.Backend = "gcs"
	if err := cfg.ResolveBuckets(context.Background(), mapParams{}); err == nil {
		t.Fatal("expected error for missing bucket parameter")
	}
}

func TestResolveBucketsLocalUntouched(t *testing.T) {
	cfg := Default()
	if err := cfg.ResolveBuckets(context.Background(), mapParams{}); err != nil {
		t.Fatalf("local backends should not read parameters: %v", err)
	}
}
