package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/withObsrvr/warehouse-etl/internal/config"
)

// testEnv points every store at a temp directory.
func testEnv(t *testing.T) (rawDir, processedDir string) {
	t.Helper()
	dir := t.TempDir()
	rawDir = filepath.Join(dir, "raw")
	processedDir = filepath.Join(dir, "processed")

	t.Setenv("RAW_BACKEND", "local")
	t.Setenv("RAW_LOCAL_DIR", rawDir)
	t.Setenv("PROCESSED_BACKEND", "local")
	t.Setenv("PROCESSED_LOCAL_DIR", processedDir)
	t.Setenv("WATERMARK_BACKEND", "file")
	t.Setenv("WATERMARK_DIR", filepath.Join(dir, "watermarks"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("PUSHGATEWAY_URL", "")
	return rawDir, processedDir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestWatermarkSetGet(t *testing.T) {
	testEnv(t)

	if _, err := execute(t, "", "watermark", "set", "lambda_last_run", "2024_01_02-10_30"); err != nil {
		t.Fatalf("set extract watermark: %v", err)
	}
	if _, err := execute(t, "", "watermark", "set", "load_last_run", "None"); err != nil {
		t.Fatalf("set load watermark: %v", err)
	}

	out, err := execute(t, "", "watermark", "get")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, want := range []string{"lambda_last_run\t2024_01_02-10_30", "load_last_run\tNone"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestWatermarkSetRejectsBadValue(t *testing.T) {
	testEnv(t)

	// The load watermark carries seconds.
	if _, err := execute(t, "", "watermark", "set", "load_last_run", "2024_01_02-10_30"); err == nil {
		t.Fatal("expected error for a value without seconds")
	}
	if _, err := execute(t, "", "watermark", "set", "lambda_last_run", "yesterday"); err == nil {
		t.Fatal("expected error for an unparsable value")
	}
}

func TestWatermarkGetMissing(t *testing.T) {
	testEnv(t)
	if _, err := execute(t, "", "watermark", "get", "never_written"); err == nil {
		t.Fatal("expected error for a missing watermark")
	}
}

func TestTransformFromStdin(t *testing.T) {
	rawDir, processedDir := testEnv(t)

	key := "design/2024/01/02/10-30-design.json"
	path := filepath.Join(rawDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	row := `{"design_id":8,"created_at":"2022-11-03T14:20:49.962","last_updated":"2022-11-03T14:20:49.962","design_name":"Wooden","file_location":"/usr","file_name":"wooden-20220717-npgz.json"}`
	if err := os.WriteFile(path, []byte("["+row+"]"), 0o644); err != nil {
		t.Fatal(err)
	}

	event := `{"Records":[{"s3":{"object":{"key":"` + key + `"}}}]}`
	out, err := execute(t, event, "transform", "--event", "-")
	if err != nil {
		t.Fatalf("transform: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Successfully ran") {
		t.Errorf("output %q missing status", out)
	}

	matches, err := filepath.Glob(filepath.Join(processedDir, "dim_design", "transformed", "*", "*", "*", "*.parquet"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("processed parquet files = %v, want 1", matches)
	}
}

func TestTransformRejectsBadEvent(t *testing.T) {
	testEnv(t)
	if _, err := execute(t, `{"records":[]}`, "transform", "--event", "-"); err == nil {
		t.Fatal("expected error for an event without Records")
	}
}

func TestTransformRequiresEventFlag(t *testing.T) {
	testEnv(t)
	if _, err := execute(t, "", "transform"); err == nil {
		t.Fatal("expected error without --event")
	}
}

func TestExtractRequiresSourceDSN(t *testing.T) {
	testEnv(t)
	t.Setenv("SOURCE_DSN", "")
	_, err := execute(t, "", "extract")
	if err == nil || !strings.Contains(err.Error(), "SOURCE_DSN") {
		t.Fatalf("extract error = %v, want SOURCE_DSN required", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	testEnv(t)
	t.Setenv("LOAD_WATERMARK_MODE", "sometimes")
	_, err := execute(t, "", "watermark", "get")
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("error = %v, want invalid config", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "warehouse-etl ") {
		t.Errorf("version output = %q", out)
	}
}

func TestStageResult(t *testing.T) {
	if err := stageResult("Successfully ran"); err != nil {
		t.Errorf("stageResult(ok) = %v", err)
	}
	err := stageResult("Database Error: connection refused")
	if !errors.Is(err, errStage) {
		t.Errorf("stageResult(db error) = %v, want errStage", err)
	}
}

func TestPipelineConfigLoadLog(t *testing.T) {
	cfg := config.Default()
	pcfg, err := pipelineConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if pcfg.SkipLoadLog {
		t.Error("default config should record loads")
	}

	cfg.Load.RecordLoads = false
	pcfg, err = pipelineConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !pcfg.SkipLoadLog {
		t.Error("record_loads=false should skip the load log")
	}
}
