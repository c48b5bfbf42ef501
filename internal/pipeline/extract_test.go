package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/withObsrvr/warehouse-etl/internal/raw"
	"github.com/withObsrvr/warehouse-etl/internal/tables"
	"github.com/withObsrvr/warehouse-etl/internal/watermark"
)

func TestExtractWritesRawObjectsAndAdvancesWatermark(t *testing.T) {
	env := newTestEnv(t, Config{}, map[string]string{"lambda_last_run": "None"})
	env.source.rows[tables.SourceCurrency] = []string{`{"currency_id":1,"currency_code":"GBP"}`}
	env.source.rows[tables.SourceDesign] = []string{designRow}

	status, keys, err := env.pipeline.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if status != StatusOK {
		t.Errorf("status = %q", status)
	}

	want := []string{
		"design/2024/01/02/10-30-design.json",
		"currency/2024/01/02/10-30-currency.json",
	}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
	if !reflect.DeepEqual(env.source.calls, tables.SourceTables) {
		t.Errorf("queried %v, want every source table in order", env.source.calls)
	}
	for _, since := range env.source.sinces {
		if since.Set {
			t.Errorf("sentinel watermark passed as %v", since)
		}
	}

	data, err := env.raw.Get(context.Background(), want[1])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	batch, err := raw.Decode(want[1], data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(batch) != 1 || batch[0]["currency_code"] != "GBP" {
		t.Errorf("raw batch = %v", batch)
	}

	if got := env.param(t, "lambda_last_run"); got != "2024_01_02-10_30" {
		t.Errorf("watermark = %q, want 2024_01_02-10_30", got)
	}
}

func TestExtractPassesStoredWatermark(t *testing.T) {
	env := newTestEnv(t, Config{}, map[string]string{"lambda_last_run": "2024_01_01-09_00"})

	if _, _, err := env.pipeline.Extract(context.Background()); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for _, since := range env.source.sinces {
		if !since.Set || !since.Time.Equal(want) {
			t.Fatalf("since = %v, want %v", since, want)
		}
	}
}

func TestExtractZstdKeys(t *testing.T) {
	env := newTestEnv(t, Config{RawCompression: "zstd"}, map[string]string{"lambda_last_run": "None"})
	env.source.rows[tables.SourceStaff] = []string{`{"staff_id":1}`}

	_, keys, err := env.pipeline.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(keys) != 1 || !strings.HasSuffix(keys[0], ".json.zst") {
		t.Fatalf("keys = %v", keys)
	}
	data, _ := env.raw.Get(context.Background(), keys[0])
	batch, err := raw.Decode(keys[0], data)
	if err != nil || len(batch) != 1 {
		t.Fatalf("Decode = %v, %v", batch, err)
	}
}

func TestExtractMissingWatermarkIsError(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	_, _, err := env.pipeline.Extract(context.Background())
	if !errors.Is(err, watermark.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(env.source.calls) != 0 {
		t.Errorf("source queried without a watermark")
	}
}

func TestExtractDatabaseErrorIsHandled(t *testing.T) {
	env := newTestEnv(t, Config{}, map[string]string{"lambda_last_run": "None"})
	env.source.rows[tables.SourceAddress] = []string{`{"address_id":1}`}
	env.source.errs[tables.SourcePayment] = dbFault

	status, keys, err := env.pipeline.Extract(context.Background())
	if err != nil {
		t.Fatalf("database faults should be handled, got %v", err)
	}
	if !strings.HasPrefix(status, "Database Error: ") {
		t.Errorf("status = %q", status)
	}
	if len(keys) != 1 {
		t.Errorf("keys = %v, want the address object written before the fault", keys)
	}
	if got := env.param(t, "lambda_last_run"); got != "None" {
		t.Errorf("watermark advanced to %q after a failed run", got)
	}
}

func TestExtractOtherErrorsPropagate(t *testing.T) {
	env := newTestEnv(t, Config{}, map[string]string{"lambda_last_run": "None"})
	env.source.errs[tables.SourceDesign] = errors.New("boom")

	if _, _, err := env.pipeline.Extract(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := env.param(t, "lambda_last_run"); got != "None" {
		t.Errorf("watermark advanced to %q", got)
	}
}
