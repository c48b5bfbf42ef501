// Package raw encodes and decodes the extracted JSON payloads kept in the
// raw object store.
package raw

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/withObsrvr/warehouse-etl/internal/tables"
)

// Record is one source row as extracted: column name to JSON scalar.
// Numbers decode as json.Number so decimals keep their text form.
type Record map[string]any

// Batch is the ordered set of rows written as one raw object.
type Batch []Record

const zstdExt = ".zst"

// Key returns the object key for a batch of table extracted at t.
func Key(table tables.Source, t time.Time, compression string) string {
	t = t.UTC()
	key := fmt.Sprintf("%s/%s/%s-%s.json", table, t.Format("2006/01/02"), t.Format("15-04"), table)
	if compression == "zstd" {
		key += zstdExt
	}
	return key
}

// TableFromKey returns the first path segment of key.
func TableFromKey(key string) string {
	table, _, _ := strings.Cut(key, "/")
	return table
}

// Encode serializes rows as a JSON array, optionally zstd-compressed.
func Encode(rows []json.RawMessage, compression string) ([]byte, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal rows: %w", err)
	}

	switch compression {
	case "", "none":
		return data, nil
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unknown raw compression %q", compression)
	}
}

// Decode parses the object stored at key.
func Decode(key string, data []byte) (Batch, error) {
	if strings.HasSuffix(key, zstdExt) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", key, err)
		}
	}

	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()

	var batch Batch
	if err := d.Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return batch, nil
}
