package tables

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

// ParquetConfig configures parquet output generation.
type ParquetConfig struct {
	Compression string // "snappy" | "zstd" | "gzip" | "none"
}

// DefaultParquetConfig returns sensible defaults.
func DefaultParquetConfig() ParquetConfig {
	return ParquetConfig{Compression: "snappy"}
}

func (c ParquetConfig) codec() (compress.Codec, error) {
	switch strings.ToLower(c.Compression) {
	case "", "snappy":
		return &parquet.Snappy, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "none":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("unknown parquet compression %q", c.Compression)
	}
}

func (s *Set[T]) Encode(cfg ParquetConfig) ([]byte, error) {
	codec, err := cfg.codec()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := parquet.Write(&buf, s.Rows, parquet.Compression(codec)); err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.table, err)
	}
	return buf.Bytes(), nil
}

// Decode reads a parquet file written for table back into a RecordSet.
func Decode(table Warehouse, data []byte) (RecordSet, error) {
	switch table {
	case DimDateTable:
		return decode[DimDate](table, data)
	case DimLocationTable:
		return decode[DimLocation](table, data)
	case DimDesignTable:
		return decode[DimDesign](table, data)
	case DimStaffTable:
		return decode[DimStaff](table, data)
	case DimCurrencyTable:
		return decode[DimCurrency](table, data)
	case DimCounterpartyTable:
		return decode[DimCounterparty](table, data)
	case DimTransactionTable:
		return decode[DimTransaction](table, data)
	case DimPaymentTypeTable:
		return decode[DimPaymentType](table, data)
	case FactSalesOrderTable:
		return decode[FactSalesOrder](table, data)
	case FactPaymentTable:
		return decode[FactPayment](table, data)
	case FactPurchaseOrderTable:
		return decode[FactPurchaseOrder](table, data)
	}
	return nil, fmt.Errorf("decode %s: unknown warehouse table", table)
}

func decode[T any](table Warehouse, data []byte) (RecordSet, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", table, err)
	}
	return NewSet(table, rows), nil
}

// Empty returns a record set with no rows for table.
func Empty(table Warehouse) (RecordSet, error) {
	switch table {
	case DimDateTable:
		return NewSet[DimDate](table, nil), nil
	case DimLocationTable:
		return NewSet[DimLocation](table, nil), nil
	case DimDesignTable:
		return NewSet[DimDesign](table, nil), nil
	case DimStaffTable:
		return NewSet[DimStaff](table, nil), nil
	case DimCurrencyTable:
		return NewSet[DimCurrency](table, nil), nil
	case DimCounterpartyTable:
		return NewSet[DimCounterparty](table, nil), nil
	case DimTransactionTable:
		return NewSet[DimTransaction](table, nil), nil
	case DimPaymentTypeTable:
		return NewSet[DimPaymentType](table, nil), nil
	case FactSalesOrderTable:
		return NewSet[FactSalesOrder](table, nil), nil
	case FactPaymentTable:
		return NewSet[FactPayment](table, nil), nil
	case FactPurchaseOrderTable:
		return NewSet[FactPurchaseOrder](table, nil), nil
	}
	return nil, fmt.Errorf("unknown warehouse table %s", table)
}
