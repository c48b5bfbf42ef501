package tables

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// RecordSet is a typed batch of rows bound for exactly one warehouse table.
type RecordSet interface {
	// Table returns the destination table.
	Table() Warehouse

	// Len returns the number of rows.
	Len() int

	// Columns returns the column names in declaration order.
	Columns() []string

	// Values returns the column values of row i, in Columns order.
	// Null columns are returned as nil.
	Values(i int) []any

	// Append concatenates the rows of other, which must hold the same table.
	Append(other RecordSet) error

	// Dedup drops rows identical across all columns, keeping the first
	// occurrence, and returns how many were dropped.
	Dedup() int

	// Encode serializes the rows as a parquet file.
	Encode(cfg ParquetConfig) ([]byte, error)
}

// Set is the RecordSet implementation for row type T.
type Set[T any] struct {
	table Warehouse
	Rows  []T
}

// NewSet wraps rows destined for table.
func NewSet[T any](table Warehouse, rows []T) *Set[T] {
	return &Set[T]{table: table, Rows: rows}
}

func (s *Set[T]) Table() Warehouse { return s.table }

func (s *Set[T]) Len() int { return len(s.Rows) }

func (s *Set[T]) Columns() []string {
	fields := fieldsOf(reflect.TypeOf((*T)(nil)).Elem())
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.name
	}
	return cols
}

func (s *Set[T]) Values(i int) []any {
	rv := reflect.ValueOf(s.Rows[i])
	fields := fieldsOf(rv.Type())
	vals := make([]any, len(fields))
	for j, f := range fields {
		v := rv.Field(f.index)
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				continue
			}
			v = v.Elem()
		}
		vals[j] = v.Interface()
	}
	return vals
}

func (s *Set[T]) Append(other RecordSet) error {
	o, ok := other.(*Set[T])
	if !ok || o.table != s.table {
		return fmt.Errorf("append %s to %s: mismatched record sets", other.Table(), s.table)
	}
	s.Rows = append(s.Rows, o.Rows...)
	return nil
}

func (s *Set[T]) Dedup() int {
	seen := make(map[string]struct{}, len(s.Rows))
	kept := s.Rows[:0]
	for i := range s.Rows {
		key := rowKey(s.Values(i))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, s.Rows[i])
	}
	dropped := len(s.Rows) - len(kept)
	s.Rows = kept
	return dropped
}

func rowKey(vals []any) string {
	b, err := json.Marshal(vals)
	if err != nil {
		return fmt.Sprint(vals...)
	}
	return string(b)
}

type field struct {
	name  string
	index int
}

var fieldCache sync.Map // reflect.Type -> []field

// fieldsOf returns the parquet-tagged fields of struct type t.
func fieldsOf(t reflect.Type) []field {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]field)
	}
	var fields []field
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("parquet")
		if tag == "" || tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		fields = append(fields, field{name: name, index: i})
	}
	fieldCache.Store(t, fields)
	return fields
}
