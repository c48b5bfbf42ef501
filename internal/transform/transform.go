// Package transform reshapes raw source batches into star-schema record
// sets.
//
// Every source table maps to a fixed output shape:
//
//	address        -> dim_location
//	design         -> dim_design
//	transaction    -> dim_transaction
//	payment_type   -> dim_payment_type
//	currency       -> dim_currency
//	staff          -> dim_staff        (joined with department)
//	counterparty   -> dim_counterparty (joined with address)
//	payment        -> fact_payment
//	purchase_order -> fact_purchase_order
//	sales_order    -> fact_sales_order, dim_date
//
// Any other table, department included, is unrecognized: the transformer
// logs it once and returns no output.
package transform

import (
	"context"
	"log/slog"

	"github.com/withObsrvr/warehouse-etl/internal/raw"
	"github.com/withObsrvr/warehouse-etl/internal/tables"
)

// Kind classifies a transform result.
type Kind int

const (
	// KindUnrecognized means the table has no mapping. Not an error.
	KindUnrecognized Kind = iota
	// KindDimension carries one dimension set.
	KindDimension
	// KindFact carries one fact set.
	KindFact
	// KindFactWithDates carries the fact set followed by its dim_date set.
	KindFactWithDates
)

func (k Kind) String() string {
	switch k {
	case KindDimension:
		return "dimension"
	case KindFact:
		return "fact"
	case KindFactWithDates:
		return "fact_with_dates"
	}
	return "unrecognized"
}

// Result is the output of one Transform call.
type Result struct {
	Kind Kind
	Sets []tables.RecordSet
}

// Mapped reports whether the table had a mapping.
func (r Result) Mapped() bool { return r.Kind != KindUnrecognized }

// ReferenceTableReader returns every row ever extracted for a source table.
// Lookup joins use it to denormalize reference data that may have been
// extracted in an earlier run.
type ReferenceTableReader interface {
	ReadAll(ctx context.Context, table tables.Source) (raw.Batch, error)
}

// Transformer dispatches raw batches to their table mapping.
type Transformer struct {
	refs ReferenceTableReader
	log  *slog.Logger
}

// New creates a transformer reading join partners through refs.
func New(refs ReferenceTableReader, log *slog.Logger) *Transformer {
	if log == nil {
		log = slog.Default()
	}
	return &Transformer{refs: refs, log: log}
}

// Transform maps batch, extracted from the source table named table.
func (t *Transformer) Transform(ctx context.Context, table string, batch raw.Batch) (Result, error) {
	src, ok := tables.ParseSource(table)
	if !ok {
		return t.unrecognized(table), nil
	}

	switch src {
	case tables.SourceAddress:
		return dimension(transformLocation(batch))
	case tables.SourceDesign:
		return dimension(transformDesign(batch))
	case tables.SourceTransaction:
		return dimension(transformTransaction(batch))
	case tables.SourcePaymentType:
		return dimension(transformPaymentType(batch))
	case tables.SourceCurrency:
		return dimension(transformCurrency(batch))
	case tables.SourceStaff:
		return dimension(t.transformStaff(ctx, batch))
	case tables.SourceCounterparty:
		return dimension(t.transformCounterparty(ctx, batch))
	case tables.SourcePayment:
		return fact(transformPayment(batch))
	case tables.SourcePurchaseOrder:
		return fact(transformPurchaseOrder(batch))
	case tables.SourceSalesOrder:
		facts, err := transformSalesOrder(batch)
		if err != nil {
			return Result{}, err
		}
		dates, err := transformDates(batch)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindFactWithDates, Sets: []tables.RecordSet{facts, dates}}, nil
	}

	return t.unrecognized(table), nil
}

func (t *Transformer) unrecognized(table string) Result {
	t.log.Warn("no transformation defined for table "+table, "table", table)
	return Result{Kind: KindUnrecognized}
}

func dimension(set tables.RecordSet, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: KindDimension, Sets: []tables.RecordSet{set}}, nil
}

func fact(set tables.RecordSet, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: KindFact, Sets: []tables.RecordSet{set}}, nil
}
