package transform

import (
	"time"

	"github.com/withObsrvr/warehouse-etl/internal/raw"
	"github.com/withObsrvr/warehouse-etl/internal/tables"
)

// salesCurrencyID is written to every fact_sales_order row whatever the
// source currency.
const salesCurrencyID = 1

// salesDateColumns feed dim_date, in collection order.
var salesDateColumns = []string{"created_at", "last_updated", "agreed_payment_date", "agreed_delivery_date"}

// Fact record ids are 1-based positions within the batch.

func transformSalesOrder(batch raw.Batch) (*tables.Set[tables.FactSalesOrder], error) {
	const table = "sales_order"
	if err := requireColumns(table, batch,
		"sales_order_id", "created_at", "last_updated", "design_id", "staff_id",
		"counterparty_id", "units_sold", "unit_price", "agreed_delivery_date",
		"agreed_payment_date", "agreed_delivery_location_id",
	); err != nil {
		return nil, err
	}

	rows := make([]tables.FactSalesOrder, 0, len(batch))
	for i, rec := range batch {
		g := newGetter(table, i, rec)
		row := tables.FactSalesOrder{
			SalesRecordID:            int64(i + 1),
			SalesOrderID:             g.int("sales_order_id"),
			SalesStaffID:             g.int("staff_id"),
			CounterpartyID:           g.int("counterparty_id"),
			UnitsSold:                g.int("units_sold"),
			UnitPrice:                g.money("unit_price"),
			CurrencyID:               salesCurrencyID,
			DesignID:                 g.int("design_id"),
			AgreedPaymentDate:        g.date("agreed_payment_date"),
			AgreedDeliveryDate:       g.date("agreed_delivery_date"),
			AgreedDeliveryLocationID: g.int("agreed_delivery_location_id"),
		}
		row.CreatedDate, row.CreatedTime = g.splitTimestamp("created_at")
		row.LastUpdatedDate, row.LastUpdatedTime = g.splitTimestamp("last_updated")
		if g.err != nil {
			return nil, g.err
		}
		rows = append(rows, row)
	}
	return tables.NewSet(tables.FactSalesOrderTable, rows), nil
}

func transformPayment(batch raw.Batch) (*tables.Set[tables.FactPayment], error) {
	const table = "payment"
	if err := requireColumns(table, batch,
		"payment_id", "created_at", "last_updated", "transaction_id", "counterparty_id",
		"payment_amount", "currency_id", "payment_type_id", "paid", "payment_date",
	); err != nil {
		return nil, err
	}

	rows := make([]tables.FactPayment, 0, len(batch))
	for i, rec := range batch {
		g := newGetter(table, i, rec)
		row := tables.FactPayment{
			PaymentRecordID: int64(i + 1),
			PaymentID:       g.int("payment_id"),
			TransactionID:   g.int("transaction_id"),
			CounterpartyID:  g.int("counterparty_id"),
			PaymentAmount:   g.money("payment_amount"),
			CurrencyID:      g.int("currency_id"),
			PaymentTypeID:   g.int("payment_type_id"),
			Paid:            g.bool("paid"),
			PaymentDate:     g.date("payment_date"),
		}
		row.CreatedDate, row.CreatedTime = g.splitTimestamp("created_at")
		row.LastUpdatedDate, row.LastUpdatedTime = g.splitTimestamp("last_updated")
		if g.err != nil {
			return nil, g.err
		}
		rows = append(rows, row)
	}
	return tables.NewSet(tables.FactPaymentTable, rows), nil
}

func transformPurchaseOrder(batch raw.Batch) (*tables.Set[tables.FactPurchaseOrder], error) {
	const table = "purchase_order"
	if err := requireColumns(table, batch,
		"purchase_order_id", "created_at", "last_updated", "staff_id", "counterparty_id",
		"item_code", "item_quantity", "item_unit_price", "currency_id",
		"agreed_delivery_date", "agreed_payment_date", "agreed_delivery_location_id",
	); err != nil {
		return nil, err
	}

	rows := make([]tables.FactPurchaseOrder, 0, len(batch))
	for i, rec := range batch {
		g := newGetter(table, i, rec)
		row := tables.FactPurchaseOrder{
			PurchaseRecordID:         int64(i + 1),
			PurchaseOrderID:          g.int("purchase_order_id"),
			StaffID:                  g.int("staff_id"),
			CounterpartyID:           g.int("counterparty_id"),
			ItemCode:                 g.str("item_code"),
			ItemQuantity:             g.int("item_quantity"),
			ItemUnitPrice:            g.money("item_unit_price"),
			CurrencyID:               g.int("currency_id"),
			AgreedDeliveryDate:       g.date("agreed_delivery_date"),
			AgreedPaymentDate:        g.date("agreed_payment_date"),
			AgreedDeliveryLocationID: g.int("agreed_delivery_location_id"),
		}
		row.CreatedDate, row.CreatedTime = g.splitTimestamp("created_at")
		row.LastUpdatedDate, row.LastUpdatedTime = g.splitTimestamp("last_updated")
		if g.err != nil {
			return nil, g.err
		}
		rows = append(rows, row)
	}
	return tables.NewSet(tables.FactPurchaseOrderTable, rows), nil
}

// transformDates derives dim_date from every date a sales order batch
// mentions. Exact duplicates go first, then repeats of the same calendar
// day, keeping first occurrence order.
func transformDates(batch raw.Batch) (*tables.Set[tables.DimDate], error) {
	const table = "sales_order"
	if err := requireColumns(table, batch, salesDateColumns...); err != nil {
		return nil, err
	}

	var stamps []time.Time
	seenStamp := make(map[string]struct{})
	for _, col := range salesDateColumns {
		for i, rec := range batch {
			g := newGetter(table, i, rec)
			if _, ok := g.value(col); !ok {
				continue
			}
			ts := g.timestamp(col)
			if g.err != nil {
				return nil, g.err
			}
			key := ts.Format(time.RFC3339Nano)
			if _, dup := seenStamp[key]; dup {
				continue
			}
			seenStamp[key] = struct{}{}
			stamps = append(stamps, ts)
		}
	}

	rows := make([]tables.DimDate, 0, len(stamps))
	seenDay := make(map[string]struct{})
	for _, ts := range stamps {
		row := dateRow(ts)
		if _, dup := seenDay[row.DateID]; dup {
			continue
		}
		seenDay[row.DateID] = struct{}{}
		rows = append(rows, row)
	}
	return tables.NewSet(tables.DimDateTable, rows), nil
}

func dateRow(ts time.Time) tables.DimDate {
	month := int64(ts.Month())
	return tables.DimDate{
		DateID:    ts.Format(dateLayout),
		Year:      int64(ts.Year()),
		Month:     month,
		Day:       int64(ts.Day()),
		DayOfWeek: isoWeekday(ts.Weekday()),
		DayName:   ts.Weekday().String(),
		MonthName: ts.Month().String(),
		Quarter:   (month-1)/3 + 1,
	}
}

// isoWeekday numbers Monday as 1 and Sunday as 7.
func isoWeekday(d time.Weekday) int64 {
	return int64((d+6)%7) + 1
}
