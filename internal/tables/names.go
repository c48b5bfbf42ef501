// Package tables defines the source and warehouse table sets, the typed
// warehouse rows and their parquet codec.
package tables

// Source is a table of the operational source database.
type Source string

// Source tables, in extraction order.
const (
	SourceAddress       Source = "address"
	SourceDesign        Source = "design"
	SourceCounterparty  Source = "counterparty"
	SourceSalesOrder    Source = "sales_order"
	SourceTransaction   Source = "transaction"
	SourcePayment       Source = "payment"
	SourcePurchaseOrder Source = "purchase_order"
	SourcePaymentType   Source = "payment_type"
	SourceCurrency      Source = "currency"
	SourceDepartment    Source = "department"
	SourceStaff         Source = "staff"
)

// SourceTables lists every source table in extraction order.
var SourceTables = []Source{
	SourceAddress,
	SourceDesign,
	SourceCounterparty,
	SourceSalesOrder,
	SourceTransaction,
	SourcePayment,
	SourcePurchaseOrder,
	SourcePaymentType,
	SourceCurrency,
	SourceDepartment,
	SourceStaff,
}

// ParseSource returns the Source named name.
func ParseSource(name string) (Source, bool) {
	for _, s := range SourceTables {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// Warehouse is a table of the star schema.
type Warehouse string

const (
	DimDateTable           Warehouse = "dim_date"
	DimLocationTable       Warehouse = "dim_location"
	DimDesignTable         Warehouse = "dim_design"
	DimStaffTable          Warehouse = "dim_staff"
	DimCurrencyTable       Warehouse = "dim_currency"
	DimCounterpartyTable   Warehouse = "dim_counterparty"
	DimTransactionTable    Warehouse = "dim_transaction"
	DimPaymentTypeTable    Warehouse = "dim_payment_type"
	FactSalesOrderTable    Warehouse = "fact_sales_order"
	FactPaymentTable       Warehouse = "fact_payment"
	FactPurchaseOrderTable Warehouse = "fact_purchase_order"
)

// WarehouseTables lists every warehouse table, dimensions before facts.
var WarehouseTables = []Warehouse{
	DimDateTable,
	DimLocationTable,
	DimDesignTable,
	DimStaffTable,
	DimCurrencyTable,
	DimCounterpartyTable,
	DimTransactionTable,
	DimPaymentTypeTable,
	FactSalesOrderTable,
	FactPaymentTable,
	FactPurchaseOrderTable,
}

// ParseWarehouse returns the Warehouse table named name.
func ParseWarehouse(name string) (Warehouse, bool) {
	for _, w := range WarehouseTables {
		if string(w) == name {
			return w, true
		}
	}
	return "", false
}

// IsFact reports whether w is a fact table.
func (w Warehouse) IsFact() bool {
	switch w {
	case FactSalesOrderTable, FactPaymentTable, FactPurchaseOrderTable:
		return true
	}
	return false
}
