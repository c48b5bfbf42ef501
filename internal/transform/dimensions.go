package transform

import (
	"context"
	"fmt"

	"github.com/withObsrvr/warehouse-etl/internal/raw"
	"github.com/withObsrvr/warehouse-etl/internal/tables"
)

// noneText fills missing optional address text. Downstream reports expect
// the literal string.
const noneText = "None"

// currencyNames resolves currency_name when the source omits it.
var currencyNames = map[string]string{
	"USD": "United States Dollar",
	"GBP": "British Pound",
	"EUR": "Euro",
}

func transformDesign(batch raw.Batch) (*tables.Set[tables.DimDesign], error) {
	const table = "design"
	if err := requireColumns(table, batch, "design_id", "design_name", "file_location", "file_name"); err != nil {
		return nil, err
	}

	rows := make([]tables.DimDesign, 0, len(batch))
	for i, rec := range batch {
		g := newGetter(table, i, rec)
		row := tables.DimDesign{
			DesignID:     g.int("design_id"),
			DesignName:   g.str("design_name"),
			FileLocation: g.str("file_location"),
			FileName:     g.str("file_name"),
		}
		if g.err != nil {
			return nil, g.err
		}
		rows = append(rows, row)
	}
	return tables.NewSet(tables.DimDesignTable, rows), nil
}

func transformTransaction(batch raw.Batch) (*tables.Set[tables.DimTransaction], error) {
	const table = "transaction"
	if err := requireColumns(table, batch, "transaction_id", "transaction_type", "sales_order_id", "purchase_order_id"); err != nil {
		return nil, err
	}

	rows := make([]tables.DimTransaction, 0, len(batch))
	for i, rec := range batch {
		g := newGetter(table, i, rec)
		row := tables.DimTransaction{
			TransactionID:   g.int("transaction_id"),
			TransactionType: g.str("transaction_type"),
			SalesOrderID:    g.optInt("sales_order_id"),
			PurchaseOrderID: g.optInt("purchase_order_id"),
		}
		if g.err != nil {
			return nil, g.err
		}
		rows = append(rows, row)
	}
	return tables.NewSet(tables.DimTransactionTable, rows), nil
}

func transformPaymentType(batch raw.Batch) (*tables.Set[tables.DimPaymentType], error) {
	const table = "payment_type"
	if err := requireColumns(table, batch, "payment_type_id", "payment_type_name"); err != nil {
		return nil, err
	}

	rows := make([]tables.DimPaymentType, 0, len(batch))
	for i, rec := range batch {
		g := newGetter(table, i, rec)
		row := tables.DimPaymentType{
			PaymentTypeID:   g.int("payment_type_id"),
			PaymentTypeName: g.str("payment_type_name"),
		}
		if g.err != nil {
			return nil, g.err
		}
		rows = append(rows, row)
	}
	return tables.NewSet(tables.DimPaymentTypeTable, rows), nil
}

func transformLocation(batch raw.Batch) (*tables.Set[tables.DimLocation], error) {
	const table = "address"
	if err := requireColumns(table, batch, "address_id", "address_line_1", "city", "postal_code", "country", "phone"); err != nil {
		return nil, err
	}

	rows := make([]tables.DimLocation, 0, len(batch))
	for i, rec := range batch {
		g := newGetter(table, i, rec)
		row := tables.DimLocation{
			LocationID:   g.int("address_id"),
			AddressLine1: g.str("address_line_1"),
			AddressLine2: orNone(g.optStr("address_line_2")),
			District:     orNone(g.optStr("district")),
			City:         g.str("city"),
			PostalCode:   g.str("postal_code"),
			Country:      g.str("country"),
			Phone:        g.str("phone"),
		}
		if g.err != nil {
			return nil, g.err
		}
		rows = append(rows, row)
	}
	return tables.NewSet(tables.DimLocationTable, rows), nil
}

func orNone(s *string) string {
	if s == nil {
		return noneText
	}
	return *s
}

func transformCurrency(batch raw.Batch) (*tables.Set[tables.DimCurrency], error) {
	const table = "currency"
	if err := requireColumns(table, batch, "currency_id", "currency_code"); err != nil {
		return nil, err
	}
	named := hasColumn(batch, "currency_name")

	rows := make([]tables.DimCurrency, 0, len(batch))
	for i, rec := range batch {
		g := newGetter(table, i, rec)
		row := tables.DimCurrency{
			CurrencyID:   g.int("currency_id"),
			CurrencyCode: g.str("currency_code"),
		}
		if named {
			row.CurrencyName = g.optStr("currency_name")
		} else if name, ok := currencyNames[row.CurrencyCode]; ok {
			row.CurrencyName = &name
		}
		if g.err != nil {
			return nil, g.err
		}
		rows = append(rows, row)
	}
	return tables.NewSet(tables.DimCurrencyTable, rows), nil
}

type department struct {
	name     *string
	location *string
}

func (t *Transformer) transformStaff(ctx context.Context, batch raw.Batch) (*tables.Set[tables.DimStaff], error) {
	const table = "staff"
	if err := requireColumns(table, batch, "staff_id", "first_name", "last_name", "department_id", "email_address"); err != nil {
		return nil, err
	}

	refs, err := t.reference(ctx, tables.SourceDepartment)
	if err != nil {
		return nil, err
	}
	if err := requireColumns("department", refs, "department_id", "department_name", "location"); err != nil {
		return nil, err
	}

	// Later extractions overwrite earlier ones.
	departments := make(map[int64]department, len(refs))
	for i, rec := range refs {
		g := newGetter("department", i, rec)
		id := g.int("department_id")
		d := department{name: g.optStr("department_name"), location: g.optStr("location")}
		if g.err != nil {
			return nil, g.err
		}
		departments[id] = d
	}

	rows := make([]tables.DimStaff, 0, len(batch))
	for i, rec := range batch {
		g := newGetter(table, i, rec)
		row := tables.DimStaff{
			StaffID:      g.int("staff_id"),
			FirstName:    g.str("first_name"),
			LastName:     g.str("last_name"),
			EmailAddress: g.str("email_address"),
		}
		deptID := g.optInt("department_id")
		if g.err != nil {
			return nil, g.err
		}
		if deptID != nil {
			if d, ok := departments[*deptID]; ok {
				row.DepartmentName = d.name
				row.Location = d.location
			}
		}
		rows = append(rows, row)
	}
	return tables.NewSet(tables.DimStaffTable, rows), nil
}

type legalAddress struct {
	line1, line2, district, city, postalCode, country, phone *string
}

func (t *Transformer) transformCounterparty(ctx context.Context, batch raw.Batch) (*tables.Set[tables.DimCounterparty], error) {
	const table = "counterparty"
	if err := requireColumns(table, batch, "counterparty_id", "counterparty_legal_name", "legal_address_id"); err != nil {
		return nil, err
	}

	refs, err := t.reference(ctx, tables.SourceAddress)
	if err != nil {
		return nil, err
	}
	if err := requireColumns("address", refs, "address_id", "address_line_1", "city", "postal_code", "country", "phone"); err != nil {
		return nil, err
	}

	addresses := make(map[int64]legalAddress, len(refs))
	for i, rec := range refs {
		g := newGetter("address", i, rec)
		id := g.int("address_id")
		a := legalAddress{
			line1:      g.optStr("address_line_1"),
			line2:      g.optStr("address_line_2"),
			district:   g.optStr("district"),
			city:       g.optStr("city"),
			postalCode: g.optStr("postal_code"),
			country:    g.optStr("country"),
			phone:      g.optStr("phone"),
		}
		if g.err != nil {
			return nil, g.err
		}
		addresses[id] = a
	}

	rows := make([]tables.DimCounterparty, 0, len(batch))
	for i, rec := range batch {
		g := newGetter(table, i, rec)
		row := tables.DimCounterparty{
			CounterpartyID:        g.int("counterparty_id"),
			CounterpartyLegalName: g.str("counterparty_legal_name"),
		}
		addrID := g.optInt("legal_address_id")
		if g.err != nil {
			return nil, g.err
		}
		if addrID != nil {
			if a, ok := addresses[*addrID]; ok {
				row.CounterpartyLegalAddressLine1 = a.line1
				row.CounterpartyLegalAddressLine2 = a.line2
				row.CounterpartyLegalDistrict = a.district
				row.CounterpartyLegalCity = a.city
				row.CounterpartyLegalPostalCode = a.postalCode
				row.CounterpartyLegalCountry = a.country
				row.CounterpartyLegalPhoneNumber = a.phone
			}
		}
		rows = append(rows, row)
	}
	return tables.NewSet(tables.DimCounterpartyTable, rows), nil
}

// reference reads the full raw partition of a join partner.
func (t *Transformer) reference(ctx context.Context, table tables.Source) (raw.Batch, error) {
	if t.refs == nil {
		return nil, fmt.Errorf("read %s: no reference reader configured", table)
	}
	refs, err := t.refs.ReadAll(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyReference, table)
	}
	return refs, nil
}
