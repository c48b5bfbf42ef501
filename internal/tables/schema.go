package tables

// Dates are carried as "2006-01-02" strings and times of day as
// "15:04:05.999999" strings; the warehouse casts them on insert.
// Nullable columns are pointers so parquet marks them optional.

// DimDate is one calendar day referenced by a sales order.
type DimDate struct {
	DateID    string `parquet:"date_id"`
	Year      int64  `parquet:"year"`
	Month     int64  `parquet:"month"`
	Day       int64  `parquet:"day"`
	DayOfWeek int64  `parquet:"day_of_week"`
	DayName   string `parquet:"day_name"`
	MonthName string `parquet:"month_name"`
	Quarter   int64  `parquet:"quarter"`
}

// DimLocation is a postal address.
type DimLocation struct {
	LocationID   int64  `parquet:"location_id"`
	AddressLine1 string `parquet:"address_line_1"`
	AddressLine2 string `parquet:"address_line_2"`
	District     string `parquet:"district"`
	City         string `parquet:"city"`
	PostalCode   string `parquet:"postal_code"`
	Country      string `parquet:"country"`
	Phone        string `parquet:"phone"`
}

// DimDesign is a product design.
type DimDesign struct {
	DesignID     int64  `parquet:"design_id"`
	DesignName   string `parquet:"design_name"`
	FileLocation string `parquet:"file_location"`
	FileName     string `parquet:"file_name"`
}

// DimStaff is a staff member with their department denormalized.
type DimStaff struct {
	StaffID        int64   `parquet:"staff_id"`
	FirstName      string  `parquet:"first_name"`
	LastName       string  `parquet:"last_name"`
	DepartmentName *string `parquet:"department_name"`
	Location       *string `parquet:"location"`
	EmailAddress   string  `parquet:"email_address"`
}

// DimCurrency is a currency.
type DimCurrency struct {
	CurrencyID   int64   `parquet:"currency_id"`
	CurrencyCode string  `parquet:"currency_code"`
	CurrencyName *string `parquet:"currency_name"`
}

// DimCounterparty is a trading partner with its legal address denormalized.
type DimCounterparty struct {
	CounterpartyID                int64   `parquet:"counterparty_id"`
	CounterpartyLegalName         string  `parquet:"counterparty_legal_name"`
	CounterpartyLegalAddressLine1 *string `parquet:"counterparty_legal_address_line_1"`
	CounterpartyLegalAddressLine2 *string `parquet:"counterparty_legal_address_line_2"`
	CounterpartyLegalDistrict     *string `parquet:"counterparty_legal_district"`
	CounterpartyLegalCity         *string `parquet:"counterparty_legal_city"`
	CounterpartyLegalPostalCode   *string `parquet:"counterparty_legal_postal_code"`
	CounterpartyLegalCountry      *string `parquet:"counterparty_legal_country"`
	CounterpartyLegalPhoneNumber  *string `parquet:"counterparty_legal_phone_number"`
}

// DimTransaction is a transaction, linked to either a sale or a purchase.
type DimTransaction struct {
	TransactionID   int64  `parquet:"transaction_id"`
	TransactionType string `parquet:"transaction_type"`
	SalesOrderID    *int64 `parquet:"sales_order_id"`
	PurchaseOrderID *int64 `parquet:"purchase_order_id"`
}

// DimPaymentType is a payment method.
type DimPaymentType struct {
	PaymentTypeID   int64  `parquet:"payment_type_id"`
	PaymentTypeName string `parquet:"payment_type_name"`
}

// FactSalesOrder is one sales order row.
type FactSalesOrder struct {
	SalesRecordID            int64   `parquet:"sales_record_id"`
	SalesOrderID             int64   `parquet:"sales_order_id"`
	CreatedDate              string  `parquet:"created_date"`
	CreatedTime              string  `parquet:"created_time"`
	LastUpdatedDate          string  `parquet:"last_updated_date"`
	LastUpdatedTime          string  `parquet:"last_updated_time"`
	SalesStaffID             int64   `parquet:"sales_staff_id"`
	CounterpartyID           int64   `parquet:"counterparty_id"`
	UnitsSold                int64   `parquet:"units_sold"`
	UnitPrice                float64 `parquet:"unit_price"`
	CurrencyID               int64   `parquet:"currency_id"`
	DesignID                 int64   `parquet:"design_id"`
	AgreedPaymentDate        string  `parquet:"agreed_payment_date"`
	AgreedDeliveryDate       string  `parquet:"agreed_delivery_date"`
	AgreedDeliveryLocationID int64   `parquet:"agreed_delivery_location_id"`
}

// FactPayment is one payment row.
type FactPayment struct {
	PaymentRecordID int64   `parquet:"payment_record_id"`
	PaymentID       int64   `parquet:"payment_id"`
	CreatedDate     string  `parquet:"created_date"`
	CreatedTime     string  `parquet:"created_time"`
	LastUpdatedDate string  `parquet:"last_updated_date"`
	LastUpdatedTime string  `parquet:"last_updated_time"`
	TransactionID   int64   `parquet:"transaction_id"`
	CounterpartyID  int64   `parquet:"counterparty_id"`
	PaymentAmount   float64 `parquet:"payment_amount"`
	CurrencyID      int64   `parquet:"currency_id"`
	PaymentTypeID   int64   `parquet:"payment_type_id"`
	Paid            bool    `parquet:"paid"`
	PaymentDate     string  `parquet:"payment_date"`
}

// FactPurchaseOrder is one purchase order row.
type FactPurchaseOrder struct {
	PurchaseRecordID         int64   `parquet:"purchase_record_id"`
	PurchaseOrderID          int64   `parquet:"purchase_order_id"`
	CreatedDate              string  `parquet:"created_date"`
	CreatedTime              string  `parquet:"created_time"`
	LastUpdatedDate          string  `parquet:"last_updated_date"`
	LastUpdatedTime          string  `parquet:"last_updated_time"`
	StaffID                  int64   `parquet:"staff_id"`
	CounterpartyID           int64   `parquet:"counterparty_id"`
	ItemCode                 string  `parquet:"item_code"`
	ItemQuantity             int64   `parquet:"item_quantity"`
	ItemUnitPrice            float64 `parquet:"item_unit_price"`
	CurrencyID               int64   `parquet:"currency_id"`
	AgreedDeliveryDate       string  `parquet:"agreed_delivery_date"`
	AgreedPaymentDate        string  `parquet:"agreed_payment_date"`
	AgreedDeliveryLocationID int64   `parquet:"agreed_delivery_location_id"`
}

// SchemaVersion returns the version of the warehouse row schema.
// Increment this when making breaking changes.
const SchemaVersion = "1.0.0"
