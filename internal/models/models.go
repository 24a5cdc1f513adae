package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Role is the closed set of user roles. Authorization decisions key off this
// value through the capability table in the auth package, never through
// string comparison at call sites.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Setting - free-form key/value configuration (invoice prefix, state code...)
type Setting struct {
	Key   string `gorm:"column:key;primaryKey" json:"key"`
	Value string `gorm:"column:value" json:"value"`
}

func (Setting) TableName() string { return "settings" }

// Product - the inventory master record.
// CurrentStock is a cached projection over stock_history. Nothing outside
// ledger.Append is allowed to write it.
type Product struct {
	ID              uint            `gorm:"column:id;primaryKey" json:"id"`
	Name            string          `gorm:"column:name" json:"name"`
	Category        string          `gorm:"column:category" json:"category"`
	HSNCode         string          `gorm:"column:hsn_code" json:"hsn_code"`
	Unit            string          `gorm:"column:unit;default:Nos" json:"unit"`
	PackageSize     string          `gorm:"column:package_size" json:"package_size"`
	BatchNumber     string          `gorm:"column:batch_number" json:"batch_number"`
	ExpiryDate      string          `gorm:"column:expiry_date" json:"expiry_date"`
	MRP             decimal.Decimal `gorm:"column:mrp" json:"mrp"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent" json:"discount_percent"`
	SellingPrice    decimal.Decimal `gorm:"column:selling_price" json:"selling_price"`
	PurchasePrice   decimal.Decimal `gorm:"column:purchase_price" json:"purchase_price"`
	GSTRate         decimal.Decimal `gorm:"column:gst_rate" json:"gst_rate"`
	CurrentStock    float64         `gorm:"column:current_stock" json:"current_stock"`
	MinStockLevel   float64         `gorm:"column:min_stock_level" json:"min_stock_level"`
}

func (Product) TableName() string { return "products" }

// Customer - who we bill.
type Customer struct {
	ID      uint   `gorm:"column:id;primaryKey" json:"id"`
	Name    string `gorm:"column:name" json:"name"`
	Phone   string `gorm:"column:phone" json:"phone"`
	Email   string `gorm:"column:email" json:"email"`
	Address string `gorm:"column:address" json:"address"`
	GSTIN   string `gorm:"column:gstin" json:"gstin"`
}

func (Customer) TableName() string { return "customers" }

// SalesPerson - staff attributable on bills. Soft-deactivated so historical
// invoices keep their attribution; rows are never deleted.
type SalesPerson struct {
	ID       uint   `gorm:"column:id;primaryKey" json:"id"`
	Name     string `gorm:"column:name" json:"name"`
	IsActive bool   `gorm:"column:is_active;default:true" json:"is_active"`
}

func (SalesPerson) TableName() string { return "sales_persons" }

// BillItem - one line of a bill, frozen at commit time. Prices and tax rates
// are copied from the product so later catalog edits never rewrite history.
type BillItem struct {
	ProductID       uint            `json:"productId"`
	ProductName     string          `json:"productName"`
	HSNCode         string          `json:"hsnCode,omitempty"`
	Quantity        float64         `json:"quantity"`
	MRP             decimal.Decimal `json:"mrp"`
	Rate            decimal.Decimal `json:"rate"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	GSTRate         decimal.Decimal `json:"gstRate"`
	Amount          decimal.Decimal `json:"amount"`
	BatchNumber     string          `json:"batchNumber,omitempty"`
	ExpiryDate      string          `json:"expiryDate,omitempty"`
}

// BillItems serializes to the JSON-encoded `items` TEXT column on bills.
type BillItems []BillItem

func (b BillItems) Value() (driver.Value, error) {
	if b == nil {
		b = BillItems{}
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (b *BillItems) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*b = BillItems{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), b)
	case []byte:
		return json.Unmarshal(v, b)
	default:
		return fmt.Errorf("cannot scan %T into BillItems", src)
	}
}

// Bill - the immutable invoice record. Customer and sales person fields are
// snapshots taken at commit time. Corrections go through a reversing bill,
// never an edit.
type Bill struct {
	ID              uint            `gorm:"column:id;primaryKey" json:"id"`
	InvoiceNumber   string          `gorm:"column:invoice_number" json:"invoice_number"`
	Date            string          `gorm:"column:date" json:"date"`
	CustomerID      uint            `gorm:"column:customer_id" json:"customer_id"`
	CustomerName    string          `gorm:"column:customer_name" json:"customer_name"`
	CustomerPhone   string          `gorm:"column:customer_phone" json:"customer_phone"`
	CustomerAddress string          `gorm:"column:customer_address" json:"customer_address"`
	CustomerGSTIN   string          `gorm:"column:customer_gstin" json:"customer_gstin"`
	SalesPersonID   uint            `gorm:"column:sales_person_id" json:"sales_person_id"`
	SalesPersonName string          `gorm:"column:sales_person_name" json:"sales_person_name"`
	IsGSTBill       bool            `gorm:"column:is_gst_bill;default:true" json:"is_gst_bill"`
	SubTotal        decimal.Decimal `gorm:"column:sub_total" json:"sub_total"`
	TaxableAmount   decimal.Decimal `gorm:"column:taxable_amount" json:"taxable_amount"`
	CGSTAmount      decimal.Decimal `gorm:"column:cgst_amount" json:"cgst_amount"`
	SGSTAmount      decimal.Decimal `gorm:"column:sgst_amount" json:"sgst_amount"`
	IGSTAmount      decimal.Decimal `gorm:"column:igst_amount" json:"igst_amount"`
	TotalTax        decimal.Decimal `gorm:"column:total_tax" json:"total_tax"`
	RoundOff        decimal.Decimal `gorm:"column:round_off" json:"round_off"`
	GrandTotal      decimal.Decimal `gorm:"column:grand_total" json:"grand_total"`
	Items           BillItems       `gorm:"column:items" json:"items"`
}

func (Bill) TableName() string { return "bills" }

// StockHistoryEntry - one immutable stock movement. The sum of a product's
// entries is its current stock; entries are never edited or deleted.
type StockHistoryEntry struct {
	ID           uint    `gorm:"column:id;primaryKey" json:"id"`
	Timestamp    string  `gorm:"column:timestamp" json:"timestamp"`
	ProductID    uint    `gorm:"column:product_id" json:"product_id"`
	ProductName  string  `gorm:"column:product_name" json:"product_name"`
	ChangeAmount float64 `gorm:"column:change_amount" json:"change_amount"`
	Reason       string  `gorm:"column:reason" json:"reason"`
	ReferenceID  string  `gorm:"column:reference_id" json:"reference_id"`
}

func (StockHistoryEntry) TableName() string { return "stock_history" }

// BackupRecord - a full-dataset snapshot. Data is the JSON payload.
type BackupRecord struct {
	ID        uint   `gorm:"column:id;primaryKey" json:"id"`
	Timestamp string `gorm:"column:timestamp" json:"timestamp"`
	Type      string `gorm:"column:type;default:auto" json:"type"`
	Size      int64  `gorm:"column:size" json:"size"`
	Data      string `gorm:"column:data" json:"-"`
}

func (BackupRecord) TableName() string { return "backups" }

// User - an account that can open the till.
type User struct {
	Username     string  `gorm:"column:username;primaryKey" json:"username"`
	PasswordHash string  `gorm:"column:password_hash" json:"-"` // Never return this in JSON
	Role         Role    `gorm:"column:role;default:user" json:"role"`
	LastLogin    *string `gorm:"column:last_login" json:"last_login"`
}

func (User) TableName() string { return "users" }
