package model

import "github.com/shopspring/decimal"

// Product is a catalog item with its current stock position. Absent quantities are read as zero.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	StockQuantity decimal.Decimal `json:"stock_quantity"`
	MinStock      decimal.Decimal `json:"min_stock"`
}

// Payable is a bill owed by the store.
type Payable struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	DueDate     string          `json:"due_date"`
}

// Receivable is an amount owed to the store by a customer.
type Receivable struct {
	ID           string          `json:"id"`
	CustomerName string          `json:"customer_name"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	DueDate      string          `json:"due_date"`
}

// Customer is a registered store customer.
type Customer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
}

// Check is a post-dated check received as payment.
type Check struct {
	ID               string          `json:"id"`
	Number           string          `json:"number"`
	Bank             string          `json:"bank,omitempty"`
	IssuerName       string          `json:"issuer_name,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Status           string          `json:"status"`
	DueDate          string          `json:"due_date,omitempty"`
	CompensationDate string          `json:"compensation_date,omitempty"`
}

// Record statuses that exclude an entry from alerting.
const (
	PayableStatusPaid        = "paid"
	ReceivableStatusReceived = "received"
	CheckStatusPending       = "pending"
)
