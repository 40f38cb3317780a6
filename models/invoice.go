package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePartial InvoiceStatus = "partial"
	InvoicePaid    InvoiceStatus = "paid"
)

// Where an invoice came from.
const (
	SourceManual       = "manual"
	SourceLab          = "lab"
	SourceConsultation = "consultation"
	SourcePharmacy     = "pharmacy"
	SourceDischarge    = "discharge"
)

// Invoice is the live state of a patient bill.
type Invoice struct {
	Id            string     `json:"id" gorm:"primaryKey"`
	InvoiceNumber string     `json:"invoice_number" gorm:"uniqueIndex;not null"`
	PatientId     string     `json:"patient_id" gorm:"not null;index"`
	Patient       *Patient   `json:"patient,omitempty" gorm:"foreignKey:PatientId;references:Id;constraint:OnDelete:RESTRICT"`
	IssueDate     time.Time  `json:"issue_date"`
	DueDate       *time.Time `json:"due_date"`

	Items     []InvoiceItem   `json:"items" gorm:"foreignKey:InvoiceId;constraint:OnDelete:CASCADE"`
	Subtotal  Money           `json:"subtotal"`
	TaxRate   decimal.Decimal `json:"tax_rate" gorm:"type:numeric(7,3)"`
	TaxAmount Money           `json:"tax_amount"`
	Discount  Money           `json:"discount"`
	Total     Money           `json:"total"`

	PaidAmount       Money         `json:"paid_amount"`
	PaymentMethod    string        `json:"payment_method"`
	Status           InvoiceStatus `json:"status" gorm:"size:16;index"`
	InsuranceClaimId *string       `json:"insurance_claim_id"`

	Source   string `json:"source" gorm:"size:20"`
	SourceId string `json:"source_id" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type InvoiceItem struct {
	Id          string `json:"id" gorm:"primaryKey"`
	InvoiceId   string `json:"-" gorm:"index"`
	Position    int    `json:"-"`
	Description string `json:"description" gorm:"not null"`
	Category    string `json:"category"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   Money  `json:"unit_price"`
	Total       Money  `json:"total"`
}

func (invoice *Invoice) BeforeCreate(tx *gorm.DB) (err error) {
	invoice.Id = newID(invoice.Id)
	return
}

func (item *InvoiceItem) BeforeCreate(tx *gorm.DB) (err error) {
	item.Id = newID(item.Id)
	return
}

// NewInvoiceItem prices a line at quantity x unit price.
func NewInvoiceItem(description, category string, qty int64, unitPrice Money) (InvoiceItem, error) {
	total, err := unitPrice.Times(qty)
	if err != nil {
		return InvoiceItem{}, fmt.Errorf("%s: %w", description, err)
	}
	return InvoiceItem{
		Description: description,
		Category:    category,
		Quantity:    qty,
		UnitPrice:   unitPrice,
		Total:       total,
	}, nil
}

// InvoiceStatusFor derives the payment state from what was paid against what is owed.
func InvoiceStatusFor(paid, total Money) InvoiceStatus {
	switch {
	case paid <= 0:
		return InvoiceUnpaid
	case paid >= total:
		return InvoicePaid
	default:
		return InvoicePartial
	}
}

// Recalculate sums the line totals and re-derives tax, total and status.
// It fails without touching the invoice when an amount leaves the Money range.
func (invoice *Invoice) Recalculate(taxRate decimal.Decimal) error {
	var (
		subtotal Money
		err      error
	)
	for i := range invoice.Items {
		if subtotal, err = subtotal.Add(invoice.Items[i].Total); err != nil {
			return fmt.Errorf("subtotal: %w", err)
		}
	}
	tax, err := subtotal.Percent(taxRate)
	if err != nil {
		return fmt.Errorf("tax: %w", err)
	}
	gross, err := subtotal.Add(tax)
	if err != nil {
		return fmt.Errorf("total: %w", err)
	}

	for i := range invoice.Items {
		invoice.Items[i].Position = i
	}
	invoice.Subtotal = subtotal
	invoice.TaxRate = taxRate
	invoice.TaxAmount = tax
	invoice.Total = gross - invoice.Discount
	invoice.Status = InvoiceStatusFor(invoice.PaidAmount, invoice.Total)
	return nil
}

// PaymentKey records a payment request that was already applied to an invoice.
type PaymentKey struct {
	Id          string    `json:"id" gorm:"primaryKey"`
	InvoiceId   string    `json:"invoice_id" gorm:"not null;uniqueIndex:idx_payment_keys_invoice_key,priority:1"`
	Key         string    `json:"key" gorm:"column:idempotency_key;size:128;not null;uniqueIndex:idx_payment_keys_invoice_key,priority:2"`
	RequestHash string    `json:"request_hash" gorm:"size:64"`
	PaidAmount  Money     `json:"paid_amount"`
	Increment   Money     `json:"increment"`
	CashEntryId *string   `json:"cash_entry_id"`
	ActorId     string    `json:"actor_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (key *PaymentKey) BeforeCreate(tx *gorm.DB) (err error) {
	key.Id = newID(key.Id)
	return
}
