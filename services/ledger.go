package services

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"hospital-billing/models"
)

// Helpers shared by every operation that posts to the invoice or cash ledger.
// They only ever run inside a caller's transaction.

func ensurePatientTx(tx *gorm.DB, patientID string) error {
	var n int64
	if err := tx.Model(&models.Patient{}).Where("id = ?", patientID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return notFound("patient", patientID)
	}
	return nil
}

// createInvoiceTx numbers, prices and inserts inv with its items.
func (d Deps) createInvoiceTx(tx *gorm.DB, inv *models.Invoice, taxRate decimal.Decimal) error {
	if len(inv.Items) == 0 {
		return invalid("invoice needs at least one item")
	}
	if err := ensurePatientTx(tx, inv.PatientId); err != nil {
		return err
	}

	number, err := nextNumber(tx, "invoice", "INV")
	if err != nil {
		return err
	}
	inv.InvoiceNumber = number
	if inv.IssueDate.IsZero() {
		inv.IssueDate = d.now()
	}
	if inv.Source == "" {
		inv.Source = models.SourceManual
	}

	if err := inv.Recalculate(taxRate); err != nil {
		return invalid("%v", err)
	}
	if inv.Total < 0 {
		return invalid("discount %s exceeds invoice amount %s", inv.Discount, inv.Subtotal+inv.TaxAmount)
	}
	return tx.Create(inv).Error
}

// postCashEntryTx numbers and inserts a cash ledger entry.
func (d Deps) postCashEntryTx(tx *gorm.DB, entry *models.CashEntry) error {
	if entry.Amount <= 0 {
		return invalid("amount must be positive")
	}
	number, err := nextNumber(tx, "cash", "TXN")
	if err != nil {
		return err
	}
	entry.TransactionNumber = number
	if entry.Date.IsZero() {
		entry.Date = d.now()
	}
	if entry.Status == "" {
		entry.Status = models.CashCompleted
	}
	return tx.Create(entry).Error
}

func loadInvoiceItems(tx *gorm.DB, inv *models.Invoice) error {
	return tx.Where("invoice_id = ?", inv.Id).Order("position").Find(&inv.Items).Error
}
