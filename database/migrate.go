package database

import (
	"fmt"

	"hospital-billing/models"

	"gorm.io/gorm"
)

// Migrate applies (idempotent) schema migrations:
// - AutoMigrate (tables/columns/index tags)
// - Postgres only: CHECK constraints on money and quantity columns
func Migrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&models.Patient{},
			&models.Doctor{},
			&models.Sequence{},
			&models.Invoice{},
			&models.InvoiceItem{},
			&models.PaymentKey{},
			&models.CashEntry{},
			&models.DepartmentBudget{},
			&models.Medicine{},
			&models.Prescription{},
			&models.PrescriptionItem{},
			&models.LabCatalogEntry{},
			&models.LabTest{},
			&models.Visit{},
			&models.Bed{},
			&models.Admission{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		if tx.Dialector.Name() != "postgres" {
			return nil
		}

		checks := []struct{ table, name, expr string }{
			{"medicines", "chk_medicines_quantity_nonneg", "quantity >= 0"},
			{"cash_entries", "chk_cash_entries_amount_pos", "amount > 0"},
			{"invoices", "chk_invoices_paid_nonneg", "paid_amount >= 0"},
			{"invoice_items", "chk_invoice_items_quantity_pos", "quantity > 0"},
			{"department_budgets", "chk_department_budgets_amount_nonneg", "amount >= 0"},
		}
		for _, c := range checks {
			stmt := fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conrelid = '%s'::regclass
		  AND conname  = '%s'
	) THEN
		ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
	END IF;
END $$;`, c.table, c.name, c.table, c.name, c.expr)
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed on %s: %w", c.name, err)
			}
		}
		return nil
	})
}
