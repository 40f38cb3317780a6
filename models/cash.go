package models

import (
	"time"

	"gorm.io/gorm"
)

type CashType string

const (
	CashIncome  CashType = "income"
	CashExpense CashType = "expense"
)

type CashStatus string

const (
	CashCompleted CashStatus = "completed"
	CashPending   CashStatus = "pending"
	CashCancelled CashStatus = "cancelled"
)

// Categories and departments posted automatically.
const (
	CategoryPatientPayment   = "Patient Payment"
	CategoryMedicinePurchase = "Medicine Purchase"
	DepartmentBilling        = "Billing"
	DepartmentPharmacy       = "Pharmacy"
)

// CashEntry is a single income or expense posting. Only status and
// classification fields change after creation.
type CashEntry struct {
	Id                string     `json:"id" gorm:"primaryKey"`
	TransactionNumber string     `json:"transaction_number" gorm:"uniqueIndex;not null"`
	Date              time.Time  `json:"date" gorm:"index"`
	Type              CashType   `json:"type" gorm:"size:10;not null;index"`
	Category          string     `json:"category" gorm:"not null"`
	Description       string     `json:"description"`
	Amount            Money      `json:"amount" gorm:"not null"`
	PaymentMethod     string     `json:"payment_method"`
	ReferenceType     string     `json:"reference_type" gorm:"size:20"`
	ReferenceId       string     `json:"reference_id" gorm:"index"`
	Department        string     `json:"department" gorm:"index"`
	Status            CashStatus `json:"status" gorm:"size:12;not null"`
	RecordedBy        string     `json:"recorded_by"`
	RecordedByName    string     `json:"recorded_by_name"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (entry *CashEntry) BeforeCreate(tx *gorm.DB) (err error) {
	entry.Id = newID(entry.Id)
	return
}

type DepartmentBudget struct {
	Id         string    `json:"id" gorm:"primaryKey"`
	Department string    `json:"department" gorm:"uniqueIndex;not null"`
	Amount     Money     `json:"amount" gorm:"not null"`
	Period     string    `json:"period" gorm:"size:10;not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (budget *DepartmentBudget) BeforeCreate(tx *gorm.DB) (err error) {
	budget.Id = newID(budget.Id)
	return
}
