package models

import (
	"time"

	"gorm.io/gorm"
)

type StockStatus string

const (
	InStock    StockStatus = "in-stock"
	LowStock   StockStatus = "low-stock"
	OutOfStock StockStatus = "out-of-stock"
)

// StockStatusFor is the only source of a medicine's status.
func StockStatusFor(quantity, reorderLevel int64) StockStatus {
	switch {
	case quantity <= 0:
		return OutOfStock
	case quantity <= reorderLevel:
		return LowStock
	default:
		return InStock
	}
}

type Medicine struct {
	Id           string      `json:"id" gorm:"primaryKey"`
	Name         string      `json:"name" gorm:"not null;index"`
	GenericName  string      `json:"generic_name"`
	Category     string      `json:"category"`
	Manufacturer string      `json:"manufacturer"`
	BatchNumber  string      `json:"batch_number"`
	ExpiryDate   *time.Time  `json:"expiry_date"`
	Quantity     int64       `json:"quantity" gorm:"not null;default:0"`
	ReorderLevel int64       `json:"reorder_level" gorm:"not null;default:0"`
	UnitCost     Money       `json:"unit_cost"`
	SellingPrice Money       `json:"selling_price"`
	Status       StockStatus `json:"status" gorm:"size:16;index"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (medicine *Medicine) BeforeCreate(tx *gorm.DB) (err error) {
	medicine.Id = newID(medicine.Id)
	return
}

func (medicine *Medicine) BeforeSave(tx *gorm.DB) (err error) {
	medicine.Status = StockStatusFor(medicine.Quantity, medicine.ReorderLevel)
	return
}
