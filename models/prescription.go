package models

import (
	"time"

	"gorm.io/gorm"
)

type PrescriptionStatus string

const (
	PrescriptionPending   PrescriptionStatus = "pending"
	PrescriptionDispensed PrescriptionStatus = "dispensed"
)

type Prescription struct {
	Id                 string             `json:"id" gorm:"primaryKey"`
	PrescriptionNumber string             `json:"prescription_number" gorm:"uniqueIndex;not null"`
	PatientId          string             `json:"patient_id" gorm:"not null;index"`
	DoctorId           *string            `json:"doctor_id"`
	VisitId            *string            `json:"visit_id" gorm:"index"`
	Diagnosis          string             `json:"diagnosis"`
	Notes              string             `json:"notes"`
	Items              []PrescriptionItem `json:"items" gorm:"foreignKey:PrescriptionId;constraint:OnDelete:CASCADE"`
	Status             PrescriptionStatus `json:"status" gorm:"size:12;not null;index"`
	InvoiceId          *string            `json:"invoice_id"`
	DispensedAt        *time.Time         `json:"dispensed_at"`
	DispensedBy        string             `json:"dispensed_by"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// PrescriptionItem references the medicine by id; the name is a display snapshot.
type PrescriptionItem struct {
	Id             string `json:"id" gorm:"primaryKey"`
	PrescriptionId string `json:"-" gorm:"index"`
	Position       int    `json:"-"`
	MedicineId     string `json:"medicine_id" gorm:"not null;index"`
	MedicineName   string `json:"medicine_name"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
	Duration       string `json:"duration"`
	Quantity       int64  `json:"quantity" gorm:"not null"`
}

func (prescription *Prescription) BeforeCreate(tx *gorm.DB) (err error) {
	prescription.Id = newID(prescription.Id)
	return
}

func (item *PrescriptionItem) BeforeCreate(tx *gorm.DB) (err error) {
	item.Id = newID(item.Id)
	return
}
