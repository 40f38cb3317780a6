package models

import (
	"time"

	"gorm.io/gorm"
)

type VisitStatus string

const (
	VisitWaiting        VisitStatus = "waiting"
	VisitInConsultation VisitStatus = "in-consultation"
	VisitCompleted      VisitStatus = "completed"
)

// Visit is an outpatient consultation.
type Visit struct {
	Id             string      `json:"id" gorm:"primaryKey"`
	VisitNumber    string      `json:"visit_number" gorm:"uniqueIndex;not null"`
	PatientId      string      `json:"patient_id" gorm:"not null;index"`
	DoctorId       string      `json:"doctor_id" gorm:"not null;index"`
	Status         VisitStatus `json:"status" gorm:"size:20;not null"`
	Diagnosis      string      `json:"diagnosis"`
	PrescriptionId *string     `json:"prescription_id"`
	InvoiceId      *string     `json:"invoice_id"`
	CompletedAt    *time.Time  `json:"completed_at"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (visit *Visit) BeforeCreate(tx *gorm.DB) (err error) {
	visit.Id = newID(visit.Id)
	return
}
