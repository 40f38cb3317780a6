package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Patient struct {
	Id            string    `json:"id" gorm:"primaryKey"`
	PatientNumber string    `json:"patient_number" gorm:"uniqueIndex;not null"`
	FirstName     string    `json:"first_name" gorm:"not null"`
	LastName      string    `json:"last_name" gorm:"not null"`
	Phone         string    `json:"phone"`
	CreatedAt     time.Time `json:"created_at"`
}

func (patient *Patient) BeforeCreate(tx *gorm.DB) (err error) {
	patient.Id = newID(patient.Id)
	return
}

// Doctor is reference data; the billing core only reads the consultation fee.
type Doctor struct {
	Id              string    `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"not null"`
	Department      string    `json:"department"`
	ConsultationFee Money     `json:"consultation_fee" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"created_at"`
}

func (doctor *Doctor) BeforeCreate(tx *gorm.DB) (err error) {
	doctor.Id = newID(doctor.Id)
	return
}

// newID keeps a caller-assigned id and otherwise issues a UUID v4.
func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
