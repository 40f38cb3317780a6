package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

type BedStatus string

const (
	BedAvailable   BedStatus = "available"
	BedOccupied    BedStatus = "occupied"
	BedCleaning    BedStatus = "cleaning"
	BedMaintenance BedStatus = "maintenance"
)

type AdmissionStatus string

const (
	Admitted   AdmissionStatus = "admitted"
	Discharged AdmissionStatus = "discharged"
)

type Bed struct {
	Id        string    `json:"id" gorm:"primaryKey"`
	Ward      string    `json:"ward" gorm:"not null;uniqueIndex:idx_beds_ward_number,priority:1"`
	BedNumber string    `json:"bed_number" gorm:"not null;uniqueIndex:idx_beds_ward_number,priority:2"`
	Status    BedStatus `json:"status" gorm:"size:12;not null"`
	DailyRate Money     `json:"daily_rate"`
	PatientId *string   `json:"patient_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (bed *Bed) BeforeCreate(tx *gorm.DB) (err error) {
	bed.Id = newID(bed.Id)
	return
}

type Admission struct {
	Id              string          `json:"id" gorm:"primaryKey"`
	AdmissionNumber string          `json:"admission_number" gorm:"uniqueIndex;not null"`
	PatientId       string          `json:"patient_id" gorm:"not null;index"`
	DoctorId        *string         `json:"doctor_id"`
	BedId           string          `json:"bed_id" gorm:"not null;index"`
	Ward            string          `json:"ward"`
	BedNumber       string          `json:"bed_number"`
	AdmissionDate   time.Time       `json:"admission_date"`
	DischargeDate   *time.Time      `json:"discharge_date"`
	Status          AdmissionStatus `json:"status" gorm:"size:12;not null;index"`
	StayDays        int64           `json:"stay_days"`
	StayCharge      Money           `json:"stay_charge"`
	InvoiceId       *string         `json:"invoice_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (admission *Admission) BeforeCreate(tx *gorm.DB) (err error) {
	admission.Id = newID(admission.Id)
	return
}

// StayDays is the number of started days between admission and discharge, at least one.
func StayDays(admitted, discharged time.Time) int64 {
	days := int64(math.Ceil(discharged.Sub(admitted).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}
