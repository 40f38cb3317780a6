package models

import (
	"time"

	"gorm.io/gorm"
)

type LabStatus string

const (
	LabOrdered         LabStatus = "ordered"
	LabSampleCollected LabStatus = "sample-collected"
	LabInProgress      LabStatus = "in-progress"
	LabCompleted       LabStatus = "completed"
	LabCancelled       LabStatus = "cancelled"
)

var labNext = map[LabStatus]LabStatus{
	LabOrdered:         LabSampleCollected,
	LabSampleCollected: LabInProgress,
	LabInProgress:      LabCompleted,
}

// CanMoveTo reports whether the lab workflow allows from -> to.
// Steps go forward one at a time; anything not finished can be cancelled.
func (from LabStatus) CanMoveTo(to LabStatus) bool {
	if to == LabCancelled {
		return from != LabCompleted && from != LabCancelled
	}
	return labNext[from] == to
}

// LabCatalogEntry is reference data maintained outside this service.
type LabCatalogEntry struct {
	Id         string `json:"id" gorm:"primaryKey"`
	Name       string `json:"name" gorm:"uniqueIndex;not null"`
	Category   string `json:"category"`
	SampleType string `json:"sample_type"`
	Cost       Money  `json:"cost"`
}

func (LabCatalogEntry) TableName() string { return "lab_catalog" }

func (entry *LabCatalogEntry) BeforeCreate(tx *gorm.DB) (err error) {
	entry.Id = newID(entry.Id)
	return
}

type LabTest struct {
	Id         string     `json:"id" gorm:"primaryKey"`
	TestNumber string     `json:"test_number" gorm:"uniqueIndex;not null"`
	PatientId  string     `json:"patient_id" gorm:"not null;index"`
	DoctorId   *string    `json:"doctor_id"`
	TestName   string     `json:"test_name" gorm:"not null"`
	Category   string     `json:"category"`
	SampleType string     `json:"sample_type"`
	Cost       Money      `json:"cost"`
	Status     LabStatus  `json:"status" gorm:"size:20;not null;index"`
	Result     string     `json:"result"`
	InvoiceId  *string    `json:"invoice_id"`
	Billed     bool       `json:"billed"`
	OrderedAt  time.Time  `json:"ordered_at"`
	ResultAt   *time.Time `json:"result_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (test *LabTest) BeforeCreate(tx *gorm.DB) (err error) {
	test.Id = newID(test.Id)
	return
}
