package services

import (
	"context"
	"fmt"
	"strings"

	"hospital-billing/models"

	"gorm.io/gorm"
)

type CreatePatientInput struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Phone     string `json:"phone"`
}

type CreateDoctorInput struct {
	Name            string       `json:"name" validate:"required"`
	Department      string       `json:"department"`
	ConsultationFee models.Money `json:"consultation_fee" validate:"gte=0"`
}

// PatientService is the minimal registry the billing triggers reference.
type PatientService struct {
	deps Deps
}

func NewPatientService(deps Deps) *PatientService {
	return &PatientService{deps: deps}
}

func (s *PatientService) Create(ctx context.Context, actor Actor, in CreatePatientInput) (*models.Patient, error) {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, invalid("first_name and last_name are required")
	}
	patient := &models.Patient{FirstName: in.FirstName, LastName: in.LastName, Phone: in.Phone}
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		number, err := nextNumber(tx, "patient", "PAT")
		if err != nil {
			return err
		}
		patient.PatientNumber = number
		return tx.Create(patient).Error
	})
	if err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "CREATE_PATIENT", "patients", fmt.Sprintf("%s %s %s", patient.PatientNumber, patient.FirstName, patient.LastName))
	return patient, nil
}

func (s *PatientService) Get(ctx context.Context, id string) (*models.Patient, error) {
	var patient models.Patient
	if err := s.deps.Store.Reader(ctx).Where("id = ?", id).First(&patient).Error; err != nil {
		return nil, notFoundOr(err, "patient", id)
	}
	return &patient, nil
}

// CreateDoctor seeds reference data for consultation billing.
func (s *PatientService) CreateDoctor(ctx context.Context, actor Actor, in CreateDoctorInput) (*models.Doctor, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name is required")
	}
	if in.ConsultationFee < 0 {
		return nil, invalid("consultation fee must not be negative")
	}
	doctor := &models.Doctor{Name: in.Name, Department: in.Department, ConsultationFee: in.ConsultationFee}
	if err := s.deps.Store.Reader(ctx).Create(doctor).Error; err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "CREATE_DOCTOR", "patients", doctor.Name)
	return doctor, nil
}
