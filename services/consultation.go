package services

import (
	"context"
	"fmt"
	"strings"

	"hospital-billing/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateVisitInput struct {
	PatientId string `json:"patient_id" validate:"required"`
	DoctorId  string `json:"doctor_id" validate:"required"`
}

type CompleteConsultationInput struct {
	Diagnosis   string                  `json:"diagnosis"`
	Notes       string                  `json:"notes"`
	Medications []PrescriptionItemInput `json:"medications" validate:"dive"`
}

type ConsultationResult struct {
	Visit        *models.Visit        `json:"visit"`
	Prescription *models.Prescription `json:"prescription,omitempty"`
	Invoice      *models.Invoice      `json:"invoice"`
}

type ConsultationService struct {
	deps Deps
}

func NewConsultationService(deps Deps) *ConsultationService {
	return &ConsultationService{deps: deps}
}

func (s *ConsultationService) CreateVisit(ctx context.Context, actor Actor, in CreateVisitInput) (*models.Visit, error) {
	if strings.TrimSpace(in.PatientId) == "" || strings.TrimSpace(in.DoctorId) == "" {
		return nil, invalid("patient_id and doctor_id are required")
	}
	visit := &models.Visit{PatientId: in.PatientId, DoctorId: in.DoctorId, Status: models.VisitWaiting}
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := ensurePatientTx(tx, in.PatientId); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.Doctor{}).Where("id = ?", in.DoctorId).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return notFound("doctor", in.DoctorId)
		}
		number, err := nextNumber(tx, "visit", "OPD")
		if err != nil {
			return err
		}
		visit.VisitNumber = number
		return tx.Create(visit).Error
	})
	if err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "CREATE_VISIT", "opd", fmt.Sprintf("%s patient %s doctor %s", visit.VisitNumber, visit.PatientId, visit.DoctorId))
	return visit, nil
}

// StartConsultation calls a waiting patient in to the doctor.
func (s *ConsultationService) StartConsultation(ctx context.Context, actor Actor, visitID string) (*models.Visit, error) {
	var visit models.Visit
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &visit, visitID); err != nil {
			return notFoundOr(err, "visit", visitID)
		}
		if visit.Status != models.VisitWaiting {
			return conflict("visit %s is %s, not waiting", visit.VisitNumber, visit.Status)
		}
		visit.Status = models.VisitInConsultation
		return tx.Omit(clause.Associations).Save(&visit).Error
	})
	if err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "START_CONSULTATION", "opd", visit.VisitNumber)
	return &visit, nil
}

// CompleteConsultation finalizes a visit as one unit of work: an optional
// pending prescription, the consultation-fee invoice, and the visit status.
func (s *ConsultationService) CompleteConsultation(ctx context.Context, actor Actor, visitID string, in CompleteConsultationInput) (*ConsultationResult, error) {
	if len(in.Medications) > 0 {
		if err := validatePrescriptionItems(in.Medications); err != nil {
			return nil, err
		}
	}

	var visit models.Visit
	if err := s.deps.Store.Reader(ctx).Where("id = ?", visitID).First(&visit).Error; err != nil {
		return nil, notFoundOr(err, "visit", visitID)
	}
	fee, err := s.deps.Catalog.ConsultationFee(ctx, visit.DoctorId)
	if err != nil {
		return nil, err
	}

	var (
		rx      *models.Prescription
		invoice models.Invoice
	)
	err = s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &visit, visitID); err != nil {
			return notFoundOr(err, "visit", visitID)
		}
		if visit.Status == models.VisitCompleted {
			return conflict("visit %s already completed", visit.VisitNumber)
		}

		if len(in.Medications) > 0 {
			doctorID := visit.DoctorId
			rx = &models.Prescription{
				PatientId: visit.PatientId,
				DoctorId:  &doctorID,
				VisitId:   &visit.Id,
				Diagnosis: in.Diagnosis,
				Notes:     in.Notes,
			}
			if err := s.deps.createPrescriptionTx(tx, rx, in.Medications); err != nil {
				return err
			}
			visit.PrescriptionId = &rx.Id
		}

		line, err := models.NewInvoiceItem("Consultation fee", "Consultation", 1, fee)
		if err != nil {
			return invalid("%v", err)
		}
		invoice = models.Invoice{
			PatientId: visit.PatientId,
			Items:     []models.InvoiceItem{line},
			Source:    models.SourceConsultation,
			SourceId:  visit.Id,
		}
		if err := s.deps.createInvoiceTx(tx, &invoice, s.deps.TaxRate); err != nil {
			return err
		}

		now := s.deps.now()
		visit.Status = models.VisitCompleted
		visit.Diagnosis = in.Diagnosis
		visit.InvoiceId = &invoice.Id
		visit.CompletedAt = &now
		return tx.Omit(clause.Associations).Save(&visit).Error
	})
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("%s completed, invoice %s total %s", visit.VisitNumber, invoice.InvoiceNumber, invoice.Total)
	if rx != nil {
		details += ", prescription " + rx.PrescriptionNumber
	}
	s.deps.record(ctx, actor, "COMPLETE_CONSULTATION", "opd", details)
	return &ConsultationResult{Visit: &visit, Prescription: rx, Invoice: &invoice}, nil
}
