package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hospital-billing/models"

	"gorm.io/gorm"
)

type CreateBedInput struct {
	Ward      string       `json:"ward" validate:"required"`
	BedNumber string       `json:"bed_number" validate:"required"`
	DailyRate models.Money `json:"daily_rate" validate:"gte=0"`
}

type AdmitInput struct {
	PatientId     string     `json:"patient_id" validate:"required"`
	BedId         string     `json:"bed_id" validate:"required"`
	DoctorId      *string    `json:"doctor_id"`
	AdmissionDate *time.Time `json:"admission_date"`
}

// SetBedStatusInput takes a free bed out of service or returns it. Occupancy
// only changes through Admit and Discharge.
type SetBedStatusInput struct {
	Status models.BedStatus `json:"status" validate:"required,oneof=available cleaning maintenance"`
}

type DischargeInput struct {
	DischargeDate *time.Time `json:"discharge_date"`
}

type DischargeResult struct {
	Admission *models.Admission `json:"admission"`
	Bed       *models.Bed       `json:"bed"`
	Invoice   *models.Invoice   `json:"invoice,omitempty"`
}

type AdmissionService struct {
	deps Deps
}

func NewAdmissionService(deps Deps) *AdmissionService {
	return &AdmissionService{deps: deps}
}

func (s *AdmissionService) CreateBed(ctx context.Context, actor Actor, in CreateBedInput) (*models.Bed, error) {
	if strings.TrimSpace(in.Ward) == "" || strings.TrimSpace(in.BedNumber) == "" {
		return nil, invalid("ward and bed_number are required")
	}
	if in.DailyRate < 0 {
		return nil, invalid("daily rate must not be negative")
	}
	bed := &models.Bed{Ward: in.Ward, BedNumber: in.BedNumber, DailyRate: in.DailyRate, Status: models.BedAvailable}
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Bed{}).Where("ward = ? AND bed_number = ?", in.Ward, in.BedNumber).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return conflict("bed %s already exists in ward %s", in.BedNumber, in.Ward)
		}
		return tx.Create(bed).Error
	})
	if err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "CREATE_BED", "ipd", fmt.Sprintf("%s/%s rate %s", bed.Ward, bed.BedNumber, bed.DailyRate))
	return bed, nil
}

func (s *AdmissionService) SetBedStatus(ctx context.Context, actor Actor, bedID string, in SetBedStatusInput) (*models.Bed, error) {
	switch in.Status {
	case models.BedAvailable, models.BedCleaning, models.BedMaintenance:
	default:
		return nil, invalid("bed status %q cannot be set directly", in.Status)
	}

	var bed models.Bed
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &bed, bedID); err != nil {
			return notFoundOr(err, "bed", bedID)
		}
		if bed.Status == models.BedOccupied {
			return conflict("bed %s/%s is occupied", bed.Ward, bed.BedNumber)
		}
		bed.Status = in.Status
		return tx.Save(&bed).Error
	})
	if err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "UPDATE_BED_STATUS", "ipd", fmt.Sprintf("%s/%s -> %s", bed.Ward, bed.BedNumber, bed.Status))
	return &bed, nil
}

func (s *AdmissionService) Admit(ctx context.Context, actor Actor, in AdmitInput) (*models.Admission, error) {
	if strings.TrimSpace(in.PatientId) == "" || strings.TrimSpace(in.BedId) == "" {
		return nil, invalid("patient_id and bed_id are required")
	}

	adm := &models.Admission{PatientId: in.PatientId, BedId: in.BedId, DoctorId: in.DoctorId, Status: models.Admitted}
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := ensurePatientTx(tx, in.PatientId); err != nil {
			return err
		}
		var bed models.Bed
		if err := lockByID(tx, &bed, in.BedId); err != nil {
			return notFoundOr(err, "bed", in.BedId)
		}
		if bed.Status != models.BedAvailable {
			return conflict("bed %s/%s is %s", bed.Ward, bed.BedNumber, bed.Status)
		}

		number, err := nextNumber(tx, "admission", "ADM")
		if err != nil {
			return err
		}
		adm.AdmissionNumber = number
		adm.Ward = bed.Ward
		adm.BedNumber = bed.BedNumber
		adm.AdmissionDate = s.deps.now()
		if in.AdmissionDate != nil {
			adm.AdmissionDate = in.AdmissionDate.UTC()
		}
		if err := tx.Create(adm).Error; err != nil {
			return err
		}

		bed.Status = models.BedOccupied
		bed.PatientId = &adm.PatientId
		return tx.Save(&bed).Error
	})
	if err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "ADMIT", "ipd", fmt.Sprintf("%s patient %s bed %s/%s", adm.AdmissionNumber, adm.PatientId, adm.Ward, adm.BedNumber))
	return adm, nil
}

// Discharge frees the bed and bills the stay (started days x daily rate) on
// a discharge invoice, all in one transaction. A zero charge creates no invoice.
func (s *AdmissionService) Discharge(ctx context.Context, actor Actor, admissionID string, in DischargeInput) (*DischargeResult, error) {
	var (
		adm     models.Admission
		bed     models.Bed
		invoice *models.Invoice
	)
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &adm, admissionID); err != nil {
			return notFoundOr(err, "admission", admissionID)
		}
		if adm.Status == models.Discharged {
			return conflict("admission %s already discharged", adm.AdmissionNumber)
		}
		if err := lockByID(tx, &bed, adm.BedId); err != nil {
			return notFoundOr(err, "bed", adm.BedId)
		}

		discharged := s.deps.now()
		if in.DischargeDate != nil {
			discharged = in.DischargeDate.UTC()
		}
		if discharged.Before(adm.AdmissionDate) {
			return invalid("discharge date %s is before admission date %s",
				discharged.Format(time.RFC3339), adm.AdmissionDate.Format(time.RFC3339))
		}

		days := models.StayDays(adm.AdmissionDate, discharged)
		adm.Status = models.Discharged
		adm.DischargeDate = &discharged
		adm.StayDays = days
		line, err := models.NewInvoiceItem(fmt.Sprintf("Bed charges %s/%s", bed.Ward, bed.BedNumber), "Room", days, bed.DailyRate)
		if err != nil {
			return invalid("%v", err)
		}
		adm.StayCharge = line.Total

		if adm.StayCharge > 0 {
			invoice = &models.Invoice{
				PatientId: adm.PatientId,
				Items:     []models.InvoiceItem{line},
				Source:   models.SourceDischarge,
				SourceId: adm.Id,
			}
			if err := s.deps.createInvoiceTx(tx, invoice, s.deps.TaxRate); err != nil {
				return err
			}
			adm.InvoiceId = &invoice.Id
		}
		if err := tx.Save(&adm).Error; err != nil {
			return err
		}

		bed.Status = models.BedAvailable
		bed.PatientId = nil
		return tx.Save(&bed).Error
	})
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("%s discharged after %d day(s), stay charge %s", adm.AdmissionNumber, adm.StayDays, adm.StayCharge)
	if invoice != nil {
		details += ", invoice " + invoice.InvoiceNumber
	}
	s.deps.record(ctx, actor, "DISCHARGE", "ipd", details)
	return &DischargeResult{Admission: &adm, Bed: &bed, Invoice: invoice}, nil
}

func (s *AdmissionService) Get(ctx context.Context, id string) (*models.Admission, error) {
	var adm models.Admission
	if err := s.deps.Store.Reader(ctx).Where("id = ?", id).First(&adm).Error; err != nil {
		return nil, notFoundOr(err, "admission", id)
	}
	return &adm, nil
}
