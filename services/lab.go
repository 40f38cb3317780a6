package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hospital-billing/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderLabTestInput struct {
	PatientId string        `json:"patient_id" validate:"required"`
	DoctorId  *string       `json:"doctor_id"`
	TestName  string        `json:"test_name" validate:"required"`
	Cost      *models.Money `json:"cost" validate:"omitempty,gte=0"`
}

type AdvanceLabTestInput struct {
	Status models.LabStatus `json:"status" validate:"required,oneof=sample-collected in-progress completed cancelled"`
	Result string           `json:"result"`
}

type LabService struct {
	deps Deps
}

func NewLabService(deps Deps) *LabService {
	return &LabService{deps: deps}
}

// OrderLabTest creates the test and, when it costs anything, its invoice in
// one transaction. Billing happens at order time, before the sample is taken.
func (s *LabService) OrderLabTest(ctx context.Context, actor Actor, in OrderLabTestInput) (*models.LabTest, error) {
	in.TestName = strings.TrimSpace(in.TestName)
	if strings.TrimSpace(in.PatientId) == "" || in.TestName == "" {
		return nil, invalid("patient_id and test_name are required")
	}
	if in.Cost != nil && *in.Cost < 0 {
		return nil, invalid("cost must not be negative")
	}

	test := &models.LabTest{
		Id:        uuid.NewString(),
		PatientId: in.PatientId,
		DoctorId:  in.DoctorId,
		TestName:  in.TestName,
		Status:    models.LabOrdered,
	}

	// Reference data is read before the transaction opens.
	entry, err := s.deps.Catalog.LabTest(ctx, in.TestName)
	switch {
	case err == nil:
		test.Category = entry.Category
		test.SampleType = entry.SampleType
		test.Cost = entry.Cost
	case errors.Is(err, ErrNotFound):
		if in.Cost == nil {
			return nil, invalid("test %q is not in the catalog; cost is required", in.TestName)
		}
	default:
		return nil, err
	}
	if in.Cost != nil {
		test.Cost = *in.Cost
	}

	var invoice *models.Invoice
	err = s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := ensurePatientTx(tx, test.PatientId); err != nil {
			return err
		}
		number, err := nextNumber(tx, "lab", "LAB")
		if err != nil {
			return err
		}
		test.TestNumber = number
		test.OrderedAt = s.deps.now()

		if test.Cost > 0 {
			line, err := models.NewInvoiceItem(test.TestName, "Laboratory", 1, test.Cost)
			if err != nil {
				return invalid("%v", err)
			}
			invoice = &models.Invoice{
				PatientId: test.PatientId,
				Items:     []models.InvoiceItem{line},
				Source:    models.SourceLab,
				SourceId:  test.Id,
			}
			if err := s.deps.createInvoiceTx(tx, invoice, s.deps.TaxRate); err != nil {
				return err
			}
			test.InvoiceId = &invoice.Id
			test.Billed = true
		}
		return tx.Create(test).Error
	})
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("%s %s for patient %s", test.TestNumber, test.TestName, test.PatientId)
	if invoice != nil {
		details += fmt.Sprintf(", invoice %s total %s", invoice.InvoiceNumber, invoice.Total)
	}
	s.deps.record(ctx, actor, "ORDER_LAB_TEST", "laboratory", details)
	return test, nil
}

// AdvanceLabTest moves a test one step along its workflow, or cancels it.
func (s *LabService) AdvanceLabTest(ctx context.Context, actor Actor, id string, in AdvanceLabTestInput) (*models.LabTest, error) {
	var test models.LabTest
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &test, id); err != nil {
			return notFoundOr(err, "lab test", id)
		}
		if !test.Status.CanMoveTo(in.Status) {
			return conflict("lab test %s cannot move from %s to %s", test.TestNumber, test.Status, in.Status)
		}
		test.Status = in.Status
		if in.Status == models.LabCompleted {
			now := s.deps.now()
			test.Result = in.Result
			test.ResultAt = &now
		}
		return tx.Save(&test).Error
	})
	if err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "UPDATE_LAB_STATUS", "laboratory", fmt.Sprintf("%s -> %s", test.TestNumber, test.Status))
	return &test, nil
}

func (s *LabService) Get(ctx context.Context, id string) (*models.LabTest, error) {
	var test models.LabTest
	if err := s.deps.Store.Reader(ctx).Where("id = ?", id).First(&test).Error; err != nil {
		return nil, notFoundOr(err, "lab test", id)
	}
	return &test, nil
}
