package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"hospital-billing/models"
	"hospital-billing/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateMedicineInput struct {
	Name         string       `json:"name" validate:"required"`
	GenericName  string       `json:"generic_name"`
	Category     string       `json:"category"`
	Manufacturer string       `json:"manufacturer"`
	BatchNumber  string       `json:"batch_number"`
	ExpiryDate   *time.Time   `json:"expiry_date"`
	Quantity     int64        `json:"quantity" validate:"gte=0"`
	ReorderLevel int64        `json:"reorder_level" validate:"gte=0"`
	UnitCost     models.Money `json:"unit_cost" validate:"gte=0"`
	SellingPrice models.Money `json:"selling_price" validate:"gte=0"`
}

// UpdateMedicineInput changes metadata and prices. Quantity only moves
// through Restock and Dispense.
type UpdateMedicineInput struct {
	Name         *string       `json:"name" validate:"omitempty,min=1"`
	GenericName  *string       `json:"generic_name"`
	Category     *string       `json:"category"`
	Manufacturer *string       `json:"manufacturer"`
	BatchNumber  *string       `json:"batch_number"`
	ExpiryDate   *time.Time    `json:"expiry_date"`
	ReorderLevel *int64        `json:"reorder_level" validate:"omitempty,gte=0"`
	UnitCost     *models.Money `json:"unit_cost" validate:"omitempty,gte=0"`
	SellingPrice *models.Money `json:"selling_price" validate:"omitempty,gte=0"`
}

type RestockInput struct {
	Quantity      int64         `json:"quantity" validate:"gt=0"`
	UnitCost      *models.Money `json:"unit_cost" validate:"omitempty,gte=0"`
	BatchNumber   *string       `json:"batch_number"`
	ExpiryDate    *time.Time    `json:"expiry_date"`
	RecordExpense bool          `json:"record_expense"`
	PaymentMethod string        `json:"payment_method"`
}

type PrescriptionItemInput struct {
	MedicineId string `json:"medicine_id" validate:"required"`
	Dosage     string `json:"dosage"`
	Frequency  string `json:"frequency"`
	Duration   string `json:"duration"`
	Quantity   int64  `json:"quantity" validate:"gt=0"`
}

type CreatePrescriptionInput struct {
	PatientId string                  `json:"patient_id" validate:"required"`
	DoctorId  *string                 `json:"doctor_id"`
	VisitId   *string                 `json:"visit_id"`
	Diagnosis string                  `json:"diagnosis"`
	Notes     string                  `json:"notes"`
	Items     []PrescriptionItemInput `json:"items" validate:"required,min=1,dive"`
}

type DispenseResult struct {
	Prescription *models.Prescription `json:"prescription"`
	Invoice      *models.Invoice      `json:"invoice"`
	Medicines    []models.Medicine    `json:"medicines"`
}

type PharmacyService struct {
	deps Deps
}

func NewPharmacyService(deps Deps) *PharmacyService {
	return &PharmacyService{deps: deps}
}

func (s *PharmacyService) CreateMedicine(ctx context.Context, actor Actor, in CreateMedicineInput) (*models.Medicine, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name is required")
	}
	if in.Quantity < 0 || in.ReorderLevel < 0 {
		return nil, invalid("quantity and reorder level must not be negative")
	}
	if in.UnitCost < 0 || in.SellingPrice < 0 {
		return nil, invalid("prices must not be negative")
	}

	med := &models.Medicine{
		Name:         in.Name,
		GenericName:  in.GenericName,
		Category:     in.Category,
		Manufacturer: in.Manufacturer,
		BatchNumber:  in.BatchNumber,
		ExpiryDate:   in.ExpiryDate,
		Quantity:     in.Quantity,
		ReorderLevel: in.ReorderLevel,
		UnitCost:     in.UnitCost,
		SellingPrice: in.SellingPrice,
	}
	if err := s.deps.Store.Reader(ctx).Create(med).Error; err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "CREATE_MEDICINE", "pharmacy", fmt.Sprintf("%s qty %d", med.Name, med.Quantity))
	return med, nil
}

func (s *PharmacyService) UpdateMedicine(ctx context.Context, actor Actor, id string, in UpdateMedicineInput) (*models.Medicine, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, invalid("name must not be empty")
	}
	if in.ReorderLevel != nil && *in.ReorderLevel < 0 {
		return nil, invalid("reorder level must not be negative")
	}
	if (in.UnitCost != nil && *in.UnitCost < 0) || (in.SellingPrice != nil && *in.SellingPrice < 0) {
		return nil, invalid("prices must not be negative")
	}

	var med models.Medicine
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &med, id); err != nil {
			return notFoundOr(err, "medicine", id)
		}
		updates := utils.UpdatesFromPtrDTO(&in, nil)
		if len(updates) == 0 {
			return nil
		}
		if level, ok := updates["reorder_level"].(int64); ok {
			updates["status"] = models.StockStatusFor(med.Quantity, level)
		}
		if err := tx.Model(&med).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&med).Error
	})
	if err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "UPDATE_MEDICINE", "pharmacy", med.Name)
	return &med, nil
}

func (s *PharmacyService) GetMedicine(ctx context.Context, id string) (*models.Medicine, error) {
	var med models.Medicine
	if err := s.deps.Store.Reader(ctx).Where("id = ?", id).First(&med).Error; err != nil {
		return nil, notFoundOr(err, "medicine", id)
	}
	return &med, nil
}

func (s *PharmacyService) ListMedicines(ctx context.Context, status string, p utils.Paging) ([]models.Medicine, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if status != "" {
			db = db.Where("status = ?", status)
		}
		return db
	}
	if p.PerPage <= 0 {
		p = utils.NewPaging("", "", 50, 200)
	}

	var total int64
	if err := s.deps.Store.Reader(ctx).Model(&models.Medicine{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Medicine
	err := s.deps.Store.Reader(ctx).Scopes(filter).Order("name").Offset(p.Offset).Limit(p.PerPage).Find(&out).Error
	return out, total, err
}

// Restock adds received units. With RecordExpense the purchase cost is
// posted to the cash ledger in the same transaction.
func (s *PharmacyService) Restock(ctx context.Context, actor Actor, id string, in RestockInput) (*models.Medicine, error) {
	if in.Quantity <= 0 {
		return nil, invalid("restock quantity must be positive")
	}
	if in.UnitCost != nil && *in.UnitCost < 0 {
		return nil, invalid("unit cost must not be negative")
	}

	var med models.Medicine
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &med, id); err != nil {
			return notFoundOr(err, "medicine", id)
		}
		if in.Quantity > math.MaxInt64-med.Quantity {
			return invalid("restock of %d would overflow stock of %s", in.Quantity, med.Name)
		}
		med.Quantity += in.Quantity
		if in.UnitCost != nil {
			med.UnitCost = *in.UnitCost
		}
		if in.BatchNumber != nil {
			med.BatchNumber = *in.BatchNumber
		}
		if in.ExpiryDate != nil {
			med.ExpiryDate = in.ExpiryDate
		}
		if err := tx.Save(&med).Error; err != nil {
			return err
		}

		cost, err := med.UnitCost.Times(in.Quantity)
		if err != nil {
			return invalid("restock cost: %v", err)
		}
		if !in.RecordExpense || cost <= 0 {
			return nil
		}
		return s.deps.postCashEntryTx(tx, &models.CashEntry{
			Type:           models.CashExpense,
			Category:       models.CategoryMedicinePurchase,
			Description:    fmt.Sprintf("Restock %s x%d", med.Name, in.Quantity),
			Amount:         cost,
			PaymentMethod:  in.PaymentMethod,
			ReferenceType:  "medicine",
			ReferenceId:    med.Id,
			Department:     models.DepartmentPharmacy,
			RecordedBy:     actor.ID,
			RecordedByName: actor.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	s.deps.record(ctx, actor, "RESTOCK", "pharmacy", fmt.Sprintf("%s +%d -> %d", med.Name, in.Quantity, med.Quantity))
	return &med, nil
}

func validatePrescriptionItems(items []PrescriptionItemInput) error {
	if len(items) == 0 {
		return invalid("prescription needs at least one medicine")
	}
	for i, it := range items {
		if strings.TrimSpace(it.MedicineId) == "" {
			return invalid("item %d: medicine_id is required", i)
		}
		if it.Quantity <= 0 {
			return invalid("item %d: quantity must be positive", i)
		}
	}
	return nil
}

// createPrescriptionTx resolves each medicine by id and stores a pending prescription.
func (d Deps) createPrescriptionTx(tx *gorm.DB, rx *models.Prescription, items []PrescriptionItemInput) error {
	number, err := nextNumber(tx, "prescription", "RX")
	if err != nil {
		return err
	}
	rx.PrescriptionNumber = number
	rx.Status = models.PrescriptionPending

	rx.Items = make([]models.PrescriptionItem, 0, len(items))
	for i, it := range items {
		var med models.Medicine
		if err := tx.Select("id", "name").Where("id = ?", it.MedicineId).First(&med).Error; err != nil {
			return notFoundOr(err, "medicine", it.MedicineId)
		}
		rx.Items = append(rx.Items, models.PrescriptionItem{
			Position:     i,
			MedicineId:   med.Id,
			MedicineName: med.Name,
			Dosage:       it.Dosage,
			Frequency:    it.Frequency,
			Duration:     it.Duration,
			Quantity:     it.Quantity,
		})
	}
	return tx.Create(rx).Error
}

func (s *PharmacyService) CreatePrescription(ctx context.Context, actor Actor, in CreatePrescriptionInput) (*models.Prescription, error) {
	if strings.TrimSpace(in.PatientId) == "" {
		return nil, invalid("patient_id is required")
	}
	if err := validatePrescriptionItems(in.Items); err != nil {
		return nil, err
	}

	rx := &models.Prescription{
		PatientId: in.PatientId,
		DoctorId:  in.DoctorId,
		VisitId:   in.VisitId,
		Diagnosis: in.Diagnosis,
		Notes:     in.Notes,
	}
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := ensurePatientTx(tx, in.PatientId); err != nil {
			return err
		}
		return s.deps.createPrescriptionTx(tx, rx, in.Items)
	})
	if err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "CREATE_PRESCRIPTION", "pharmacy",
		fmt.Sprintf("%s for patient %s, %d items", rx.PrescriptionNumber, rx.PatientId, len(rx.Items)))
	return rx, nil
}

func (s *PharmacyService) GetPrescription(ctx context.Context, id string) (*models.Prescription, error) {
	var rx models.Prescription
	if err := s.deps.Store.Reader(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).Where("id = ?", id).First(&rx).Error; err != nil {
		return nil, notFoundOr(err, "prescription", id)
	}
	return &rx, nil
}

// Dispense deducts every prescribed line from stock, bills the patient with
// one invoice and marks the prescription dispensed. Either all of it commits
// or none of it does.
func (s *PharmacyService) Dispense(ctx context.Context, actor Actor, prescriptionID string) (*DispenseResult, error) {
	var (
		rx        models.Prescription
		invoice   models.Invoice
		medicines []models.Medicine
	)
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &rx, prescriptionID); err != nil {
			return notFoundOr(err, "prescription", prescriptionID)
		}
		if rx.Status == models.PrescriptionDispensed {
			return conflict("prescription %s already dispensed", rx.PrescriptionNumber)
		}
		if err := tx.Where("prescription_id = ?", rx.Id).Order("position").Find(&rx.Items).Error; err != nil {
			return err
		}
		if len(rx.Items) == 0 {
			return invalid("prescription %s has no items", rx.PrescriptionNumber)
		}

		// Lock medicines in id order so two dispenses never wait on each other in a cycle.
		lines := append([]models.PrescriptionItem(nil), rx.Items...)
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].MedicineId < lines[j].MedicineId })

		touched := map[string]int{}
		for _, line := range lines {
			var med models.Medicine
			if err := lockByID(tx, &med, line.MedicineId); err != nil {
				return notFoundOr(err, "medicine", line.MedicineId)
			}
			if med.Quantity < line.Quantity {
				return &InsufficientStockError{
					MedicineId: med.Id,
					Medicine:   med.Name,
					Available:  med.Quantity,
					Requested:  line.Quantity,
				}
			}
			med.Quantity -= line.Quantity
			if err := tx.Save(&med).Error; err != nil {
				return err
			}
			if i, ok := touched[med.Id]; ok {
				medicines[i] = med
			} else {
				touched[med.Id] = len(medicines)
				medicines = append(medicines, med)
			}
		}

		// Bill in prescribed order.
		for _, line := range rx.Items {
			med := medicines[touched[line.MedicineId]]
			item, err := models.NewInvoiceItem(med.Name, "Pharmacy", line.Quantity, med.SellingPrice)
			if err != nil {
				return invalid("%v", err)
			}
			invoice.Items = append(invoice.Items, item)
		}

		invoice.PatientId = rx.PatientId
		invoice.Source = models.SourcePharmacy
		invoice.SourceId = rx.Id
		// Dispensed medicines are billed at selling price without tax.
		if err := s.deps.createInvoiceTx(tx, &invoice, decimal.Zero); err != nil {
			return err
		}

		now := s.deps.now()
		rx.Status = models.PrescriptionDispensed
		rx.InvoiceId = &invoice.Id
		rx.DispensedAt = &now
		rx.DispensedBy = actor.Name
		return tx.Omit(clause.Associations).Save(&rx).Error
	})
	if err != nil {
		return nil, err
	}

	for _, med := range medicines {
		if med.Status != models.InStock {
			s.deps.logger().Warn("medicine below reorder level",
				zap.String("medicine", med.Name), zap.Int64("quantity", med.Quantity), zap.String("status", string(med.Status)))
		}
	}
	s.deps.record(ctx, actor, "DISPENSE", "pharmacy",
		fmt.Sprintf("%s dispensed, invoice %s total %s", rx.PrescriptionNumber, invoice.InvoiceNumber, invoice.Total))
	return &DispenseResult{Prescription: &rx, Invoice: &invoice, Medicines: medicines}, nil
}
