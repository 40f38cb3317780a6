package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"hospital-billing/models"
	"hospital-billing/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceItemInput struct {
	Description string        `json:"description" validate:"required"`
	Category    string        `json:"category"`
	Quantity    int64         `json:"quantity" validate:"gt=0"`
	UnitPrice   models.Money  `json:"unit_price" validate:"gte=0"`
	Total       *models.Money `json:"total" validate:"omitempty,gte=0"`
}

type CreateInvoiceInput struct {
	PatientId        string             `json:"patient_id" validate:"required"`
	Items            []InvoiceItemInput `json:"items" validate:"required,min=1,dive"`
	Discount         models.Money       `json:"discount" validate:"gte=0"`
	DueDate          *time.Time         `json:"due_date"`
	PaymentMethod    string             `json:"payment_method"`
	InsuranceClaimId *string            `json:"insurance_claim_id"`
}

type UpdateItemsInput struct {
	Items []InvoiceItemInput `json:"items" validate:"required,min=1,dive"`
}

// PaymentInput sets the invoice's cumulative paid amount. The key identifies
// one payment attempt; resubmitting it never posts a second cash entry.
type PaymentInput struct {
	IdempotencyKey string        `json:"-"`
	PaidAmount     *models.Money `json:"paid_amount" validate:"omitempty,gte=0"`
	PaymentMethod  *string       `json:"payment_method"`
	Discount       *models.Money `json:"discount" validate:"omitempty,gte=0"`
}

type InvoiceFilter struct {
	PatientId string
	Status    string
	Paging    utils.Paging
}

type InvoiceService struct {
	deps Deps
}

func NewInvoiceService(deps Deps) *InvoiceService {
	return &InvoiceService{deps: deps}
}

func buildItems(in []InvoiceItemInput) ([]models.InvoiceItem, error) {
	if len(in) == 0 {
		return nil, invalid("invoice needs at least one item")
	}
	items := make([]models.InvoiceItem, 0, len(in))
	for i, it := range in {
		if strings.TrimSpace(it.Description) == "" {
			return nil, invalid("item %d: description is required", i)
		}
		if it.Quantity <= 0 {
			return nil, invalid("item %d: quantity must be positive", i)
		}
		if it.UnitPrice < 0 {
			return nil, invalid("item %d: unit price must not be negative", i)
		}
		line, err := models.NewInvoiceItem(it.Description, it.Category, it.Quantity, it.UnitPrice)
		if err != nil {
			return nil, invalid("item %d: %v", i, err)
		}
		if it.Total != nil {
			if *it.Total < 0 {
				return nil, invalid("item %d: total must not be negative", i)
			}
			line.Total = *it.Total
		}
		items = append(items, line)
	}
	return items, nil
}

// Create writes a manual invoice with computed totals.
func (s *InvoiceService) Create(ctx context.Context, actor Actor, in CreateInvoiceInput) (*models.Invoice, error) {
	if strings.TrimSpace(in.PatientId) == "" {
		return nil, invalid("patient_id is required")
	}
	if in.Discount < 0 {
		return nil, invalid("discount must not be negative")
	}
	items, err := buildItems(in.Items)
	if err != nil {
		return nil, err
	}

	inv := &models.Invoice{
		PatientId:        in.PatientId,
		DueDate:          in.DueDate,
		Items:            items,
		Discount:         in.Discount,
		PaymentMethod:    in.PaymentMethod,
		InsuranceClaimId: in.InsuranceClaimId,
		Source:           models.SourceManual,
	}
	err = s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		return s.deps.createInvoiceTx(tx, inv, s.deps.TaxRate)
	})
	if err != nil {
		return nil, err
	}

	s.deps.record(ctx, actor, "CREATE_INVOICE", "billing",
		fmt.Sprintf("invoice %s for patient %s, total %s", inv.InvoiceNumber, inv.PatientId, inv.Total))
	return inv, nil
}

func paymentHash(invoiceID string, in PaymentInput) string {
	h := sha256.New()
	h.Write([]byte(invoiceID))
	h.Write([]byte{'\n'})
	if in.PaidAmount != nil {
		h.Write([]byte(in.PaidAmount.String()))
	}
	h.Write([]byte{'\n'})
	if in.PaymentMethod != nil {
		h.Write([]byte(*in.PaymentMethod))
	}
	h.Write([]byte{'\n'})
	if in.Discount != nil {
		h.Write([]byte(in.Discount.String()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ApplyPayment sets the cumulative paid amount (and optionally discount and
// method). A positive increment is posted to the cash ledger in the same
// transaction. A key that was already applied replays the current invoice.
func (s *InvoiceService) ApplyPayment(ctx context.Context, actor Actor, invoiceID string, in PaymentInput) (*models.Invoice, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		return nil, invalid("idempotency key is required")
	}
	if len(key) > 128 {
		return nil, invalid("idempotency key too long")
	}
	if in.PaidAmount != nil && *in.PaidAmount < 0 {
		return nil, invalid("paid amount must not be negative")
	}
	if in.Discount != nil && *in.Discount < 0 {
		return nil, invalid("discount must not be negative")
	}
	reqHash := paymentHash(invoiceID, in)

	var (
		inv       models.Invoice
		increment models.Money
		replayed  bool
	)
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &inv, invoiceID); err != nil {
			return notFoundOr(err, "invoice", invoiceID)
		}
		if err := loadInvoiceItems(tx, &inv); err != nil {
			return err
		}

		var seen models.PaymentKey
		err := tx.Where("invoice_id = ? AND idempotency_key = ?", inv.Id, key).First(&seen).Error
		switch {
		case err == nil:
			if seen.RequestHash != reqHash {
				return conflict("idempotency key %q was already used with a different payment", key)
			}
			replayed = true
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		previous := inv.PaidAmount
		if in.Discount != nil {
			inv.Discount = *in.Discount
			inv.Total = inv.Subtotal + inv.TaxAmount - inv.Discount
			if inv.Total < 0 {
				return invalid("discount %s exceeds invoice amount %s", inv.Discount, inv.Subtotal+inv.TaxAmount)
			}
		}
		if in.PaidAmount != nil {
			inv.PaidAmount = *in.PaidAmount
		}
		if in.PaymentMethod != nil {
			inv.PaymentMethod = *in.PaymentMethod
		}
		inv.Status = models.InvoiceStatusFor(inv.PaidAmount, inv.Total)
		if err := tx.Omit(clause.Associations).Save(&inv).Error; err != nil {
			return err
		}

		record := models.PaymentKey{
			InvoiceId:   inv.Id,
			Key:         key,
			RequestHash: reqHash,
			PaidAmount:  inv.PaidAmount,
			ActorId:     actor.ID,
		}
		increment = inv.PaidAmount - previous
		if increment > 0 {
			entry := models.CashEntry{
				Type:           models.CashIncome,
				Category:       models.CategoryPatientPayment,
				Description:    fmt.Sprintf("Payment for invoice %s", inv.InvoiceNumber),
				Amount:         increment,
				PaymentMethod:  inv.PaymentMethod,
				ReferenceType:  "invoice",
				ReferenceId:    inv.Id,
				Department:     models.DepartmentBilling,
				RecordedBy:     actor.ID,
				RecordedByName: actor.Name,
			}
			if err := s.deps.postCashEntryTx(tx, &entry); err != nil {
				return err
			}
			record.Increment = increment
			record.CashEntryId = &entry.Id
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		s.deps.logger().Info("payment replayed", zap.String("invoice", inv.InvoiceNumber), zap.String("key", key))
		return &inv, nil
	}
	s.deps.record(ctx, actor, "APPLY_PAYMENT", "billing",
		fmt.Sprintf("invoice %s paid %s (+%s), status %s", inv.InvoiceNumber, inv.PaidAmount, increment, inv.Status))
	return &inv, nil
}

// UpdateItems replaces the line items and re-prices the invoice. Payments are untouched.
func (s *InvoiceService) UpdateItems(ctx context.Context, actor Actor, invoiceID string, in UpdateItemsInput) (*models.Invoice, error) {
	items, err := buildItems(in.Items)
	if err != nil {
		return nil, err
	}

	var inv models.Invoice
	err = s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &inv, invoiceID); err != nil {
			return notFoundOr(err, "invoice", invoiceID)
		}
		if err := tx.Where("invoice_id = ?", inv.Id).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		inv.Items = items
		if err := inv.Recalculate(inv.TaxRate); err != nil {
			return invalid("%v", err)
		}
		if inv.Total < 0 {
			return invalid("discount %s exceeds invoice amount %s", inv.Discount, inv.Subtotal+inv.TaxAmount)
		}
		for i := range inv.Items {
			inv.Items[i].InvoiceId = inv.Id
		}
		if err := tx.Create(&inv.Items).Error; err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(&inv).Error
	})
	if err != nil {
		return nil, err
	}

	s.deps.record(ctx, actor, "UPDATE_INVOICE_ITEMS", "billing",
		fmt.Sprintf("invoice %s re-priced, total %s", inv.InvoiceNumber, inv.Total))
	return &inv, nil
}

// Delete removes an unpaid invoice. Invoices with recorded payments are kept
// so their cash entries never lose their source.
func (s *InvoiceService) Delete(ctx context.Context, actor Actor, invoiceID string) error {
	var inv models.Invoice
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &inv, invoiceID); err != nil {
			return notFoundOr(err, "invoice", invoiceID)
		}
		if inv.PaidAmount > 0 {
			return conflict("invoice %s has payments of %s and cannot be deleted", inv.InvoiceNumber, inv.PaidAmount)
		}
		if err := tx.Where("invoice_id = ?", inv.Id).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&inv).Error
	})
	if err != nil {
		return err
	}

	s.deps.record(ctx, actor, "DELETE_INVOICE", "billing", fmt.Sprintf("invoice %s deleted", inv.InvoiceNumber))
	return nil
}

func (s *InvoiceService) Get(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.deps.Store.Reader(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id = ?", invoiceID).
		First(&inv).Error
	if err != nil {
		return nil, notFoundOr(err, "invoice", invoiceID)
	}
	return &inv, nil
}

func (s *InvoiceService) List(ctx context.Context, f InvoiceFilter) ([]models.Invoice, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if f.PatientId != "" {
			db = db.Where("patient_id = ?", f.PatientId)
		}
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		return db
	}
	if f.Paging.PerPage <= 0 {
		f.Paging = utils.NewPaging("", "", 20, 100)
	}

	var total int64
	if err := s.deps.Store.Reader(ctx).Model(&models.Invoice{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.Invoice
	err := s.deps.Store.Reader(ctx).Scopes(filter).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("created_at DESC").Order("invoice_number DESC").
		Offset(f.Paging.Offset).Limit(f.Paging.PerPage).
		Find(&out).Error
	return out, total, err
}
