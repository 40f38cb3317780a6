package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hospital-billing/models"
	"hospital-billing/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecordEntryInput struct {
	Date          *time.Time        `json:"date"`
	Type          models.CashType   `json:"type" validate:"required,oneof=income expense"`
	Category      string            `json:"category" validate:"required"`
	Description   string            `json:"description"`
	Amount        models.Money      `json:"amount" validate:"gt=0"`
	PaymentMethod string            `json:"payment_method"`
	ReferenceType string            `json:"reference_type"`
	ReferenceId   string            `json:"reference_id"`
	Department    string            `json:"department"`
	Status        models.CashStatus `json:"status" validate:"omitempty,oneof=completed pending cancelled"`
}

// UpdateEntryInput carries the only fields an entry may change after posting.
type UpdateEntryInput struct {
	Status        *models.CashStatus `json:"status" validate:"omitempty,oneof=completed pending cancelled"`
	Category      *string            `json:"category"`
	Description   *string            `json:"description"`
	Department    *string            `json:"department"`
	PaymentMethod *string            `json:"payment_method"`
}

type EntryFilter struct {
	Type       string
	Department string
	From       *time.Time
	To         *time.Time
	Paging     utils.Paging
}

type UpsertBudgetInput struct {
	Department string       `json:"department" validate:"required"`
	Amount     models.Money `json:"amount" validate:"gte=0"`
	Period     string       `json:"period" validate:"omitempty,oneof=monthly yearly"`
}

type Bucket struct {
	Label  string       `json:"label"`
	Amount models.Money `json:"amount"`
}

type CashSummary struct {
	TotalIncome     models.Money       `json:"total_income"`
	TotalExpense    models.Money       `json:"total_expense"`
	Profit          models.Money       `json:"profit"`
	TodayIncome     models.Money       `json:"today_income"`
	MonthIncome     models.Money       `json:"month_income"`
	ByDepartment    []Bucket           `json:"income_by_department"`
	ByPaymentMethod []Bucket           `json:"income_by_payment_method"`
	Recent          []models.CashEntry `json:"recent"`
}

type BudgetStatus struct {
	models.DepartmentBudget
	PeriodStart time.Time    `json:"period_start"`
	PeriodEnd   time.Time    `json:"period_end"`
	Actual      models.Money `json:"actual"`
	OverBudget  bool         `json:"over_budget"`
}

type CashService struct {
	deps Deps
}

func NewCashService(deps Deps) *CashService {
	return &CashService{deps: deps}
}

func validCashType(t models.CashType) bool {
	return t == models.CashIncome || t == models.CashExpense
}

func validCashStatus(st models.CashStatus) bool {
	switch st {
	case models.CashCompleted, models.CashPending, models.CashCancelled:
		return true
	}
	return false
}

func (s *CashService) RecordEntry(ctx context.Context, actor Actor, in RecordEntryInput) (*models.CashEntry, error) {
	if !validCashType(in.Type) {
		return nil, invalid("type must be income or expense")
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, invalid("category is required")
	}
	if in.Status != "" && !validCashStatus(in.Status) {
		return nil, invalid("unknown status %q", in.Status)
	}

	entry := &models.CashEntry{
		Type:           in.Type,
		Category:       in.Category,
		Description:    in.Description,
		Amount:         in.Amount,
		PaymentMethod:  in.PaymentMethod,
		ReferenceType:  in.ReferenceType,
		ReferenceId:    in.ReferenceId,
		Department:     in.Department,
		Status:         in.Status,
		RecordedBy:     actor.ID,
		RecordedByName: actor.Name,
	}
	if in.Date != nil {
		entry.Date = in.Date.UTC()
	}
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		return s.deps.postCashEntryTx(tx, entry)
	})
	if err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "RECORD_"+strings.ToUpper(string(entry.Type)), "accounts",
		fmt.Sprintf("%s %s %s", entry.TransactionNumber, entry.Category, entry.Amount))
	return entry, nil
}

func (s *CashService) UpdateEntry(ctx context.Context, actor Actor, id string, in UpdateEntryInput) (*models.CashEntry, error) {
	if in.Status != nil && !validCashStatus(*in.Status) {
		return nil, invalid("unknown status %q", *in.Status)
	}
	if in.Category != nil && strings.TrimSpace(*in.Category) == "" {
		return nil, invalid("category must not be empty")
	}

	var entry models.CashEntry
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &entry, id); err != nil {
			return notFoundOr(err, "cash entry", id)
		}
		updates := utils.UpdatesFromPtrDTO(&in, nil)
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&entry).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "UPDATE_ENTRY", "accounts", fmt.Sprintf("%s status %s", entry.TransactionNumber, entry.Status))
	return &entry, nil
}

func (s *CashService) DeleteEntry(ctx context.Context, actor Actor, id string) error {
	var entry models.CashEntry
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockByID(tx, &entry, id); err != nil {
			return notFoundOr(err, "cash entry", id)
		}
		return tx.Delete(&entry).Error
	})
	if err != nil {
		return err
	}
	s.deps.record(ctx, actor, "DELETE_ENTRY", "accounts", entry.TransactionNumber)
	return nil
}

func (s *CashService) ListEntries(ctx context.Context, f EntryFilter) ([]models.CashEntry, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if f.Type != "" {
			db = db.Where("type = ?", f.Type)
		}
		if f.Department != "" {
			db = db.Where("department = ?", f.Department)
		}
		if f.From != nil {
			db = db.Where("date >= ?", f.From.UTC())
		}
		if f.To != nil {
			db = db.Where("date < ?", f.To.UTC())
		}
		return db
	}
	if f.Paging.PerPage <= 0 {
		f.Paging = utils.NewPaging("", "", 50, 200)
	}

	var total int64
	if err := s.deps.Store.Reader(ctx).Model(&models.CashEntry{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.CashEntry
	err := s.deps.Store.Reader(ctx).Scopes(filter).
		Order("date DESC").Order("transaction_number DESC").
		Offset(f.Paging.Offset).Limit(f.Paging.PerPage).
		Find(&out).Error
	return out, total, err
}

const sumAmount = "CAST(COALESCE(SUM(amount), 0) AS BIGINT)"

// active restricts a query to entries that count toward totals.
func active(db *gorm.DB) *gorm.DB {
	return db.Model(&models.CashEntry{}).Where("status <> ?", models.CashCancelled)
}

func (s *CashService) sum(ctx context.Context, where func(*gorm.DB) *gorm.DB) (models.Money, error) {
	var total int64
	err := s.deps.Store.Reader(ctx).Scopes(active, where).Select(sumAmount).Scan(&total).Error
	return models.Money(total), err
}

func (s *CashService) buckets(ctx context.Context, column string) ([]Bucket, error) {
	var out []Bucket
	err := s.deps.Store.Reader(ctx).Scopes(active).
		Where("type = ?", models.CashIncome).
		Select(column + " AS label, " + sumAmount + " AS amount").
		Group(column).
		Order("amount DESC").
		Scan(&out).Error
	return out, err
}

// Summary aggregates the ledger as of asOf. Cancelled entries count nowhere.
func (s *CashService) Summary(ctx context.Context, asOf time.Time) (*CashSummary, error) {
	asOf = asOf.UTC()
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	month := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	income := func(db *gorm.DB) *gorm.DB { return db.Where("type = ?", models.CashIncome) }

	var (
		out CashSummary
		err error
	)
	if out.TotalIncome, err = s.sum(ctx, income); err != nil {
		return nil, err
	}
	if out.TotalExpense, err = s.sum(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("type = ?", models.CashExpense) }); err != nil {
		return nil, err
	}
	out.Profit = out.TotalIncome - out.TotalExpense
	if out.TodayIncome, err = s.sum(ctx, func(db *gorm.DB) *gorm.DB {
		return income(db).Where("date >= ? AND date < ?", day, day.AddDate(0, 0, 1))
	}); err != nil {
		return nil, err
	}
	if out.MonthIncome, err = s.sum(ctx, func(db *gorm.DB) *gorm.DB {
		return income(db).Where("date >= ? AND date < ?", month, month.AddDate(0, 1, 0))
	}); err != nil {
		return nil, err
	}
	if out.ByDepartment, err = s.buckets(ctx, "department"); err != nil {
		return nil, err
	}
	if out.ByPaymentMethod, err = s.buckets(ctx, "payment_method"); err != nil {
		return nil, err
	}
	err = s.deps.Store.Reader(ctx).Where("status <> ?", models.CashCancelled).
		Order("date DESC").Order("transaction_number DESC").Limit(5).
		Find(&out.Recent).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CashService) UpsertBudget(ctx context.Context, actor Actor, in UpsertBudgetInput) (*models.DepartmentBudget, error) {
	in.Department = strings.TrimSpace(in.Department)
	if in.Department == "" {
		return nil, invalid("department is required")
	}
	if in.Amount < 0 {
		return nil, invalid("budget amount must not be negative")
	}
	if in.Period == "" {
		in.Period = "monthly"
	}
	if in.Period != "monthly" && in.Period != "yearly" {
		return nil, invalid("period must be monthly or yearly")
	}

	budget := models.DepartmentBudget{Department: in.Department, Amount: in.Amount, Period: in.Period}
	err := s.deps.Store.Transaction(ctx, func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "department"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "period", "updated_at"}),
		}).Create(&budget).Error
		if err != nil {
			return err
		}
		return tx.Where("department = ?", in.Department).First(&budget).Error
	})
	if err != nil {
		return nil, err
	}
	s.deps.record(ctx, actor, "SET_BUDGET", "accounts", fmt.Sprintf("%s %s %s", budget.Department, budget.Period, budget.Amount))
	return &budget, nil
}

// budgetWindow is the calendar month or year containing asOf.
func budgetWindow(period string, asOf time.Time) (time.Time, time.Time) {
	asOf = asOf.UTC()
	if period == "yearly" {
		start := time.Date(asOf.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	}
	start := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// ListBudgets reports every budget against the department's non-cancelled
// expenses inside the budget's current month or year.
func (s *CashService) ListBudgets(ctx context.Context, asOf time.Time) ([]BudgetStatus, error) {
	var budgets []models.DepartmentBudget
	if err := s.deps.Store.Reader(ctx).Order("department").Find(&budgets).Error; err != nil {
		return nil, err
	}

	spentIn := map[string]map[string]models.Money{}
	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		from, to := budgetWindow(b.Period, asOf)
		spent, ok := spentIn[b.Period]
		if !ok {
			var rows []Bucket
			err := s.deps.Store.Reader(ctx).Scopes(active).
				Where("type = ? AND date >= ? AND date < ?", models.CashExpense, from, to).
				Select("department AS label, " + sumAmount + " AS amount").
				Group("department").
				Scan(&rows).Error
			if err != nil {
				return nil, err
			}
			spent = make(map[string]models.Money, len(rows))
			for _, r := range rows {
				spent[r.Label] = r.Amount
			}
			spentIn[b.Period] = spent
		}
		out = append(out, BudgetStatus{
			DepartmentBudget: b,
			PeriodStart:      from,
			PeriodEnd:        to,
			Actual:           spent[b.Department],
			OverBudget:       spent[b.Department] > b.Amount,
		})
	}
	return out, nil
}
