package services

import (
	"context"
	"testing"

	"hospital-billing/models"
	"hospital-billing/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(v models.Money) *models.Money { return &v }

func TestInvoiceCreate_ComputesTotals(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	svc := NewInvoiceService(f.deps)

	inv, err := svc.Create(context.Background(), f.actor, CreateInvoiceInput{
		PatientId: p.Id,
		Items: []InvoiceItemInput{
			{Description: "Room", Quantity: 2, UnitPrice: 5000},
			{Description: "X-Ray", Quantity: 1, UnitPrice: 10000},
		},
		Discount: 2000,
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-000001", inv.InvoiceNumber)
	assert.Equal(t, models.Money(20000), inv.Subtotal)
	assert.Equal(t, models.Money(2000), inv.TaxAmount)
	assert.Equal(t, models.Money(20000), inv.Total)
	assert.Equal(t, models.InvoiceUnpaid, inv.Status)
	assert.Equal(t, models.SourceManual, inv.Source)

	second, err := svc.Create(context.Background(), f.actor, CreateInvoiceInput{
		PatientId: p.Id,
		Items:     []InvoiceItemInput{{Description: "Dressing", Quantity: 1, UnitPrice: 100}},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-000002", second.InvoiceNumber)
}

func TestInvoiceCreate_Rejects(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	svc := NewInvoiceService(f.deps)
	ctx := context.Background()

	_, err := svc.Create(ctx, f.actor, CreateInvoiceInput{PatientId: p.Id})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, f.actor, CreateInvoiceInput{PatientId: p.Id, Items: []InvoiceItemInput{{Description: "x", Quantity: 0, UnitPrice: 1}}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, f.actor, CreateInvoiceInput{PatientId: p.Id, Items: []InvoiceItemInput{{Description: "x", Quantity: 1, UnitPrice: 100}}, Discount: 500})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, f.actor, CreateInvoiceInput{PatientId: "missing", Items: []InvoiceItemInput{{Description: "x", Quantity: 1, UnitPrice: 100}}})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Zero(t, f.count(t, &models.Invoice{}))
}

func TestInvoiceCreate_RejectsAmountsOutOfRange(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	svc := NewInvoiceService(f.deps)
	ctx := context.Background()

	half := utils.MaxMoney/2 + 1
	cases := map[string][]InvoiceItemInput{
		"line":     {{Description: "Implant", Quantity: 2, UnitPrice: utils.MaxMoney}},
		"quantity": {{Description: "Gauze", Quantity: int64(utils.MaxMoney), UnitPrice: 200}},
		"subtotal": {{Description: "A", Quantity: 1, UnitPrice: half}, {Description: "B", Quantity: 1, UnitPrice: half}},
		"tax":      {{Description: "Theatre", Quantity: 1, UnitPrice: utils.MaxMoney}},
	}
	for name, items := range cases {
		_, err := svc.Create(ctx, f.actor, CreateInvoiceInput{PatientId: p.Id, Items: items})
		assert.ErrorIs(t, err, ErrValidation, name)
	}
	assert.Zero(t, f.count(t, &models.Invoice{}))

	inv, err := svc.Create(ctx, f.actor, CreateInvoiceInput{
		PatientId: p.Id,
		Items:     []InvoiceItemInput{{Description: "Ward", Quantity: 1, UnitPrice: 1000}},
	})
	require.NoError(t, err)
	_, err = svc.UpdateItems(ctx, f.actor, inv.Id, UpdateItemsInput{
		Items: []InvoiceItemInput{{Description: "Ward", Quantity: 3, UnitPrice: utils.MaxMoney}},
	})
	assert.ErrorIs(t, err, ErrValidation)

	kept, err := svc.Get(ctx, inv.Id)
	require.NoError(t, err)
	assert.Equal(t, models.Money(1100), kept.Total)
	require.Len(t, kept.Items, 1)
	assert.EqualValues(t, 1, kept.Items[0].Quantity)
}

func TestApplyPayment_PartialThenTopUp(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	svc := NewInvoiceService(f.deps)
	ctx := context.Background()

	inv, err := svc.Create(ctx, f.actor, CreateInvoiceInput{
		PatientId: p.Id,
		Items:     []InvoiceItemInput{{Description: "Surgery", Quantity: 1, UnitPrice: 20000}},
		Discount:  2000,
	})
	require.NoError(t, err)
	require.Equal(t, models.Money(20000), inv.Total)

	cash := "cash"
	got, err := svc.ApplyPayment(ctx, f.actor, inv.Id, PaymentInput{IdempotencyKey: "k1", PaidAmount: money(10000), PaymentMethod: &cash})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePartial, got.Status)

	got, err = svc.ApplyPayment(ctx, f.actor, inv.Id, PaymentInput{IdempotencyKey: "k2", PaidAmount: money(20000)})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, got.Status)

	var entries []models.CashEntry
	require.NoError(t, f.db.Order("transaction_number").Find(&entries).Error)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, models.Money(10000), e.Amount)
		assert.Equal(t, models.CashIncome, e.Type)
		assert.Equal(t, models.CategoryPatientPayment, e.Category)
		assert.Equal(t, models.DepartmentBilling, e.Department)
		assert.Equal(t, inv.Id, e.ReferenceId)
	}
}

func TestApplyPayment_StatusBoundaries(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	svc := NewInvoiceService(f.deps)
	ctx := context.Background()

	inv, err := svc.Create(ctx, f.actor, CreateInvoiceInput{
		PatientId: p.Id,
		Items:     []InvoiceItemInput{{Description: "Visit", Quantity: 1, UnitPrice: 10000}},
	})
	require.NoError(t, err)

	got, err := svc.ApplyPayment(ctx, f.actor, inv.Id, PaymentInput{IdempotencyKey: "exact", PaidAmount: money(inv.Total)})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, got.Status)

	got, err = svc.ApplyPayment(ctx, f.actor, inv.Id, PaymentInput{IdempotencyKey: "over", PaidAmount: money(inv.Total + 1)})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, got.Status)

	// Lowering the paid amount posts nothing.
	got, err = svc.ApplyPayment(ctx, f.actor, inv.Id, PaymentInput{IdempotencyKey: "fix", PaidAmount: money(0)})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceUnpaid, got.Status)
	assert.EqualValues(t, 2, f.count(t, &models.CashEntry{}))
}

func TestApplyPayment_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	svc := NewInvoiceService(f.deps)
	ctx := context.Background()

	inv, err := svc.Create(ctx, f.actor, CreateInvoiceInput{
		PatientId: p.Id,
		Items:     []InvoiceItemInput{{Description: "Visit", Quantity: 1, UnitPrice: 10000}},
	})
	require.NoError(t, err)

	in := PaymentInput{IdempotencyKey: "same", PaidAmount: money(5000)}
	first, err := svc.ApplyPayment(ctx, f.actor, inv.Id, in)
	require.NoError(t, err)
	again, err := svc.ApplyPayment(ctx, f.actor, inv.Id, in)
	require.NoError(t, err)

	assert.Equal(t, first.PaidAmount, again.PaidAmount)
	assert.EqualValues(t, 1, f.count(t, &models.CashEntry{}))
	assert.EqualValues(t, 1, f.count(t, &models.PaymentKey{}))

	_, err = svc.ApplyPayment(ctx, f.actor, inv.Id, PaymentInput{IdempotencyKey: "same", PaidAmount: money(9000)})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.ApplyPayment(ctx, f.actor, inv.Id, PaymentInput{PaidAmount: money(9000)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ApplyPayment(ctx, f.actor, "missing", PaymentInput{IdempotencyKey: "x", PaidAmount: money(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyPayment_Discount(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	svc := NewInvoiceService(f.deps)
	ctx := context.Background()

	inv, err := svc.Create(ctx, f.actor, CreateInvoiceInput{
		PatientId: p.Id,
		Items:     []InvoiceItemInput{{Description: "Visit", Quantity: 1, UnitPrice: 10000}},
	})
	require.NoError(t, err)
	require.Equal(t, models.Money(11000), inv.Total)

	got, err := svc.ApplyPayment(ctx, f.actor, inv.Id, PaymentInput{IdempotencyKey: "d", PaidAmount: money(10000), Discount: money(1000)})
	require.NoError(t, err)
	assert.Equal(t, models.Money(10000), got.Total)
	assert.Equal(t, models.InvoicePaid, got.Status)

	_, err = svc.ApplyPayment(ctx, f.actor, inv.Id, PaymentInput{IdempotencyKey: "too-much", Discount: money(20000)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateItems_RepricesWithoutCash(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	svc := NewInvoiceService(f.deps)
	ctx := context.Background()

	inv, err := svc.Create(ctx, f.actor, CreateInvoiceInput{
		PatientId: p.Id,
		Items:     []InvoiceItemInput{{Description: "Visit", Quantity: 1, UnitPrice: 10000}},
	})
	require.NoError(t, err)
	_, err = svc.ApplyPayment(ctx, f.actor, inv.Id, PaymentInput{IdempotencyKey: "p", PaidAmount: money(11000)})
	require.NoError(t, err)

	got, err := svc.UpdateItems(ctx, f.actor, inv.Id, UpdateItemsInput{Items: []InvoiceItemInput{
		{Description: "Visit", Quantity: 1, UnitPrice: 10000},
		{Description: "Bandage", Quantity: 2, UnitPrice: 500},
	}})
	require.NoError(t, err)
	assert.Equal(t, models.Money(12100), got.Total)
	assert.Equal(t, models.InvoicePartial, got.Status)
	assert.EqualValues(t, 1, f.count(t, &models.CashEntry{}))

	loaded, err := svc.Get(ctx, inv.Id)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, "Bandage", loaded.Items[1].Description)
}

func TestDelete_GuardsPaidInvoices(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	svc := NewInvoiceService(f.deps)
	ctx := context.Background()

	create := func() *models.Invoice {
		inv, err := svc.Create(ctx, f.actor, CreateInvoiceInput{
			PatientId: p.Id,
			Items:     []InvoiceItemInput{{Description: "Visit", Quantity: 1, UnitPrice: 10000}},
		})
		require.NoError(t, err)
		return inv
	}

	paid := create()
	_, err := svc.ApplyPayment(ctx, f.actor, paid.Id, PaymentInput{IdempotencyKey: "p", PaidAmount: money(100)})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Delete(ctx, f.actor, paid.Id), ErrConflict)

	unpaid := create()
	require.NoError(t, svc.Delete(ctx, f.actor, unpaid.Id))
	_, err = svc.Get(ctx, unpaid.Id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 1, f.count(t, &models.InvoiceItem{}))

	assert.ErrorIs(t, svc.Delete(ctx, f.actor, "missing"), ErrNotFound)
}

func TestInvoiceList_FiltersAndPages(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	other := f.patient(t)
	svc := NewInvoiceService(f.deps)
	ctx := context.Background()

	for _, id := range []string{p.Id, p.Id, other.Id} {
		_, err := svc.Create(ctx, f.actor, CreateInvoiceInput{
			PatientId: id,
			Items:     []InvoiceItemInput{{Description: "Visit", Quantity: 1, UnitPrice: 1000}},
		})
		require.NoError(t, err)
	}

	list, total, err := svc.List(ctx, InvoiceFilter{PatientId: p.Id})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)

	_, total, err = svc.List(ctx, InvoiceFilter{Status: string(models.InvoicePaid)})
	require.NoError(t, err)
	assert.Zero(t, total)
}
