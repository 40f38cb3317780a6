package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"hospital-billing/models"
	"hospital-billing/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) prescribe(t *testing.T, patientID string, lines ...PrescriptionItemInput) *models.Prescription {
	t.Helper()
	rx, err := NewPharmacyService(f.deps).CreatePrescription(context.Background(), f.actor, CreatePrescriptionInput{
		PatientId: patientID,
		Items:     lines,
	})
	require.NoError(t, err)
	return rx
}

func TestDispense_AmoxicillinScenario(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	amox := f.medicine(t, "Amoxicillin", 10, 5, 250)
	svc := NewPharmacyService(f.deps)
	ctx := context.Background()

	first := f.prescribe(t, p.Id, PrescriptionItemInput{MedicineId: amox.Id, Quantity: 4, Dosage: "500mg"})
	res, err := svc.Dispense(ctx, f.actor, first.Id)
	require.NoError(t, err)
	require.Len(t, res.Medicines, 1)
	assert.EqualValues(t, 6, res.Medicines[0].Quantity)
	assert.Equal(t, models.InStock, res.Medicines[0].Status)
	assert.Equal(t, models.Money(1000), res.Invoice.Total)
	assert.Equal(t, models.SourcePharmacy, res.Invoice.Source)
	assert.Equal(t, models.PrescriptionDispensed, res.Prescription.Status)
	assert.Equal(t, res.Invoice.Id, *res.Prescription.InvoiceId)
	assert.Equal(t, f.actor.Name, res.Prescription.DispensedBy)

	second := f.prescribe(t, p.Id, PrescriptionItemInput{MedicineId: amox.Id, Quantity: 6})
	res, err = svc.Dispense(ctx, f.actor, second.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Medicines[0].Quantity)
	assert.Equal(t, models.OutOfStock, res.Medicines[0].Status)

	_, err = svc.Dispense(ctx, f.actor, second.Id)
	assert.ErrorIs(t, err, ErrConflict)

	med, err := svc.GetMedicine(ctx, amox.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 0, med.Quantity)
	assert.EqualValues(t, 2, f.count(t, &models.Invoice{}))
	assert.Contains(t, f.audit.actions(), "DISPENSE")
}

func TestDispense_InvoiceTotalIsSellingPriceTimesQuantity(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	a := f.medicine(t, "Paracetamol", 100, 10, 150)
	b := f.medicine(t, "Ibuprofen", 50, 10, 399)

	rx := f.prescribe(t, p.Id,
		PrescriptionItemInput{MedicineId: a.Id, Quantity: 3},
		PrescriptionItemInput{MedicineId: b.Id, Quantity: 7},
	)
	res, err := NewPharmacyService(f.deps).Dispense(context.Background(), f.actor, rx.Id)
	require.NoError(t, err)

	assert.Equal(t, models.Money(3*150+7*399), res.Invoice.Total)
	assert.Equal(t, models.Money(0), res.Invoice.TaxAmount)
	assert.Len(t, res.Invoice.Items, 2)
}

func TestDispense_InsufficientStockRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	plenty := f.medicine(t, "Cetirizine", 20, 5, 100)
	scarce := f.medicine(t, "Insulin", 1, 5, 900)
	svc := NewPharmacyService(f.deps)
	ctx := context.Background()

	rx := f.prescribe(t, p.Id,
		PrescriptionItemInput{MedicineId: plenty.Id, Quantity: 5},
		PrescriptionItemInput{MedicineId: scarce.Id, Quantity: 2},
	)
	_, err := svc.Dispense(ctx, f.actor, rx.Id)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	var stock *InsufficientStockError
	require.True(t, errors.As(err, &stock))
	assert.Equal(t, "Insulin", stock.Medicine)
	assert.EqualValues(t, 1, stock.Available)
	assert.EqualValues(t, 2, stock.Requested)

	for id, want := range map[string]int64{plenty.Id: 20, scarce.Id: 1} {
		med, err := svc.GetMedicine(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, med.Quantity)
	}
	assert.Zero(t, f.count(t, &models.Invoice{}))

	after, err := svc.GetPrescription(ctx, rx.Id)
	require.NoError(t, err)
	assert.Equal(t, models.PrescriptionPending, after.Status)
	assert.Nil(t, after.InvoiceId)
}

func TestDispense_ConcurrentCallsDispenseOnce(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	med := f.medicine(t, "Metformin", 30, 5, 200)
	rx := f.prescribe(t, p.Id, PrescriptionItemInput{MedicineId: med.Id, Quantity: 10})
	svc := NewPharmacyService(f.deps)

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Dispense(context.Background(), f.actor, rx.Id)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, conflicts)

	got, err := svc.GetMedicine(context.Background(), med.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 20, got.Quantity)
	assert.EqualValues(t, 1, f.count(t, &models.Invoice{}))
}

func TestCreatePrescription_UnknownMedicine(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	svc := NewPharmacyService(f.deps)

	_, err := svc.CreatePrescription(context.Background(), f.actor, CreatePrescriptionInput{
		PatientId: p.Id,
		Items:     []PrescriptionItemInput{{MedicineId: "nope", Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.count(t, &models.Prescription{}))

	_, err = svc.CreatePrescription(context.Background(), f.actor, CreatePrescriptionInput{PatientId: p.Id})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRestock_PostsExpense(t *testing.T) {
	f := newFixture(t)
	med := f.medicine(t, "Omeprazole", 2, 5, 300)
	svc := NewPharmacyService(f.deps)
	ctx := context.Background()
	require.Equal(t, models.LowStock, med.Status)

	got, err := svc.Restock(ctx, f.actor, med.Id, RestockInput{Quantity: 10, UnitCost: money(120), RecordExpense: true, PaymentMethod: "bank"})
	require.NoError(t, err)
	assert.EqualValues(t, 12, got.Quantity)
	assert.Equal(t, models.InStock, got.Status)

	var entry models.CashEntry
	require.NoError(t, f.db.First(&entry).Error)
	assert.Equal(t, models.CashExpense, entry.Type)
	assert.Equal(t, models.Money(1200), entry.Amount)
	assert.Equal(t, models.CategoryMedicinePurchase, entry.Category)
	assert.Equal(t, models.DepartmentPharmacy, entry.Department)

	_, err = svc.Restock(ctx, f.actor, med.Id, RestockInput{Quantity: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.count(t, &models.CashEntry{}))

	_, err = svc.Restock(ctx, f.actor, med.Id, RestockInput{Quantity: 0})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateMedicine_ReorderLevelMovesStatus(t *testing.T) {
	f := newFixture(t)
	med := f.medicine(t, "Aspirin", 8, 5, 50)
	svc := NewPharmacyService(f.deps)

	level := int64(10)
	price := models.Money(75)
	got, err := svc.UpdateMedicine(context.Background(), f.actor, med.Id, UpdateMedicineInput{ReorderLevel: &level, SellingPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, models.LowStock, got.Status)
	assert.Equal(t, models.Money(75), got.SellingPrice)
	assert.EqualValues(t, 8, got.Quantity)

	list, total, err := svc.ListMedicines(context.Background(), string(models.LowStock), utils.NewPaging("1", "10", 50, 200))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)
}

func TestDispense_BillsLinesInPrescribedOrder(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	names := []string{"Zinc", "Atenolol", "Losartan", "Cefixime"}
	var lines []PrescriptionItemInput
	for i, name := range names {
		med := f.medicine(t, name, 50, 5, models.Money(100*(i+1)))
		lines = append(lines, PrescriptionItemInput{MedicineId: med.Id, Quantity: 1})
	}
	rx := f.prescribe(t, p.Id, lines...)
	ctx := context.Background()

	res, err := NewPharmacyService(f.deps).Dispense(ctx, f.actor, rx.Id)
	require.NoError(t, err)

	stored, err := NewInvoiceService(f.deps).Get(ctx, res.Invoice.Id)
	require.NoError(t, err)
	var got []string
	for _, it := range stored.Items {
		got = append(got, it.Description)
	}
	assert.Equal(t, names, got)

	again, err := NewPharmacyService(f.deps).GetPrescription(ctx, rx.Id)
	require.NoError(t, err)
	for i, it := range again.Items {
		assert.Equal(t, names[i], it.MedicineName)
	}
}

func TestDispense_RejectsLineTotalOutOfRange(t *testing.T) {
	f := newFixture(t)
	p := f.patient(t)
	med := f.medicine(t, "Orphan drug", 5, 1, utils.MaxMoney)
	rx := f.prescribe(t, p.Id, PrescriptionItemInput{MedicineId: med.Id, Quantity: 2})
	svc := NewPharmacyService(f.deps)
	ctx := context.Background()

	_, err := svc.Dispense(ctx, f.actor, rx.Id)
	assert.ErrorIs(t, err, ErrValidation)

	got, err := svc.GetMedicine(ctx, med.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 5, got.Quantity)
	assert.Zero(t, f.count(t, &models.Invoice{}))
}

func TestRestock_RejectsCostOutOfRange(t *testing.T) {
	f := newFixture(t)
	med := f.medicine(t, "Albumin", 1, 1, 1000)
	svc := NewPharmacyService(f.deps)

	_, err := svc.Restock(context.Background(), f.actor, med.Id, RestockInput{Quantity: 3, UnitCost: money(utils.MaxMoney), RecordExpense: true})
	assert.ErrorIs(t, err, ErrValidation)

	got, err := svc.GetMedicine(context.Background(), med.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Quantity)
	assert.Zero(t, f.count(t, &models.CashEntry{}))
}
