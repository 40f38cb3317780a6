package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"hospital-billing/audit"
	"hospital-billing/database"
	"hospital-billing/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingSink) Record(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	db    *gorm.DB
	deps  Deps
	audit *recordingSink
	actor Actor
}

var clock = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

// newFixture opens a private in-memory store with a 10% tax rate.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	sink := &recordingSink{}
	return &fixture{
		db:    db,
		audit: sink,
		actor: Actor{ID: "u-1", Name: "Cashier One", Role: "accountant"},
		deps: Deps{
			Store:   NewStore(db),
			Catalog: NewDBCatalog(db),
			Audit:   sink,
			TaxRate: decimal.NewFromInt(10),
			Now:     func() time.Time { return clock },
		},
	}
}

func (f *fixture) patient(t *testing.T) *models.Patient {
	t.Helper()
	p, err := NewPatientService(f.deps).Create(context.Background(), f.actor, CreatePatientInput{FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	return p
}

func (f *fixture) doctor(t *testing.T, fee models.Money) *models.Doctor {
	t.Helper()
	d, err := NewPatientService(f.deps).CreateDoctor(context.Background(), f.actor, CreateDoctorInput{Name: "Dr. Grey", Department: "General", ConsultationFee: fee})
	require.NoError(t, err)
	return d
}

func (f *fixture) medicine(t *testing.T, name string, qty, reorder int64, price models.Money) *models.Medicine {
	t.Helper()
	m, err := NewPharmacyService(f.deps).CreateMedicine(context.Background(), f.actor, CreateMedicineInput{
		Name: name, Quantity: qty, ReorderLevel: reorder, UnitCost: price / 2, SellingPrice: price,
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}
