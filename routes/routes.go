package routes

import (
	"github.com/gofiber/fiber/v2"

	"hospital-billing/controllers"
)

// Handlers bundles the controllers the API serves.
type Handlers struct {
	Patients   *controllers.PatientController
	Invoices   *controllers.InvoiceController
	Pharmacy   *controllers.PharmacyController
	Encounters *controllers.EncounterController
	Accounts   *controllers.AccountController
}

// Register wires all HTTP routes. auth runs first on /api, then idempotency.
func Register(app *fiber.App, h Handlers, auth, idempotency fiber.Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", auth, idempotency)

	// Registry (precondition data)
	api.Post("/patients", h.Patients.CreatePatient)
	api.Get("/patients/:id", h.Patients.GetPatient)
	api.Post("/doctors", h.Patients.CreateDoctor)

	// Invoice ledger
	api.Post("/invoices", h.Invoices.CreateInvoice)
	api.Get("/invoices", h.Invoices.ListInvoices)
	api.Get("/invoices/:id", h.Invoices.GetInvoice)
	api.Put("/invoices/:id/items", h.Invoices.UpdateItems)
	api.Post("/invoices/:id/payments", h.Invoices.ApplyPayment)
	api.Delete("/invoices/:id", h.Invoices.DeleteInvoice)

	// Stock ledger & dispense
	api.Post("/medicines", h.Pharmacy.CreateMedicine)
	api.Get("/medicines", h.Pharmacy.ListMedicines)
	api.Get("/medicines/:id", h.Pharmacy.GetMedicine)
	api.Put("/medicines/:id", h.Pharmacy.UpdateMedicine)
	api.Post("/medicines/:id/restock", h.Pharmacy.Restock)
	api.Post("/prescriptions", h.Pharmacy.CreatePrescription)
	api.Get("/prescriptions/:id", h.Pharmacy.GetPrescription)
	api.Post("/prescriptions/:id/dispense", h.Pharmacy.Dispense)

	// Encounter billing triggers
	api.Post("/lab-tests", h.Encounters.OrderLabTest)
	api.Get("/lab-tests/:id", h.Encounters.GetLabTest)
	api.Put("/lab-tests/:id/status", h.Encounters.AdvanceLabTest)
	api.Post("/visits", h.Encounters.CreateVisit)
	api.Post("/visits/:id/start", h.Encounters.StartConsultation)
	api.Post("/visits/:id/complete", h.Encounters.CompleteConsultation)
	api.Post("/beds", h.Encounters.CreateBed)
	api.Put("/beds/:id/status", h.Encounters.SetBedStatus)
	api.Post("/admissions", h.Encounters.Admit)
	api.Get("/admissions/:id", h.Encounters.GetAdmission)
	api.Post("/admissions/:id/discharge", h.Encounters.Discharge)

	// Cash ledger & budgets
	api.Post("/accounts/entries", h.Accounts.RecordEntry)
	api.Get("/accounts/entries", h.Accounts.ListEntries)
	api.Put("/accounts/entries/:id", h.Accounts.UpdateEntry)
	api.Delete("/accounts/entries/:id", h.Accounts.DeleteEntry)
	api.Get("/accounts/summary", h.Accounts.Summary)
	api.Put("/accounts/budgets", h.Accounts.UpsertBudget)
	api.Get("/accounts/budgets", h.Accounts.ListBudgets)
}
