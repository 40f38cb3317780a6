package controllers

import (
	"hospital-billing/middlewares"
	"hospital-billing/services"

	"github.com/gofiber/fiber/v2"
)

type InvoiceController struct {
	Invoices *services.InvoiceService
}

func (h *InvoiceController) CreateInvoice(c *fiber.Ctx) error {
	var in services.CreateInvoiceInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	inv, err := h.Invoices.Create(c.UserContext(), middlewares.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(inv)
}

func (h *InvoiceController) GetInvoice(c *fiber.Ctx) error {
	inv, err := h.Invoices.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

func (h *InvoiceController) ListInvoices(c *fiber.Ctx) error {
	p := paging(c, 20, 100)
	out, total, err := h.Invoices.List(c.UserContext(), services.InvoiceFilter{
		PatientId: c.Query("patient_id"),
		Status:    c.Query("status"),
		Paging:    p,
	})
	if err != nil {
		return err
	}
	return list(c, out, total, p)
}

func (h *InvoiceController) UpdateItems(c *fiber.Ctx) error {
	var in services.UpdateItemsInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	inv, err := h.Invoices.UpdateItems(c.UserContext(), middlewares.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// ApplyPayment requires the Idempotency-Key header; the key travels into
// the payment transaction so a retried payment never posts twice.
func (h *InvoiceController) ApplyPayment(c *fiber.Ctx) error {
	var in services.PaymentInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	in.IdempotencyKey = c.Get(middlewares.IdempotencyHeader)
	inv, err := h.Invoices.ApplyPayment(c.UserContext(), middlewares.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

func (h *InvoiceController) DeleteInvoice(c *fiber.Ctx) error {
	if err := h.Invoices.Delete(c.UserContext(), middlewares.ActorFrom(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "invoice deleted"})
}
