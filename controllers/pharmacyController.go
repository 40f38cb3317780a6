package controllers

import (
	"hospital-billing/middlewares"
	"hospital-billing/services"

	"github.com/gofiber/fiber/v2"
)

type PharmacyController struct {
	Pharmacy *services.PharmacyService
}

func (h *PharmacyController) CreateMedicine(c *fiber.Ctx) error {
	var in services.CreateMedicineInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	med, err := h.Pharmacy.CreateMedicine(c.UserContext(), middlewares.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(med)
}

func (h *PharmacyController) UpdateMedicine(c *fiber.Ctx) error {
	var in services.UpdateMedicineInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	med, err := h.Pharmacy.UpdateMedicine(c.UserContext(), middlewares.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(med)
}

func (h *PharmacyController) GetMedicine(c *fiber.Ctx) error {
	med, err := h.Pharmacy.GetMedicine(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(med)
}

func (h *PharmacyController) ListMedicines(c *fiber.Ctx) error {
	p := paging(c, 50, 200)
	out, total, err := h.Pharmacy.ListMedicines(c.UserContext(), c.Query("status"), p)
	if err != nil {
		return err
	}
	return list(c, out, total, p)
}

func (h *PharmacyController) Restock(c *fiber.Ctx) error {
	var in services.RestockInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	med, err := h.Pharmacy.Restock(c.UserContext(), middlewares.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(med)
}

func (h *PharmacyController) CreatePrescription(c *fiber.Ctx) error {
	var in services.CreatePrescriptionInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	rx, err := h.Pharmacy.CreatePrescription(c.UserContext(), middlewares.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rx)
}

func (h *PharmacyController) GetPrescription(c *fiber.Ctx) error {
	rx, err := h.Pharmacy.GetPrescription(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rx)
}

func (h *PharmacyController) Dispense(c *fiber.Ctx) error {
	res, err := h.Pharmacy.Dispense(c.UserContext(), middlewares.ActorFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}
