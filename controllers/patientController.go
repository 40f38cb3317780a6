package controllers

import (
	"hospital-billing/middlewares"
	"hospital-billing/services"

	"github.com/gofiber/fiber/v2"
)

type PatientController struct {
	Patients *services.PatientService
}

func (h *PatientController) CreatePatient(c *fiber.Ctx) error {
	var in services.CreatePatientInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	p, err := h.Patients.Create(c.UserContext(), middlewares.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *PatientController) GetPatient(c *fiber.Ctx) error {
	p, err := h.Patients.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (h *PatientController) CreateDoctor(c *fiber.Ctx) error {
	var in services.CreateDoctorInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	d, err := h.Patients.CreateDoctor(c.UserContext(), middlewares.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}
