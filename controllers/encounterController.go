package controllers

import (
	"hospital-billing/middlewares"
	"hospital-billing/services"

	"github.com/gofiber/fiber/v2"
)

// EncounterController serves the clinical events that bill a patient:
// lab orders, outpatient visits and inpatient stays.
type EncounterController struct {
	Lab           *services.LabService
	Consultations *services.ConsultationService
	Admissions    *services.AdmissionService
}

func (h *EncounterController) OrderLabTest(c *fiber.Ctx) error {
	var in services.OrderLabTestInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	test, err := h.Lab.OrderLabTest(c.UserContext(), middlewares.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(test)
}

func (h *EncounterController) GetLabTest(c *fiber.Ctx) error {
	test, err := h.Lab.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(test)
}

func (h *EncounterController) AdvanceLabTest(c *fiber.Ctx) error {
	var in services.AdvanceLabTestInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	test, err := h.Lab.AdvanceLabTest(c.UserContext(), middlewares.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(test)
}

func (h *EncounterController) CreateVisit(c *fiber.Ctx) error {
	var in services.CreateVisitInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	visit, err := h.Consultations.CreateVisit(c.UserContext(), middlewares.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(visit)
}

func (h *EncounterController) StartConsultation(c *fiber.Ctx) error {
	visit, err := h.Consultations.StartConsultation(c.UserContext(), middlewares.ActorFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(visit)
}

func (h *EncounterController) CompleteConsultation(c *fiber.Ctx) error {
	var in services.CompleteConsultationInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	res, err := h.Consultations.CompleteConsultation(c.UserContext(), middlewares.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *EncounterController) CreateBed(c *fiber.Ctx) error {
	var in services.CreateBedInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	bed, err := h.Admissions.CreateBed(c.UserContext(), middlewares.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(bed)
}

func (h *EncounterController) SetBedStatus(c *fiber.Ctx) error {
	var in services.SetBedStatusInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	bed, err := h.Admissions.SetBedStatus(c.UserContext(), middlewares.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(bed)
}

func (h *EncounterController) Admit(c *fiber.Ctx) error {
	var in services.AdmitInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	adm, err := h.Admissions.Admit(c.UserContext(), middlewares.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(adm)
}

func (h *EncounterController) GetAdmission(c *fiber.Ctx) error {
	adm, err := h.Admissions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(adm)
}

func (h *EncounterController) Discharge(c *fiber.Ctx) error {
	var in services.DischargeInput
	if len(c.Body()) > 0 {
		if err := middlewares.BindAndValidate(c, &in); err != nil {
			return err
		}
	}
	res, err := h.Admissions.Discharge(c.UserContext(), middlewares.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}
