package controllers

import (
	"time"

	"hospital-billing/middlewares"
	"hospital-billing/services"

	"github.com/gofiber/fiber/v2"
)

type AccountController struct {
	Cash *services.CashService
}

func (h *AccountController) RecordEntry(c *fiber.Ctx) error {
	var in services.RecordEntryInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	entry, err := h.Cash.RecordEntry(c.UserContext(), middlewares.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

func (h *AccountController) UpdateEntry(c *fiber.Ctx) error {
	var in services.UpdateEntryInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	entry, err := h.Cash.UpdateEntry(c.UserContext(), middlewares.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

func (h *AccountController) DeleteEntry(c *fiber.Ctx) error {
	if err := h.Cash.DeleteEntry(c.UserContext(), middlewares.ActorFrom(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "entry deleted"})
}

func (h *AccountController) ListEntries(c *fiber.Ctx) error {
	from, err := queryTime(c, "from")
	if err != nil {
		return err
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return err
	}
	p := paging(c, 50, 200)
	out, total, err := h.Cash.ListEntries(c.UserContext(), services.EntryFilter{
		Type:       c.Query("type"),
		Department: c.Query("department"),
		From:       from,
		To:         to,
		Paging:     p,
	})
	if err != nil {
		return err
	}
	return list(c, out, total, p)
}

func (h *AccountController) Summary(c *fiber.Ctx) error {
	asOf, err := queryTime(c, "as_of")
	if err != nil {
		return err
	}
	at := time.Now()
	if asOf != nil {
		at = *asOf
	}
	sum, err := h.Cash.Summary(c.UserContext(), at)
	if err != nil {
		return err
	}
	return c.JSON(sum)
}

func (h *AccountController) UpsertBudget(c *fiber.Ctx) error {
	var in services.UpsertBudgetInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	budget, err := h.Cash.UpsertBudget(c.UserContext(), middlewares.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.JSON(budget)
}

func (h *AccountController) ListBudgets(c *fiber.Ctx) error {
	asOf, err := queryTime(c, "as_of")
	if err != nil {
		return err
	}
	at := time.Now()
	if asOf != nil {
		at = *asOf
	}
	out, err := h.Cash.ListBudgets(c.UserContext(), at)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": out})
}
