package controllers

import (
	"time"

	"hospital-billing/utils"

	"github.com/gofiber/fiber/v2"
)

// listResponse is the envelope for paged list endpoints.
type listResponse struct {
	Data    any   `json:"data"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

func paging(c *fiber.Ctx, def, max int) utils.Paging {
	return utils.NewPaging(c.Query("page"), c.Query("per_page"), def, max)
}

func list(c *fiber.Ctx, data any, total int64, p utils.Paging) error {
	return c.JSON(listResponse{Data: data, Total: total, Page: p.Page, PerPage: p.PerPage})
}

// queryTime parses an optional RFC 3339 or YYYY-MM-DD query parameter.
func queryTime(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name+" (use RFC 3339 or YYYY-MM-DD)")
}
