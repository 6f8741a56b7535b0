package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mediassist/backend/internal/catalog"
)

type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{
		catalog: c,
	}
}

type symptomView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type categoryView struct {
	Name     string        `json:"name"`
	Symptoms []symptomView `json:"symptoms"`
}

// ListSymptoms returns the catalog grouped by category, filtered by ?q=.
func (h *CatalogHandler) ListSymptoms(c *fiber.Ctx) error {
	categories := h.catalog.Search(c.Query("q"))

	views := make([]categoryView, 0, len(categories))
	total := 0
	for _, cat := range categories {
		v := categoryView{Name: cat.Name, Symptoms: make([]symptomView, len(cat.Symptoms))}
		for i, s := range cat.Symptoms {
			v.Symptoms[i] = symptomView{ID: s, Label: catalog.DisplayName(s)}
		}
		total += len(cat.Symptoms)
		views = append(views, v)
	}

	return c.JSON(fiber.Map{
		"categories": views,
		"count":      total,
	})
}
