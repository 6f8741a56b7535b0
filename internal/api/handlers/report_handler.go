package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"

	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/internal/auth"
	"github.com/mediassist/backend/internal/inference"
	"github.com/mediassist/backend/internal/report"
)

type ReportHandler struct {
	reports *report.Service
	scale   inference.Scale
}

func NewReportHandler(reports *report.Service, scale inference.Scale) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		scale:   scale,
	}
}

// Save stores a report from output the client got from /api/predict.
// The body is read with gjson so the score object keeps its key order.
func (h *ReportHandler) Save(c *fiber.Ctx) error {
	body := c.Body()
	userID := gjson.GetBytes(body, "userId")
	symptoms := gjson.GetBytes(body, "symptoms")
	modelOutput := gjson.GetBytes(body, "modelOutput")

	if userID.String() == "" || !symptoms.Exists() || !modelOutput.Exists() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "userId, symptoms, and modelOutput are required",
		})
	}

	claims := auth.FromContext(c)
	if claims == nil || claims.UserID != userID.String() {
		return respondError(c, "save report", fmt.Errorf("cannot save a report for another user: %w", apperrors.ErrForbidden))
	}

	result, err := inference.ParseValue(modelOutput, h.scale)
	if err != nil {
		return respondError(c, "save report", fmt.Errorf("modelOutput: %v: %w", err, apperrors.ErrInvalidInput))
	}

	var list []string
	for _, s := range symptoms.Array() {
		list = append(list, s.String())
	}

	saved, err := h.reports.Create(c.UserContext(), userID.String(), list, result)
	if err != nil {
		return respondError(c, "save report", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Report saved successfully",
		"report":  saved,
	})
}

// PredictAndSave runs the classifier and stores the report in one call.
func (h *ReportHandler) PredictAndSave(c *fiber.Ctx) error {
	var req struct {
		UserID   string   `json:"userId"`
		Symptoms []string `json:"symptoms"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "parse report request", fmt.Errorf("invalid request body: %w", apperrors.ErrInvalidInput))
	}

	claims := auth.FromContext(c)
	if req.UserID == "" && claims != nil {
		req.UserID = claims.UserID
	}
	if claims == nil || claims.UserID != req.UserID {
		return respondError(c, "save report", fmt.Errorf("cannot save a report for another user: %w", apperrors.ErrForbidden))
	}

	saved, err := h.reports.PredictAndCreate(c.UserContext(), req.UserID, req.Symptoms)
	if err != nil {
		return respondError(c, "predict and save report", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Report saved successfully",
		"report":  saved,
	})
}

func (h *ReportHandler) ListByUser(c *fiber.Ctx) error {
	reports, err := h.reports.ListByUser(c.UserContext(), callerID(c), c.Params("userId"))
	if err != nil {
		return respondError(c, "fetch reports", err)
	}

	// ?top=N trims each diagnosis for list views.
	if n := c.QueryInt("top"); n > 0 {
		for i := range reports {
			reports[i].Diagnosis = reports[i].Top(n)
		}
	}

	return c.JSON(fiber.Map{
		"message": "Reports fetched successfully",
		"reports": reports,
	})
}

func (h *ReportHandler) Get(c *fiber.Ctx) error {
	r, err := h.reports.Get(c.UserContext(), callerID(c), c.Params("reportId"))
	if err != nil {
		return respondError(c, "fetch report", err)
	}

	return c.JSON(fiber.Map{
		"message": "Report fetched successfully",
		"report":  r,
	})
}

func (h *ReportHandler) UpdateStatus(c *fiber.Ctx) error {
	var req struct {
		Status *bool `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil || req.Status == nil {
		return respondError(c, "update report status", fmt.Errorf("status is required: %w", apperrors.ErrInvalidInput))
	}

	r, err := h.reports.SetStatus(c.UserContext(), callerID(c), c.Params("reportId"), *req.Status)
	if err != nil {
		return respondError(c, "update report status", err)
	}

	return c.JSON(fiber.Map{
		"message": "Report status updated successfully",
		"report":  r,
	})
}

func (h *ReportHandler) Delete(c *fiber.Ctx) error {
	deleted, err := h.reports.Delete(c.UserContext(), callerID(c), c.Params("reportId"))
	if err != nil {
		return respondError(c, "delete report", err)
	}

	return c.JSON(fiber.Map{
		"message": "Report deleted successfully",
		"report":  deleted,
	})
}

func callerID(c *fiber.Ctx) string {
	if claims := auth.FromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
