package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/internal/inference"
)

type PredictionHandler struct {
	predictor inference.Predictor
}

func NewPredictionHandler(predictor inference.Predictor) *PredictionHandler {
	return &PredictionHandler{
		predictor: predictor,
	}
}

type predictRequest struct {
	Symptoms []string `json:"symptoms"`
}

// Predict relays a symptom list to the classifier and returns its
// normalized output, scores in classifier order.
func (h *PredictionHandler) Predict(c *fiber.Ctx) error {
	var req predictRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "parse prediction request", fmt.Errorf("invalid request body: %w", apperrors.ErrInvalidInput))
	}

	result, err := h.predictor.Predict(c.UserContext(), req.Symptoms)
	if err != nil {
		return respondError(c, "run prediction", err)
	}

	return c.JSON(result)
}
