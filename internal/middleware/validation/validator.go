package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

type Config struct {
	// MaxSymptoms caps the length of any "symptoms" list in a request body.
	MaxSymptoms         int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware checks request bodies before they reach handlers: the content
// type must be JSON, the body must parse, and a "symptoms" field, when
// present, must be a list of strings.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxSymptoms == 0 {
		cfg.MaxSymptoms = 64
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
		default:
			return c.Next()
		}

		body := c.Body()
		if len(body) == 0 {
			return c.Next()
		}

		if !allowedContentType(c.Get(fiber.HeaderContentType), cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		if !gjson.ValidBytes(body) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		if symptoms := gjson.GetBytes(body, "symptoms"); symptoms.Exists() {
			if msg := checkSymptoms(symptoms, cfg.MaxSymptoms); msg != "" {
				cfg.Logger.Debug("Rejected symptom list",
					zap.String("ip", c.IP()),
					zap.String("path", c.Path()),
					zap.String("reason", msg),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": msg,
				})
			}
		}

		return c.Next()
	}
}

func allowedContentType(contentType string, allowed []string) bool {
	if contentType == "" {
		return false
	}
	for _, t := range allowed {
		if strings.Contains(strings.ToLower(contentType), t) {
			return true
		}
	}
	return false
}

func checkSymptoms(symptoms gjson.Result, max int) string {
	if !symptoms.IsArray() {
		return "symptoms must be a list"
	}
	items := symptoms.Array()
	if len(items) > max {
		return "too many symptoms"
	}
	for _, item := range items {
		if item.Type != gjson.String {
			return "symptoms must be strings"
		}
		if strings.ContainsRune(item.Str, '\x00') {
			return "symptoms must be strings"
		}
	}
	return ""
}
