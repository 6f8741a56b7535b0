// Package catalog holds the symptom taxonomy used to validate prediction
// requests and to group symptoms for display.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/mediassist/backend/internal/apperrors"
)

type Category struct {
	Name     string   `yaml:"name" json:"name"`
	Symptoms []string `yaml:"symptoms" json:"symptoms"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	categories []Category
	known      map[string]struct{}
}

func New(categories []Category) (*Catalog, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("catalog has no categories")
	}

	c := &Catalog{
		categories: make([]Category, 0, len(categories)),
		known:      make(map[string]struct{}),
	}
	for _, cat := range categories {
		if strings.TrimSpace(cat.Name) == "" {
			return nil, fmt.Errorf("catalog category without a name")
		}
		if len(cat.Symptoms) == 0 {
			return nil, fmt.Errorf("catalog category %q has no symptoms", cat.Name)
		}
		symptoms := make([]string, len(cat.Symptoms))
		for i, s := range cat.Symptoms {
			if s == "" {
				return nil, fmt.Errorf("catalog category %q has an empty symptom", cat.Name)
			}
			symptoms[i] = s
			// A symptom may sit in more than one category (chest_pain).
			c.known[s] = struct{}{}
		}
		c.categories = append(c.categories, Category{Name: cat.Name, Symptoms: symptoms})
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(builtinCategories())
	if err != nil {
		panic(fmt.Sprintf("builtin symptom catalog: %v", err))
	}
	return c
}

type fileFormat struct {
	Categories []Category `yaml:"categories"`
}

// Load reads a YAML catalog file, or returns the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	return New(doc.Categories)
}

// YAML encodes the catalog in the format Load reads.
func (c *Catalog) YAML() ([]byte, error) {
	return yaml.Marshal(fileFormat{Categories: c.Categories()})
}

// Categories returns a copy of the taxonomy in its declared order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = Category{Name: cat.Name, Symptoms: append([]string(nil), cat.Symptoms...)}
	}
	return out
}

func (c *Catalog) Size() int {
	return len(c.known)
}

func (c *Catalog) Contains(symptom string) bool {
	_, ok := c.known[symptom]
	return ok
}

// Validate checks a prediction request's symptom list: it must be non-empty,
// contain only catalog identifiers, and name each symptom once.
func (c *Catalog) Validate(symptoms []string) error {
	if len(symptoms) == 0 {
		return fmt.Errorf("at least one symptom is required: %w", apperrors.ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(symptoms))
	var unknown []string
	for _, s := range symptoms {
		if _, dup := seen[s]; dup {
			return fmt.Errorf("symptom %q listed more than once: %w", s, apperrors.ErrInvalidInput)
		}
		seen[s] = struct{}{}
		if !c.Contains(s) {
			unknown = append(unknown, s)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown symptoms %q: %w", unknown, apperrors.ErrInvalidInput)
	}
	return nil
}

// Search filters categories to symptoms whose display name contains term,
// case-insensitively. Empty categories are dropped.
func (c *Catalog) Search(term string) []Category {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return c.Categories()
	}

	var out []Category
	for _, cat := range c.categories {
		var matched []string
		for _, s := range cat.Symptoms {
			if strings.Contains(strings.ToLower(DisplayName(s)), term) {
				matched = append(matched, s)
			}
		}
		if len(matched) > 0 {
			out = append(out, Category{Name: cat.Name, Symptoms: matched})
		}
	}
	return out
}

// DisplayName renders an identifier for people: "high_fever" -> "High Fever".
// Existing capitals are kept.
func DisplayName(symptom string) string {
	words := strings.Fields(strings.ReplaceAll(symptom, "_", " "))
	// A Caser is stateful, so each call gets its own.
	return cases.Title(language.Und, cases.NoLower).String(strings.Join(words, " "))
}
