// Package report turns classifier output into stored diagnosis reports.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/internal/inference"
	"github.com/mediassist/backend/internal/storage/models"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Builder is stateless apart from its clock.
type Builder struct {
	now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// NewBuilderWithClock is for tests and replays.
func NewBuilderWithClock(now func() time.Time) *Builder {
	return &Builder{now: now}
}

// Build makes an unsaved report. Scores keep the value the classifier
// produced; the diagnosis is sorted highest first with ties left in
// classifier order.
func (b *Builder) Build(userID string, symptoms []string, result *inference.Result) (*models.Report, error) {
	if userID == "" {
		return nil, fmt.Errorf("userId is required: %w", apperrors.ErrInvalidInput)
	}
	if len(symptoms) == 0 {
		return nil, fmt.Errorf("symptoms are required: %w", apperrors.ErrInvalidInput)
	}
	if result == nil || len(result.Scores) == 0 {
		return nil, fmt.Errorf("prediction has no scores: %w", apperrors.ErrInvalidInput)
	}

	diagnosis := make([]models.DiagnosisEntry, len(result.Scores))
	for i, s := range result.Scores {
		diagnosis[i] = models.DiagnosisEntry{Disease: s.Label, Percentage: s.Value}
	}
	sort.SliceStable(diagnosis, func(i, j int) bool {
		return diagnosis[i].Percentage > diagnosis[j].Percentage
	})

	confidence := diagnosis[0].Percentage
	if c := result.Confidence; c != nil && !math.IsNaN(*c) && !math.IsInf(*c, 0) && *c >= 0 {
		confidence = *c
	}

	stamp := b.now().UTC()
	return &models.Report{
		UserID:     userID,
		Symptoms:   append([]string(nil), symptoms...),
		Diagnosis:  diagnosis,
		Predicted:  diagnosis[0].Disease,
		Confidence: confidence,
		Date:       stamp.Format(dateLayout),
		Time:       stamp.Format(timeLayout),
		Status:     false,
	}, nil
}
