package report

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/internal/inference"
	"github.com/mediassist/backend/internal/metrics"
	"github.com/mediassist/backend/internal/storage/models"
	"github.com/mediassist/backend/pkg/logger"
)

// Store persists reports. Create assigns the id and timestamps.
type Store interface {
	CreateReport(ctx context.Context, report *models.Report) (*models.Report, error)
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReportsByUser(ctx context.Context, userID string) ([]models.Report, error)
	DeleteReport(ctx context.Context, id string) (*models.Report, error)
	UpdateReportStatus(ctx context.Context, id string, status bool) (*models.Report, error)
}

// Users answers whether an account exists.
type Users interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type Service struct {
	builder   *Builder
	store     Store
	users     Users
	predictor inference.Predictor
}

func NewService(builder *Builder, store Store, users Users, predictor inference.Predictor) *Service {
	return &Service{
		builder:   builder,
		store:     store,
		users:     users,
		predictor: predictor,
	}
}

// Create stores a report built from output the client already obtained.
func (s *Service) Create(ctx context.Context, userID string, symptoms []string, result *inference.Result) (*models.Report, error) {
	r, err := s.builder.Build(userID, symptoms, result)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.save(ctx, r)
}

// PredictAndCreate asks the classifier and stores the outcome. Nothing is
// written when the classifier fails.
func (s *Service) PredictAndCreate(ctx context.Context, userID string, symptoms []string) (*models.Report, error) {
	if userID == "" {
		return nil, fmt.Errorf("userId is required: %w", apperrors.ErrInvalidInput)
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	result, err := s.predictor.Predict(ctx, symptoms)
	if err != nil {
		return nil, err
	}

	r, err := s.builder.Build(userID, symptoms, result)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, r)
}

func (s *Service) save(ctx context.Context, r *models.Report) (*models.Report, error) {
	stored, err := s.store.CreateReport(ctx, r)
	if err != nil {
		logger.Error("Failed to store report", zap.String("user_id", r.UserID), zap.Error(err))
		return nil, err
	}
	metrics.ReportsCreated.Inc()
	metrics.PredictionConfidence.Observe(stored.Confidence)
	return stored, nil
}

// Get returns a report to its owner, or to anyone once it is shared.
func (s *Service) Get(ctx context.Context, callerID, reportID string) (*models.Report, error) {
	r, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if r.UserID != callerID && !r.Status {
		return nil, fmt.Errorf("report %s is private: %w", reportID, apperrors.ErrForbidden)
	}
	return r, nil
}

// ListByUser returns an empty list for an account with no reports and
// NotFound for an unknown account.
func (s *Service) ListByUser(ctx context.Context, callerID, userID string) ([]models.Report, error) {
	if userID == "" {
		return nil, fmt.Errorf("userId is required: %w", apperrors.ErrInvalidInput)
	}
	if callerID != userID {
		return nil, fmt.Errorf("cannot list reports of another user: %w", apperrors.ErrForbidden)
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListReportsByUser(ctx, userID)
}

// Delete removes a report owned by callerID.
func (s *Service) Delete(ctx context.Context, callerID, reportID string) (*models.Report, error) {
	if err := s.checkOwner(ctx, callerID, reportID); err != nil {
		return nil, err
	}
	deleted, err := s.store.DeleteReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	metrics.ReportsDeleted.Inc()
	return deleted, nil
}

// SetStatus shares or unshares a report owned by callerID.
func (s *Service) SetStatus(ctx context.Context, callerID, reportID string, status bool) (*models.Report, error) {
	if err := s.checkOwner(ctx, callerID, reportID); err != nil {
		return nil, err
	}
	return s.store.UpdateReportStatus(ctx, reportID, status)
}

func (s *Service) checkOwner(ctx context.Context, callerID, reportID string) error {
	if reportID == "" {
		return fmt.Errorf("reportId is required: %w", apperrors.ErrInvalidInput)
	}
	r, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return err
	}
	if r.UserID != callerID {
		logger.Warn("Report access denied",
			zap.String("report_id", reportID),
			zap.String("caller_id", callerID),
		)
		return fmt.Errorf("report %s belongs to another user: %w", reportID, apperrors.ErrForbidden)
	}
	return nil
}
