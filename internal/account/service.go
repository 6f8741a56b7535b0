// Package account registers, authenticates and removes user accounts.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/internal/metrics"
	"github.com/mediassist/backend/internal/storage/models"
	"github.com/mediassist/backend/pkg/logger"
)

const (
	minPasswordLength = 6
	minAge            = 1
	maxAge            = 150
)

type Store interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	DeleteUserByUsername(ctx context.Context, username string, cascade bool) (*models.User, int64, error)
}

type Registration struct {
	FullName string `json:"fullName"`
	Age      int    `json:"age"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Service struct {
	store     Store
	cost      int
	cascade   bool
	dummyHash []byte
}

func NewService(store Store, bcryptCost int, cascadeReports bool) (*Service, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	// Compared against when the username is unknown so both failure paths
	// cost one bcrypt comparison.
	dummy, err := bcrypt.GenerateFromPassword([]byte("mediassist-dummy-password"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}
	return &Service{
		store:     store,
		cost:      bcryptCost,
		cascade:   cascadeReports,
		dummyHash: dummy,
	}, nil
}

func (r Registration) validate() error {
	var missing []string
	if strings.TrimSpace(r.FullName) == "" {
		missing = append(missing, "fullName")
	}
	if strings.TrimSpace(r.Username) == "" {
		missing = append(missing, "username")
	}
	if r.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required: %w", strings.Join(missing, ", "), apperrors.ErrInvalidInput)
	}
	if r.Age < minAge || r.Age > maxAge {
		return fmt.Errorf("age must be between %d and %d: %w", minAge, maxAge, apperrors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(r.Password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, apperrors.ErrInvalidInput)
	}
	return nil
}

func (s *Service) Register(ctx context.Context, reg Registration) (*models.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.FullName = strings.TrimSpace(reg.FullName)
	if err := reg.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, &models.User{
		FullName:     reg.FullName,
		Age:          reg.Age,
		Username:     reg.Username,
		PasswordHash: string(hash),
		UserType:     models.UserTypePatient,
	})
	if err != nil {
		return nil, err
	}

	metrics.AccountsRegistered.Inc()
	logger.Info("User registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Authenticate returns InvalidCredentials for both an unknown username and
// a wrong password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password required: %w", apperrors.ErrInvalidInput)
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			metrics.LoginAttempts.WithLabelValues("rejected").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	metrics.LoginAttempts.WithLabelValues("accepted").Inc()
	return user, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// DeleteByUsername removes the account, and its reports when the service
// was built with cascading enabled. callerID must be the account's own id;
// a username re-registered after a deletion belongs to a new id.
func (s *Service) DeleteByUsername(ctx context.Context, callerID, username string) (*models.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("username required: %w", apperrors.ErrInvalidInput)
	}

	target, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if target.ID != callerID {
		return nil, fmt.Errorf("cannot delete account %s: %w", username, apperrors.ErrForbidden)
	}

	user, removed, err := s.store.DeleteUserByUsername(ctx, username, s.cascade)
	if err != nil {
		return nil, err
	}
	logger.Info("Account deleted",
		zap.String("user_id", user.ID),
		zap.Int64("reports_removed", removed),
	)
	return user, nil
}
