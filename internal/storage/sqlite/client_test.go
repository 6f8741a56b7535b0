package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()
	c, err := NewClient(ctx, filepath.Join(t.TempDir(), "mediassist.db"))
	require.NoError(t, err)
	require.NoError(t, c.InitSchema(ctx))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleReport(userID string) *models.Report {
	return &models.Report{
		UserID:   userID,
		Symptoms: []string{"high_fever", "cough", "chills"},
		Diagnosis: []models.DiagnosisEntry{
			{Disease: "Flu", Percentage: 72},
			{Disease: "Cold", Percentage: 20},
			{Disease: "Allergy", Percentage: 8},
		},
		Predicted:  "Flu",
		Confidence: 72,
		Date:       "2024-03-01",
		Time:       "09:15:00",
	}
}

func createUser(t *testing.T, c *Client, username string) *models.User {
	t.Helper()
	u, err := c.CreateUser(context.Background(), &models.User{
		FullName:     "Test Patient",
		Age:          34,
		Username:     username,
		PasswordHash: "$2a$10$hash",
	})
	require.NoError(t, err)
	return u
}

func TestCreateAndGetReport(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	u := createUser(t, c, "asha")

	stored, err := c.CreateReport(ctx, sampleReport(u.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())

	got, err := c.GetReport(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)
	assert.Equal(t, u.ID, got.UserID)
	assert.Equal(t, []string{"high_fever", "cough", "chills"}, got.Symptoms)
	assert.Equal(t, sampleReport(u.ID).Diagnosis, got.Diagnosis)
	assert.Equal(t, "Flu", got.Predicted)
	assert.Equal(t, 72.0, got.Confidence)
	assert.Equal(t, "2024-03-01", got.Date)
	assert.Equal(t, "09:15:00", got.Time)
	assert.False(t, got.Status)
}

func TestGetReportNotFound(t *testing.T) {
	c := newTestClient(t)

	_, err := c.GetReport(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteReportTwice(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	u := createUser(t, c, "asha")

	stored, err := c.CreateReport(ctx, sampleReport(u.ID))
	require.NoError(t, err)

	deleted, err := c.DeleteReport(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, deleted.ID)

	_, err = c.DeleteReport(ctx, stored.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListReportsByUserNewestFirst(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	u := createUser(t, c, "asha")
	other := createUser(t, c, "ravi")

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		c.now = func() time.Time { return at }
		r, err := c.CreateReport(ctx, sampleReport(u.ID))
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	_, err := c.CreateReport(ctx, sampleReport(other.ID))
	require.NoError(t, err)

	reports, err := c.ListReportsByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, ids[2], reports[0].ID)
	assert.Equal(t, ids[0], reports[2].ID)

	empty, err := c.ListReportsByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestUpdateReportStatus(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	u := createUser(t, c, "asha")

	stored, err := c.CreateReport(ctx, sampleReport(u.ID))
	require.NoError(t, err)

	updated, err := c.UpdateReportStatus(ctx, stored.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Status)
	assert.Equal(t, stored.Date, updated.Date, "creation stamp never changes")

	_, err = c.UpdateReportStatus(ctx, "missing", true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	c := newTestClient(t)
	createUser(t, c, "asha")

	_, err := c.CreateUser(context.Background(), &models.User{FullName: "Other", Age: 40, Username: "asha", PasswordHash: "x"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateUsername)
}

func TestGetUser(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	u := createUser(t, c, "asha")
	assert.Equal(t, models.UserTypePatient, u.UserType)

	byName, err := c.GetUserByUsername(ctx, "asha")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
	assert.Equal(t, "$2a$10$hash", byName.PasswordHash)

	byID, err := c.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "asha", byID.Username)

	_, err = c.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteUserCascade(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	u := createUser(t, c, "asha")
	for i := 0; i < 2; i++ {
		_, err := c.CreateReport(ctx, sampleReport(u.ID))
		require.NoError(t, err)
	}

	deleted, removed, err := c.DeleteUserByUsername(ctx, "asha", true)
	require.NoError(t, err)
	assert.Equal(t, u.ID, deleted.ID)
	assert.EqualValues(t, 2, removed)

	reports, err := c.ListReportsByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, reports)

	_, _, err = c.DeleteUserByUsername(ctx, "asha", true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteUserWithoutCascadeKeepsReports(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	u := createUser(t, c, "asha")
	_, err := c.CreateReport(ctx, sampleReport(u.ID))
	require.NoError(t, err)

	_, removed, err := c.DeleteUserByUsername(ctx, "asha", false)
	require.NoError(t, err)
	assert.Zero(t, removed)

	reports, err := c.ListReportsByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestCreateReportStorageUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO reports").WillReturnError(errors.New("disk I/O error"))

	_, err = NewFromDB(db).CreateReport(context.Background(), sampleReport("u1"))
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReportsDecodesRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC).UnixNano()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "symptoms", "diagnosis", "predicted", "confidence",
		"report_date", "report_time", "status", "created_at", "updated_at",
	}).AddRow(
		"r1", "u1", `["cough"]`, `[{"disease":"Cold","percentage":55},{"disease":"Flu","percentage":45}]`,
		"Cold", 55.0, "2024-03-01", "09:15:00", 1, created, created,
	)
	mock.ExpectQuery("SELECT .+ FROM reports WHERE user_id").WithArgs("u1").WillReturnRows(rows)

	reports, err := NewFromDB(db).ListReportsByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Cold", reports[0].Diagnosis[0].Disease)
	assert.True(t, reports[0].Status)
	assert.Equal(t, created, reports[0].CreatedAt.UnixNano())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPingStorageUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("database is closed"))

	err = NewFromDB(db).Ping(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
}
