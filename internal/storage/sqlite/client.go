package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/internal/storage/models"
	"github.com/mediassist/backend/pkg/logger"
	"github.com/mediassist/backend/pkg/retry"
)

type Client struct {
	db  *sql.DB
	now func() time.Time
}

func NewClient(ctx context.Context, dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	cfg := retry.DefaultConfig("sqlite")
	cfg.Logger = logger.GetLogger()
	if err := retry.Do(ctx, cfg, db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database: %v: %w", err, apperrors.ErrStorageUnavailable)
	}

	_, err = db.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, now: time.Now}, nil
}

// NewFromDB wraps an already opened handle.
func NewFromDB(db *sql.DB) *Client {
	return &Client{db: db, now: time.Now}
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%v: %w", err, apperrors.ErrStorageUnavailable)
	}
	return nil
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		age INTEGER NOT NULL,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		user_type TEXT NOT NULL DEFAULT 'patient',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		symptoms TEXT NOT NULL,
		diagnosis TEXT NOT NULL,
		predicted TEXT NOT NULL,
		confidence REAL NOT NULL,
		report_date TEXT NOT NULL,
		report_time TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_user ON reports(user_id);
	CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);
	`

	_, err := c.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// storageError maps driver failures onto the shared taxonomy.
func storageError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return fmt.Errorf("failed to %s: %v: %w", op, err, apperrors.ErrStorageUnavailable)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (c *Client) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	now := c.now().UTC()
	stored := *user
	stored.ID = uuid.New().String()
	if stored.UserType == "" {
		stored.UserType = models.UserTypePatient
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	query := `
		INSERT INTO users (id, full_name, age, username, password_hash, user_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		stored.ID,
		stored.FullName,
		stored.Age,
		stored.Username,
		stored.PasswordHash,
		stored.UserType,
		now.UnixNano(),
		now.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %q: %w", stored.Username, apperrors.ErrDuplicateUsername)
		}
		return nil, storageError("insert user", err)
	}

	logger.Debug("User inserted", zap.String("user_id", stored.ID))
	return &stored, nil
}

const userColumns = `id, full_name, age, username, password_hash, user_type, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var createdAt, updatedAt int64
	err := row.Scan(&u.ID, &u.FullName, &u.Age, &u.Username, &u.PasswordHash, &u.UserType, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	u.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &u, nil
}

func (c *Client) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		return nil, storageError("get user", err)
	}
	return u, nil
}

func (c *Client) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, storageError("get user", err)
	}
	return u, nil
}

// DeleteUserByUsername removes the account and, when cascade is set, its
// reports, in one transaction. It returns the deleted user and the number
// of reports removed with it.
func (c *Client) DeleteUserByUsername(ctx context.Context, username string, cascade bool) (*models.User, int64, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, storageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	u, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		return nil, 0, storageError("get user", err)
	}

	var removed int64
	if cascade {
		res, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE user_id = ?`, u.ID)
		if err != nil {
			return nil, 0, storageError("delete reports", err)
		}
		removed, _ = res.RowsAffected()
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, u.ID); err != nil {
		return nil, 0, storageError("delete user", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, storageError("commit transaction", err)
	}

	logger.Info("User deleted",
		zap.String("user_id", u.ID),
		zap.Bool("cascade", cascade),
		zap.Int64("reports_removed", removed),
	)
	return u, removed, nil
}

func (c *Client) CreateReport(ctx context.Context, report *models.Report) (*models.Report, error) {
	symptomsJSON, err := json.Marshal(report.Symptoms)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal symptoms: %w", err)
	}
	diagnosisJSON, err := json.Marshal(report.Diagnosis)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal diagnosis: %w", err)
	}

	now := c.now().UTC()
	stored := *report
	stored.ID = uuid.New().String()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	query := `
		INSERT INTO reports (id, user_id, symptoms, diagnosis, predicted, confidence,
			report_date, report_time, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.ExecContext(ctx, query,
		stored.ID,
		stored.UserID,
		string(symptomsJSON),
		string(diagnosisJSON),
		stored.Predicted,
		stored.Confidence,
		stored.Date,
		stored.Time,
		boolToInt(stored.Status),
		now.UnixNano(),
		now.UnixNano(),
	)
	if err != nil {
		return nil, storageError("insert report", err)
	}

	logger.Info("Report stored",
		zap.String("report_id", stored.ID),
		zap.String("user_id", stored.UserID),
		zap.String("predicted", stored.Predicted),
		zap.Float64("confidence", stored.Confidence),
	)
	return &stored, nil
}

const reportColumns = `id, user_id, symptoms, diagnosis, predicted, confidence, report_date, report_time, status, created_at, updated_at`

func scanReport(row interface{ Scan(...any) error }) (*models.Report, error) {
	var r models.Report
	var symptomsJSON, diagnosisJSON string
	var status int
	var createdAt, updatedAt int64

	err := row.Scan(
		&r.ID,
		&r.UserID,
		&symptomsJSON,
		&diagnosisJSON,
		&r.Predicted,
		&r.Confidence,
		&r.Date,
		&r.Time,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(symptomsJSON), &r.Symptoms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal symptoms: %w", err)
	}
	if err := json.Unmarshal([]byte(diagnosisJSON), &r.Diagnosis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal diagnosis: %w", err)
	}
	r.Status = status != 0
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &r, nil
}

func (c *Client) GetReport(ctx context.Context, id string) (*models.Report, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if err != nil {
		return nil, storageError("get report", err)
	}
	return r, nil
}

// ListReportsByUser returns the user's reports, newest first.
func (c *Client) ListReportsByUser(ctx context.Context, userID string) ([]models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, storageError("list reports", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list reports", err)
	}

	return reports, nil
}

// DeleteReport removes the report and returns what was stored.
func (c *Client) DeleteReport(ctx context.Context, id string) (*models.Report, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	r, err := scanReport(tx.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if err != nil {
		return nil, storageError("get report", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id); err != nil {
		return nil, storageError("delete report", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError("commit transaction", err)
	}

	logger.Info("Report deleted", zap.String("report_id", id), zap.String("user_id", r.UserID))
	return r, nil
}

func (c *Client) UpdateReportStatus(ctx context.Context, id string, status bool) (*models.Report, error) {
	now := c.now().UTC()
	res, err := c.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, updated_at = ? WHERE id = ?`,
		boolToInt(status), now.UnixNano(), id,
	)
	if err != nil {
		return nil, storageError("update report status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("report %s: %w", id, apperrors.ErrNotFound)
	}

	return c.GetReport(ctx, id)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
