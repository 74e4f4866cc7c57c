package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/thermaworks/intake/pkg/audit"
	"github.com/thermaworks/intake/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements RequestStore on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an opened database handle and runs migrations.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens (or creates) the database file at path and returns an
// initialized store.
func OpenSQLite(path string) (*SQLiteStore, *sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	s, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return s, db, nil
}

func (s *SQLiteStore) migrate() error {
	queries := []string{`
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT UNIQUE NOT NULL,
		email TEXT NOT NULL,
		heat_exchanger_type TEXT NOT NULL,
		power TEXT NOT NULL,
		inlet_temp REAL NOT NULL,
		outlet_temp REAL NOT NULL,
		flow_rate TEXT NOT NULL,
		pressure TEXT NOT NULL,
		material TEXT NOT NULL,
		application TEXT,
		additional_requirements TEXT,
		ip_address TEXT,
		user_agent TEXT,
		submitted_at DATETIME,
		processed BOOLEAN DEFAULT FALSE
	);`, `
	CREATE TABLE IF NOT EXISTS security_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		client_ip TEXT,
		user_agent TEXT,
		details TEXT,
		timestamp DATETIME
	);`}

	for _, query := range queries {
		if _, err := s.db.ExecContext(context.Background(), query); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}

// InsertSubmission writes one record in a single statement. Temperatures
// were range-checked by the validator and parse cleanly here.
func (s *SQLiteStore) InsertSubmission(ctx context.Context, r *contracts.SubmissionRecord) error {
	inlet, outlet, err := parseTemps(&r.Submission)
	if err != nil {
		return err
	}

	query := `INSERT INTO submissions (
		request_id, email, heat_exchanger_type, power, inlet_temp, outlet_temp,
		flow_rate, pressure, material, application, additional_requirements,
		ip_address, user_agent, submitted_at, processed
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		r.RequestID, r.Submission.Email, r.Submission.ExchangerType, r.Submission.Power,
		inlet, outlet, r.Submission.FlowRate, r.Submission.Pressure, r.Submission.Material,
		r.Submission.Application, r.Submission.AdditionalRequirements,
		r.ClientIP, r.UserAgent, r.SubmittedAt.UTC().Format(time.RFC3339Nano), r.Processed,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateRequestID, r.RequestID)
		}
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// InsertSecurityEvent appends one event row.
func (s *SQLiteStore) InsertSecurityEvent(ctx context.Context, e audit.Event) error {
	query := `INSERT INTO security_events (event_id, event_type, client_ip, user_agent, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, string(e.Kind), e.ClientIP, e.UserAgent, e.Details,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

// ListRecent returns the most recent submissions, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*contracts.SubmissionRecord, error) {
	query := `
		SELECT request_id, email, heat_exchanger_type, power, inlet_temp, outlet_temp,
			flow_rate, pressure, material, application, additional_requirements,
			ip_address, user_agent, submitted_at, processed
		FROM submissions
		ORDER BY submitted_at DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*contracts.SubmissionRecord
	for rows.Next() {
		r, err := scanSubmissionRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanSubmissionRow(rows *sql.Rows) (*contracts.SubmissionRecord, error) {
	var (
		r           contracts.SubmissionRecord
		inlet       float64
		outlet      float64
		application sql.NullString
		additional  sql.NullString
		ip          sql.NullString
		userAgent   sql.NullString
		submittedAt string
	)
	if err := rows.Scan(
		&r.RequestID, &r.Submission.Email, &r.Submission.ExchangerType, &r.Submission.Power,
		&inlet, &outlet, &r.Submission.FlowRate, &r.Submission.Pressure, &r.Submission.Material,
		&application, &additional, &ip, &userAgent, &submittedAt, &r.Processed,
	); err != nil {
		return nil, err
	}
	r.Submission.InletTemp = strconv.FormatFloat(inlet, 'f', -1, 64)
	r.Submission.OutletTemp = strconv.FormatFloat(outlet, 'f', -1, 64)
	r.Submission.Application = application.String
	r.Submission.AdditionalRequirements = additional.String
	r.ClientIP = ip.String
	r.UserAgent = userAgent.String
	r.SubmittedAt = parseTime(submittedAt)
	return &r, nil
}

func parseTemps(sub *contracts.Submission) (float64, float64, error) {
	inlet, err := strconv.ParseFloat(strings.TrimSpace(sub.InletTemp), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("inlet temperature not numeric: %w", err)
	}
	outlet, err := strconv.ParseFloat(strings.TrimSpace(sub.OutletTemp), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("outlet temperature not numeric: %w", err)
	}
	return inlet, outlet, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
