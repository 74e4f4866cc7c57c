package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/thermaworks/intake/pkg/audit"
	"github.com/thermaworks/intake/pkg/contracts"
)

// PostgresStore implements RequestStore on PostgreSQL for deployments
// where several instances share one database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an opened database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Init creates the schema if it does not exist.
func (s *PostgresStore) Init(ctx context.Context) error {
	queries := []string{`
	CREATE TABLE IF NOT EXISTS submissions (
		id BIGSERIAL PRIMARY KEY,
		request_id TEXT UNIQUE NOT NULL,
		email TEXT NOT NULL,
		heat_exchanger_type TEXT NOT NULL,
		power TEXT NOT NULL,
		inlet_temp DOUBLE PRECISION NOT NULL,
		outlet_temp DOUBLE PRECISION NOT NULL,
		flow_rate TEXT NOT NULL,
		pressure TEXT NOT NULL,
		material TEXT NOT NULL,
		application TEXT,
		additional_requirements TEXT,
		ip_address TEXT,
		user_agent TEXT,
		submitted_at TIMESTAMPTZ,
		processed BOOLEAN DEFAULT FALSE
	);`, `
	CREATE TABLE IF NOT EXISTS security_events (
		id BIGSERIAL PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		client_ip TEXT,
		user_agent TEXT,
		details TEXT,
		timestamp TIMESTAMPTZ
	);`}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

// InsertSubmission writes one record in a single statement.
func (s *PostgresStore) InsertSubmission(ctx context.Context, r *contracts.SubmissionRecord) error {
	inlet, outlet, err := parseTemps(&r.Submission)
	if err != nil {
		return err
	}

	query := `INSERT INTO submissions (
		request_id, email, heat_exchanger_type, power, inlet_temp, outlet_temp,
		flow_rate, pressure, material, application, additional_requirements,
		ip_address, user_agent, submitted_at, processed
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = s.db.ExecContext(ctx, query,
		r.RequestID, r.Submission.Email, r.Submission.ExchangerType, r.Submission.Power,
		inlet, outlet, r.Submission.FlowRate, r.Submission.Pressure, r.Submission.Material,
		r.Submission.Application, r.Submission.AdditionalRequirements,
		r.ClientIP, r.UserAgent, r.SubmittedAt.UTC(), r.Processed,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateRequestID, r.RequestID)
		}
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// InsertSecurityEvent appends one event row.
func (s *PostgresStore) InsertSecurityEvent(ctx context.Context, e audit.Event) error {
	query := `INSERT INTO security_events (event_id, event_type, client_ip, user_agent, details, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, string(e.Kind), e.ClientIP, e.UserAgent, e.Details, e.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

// ListRecent returns the most recent submissions, newest first.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*contracts.SubmissionRecord, error) {
	query := `
		SELECT request_id, email, heat_exchanger_type, power, inlet_temp, outlet_temp,
			flow_rate, pressure, material, application, additional_requirements,
			ip_address, user_agent, submitted_at, processed
		FROM submissions
		ORDER BY submitted_at DESC
		LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*contracts.SubmissionRecord
	for rows.Next() {
		var (
			r           contracts.SubmissionRecord
			inlet       float64
			outlet      float64
			application sql.NullString
			additional  sql.NullString
			ip          sql.NullString
			userAgent   sql.NullString
		)
		if err := rows.Scan(
			&r.RequestID, &r.Submission.Email, &r.Submission.ExchangerType, &r.Submission.Power,
			&inlet, &outlet, &r.Submission.FlowRate, &r.Submission.Pressure, &r.Submission.Material,
			&application, &additional, &ip, &userAgent, &r.SubmittedAt, &r.Processed,
		); err != nil {
			return nil, err
		}
		r.Submission.InletTemp = strconv.FormatFloat(inlet, 'f', -1, 64)
		r.Submission.OutletTemp = strconv.FormatFloat(outlet, 'f', -1, 64)
		r.Submission.Application = application.String
		r.Submission.AdditionalRequirements = additional.String
		r.ClientIP = ip.String
		r.UserAgent = userAgent.String
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
