package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ContactNumber,
		&a.Name,
		&a.Date,
		&a.Time,
		&a.Status,
		&a.ConfirmedByUser,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrAppointmentNotFound
		}
		return Appointment{}, err
	}

	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, appt Appointment) (Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, contact_number, name, date, time, status, confirmed_by_user)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, contact_number, name, date, time, status, confirmed_by_user
	`, appt.ID, appt.ContactNumber, appt.Name, appt.Date, appt.Time, appt.Status, appt.ConfirmedByUser)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Appointment{}, ErrDuplicateAppointment
		}
		return Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}

	return created, nil
}

func (r *PgRepository) ListByContact(ctx context.Context, contactNumber string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, contact_number, name, date, time, status, confirmed_by_user
		FROM appointments
		WHERE contact_number = $1
		ORDER BY created_at
	`, contactNumber)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Update(ctx context.Context, appt Appointment) (Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET contact_number = $2,
		    name = $3,
		    date = $4,
		    time = $5,
		    status = $6,
		    confirmed_by_user = $7,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, contact_number, name, date, time, status, confirmed_by_user
	`, appt.ID, appt.ContactNumber, appt.Name, appt.Date, appt.Time, appt.Status, appt.ConfirmedByUser)

	return scanAppointment(row)
}

// PgSummaryRepository persists end-of-call summaries. Upsert keys on
// session_id so a repeated end_conversation overwrites the earlier row.
type PgSummaryRepository struct {
	pool *pgxpool.Pool
}

func NewPgSummaryRepository(pool *pgxpool.Pool) *PgSummaryRepository {
	return &PgSummaryRepository{pool: pool}
}

func (r *PgSummaryRepository) Upsert(ctx context.Context, summary ConversationSummary) (ConversationSummary, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO summaries (session_id, contact_number, summary, booked_appointments, preferences, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE
		SET contact_number = EXCLUDED.contact_number,
		    summary = EXCLUDED.summary,
		    booked_appointments = EXCLUDED.booked_appointments,
		    preferences = EXCLUDED.preferences,
		    created_at = EXCLUDED.created_at
	`, summary.SessionID, summary.ContactNumber, summary.Summary, summary.BookedAppointments, summary.Preferences, summary.CreatedAt)
	if err != nil {
		return ConversationSummary{}, fmt.Errorf("upsert summary: %w", err)
	}

	return summary, nil
}

func (r *PgSummaryRepository) GetBySession(ctx context.Context, sessionID string) (ConversationSummary, error) {
	var s ConversationSummary

	row := r.pool.QueryRow(ctx, `
		SELECT session_id, contact_number, summary, booked_appointments, preferences, created_at
		FROM summaries
		WHERE session_id = $1
	`, sessionID)

	err := row.Scan(&s.SessionID, &s.ContactNumber, &s.Summary, &s.BookedAppointments, &s.Preferences, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConversationSummary{}, ErrSummaryNotFound
		}
		return ConversationSummary{}, fmt.Errorf("get summary: %w", err)
	}

	return s, nil
}
