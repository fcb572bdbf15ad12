package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is raised by appointments_booked_slot_uq when two approvals
// for the same date and slot race past the lock.
const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, name, role, email, phone, meeting_reason, preferred_date, status, time_slot, created_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var slot *string

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Role,
		&a.Email,
		&a.Phone,
		&a.MeetingReason,
		&a.PreferredDate,
		&a.Status,
		&slot,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if slot != nil {
		a.TimeSlot = slotPtr(TimeSlot(*slot))
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func collectBookedSlots(rows pgx.Rows) ([]BookedSlot, error) {
	defer rows.Close()

	var result []BookedSlot
	for rows.Next() {
		var b BookedSlot
		if err := rows.Scan(&b.Date, &b.TimeSlot); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func slotArg(slot *TimeSlot) *string {
	if slot == nil {
		return nil
	}
	s := string(*slot)
	return &s
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, in NewAppointment, createdAt time.Time) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, name, role, email, phone, meeting_reason, preferred_date, status, time_slot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'Pending', NULL, $8)
		RETURNING `+appointmentColumns,
		id, in.Name, in.Role, in.Email, in.Phone, in.MeetingReason, in.PreferredDate, createdAt)

	return scanAppointment(row)
}

func (r *PgRepository) List(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY created_at DESC, seq DESC
	`)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByEmail(ctx context.Context, email string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE lower(email) = lower($1)
		ORDER BY created_at DESC, seq DESC
	`, email)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) UpdateStatusAndSlot(ctx context.Context, id uuid.UUID, status Status, slot *TimeSlot) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    time_slot = $3
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, status, slotArg(slot))

	a, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotConflict
		}
		return nil, err
	}
	return a, nil
}

func (r *PgRepository) BookedSlots(ctx context.Context, date string) ([]BookedSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT preferred_date, time_slot
		FROM appointments
		WHERE status = 'Approved'
		  AND time_slot IS NOT NULL
		  AND preferred_date = $1
	`, date)
	if err != nil {
		return nil, err
	}
	return collectBookedSlots(rows)
}

func (r *PgRepository) AllBookedSlots(ctx context.Context) ([]BookedSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT preferred_date, time_slot
		FROM appointments
		WHERE status = 'Approved'
		  AND time_slot IS NOT NULL
		ORDER BY preferred_date, time_slot
	`)
	if err != nil {
		return nil, err
	}
	return collectBookedSlots(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func (r *PgRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
