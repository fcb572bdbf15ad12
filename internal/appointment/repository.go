package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAdminNotFound       = errors.New("admin not found")
)

// Repository owns the canonical appointment collection. It performs no
// validation and does not enforce slot uniqueness; callers do both first.
type Repository interface {
	Create(ctx context.Context, in NewAppointment, createdAt time.Time) (*Appointment, error)

	// Reads. List and ListByEmail order newest first.
	List(ctx context.Context) ([]Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByEmail(ctx context.Context, email string) ([]Appointment, error)

	// UpdateStatusAndSlot replaces both fields in one step and returns
	// ErrAppointmentNotFound for an unknown id.
	UpdateStatusAndSlot(ctx context.Context, id uuid.UUID, status Status, slot *TimeSlot) (*Appointment, error)
}

// bookedSlotQuerier is implemented by repositories that can answer the
// booked-slot projection without a full scan.
type bookedSlotQuerier interface {
	BookedSlots(ctx context.Context, date string) ([]BookedSlot, error)
	AllBookedSlots(ctx context.Context) ([]BookedSlot, error)
}

// eventRecorder is implemented by repositories that keep an event log.
type eventRecorder interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Pinger is implemented by repositories backed by an external store.
type Pinger interface {
	Ping(ctx context.Context) error
}
