package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/dean-appointment-requests/internal/lock"
)

const (
	EventAppointmentCreated  = "APPOINTMENT_CREATED"
	EventAppointmentApproved = "APPOINTMENT_APPROVED"
	EventAppointmentRejected = "APPOINTMENT_REJECTED"
	EventAppointmentLapsed   = "APPOINTMENT_LAPSED"
)

// Transition outcomes reported to a Recorder.
const (
	OutcomeCreated     = "created"
	OutcomeApproved    = "approved"
	OutcomeRejected    = "rejected"
	OutcomeConflict    = "conflict"
	OutcomeInvalidSlot = "invalid_slot"
	OutcomeLapsed      = "lapsed"
)

var (
	ErrInvalidSlot   = errors.New("time slot is not one of the fixed daily slots")
	ErrSlotConflict  = errors.New("this time slot is already booked")
	ErrInvalidStatus = errors.New("status must be Approved or Rejected")
)

// Recorder receives one call per lifecycle outcome.
type Recorder interface {
	ObserveTransition(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTransition(string) {}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service drives the Pending -> Approved/Rejected lifecycle.
type Service struct {
	repo      Repository
	slots     *SlotIndex
	locker    lock.Locker
	validator *Validator
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		slots:     NewSlotIndex(repo),
		locker:    locker,
		validator: NewValidator(),
		recorder:  nopRecorder{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAppointment validates a submission and stores it as Pending.
func (s *Service) CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	appt, err := s.repo.Create(ctx, in, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.recorder.ObserveTransition(OutcomeCreated)
	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"preferred_date": appt.PreferredDate,
		"role":           appt.Role,
	})

	return appt, nil
}

// ListAppointments returns every appointment newest first. A non-nil status
// narrows the result to that state.
func (s *Service) ListAppointments(ctx context.Context, status *Status) ([]Appointment, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if status == nil {
		return all, nil
	}

	out := make([]Appointment, 0, len(all))
	for _, a := range all {
		if a.Status == *status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// FindByEmail matches the stored email case-insensitively.
func (s *Service) FindByEmail(ctx context.Context, email string) ([]Appointment, error) {
	appts, err := s.repo.ListByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find appointments by email: %w", err)
	}
	return appts, nil
}

// BookedSlots lists the slots taken on date in day order.
func (s *Service) BookedSlots(ctx context.Context, date string) ([]BookedSlot, error) {
	set, err := s.slots.BookedSlots(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("booked slots: %w", err)
	}

	out := []BookedSlot{}
	for _, slot := range TimeSlots {
		if set.Has(slot) {
			out = append(out, BookedSlot{Date: date, TimeSlot: slot})
		}
	}
	return out, nil
}

func (s *Service) AllBookedSlots(ctx context.Context) ([]BookedSlot, error) {
	out, err := s.slots.AllBookedSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("all booked slots: %w", err)
	}
	return out, nil
}

// AvailableSlots is advisory: Approve re-checks under the date lock.
func (s *Service) AvailableSlots(ctx context.Context, date string) ([]TimeSlot, error) {
	set, err := s.slots.BookedSlots(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("available slots: %w", err)
	}
	return set.Available(), nil
}

// Schedule lays out the day grid for date, one entry per slot.
func (s *Service) Schedule(ctx context.Context, date string) (*Schedule, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}

	bySlot := make(map[TimeSlot]*Appointment)
	for i := range all {
		a := &all[i]
		if a.Status == StatusApproved && a.TimeSlot != nil && a.PreferredDate == date {
			bySlot[*a.TimeSlot] = a
		}
	}

	sched := &Schedule{Date: date, Entries: make([]ScheduleEntry, 0, len(TimeSlots))}
	for _, slot := range TimeSlots {
		sched.Entries = append(sched.Entries, ScheduleEntry{TimeSlot: slot, Appointment: bySlot[slot]})
	}
	return sched, nil
}

// Approve assigns slot to the appointment. The booked-slot read, the
// conflict check and the write happen under the lock for the appointment's
// preferred date, so two approvals of one (date, slot) cannot both succeed.
//
// An appointment that is already terminal may be approved again; the new
// slot replaces the old one.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, slot TimeSlot) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if _, err := ParseTimeSlot(string(slot)); err != nil {
		s.recorder.ObserveTransition(OutcomeInvalidSlot)
		return nil, err
	}

	var updated *Appointment
	err = s.locker.WithDateLock(ctx, appt.PreferredDate, func(lockCtx context.Context) error {
		booked, err := s.slots.BookedSlots(lockCtx, appt.PreferredDate)
		if err != nil {
			return fmt.Errorf("check booked slots: %w", err)
		}
		if booked.Has(slot) {
			return ErrSlotConflict
		}

		updated, err = s.repo.UpdateStatusAndSlot(lockCtx, id, StatusApproved, &slot)
		if err != nil {
			return fmt.Errorf("approve appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSlotConflict) {
			s.recorder.ObserveTransition(OutcomeConflict)
			s.logger.Info("slot conflict",
				zap.String("appointment_id", id.String()),
				zap.String("date", appt.PreferredDate),
				zap.String("time_slot", string(slot)),
			)
		}
		return nil, err
	}

	s.recorder.ObserveTransition(OutcomeApproved)
	s.logEvent(ctx, updated.ID, EventAppointmentApproved, map[string]any{
		"date":      updated.PreferredDate,
		"time_slot": slot,
	})

	return updated, nil
}

// Reject closes the appointment and frees any slot it held.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	updated, err := s.repo.UpdateStatusAndSlot(ctx, id, StatusRejected, nil)
	if err != nil {
		return nil, fmt.Errorf("reject appointment: %w", err)
	}

	s.recorder.ObserveTransition(OutcomeRejected)
	s.logEvent(ctx, updated.ID, EventAppointmentRejected, map[string]any{})

	return updated, nil
}

// UpdateStatus applies an admin decision. Approved requires a slot; a
// slot sent with Rejected is ignored. Pending is not a valid target.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, slot *TimeSlot) (*Appointment, error) {
	switch status {
	case StatusApproved:
		var chosen TimeSlot
		if slot != nil {
			chosen = *slot
		}
		return s.Approve(ctx, id, chosen)
	case StatusRejected:
		return s.Reject(ctx, id)
	default:
		return nil, ErrInvalidStatus
	}
}

// LapsePastPending rejects Pending appointments whose preferred date is
// before today. Each one is re-read under its date lock so an approval that
// lands first is never overwritten.
func (s *Service) LapsePastPending(ctx context.Context, today time.Time) (int, error) {
	cutoff := today.Format(DateLayout)

	pending := StatusPending
	candidates, err := s.ListAppointments(ctx, &pending)
	if err != nil {
		return 0, fmt.Errorf("find lapsed appointments: %w", err)
	}

	lapsed := 0
	for _, appt := range candidates {
		if appt.PreferredDate >= cutoff {
			continue
		}

		err := s.locker.WithDateLock(ctx, appt.PreferredDate, func(lockCtx context.Context) error {
			current, err := s.repo.GetByID(lockCtx, appt.ID)
			if err != nil {
				return err
			}
			if current.Status != StatusPending {
				return nil
			}
			if _, err := s.repo.UpdateStatusAndSlot(lockCtx, appt.ID, StatusRejected, nil); err != nil {
				return err
			}
			lapsed++
			s.recorder.ObserveTransition(OutcomeLapsed)
			s.logEvent(lockCtx, appt.ID, EventAppointmentLapsed, map[string]any{
				"preferred_date": appt.PreferredDate,
			})
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return lapsed, ctx.Err()
			}
			s.logger.Warn("failed to lapse appointment",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
		}
	}

	return lapsed, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	rec, ok := s.repo.(eventRecorder)
	if !ok {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now().UTC(),
	}

	if err := rec.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}
