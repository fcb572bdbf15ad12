package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRecord struct {
	appt Appointment
	seq  uint64
}

// MemoryRepository keeps appointments for the lifetime of the process.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*memRecord
	seq     uint64
	events  []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[uuid.UUID]*memRecord)}
}

func (r *MemoryRepository) Create(ctx context.Context, in NewAppointment, createdAt time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	for r.records[id] != nil {
		id = uuid.New()
	}
	r.seq++

	rec := &memRecord{
		appt: Appointment{
			ID:            id,
			Name:          in.Name,
			Role:          in.Role,
			Email:         in.Email,
			Phone:         in.Phone,
			MeetingReason: in.MeetingReason,
			PreferredDate: in.PreferredDate,
			Status:        StatusPending,
			CreatedAt:     createdAt,
		},
		seq: r.seq,
	}
	r.records[id] = rec

	out := cloneAppointment(rec.appt)
	return &out, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]Appointment, error) {
	return r.collect(func(*Appointment) bool { return true }), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := cloneAppointment(rec.appt)
	return &out, nil
}

func (r *MemoryRepository) ListByEmail(ctx context.Context, email string) ([]Appointment, error) {
	return r.collect(func(a *Appointment) bool {
		return strings.EqualFold(a.Email, email)
	}), nil
}

func (r *MemoryRepository) UpdateStatusAndSlot(ctx context.Context, id uuid.UUID, status Status, slot *TimeSlot) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	rec.appt.Status = status
	rec.appt.TimeSlot = nil
	if slot != nil {
		rec.appt.TimeSlot = slotPtr(*slot)
	}

	out := cloneAppointment(rec.appt)
	return &out, nil
}

func (r *MemoryRepository) BookedSlots(ctx context.Context, date string) ([]BookedSlot, error) {
	return r.booked(func(a *Appointment) bool { return a.PreferredDate == date }), nil
}

func (r *MemoryRepository) AllBookedSlots(ctx context.Context) ([]BookedSlot, error) {
	return r.booked(func(*Appointment) bool { return true }), nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded event log in insertion order.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) collect(match func(*Appointment) bool) []Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := make([]*memRecord, 0, len(r.records))
	for _, rec := range r.records {
		if match(&rec.appt) {
			recs = append(recs, rec)
		}
	}

	// newest first; insertion sequence settles equal timestamps
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].appt.CreatedAt.Equal(recs[j].appt.CreatedAt) {
			return recs[i].appt.CreatedAt.After(recs[j].appt.CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})

	out := make([]Appointment, 0, len(recs))
	for _, rec := range recs {
		out = append(out, cloneAppointment(rec.appt))
	}
	return out
}

func (r *MemoryRepository) booked(match func(*Appointment) bool) []BookedSlot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []BookedSlot
	for _, rec := range r.records {
		a := &rec.appt
		if a.Status != StatusApproved || a.TimeSlot == nil || !match(a) {
			continue
		}
		out = append(out, BookedSlot{Date: a.PreferredDate, TimeSlot: *a.TimeSlot})
	}
	return out
}

func cloneAppointment(a Appointment) Appointment {
	if a.TimeSlot != nil {
		a.TimeSlot = slotPtr(*a.TimeSlot)
	}
	return a
}
