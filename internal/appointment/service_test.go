package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/dean-appointment-requests/internal/lock"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) ObserveTransition(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func (r *countingRecorder) count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[outcome]
}

func newTestService(t *testing.T) (*Service, *MemoryRepository, *countingRecorder) {
	t.Helper()
	repo := NewMemoryRepository()
	rec := &countingRecorder{}
	svc := NewService(repo, lock.NewLocal(), WithClock(newStepClock().Now), WithRecorder(rec))
	return svc, repo, rec
}

func validRequest(date string) NewAppointment {
	return NewAppointment{
		Name:          gofakeit.Name(),
		Role:          RoleStudent,
		Email:         gofakeit.Email(),
		Phone:         "5551234567",
		MeetingReason: "Discuss course registration options",
		PreferredDate: date,
	}
}

func mustCreate(t *testing.T, svc *Service, date string) *Appointment {
	t.Helper()
	appt, err := svc.CreateAppointment(context.Background(), validRequest(date))
	require.NoError(t, err)
	return appt
}

// assertSlotInvariants checks slot-iff-approved and one approval per (date, slot).
func assertSlotInvariants(t *testing.T, repo *MemoryRepository) {
	t.Helper()
	all, err := repo.List(context.Background())
	require.NoError(t, err)

	seen := make(map[BookedSlot]uuid.UUID)
	for _, a := range all {
		assert.Equal(t, a.Status == StatusApproved, a.TimeSlot != nil, "appointment %s: status %s slot %v", a.ID, a.Status, a.TimeSlot)
		if a.Status != StatusApproved {
			continue
		}
		key := BookedSlot{Date: a.PreferredDate, TimeSlot: *a.TimeSlot}
		if other, dup := seen[key]; dup {
			t.Errorf("slot %s on %s held by %s and %s", key.TimeSlot, key.Date, other, a.ID)
		}
		seen[key] = a.ID
	}
}

func TestCreateAppointmentStartsPending(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	in := validRequest("2025-06-10")
	appt, err := svc.CreateAppointment(ctx, in)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.Equal(t, StatusPending, appt.Status)
	assert.Nil(t, appt.TimeSlot)
	assert.False(t, appt.CreatedAt.IsZero())
	assert.Equal(t, 1, rec.count(OutcomeCreated))

	got, err := svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.Role, got.Role)
	assert.Equal(t, in.Email, got.Email)
	assert.Equal(t, in.Phone, got.Phone)
	assert.Equal(t, in.MeetingReason, got.MeetingReason)
	assert.Equal(t, in.PreferredDate, got.PreferredDate)
	assert.Equal(t, appt, got)
}

func TestCreateAppointmentAssignsUniqueIDs(t *testing.T) {
	svc, _, _ := newTestService(t)

	ids := make(map[uuid.UUID]bool)
	for i := 0; i < 100; i++ {
		appt := mustCreate(t, svc, "2025-06-10")
		require.False(t, ids[appt.ID], "duplicate id %s", appt.ID)
		ids[appt.ID] = true
	}
}

func TestCreateAppointmentRejectsInvalidInput(t *testing.T) {
	svc, repo, _ := newTestService(t)

	in := validRequest("2025-06-10")
	in.Phone = "123"

	_, err := svc.CreateAppointment(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Phone", verr.Field)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestApproveConflictOnSameDateAndSlot(t *testing.T) {
	svc, repo, rec := newTestService(t)
	ctx := context.Background()

	first := mustCreate(t, svc, "2025-06-10")
	approved, err := svc.Approve(ctx, first.ID, "09:00 AM")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.TimeSlot)
	assert.Equal(t, TimeSlot("09:00 AM"), *approved.TimeSlot)

	second := mustCreate(t, svc, "2025-06-10")
	_, err = svc.Approve(ctx, second.ID, "09:00 AM")
	require.ErrorIs(t, err, ErrSlotConflict)

	unchanged, err := svc.GetAppointment(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, unchanged.Status)
	assert.Nil(t, unchanged.TimeSlot)

	approved, err = svc.Approve(ctx, second.ID, "09:30 AM")
	require.NoError(t, err)
	assert.Equal(t, TimeSlot("09:30 AM"), *approved.TimeSlot)

	assert.Equal(t, 2, rec.count(OutcomeApproved))
	assert.Equal(t, 1, rec.count(OutcomeConflict))
	assertSlotInvariants(t, repo)
}

func TestApproveSameSlotOnDifferentDates(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "2025-06-10")
	b := mustCreate(t, svc, "2025-06-11")

	_, err := svc.Approve(ctx, a.ID, "10:00 AM")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, b.ID, "10:00 AM")
	require.NoError(t, err)

	assertSlotInvariants(t, repo)
}

func TestApproveInvalidSlot(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	appt := mustCreate(t, svc, "2025-06-10")

	for _, slot := range []TimeSlot{"05:00 PM", "", "9:00 AM", "09:00 am"} {
		_, err := svc.Approve(ctx, appt.ID, slot)
		require.ErrorIs(t, err, ErrInvalidSlot, "slot %q", slot)
	}

	got, err := svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.TimeSlot)
	assert.Equal(t, 4, rec.count(OutcomeInvalidSlot))
}

func TestApproveUnknownIDChecksExistenceFirst(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Approve(context.Background(), uuid.New(), "05:00 PM")
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestRejectClearsSlotAndFreesIt(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	pending := mustCreate(t, svc, "2025-06-10")
	rejected, err := svc.Reject(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Nil(t, rejected.TimeSlot)

	booked, err := svc.BookedSlots(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.Empty(t, booked)

	// rejecting an approved appointment releases its slot
	holder := mustCreate(t, svc, "2025-06-10")
	_, err = svc.Approve(ctx, holder.ID, "11:00 AM")
	require.NoError(t, err)
	_, err = svc.Reject(ctx, holder.ID)
	require.NoError(t, err)

	next := mustCreate(t, svc, "2025-06-10")
	_, err = svc.Approve(ctx, next.ID, "11:00 AM")
	require.NoError(t, err)

	assertSlotInvariants(t, repo)
}

func TestRejectUnknownIDLeavesRepositoryUnchanged(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, "2025-06-10")
	before, err := svc.ListAppointments(ctx, nil)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, uuid.New())
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = svc.UpdateStatus(ctx, uuid.New(), StatusApproved, slotPtr("09:00 AM"))
	require.ErrorIs(t, err, ErrAppointmentNotFound)

	after, err := svc.ListAppointments(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReapproveMovesSlot(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	appt := mustCreate(t, svc, "2025-06-10")
	_, err := svc.Approve(ctx, appt.ID, "01:00 PM")
	require.NoError(t, err)

	// re-approving with the slot it already holds is a conflict
	_, err = svc.Approve(ctx, appt.ID, "01:00 PM")
	require.ErrorIs(t, err, ErrSlotConflict)

	moved, err := svc.Approve(ctx, appt.ID, "02:00 PM")
	require.NoError(t, err)
	assert.Equal(t, TimeSlot("02:00 PM"), *moved.TimeSlot)

	booked, err := svc.BookedSlots(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, []BookedSlot{{Date: "2025-06-10", TimeSlot: "02:00 PM"}}, booked)

	assertSlotInvariants(t, repo)
}

func TestUpdateStatusDispatch(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	appt := mustCreate(t, svc, "2025-06-10")

	_, err := svc.UpdateStatus(ctx, appt.ID, StatusApproved, nil)
	require.ErrorIs(t, err, ErrInvalidSlot)

	_, err = svc.UpdateStatus(ctx, appt.ID, StatusPending, nil)
	require.ErrorIs(t, err, ErrInvalidStatus)

	got, err := svc.UpdateStatus(ctx, appt.ID, StatusApproved, slotPtr("03:00 PM"))
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)

	// a slot sent along with a rejection is dropped
	got, err = svc.UpdateStatus(ctx, appt.ID, StatusRejected, slotPtr("03:00 PM"))
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)
	assert.Nil(t, got.TimeSlot)

	assertSlotInvariants(t, repo)
}

func TestFindByEmailIsCaseInsensitive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	in := validRequest("2025-06-10")
	in.Email = "jane@x.com"
	older, err := svc.CreateAppointment(ctx, in)
	require.NoError(t, err)
	newer, err := svc.CreateAppointment(ctx, in)
	require.NoError(t, err)
	mustCreate(t, svc, "2025-06-10")

	found, err := svc.FindByEmail(ctx, "Jane@X.com")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, newer.ID, found[0].ID)
	assert.Equal(t, older.ID, found[1].ID)

	none, err := svc.FindByEmail(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListAppointmentsNewestFirstWithFilter(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "2025-06-10")
	b := mustCreate(t, svc, "2025-06-11")
	c := mustCreate(t, svc, "2025-06-12")
	_, err := svc.Approve(ctx, b.ID, "09:00 AM")
	require.NoError(t, err)

	all, err := svc.ListAppointments(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{c.ID, b.ID, a.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	pending := StatusPending
	onlyPending, err := svc.ListAppointments(ctx, &pending)
	require.NoError(t, err)
	require.Len(t, onlyPending, 2)
	assert.Equal(t, c.ID, onlyPending[0].ID)
	assert.Equal(t, a.ID, onlyPending[1].ID)
}

func TestAvailableSlotsAndSchedule(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "2025-06-10")
	b := mustCreate(t, svc, "2025-06-10")
	other := mustCreate(t, svc, "2025-06-11")
	_, err := svc.Approve(ctx, a.ID, "09:00 AM")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, b.ID, "04:30 PM")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, other.ID, "10:00 AM")
	require.NoError(t, err)

	avail, err := svc.AvailableSlots(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.Len(t, avail, len(TimeSlots)-2)
	assert.Equal(t, TimeSlot("09:30 AM"), avail[0])
	assert.NotContains(t, avail, TimeSlot("04:30 PM"))

	sched, err := svc.Schedule(ctx, "2025-06-10")
	require.NoError(t, err)
	require.Len(t, sched.Entries, len(TimeSlots))
	assert.Equal(t, len(TimeSlots)-2, sched.Free())
	assert.True(t, sched.Entries[0].Booked())
	assert.Equal(t, a.ID, sched.Entries[0].Appointment.ID)
	assert.Equal(t, b.ID, sched.Entries[15].Appointment.ID)
	assert.False(t, sched.Entries[2].Booked())

	all, err := svc.AllBookedSlots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []BookedSlot{
		{Date: "2025-06-10", TimeSlot: "09:00 AM"},
		{Date: "2025-06-10", TimeSlot: "04:30 PM"},
		{Date: "2025-06-11", TimeSlot: "10:00 AM"},
	}, all)
}

func TestConcurrentApprovalsSameSlotExactlyOneWins(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	const n = 32
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = mustCreate(t, svc, "2025-06-10").ID
	}

	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := svc.Approve(ctx, id, "12:00 PM")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)

	booked, err := svc.BookedSlots(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.Len(t, booked, 1)
	assertSlotInvariants(t, repo)
}

func TestConcurrentMixedOperationsKeepInvariants(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	dates := []string{"2025-06-10", "2025-06-11"}
	var ids []uuid.UUID
	for i := 0; i < 40; i++ {
		ids = append(ids, mustCreate(t, svc, dates[i%2]).ID)
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			slot := TimeSlots[i%4]
			if i%5 == 0 {
				_, _ = svc.Reject(ctx, id)
				return
			}
			_, err := svc.Approve(ctx, id, slot)
			if err != nil && !errors.Is(err, ErrSlotConflict) {
				t.Errorf("approve: %v", err)
			}
		}(i, id)
	}
	wg.Wait()

	assertSlotInvariants(t, repo)
}

func TestLapsePastPending(t *testing.T) {
	svc, repo, rec := newTestService(t)
	ctx := context.Background()

	past := mustCreate(t, svc, "2025-05-30")
	pastApproved := mustCreate(t, svc, "2025-05-30")
	today := mustCreate(t, svc, "2025-06-01")
	future := mustCreate(t, svc, "2025-06-20")
	_, err := svc.Approve(ctx, pastApproved.ID, "09:00 AM")
	require.NoError(t, err)

	n, err := svc.LapsePastPending(ctx, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, rec.count(OutcomeLapsed))

	expect := map[uuid.UUID]Status{
		past.ID:         StatusRejected,
		pastApproved.ID: StatusApproved,
		today.ID:        StatusPending,
		future.ID:       StatusPending,
	}
	for id, status := range expect {
		got, err := svc.GetAppointment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status, "appointment %s", id)
	}
	assertSlotInvariants(t, repo)
}

func TestEventsRecorded(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "2025-06-10")
	_, err := svc.Approve(ctx, a.ID, "09:00 AM")
	require.NoError(t, err)
	_, err = svc.Reject(ctx, a.ID)
	require.NoError(t, err)

	events := repo.Events()
	require.Len(t, events, 3)
	assert.Equal(t, EventAppointmentCreated, events[0].EventType)
	assert.Equal(t, EventAppointmentApproved, events[1].EventType)
	assert.Equal(t, EventAppointmentRejected, events[2].EventType)
	for _, ev := range events {
		require.NotNil(t, ev.AppointmentID)
		assert.Equal(t, a.ID, *ev.AppointmentID)
	}

	var payload map[string]string
	require.NoError(t, json.Unmarshal(events[1].Payload, &payload))
	assert.Equal(t, "09:00 AM", payload["time_slot"])
	assert.Equal(t, "2025-06-10", payload["date"])
}

// scanOnlyRepo hides the booked-slot fast path so SlotIndex falls back to a scan.
type scanOnlyRepo struct {
	Repository
}

func TestSlotIndexFallsBackToScan(t *testing.T) {
	mem := NewMemoryRepository()
	svc := NewService(scanOnlyRepo{mem}, lock.NewLocal())
	ctx := context.Background()

	a := mustCreate(t, svc, "2025-06-10")
	b := mustCreate(t, svc, "2025-06-10")
	_, err := svc.Approve(ctx, a.ID, "09:00 AM")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, b.ID, "09:00 AM")
	require.ErrorIs(t, err, ErrSlotConflict)

	set, err := NewSlotIndex(scanOnlyRepo{mem}).BookedSlots(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.True(t, set.Has("09:00 AM"))
	assert.Len(t, set, 1)

	assert.Empty(t, mem.Events(), "events are only recorded when the repository supports them")
}
