package appointment

import (
	"context"
	"sort"
)

// SlotSet is the set of labels taken on one date.
type SlotSet map[TimeSlot]struct{}

func (s SlotSet) Has(slot TimeSlot) bool {
	_, ok := s[slot]
	return ok
}

// SlotIndex projects booked slots out of a Repository. It is recomputed on
// every call and holds no state of its own.
type SlotIndex struct {
	repo Repository
}

func NewSlotIndex(repo Repository) *SlotIndex {
	return &SlotIndex{repo: repo}
}

// BookedSlots returns the slots held by Approved appointments on date.
func (x *SlotIndex) BookedSlots(ctx context.Context, date string) (SlotSet, error) {
	var booked []BookedSlot
	if q, ok := x.repo.(bookedSlotQuerier); ok {
		var err error
		booked, err = q.BookedSlots(ctx, date)
		if err != nil {
			return nil, err
		}
	} else {
		all, err := x.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		booked = scanBooked(all, func(a *Appointment) bool { return a.PreferredDate == date })
	}

	set := make(SlotSet, len(booked))
	for _, b := range booked {
		set[b.TimeSlot] = struct{}{}
	}
	return set, nil
}

// AllBookedSlots returns every booked (date, slot) pair ordered by date, then
// by position of the slot in the day.
func (x *SlotIndex) AllBookedSlots(ctx context.Context) ([]BookedSlot, error) {
	var booked []BookedSlot
	if q, ok := x.repo.(bookedSlotQuerier); ok {
		var err error
		booked, err = q.AllBookedSlots(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		all, err := x.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		booked = scanBooked(all, func(*Appointment) bool { return true })
	}

	sort.Slice(booked, func(i, j int) bool {
		if booked[i].Date != booked[j].Date {
			return booked[i].Date < booked[j].Date
		}
		return slotOrder(booked[i].TimeSlot) < slotOrder(booked[j].TimeSlot)
	})
	if booked == nil {
		booked = []BookedSlot{}
	}
	return booked, nil
}

// Available returns the labels not in booked, in day order.
func (s SlotSet) Available() []TimeSlot {
	out := make([]TimeSlot, 0, len(TimeSlots))
	for _, slot := range TimeSlots {
		if !s.Has(slot) {
			out = append(out, slot)
		}
	}
	return out
}

func scanBooked(all []Appointment, match func(*Appointment) bool) []BookedSlot {
	var out []BookedSlot
	for i := range all {
		a := &all[i]
		if a.Status == StatusApproved && a.TimeSlot != nil && match(a) {
			out = append(out, BookedSlot{Date: a.PreferredDate, TimeSlot: *a.TimeSlot})
		}
	}
	return out
}

func slotOrder(slot TimeSlot) int {
	for i, s := range TimeSlots {
		if s == slot {
			return i
		}
	}
	return len(TimeSlots)
}
