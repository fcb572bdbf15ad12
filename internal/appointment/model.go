package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent Role = "Student"
	RoleParent  Role = "Parent"
	RoleVisitor Role = "Visitor"
	RoleStaff   Role = "Staff"
	RoleOther   Role = "Other"
)

var Roles = []Role{RoleStudent, RoleParent, RoleVisitor, RoleStaff, RoleOther}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// ParseStatus accepts only the three lifecycle states, case-sensitive as on the wire.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

// TimeSlot is one of the sixteen half-hour labels a day is divided into.
type TimeSlot string

var TimeSlots = []TimeSlot{
	"09:00 AM", "09:30 AM", "10:00 AM", "10:30 AM",
	"11:00 AM", "11:30 AM", "12:00 PM", "12:30 PM",
	"01:00 PM", "01:30 PM", "02:00 PM", "02:30 PM",
	"03:00 PM", "03:30 PM", "04:00 PM", "04:30 PM",
}

// ParseTimeSlot returns ErrInvalidSlot for anything outside TimeSlots.
func ParseTimeSlot(s string) (TimeSlot, error) {
	for _, slot := range TimeSlots {
		if string(slot) == s {
			return slot, nil
		}
	}
	return "", ErrInvalidSlot
}

// DateLayout is the form preferred dates are stored and compared in.
const DateLayout = "2006-01-02"

type Appointment struct {
	ID            uuid.UUID
	Name          string
	Role          Role
	Email         string
	Phone         string
	MeetingReason string
	PreferredDate string
	Status        Status
	TimeSlot      *TimeSlot
	CreatedAt     time.Time
}

// NewAppointment carries the submitted fields; everything else is assigned by the repository.
type NewAppointment struct {
	Name          string `validate:"required,min=2"`
	Role          Role   `validate:"required,role"`
	Email         string `validate:"required,email"`
	Phone         string `validate:"required,min=10"`
	MeetingReason string `validate:"required,min=10"`
	PreferredDate string `validate:"required,datetime=2006-01-02"`
}

type BookedSlot struct {
	Date     string
	TimeSlot TimeSlot
}

type ScheduleEntry struct {
	TimeSlot    TimeSlot
	Appointment *Appointment
}

func (e ScheduleEntry) Booked() bool {
	return e.Appointment != nil
}

type Schedule struct {
	Date    string
	Entries []ScheduleEntry
}

func (s Schedule) Free() int {
	free := 0
	for _, e := range s.Entries {
		if !e.Booked() {
			free++
		}
	}
	return free
}

type Admin struct {
	ID           uuid.UUID
	Username     string
	PasswordHash []byte
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

func slotPtr(s TimeSlot) *TimeSlot {
	return &s
}
