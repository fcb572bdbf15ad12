package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dean-appointment-requests/internal/appointment"
)

type CreateAppointmentRequest struct {
	Name          string `json:"name"`
	Role          string `json:"role"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	MeetingReason string `json:"meetingReason"`
	PreferredDate string `json:"preferredDate"`
}

type UpdateAppointmentRequest struct {
	Status   string  `json:"status"`
	TimeSlot *string `json:"timeSlot"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	MeetingReason string    `json:"meetingReason"`
	PreferredDate string    `json:"preferredDate"`
	Status        string    `json:"status"`
	TimeSlot      *string   `json:"timeSlot"`
	CreatedAt     time.Time `json:"createdAt"`
}

type SearchResponse struct {
	Found        bool                  `json:"found"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type BookedSlotResponse struct {
	Date     string `json:"date"`
	TimeSlot string `json:"timeSlot"`
}

type AvailableSlotsResponse struct {
	Date      string   `json:"date"`
	TimeSlots []string `json:"timeSlots"`
}

type ScheduleEntryResponse struct {
	TimeSlot    string               `json:"timeSlot"`
	Booked      bool                 `json:"booked"`
	Appointment *AppointmentResponse `json:"appointment,omitempty"`
}

type ScheduleResponse struct {
	Date  string                  `json:"date"`
	Free  int                     `json:"free"`
	Slots []ScheduleEntryResponse `json:"slots"`
}

type AdminResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type LoginResponse struct {
	Success bool          `json:"success"`
	Admin   AdminResponse `json:"admin"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:            a.ID,
		Name:          a.Name,
		Role:          string(a.Role),
		Email:         a.Email,
		Phone:         a.Phone,
		MeetingReason: a.MeetingReason,
		PreferredDate: a.PreferredDate,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt,
	}
	if a.TimeSlot != nil {
		slot := string(*a.TimeSlot)
		resp.TimeSlot = &slot
	}
	return resp
}

func toAppointmentList(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	return out
}

func toBookedSlotList(slots []appointment.BookedSlot) []BookedSlotResponse {
	out := make([]BookedSlotResponse, 0, len(slots))
	for _, b := range slots {
		out = append(out, BookedSlotResponse{Date: b.Date, TimeSlot: string(b.TimeSlot)})
	}
	return out
}

func toScheduleResponse(s *appointment.Schedule) ScheduleResponse {
	resp := ScheduleResponse{
		Date:  s.Date,
		Free:  s.Free(),
		Slots: make([]ScheduleEntryResponse, 0, len(s.Entries)),
	}
	for _, e := range s.Entries {
		entry := ScheduleEntryResponse{TimeSlot: string(e.TimeSlot), Booked: e.Booked()}
		if e.Appointment != nil {
			a := toAppointmentResponse(e.Appointment)
			entry.Appointment = &a
		}
		resp.Slots = append(resp.Slots, entry)
	}
	return resp
}
