package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		mutate func(*NewAppointment)
		field  string
	}{
		{"valid", func(*NewAppointment) {}, ""},
		{"short name", func(a *NewAppointment) { a.Name = "J" }, "Name"},
		{"unknown role", func(a *NewAppointment) { a.Role = "Dean" }, "Role"},
		{"empty role", func(a *NewAppointment) { a.Role = "" }, "Role"},
		{"lowercase role", func(a *NewAppointment) { a.Role = "student" }, "Role"},
		{"bad email", func(a *NewAppointment) { a.Email = "jane.x.com" }, "Email"},
		{"short phone", func(a *NewAppointment) { a.Phone = "555123456" }, "Phone"},
		{"short reason", func(a *NewAppointment) { a.MeetingReason = "hello" }, "MeetingReason"},
		{"empty date", func(a *NewAppointment) { a.PreferredDate = "" }, "PreferredDate"},
		{"malformed date", func(a *NewAppointment) { a.PreferredDate = "10/06/2025" }, "PreferredDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewAppointment{
				Name:          "Jane Doe",
				Role:          RoleParent,
				Email:         "jane@x.com",
				Phone:         "5551234567",
				MeetingReason: "Discuss course registration",
				PreferredDate: "2025-06-10",
			}
			tt.mutate(&in)

			err := v.Validate(in)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.NotEmpty(t, verr.Message)
		})
	}
}

func TestEnumParsing(t *testing.T) {
	for _, slot := range TimeSlots {
		got, err := ParseTimeSlot(string(slot))
		require.NoError(t, err)
		assert.Equal(t, slot, got)
	}
	assert.Len(t, TimeSlots, 16)

	_, err := ParseTimeSlot("05:00 PM")
	assert.ErrorIs(t, err, ErrInvalidSlot)

	for _, s := range []string{"Pending", "Approved", "Rejected"} {
		_, err := ParseStatus(s)
		assert.NoError(t, err, s)
	}
	_, err = ParseStatus("approved")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	for _, r := range Roles {
		assert.True(t, r.Valid())
	}
	assert.False(t, Role("Dean").Valid())
}
