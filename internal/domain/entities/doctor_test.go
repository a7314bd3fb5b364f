package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDoctorAvailableAt(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	weekdays := WorkingHours{
		"monday":    {Start: "09:00", End: "17:00"},
		"wednesday": {Start: "10:00", End: "14:00"},
	}

	// 2026-01-05 is a Monday
	monday := func(hour, min int) time.Time {
		return time.Date(2026, 1, 5, hour, min, 0, 0, lagos)
	}

	tests := []struct {
		name  string
		hours WorkingHours
		at    time.Time
		want  bool
	}{
		{"no template means always available", nil, monday(3, 0), true},
		{"empty template means always available", WorkingHours{}, monday(3, 0), true},
		{"inside working hours", weekdays, monday(10, 30), true},
		{"exactly at start", weekdays, monday(9, 0), true},
		{"exactly at end", weekdays, monday(17, 0), true},
		{"before start", weekdays, monday(8, 59), false},
		{"after end", weekdays, monday(17, 1), false},
		{"weekday absent from template", weekdays, monday(10, 0).AddDate(0, 0, 1), false}, // tuesday
		{"wednesday window applies", weekdays, monday(11, 0).AddDate(0, 0, 2), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doctor := &Doctor{Name: "Dr. Test", WorkingHours: tt.hours, Active: true}
			assert.Equal(t, tt.want, doctor.AvailableAt(tt.at, lagos))
		})
	}
}

func TestDoctorAvailableAtConvertsTimezone(t *testing.T) {
	lagos, _ := time.LoadLocation("Africa/Lagos")

	doctor := &Doctor{
		WorkingHours: WorkingHours{"monday": {Start: "09:00", End: "17:00"}},
	}

	// 08:30 UTC on Monday is 09:30 in Lagos (UTC+1)
	utcMorning := time.Date(2026, 1, 5, 8, 30, 0, 0, time.UTC)
	assert.True(t, doctor.AvailableAt(utcMorning, lagos))

	// 16:30 UTC is 17:30 in Lagos, past closing
	utcEvening := time.Date(2026, 1, 5, 16, 30, 0, 0, time.UTC)
	assert.False(t, doctor.AvailableAt(utcEvening, lagos))
}

func TestDoctorDisplayName(t *testing.T) {
	assert.Equal(t, "Dr. Amina Yusuf - Pediatrics", (&Doctor{Name: "Dr. Amina Yusuf", Specialization: "Pediatrics"}).DisplayName())
	assert.Equal(t, "Dr. Amina Yusuf", (&Doctor{Name: "Dr. Amina Yusuf"}).DisplayName())
}
