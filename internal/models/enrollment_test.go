package models

import (
	"testing"
	"time"

	"github.com/julianstephens/habitrun/internal/constants"
)

func TestEnrollment_Status(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name       string
		enrollment Enrollment
		want       constants.EnrollmentStatus
	}{
		{
			name:       "zero value",
			enrollment: Enrollment{},
			want:       constants.StatusNotStarted,
		},
		{
			name:       "active",
			enrollment: Enrollment{ID: "e1", IsActive: true},
			want:       constants.StatusActive,
		},
		{
			name:       "completed",
			enrollment: Enrollment{ID: "e1", IsCompleted: true, CompletedAt: &now},
			want:       constants.StatusCompleted,
		},
		{
			name:       "stopped",
			enrollment: Enrollment{ID: "e1"},
			want:       constants.StatusAbandoned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.enrollment.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnrollment_FindRecord(t *testing.T) {
	e := Enrollment{
		CompletedDays: []CompletionRecord{
			{Day: 1, TaskID: "t1"},
			{Day: 1, TaskID: "t2"},
			{Day: 2},
		},
	}

	if got := e.FindRecord(1, "t2"); got != 1 {
		t.Errorf("FindRecord(1, t2) = %d, want 1", got)
	}
	if got := e.FindRecord(2, ""); got != 2 {
		t.Errorf("FindRecord(2, \"\") = %d, want 2", got)
	}
	if got := e.FindRecord(2, "t1"); got != -1 {
		t.Errorf("FindRecord(2, t1) = %d, want -1", got)
	}
	if got := len(e.RecordsForDay(1)); got != 2 {
		t.Errorf("RecordsForDay(1) returned %d records, want 2", got)
	}
}

func TestEnrollment_CloneIsDeep(t *testing.T) {
	rating := 4
	completedAt := time.Now()
	orig := Enrollment{
		ID:          "e1",
		CompletedAt: &completedAt,
		CompletedDays: []CompletionRecord{
			{Day: 1, TaskID: "t1", Rating: &rating},
		},
	}

	c := orig.Clone()
	*c.CompletedDays[0].Rating = 1
	c.CompletedDays[0].Notes = "changed"
	*c.CompletedAt = completedAt.Add(time.Hour)

	if *orig.CompletedDays[0].Rating != 4 {
		t.Error("mutating clone rating changed the original")
	}
	if orig.CompletedDays[0].Notes != "" {
		t.Error("mutating clone notes changed the original")
	}
	if !orig.CompletedAt.Equal(completedAt) {
		t.Error("mutating clone completed_at changed the original")
	}
}
