package appointment

import "testing"

func TestValidatorHasConflict(t *testing.T) {
	s := newTestStore(t, newFakeSlot())
	v := NewValidator(NewQuery(s, testDirectory()))

	existing := mustAdd(t, s, AppointmentCreate{PatientID: "1", DoctorID: "1", Date: "2024-06-01", Time: "09:00"})
	mustAdd(t, s, AppointmentCreate{PatientID: "1", DoctorID: "404", Date: "2024-06-01", Time: "11:00"})

	tests := []struct {
		name      string
		doctorID  string
		date      string
		time      string
		excludeID string
		want      bool
	}{
		{name: "same doctor date and time", doctorID: "1", date: "2024-06-01", time: "09:00", want: true},
		{name: "different time", doctorID: "1", date: "2024-06-01", time: "09:30", want: false},
		{name: "excluding the booked appointment", doctorID: "1", date: "2024-06-01", time: "09:00", excludeID: existing.ID, want: false},
		{name: "excluding some other id", doctorID: "1", date: "2024-06-01", time: "09:00", excludeID: "other", want: true},
		{name: "different doctor", doctorID: "2", date: "2024-06-01", time: "09:00", want: false},
		{name: "different date", doctorID: "1", date: "2024-06-02", time: "09:00", want: false},
		{name: "dangling records never conflict", doctorID: "404", date: "2024-06-01", time: "11:00", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.HasConflict(tt.doctorID, tt.date, tt.time, tt.excludeID); got != tt.want {
				t.Fatalf("HasConflict = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidatorFindConflict_ReturnsMatchedEntry(t *testing.T) {
	s := newTestStore(t, newFakeSlot())
	v := NewValidator(NewQuery(s, testDirectory()))

	existing := mustAdd(t, s, AppointmentCreate{PatientID: "3", DoctorID: "2", Date: "2024-06-01", Time: "09:00"})

	got, ok := v.FindConflict("2", "2024-06-01", "09:00", "")
	if !ok {
		t.Fatalf("expected a conflict")
	}
	if got.ID != existing.ID || got.Doctor.Name != "Dr. Maria Rodriguez" {
		t.Fatalf("conflict = %+v", got)
	}
}
