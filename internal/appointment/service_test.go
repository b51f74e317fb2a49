package appointment

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

func newTestService(t *testing.T) (*Service, *Store) {
	t.Helper()
	s := newTestStore(t, newFakeSlot())
	return NewService(s, testDirectory(), nil, discardLogger()), s
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T (%v), want *ValidationError", err, err)
	}
	return vErr.Fields
}

func TestServiceCreate_RequiredFields(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.Create(context.Background(), Input{Date: "2024-06-01"})
	got := validationFields(t, err)
	want := map[string]string{
		FieldPatientID: "Please select a patient",
		FieldDoctorID:  "Please select a doctor",
		FieldTime:      "Please select a time",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	if store.Len() != 0 {
		t.Fatalf("invalid input must not be stored")
	}
}

func TestServiceCreate_FormatAndReferenceChecks(t *testing.T) {
	svc, _ := newTestService(t)
	zero := 0

	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{name: "unpadded time", in: Input{PatientID: "1", DoctorID: "1", Date: "2024-06-01", Time: "9:00"}, field: FieldTime},
		{name: "bad date", in: Input{PatientID: "1", DoctorID: "1", Date: "2024/06/01", Time: "09:00"}, field: FieldDate},
		{name: "impossible date", in: Input{PatientID: "1", DoctorID: "1", Date: "2024-02-30", Time: "09:00"}, field: FieldDate},
		{name: "missing date", in: Input{PatientID: "1", DoctorID: "1", Time: "09:00"}, field: FieldDate},
		{name: "unknown patient", in: Input{PatientID: "99", DoctorID: "1", Date: "2024-06-01", Time: "09:00"}, field: FieldPatientID},
		{name: "unknown doctor", in: Input{PatientID: "1", DoctorID: "99", Date: "2024-06-01", Time: "09:00"}, field: FieldDoctorID},
		{name: "zero duration", in: Input{PatientID: "1", DoctorID: "1", Date: "2024-06-01", Time: "09:00", Duration: &zero}, field: FieldDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			fields := validationFields(t, err)
			if _, ok := fields[tt.field]; !ok || len(fields) != 1 {
				t.Fatalf("fields = %v, want only %q", fields, tt.field)
			}
		})
	}
}

func TestServiceCreate_RejectsDoubleBooking(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, Input{PatientID: "1", DoctorID: "2", Date: "2024-06-01", Time: "09:00"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err := svc.Create(ctx, Input{PatientID: "3", DoctorID: "2", Date: "2024-06-01", Time: "09:00"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || !vErr.Conflict() {
		t.Fatalf("error = %v, want conflict", err)
	}
	if msg := vErr.Fields[FieldTime]; msg != "Dr. Maria Rodriguez already has an appointment at this time" {
		t.Fatalf("message = %q", msg)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}

	// A different doctor may take the same slot.
	if _, err := svc.Create(ctx, Input{PatientID: "3", DoctorID: "3", Date: "2024-06-01", Time: "09:00"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestConflictMessage_AddsTitleOnlyWhenMissing(t *testing.T) {
	if got := conflictMessage(Doctor{Name: "Susan Chen"}); got != "Dr. Susan Chen already has an appointment at this time" {
		t.Fatalf("message = %q", got)
	}
	if got := conflictMessage(Doctor{Name: "Dr. Sanjana"}); got != "Dr. Sanjana already has an appointment at this time" {
		t.Fatalf("message = %q", got)
	}
}

func TestServiceUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, Input{PatientID: "1", DoctorID: "1", Date: "2024-06-01", Time: "09:00", Notes: "checkup"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	b, err := svc.Create(ctx, Input{PatientID: "2", DoctorID: "1", Date: "2024-06-01", Time: "10:00"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	t.Run("keeping its own slot is not a conflict", func(t *testing.T) {
		got, err := svc.Update(ctx, a.ID, Input{PatientID: "1", DoctorID: "1", Date: "2024-06-01", Time: "09:00", Notes: "follow-up"})
		if err != nil {
			t.Fatalf("Update error: %v", err)
		}
		if got.Notes != "follow-up" || got.ID != a.ID {
			t.Fatalf("updated = %+v", got)
		}
	})

	t.Run("moving onto another booking conflicts", func(t *testing.T) {
		_, err := svc.Update(ctx, a.ID, Input{PatientID: "1", DoctorID: "1", Date: "2024-06-01", Time: "10:00"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || !vErr.Conflict() {
			t.Fatalf("error = %v, want conflict", err)
		}
		if got, _ := svc.Get(b.ID); got.PatientID != "2" {
			t.Fatalf("conflicting appointment changed: %+v", got)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.Update(ctx, "missing", Input{PatientID: "1", DoctorID: "1", Date: "2024-06-01", Time: "11:00"})
		if !errors.Is(err, ErrAppointmentNotFound) {
			t.Fatalf("error = %v, want %v", err, ErrAppointmentNotFound)
		}
	})
}

func TestService_Scenario(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, Input{PatientID: "1", DoctorID: "1", Date: "2024-06-01", Time: "09:00"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
	day, err := svc.ListByDate("2024-06-01")
	if err != nil {
		t.Fatalf("ListByDate error: %v", err)
	}
	if len(day) != 1 || day[0].Time != "09:00" {
		t.Fatalf("day = %+v", day)
	}

	if err := store.Update(ctx, created.ID, AppointmentPatch{Time: strPtr("10:00")}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	got, err := svc.Get(created.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Time != "10:00" {
		t.Fatalf("time = %q, want 10:00", got.Time)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := svc.Get(created.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("Get after delete error = %v, want %v", err, ErrAppointmentNotFound)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("second Delete error: %v", err)
	}
}

func TestServiceCreate_ConcurrentSameSlotBooksOnce(t *testing.T) {
	svc, store := newTestService(t)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), Input{PatientID: "1", DoctorID: "1", Date: "2024-06-01", Time: "09:00"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		var vErr *ValidationError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &vErr) && vErr.Conflict():
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != workers-1 || store.Len() != 1 {
		t.Fatalf("ok=%d conflicts=%d stored=%d", ok, conflicts, store.Len())
	}
}

type fakeLocker struct {
	withSlotLockFn func(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

func (f *fakeLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if f.withSlotLockFn == nil {
		panic("WithSlotLock not configured")
	}
	return f.withSlotLockFn(ctx, key, fn)
}

func TestServiceCreate_UsesBookingKeyAndPropagatesLockErrors(t *testing.T) {
	store := newTestStore(t, newFakeSlot())
	var gotKey string
	svc := NewService(store, testDirectory(), &fakeLocker{
		withSlotLockFn: func(ctx context.Context, key string, fn func(ctx context.Context) error) error {
			gotKey = key
			return ErrSlotBeingBooked
		},
	}, discardLogger())

	_, err := svc.Create(context.Background(), Input{PatientID: "1", DoctorID: "2", Date: "2024-06-01", Time: "09:00"})
	if !errors.Is(err, ErrSlotBeingBooked) {
		t.Fatalf("error = %v, want %v", err, ErrSlotBeingBooked)
	}
	if gotKey != "2:2024-06-01:09:00" {
		t.Fatalf("lock key = %q", gotKey)
	}
	if store.Len() != 0 {
		t.Fatalf("nothing should be stored when the lock is busy")
	}
}

func TestServiceListByRangeAndMonthValidation(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.ListByRange("2024-06-10", "2024-06-01"); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	if _, err := svc.ListByDate("June 1"); err == nil {
		t.Fatalf("expected error for malformed date")
	}
	if _, err := svc.Month(2024, 13); err == nil {
		t.Fatalf("expected error for month 13")
	}
	if _, err := svc.Stats("2024-6-1"); err == nil {
		t.Fatalf("expected error for unpadded date")
	}
}

func TestTimeSlots(t *testing.T) {
	slots := TimeSlots()
	if len(slots) != 20 {
		t.Fatalf("len = %d, want 20", len(slots))
	}
	if slots[0] != "08:00" || slots[1] != "08:30" || slots[len(slots)-1] != "17:30" {
		t.Fatalf("slots = %v", slots)
	}
}

func TestLocalLocker_CancelledContextSkipsFn(t *testing.T) {
	l := NewLocalLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := l.WithSlotLock(ctx, "1:2024-06-01:09:00", func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want %v", err, context.Canceled)
	}
	if called {
		t.Fatalf("fn must not run with a cancelled context")
	}
	if n := len(l.(*localLocker).locks); n != 0 {
		t.Fatalf("locks left behind = %d", n)
	}
}
