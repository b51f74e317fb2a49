package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrSlotBeingBooked = errors.New("time slot is currently being booked, please retry")

const (
	FieldPatientID = "patientId"
	FieldDoctorID  = "doctorId"
	FieldDate      = "date"
	FieldTime      = "time"
	FieldDuration  = "duration"
)

const (
	firstSlotHour = 8
	lastSlotHour  = 18
	slotStep      = 30 * time.Minute
)

// ValidationError maps form field names to the message shown next to them.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid appointment: " + strings.Join(parts, "; ")
}

// Conflict reports whether the error carries a double-booking message.
func (e *ValidationError) Conflict() bool {
	return strings.HasSuffix(e.Fields[FieldTime], conflictSuffix)
}

const conflictSuffix = "already has an appointment at this time"

// Locker serializes the validate-then-write sequence for one booking key.
type Locker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Input is the appointment form as submitted by staff.
type Input struct {
	PatientID string
	DoctorID  string
	Date      string
	Time      string
	Duration  *int
	Notes     string
}

// Service is the command and query surface used by the presentation layer.
// It runs the form checks and the conflict check before handing writes to
// the Store.
type Service struct {
	store     *Store
	query     *Query
	validator *Validator
	locker    Locker
	log       *slog.Logger
}

func NewService(store *Store, dir Directory, locker Locker, log *slog.Logger) *Service {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if log == nil {
		log = slog.Default()
	}
	q := NewQuery(store, dir)
	return &Service{
		store:     store,
		query:     q,
		validator: NewValidator(q),
		locker:    locker,
		log:       log.With(slog.String("component", "appointment.service")),
	}
}

func (s *Service) Query() *Query { return s.query }

func (s *Service) Validator() *Validator { return s.validator }

// Create validates in and adds it to the store.
func (s *Service) Create(ctx context.Context, in Input) (AppointmentWithDetails, error) {
	in = normalize(in)
	if err := s.checkFields(in); err != nil {
		return AppointmentWithDetails{}, err
	}

	var created Appointment
	err := s.locker.WithSlotLock(ctx, bookingKey(in), func(lockCtx context.Context) error {
		if err := s.checkConflict(in, ""); err != nil {
			return err
		}
		appt, err := s.store.Add(lockCtx, AppointmentCreate{
			PatientID: in.PatientID,
			DoctorID:  in.DoctorID,
			Date:      in.Date,
			Time:      in.Time,
			Duration:  in.Duration,
			Notes:     in.Notes,
		})
		if err != nil {
			return fmt.Errorf("add appointment: %w", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		return AppointmentWithDetails{}, err
	}

	s.log.Info("appointment created",
		slog.String("appointment_id", created.ID),
		slog.String("doctor_id", created.DoctorID),
		slog.String("date", created.Date),
		slog.String("time", created.Time),
	)
	return s.detail(created.ID)
}

// Update validates in against every other appointment and replaces the
// record's fields.
func (s *Service) Update(ctx context.Context, id string, in Input) (AppointmentWithDetails, error) {
	if _, ok := s.store.Get(id); !ok {
		return AppointmentWithDetails{}, ErrAppointmentNotFound
	}
	in = normalize(in)
	if err := s.checkFields(in); err != nil {
		return AppointmentWithDetails{}, err
	}

	err := s.locker.WithSlotLock(ctx, bookingKey(in), func(lockCtx context.Context) error {
		if err := s.checkConflict(in, id); err != nil {
			return err
		}
		patch := AppointmentPatch{
			PatientID: &in.PatientID,
			DoctorID:  &in.DoctorID,
			Date:      &in.Date,
			Time:      &in.Time,
			Duration:  in.Duration,
			Notes:     &in.Notes,
		}
		if err := s.store.Update(lockCtx, id, patch); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return AppointmentWithDetails{}, err
	}

	s.log.Info("appointment updated",
		slog.String("appointment_id", id),
		slog.String("doctor_id", in.DoctorID),
		slog.String("date", in.Date),
		slog.String("time", in.Time),
	)
	return s.detail(id)
}

// Delete removes the appointment. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove appointment: %w", err)
	}
	s.log.Info("appointment deleted", slog.String("appointment_id", id))
	return nil
}

func (s *Service) Get(id string) (AppointmentWithDetails, error) {
	return s.detail(id)
}

func (s *Service) ListByDate(date string) ([]AppointmentWithDetails, error) {
	if !validDate(date) {
		return nil, &ValidationError{Fields: map[string]string{FieldDate: "Date must be in YYYY-MM-DD format"}}
	}
	return s.query.ByDate(date), nil
}

func (s *Service) ListByRange(from, to string) ([]AppointmentWithDetails, error) {
	fields := map[string]string{}
	if !validDate(from) {
		fields["from"] = "Date must be in YYYY-MM-DD format"
	}
	if !validDate(to) {
		fields["to"] = "Date must be in YYYY-MM-DD format"
	}
	if len(fields) == 0 && to < from {
		fields["to"] = "End date must not be before start date"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return s.query.ByRange(from, to), nil
}

func (s *Service) Month(year int, month time.Month) (MonthSummary, error) {
	if month < time.January || month > time.December {
		return MonthSummary{}, &ValidationError{Fields: map[string]string{"month": "Month must be between 1 and 12"}}
	}
	return s.query.ByMonth(year, month), nil
}

func (s *Service) Stats(today string) (Stats, error) {
	if !validDate(today) {
		return Stats{}, &ValidationError{Fields: map[string]string{"today": "Date must be in YYYY-MM-DD format"}}
	}
	return s.query.Stats(today), nil
}

// TimeSlots lists the bookable times of a clinic day.
func TimeSlots() []string {
	start := time.Date(2000, 1, 1, firstSlotHour, 0, 0, 0, time.UTC)
	end := time.Date(2000, 1, 1, lastSlotHour, 0, 0, 0, time.UTC)
	var out []string
	for t := start; t.Before(end); t = t.Add(slotStep) {
		out = append(out, t.Format(TimeLayout))
	}
	return out
}

func (s *Service) detail(id string) (AppointmentWithDetails, error) {
	d, ok := s.query.ByID(id)
	if !ok {
		return AppointmentWithDetails{}, ErrAppointmentNotFound
	}
	return d, nil
}

func (s *Service) checkFields(in Input) error {
	fields := map[string]string{}

	switch {
	case in.PatientID == "":
		fields[FieldPatientID] = "Please select a patient"
	default:
		if _, ok := s.query.Patient(in.PatientID); !ok {
			fields[FieldPatientID] = ErrPatientNotFound.Error()
		}
	}

	switch {
	case in.DoctorID == "":
		fields[FieldDoctorID] = "Please select a doctor"
	default:
		if _, ok := s.query.Doctor(in.DoctorID); !ok {
			fields[FieldDoctorID] = ErrDoctorNotFound.Error()
		}
	}

	switch {
	case in.Date == "":
		fields[FieldDate] = "Please select a date"
	case !validDate(in.Date):
		fields[FieldDate] = "Date must be in YYYY-MM-DD format"
	}

	switch {
	case in.Time == "":
		fields[FieldTime] = "Please select a time"
	case !validTime(in.Time):
		fields[FieldTime] = "Time must be in HH:MM format"
	}

	if in.Duration != nil && *in.Duration <= 0 {
		fields[FieldDuration] = "Duration must be a positive number of minutes"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *Service) checkConflict(in Input, excludeID string) error {
	existing, found := s.validator.FindConflict(in.DoctorID, in.Date, in.Time, excludeID)
	if !found {
		return nil
	}
	s.log.Info("appointment conflict",
		slog.String("doctor_id", in.DoctorID),
		slog.String("date", in.Date),
		slog.String("time", in.Time),
		slog.String("existing_id", existing.ID),
	)
	return &ValidationError{Fields: map[string]string{FieldTime: conflictMessage(existing.Doctor)}}
}

func conflictMessage(d Doctor) string {
	name := d.Name
	if !strings.HasPrefix(name, "Dr.") {
		name = "Dr. " + name
	}
	return name + " " + conflictSuffix
}

func bookingKey(in Input) string {
	return in.DoctorID + ":" + in.Date + ":" + in.Time
}

func normalize(in Input) Input {
	in.PatientID = strings.TrimSpace(in.PatientID)
	in.DoctorID = strings.TrimSpace(in.DoctorID)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	return in
}

func validDate(s string) bool {
	t, err := time.Parse(DateLayout, s)
	return err == nil && t.Format(DateLayout) == s
}

func validTime(s string) bool {
	t, err := time.Parse(TimeLayout, s)
	return err == nil && t.Format(TimeLayout) == s
}

// localLocker is a per-key mutex for a single process.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[string]*keyLock)}
}

func (l *localLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	defer func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
