package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Store owns the appointment collection and writes it through to a Slot on
// every mutation. It does not check for double bookings; callers run the
// Validator first.
type Store struct {
	slot Slot
	key  string
	log  *slog.Logger

	mu     sync.RWMutex
	items  []Appointment
	closed bool

	newID func() (string, error)
}

func NewStore(slot Slot, key string, log *slog.Logger) *Store {
	if key == "" {
		key = DefaultSlotKey
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		slot:  slot,
		key:   key,
		log:   log.With(slog.String("component", "appointment.store")),
		newID: newAppointmentID,
	}
}

// newAppointmentID returns a UUIDv7: a millisecond timestamp prefix followed
// by random bits.
func newAppointmentID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Initialize restores the collection from the slot. Malformed stored data
// leaves the store empty.
func (s *Store) Initialize(ctx context.Context) error {
	raw, err := s.slot.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrSlotEmpty) {
			s.log.Info("no stored appointments", slog.String("key", s.key))
			s.reset(nil)
			return nil
		}
		return fmt.Errorf("read durable slot %q: %w", s.key, err)
	}

	var items []Appointment
	if err := json.Unmarshal(raw, &items); err != nil {
		s.log.Warn("ignoring malformed stored appointments", slog.String("key", s.key), slog.Any("err", err))
		s.reset(nil)
		return nil
	}

	s.reset(items)
	s.log.Info("appointments restored", slog.String("key", s.key), slog.Int("count", len(items)))
	return nil
}

func (s *Store) reset(items []Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if items == nil {
		items = []Appointment{}
	}
	s.items = items
	s.closed = false
}

// Shutdown commits the current collection one last time and closes the store.
func (s *Store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.commit(ctx, s.items); err != nil {
		return err
	}
	s.log.Info("appointment store closed", slog.Int("count", len(s.items)))
	return nil
}

// Add assigns a fresh id, appends the record and persists the collection.
func (s *Store) Add(ctx context.Context, data AppointmentCreate) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Appointment{}, ErrStoreClosed
	}

	id, err := s.uniqueID()
	if err != nil {
		return Appointment{}, err
	}

	appt := Appointment{
		ID:        id,
		PatientID: data.PatientID,
		DoctorID:  data.DoctorID,
		Date:      data.Date,
		Time:      data.Time,
		Notes:     data.Notes,
	}
	if data.Duration != nil {
		d := *data.Duration
		appt.Duration = &d
	}

	next := make([]Appointment, len(s.items), len(s.items)+1)
	copy(next, s.items)
	next = append(next, appt)

	if err := s.commit(ctx, next); err != nil {
		return Appointment{}, err
	}
	s.items = next
	return appt, nil
}

func (s *Store) uniqueID() (string, error) {
	for {
		id, err := s.newID()
		if err != nil {
			return "", fmt.Errorf("generate appointment id: %w", err)
		}
		if s.indexOf(id) < 0 {
			return id, nil
		}
	}
}

// Update merges patch over the record with the given id. Unknown ids are a
// no-op.
func (s *Store) Update(ctx context.Context, id string, patch AppointmentPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}

	next := make([]Appointment, len(s.items))
	copy(next, s.items)
	next[i] = patch.apply(next[i])
	next[i].ID = id

	if err := s.commit(ctx, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// Remove deletes the record with the given id, if present, and persists.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	next := make([]Appointment, 0, len(s.items))
	for _, a := range s.items {
		if a.ID != id {
			next = append(next, a)
		}
	}

	if err := s.commit(ctx, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// All returns a copy of the collection in insertion order.
func (s *Store) All() []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Appointment, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the raw record with the given id.
func (s *Store) Get(id string) (Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return Appointment{}, false
	}
	return s.items[i], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) indexOf(id string) int {
	for i, a := range s.items {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// commit serializes items to the slot. Callers hold s.mu and swap s.items
// only after commit succeeds.
func (s *Store) commit(ctx context.Context, items []Appointment) error {
	if items == nil {
		items = []Appointment{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode appointments: %w", err)
	}
	if err := s.slot.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("write durable slot %q: %w", s.key, err)
	}
	return nil
}
