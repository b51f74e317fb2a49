package appointment

import (
	"context"
	"errors"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrStoreClosed         = errors.New("appointment store is closed")

	// ErrSlotEmpty is returned by a Slot when nothing was ever written under the key.
	ErrSlotEmpty = errors.New("durable slot is empty")
)

// DefaultSlotKey is the key the appointment collection is persisted under.
const DefaultSlotKey = "clinic-appointments"

// Slot is a durable key-value location. The store rewrites the whole
// collection on every mutation.
type Slot interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Directory supplies the immutable patient and doctor rosters.
type Directory interface {
	Patients() []Patient
	Doctors() []Doctor
}
