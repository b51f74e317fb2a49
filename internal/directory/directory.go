// Package directory provides the patient and doctor reference lists the
// appointment store joins against. Lists are loaded once and never change
// for the life of a Roster.
package directory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hackgods/clinic-appointments/internal/appointment"
)

// Roster is an immutable Directory.
type Roster struct {
	patients []appointment.Patient
	doctors  []appointment.Doctor
}

// NewRoster copies the given lists and trims stray whitespace from names.
func NewRoster(patients []appointment.Patient, doctors []appointment.Doctor) *Roster {
	r := &Roster{
		patients: make([]appointment.Patient, len(patients)),
		doctors:  make([]appointment.Doctor, len(doctors)),
	}
	for i, p := range patients {
		p.Name = strings.TrimSpace(p.Name)
		r.patients[i] = p
	}
	for i, d := range doctors {
		d.Name = strings.TrimSpace(d.Name)
		r.doctors[i] = d
	}
	return r
}

func (r *Roster) Patients() []appointment.Patient {
	out := make([]appointment.Patient, len(r.patients))
	copy(out, r.patients)
	return out
}

func (r *Roster) Doctors() []appointment.Doctor {
	out := make([]appointment.Doctor, len(r.doctors))
	copy(out, r.doctors)
	return out
}

// Builtin returns the clinic's default roster.
func Builtin() *Roster {
	return NewRoster(
		[]appointment.Patient{
			{ID: "1", Name: "Santhos", Phone: "9865142305"},
			{ID: "2", Name: "Sarah", Phone: "7485236912"},
			{ID: "3", Name: "Michael", Phone: "6374058025"},
			{ID: "4", Name: "Davis", Phone: "3698521547"},
			{ID: "5", Name: "Raja", Phone: "1234567890"},
			{ID: "6", Name: "Lisa", Phone: "8870074625"},
			{ID: "7", Name: "Miller", Phone: "6398745263"},
			{ID: "8", Name: "Jennifer Garcia", Phone: "3698527415"},
			{ID: "9", Name: "Christopher Martinez", Phone: "6398457452"},
			{ID: "10", Name: "Anand", Phone: "3698524712"},
		},
		[]appointment.Doctor{
			{ID: "1", Name: "Dr. Sanjana", Specialty: "Family Medicine"},
			{ID: "2", Name: "Dr. Maria Rodriguez", Specialty: "Cardiology"},
			{ID: "3", Name: "Dr. Krishana", Specialty: "Orthopedics"},
			{ID: "4", Name: "Dr. Susan Chen", Specialty: "Pediatrics"},
			{ID: "5", Name: "Dr. Robert Lee", Specialty: "Dermatology"},
			{ID: "6", Name: "Dr. Ragul", Specialty: "Neurology"},
			{ID: "7", Name: "Dr. Sanjay", Specialty: "Internal Medicine"},
			{ID: "8", Name: "Dr. Patricia Brown", Specialty: "Gynecology"},
		},
	)
}

type rosterFile struct {
	Patients []appointment.Patient `yaml:"patients"`
	Doctors  []appointment.Doctor  `yaml:"doctors"`
}

// ParseYAML reads a roster document with top-level patients and doctors lists.
func ParseYAML(data []byte) (*Roster, error) {
	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if err := checkIDs(rf); err != nil {
		return nil, err
	}
	return NewRoster(rf.Patients, rf.Doctors), nil
}

func LoadYAML(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	return ParseYAML(data)
}

func checkIDs(rf rosterFile) error {
	seen := make(map[string]bool, len(rf.Patients))
	for i, p := range rf.Patients {
		if p.ID == "" {
			return fmt.Errorf("patient #%d has no id", i+1)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate patient id %q", p.ID)
		}
		seen[p.ID] = true
	}
	seen = make(map[string]bool, len(rf.Doctors))
	for i, d := range rf.Doctors {
		if d.ID == "" {
			return fmt.Errorf("doctor #%d has no id", i+1)
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate doctor id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}
