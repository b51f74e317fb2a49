package appointment

// Validator answers whether a doctor is already booked at a date and time.
// It reads current state only; callers invoke it before Store.Add or
// Store.Update.
type Validator struct {
	query *Query
}

func NewValidator(q *Query) *Validator {
	return &Validator{query: q}
}

// FindConflict returns the first visible appointment that books doctorID at
// date and time, ignoring excludeID. Pass "" when there is nothing to
// exclude.
func (v *Validator) FindConflict(doctorID, date, time, excludeID string) (AppointmentWithDetails, bool) {
	for _, a := range v.query.ByDate(date) {
		if a.Doctor.ID == doctorID && a.Time == time && (excludeID == "" || a.ID != excludeID) {
			return a, true
		}
	}
	return AppointmentWithDetails{}, false
}

func (v *Validator) HasConflict(doctorID, date, time, excludeID string) bool {
	_, found := v.FindConflict(doctorID, date, time, excludeID)
	return found
}
