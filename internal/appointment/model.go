package appointment

const (
	// DateLayout is the calendar date form appointments are keyed by.
	DateLayout = "2006-01-02"
	// TimeLayout is the zero-padded 24-hour time-of-day form.
	TimeLayout = "15:04"
)

type Patient struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Phone string `json:"phone,omitempty" yaml:"phone,omitempty"`
}

type Doctor struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Specialty string `json:"specialty" yaml:"specialty"`
}

// Appointment is the persisted record. Field names match the stored JSON array.
type Appointment struct {
	ID        string `json:"id"`
	PatientID string `json:"patientId"`
	DoctorID  string `json:"doctorId"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Duration  *int   `json:"duration,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// AppointmentCreate carries every Appointment field except the id.
type AppointmentCreate struct {
	PatientID string
	DoctorID  string
	Date      string
	Time      string
	Duration  *int
	Notes     string
}

// AppointmentPatch replaces only the non-nil fields.
type AppointmentPatch struct {
	PatientID *string
	DoctorID  *string
	Date      *string
	Time      *string
	Duration  *int
	Notes     *string
}

func (p AppointmentPatch) apply(a Appointment) Appointment {
	if p.PatientID != nil {
		a.PatientID = *p.PatientID
	}
	if p.DoctorID != nil {
		a.DoctorID = *p.DoctorID
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.Duration != nil {
		d := *p.Duration
		a.Duration = &d
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	return a
}

// AppointmentWithDetails is an Appointment joined with its patient and doctor.
// It is rebuilt on every query and never stored.
type AppointmentWithDetails struct {
	Appointment
	Patient Patient `json:"patient"`
	Doctor  Doctor  `json:"doctor"`
}

// DayEntry is one cell of the month grid.
type DayEntry struct {
	Date         string                   `json:"date"`
	Day          int                      `json:"day"`
	Count        int                      `json:"count"`
	Preview      []AppointmentWithDetails `json:"preview"`
	More         int                      `json:"more"`
	Appointments []AppointmentWithDetails `json:"appointments"`
}

type MonthSummary struct {
	Year         int        `json:"year"`
	Month        int        `json:"month"`
	FirstWeekday int        `json:"firstWeekday"` // 0 = Sunday
	DaysInMonth  int        `json:"daysInMonth"`
	Total        int        `json:"total"`
	Days         []DayEntry `json:"days"`
}

type Stats struct {
	Total int    `json:"total"`
	Today int    `json:"today"`
	Date  string `json:"date"`
}
