package appointment

import (
	"sort"
	"time"
)

const monthPreviewSize = 3

// Query derives detail views by joining raw appointments against the
// directory. It never mutates the store.
type Query struct {
	store *Store
	dir   Directory
}

func NewQuery(store *Store, dir Directory) *Query {
	return &Query{store: store, dir: dir}
}

func (q *Query) Patients() []Patient { return q.dir.Patients() }

func (q *Query) Doctors() []Doctor { return q.dir.Doctors() }

func (q *Query) Patient(id string) (Patient, bool) {
	for _, p := range q.dir.Patients() {
		if p.ID == id {
			return p, true
		}
	}
	return Patient{}, false
}

func (q *Query) Doctor(id string) (Doctor, bool) {
	for _, d := range q.dir.Doctors() {
		if d.ID == id {
			return d, true
		}
	}
	return Doctor{}, false
}

// join resolves a record's patient and doctor. Records with a dangling
// reference are reported as not ok and hidden from every detail view.
func (q *Query) join(a Appointment, patients []Patient, doctors []Doctor) (AppointmentWithDetails, bool) {
	detail := AppointmentWithDetails{Appointment: a}
	var havePatient, haveDoc bool
	for _, p := range patients {
		if p.ID == a.PatientID {
			detail.Patient = p
			havePatient = true
			break
		}
	}
	for _, d := range doctors {
		if d.ID == a.DoctorID {
			detail.Doctor = d
			haveDoc = true
			break
		}
	}
	return detail, havePatient && haveDoc
}

// ByDate returns the resolvable appointments on date, ordered by time.
// Equal times keep insertion order.
func (q *Query) ByDate(date string) []AppointmentWithDetails {
	return q.byDate(q.store.All(), date, q.dir.Patients(), q.dir.Doctors())
}

func (q *Query) byDate(all []Appointment, date string, patients []Patient, doctors []Doctor) []AppointmentWithDetails {
	out := make([]AppointmentWithDetails, 0)
	for _, a := range all {
		if a.Date != date {
			continue
		}
		if d, ok := q.join(a, patients, doctors); ok {
			out = append(out, d)
		}
	}
	// "HH:MM" is fixed width, so string order is chronological order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time < out[j].Time
	})
	return out
}

// ByID returns the detail view for id. A missing record and a dangling
// reference both report false.
func (q *Query) ByID(id string) (AppointmentWithDetails, bool) {
	a, ok := q.store.Get(id)
	if !ok {
		return AppointmentWithDetails{}, false
	}
	return q.join(a, q.dir.Patients(), q.dir.Doctors())
}

// ByRange returns the resolvable appointments with from <= date <= to,
// ordered by date then time.
func (q *Query) ByRange(from, to string) []AppointmentWithDetails {
	patients, doctors := q.dir.Patients(), q.dir.Doctors()
	out := make([]AppointmentWithDetails, 0)
	for _, a := range q.store.All() {
		if a.Date < from || a.Date > to {
			continue
		}
		if d, ok := q.join(a, patients, doctors); ok {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out
}

// ByMonth builds the month grid for the given year and month (1-12).
func (q *Query) ByMonth(year int, month time.Month) MonthSummary {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()

	summary := MonthSummary{
		Year:         first.Year(),
		Month:        int(first.Month()),
		FirstWeekday: int(first.Weekday()),
		DaysInMonth:  days,
		Days:         make([]DayEntry, 0, days),
	}

	all := q.store.All()
	patients, doctors := q.dir.Patients(), q.dir.Doctors()
	for day := 1; day <= days; day++ {
		date := first.AddDate(0, 0, day-1).Format(DateLayout)
		appts := q.byDate(all, date, patients, doctors)

		preview := appts
		if len(preview) > monthPreviewSize {
			preview = preview[:monthPreviewSize]
		}
		summary.Days = append(summary.Days, DayEntry{
			Date:         date,
			Day:          day,
			Count:        len(appts),
			Preview:      preview,
			More:         len(appts) - len(preview),
			Appointments: appts,
		})
		summary.Total += len(appts)
	}
	return summary
}

// Stats reports the raw collection size and the number of visible
// appointments on today.
func (q *Query) Stats(today string) Stats {
	return Stats{
		Total: q.store.Len(),
		Today: len(q.ByDate(today)),
		Date:  today,
	}
}
