package api

import (
	"net/http"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/hackgods/clinic-appointments/internal/appointment"
)

const (
	icsLayout       = "20060102T150405"
	defaultDuration = 30
	icsProductID    = "-//clinic-appointments//calendar export//EN"
)

// calendarFeed exports ?from=&to= as an iCalendar document. Times carry no
// zone so clients show them as clinic wall-clock times.
func (h *handlers) calendarFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" {
		from = h.today()
	}
	if to == "" {
		to = from
	}
	items, err := h.svc.ListByRange(from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	body := renderICS(items, h.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="appointments.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func renderICS(items []appointment.AppointmentWithDetails, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)

	for _, a := range items {
		start, err := time.Parse(appointment.DateLayout+" "+appointment.TimeLayout, a.Date+" "+a.Time)
		if err != nil {
			continue
		}
		minutes := defaultDuration
		if a.Duration != nil {
			minutes = *a.Duration
		}
		end := start.Add(time.Duration(minutes) * time.Minute)

		ev := cal.AddEvent(a.ID + "@clinic-appointments")
		ev.SetDtStampTime(stamp)
		ev.SetProperty(ical.ComponentPropertyDtStart, start.Format(icsLayout))
		ev.SetProperty(ical.ComponentPropertyDtEnd, end.Format(icsLayout))
		ev.SetSummary(a.Patient.Name + " with " + a.Doctor.Name)
		desc := a.Doctor.Specialty + ", " + strconv.Itoa(minutes) + " min"
		if a.Notes != "" {
			desc += "\n" + a.Notes
		}
		ev.SetDescription(desc)
	}
	return cal.Serialize()
}
