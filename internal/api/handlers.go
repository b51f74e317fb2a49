package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-appointments/internal/appointment"
)

type handlers struct {
	svc   *appointment.Service
	creds Credentials
	now   func() time.Time
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Authenticated: h.creds.match(req.Email, req.Password)})
}

func (h *handlers) listPatients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newList(h.svc.Query().Patients()))
}

func (h *handlers) listDoctors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newList(h.svc.Query().Doctors()))
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newList(appointment.TimeSlots()))
}

func (h *handlers) today() string {
	return h.now().Format(appointment.DateLayout)
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	today := r.URL.Query().Get("today")
	if today == "" {
		today = h.today()
	}
	st, err := h.svc.Stats(today)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// listAppointments serves ?date= for one day or ?from=&to= for a range.
// With no parameters it lists today.
func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		items []appointment.AppointmentWithDetails
		err   error
	)
	switch {
	case q.Get("from") != "" || q.Get("to") != "":
		items, err = h.svc.ListByRange(q.Get("from"), q.Get("to"))
	case q.Get("date") != "":
		items, err = h.svc.ListByDate(q.Get("date"))
	default:
		items, err = h.svc.ListByDate(h.today())
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(items))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	appt, err := h.svc.Create(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	var req AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	appt, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *handlers) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) month(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		writeError(w, http.StatusBadRequest, "invalid_year", "year must be a number between 1 and 9999")
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_month", "month must be a number")
		return
	}
	summary, err := h.svc.Month(year, time.Month(month))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var vErr *appointment.ValidationError
	switch {
	case errors.As(err, &vErr) && vErr.Conflict():
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "appointment_conflict", Details: vErr.Fields[appointment.FieldTime], Fields: vErr.Fields})
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Details: vErr.Error(), Fields: vErr.Fields})
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
