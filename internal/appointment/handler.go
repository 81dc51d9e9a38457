package appointment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"curehub-backend/internal/httpx"
	"curehub-backend/internal/middleware"
	"curehub-backend/internal/transport"
	"curehub-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{service: service, val: val, log: log}
}

// PatientBook handles POST /patient/appointments.
func (h *Handler) PatientBook(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	acting, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "missing token", nil)
		return
	}

	var req BookRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("book: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("book: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	appt, err := h.service.Book(ctx, acting.ID, acting.Name, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrDoctorNotFound):
			log.Warn("book: doctor not found", slog.String("doctor_id", req.DoctorID))
			transport.WriteError(w, http.StatusNotFound, "doctor not found", nil)
		case errors.Is(err, ErrSlotUnavailable):
			log.Warn("book: slot not available", slog.String("date", req.Date), slog.String("time", req.Time))
			transport.WriteError(w, http.StatusBadRequest, "slot not available", nil)
		case errors.Is(err, ErrSlotTaken):
			log.Warn("book: slot already booked", slog.String("date", req.Date), slog.String("time", req.Time))
			transport.WriteError(w, http.StatusConflict, "slot already booked", nil)
		default:
			log.Error("book: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("book: ok",
		slog.String("appointment_id", appt.ID),
		slog.String("doctor_id", appt.DoctorID),
		slog.String("date", appt.Date),
		slog.String("time", appt.Time),
	)
	transport.WriteJSON(w, http.StatusCreated, appt)
}

// PatientList handles GET /patient/appointments.
func (h *Handler) PatientList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	acting, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "missing token", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListForPatient(ctx, acting.ID)
	if err != nil {
		log.Error("patient appointments list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, items)
}

// PatientCancel handles DELETE /patient/appointments/{id}.
func (h *Handler) PatientCancel(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	acting, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "missing token", nil)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	appt, err := h.service.Cancel(ctx, acting.ID, id)
	if err != nil {
		h.writeLifecycleError(w, log, "cancel", id, err)
		return
	}

	log.Info("cancel: ok", slog.String("appointment_id", appt.ID))
	transport.WriteJSON(w, http.StatusOK, appt)
}

// DoctorList handles GET /doctor/appointments.
func (h *Handler) DoctorList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	acting, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "missing token", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListForDoctor(ctx, acting.ID)
	if err != nil {
		log.Error("doctor appointments list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, items)
}

type DoctorUpdateRequest struct {
	AppointmentID string `json:"appointmentId" validate:"required"`
	Status        string `json:"status" validate:"omitempty,oneof=accepted rejected pending"`
	Prescription  string `json:"prescription"`
}

// DoctorUpdate handles PUT /doctor/appointments: a status decision, a
// prescription, or both in one request.
func (h *Handler) DoctorUpdate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	acting, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "missing token", nil)
		return
	}

	var req DoctorUpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("doctor appointments update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("doctor appointments update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}
	if req.Status == "" && strings.TrimSpace(req.Prescription) == "" {
		transport.WriteError(w, http.StatusBadRequest, "nothing to update", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	var (
		appt Appointment
		err  error
	)
	if req.Status != "" {
		appt, err = h.service.UpdateStatus(ctx, acting.ID, req.AppointmentID, req.Status)
		if err != nil {
			h.writeLifecycleError(w, log, "doctor appointments update", req.AppointmentID, err)
			return
		}
	}
	if strings.TrimSpace(req.Prescription) != "" {
		appt, err = h.service.Prescribe(ctx, acting.ID, req.AppointmentID, req.Prescription)
		if err != nil {
			h.writeLifecycleError(w, log, "doctor appointments update", req.AppointmentID, err)
			return
		}
	}

	log.Info("doctor appointments update: ok",
		slog.String("appointment_id", appt.ID),
		slog.String("status", appt.Status),
	)
	transport.WriteJSON(w, http.StatusOK, appt)
}

func (h *Handler) writeLifecycleError(w http.ResponseWriter, log *slog.Logger, op, id string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn(op+": not found", slog.String("appointment_id", id))
		transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
	case errors.Is(err, ErrForbidden):
		log.Warn(op+": forbidden", slog.String("appointment_id", id))
		transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
	case errors.Is(err, ErrInvalidStatus):
		transport.WriteError(w, http.StatusBadRequest, "invalid status", nil)
	case errors.Is(err, ErrInvalidTransition):
		log.Warn(op+": already finalized", slog.String("appointment_id", id))
		transport.WriteError(w, http.StatusConflict, "appointment is already finalized", nil)
	default:
		log.Error(op+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
