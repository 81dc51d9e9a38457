package availability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"curehub-backend/internal/cache"
	"curehub-backend/internal/httpx"
	"curehub-backend/internal/middleware"
	"curehub-backend/internal/transport"
	"curehub-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

const ledgerCachePrefix = "availability:"

type Handler struct {
	service  *Service
	val      *validation.Validator
	log      *slog.Logger
	cache    cache.Cache
	cacheTTL time.Duration
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger, c cache.Cache, cacheTTL time.Duration) *Handler {
	return &Handler{service: service, val: val, log: log, cache: c, cacheTTL: cacheTTL}
}

type AddSlotsRequest struct {
	Date      string   `json:"date" validate:"required,date"`
	TimeSlots []string `json:"timeSlots" validate:"required,min=1,dive,clock"`
}

// DoctorAddSlots handles POST /doctor/availability for the acting doctor.
func (h *Handler) DoctorAddSlots(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	acting, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "missing token", nil)
		return
	}

	var req AddSlotsRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("availability add: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("availability add: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ledger, err := h.service.AddSlots(ctx, acting.ID, req.Date, req.TimeSlots)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			transport.WriteError(w, http.StatusNotFound, "doctor not found", nil)
			return
		}
		log.Error("availability add: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	h.invalidateLedgerCache(r.Context(), acting.ID)

	log.Info("availability add: ok", slog.String("doctor_id", acting.ID), slog.String("date", req.Date), slog.Int("slots", len(req.TimeSlots)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"availability": ledger})
}

type RemoveSlotRequest struct {
	Date string `json:"date" validate:"required,date"`
	Time string `json:"time" validate:"required,clock"`
}

// DoctorRemoveSlot handles DELETE /doctor/availability.
func (h *Handler) DoctorRemoveSlot(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	acting, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "missing token", nil)
		return
	}

	var req RemoveSlotRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("availability remove: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("availability remove: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ledger, err := h.service.RemoveSlot(ctx, acting.ID, req.Date, req.Time)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			transport.WriteError(w, http.StatusNotFound, "doctor not found", nil)
			return
		}
		log.Error("availability remove: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	h.invalidateLedgerCache(r.Context(), acting.ID)

	log.Info("availability remove: ok", slog.String("doctor_id", acting.ID), slog.String("date", req.Date), slog.String("time", req.Time))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"availability": ledger})
}

// DoctorListLedger handles GET /doctor/availability; with a date query only
// that date's slot set is returned.
func (h *Handler) DoctorListLedger(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	acting, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "missing token", nil)
		return
	}

	h.writeLedger(w, r, log, acting.ID)
}

// PatientDoctorAvailability handles GET /patient/doctors/{id}/availability,
// the booking-form read of another doctor's ledger.
func (h *Handler) PatientDoctorAvailability(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	doctorID := strings.TrimSpace(chi.URLParam(r, "id"))
	if doctorID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	h.writeLedger(w, r, log, doctorID)
}

func (h *Handler) writeLedger(w http.ResponseWriter, r *http.Request, log *slog.Logger, doctorID string) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	cacheKey := ledgerCachePrefix + doctorID
	if date != "" {
		cacheKey += ":" + date
	}

	if h.cache != nil {
		if cached, ok, err := h.cache.Get(r.Context(), cacheKey); err == nil && ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var payload interface{}
	if date != "" {
		slots, err := h.service.ListSlots(ctx, doctorID, date)
		if err != nil {
			h.writeLedgerError(w, log, err)
			return
		}
		payload = map[string]interface{}{"date": date, "timeSlots": slots}
	} else {
		ledger, err := h.service.ListLedger(ctx, doctorID)
		if err != nil {
			h.writeLedgerError(w, log, err)
			return
		}
		payload = map[string]interface{}{"availability": ledger}
	}

	if h.cache != nil {
		if raw, err := json.Marshal(payload); err == nil {
			_ = h.cache.Set(r.Context(), cacheKey, raw, h.cacheTTL)
		}
	}

	transport.WriteJSON(w, http.StatusOK, payload)
}

// invalidateLedgerCache drops every cached read of the doctor's ledger, both
// the full-ledger key and the per-date variants.
func (h *Handler) invalidateLedgerCache(ctx context.Context, doctorID string) {
	if h.cache == nil {
		return
	}
	_ = h.cache.DeletePrefix(ctx, ledgerCachePrefix+doctorID)
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, log *slog.Logger, err error) {
	if errors.Is(err, ErrDoctorNotFound) {
		transport.WriteError(w, http.StatusNotFound, "doctor not found", nil)
		return
	}
	log.Error("availability read: database error", slog.String("error", err.Error()))
	transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
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
