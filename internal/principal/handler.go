package principal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"curehub-backend/internal/auth"
	"curehub-backend/internal/cache"
	"curehub-backend/internal/httpx"
	"curehub-backend/internal/middleware"
	"curehub-backend/internal/transport"
	"curehub-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

const doctorDirectoryCacheKey = "doctors:directory"

// CredentialMailer delivers the temporary password of an admin-provisioned
// doctor account. Delivery is fire-and-forget; the account exists regardless.
type CredentialMailer interface {
	SendDoctorCredentials(ctx context.Context, name, email, tempPassword string) (string, error)
}

type Handler struct {
	service  *Service
	tokens   *auth.Manager
	val      *validation.Validator
	log      *slog.Logger
	cache    cache.Cache
	cacheTTL time.Duration
	mailer   CredentialMailer
}

func NewHandler(service *Service, tokens *auth.Manager, val *validation.Validator, log *slog.Logger, c cache.Cache, cacheTTL time.Duration, mailer CredentialMailer) *Handler {
	return &Handler{
		service:  service,
		tokens:   tokens,
		val:      val,
		log:      log,
		cache:    c,
		cacheTTL: cacheTTL,
		mailer:   mailer,
	}
}

type SessionResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req RegisterRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("register: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("register: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	p, err := h.service.Register(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidRole) {
			log.Warn("register: invalid role", slog.String("role", req.Role))
			transport.WriteError(w, http.StatusBadRequest, "invalid role", nil)
			return
		}
		if errors.Is(err, ErrDuplicateIdentity) {
			log.Warn("register: duplicate email", slog.String("role", req.Role))
			transport.WriteError(w, http.StatusBadRequest, "account with this email already exists", nil)
			return
		}
		log.Error("register: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	token, err := h.tokens.Issue(p.ID, p.Role)
	if err != nil {
		log.Error("register: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	log.Info("register: ok", slog.String("principal_id", p.ID), slog.String("role", p.Role))
	transport.WriteJSON(w, http.StatusCreated, SessionResponse{
		ID:    p.ID,
		Name:  p.Name,
		Email: p.Email,
		Role:  p.Role,
		Token: token,
	})
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req LoginRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("login: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	p, err := h.service.VerifyCredentials(ctx, req.Role, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidRole) {
			log.Warn("login: invalid role", slog.String("role", req.Role))
			transport.WriteError(w, http.StatusBadRequest, "invalid role", nil)
			return
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidCredentials) {
			log.Warn("login: invalid credentials", slog.String("role", req.Role))
			transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		log.Error("login: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	token, err := h.tokens.Issue(p.ID, p.Role)
	if err != nil {
		log.Error("login: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	log.Info("login: ok", slog.String("principal_id", p.ID), slog.String("role", p.Role))
	transport.WriteJSON(w, http.StatusOK, SessionResponse{
		ID:    p.ID,
		Name:  p.Name,
		Email: p.Email,
		Role:  p.Role,
		Token: token,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	acting, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "missing token", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.service.GetByID(ctx, acting.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusUnauthorized, "principal not found", nil)
			return
		}
		log.Error("me: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	acting, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "missing token", nil)
		return
	}

	var req UpdateProfileRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("profile update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("profile update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	updated, err := h.service.UpdateProfile(ctx, acting.Role, acting.ID, req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "principal not found", nil)
			return
		}
		log.Error("profile update: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if acting.Role == RoleDoctor && h.cache != nil {
		_ = h.cache.Delete(r.Context(), doctorDirectoryCacheKey)
	}

	log.Info("profile update: ok", slog.String("principal_id", acting.ID))
	transport.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) AdminCreateDoctor(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req CreateDoctorRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin doctors create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin doctors create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	doctor, tempPassword, err := h.service.CreateDoctor(ctx, req)
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			log.Warn("admin doctors create: duplicate email")
			transport.WriteError(w, http.StatusConflict, "account with this email already exists", nil)
			return
		}
		log.Error("admin doctors create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if h.mailer != nil {
		go h.sendDoctorCredentials(doctor, tempPassword)
	}
	if h.cache != nil {
		_ = h.cache.Delete(r.Context(), doctorDirectoryCacheKey)
	}

	log.Info("admin doctors create: ok", slog.String("doctor_id", doctor.ID))
	transport.WriteJSON(w, http.StatusCreated, doctor)
}

func (h *Handler) sendDoctorCredentials(doctor Principal, tempPassword string) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	messageID, err := h.mailer.SendDoctorCredentials(ctx, doctor.Name, doctor.Email, tempPassword)
	if err != nil {
		h.log.Warn("admin doctors create: credential email failed",
			slog.String("doctor_id", doctor.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	h.log.Info("admin doctors create: credential email sent",
		slog.String("doctor_id", doctor.ID),
		slog.String("message_id", messageID),
	)
}

func (h *Handler) AdminListDoctors(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 50, 200)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	doctors, err := h.service.ListDoctorsPage(ctx, limit, offset)
	if err != nil {
		log.Error("admin doctors list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, doctors)
}

func (h *Handler) AdminDeleteDoctor(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.DeleteDoctor(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin doctors delete: not found", slog.String("doctor_id", id))
			transport.WriteError(w, http.StatusNotFound, "doctor not found", nil)
			return
		}
		log.Error("admin doctors delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if h.cache != nil {
		_ = h.cache.Delete(r.Context(), doctorDirectoryCacheKey)
		_ = h.cache.DeletePrefix(r.Context(), "availability:"+id)
	}

	log.Info("admin doctors delete: ok", slog.String("doctor_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// DoctorSummary is the patient-facing directory projection: enough to pick a
// doctor and book, nothing operational (no roster, no email-side data).
type DoctorSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization,omitempty"`
	Degree         string `json:"degree,omitempty"`
	Experience     int    `json:"experience,omitempty"`
	Bio            string `json:"bio,omitempty"`
}

func (h *Handler) PatientListDoctors(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	if h.cache != nil {
		if cached, ok, err := h.cache.Get(r.Context(), doctorDirectoryCacheKey); err == nil && ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	doctors, err := h.service.ListDoctors(ctx)
	if err != nil {
		log.Error("patient doctors list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	summaries := make([]DoctorSummary, 0, len(doctors))
	for _, d := range doctors {
		summaries = append(summaries, DoctorSummary{
			ID:             d.ID,
			Name:           d.Name,
			Specialization: d.Specialization,
			Degree:         d.Degree,
			Experience:     d.Experience,
			Bio:            d.Bio,
		})
	}

	if h.cache != nil {
		if payload, err := json.Marshal(summaries); err == nil {
			_ = h.cache.Set(r.Context(), doctorDirectoryCacheKey, payload, h.cacheTTL)
		}
	}

	transport.WriteJSON(w, http.StatusOK, summaries)
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
