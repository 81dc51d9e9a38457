package appointment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"curehub-backend/internal/principal"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrDoctorNotFound    = errors.New("doctor not found")
	ErrSlotUnavailable   = errors.New("slot not available")
	ErrSlotTaken         = errors.New("slot already booked")
	ErrForbidden         = errors.New("appointment belongs to another principal")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("appointment is already finalized")
)

// PrincipalStore is the slice of the principal repository the lifecycle
// manager needs: doctor/patient resolution, roster membership and the
// denormalized history mirror. Implemented by principal.MongoRepository.
type PrincipalStore interface {
	GetByID(ctx context.Context, id string) (principal.Principal, error)
	AddToRoster(ctx context.Context, doctorID, patientID string) error
	AppendHistory(ctx context.Context, patientID string, entry principal.HistoryEntry) error
	SyncHistoryStatus(ctx context.Context, patientID, appointmentID, status string) (bool, error)
	SyncHistoryStatusBySlot(ctx context.Context, patientID, doctorID, date, slot, status string) (bool, error)
	SetHistoryPrescription(ctx context.Context, patientID, appointmentID, prescription string) (bool, error)
}

// SlotChecker answers whether a doctor currently offers (date, slot).
// Implemented by availability.Service.
type SlotChecker interface {
	HasSlot(ctx context.Context, doctorID, date, slot string) (bool, error)
}

type Service struct {
	repo       Repository
	principals PrincipalStore
	slots      SlotChecker
	location   *time.Location
	log        *slog.Logger
}

func NewService(repo Repository, principals PrincipalStore, slots SlotChecker, location *time.Location, log *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		principals: principals,
		slots:      slots,
		location:   location,
		log:        log,
	}
}

type BookRequest struct {
	DoctorID string `json:"doctorId" validate:"required"`
	Date     string `json:"date" validate:"required,date"`
	Time     string `json:"time" validate:"required,clock"`
	Symptoms string `json:"symptoms" validate:"required"`
}

// Book creates a pending appointment after validating the doctor and the
// offered slot. The appointment insert is the authoritative write; the
// history-mirror append and roster add that follow are best-effort and
// reconstructable from the appointment collection.
func (s *Service) Book(ctx context.Context, patientID, patientName string, req BookRequest) (Appointment, error) {
	doctorID := strings.TrimSpace(req.DoctorID)

	doctor, err := s.principals.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrDoctorNotFound
		}
		return Appointment{}, err
	}
	if doctor.Role != principal.RoleDoctor {
		return Appointment{}, ErrDoctorNotFound
	}

	offered, err := s.slots.HasSlot(ctx, doctorID, req.Date, req.Time)
	if err != nil {
		return Appointment{}, err
	}
	if !offered {
		return Appointment{}, ErrSlotUnavailable
	}

	now := time.Now().In(s.location)
	appt := Appointment{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		DoctorID:    doctorID,
		PatientName: patientName,
		DoctorName:  doctor.Name,
		Symptoms:    strings.TrimSpace(req.Symptoms),
		Date:        req.Date,
		Time:        req.Time,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, appt); err != nil {
		// Only possible with the strict slot-claim index in place.
		if mongo.IsDuplicateKeyError(err) {
			return Appointment{}, ErrSlotTaken
		}
		return Appointment{}, err
	}

	if err := s.principals.AppendHistory(ctx, patientID, mirrorEntry(appt)); err != nil {
		s.log.Warn("book: history mirror append failed",
			slog.String("appointment_id", appt.ID),
			slog.String("patient_id", patientID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.principals.AddToRoster(ctx, doctorID, patientID); err != nil {
		s.log.Warn("book: roster add failed",
			slog.String("appointment_id", appt.ID),
			slog.String("doctor_id", doctorID),
			slog.String("error", err.Error()),
		)
	}

	return appt, nil
}

// UpdateStatus is the doctor-side transition. Terminal states are immutable;
// accepting adds the patient to the doctor's roster; the history mirror is
// synced by appointment id, best-effort.
func (s *Service) UpdateStatus(ctx context.Context, doctorID, appointmentID, newStatus string) (Appointment, error) {
	newStatus = strings.ToLower(strings.TrimSpace(newStatus))
	if !IsDoctorDecision(newStatus) {
		return Appointment{}, ErrInvalidStatus
	}

	appt, err := s.get(ctx, appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	if appt.DoctorID != doctorID {
		return Appointment{}, ErrForbidden
	}
	if !CanTransition(appt.Status, newStatus) {
		return Appointment{}, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, newStatus, time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}

	if newStatus == StatusAccepted {
		if err := s.principals.AddToRoster(ctx, doctorID, updated.PatientID); err != nil {
			s.log.Warn("status update: roster add failed",
				slog.String("appointment_id", updated.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.syncMirrorStatus(ctx, updated)
	return updated, nil
}

// Prescribe records the doctor's prescription text on the appointment and
// mirrors it into the patient's history.
func (s *Service) Prescribe(ctx context.Context, doctorID, appointmentID, prescription string) (Appointment, error) {
	appt, err := s.get(ctx, appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	if appt.DoctorID != doctorID {
		return Appointment{}, ErrForbidden
	}

	updated, err := s.repo.SetPrescription(ctx, appt.ID, strings.TrimSpace(prescription), time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}

	found, err := s.principals.SetHistoryPrescription(ctx, updated.PatientID, updated.ID, updated.Prescription)
	if err != nil {
		s.log.Warn("prescribe: history mirror sync failed",
			slog.String("appointment_id", updated.ID),
			slog.String("error", err.Error()),
		)
	} else if !found {
		s.log.Warn("prescribe: history mirror entry missing",
			slog.String("appointment_id", updated.ID),
			slog.String("patient_id", updated.PatientID),
		)
	}

	return updated, nil
}

// Cancel is the patient-side transition. The history mirror is matched by
// (doctorId, date, time), the legacy key, rather than the appointment id.
func (s *Service) Cancel(ctx context.Context, patientID, appointmentID string) (Appointment, error) {
	appt, err := s.get(ctx, appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	if appt.PatientID != patientID {
		return Appointment{}, ErrForbidden
	}
	if !CanTransition(appt.Status, StatusCancelled) {
		return Appointment{}, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, StatusCancelled, time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}

	found, err := s.principals.SyncHistoryStatusBySlot(ctx, patientID, updated.DoctorID, updated.Date, updated.Time, StatusCancelled)
	if err != nil {
		s.log.Warn("cancel: history mirror sync failed",
			slog.String("appointment_id", updated.ID),
			slog.String("error", err.Error()),
		)
	} else if !found {
		s.log.Warn("cancel: history mirror entry missing",
			slog.String("appointment_id", updated.ID),
			slog.String("patient_id", patientID),
		)
	}

	return updated, nil
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return s.repo.ListByDoctor(ctx, strings.TrimSpace(doctorID))
}

func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return s.repo.ListByPatient(ctx, strings.TrimSpace(patientID))
}

func (s *Service) get(ctx context.Context, appointmentID string) (Appointment, error) {
	appt, err := s.repo.GetByID(ctx, strings.TrimSpace(appointmentID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	return appt, nil
}

func (s *Service) syncMirrorStatus(ctx context.Context, appt Appointment) {
	found, err := s.principals.SyncHistoryStatus(ctx, appt.PatientID, appt.ID, appt.Status)
	if err != nil {
		s.log.Warn("status update: history mirror sync failed",
			slog.String("appointment_id", appt.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !found {
		s.log.Warn("status update: history mirror entry missing",
			slog.String("appointment_id", appt.ID),
			slog.String("patient_id", appt.PatientID),
		)
	}
}

func mirrorEntry(appt Appointment) principal.HistoryEntry {
	return principal.HistoryEntry{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		Symptoms:      appt.Symptoms,
		Date:          appt.Date,
		Time:          appt.Time,
		Status:        appt.Status,
		Prescription:  appt.Prescription,
	}
}
