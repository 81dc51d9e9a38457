package appointment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"curehub-backend/internal/principal"

	"go.mongodb.org/mongo-driver/mongo"
)

type fakeRepo struct {
	appointments map[string]Appointment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{appointments: make(map[string]Appointment)}
}

func (r *fakeRepo) Insert(ctx context.Context, appt Appointment) error {
	r.appointments[appt.ID] = appt
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (Appointment, error) {
	appt, ok := r.appointments[id]
	if !ok {
		return Appointment{}, mongo.ErrNoDocuments
	}
	return appt, nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, id, status string, now time.Time) (Appointment, error) {
	appt, ok := r.appointments[id]
	if !ok {
		return Appointment{}, mongo.ErrNoDocuments
	}
	appt.Status = status
	appt.UpdatedAt = now
	r.appointments[id] = appt
	return appt, nil
}

func (r *fakeRepo) SetPrescription(ctx context.Context, id, prescription string, now time.Time) (Appointment, error) {
	appt, ok := r.appointments[id]
	if !ok {
		return Appointment{}, mongo.ErrNoDocuments
	}
	appt.Prescription = prescription
	appt.UpdatedAt = now
	r.appointments[id] = appt
	return appt, nil
}

func (r *fakeRepo) ListByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	items := make([]Appointment, 0)
	for _, appt := range r.appointments {
		if appt.DoctorID == doctorID {
			items = append(items, appt)
		}
	}
	return items, nil
}

func (r *fakeRepo) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	items := make([]Appointment, 0)
	for _, appt := range r.appointments {
		if appt.PatientID == patientID {
			items = append(items, appt)
		}
	}
	return items, nil
}

type fakePrincipals struct {
	principals map[string]principal.Principal
	rosters    map[string][]string
	histories  map[string][]principal.HistoryEntry
}

func newFakePrincipals() *fakePrincipals {
	return &fakePrincipals{
		principals: make(map[string]principal.Principal),
		rosters:    make(map[string][]string),
		histories:  make(map[string][]principal.HistoryEntry),
	}
}

func (f *fakePrincipals) GetByID(ctx context.Context, id string) (principal.Principal, error) {
	p, ok := f.principals[id]
	if !ok {
		return principal.Principal{}, mongo.ErrNoDocuments
	}
	return p, nil
}

func (f *fakePrincipals) AddToRoster(ctx context.Context, doctorID, patientID string) error {
	for _, id := range f.rosters[doctorID] {
		if id == patientID {
			return nil
		}
	}
	f.rosters[doctorID] = append(f.rosters[doctorID], patientID)
	return nil
}

func (f *fakePrincipals) AppendHistory(ctx context.Context, patientID string, entry principal.HistoryEntry) error {
	f.histories[patientID] = append(f.histories[patientID], entry)
	return nil
}

func (f *fakePrincipals) SyncHistoryStatus(ctx context.Context, patientID, appointmentID, status string) (bool, error) {
	entries := f.histories[patientID]
	for i := range entries {
		if entries[i].AppointmentID == appointmentID {
			entries[i].Status = status
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePrincipals) SyncHistoryStatusBySlot(ctx context.Context, patientID, doctorID, date, slot, status string) (bool, error) {
	entries := f.histories[patientID]
	for i := range entries {
		if entries[i].DoctorID == doctorID && entries[i].Date == date && entries[i].Time == slot {
			entries[i].Status = status
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePrincipals) SetHistoryPrescription(ctx context.Context, patientID, appointmentID, prescription string) (bool, error) {
	entries := f.histories[patientID]
	for i := range entries {
		if entries[i].AppointmentID == appointmentID {
			entries[i].Prescription = prescription
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePrincipals) ListIDsByRole(ctx context.Context, role string) ([]string, error) {
	ids := make([]string, 0)
	for id, p := range f.principals {
		if p.Role == role {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakePrincipals) ReplaceHistory(ctx context.Context, patientID string, entries []principal.HistoryEntry) error {
	f.histories[patientID] = entries
	return nil
}

type fakeSlots struct {
	offered map[string]bool
}

func (f *fakeSlots) HasSlot(ctx context.Context, doctorID, date, slot string) (bool, error) {
	return f.offered[doctorID+"|"+date+"|"+slot], nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakePrincipals, *fakeSlots) {
	t.Helper()
	repo := newFakeRepo()
	principals := newFakePrincipals()
	slots := &fakeSlots{offered: make(map[string]bool)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, principals, slots, time.UTC, logger)
	return svc, repo, principals, slots
}

func addDoctor(f *fakePrincipals, id, name string) {
	f.principals[id] = principal.Principal{ID: id, Role: principal.RoleDoctor, Name: name}
}

func TestBookUnknownDoctor(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	_, err := svc.Book(context.Background(), "p1", "Pat", BookRequest{
		DoctorID: "missing", Date: "2025-06-01", Time: "10:00", Symptoms: "fever",
	})
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
	if len(repo.appointments) != 0 {
		t.Fatalf("expected no appointment to be created")
	}
}

func TestBookSlotNotOffered(t *testing.T) {
	svc, repo, principals, _ := newTestService(t)
	addDoctor(principals, "d1", "Dr. A")

	_, err := svc.Book(context.Background(), "p1", "Pat", BookRequest{
		DoctorID: "d1", Date: "2025-06-01", Time: "10:00", Symptoms: "fever",
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if len(repo.appointments) != 0 {
		t.Fatalf("expected no appointment to be created")
	}
}

func TestBookCreatesPendingWithMirrorAndRoster(t *testing.T) {
	svc, _, principals, slots := newTestService(t)
	addDoctor(principals, "d1", "Dr. A")
	slots.offered["d1|2025-06-01|10:00"] = true

	appt, err := svc.Book(context.Background(), "p1", "Pat", BookRequest{
		DoctorID: "d1", Date: "2025-06-01", Time: "10:00", Symptoms: "fever",
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if appt.Status != StatusPending {
		t.Fatalf("expected pending, got %s", appt.Status)
	}
	if appt.DoctorName != "Dr. A" {
		t.Fatalf("expected doctor name to be denormalized, got %q", appt.DoctorName)
	}

	history := principals.histories["p1"]
	if len(history) != 1 || history[0].AppointmentID != appt.ID || history[0].Status != StatusPending {
		t.Fatalf("unexpected history mirror: %+v", history)
	}
	if got := principals.rosters["d1"]; len(got) != 1 || got[0] != "p1" {
		t.Fatalf("unexpected roster: %v", got)
	}
}

func TestUpdateStatusWrongDoctorLeavesStatusUnchanged(t *testing.T) {
	svc, repo, principals, slots := newTestService(t)
	addDoctor(principals, "d1", "Dr. A")
	slots.offered["d1|2025-06-01|10:00"] = true

	appt, err := svc.Book(context.Background(), "p1", "Pat", BookRequest{
		DoctorID: "d1", Date: "2025-06-01", Time: "10:00", Symptoms: "fever",
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), "d2", appt.ID, StatusAccepted)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if repo.appointments[appt.ID].Status != StatusPending {
		t.Fatalf("status changed despite forbidden update")
	}
}

func TestUpdateStatusInvalidTarget(t *testing.T) {
	svc, _, principals, slots := newTestService(t)
	addDoctor(principals, "d1", "Dr. A")
	slots.offered["d1|2025-06-01|10:00"] = true

	appt, _ := svc.Book(context.Background(), "p1", "Pat", BookRequest{
		DoctorID: "d1", Date: "2025-06-01", Time: "10:00", Symptoms: "fever",
	})

	_, err := svc.UpdateStatus(context.Background(), "d1", appt.ID, "cancelled")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestAcceptedIsTerminal(t *testing.T) {
	svc, _, principals, slots := newTestService(t)
	addDoctor(principals, "d1", "Dr. A")
	slots.offered["d1|2025-06-01|10:00"] = true

	appt, _ := svc.Book(context.Background(), "p1", "Pat", BookRequest{
		DoctorID: "d1", Date: "2025-06-01", Time: "10:00", Symptoms: "fever",
	})
	if _, err := svc.UpdateStatus(context.Background(), "d1", appt.ID, StatusAccepted); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), "d1", appt.ID, StatusPending); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition reopening accepted, got %v", err)
	}
	if _, err := svc.Cancel(context.Background(), "p1", appt.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition cancelling accepted, got %v", err)
	}
}

func TestCancelByOtherPatientForbidden(t *testing.T) {
	svc, repo, principals, slots := newTestService(t)
	addDoctor(principals, "d1", "Dr. A")
	slots.offered["d1|2025-06-01|10:00"] = true

	appt, _ := svc.Book(context.Background(), "p1", "Pat", BookRequest{
		DoctorID: "d1", Date: "2025-06-01", Time: "10:00", Symptoms: "fever",
	})

	_, err := svc.Cancel(context.Background(), "p2", appt.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if repo.appointments[appt.ID].Status != StatusPending {
		t.Fatalf("status changed despite forbidden cancel")
	}
}

func TestCancelSyncsMirrorBySlot(t *testing.T) {
	svc, _, principals, slots := newTestService(t)
	addDoctor(principals, "d1", "Dr. A")
	slots.offered["d1|2025-06-01|10:00"] = true

	appt, _ := svc.Book(context.Background(), "p1", "Pat", BookRequest{
		DoctorID: "d1", Date: "2025-06-01", Time: "10:00", Symptoms: "fever",
	})

	updated, err := svc.Cancel(context.Background(), "p1", appt.ID)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if updated.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}
	if principals.histories["p1"][0].Status != StatusCancelled {
		t.Fatalf("history mirror not synced: %+v", principals.histories["p1"])
	}
}

func TestBookThenAcceptFlow(t *testing.T) {
	svc, _, principals, slots := newTestService(t)
	addDoctor(principals, "d1", "Dr. A")
	slots.offered["d1|2025-06-01|10:00"] = true

	appt, err := svc.Book(context.Background(), "p1", "Pat", BookRequest{
		DoctorID: "d1", Date: "2025-06-01", Time: "10:00", Symptoms: "fever",
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), "d1", appt.ID, StatusAccepted)
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if updated.Status != StatusAccepted {
		t.Fatalf("expected accepted, got %s", updated.Status)
	}
	if got := principals.rosters["d1"]; len(got) != 1 || got[0] != "p1" {
		t.Fatalf("expected patient on roster, got %v", got)
	}
	if principals.histories["p1"][0].Status != StatusAccepted {
		t.Fatalf("history mirror not synced: %+v", principals.histories["p1"])
	}
}

func TestPrescribeMirrorsIntoHistory(t *testing.T) {
	svc, _, principals, slots := newTestService(t)
	addDoctor(principals, "d1", "Dr. A")
	slots.offered["d1|2025-06-01|10:00"] = true

	appt, _ := svc.Book(context.Background(), "p1", "Pat", BookRequest{
		DoctorID: "d1", Date: "2025-06-01", Time: "10:00", Symptoms: "fever",
	})

	updated, err := svc.Prescribe(context.Background(), "d1", appt.ID, "paracetamol 500mg")
	if err != nil {
		t.Fatalf("Prescribe error: %v", err)
	}
	if updated.Prescription != "paracetamol 500mg" {
		t.Fatalf("unexpected prescription: %q", updated.Prescription)
	}
	if principals.histories["p1"][0].Prescription != "paracetamol 500mg" {
		t.Fatalf("prescription not mirrored: %+v", principals.histories["p1"])
	}
}

func TestUpdateStatusUnknownAppointment(t *testing.T) {
	svc, _, principals, _ := newTestService(t)
	addDoctor(principals, "d1", "Dr. A")

	_, err := svc.UpdateStatus(context.Background(), "d1", "missing", StatusAccepted)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
