package appointment

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"curehub-backend/internal/principal"
)

func TestReconcilerRebuildsStaleMirror(t *testing.T) {
	svc, repo, principals, slots := newTestService(t)
	addDoctor(principals, "d1", "Dr. A")
	principals.principals["p1"] = principal.Principal{ID: "p1", Role: principal.RolePatient, Name: "Pat"}
	slots.offered["d1|2025-06-01|10:00"] = true

	appt, err := svc.Book(context.Background(), "p1", "Pat", BookRequest{
		DoctorID: "d1", Date: "2025-06-01", Time: "10:00", Symptoms: "fever",
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), "d1", appt.ID, StatusAccepted); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}

	// Simulate a lost mirror write.
	principals.histories["p1"] = nil

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rc := NewReconciler(repo, principals, logger)
	patients, rebuilt, err := rc.reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile error: %v", err)
	}
	if patients != 1 || rebuilt != 1 {
		t.Fatalf("expected 1 patient rebuilt, got patients=%d rebuilt=%d", patients, rebuilt)
	}

	history := principals.histories["p1"]
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if history[0].AppointmentID != appt.ID || history[0].Status != StatusAccepted {
		t.Fatalf("unexpected rebuilt entry: %+v", history[0])
	}
}
