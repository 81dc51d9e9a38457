package appointment

import (
	"context"
	"log/slog"
	"time"

	"curehub-backend/internal/principal"
)

// MirrorStore is the slice of the principal repository the reconciler writes
// through. Implemented by principal.MongoRepository.
type MirrorStore interface {
	ListIDsByRole(ctx context.Context, role string) ([]string, error)
	ReplaceHistory(ctx context.Context, patientID string, entries []principal.HistoryEntry) error
}

// Reconciler rebuilds every patient's denormalized history mirror from the
// appointment collection. Booking and status changes write the mirror
// best-effort with no transaction, so a crash between writes can leave it
// stale; the appointment collection is the source of truth and this job
// restores the derived view.
type Reconciler struct {
	repo    Repository
	mirrors MirrorStore
	log     *slog.Logger
}

func NewReconciler(repo Repository, mirrors MirrorStore, log *slog.Logger) *Reconciler {
	return &Reconciler{repo: repo, mirrors: mirrors, log: log}
}

func (rc *Reconciler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	patients, rebuilt, err := rc.reconcile(ctx)
	if err != nil {
		rc.log.Error("mirror reconcile: failed", slog.String("error", err.Error()))
		return
	}
	rc.log.Info("mirror reconcile: ok",
		slog.Int("patients", patients),
		slog.Int("rebuilt", rebuilt),
		slog.Duration("duration", time.Since(start)),
	)
}

func (rc *Reconciler) reconcile(ctx context.Context) (int, int, error) {
	patientIDs, err := rc.mirrors.ListIDsByRole(ctx, principal.RolePatient)
	if err != nil {
		return 0, 0, err
	}

	rebuilt := 0
	for _, patientID := range patientIDs {
		appts, err := rc.repo.ListByPatient(ctx, patientID)
		if err != nil {
			rc.log.Warn("mirror reconcile: list failed",
				slog.String("patient_id", patientID),
				slog.String("error", err.Error()),
			)
			continue
		}

		entries := make([]principal.HistoryEntry, 0, len(appts))
		for _, appt := range appts {
			entries = append(entries, mirrorEntry(appt))
		}

		if err := rc.mirrors.ReplaceHistory(ctx, patientID, entries); err != nil {
			rc.log.Warn("mirror reconcile: replace failed",
				slog.String("patient_id", patientID),
				slog.String("error", err.Error()),
			)
			continue
		}
		rebuilt++
	}

	return len(patientIDs), rebuilt, nil
}
