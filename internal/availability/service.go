package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"curehub-backend/internal/principal"

	"go.mongodb.org/mongo-driver/mongo"
)

var ErrDoctorNotFound = errors.New("doctor not found")

// Ledger is the slice of the principal store the availability service needs.
// Implemented by principal.MongoRepository.
type Ledger interface {
	Ledger(ctx context.Context, doctorID string) ([]principal.AvailabilityEntry, error)
	SetLedger(ctx context.Context, doctorID string, entries []principal.AvailabilityEntry, now time.Time) (bool, error)
}

type Service struct {
	ledger   Ledger
	location *time.Location
}

func NewService(ledger Ledger, location *time.Location) *Service {
	return &Service{ledger: ledger, location: location}
}

// AddSlots unions newSlots into the doctor's entry for date and returns the
// full updated ledger. The write replaces the whole availability array;
// concurrent merges resolve last-write-wins, which the soft availability
// model accepts.
func (s *Service) AddSlots(ctx context.Context, doctorID, date string, newSlots []string) ([]principal.AvailabilityEntry, error) {
	entries, err := s.load(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	updated := ApplyAdd(entries, strings.TrimSpace(date), newSlots)
	if err := s.store(ctx, doctorID, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) RemoveSlot(ctx context.Context, doctorID, date, slot string) ([]principal.AvailabilityEntry, error) {
	entries, err := s.load(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	updated := ApplyRemove(entries, strings.TrimSpace(date), strings.TrimSpace(slot))
	if err := s.store(ctx, doctorID, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) ListLedger(ctx context.Context, doctorID string) ([]principal.AvailabilityEntry, error) {
	entries, err := s.load(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []principal.AvailabilityEntry{}
	}
	return entries, nil
}

func (s *Service) ListSlots(ctx context.Context, doctorID, date string) ([]string, error) {
	entries, err := s.load(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return SlotsFor(entries, strings.TrimSpace(date)), nil
}

// HasSlot reports whether (date, slot) is currently offered by the doctor.
// Presence only: booking does not claim or decrement the slot.
func (s *Service) HasSlot(ctx context.Context, doctorID, date, slot string) (bool, error) {
	entries, err := s.load(ctx, doctorID)
	if err != nil {
		return false, err
	}
	return HasSlot(entries, date, slot), nil
}

func (s *Service) load(ctx context.Context, doctorID string) ([]principal.AvailabilityEntry, error) {
	entries, err := s.ledger.Ledger(ctx, strings.TrimSpace(doctorID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return entries, nil
}

func (s *Service) store(ctx context.Context, doctorID string, entries []principal.AvailabilityEntry) error {
	matched, err := s.ledger.SetLedger(ctx, strings.TrimSpace(doctorID), entries, time.Now().In(s.location))
	if err != nil {
		return err
	}
	if !matched {
		return ErrDoctorNotFound
	}
	return nil
}
