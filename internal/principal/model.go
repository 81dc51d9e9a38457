package principal

import "time"

const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

var validRoles = map[string]struct{}{
	RoleAdmin:   {},
	RoleDoctor:  {},
	RolePatient: {},
}

func IsValidRole(value string) bool {
	_, ok := validRoles[value]
	return ok
}

// Self-service registration is limited to doctors and patients; admin
// accounts are provisioned by the seed command.
func IsRegistrableRole(value string) bool {
	return value == RoleDoctor || value == RolePatient
}

// AvailabilityEntry is one date in a doctor's availability ledger. TimeSlots
// is treated as a set: merges collapse duplicates, and removing the last slot
// prunes the whole entry.
type AvailabilityEntry struct {
	Date      string   `bson:"date" json:"date"`
	TimeSlots []string `bson:"timeSlots" json:"timeSlots"`
}

// HistoryEntry is a patient's denormalized mirror of one appointment. The
// appointment collection is the source of truth; these entries are a derived
// convenience view and are rebuilt by the reconciler when writes to them are
// lost.
type HistoryEntry struct {
	AppointmentID string `bson:"appointmentId" json:"appointmentId"`
	DoctorID      string `bson:"doctorId" json:"doctorId"`
	Symptoms      string `bson:"symptoms" json:"symptoms"`
	Date          string `bson:"date" json:"date"`
	Time          string `bson:"time" json:"time"`
	Status        string `bson:"status" json:"status"`
	Prescription  string `bson:"prescription,omitempty" json:"prescription,omitempty"`
}

// Principal is the single user record for all three roles. The role tag
// discriminates; the doctor and patient attribute bundles are populated only
// for their respective roles. Ids are UUIDs generated once at creation,
// independent of role, so identity resolution never probes per-role
// collections.
type Principal struct {
	ID           string `bson:"_id" json:"id"`
	Role         string `bson:"role" json:"role"`
	Name         string `bson:"name" json:"name"`
	Email        string `bson:"email" json:"email"`
	PasswordHash string `bson:"passwordHash" json:"-"`

	Age    int    `bson:"age,omitempty" json:"age,omitempty"`
	Gender string `bson:"gender,omitempty" json:"gender,omitempty"`
	Mobile string `bson:"mobile,omitempty" json:"mobile,omitempty"`

	// doctor bundle
	Specialization string              `bson:"specialization,omitempty" json:"specialization,omitempty"`
	Degree         string              `bson:"degree,omitempty" json:"degree,omitempty"`
	Experience     int                 `bson:"experience,omitempty" json:"experience,omitempty"`
	Bio            string              `bson:"bio,omitempty" json:"bio,omitempty"`
	Availability   []AvailabilityEntry `bson:"availability,omitempty" json:"availability,omitempty"`
	Roster         []string            `bson:"roster,omitempty" json:"roster,omitempty"`

	// patient bundle
	History []HistoryEntry `bson:"history,omitempty" json:"history,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
