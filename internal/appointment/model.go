package appointment

import "time"

const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

var validStatuses = map[string]struct{}{
	StatusPending:   {},
	StatusAccepted:  {},
	StatusRejected:  {},
	StatusCancelled: {},
}

func IsValidStatus(value string) bool {
	_, ok := validStatuses[value]
	return ok
}

// IsDoctorDecision reports whether a doctor may request this target status.
// Cancellation belongs to the patient.
func IsDoctorDecision(value string) bool {
	return value == StatusAccepted || value == StatusRejected || value == StatusPending
}

// CanTransition encodes the one-way lifecycle: pending may move to any
// status (pending included, as a no-op), and accepted, rejected and
// cancelled are terminal.
func CanTransition(from, to string) bool {
	if !IsValidStatus(from) || !IsValidStatus(to) {
		return false
	}
	return from == StatusPending
}

type Appointment struct {
	ID           string    `bson:"_id" json:"id"`
	PatientID    string    `bson:"patientId" json:"patientId"`
	DoctorID     string    `bson:"doctorId" json:"doctorId"`
	PatientName  string    `bson:"patientName" json:"patientName"`
	DoctorName   string    `bson:"doctorName" json:"doctorName"`
	Symptoms     string    `bson:"symptoms" json:"symptoms"`
	Date         string    `bson:"date" json:"date"`
	Time         string    `bson:"time" json:"time"`
	Status       string    `bson:"status" json:"status"`
	Prescription string    `bson:"prescription,omitempty" json:"prescription,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}
