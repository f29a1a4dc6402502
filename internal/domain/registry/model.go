package registry

import "time"

// Status classifies a patient's most recent heart-rate reading.
type Status string

const (
	// StatusUnknown means no reading has been recorded yet.
	StatusUnknown Status = "unknown"
	// StatusTachycardic means the latest reading exceeded the age-adjusted threshold.
	StatusTachycardic Status = "tachycardic"
	// StatusNotTachycardic means the latest reading was at or below the threshold.
	StatusNotTachycardic Status = "not-tachycardic"
)

// Reading is a single heart-rate measurement and the time it was taken.
// Readings are appended in non-decreasing time order; the store never re-sorts.
type Reading struct {
	HeartRate int       `json:"heart_rate"`
	Taken     time.Time `json:"timestamp"`
}

// Patient is a monitored patient. Readings and Status are mutated only by
// RecordReading; the attending assignment is fixed at registration.
type Patient struct {
	ID        int       `json:"patient_id"`
	Attending string    `json:"attending_username"`
	Age       int       `json:"patient_age"`
	Readings  []Reading `json:"readings"`
	Status    Status    `json:"status"`
}

// Attending is the clinician responsible for a set of patients and the
// recipient of tachycardia alerts. Patients holds patient ids in
// registration order.
type Attending struct {
	Username string `json:"attending_username"`
	Email    string `json:"attending_email"`
	Phone    string `json:"attending_phone"`
	Patients []int  `json:"patients"`
}
