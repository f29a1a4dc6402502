package vitals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heartwatch/heartwatch/internal/domain/registry"
)

var (
	// ErrNoReadings means an aggregate was requested over an empty series.
	// Distinct from registry.ErrPatientNotFound.
	ErrNoReadings = errors.New("no readings recorded for patient")
	// ErrOutOfRange means an interval query's reference time is later than
	// every stored timestamp.
	ErrOutOfRange = errors.New("no readings at or after the requested time")
)

// Registry is the slice of the patient registry the vitals engine needs.
// *registry.Store satisfies it.
type Registry interface {
	RecordReading(id int, r registry.Reading, classify registry.ClassifyFunc) (registry.ReadingReceipt, error)
	Series(id int) ([]registry.Reading, error)
	Patient(id int) (registry.Patient, error)
	RosterOf(username string) ([]int, error)
}

// Sink delivers a tachycardia alert to an attending. Its response text or
// error is surfaced unchanged as the alert outcome; the engine never retries.
type Sink interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// Publisher receives an event for every accepted reading, after the registry
// lock has been released. Implementations must not block.
type Publisher interface {
	PublishReading(res RecordResult)
}

// AlertOutcome reports what happened to the alert for one tachycardic
// reading. Delivery failure never rolls back the stored reading.
type AlertOutcome struct {
	Recipient string `json:"recipient,omitempty"`
	Delivered bool   `json:"delivered"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RecordResult is the observable outcome of one ingested reading: the stored
// reading with its derived status, plus the alert outcome when the reading
// was tachycardic. Storage success and alert success are independent.
type RecordResult struct {
	PatientID int              `json:"patient_id"`
	Reading   registry.Reading `json:"reading"`
	Status    registry.Status  `json:"status"`
	Alert     *AlertOutcome    `json:"alert,omitempty"`
}

// Snapshot is a patient's latest vital state. HasReading is false while the
// series is still empty, in which case HeartRate and Taken are zero values.
type Snapshot struct {
	PatientID  int             `json:"patient_id"`
	HeartRate  int             `json:"heart_rate"`
	Taken      time.Time       `json:"timestamp"`
	Status     registry.Status `json:"status"`
	HasReading bool            `json:"-"`
}

// RosterEntry is one patient's latest vitals in an attending's roster.
type RosterEntry struct {
	PatientID     int             `json:"patient_id"`
	LastHeartRate int             `json:"last_heart_rate"`
	LastTaken     string          `json:"last_heart_rate_timestamp"`
	Status        registry.Status `json:"status"`
}

// Service is the vital-sign engine: ingestion, classification, aggregation
// and alert dispatch over the registry.
type Service struct {
	reg      Registry
	sink     Sink
	pub      Publisher
	classify registry.ClassifyFunc
}

// NewService creates a Service using the age-banded classifier. pub may be
// nil when no live feed is wired.
func NewService(reg Registry, sink Sink, pub Publisher) *Service {
	return &Service{
		reg:      reg,
		sink:     sink,
		pub:      pub,
		classify: IsTachycardic,
	}
}

// Record appends a reading to the patient's series. Append, classification
// and status update happen inside one registry critical section; the alert
// is dispatched afterwards from copied data so the sink never blocks the
// registry. The sink outcome is reported in the result, never as an
// ingestion error.
func (s *Service) Record(ctx context.Context, patientID, heartRate int, taken time.Time) (RecordResult, error) {
	receipt, err := s.reg.RecordReading(patientID, registry.Reading{HeartRate: heartRate, Taken: taken}, s.classify)
	if err != nil {
		return RecordResult{}, err
	}

	res := RecordResult{
		PatientID: receipt.PatientID,
		Reading:   receipt.Reading,
		Status:    receipt.Status,
	}

	if receipt.Tachycardic {
		res.Alert = s.dispatch(ctx, receipt)
	}

	if s.pub != nil {
		s.pub.PublishReading(res)
	}
	return res, nil
}

func (s *Service) dispatch(ctx context.Context, receipt registry.ReadingReceipt) *AlertOutcome {
	if !receipt.AttendingKnown {
		return &AlertOutcome{Error: registry.ErrAttendingNotFound.Error()}
	}

	subject, body := alertMessage(receipt)
	response, err := s.sink.Send(ctx, receipt.AttendingEmail, subject, body)
	if err != nil {
		return &AlertOutcome{Recipient: receipt.AttendingEmail, Error: err.Error()}
	}
	return &AlertOutcome{Recipient: receipt.AttendingEmail, Delivered: true, Response: response}
}

// alertMessage renders the fixed tachycardia notification for a reading.
func alertMessage(receipt registry.ReadingReceipt) (subject, body string) {
	subject = fmt.Sprintf("Tachycardia alert: patient %d", receipt.PatientID)
	body = fmt.Sprintf(
		"Patient %d recorded a heart rate of %d at %s. Please review.",
		receipt.PatientID,
		receipt.Reading.HeartRate,
		receipt.Reading.Taken.Format(TimestampLayout),
	)
	return subject, body
}

// Current returns the most recent reading in a patient's series.
func (s *Service) Current(patientID int) (registry.Reading, error) {
	series, err := s.reg.Series(patientID)
	if err != nil {
		return registry.Reading{}, err
	}
	if len(series) == 0 {
		return registry.Reading{}, ErrNoReadings
	}
	return series[len(series)-1], nil
}

// Series returns the patient's heart rates in chronological order.
func (s *Service) Series(patientID int) ([]int, error) {
	series, err := s.reg.Series(patientID)
	if err != nil {
		return nil, err
	}
	rates := make([]int, len(series))
	for i, r := range series {
		rates[i] = r.HeartRate
	}
	return rates, nil
}

// Average returns the arithmetic mean over the patient's full series.
func (s *Service) Average(patientID int) (float64, error) {
	series, err := s.reg.Series(patientID)
	if err != nil {
		return 0, err
	}
	if len(series) == 0 {
		return 0, ErrNoReadings
	}
	return mean(series), nil
}

// AverageSince returns the mean of the readings taken at or after since.
// Ties on the boundary are included. A reference time later than every
// stored timestamp is ErrOutOfRange.
func (s *Service) AverageSince(patientID int, since time.Time) (float64, error) {
	series, err := s.reg.Series(patientID)
	if err != nil {
		return 0, err
	}
	if len(series) == 0 {
		return 0, ErrNoReadings
	}
	for i, r := range series {
		if !r.Taken.Before(since) {
			return mean(series[i:]), nil
		}
	}
	return 0, ErrOutOfRange
}

// Snapshot returns the patient's latest reading, its timestamp and the
// current status. A patient with no readings yet has StatusUnknown and
// HasReading false.
func (s *Service) Snapshot(patientID int) (Snapshot, error) {
	p, err := s.reg.Patient(patientID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{PatientID: p.ID, Status: p.Status}
	if n := len(p.Readings); n > 0 {
		last := p.Readings[n-1]
		snap.HeartRate = last.HeartRate
		snap.Taken = last.Taken
		snap.HasReading = true
	}
	return snap, nil
}

// Roster returns one entry per patient of the attending, in registration
// order, each built from the patient's snapshot. An unknown username is an
// error; an attending with no patients yields an empty slice.
func (s *Service) Roster(username string) ([]RosterEntry, error) {
	ids, err := s.reg.RosterOf(username)
	if err != nil {
		return nil, err
	}

	roster := make([]RosterEntry, 0, len(ids))
	for _, id := range ids {
		snap, err := s.Snapshot(id)
		if err != nil {
			return nil, err
		}
		entry := RosterEntry{PatientID: id, Status: snap.Status}
		if snap.HasReading {
			entry.LastHeartRate = snap.HeartRate
			entry.LastTaken = snap.Taken.Format(TimestampLayout)
		}
		roster = append(roster, entry)
	}
	return roster, nil
}

func mean(readings []registry.Reading) float64 {
	sum := 0
	for _, r := range readings {
		sum += r.HeartRate
	}
	return float64(sum) / float64(len(readings))
}
