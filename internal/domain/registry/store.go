// Package registry holds the in-memory patient and attending registry that
// the vitals engine operates on. The store exclusively owns both collections;
// other components receive copies and never cache store state.
package registry

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrPatientNotFound    = errors.New("patient not found")
	ErrAttendingNotFound  = errors.New("attending not found")
	ErrDuplicatePatient   = errors.New("patient already registered")
	ErrDuplicateAttending = errors.New("attending already registered")
)

// ClassifyFunc maps (age, heart rate) to a tachycardia flag. It is passed
// into RecordReading so the store itself carries no clinical rules.
type ClassifyFunc func(age, heartRate int) bool

// ReadingReceipt is the copied dispatch data returned by RecordReading.
// It carries everything the alert path needs so no lock is held while the
// notification sink is called.
type ReadingReceipt struct {
	PatientID      int
	Reading        Reading
	Status         Status
	Tachycardic    bool
	Attending      string
	AttendingEmail string
	AttendingKnown bool
}

// Store is the thread-safe in-memory registry. A single registry-wide
// RWMutex guards both collections and the patient->attending index, so a
// reader never observes a patient registered but not yet associated, and
// never observes a reading without its derived status.
type Store struct {
	mu         sync.RWMutex
	patients   map[int]*Patient
	attendings map[string]*Attending
	attendedBy map[int]string // patient id -> attending username
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		patients:   make(map[int]*Patient),
		attendings: make(map[string]*Attending),
		attendedBy: make(map[int]string),
	}
}

// RegisterAttending adds a new attending with an empty patient list.
// Re-registering an existing username is rejected and leaves the store
// untouched.
func (s *Store) RegisterAttending(username, email, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attendings[username]; ok {
		return ErrDuplicateAttending
	}
	s.attendings[username] = &Attending{
		Username: username,
		Email:    email,
		Phone:    phone,
	}
	return nil
}

// RegisterPatient adds a new patient with an empty series and StatusUnknown
// and associates it with the named attending. If the attending does not
// exist, neither the patient record nor the association is created.
func (s *Store) RegisterPatient(id int, attendingUsername string, age int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patients[id]; ok {
		return ErrDuplicatePatient
	}
	att, ok := s.attendings[attendingUsername]
	if !ok {
		return ErrAttendingNotFound
	}

	s.patients[id] = &Patient{
		ID:        id,
		Attending: attendingUsername,
		Age:       age,
		Status:    StatusUnknown,
	}
	att.Patients = append(att.Patients, id)
	s.attendedBy[id] = attendingUsername
	return nil
}

// Patient returns a copy of the patient record, including its series.
func (s *Store) Patient(id int) (Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patients[id]
	if !ok {
		return Patient{}, ErrPatientNotFound
	}
	return copyPatient(p), nil
}

// Attending returns a copy of the attending record, including its patient list.
func (s *Store) Attending(username string) (Attending, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.attendings[username]
	if !ok {
		return Attending{}, ErrAttendingNotFound
	}
	out := *a
	out.Patients = append([]int(nil), a.Patients...)
	return out, nil
}

// AttendingOf resolves the attending responsible for a patient via the
// reverse index.
func (s *Store) AttendingOf(patientID int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username, ok := s.attendedBy[patientID]
	if !ok {
		return "", ErrAttendingNotFound
	}
	return username, nil
}

// RecordReading appends a reading to the patient's series, classifies it with
// the supplied ClassifyFunc against the patient's current age, and updates the
// status, all inside one critical section. The status is set on both branches,
// overwriting any prior value. When the reading is tachycardic the attending's
// contact data is copied into the receipt so the caller can dispatch the alert
// after the lock is released.
func (s *Store) RecordReading(id int, r Reading, classify ClassifyFunc) (ReadingReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patients[id]
	if !ok {
		return ReadingReceipt{}, ErrPatientNotFound
	}

	p.Readings = append(p.Readings, r)
	tachycardic := classify(p.Age, r.HeartRate)
	if tachycardic {
		p.Status = StatusTachycardic
	} else {
		p.Status = StatusNotTachycardic
	}

	receipt := ReadingReceipt{
		PatientID:   id,
		Reading:     r,
		Status:      p.Status,
		Tachycardic: tachycardic,
	}
	if tachycardic {
		if username, ok := s.attendedBy[id]; ok {
			receipt.Attending = username
			receipt.AttendingEmail = s.attendings[username].Email
			receipt.AttendingKnown = true
		}
	}
	return receipt, nil
}

// Series returns a copy of the patient's full ordered reading series.
func (s *Store) Series(id int) ([]Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return append([]Reading(nil), p.Readings...), nil
}

// RosterOf returns the ids of an attending's patients in registration order.
// An unknown username is an error; a registered attending with no patients
// yields an empty slice.
func (s *Store) RosterOf(username string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.attendings[username]
	if !ok {
		return nil, ErrAttendingNotFound
	}
	return append([]int(nil), a.Patients...), nil
}

// Patients returns a page of patient records ordered by id and the total count.
func (s *Store) Patients(limit, offset int) ([]Patient, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, 0, len(s.patients))
	for id := range s.patients {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	total := len(ids)
	if offset >= total {
		return []Patient{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]Patient, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, copyPatient(s.patients[id]))
	}
	return out, total
}

func copyPatient(p *Patient) Patient {
	out := *p
	out.Readings = append([]Reading(nil), p.Readings...)
	return out
}
