package registry

import "fmt"

// Service validates registration input before it reaches the store. The
// request layer has already coerced field types; this layer enforces the
// registry's own rules.
type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) RegisterAttending(username, email, phone string) error {
	if username == "" {
		return fmt.Errorf("attending_username is required")
	}
	if email == "" {
		return fmt.Errorf("attending_email is required")
	}
	return s.store.RegisterAttending(username, email, phone)
}

func (s *Service) RegisterPatient(id int, attendingUsername string, age int) error {
	if id < 0 {
		return fmt.Errorf("patient_id must be non-negative")
	}
	if attendingUsername == "" {
		return fmt.Errorf("attending_username is required")
	}
	if age < 0 {
		return fmt.Errorf("patient_age must be non-negative")
	}
	return s.store.RegisterPatient(id, attendingUsername, age)
}

func (s *Service) Patient(id int) (Patient, error) {
	return s.store.Patient(id)
}

func (s *Service) Attending(username string) (Attending, error) {
	return s.store.Attending(username)
}

func (s *Service) ListPatients(limit, offset int) ([]Patient, int) {
	return s.store.Patients(limit, offset)
}
