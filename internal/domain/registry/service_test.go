package registry

import (
	"errors"
	"testing"
)

func TestService_RegisterAttending_Validation(t *testing.T) {
	svc := NewService(NewStore())

	tests := []struct {
		name     string
		username string
		email    string
		phone    string
		wantErr  bool
	}{
		{"valid", "Gray.S", "dr.gray@hospital.org", "555-0100", false},
		{"missing username", "", "dr.gray@hospital.org", "555-0100", true},
		{"missing email", "Yang.C", "", "555-0100", true},
		{"missing phone is fine", "Yang.C", "dr.yang@hospital.org", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.RegisterAttending(tt.username, tt.email, tt.phone)
			if (err != nil) != tt.wantErr {
				t.Errorf("RegisterAttending() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_RegisterPatient_Validation(t *testing.T) {
	svc := NewService(NewStore())
	if err := svc.RegisterAttending("Gray.S", "dr.gray@hospital.org", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name      string
		id        int
		attending string
		age       int
		wantErr   bool
	}{
		{"valid", 602, "Gray.S", 35, false},
		{"negative id", -1, "Gray.S", 35, true},
		{"missing attending", 603, "", 35, true},
		{"negative age", 603, "Gray.S", -5, true},
		{"zero age is valid", 604, "Gray.S", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.RegisterPatient(tt.id, tt.attending, tt.age)
			if (err != nil) != tt.wantErr {
				t.Errorf("RegisterPatient() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_RegisterPatient_PropagatesStoreErrors(t *testing.T) {
	svc := NewService(NewStore())

	err := svc.RegisterPatient(602, "Nobody.X", 35)
	if !errors.Is(err, ErrAttendingNotFound) {
		t.Fatalf("expected ErrAttendingNotFound, got %v", err)
	}
}

func TestService_Attending_Lookup(t *testing.T) {
	svc := NewService(NewStore())
	if err := svc.RegisterAttending("Gray.S", "dr.gray@hospital.org", "555-0100"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, err := svc.Attending("Gray.S")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Email != "dr.gray@hospital.org" || a.Phone != "555-0100" {
		t.Errorf("unexpected attending record: %+v", a)
	}

	if _, err := svc.Attending("Nobody.X"); !errors.Is(err, ErrAttendingNotFound) {
		t.Errorf("expected ErrAttendingNotFound, got %v", err)
	}
}

func TestService_ListPatients(t *testing.T) {
	svc := NewService(NewStore())
	if err := svc.RegisterAttending("Gray.S", "dr.gray@hospital.org", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []int{3, 1, 2} {
		if err := svc.RegisterPatient(id, "Gray.S", 20); err != nil {
			t.Fatalf("register %d: %v", id, err)
		}
	}

	patients, total := svc.ListPatients(10, 0)
	if total != 3 || len(patients) != 3 {
		t.Fatalf("expected 3 patients, got len=%d total=%d", len(patients), total)
	}
	if patients[0].ID != 1 || patients[1].ID != 2 || patients[2].ID != 3 {
		t.Errorf("patients not ordered by id: %+v", patients)
	}
}
