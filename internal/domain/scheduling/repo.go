package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ListFilter struct {
	PatientID    *uuid.UUID
	SpecialistID *uuid.UUID
	From         *time.Time
	To           *time.Time
	Status       string
	Limit        int
	Offset       int
}

// Participant is what booking needs to know about a patient or specialist.
type Participant struct {
	Exists      bool
	Active      bool
	Specialties []uuid.UUID
}

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Appointment, int, error)

	// LockParticipants serializes bookings touching the specialist or the
	// patient until the surrounding transaction ends. The specialist lock is
	// always taken before the patient lock.
	LockParticipants(ctx context.Context, specialistID, patientID uuid.UUID) error
	// SpecialistOverlaps and PatientOverlaps count blocking appointments
	// overlapping w, ignoring the appointment exclude.
	SpecialistOverlaps(ctx context.Context, specialistID uuid.UUID, w Window, exclude uuid.UUID) (int, error)
	PatientOverlaps(ctx context.Context, patientID uuid.UUID, w Window, exclude uuid.UUID) (int, error)

	Patient(ctx context.Context, id uuid.UUID) (Participant, error)
	Specialist(ctx context.Context, staffID uuid.UUID) (Participant, error)
}
