//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/staff"
)

func TestStaff_RegisterSpecialist(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cardio := e.specialty(t, "Cardiología")
	pediatria := e.specialty(t, "Pediatría")

	s := e.registerSpecialist(t, "Laura", "Méndez", "3.210.987", cardio, pediatria, cardio)
	if s.Position != "Medico" {
		t.Errorf("expected position Medico, got %q", s.Position)
	}

	sp, err := e.Staff.GetSpecialist(ctx, s.ID)
	if err != nil {
		t.Fatalf("get specialist: %v", err)
	}
	if sp.CalendarColor != staff.DefaultCalendarColor {
		t.Errorf("expected default color, got %s", sp.CalendarColor)
	}
	if len(sp.SpecialtyIDs) != 2 {
		t.Errorf("expected 2 deduplicated specialties, got %v", sp.SpecialtyIDs)
	}

	items, total, err := e.Staff.List(ctx, staff.ListFilter{SpecialtyID: &pediatria, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != s.ID {
		t.Errorf("expected the specialist listed under pediatria, got total=%d", total)
	}
}

func TestStaff_UnknownSpecialtyRollsBack(t *testing.T) {
	e := newEnv(t)

	_, err := e.Staff.Register(context.Background(), &staff.Registration{
		Person:     adult("Raúl", "Ortiz", "808"),
		PositionID: e.positionID(t, "Medico"),
		Specialist: &staff.Specialist{License: "MP-808", SpecialtyIDs: []uuid.UUID{uuid.New()}},
	})
	if !errors.Is(err, staff.ErrUnknownSpecialty) {
		t.Fatalf("expected ErrUnknownSpecialty, got %v", err)
	}
	for _, table := range []string{"personas", "funcionarios", "especialistas", "especialista_especialidades"} {
		if n := e.count(t, table); n != 0 {
			t.Errorf("expected %s empty after rollback, got %d", table, n)
		}
	}
}

func TestStaff_NonSpecialistPosition(t *testing.T) {
	e := newEnv(t)

	s, err := e.Staff.Register(context.Background(), &staff.Registration{
		Person:     adult("Sofía", "Acosta", "909"),
		PositionID: e.positionID(t, "Recepcionista"),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if s.Specialist != nil {
		t.Error("expected no specialist data for a receptionist")
	}
	if e.count(t, "especialistas") != 0 {
		t.Error("expected no especialistas row")
	}
}

func TestStaff_UpdateDropsSpecialist(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s := e.registerSpecialist(t, "Mario", "Vera", "606", e.specialty(t, "Clínica médica"))

	_, err := e.Staff.Update(ctx, s.ID, &staff.Registration{
		Person:     *s.Person,
		PositionID: e.positionID(t, "Administrativo"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if e.count(t, "especialistas") != 0 || e.count(t, "especialista_especialidades") != 0 {
		t.Error("expected specialist rows removed after moving to a non-specialist position")
	}
}

func TestStaff_DeleteKeepsPersonWithPatientRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s := e.registerSpecialist(t, "Irene", "Sosa", "707", e.specialty(t, "Dermatología"))
	pid := s.PersonID
	if _, err := e.Patients.Register(ctx, &patient.Registration{PersonID: &pid}); err != nil {
		t.Fatalf("register the same person as patient: %v", err)
	}

	if err := e.Staff.Delete(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if e.count(t, "funcionarios") != 0 {
		t.Error("expected staff row removed")
	}
	if e.count(t, "personas") != 1 {
		t.Error("expected person kept while a patient references it")
	}
}
