package staff

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/person"
	"github.com/clinic/clinic/internal/platform/apperr"
)

type store struct {
	persons     map[uuid.UUID]*person.Person
	staff       map[uuid.UUID]*Staff
	specialists map[uuid.UUID]*Specialist
	specialties map[uuid.UUID][]uuid.UUID
	positions   map[uuid.UUID]*Position
	known       map[uuid.UUID]bool
	patientRefs map[uuid.UUID]int

	journal []string
	writes  int
	txs     int
}

func newStore() *store {
	return &store{
		persons:     make(map[uuid.UUID]*person.Person),
		staff:       make(map[uuid.UUID]*Staff),
		specialists: make(map[uuid.UUID]*Specialist),
		specialties: make(map[uuid.UUID][]uuid.UUID),
		positions:   make(map[uuid.UUID]*Position),
		known:       make(map[uuid.UUID]bool),
		patientRefs: make(map[uuid.UUID]int),
	}
}

func (s *store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txs++
	persons := make(map[uuid.UUID]*person.Person, len(s.persons))
	for k, v := range s.persons {
		persons[k] = v
	}
	staff := make(map[uuid.UUID]*Staff, len(s.staff))
	for k, v := range s.staff {
		staff[k] = v
	}
	specialists := make(map[uuid.UUID]*Specialist, len(s.specialists))
	for k, v := range s.specialists {
		specialists[k] = v
	}
	specialties := make(map[uuid.UUID][]uuid.UUID, len(s.specialties))
	for k, v := range s.specialties {
		specialties[k] = v
	}
	if err := fn(ctx); err != nil {
		s.persons, s.staff, s.specialists, s.specialties = persons, staff, specialists, specialties
		return err
	}
	return nil
}

func (s *store) addPosition(description string) uuid.UUID {
	id := uuid.New()
	s.positions[id] = &Position{ID: id, Description: description, Active: true}
	return id
}

func (s *store) addSpecialty() uuid.UUID {
	id := uuid.New()
	s.known[id] = true
	return id
}

type fakePersons struct{ s *store }

func (r fakePersons) Create(_ context.Context, p *person.Person) error {
	r.s.writes++
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	c := *p
	r.s.persons[p.ID] = &c
	return nil
}

func (r fakePersons) GetByID(_ context.Context, id uuid.UUID) (*person.Person, error) {
	p, ok := r.s.persons[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "get person: record not found")
	}
	c := *p
	return &c, nil
}

func (r fakePersons) Update(_ context.Context, p *person.Person) error {
	r.s.writes++
	c := *p
	r.s.persons[p.ID] = &c
	return nil
}

func (r fakePersons) Delete(_ context.Context, id uuid.UUID) error {
	r.s.journal = append(r.s.journal, "delete person")
	delete(r.s.persons, id)
	return nil
}

func (r fakePersons) References(_ context.Context, id uuid.UUID) (person.Refs, error) {
	refs := person.Refs{Patients: r.s.patientRefs[id]}
	for _, st := range r.s.staff {
		if st.PersonID == id {
			refs.Staff++
		}
	}
	return refs, nil
}

func (r fakePersons) ListByNationalID(context.Context, string) ([]*person.Person, error) {
	return nil, nil
}

type fakeStaff struct{ s *store }

func (r fakeStaff) Create(_ context.Context, st *Staff) error {
	r.s.writes++
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	st.CreatedAt = time.Now()
	c := *st
	r.s.staff[st.ID] = &c
	return nil
}

func (r fakeStaff) GetByID(_ context.Context, id uuid.UUID) (*Staff, error) {
	st, ok := r.s.staff[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "get staff: record not found")
	}
	c := *st
	if pe, ok := r.s.persons[st.PersonID]; ok {
		pc := *pe
		c.Person = &pc
	}
	if pos, ok := r.s.positions[st.PositionID]; ok {
		c.Position = pos.Description
	}
	c.Specialist = nil
	if sp, ok := r.s.specialists[id]; ok {
		spc := *sp
		spc.SpecialtyIDs = append([]uuid.UUID(nil), r.s.specialties[id]...)
		c.Specialist = &spc
	}
	return &c, nil
}

func (r fakeStaff) Update(_ context.Context, st *Staff) error {
	r.s.writes++
	c := *st
	r.s.staff[st.ID] = &c
	return nil
}

func (r fakeStaff) Delete(_ context.Context, id uuid.UUID) error {
	r.s.journal = append(r.s.journal, "delete staff")
	delete(r.s.staff, id)
	return nil
}

func (r fakeStaff) List(ctx context.Context, f ListFilter) ([]*Staff, int, error) {
	var out []*Staff
	for id := range r.s.staff {
		st, _ := r.GetByID(ctx, id)
		if (f.SpecialistsOnly || f.SpecialtyID != nil) && st.Specialist == nil {
			continue
		}
		if f.SpecialtyID != nil {
			found := false
			for _, sid := range st.Specialist.SpecialtyIDs {
				found = found || sid == *f.SpecialtyID
			}
			if !found {
				continue
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Person.LastName < out[j].Person.LastName })
	return out, len(out), nil
}

func (r fakeStaff) GetPosition(_ context.Context, id uuid.UUID) (*Position, error) {
	p, ok := r.s.positions[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "get position: record not found")
	}
	c := *p
	return &c, nil
}

func (r fakeStaff) UpsertSpecialist(_ context.Context, sp *Specialist) error {
	r.s.writes++
	c := *sp
	c.SpecialtyIDs = nil
	r.s.specialists[sp.StaffID] = &c
	return nil
}

func (r fakeStaff) DeleteSpecialist(_ context.Context, staffID uuid.UUID) (bool, error) {
	r.s.journal = append(r.s.journal, "delete specialist")
	_, ok := r.s.specialists[staffID]
	delete(r.s.specialists, staffID)
	return ok, nil
}

func (r fakeStaff) ReplaceSpecialties(ctx context.Context, staffID uuid.UUID, ids []uuid.UUID) error {
	if err := r.DeleteSpecialties(ctx, staffID); err != nil {
		return err
	}
	for _, id := range ids {
		if !r.s.known[id] {
			return apperr.Wrap(apperr.KindValidation, ErrUnknownSpecialty, "especialidad %s does not exist", id)
		}
	}
	r.s.writes++
	r.s.specialties[staffID] = append([]uuid.UUID(nil), ids...)
	return nil
}

func (r fakeStaff) DeleteSpecialties(_ context.Context, staffID uuid.UUID) error {
	r.s.journal = append(r.s.journal, "delete specialties")
	delete(r.s.specialties, staffID)
	return nil
}

var fixedNow = time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)

func newTestService() (*Service, *store) {
	s := newStore()
	svc := NewService(fakeStaff{s}, fakePersons{s}, s, NewPositionSet([]string{"medico", "odontologo", "psicologo", "nutricionista", "fisioterapeuta"}))
	svc.SetClock(func() time.Time { return fixedNow })
	return svc, s
}

func doctor(positionID uuid.UUID, specialties ...uuid.UUID) *Registration {
	return &Registration{
		Person:     person.Person{FirstName: "Laura", LastName: "Vera", NationalID: "3344556"},
		PositionID: positionID,
		Specialist: &Specialist{License: "RP-1020", CalendarColor: "#1a2b3c", SpecialtyIDs: specialties},
	}
}
