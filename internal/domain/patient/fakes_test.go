package patient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/person"
	"github.com/clinic/clinic/internal/platform/apperr"
)

// store backs the fake repositories. raceCodes simulates a concurrent
// registration committing a code between the lookup and the insert; such
// codes land in external, which a rollback does not undo.
type store struct {
	persons   map[uuid.UUID]*person.Person
	patients  map[uuid.UUID]*Patient
	guardians map[uuid.UUID]*Guardian
	staffRefs map[uuid.UUID]int

	external  []string
	issued    []string
	raceCodes map[string]bool
	lookupErr error
	guardErr  error

	journal   []string
	commits   int
	rollbacks int
}

func newStore() *store {
	return &store{
		persons:   make(map[uuid.UUID]*person.Person),
		patients:  make(map[uuid.UUID]*Patient),
		guardians: make(map[uuid.UUID]*Guardian),
		staffRefs: make(map[uuid.UUID]int),
		raceCodes: make(map[string]bool),
	}
}

type snapshot struct {
	persons   map[uuid.UUID]*person.Person
	patients  map[uuid.UUID]*Patient
	guardians map[uuid.UUID]*Guardian
	issued    []string
}

func (s *store) snapshot() snapshot {
	snap := snapshot{
		persons:   make(map[uuid.UUID]*person.Person, len(s.persons)),
		patients:  make(map[uuid.UUID]*Patient, len(s.patients)),
		guardians: make(map[uuid.UUID]*Guardian, len(s.guardians)),
		issued:    append([]string(nil), s.issued...),
	}
	for k, v := range s.persons {
		c := *v
		snap.persons[k] = &c
	}
	for k, v := range s.patients {
		c := *v
		snap.patients[k] = &c
	}
	for k, v := range s.guardians {
		c := *v
		snap.guardians[k] = &c
	}
	return snap
}

func (s *store) restore(snap snapshot) {
	s.persons, s.patients, s.guardians, s.issued = snap.persons, snap.patients, snap.guardians, snap.issued
}

// InTx makes the store transactional: a failing fn leaves it as it was.
func (s *store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		s.rollbacks++
		return err
	}
	s.commits++
	return nil
}

func (s *store) codeTaken(code string, exclude uuid.UUID) bool {
	for _, c := range s.external {
		if c == code {
			return true
		}
	}
	for id, p := range s.patients {
		if p.Code == code && id != exclude {
			return true
		}
	}
	return false
}

// -- person repository --

type fakePersons struct{ s *store }

func (r fakePersons) Create(_ context.Context, p *person.Person) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
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
	if _, ok := r.s.persons[p.ID]; !ok {
		return apperr.New(apperr.KindNotFound, "update person: record not found")
	}
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
	refs := person.Refs{Staff: r.s.staffRefs[id]}
	for _, p := range r.s.patients {
		if p.PersonID == id {
			refs.Patients++
		}
	}
	return refs, nil
}

func (r fakePersons) ListByNationalID(_ context.Context, nationalID string) ([]*person.Person, error) {
	var out []*person.Person
	for _, p := range r.s.persons {
		if p.NationalID == nationalID {
			out = append(out, p)
		}
	}
	return out, nil
}

// -- patient repository --

type fakePatients struct{ s *store }

func (r fakePatients) Create(_ context.Context, p *Patient) error {
	if r.s.raceCodes[p.Code] {
		delete(r.s.raceCodes, p.Code)
		r.s.external = append(r.s.external, p.Code)
		return apperr.Wrap(apperr.KindConflict, ErrCodeTaken, "codigo %s already in use", p.Code)
	}
	if r.s.codeTaken(p.Code, uuid.Nil) {
		return apperr.Wrap(apperr.KindConflict, ErrCodeTaken, "codigo %s already in use", p.Code)
	}
	for _, other := range r.s.patients {
		if other.PersonID == p.PersonID {
			return apperr.Wrap(apperr.KindConflict, ErrAlreadyPatient, "person is already registered as a patient")
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	c := *p
	r.s.patients[p.ID] = &c
	r.s.issued = append(r.s.issued, p.Code)
	return nil
}

func (r fakePatients) load(p *Patient) *Patient {
	c := *p
	c.Guardian = nil
	if pe, ok := r.s.persons[p.PersonID]; ok {
		pc := *pe
		c.Person = &pc
	}
	return &c
}

func (r fakePatients) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := r.s.patients[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "get patient: record not found")
	}
	return r.load(p), nil
}

func (r fakePatients) GetByCode(_ context.Context, code string) (*Patient, error) {
	for _, p := range r.s.patients {
		if p.Code == code {
			return r.load(p), nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "get patient by code: record not found")
}

func (r fakePatients) Update(_ context.Context, p *Patient) error {
	if _, ok := r.s.patients[p.ID]; !ok {
		return apperr.New(apperr.KindNotFound, "update patient: record not found")
	}
	if r.s.codeTaken(p.Code, p.ID) {
		return apperr.Wrap(apperr.KindConflict, ErrCodeTaken, "codigo %s already in use", p.Code)
	}
	c := *p
	r.s.patients[p.ID] = &c
	r.s.issued = append(r.s.issued, p.Code)
	return nil
}

func (r fakePatients) Delete(_ context.Context, id uuid.UUID) error {
	r.s.journal = append(r.s.journal, "delete patient")
	if _, ok := r.s.patients[id]; !ok {
		return apperr.New(apperr.KindNotFound, "patient not found")
	}
	delete(r.s.patients, id)
	return nil
}

func (r fakePatients) List(_ context.Context, f ListFilter) ([]*Patient, int, error) {
	var out []*Patient
	q := strings.ToLower(f.Query)
	for _, p := range r.s.patients {
		lp := r.load(p)
		hay := strings.ToLower(lp.Person.FirstName + " " + lp.Person.LastName + " " + lp.Person.NationalID + " " + lp.Code)
		if q != "" && !strings.Contains(hay, q) {
			continue
		}
		if f.Active != nil && lp.Active != *f.Active {
			continue
		}
		out = append(out, lp)
	}
	return out, len(out), nil
}

func (r fakePatients) CodesWithBase(_ context.Context, base string) ([]string, error) {
	if r.s.lookupErr != nil {
		return nil, r.s.lookupErr
	}
	var codes []string
	all := append(append([]string{}, r.s.external...), r.s.issued...)
	for _, c := range all {
		if c == base || strings.HasPrefix(c, base+"-") {
			codes = append(codes, c)
		}
	}
	return codes, nil
}

func (r fakePatients) CodeInUse(_ context.Context, code string, exclude uuid.UUID) (bool, error) {
	return r.s.codeTaken(code, exclude), nil
}

func (r fakePatients) GetGuardian(_ context.Context, patientID uuid.UUID) (*Guardian, error) {
	g, ok := r.s.guardians[patientID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "patient has no guardian data")
	}
	c := *g
	return &c, nil
}

func (r fakePatients) UpsertGuardian(_ context.Context, g *Guardian) error {
	if r.s.guardErr != nil {
		return r.s.guardErr
	}
	c := *g
	r.s.guardians[g.PatientID] = &c
	return nil
}

func (r fakePatients) DeleteGuardian(_ context.Context, patientID uuid.UUID) (bool, error) {
	r.s.journal = append(r.s.journal, "delete guardian")
	_, ok := r.s.guardians[patientID]
	delete(r.s.guardians, patientID)
	return ok, nil
}

var fixedNow = time.Date(2024, time.June, 15, 10, 30, 0, 123_000_000, time.UTC)

func newTestService() (*Service, *store) {
	s := newStore()
	svc := NewService(fakePatients{s}, fakePersons{s}, s)
	svc.SetClock(func() time.Time { return fixedNow })
	return svc, s
}

func strPtr(s string) *string { return &s }

func date(y int, m time.Month, d int) *person.Date {
	v := person.NewDate(y, m, d)
	return &v
}

func juan() *Registration {
	return &Registration{
		Person: person.Person{
			FirstName:  "Juan",
			LastName:   "Perez",
			NationalID: "12345678",
			BirthDate:  date(2010, time.May, 1),
		},
		Guardian: &Guardian{MotherName: strPtr("Maria")},
	}
}
