package scheduling

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type memRepo struct {
	citas       map[uuid.UUID]*Appointment
	patients    map[uuid.UUID]Participant
	specialists map[uuid.UUID]Participant

	locks   []uuid.UUID
	inTx    bool
	commits int
}

func newMemRepo() *memRepo {
	return &memRepo{
		citas:       make(map[uuid.UUID]*Appointment),
		patients:    make(map[uuid.UUID]Participant),
		specialists: make(map[uuid.UUID]Participant),
	}
}

func (r *memRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := make(map[uuid.UUID]*Appointment, len(r.citas))
	for k, v := range r.citas {
		c := *v
		snapshot[k] = &c
	}
	r.inTx = true
	defer func() { r.inTx = false }()
	if err := fn(ctx); err != nil {
		r.citas = snapshot
		return err
	}
	r.commits++
	return nil
}

func (r *memRepo) addPatient() uuid.UUID {
	id := uuid.New()
	r.patients[id] = Participant{Exists: true, Active: true}
	return id
}

func (r *memRepo) addSpecialist(specialties ...uuid.UUID) uuid.UUID {
	id := uuid.New()
	r.specialists[id] = Participant{Exists: true, Active: true, Specialties: specialties}
	return id
}

func (r *memRepo) Create(_ context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	c := *a
	r.citas[a.ID] = &c
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := r.citas[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "get cita: record not found")
	}
	c := *a
	return &c, nil
}

func (r *memRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := r.citas[a.ID]; !ok {
		return apperr.New(apperr.KindNotFound, "update cita: record not found")
	}
	c := *a
	r.citas[a.ID] = &c
	return nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.citas[id]; !ok {
		return apperr.New(apperr.KindNotFound, "delete cita: record not found")
	}
	delete(r.citas, id)
	return nil
}

func (r *memRepo) List(_ context.Context, f ListFilter) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range r.citas {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.SpecialistID != nil && a.SpecialistID != *f.SpecialistID {
			continue
		}
		if f.From != nil && !a.End.After(*f.From) {
			continue
		}
		if f.To != nil && !a.Start.Before(*f.To) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, len(out), nil
}

func (r *memRepo) LockParticipants(_ context.Context, specialistID, patientID uuid.UUID) error {
	if !r.inTx {
		return apperr.New(apperr.KindStorage, "lock participants: no transaction in context")
	}
	r.locks = append(r.locks, specialistID, patientID)
	return nil
}

func (r *memRepo) overlaps(match func(*Appointment) bool, w Window, exclude uuid.UUID) int {
	n := 0
	for id, a := range r.citas {
		if id != exclude && match(a) && Blocking(a.Status) && w.Overlaps(Window{a.Start, a.End}) {
			n++
		}
	}
	return n
}

func (r *memRepo) SpecialistOverlaps(_ context.Context, sid uuid.UUID, w Window, exclude uuid.UUID) (int, error) {
	return r.overlaps(func(a *Appointment) bool { return a.SpecialistID == sid }, w, exclude), nil
}

func (r *memRepo) PatientOverlaps(_ context.Context, pid uuid.UUID, w Window, exclude uuid.UUID) (int, error) {
	return r.overlaps(func(a *Appointment) bool { return a.PatientID == pid }, w, exclude), nil
}

func (r *memRepo) Patient(_ context.Context, id uuid.UUID) (Participant, error) {
	return r.patients[id], nil
}

func (r *memRepo) Specialist(_ context.Context, id uuid.UUID) (Participant, error) {
	return r.specialists[id], nil
}

var day = time.Date(2024, time.June, 17, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, repo), repo
}

func booking(patient, specialist uuid.UUID, start, end time.Time) *Input {
	return &Input{PatientID: patient, SpecialistID: specialist, Start: start, End: end}
}
