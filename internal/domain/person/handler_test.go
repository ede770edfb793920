package person

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type mockRepo struct {
	persons map[uuid.UUID]*Person
}

func newMockRepo() *mockRepo {
	return &mockRepo{persons: make(map[uuid.UUID]*Person)}
}

func (m *mockRepo) Create(_ context.Context, p *Person) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.persons[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Person, error) {
	p, ok := m.persons[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "get person: record not found")
	}
	return p, nil
}

func (m *mockRepo) Update(_ context.Context, p *Person) error {
	m.persons[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.persons, id)
	return nil
}

func (m *mockRepo) References(_ context.Context, _ uuid.UUID) (Refs, error) {
	return Refs{}, nil
}

func (m *mockRepo) ListByNationalID(_ context.Context, nationalID string) ([]*Person, error) {
	var out []*Person
	for _, p := range m.persons {
		if p.NationalID == nationalID {
			out = append(out, p)
		}
	}
	return out, nil
}

func newTestHandler() (*Handler, *mockRepo, *echo.Echo) {
	repo := newMockRepo()
	return NewHandler(NewService(repo)), repo, echo.New()
}

func TestHandler_GetPerson(t *testing.T) {
	h, repo, e := newTestHandler()
	p := &Person{FirstName: "Ana", LastName: "Lopez", NationalID: "4455667"}
	_ = repo.Create(context.Background(), p)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.GetPerson(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetPerson_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetPerson(c)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestHandler_FindPersons(t *testing.T) {
	h, repo, e := newTestHandler()
	_ = repo.Create(context.Background(), &Person{FirstName: "Ana", LastName: "Lopez", NationalID: "4455667"})
	_ = repo.Create(context.Background(), &Person{FirstName: "Luis", LastName: "Diaz", NationalID: "999"})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?cedula=4455667", nil), rec)
	if err := h.FindPersons(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Success bool      `json:"success"`
		Data    []*Person `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || len(body.Data) != 1 || body.Data[0].FirstName != "Ana" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_FindPersons_RequiresCedula(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := h.FindPersons(c); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}
