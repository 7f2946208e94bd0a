package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/nordbay-events/sponsorreg/internal/model"
	"github.com/nordbay-events/sponsorreg/internal/repository"
	"github.com/nordbay-events/sponsorreg/internal/resilient"
)

type fakeEventStore struct {
	events []model.Event
	dates  []model.EventDate
}

func (f *fakeEventStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	return f.events, nil
}

func (f *fakeEventStore) ListAllEventDates(ctx context.Context) ([]model.EventDate, error) {
	return f.dates, nil
}

type fakeRegStore struct {
	regs      map[string]*model.Registration
	created   *model.Registration
	rows      []model.RegistrationDate
	appended  []model.RegistrationDate
	available []model.EventDate
}

func (f *fakeRegStore) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	reg, ok := f.regs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return reg, nil
}

func (f *fakeRegStore) CreateWithDates(ctx context.Context, reg *model.Registration, dates []model.RegistrationDate) error {
	reg.ID = "reg-1"
	f.created = reg
	f.rows = dates
	return nil
}

func (f *fakeRegStore) ListDates(ctx context.Context, registrationID string) ([]model.RegistrationDate, error) {
	return f.rows, nil
}

func (f *fakeRegStore) AvailableDates(ctx context.Context, registrationID string, year int) ([]model.EventDate, error) {
	return f.available, nil
}

func (f *fakeRegStore) AppendDates(ctx context.Context, registrationID string, dates []model.RegistrationDate) error {
	f.appended = append(f.appended, dates...)
	return nil
}

type seqGen struct{ n int }

func (g *seqGen) NewID() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func newTestService(regs *fakeRegStore) *RegistrationService {
	events := &fakeEventStore{
		events: []model.Event{
			{ID: "matchday", Name: "Match Day", UnitPrice: 200, BulkPrice: 1000, MaxUnits: 5, DateSelectionRequired: true, SortOrder: 1},
			{ID: "matchball", Name: "Match Ball", UnitPrice: 120, BulkPrice: 500, MaxUnits: 10, DateSelectionRequired: false, SortOrder: 2},
		},
		dates: []model.EventDate{
			{ID: "d1", EventID: "matchday", Date: "2026-03-07"},
			{ID: "d2", EventID: "matchday", Date: "2026-03-21"},
		},
	}
	plans := []model.SponsorshipPlan{
		{ID: "gold", Name: "Gold", Price: 2501,
			Limits:     map[string]model.Limit{"matchday": model.Unbounded},
			AutoSelect: []string{"matchday"}},
	}
	exec := resilient.New(resilient.Options{
		Sleep:  func(d time.Duration) {},
		Logger: log.New(io.Discard, "", 0),
	})
	return NewRegistrationService(events, regs, plans, exec, &seqGen{})
}

func validContact() Contact {
	return Contact{
		FirstName: "Mara",
		LastName:  "Holst",
		Street:    "Hafenstr. 12",
		City:      "Flensburg",
		Zip:       "24937",
		Phone:     "0461 123456",
		Email:     "mara@example.com",
	}
}

func TestStartSessionUnknownPlan(t *testing.T) {
	svc := newTestService(&fakeRegStore{})
	if _, _, err := svc.StartSession(context.Background(), "platinum"); err == nil {
		t.Fatal("expected an error for an unknown plan")
	}
}

func TestWizardSubmit(t *testing.T) {
	regs := &fakeRegStore{}
	svc := newTestService(regs)
	ctx := context.Background()

	id, _, err := svc.StartSession(ctx, "")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.SetSupplementalLimit(id, "matchday", model.Finite(2)); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	if _, err := svc.ToggleSupplementalDate(id, "matchday", "2026-03-21"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := svc.ToggleSupplementalDate(id, "matchday", "2026-03-07"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := svc.SetSupplementalLimit(id, "matchball", model.Unbounded); err != nil {
		t.Fatalf("set limit: %v", err)
	}

	reg, violations, err := svc.Submit(ctx, id, validContact())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if reg == nil || regs.created == nil {
		t.Fatal("expected the registration to be persisted")
	}

	// Two dated matchday rows (sorted) then the matchball placeholder.
	if len(regs.rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(regs.rows))
	}
	if regs.rows[0].EventID != "matchday" || regs.rows[0].Date != "2026-03-07" || regs.rows[0].Quantity != 1 {
		t.Errorf("row 0 = %+v", regs.rows[0])
	}
	if regs.rows[1].EventID != "matchday" || regs.rows[1].Date != "2026-03-21" {
		t.Errorf("row 1 = %+v", regs.rows[1])
	}
	if regs.rows[2].EventID != "matchball" || regs.rows[2].Date != "" || regs.rows[2].Quantity != model.QuantityAll {
		t.Errorf("row 2 = %+v", regs.rows[2])
	}

	// The session is gone after a successful submission.
	if _, _, err := svc.SessionState(id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after submit, got %v", err)
	}
}

func TestSubmitReturnsViolationsAsData(t *testing.T) {
	regs := &fakeRegStore{}
	svc := newTestService(regs)
	ctx := context.Background()

	id, _, err := svc.StartSession(ctx, "")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.SetSupplementalLimit(id, "matchday", model.Finite(2)); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	if _, err := svc.ToggleSupplementalDate(id, "matchday", "2026-03-07"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	_, violations, err := svc.Submit(ctx, id, Contact{})
	if err != nil {
		t.Fatalf("violations must come back as data, got error %v", err)
	}
	if len(violations) == 0 {
		t.Fatal("expected contact and supplemental violations")
	}
	if regs.created != nil {
		t.Fatal("nothing may be persisted while violations remain")
	}
}

func TestSubmitUnknownSession(t *testing.T) {
	svc := newTestService(&fakeRegStore{})
	if _, _, err := svc.Submit(context.Background(), "nope", validContact()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAddManualDatesBlankNotes(t *testing.T) {
	regs := &fakeRegStore{regs: map[string]*model.Registration{"reg-1": {ID: "reg-1"}}}
	svc := newTestService(regs)

	violations, err := svc.AddManualDates(context.Background(), "admin-7", "reg-1",
		[]ManualEntry{{EventID: "matchday", Date: "2026-03-07"}}, "   ")
	if err != nil {
		t.Fatalf("blank notes must be a validation problem, got error %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %v, want exactly one", violations)
	}
	if len(regs.appended) != 0 {
		t.Fatal("nothing may be appended without notes")
	}
}

func TestAddManualDatesUnknownRegistration(t *testing.T) {
	svc := newTestService(&fakeRegStore{})

	_, err := svc.AddManualDates(context.Background(), "admin-7", "ghost",
		[]ManualEntry{{EventID: "matchday", Date: "2026-03-07"}}, "sponsor called in")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddManualDatesUnauthenticated(t *testing.T) {
	svc := newTestService(&fakeRegStore{})

	_, err := svc.AddManualDates(context.Background(), "  ", "reg-1",
		[]ManualEntry{{EventID: "matchday", Date: "2026-03-07"}}, "notes")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAddManualDatesStampsActingAdmin(t *testing.T) {
	regs := &fakeRegStore{regs: map[string]*model.Registration{"reg-1": {ID: "reg-1"}}}
	svc := newTestService(regs)

	violations, err := svc.AddManualDates(context.Background(), "admin-7", "reg-1",
		[]ManualEntry{
			{EventID: "matchday", Date: "2026-03-07"},
			{EventID: "matchday", Date: "2026-03-21"},
		}, "  sponsor called in  ")
	if err != nil {
		t.Fatalf("add manual dates: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if len(regs.appended) != 2 {
		t.Fatalf("appended = %d rows, want 2", len(regs.appended))
	}
	for i, row := range regs.appended {
		if row.CreatedBy != "admin-7" {
			t.Errorf("row %d CreatedBy = %q, want admin-7", i, row.CreatedBy)
		}
		if row.Notes != "sponsor called in" {
			t.Errorf("row %d Notes = %q", i, row.Notes)
		}
		if row.Quantity != 1 {
			t.Errorf("row %d Quantity = %d, want 1", i, row.Quantity)
		}
	}
}

func TestAvailableDatesUnknownRegistration(t *testing.T) {
	svc := newTestService(&fakeRegStore{})
	if _, err := svc.AvailableDates(context.Background(), "ghost", 2026); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
