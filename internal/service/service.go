// Package service implements business logic, validation, and orchestration
// between HTTP handlers, the allocator, and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nordbay-events/sponsorreg/internal/allocator"
	"github.com/nordbay-events/sponsorreg/internal/ident"
	"github.com/nordbay-events/sponsorreg/internal/model"
	"github.com/nordbay-events/sponsorreg/internal/resilient"
)

// ErrSessionNotFound is returned for an unknown or expired session id.
var ErrSessionNotFound = errors.New("registration session not found")

// ErrUnauthenticated is returned when a manual addition arrives without
// an acting admin id.
var ErrUnauthenticated = errors.New("admin authentication required")

// EventStore is the catalog read access the service needs.
type EventStore interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListAllEventDates(ctx context.Context) ([]model.EventDate, error)
}

// RegistrationStore is the registration persistence the service needs.
type RegistrationStore interface {
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	CreateWithDates(ctx context.Context, reg *model.Registration, dates []model.RegistrationDate) error
	ListDates(ctx context.Context, registrationID string) ([]model.RegistrationDate, error)
	AvailableDates(ctx context.Context, registrationID string, year int) ([]model.EventDate, error)
	AppendDates(ctx context.Context, registrationID string, dates []model.RegistrationDate) error
}

// Contact carries the registrant's contact fields of a submission.
type Contact struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// ManualEntry is one (event, date) pair of a manual addition.
type ManualEntry struct {
	EventID string `json:"event_id"`
	Date    string `json:"date"`
}

// RegistrationService orchestrates wizard sessions, submission, and
// manual post-registration additions. Every store call goes through the
// resilient executor; the allocator itself never touches the database.
type RegistrationService struct {
	events        EventStore
	registrations RegistrationStore
	plans         []model.SponsorshipPlan
	exec          *resilient.Executor
	gen           ident.Generator
	sessions      *sessionStore
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	events EventStore,
	registrations RegistrationStore,
	plans []model.SponsorshipPlan,
	exec *resilient.Executor,
	gen ident.Generator,
) *RegistrationService {
	return &RegistrationService{
		events:        events,
		registrations: registrations,
		plans:         plans,
		exec:          exec,
		gen:           gen,
		sessions:      newSessionStore(),
	}
}

// Catalog loads the current event catalog and pairs it with the static
// plan list.
func (s *RegistrationService) Catalog(ctx context.Context) (allocator.Catalog, error) {
	events, err := resilient.Do(ctx, s.exec, "list events", s.events.ListEvents)
	if err != nil {
		return allocator.Catalog{}, err
	}
	dates, err := resilient.Do(ctx, s.exec, "list event dates", s.events.ListAllEventDates)
	if err != nil {
		return allocator.Catalog{}, err
	}
	return allocator.NewCatalog(events, dates, s.plans), nil
}

// StartSession opens a wizard session over a fresh catalog snapshot and
// applies the initial plan choice (empty means no plan).
func (s *RegistrationService) StartSession(ctx context.Context, planID string) (string, allocator.SelectionState, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return "", allocator.SelectionState{}, err
	}
	sess := allocator.NewSession(catalog)
	if err := sess.SelectPlan(planID); err != nil {
		return "", allocator.SelectionState{}, err
	}
	id := s.gen.NewID()
	s.sessions.put(id, sess)
	return id, sess.State(), nil
}

// SessionState returns the snapshot of one session plus the violations
// both validation steps currently report.
func (s *RegistrationService) SessionState(sessionID string) (allocator.SelectionState, []string, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return allocator.SelectionState{}, nil, ErrSessionNotFound
	}
	violations := append(sess.ValidatePlanStep(), sess.ValidateSupplementalStep()...)
	return sess.State(), violations, nil
}

// SelectPlan re-selects the session's plan, resetting all selections.
func (s *RegistrationService) SelectPlan(sessionID, planID string) (allocator.SelectionState, error) {
	return s.mutate(sessionID, func(sess *allocator.Session) error {
		return sess.SelectPlan(planID)
	})
}

// TogglePlanDate toggles a date against the plan allotment.
func (s *RegistrationService) TogglePlanDate(sessionID, eventID, date string) (allocator.SelectionState, error) {
	return s.mutate(sessionID, func(sess *allocator.Session) error {
		return sess.TogglePlanDate(eventID, date)
	})
}

// SetSupplementalLimit sets an event's supplemental ceiling.
func (s *RegistrationService) SetSupplementalLimit(sessionID, eventID string, limit model.Limit) (allocator.SelectionState, error) {
	return s.mutate(sessionID, func(sess *allocator.Session) error {
		return sess.SetSupplementalLimit(eventID, limit)
	})
}

// ToggleSupplementalDate toggles a date against the supplemental limit.
func (s *RegistrationService) ToggleSupplementalDate(sessionID, eventID, date string) (allocator.SelectionState, error) {
	return s.mutate(sessionID, func(sess *allocator.Session) error {
		return sess.ToggleSupplementalDate(eventID, date)
	})
}

func (s *RegistrationService) mutate(sessionID string, fn func(*allocator.Session) error) (allocator.SelectionState, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return allocator.SelectionState{}, ErrSessionNotFound
	}
	if err := fn(sess); err != nil {
		return allocator.SelectionState{}, err
	}
	return sess.State(), nil
}

// Submit validates the whole wizard, persists the registration with all
// booked rows in one transaction, and closes the session. Validation
// problems come back as data, not as an error.
func (s *RegistrationService) Submit(ctx context.Context, sessionID string, contact Contact) (*model.Registration, []string, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	violations := validateContact(&contact)
	violations = append(violations, sess.ValidatePlanStep()...)
	violations = append(violations, sess.ValidateSupplementalStep()...)
	if len(violations) > 0 {
		return nil, violations, nil
	}

	reg := &model.Registration{
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Company:   contact.Company,
		Street:    contact.Street,
		City:      contact.City,
		Zip:       contact.Zip,
		Phone:     contact.Phone,
		Email:     contact.Email,
		PlanID:    sess.PlanID(),
	}
	rows := allocationRows(sess)

	_, err := resilient.Do(ctx, s.exec, "create registration", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.registrations.CreateWithDates(ctx, reg, rows)
	})
	if err != nil {
		return nil, nil, err
	}

	s.sessions.delete(sessionID)
	return reg, nil, nil
}

// Registration returns one registration with its booked rows.
func (s *RegistrationService) Registration(ctx context.Context, id string) (*model.Registration, []model.RegistrationDate, error) {
	reg, err := resilient.Do(ctx, s.exec, "get registration", func(ctx context.Context) (*model.Registration, error) {
		return s.registrations.GetByID(ctx, id)
	})
	if err != nil {
		return nil, nil, err
	}
	dates, err := resilient.Do(ctx, s.exec, "list registration dates", func(ctx context.Context) ([]model.RegistrationDate, error) {
		return s.registrations.ListDates(ctx, id)
	})
	if err != nil {
		return nil, nil, err
	}
	return reg, dates, nil
}

// AvailableDates lists the event dates in a year that a registration
// could still be extended with: today or later, not yet booked by it.
func (s *RegistrationService) AvailableDates(ctx context.Context, registrationID string, year int) ([]model.EventDate, error) {
	if _, err := resilient.Do(ctx, s.exec, "get registration", func(ctx context.Context) (*model.Registration, error) {
		return s.registrations.GetByID(ctx, registrationID)
	}); err != nil {
		return nil, err
	}
	return resilient.Do(ctx, s.exec, "list available dates", func(ctx context.Context) ([]model.EventDate, error) {
		return s.registrations.AvailableDates(ctx, registrationID, year)
	})
}

// AddManualDates appends admin-justified rows to a registration. Blank
// notes or an empty selection are validation problems returned as data;
// every accepted row is stamped with the acting admin's id.
func (s *RegistrationService) AddManualDates(ctx context.Context, adminID, registrationID string, entries []ManualEntry, notes string) ([]string, error) {
	if strings.TrimSpace(adminID) == "" {
		return nil, ErrUnauthenticated
	}

	var violations []string
	if strings.TrimSpace(notes) == "" {
		violations = append(violations, "a justification note is required for manual additions")
	}
	if len(entries) == 0 {
		violations = append(violations, "select at least one date to add")
	}
	if len(violations) > 0 {
		return violations, nil
	}

	if _, err := resilient.Do(ctx, s.exec, "get registration", func(ctx context.Context) (*model.Registration, error) {
		return s.registrations.GetByID(ctx, registrationID)
	}); err != nil {
		return nil, err
	}

	rows := make([]model.RegistrationDate, len(entries))
	for i, e := range entries {
		rows[i] = model.RegistrationDate{
			EventID:   e.EventID,
			Date:      e.Date,
			Quantity:  1,
			Notes:     strings.TrimSpace(notes),
			CreatedBy: adminID,
		}
	}

	_, err := resilient.Do(ctx, s.exec, "append registration dates", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.registrations.AppendDates(ctx, registrationID, rows)
	})
	if err != nil {
		return nil, err
	}
	return nil, nil
}

// allocationRows flattens the session's final allocations into
// registration-date rows, in catalog event order.
func allocationRows(sess *allocator.Session) []model.RegistrationDate {
	allocations := sess.Finalize()
	var rows []model.RegistrationDate
	for _, eventID := range sess.EventOrder() {
		alloc, ok := allocations[eventID]
		if !ok {
			continue
		}
		if len(alloc.Dates) == 0 {
			rows = append(rows, model.RegistrationDate{
				EventID:  alloc.EventID,
				Quantity: alloc.Quantity,
			})
			continue
		}
		for _, date := range alloc.Dates {
			rows = append(rows, model.RegistrationDate{
				EventID:  alloc.EventID,
				Date:     date,
				Quantity: 1,
			})
		}
	}
	return rows
}

func validateContact(c *Contact) []string {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Company = strings.TrimSpace(c.Company)
	c.Street = strings.TrimSpace(c.Street)
	c.City = strings.TrimSpace(c.City)
	c.Zip = strings.TrimSpace(c.Zip)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))

	var violations []string
	if c.FirstName == "" {
		violations = append(violations, "first name is required")
	}
	if c.LastName == "" {
		violations = append(violations, "last name is required")
	}
	if c.Street == "" || c.City == "" || c.Zip == "" {
		violations = append(violations, "a complete address is required")
	}
	if c.Email == "" {
		violations = append(violations, "email is required")
	} else if !isValidEmail(c.Email) {
		violations = append(violations, fmt.Sprintf("%q is not a valid email address", c.Email))
	}
	return violations
}

// isValidEmail does a basic structural check (no external deps).
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
