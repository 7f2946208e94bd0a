// Package repository implements all database queries for the
// sponsorship registration system. It uses pgx directly (no ORM) for
// transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nordbay-events/sponsorreg/internal/ident"
	"github.com/nordbay-events/sponsorreg/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

const isoDate = "2006-01-02"

// EventRepository handles read access to the admin-managed catalog.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// ListEvents returns all events ordered by their catalog sort order.
func (r *EventRepository) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, unit_price, bulk_price, max_units, date_selection_required, sort_order
		 FROM events
		 ORDER BY sort_order, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.UnitPrice, &e.BulkPrice, &e.MaxUnits,
			&e.DateSelectionRequired, &e.SortOrder); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListEventDates returns the bookable dates of one event, ascending.
func (r *EventRepository) ListEventDates(ctx context.Context, eventID string) ([]model.EventDate, error) {
	return r.listDates(ctx,
		`SELECT id, event_id, date, COALESCE(title, '')
		 FROM event_dates
		 WHERE event_id = $1
		 ORDER BY date`,
		eventID,
	)
}

// ListAllEventDates returns every bookable date in the catalog,
// ascending per event. Used to assemble a session catalog in one query.
func (r *EventRepository) ListAllEventDates(ctx context.Context) ([]model.EventDate, error) {
	return r.listDates(ctx,
		`SELECT id, event_id, date, COALESCE(title, '')
		 FROM event_dates
		 ORDER BY event_id, date`,
	)
}

func (r *EventRepository) listDates(ctx context.Context, query string, args ...any) ([]model.EventDate, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list event dates: %w", err)
	}
	defer rows.Close()

	var dates []model.EventDate
	for rows.Next() {
		var d model.EventDate
		var day time.Time
		if err := rows.Scan(&d.ID, &d.EventID, &day, &d.Title); err != nil {
			return nil, fmt.Errorf("scan event date: %w", err)
		}
		d.Date = day.Format(isoDate)
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// RegistrationRepository handles persistence for registrations and
// their booked dates.
type RegistrationRepository struct {
	db  *pgxpool.Pool
	gen ident.Generator
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool, gen ident.Generator) *RegistrationRepository {
	return &RegistrationRepository{db: db, gen: gen}
}

// GetByID returns a single registration or ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	var reg model.Registration
	err := r.db.QueryRow(ctx,
		`SELECT id, first_name, last_name, COALESCE(company, ''), street, city, zip,
		        phone, email, COALESCE(plan_id, ''), created_at
		 FROM registrations WHERE id = $1`,
		id,
	).Scan(&reg.ID, &reg.FirstName, &reg.LastName, &reg.Company, &reg.Street, &reg.City,
		&reg.Zip, &reg.Phone, &reg.Email, &reg.PlanID, &reg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &reg, nil
}

// CreateWithDates inserts a registration and all of its booked rows in
// a single transaction: either the whole submission lands or none of
// it does. IDs and timestamps are filled in here.
func (r *RegistrationRepository) CreateWithDates(ctx context.Context, reg *model.Registration, dates []model.RegistrationDate) error {
	reg.ID = r.gen.NewID()
	reg.CreatedAt = time.Now().UTC()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO registrations
		   (id, first_name, last_name, company, street, city, zip, phone, email, plan_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11)`,
		reg.ID, reg.FirstName, reg.LastName, reg.Company, reg.Street, reg.City, reg.Zip,
		reg.Phone, reg.Email, reg.PlanID, reg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}

	for i := range dates {
		dates[i].ID = r.gen.NewID()
		dates[i].RegistrationID = reg.ID
		dates[i].CreatedAt = reg.CreatedAt
		if err = r.insertDate(ctx, tx, &dates[i]); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListDates returns all booked rows of a registration, oldest first.
func (r *RegistrationRepository) ListDates(ctx context.Context, registrationID string) ([]model.RegistrationDate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, registration_id, event_id, date, quantity,
		        COALESCE(notes, ''), COALESCE(created_by, ''), created_at
		 FROM registration_dates
		 WHERE registration_id = $1
		 ORDER BY created_at, event_id, date`,
		registrationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registration dates: %w", err)
	}
	defer rows.Close()

	var dates []model.RegistrationDate
	for rows.Next() {
		var d model.RegistrationDate
		var day *time.Time
		if err := rows.Scan(&d.ID, &d.RegistrationID, &d.EventID, &day, &d.Quantity,
			&d.Notes, &d.CreatedBy, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan registration date: %w", err)
		}
		if day != nil {
			d.Date = day.Format(isoDate)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// AvailableDates returns every event date in the given year that lies
// on or after today and is not yet booked by the registration. This is
// the availability list an admin reviews before a manual addition.
func (r *RegistrationRepository) AvailableDates(ctx context.Context, registrationID string, year int) ([]model.EventDate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT d.id, d.event_id, d.date, COALESCE(d.title, '')
		 FROM event_dates d
		 WHERE date_part('year', d.date) = $2
		   AND d.date >= CURRENT_DATE
		   AND NOT EXISTS (
		     SELECT 1 FROM registration_dates rd
		     WHERE rd.registration_id = $1
		       AND rd.event_id = d.event_id
		       AND rd.date = d.date
		   )
		 ORDER BY d.event_id, d.date`,
		registrationID, year,
	)
	if err != nil {
		return nil, fmt.Errorf("list available dates: %w", err)
	}
	defer rows.Close()

	var dates []model.EventDate
	for rows.Next() {
		var d model.EventDate
		var day time.Time
		if err := rows.Scan(&d.ID, &d.EventID, &day, &d.Title); err != nil {
			return nil, fmt.Errorf("scan available date: %w", err)
		}
		d.Date = day.Format(isoDate)
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// AppendDates adds manually justified rows to an existing registration
// inside one transaction. Existing rows are never touched.
func (r *RegistrationRepository) AppendDates(ctx context.Context, registrationID string, dates []model.RegistrationDate) error {
	now := time.Now().UTC()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for i := range dates {
		dates[i].ID = r.gen.NewID()
		dates[i].RegistrationID = registrationID
		dates[i].CreatedAt = now
		if err = r.insertDate(ctx, tx, &dates[i]); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *RegistrationRepository) insertDate(ctx context.Context, tx pgx.Tx, d *model.RegistrationDate) error {
	var day *time.Time
	if d.Date != "" {
		parsed, err := time.Parse(isoDate, d.Date)
		if err != nil {
			return fmt.Errorf("parse date %q: %w", d.Date, err)
		}
		day = &parsed
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO registration_dates
		   (id, registration_id, event_id, date, quantity, notes, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)`,
		d.ID, d.RegistrationID, d.EventID, day, d.Quantity, d.Notes, d.CreatedBy, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert registration date: %w", err)
	}
	return nil
}
