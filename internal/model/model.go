// Package model defines the core domain types for the sponsorship
// registration system.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// QuantityAll is the persisted quantity sentinel meaning "all/unlimited
// units" for an event that does not use calendar dates.
const QuantityAll = -1

// Event represents one sponsorship offering from the admin catalog.
// Immutable for the duration of a registration session.
type Event struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	UnitPrice             int    `json:"unit_price"`
	BulkPrice             int    `json:"bulk_price"`
	MaxUnits              int    `json:"max_units"`
	DateSelectionRequired bool   `json:"date_selection_required"`
	SortOrder             int    `json:"sort_order"`
}

// EventDate is one bookable calendar date of a date-based event.
// Dates are ISO strings ("2006-01-02") throughout the wizard.
type EventDate struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	Date    string `json:"date"`
	Title   string `json:"title,omitempty"`
}

// SponsorshipPlan is a static package deal: a flat price buying a fixed
// allotment of dates per event. Plans are compiled in, not persisted.
type SponsorshipPlan struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int    `json:"price"`
	// Limits maps event id to the plan's date allotment for that event.
	// A zero limit means the event is not eligible under the plan.
	Limits map[string]Limit `json:"limits"`
	// AutoSelect lists event ids whose full date set is pre-filled the
	// moment the plan is chosen.
	AutoSelect []string `json:"auto_select,omitempty"`
}

// Eligible reports whether the plan grants any allotment for the event.
func (p *SponsorshipPlan) Eligible(eventID string) bool {
	return !p.Limits[eventID].IsZero()
}

// Registration is one submitted sponsorship registration.
type Registration struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Company   string    `json:"company,omitempty"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	Zip       string    `json:"zip"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	PlanID    string    `json:"plan_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RegistrationDate is one booked unit of a registration: either a
// concrete calendar date, or a quantity-only row when the event does
// not use dates (Date empty, Quantity carries the count or QuantityAll).
type RegistrationDate struct {
	ID             string    `json:"id"`
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	Date           string    `json:"date,omitempty"`
	Quantity       int       `json:"quantity"`
	Notes          string    `json:"notes,omitempty"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Limit is a selection ceiling: a finite count or "every available
// unit". The zero value is Finite(0), meaning none.
type Limit struct {
	n   int
	all bool
}

// Finite returns a bounded limit of n units.
func Finite(n int) Limit {
	return Limit{n: n}
}

// Unbounded is the limit meaning "all available units".
var Unbounded = Limit{all: true}

// IsAll reports whether the limit is unbounded.
func (l Limit) IsAll() bool { return l.all }

// IsZero reports whether the limit grants nothing.
func (l Limit) IsZero() bool { return !l.all && l.n <= 0 }

// Count returns the finite count; it panics on an unbounded limit so
// callers are forced to branch on IsAll first.
func (l Limit) Count() int {
	if l.all {
		panic("model: Count called on unbounded limit")
	}
	return l.n
}

// Effective resolves the limit against the number of available units.
func (l Limit) Effective(available int) int {
	if l.all {
		return available
	}
	return min(l.n, available)
}

func (l Limit) String() string {
	if l.all {
		return "ALL"
	}
	return fmt.Sprintf("%d", l.n)
}

// MarshalJSON encodes a finite limit as a number and an unbounded one
// as the string "ALL", keeping the original wire vocabulary.
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.all {
		return json.Marshal("ALL")
	}
	return json.Marshal(l.n)
}

// UnmarshalJSON accepts either a non-negative number or the string
// "ALL" (lowercase also tolerated).
func (l *Limit) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 {
			return fmt.Errorf("limit must not be negative, got %d", n)
		}
		*l = Finite(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("limit must be a number or \"ALL\"")
	}
	if s != "ALL" && s != "all" {
		return fmt.Errorf("limit must be a number or \"ALL\", got %q", s)
	}
	*l = Unbounded
	return nil
}
