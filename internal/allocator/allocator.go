// Package allocator implements the three-step sponsorship wizard:
// plan-driven date selection, supplemental date/quantity selection, and
// final pricing. It is pure computation over an immutable catalog
// snapshot; persistence and retries live elsewhere.
package allocator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nordbay-events/sponsorreg/internal/model"
)

// ErrUnknownPlan is returned when a plan id does not exist.
var ErrUnknownPlan = errors.New("unknown sponsorship plan")

// ErrUnknownEvent is returned when an event id is not in the catalog.
var ErrUnknownEvent = errors.New("unknown event")

// ErrUnknownDate is returned when a date is not offered for the event.
var ErrUnknownDate = errors.New("date not offered for this event")

// ErrNoPlan is returned when plan dates are toggled without a plan.
var ErrNoPlan = errors.New("no sponsorship plan chosen")

// ErrDateClaimed rejects a toggle that would put the same date in both
// the plan and the supplemental selection of one event.
var ErrDateClaimed = errors.New("date already claimed by the other selection step")

// ErrLimitReached rejects a toggle that would exceed the applicable
// selection limit.
var ErrLimitReached = errors.New("selection limit reached")

// ErrAboveMaxUnits rejects a supplemental limit above the number of
// units an event allows a single sponsor to buy.
var ErrAboveMaxUnits = errors.New("limit above the event's purchasable maximum")

// Catalog is the immutable event/date/plan snapshot one registration
// session works against.
type Catalog struct {
	Events []model.Event
	Dates  map[string][]model.EventDate
	Plans  []model.SponsorshipPlan
}

// NewCatalog assembles a catalog, ordering events by their sort order
// so validation messages and allocations come out deterministic.
func NewCatalog(events []model.Event, dates []model.EventDate, plans []model.SponsorshipPlan) Catalog {
	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortOrder < sorted[j].SortOrder
	})

	byEvent := make(map[string][]model.EventDate)
	for _, d := range dates {
		byEvent[d.EventID] = append(byEvent[d.EventID], d)
	}
	for id := range byEvent {
		ds := byEvent[id]
		sort.SliceStable(ds, func(i, j int) bool { return ds[i].Date < ds[j].Date })
	}

	return Catalog{Events: sorted, Dates: byEvent, Plans: plans}
}

// Event returns the catalog event with the given id, or nil.
func (c *Catalog) Event(id string) *model.Event {
	for i := range c.Events {
		if c.Events[i].ID == id {
			return &c.Events[i]
		}
	}
	return nil
}

// AvailableDates returns the ISO dates offered for an event, ascending.
func (c *Catalog) AvailableDates(eventID string) []string {
	ds := c.Dates[eventID]
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Date
	}
	return out
}

func (c *Catalog) hasDate(eventID, date string) bool {
	for _, d := range c.Dates[eventID] {
		if d.Date == date {
			return true
		}
	}
	return false
}

// Allocation is the final per-event result of a session: a deduplicated
// date set, or a bare quantity when the event does not use dates
// (Quantity is model.QuantityAll for an "all units" booking).
type Allocation struct {
	EventID  string   `json:"event_id"`
	Dates    []string `json:"dates,omitempty"`
	Quantity int      `json:"quantity"`
}

// SelectionState is the plain-data snapshot handed across the API
// boundary; mutating it never affects the session.
type SelectionState struct {
	PlanID             string                 `json:"plan_id,omitempty"`
	PlanDates          map[string][]string    `json:"plan_dates"`
	SupplementalDates  map[string][]string    `json:"supplemental_dates"`
	SupplementalLimits map[string]model.Limit `json:"supplemental_limits"`
	Total              int                    `json:"total"`
}

// Session holds one user's in-progress selections. Not safe for
// concurrent use; each registration session owns exactly one.
//
// Selections are kept as insertion-ordered slices per event, which
// gives SetSupplementalLimit a well-defined trim order: when a limit
// drops below the current selection count, the most recently added
// dates are dropped first.
type Session struct {
	catalog Catalog
	plan    *model.SponsorshipPlan
	planSel map[string][]string
	suppSel map[string][]string
	suppLim map[string]model.Limit
}

// NewSession starts an empty session over the given catalog.
func NewSession(catalog Catalog) *Session {
	s := &Session{catalog: catalog}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.planSel = make(map[string][]string)
	s.suppSel = make(map[string][]string)
	s.suppLim = make(map[string]model.Limit)
}

// SelectPlan resets both selection sets and switches to the given plan.
// An empty id means "no plan". Auto-select events come pre-filled with
// every currently available date.
func (s *Session) SelectPlan(planID string) error {
	if planID == "" {
		s.plan = nil
		s.reset()
		return nil
	}
	plan := model.PlanByID(s.catalog.Plans, planID)
	if plan == nil {
		return fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}
	s.plan = plan
	s.reset()
	for _, eventID := range plan.AutoSelect {
		if !plan.Limits[eventID].IsAll() {
			continue
		}
		dates := s.catalog.AvailableDates(eventID)
		if len(dates) > 0 {
			s.planSel[eventID] = dates
		}
	}
	return nil
}

// TogglePlanDate selects or deselects a date against the plan's
// allotment. Deselecting is always allowed; selecting is rejected when
// the date is claimed supplementally or the allotment is used up.
func (s *Session) TogglePlanDate(eventID, date string) error {
	if s.plan == nil {
		return ErrNoPlan
	}
	if err := s.checkDate(eventID, date); err != nil {
		return err
	}
	if removeDate(s.planSel, eventID, date) {
		return nil
	}
	if contains(s.suppSel[eventID], date) {
		return ErrDateClaimed
	}
	limit := s.plan.Limits[eventID].Effective(len(s.catalog.Dates[eventID]))
	if len(s.planSel[eventID]) >= limit {
		return ErrLimitReached
	}
	s.planSel[eventID] = append(s.planSel[eventID], date)
	return nil
}

// ValidatePlanStep returns one message per event whose plan allotment
// is not used up exactly. An empty result means the step may proceed.
func (s *Session) ValidatePlanStep() []string {
	if s.plan == nil {
		return nil
	}
	var violations []string
	for _, ev := range s.catalog.Events {
		limit := s.plan.Limits[ev.ID]
		if limit.IsZero() {
			continue
		}
		required := limit.Effective(len(s.catalog.Dates[ev.ID]))
		if got := len(s.planSel[ev.ID]); got != required {
			violations = append(violations, fmt.Sprintf(
				"%s: the %s plan includes %d date(s), %d selected",
				ev.Name, s.plan.Name, required, got))
		}
	}
	return violations
}

// SetSupplementalLimit sets the user-chosen ceiling for additional
// units of one event. Lowering the limit below the current selection
// count drops the most recently added dates first. An unbounded limit
// auto-fills every date not claimed by the plan when the event uses
// dates; for quantity-only events it is a pure "all units" marker.
// A zero limit clears the event's supplemental state.
func (s *Session) SetSupplementalLimit(eventID string, limit model.Limit) error {
	ev := s.catalog.Event(eventID)
	if ev == nil {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, eventID)
	}

	if limit.IsZero() {
		delete(s.suppLim, eventID)
		delete(s.suppSel, eventID)
		return nil
	}

	if limit.IsAll() {
		s.suppLim[eventID] = limit
		if ev.DateSelectionRequired {
			var fill []string
			for _, d := range s.catalog.AvailableDates(eventID) {
				if !contains(s.planSel[eventID], d) {
					fill = append(fill, d)
				}
			}
			s.suppSel[eventID] = fill
		}
		return nil
	}

	if ev.MaxUnits > 0 && limit.Count() > ev.MaxUnits {
		return fmt.Errorf("%w: %d > %d", ErrAboveMaxUnits, limit.Count(), ev.MaxUnits)
	}
	s.suppLim[eventID] = limit
	if sel := s.suppSel[eventID]; len(sel) > limit.Count() {
		s.suppSel[eventID] = sel[:limit.Count()]
	}
	return nil
}

// ToggleSupplementalDate selects or deselects a date against the
// event's supplemental limit, with the same claim/limit rejection rules
// as TogglePlanDate.
func (s *Session) ToggleSupplementalDate(eventID, date string) error {
	if err := s.checkDate(eventID, date); err != nil {
		return err
	}
	if removeDate(s.suppSel, eventID, date) {
		return nil
	}
	if contains(s.planSel[eventID], date) {
		return ErrDateClaimed
	}
	limit := s.suppLim[eventID]
	if limit.IsZero() {
		return ErrLimitReached
	}
	ceiling := limit.Effective(len(s.catalog.Dates[eventID]) - len(s.planSel[eventID]))
	if len(s.suppSel[eventID]) >= ceiling {
		return ErrLimitReached
	}
	s.suppSel[eventID] = append(s.suppSel[eventID], date)
	return nil
}

// ValidateSupplementalStep returns one message per date-based event
// whose selection count is still below its supplemental limit. Unlike
// the plan step this is an at-least check: overshooting is impossible
// because ToggleSupplementalDate rejects at the ceiling.
func (s *Session) ValidateSupplementalStep() []string {
	var violations []string
	for _, ev := range s.catalog.Events {
		limit := s.suppLim[ev.ID]
		if limit.IsZero() || !ev.DateSelectionRequired {
			continue
		}
		required := limit.Effective(len(s.catalog.Dates[ev.ID]) - len(s.planSel[ev.ID]))
		if got := len(s.suppSel[ev.ID]); got < required {
			violations = append(violations, fmt.Sprintf(
				"%s: %d additional date(s) chosen, only %d selected",
				ev.Name, required, got))
		}
	}
	return violations
}

// Total prices the session: the plan's flat price (its date allotment
// is inclusive) plus, per event, the bulk price for an unbounded
// supplemental limit or count times unit price for a finite one.
func (s *Session) Total() int {
	total := 0
	if s.plan != nil {
		total += s.plan.Price
	}
	for _, ev := range s.catalog.Events {
		limit := s.suppLim[ev.ID]
		switch {
		case limit.IsZero():
		case limit.IsAll():
			total += ev.BulkPrice
		default:
			total += limit.Count() * ev.UnitPrice
		}
	}
	return total
}

// Finalize merges both selection sets into one deduplicated,
// date-sorted allocation per event. A quantity-only event with a
// supplemental limit but no dates gets a single placeholder allocation
// carrying the quantity (model.QuantityAll for "all units"). Events
// with no selections of any kind are omitted.
func (s *Session) Finalize() map[string]Allocation {
	out := make(map[string]Allocation)
	for _, ev := range s.catalog.Events {
		dates := mergeDates(s.planSel[ev.ID], s.suppSel[ev.ID])
		if len(dates) > 0 {
			out[ev.ID] = Allocation{EventID: ev.ID, Dates: dates, Quantity: len(dates)}
			continue
		}
		limit := s.suppLim[ev.ID]
		if ev.DateSelectionRequired || limit.IsZero() {
			continue
		}
		qty := model.QuantityAll
		if !limit.IsAll() {
			qty = limit.Count()
		}
		out[ev.ID] = Allocation{EventID: ev.ID, Quantity: qty}
	}
	return out
}

// EventOrder returns the catalog's event ids in sort order, so callers
// can flatten Finalize output deterministically.
func (s *Session) EventOrder() []string {
	ids := make([]string, len(s.catalog.Events))
	for i, ev := range s.catalog.Events {
		ids[i] = ev.ID
	}
	return ids
}

// PlanID returns the chosen plan id, empty when none.
func (s *Session) PlanID() string {
	if s.plan == nil {
		return ""
	}
	return s.plan.ID
}

// State snapshots the session as plain data.
func (s *Session) State() SelectionState {
	return SelectionState{
		PlanID:             s.PlanID(),
		PlanDates:          copySelections(s.planSel),
		SupplementalDates:  copySelections(s.suppSel),
		SupplementalLimits: copyLimits(s.suppLim),
		Total:              s.Total(),
	}
}

func (s *Session) checkDate(eventID, date string) error {
	if s.catalog.Event(eventID) == nil {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, eventID)
	}
	if !s.catalog.hasDate(eventID, date) {
		return fmt.Errorf("%w: %s on %s", ErrUnknownDate, date, eventID)
	}
	return nil
}

func contains(dates []string, date string) bool {
	for _, d := range dates {
		if d == date {
			return true
		}
	}
	return false
}

// removeDate deletes date from sel[eventID] preserving insertion order;
// it reports whether the date was present.
func removeDate(sel map[string][]string, eventID, date string) bool {
	dates := sel[eventID]
	for i, d := range dates {
		if d == date {
			sel[eventID] = append(dates[:i:i], dates[i+1:]...)
			if len(sel[eventID]) == 0 {
				delete(sel, eventID)
			}
			return true
		}
	}
	return false
}

func mergeDates(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var merged []string
	for _, d := range a {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			merged = append(merged, d)
		}
	}
	for _, d := range b {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			merged = append(merged, d)
		}
	}
	sort.Strings(merged)
	return merged
}

func copySelections(sel map[string][]string) map[string][]string {
	out := make(map[string][]string, len(sel))
	for id, dates := range sel {
		out[id] = append([]string(nil), dates...)
	}
	return out
}

func copyLimits(lim map[string]model.Limit) map[string]model.Limit {
	out := make(map[string]model.Limit, len(lim))
	for id, l := range lim {
		out[id] = l
	}
	return out
}
