// Package scheduler evaluates proposed session placements against trainer
// availability, existing bookings and buffer rules, and suggests alternatives.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/recurrence"
	"github.com/example/studio-scheduler/internal/registry"
)

const (
	defaultBufferMinutes     = 15
	defaultSlotMinutes       = 30
	defaultAlternativeLimit  = 5
	defaultHorizonDays       = 7
	defaultMaxSessionMinutes = 180
	maxHorizonDays           = 60
)

var (
	// ErrSessionNotFound indicates the session being placed is not in the registry snapshot.
	ErrSessionNotFound = errors.New("scheduler: session not found")
	// ErrInvalidRequest indicates a malformed placement request.
	ErrInvalidRequest = errors.New("scheduler: invalid request")
)

// Policy holds the rule constants of the checker.
type Policy struct {
	Location               *time.Location
	BufferMinutes          int
	SlotMinutes            int
	AlternativeLimit       int
	AlternativeHorizonDays int
	MaxSessionMinutes      int
	SuggestOtherTrainers   bool
}

// DefaultPolicy returns the studio defaults.
func DefaultPolicy() Policy {
	return Policy{
		Location:               time.UTC,
		BufferMinutes:          defaultBufferMinutes,
		SlotMinutes:            defaultSlotMinutes,
		AlternativeLimit:       defaultAlternativeLimit,
		AlternativeHorizonDays: defaultHorizonDays,
		MaxSessionMinutes:      defaultMaxSessionMinutes,
	}
}

func (p Policy) normalized() Policy {
	if p.Location == nil {
		p.Location = time.UTC
	}
	if p.BufferMinutes < 0 {
		p.BufferMinutes = 0
	}
	if p.SlotMinutes <= 0 {
		p.SlotMinutes = defaultSlotMinutes
	}
	if p.AlternativeLimit <= 0 {
		p.AlternativeLimit = defaultAlternativeLimit
	}
	if p.AlternativeHorizonDays < 0 {
		p.AlternativeHorizonDays = 0
	}
	if p.AlternativeHorizonDays > maxHorizonDays {
		p.AlternativeHorizonDays = maxHorizonDays
	}
	return p
}

// AvailabilitySource resolves effective trainer availability.
type AvailabilitySource interface {
	Day(trainerID string, date calendar.Date) availability.Day
	Trainers() []string
}

// Snapshot is the read-only state a check runs against.
type Snapshot struct {
	Sessions     *registry.Registry
	Availability AvailabilitySource
}

// Request proposes a new placement for a session.
type Request struct {
	SessionID string
	Date      calendar.Date
	Start     calendar.TimeOfDay
	// TrainerID reassigns the session when set.
	TrainerID string
	// DurationMinutes resizes the session when positive.
	DurationMinutes int
	// NotBefore excludes alternatives starting before the instant when set.
	NotBefore time.Time
}

// Key returns the stable deduplication key of the request.
func (r Request) Key() string {
	return StableKey(r.SessionID, r.Date, r.Start, r.TrainerID)
}

// StableKey identifies a placement target within a gesture.
func StableKey(sessionID string, date calendar.Date, start calendar.TimeOfDay, trainerID string) string {
	return fmt.Sprintf("%s|%s|%s|%s", sessionID, date, start, trainerID)
}

// Alternative is a suggested conflict-free placement.
type Alternative struct {
	TrainerID       string
	Date            calendar.Date
	Start           calendar.TimeOfDay
	StartsAt        time.Time
	DistanceMinutes int
}

// Result is the outcome of a check. Conflicts are values, never errors.
type Result struct {
	SessionID    string
	TrainerID    string
	Start        time.Time
	End          time.Time
	Conflicts    []Conflict
	Alternatives []Alternative
}

// HasHardConflict reports whether the placement must be rejected.
func (r Result) HasHardConflict() bool {
	for _, c := range r.Conflicts {
		if c.Hard() {
			return true
		}
	}
	return false
}

// Valid reports whether the placement may be committed.
func (r Result) Valid() bool { return !r.HasHardConflict() }

// NoAlternatives reports that the placement is blocked and nothing else fits
// within the search horizon. It is false when there are no hard conflicts.
func (r Result) NoAlternatives() bool {
	return r.HasHardConflict() && len(r.Alternatives) == 0
}

// HardConflicts returns the blocking conflicts.
func (r Result) HardConflicts() []Conflict { return r.filter(true) }

// SoftConflicts returns the advisory conflicts.
func (r Result) SoftConflicts() []Conflict { return r.filter(false) }

func (r Result) filter(hard bool) []Conflict {
	var out []Conflict
	for _, c := range r.Conflicts {
		if c.Hard() == hard {
			out = append(out, c)
		}
	}
	return out
}

// Checker evaluates placements. It holds no mutable state and is safe for concurrent use.
type Checker struct {
	policy Policy
	engine *recurrence.Engine
}

// NewChecker constructs a checker for the given policy.
func NewChecker(policy Policy) *Checker {
	policy = policy.normalized()
	return &Checker{policy: policy, engine: recurrence.NewEngine(policy.Location)}
}

// Policy returns the normalized policy in effect.
func (c *Checker) Policy() Policy { return c.policy }

// Check evaluates moving the session named by req to the requested slot.
func (c *Checker) Check(snap Snapshot, req Request) (Result, error) {
	session, ok := snap.Sessions.Get(req.SessionID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
	}
	return c.CheckCandidate(snap, session, req)
}

// CheckCandidate evaluates placing session, which need not be in the registry yet.
func (c *Checker) CheckCandidate(snap Snapshot, session registry.Session, req Request) (Result, error) {
	p, err := c.placement(session, req)
	if err != nil {
		return Result{}, err
	}

	conflicts := c.hardConflicts(snap, p)
	conflicts = append(conflicts, c.softConflicts(snap, p)...)
	sortConflicts(conflicts)

	result := Result{
		SessionID: session.ID,
		TrainerID: p.trainerID,
		Start:     p.start,
		End:       p.end,
		Conflicts: conflicts,
	}
	if result.HasHardConflict() {
		alts, err := c.alternatives(snap, p, req.NotBefore)
		if err != nil {
			return Result{}, err
		}
		result.Alternatives = alts
	}
	return result, nil
}

type placement struct {
	session   registry.Session
	trainerID string
	date      calendar.Date
	startTOD  calendar.TimeOfDay
	duration  int
	start     time.Time
	end       time.Time
}

func (c *Checker) placement(session registry.Session, req Request) (placement, error) {
	if req.Date.IsZero() {
		return placement{}, fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}
	if !req.Start.Valid() || req.Start == calendar.EndOfDay {
		return placement{}, fmt.Errorf("%w: start %d is out of range", ErrInvalidRequest, int(req.Start))
	}
	duration := session.DurationMinutes
	if req.DurationMinutes > 0 {
		duration = req.DurationMinutes
	}
	if duration <= 0 {
		return placement{}, fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	}
	trainerID := req.TrainerID
	if trainerID == "" {
		trainerID = session.TrainerID
	}
	if trainerID == "" {
		return placement{}, fmt.Errorf("%w: trainer is required", ErrInvalidRequest)
	}
	start := req.Date.At(req.Start, c.policy.Location)
	return placement{
		session:   session,
		trainerID: trainerID,
		date:      req.Date,
		startTOD:  req.Start,
		duration:  duration,
		start:     start,
		end:       start.Add(time.Duration(duration) * time.Minute),
	}, nil
}

func (p placement) moved(trainerID string, date calendar.Date, start calendar.TimeOfDay, loc *time.Location) placement {
	p.trainerID = trainerID
	p.date = date
	p.startTOD = start
	p.start = date.At(start, loc)
	p.end = p.start.Add(time.Duration(p.duration) * time.Minute)
	return p
}

func (c *Checker) hardConflicts(snap Snapshot, p placement) []Conflict {
	var out []Conflict
	for _, other := range snap.Sessions.Occupying(p.trainerID, p.start, p.end, p.session.ID) {
		out = append(out, newConflict(ReasonDoubleBooking, other.ID,
			fmt.Sprintf("overlaps session %s at %s", other.ID, other.Start.In(c.policy.Location).Format("2006-01-02 15:04"))))
	}
	if !c.covered(snap, p) {
		out = append(out, newConflict(ReasonOutsideAvailability, "",
			fmt.Sprintf("trainer %s is not available %s %s-%s", p.trainerID, p.date, p.startTOD, p.startTOD.Add(p.duration))))
	}
	return out
}

func (c *Checker) covered(snap Snapshot, p placement) bool {
	end := p.startTOD.Add(p.duration)
	if end > calendar.EndOfDay || snap.Availability == nil {
		return false
	}
	return snap.Availability.Day(p.trainerID, p.date).Covers(p.startTOD, end)
}

func (c *Checker) softConflicts(snap Snapshot, p placement) []Conflict {
	var out []Conflict

	if buffer := time.Duration(c.policy.BufferMinutes) * time.Minute; buffer > 0 {
		prev, next := snap.Sessions.Neighbours(p.trainerID, p.start, p.end, p.session.ID)
		if prev != nil && p.start.Sub(prev.End()) < buffer {
			out = append(out, newConflict(ReasonBufferViolation, prev.ID,
				fmt.Sprintf("starts %d min after session %s ends; %d min buffer required", int(p.start.Sub(prev.End()).Minutes()), prev.ID, c.policy.BufferMinutes)))
		}
		if next != nil && next.Start.Sub(p.end) < buffer {
			out = append(out, newConflict(ReasonBufferViolation, next.ID,
				fmt.Sprintf("ends %d min before session %s starts; %d min buffer required", int(next.Start.Sub(p.end).Minutes()), next.ID, c.policy.BufferMinutes)))
		}
	}

	if p.duration%c.policy.SlotMinutes != 0 {
		out = append(out, newConflict(ReasonUnusualDuration, "",
			fmt.Sprintf("duration %d min is not a multiple of %d min", p.duration, c.policy.SlotMinutes)))
	} else if c.policy.MaxSessionMinutes > 0 && p.duration > c.policy.MaxSessionMinutes {
		out = append(out, newConflict(ReasonUnusualDuration, "",
			fmt.Sprintf("duration %d min exceeds %d min", p.duration, c.policy.MaxSessionMinutes)))
	}

	for _, other := range snap.Sessions.ClientOccupying(p.session.ClientID, p.start, p.end, p.session.ID) {
		if other.TrainerID == p.trainerID {
			continue
		}
		out = append(out, newConflict(ReasonClientDoubleBooking, other.ID,
			fmt.Sprintf("client %s already has session %s with trainer %s", p.session.ClientID, other.ID, other.TrainerID)))
	}

	if p.session.Package.Exhausted() {
		out = append(out, newConflict(ReasonPackageExhausted, "",
			fmt.Sprintf("package %q has no sessions remaining", p.session.Package.Name)))
	}
	return out
}

func (c *Checker) alternatives(snap Snapshot, p placement, notBefore time.Time) ([]Alternative, error) {
	if snap.Availability == nil {
		return nil, nil
	}
	trainers := []string{p.trainerID}
	if c.policy.SuggestOtherTrainers {
		for _, id := range snap.Availability.Trainers() {
			if id != p.trainerID {
				trainers = append(trainers, id)
			}
		}
	}

	from := p.date.AddDays(-c.policy.AlternativeHorizonDays)
	to := p.date.AddDays(c.policy.AlternativeHorizonDays)
	slot := c.policy.SlotMinutes

	var out []Alternative
	for _, trainerID := range trainers {
		occurrences, err := c.engine.Expand(snap.Availability, trainerID, from, to)
		if err != nil {
			return nil, fmt.Errorf("expand availability for %s: %w", trainerID, err)
		}
		for _, occ := range occurrences {
			first := occ.Window.Start
			if rem := int(first) % slot; rem != 0 {
				first = first.Add(slot - rem)
			}
			for t := first; t.Add(p.duration) <= occ.Window.End; t = t.Add(slot) {
				candidate := p.moved(trainerID, occ.Date, t, c.policy.Location)
				if !notBefore.IsZero() && candidate.start.Before(notBefore) {
					continue
				}
				if len(c.hardConflicts(snap, candidate)) > 0 {
					continue
				}
				distance := candidate.start.Sub(p.start)
				if distance < 0 {
					distance = -distance
				}
				out = append(out, Alternative{
					TrainerID:       trainerID,
					Date:            occ.Date,
					Start:           t,
					StartsAt:        candidate.start,
					DistanceMinutes: int(distance / time.Minute),
				})
			}
		}
	}

	requested := p.trainerID
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DistanceMinutes != b.DistanceMinutes {
			return a.DistanceMinutes < b.DistanceMinutes
		}
		if !a.StartsAt.Equal(b.StartsAt) {
			return a.StartsAt.After(b.StartsAt)
		}
		if (a.TrainerID == requested) != (b.TrainerID == requested) {
			return a.TrainerID == requested
		}
		return a.TrainerID < b.TrainerID
	})
	if len(out) > c.policy.AlternativeLimit {
		out = out[:c.policy.AlternativeLimit]
	}
	return out, nil
}
