package scheduler

import "sort"

// Severity describes whether a conflict blocks a placement.
type Severity string

const (
	// SeverityHard conflicts must block the placement.
	SeverityHard Severity = "hard"
	// SeveritySoft conflicts are reported but never block.
	SeveritySoft Severity = "soft"
)

// Reason enumerates the causes of a conflict.
type Reason string

const (
	// ReasonDoubleBooking indicates another session of the trainer overlaps the placement.
	ReasonDoubleBooking Reason = "double_booking"
	// ReasonOutsideAvailability indicates the placement is not covered by effective availability.
	ReasonOutsideAvailability Reason = "outside_availability"
	// ReasonBufferViolation indicates the placement sits inside another session's buffer zone.
	ReasonBufferViolation Reason = "buffer_violation"
	// ReasonUnusualDuration indicates the duration is off the slot grid or longer than allowed.
	ReasonUnusualDuration Reason = "unusual_duration"
	// ReasonClientDoubleBooking indicates the client already has an overlapping session elsewhere.
	ReasonClientDoubleBooking Reason = "client_double_booking"
	// ReasonPackageExhausted indicates the session's package has no sessions left.
	ReasonPackageExhausted Reason = "package_exhausted"
)

// Severity returns the fixed severity of the reason.
func (r Reason) Severity() Severity {
	switch r {
	case ReasonDoubleBooking, ReasonOutsideAvailability:
		return SeverityHard
	default:
		return SeveritySoft
	}
}

// Conflict details a rule a placement violates.
type Conflict struct {
	Severity         Severity
	Reason           Reason
	RelatedSessionID string
	Message          string
}

// Hard reports whether the conflict blocks the placement.
func (c Conflict) Hard() bool { return c.Severity == SeverityHard }

func newConflict(reason Reason, related, message string) Conflict {
	return Conflict{
		Severity:         reason.Severity(),
		Reason:           reason,
		RelatedSessionID: related,
		Message:          message,
	}
}

// sortConflicts orders hard before soft, then by reason and related session.
func sortConflicts(conflicts []Conflict) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Hard() != b.Hard() {
			return a.Hard()
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return a.RelatedSessionID < b.RelatedSessionID
	})
}
