package dragdrop

import (
	"github.com/example/studio-scheduler/internal/registry"
	"github.com/example/studio-scheduler/internal/scheduler"
)

// Affordance is the visual state of the dragged ghost.
type Affordance string

const (
	// AffordanceNone is shown while idle or before the first hover.
	AffordanceNone Affordance = "none"
	// AffordancePending is shown while the check for the current target runs.
	AffordancePending Affordance = "pending"
	// AffordanceValid is shown when the current target can be dropped on.
	AffordanceValid Affordance = "valid"
	// AffordanceInvalid is shown when the current target has hard conflicts.
	AffordanceInvalid Affordance = "invalid"
)

// Preview is what the presentation layer needs to render the gesture.
type Preview struct {
	Dragging       bool
	GestureID      string
	SessionID      string
	Target         *Target
	Ghost          *registry.Session
	Pending        bool
	IsValidDrop    bool
	Affordance     Affordance
	Conflicts      []scheduler.Conflict
	Alternatives   []scheduler.Alternative
	NoAlternatives bool
	BufferZones    []scheduler.BufferZone
	Error          string
}

// Preview returns the current render state.
func (c *Coordinator) Preview() Preview {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.gesture
	if g == nil {
		return Preview{Affordance: AffordanceNone}
	}
	p := Preview{
		Dragging:   true,
		GestureID:  g.id,
		SessionID:  g.session.ID,
		Affordance: AffordanceNone,
	}
	if g.target == nil {
		return p
	}

	t := *g.target
	p.Target = &t
	req := g.request(t)
	ghost := g.session.Clone()
	ghost.Start = req.Date.At(req.Start, c.location)
	ghost.TrainerID = req.TrainerID
	p.Ghost = &ghost
	p.BufferZones = scheduler.BufferZones(ghost, c.bufferMinutes)

	switch {
	case g.err != nil:
		p.Error = g.err.Error()
		p.Affordance = AffordanceInvalid
	case g.result == nil:
		p.Pending = true
		p.Affordance = AffordancePending
	default:
		p.Conflicts = g.result.Conflicts
		p.Alternatives = g.result.Alternatives
		p.NoAlternatives = g.result.NoAlternatives()
		p.IsValidDrop = g.result.Valid()
		if p.IsValidDrop {
			p.Affordance = AffordanceValid
		} else {
			p.Affordance = AffordanceInvalid
		}
	}
	return p
}
