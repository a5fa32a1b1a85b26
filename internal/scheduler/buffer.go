package scheduler

import (
	"sort"
	"time"

	"github.com/example/studio-scheduler/internal/registry"
)

// Edge names the side of a session a buffer zone sits on.
type Edge string

const (
	// EdgeBefore is the zone ending where the session starts.
	EdgeBefore Edge = "before"
	// EdgeAfter is the zone starting where the session ends.
	EdgeAfter Edge = "after"
)

// BufferZone is a derived display interval next to a session. It is never
// stored and never treated as a session by the checker.
type BufferZone struct {
	SessionID string
	TrainerID string
	Edge      Edge
	Start     time.Time
	End       time.Time
}

// BufferZones returns the zones on both sides of s. Cancelled sessions and a
// non-positive buffer yield none.
func BufferZones(s registry.Session, bufferMinutes int) []BufferZone {
	if bufferMinutes <= 0 || !s.Status.Occupies() || s.DurationMinutes <= 0 {
		return nil
	}
	buffer := time.Duration(bufferMinutes) * time.Minute
	return []BufferZone{
		{SessionID: s.ID, TrainerID: s.TrainerID, Edge: EdgeBefore, Start: s.Start.Add(-buffer), End: s.Start},
		{SessionID: s.ID, TrainerID: s.TrainerID, Edge: EdgeAfter, Start: s.End(), End: s.End().Add(buffer)},
	}
}

// RenderBuffers returns the zones of every session ordered by start, session and edge.
func RenderBuffers(sessions []registry.Session, bufferMinutes int) []BufferZone {
	var out []BufferZone
	for _, s := range sessions {
		out = append(out, BufferZones(s, bufferMinutes)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.SessionID != b.SessionID {
			return a.SessionID < b.SessionID
		}
		return a.Edge == EdgeBefore && b.Edge == EdgeAfter
	})
	return out
}
