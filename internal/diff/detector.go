// Package diff decides whether a recomputed plan differs enough from the
// previous one to bother the user with a "your targets changed"
// notification.
package diff

import (
	"fmt"
	"math"
	"time"

	"github.com/kcalhq/plansync/internal/types"
)

// Default significance thresholds. Available documentation carried two
// candidate pairs; the quieter one is the default and both knobs are
// configurable, defined here and nowhere else.
const (
	DefaultCalorieDelta = 100.0 // kcal
	DefaultProteinDelta = 15.0  // g
)

// projectionShiftMin is the smallest projected-completion move that
// counts as a timeline shift.
const projectionShiftMin = 24 * time.Hour

// Detector compares target snapshots. The zero value uses the defaults.
type Detector struct {
	CalorieDelta float64
	ProteinDelta float64
}

// Summary describes what moved between two target snapshots. It is
// computed on demand and never persisted.
type Summary struct {
	CalorieDelta      float64 // current minus previous, kcal
	ProteinDelta      float64 // g
	WaterDelta        float64 // ml
	WeeklyRateDelta   float64 // kg/week
	ProjectionShifted bool
	ProjectionDelta   time.Duration // signed move of the projected end date, when both sides have one
}

// Significant reports whether any gated dimension moved enough to notify.
func (s *Summary) Significant() bool {
	return s != nil
}

// Describe renders a short human-readable list of the significant moves.
func (s *Summary) Describe() string {
	if s == nil {
		return "no significant changes"
	}
	out := ""
	if s.CalorieDelta != 0 {
		out += fmt.Sprintf("calories %+.0f kcal; ", s.CalorieDelta)
	}
	if s.ProteinDelta != 0 {
		out += fmt.Sprintf("protein %+.0f g; ", s.ProteinDelta)
	}
	if s.ProjectionShifted {
		out += "timeline shifted; "
	}
	if out == "" {
		return "targets adjusted"
	}
	return out[:len(out)-2]
}

// Compare returns nil when prev is absent (first fetch, nothing to
// compare) or when no gated dimension exceeds its threshold. Otherwise it
// returns the full delta summary, including the ungated dimensions, so
// the notification can show everything that moved.
func (d *Detector) Compare(prev *types.Targets, cur types.Targets) *Summary {
	if prev == nil {
		return nil
	}

	calThreshold := d.CalorieDelta
	if calThreshold <= 0 {
		calThreshold = DefaultCalorieDelta
	}
	proteinThreshold := d.ProteinDelta
	if proteinThreshold <= 0 {
		proteinThreshold = DefaultProteinDelta
	}

	s := Summary{
		CalorieDelta:    cur.CalorieTarget - prev.CalorieTarget,
		ProteinDelta:    cur.ProteinTarget - prev.ProteinTarget,
		WaterDelta:      cur.WaterTarget - prev.WaterTarget,
		WeeklyRateDelta: cur.WeeklyRate - prev.WeeklyRate,
	}
	s.ProjectionShifted, s.ProjectionDelta = projectionShift(prev.Projection, cur.Projection)

	if math.Abs(s.CalorieDelta) > calThreshold ||
		math.Abs(s.ProteinDelta) > proteinThreshold ||
		s.ProjectionShifted {
		return &s
	}
	return nil
}

func projectionShift(prev, cur *types.Projection) (bool, time.Duration) {
	switch {
	case prev == nil && cur == nil:
		return false, 0
	case prev == nil || cur == nil:
		// A projection appearing or disappearing is itself a timeline change.
		return true, 0
	}
	if prev.ProjectedEndDate == nil || cur.ProjectedEndDate == nil {
		return prev.ProjectedEndDate != cur.ProjectedEndDate, 0
	}
	delta := cur.ProjectedEndDate.Sub(*prev.ProjectedEndDate)
	if delta >= projectionShiftMin || delta <= -projectionShiftMin {
		return true, delta
	}
	return false, 0
}
