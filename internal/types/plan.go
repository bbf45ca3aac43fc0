package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Plan is the computed nutrition plan returned by the compute service.
// It is the artifact this client caches: everything else in the system
// exists to keep one of these fresh and durable.
type Plan struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	Status     PlanStatus `json:"status"`
	Targets    Targets    `json:"targets"`
	// WhyItWorks is the service's explanation blob, passed through
	// untouched so new fields survive a round-trip through the cache.
	WhyItWorks json.RawMessage `json:"why_it_works,omitempty"`
}

// Targets holds the daily numeric targets of a plan.
type Targets struct {
	BMR           float64     `json:"bmr"`            // kcal/day
	TDEE          float64     `json:"tdee"`           // kcal/day
	CalorieTarget float64     `json:"calorie_target"` // kcal/day
	ProteinTarget float64     `json:"protein_target"` // g/day
	WaterTarget   float64     `json:"water_target"`   // ml/day
	WeeklyRate    float64     `json:"weekly_rate"`    // kg/week, negative means loss
	Projection    *Projection `json:"projection,omitempty"`
}

// Projection estimates when the plan's goal will be reached.
type Projection struct {
	EstimatedWeeks   int        `json:"estimated_weeks"`
	ProjectedEndDate *time.Time `json:"projected_end_date,omitempty"`
}

// PlanStatus represents the lifecycle state of a plan.
type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
)

// IsValid checks if the status value is valid
func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanActive, PlanCompleted:
		return true
	}
	return false
}

// Physiological plausibility bounds. A plan outside these ranges is a
// compute-service bug, not a user state, and must never be cached.
const (
	MinBMR           = 500.0
	MaxBMR           = 5000.0
	MinCalorieTarget = 500.0
	MaxCalorieTarget = 10000.0
	MinProteinTarget = 20.0
	MaxProteinTarget = 500.0
	MinWaterTarget   = 500.0
	MaxWaterTarget   = 10000.0
)

// Validate checks the targets against plausible physiological ranges.
func (t *Targets) Validate() error {
	if t.BMR <= 0 {
		return fmt.Errorf("bmr must be positive (got %.1f)", t.BMR)
	}
	if t.TDEE <= t.BMR {
		return fmt.Errorf("tdee must exceed bmr (tdee=%.1f, bmr=%.1f)", t.TDEE, t.BMR)
	}
	if t.BMR < MinBMR || t.BMR > MaxBMR {
		return fmt.Errorf("bmr out of range [%.0f, %.0f] (got %.1f)", MinBMR, MaxBMR, t.BMR)
	}
	if t.CalorieTarget < MinCalorieTarget || t.CalorieTarget > MaxCalorieTarget {
		return fmt.Errorf("calorie target out of range [%.0f, %.0f] (got %.1f)", MinCalorieTarget, MaxCalorieTarget, t.CalorieTarget)
	}
	if t.ProteinTarget < MinProteinTarget || t.ProteinTarget > MaxProteinTarget {
		return fmt.Errorf("protein target out of range [%.0f, %.0f] (got %.1f)", MinProteinTarget, MaxProteinTarget, t.ProteinTarget)
	}
	if t.WaterTarget < MinWaterTarget || t.WaterTarget > MaxWaterTarget {
		return fmt.Errorf("water target out of range [%.0f, %.0f] (got %.1f)", MinWaterTarget, MaxWaterTarget, t.WaterTarget)
	}
	return nil
}

// Validate checks if the plan has valid field values
func (p *Plan) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("plan id is required")
	}
	if p.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("invalid plan status: %s", p.Status)
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("end date %s precedes start date %s", p.EndDate.Format(time.DateOnly), p.StartDate.Format(time.DateOnly))
	}
	if err := p.Targets.Validate(); err != nil {
		return fmt.Errorf("invalid targets: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the plan so cached state cannot be
// mutated through an escaped pointer.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := *p
	if p.WhyItWorks != nil {
		out.WhyItWorks = append(json.RawMessage(nil), p.WhyItWorks...)
	}
	if p.EndDate != nil {
		d := *p.EndDate
		out.EndDate = &d
	}
	if p.Targets.Projection != nil {
		proj := *p.Targets.Projection
		if proj.ProjectedEndDate != nil {
			d := *proj.ProjectedEndDate
			proj.ProjectedEndDate = &d
		}
		out.Targets.Projection = &proj
	}
	return &out
}
