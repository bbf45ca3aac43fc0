package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTargets() Targets {
	return Targets{
		BMR:           1550,
		TDEE:          2100,
		CalorieTarget: 1850,
		ProteinTarget: 140,
		WaterTarget:   2625,
		WeeklyRate:    -0.5,
	}
}

func validPlan() *Plan {
	return &Plan{
		ID:        "plan-1",
		UserID:    "user-1",
		StartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Status:    PlanActive,
		Targets:   validTargets(),
	}
}

func TestTargetsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Targets)
		wantErr string
	}{
		{
			name:   "valid targets pass",
			mutate: func(tg *Targets) {},
		},
		{
			name:    "zero bmr rejected",
			mutate:  func(tg *Targets) { tg.BMR = 0 },
			wantErr: "bmr must be positive",
		},
		{
			name:    "negative bmr rejected",
			mutate:  func(tg *Targets) { tg.BMR = -1200 },
			wantErr: "bmr must be positive",
		},
		{
			name:    "tdee below bmr rejected",
			mutate:  func(tg *Targets) { tg.TDEE = 1400 },
			wantErr: "tdee must exceed bmr",
		},
		{
			name:    "tdee equal to bmr rejected",
			mutate:  func(tg *Targets) { tg.TDEE = tg.BMR },
			wantErr: "tdee must exceed bmr",
		},
		{
			name:    "bmr below plausible floor",
			mutate:  func(tg *Targets) { tg.BMR = 400; tg.TDEE = 600 },
			wantErr: "bmr out of range",
		},
		{
			name:    "bmr above plausible ceiling",
			mutate:  func(tg *Targets) { tg.BMR = 5100; tg.TDEE = 6000 },
			wantErr: "bmr out of range",
		},
		{
			name:    "calorie target too low",
			mutate:  func(tg *Targets) { tg.CalorieTarget = 300 },
			wantErr: "calorie target out of range",
		},
		{
			name:    "calorie target too high",
			mutate:  func(tg *Targets) { tg.CalorieTarget = 12000 },
			wantErr: "calorie target out of range",
		},
		{
			name:    "protein target too low",
			mutate:  func(tg *Targets) { tg.ProteinTarget = 10 },
			wantErr: "protein target out of range",
		},
		{
			name:    "protein target too high",
			mutate:  func(tg *Targets) { tg.ProteinTarget = 800 },
			wantErr: "protein target out of range",
		},
		{
			name:    "water target too low",
			mutate:  func(tg *Targets) { tg.WaterTarget = 100 },
			wantErr: "water target out of range",
		},
		{
			name:    "water target too high",
			mutate:  func(tg *Targets) { tg.WaterTarget = 20000 },
			wantErr: "water target out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := validTargets()
			tt.mutate(&tg)
			err := tg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPlanValidate(t *testing.T) {
	t.Run("valid plan passes", func(t *testing.T) {
		assert.NoError(t, validPlan().Validate())
	})

	t.Run("missing id rejected", func(t *testing.T) {
		p := validPlan()
		p.ID = ""
		assert.ErrorContains(t, p.Validate(), "plan id is required")
	})

	t.Run("missing user id rejected", func(t *testing.T) {
		p := validPlan()
		p.UserID = ""
		assert.ErrorContains(t, p.Validate(), "user id is required")
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		p := validPlan()
		p.Status = "paused"
		assert.ErrorContains(t, p.Validate(), "invalid plan status")
	})

	t.Run("end date before start date rejected", func(t *testing.T) {
		p := validPlan()
		end := p.StartDate.AddDate(0, 0, -7)
		p.EndDate = &end
		assert.ErrorContains(t, p.Validate(), "precedes start date")
	})

	t.Run("invalid targets propagate", func(t *testing.T) {
		p := validPlan()
		p.Targets.BMR = 0
		assert.ErrorContains(t, p.Validate(), "invalid targets")
	})
}

func TestPlanClone(t *testing.T) {
	p := validPlan()
	end := p.StartDate.AddDate(0, 3, 0)
	p.EndDate = &end
	projEnd := p.StartDate.AddDate(0, 2, 15)
	p.Targets.Projection = &Projection{EstimatedWeeks: 11, ProjectedEndDate: &projEnd}

	clone := p.Clone()
	require.Equal(t, p, clone)

	// Mutating the clone must not reach back into the original.
	*clone.EndDate = clone.EndDate.AddDate(1, 0, 0)
	clone.Targets.Projection.EstimatedWeeks = 99
	assert.Equal(t, end, *p.EndDate)
	assert.Equal(t, 11, p.Targets.Projection.EstimatedWeeks)

	var nilPlan *Plan
	assert.Nil(t, nilPlan.Clone())
}
