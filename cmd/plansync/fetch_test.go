package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kcalhq/plansync/internal/types"
)

func displayPlan() *types.Plan {
	end := time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC)
	return &types.Plan{
		ID:        "plan-1",
		UserID:    "user-7",
		StartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Status:    types.PlanActive,
		Targets: types.Targets{
			BMR:           1550,
			TDEE:          2100,
			CalorieTarget: 1850,
			ProteinTarget: 140,
			WaterTarget:   2625,
			WeeklyRate:    -0.5,
			Projection: &types.Projection{
				EstimatedWeeks:   16,
				ProjectedEndDate: &end,
			},
		},
	}
}

func TestRenderPlan(t *testing.T) {
	var buf bytes.Buffer
	renderPlan(&buf, displayPlan(), time.Now().Add(-2*time.Minute))
	out := buf.String()

	assert.Contains(t, out, "Calories:  1850 kcal")
	assert.Contains(t, out, "Protein:   140 g")
	assert.Contains(t, out, "Water:     2625 ml")
	assert.Contains(t, out, "BMR 1550 / TDEE 2100")
	assert.Contains(t, out, "projected completion 2026-12-15 (~16 weeks)")
	assert.Contains(t, out, "ago")
}

func TestRenderPlanWithoutTimestamp(t *testing.T) {
	var buf bytes.Buffer
	renderPlan(&buf, displayPlan(), time.Time{})

	assert.NotContains(t, buf.String(), "updated")
}
