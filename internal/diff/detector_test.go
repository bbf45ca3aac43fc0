package diff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcalhq/plansync/internal/types"
)

func baseTargets() types.Targets {
	return types.Targets{
		BMR:           1550,
		TDEE:          2100,
		CalorieTarget: 2000,
		ProteinTarget: 140,
		WaterTarget:   2625,
		WeeklyRate:    -0.5,
	}
}

func TestCompareFirstFetch(t *testing.T) {
	var d Detector
	assert.Nil(t, d.Compare(nil, baseTargets()))
}

func TestCompareCalorieThreshold(t *testing.T) {
	var d Detector

	t.Run("delta 150 is significant", func(t *testing.T) {
		prev := baseTargets()
		cur := baseTargets()
		cur.CalorieTarget = 1850
		s := d.Compare(&prev, cur)
		require.NotNil(t, s)
		assert.Equal(t, -150.0, s.CalorieDelta)
	})

	t.Run("delta 20 is not", func(t *testing.T) {
		prev := baseTargets()
		cur := baseTargets()
		cur.CalorieTarget = 1980
		assert.Nil(t, d.Compare(&prev, cur))
	})

	t.Run("delta exactly at threshold is not significant", func(t *testing.T) {
		prev := baseTargets()
		cur := baseTargets()
		cur.CalorieTarget = prev.CalorieTarget + DefaultCalorieDelta
		assert.Nil(t, d.Compare(&prev, cur))
	})
}

func TestCompareProteinThreshold(t *testing.T) {
	var d Detector

	prev := baseTargets()
	cur := baseTargets()
	cur.ProteinTarget = 160 // +20g, over the 15g default
	s := d.Compare(&prev, cur)
	require.NotNil(t, s)
	assert.Equal(t, 20.0, s.ProteinDelta)

	cur.ProteinTarget = 150 // +10g, under it
	assert.Nil(t, d.Compare(&prev, cur))
}

func TestCompareConfiguredThresholds(t *testing.T) {
	// The tighter documented pair (50 kcal / 10 g) must be expressible.
	d := Detector{CalorieDelta: 50, ProteinDelta: 10}

	prev := baseTargets()
	cur := baseTargets()
	cur.CalorieTarget = 1930 // -70, over the tighter gate, under the default
	require.NotNil(t, d.Compare(&prev, cur))

	cur = baseTargets()
	cur.ProteinTarget = 152 // +12
	require.NotNil(t, d.Compare(&prev, cur))
}

func TestCompareProjectionShift(t *testing.T) {
	var d Detector
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	t.Run("end date moves by a week", func(t *testing.T) {
		prev := baseTargets()
		prev.Projection = &types.Projection{EstimatedWeeks: 12, ProjectedEndDate: &end}
		cur := baseTargets()
		later := end.AddDate(0, 0, 7)
		cur.Projection = &types.Projection{EstimatedWeeks: 13, ProjectedEndDate: &later}

		s := d.Compare(&prev, cur)
		require.NotNil(t, s)
		assert.True(t, s.ProjectionShifted)
		assert.Equal(t, 7*24*time.Hour, s.ProjectionDelta)
	})

	t.Run("end date moves by hours only", func(t *testing.T) {
		prev := baseTargets()
		prev.Projection = &types.Projection{ProjectedEndDate: &end}
		cur := baseTargets()
		nudged := end.Add(6 * time.Hour)
		cur.Projection = &types.Projection{ProjectedEndDate: &nudged}
		assert.Nil(t, d.Compare(&prev, cur))
	})

	t.Run("projection appears", func(t *testing.T) {
		prev := baseTargets()
		cur := baseTargets()
		cur.Projection = &types.Projection{EstimatedWeeks: 12, ProjectedEndDate: &end}
		s := d.Compare(&prev, cur)
		require.NotNil(t, s)
		assert.True(t, s.ProjectionShifted)
	})

	t.Run("projection disappears", func(t *testing.T) {
		prev := baseTargets()
		prev.Projection = &types.Projection{EstimatedWeeks: 12, ProjectedEndDate: &end}
		cur := baseTargets()
		s := d.Compare(&prev, cur)
		require.NotNil(t, s)
		assert.True(t, s.ProjectionShifted)
	})
}

func TestCompareCarriesUngatedDeltas(t *testing.T) {
	var d Detector
	prev := baseTargets()
	cur := baseTargets()
	cur.CalorieTarget = 1800
	cur.WaterTarget = 2400
	cur.WeeklyRate = -0.7

	s := d.Compare(&prev, cur)
	require.NotNil(t, s)
	assert.Equal(t, -225.0, s.WaterDelta)
	assert.InDelta(t, -0.2, s.WeeklyRateDelta, 1e-9)
}

func TestDescribe(t *testing.T) {
	var nilSummary *Summary
	assert.Equal(t, "no significant changes", nilSummary.Describe())

	s := &Summary{CalorieDelta: -150, ProteinDelta: 20, ProjectionShifted: true}
	desc := s.Describe()
	assert.Contains(t, desc, "calories -150 kcal")
	assert.Contains(t, desc, "protein +20 g")
	assert.Contains(t, desc, "timeline shifted")
}
