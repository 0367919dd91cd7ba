package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_DefaultsEnabled(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureReconcileDualDogwood, nil))
	assert.True(t, ff.IsEnabled(FeatureReconcileFrenchImmersion, nil))
	assert.True(t, ff.IsEnabled(FeatureCacheSnapshots, nil))
	assert.False(t, ff.IsEnabled(FeatureExperimentalDemogRefresh, nil))
}

func TestFeatureFlags_UnknownFeatureDisabled(t *testing.T) {
	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled("reconcile.nonexistent", nil))
}

func TestFeatureFlags_PenOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()

	ff.SetPenOverride("123456789", FeatureReconcileCareerAggregate, false)
	assert.False(t, ff.IsEnabled(FeatureReconcileCareerAggregate, &FeatureContext{Pen: "123456789"}))
	// Других студентов переопределение не касается.
	assert.True(t, ff.IsEnabled(FeatureReconcileCareerAggregate, &FeatureContext{Pen: "987654321"}))

	ff.ClearPenOverrides("123456789")
	assert.True(t, ff.IsEnabled(FeatureReconcileCareerAggregate, &FeatureContext{Pen: "123456789"}))
}

func TestFeatureFlags_RolloutBucketsAreStable(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureRecomputeBatchRequests, 50))

	ctx := &FeatureContext{Pen: "123456789"}
	first := ff.IsEnabled(FeatureRecomputeBatchRequests, ctx)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureRecomputeBatchRequests, ctx))
	}
}

func TestFeatureFlags_RolloutZeroDisablesAll(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureRecomputeBatchRequests, 0))

	for _, pen := range []string{"123456789", "987654321", "555555555"} {
		assert.False(t, ff.IsEnabled(FeatureRecomputeBatchRequests, &FeatureContext{Pen: pen}))
	}
}

func TestFeatureFlags_SetRolloutPercentValidates(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.Error(t, ff.SetRolloutPercent(FeatureRecomputeBatchRequests, 101))
	assert.Error(t, ff.SetRolloutPercent(FeatureRecomputeBatchRequests, -1))
	assert.Error(t, ff.SetRolloutPercent("no.such.feature", 10))
}

func TestFeatureFlags_EnableDisable(t *testing.T) {
	ff := LoadFeatureFlags()

	require.NoError(t, ff.DisableFeature(FeatureIntakeConversionJournal))
	assert.False(t, ff.IsEnabled(FeatureIntakeConversionJournal, nil))

	require.NoError(t, ff.EnableFeature(FeatureIntakeConversionJournal))
	assert.True(t, ff.IsEnabled(FeatureIntakeConversionJournal, nil))

	assert.Error(t, ff.EnableFeature("no.such.feature"))
}
