package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles for the reconciliation engine.
// Supports gradual rollout by PEN, school targeting, and time-based
// activation, so risky reconciliation behavior can be introduced on a
// slice of the student population first.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	penOverrides map[string]map[string]bool // pen -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Students are assigned based on a hash of their PEN
	RolloutPercent int

	// School targeting (school of record codes)
	// Empty means all schools
	TargetSchools []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	Pen    string // Personal education number
	School string // School of record code
}

// Predefined feature flag names.
const (
	// === Reconciliation Features ===
	FeatureReconcileDualDogwood     = "reconcile.dual_dogwood"     // DD add/delete transitions
	FeatureReconcileFrenchImmersion = "reconcile.french_immersion" // FI evidence-gated attachment
	FeatureReconcileCareerAggregate = "reconcile.career_aggregate" // CP aggregate maintenance

	// === Recompute Features ===
	FeatureRecomputeBatchRequests = "recompute.batch_requests" // fire GRAD batch recompute calls

	// === Intake Features ===
	FeatureIntakeConversionJournal = "intake.conversion_journal" // record conversion errors

	// === Cache Features ===
	FeatureCacheSnapshots = "cache.snapshots" // redis snapshot cache

	// === Experimental Features ===
	FeatureExperimentalDemogRefresh = "experimental.demographics_refresh" // pull demographics from TRAX on mismatch
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:     make(map[string]*Feature),
		penOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Core reconciliation behavior ships fully enabled; the flags exist
	// so a misbehaving table change can be pulled back without a deploy.
	ff.features[FeatureReconcileDualDogwood] = &Feature{
		Name:           FeatureReconcileDualDogwood,
		Description:    "Apply dual dogwood add/delete transitions",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureReconcileFrenchImmersion] = &Feature{
		Name:           FeatureReconcileFrenchImmersion,
		Description:    "Attach French Immersion on course evidence",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureReconcileCareerAggregate] = &Feature{
		Name:           FeatureReconcileCareerAggregate,
		Description:    "Maintain the career program aggregate",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRecomputeBatchRequests] = &Feature{
		Name:           FeatureRecomputeBatchRequests,
		Description:    "Request downstream batch recomputes",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureIntakeConversionJournal] = &Feature{
		Name:           FeatureIntakeConversionJournal,
		Description:    "Journal conversion errors per PEN",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCacheSnapshots] = &Feature{
		Name:           FeatureCacheSnapshots,
		Description:    "Cache student snapshots in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalDemogRefresh] = &Feature{
		Name:           FeatureExperimentalDemogRefresh,
		Description:    "Refresh demographics from TRAX on mismatch",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_RECONCILE_DUAL_DOGWOOD=true
// Example: FEATURE_EXPERIMENTAL_DEMOGRAPHICS_REFRESH=25 (25% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "reconcile.dual_dogwood" -> "FEATURE_RECONCILE_DUAL_DOGWOOD"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check per-PEN overrides first
	if ctx != nil && ctx.Pen != "" {
		if overrides, ok := ff.penOverrides[ctx.Pen]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check school targeting
	if len(feature.TargetSchools) > 0 && ctx != nil && ctx.School != "" {
		schoolMatch := false
		for _, s := range feature.TargetSchools {
			if s == ctx.School {
				schoolMatch = true
				break
			}
		}
		if !schoolMatch {
			return false
		}
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.Pen != "" {
		return ff.isInRollout(ctx.Pen, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a PEN is in the rollout percentage.
// Uses consistent hashing so students stay in their bucket.
func (ff *FeatureFlags) isInRollout(pen, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(pen))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetPenOverride sets a feature override for a specific PEN.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetPenOverride(pen, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.penOverrides[pen]; !ok {
		ff.penOverrides[pen] = make(map[string]bool)
	}
	ff.penOverrides[pen][featureName] = enabled
}

// ClearPenOverrides removes all overrides for a PEN.
func (ff *FeatureFlags) ClearPenOverrides(pen string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.penOverrides, pen)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
