package config

import (
	"errors"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Predefined feature flag names.
const (
	// === Exercise Features ===
	FeatureMoreChallenges        = "exercise.more_challenges"      // Extra practice challenges on demand
	FeatureBackgroundProvisioner = "exercise.background_provision" // Provision the daily set at midnight
	FeatureArchiveSweep          = "exercise.archive_sweep"        // Delete old exercise sets

	// === Leaderboard Features ===
	FeatureLeaderboardRank = "leaderboard.rank" // Live rank next to the cached top-10

	// === Account Features ===
	FeatureUsernameChange = "user.username_change"
	FeatureCustomToken    = "user.custom_token" // Sign-in token from uid + username, off unless opted in
)

var (
	ErrFeatureNotFound       = errors.New("feature not found")
	ErrInvalidRolloutPercent = errors.New("rollout percent must be 0-100")
)

// Feature is one toggle. RolloutPercent buckets subjects by a stable hash.
type Feature struct {
	Name           string
	Description    string
	RolloutPercent int
}

// Enabled reports whether anyone gets the feature.
func (f Feature) Enabled() bool {
	return f.RolloutPercent > 0
}

// FeatureContext identifies who is asking.
type FeatureContext struct {
	SubjectID string
}

// FeatureFlags manages toggles with gradual rollout per subject.
// A nil *FeatureFlags enables everything.
type FeatureFlags struct {
	mu        sync.RWMutex
	features  map[string]*Feature
	overrides map[string]bool // subjectID + "|" + feature
}

var defaultFeatures = []Feature{
	{Name: FeatureMoreChallenges, Description: "Extra practice challenges limited per day", RolloutPercent: 100},
	{Name: FeatureBackgroundProvisioner, Description: "Generate the daily exercise at local midnight", RolloutPercent: 100},
	{Name: FeatureArchiveSweep, Description: "Delete exercise sets older than the archive age", RolloutPercent: 100},
	{Name: FeatureLeaderboardRank, Description: "Compute the caller rank against the live store", RolloutPercent: 100},
	{Name: FeatureUsernameChange, Description: "Allow username changes with cooldown", RolloutPercent: 100},
	{Name: FeatureCustomToken, Description: "Issue identity-provider custom tokens for a uid and username pair", RolloutPercent: 0},
}

// LoadFeatureFlags builds the defaults and applies FEATURE_* overrides.
//
//	FEATURE_EXERCISE_MORE_CHALLENGES=false
//	FEATURE_LEADERBOARD_RANK=50   (50% rollout)
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:  make(map[string]*Feature, len(defaultFeatures)),
		overrides: make(map[string]bool),
	}

	for _, f := range defaultFeatures {
		f := f
		if percent, ok := parseFlagValue(os.Getenv(featureNameToEnvKey(f.Name))); ok {
			f.RolloutPercent = percent
		}
		ff.features[f.Name] = &f
	}

	return ff
}

// parseFlagValue accepts a bool or a 0-100 percentage.
func parseFlagValue(val string) (int, bool) {
	if val == "" {
		return 0, false
	}
	if b, err := strconv.ParseBool(val); err == nil {
		if b {
			return 100, true
		}
		return 0, true
	}
	if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
		return p, true
	}
	return 0, false
}

// featureNameToEnvKey: "exercise.more_challenges" -> "FEATURE_EXERCISE_MORE_CHALLENGES".
func featureNameToEnvKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// IsEnabled checks a feature for ctx. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	if ff == nil {
		return true
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.SubjectID != "" {
		if enabled, ok := ff.overrides[ctx.SubjectID+"|"+featureName]; ok {
			return enabled
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled() {
		return false
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.SubjectID != "" {
		return inRollout(ctx.SubjectID, featureName, feature.RolloutPercent)
	}
	return true
}

// inRollout hashes the pair so a subject keeps its bucket across restarts.
func inRollout(subjectID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(subjectID))
	return int(h.Sum32()%100) < percent
}

// SetUserOverride forces a feature on or off for one subject.
func (ff *FeatureFlags) SetUserOverride(subjectID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	ff.overrides[subjectID+"|"+featureName] = enabled
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.RolloutPercent = percent
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
