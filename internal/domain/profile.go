package domain

// Structure levels and pacing values used by trait profiles.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"

	PaceSlow   = "slow"
	PaceMedium = "medium"
	PaceFast   = "fast"
)

// TraitProfile is the coaching behavior derived from a session's selected traits.
// It is recomputed on every turn and never stored.
type TraitProfile struct {
	Tone           string  `json:"tone"`
	QuestionRatio  float64 `json:"question_ratio"`
	StructureLevel string  `json:"structure_level"`
	FrameworkUsage bool    `json:"framework_usage"`
	Pacing         string  `json:"pacing"`
}

// DefaultTraitProfile is used when none of the selected traits is known.
func DefaultTraitProfile() TraitProfile {
	return TraitProfile{
		Tone:           "supportive and professional",
		QuestionRatio:  0.5,
		StructureLevel: LevelMedium,
		FrameworkUsage: false,
		Pacing:         PaceMedium,
	}
}
