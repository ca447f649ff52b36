// Package catalog contains the reference data model for gamified activities.
// Catalog entries are curated outside this engine and are read-only here.
// This is a pure domain layer with zero external dependencies.
package catalog

import (
	"time"

	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// AppID represents a unique identifier for a catalog entry.
type AppID string

// IsValid checks if the app ID is valid.
func (a AppID) IsValid() bool {
	return a != ""
}

// String returns the string representation of AppID.
func (a AppID) String() string {
	return string(a)
}

// Kind classifies the therapeutic activity behind a catalog entry.
type Kind string

const (
	KindAssessment      Kind = "assessment"
	KindWorksheet       Kind = "worksheet"
	KindExercise        Kind = "exercise"
	KindIntake          Kind = "intake"
	KindPsychoeducation Kind = "psychoeducation"
)

// IsValid checks if the kind is a known activity kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindAssessment, KindWorksheet, KindExercise, KindIntake, KindPsychoeducation:
		return true
	default:
		return false
	}
}

// Difficulty is the tier a curator assigns to an activity.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// IsValid checks if the difficulty is a known tier.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	default:
		return false
	}
}

// AppDefinition is one curated gamified activity.
// Immutable from the engine's perspective; mutations belong to the
// curation process that owns the catalog.
type AppDefinition struct {
	ID   AppID
	Name string
	Kind Kind

	Difficulty        Difficulty
	EstimatedDuration time.Duration

	// EvidenceBased marks activities backed by published clinical evidence.
	EvidenceBased bool

	// MaxScore is the scoring ceiling for a single session.
	MaxScore shared.Score

	// PopularityScore is the curation process's aggregate usage signal.
	PopularityScore float64

	// ClinicalRating is the 0-5 clinician rating.
	ClinicalRating float64

	// Active controls whether the entry is offered to users at all.
	Active bool

	// Position is the catalog insertion order. Recommendation ties are
	// broken by Position so equal-score entries keep a stable order.
	Position int
}

// Validate checks the catalog entry for structural problems.
// Used when seeding reference data, not on the hot path.
func (a *AppDefinition) Validate() error {
	if !a.ID.IsValid() {
		return shared.NewDomainError("catalog", "Validate", shared.ErrInvalidID, "app ID is required")
	}
	if !a.Kind.IsValid() {
		return shared.NewDomainError("catalog", "Validate", shared.ErrInvalidInput, "unknown activity kind")
	}
	if !a.Difficulty.IsValid() {
		return shared.NewDomainError("catalog", "Validate", shared.ErrInvalidInput, "unknown difficulty tier")
	}
	if a.MaxScore < 0 {
		return shared.NewDomainError("catalog", "Validate", shared.ErrNegativeValue, "max score cannot be negative")
	}
	if a.ClinicalRating < 0 || a.ClinicalRating > 5 {
		return shared.NewDomainError("catalog", "Validate", shared.ErrValueOutOfRange, "clinical rating must be between 0 and 5")
	}
	return nil
}

// RecommendationWeight computes the relevance score used by the
// recommendation ranking: popularity and clinician signals plus a flat
// bonus for evidence-based content.
func (a *AppDefinition) RecommendationWeight() float64 {
	weight := a.PopularityScore*0.3 + a.ClinicalRating*20
	if a.EvidenceBased {
		weight += 25
	}
	return weight
}
