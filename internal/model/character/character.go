package character

import "strings"

// CosmicPhase buckets a character's age slider value.
type CosmicPhase string

const (
	PhaseYoung   CosmicPhase = "young"
	PhaseMature  CosmicPhase = "mature"
	PhaseAncient CosmicPhase = "ancient"
)

// PhaseForAge maps the age slider onto a cosmic phase. The slider allows negative and
// fractional values; anything below 1000 is young.
func PhaseForAge(age float64) CosmicPhase {
	switch {
	case age < 1000:
		return PhaseYoung
	case age < 3000:
		return PhaseMature
	default:
		return PhaseAncient
	}
}

// Descriptor is the snapshot of a user-built companion. It is chosen once during character
// creation and passed by value into every chat turn.
type Descriptor struct {
	Name        string      `json:"name"`
	Realm       string      `json:"realm"`
	Species     string      `json:"species"`
	Personality string      `json:"personality"`
	Gender      string      `json:"gender,omitempty"`
	Age         float64     `json:"age"`
	CosmicPhase CosmicPhase `json:"cosmicPhase,omitempty"`
	Color       string      `json:"color,omitempty"`
}

// DisplayName falls back to the species when the user left the name blank.
func (d Descriptor) DisplayName() string {
	if name := strings.TrimSpace(d.Name); name != "" {
		return name
	}
	if species := strings.TrimSpace(d.Species); species != "" {
		return species
	}
	return "Digital Entity"
}

// Phase returns the stored phase, deriving it from Age when unset.
func (d Descriptor) Phase() CosmicPhase {
	if d.CosmicPhase != "" {
		return d.CosmicPhase
	}
	return PhaseForAge(d.Age)
}
