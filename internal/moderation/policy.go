package moderation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the tunable moderation configuration. Decision code reads thresholds and
// vocabularies from here only.
type Policy struct {
	Thresholds          map[Category]Likelihood `yaml:"thresholds"`
	ForbiddenLabels     []string                `yaml:"forbidden_labels"`
	AllowedLabels       []string                `yaml:"allowed_labels"`
	ForbiddenConfidence float64                 `yaml:"forbidden_confidence"`
	AllowedConfidence   float64                 `yaml:"allowed_confidence"`
	MaxStoredLabels     int                     `yaml:"max_stored_labels"`
}

// DefaultPolicy returns the strict listing-photo policy. Thresholds are deliberately
// asymmetric: adult and violence trip at UNLIKELY, racy only at LIKELY.
func DefaultPolicy() Policy {
	return Policy{
		Thresholds: map[Category]Likelihood{
			CategoryAdult:    Unlikely,
			CategoryViolence: Unlikely,
			CategorySpoof:    Possible,
			CategoryMedical:  Possible,
			CategoryRacy:     Likely,
		},
		ForbiddenLabels: []string{
			"person", "people", "human", "face", "selfie", "portrait", "model", "woman", "man", "girl", "boy",
			"bra", "bikini", "lingerie", "underwear", "undergarment", "swimsuit", "swimwear",
			"skin", "body", "abdomen", "chest", "breast", "cleavage", "thigh", "leg", "beauty",
			"neck", "shoulder", "back", "stomach",
			"weapon", "gun", "knife", "blood", "nudity", "explicit",
		},
		AllowedLabels: []string{
			"building", "house", "home", "apartment", "room", "ceiling", "floor", "wall", "door", "window",
			"architecture", "property", "real estate", "interior design", "estate",
			"bedroom", "living room", "kitchen", "bathroom", "dining room", "hallway", "corridor",
			"furniture", "bed", "chair", "table", "desk", "couch", "sofa", "cabinet", "shelf",
			"lamp", "lighting", "curtain", "blinds", "carpet", "rug", "mattress", "pillow",
			"appliance", "refrigerator", "stove", "sink", "toilet", "shower", "bathtub",
			"air conditioner", "fan", "heater", "television", "mirror", "closet", "wardrobe",
			"chest of drawers", "drawer", "dresser", "fireplace", "mantel", "backsplash",
		},
		ForbiddenConfidence: 0.7,
		AllowedConfidence:   0.6,
		MaxStoredLabels:     10,
	}
}

// Threshold returns the configured minimum likelihood for a category. Categories with
// no configured threshold never trip.
func (p Policy) Threshold(c Category) (Likelihood, bool) {
	l, ok := p.Thresholds[c]
	return l, ok
}

// ParseThreshold parses a likelihood name usable as a threshold. Unknown names,
// UNKNOWN and DETECTED are rejected: the first two would trip on every image and
// DETECTED has no ordinal position.
func ParseThreshold(s string) (Likelihood, error) {
	var l Likelihood
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return Unknown, err
	}
	if l == Unknown || l == Detected {
		return Unknown, fmt.Errorf("likelihood %s cannot be used as a threshold", l)
	}
	return l, nil
}

// LoadPolicy reads a YAML policy file and overlays it on the defaults. Fields absent
// from the file keep their default values.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("failed to read moderation policy: %w", err)
	}

	var file Policy
	if err := yaml.Unmarshal(data, &file); err != nil {
		return policy, fmt.Errorf("failed to parse moderation policy: %w", err)
	}

	for c, l := range file.Thresholds {
		if l == Unknown || l == Detected {
			return DefaultPolicy(), fmt.Errorf("invalid threshold for %s: %s", c, l)
		}
		policy.Thresholds[c] = l
	}
	if len(file.ForbiddenLabels) > 0 {
		policy.ForbiddenLabels = file.ForbiddenLabels
	}
	if len(file.AllowedLabels) > 0 {
		policy.AllowedLabels = file.AllowedLabels
	}
	if file.ForbiddenConfidence > 0 {
		policy.ForbiddenConfidence = file.ForbiddenConfidence
	}
	if file.AllowedConfidence > 0 {
		policy.AllowedConfidence = file.AllowedConfidence
	}
	if file.MaxStoredLabels > 0 {
		policy.MaxStoredLabels = file.MaxStoredLabels
	}
	return policy, nil
}
